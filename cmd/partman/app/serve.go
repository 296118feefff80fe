// SPDX-FileCopyrightText: Copyright 2025 onshape-part-manager contributors
// SPDX-License-Identifier: Apache-2.0

package app

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"golang.org/x/sync/errgroup"

	"github.com/cml1010101/onshape-part-manager/pkg/api"
	"github.com/cml1010101/onshape-part-manager/pkg/auth"
	"github.com/cml1010101/onshape-part-manager/pkg/authserver"
	"github.com/cml1010101/onshape-part-manager/pkg/authserver/session"
	"github.com/cml1010101/onshape-part-manager/pkg/authserver/storage"
	"github.com/cml1010101/onshape-part-manager/pkg/authserver/upstream"
	"github.com/cml1010101/onshape-part-manager/pkg/logger"
	"github.com/cml1010101/onshape-part-manager/pkg/partdb"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the part manager server",
	Long: `Start the part manager: the embedded OAuth authorization server, the
upstream sign-in flow, and the part-numbering REST API on one listener.

Configuration comes from flags or PARTMAN_* environment variables (for
example PARTMAN_UPSTREAM_CLIENT_SECRET).`,
	RunE: runServe,
}

const (
	defaultGracefulTimeout = 30 * time.Second
	serverReadTimeout      = 10 * time.Second
	serverWriteTimeout     = 30 * time.Second
	serverIdleTimeout      = 60 * time.Second
)

func init() {
	flags := serveCmd.Flags()

	flags.String("address", ":8000", "Address to listen on")
	flags.String("redis-addr", "", "Redis address for token storage (empty: in-memory)")
	flags.String("redis-password", "", "Redis password")
	flags.String("redis-key-prefix", "partman:auth:", "Redis key namespace")

	flags.String("client-id", "", "OAuth client ID to register")
	flags.String("client-secret", "", "OAuth client secret")
	flags.StringSlice("client-redirect-uris", nil, "OAuth client redirect URIs")
	flags.Duration("access-token-ttl", authserver.DefaultAccessTokenTTL, "Access token lifetime")
	flags.Duration("auth-code-ttl", authserver.DefaultAuthCodeTTL, "Authorization code lifetime")
	flags.Bool("rotate-refresh-tokens", false, "Retire refresh tokens on each use")

	flags.String("upstream-type", string(upstream.ProviderTypeOAuth2), "Upstream IdP type (oauth2 or oidc)")
	flags.String("upstream-issuer", "", "Upstream OIDC issuer URL")
	flags.String("upstream-authorize-url", "https://oauth.onshape.com/oauth/authorize", "Upstream authorize endpoint")
	flags.String("upstream-token-url", "https://oauth.onshape.com/oauth/token", "Upstream token endpoint")
	flags.String("upstream-userinfo-url", "https://cad.onshape.com/api/users/sessioninfo", "Upstream userinfo endpoint")
	flags.String("upstream-client-id", "", "Our client ID at the upstream IdP")
	flags.String("upstream-client-secret", "", "Our client secret at the upstream IdP")
	flags.String("upstream-redirect-url", "http://localhost:8000/callback", "Our callback URL registered upstream")
	flags.StringSlice("upstream-scopes", []string{"OAuth2Read"}, "Scopes requested from the upstream IdP")

	flags.Bool("secure-cookies", false, "Mark session cookies Secure (HTTPS deployments)")

	viper.SetEnvPrefix("PARTMAN")
	viper.SetEnvKeyReplacer(strings.NewReplacer("-", "_"))
	viper.AutomaticEnv()

	if err := viper.BindPFlags(flags); err != nil {
		logger.Fatalf("Failed to bind serve flags: %v", err)
	}
}

func runServe(cmd *cobra.Command, _ []string) error {
	ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	store, err := buildStorage(ctx)
	if err != nil {
		return err
	}
	defer func() { _ = store.Close() }()

	idp, err := buildUpstream(ctx)
	if err != nil {
		return err
	}

	sessions := session.NewManager(
		session.WithSecureCookies(viper.GetBool("secure-cookies")),
	)

	authSrv, err := authserver.New(authserver.Config{
		Clients: []authserver.Client{{
			ID:           viper.GetString("client-id"),
			Secret:       viper.GetString("client-secret"),
			RedirectURIs: viper.GetStringSlice("client-redirect-uris"),
		}},
		AccessTokenTTL:      viper.GetDuration("access-token-ttl"),
		AuthCodeTTL:         viper.GetDuration("auth-code-ttl"),
		RotateRefreshTokens: viper.GetBool("rotate-refresh-tokens"),
	}, store, sessions, idp)
	if err != nil {
		return fmt.Errorf("failed to create authorization server: %w", err)
	}

	apiHandler, err := api.NewHandler(partdb.NewStore(), auth.NewBearerValidator(store))
	if err != nil {
		return fmt.Errorf("failed to create API handler: %w", err)
	}

	router := chi.NewRouter()
	router.Use(
		middleware.RequestID,
		middleware.RealIP,
		middleware.Recoverer,
	)
	authSrv.OAuthRoutes(router)
	authSrv.UpstreamRoutes(router)
	apiHandler.Routes(router)

	address := viper.GetString("address")
	server := &http.Server{
		Addr:         address,
		Handler:      router,
		ReadTimeout:  serverReadTimeout,
		WriteTimeout: serverWriteTimeout,
		IdleTimeout:  serverIdleTimeout,
	}

	group, groupCtx := errgroup.WithContext(ctx)
	group.Go(func() error {
		logger.Infof("Server listening on %s", address)
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("server failed: %w", err)
		}
		return nil
	})
	group.Go(func() error {
		<-groupCtx.Done()
		logger.Info("Shutting down server...")

		shutdownCtx, cancel := context.WithTimeout(context.Background(), defaultGracefulTimeout)
		defer cancel()
		return server.Shutdown(shutdownCtx)
	})

	if err := group.Wait(); err != nil {
		return err
	}
	logger.Info("Server shutdown complete")
	return nil
}

// buildStorage selects the token store backend: Redis when an address is
// configured, the in-memory store otherwise.
func buildStorage(ctx context.Context) (storage.Store, error) {
	addr := viper.GetString("redis-addr")
	if addr == "" {
		logger.Info("Using in-memory token storage")
		return storage.NewMemoryStorage(), nil
	}

	store, err := storage.NewRedisStorage(ctx, storage.RedisConfig{
		Addr:      addr,
		Password:  viper.GetString("redis-password"),
		KeyPrefix: viper.GetString("redis-key-prefix"),
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create redis storage: %w", err)
	}
	logger.Infow("Using redis token storage", "addr", addr)
	return store, nil
}

func buildUpstream(ctx context.Context) (upstream.Provider, error) {
	cfg := &upstream.Config{
		Type:         upstream.ProviderType(viper.GetString("upstream-type")),
		Issuer:       viper.GetString("upstream-issuer"),
		AuthorizeURL: viper.GetString("upstream-authorize-url"),
		TokenURL:     viper.GetString("upstream-token-url"),
		UserInfoURL:  viper.GetString("upstream-userinfo-url"),
		ClientID:     viper.GetString("upstream-client-id"),
		ClientSecret: viper.GetString("upstream-client-secret"),
		RedirectURL:  viper.GetString("upstream-redirect-url"),
		Scopes:       viper.GetStringSlice("upstream-scopes"),
	}

	idp, err := upstream.NewProvider(ctx, cfg)
	if err != nil {
		return nil, fmt.Errorf("failed to create upstream provider: %w", err)
	}
	return idp, nil
}
