// SPDX-FileCopyrightText: Copyright 2025 onshape-part-manager contributors
// SPDX-License-Identifier: Apache-2.0

package upstream

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"slices"

	"github.com/coreos/go-oidc/v3/oidc"
	"golang.org/x/oauth2"

	"github.com/cml1010101/onshape-part-manager/pkg/logger"
)

// Compile-time interface compliance check.
var _ Provider = (*OIDCProvider)(nil)

// OIDCProvider implements the upstream flow for OpenID Connect providers.
// Endpoints come from discovery and the principal is taken from the verified
// ID token rather than a userinfo call.
type OIDCProvider struct {
	*OAuth2Provider

	provider *oidc.Provider
	verifier *oidc.IDTokenVerifier
}

// NewOIDCProvider creates an upstream provider via OIDC discovery.
func NewOIDCProvider(ctx context.Context, cfg *Config, opts ...OAuth2ProviderOption) (*OIDCProvider, error) {
	if cfg == nil {
		return nil, errors.New("config is required")
	}
	if cfg.Type != ProviderTypeOIDC {
		return nil, fmt.Errorf("config.Type must be %q, got %q", ProviderTypeOIDC, cfg.Type)
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}

	base := &OAuth2Provider{cfg: cfg, httpClient: http.DefaultClient}
	for _, opt := range opts {
		opt(base)
	}

	provider, err := oidc.NewProvider(oidc.ClientContext(ctx, base.httpClient), cfg.Issuer)
	if err != nil {
		return nil, fmt.Errorf("OIDC discovery failed for %s: %w", cfg.Issuer, err)
	}

	scopes := cfg.Scopes
	if !slices.Contains(scopes, oidc.ScopeOpenID) {
		scopes = append([]string{oidc.ScopeOpenID}, scopes...)
	}

	base.oauth = &oauth2.Config{
		ClientID:     cfg.ClientID,
		ClientSecret: cfg.ClientSecret,
		RedirectURL:  cfg.RedirectURL,
		Scopes:       scopes,
		Endpoint:     provider.Endpoint(),
	}

	logger.Infow("upstream OIDC provider created",
		"issuer", cfg.Issuer,
		"client_id", cfg.ClientID,
	)

	return &OIDCProvider{
		OAuth2Provider: base,
		provider:       provider,
		verifier:       provider.Verifier(&oidc.Config{ClientID: cfg.ClientID}),
	}, nil
}

// Type returns the provider type.
func (*OIDCProvider) Type() ProviderType {
	return ProviderTypeOIDC
}

// Principal resolves the authenticated user from the verified ID token,
// falling back to the discovered userinfo endpoint when no ID token came
// back with the exchange.
func (p *OIDCProvider) Principal(ctx context.Context, tokens *Tokens) (*UserInfo, error) {
	if tokens == nil {
		return nil, errors.New("tokens are required")
	}

	if tokens.IDToken != "" {
		idToken, err := p.verifier.Verify(oidc.ClientContext(ctx, p.httpClient), tokens.IDToken)
		if err != nil {
			return nil, fmt.Errorf("ID token verification failed: %w", err)
		}

		var claims struct {
			Email string `json:"email"`
			Name  string `json:"name"`
		}
		// Claims beyond the subject are best-effort.
		_ = idToken.Claims(&claims)

		return &UserInfo{
			Subject: idToken.Subject,
			Email:   claims.Email,
			Name:    claims.Name,
		}, nil
	}

	info, err := p.provider.UserInfo(oidc.ClientContext(ctx, p.httpClient),
		oauth2.StaticTokenSource(&oauth2.Token{AccessToken: tokens.AccessToken}))
	if err != nil {
		return nil, fmt.Errorf("userinfo request failed: %w", err)
	}

	result := &UserInfo{Subject: info.Subject, Email: info.Email}
	var claims struct {
		Name string `json:"name"`
	}
	_ = info.Claims(&claims)
	result.Name = claims.Name
	return result, nil
}
