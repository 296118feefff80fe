// SPDX-FileCopyrightText: Copyright 2025 onshape-part-manager contributors
// SPDX-License-Identifier: Apache-2.0

package authserver

import (
	"fmt"
	"html/template"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/cml1010101/onshape-part-manager/pkg/authserver/session"
	"github.com/cml1010101/onshape-part-manager/pkg/authserver/storage"
	"github.com/cml1010101/onshape-part-manager/pkg/authserver/upstream"
	"github.com/cml1010101/onshape-part-manager/pkg/logger"
)

// Server provides the HTTP handlers for the embedded OAuth authorization
// server and the mirrored upstream sign-in flow.
type Server struct {
	cfg      Config
	clients  *ClientRegistry
	store    storage.Store
	sessions *session.Manager
	upstream upstream.Provider
	consent  *template.Template
}

// New creates an authorization server.
func New(cfg Config, store storage.Store, sessions *session.Manager, idp upstream.Provider) (*Server, error) {
	cfg.applyDefaults()
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}
	if store == nil {
		return nil, fmt.Errorf("storage is required")
	}
	if sessions == nil {
		return nil, fmt.Errorf("session manager is required")
	}
	if idp == nil {
		return nil, fmt.Errorf("upstream provider is required")
	}

	clients, err := NewClientRegistry(cfg.Clients)
	if err != nil {
		return nil, fmt.Errorf("invalid client registry: %w", err)
	}

	consent, err := template.New("consent").Parse(consentTemplate)
	if err != nil {
		return nil, fmt.Errorf("failed to parse consent template: %w", err)
	}

	logger.Infow("authorization server created",
		"clients", len(cfg.Clients),
		"access_token_ttl", cfg.AccessTokenTTL,
		"auth_code_ttl", cfg.AuthCodeTTL,
		"rotate_refresh_tokens", cfg.RotateRefreshTokens,
	)

	return &Server{
		cfg:      cfg,
		clients:  clients,
		store:    store,
		sessions: sessions,
		upstream: idp,
		consent:  consent,
	}, nil
}

// Routes returns a router with all authorization server endpoints registered.
func (s *Server) Routes() http.Handler {
	r := chi.NewRouter()
	s.OAuthRoutes(r)
	s.UpstreamRoutes(r)
	return r
}

// OAuthRoutes registers the provider-side endpoints on the given router.
func (s *Server) OAuthRoutes(r chi.Router) {
	r.Get("/oauth/authorize", s.AuthorizeHandler)
	r.Post("/oauth/authorize", s.ConsentDecisionHandler)
	r.Post("/oauth/token", s.TokenHandler)
}

// UpstreamRoutes registers the consumer-side endpoints (sign-in against the
// external identity provider) on the given router.
func (s *Server) UpstreamRoutes(r chi.Router) {
	r.Get("/", s.HomeHandler)
	r.Get("/login", s.LoginHandler)
	r.Get("/callback", s.CallbackHandler)
}
