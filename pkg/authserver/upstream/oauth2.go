// SPDX-FileCopyrightText: Copyright 2025 onshape-part-manager contributors
// SPDX-License-Identifier: Apache-2.0

package upstream

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/cenkalti/backoff/v5"
	"golang.org/x/oauth2"

	"github.com/cml1010101/onshape-part-manager/pkg/logger"
)

// maxUserInfoResponseSize caps the userinfo response body read.
const maxUserInfoResponseSize = 1 << 20

// retryInterval is the pause before the single retry of an upstream call.
const retryInterval = 500 * time.Millisecond

// Compile-time interface compliance check.
var _ Provider = (*OAuth2Provider)(nil)

// OAuth2Provider implements the upstream flow for pure OAuth 2.0 providers
// with explicit endpoints (no discovery). Onshape is one of these.
type OAuth2Provider struct {
	cfg        *Config
	oauth      *oauth2.Config
	httpClient *http.Client
}

// OAuth2ProviderOption configures an OAuth2Provider.
type OAuth2ProviderOption func(*OAuth2Provider)

// WithHTTPClient sets a custom HTTP client for token and userinfo requests.
func WithHTTPClient(client *http.Client) OAuth2ProviderOption {
	return func(p *OAuth2Provider) {
		p.httpClient = client
	}
}

// NewOAuth2Provider creates an upstream provider from explicit endpoints.
func NewOAuth2Provider(cfg *Config, opts ...OAuth2ProviderOption) (*OAuth2Provider, error) {
	if cfg == nil {
		return nil, errors.New("config is required")
	}
	if cfg.Type != ProviderTypeOAuth2 {
		return nil, fmt.Errorf("config.Type must be %q, got %q", ProviderTypeOAuth2, cfg.Type)
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}

	p := &OAuth2Provider{
		cfg: cfg,
		oauth: &oauth2.Config{
			ClientID:     cfg.ClientID,
			ClientSecret: cfg.ClientSecret,
			RedirectURL:  cfg.RedirectURL,
			Scopes:       cfg.Scopes,
			Endpoint: oauth2.Endpoint{
				AuthURL:  cfg.AuthorizeURL,
				TokenURL: cfg.TokenURL,
			},
		},
		httpClient: http.DefaultClient,
	}

	for _, opt := range opts {
		opt(p)
	}

	logger.Infow("upstream OAuth2 provider created",
		"authorization_endpoint", cfg.AuthorizeURL,
		"token_endpoint", cfg.TokenURL,
		"client_id", cfg.ClientID,
	)

	return p, nil
}

// Type returns the provider type.
func (*OAuth2Provider) Type() ProviderType {
	return ProviderTypeOAuth2
}

// AuthorizationURL builds the URL to redirect the user to the upstream IdP.
func (p *OAuth2Provider) AuthorizationURL(state string) string {
	return p.oauth.AuthCodeURL(state)
}

// Exchange exchanges an authorization code for tokens with the upstream IdP.
func (p *OAuth2Provider) Exchange(ctx context.Context, code string) (*Tokens, error) {
	if code == "" {
		return nil, errors.New("authorization code is required")
	}

	logger.Debugw("exchanging upstream authorization code",
		"token_endpoint", p.cfg.TokenURL,
	)

	return retryOnce(ctx, p.cfg.requestTimeout(), func(ctx context.Context) (*Tokens, error) {
		tok, err := p.oauth.Exchange(p.clientContext(ctx), code)
		if err != nil {
			return nil, fmt.Errorf("upstream code exchange failed: %w", err)
		}
		return fromOAuth2Token(tok), nil
	})
}

// Refresh obtains a fresh access token from the upstream IdP.
func (p *OAuth2Provider) Refresh(ctx context.Context, refreshToken string) (*Tokens, error) {
	if refreshToken == "" {
		return nil, errors.New("refresh token is required")
	}

	logger.Debugw("refreshing upstream tokens",
		"token_endpoint", p.cfg.TokenURL,
	)

	return retryOnce(ctx, p.cfg.requestTimeout(), func(ctx context.Context) (*Tokens, error) {
		src := p.oauth.TokenSource(p.clientContext(ctx), &oauth2.Token{RefreshToken: refreshToken})
		tok, err := src.Token()
		if err != nil {
			return nil, fmt.Errorf("upstream token refresh failed: %w", err)
		}
		return fromOAuth2Token(tok), nil
	})
}

// Principal resolves the authenticated user via the userinfo endpoint.
func (p *OAuth2Provider) Principal(ctx context.Context, tokens *Tokens) (*UserInfo, error) {
	if p.cfg.UserInfoURL == "" {
		return nil, errors.New("no userinfo endpoint configured")
	}
	if tokens == nil || tokens.AccessToken == "" {
		return nil, errors.New("access token is required")
	}

	ctx, cancel := context.WithTimeout(ctx, p.cfg.requestTimeout())
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, p.cfg.UserInfoURL, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create userinfo request: %w", err)
	}
	req.Header.Set("Authorization", "Bearer "+tokens.AccessToken)
	req.Header.Set("Accept", "application/json")

	resp, err := p.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("userinfo request failed: %w", err)
	}
	defer func() { _ = resp.Body.Close() }()

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxUserInfoResponseSize))
	if err != nil {
		return nil, fmt.Errorf("failed to read userinfo response: %w", err)
	}
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("userinfo request returned status %d", resp.StatusCode)
	}

	return parseUserInfo(body)
}

// parseUserInfo extracts a principal from a userinfo payload. Providers vary
// in which field carries the subject: OIDC-ish providers use "sub", Onshape's
// session info uses "id".
func parseUserInfo(body []byte) (*UserInfo, error) {
	var claims map[string]any
	if err := json.Unmarshal(body, &claims); err != nil {
		return nil, fmt.Errorf("failed to parse userinfo response: %w", err)
	}

	info := &UserInfo{}
	for _, field := range []string{"sub", "id", "email"} {
		if v, ok := claims[field].(string); ok && v != "" {
			info.Subject = v
			break
		}
	}
	if info.Subject == "" {
		return nil, errors.New("userinfo response carries no usable subject")
	}

	if email, ok := claims["email"].(string); ok {
		info.Email = email
	}
	if name, ok := claims["name"].(string); ok {
		info.Name = name
	}
	return info, nil
}

// clientContext injects our HTTP client into the oauth2 library.
func (p *OAuth2Provider) clientContext(ctx context.Context) context.Context {
	return context.WithValue(ctx, oauth2.HTTPClient, p.httpClient)
}

func fromOAuth2Token(tok *oauth2.Token) *Tokens {
	tokens := &Tokens{
		AccessToken:  tok.AccessToken,
		RefreshToken: tok.RefreshToken,
		ExpiresAt:    tok.Expiry,
	}
	if id, ok := tok.Extra("id_token").(string); ok {
		tokens.IDToken = id
	}
	return tokens
}

// retryOnce runs op with a bounded timeout and retries it at most once.
// Unbounded retry is disallowed here: these calls block the requesting
// principal's whole flow, so after the second failure the error surfaces
// and the caller forces re-authentication.
func retryOnce(ctx context.Context, timeout time.Duration, op func(ctx context.Context) (*Tokens, error)) (*Tokens, error) {
	attempt := func() (*Tokens, error) {
		attemptCtx, cancel := context.WithTimeout(ctx, timeout)
		defer cancel()
		return op(attemptCtx)
	}

	tokens, err := backoff.Retry(ctx, attempt,
		backoff.WithBackOff(backoff.NewConstantBackOff(retryInterval)),
		backoff.WithMaxTries(2),
	)
	if err != nil {
		return nil, err
	}
	return tokens, nil
}
