// SPDX-FileCopyrightText: Copyright 2025 onshape-part-manager contributors
// SPDX-License-Identifier: Apache-2.0

// Package upstream handles communication with the external identity provider
// the part manager signs its users in against (Onshape in the original
// deployment). It implements the client side of the authorization-code flow:
// building the authorize redirect, exchanging the callback code, and
// refreshing the external tokens backing a session.
package upstream

import (
	"context"
	"errors"
	"fmt"
	"time"
)

// tokenExpirationBuffer is the time buffer before actual expiration to
// consider a token expired. This accounts for clock skew and network latency.
const tokenExpirationBuffer = 30 * time.Second

// DefaultRequestTimeout bounds every token exchange and refresh call.
const DefaultRequestTimeout = 10 * time.Second

// ProviderType identifies the type of upstream Identity Provider.
type ProviderType string

const (
	// ProviderTypeOIDC is for OpenID Connect providers that support discovery.
	ProviderTypeOIDC ProviderType = "oidc"
	// ProviderTypeOAuth2 is for pure OAuth 2.0 providers with explicit endpoints.
	ProviderTypeOAuth2 ProviderType = "oauth2"
)

// Tokens represents the tokens obtained from the upstream Identity Provider.
type Tokens struct {
	// AccessToken is the access token from the upstream IdP.
	AccessToken string

	// RefreshToken is the refresh token from the upstream IdP (if provided).
	RefreshToken string

	// IDToken is the ID token from the upstream IdP (for OIDC).
	IDToken string

	// ExpiresAt is when the access token expires.
	ExpiresAt time.Time
}

// IsExpired returns true if the access token has expired or will expire
// within the buffer period. Returns true for nil receivers.
func (t *Tokens) IsExpired() bool {
	if t == nil {
		return true
	}
	return time.Now().Add(tokenExpirationBuffer).After(t.ExpiresAt)
}

// UserInfo is the principal identity resolved from the upstream IdP.
type UserInfo struct {
	// Subject is the unique identifier for the user.
	Subject string `json:"sub"`

	// Email is the user's email address.
	Email string `json:"email,omitempty"`

	// Name is the user's display name.
	Name string `json:"name,omitempty"`
}

// Provider is the client side of the upstream authorization-code flow.
// It is the sole source of "authenticated principal" for the consent flow.
type Provider interface {
	// Type returns the provider type.
	Type() ProviderType

	// AuthorizationURL builds the URL to redirect the user to the upstream
	// IdP, carrying state to correlate the callback.
	AuthorizationURL(state string) string

	// Exchange exchanges an authorization code for tokens with the upstream
	// IdP. The call is bounded by the configured request timeout and retried
	// at most once.
	Exchange(ctx context.Context, code string) (*Tokens, error)

	// Refresh obtains a fresh access token from the upstream IdP. Bounded
	// timeout, retried at most once; callers recover from failure by forcing
	// re-authentication, never by retrying further.
	Refresh(ctx context.Context, refreshToken string) (*Tokens, error)

	// Principal resolves the authenticated user behind the tokens.
	Principal(ctx context.Context, tokens *Tokens) (*UserInfo, error)
}

// Config holds upstream provider configuration.
type Config struct {
	// Type selects the provider implementation.
	Type ProviderType

	// Issuer is the OIDC issuer URL. Required for ProviderTypeOIDC.
	Issuer string

	// AuthorizeURL and TokenURL are the explicit endpoints for
	// ProviderTypeOAuth2 (no discovery).
	AuthorizeURL string
	TokenURL     string

	// UserInfoURL resolves the principal for ProviderTypeOAuth2 providers.
	UserInfoURL string

	// ClientID and ClientSecret are our registration with the upstream IdP.
	ClientID     string
	ClientSecret string

	// RedirectURL is our callback endpoint registered with the upstream IdP.
	RedirectURL string

	// Scopes requested from the upstream IdP.
	Scopes []string

	// RequestTimeout bounds token exchange and refresh calls.
	// Defaults to DefaultRequestTimeout.
	RequestTimeout time.Duration
}

// Validate checks that the configuration is complete for its provider type.
func (c *Config) Validate() error {
	if c.ClientID == "" {
		return errors.New("client ID is required")
	}
	if c.RedirectURL == "" {
		return errors.New("redirect URL is required")
	}

	switch c.Type {
	case ProviderTypeOIDC:
		if c.Issuer == "" {
			return errors.New("issuer is required for OIDC providers")
		}
	case ProviderTypeOAuth2:
		if c.AuthorizeURL == "" || c.TokenURL == "" {
			return errors.New("authorize and token endpoints are required for OAuth2 providers")
		}
	default:
		return fmt.Errorf("unknown provider type: %q (must be %q or %q)",
			c.Type, ProviderTypeOIDC, ProviderTypeOAuth2)
	}
	return nil
}

func (c *Config) requestTimeout() time.Duration {
	if c.RequestTimeout > 0 {
		return c.RequestTimeout
	}
	return DefaultRequestTimeout
}

// NewProvider creates the provider matching the config type.
func NewProvider(ctx context.Context, cfg *Config) (Provider, error) {
	if cfg == nil {
		return nil, errors.New("config is required")
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid upstream config: %w", err)
	}

	switch cfg.Type {
	case ProviderTypeOIDC:
		return NewOIDCProvider(ctx, cfg)
	case ProviderTypeOAuth2:
		return NewOAuth2Provider(cfg)
	default:
		return nil, fmt.Errorf("unsupported upstream type: %s", cfg.Type)
	}
}
