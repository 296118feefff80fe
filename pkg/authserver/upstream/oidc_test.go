// SPDX-FileCopyrightText: Copyright 2025 onshape-part-manager contributors
// SPDX-License-Identifier: Apache-2.0

package upstream

import (
	"context"
	"net/http"
	"net/url"
	"strings"
	"testing"

	"github.com/oauth2-proxy/mockoidc"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newMockIDP(t *testing.T) *mockoidc.MockOIDC {
	t.Helper()
	m, err := mockoidc.Run()
	require.NoError(t, err)
	t.Cleanup(func() { _ = m.Shutdown() })
	return m
}

func newOIDCTestProvider(t *testing.T, m *mockoidc.MockOIDC) *OIDCProvider {
	t.Helper()
	p, err := NewOIDCProvider(context.Background(), &Config{
		Type:         ProviderTypeOIDC,
		Issuer:       m.Issuer(),
		ClientID:     m.ClientID,
		ClientSecret: m.ClientSecret,
		RedirectURL:  "https://partman.example.com/callback",
		Scopes:       []string{"profile"},
	})
	require.NoError(t, err)
	return p
}

func TestNewOIDCProviderDiscovery(t *testing.T) {
	t.Parallel()
	m := newMockIDP(t)
	p := newOIDCTestProvider(t, m)

	assert.Equal(t, ProviderTypeOIDC, p.Type())

	u, err := url.Parse(p.AuthorizationURL("state-1"))
	require.NoError(t, err)
	assert.True(t, strings.HasPrefix(u.String(), m.Issuer()))

	// The openid scope is always requested, prepended when missing.
	scope := u.Query().Get("scope")
	assert.Equal(t, "openid profile", scope)
}

func TestNewOIDCProviderBadIssuer(t *testing.T) {
	t.Parallel()

	_, err := NewOIDCProvider(context.Background(), &Config{
		Type:        ProviderTypeOIDC,
		Issuer:      "http://127.0.0.1:1/nowhere",
		ClientID:    "c",
		RedirectURL: "https://partman.example.com/callback",
	})
	require.Error(t, err)
}

// authorizeAgainstMock drives the mock IdP's authorize endpoint and returns
// the authorization code from the redirect.
func authorizeAgainstMock(t *testing.T, p *OIDCProvider, state string) string {
	t.Helper()

	client := &http.Client{
		CheckRedirect: func(*http.Request, []*http.Request) error {
			return http.ErrUseLastResponse
		},
	}
	resp, err := client.Get(p.AuthorizationURL(state))
	require.NoError(t, err)
	defer resp.Body.Close()
	require.Equal(t, http.StatusFound, resp.StatusCode)

	loc, err := url.Parse(resp.Header.Get("Location"))
	require.NoError(t, err)
	require.Equal(t, state, loc.Query().Get("state"))

	code := loc.Query().Get("code")
	require.NotEmpty(t, code)
	return code
}

func TestOIDCExchangeAndPrincipal(t *testing.T) {
	t.Parallel()
	m := newMockIDP(t)
	p := newOIDCTestProvider(t, m)

	m.QueueUser(&mockoidc.MockUser{
		Subject: "user-172",
		Email:   "build@example.com",
	})
	code := authorizeAgainstMock(t, p, "state-1")

	tokens, err := p.Exchange(context.Background(), code)
	require.NoError(t, err)
	require.NotEmpty(t, tokens.AccessToken)
	require.NotEmpty(t, tokens.IDToken)
	assert.False(t, tokens.IsExpired())

	info, err := p.Principal(context.Background(), tokens)
	require.NoError(t, err)
	assert.Equal(t, "user-172", info.Subject)
	assert.Equal(t, "build@example.com", info.Email)
}

func TestOIDCExchangeBadCode(t *testing.T) {
	t.Parallel()
	m := newMockIDP(t)
	p := newOIDCTestProvider(t, m)

	_, err := p.Exchange(context.Background(), "never-issued")
	require.Error(t, err)
}

func TestOIDCPrincipalRejectsForgedIDToken(t *testing.T) {
	t.Parallel()
	m := newMockIDP(t)
	p := newOIDCTestProvider(t, m)

	_, err := p.Principal(context.Background(), &Tokens{
		AccessToken: "at-1",
		IDToken:     "eyJhbGciOiJub25lIn0.e30.",
	})
	require.Error(t, err)
}

func TestOIDCPrincipalRequiresTokens(t *testing.T) {
	t.Parallel()
	m := newMockIDP(t)
	p := newOIDCTestProvider(t, m)

	_, err := p.Principal(context.Background(), nil)
	require.Error(t, err)
}
