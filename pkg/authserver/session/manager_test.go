// SPDX-FileCopyrightText: Copyright 2025 onshape-part-manager contributors
// SPDX-License-Identifier: Apache-2.0

package session

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/cml1010101/onshape-part-manager/pkg/authserver/upstream"
)

// request returns a request carrying the session cookie from rec, if any.
func request(rec *httptest.ResponseRecorder) *http.Request {
	req := httptest.NewRequest(http.MethodGet, "/", nil)
	for _, c := range rec.Result().Cookies() {
		if c.MaxAge >= 0 && c.Value != "" {
			req.AddCookie(c)
		}
	}
	return req
}

func TestEnsureCreatesSessionOnce(t *testing.T) {
	t.Parallel()
	m := NewManager()

	rec := httptest.NewRecorder()
	id := m.Ensure(rec, httptest.NewRequest(http.MethodGet, "/", nil))
	require.NotEmpty(t, id)

	cookies := rec.Result().Cookies()
	require.Len(t, cookies, 1)
	assert.Equal(t, DefaultCookieName, cookies[0].Name)
	assert.Equal(t, id, cookies[0].Value)
	assert.True(t, cookies[0].HttpOnly)

	// A request with the cookie resolves to the same session, no new cookie.
	rec2 := httptest.NewRecorder()
	id2 := m.Ensure(rec2, request(rec))
	assert.Equal(t, id, id2)
	assert.Empty(t, rec2.Result().Cookies())
}

func TestPrincipalRoundTrip(t *testing.T) {
	t.Parallel()
	m := NewManager()

	rec := httptest.NewRecorder()
	m.SetPrincipal(rec, httptest.NewRequest(http.MethodGet, "/", nil), "user-1")

	principal, ok := m.Principal(request(rec))
	require.True(t, ok)
	assert.Equal(t, "user-1", principal)
}

func TestPrincipalAbsentWithoutSignIn(t *testing.T) {
	t.Parallel()
	m := NewManager()

	rec := httptest.NewRecorder()
	m.Ensure(rec, httptest.NewRequest(http.MethodGet, "/", nil))

	_, ok := m.Principal(request(rec))
	assert.False(t, ok)
}

func TestSessionExpiry(t *testing.T) {
	t.Parallel()
	m := NewManager(WithTTL(-time.Second))

	rec := httptest.NewRecorder()
	m.SetPrincipal(rec, httptest.NewRequest(http.MethodGet, "/", nil), "user-1")

	_, ok := m.Principal(request(rec))
	assert.False(t, ok)
}

func TestClearDropsSessionAndExpiresCookie(t *testing.T) {
	t.Parallel()
	m := NewManager()

	rec := httptest.NewRecorder()
	m.SetPrincipal(rec, httptest.NewRequest(http.MethodGet, "/", nil), "user-1")

	clearRec := httptest.NewRecorder()
	m.Clear(clearRec, request(rec))

	cookies := clearRec.Result().Cookies()
	require.Len(t, cookies, 1)
	assert.Negative(t, cookies[0].MaxAge)

	_, ok := m.Principal(request(rec))
	assert.False(t, ok)
}

func TestPendingIsSingleUse(t *testing.T) {
	t.Parallel()
	m := NewManager()

	rec := httptest.NewRecorder()
	m.StashPending(rec, httptest.NewRequest(http.MethodGet, "/", nil), &PendingAuthorization{
		ResponseType: "code",
		ClientID:     "client-1",
		RedirectURI:  "https://client.example.com/cb",
		Scope:        "read",
		State:        "xyz",
	})

	pending, ok := m.ConsumePending(request(rec))
	require.True(t, ok)
	assert.Equal(t, "client-1", pending.ClientID)
	assert.Equal(t, "xyz", pending.State)
	assert.False(t, pending.CreatedAt.IsZero())

	_, ok = m.ConsumePending(request(rec))
	assert.False(t, ok)
}

func TestStashPendingReplacesEarlier(t *testing.T) {
	t.Parallel()
	m := NewManager()

	rec := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/", nil)
	m.StashPending(rec, req, &PendingAuthorization{ClientID: "first"})
	m.StashPending(rec, request(rec), &PendingAuthorization{ClientID: "second"})

	pending, ok := m.ConsumePending(request(rec))
	require.True(t, ok)
	assert.Equal(t, "second", pending.ClientID)
}

func TestUpstreamStateIsSingleUse(t *testing.T) {
	t.Parallel()
	m := NewManager()

	rec := httptest.NewRecorder()
	m.SetUpstreamState(rec, httptest.NewRequest(http.MethodGet, "/", nil), "state-1")

	state, ok := m.ConsumeUpstreamState(request(rec))
	require.True(t, ok)
	assert.Equal(t, "state-1", state)

	_, ok = m.ConsumeUpstreamState(request(rec))
	assert.False(t, ok)
}

func TestUpstreamTokensRoundTrip(t *testing.T) {
	t.Parallel()
	m := NewManager()

	rec := httptest.NewRecorder()
	tokens := &upstream.Tokens{
		AccessToken:  "access",
		RefreshToken: "refresh",
		ExpiresAt:    time.Now().Add(time.Hour),
	}
	m.SetUpstreamTokens(rec, httptest.NewRequest(http.MethodGet, "/", nil), tokens)

	got, ok := m.UpstreamTokens(request(rec))
	require.True(t, ok)
	assert.Equal(t, "access", got.AccessToken)
	assert.Equal(t, "refresh", got.RefreshToken)
}

func TestSecureCookieOption(t *testing.T) {
	t.Parallel()
	m := NewManager(WithSecureCookies(true))

	rec := httptest.NewRecorder()
	m.Ensure(rec, httptest.NewRequest(http.MethodGet, "/", nil))

	cookies := rec.Result().Cookies()
	require.Len(t, cookies, 1)
	assert.True(t, cookies[0].Secure)
}
