// SPDX-FileCopyrightText: Copyright 2025 onshape-part-manager contributors
// SPDX-License-Identifier: Apache-2.0

// Package session tracks browser sessions for the authorization server:
// which principal is signed in, the upstream IdP tokens backing that sign-in,
// and any authorization request stashed while the principal completes login.
package session

import (
	"net/http"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/cml1010101/onshape-part-manager/pkg/authserver/upstream"
)

const (
	// DefaultCookieName is the session cookie name.
	DefaultCookieName = "partman_session"

	// DefaultTTL is how long a session lives without being recreated.
	DefaultTTL = 24 * time.Hour
)

// PendingAuthorization holds the original /oauth/authorize query parameters
// stashed while the principal completes sign-in. Consumed exactly once.
type PendingAuthorization struct {
	ResponseType string
	ClientID     string
	RedirectURI  string
	Scope        string
	State        string
	CreatedAt    time.Time
}

// session is the server-side state bound to one cookie.
type session struct {
	id        string
	principal string
	upstream  *upstream.Tokens
	// upstreamState correlates the upstream IdP callback; single use.
	upstreamState string
	pending       *PendingAuthorization
	expiresAt     time.Time
}

// Manager issues session cookies and keeps the per-session state. All state
// access goes through the manager so concurrent requests on the same session
// never see torn reads.
type Manager struct {
	mu       sync.Mutex
	sessions map[string]*session

	cookieName string
	ttl        time.Duration
	secure     bool
}

// Option configures a Manager.
type Option func(*Manager)

// WithTTL sets the session lifetime.
func WithTTL(ttl time.Duration) Option {
	return func(m *Manager) {
		m.ttl = ttl
	}
}

// WithSecureCookies marks session cookies Secure (HTTPS-only deployments).
func WithSecureCookies(secure bool) Option {
	return func(m *Manager) {
		m.secure = secure
	}
}

// NewManager creates a session manager.
func NewManager(opts ...Option) *Manager {
	m := &Manager{
		sessions:   make(map[string]*session),
		cookieName: DefaultCookieName,
		ttl:        DefaultTTL,
	}
	for _, opt := range opts {
		opt(m)
	}
	return m
}

// Ensure returns the request's session, creating one and setting the cookie
// if the request has none or the session has expired.
func (m *Manager) Ensure(w http.ResponseWriter, r *http.Request) string {
	m.mu.Lock()
	defer m.mu.Unlock()

	if s := m.lookupLocked(r); s != nil {
		return s.id
	}

	s := &session{
		id:        uuid.NewString(),
		expiresAt: time.Now().Add(m.ttl),
	}
	m.sessions[s.id] = s
	http.SetCookie(w, m.buildCookie(s.id, s.expiresAt))
	return s.id
}

// lookupLocked resolves the request's session, evicting it when expired.
// Caller must hold m.mu.
func (m *Manager) lookupLocked(r *http.Request) *session {
	cookie, err := r.Cookie(m.cookieName)
	if err != nil || cookie.Value == "" {
		return nil
	}
	s, ok := m.sessions[cookie.Value]
	if !ok {
		return nil
	}
	if time.Now().After(s.expiresAt) {
		delete(m.sessions, s.id)
		return nil
	}
	return s
}

func (m *Manager) buildCookie(value string, expires time.Time) *http.Cookie {
	return &http.Cookie{
		Name:     m.cookieName,
		Value:    value,
		Path:     "/",
		Expires:  expires,
		HttpOnly: true,
		Secure:   m.secure,
		SameSite: http.SameSiteLaxMode,
	}
}

// Clear drops the request's session and expires the cookie. Used to force
// re-authentication after an upstream refresh failure.
func (m *Manager) Clear(w http.ResponseWriter, r *http.Request) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if cookie, err := r.Cookie(m.cookieName); err == nil {
		delete(m.sessions, cookie.Value)
	}
	expired := m.buildCookie("", time.Unix(0, 0))
	expired.MaxAge = -1
	http.SetCookie(w, expired)
}

// Principal returns the authenticated principal bound to the request's
// session, if any.
func (m *Manager) Principal(r *http.Request) (string, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()

	s := m.lookupLocked(r)
	if s == nil || s.principal == "" {
		return "", false
	}
	return s.principal, true
}

// SetPrincipal binds an authenticated principal to the request's session,
// creating the session if needed.
func (m *Manager) SetPrincipal(w http.ResponseWriter, r *http.Request, userID string) {
	id := m.Ensure(w, r)

	m.mu.Lock()
	defer m.mu.Unlock()
	if s, ok := m.sessions[id]; ok {
		s.principal = userID
	}
}

// StashPending saves an authorization request against the session while the
// principal completes sign-in. A later stash replaces an earlier one.
func (m *Manager) StashPending(w http.ResponseWriter, r *http.Request, pending *PendingAuthorization) {
	id := m.Ensure(w, r)

	m.mu.Lock()
	defer m.mu.Unlock()
	if s, ok := m.sessions[id]; ok {
		pending.CreatedAt = time.Now()
		s.pending = pending
	}
}

// ConsumePending removes and returns the stashed authorization request.
// The stash is single use: a second consume returns nothing.
func (m *Manager) ConsumePending(r *http.Request) (*PendingAuthorization, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()

	s := m.lookupLocked(r)
	if s == nil || s.pending == nil {
		return nil, false
	}
	pending := s.pending
	s.pending = nil
	return pending, true
}

// SetUpstreamState records the state parameter sent to the upstream IdP.
func (m *Manager) SetUpstreamState(w http.ResponseWriter, r *http.Request, state string) {
	id := m.Ensure(w, r)

	m.mu.Lock()
	defer m.mu.Unlock()
	if s, ok := m.sessions[id]; ok {
		s.upstreamState = state
	}
}

// ConsumeUpstreamState removes and returns the recorded upstream state.
func (m *Manager) ConsumeUpstreamState(r *http.Request) (string, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()

	s := m.lookupLocked(r)
	if s == nil || s.upstreamState == "" {
		return "", false
	}
	state := s.upstreamState
	s.upstreamState = ""
	return state, true
}

// SetUpstreamTokens stores the upstream IdP tokens backing the session.
func (m *Manager) SetUpstreamTokens(w http.ResponseWriter, r *http.Request, tokens *upstream.Tokens) {
	id := m.Ensure(w, r)

	m.mu.Lock()
	defer m.mu.Unlock()
	if s, ok := m.sessions[id]; ok {
		s.upstream = tokens
	}
}

// UpstreamTokens returns the upstream IdP tokens for the session, if any.
func (m *Manager) UpstreamTokens(r *http.Request) (*upstream.Tokens, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()

	s := m.lookupLocked(r)
	if s == nil || s.upstream == nil {
		return nil, false
	}
	return s.upstream, true
}
