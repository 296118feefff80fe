// SPDX-FileCopyrightText: Copyright 2025 onshape-part-manager contributors
// SPDX-License-Identifier: Apache-2.0

package authserver

import (
	"encoding/json"
	"net/http"
	"net/url"

	"github.com/cml1010101/onshape-part-manager/pkg/authserver/storage"
	"github.com/cml1010101/onshape-part-manager/pkg/logger"
)

// LoginHandler handles GET /login: it starts a sign-in against the upstream
// identity provider. A fresh state value is bound to the session so the
// callback can reject responses this server never asked for.
func (s *Server) LoginHandler(w http.ResponseWriter, r *http.Request) {
	state, err := storage.NewToken()
	if err != nil {
		logger.Errorw("failed to generate upstream state", "error", err)
		writeError(w, http.StatusInternalServerError, ErrorServerError)
		return
	}

	s.sessions.SetUpstreamState(w, r, state)
	http.Redirect(w, r, s.upstream.AuthorizationURL(state), http.StatusFound)
}

// CallbackHandler handles GET /callback: the upstream identity provider
// redirecting back after sign-in. On success the principal is bound to the
// session and any stashed authorization request resumes; on any failure the
// session is cleared and the user starts over at sign-in.
func (s *Server) CallbackHandler(w http.ResponseWriter, r *http.Request) {
	query := r.URL.Query()

	if errCode := query.Get("error"); errCode != "" {
		logger.Warnw("upstream sign-in returned an error", "error", errCode)
		s.restartLogin(w, r)
		return
	}

	expected, ok := s.sessions.ConsumeUpstreamState(r)
	if !ok || expected != query.Get("state") {
		logger.Warnw("upstream callback state mismatch")
		s.restartLogin(w, r)
		return
	}

	tokens, err := s.upstream.Exchange(r.Context(), query.Get("code"))
	if err != nil {
		logger.Errorw("upstream code exchange failed", "error", err)
		s.restartLogin(w, r)
		return
	}

	userInfo, err := s.upstream.Principal(r.Context(), tokens)
	if err != nil {
		logger.Errorw("failed to resolve upstream principal", "error", err)
		s.restartLogin(w, r)
		return
	}

	s.sessions.SetPrincipal(w, r, userInfo.Subject)
	s.sessions.SetUpstreamTokens(w, r, tokens)

	logger.Infow("upstream sign-in completed", "user_id", userInfo.Subject)

	if pending, ok := s.sessions.ConsumePending(r); ok {
		// Resume the stashed authorization request with its original
		// parameters, state included, exactly as the client sent them.
		resume := url.Values{}
		resume.Set("response_type", pending.ResponseType)
		resume.Set("client_id", pending.ClientID)
		resume.Set("redirect_uri", pending.RedirectURI)
		if pending.Scope != "" {
			resume.Set("scope", pending.Scope)
		}
		if pending.State != "" {
			resume.Set("state", pending.State)
		}
		http.Redirect(w, r, "/oauth/authorize?"+resume.Encode(), http.StatusFound)
		return
	}

	http.Redirect(w, r, "/", http.StatusFound)
}

// restartLogin drops the session and sends the user back through sign-in.
// Never redirects anywhere attacker-controlled.
func (s *Server) restartLogin(w http.ResponseWriter, r *http.Request) {
	s.sessions.Clear(w, r)
	http.Redirect(w, r, s.cfg.LoginPath, http.StatusFound)
}

// HomeHandler handles GET /. It requires a signed-in session and keeps the
// upstream tokens fresh: an expired upstream access token is refreshed on
// the spot, and a failed refresh forces a full re-login.
func (s *Server) HomeHandler(w http.ResponseWriter, r *http.Request) {
	principal, ok := s.sessions.Principal(r)
	if !ok {
		http.Redirect(w, r, s.cfg.LoginPath, http.StatusFound)
		return
	}

	if tokens, ok := s.sessions.UpstreamTokens(r); ok && tokens.IsExpired() {
		if tokens.RefreshToken == "" {
			logger.Warnw("upstream tokens expired with no refresh token", "user_id", principal)
			s.restartLogin(w, r)
			return
		}
		refreshed, err := s.upstream.Refresh(r.Context(), tokens.RefreshToken)
		if err != nil {
			logger.Warnw("upstream token refresh failed, forcing re-login",
				"user_id", principal,
				"error", err,
			)
			s.restartLogin(w, r)
			return
		}
		s.sessions.SetUpstreamTokens(w, r, refreshed)
		logger.Debugw("upstream tokens refreshed", "user_id", principal)
	}

	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(map[string]string{
		"user_id": principal,
	})
}
