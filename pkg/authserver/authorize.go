// SPDX-FileCopyrightText: Copyright 2025 onshape-part-manager contributors
// SPDX-License-Identifier: Apache-2.0

package authserver

import (
	"net/http"
	"strings"
	"time"

	"github.com/cml1010101/onshape-part-manager/pkg/authserver/session"
	"github.com/cml1010101/onshape-part-manager/pkg/authserver/storage"
	"github.com/cml1010101/onshape-part-manager/pkg/logger"
)

// authorizeRequest is a validated /oauth/authorize request. Construction
// fails before any state is mutated.
type authorizeRequest struct {
	client       *Client
	responseType string
	redirectURI  string
	scope        string
	state        string
}

func (a *authorizeRequest) scopes() []string {
	return strings.Fields(a.scope)
}

// validateAuthorizeRequest checks client, redirect URI, and response type.
// Client and redirect URI failures are written directly and never redirect:
// an attacker-supplied redirect_uri must not receive the user agent.
// Returns nil after writing a response when validation fails.
func (s *Server) validateAuthorizeRequest(w http.ResponseWriter, r *http.Request, params map[string]string) *authorizeRequest {
	clientID := params["client_id"]
	redirectURI := params["redirect_uri"]

	client, ok := s.clients.Lookup(clientID)
	if !ok {
		logger.Warnw("authorize request for unknown client", "client_id", clientID)
		writeError(w, http.StatusBadRequest, ErrorInvalidClient)
		return nil
	}

	if !client.ValidRedirectURI(redirectURI) {
		logger.Warnw("authorize request with unregistered redirect URI",
			"client_id", clientID,
			"redirect_uri", redirectURI,
		)
		writeError(w, http.StatusBadRequest, ErrorInvalidRedirectURI)
		return nil
	}

	req := &authorizeRequest{
		client:       client,
		responseType: params["response_type"],
		redirectURI:  redirectURI,
		scope:        params["scope"],
		state:        params["state"],
	}

	// The redirect URI is trusted at this point, so protocol-level errors
	// go back to the client per RFC 6749 section 4.1.2.1.
	if req.responseType != "code" {
		redirectWithError(w, r, redirectURI, ErrorUnsupportedResponseType, req.state)
		return nil
	}

	return req
}

// AuthorizeHandler handles GET /oauth/authorize. Depending on session state
// it stashes the request and redirects through sign-in, or renders consent.
func (s *Server) AuthorizeHandler(w http.ResponseWriter, r *http.Request) {
	query := r.URL.Query()
	req := s.validateAuthorizeRequest(w, r, map[string]string{
		"client_id":     query.Get("client_id"),
		"redirect_uri":  query.Get("redirect_uri"),
		"response_type": query.Get("response_type"),
		"scope":         query.Get("scope"),
		"state":         query.Get("state"),
	})
	if req == nil {
		return
	}

	if _, ok := s.sessions.Principal(r); !ok {
		// No authenticated principal: stash the request against the session
		// and send the user through the upstream sign-in. The stash is
		// consumed exactly once when the callback resumes the flow.
		s.sessions.StashPending(w, r, &session.PendingAuthorization{
			ResponseType: req.responseType,
			ClientID:     req.client.ID,
			RedirectURI:  req.redirectURI,
			Scope:        req.scope,
			State:        req.state,
		})
		http.Redirect(w, r, s.cfg.LoginPath, http.StatusFound)
		return
	}

	s.renderConsent(w, req)
}

func (s *Server) renderConsent(w http.ResponseWriter, req *authorizeRequest) {
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	err := s.consent.Execute(w, consentData{
		ClientID:     req.client.ID,
		Scopes:       req.scopes(),
		ResponseType: req.responseType,
		RedirectURI:  req.redirectURI,
		Scope:        req.scope,
		State:        req.state,
	})
	if err != nil {
		logger.Errorw("failed to render consent page", "error", err)
	}
}

// ConsentDecisionHandler handles POST /oauth/authorize: the principal's
// explicit approve or deny. Approval mints exactly one authorization code;
// no other global state is mutated.
func (s *Server) ConsentDecisionHandler(w http.ResponseWriter, r *http.Request) {
	if err := r.ParseForm(); err != nil {
		writeError(w, http.StatusBadRequest, ErrorInvalidRequest)
		return
	}

	req := s.validateAuthorizeRequest(w, r, map[string]string{
		"client_id":     r.PostFormValue("client_id"),
		"redirect_uri":  r.PostFormValue("redirect_uri"),
		"response_type": r.PostFormValue("response_type"),
		"scope":         r.PostFormValue("scope"),
		"state":         r.PostFormValue("state"),
	})
	if req == nil {
		return
	}

	principal, ok := s.sessions.Principal(r)
	if !ok {
		// The consent form only exists for signed-in sessions; landing here
		// without one means the session expired mid-consent.
		http.Redirect(w, r, s.cfg.LoginPath, http.StatusFound)
		return
	}

	switch r.PostFormValue("action") {
	case "approve":
		s.approveConsent(w, r, req, principal)
	case "deny":
		logger.Infow("consent denied",
			"client_id", req.client.ID,
			"user_id", principal,
		)
		redirectWithError(w, r, req.redirectURI, ErrorAccessDenied, req.state)
	default:
		writeError(w, http.StatusBadRequest, ErrorInvalidRequest)
	}
}

func (s *Server) approveConsent(w http.ResponseWriter, r *http.Request, req *authorizeRequest, principal string) {
	code, err := storage.NewToken()
	if err != nil {
		logger.Errorw("failed to generate authorization code", "error", err)
		writeError(w, http.StatusInternalServerError, ErrorServerError)
		return
	}

	record := &storage.AuthorizationCode{
		Code:        code,
		UserID:      principal,
		ClientID:    req.client.ID,
		RedirectURI: req.redirectURI,
		Scopes:      req.scopes(),
		ExpiresAt:   time.Now().Add(s.cfg.AuthCodeTTL),
	}
	if err := s.store.PutAuthorizationCode(r.Context(), record); err != nil {
		// A collision means the random source is broken; never overwrite.
		logger.Errorw("failed to store authorization code", "error", err)
		writeError(w, http.StatusInternalServerError, ErrorServerError)
		return
	}

	logger.Infow("consent approved",
		"client_id", req.client.ID,
		"user_id", principal,
		"scopes", req.scope,
	)

	redirectWithCode(w, r, req.redirectURI, code, req.state)
}
