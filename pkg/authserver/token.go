// SPDX-FileCopyrightText: Copyright 2025 onshape-part-manager contributors
// SPDX-License-Identifier: Apache-2.0

package authserver

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/cml1010101/onshape-part-manager/pkg/authserver/storage"
	"github.com/cml1010101/onshape-part-manager/pkg/logger"
)

// TokenResponse is the token endpoint's success body.
type TokenResponse struct {
	AccessToken  string `json:"access_token"`
	RefreshToken string `json:"refresh_token,omitempty"`
	TokenType    string `json:"token_type"`
	ExpiresIn    int64  `json:"expires_in"`
	Scope        string `json:"scope,omitempty"`
}

// TokenHandler handles POST /oauth/token for the authorization_code and
// refresh_token grants.
func (s *Server) TokenHandler(w http.ResponseWriter, r *http.Request) {
	if err := r.ParseForm(); err != nil {
		writeError(w, http.StatusBadRequest, ErrorInvalidRequest)
		return
	}

	client, ok := s.authenticateClient(r)
	if !ok {
		w.Header().Set("WWW-Authenticate", `Basic realm="oauth"`)
		writeError(w, http.StatusUnauthorized, ErrorInvalidClient)
		return
	}

	switch r.PostFormValue("grant_type") {
	case "authorization_code":
		s.exchangeAuthorizationCode(w, r, client)
	case "refresh_token":
		s.refreshAccessToken(w, r, client)
	default:
		writeError(w, http.StatusBadRequest, ErrorUnsupportedGrantType)
	}
}

// authenticateClient resolves and authenticates the requesting client.
// Credentials are accepted via HTTP Basic auth or form body parameters;
// Basic auth wins when both are present.
func (s *Server) authenticateClient(r *http.Request) (*Client, bool) {
	clientID, clientSecret, ok := r.BasicAuth()
	if !ok {
		clientID = r.PostFormValue("client_id")
		clientSecret = r.PostFormValue("client_secret")
	}

	client, found := s.clients.Lookup(clientID)
	if !found {
		logger.Warnw("token request for unknown client", "client_id", clientID)
		return nil, false
	}
	if !client.ValidSecret(clientSecret) {
		logger.Warnw("token request with bad client secret", "client_id", clientID)
		return nil, false
	}
	return client, true
}

// exchangeAuthorizationCode redeems a code for an access token and refresh
// token pair. The code is single use: it is deleted before tokens are minted,
// so a replayed code fails with invalid_grant no matter how the first
// exchange ended.
func (s *Server) exchangeAuthorizationCode(w http.ResponseWriter, r *http.Request, client *Client) {
	ctx := r.Context()

	code, err := s.store.GetAuthorizationCode(ctx, r.PostFormValue("code"))
	if err != nil {
		if errors.Is(err, storage.ErrNotFound) || errors.Is(err, storage.ErrExpired) {
			writeError(w, http.StatusBadRequest, ErrorInvalidGrant)
			return
		}
		logger.Errorw("failed to load authorization code", "error", err)
		writeError(w, http.StatusInternalServerError, ErrorServerError)
		return
	}

	// The code is bound to the client and redirect URI it was issued for.
	if code.ClientID != client.ID || code.RedirectURI != r.PostFormValue("redirect_uri") {
		logger.Warnw("authorization code binding mismatch",
			"code_client_id", code.ClientID,
			"request_client_id", client.ID,
		)
		writeError(w, http.StatusBadRequest, ErrorInvalidGrant)
		return
	}

	if err := s.store.DeleteAuthorizationCode(ctx, code.Code); err != nil {
		logger.Errorw("failed to consume authorization code", "error", err)
		writeError(w, http.StatusInternalServerError, ErrorServerError)
		return
	}

	access, err := s.mintAccessToken(ctx, code.UserID, client.ID, code.Scopes)
	if err != nil {
		logger.Errorw("failed to mint access token", "error", err)
		writeError(w, http.StatusInternalServerError, ErrorServerError)
		return
	}

	refresh, err := s.mintRefreshToken(ctx, code.UserID, client.ID, code.Scopes)
	if err != nil {
		logger.Errorw("failed to mint refresh token", "error", err)
		writeError(w, http.StatusInternalServerError, ErrorServerError)
		return
	}

	logger.Infow("authorization code exchanged",
		"client_id", client.ID,
		"user_id", code.UserID,
	)

	s.writeTokenResponse(w, &TokenResponse{
		AccessToken:  access.Token,
		RefreshToken: refresh.Token,
		TokenType:    "Bearer",
		ExpiresIn:    int64(s.cfg.AccessTokenTTL / time.Second),
		Scope:        strings.Join(code.Scopes, " "),
	})
}

// refreshAccessToken mints a new access token from a refresh token. By
// default the refresh token survives and may be reused; with rotation
// enabled the presented token is retired and a replacement is returned.
func (s *Server) refreshAccessToken(w http.ResponseWriter, r *http.Request, client *Client) {
	ctx := r.Context()

	refresh, err := s.store.GetRefreshToken(ctx, r.PostFormValue("refresh_token"))
	if err != nil {
		if errors.Is(err, storage.ErrNotFound) || errors.Is(err, storage.ErrExpired) {
			writeError(w, http.StatusBadRequest, ErrorInvalidGrant)
			return
		}
		logger.Errorw("failed to load refresh token", "error", err)
		writeError(w, http.StatusInternalServerError, ErrorServerError)
		return
	}

	if refresh.ClientID != client.ID {
		logger.Warnw("refresh token binding mismatch",
			"token_client_id", refresh.ClientID,
			"request_client_id", client.ID,
		)
		writeError(w, http.StatusBadRequest, ErrorInvalidGrant)
		return
	}

	access, err := s.mintAccessToken(ctx, refresh.UserID, client.ID, refresh.Scopes)
	if err != nil {
		logger.Errorw("failed to mint access token", "error", err)
		writeError(w, http.StatusInternalServerError, ErrorServerError)
		return
	}

	resp := &TokenResponse{
		AccessToken: access.Token,
		TokenType:   "Bearer",
		ExpiresIn:   int64(s.cfg.AccessTokenTTL / time.Second),
		Scope:       strings.Join(refresh.Scopes, " "),
	}

	if s.cfg.RotateRefreshTokens {
		replacement, err := s.mintRefreshToken(ctx, refresh.UserID, client.ID, refresh.Scopes)
		if err != nil {
			logger.Errorw("failed to rotate refresh token", "error", err)
			writeError(w, http.StatusInternalServerError, ErrorServerError)
			return
		}
		if err := s.store.DeleteRefreshToken(ctx, refresh.Token); err != nil {
			logger.Errorw("failed to retire refresh token", "error", err)
			writeError(w, http.StatusInternalServerError, ErrorServerError)
			return
		}
		resp.RefreshToken = replacement.Token
	}

	logger.Infow("access token refreshed",
		"client_id", client.ID,
		"user_id", refresh.UserID,
		"rotated", s.cfg.RotateRefreshTokens,
	)

	s.writeTokenResponse(w, resp)
}

func (s *Server) mintAccessToken(ctx context.Context, userID, clientID string, scopes []string) (*storage.AccessToken, error) {
	value, err := storage.NewToken()
	if err != nil {
		return nil, err
	}
	token := &storage.AccessToken{
		Token:     value,
		UserID:    userID,
		ClientID:  clientID,
		Scopes:    scopes,
		ExpiresAt: time.Now().Add(s.cfg.AccessTokenTTL),
	}
	if err := s.store.PutAccessToken(ctx, token); err != nil {
		return nil, err
	}
	return token, nil
}

func (s *Server) mintRefreshToken(ctx context.Context, userID, clientID string, scopes []string) (*storage.RefreshToken, error) {
	value, err := storage.NewToken()
	if err != nil {
		return nil, err
	}
	token := &storage.RefreshToken{
		Token:    value,
		UserID:   userID,
		ClientID: clientID,
		Scopes:   scopes,
	}
	if err := s.store.PutRefreshToken(ctx, token); err != nil {
		return nil, err
	}
	return token, nil
}

func (s *Server) writeTokenResponse(w http.ResponseWriter, resp *TokenResponse) {
	w.Header().Set("Content-Type", "application/json")
	w.Header().Set("Cache-Control", "no-store")
	if err := json.NewEncoder(w).Encode(resp); err != nil {
		logger.Errorw("failed to write token response", "error", err)
	}
}
