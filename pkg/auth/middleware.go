// SPDX-FileCopyrightText: Copyright 2025 onshape-part-manager contributors
// SPDX-License-Identifier: Apache-2.0

package auth

import (
	"encoding/json"
	"errors"
	"net/http"
	"strings"

	"github.com/cml1010101/onshape-part-manager/pkg/authserver/storage"
	"github.com/cml1010101/onshape-part-manager/pkg/logger"
)

// Error codes surfaced by the bearer validator.
const (
	ErrorMissingToken = "missing_token"
	ErrorInvalidToken = "invalid_token"
	ErrorTokenExpired = "token_expired"
)

// BearerValidator validates Authorization: Bearer headers against the token
// store and attaches the resolved Identity to the request context.
type BearerValidator struct {
	store storage.Store
}

// NewBearerValidator creates a validator backed by the given token store.
func NewBearerValidator(store storage.Store) *BearerValidator {
	return &BearerValidator{store: store}
}

// Middleware wraps a handler with bearer-token validation. Requests without
// a valid token are rejected with 401 and a machine-readable error code;
// expired tokens are evicted from the store as a side effect of the lookup.
func (v *BearerValidator) Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		raw, ok := extractBearerToken(r)
		if !ok {
			writeAuthError(w, ErrorMissingToken)
			return
		}

		token, err := v.store.GetAccessToken(r.Context(), raw)
		if err != nil {
			switch {
			case errors.Is(err, storage.ErrExpired):
				writeAuthError(w, ErrorTokenExpired)
			case errors.Is(err, storage.ErrNotFound):
				writeAuthError(w, ErrorInvalidToken)
			default:
				logger.Errorw("token lookup failed", "error", err)
				http.Error(w, http.StatusText(http.StatusInternalServerError), http.StatusInternalServerError)
			}
			return
		}

		identity := &Identity{
			UserID:   token.UserID,
			ClientID: token.ClientID,
			Scopes:   token.Scopes,
		}

		next.ServeHTTP(w, r.WithContext(WithIdentity(r.Context(), identity)))
	})
}

// extractBearerToken pulls the token out of the Authorization header.
// The Bearer scheme comparison is case-insensitive per RFC 6750.
func extractBearerToken(r *http.Request) (string, bool) {
	header := r.Header.Get("Authorization")
	if header == "" {
		return "", false
	}

	scheme, token, found := strings.Cut(header, " ")
	if !found || !strings.EqualFold(scheme, "Bearer") {
		return "", false
	}

	token = strings.TrimSpace(token)
	return token, token != ""
}

func writeAuthError(w http.ResponseWriter, code string) {
	w.Header().Set("Content-Type", "application/json")
	w.Header().Set("WWW-Authenticate", `Bearer error="`+code+`"`)
	w.WriteHeader(http.StatusUnauthorized)
	_ = json.NewEncoder(w).Encode(map[string]string{"error": code})
}
