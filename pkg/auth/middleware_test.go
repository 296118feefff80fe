// SPDX-FileCopyrightText: Copyright 2025 onshape-part-manager contributors
// SPDX-License-Identifier: Apache-2.0

package auth

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/cml1010101/onshape-part-manager/pkg/authserver/storage"
)

func newTestValidator(t *testing.T) (*BearerValidator, *storage.MemoryStorage) {
	t.Helper()
	store := storage.NewMemoryStorage(storage.WithCleanupInterval(0))
	t.Cleanup(func() { _ = store.Close() })
	return NewBearerValidator(store), store
}

func protectedEcho() http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		identity, ok := IdentityFromContext(r.Context())
		if !ok {
			http.Error(w, "no identity", http.StatusInternalServerError)
			return
		}
		_ = json.NewEncoder(w).Encode(identity)
	})
}

func TestBearerValidatorMissingToken(t *testing.T) {
	t.Parallel()

	v, _ := newTestValidator(t)
	handler := v.Middleware(protectedEcho())

	for _, header := range []string{"", "Basic dXNlcjpwYXNz", "Bearer", "Bearer   "} {
		req := httptest.NewRequest(http.MethodGet, "/api/protected", nil)
		if header != "" {
			req.Header.Set("Authorization", header)
		}
		rec := httptest.NewRecorder()
		handler.ServeHTTP(rec, req)

		assert.Equal(t, http.StatusUnauthorized, rec.Code)
		assert.JSONEq(t, `{"error":"missing_token"}`, rec.Body.String())
	}
}

func TestBearerValidatorInvalidToken(t *testing.T) {
	t.Parallel()

	v, _ := newTestValidator(t)
	handler := v.Middleware(protectedEcho())

	req := httptest.NewRequest(http.MethodGet, "/api/protected", nil)
	req.Header.Set("Authorization", "Bearer not-a-real-token")
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusUnauthorized, rec.Code)
	assert.JSONEq(t, `{"error":"invalid_token"}`, rec.Body.String())
}

func TestBearerValidatorExpiredTokenEvicted(t *testing.T) {
	t.Parallel()

	v, store := newTestValidator(t)
	handler := v.Middleware(protectedEcho())
	ctx := context.Background()

	require.NoError(t, store.PutAccessToken(ctx, &storage.AccessToken{
		Token:     "expired-token",
		UserID:    "user-1",
		ClientID:  "onshape-client-id",
		Scopes:    []string{"read"},
		ExpiresAt: time.Now().Add(-time.Minute),
	}))

	req := httptest.NewRequest(http.MethodGet, "/api/protected", nil)
	req.Header.Set("Authorization", "Bearer expired-token")
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusUnauthorized, rec.Code)
	assert.JSONEq(t, `{"error":"token_expired"}`, rec.Body.String())

	// The expired lookup evicted the token from the store.
	_, err := store.GetAccessToken(ctx, "expired-token")
	assert.ErrorIs(t, err, storage.ErrNotFound)
}

func TestBearerValidatorSuccessAttachesIdentity(t *testing.T) {
	t.Parallel()

	v, store := newTestValidator(t)
	handler := v.Middleware(protectedEcho())

	require.NoError(t, store.PutAccessToken(context.Background(), &storage.AccessToken{
		Token:     "good-token",
		UserID:    "user-1",
		ClientID:  "onshape-client-id",
		Scopes:    []string{"read", "write"},
		ExpiresAt: time.Now().Add(time.Hour),
	}))

	req := httptest.NewRequest(http.MethodGet, "/api/protected", nil)
	req.Header.Set("Authorization", "bearer good-token") // lowercase scheme is valid
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)

	var identity Identity
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &identity))
	assert.Equal(t, "user-1", identity.UserID)
	assert.Equal(t, "onshape-client-id", identity.ClientID)
	assert.True(t, identity.HasScope("read"))
	assert.True(t, identity.HasScope("write"))
	assert.False(t, identity.HasScope("admin"))
}
