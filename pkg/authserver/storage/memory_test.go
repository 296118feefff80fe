// SPDX-FileCopyrightText: Copyright 2025 onshape-part-manager contributors
// SPDX-License-Identifier: Apache-2.0

package storage

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestMemoryStorage(t *testing.T) *MemoryStorage {
	t.Helper()
	s := NewMemoryStorage(WithCleanupInterval(0))
	t.Cleanup(func() { _ = s.Close() })
	return s
}

// runStoreContractTests exercises the behavior every Store implementation
// must provide. Both backends run the same suite.
func runStoreContractTests(t *testing.T, s Store) {
	t.Helper()
	ctx := context.Background()

	t.Run("authorization code round trip", func(t *testing.T) {
		code := &AuthorizationCode{
			Code:        mustToken(t),
			UserID:      "user-1",
			ClientID:    "onshape-client-id",
			RedirectURI: "https://cad.onshape.com/oauth/callback",
			Scopes:      []string{"read"},
			ExpiresAt:   time.Now().Add(time.Minute),
		}
		require.NoError(t, s.PutAuthorizationCode(ctx, code))

		got, err := s.GetAuthorizationCode(ctx, code.Code)
		require.NoError(t, err)
		assert.Equal(t, code.ClientID, got.ClientID)
		assert.Equal(t, code.RedirectURI, got.RedirectURI)
		assert.Equal(t, []string{"read"}, got.Scopes)

		require.NoError(t, s.DeleteAuthorizationCode(ctx, code.Code))
		_, err = s.GetAuthorizationCode(ctx, code.Code)
		assert.ErrorIs(t, err, ErrNotFound)
	})

	t.Run("expired code behaves as absent and is evicted", func(t *testing.T) {
		code := &AuthorizationCode{
			Code:      mustToken(t),
			UserID:    "user-1",
			ClientID:  "onshape-client-id",
			ExpiresAt: time.Now().Add(-time.Second),
		}
		require.NoError(t, s.PutAuthorizationCode(ctx, code))

		_, err := s.GetAuthorizationCode(ctx, code.Code)
		assert.ErrorIs(t, err, ErrExpired)

		// The expired read removed the record.
		_, err = s.GetAuthorizationCode(ctx, code.Code)
		assert.ErrorIs(t, err, ErrNotFound)
	})

	t.Run("code collision is a put failure", func(t *testing.T) {
		code := &AuthorizationCode{
			Code:      mustToken(t),
			ExpiresAt: time.Now().Add(time.Minute),
		}
		require.NoError(t, s.PutAuthorizationCode(ctx, code))
		assert.ErrorIs(t, s.PutAuthorizationCode(ctx, code), ErrKeyCollision)
	})

	t.Run("access token round trip and expiry", func(t *testing.T) {
		token := &AccessToken{
			Token:     mustToken(t),
			UserID:    "user-1",
			ClientID:  "onshape-client-id",
			Scopes:    []string{"read", "write"},
			ExpiresAt: time.Now().Add(time.Hour),
		}
		require.NoError(t, s.PutAccessToken(ctx, token))

		got, err := s.GetAccessToken(ctx, token.Token)
		require.NoError(t, err)
		assert.Equal(t, token.UserID, got.UserID)
		assert.Equal(t, token.Scopes, got.Scopes)

		expired := &AccessToken{
			Token:     mustToken(t),
			ExpiresAt: time.Now().Add(-time.Minute),
		}
		require.NoError(t, s.PutAccessToken(ctx, expired))
		_, err = s.GetAccessToken(ctx, expired.Token)
		assert.ErrorIs(t, err, ErrExpired)
		_, err = s.GetAccessToken(ctx, expired.Token)
		assert.ErrorIs(t, err, ErrNotFound)
	})

	t.Run("refresh token has no expiry", func(t *testing.T) {
		token := &RefreshToken{
			Token:    mustToken(t),
			UserID:   "user-1",
			ClientID: "onshape-client-id",
			Scopes:   []string{"read"},
		}
		require.NoError(t, s.PutRefreshToken(ctx, token))

		got, err := s.GetRefreshToken(ctx, token.Token)
		require.NoError(t, err)
		assert.Equal(t, token.Scopes, got.Scopes)

		require.NoError(t, s.DeleteRefreshToken(ctx, token.Token))
		_, err = s.GetRefreshToken(ctx, token.Token)
		assert.ErrorIs(t, err, ErrNotFound)
	})

	t.Run("delete absent is not an error", func(t *testing.T) {
		assert.NoError(t, s.DeleteAuthorizationCode(ctx, "nope"))
		assert.NoError(t, s.DeleteAccessToken(ctx, "nope"))
		assert.NoError(t, s.DeleteRefreshToken(ctx, "nope"))
	})

	t.Run("health", func(t *testing.T) {
		assert.NoError(t, s.Health(ctx))
	})
}

func mustToken(t *testing.T) string {
	t.Helper()
	token, err := NewToken()
	require.NoError(t, err)
	return token
}

func TestMemoryStorageContract(t *testing.T) {
	t.Parallel()
	runStoreContractTests(t, newTestMemoryStorage(t))
}

func TestMemoryStorageCleanupSweep(t *testing.T) {
	t.Parallel()

	s := newTestMemoryStorage(t)
	ctx := context.Background()

	require.NoError(t, s.PutAccessToken(ctx, &AccessToken{
		Token:     "stale",
		ExpiresAt: time.Now().Add(-time.Minute),
	}))
	require.NoError(t, s.PutAccessToken(ctx, &AccessToken{
		Token:     "fresh",
		ExpiresAt: time.Now().Add(time.Hour),
	}))

	s.cleanupExpired()

	s.mu.RLock()
	_, staleOK := s.accessTokens["stale"]
	_, freshOK := s.accessTokens["fresh"]
	s.mu.RUnlock()

	assert.False(t, staleOK)
	assert.True(t, freshOK)
}

func TestMemoryStorageConcurrentAccess(t *testing.T) {
	t.Parallel()

	s := newTestMemoryStorage(t)
	ctx := context.Background()

	done := make(chan struct{})
	for i := 0; i < 8; i++ {
		go func() {
			defer func() { done <- struct{}{} }()
			for j := 0; j < 100; j++ {
				token := mustTokenRaw()
				_ = s.PutAccessToken(ctx, &AccessToken{
					Token:     token,
					ExpiresAt: time.Now().Add(time.Minute),
				})
				_, _ = s.GetAccessToken(ctx, token)
				_ = s.DeleteAccessToken(ctx, token)
			}
		}()
	}
	for i := 0; i < 8; i++ {
		<-done
	}
}

func mustTokenRaw() string {
	token, err := NewToken()
	if err != nil {
		panic(err)
	}
	return token
}

func TestNewToken(t *testing.T) {
	t.Parallel()

	seen := make(map[string]bool)
	for i := 0; i < 100; i++ {
		token, err := NewToken()
		require.NoError(t, err)
		// 32 bytes base64url without padding.
		assert.Len(t, token, 43)
		assert.False(t, seen[token], "duplicate token generated")
		seen[token] = true
	}
}
