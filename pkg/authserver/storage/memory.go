// SPDX-FileCopyrightText: Copyright 2025 onshape-part-manager contributors
// SPDX-License-Identifier: Apache-2.0

package storage

import (
	"context"
	"sync"
	"time"

	"github.com/cml1010101/onshape-part-manager/pkg/logger"
)

// timedEntry wraps a value with its expiry for TTL tracking. A zero expiresAt
// means the entry never expires (refresh tokens).
type timedEntry[T any] struct {
	value     T
	expiresAt time.Time
}

func (e *timedEntry[T]) expired(now time.Time) bool {
	return !e.expiresAt.IsZero() && now.After(e.expiresAt)
}

// MemoryStorage implements the Store interface with mutex-guarded maps.
// Suitable for a single-instance deployment; all protocol invariants
// (single-use codes, read-time expiry) live here rather than in handlers so
// a durable backend can be substituted without touching protocol logic.
type MemoryStorage struct {
	mu sync.RWMutex

	// codes maps code value -> record. Codes are one-time-use; the token
	// handler deletes them on redemption.
	codes map[string]*timedEntry[*AuthorizationCode]

	// accessTokens maps token value -> record for O(1) bearer lookup.
	accessTokens map[string]*timedEntry[*AccessToken]

	// refreshTokens maps token value -> record. No expiry unless revoked.
	refreshTokens map[string]*timedEntry[*RefreshToken]

	// cleanupInterval is how often the background sweep runs.
	cleanupInterval time.Duration

	stopCleanup chan struct{}
	cleanupDone chan struct{}
}

// MemoryStorageOption configures a MemoryStorage instance.
type MemoryStorageOption func(*MemoryStorage)

// WithCleanupInterval sets a custom sweep interval. Zero disables the
// background sweep entirely; expiry is still enforced on every read.
func WithCleanupInterval(interval time.Duration) MemoryStorageOption {
	return func(s *MemoryStorage) {
		s.cleanupInterval = interval
	}
}

// NewMemoryStorage creates a MemoryStorage with initialized maps and starts
// the background sweep goroutine.
func NewMemoryStorage(opts ...MemoryStorageOption) *MemoryStorage {
	s := &MemoryStorage{
		codes:           make(map[string]*timedEntry[*AuthorizationCode]),
		accessTokens:    make(map[string]*timedEntry[*AccessToken]),
		refreshTokens:   make(map[string]*timedEntry[*RefreshToken]),
		cleanupInterval: DefaultCleanupInterval,
		stopCleanup:     make(chan struct{}),
		cleanupDone:     make(chan struct{}),
	}

	for _, opt := range opts {
		opt(s)
	}

	if s.cleanupInterval > 0 {
		go s.cleanupLoop()
	} else {
		close(s.cleanupDone)
	}

	return s
}

// Health is a no-op for in-memory storage since it is always available.
func (*MemoryStorage) Health(_ context.Context) error {
	return nil
}

// Close stops the background sweep goroutine and waits for it to finish.
func (s *MemoryStorage) Close() error {
	if s.cleanupInterval > 0 {
		close(s.stopCleanup)
	}
	<-s.cleanupDone
	return nil
}

func (s *MemoryStorage) cleanupLoop() {
	defer close(s.cleanupDone)

	ticker := time.NewTicker(s.cleanupInterval)
	defer ticker.Stop()

	for {
		select {
		case <-s.stopCleanup:
			return
		case <-ticker.C:
			s.cleanupExpired()
		}
	}
}

// cleanupExpired removes expired entries. Collects keys under read lock,
// deletes under write lock to keep write lock hold time short.
func (s *MemoryStorage) cleanupExpired() {
	now := time.Now()

	s.mu.RLock()
	var expiredCodes, expiredAccess []string
	for k, v := range s.codes {
		if v.expired(now) {
			expiredCodes = append(expiredCodes, k)
		}
	}
	for k, v := range s.accessTokens {
		if v.expired(now) {
			expiredAccess = append(expiredAccess, k)
		}
	}
	s.mu.RUnlock()

	if len(expiredCodes) == 0 && len(expiredAccess) == 0 {
		return
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	for _, k := range expiredCodes {
		delete(s.codes, k)
	}
	for _, k := range expiredAccess {
		delete(s.accessTokens, k)
	}

	logger.Debugw("swept expired records",
		"codes", len(expiredCodes),
		"access_tokens", len(expiredAccess),
	)
}

// PutAuthorizationCode stores an authorization code.
func (s *MemoryStorage) PutAuthorizationCode(_ context.Context, code *AuthorizationCode) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.codes[code.Code]; ok {
		return ErrKeyCollision
	}
	s.codes[code.Code] = &timedEntry[*AuthorizationCode]{
		value:     code,
		expiresAt: code.ExpiresAt,
	}
	return nil
}

// GetAuthorizationCode retrieves an authorization code, evicting it if the
// expiry has passed.
func (s *MemoryStorage) GetAuthorizationCode(_ context.Context, code string) (*AuthorizationCode, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	entry, ok := s.codes[code]
	if !ok {
		return nil, ErrNotFound
	}
	if entry.expired(time.Now()) {
		delete(s.codes, code)
		return nil, ErrExpired
	}
	return entry.value, nil
}

// DeleteAuthorizationCode removes an authorization code.
func (s *MemoryStorage) DeleteAuthorizationCode(_ context.Context, code string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.codes, code)
	return nil
}

// PutAccessToken stores an access token.
func (s *MemoryStorage) PutAccessToken(_ context.Context, token *AccessToken) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.accessTokens[token.Token]; ok {
		return ErrKeyCollision
	}
	s.accessTokens[token.Token] = &timedEntry[*AccessToken]{
		value:     token,
		expiresAt: token.ExpiresAt,
	}
	return nil
}

// GetAccessToken retrieves an access token, evicting it if the expiry has
// passed.
func (s *MemoryStorage) GetAccessToken(_ context.Context, token string) (*AccessToken, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	entry, ok := s.accessTokens[token]
	if !ok {
		return nil, ErrNotFound
	}
	if entry.expired(time.Now()) {
		delete(s.accessTokens, token)
		return nil, ErrExpired
	}
	return entry.value, nil
}

// DeleteAccessToken removes an access token.
func (s *MemoryStorage) DeleteAccessToken(_ context.Context, token string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.accessTokens, token)
	return nil
}

// PutRefreshToken stores a refresh token.
func (s *MemoryStorage) PutRefreshToken(_ context.Context, token *RefreshToken) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.refreshTokens[token.Token]; ok {
		return ErrKeyCollision
	}
	s.refreshTokens[token.Token] = &timedEntry[*RefreshToken]{value: token}
	return nil
}

// GetRefreshToken retrieves a refresh token.
func (s *MemoryStorage) GetRefreshToken(_ context.Context, token string) (*RefreshToken, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	entry, ok := s.refreshTokens[token]
	if !ok {
		return nil, ErrNotFound
	}
	return entry.value, nil
}

// DeleteRefreshToken removes a refresh token.
func (s *MemoryStorage) DeleteRefreshToken(_ context.Context, token string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.refreshTokens, token)
	return nil
}

// Compile-time interface compliance check.
var _ Store = (*MemoryStorage)(nil)
