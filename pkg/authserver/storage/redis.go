// SPDX-FileCopyrightText: Copyright 2025 onshape-part-manager contributors
// SPDX-License-Identifier: Apache-2.0

package storage

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

// Default timeouts for Redis operations.
const (
	DefaultDialTimeout  = 5 * time.Second
	DefaultReadTimeout  = 3 * time.Second
	DefaultWriteTimeout = 3 * time.Second
)

// expiredRecordGrace is how long past its expiry a record is kept in Redis.
// Keeping the record briefly lets a read distinguish "expired" from "never
// existed"; after the grace the Redis TTL reclaims the key.
const expiredRecordGrace = time.Hour

// RedisConfig holds Redis connection configuration.
type RedisConfig struct {
	// Addr is the host:port of the Redis server.
	Addr string

	// Username and Password authenticate against Redis ACLs. Both optional.
	Username string
	Password string

	// DB selects the Redis logical database.
	DB int

	// KeyPrefix namespaces all keys, e.g. "partman:auth:".
	KeyPrefix string

	// Timeouts (defaults: Dial=5s, Read=3s, Write=3s).
	DialTimeout  time.Duration
	ReadTimeout  time.Duration
	WriteTimeout time.Duration
}

// RedisStorage implements the Store interface on a Redis backend, for
// deployments where tokens must survive a process restart. Redis TTLs bound
// key lifetime; the protocol-visible expiry is still checked on read so the
// lazy-eviction semantics match the memory backend exactly.
type RedisStorage struct {
	client    redis.UniversalClient
	keyPrefix string
}

// NewRedisStorage creates Redis-backed storage and verifies the connection.
func NewRedisStorage(ctx context.Context, cfg RedisConfig) (*RedisStorage, error) {
	if cfg.Addr == "" {
		return nil, errors.New("redis address is required")
	}

	if cfg.DialTimeout == 0 {
		cfg.DialTimeout = DefaultDialTimeout
	}
	if cfg.ReadTimeout == 0 {
		cfg.ReadTimeout = DefaultReadTimeout
	}
	if cfg.WriteTimeout == 0 {
		cfg.WriteTimeout = DefaultWriteTimeout
	}

	client := redis.NewClient(&redis.Options{
		Addr:         cfg.Addr,
		Username:     cfg.Username,
		Password:     cfg.Password,
		DB:           cfg.DB,
		DialTimeout:  cfg.DialTimeout,
		ReadTimeout:  cfg.ReadTimeout,
		WriteTimeout: cfg.WriteTimeout,
	})

	if err := client.Ping(ctx).Err(); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("failed to connect to redis: %w", err)
	}

	return &RedisStorage{client: client, keyPrefix: cfg.KeyPrefix}, nil
}

// NewRedisStorageWithClient wraps an existing client. Used by tests.
func NewRedisStorageWithClient(client redis.UniversalClient, keyPrefix string) *RedisStorage {
	return &RedisStorage{client: client, keyPrefix: keyPrefix}
}

// Health pings the Redis backend.
func (s *RedisStorage) Health(ctx context.Context) error {
	if err := s.client.Ping(ctx).Err(); err != nil {
		return fmt.Errorf("redis ping failed: %w", err)
	}
	return nil
}

// Close closes the underlying Redis client.
func (s *RedisStorage) Close() error {
	return s.client.Close()
}

func (s *RedisStorage) codeKey(code string) string {
	return s.keyPrefix + "code:" + code
}

func (s *RedisStorage) accessKey(token string) string {
	return s.keyPrefix + "access:" + token
}

func (s *RedisStorage) refreshKey(token string) string {
	return s.keyPrefix + "refresh:" + token
}

// putJSON stores a record as JSON under key with NX semantics so an existing
// key surfaces as ErrKeyCollision instead of being overwritten.
func (s *RedisStorage) putJSON(ctx context.Context, key string, value any, ttl time.Duration) error {
	data, err := json.Marshal(value)
	if err != nil {
		return fmt.Errorf("failed to marshal record: %w", err)
	}

	ok, err := s.client.SetNX(ctx, key, data, ttl).Result()
	if err != nil {
		return fmt.Errorf("failed to store record: %w", err)
	}
	if !ok {
		return ErrKeyCollision
	}
	return nil
}

func (s *RedisStorage) getJSON(ctx context.Context, key string, out any) error {
	data, err := s.client.Get(ctx, key).Bytes()
	if errors.Is(err, redis.Nil) {
		return ErrNotFound
	}
	if err != nil {
		return fmt.Errorf("failed to load record: %w", err)
	}
	if err := json.Unmarshal(data, out); err != nil {
		return fmt.Errorf("failed to unmarshal record: %w", err)
	}
	return nil
}

// PutAuthorizationCode stores an authorization code.
func (s *RedisStorage) PutAuthorizationCode(ctx context.Context, code *AuthorizationCode) error {
	ttl := time.Until(code.ExpiresAt) + expiredRecordGrace
	return s.putJSON(ctx, s.codeKey(code.Code), code, ttl)
}

// GetAuthorizationCode retrieves an authorization code, evicting it if the
// expiry has passed.
func (s *RedisStorage) GetAuthorizationCode(ctx context.Context, code string) (*AuthorizationCode, error) {
	var record AuthorizationCode
	if err := s.getJSON(ctx, s.codeKey(code), &record); err != nil {
		return nil, err
	}
	if time.Now().After(record.ExpiresAt) {
		_ = s.client.Del(ctx, s.codeKey(code)).Err()
		return nil, ErrExpired
	}
	return &record, nil
}

// DeleteAuthorizationCode removes an authorization code.
func (s *RedisStorage) DeleteAuthorizationCode(ctx context.Context, code string) error {
	if err := s.client.Del(ctx, s.codeKey(code)).Err(); err != nil {
		return fmt.Errorf("failed to delete authorization code: %w", err)
	}
	return nil
}

// PutAccessToken stores an access token.
func (s *RedisStorage) PutAccessToken(ctx context.Context, token *AccessToken) error {
	ttl := time.Until(token.ExpiresAt) + expiredRecordGrace
	return s.putJSON(ctx, s.accessKey(token.Token), token, ttl)
}

// GetAccessToken retrieves an access token, evicting it if the expiry has
// passed.
func (s *RedisStorage) GetAccessToken(ctx context.Context, token string) (*AccessToken, error) {
	var record AccessToken
	if err := s.getJSON(ctx, s.accessKey(token), &record); err != nil {
		return nil, err
	}
	if time.Now().After(record.ExpiresAt) {
		_ = s.client.Del(ctx, s.accessKey(token)).Err()
		return nil, ErrExpired
	}
	return &record, nil
}

// DeleteAccessToken removes an access token.
func (s *RedisStorage) DeleteAccessToken(ctx context.Context, token string) error {
	if err := s.client.Del(ctx, s.accessKey(token)).Err(); err != nil {
		return fmt.Errorf("failed to delete access token: %w", err)
	}
	return nil
}

// PutRefreshToken stores a refresh token with no expiry.
func (s *RedisStorage) PutRefreshToken(ctx context.Context, token *RefreshToken) error {
	return s.putJSON(ctx, s.refreshKey(token.Token), token, 0)
}

// GetRefreshToken retrieves a refresh token.
func (s *RedisStorage) GetRefreshToken(ctx context.Context, token string) (*RefreshToken, error) {
	var record RefreshToken
	if err := s.getJSON(ctx, s.refreshKey(token), &record); err != nil {
		return nil, err
	}
	return &record, nil
}

// DeleteRefreshToken removes a refresh token.
func (s *RedisStorage) DeleteRefreshToken(ctx context.Context, token string) error {
	if err := s.client.Del(ctx, s.refreshKey(token)).Err(); err != nil {
		return fmt.Errorf("failed to delete refresh token: %w", err)
	}
	return nil
}

// Compile-time interface compliance check.
var _ Store = (*RedisStorage)(nil)
