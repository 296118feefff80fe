// SPDX-FileCopyrightText: Copyright 2025 onshape-part-manager contributors
// SPDX-License-Identifier: Apache-2.0

// Package storage provides storage interfaces and implementations for the
// OAuth authorization server.
package storage

import (
	"context"
	"errors"
	"time"
)

// DefaultCleanupInterval is how often the memory backend sweeps expired
// entries. Expiry is always enforced at read time; the sweep only bounds
// memory growth from records nobody reads again.
const DefaultCleanupInterval = 5 * time.Minute

var (
	// ErrNotFound is returned when a record does not exist.
	ErrNotFound = errors.New("record not found")

	// ErrExpired is returned when a record exists but its expiry has passed.
	// The lookup that observes the expiry also removes the record, so a
	// subsequent lookup returns ErrNotFound.
	ErrExpired = errors.New("record expired")

	// ErrKeyCollision is returned when a put would overwrite an existing
	// record. Keys are 256-bit random values, so a collision means the
	// random source is broken; callers must treat it as generation failure.
	ErrKeyCollision = errors.New("key collision")
)

// AuthorizationCode is a single-use, short-lived credential proving a
// principal approved a specific client's access request. It is redeemable
// only by the exact client and redirect URI that requested it.
type AuthorizationCode struct {
	// Code is the opaque code value, also the storage key.
	Code string `json:"code"`

	// UserID is the principal who approved the request.
	UserID string `json:"user_id"`

	// ClientID is the client the code was issued to.
	ClientID string `json:"client_id"`

	// RedirectURI is the redirect URI the code is bound to.
	RedirectURI string `json:"redirect_uri"`

	// Scopes are the approved scopes.
	Scopes []string `json:"scopes"`

	// ExpiresAt is when the code stops being redeemable.
	ExpiresAt time.Time `json:"expires_at"`
}

// AccessToken is a bearer credential bound to a user, client, and scope set.
type AccessToken struct {
	Token     string    `json:"token"`
	UserID    string    `json:"user_id"`
	ClientID  string    `json:"client_id"`
	Scopes    []string  `json:"scopes"`
	ExpiresAt time.Time `json:"expires_at"`
}

// RefreshToken is a long-lived credential used to mint new access tokens.
// It carries no expiry; it lives until revoked or, when rotation is enabled,
// until replaced on use.
type RefreshToken struct {
	Token    string   `json:"token"`
	UserID   string   `json:"user_id"`
	ClientID string   `json:"client_id"`
	Scopes   []string `json:"scopes"`
}

// Store is the storage contract for the authorization server. Implementations
// must be safe for concurrent use and must enforce expiry at read time: a Get
// on an expired record returns ErrExpired and removes the record as a side
// effect.
type Store interface {
	// PutAuthorizationCode stores an authorization code. Returns
	// ErrKeyCollision if the code value already exists.
	PutAuthorizationCode(ctx context.Context, code *AuthorizationCode) error

	// GetAuthorizationCode retrieves an authorization code by value.
	GetAuthorizationCode(ctx context.Context, code string) (*AuthorizationCode, error)

	// DeleteAuthorizationCode removes an authorization code. Deleting an
	// absent code is not an error.
	DeleteAuthorizationCode(ctx context.Context, code string) error

	// PutAccessToken stores an access token. Returns ErrKeyCollision if the
	// token value already exists.
	PutAccessToken(ctx context.Context, token *AccessToken) error

	// GetAccessToken retrieves an access token by value.
	GetAccessToken(ctx context.Context, token string) (*AccessToken, error)

	// DeleteAccessToken removes an access token.
	DeleteAccessToken(ctx context.Context, token string) error

	// PutRefreshToken stores a refresh token. Returns ErrKeyCollision if the
	// token value already exists.
	PutRefreshToken(ctx context.Context, token *RefreshToken) error

	// GetRefreshToken retrieves a refresh token by value.
	GetRefreshToken(ctx context.Context, token string) (*RefreshToken, error)

	// DeleteRefreshToken removes a refresh token.
	DeleteRefreshToken(ctx context.Context, token string) error

	// Health reports whether the backend is reachable.
	Health(ctx context.Context) error

	// Close releases backend resources.
	Close() error
}
