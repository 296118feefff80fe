// SPDX-FileCopyrightText: Copyright 2025 onshape-part-manager contributors
// SPDX-License-Identifier: Apache-2.0

// Package auth provides authentication and authorization utilities.
package auth

import (
	"context"
	"slices"
)

// Identity is the resolved principal and scope context attached to a request
// after successful bearer-token validation.
type Identity struct {
	// UserID is the principal on whose behalf access was granted.
	UserID string

	// ClientID is the OAuth client that holds the token.
	ClientID string

	// Scopes are the permissions carried by the token.
	Scopes []string
}

// HasScope reports whether the identity carries the named scope. Scope
// checks are the resource handler's responsibility, not the validator's.
func (i *Identity) HasScope(scope string) bool {
	return slices.Contains(i.Scopes, scope)
}

// IdentityContextKey is the key used to store Identity in the request context.
//
// Using an empty struct as the key prevents collisions with other context
// keys, as each empty struct type is distinct even when names coincide.
type IdentityContextKey struct{}

// WithIdentity stores an Identity in the context. If identity is nil, the
// original context is returned unchanged.
func WithIdentity(ctx context.Context, identity *Identity) context.Context {
	if identity == nil {
		return ctx
	}
	return context.WithValue(ctx, IdentityContextKey{}, identity)
}

// IdentityFromContext retrieves an Identity from the context.
// Returns the identity and true if present, nil and false otherwise.
func IdentityFromContext(ctx context.Context) (*Identity, bool) {
	identity, ok := ctx.Value(IdentityContextKey{}).(*Identity)
	return identity, ok
}
