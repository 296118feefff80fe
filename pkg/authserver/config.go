// SPDX-FileCopyrightText: Copyright 2025 onshape-part-manager contributors
// SPDX-License-Identifier: Apache-2.0

package authserver

import (
	"errors"
	"time"
)

// Default token lifetimes.
const (
	// DefaultAccessTokenTTL matches the 3600-second expires_in the original
	// deployment advertised.
	DefaultAccessTokenTTL = time.Hour

	// DefaultAuthCodeTTL keeps authorization codes short-lived; they only
	// need to survive one redirect round trip.
	DefaultAuthCodeTTL = time.Minute
)

// Config holds the authorization server configuration. It is read once at
// startup and passed to New; no component reads the environment mid-request.
type Config struct {
	// Clients is the static set of trusted OAuth clients.
	Clients []Client

	// AccessTokenTTL is the lifetime of minted access tokens.
	// Defaults to DefaultAccessTokenTTL.
	AccessTokenTTL time.Duration

	// AuthCodeTTL is the lifetime of authorization codes.
	// Defaults to DefaultAuthCodeTTL.
	AuthCodeTTL time.Duration

	// RotateRefreshTokens switches the refresh grant to strict rotation:
	// each use retires the presented refresh token and issues a new one.
	// Off by default, preserving the original deployment's behavior where
	// one refresh token mints any number of access tokens.
	RotateRefreshTokens bool

	// LoginPath is where unauthenticated principals are sent to sign in.
	// Defaults to "/login".
	LoginPath string
}

// applyDefaults fills in zero-valued fields.
func (c *Config) applyDefaults() {
	if c.AccessTokenTTL == 0 {
		c.AccessTokenTTL = DefaultAccessTokenTTL
	}
	if c.AuthCodeTTL == 0 {
		c.AuthCodeTTL = DefaultAuthCodeTTL
	}
	if c.LoginPath == "" {
		c.LoginPath = "/login"
	}
}

// Validate checks the configuration for structural problems.
func (c *Config) Validate() error {
	if len(c.Clients) == 0 {
		return errors.New("at least one OAuth client must be configured")
	}
	if c.AccessTokenTTL < 0 || c.AuthCodeTTL < 0 {
		return errors.New("token lifetimes must not be negative")
	}
	return nil
}
