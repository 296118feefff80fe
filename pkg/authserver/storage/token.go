// SPDX-FileCopyrightText: Copyright 2025 onshape-part-manager contributors
// SPDX-License-Identifier: Apache-2.0

package storage

import (
	"crypto/rand"
	"encoding/base64"
	"fmt"
)

// tokenEntropyBytes is the number of random bytes per token. 32 bytes gives
// 256 bits of entropy, well above the 128-bit floor needed to make guessing
// infeasible.
const tokenEntropyBytes = 32

// NewToken returns an opaque, URL-safe token value from a cryptographically
// secure random source.
func NewToken() (string, error) {
	buf := make([]byte, tokenEntropyBytes)
	if _, err := rand.Read(buf); err != nil {
		return "", fmt.Errorf("failed to read random bytes: %w", err)
	}
	return base64.RawURLEncoding.EncodeToString(buf), nil
}
