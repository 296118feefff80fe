// SPDX-FileCopyrightText: Copyright 2025 onshape-part-manager contributors
// SPDX-License-Identifier: Apache-2.0

package authserver

import (
	"crypto/subtle"
	"fmt"
	"slices"
)

// Client is a trusted OAuth client registration. Immutable after startup;
// registration happens at configuration time, never at request time.
type Client struct {
	// ID is the public client identifier.
	ID string

	// Secret authenticates the client at the token endpoint.
	Secret string

	// RedirectURIs are the exact redirect URIs the client may use.
	// No prefix or partial matching: a mismatch is a hard rejection.
	RedirectURIs []string
}

// ValidRedirectURI reports whether uri is one of the client's registered
// redirect URIs. Comparison is exact.
func (c *Client) ValidRedirectURI(uri string) bool {
	return slices.Contains(c.RedirectURIs, uri)
}

// ValidSecret compares the presented secret in constant time.
func (c *Client) ValidSecret(secret string) bool {
	return subtle.ConstantTimeCompare([]byte(c.Secret), []byte(secret)) == 1
}

// ClientRegistry is the process-wide set of trusted clients, read-only at
// request time.
type ClientRegistry struct {
	clients map[string]*Client
}

// NewClientRegistry builds a registry from configured clients.
func NewClientRegistry(clients []Client) (*ClientRegistry, error) {
	registry := &ClientRegistry{clients: make(map[string]*Client, len(clients))}
	for i := range clients {
		c := clients[i]
		if c.ID == "" {
			return nil, fmt.Errorf("client %d: ID is required", i)
		}
		if c.Secret == "" {
			return nil, fmt.Errorf("client %q: secret is required", c.ID)
		}
		if len(c.RedirectURIs) == 0 {
			return nil, fmt.Errorf("client %q: at least one redirect URI is required", c.ID)
		}
		if _, ok := registry.clients[c.ID]; ok {
			return nil, fmt.Errorf("client %q: duplicate registration", c.ID)
		}
		registry.clients[c.ID] = &c
	}
	return registry, nil
}

// Lookup returns the client with the given ID.
func (r *ClientRegistry) Lookup(id string) (*Client, bool) {
	c, ok := r.clients[id]
	return c, ok
}
