// SPDX-FileCopyrightText: Copyright 2025 onshape-part-manager contributors
// SPDX-License-Identifier: Apache-2.0

package authserver

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestClientRegistryValidation(t *testing.T) {
	t.Parallel()

	valid := Client{
		ID:           "client-1",
		Secret:       "secret-1",
		RedirectURIs: []string{"https://client.example.com/cb"},
	}

	t.Run("valid", func(t *testing.T) {
		registry, err := NewClientRegistry([]Client{valid})
		require.NoError(t, err)

		c, ok := registry.Lookup("client-1")
		require.True(t, ok)
		assert.Equal(t, "client-1", c.ID)

		_, ok = registry.Lookup("other")
		assert.False(t, ok)
	})

	t.Run("missing id", func(t *testing.T) {
		_, err := NewClientRegistry([]Client{{Secret: "s", RedirectURIs: []string{"https://x"}}})
		require.Error(t, err)
	})

	t.Run("missing secret", func(t *testing.T) {
		_, err := NewClientRegistry([]Client{{ID: "c", RedirectURIs: []string{"https://x"}}})
		require.Error(t, err)
	})

	t.Run("missing redirect URIs", func(t *testing.T) {
		_, err := NewClientRegistry([]Client{{ID: "c", Secret: "s"}})
		require.Error(t, err)
	})

	t.Run("duplicate registration", func(t *testing.T) {
		_, err := NewClientRegistry([]Client{valid, valid})
		require.Error(t, err)
	})
}

func TestClientRedirectURIMatchIsExact(t *testing.T) {
	t.Parallel()

	c := &Client{
		ID:           "client-1",
		Secret:       "secret-1",
		RedirectURIs: []string{"https://client.example.com/cb"},
	}

	assert.True(t, c.ValidRedirectURI("https://client.example.com/cb"))
	assert.False(t, c.ValidRedirectURI("https://client.example.com/cb/"))
	assert.False(t, c.ValidRedirectURI("https://client.example.com/cb?x=1"))
	assert.False(t, c.ValidRedirectURI("https://client.example.com"))
}

func TestClientSecretComparison(t *testing.T) {
	t.Parallel()

	c := &Client{ID: "c", Secret: "correct-secret"}
	assert.True(t, c.ValidSecret("correct-secret"))
	assert.False(t, c.ValidSecret("wrong"))
	assert.False(t, c.ValidSecret(""))
}

func TestConfigDefaults(t *testing.T) {
	t.Parallel()

	cfg := Config{Clients: []Client{{ID: "c", Secret: "s", RedirectURIs: []string{"https://x"}}}}
	cfg.applyDefaults()

	assert.Equal(t, time.Hour, cfg.AccessTokenTTL)
	assert.Equal(t, time.Minute, cfg.AuthCodeTTL)
	assert.Equal(t, "/login", cfg.LoginPath)
	assert.False(t, cfg.RotateRefreshTokens)
	require.NoError(t, cfg.Validate())
}

func TestConfigValidate(t *testing.T) {
	t.Parallel()

	t.Run("no clients", func(t *testing.T) {
		cfg := Config{}
		cfg.applyDefaults()
		require.Error(t, cfg.Validate())
	})

	t.Run("negative ttl", func(t *testing.T) {
		cfg := Config{
			Clients:        []Client{{ID: "c", Secret: "s", RedirectURIs: []string{"https://x"}}},
			AccessTokenTTL: -time.Second,
		}
		require.Error(t, cfg.Validate())
	})
}
