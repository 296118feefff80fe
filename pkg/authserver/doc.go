// SPDX-FileCopyrightText: Copyright 2025 onshape-part-manager contributors
// SPDX-License-Identifier: Apache-2.0

// Package authserver provides the embedded OAuth 2.0 authorization server for
// the part manager. It plays both sides of the protocol: consumer of an
// upstream identity provider (the user's Onshape sign-in) and provider of its
// own authorization codes and bearer tokens to trusted third-party clients.
//
// The server implements the authorization-code grant lifecycle:
//   - GET  /oauth/authorize renders consent or redirects through sign-in
//   - POST /oauth/authorize records the consent decision and mints a code
//   - POST /oauth/token exchanges codes or refresh tokens for access tokens
//   - GET  /login and GET /callback drive the mirrored upstream flow
//
// Tokens are opaque 256-bit random values kept server-side behind the
// storage.Store interface; nothing is signed or self-describing. Protected
// resources validate tokens with the auth.BearerValidator middleware.
//
// # Usage
//
//	store := storage.NewMemoryStorage()
//	sessions := session.NewManager()
//	idp, err := upstream.NewProvider(ctx, upstreamCfg)
//	srv, err := authserver.New(cfg, store, sessions, idp)
//	mux.Mount("/", srv.Routes())
package authserver
