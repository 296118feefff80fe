// SPDX-FileCopyrightText: Copyright 2025 onshape-part-manager contributors
// SPDX-License-Identifier: Apache-2.0

package authserver

import (
	"encoding/json"
	"net/http"
	"net/url"
)

// RFC 6749 error codes surfaced by the authorization and token endpoints.
// Every validation failure maps to one of these; nothing propagates to the
// client as an unhandled fault.
const (
	ErrorInvalidRequest          = "invalid_request"
	ErrorInvalidClient           = "invalid_client"
	ErrorInvalidRedirectURI      = "invalid_redirect_uri"
	ErrorUnsupportedResponseType = "unsupported_response_type"
	ErrorInvalidGrant            = "invalid_grant"
	ErrorUnsupportedGrantType    = "unsupported_grant_type"
	ErrorAccessDenied            = "access_denied"
	ErrorServerError             = "server_error"
)

// writeError writes a machine-readable {"error": code} body. Used when the
// request cannot be safely redirected: unknown client, unregistered redirect
// URI, token endpoint failures.
func writeError(w http.ResponseWriter, status int, code string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(map[string]string{"error": code})
}

// redirectWithError sends the user agent back to a validated redirect URI
// with an error code and the client's state echoed verbatim. Only ever called
// after the redirect URI has passed registry validation; an untrusted
// redirect URI never receives a redirect.
func redirectWithError(w http.ResponseWriter, r *http.Request, redirectURI, code, state string) {
	target, err := url.Parse(redirectURI)
	if err != nil {
		writeError(w, http.StatusBadRequest, ErrorInvalidRedirectURI)
		return
	}

	query := target.Query()
	query.Set("error", code)
	if state != "" {
		query.Set("state", state)
	}
	target.RawQuery = query.Encode()

	http.Redirect(w, r, target.String(), http.StatusFound)
}

// redirectWithCode sends the user agent back to a validated redirect URI
// carrying a freshly minted authorization code and the state verbatim.
func redirectWithCode(w http.ResponseWriter, r *http.Request, redirectURI, code, state string) {
	target, err := url.Parse(redirectURI)
	if err != nil {
		writeError(w, http.StatusBadRequest, ErrorInvalidRedirectURI)
		return
	}

	query := target.Query()
	query.Set("code", code)
	if state != "" {
		query.Set("state", state)
	}
	target.RawQuery = query.Encode()

	http.Redirect(w, r, target.String(), http.StatusFound)
}
