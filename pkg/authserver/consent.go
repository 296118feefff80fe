// SPDX-FileCopyrightText: Copyright 2025 onshape-part-manager contributors
// SPDX-License-Identifier: Apache-2.0

package authserver

// consentTemplate renders the consent page. The template only ever receives
// display fields and the echo-back request parameters; client secrets never
// reach rendered markup.
const consentTemplate = `<!DOCTYPE html>
<html>
<head>
  <title>Authorize access</title>
</head>
<body>
  <h1>Authorize {{.ClientID}}</h1>
  <p>{{.ClientID}} is requesting access to your part manager account with the following permissions:</p>
  <ul>
    {{range .Scopes}}<li>{{.}}</li>{{end}}
  </ul>
  <form method="POST" action="/oauth/authorize">
    <input type="hidden" name="response_type" value="{{.ResponseType}}">
    <input type="hidden" name="client_id" value="{{.ClientID}}">
    <input type="hidden" name="redirect_uri" value="{{.RedirectURI}}">
    <input type="hidden" name="scope" value="{{.Scope}}">
    <input type="hidden" name="state" value="{{.State}}">
    <button type="submit" name="action" value="approve">Approve</button>
    <button type="submit" name="action" value="deny">Deny</button>
  </form>
</body>
</html>
`

// consentData is the data passed to the consent template.
type consentData struct {
	ClientID     string
	Scopes       []string
	ResponseType string
	RedirectURI  string
	Scope        string
	State        string
}
