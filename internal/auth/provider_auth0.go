package auth

import (
	"net/url"

	"golang.org/x/oauth2"
)

// Auth0 authenticates console users through an Auth0 tenant.
type Auth0 struct {
	Domain string // tenant domain, e.g. "acme.us.auth0.com"
}

func (p *Auth0) Name() string { return "auth0" }

func (p *Auth0) IssuerURL() string { return "https://" + p.Domain + "/" }

func (p *Auth0) Endpoint() (oauth2.Endpoint, bool) {
	return oauth2.Endpoint{}, false
}

// LogoutURL ends the tenant-side session through /v2/logout. Clearing
// the application cookie alone leaves the Auth0 session alive and the
// next login silently re-authenticates.
func (p *Auth0) LogoutURL(clientID, returnTo string) string {
	q := url.Values{
		"client_id": {clientID},
		"returnTo":  {returnTo},
	}
	return "https://" + p.Domain + "/v2/logout?" + q.Encode()
}
