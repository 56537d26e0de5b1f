package auth

import "golang.org/x/oauth2"

// Provider describes an OIDC identity provider the release console can
// authenticate against.
type Provider interface {
	// Name identifies the provider in configuration and logs.
	Name() string

	// IssuerURL is used for OIDC discovery and ID token verification.
	IssuerURL() string

	// Endpoint returns an explicit OAuth2 endpoint override. Providers
	// whose discovery document carries usable authorize/token URLs
	// return ok false and the discovered endpoint is used.
	Endpoint() (ep oauth2.Endpoint, ok bool)

	// LogoutURL is where the browser is sent to end the provider-side
	// session. Providers without one return returnTo unchanged.
	LogoutURL(clientID, returnTo string) string
}
