package auth

import "golang.org/x/oauth2"

// GoogleCIAM authenticates console users through Google Cloud Identity
// Platform. Identity Platform issues login tokens from
// accounts.google.com and publishes no discovery document of its own,
// so the issuer and OAuth endpoints are pinned to the Google account
// endpoints.
type GoogleCIAM struct {
	ProjectID string
}

func (p *GoogleCIAM) Name() string { return "google-ciam" }

func (p *GoogleCIAM) IssuerURL() string { return "https://accounts.google.com" }

func (p *GoogleCIAM) Endpoint() (oauth2.Endpoint, bool) {
	return oauth2.Endpoint{
		AuthURL:  "https://accounts.google.com/o/oauth2/v2/auth",
		TokenURL: "https://oauth2.googleapis.com/token",
	}, true
}

// LogoutURL returns returnTo unchanged. Identity Platform has no
// centralized logout endpoint; clearing the session cookie is all
// there is to do.
func (p *GoogleCIAM) LogoutURL(_, returnTo string) string { return returnTo }
