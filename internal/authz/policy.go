package authz

import (
	"fmt"
	"strings"
)

// Profile carries the identity fields authorization decisions are made
// on. It mirrors auth.Profile without importing it, keeping the
// packages decoupled.
type Profile struct {
	Sub   string
	Name  string
	Email string
}

// Policy is a single authorization rule.
type Policy interface {
	Name() string
	Authorize(profile Profile) error
}

// Authorizer runs a set of policies over a profile. Console routes that
// start or retry releases consult it before acting; any deny wins.
type Authorizer struct {
	enabled  bool
	policies []Policy
}

func NewAuthorizer(enabled bool, policies ...Policy) *Authorizer {
	return &Authorizer{enabled: enabled, policies: policies}
}

// Authorize returns the first policy denial, or nil when every policy
// allows the profile.
func (a *Authorizer) Authorize(profile Profile) error {
	if !a.enabled {
		return nil
	}
	for _, policy := range a.policies {
		if err := policy.Authorize(profile); err != nil {
			return fmt.Errorf("authorization policy %s failed: %w", policy.Name(), err)
		}
	}
	return nil
}

// GoogleEmailPolicy pins Google logins to a single email address. With
// Auth0 the check only fires for federated Google identities (sub
// "google-oauth2|..."); with Google CIAM every login is a Google login
// so every profile is checked.
type GoogleEmailPolicy struct {
	AllowedEmail string
	ProviderType string
}

func (p *GoogleEmailPolicy) Name() string { return "GoogleEmailRestriction" }

func (p *GoogleEmailPolicy) Authorize(profile Profile) error {
	switch p.ProviderType {
	case "auth0":
		if !strings.HasPrefix(profile.Sub, "google-oauth2|") {
			return nil
		}
	case "google-ciam":
		// always applies
	default:
		return fmt.Errorf("unknown provider type: %s", p.ProviderType)
	}

	if profile.Email != p.AllowedEmail {
		return fmt.Errorf("access denied: email %s is not authorized", profile.Email)
	}
	return nil
}

// NewGoogleEmailAuthorizer builds an Authorizer holding a single
// GoogleEmailPolicy.
func NewGoogleEmailAuthorizer(enabled bool, allowedEmail string, providerType string) *Authorizer {
	return NewAuthorizer(enabled, &GoogleEmailPolicy{
		AllowedEmail: allowedEmail,
		ProviderType: providerType,
	})
}
