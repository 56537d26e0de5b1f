package authz

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestGoogleEmailPolicy(t *testing.T) {
	tests := []struct {
		name     string
		policy   GoogleEmailPolicy
		profile  Profile
		wantDeny bool
	}{
		{
			name:    "auth0 google login with allowed email",
			policy:  GoogleEmailPolicy{AllowedEmail: "ops@example.com", ProviderType: "auth0"},
			profile: Profile{Sub: "google-oauth2|123", Email: "ops@example.com"},
		},
		{
			name:     "auth0 google login with other email",
			policy:   GoogleEmailPolicy{AllowedEmail: "ops@example.com", ProviderType: "auth0"},
			profile:  Profile{Sub: "google-oauth2|123", Email: "other@example.com"},
			wantDeny: true,
		},
		{
			name:    "auth0 non-google login skips the check",
			policy:  GoogleEmailPolicy{AllowedEmail: "ops@example.com", ProviderType: "auth0"},
			profile: Profile{Sub: "auth0|456", Email: "other@example.com"},
		},
		{
			name:     "google-ciam always checks",
			policy:   GoogleEmailPolicy{AllowedEmail: "ops@example.com", ProviderType: "google-ciam"},
			profile:  Profile{Sub: "789", Email: "other@example.com"},
			wantDeny: true,
		},
		{
			name:     "unknown provider denies",
			policy:   GoogleEmailPolicy{AllowedEmail: "ops@example.com", ProviderType: "okta"},
			profile:  Profile{Sub: "1", Email: "ops@example.com"},
			wantDeny: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.policy.Authorize(tt.profile)
			if tt.wantDeny {
				assert.Error(t, err)
			} else {
				assert.NoError(t, err)
			}
		})
	}
}

func TestAuthorizerDisabled(t *testing.T) {
	authorizer := NewGoogleEmailAuthorizer(false, "ops@example.com", "google-ciam")
	assert.NoError(t, authorizer.Authorize(Profile{Email: "anyone@example.com"}))
}

func TestAuthorizerEnabled(t *testing.T) {
	authorizer := NewGoogleEmailAuthorizer(true, "ops@example.com", "google-ciam")
	assert.Error(t, authorizer.Authorize(Profile{Email: "anyone@example.com"}))
	assert.NoError(t, authorizer.Authorize(Profile{Email: "ops@example.com"}))
}
