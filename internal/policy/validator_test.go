package policy

import (
	"testing"

	"github.com/savaki/release-pipeline/internal/models"
)

func TestValidator_ValidateRun(t *testing.T) {
	validator, err := NewValidator()
	if err != nil {
		t.Fatalf("Failed to create validator: %v", err)
	}

	tests := []struct {
		name            string
		input           models.PipelineInput
		protectedBranch string
		expectAllow     bool
	}{
		{
			name: "valid release",
			input: models.PipelineInput{
				Owner:         "acme",
				Repo:          "widgets",
				Tag:           "v1.2.3",
				Version:       "1.2.3",
				BaseBranch:    "mainline",
				ReleaseBranch: "release/1.2.3",
			},
			expectAllow: true,
		},
		{
			name: "tag without v prefix",
			input: models.PipelineInput{
				Owner:         "acme",
				Repo:          "widgets",
				Tag:           "1.2.3",
				Version:       "1.2.3",
				BaseBranch:    "mainline",
				ReleaseBranch: "release/1.2.3",
			},
			expectAllow: false,
		},
		{
			name: "missing base branch",
			input: models.PipelineInput{
				Owner:         "acme",
				Repo:          "widgets",
				Tag:           "v1.2.3",
				Version:       "1.2.3",
				ReleaseBranch: "release/1.2.3",
			},
			expectAllow: false,
		},
		{
			name: "release branch equals base branch",
			input: models.PipelineInput{
				Owner:         "acme",
				Repo:          "widgets",
				Tag:           "v1.2.3",
				Version:       "1.2.3",
				BaseBranch:    "mainline",
				ReleaseBranch: "mainline",
			},
			expectAllow: false,
		},
		{
			name: "prerelease targets protected branch",
			input: models.PipelineInput{
				Owner:         "acme",
				Repo:          "widgets",
				Tag:           "v1.2.3-rc.1",
				Version:       "1.2.3-rc.1",
				BaseBranch:    "mainline",
				ReleaseBranch: "release/1.2.3-rc.1",
			},
			protectedBranch: "mainline",
			expectAllow:     false,
		},
		{
			name: "prerelease targets unprotected branch",
			input: models.PipelineInput{
				Owner:         "acme",
				Repo:          "widgets",
				Tag:           "v1.2.3-rc.1",
				Version:       "1.2.3-rc.1",
				BaseBranch:    "develop",
				ReleaseBranch: "release/1.2.3-rc.1",
			},
			protectedBranch: "mainline",
			expectAllow:     true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			result, err := validator.ValidateRun(tt.input, tt.protectedBranch)
			if err != nil {
				t.Fatalf("ValidateRun failed: %v", err)
			}

			if result.Allowed != tt.expectAllow {
				t.Errorf("Allowed = %v, want %v (violations: %v)", result.Allowed, tt.expectAllow, result.Violations)
			}

			if !tt.expectAllow && len(result.Violations) == 0 {
				t.Error("expected violations for denied run, got none")
			}
		})
	}
}
