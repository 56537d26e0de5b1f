package policy

import (
	"context"
	_ "embed"
	"fmt"

	"github.com/open-policy-agent/opa/rego"
	"github.com/open-policy-agent/opa/storage/inmem"

	"github.com/savaki/release-pipeline/internal/models"
)

//go:embed release.rego
var policyContent string

type Validator struct {
	prepared rego.PreparedEvalQuery
}

type ValidationResult struct {
	Allowed    bool     `json:"allowed"`
	Violations []string `json:"violations,omitempty"`
}

func NewValidator() (*Validator, error) {
	query, err := rego.New(
		rego.Query("data.release.allow"),
		rego.Module("release.rego", policyContent),
	).PrepareForEval(context.Background())
	if err != nil {
		return nil, fmt.Errorf("failed to prepare policy query: %w", err)
	}

	return &Validator{
		prepared: query,
	}, nil
}

// ValidateRun evaluates the release policy against a pipeline input.
// protectedBranch names the branch prerelease versions may not target;
// empty disables that rule.
func (v *Validator) ValidateRun(input models.PipelineInput, protectedBranch string) (*ValidationResult, error) {
	ctx := context.Background()

	policyInput := map[string]interface{}{
		"owner":          input.Owner,
		"repo":           input.Repo,
		"tag":            input.Tag,
		"version":        input.Version,
		"base_branch":    input.BaseBranch,
		"release_branch": input.ReleaseBranch,
	}

	data := map[string]interface{}{
		"protected_branch": protectedBranch,
	}

	store := inmem.NewFromObject(data)

	query, err := rego.New(
		rego.Query("data.release.allow"),
		rego.Module("release.rego", policyContent),
		rego.Store(store),
	).PrepareForEval(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to prepare policy query with data: %w", err)
	}

	results, err := query.Eval(ctx, rego.EvalInput(policyInput))
	if err != nil {
		return nil, fmt.Errorf("failed to evaluate policy: %w", err)
	}

	if len(results) == 0 {
		return &ValidationResult{
			Allowed:    false,
			Violations: []string{"policy evaluation returned no results"},
		}, nil
	}

	allowed, ok := results[0].Expressions[0].Value.(bool)
	if !ok {
		return &ValidationResult{
			Allowed:    false,
			Violations: []string{"policy evaluation returned non-boolean result"},
		}, nil
	}

	result := &ValidationResult{
		Allowed: allowed,
	}

	if !allowed {
		violations, err := v.getViolations(ctx, policyInput, data)
		if err != nil {
			return nil, fmt.Errorf("failed to get violations: %w", err)
		}
		result.Violations = violations
	}

	return result, nil
}

func (v *Validator) getViolations(ctx context.Context, input, data map[string]interface{}) ([]string, error) {
	store := inmem.NewFromObject(data)

	violationQuery, err := rego.New(
		rego.Query("data.release.violations"),
		rego.Module("release.rego", policyContent),
		rego.Store(store),
	).PrepareForEval(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to prepare violations query: %w", err)
	}

	results, err := violationQuery.Eval(ctx, rego.EvalInput(input))
	if err != nil {
		return nil, fmt.Errorf("failed to evaluate violations: %w", err)
	}

	if len(results) == 0 {
		return []string{"unknown policy violation"}, nil
	}

	violationsInterface := results[0].Expressions[0].Value
	if violationsInterface == nil {
		return []string{"unknown policy violation"}, nil
	}

	var violations []string
	switch value := violationsInterface.(type) {
	case []interface{}:
		for _, violation := range value {
			if str, ok := violation.(string); ok {
				violations = append(violations, str)
			}
		}
	case map[string]interface{}:
		// Rego sets arrive as maps
		for violation := range value {
			violations = append(violations, violation)
		}
	}

	if len(violations) == 0 {
		return []string{"policy validation failed but no specific violations found"}, nil
	}

	return violations, nil
}
