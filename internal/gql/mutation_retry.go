package gql

import (
	"context"
	"fmt"
	"strings"

	"github.com/rs/zerolog"
	"github.com/segmentio/ksuid"

	"github.com/savaki/release-pipeline/internal/dao/rundao"
	"github.com/savaki/release-pipeline/internal/models"
)

// Retry resolves the retry mutation - re-runs a finished release.
// Returns the Query type to allow chaining queries after the mutation.
func (r *Resolver) Retry(ctx context.Context, args struct{ RunId string }) (*Resolver, error) {
	logger := zerolog.Ctx(ctx)

	logger.Info().Str("runId", args.RunId).Msg("Retry mutation called")

	id := rundao.ID(args.RunId)
	run, err := r.runs.Find(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("failed to get run: %w", err)
	}

	if !run.Status.Terminal() {
		return nil, fmt.Errorf("run %s is still %s, only finished runs can be retried", args.RunId, run.Status)
	}

	input := models.PipelineInput{
		Owner:          run.Owner,
		Repo:           run.Repo,
		Tag:            run.Tag,
		Version:        run.Version,
		BaseBranch:     run.BaseBranch,
		ReleaseBranch:  run.ReleaseBranch,
		CommitSHA:      run.CommitSHA,
		ArtifactBucket: r.appConfig.ArtifactBucket,
	}

	result, err := r.validator.ValidateRun(input, run.BaseBranch)
	if err != nil {
		return nil, fmt.Errorf("failed to evaluate release policy: %w", err)
	}
	if !result.Allowed {
		return nil, fmt.Errorf("release policy denied retry: %s", strings.Join(result.Violations, "; "))
	}

	// fresh KSUID avoids execution name conflicts with the original run
	sk := ksuid.New().String()
	input.SK = sk

	logger.Info().
		Str("owner", run.Owner).
		Str("repo", run.Repo).
		Str("tag", run.Tag).
		Str("original_sk", run.SK).
		Str("new_sk", sk).
		Msg("Retrying release run")

	pk := rundao.NewPK(run.Owner, run.Repo)
	_, err = r.runs.Create(ctx, rundao.CreateInput{
		Owner:         run.Owner,
		Repo:          run.Repo,
		SK:            sk,
		Tag:           run.Tag,
		Version:       run.Version,
		BaseBranch:    run.BaseBranch,
		ReleaseBranch: run.ReleaseBranch,
		CommitSHA:     run.CommitSHA,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create run record for retry: %w", err)
	}

	executionArn, err := r.orchestrator.StartExecution(ctx, input)
	if err != nil {
		status := rundao.RunStatusFailed
		errorMsg := fmt.Sprintf("Failed to start step function: %v", err)
		if updateErr := r.runs.UpdateStatus(ctx, rundao.UpdateInput{
			PK:       pk,
			SK:       sk,
			Status:   &status,
			ErrorMsg: &errorMsg,
		}); updateErr != nil {
			logger.Error().Err(updateErr).Msg("Failed to update run status")
		}
		return nil, fmt.Errorf("failed to start execution: %w", err)
	}

	logger.Info().
		Str("execution_arn", executionArn).
		Str("owner", run.Owner).
		Str("repo", run.Repo).
		Str("sk", sk).
		Msg("Successfully started retry execution")

	return r, nil
}
