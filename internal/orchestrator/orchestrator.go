package orchestrator

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/sfn"

	"github.com/savaki/release-pipeline/internal/dao/rundao"
	"github.com/savaki/release-pipeline/internal/models"
)

// SFNAPI is the subset of the Step Functions client the orchestrator uses
type SFNAPI interface {
	StartExecution(ctx context.Context, params *sfn.StartExecutionInput, optFns ...func(*sfn.Options)) (*sfn.StartExecutionOutput, error)
}

// Orchestrator manages Step Functions execution lifecycle
type Orchestrator struct {
	sfnClient       SFNAPI
	stateMachineArn string
	dao             *rundao.DAO
}

// New creates a new Orchestrator instance
func New(sfnClient SFNAPI, stateMachineArn string, dao *rundao.DAO) *Orchestrator {
	return &Orchestrator{
		sfnClient:       sfnClient,
		stateMachineArn: stateMachineArn,
		dao:             dao,
	}
}

// ExecutionName returns the Step Functions execution name for a run.
// Execution names must be unique per state machine; the KSUID sort key
// guarantees that.
func ExecutionName(owner, repo, sk string) string {
	return fmt.Sprintf("%s-%s-%s", owner, repo, sk)
}

// StartExecution starts a Step Functions execution and atomically updates
// the run record to IN_PROGRESS status with the execution ARN
func (o *Orchestrator) StartExecution(ctx context.Context, input models.PipelineInput) (string, error) {
	inputJSON, err := json.Marshal(input)
	if err != nil {
		return "", fmt.Errorf("failed to marshal execution input: %w", err)
	}

	result, err := o.sfnClient.StartExecution(ctx, &sfn.StartExecutionInput{
		StateMachineArn: aws.String(o.stateMachineArn),
		Name:            aws.String(ExecutionName(input.Owner, input.Repo, input.SK)),
		Input:           aws.String(string(inputJSON)),
	})
	if err != nil {
		return "", fmt.Errorf("failed to start step function execution: %w", err)
	}

	executionArn := aws.ToString(result.ExecutionArn)

	pk := rundao.NewPK(input.Owner, input.Repo)
	if err := o.dao.StartExecution(ctx, pk, input.SK, executionArn); err != nil {
		return "", fmt.Errorf("failed to update run status: %w", err)
	}

	return executionArn, nil
}
