package commands

import (
	"fmt"
	"os"
	"strings"

	"github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb"
	"github.com/aws/aws-sdk-go-v2/service/sfn"
	"github.com/rs/zerolog"
	"github.com/segmentio/ksuid"
	"github.com/urfave/cli/v2"

	"github.com/savaki/release-pipeline/internal/dao/rundao"
	"github.com/savaki/release-pipeline/internal/di"
	"github.com/savaki/release-pipeline/internal/models"
	"github.com/savaki/release-pipeline/internal/orchestrator"
	"github.com/savaki/release-pipeline/internal/policy"
	"github.com/savaki/release-pipeline/internal/services"
)

// RetryCommand returns the retry command for re-running a finished run
func RetryCommand(logger *zerolog.Logger) *cli.Command {
	return &cli.Command{
		Name:  "retry",
		Usage: "Retry a finished release run",
		Description: `Create a new run from a finished one and start a fresh Step Functions
execution. The original run is left untouched; the retry gets its own
KSUID and run record.`,
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:    "env",
				Usage:   "Environment name",
				Value:   "dev",
				EnvVars: []string{"ENV", "ENVIRONMENT"},
			},
			&cli.StringFlag{
				Name:     "run-id",
				Usage:    "Run ID in format '{owner}/{repo}:{ksuid}'",
				Required: true,
			},
		},
		Action: retryAction,
	}
}

func retryAction(c *cli.Context) error {
	ctx := c.Context
	logger := zerolog.Ctx(ctx)
	env := c.String("env")

	cfg, err := config.LoadDefaultConfig(ctx)
	if err != nil {
		return fmt.Errorf("failed to load AWS config: %w", err)
	}

	var paramStore services.ParameterStore
	if os.Getenv("DISABLE_SSM") == "true" {
		paramStore = services.NewEnvParameterStore(env)
	} else {
		ssmClient := di.ProvideSSMClient(cfg)
		paramStore = services.NewSSMParameterStore(ssmClient, env)
	}

	appConfig, err := paramStore.GetConfig(ctx)
	if err != nil {
		return fmt.Errorf("failed to load configuration: %w", err)
	}
	if appConfig.StateMachineArn == "" {
		return fmt.Errorf("STATE_MACHINE_ARN required")
	}

	runs := rundao.New(dynamodb.NewFromConfig(cfg), rundao.TableName(env))
	orch := orchestrator.New(sfn.NewFromConfig(cfg), appConfig.StateMachineArn, runs)

	run, err := runs.Find(ctx, rundao.ID(c.String("run-id")))
	if err != nil {
		return fmt.Errorf("failed to find run: %w", err)
	}

	if !run.Status.Terminal() {
		return fmt.Errorf("run %s is %s; only finished runs can be retried", run.GetID(), run.Status)
	}

	input := models.PipelineInput{
		Owner:          run.Owner,
		Repo:           run.Repo,
		Tag:            run.Tag,
		Version:        run.Version,
		BaseBranch:     run.BaseBranch,
		ReleaseBranch:  run.ReleaseBranch,
		CommitSHA:      run.CommitSHA,
		ArtifactBucket: appConfig.ArtifactBucket,
	}

	validator, err := policy.NewValidator()
	if err != nil {
		return fmt.Errorf("failed to create policy validator: %w", err)
	}
	result, err := validator.ValidateRun(input, run.BaseBranch)
	if err != nil {
		return fmt.Errorf("policy evaluation failed: %w", err)
	}
	if !result.Allowed {
		return fmt.Errorf("retry denied by policy: %s", strings.Join(result.Violations, "; "))
	}

	input.SK = ksuid.New().String()
	created, err := runs.Create(ctx, rundao.CreateInput{
		Owner:         run.Owner,
		Repo:          run.Repo,
		SK:            input.SK,
		Tag:           run.Tag,
		Version:       run.Version,
		BaseBranch:    run.BaseBranch,
		ReleaseBranch: run.ReleaseBranch,
		CommitSHA:     run.CommitSHA,
	})
	if err != nil {
		return fmt.Errorf("failed to create retry run: %w", err)
	}

	executionArn, err := orch.StartExecution(ctx, input)
	if err != nil {
		return fmt.Errorf("failed to start execution: %w", err)
	}

	logger.Info().
		Str("run_id", created.GetID().String()).
		Str("execution_arn", executionArn).
		Msg("Started retry execution")

	fmt.Printf("✓ Created run %s\n", created.GetID())
	fmt.Printf("✓ Execution: %s\n", executionArn)
	return nil
}
