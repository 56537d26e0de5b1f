package commands

import (
	"context"
	"fmt"
	"strings"

	"github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/rs/zerolog"
	"github.com/urfave/cli/v2"

	"github.com/savaki/release-pipeline/internal/models"
	"github.com/savaki/release-pipeline/internal/pipeline"
	"github.com/savaki/release-pipeline/internal/sdist"
	"github.com/savaki/release-pipeline/internal/services"
)

// RunCommand returns the run command for executing a release pipeline
// locally, outside of Step Functions
func RunCommand(logger *zerolog.Logger) *cli.Command {
	return &cli.Command{
		Name:  "run",
		Usage: "Run a release pipeline locally for a tagged repository",
		Description: `Run the full release pipeline in-process: derive the version from the
tag, create the release branch, bump version strings, build and upload
the source distribution, and open the release pull request.

Run progress is not recorded in DynamoDB; this is intended for trying
out a repository's .release.yml before wiring up the webhook.`,
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:     "repo",
				Aliases:  []string{"r"},
				Usage:    "Repository in format 'owner/repo'",
				Required: true,
				EnvVars:  []string{"GITHUB_REPO"},
			},
			&cli.StringFlag{
				Name:     "tag",
				Usage:    "Release tag, e.g. v1.2.3",
				Required: true,
			},
			&cli.StringFlag{
				Name:     "bucket",
				Aliases:  []string{"b"},
				Usage:    "S3 bucket for the distribution artifact",
				Required: true,
				EnvVars:  []string{"S3_ARTIFACT_BUCKET"},
			},
			&cli.StringFlag{
				Name:    "github-token",
				Usage:   "GitHub token with repo access",
				EnvVars: []string{"GITHUB_TOKEN"},
			},
			&cli.StringFlag{
				Name:    "github-token-secret",
				Usage:   "Path to GitHub token in AWS Secrets Manager (used when --github-token is not set)",
				EnvVars: []string{"GITHUB_TOKEN_SECRET"},
			},
		},
		Action: runAction,
	}
}

func resolveGitHubToken(ctx context.Context, c *cli.Context) (string, error) {
	if token := c.String("github-token"); token != "" {
		return token, nil
	}

	secretPath := c.String("github-token-secret")
	if secretPath == "" {
		return "", fmt.Errorf("either --github-token or --github-token-secret is required")
	}

	secretsService, err := services.NewSecretsManagerService()
	if err != nil {
		return "", fmt.Errorf("failed to create Secrets Manager service: %w", err)
	}
	return secretsService.GetGitHubToken(ctx, secretPath)
}

// runAction executes the release pipeline in-process
func runAction(c *cli.Context) error {
	ctx := c.Context
	logger := zerolog.Ctx(ctx)

	parts := strings.SplitN(c.String("repo"), "/", 2)
	if len(parts) != 2 {
		return fmt.Errorf("repo must be in format 'owner/repo', got: %s", c.String("repo"))
	}
	owner, repo := parts[0], parts[1]

	token, err := resolveGitHubToken(ctx, c)
	if err != nil {
		return err
	}

	cfg, err := config.LoadDefaultConfig(ctx)
	if err != nil {
		return fmt.Errorf("failed to load AWS config: %w", err)
	}

	github := services.NewGitHubService(token)
	store := sdist.NewStore(s3.NewFromConfig(cfg), c.String("bucket"))
	steps := pipeline.NewSteps(github, store, nil)

	p, err := pipeline.New(steps.Jobs()...)
	if err != nil {
		return fmt.Errorf("failed to assemble pipeline: %w", err)
	}

	input := &models.PipelineInput{
		Owner: owner,
		Repo:  repo,
		Tag:   c.String("tag"),
	}

	logger.Info().
		Str("owner", owner).
		Str("repo", repo).
		Str("tag", input.Tag).
		Msg("Running release pipeline")

	if err := p.Run(ctx, input); err != nil {
		return err
	}

	fmt.Printf("✓ Released %s %s\n", c.String("repo"), input.Version)
	fmt.Printf("✓ Release branch: %s\n", input.ReleaseBranch)
	fmt.Printf("✓ Artifact: s3://%s/%s\n", input.ArtifactBucket, input.ArtifactKey)

	return nil
}
