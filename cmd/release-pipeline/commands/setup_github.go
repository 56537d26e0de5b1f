package commands

import (
	"context"
	"fmt"
	"strings"

	"github.com/rs/zerolog"
	"github.com/urfave/cli/v2"

	"github.com/savaki/release-pipeline/internal/constants"
	"github.com/savaki/release-pipeline/internal/services"
)

// SetupGitHubCommand returns the github command for wiring a repository
// to the pipeline
func SetupGitHubCommand(logger *zerolog.Logger) *cli.Command {
	return &cli.Command{
		Name:  "github",
		Usage: "Create an IAM role for GitHub Actions OIDC authentication",
		Description: `Configure a GitHub repository for the release pipeline.

This command creates an IAM role for GitHub Actions OIDC authentication
scoped to the repository's artifact prefix, and stores the role ARN and
artifact bucket as repository secrets so release workflows can fetch
artifacts without long-lived credentials.`,
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:     "role-name",
				Aliases:  []string{"n"},
				Usage:    "IAM role name to create (defaults to 'release-pipeline-{repo}' if not provided)",
				Required: false,
				EnvVars:  []string{"RELEASE_ROLE_NAME"},
			},
			&cli.StringFlag{
				Name:     "repo",
				Aliases:  []string{"r"},
				Usage:    "Repository in format 'owner/repo'",
				Required: true,
				EnvVars:  []string{"GITHUB_REPO"},
			},
			&cli.StringFlag{
				Name:     "bucket",
				Aliases:  []string{"b"},
				Usage:    "S3 artifact bucket name",
				Required: true,
				EnvVars:  []string{"S3_ARTIFACT_BUCKET"},
			},
			&cli.StringFlag{
				Name:     "github-token-secret",
				Aliases:  []string{"t"},
				Usage:    "Path to GitHub token in AWS Secrets Manager",
				Required: true,
				EnvVars:  []string{"GITHUB_TOKEN_SECRET"},
			},
		},
		Action: setupGitHubAction,
	}
}

// setupGitHubAction creates an IAM role for GitHub Actions OIDC
// authentication and stores the repository secrets
func setupGitHubAction(c *cli.Context) error {
	logger := zerolog.Ctx(c.Context)

	roleName := c.String("role-name")
	repoFullPath := c.String("repo")
	bucket := c.String("bucket")
	githubTokenSecret := c.String("github-token-secret")

	parts := strings.SplitN(repoFullPath, "/", 2)
	if len(parts) != 2 {
		return fmt.Errorf("repo must be in format 'owner/repo', got: %s", repoFullPath)
	}
	owner := parts[0]
	repo := parts[1]

	if roleName == "" {
		roleName = constants.ReleaseRoleNamePrefix + repo
		logger.Info().
			Str("role_name", roleName).
			Msg("No role name provided, using default")
	}

	logger.Info().
		Str("role_name", roleName).
		Str("owner", owner).
		Str("repo", repo).
		Str("bucket", bucket).
		Msg("Creating GitHub OIDC role")

	iamService, err := services.NewIAMService()
	if err != nil {
		return fmt.Errorf("failed to create IAM service: %w", err)
	}

	roleARN, err := iamService.CreateGitHubOIDCRole(context.Background(), roleName, owner, repo, bucket)
	if err != nil {
		return fmt.Errorf("failed to create/update GitHub OIDC role: %w", err)
	}

	logger.Info().
		Str("role_name", roleName).
		Str("role_arn", roleARN).
		Msg("Successfully created/updated GitHub OIDC role")

	secretsService, err := services.NewSecretsManagerService()
	if err != nil {
		return fmt.Errorf("failed to create Secrets Manager service: %w", err)
	}

	githubToken, err := secretsService.GetGitHubToken(context.Background(), githubTokenSecret)
	if err != nil {
		return fmt.Errorf("failed to get GitHub token from Secrets Manager: %w", err)
	}

	githubService := services.NewGitHubService(githubToken)

	logger.Info().
		Str("owner", owner).
		Str("repo", repo).
		Msg("Creating/updating role ARN secret in GitHub")
	if err := githubService.CreateOrUpdateSecret(context.Background(), owner, repo, constants.RoleARNSecretName, roleARN); err != nil {
		return fmt.Errorf("failed to create/update %s secret: %w", constants.RoleARNSecretName, err)
	}

	logger.Info().
		Str("owner", owner).
		Str("repo", repo).
		Str("bucket", bucket).
		Msg("Creating/updating artifact bucket secret in GitHub")
	if err := githubService.CreateOrUpdateSecret(context.Background(), owner, repo, constants.ArtifactBucketSecretName, bucket); err != nil {
		return fmt.Errorf("failed to create/update %s secret: %w", constants.ArtifactBucketSecretName, err)
	}

	fmt.Printf("✓ IAM role %s created/updated successfully\n", roleName)
	fmt.Printf("✓ Role ARN: %s\n", roleARN)
	fmt.Printf("✓ IAM policy grants S3 access to: %s/%s/%s/*\n", bucket, owner, repo)
	fmt.Printf("✓ Trust policy allows GitHub Actions from: %s/%s\n", owner, repo)
	fmt.Printf("✓ GitHub secrets created/updated in: %s/%s\n", owner, repo)
	fmt.Printf("  - %s\n", constants.RoleARNSecretName)
	fmt.Printf("  - %s\n", constants.ArtifactBucketSecretName)

	fmt.Printf("\n")
	fmt.Printf("🔐 Using OIDC authentication (no long-lived credentials needed)\n")
	fmt.Printf("ℹ️  This tool is idempotent - safe to run multiple times\n")

	return nil
}
