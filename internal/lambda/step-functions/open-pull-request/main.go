package main

import (
	"context"
	"fmt"
	"os"

	"github.com/aws/aws-lambda-go/lambda"
	"github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb"
	"github.com/rs/zerolog"
	"github.com/urfave/cli/v2"

	"github.com/savaki/release-pipeline/internal/bump"
	"github.com/savaki/release-pipeline/internal/dao/rundao"
	"github.com/savaki/release-pipeline/internal/di"
	"github.com/savaki/release-pipeline/internal/models"
	"github.com/savaki/release-pipeline/internal/pipeline"
	"github.com/savaki/release-pipeline/internal/services"
)

type Handler struct {
	steps  *pipeline.Steps
	github *services.GitHubService
}

type PullRequestResult struct {
	Number int    `json:"number"`
	URL    string `json:"url"`
}

func NewHandler(env string) (*Handler, error) {
	ctx := context.TODO()

	cfg, err := config.LoadDefaultConfig(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to load AWS config: %w", err)
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
		return nil, fmt.Errorf("failed to load configuration: %w", err)
	}

	secrets, err := services.NewSecretsManagerService()
	if err != nil {
		return nil, fmt.Errorf("failed to create secrets manager service: %w", err)
	}

	token, err := secrets.GetGitHubToken(ctx, appConfig.GitHubTokenSecretName)
	if err != nil {
		return nil, fmt.Errorf("failed to load GitHub token: %w", err)
	}

	dynamoClient := dynamodb.NewFromConfig(cfg)
	runs := rundao.New(dynamoClient, rundao.TableName(env))

	github := services.NewGitHubService(token)
	steps := pipeline.NewSteps(github, nil, pipeline.NewRunRecorder(runs))

	return &Handler{steps: steps, github: github}, nil
}

// loadLabels fetches .release.yml at the tagged commit for the PR
// labels. The already-at-version check does not apply here since the
// bump happened on the release branch, not at the tagged commit.
func (h *Handler) loadLabels(ctx context.Context, input *models.PipelineInput) (*bump.Config, error) {
	file, err := h.github.GetContent(ctx, input.Owner, input.Repo, bump.ConfigFileName, input.CommitSHA)
	if err != nil {
		return nil, fmt.Errorf("failed to fetch %s: %w", bump.ConfigFileName, err)
	}
	return bump.Load([]byte(file.Content))
}

// HandleOpenPullRequest opens the release PR against the base branch
// and records it on the run
func (h *Handler) HandleOpenPullRequest(ctx context.Context, input *models.PipelineInput) (*PullRequestResult, error) {
	logger := zerolog.Ctx(ctx)

	logger.Info().
		Str("owner", input.Owner).
		Str("repo", input.Repo).
		Str("release_branch", input.ReleaseBranch).
		Str("base_branch", input.BaseBranch).
		Msg("Opening release pull request")

	cfg, err := h.loadLabels(ctx, input)
	if err != nil {
		return nil, err
	}

	pr, err := h.steps.OpenPullRequest(ctx, cfg, input)
	if err != nil {
		return nil, err
	}

	return &PullRequestResult{
		Number: pr.Number,
		URL:    pr.HTMLURL,
	}, nil
}

func main() {
	logger := di.ProvideLogger().With().Str("lambda", "open-pull-request").Logger()

	env := os.Getenv("ENV")
	if env == "" {
		env = os.Getenv("ENVIRONMENT")
	}
	if env == "" {
		logger.Error().Msg("ENV or ENVIRONMENT variable is required")
		os.Exit(1)
	}

	if os.Getenv("AWS_LAMBDA_RUNTIME_API") != "" {
		handler, err := NewHandler(env)
		if err != nil {
			logger.Error().Err(err).Msg("Failed to create handler")
			os.Exit(1)
		}

		wrappedHandler := func(ctx context.Context, input *models.PipelineInput) (*PullRequestResult, error) {
			ctx = logger.WithContext(ctx)
			return handler.HandleOpenPullRequest(ctx, input)
		}
		lambda.Start(wrappedHandler)
		return
	}

	app := &cli.App{
		Name:  "open-pull-request",
		Usage: "Open the release pull request for a run",
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:     "owner",
				Usage:    "Repository owner",
				Required: true,
			},
			&cli.StringFlag{
				Name:     "repo",
				Usage:    "Repository name",
				Required: true,
			},
			&cli.StringFlag{
				Name:     "tag",
				Usage:    "Release tag, e.g. v1.2.3",
				Required: true,
			},
			&cli.StringFlag{
				Name:     "version",
				Usage:    "Version derived from the tag",
				Required: true,
			},
			&cli.StringFlag{
				Name:     "commit-sha",
				Usage:    "Commit the release tag points at",
				Required: true,
			},
			&cli.StringFlag{
				Name:     "base-branch",
				Usage:    "Pull request target branch",
				Required: true,
			},
			&cli.StringFlag{
				Name:     "release-branch",
				Usage:    "Release branch name",
				Required: true,
			},
			&cli.StringFlag{
				Name:     "sk",
				Usage:    "Run sort key (KSUID)",
				Required: true,
			},
		},
		Action: func(c *cli.Context) error {
			handler, err := NewHandler(env)
			if err != nil {
				return fmt.Errorf("failed to create handler: %w", err)
			}

			input := &models.PipelineInput{
				Owner:         c.String("owner"),
				Repo:          c.String("repo"),
				Tag:           c.String("tag"),
				Version:       c.String("version"),
				CommitSHA:     c.String("commit-sha"),
				BaseBranch:    c.String("base-branch"),
				ReleaseBranch: c.String("release-branch"),
				SK:            c.String("sk"),
			}

			ctx := logger.WithContext(context.Background())
			result, err := handler.HandleOpenPullRequest(ctx, input)
			if err != nil {
				return err
			}

			logger.Info().
				Int("number", result.Number).
				Str("url", result.URL).
				Msg("Opened pull request")
			return nil
		},
	}

	if err := app.Run(os.Args); err != nil {
		logger.Error().Err(err).Msg("Application error")
		os.Exit(1)
	}
}
