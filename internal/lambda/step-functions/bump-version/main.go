package main

import (
	"context"
	"encoding/json"
	"fmt"
	"os"

	"github.com/aws/aws-lambda-go/lambda"
	"github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb"
	"github.com/rs/zerolog"
	"github.com/urfave/cli/v2"

	"github.com/savaki/release-pipeline/internal/dao/rundao"
	"github.com/savaki/release-pipeline/internal/di"
	"github.com/savaki/release-pipeline/internal/models"
	"github.com/savaki/release-pipeline/internal/pipeline"
	"github.com/savaki/release-pipeline/internal/services"
)

type Handler struct {
	steps *pipeline.Steps
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

	return &Handler{steps: steps}, nil
}

// HandleBumpVersion derives the version from the release tag, creates
// the release branch, and rewrites the configured version strings. The
// enriched input flows to the downstream states.
func (h *Handler) HandleBumpVersion(ctx context.Context, input *models.PipelineInput) (*models.PipelineInput, error) {
	logger := zerolog.Ctx(ctx)

	logger.Info().
		Str("owner", input.Owner).
		Str("repo", input.Repo).
		Str("tag", input.Tag).
		Msg("Bumping version strings")

	if err := h.steps.DeriveVersion(ctx, input); err != nil {
		return nil, err
	}

	cfg, err := h.steps.LoadConfig(ctx, input)
	if err != nil {
		return nil, err
	}

	if err := h.steps.CreateReleaseBranch(ctx, input); err != nil {
		return nil, err
	}

	if err := h.steps.BumpFiles(ctx, cfg, input); err != nil {
		return nil, err
	}

	logger.Info().
		Str("version", input.Version).
		Str("release_branch", input.ReleaseBranch).
		Msg("Version bump complete")

	return input, nil
}

func main() {
	logger := di.ProvideLogger().With().Str("lambda", "bump-version").Logger()

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

		wrappedHandler := func(ctx context.Context, input *models.PipelineInput) (*models.PipelineInput, error) {
			ctx = logger.WithContext(ctx)
			return handler.HandleBumpVersion(ctx, input)
		}
		lambda.Start(wrappedHandler)
		return
	}

	app := &cli.App{
		Name:  "bump-version",
		Usage: "Create the release branch and bump version strings",
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
				Owner: c.String("owner"),
				Repo:  c.String("repo"),
				Tag:   c.String("tag"),
				SK:    c.String("sk"),
			}

			ctx := logger.WithContext(context.Background())
			result, err := handler.HandleBumpVersion(ctx, input)
			if err != nil {
				return err
			}

			data, _ := json.MarshalIndent(result, "", "  ")
			fmt.Println(string(data))
			return nil
		},
	}

	if err := app.Run(os.Args); err != nil {
		logger.Error().Err(err).Msg("Application error")
		os.Exit(1)
	}
}
