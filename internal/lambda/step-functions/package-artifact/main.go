package main

import (
	"context"
	"encoding/json"
	"fmt"
	"os"

	"github.com/aws/aws-lambda-go/lambda"
	"github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/rs/zerolog"
	"github.com/urfave/cli/v2"

	"github.com/savaki/release-pipeline/internal/dao/rundao"
	"github.com/savaki/release-pipeline/internal/di"
	"github.com/savaki/release-pipeline/internal/models"
	"github.com/savaki/release-pipeline/internal/pipeline"
	"github.com/savaki/release-pipeline/internal/sdist"
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

	if appConfig.ArtifactBucket == "" {
		return nil, fmt.Errorf("ARTIFACT_BUCKET required")
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
	store := sdist.NewStore(s3.NewFromConfig(cfg), appConfig.ArtifactBucket)
	steps := pipeline.NewSteps(github, store, pipeline.NewRunRecorder(runs))

	return &Handler{steps: steps}, nil
}

// HandlePackageArtifact builds the source distribution from the release
// branch and uploads it to the artifact bucket with its checksum
func (h *Handler) HandlePackageArtifact(ctx context.Context, input *models.PipelineInput) (*models.PipelineInput, error) {
	logger := zerolog.Ctx(ctx)

	logger.Info().
		Str("owner", input.Owner).
		Str("repo", input.Repo).
		Str("release_branch", input.ReleaseBranch).
		Msg("Packaging source distribution")

	if err := h.steps.PackageArtifact(ctx, input); err != nil {
		return nil, err
	}

	logger.Info().
		Str("bucket", input.ArtifactBucket).
		Str("key", input.ArtifactKey).
		Msg("Artifact uploaded")

	return input, nil
}

func main() {
	logger := di.ProvideLogger().With().Str("lambda", "package-artifact").Logger()

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
			return handler.HandlePackageArtifact(ctx, input)
		}
		lambda.Start(wrappedHandler)
		return
	}

	app := &cli.App{
		Name:  "package-artifact",
		Usage: "Build and upload the source distribution for a release",
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
				ReleaseBranch: c.String("release-branch"),
				SK:            c.String("sk"),
			}

			ctx := logger.WithContext(context.Background())
			result, err := handler.HandlePackageArtifact(ctx, input)
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
