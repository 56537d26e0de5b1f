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

	"github.com/savaki/release-pipeline/internal/dao/lockdao"
	"github.com/savaki/release-pipeline/internal/dao/rundao"
	"github.com/savaki/release-pipeline/internal/di"
	"github.com/savaki/release-pipeline/internal/services"
)

type Handler struct {
	dbService *services.DynamoDBService
	locks     *lockdao.DAO
}

type UpdateStatusInput struct {
	Owner    string  `json:"owner"`
	Repo     string  `json:"repo"`
	SK       string  `json:"sk"` // KSUID - DynamoDB sort key
	Status   string  `json:"status"`
	ErrorMsg *string `json:"error_msg,omitempty"`
}

func NewHandler(env string) (*Handler, error) {
	dbService, err := services.NewDynamoDBService(env)
	if err != nil {
		return nil, fmt.Errorf("failed to create DynamoDB service: %w", err)
	}

	cfg, err := config.LoadDefaultConfig(context.TODO())
	if err != nil {
		return nil, fmt.Errorf("failed to load AWS config: %w", err)
	}
	locks := lockdao.New(dynamodb.NewFromConfig(cfg), lockdao.TableName(env))

	return &Handler{
		dbService: dbService,
		locks:     locks,
	}, nil
}

func (h *Handler) HandleUpdateRunStatus(ctx context.Context, input *UpdateStatusInput) error {
	logger := zerolog.Ctx(ctx)

	logger.Info().
		Str("owner", input.Owner).
		Str("repo", input.Repo).
		Str("sk", input.SK).
		Str("status", input.Status).
		Msg("Updating run status")

	status, err := rundao.ParseStatus(input.Status)
	if err != nil {
		return err
	}
	pk := rundao.NewPK(input.Owner, input.Repo)

	_, err = h.dbService.UpdateRunStatus(ctx, rundao.UpdateInput{
		PK:       pk,
		SK:       input.SK,
		Status:   &status,
		ErrorMsg: input.ErrorMsg,
	})
	if err != nil {
		return fmt.Errorf("failed to update run status: %w", err)
	}

	// terminal states free the per-repository release lock
	if status.Terminal() {
		id := lockdao.NewID(input.Owner, input.Repo)
		if err := h.locks.Release(ctx, lockdao.ReleaseInput{ID: id, RunID: input.SK}); err != nil {
			logger.Error().Err(err).Msg("Failed to release lock")
		}
	}

	logger.Info().
		Str("owner", input.Owner).
		Str("repo", input.Repo).
		Str("sk", input.SK).
		Msg("Successfully updated run status")

	return nil
}

func main() {
	logger := di.ProvideLogger().With().Str("lambda", "update-run-status").Logger()

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

		wrappedHandler := func(ctx context.Context, input *UpdateStatusInput) error {
			ctx = logger.WithContext(ctx)
			return handler.HandleUpdateRunStatus(ctx, input)
		}
		lambda.Start(wrappedHandler)
		return
	}

	handler, err := NewHandler(env)
	if err != nil {
		logger.Error().Err(err).Msg("Failed to create handler")
		os.Exit(1)
	}

	app := &cli.App{
		Name:  "update-run-status",
		Usage: "Update release run status in DynamoDB",
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
				Name:     "sk",
				Usage:    "Sort key (KSUID)",
				Required: true,
			},
			&cli.StringFlag{
				Name:     "status",
				Usage:    "Run status (PENDING, IN_PROGRESS, SUCCESS, FAILED)",
				Required: true,
			},
			&cli.StringFlag{
				Name:  "error-msg",
				Usage: "Error message (optional)",
			},
		},
		Action: func(c *cli.Context) error {
			input := &UpdateStatusInput{
				Owner:  c.String("owner"),
				Repo:   c.String("repo"),
				SK:     c.String("sk"),
				Status: c.String("status"),
			}

			if errorMsg := c.String("error-msg"); errorMsg != "" {
				input.ErrorMsg = &errorMsg
			}

			ctx := logger.WithContext(context.Background())
			return handler.HandleUpdateRunStatus(ctx, input)
		},
	}

	if err := app.Run(os.Args); err != nil {
		logger.Error().Err(err).Msg("Application error")
		os.Exit(1)
	}
}
