package main

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"net/http"
	"os"

	"github.com/aws/aws-lambda-go/events"
	"github.com/aws/aws-lambda-go/lambda"
	"github.com/rs/zerolog"
	"github.com/segmentio/ksuid"
	"github.com/urfave/cli/v2"

	"github.com/savaki/release-pipeline/internal/dao/rundao"
	"github.com/savaki/release-pipeline/internal/di"
	"github.com/savaki/release-pipeline/internal/models"
	"github.com/savaki/release-pipeline/internal/services"
	"github.com/savaki/release-pipeline/internal/tagref"
)

// runCreator is the slice of DynamoDBService the webhook needs
type runCreator interface {
	PutRun(ctx context.Context, input rundao.CreateInput) (rundao.Record, error)
}

type Handler struct {
	runs          runCreator
	webhookSecret string
}

func NewHandler(runs runCreator, webhookSecret string) *Handler {
	return &Handler{
		runs:          runs,
		webhookSecret: webhookSecret,
	}
}

func respond(status int, message string) events.APIGatewayV2HTTPResponse {
	body, _ := json.Marshal(map[string]string{"message": message})
	return events.APIGatewayV2HTTPResponse{
		StatusCode: status,
		Headers:    map[string]string{"Content-Type": "application/json"},
		Body:       string(body),
	}
}

// HandleRequest processes a GitHub release webhook. Published releases
// with a valid version tag become PENDING run records; everything else
// is acknowledged and ignored.
func (h *Handler) HandleRequest(ctx context.Context, request events.APIGatewayV2HTTPRequest) (events.APIGatewayV2HTTPResponse, error) {
	logger := zerolog.Ctx(ctx)

	body := []byte(request.Body)
	if request.IsBase64Encoded {
		decoded, err := base64.StdEncoding.DecodeString(request.Body)
		if err != nil {
			return respond(http.StatusBadRequest, "invalid body encoding"), nil
		}
		body = decoded
	}

	// API Gateway lowercases header names
	signature := request.Headers["x-hub-signature-256"]
	if err := services.ValidateWebhookSignature(h.webhookSecret, body, signature); err != nil {
		logger.Warn().Err(err).Msg("Webhook signature validation failed")
		return respond(http.StatusUnauthorized, "invalid signature"), nil
	}

	var event models.ReleaseEvent
	if err := json.Unmarshal(body, &event); err != nil {
		return respond(http.StatusBadRequest, "invalid payload"), nil
	}

	if event.Action != "published" {
		logger.Info().Str("action", event.Action).Msg("Ignoring non-published release event")
		return respond(http.StatusOK, "ignored"), nil
	}

	tag := event.Release.TagName
	version, err := tagref.ParseTag(tag)
	if err != nil {
		logger.Info().Str("tag", tag).Err(err).Msg("Ignoring non-release tag")
		return respond(http.StatusOK, "ignored"), nil
	}

	owner := event.Repository.Owner.Login
	repo := event.Repository.Name

	// target_commitish is usually a branch name, not a SHA; the commit is
	// left unset here and the pipeline resolves tags/{tag} when it starts
	sk := ksuid.New().String()
	record, err := h.runs.PutRun(ctx, rundao.CreateInput{
		Owner:      owner,
		Repo:       repo,
		SK:         sk,
		Tag:        tag,
		Version:    version.String(),
		BaseBranch: event.Repository.DefaultBranch,
	})
	if err != nil {
		logger.Error().Err(err).Msg("Failed to save run record")
		return respond(http.StatusInternalServerError, "failed to record run"), nil
	}

	logger.Info().
		Str("owner", owner).
		Str("repo", repo).
		Str("tag", tag).
		Str("version", version.String()).
		Str("ksuid", sk).
		Msg("Created run record with PENDING status")

	return respond(http.StatusAccepted, string(record.GetID())), nil
}

func main() {
	logger := di.ProvideLogger().With().Str("lambda", "release-webhook").Logger()

	env := os.Getenv("ENV")
	if env == "" {
		env = "dev"
	}

	container, err := di.New(env)
	if err != nil {
		logger.Error().Err(err).Msg("Failed to create DI container")
		os.Exit(1)
	}

	dbService := di.MustGet[*services.DynamoDBService](container)
	appConfig := di.MustGet[*services.Config](container)
	secrets := di.MustGet[*services.SecretsManagerService](container)

	ctx := logger.WithContext(context.Background())
	webhookSecret, err := secrets.GetWebhookSecret(ctx, appConfig.WebhookSecretName)
	if err != nil {
		logger.Error().Err(err).Msg("Failed to load webhook secret")
		os.Exit(1)
	}

	handler := NewHandler(dbService, webhookSecret)

	if os.Getenv("AWS_LAMBDA_RUNTIME_API") != "" {
		wrappedHandler := func(ctx context.Context, request events.APIGatewayV2HTTPRequest) (events.APIGatewayV2HTTPResponse, error) {
			ctx = logger.WithContext(ctx)
			return handler.HandleRequest(ctx, request)
		}
		lambda.Start(wrappedHandler)
		return
	}

	app := &cli.App{
		Name:  "release-webhook",
		Usage: "Simulate a GitHub release webhook to create a run record",
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
				Name:  "base-branch",
				Usage: "Repository default branch",
				Value: "main",
			},
		},
		Action: func(c *cli.Context) error {
			version, err := tagref.ParseTag(c.String("tag"))
			if err != nil {
				return err
			}

			sk := ksuid.New().String()
			ctx := logger.WithContext(context.Background())
			record, err := dbService.PutRun(ctx, rundao.CreateInput{
				Owner:      c.String("owner"),
				Repo:       c.String("repo"),
				SK:         sk,
				Tag:        c.String("tag"),
				Version:    version.String(),
				BaseBranch: c.String("base-branch"),
			})
			if err != nil {
				return fmt.Errorf("failed to save run record: %w", err)
			}

			logger.Info().Str("id", string(record.GetID())).Msg("Created run record")
			return nil
		},
	}

	if err := app.Run(os.Args); err != nil {
		logger.Error().Err(err).Msg("Application error")
		os.Exit(1)
	}
}
