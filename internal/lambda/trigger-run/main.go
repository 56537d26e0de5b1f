package main

import (
	"context"
	"fmt"
	"os"

	"github.com/aws/aws-lambda-go/events"
	"github.com/aws/aws-lambda-go/lambda"
	"github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb/types"
	"github.com/aws/aws-sdk-go-v2/service/sfn"
	"github.com/rs/zerolog"
	"github.com/urfave/cli/v2"

	"github.com/savaki/release-pipeline/internal/dao/lockdao"
	"github.com/savaki/release-pipeline/internal/dao/rundao"
	"github.com/savaki/release-pipeline/internal/di"
	"github.com/savaki/release-pipeline/internal/models"
	"github.com/savaki/release-pipeline/internal/orchestrator"
	"github.com/savaki/release-pipeline/internal/services"
)

type Handler struct {
	orchestrator *orchestrator.Orchestrator
	config       *services.Config
	runs         *rundao.DAO
	locks        *lockdao.DAO
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

	if appConfig.StateMachineArn == "" {
		return nil, fmt.Errorf("STATE_MACHINE_ARN required")
	}

	dynamoClient := dynamodb.NewFromConfig(cfg)
	runs := rundao.New(dynamoClient, rundao.TableName(env))
	locks := lockdao.New(dynamoClient, lockdao.TableName(env))
	sfnClient := sfn.NewFromConfig(cfg)

	orch := orchestrator.New(sfnClient, appConfig.StateMachineArn, runs)

	return &Handler{
		orchestrator: orch,
		config:       appConfig,
		runs:         runs,
		locks:        locks,
	}, nil
}

func (h *Handler) HandleDynamoDBEvent(ctx context.Context, event events.DynamoDBEvent) error {
	logger := zerolog.Ctx(ctx)

	for i := range event.Records {
		record := &event.Records[i]

		// Only INSERT events represent new runs
		if record.EventName != "INSERT" {
			logger.Info().Str("event_name", record.EventName).Msg("Skipping non-INSERT event")
			continue
		}

		if err := h.processRecord(ctx, record); err != nil {
			logger.Error().
				Err(err).
				Str("event_id", record.EventID).
				Msg("Error processing DynamoDB record")
			return err
		}
	}
	return nil
}

// isLatestRecord reports whether a stream record is a "latest" magic
// record (pk=latest, sk={owner}/{repo}) rather than a real run
func isLatestRecord(record rundao.Record) bool {
	return record.PK.String() == "latest"
}

func (h *Handler) processRecord(ctx context.Context, record *events.DynamoDBEventRecord) error {
	logger := zerolog.Ctx(ctx)

	newImage := make(map[string]types.AttributeValue)
	for k, v := range record.Change.NewImage {
		newImage[k] = convertDynamoDBAttributeValue(v)
	}

	var runRecord rundao.Record
	if err := unmarshalMap(newImage, &runRecord); err != nil {
		return fmt.Errorf("failed to unmarshal DynamoDB record: %w", err)
	}

	if isLatestRecord(runRecord) {
		logger.Info().
			Str("sk", runRecord.SK).
			Msg("Skipping latest magic record")
		return nil
	}

	// Stream delivery is at-least-once; a record past PENDING has
	// already been handled
	if runRecord.Status != rundao.RunStatusPending {
		logger.Info().
			Str("status", string(runRecord.Status)).
			Str("sk", runRecord.SK).
			Msg("Skipping run not in PENDING status")
		return nil
	}

	logger.Info().
		Str("owner", runRecord.Owner).
		Str("repo", runRecord.Repo).
		Str("tag", runRecord.Tag).
		Str("version", runRecord.Version).
		Str("sk", runRecord.SK).
		Msg("Processing new run record")

	_, acquired, err := h.locks.Acquire(ctx, lockdao.AcquireInput{
		Owner: runRecord.Owner,
		Repo:  runRecord.Repo,
		RunID: runRecord.SK,
	})
	if err != nil {
		return fmt.Errorf("failed to acquire release lock: %w", err)
	}
	if !acquired {
		errorMsg := "another release is in progress for this repository"
		h.markFailed(ctx, runRecord, errorMsg)
		logger.Warn().
			Str("owner", runRecord.Owner).
			Str("repo", runRecord.Repo).
			Str("sk", runRecord.SK).
			Msg("Release lock held by another run")
		return nil
	}

	input := models.PipelineInput{
		Owner:          runRecord.Owner,
		Repo:           runRecord.Repo,
		Tag:            runRecord.Tag,
		Version:        runRecord.Version,
		BaseBranch:     runRecord.BaseBranch,
		ReleaseBranch:  runRecord.ReleaseBranch,
		SK:             runRecord.SK,
		CommitSHA:      runRecord.CommitSHA,
		ArtifactBucket: h.config.ArtifactBucket,
	}

	executionArn, err := h.orchestrator.StartExecution(ctx, input)
	if err != nil {
		h.markFailed(ctx, runRecord, fmt.Sprintf("Failed to start step function: %v", err))
		h.releaseLock(ctx, runRecord)
		return fmt.Errorf("failed to start execution: %w", err)
	}

	logger.Info().
		Str("execution_arn", executionArn).
		Str("owner", runRecord.Owner).
		Str("repo", runRecord.Repo).
		Str("sk", runRecord.SK).
		Msg("Started Step Functions execution")

	return nil
}

func (h *Handler) markFailed(ctx context.Context, runRecord rundao.Record, errorMsg string) {
	logger := zerolog.Ctx(ctx)

	status := rundao.RunStatusFailed
	if err := h.runs.UpdateStatus(ctx, rundao.UpdateInput{
		PK:       runRecord.PK,
		SK:       runRecord.SK,
		Status:   &status,
		ErrorMsg: &errorMsg,
	}); err != nil {
		logger.Error().Err(err).Msg("Failed to update run status")
	}
}

func (h *Handler) releaseLock(ctx context.Context, runRecord rundao.Record) {
	logger := zerolog.Ctx(ctx)

	id := lockdao.NewID(runRecord.Owner, runRecord.Repo)
	if err := h.locks.Release(ctx, lockdao.ReleaseInput{ID: id, RunID: runRecord.SK}); err != nil {
		logger.Error().Err(err).Msg("Failed to release lock")
	}
}

// convertDynamoDBAttributeValue converts events.DynamoDBAttributeValue to types.AttributeValue
func convertDynamoDBAttributeValue(av events.DynamoDBAttributeValue) types.AttributeValue {
	switch av.DataType() {
	case events.DataTypeString:
		return &types.AttributeValueMemberS{Value: av.String()}
	case events.DataTypeNumber:
		return &types.AttributeValueMemberN{Value: av.Number()}
	case events.DataTypeBoolean:
		return &types.AttributeValueMemberBOOL{Value: av.Boolean()}
	case events.DataTypeBinary:
		return &types.AttributeValueMemberB{Value: av.Binary()}
	case events.DataTypeNull:
		return &types.AttributeValueMemberNULL{Value: true}
	case events.DataTypeStringSet:
		return &types.AttributeValueMemberSS{Value: av.StringSet()}
	case events.DataTypeNumberSet:
		return &types.AttributeValueMemberNS{Value: av.NumberSet()}
	case events.DataTypeBinarySet:
		return &types.AttributeValueMemberBS{Value: av.BinarySet()}
	case events.DataTypeList:
		list := av.List()
		convertedList := make([]types.AttributeValue, len(list))
		for i, item := range list {
			convertedList[i] = convertDynamoDBAttributeValue(item)
		}
		return &types.AttributeValueMemberL{Value: convertedList}
	case events.DataTypeMap:
		m := av.Map()
		convertedMap := make(map[string]types.AttributeValue)
		for k, v := range m {
			convertedMap[k] = convertDynamoDBAttributeValue(v)
		}
		return &types.AttributeValueMemberM{Value: convertedMap}
	default:
		return &types.AttributeValueMemberNULL{Value: true}
	}
}

func stringAttr(m map[string]types.AttributeValue, key string) string {
	if v, exists := m[key]; exists {
		if s, ok := v.(*types.AttributeValueMemberS); ok {
			return s.Value
		}
	}
	return ""
}

// unmarshalMap extracts the run record fields from a stream NewImage
func unmarshalMap(m map[string]types.AttributeValue, out interface{}) error {
	runRecord, ok := out.(*rundao.Record)
	if !ok {
		return fmt.Errorf("unsupported output type %T", out)
	}

	runRecord.PK = rundao.PK(stringAttr(m, "pk"))
	runRecord.SK = stringAttr(m, "sk")
	runRecord.Owner = stringAttr(m, "owner")
	runRecord.Repo = stringAttr(m, "repo")
	runRecord.Tag = stringAttr(m, "tag")
	runRecord.Version = stringAttr(m, "version")
	runRecord.BaseBranch = stringAttr(m, "base_branch")
	runRecord.ReleaseBranch = stringAttr(m, "release_branch")
	runRecord.CommitSHA = stringAttr(m, "commit_sha")
	runRecord.Status = rundao.RunStatus(stringAttr(m, "status"))
	return nil
}

func main() {
	logger := di.ProvideLogger().With().Str("lambda", "trigger-run").Logger()

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

		wrappedHandler := func(ctx context.Context, event events.DynamoDBEvent) error {
			ctx = logger.WithContext(ctx)
			return handler.HandleDynamoDBEvent(ctx, event)
		}
		lambda.Start(wrappedHandler)
		return
	}

	app := &cli.App{
		Name:  "trigger-run",
		Usage: "Process DynamoDB stream events to trigger Step Functions executions",
		Flags: []cli.Flag{
			&cli.BoolFlag{
				Name:    "disable-ssm",
				Usage:   "Disable AWS Systems Manager Parameter Store (use environment variables)",
				EnvVars: []string{"DISABLE_SSM"},
			},
		},
		Action: func(c *cli.Context) error {
			handler, err := NewHandler(env)
			if err != nil {
				return fmt.Errorf("failed to create handler: %w", err)
			}

			logger.Info().
				Str("env", env).
				Str("state_machine_arn", handler.config.StateMachineArn).
				Msg("CLI mode - handler initialized successfully")
			return nil
		},
	}

	if err := app.Run(os.Args); err != nil {
		logger.Error().Err(err).Msg("Application error")
		os.Exit(1)
	}
}
