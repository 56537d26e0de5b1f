package di

import (
	"context"
	"fmt"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/aws/aws-sdk-go-v2/service/secretsmanager"
	"github.com/aws/aws-sdk-go-v2/service/sfn"

	"github.com/savaki/release-pipeline/internal/dao/rundao"
	"github.com/savaki/release-pipeline/internal/orchestrator"
	"github.com/savaki/release-pipeline/internal/sdist"
	"github.com/savaki/release-pipeline/internal/services"
)

func ProvideAWSConfig(ctx context.Context) (aws.Config, error) {
	return config.LoadDefaultConfig(ctx)
}

func ProvideDynamoDB(config aws.Config) *dynamodb.Client {
	return dynamodb.NewFromConfig(config)
}

func ProvideStepFunctions(config aws.Config) *sfn.Client {
	return sfn.NewFromConfig(config)
}

func ProvideS3Client(config aws.Config) *s3.Client {
	return s3.NewFromConfig(config)
}

func ProvideSecretsManagerClient(config aws.Config) *secretsmanager.Client {
	return secretsmanager.NewFromConfig(config)
}

func ProvideOrchestrator(sfnClient *sfn.Client, dao *rundao.DAO, config *services.Config) (*orchestrator.Orchestrator, error) {
	if config.StateMachineArn == "" {
		return nil, fmt.Errorf("STATE_MACHINE_ARN required")
	}

	return orchestrator.New(sfnClient, config.StateMachineArn, dao), nil
}

// ProvideGitHubService builds the GitHub client with the API token held
// in Secrets Manager
func ProvideGitHubService(ctx context.Context, secrets *services.SecretsManagerService, config *services.Config) (*services.GitHubService, error) {
	token, err := secrets.GetGitHubToken(ctx, config.GitHubTokenSecretName)
	if err != nil {
		return nil, fmt.Errorf("failed to load GitHub token: %w", err)
	}
	return services.NewGitHubService(token), nil
}

func ProvideArtifactStore(client *s3.Client, config *services.Config) (*sdist.Store, error) {
	if config.ArtifactBucket == "" {
		return nil, fmt.Errorf("ARTIFACT_BUCKET required")
	}
	return sdist.NewStore(client, config.ArtifactBucket), nil
}
