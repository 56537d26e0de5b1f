package services

import (
	"context"
	"fmt"

	"github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb"

	"github.com/savaki/release-pipeline/internal/dao/rundao"
)

type DynamoDBService struct {
	client    *dynamodb.Client
	tableName string
	dao       *rundao.DAO
}

func NewDynamoDBService(env string) (*DynamoDBService, error) {
	cfg, err := config.LoadDefaultConfig(context.TODO())
	if err != nil {
		return nil, fmt.Errorf("failed to load AWS config: %w", err)
	}

	tableName := rundao.TableName(env)

	client := dynamodb.NewFromConfig(cfg)
	dao := rundao.New(client, tableName)

	return &DynamoDBService{
		client:    client,
		tableName: tableName,
		dao:       dao,
	}, nil
}

// NewDynamoDBServiceWithClient creates a DynamoDBService with a custom client and table name.
// This is useful for testing with local DynamoDB.
func NewDynamoDBServiceWithClient(client *dynamodb.Client, tableName string) *DynamoDBService {
	dao := rundao.New(client, tableName)
	return &DynamoDBService{
		client:    client,
		tableName: tableName,
		dao:       dao,
	}
}

// GetClient returns the underlying DynamoDB client. This is useful for testing.
func (d *DynamoDBService) GetClient() *dynamodb.Client {
	return d.client
}

// GetTableName returns the table name. This is useful for testing.
func (d *DynamoDBService) GetTableName() string {
	return d.tableName
}

// GetRun retrieves a run record by owner, repo, and KSUID
// Returns an error if not found
func (d *DynamoDBService) GetRun(ctx context.Context, owner, repo, ksuid string) (rundao.Record, error) {
	pk := rundao.NewPK(owner, repo)
	id := rundao.NewID(pk, ksuid)
	return d.dao.Find(ctx, id)
}

// PutRun creates a new run record (wraps DAO.Create)
func (d *DynamoDBService) PutRun(ctx context.Context, input rundao.CreateInput) (rundao.Record, error) {
	return d.dao.Create(ctx, input)
}

// UpdateRunStatus updates the status of a run (wraps DAO.UpdateStatus)
func (d *DynamoDBService) UpdateRunStatus(ctx context.Context, input rundao.UpdateInput) (rundao.Record, error) {
	if err := d.dao.UpdateStatus(ctx, input); err != nil {
		return rundao.Record{}, err
	}
	id := rundao.NewID(input.PK, input.SK)
	return d.dao.Find(ctx, id)
}

// QueryRunsByRepo returns all runs for a given owner and repository
func (d *DynamoDBService) QueryRunsByRepo(ctx context.Context, owner, repo string) ([]rundao.Record, error) {
	return d.dao.QueryByRepo(ctx, owner, repo)
}

// QueryLatestRuns returns the most recent run for each repository using
// the "latest" magic records for efficient querying
func (d *DynamoDBService) QueryLatestRuns(ctx context.Context) ([]rundao.Record, error) {
	return d.dao.QueryLatestRuns(ctx)
}
