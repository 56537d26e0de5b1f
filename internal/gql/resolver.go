package gql

import (
	_ "embed"

	"github.com/graph-gophers/graphql-go"
	"go.uber.org/dig"

	"github.com/savaki/release-pipeline/internal/dao/rundao"
	"github.com/savaki/release-pipeline/internal/orchestrator"
	"github.com/savaki/release-pipeline/internal/policy"
	"github.com/savaki/release-pipeline/internal/services"
)

//go:embed schema.graphqls
var schemaString string

type Config struct {
	dig.In

	RunDAO       *rundao.DAO
	DbService    *services.DynamoDBService
	Orchestrator *orchestrator.Orchestrator
	Validator    *policy.Validator
	AppConfig    *services.Config
}

// Resolver is the root GraphQL resolver
type Resolver struct {
	runs         *rundao.DAO
	dbService    *services.DynamoDBService
	orchestrator *orchestrator.Orchestrator
	validator    *policy.Validator
	appConfig    *services.Config
}

// NewResolver creates a new root resolver with the required dependencies
func NewResolver(config Config) *Resolver {
	return &Resolver{
		runs:         config.RunDAO,
		dbService:    config.DbService,
		orchestrator: config.Orchestrator,
		validator:    config.Validator,
		appConfig:    config.AppConfig,
	}
}

// NewSchema creates a new GraphQL schema with the root resolver
func NewSchema(resolver *Resolver) (*graphql.Schema, error) {
	schema := graphql.MustParseSchema(schemaString, resolver)
	return schema, nil
}

// Ok returns "ok" for health checks
func (r *Resolver) Ok() string {
	return "ok"
}
