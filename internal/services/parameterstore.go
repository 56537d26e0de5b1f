package services

import (
	"context"
	"fmt"
	"os"
	"sync"

	"github.com/aws/aws-sdk-go-v2/service/ssm"
)

// Config holds all application configuration values from Parameter Store
type Config struct {
	StateMachineArn        string
	ArtifactBucket         string
	WebhookSecretName      string
	GitHubTokenSecretName  string
	SessionTokenSecretName string
	AllowedEmail           string
	CustomDomain           string
	APIGatewayID           string
}

// ParameterStore defines the interface for accessing configuration parameters
type ParameterStore interface {
	// GetParameter retrieves a single parameter by name
	GetParameter(ctx context.Context, name string) (string, error)

	// GetConfig loads all application configuration from Parameter Store
	GetConfig(ctx context.Context) (*Config, error)
}

// SSMAPI is the slice of the SSM client the parameter store uses
type SSMAPI interface {
	GetParameter(ctx context.Context, params *ssm.GetParameterInput, optFns ...func(*ssm.Options)) (*ssm.GetParameterOutput, error)
	GetParametersByPath(ctx context.Context, params *ssm.GetParametersByPathInput, optFns ...func(*ssm.Options)) (*ssm.GetParametersByPathOutput, error)
}

// SSMParameterStore implements ParameterStore using AWS Systems Manager Parameter Store
type SSMParameterStore struct {
	client SSMAPI
	env    string
	mu     sync.RWMutex
	cache  map[string]string
}

// NewSSMParameterStore creates a new SSM-backed parameter store
func NewSSMParameterStore(client SSMAPI, env string) *SSMParameterStore {
	return &SSMParameterStore{
		client: client,
		env:    env,
		cache:  make(map[string]string),
	}
}

// GetParameter retrieves a single parameter from SSM Parameter Store
func (s *SSMParameterStore) GetParameter(ctx context.Context, name string) (string, error) {
	s.mu.RLock()
	if value, ok := s.cache[name]; ok {
		s.mu.RUnlock()
		return value, nil
	}
	s.mu.RUnlock()

	result, err := s.client.GetParameter(ctx, &ssm.GetParameterInput{
		Name:           &name,
		WithDecryption: boolPtr(true),
	})
	if err != nil {
		return "", fmt.Errorf("failed to get parameter %s: %w", name, err)
	}

	if result.Parameter == nil || result.Parameter.Value == nil {
		return "", fmt.Errorf("parameter %s not found", name)
	}

	value := *result.Parameter.Value

	s.mu.Lock()
	s.cache[name] = value
	s.mu.Unlock()

	return value, nil
}

// GetConfig loads all application configuration from Parameter Store
func (s *SSMParameterStore) GetConfig(ctx context.Context) (*Config, error) {
	path := fmt.Sprintf("/%s/release-pipeline", s.env)

	// GetParametersByPath pages at 10 parameters; follow NextToken so a
	// growing namespace never silently drops values
	params := make(map[string]string)
	input := &ssm.GetParametersByPathInput{
		Path:           &path,
		Recursive:      boolPtr(true),
		WithDecryption: boolPtr(true),
	}
	for {
		result, err := s.client.GetParametersByPath(ctx, input)
		if err != nil {
			return nil, fmt.Errorf("failed to get parameters by path %s: %w", path, err)
		}

		for _, param := range result.Parameters {
			if param.Name != nil && param.Value != nil {
				params[*param.Name] = *param.Value
			}
		}

		if result.NextToken == nil || *result.NextToken == "" {
			break
		}
		input.NextToken = result.NextToken
	}

	s.mu.Lock()
	for k, v := range params {
		s.cache[k] = v
	}
	s.mu.Unlock()

	config := &Config{
		StateMachineArn:        params[fmt.Sprintf("/%s/release-pipeline/state-machine-arn", s.env)],
		ArtifactBucket:         params[fmt.Sprintf("/%s/release-pipeline/artifact-bucket", s.env)],
		WebhookSecretName:      params[fmt.Sprintf("/%s/release-pipeline/webhook-secret-name", s.env)],
		GitHubTokenSecretName:  params[fmt.Sprintf("/%s/release-pipeline/github-token-secret-name", s.env)],
		SessionTokenSecretName: params[fmt.Sprintf("/%s/release-pipeline/session-token-secret-name", s.env)],
		AllowedEmail:           params[fmt.Sprintf("/%s/release-pipeline/allowed-email", s.env)],
		CustomDomain:           params[fmt.Sprintf("/%s/release-pipeline/custom-domain", s.env)],
		APIGatewayID:           params[fmt.Sprintf("/%s/release-pipeline/api-gateway-id", s.env)],
	}

	applyConfigDefaults(config, s.env)

	return config, nil
}

// EnvParameterStore implements ParameterStore using environment variables
// This is a NoOp implementation for local development without AWS connection
type EnvParameterStore struct {
	env string
}

// NewEnvParameterStore creates a new environment variable-backed parameter store
func NewEnvParameterStore(env string) *EnvParameterStore {
	return &EnvParameterStore{
		env: env,
	}
}

// GetParameter retrieves a parameter from environment variables
func (e *EnvParameterStore) GetParameter(ctx context.Context, name string) (string, error) {
	return os.Getenv(name), nil
}

// GetConfig loads all application configuration from environment variables
func (e *EnvParameterStore) GetConfig(ctx context.Context) (*Config, error) {
	config := &Config{
		StateMachineArn:        os.Getenv("STATE_MACHINE_ARN"),
		ArtifactBucket:         os.Getenv("ARTIFACT_BUCKET"),
		WebhookSecretName:      os.Getenv("WEBHOOK_SECRET_NAME"),
		GitHubTokenSecretName:  os.Getenv("GITHUB_TOKEN_SECRET_NAME"),
		SessionTokenSecretName: os.Getenv("SESSION_TOKEN_SECRET_NAME"),
		AllowedEmail:           os.Getenv("ALLOWED_EMAIL"),
		CustomDomain:           os.Getenv("CUSTOM_DOMAIN"),
		APIGatewayID:           os.Getenv("API_GATEWAY_ID"),
	}

	applyConfigDefaults(config, e.env)

	return config, nil
}

func applyConfigDefaults(config *Config, env string) {
	if config.WebhookSecretName == "" {
		config.WebhookSecretName = fmt.Sprintf("release-pipeline/%s/webhook-secret", env)
	}
	if config.GitHubTokenSecretName == "" {
		config.GitHubTokenSecretName = fmt.Sprintf("release-pipeline/%s/github-token", env)
	}
	if config.SessionTokenSecretName == "" {
		config.SessionTokenSecretName = fmt.Sprintf("release-pipeline/%s/session-token", env)
	}
}

func boolPtr(b bool) *bool {
	return &b
}
