package services

import (
	"context"
	"encoding/json"
	"fmt"
	"os"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/secretsmanager"
)

type SecretsManagerService struct {
	client *secretsmanager.Client
}

// OAuthConfig represents OAuth/OIDC provider configuration.
// Supports multiple providers: Auth0, Google CIAM.
type OAuthConfig struct {
	Provider     string `json:"provider"`      // "auth0" or "google-ciam"
	ClientID     string `json:"client_id"`     // OAuth client ID
	ClientSecret string `json:"client_secret"` // OAuth client secret
	Domain       string `json:"domain"`        // For Auth0: tenant domain (e.g., "tenant.us.auth0.com")
	ProjectID    string `json:"project_id"`    // For Google CIAM: GCP project ID
}

func NewSecretsManagerService() (*SecretsManagerService, error) {
	cfg, err := config.LoadDefaultConfig(context.TODO())
	if err != nil {
		return nil, fmt.Errorf("failed to load AWS config: %w", err)
	}

	return &SecretsManagerService{
		client: secretsmanager.NewFromConfig(cfg),
	}, nil
}

// NewSecretsManagerServiceWithClient creates a service with a custom client.
// Useful for testing.
func NewSecretsManagerServiceWithClient(client *secretsmanager.Client) *SecretsManagerService {
	return &SecretsManagerService{client: client}
}

// GetOAuthConfig retrieves OAuth provider configuration from AWS Secrets Manager.
// For backward compatibility, defaults to "auth0" if provider field is missing.
func (s *SecretsManagerService) GetOAuthConfig(ctx context.Context) (*OAuthConfig, error) {
	env := os.Getenv("ENV")
	if env == "" {
		env = os.Getenv("ENVIRONMENT")
	}
	if env == "" {
		env = "dev"
	}

	secretName := fmt.Sprintf("release-pipeline/%s/secrets", env)

	result, err := s.client.GetSecretValue(ctx, &secretsmanager.GetSecretValueInput{
		SecretId: aws.String(secretName),
	})
	if err != nil {
		return nil, fmt.Errorf("failed to get secret %s: %w", secretName, err)
	}

	if result.SecretString == nil {
		return nil, fmt.Errorf("secret %s has no string value", secretName)
	}

	var oauthConfig OAuthConfig
	if err := json.Unmarshal([]byte(*result.SecretString), &oauthConfig); err != nil {
		return nil, fmt.Errorf("failed to unmarshal OAuth config: %w", err)
	}

	if oauthConfig.Provider == "" {
		oauthConfig.Provider = "auth0"
	}

	return &oauthConfig, nil
}

// GetSecret retrieves a secret value by path from AWS Secrets Manager
func (s *SecretsManagerService) GetSecret(ctx context.Context, secretPath string) (string, error) {
	result, err := s.client.GetSecretValue(ctx, &secretsmanager.GetSecretValueInput{
		SecretId: aws.String(secretPath),
	})
	if err != nil {
		return "", fmt.Errorf("failed to get secret %s: %w", secretPath, err)
	}

	if result.SecretString == nil {
		return "", fmt.Errorf("secret %s has no string value", secretPath)
	}

	return *result.SecretString, nil
}

type gitHubTokenSecret struct {
	GitHubToken string `json:"github_token"`
}

// GetGitHubToken retrieves the GitHub API token from AWS Secrets Manager.
// The secret may hold either a bare token string or a JSON document with a
// github_token field.
func (s *SecretsManagerService) GetGitHubToken(ctx context.Context, secretPath string) (string, error) {
	value, err := s.GetSecret(ctx, secretPath)
	if err != nil {
		return "", err
	}

	var tokenSecret gitHubTokenSecret
	if err := json.Unmarshal([]byte(value), &tokenSecret); err == nil && tokenSecret.GitHubToken != "" {
		return tokenSecret.GitHubToken, nil
	}

	if value == "" {
		return "", fmt.Errorf("secret %s is empty", secretPath)
	}
	return value, nil
}

// GetWebhookSecret retrieves the shared webhook HMAC secret
func (s *SecretsManagerService) GetWebhookSecret(ctx context.Context, secretPath string) (string, error) {
	return s.GetSecret(ctx, secretPath)
}
