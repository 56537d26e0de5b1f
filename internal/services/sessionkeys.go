package services

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"sync"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/secretsmanager"
	"github.com/rs/zerolog"
)

// sessionKeyVersion is one rotated entry in the session key secret,
// most recent first.
type sessionKeyVersion struct {
	Secret    string `json:"secret"`
	Timestamp string `json:"timestamp"`
}

// SessionKeyService loads the console's cookie encryption keys from
// Secrets Manager.
type SessionKeyService struct {
	client     *secretsmanager.Client
	secretName string
	load       func() ([][]byte, error)
}

func NewSessionKeyService(client *secretsmanager.Client, secretName string) *SessionKeyService {
	s := &SessionKeyService{
		client:     client,
		secretName: secretName,
	}

	// fetch once per Lambda lifecycle; restarts naturally refresh the
	// keys
	s.load = sync.OnceValues(func() ([][]byte, error) {
		return s.fetch(context.Background())
	})

	return s
}

// GetSessionKeys returns the decoded key material, rotation order
// preserved.
func (s *SessionKeyService) GetSessionKeys(ctx context.Context) ([][]byte, error) {
	return s.load()
}

func (s *SessionKeyService) fetch(ctx context.Context) ([][]byte, error) {
	logger := zerolog.Ctx(ctx)
	logger.Info().Str("secret_name", s.secretName).Msg("Fetching session keys from Secrets Manager")

	result, err := s.client.GetSecretValue(ctx, &secretsmanager.GetSecretValueInput{
		SecretId: aws.String(s.secretName),
	})
	if err != nil {
		return nil, fmt.Errorf("failed to get secret %s: %w", s.secretName, err)
	}
	if result.SecretString == nil {
		return nil, fmt.Errorf("secret %s has no string value", s.secretName)
	}

	var versions []sessionKeyVersion
	if err := json.Unmarshal([]byte(*result.SecretString), &versions); err != nil {
		return nil, fmt.Errorf("failed to unmarshal secret versions: %w", err)
	}
	if len(versions) == 0 {
		return nil, fmt.Errorf("no secret versions found in %s", s.secretName)
	}

	keys := make([][]byte, 0, len(versions))
	for i, version := range versions {
		key, err := decodeSessionKey(version.Secret)
		if err != nil {
			logger.Warn().
				Int("index", i).
				Str("timestamp", version.Timestamp).
				Err(err).
				Msg("Skipping unusable secret version")
			continue
		}
		keys = append(keys, key)
	}

	if len(keys) == 0 {
		return nil, fmt.Errorf("no valid session keys found in secret %s", s.secretName)
	}

	logger.Info().Int("key_count", len(keys)).Msg("Loaded session keys")
	return keys, nil
}

// decodeSessionKey decodes one version and insists on AES-256 sized
// material.
func decodeSessionKey(encoded string) ([]byte, error) {
	key, err := base64.StdEncoding.DecodeString(encoded)
	if err != nil {
		return nil, fmt.Errorf("not base64: %w", err)
	}
	if len(key) != 32 {
		return nil, fmt.Errorf("expected 32 bytes, got %d", len(key))
	}
	return key, nil
}
