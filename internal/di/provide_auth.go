package di

import (
	"context"
	"fmt"
	"os"
	"strings"

	"github.com/aws/aws-sdk-go-v2/service/secretsmanager"
	"github.com/rs/zerolog"

	"github.com/savaki/release-pipeline/internal/auth"
	"github.com/savaki/release-pipeline/internal/authz"
	"github.com/savaki/release-pipeline/internal/services"
)

func ProvideSessionKeyService(client *secretsmanager.Client, config *services.Config) *services.SessionKeyService {
	return services.NewSessionKeyService(client, config.SessionTokenSecretName)
}

func ProvideSessionKeys(ctx context.Context, keyService *services.SessionKeyService) ([][]byte, error) {
	logger := zerolog.Ctx(ctx)

	keys, err := keyService.GetSessionKeys(ctx)
	if err != nil {
		logger.Error().Err(err).Msg("Failed to fetch session keys from Secrets Manager")

		// Ephemeral keys break sessions across Lambda containers and
		// cause auth loops, so Lambda must fail fast
		if os.Getenv("AWS_LAMBDA_RUNTIME_API") != "" {
			return nil, fmt.Errorf("session keys required in Lambda environment: %w", err)
		}

		logger.Warn().Msg("Using ephemeral session key for local development only")
		return [][]byte{}, nil
	}
	return keys, nil
}

func ProvideAuthenticator(ctx context.Context, secretsService *services.SecretsManagerService, authorizer *authz.Authorizer, callbackURL CallbackURL, sessionKeys [][]byte, disableAuth DisableAuth) (*auth.Authenticator, error) {
	logger := zerolog.Ctx(ctx)

	if bool(disableAuth) {
		logger.Warn().Msg("Authentication is DISABLED - using NoOp authenticator (development only)")
		return auth.NoOp(), nil
	}

	oauthConfig, err := secretsService.GetOAuthConfig(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to get OAuth config: %w", err)
	}

	var provider auth.Provider
	switch oauthConfig.Provider {
	case "auth0":
		provider = &auth.Auth0{Domain: oauthConfig.Domain}
	case "google-ciam":
		provider = &auth.GoogleCIAM{ProjectID: oauthConfig.ProjectID}
	default:
		return nil, fmt.Errorf("unsupported provider type: %s", oauthConfig.Provider)
	}

	// local dev runs on http, which rules out the Secure cookie flag
	callback := string(callbackURL)
	insecure := strings.HasPrefix(callback, "http://localhost") ||
		strings.HasPrefix(callback, "http://127.0.0.1")

	authenticator, err := auth.New(ctx, auth.Config{
		Provider:     provider,
		ClientID:     oauthConfig.ClientID,
		ClientSecret: oauthConfig.ClientSecret,
		CallbackURL:  callback,
		Authorizer:   authorizer,
		SessionKeys:  sessionKeys,
		Insecure:     insecure,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create authenticator: %w", err)
	}

	return authenticator, nil
}

func ProvideAuthorizer(ctx context.Context, logger zerolog.Logger, secretsService *services.SecretsManagerService, config *services.Config) *authz.Authorizer {
	if config.AllowedEmail == "" {
		logger.Info().Msg("Email authorization disabled - all authenticated users allowed")
		return nil
	}

	oauthConfig, err := secretsService.GetOAuthConfig(ctx)
	if err != nil {
		logger.Error().Err(err).Msg("Failed to get OAuth config for authorizer, disabling authorization")
		return nil
	}

	logger.Info().
		Str("allowed_email", config.AllowedEmail).
		Str("provider", oauthConfig.Provider).
		Msg("Email authorization enabled")

	return authz.NewGoogleEmailAuthorizer(true, config.AllowedEmail, oauthConfig.Provider)
}
