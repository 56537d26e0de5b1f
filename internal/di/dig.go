// Package di wires the pipeline's services together with uber's dig.
// The core providers cover the AWS clients, DAOs, and domain services;
// callers add surface-specific providers (auth, GraphQL) with options.
package di

import (
	"go.uber.org/dig"

	"github.com/savaki/release-pipeline/internal/policy"
	"github.com/savaki/release-pipeline/internal/services"
)

// Container is the subset of *dig.Container the lambdas use. Keeping
// it an interface lets handler tests substitute their own wiring.
type Container interface {
	Invoke(function any, opts ...dig.InvokeOption) error
	Provide(constructor any, opts ...dig.ProvideOption) error
	Scope(name string, opts ...dig.ScopeOption) *dig.Scope
}

// MustGet resolves a single value from the container, panicking when
// construction fails. Handler setup treats a wiring error as fatal, so
// the panic surfaces it at startup rather than mid-request.
//
//	runs := MustGet[*rundao.DAO](container)
func MustGet[T any](container Container) (want T) {
	callback := func(got T) {
		want = got
	}
	if err := container.Invoke(callback); err != nil {
		panic(err)
	}
	return want
}

// New builds a container for the given environment. The env string is
// registered as a plain string dependency; providers that need it (for
// table names, parameter paths) take a string parameter.
func New(env string, opts ...Option) (Container, error) {
	var o options
	for _, opt := range opts {
		opt(&o)
	}

	container := dig.New()
	if err := container.Provide(func() string { return env }); err != nil {
		return nil, err
	}
	if err := container.Provide(func() CallbackURL { return o.callbackURL }); err != nil {
		return nil, err
	}
	if err := container.Provide(func() DisableAuth { return DisableAuth(o.disableAuth) }); err != nil {
		return nil, err
	}

	for _, provider := range core {
		if err := container.Provide(provider); err != nil {
			return nil, err
		}
	}

	for _, provider := range o.providers {
		if err := container.Provide(provider); err != nil {
			return nil, err
		}
	}

	return container, nil
}

var core = []any{
	ProvideLogger,
	ProvideContext,
	ProvideAWSConfig,
	ProvideSSMClient,
	ProvideParameterStore,
	ProvideAppConfig,
	ProvideDynamoDB,
	ProvideStepFunctions,
	ProvideS3Client,
	ProvideSecretsManagerClient,
	ProvideRunDAO,
	ProvideLockDAO,
	ProvideOrchestrator,
	ProvideGitHubService,
	ProvideArtifactStore,
	services.NewDynamoDBService,
	services.NewSecretsManagerService,
	policy.NewValidator,
}
