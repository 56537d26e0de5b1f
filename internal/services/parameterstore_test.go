package services

import (
	"context"
	"testing"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/ssm"
	"github.com/aws/aws-sdk-go-v2/service/ssm/types"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeSSM struct {
	pages      []*ssm.GetParametersByPathOutput
	pathCalls  int
	params     map[string]string
	paramCalls int
}

func (f *fakeSSM) GetParameter(_ context.Context, input *ssm.GetParameterInput, _ ...func(*ssm.Options)) (*ssm.GetParameterOutput, error) {
	f.paramCalls++
	value := f.params[*input.Name]
	return &ssm.GetParameterOutput{
		Parameter: &types.Parameter{Name: input.Name, Value: aws.String(value)},
	}, nil
}

func (f *fakeSSM) GetParametersByPath(_ context.Context, input *ssm.GetParametersByPathInput, _ ...func(*ssm.Options)) (*ssm.GetParametersByPathOutput, error) {
	page := f.pages[f.pathCalls]
	f.pathCalls++
	return page, nil
}

func param(name, value string) types.Parameter {
	return types.Parameter{
		Name:  aws.String("/dev/release-pipeline/" + name),
		Value: aws.String(value),
	}
}

func TestGetConfigFollowsPagination(t *testing.T) {
	client := &fakeSSM{
		pages: []*ssm.GetParametersByPathOutput{
			{
				Parameters: []types.Parameter{
					param("state-machine-arn", "arn:aws:states:us-east-1:123456789012:stateMachine:release"),
					param("artifact-bucket", "release-artifacts"),
				},
				NextToken: aws.String("page-2"),
			},
			{
				Parameters: []types.Parameter{
					param("custom-domain", "release.example.com"),
					param("allowed-email", "ops@example.com"),
				},
			},
		},
	}

	store := NewSSMParameterStore(client, "dev")
	config, err := store.GetConfig(context.Background())
	require.NoError(t, err)

	assert.Equal(t, 2, client.pathCalls)
	assert.Equal(t, "arn:aws:states:us-east-1:123456789012:stateMachine:release", config.StateMachineArn)
	assert.Equal(t, "release-artifacts", config.ArtifactBucket)

	// values from the second page must survive the merge
	assert.Equal(t, "release.example.com", config.CustomDomain)
	assert.Equal(t, "ops@example.com", config.AllowedEmail)

	// unset names fall back to the env-derived defaults
	assert.Equal(t, "release-pipeline/dev/webhook-secret", config.WebhookSecretName)
	assert.Equal(t, "release-pipeline/dev/github-token", config.GitHubTokenSecretName)
}

func TestGetParameterCaches(t *testing.T) {
	client := &fakeSSM{
		params: map[string]string{"/dev/release-pipeline/state-machine-arn": "arn:one"},
	}

	store := NewSSMParameterStore(client, "dev")

	value, err := store.GetParameter(context.Background(), "/dev/release-pipeline/state-machine-arn")
	require.NoError(t, err)
	assert.Equal(t, "arn:one", value)

	_, err = store.GetParameter(context.Background(), "/dev/release-pipeline/state-machine-arn")
	require.NoError(t, err)
	assert.Equal(t, 1, client.paramCalls)
}
