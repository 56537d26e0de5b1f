package services

import (
	"context"
	"errors"
	"fmt"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/iam"
	"github.com/aws/aws-sdk-go-v2/service/sts"
	"github.com/aws/smithy-go"
)

type IAMService struct {
	client    *iam.Client
	stsClient *sts.Client
}

type AWSCredentials struct {
	AccessKeyID     string
	SecretAccessKey string
}

func NewIAMService() (*IAMService, error) {
	cfg, err := config.LoadDefaultConfig(context.TODO())
	if err != nil {
		return nil, fmt.Errorf("failed to load AWS config: %w", err)
	}

	return &IAMService{
		client:    iam.NewFromConfig(cfg),
		stsClient: sts.NewFromConfig(cfg),
	}, nil
}

const (
	GitHubOIDCProviderURL = "token.actions.githubusercontent.com"
	GitHubOIDCAudience    = "sts.amazonaws.com"
)

// GetAWSAccountID retrieves the AWS account ID
func (s *IAMService) GetAWSAccountID(ctx context.Context) (string, error) {
	result, err := s.stsClient.GetCallerIdentity(ctx, &sts.GetCallerIdentityInput{})
	if err != nil {
		return "", fmt.Errorf("failed to get caller identity: %w", err)
	}

	if result.Account == nil {
		return "", fmt.Errorf("account ID is nil")
	}

	return *result.Account, nil
}

// GetOrCreateGitHubOIDCProvider ensures GitHub OIDC provider exists and returns its ARN
func (s *IAMService) GetOrCreateGitHubOIDCProvider(ctx context.Context) (string, error) {
	accountID, err := s.GetAWSAccountID(ctx)
	if err != nil {
		return "", fmt.Errorf("failed to get AWS account ID: %w", err)
	}

	providerARN := fmt.Sprintf("arn:aws:iam::%s:oidc-provider/%s", accountID, GitHubOIDCProviderURL)

	_, err = s.client.GetOpenIDConnectProvider(ctx, &iam.GetOpenIDConnectProviderInput{
		OpenIDConnectProviderArn: aws.String(providerARN),
	})
	if err == nil {
		return providerARN, nil
	}

	var apiErr smithy.APIError
	if !errors.As(err, &apiErr) || apiErr.ErrorCode() != "NoSuchEntity" {
		return "", fmt.Errorf("failed to check OIDC provider: %w", err)
	}

	_, err = s.client.CreateOpenIDConnectProvider(ctx, &iam.CreateOpenIDConnectProviderInput{
		Url: aws.String("https://" + GitHubOIDCProviderURL),
		ClientIDList: []string{
			GitHubOIDCAudience,
		},
		// AWS validates GitHub's certificate chain itself; the thumbprint
		// is required by the API but no longer used
		ThumbprintList: []string{"6938fd4d98bab03faadb97b34396831e3780aea1"},
	})
	if err != nil {
		return "", fmt.Errorf("failed to create OIDC provider: %w", err)
	}

	return providerARN, nil
}

// artifactPolicy grants write access to the artifact prefix of a single
// repository within the artifact bucket
func artifactPolicy(bucket, owner, repo string) string {
	prefix := fmt.Sprintf("%s/%s", owner, repo)
	return fmt.Sprintf(`{
  "Version": "2012-10-17",
  "Statement": [
    {
      "Effect": "Allow",
      "Action": [
        "s3:PutObject",
        "s3:GetObject"
      ],
      "Resource": "arn:aws:s3:::%s/%s/*"
    },
    {
      "Effect": "Allow",
      "Action": [
        "s3:ListBucket"
      ],
      "Resource": "arn:aws:s3:::%s",
      "Condition": {
        "StringLike": {
          "s3:prefix": "%s/*"
        }
      }
    }
  ]
}`, bucket, prefix, bucket, prefix)
}

// CreateGitHubOIDCRole creates an IAM role for GitHub Actions OIDC
// authentication, scoped to a single repository's artifact prefix
func (s *IAMService) CreateGitHubOIDCRole(ctx context.Context, roleName, owner, repo, bucket string) (string, error) {
	providerARN, err := s.GetOrCreateGitHubOIDCProvider(ctx)
	if err != nil {
		return "", fmt.Errorf("failed to get/create OIDC provider: %w", err)
	}

	trustPolicy := fmt.Sprintf(`{
  "Version": "2012-10-17",
  "Statement": [
    {
      "Effect": "Allow",
      "Principal": {
        "Federated": "%s"
      },
      "Action": "sts:AssumeRoleWithWebIdentity",
      "Condition": {
        "StringEquals": {
          "%s:aud": "%s"
        },
        "StringLike": {
          "%s:sub": "repo:%s/%s:*"
        }
      }
    }
  ]
}`, providerARN, GitHubOIDCProviderURL, GitHubOIDCAudience, GitHubOIDCProviderURL, owner, repo)

	getResult, err := s.client.GetRole(ctx, &iam.GetRoleInput{
		RoleName: aws.String(roleName),
	})
	roleExists := err == nil && getResult.Role != nil

	if !roleExists {
		_, err = s.client.CreateRole(ctx, &iam.CreateRoleInput{
			RoleName:                 aws.String(roleName),
			AssumeRolePolicyDocument: aws.String(trustPolicy),
			Description:              aws.String(fmt.Sprintf("GitHub Actions OIDC role for %s/%s", owner, repo)),
		})
		if err != nil {
			return "", fmt.Errorf("failed to create role: %w", err)
		}
	} else {
		_, err = s.client.UpdateAssumeRolePolicy(ctx, &iam.UpdateAssumeRolePolicyInput{
			RoleName:       aws.String(roleName),
			PolicyDocument: aws.String(trustPolicy),
		})
		if err != nil {
			return "", fmt.Errorf("failed to update trust policy: %w", err)
		}
	}

	// PutRolePolicy is idempotent
	_, err = s.client.PutRolePolicy(ctx, &iam.PutRolePolicyInput{
		RoleName:       aws.String(roleName),
		PolicyName:     aws.String("artifact-access"),
		PolicyDocument: aws.String(artifactPolicy(bucket, owner, repo)),
	})
	if err != nil {
		return "", fmt.Errorf("failed to attach/update policy to role: %w", err)
	}

	accountID, err := s.GetAWSAccountID(ctx)
	if err != nil {
		return "", fmt.Errorf("failed to get AWS account ID: %w", err)
	}

	roleARN := fmt.Sprintf("arn:aws:iam::%s:role/%s", accountID, roleName)
	return roleARN, nil
}
