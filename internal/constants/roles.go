package constants

// Role and secret names used when wiring a repository to the pipeline
const (
	// ReleaseRoleNamePrefix is the prefix for the per-repository IAM role
	// that the repository's release workflow assumes via OIDC
	ReleaseRoleNamePrefix = "release-pipeline-"

	// RoleARNSecretName is the repository secret that carries the IAM role ARN
	RoleARNSecretName = "RELEASE_ROLE_ARN"

	// ArtifactBucketSecretName is the repository secret that carries the
	// S3 bucket distribution artifacts are uploaded to
	ArtifactBucketSecretName = "RELEASE_ARTIFACT_BUCKET"
)
