package models

// PipelineInput is the payload passed between pipeline stages. In deployed
// mode it is the Step Functions execution input; in local mode the run
// command builds it directly from the tag ref.
type PipelineInput struct {
	Owner          string `json:"owner"`           // Repository owner
	Repo           string `json:"repo"`            // Repository name only
	Tag            string `json:"tag"`             // Release tag, e.g. v1.2.3
	Version        string `json:"version"`         // Version derived from the tag
	BaseBranch     string `json:"base_branch"`     // PR target branch
	ReleaseBranch  string `json:"release_branch"`  // Branch carrying the bump commits
	SK             string `json:"sk"`              // KSUID - DynamoDB sort key
	CommitSHA      string `json:"commit_sha"`      // Commit the release tag points at
	ArtifactBucket string `json:"artifact_bucket"` // S3 bucket for distribution artifacts
	ArtifactKey    string `json:"artifact_key"`    // S3 key prefix for this run's artifacts
}

// ReleaseEvent is the subset of a repository release webhook payload the
// pipeline cares about.
type ReleaseEvent struct {
	Action  string `json:"action"`
	Release struct {
		TagName string `json:"tag_name"`
		Name    string `json:"name"`
		// TargetCommitish holds the branch the release was cut from, not
		// the tagged commit's SHA
		TargetCommitish string `json:"target_commitish"`
	} `json:"release"`
	Repository struct {
		Name          string `json:"name"`
		DefaultBranch string `json:"default_branch"`
		Owner         struct {
			Login string `json:"login"`
		} `json:"owner"`
	} `json:"repository"`
}
