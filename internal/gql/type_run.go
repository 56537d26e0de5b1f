package gql

import (
	graphql "github.com/graph-gophers/graphql-go"

	"github.com/savaki/release-pipeline/internal/dao/rundao"
)

// RunResolver resolves the Run GraphQL type
type RunResolver struct {
	run rundao.Record
}

// newRunResolver creates a new RunResolver
func newRunResolver(run rundao.Record) *RunResolver {
	return &RunResolver{
		run: run,
	}
}

// ID resolves the id field (run ID format: {owner}/{repo}:{ksuid})
func (r *RunResolver) ID() graphql.ID {
	return graphql.ID(r.run.GetID())
}

// Owner resolves the owner field
func (r *RunResolver) Owner() string {
	return r.run.Owner
}

// Repo resolves the repo field
func (r *RunResolver) Repo() string {
	return r.run.Repo
}

// Tag resolves the tag field
func (r *RunResolver) Tag() string {
	return r.run.Tag
}

// Version resolves the version field
func (r *RunResolver) Version() string {
	return r.run.Version
}

// BaseBranch resolves the baseBranch field
func (r *RunResolver) BaseBranch() string {
	return r.run.BaseBranch
}

// ReleaseBranch resolves the releaseBranch field
func (r *RunResolver) ReleaseBranch() string {
	return r.run.ReleaseBranch
}

// CommitSha resolves the commitSha field
func (r *RunResolver) CommitSha() string {
	return r.run.CommitSHA
}

// Status resolves the status field
func (r *RunResolver) Status() RunStatus {
	return FromModelRunStatus(r.run.Status)
}

// ExecutionArn resolves the executionArn field
func (r *RunResolver) ExecutionArn() *string {
	return r.run.ExecutionArn
}

// ArtifactBucket resolves the artifactBucket field
func (r *RunResolver) ArtifactBucket() *string {
	if r.run.ArtifactBucket == "" {
		return nil
	}
	return &r.run.ArtifactBucket
}

// ArtifactKey resolves the artifactKey field
func (r *RunResolver) ArtifactKey() *string {
	if r.run.ArtifactKey == "" {
		return nil
	}
	return &r.run.ArtifactKey
}

// PrNumber resolves the prNumber field
func (r *RunResolver) PrNumber() *int32 {
	if r.run.PRNumber == nil {
		return nil
	}
	number := int32(*r.run.PRNumber)
	return &number
}

// PrUrl resolves the prUrl field
func (r *RunResolver) PrUrl() *string {
	return r.run.PRURL
}

// ErrorMsg resolves the errorMsg field
func (r *RunResolver) ErrorMsg() *string {
	return r.run.ErrorMsg
}

// StartTime resolves the startTime field
func (r *RunResolver) StartTime() DateTime {
	return NewDateTimeFromUnix(r.run.CreatedAt)
}

// EndTime resolves the endTime field
func (r *RunResolver) EndTime() *DateTime {
	return NewDateTimePtrFromUnix(r.run.FinishedAt)
}
