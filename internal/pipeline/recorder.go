package pipeline

import (
	"context"

	"github.com/savaki/release-pipeline/internal/dao/rundao"
)

// RunRecorder persists run progress to the release run table
type RunRecorder struct {
	dao *rundao.DAO
}

func NewRunRecorder(dao *rundao.DAO) *RunRecorder {
	return &RunRecorder{dao: dao}
}

func (r *RunRecorder) SetArtifact(ctx context.Context, owner, repo, sk, bucket, key string) error {
	return r.dao.SetArtifact(ctx, rundao.NewPK(owner, repo), sk, bucket, key)
}

func (r *RunRecorder) SetPullRequest(ctx context.Context, owner, repo, sk string, number int, url string) error {
	return r.dao.SetPullRequest(ctx, rundao.NewPK(owner, repo), sk, number, url)
}
