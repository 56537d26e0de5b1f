package pipeline

import (
	"context"
	"fmt"

	"github.com/rs/zerolog"

	"github.com/savaki/release-pipeline/internal/bump"
	"github.com/savaki/release-pipeline/internal/models"
	"github.com/savaki/release-pipeline/internal/sdist"
	"github.com/savaki/release-pipeline/internal/services"
	"github.com/savaki/release-pipeline/internal/tagref"
)

// Recorder persists run progress. The deployed pipeline records against
// DynamoDB; local runs use NoopRecorder.
type Recorder interface {
	SetArtifact(ctx context.Context, owner, repo, sk, bucket, key string) error
	SetPullRequest(ctx context.Context, owner, repo, sk string, number int, url string) error
}

// NoopRecorder discards run progress
type NoopRecorder struct{}

func (NoopRecorder) SetArtifact(ctx context.Context, owner, repo, sk, bucket, key string) error {
	return nil
}

func (NoopRecorder) SetPullRequest(ctx context.Context, owner, repo, sk string, number int, url string) error {
	return nil
}

// Steps carries the external dependencies the release steps use
type Steps struct {
	GitHub   *services.GitHubService
	Store    *sdist.Store
	Recorder Recorder
}

// NewSteps wires the release steps. A nil recorder means progress is
// not persisted.
func NewSteps(github *services.GitHubService, store *sdist.Store, recorder Recorder) *Steps {
	if recorder == nil {
		recorder = NoopRecorder{}
	}
	return &Steps{
		GitHub:   github,
		Store:    store,
		Recorder: recorder,
	}
}

// DeriveVersion parses the release tag into the version string and
// resolves the commit the tag points at when the trigger did not carry
// one
func (s *Steps) DeriveVersion(ctx context.Context, input *models.PipelineInput) error {
	v, err := tagref.ParseTag(input.Tag)
	if err != nil {
		return err
	}
	input.Version = v.String()

	if input.CommitSHA == "" {
		sha, err := s.GitHub.GetRef(ctx, input.Owner, input.Repo, "tags/"+input.Tag)
		if err != nil {
			return fmt.Errorf("failed to resolve tag %s: %w", input.Tag, err)
		}
		input.CommitSHA = sha
	}

	return nil
}

// LoadConfig fetches and parses .release.yml at the tagged commit, then
// fills in the base and release branches on the input
func (s *Steps) LoadConfig(ctx context.Context, input *models.PipelineInput) (*bump.Config, error) {
	file, err := s.GitHub.GetContent(ctx, input.Owner, input.Repo, bump.ConfigFileName, input.CommitSHA)
	if err != nil {
		return nil, fmt.Errorf("failed to fetch %s: %w", bump.ConfigFileName, err)
	}

	cfg, err := bump.Load([]byte(file.Content))
	if err != nil {
		return nil, err
	}

	if cfg.CurrentVersion == "" {
		return nil, fmt.Errorf("%s: current_version is required", bump.ConfigFileName)
	}
	if cfg.CurrentVersion == input.Version {
		return nil, fmt.Errorf("repository is already at version %s", input.Version)
	}

	input.BaseBranch = cfg.Base(input.BaseBranch)
	if input.BaseBranch == "" {
		return nil, fmt.Errorf("no base branch: set base_branch in %s", bump.ConfigFileName)
	}
	input.ReleaseBranch = cfg.ReleaseBranch(input.Version)

	return cfg, nil
}

// CreateReleaseBranch creates the release branch at the tagged commit
func (s *Steps) CreateReleaseBranch(ctx context.Context, input *models.PipelineInput) error {
	return s.GitHub.CreateBranch(ctx, input.Owner, input.Repo, input.ReleaseBranch, input.CommitSHA)
}

// BumpFiles rewrites every configured version string on the release
// branch, one commit per file, and finally moves current_version in
// .release.yml itself
func (s *Steps) BumpFiles(ctx context.Context, cfg *bump.Config, input *models.PipelineInput) error {
	logger := zerolog.Ctx(ctx)

	files := make(map[string]string, len(cfg.Targets))
	shas := make(map[string]string, len(cfg.Targets))
	for _, target := range cfg.Targets {
		file, err := s.GitHub.GetContent(ctx, input.Owner, input.Repo, target.File, input.ReleaseBranch)
		if err != nil {
			return err
		}
		files[target.File] = file.Content
		shas[target.File] = file.SHA
	}

	rewrites, err := bump.Plan(cfg, cfg.CurrentVersion, input.Version, files)
	if err != nil {
		return err
	}

	message := fmt.Sprintf("Bump version: %s -> %s", cfg.CurrentVersion, input.Version)
	for _, rw := range rewrites {
		commitSHA, err := s.GitHub.PutContent(ctx, input.Owner, input.Repo, services.PutContentInput{
			Path:    rw.File,
			Branch:  input.ReleaseBranch,
			Message: message,
			Content: rw.Content,
			SHA:     shas[rw.File],
		})
		if err != nil {
			return err
		}

		logger.Info().
			Str("file", rw.File).
			Int("occurrences", rw.Occurrences).
			Str("commit_sha", commitSHA).
			Msg("Bumped version string")
	}

	// keep the config's own notion of the current version in step
	cfgFile, err := s.GitHub.GetContent(ctx, input.Owner, input.Repo, bump.ConfigFileName, input.ReleaseBranch)
	if err != nil {
		return err
	}
	updated, err := bump.UpdateCurrentVersion(cfgFile.Content, cfg.CurrentVersion, input.Version)
	if err != nil {
		return err
	}
	_, err = s.GitHub.PutContent(ctx, input.Owner, input.Repo, services.PutContentInput{
		Path:    bump.ConfigFileName,
		Branch:  input.ReleaseBranch,
		Message: message,
		Content: updated,
		SHA:     cfgFile.SHA,
	})
	return err
}

// PackageArtifact builds the source distribution from the release
// branch and uploads it with its checksum
func (s *Steps) PackageArtifact(ctx context.Context, input *models.PipelineInput) error {
	logger := zerolog.Ctx(ctx)

	tarball, err := s.GitHub.GetTarball(ctx, input.Owner, input.Repo, "heads/"+input.ReleaseBranch)
	if err != nil {
		return err
	}

	files, err := sdist.Extract(tarball)
	if err != nil {
		return err
	}

	archive, err := sdist.Build(input.Repo, input.Version, files)
	if err != nil {
		return err
	}

	keyPrefix := fmt.Sprintf("%s/%s/%s", input.Owner, input.Repo, input.Tag)
	key, err := s.Store.Put(ctx, keyPrefix, sdist.Name(input.Repo, input.Version), archive)
	if err != nil {
		return err
	}

	input.ArtifactBucket = s.Store.Bucket()
	input.ArtifactKey = key

	logger.Info().
		Str("bucket", input.ArtifactBucket).
		Str("key", key).
		Int("files", len(files)).
		Msg("Uploaded distribution artifact")

	return s.Recorder.SetArtifact(ctx, input.Owner, input.Repo, input.SK, input.ArtifactBucket, key)
}

// OpenPullRequest opens the release PR against the base branch and
// applies the configured labels
func (s *Steps) OpenPullRequest(ctx context.Context, cfg *bump.Config, input *models.PipelineInput) (*services.PullRequest, error) {
	logger := zerolog.Ctx(ctx)

	body := fmt.Sprintf("Automated release of %s.\n\nTag: %s\n", input.Version, input.Tag)
	if input.ArtifactKey != "" {
		body += fmt.Sprintf("Artifact: s3://%s/%s\n", input.ArtifactBucket, input.ArtifactKey)
	}

	pr, err := s.GitHub.CreatePullRequest(ctx, input.Owner, input.Repo, services.PullRequestInput{
		Title: fmt.Sprintf("Release %s", input.Version),
		Head:  input.ReleaseBranch,
		Base:  input.BaseBranch,
		Body:  body,
	})
	if err != nil {
		return nil, err
	}

	if err := s.GitHub.AddLabels(ctx, input.Owner, input.Repo, pr.Number, cfg.Labels); err != nil {
		return nil, err
	}

	logger.Info().
		Int("number", pr.Number).
		Str("url", pr.HTMLURL).
		Str("base", input.BaseBranch).
		Msg("Opened release pull request")

	if err := s.Recorder.SetPullRequest(ctx, input.Owner, input.Repo, input.SK, pr.Number, pr.HTMLURL); err != nil {
		return nil, err
	}

	return pr, nil
}

// Jobs assembles the two pipeline jobs. The pull-request job declares a
// dependency on the release job and never starts if any release step
// fails.
func (s *Steps) Jobs() []Job {
	var cfg *bump.Config

	release := Job{
		Name: "release",
		Steps: []Step{
			{Name: "derive-version", Run: s.DeriveVersion},
			{Name: "load-config", Run: func(ctx context.Context, input *models.PipelineInput) error {
				loaded, err := s.LoadConfig(ctx, input)
				if err != nil {
					return err
				}
				cfg = loaded
				return nil
			}},
			{Name: "create-branch", Run: s.CreateReleaseBranch},
			{Name: "bump-files", Run: func(ctx context.Context, input *models.PipelineInput) error {
				return s.BumpFiles(ctx, cfg, input)
			}},
			{Name: "package-artifact", Run: s.PackageArtifact},
		},
	}

	pullRequest := Job{
		Name:  "pull-request",
		Needs: []string{"release"},
		Steps: []Step{
			{Name: "open-pr", Run: func(ctx context.Context, input *models.PipelineInput) error {
				_, err := s.OpenPullRequest(ctx, cfg, input)
				return err
			}},
		},
	}

	return []Job{release, pullRequest}
}
