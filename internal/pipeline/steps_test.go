package pipeline

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/savaki/release-pipeline/internal/models"
	"github.com/savaki/release-pipeline/internal/sdist"
	"github.com/savaki/release-pipeline/internal/services"
)

const releaseConfig = `current_version: 1.2.2
base_branch: mainline
labels:
  - release
bump:
  - file: setup.py
    search: version="{current}"
  - file: src/widgets/__init__.py
    search: __version__ = "{current}"
`

// fakeRepo answers the subset of the GitHub REST API the steps call
type fakeRepo struct {
	files    map[string]string
	tagSHA   string
	branches map[string]string
	labels   []string
	prInput  map[string]string
}

func newFakeRepo() *fakeRepo {
	return &fakeRepo{
		files: map[string]string{
			".release.yml":            releaseConfig,
			"setup.py":                `setup(name="widgets", version="1.2.2")` + "\n",
			"src/widgets/__init__.py": `__version__ = "1.2.2"` + "\n",
		},
		tagSHA:   "abc123def456",
		branches: map[string]string{},
	}
}

func (f *fakeRepo) handler(t *testing.T) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		path := strings.TrimPrefix(r.URL.Path, "/repos/acme/widgets")

		switch {
		case r.Method == http.MethodGet && path == "/git/ref/tags/v1.2.3":
			fmt.Fprintf(w, `{"ref":"refs/tags/v1.2.3","object":{"sha":%q,"type":"commit"}}`, f.tagSHA)

		case r.Method == http.MethodPost && path == "/git/refs":
			var body map[string]string
			require.NoError(t, json.NewDecoder(r.Body).Decode(&body))
			f.branches[body["ref"]] = body["sha"]
			w.WriteHeader(http.StatusCreated)

		case r.Method == http.MethodGet && strings.HasPrefix(path, "/contents/"):
			name := strings.TrimPrefix(path, "/contents/")
			content, ok := f.files[name]
			if !ok {
				w.WriteHeader(http.StatusNotFound)
				return
			}
			fmt.Fprintf(w, `{"content":%q,"encoding":"base64","sha":"blob-%s"}`,
				base64.StdEncoding.EncodeToString([]byte(content)), name)

		case r.Method == http.MethodPut && strings.HasPrefix(path, "/contents/"):
			name := strings.TrimPrefix(path, "/contents/")
			var body map[string]string
			require.NoError(t, json.NewDecoder(r.Body).Decode(&body))
			decoded, err := base64.StdEncoding.DecodeString(body["content"])
			require.NoError(t, err)
			f.files[name] = string(decoded)
			fmt.Fprintf(w, `{"commit":{"sha":"commit-%s"}}`, name)

		case r.Method == http.MethodGet && path == "/tarball/heads/release/1.2.3":
			// GitHub tarballs use an {owner}-{repo}-{sha} root directory
			data, err := sdist.Build("acme-widgets", "abc123d", f.files)
			require.NoError(t, err)
			w.Write(data)

		case r.Method == http.MethodPost && path == "/pulls":
			require.NoError(t, json.NewDecoder(r.Body).Decode(&f.prInput))
			w.WriteHeader(http.StatusCreated)
			fmt.Fprint(w, `{"number":7,"html_url":"https://github.com/acme/widgets/pull/7","state":"open"}`)

		case r.Method == http.MethodPost && path == "/issues/7/labels":
			var body map[string][]string
			require.NoError(t, json.NewDecoder(r.Body).Decode(&body))
			f.labels = append(f.labels, body["labels"]...)
			fmt.Fprint(w, `[]`)

		default:
			t.Errorf("unexpected request: %s %s", r.Method, r.URL.Path)
			w.WriteHeader(http.StatusNotFound)
		}
	})
}

type fakeS3 struct {
	objects map[string][]byte
}

func (f *fakeS3) PutObject(ctx context.Context, params *s3.PutObjectInput, optFns ...func(*s3.Options)) (*s3.PutObjectOutput, error) {
	data, err := io.ReadAll(params.Body)
	if err != nil {
		return nil, err
	}
	if f.objects == nil {
		f.objects = map[string][]byte{}
	}
	f.objects[*params.Key] = data
	return &s3.PutObjectOutput{}, nil
}

type fakeRecorder struct {
	artifactKey string
	prNumber    int
	prURL       string
}

func (f *fakeRecorder) SetArtifact(ctx context.Context, owner, repo, sk, bucket, key string) error {
	f.artifactKey = key
	return nil
}

func (f *fakeRecorder) SetPullRequest(ctx context.Context, owner, repo, sk string, number int, url string) error {
	f.prNumber = number
	f.prURL = url
	return nil
}

func TestStepsEndToEnd(t *testing.T) {
	repo := newFakeRepo()
	server := httptest.NewServer(repo.handler(t))
	defer server.Close()

	s3Client := &fakeS3{}
	recorder := &fakeRecorder{}

	steps := NewSteps(
		services.NewGitHubServiceWithBaseURL("token", server.URL),
		sdist.NewStore(s3Client, "release-artifacts"),
		recorder,
	)

	p, err := New(steps.Jobs()...)
	require.NoError(t, err)

	input := &models.PipelineInput{
		Owner:      "acme",
		Repo:       "widgets",
		Tag:        "v1.2.3",
		BaseBranch: "main", // repository default, overridden by config
		SK:         "2HFj3kLmNoPqRsTuVwXy",
	}
	require.NoError(t, p.Run(context.Background(), input))

	assert.Equal(t, "1.2.3", input.Version)
	assert.Equal(t, "abc123def456", input.CommitSHA)
	assert.Equal(t, "mainline", input.BaseBranch)
	assert.Equal(t, "release/1.2.3", input.ReleaseBranch)

	// release branch created at the tagged commit
	assert.Equal(t, "abc123def456", repo.branches["refs/heads/release/1.2.3"])

	// version strings rewritten, including the config's own current_version
	assert.Contains(t, repo.files["setup.py"], `version="1.2.3"`)
	assert.Contains(t, repo.files["src/widgets/__init__.py"], `__version__ = "1.2.3"`)
	assert.Contains(t, repo.files[".release.yml"], "current_version: 1.2.3")

	// artifact and checksum uploaded
	assert.Equal(t, "acme/widgets/v1.2.3/widgets-1.2.3.tar.gz", input.ArtifactKey)
	assert.Equal(t, "release-artifacts", input.ArtifactBucket)
	archive, ok := s3Client.objects["acme/widgets/v1.2.3/widgets-1.2.3.tar.gz"]
	require.True(t, ok)
	extracted, err := sdist.Extract(archive)
	require.NoError(t, err)
	assert.Contains(t, extracted["setup.py"], `version="1.2.3"`)
	sums, ok := s3Client.objects["acme/widgets/v1.2.3/SHA256SUMS"]
	require.True(t, ok)
	assert.Contains(t, string(sums), "widgets-1.2.3.tar.gz")

	// PR opened from the release branch into the configured base
	assert.Equal(t, "Release 1.2.3", repo.prInput["title"])
	assert.Equal(t, "release/1.2.3", repo.prInput["head"])
	assert.Equal(t, "mainline", repo.prInput["base"])
	assert.Equal(t, []string{"release"}, repo.labels)

	// progress recorded
	assert.Equal(t, "acme/widgets/v1.2.3/widgets-1.2.3.tar.gz", recorder.artifactKey)
	assert.Equal(t, 7, recorder.prNumber)
	assert.Equal(t, "https://github.com/acme/widgets/pull/7", recorder.prURL)
}

func TestStepsFailWhenAlreadyAtVersion(t *testing.T) {
	repo := newFakeRepo()
	repo.files[".release.yml"] = strings.Replace(releaseConfig, "1.2.2", "1.2.3", 1)
	server := httptest.NewServer(repo.handler(t))
	defer server.Close()

	steps := NewSteps(
		services.NewGitHubServiceWithBaseURL("token", server.URL),
		sdist.NewStore(&fakeS3{}, "release-artifacts"),
		nil,
	)

	p, err := New(steps.Jobs()...)
	require.NoError(t, err)

	input := &models.PipelineInput{Owner: "acme", Repo: "widgets", Tag: "v1.2.3", BaseBranch: "main"}
	err = p.Run(context.Background(), input)
	require.Error(t, err)

	var stepErr *StepError
	require.ErrorAs(t, err, &stepErr)
	assert.Equal(t, "load-config", stepErr.Step)

	// nothing was created downstream of the failure
	assert.Empty(t, repo.branches)
	assert.Nil(t, repo.prInput)
}
