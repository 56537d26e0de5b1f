package services

import (
	"bytes"
	"context"
	"crypto/hmac"
	"crypto/rand"
	"crypto/sha256"
	"encoding/base64"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"

	"golang.org/x/crypto/nacl/box"

	"github.com/savaki/release-pipeline/internal/errors"
)

const defaultGitHubBaseURL = "https://api.github.com"

// GitHubService is a thin client over the GitHub REST v3 endpoints the
// pipeline needs: refs, contents, pull requests, and repository secrets.
type GitHubService struct {
	token      string
	baseURL    string
	httpClient *http.Client
}

func NewGitHubService(token string) *GitHubService {
	return &GitHubService{
		token:      token,
		baseURL:    defaultGitHubBaseURL,
		httpClient: &http.Client{},
	}
}

// NewGitHubServiceWithBaseURL creates a client against a custom API base.
// This is useful for testing against httptest servers.
func NewGitHubServiceWithBaseURL(token, baseURL string) *GitHubService {
	return &GitHubService{
		token:      token,
		baseURL:    strings.TrimSuffix(baseURL, "/"),
		httpClient: &http.Client{},
	}
}

// do issues an authenticated request and decodes the JSON response into
// out (when non-nil). Any status outside okStatuses fails with the
// response body in the error.
func (g *GitHubService) do(ctx context.Context, method, path string, body, out any, okStatuses ...int) error {
	var reader io.Reader
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("failed to marshal request: %w", err)
		}
		reader = bytes.NewReader(data)
	}

	req, err := http.NewRequestWithContext(ctx, method, g.baseURL+path, reader)
	if err != nil {
		return fmt.Errorf("failed to create request: %w", err)
	}

	req.Header.Set("Authorization", "Bearer "+g.token)
	req.Header.Set("Accept", "application/vnd.github+json")
	req.Header.Set("X-GitHub-Api-Version", "2022-11-28")
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := g.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("request %s %s failed: %w", method, path, err)
	}
	defer resp.Body.Close()

	ok := false
	for _, status := range okStatuses {
		if resp.StatusCode == status {
			ok = true
			break
		}
	}
	if !ok {
		data, _ := io.ReadAll(resp.Body)
		return fmt.Errorf("%s %s: status %d, body: %s", method, path, resp.StatusCode, string(data))
	}

	if out != nil {
		if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
			return fmt.Errorf("failed to decode response from %s: %w", path, err)
		}
	}

	return nil
}

type refResponse struct {
	Ref    string `json:"ref"`
	Object struct {
		SHA  string `json:"sha"`
		Type string `json:"type"`
	} `json:"object"`
}

// GetRef resolves a ref like "tags/v1.2.3" or "heads/mainline" to the
// commit SHA it points at
func (g *GitHubService) GetRef(ctx context.Context, owner, repo, ref string) (string, error) {
	path := fmt.Sprintf("/repos/%s/%s/git/ref/%s", owner, repo, ref)

	var out refResponse
	if err := g.do(ctx, http.MethodGet, path, nil, &out, http.StatusOK); err != nil {
		return "", fmt.Errorf("failed to get ref %s: %w", ref, err)
	}
	return out.Object.SHA, nil
}

// CreateBranch creates refs/heads/{branch} pointing at sha
func (g *GitHubService) CreateBranch(ctx context.Context, owner, repo, branch, sha string) error {
	path := fmt.Sprintf("/repos/%s/%s/git/refs", owner, repo)

	body := map[string]string{
		"ref": "refs/heads/" + branch,
		"sha": sha,
	}
	if err := g.do(ctx, http.MethodPost, path, body, nil, http.StatusCreated); err != nil {
		return fmt.Errorf("failed to create branch %s: %w", branch, err)
	}
	return nil
}

// RepoFile is a file fetched through the contents API. SHA is the blob
// SHA required to update the file on the same branch.
type RepoFile struct {
	Path    string
	Content string
	SHA     string
}

type contentResponse struct {
	Content  string `json:"content"`
	Encoding string `json:"encoding"`
	SHA      string `json:"sha"`
}

// GetContent fetches a file at the given ref
func (g *GitHubService) GetContent(ctx context.Context, owner, repo, filePath, ref string) (*RepoFile, error) {
	path := fmt.Sprintf("/repos/%s/%s/contents/%s", owner, repo, filePath)
	if ref != "" {
		path += "?ref=" + url.QueryEscape(ref)
	}

	var out contentResponse
	if err := g.do(ctx, http.MethodGet, path, nil, &out, http.StatusOK); err != nil {
		return nil, fmt.Errorf("failed to get content %s: %w", filePath, err)
	}

	if out.Encoding != "base64" {
		return nil, fmt.Errorf("unexpected content encoding %q for %s", out.Encoding, filePath)
	}

	// the API wraps base64 payloads with newlines
	decoded, err := base64.StdEncoding.DecodeString(strings.ReplaceAll(out.Content, "\n", ""))
	if err != nil {
		return nil, fmt.Errorf("failed to decode content %s: %w", filePath, err)
	}

	return &RepoFile{Path: filePath, Content: string(decoded), SHA: out.SHA}, nil
}

// PutContentInput describes a single file commit on a branch
type PutContentInput struct {
	Path    string
	Branch  string
	Message string
	Content string
	SHA     string // blob SHA of the file being replaced; empty to create
}

type putContentResponse struct {
	Commit struct {
		SHA string `json:"sha"`
	} `json:"commit"`
}

// PutContent commits a file to a branch and returns the new commit SHA
func (g *GitHubService) PutContent(ctx context.Context, owner, repo string, input PutContentInput) (string, error) {
	path := fmt.Sprintf("/repos/%s/%s/contents/%s", owner, repo, input.Path)

	body := map[string]string{
		"message": input.Message,
		"content": base64.StdEncoding.EncodeToString([]byte(input.Content)),
		"branch":  input.Branch,
	}
	if input.SHA != "" {
		body["sha"] = input.SHA
	}

	var out putContentResponse
	if err := g.do(ctx, http.MethodPut, path, body, &out, http.StatusOK, http.StatusCreated); err != nil {
		return "", fmt.Errorf("failed to put content %s: %w", input.Path, err)
	}
	return out.Commit.SHA, nil
}

// PullRequestInput describes a new pull request
type PullRequestInput struct {
	Title string
	Head  string // branch carrying the changes
	Base  string // branch the PR merges into
	Body  string
}

// PullRequest is the subset of the created PR the pipeline records
type PullRequest struct {
	Number  int    `json:"number"`
	HTMLURL string `json:"html_url"`
	State   string `json:"state"`
}

// CreatePullRequest opens a PR from head to base
func (g *GitHubService) CreatePullRequest(ctx context.Context, owner, repo string, input PullRequestInput) (*PullRequest, error) {
	path := fmt.Sprintf("/repos/%s/%s/pulls", owner, repo)

	body := map[string]string{
		"title": input.Title,
		"head":  input.Head,
		"base":  input.Base,
		"body":  input.Body,
	}

	var pr PullRequest
	if err := g.do(ctx, http.MethodPost, path, body, &pr, http.StatusCreated); err != nil {
		return nil, fmt.Errorf("failed to create pull request %s -> %s: %w", input.Head, input.Base, err)
	}
	return &pr, nil
}

// AddLabels attaches labels to an issue or pull request
func (g *GitHubService) AddLabels(ctx context.Context, owner, repo string, number int, labels []string) error {
	if len(labels) == 0 {
		return nil
	}

	path := fmt.Sprintf("/repos/%s/%s/issues/%d/labels", owner, repo, number)

	body := map[string][]string{"labels": labels}
	if err := g.do(ctx, http.MethodPost, path, body, nil, http.StatusOK, http.StatusCreated); err != nil {
		return fmt.Errorf("failed to add labels to #%d: %w", number, err)
	}
	return nil
}

// GetTarball downloads the source archive for a ref. The API answers
// with a redirect to object storage, which the default client follows.
func (g *GitHubService) GetTarball(ctx context.Context, owner, repo, ref string) ([]byte, error) {
	path := fmt.Sprintf("/repos/%s/%s/tarball/%s", owner, repo, ref)

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, g.baseURL+path, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Authorization", "Bearer "+g.token)
	req.Header.Set("Accept", "application/vnd.github+json")
	req.Header.Set("X-GitHub-Api-Version", "2022-11-28")

	resp, err := g.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("failed to fetch tarball for %s: %w", ref, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		data, _ := io.ReadAll(resp.Body)
		return nil, fmt.Errorf("failed to fetch tarball for %s: status %d, body: %s", ref, resp.StatusCode, string(data))
	}

	return io.ReadAll(resp.Body)
}

type gitHubPublicKey struct {
	KeyID string `json:"key_id"`
	Key   string `json:"key"`
}

// getPublicKey fetches the repository's public key for encrypting secrets
func (g *GitHubService) getPublicKey(ctx context.Context, owner, repo string) (*gitHubPublicKey, error) {
	path := fmt.Sprintf("/repos/%s/%s/actions/secrets/public-key", owner, repo)

	var key gitHubPublicKey
	if err := g.do(ctx, http.MethodGet, path, nil, &key, http.StatusOK); err != nil {
		return nil, fmt.Errorf("failed to fetch public key: %w", err)
	}
	return &key, nil
}

// sealSecret encrypts a secret value using libsodium sealed box
func sealSecret(publicKeyBase64, secretValue string) (string, error) {
	keyBytes, err := base64.StdEncoding.DecodeString(publicKeyBase64)
	if err != nil {
		return "", fmt.Errorf("failed to decode public key: %w", err)
	}
	if len(keyBytes) != 32 {
		return "", fmt.Errorf("invalid public key length: expected 32, got %d", len(keyBytes))
	}

	var publicKey [32]byte
	copy(publicKey[:], keyBytes)

	sealed, err := box.SealAnonymous(nil, []byte(secretValue), &publicKey, rand.Reader)
	if err != nil {
		return "", fmt.Errorf("failed to encrypt secret: %w", err)
	}

	return base64.StdEncoding.EncodeToString(sealed), nil
}

// CreateOrUpdateSecret creates or updates a repository secret
func (g *GitHubService) CreateOrUpdateSecret(ctx context.Context, owner, repo, secretName, secretValue string) error {
	key, err := g.getPublicKey(ctx, owner, repo)
	if err != nil {
		return fmt.Errorf("failed to get public key: %w", err)
	}

	sealed, err := sealSecret(key.Key, secretValue)
	if err != nil {
		return fmt.Errorf("failed to encrypt secret: %w", err)
	}

	path := fmt.Sprintf("/repos/%s/%s/actions/secrets/%s", owner, repo, secretName)
	body := map[string]string{
		"encrypted_value": sealed,
		"key_id":          key.KeyID,
	}
	if err := g.do(ctx, http.MethodPut, path, body, nil, http.StatusCreated, http.StatusNoContent); err != nil {
		return fmt.Errorf("failed to create/update secret %s: %w", secretName, err)
	}
	return nil
}

// ValidateWebhookSignature verifies the X-Hub-Signature-256 header
// against the request body using the shared webhook secret
func ValidateWebhookSignature(secret string, body []byte, signatureHeader string) error {
	expected, ok := strings.CutPrefix(signatureHeader, "sha256=")
	if !ok {
		return fmt.Errorf("%w: missing sha256= prefix", errors.ErrInvalidSignature)
	}

	mac := hmac.New(sha256.New, []byte(secret))
	mac.Write(body)
	computed := hex.EncodeToString(mac.Sum(nil))

	if !hmac.Equal([]byte(computed), []byte(expected)) {
		return errors.ErrInvalidSignature
	}
	return nil
}
