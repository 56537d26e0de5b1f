package services

import (
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/base64"
	"encoding/hex"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/savaki/release-pipeline/internal/errors"
)

func TestGetRef(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/repos/acme/widgets/git/ref/tags/v1.2.3", r.URL.Path)
		assert.Equal(t, "Bearer test-token", r.Header.Get("Authorization"))
		assert.Equal(t, "2022-11-28", r.Header.Get("X-GitHub-Api-Version"))

		_ = json.NewEncoder(w).Encode(map[string]any{
			"ref": "refs/tags/v1.2.3",
			"object": map[string]string{
				"sha":  "abc123",
				"type": "commit",
			},
		})
	}))
	defer server.Close()

	svc := NewGitHubServiceWithBaseURL("test-token", server.URL)
	sha, err := svc.GetRef(context.Background(), "acme", "widgets", "tags/v1.2.3")
	require.NoError(t, err)
	assert.Equal(t, "abc123", sha)
}

func TestGetRefNotFound(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNotFound)
		_, _ = w.Write([]byte(`{"message":"Not Found"}`))
	}))
	defer server.Close()

	svc := NewGitHubServiceWithBaseURL("test-token", server.URL)
	_, err := svc.GetRef(context.Background(), "acme", "widgets", "tags/v9.9.9")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "status 404")
}

func TestCreateBranch(t *testing.T) {
	var captured map[string]string
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPost, r.Method)
		assert.Equal(t, "/repos/acme/widgets/git/refs", r.URL.Path)
		require.NoError(t, json.NewDecoder(r.Body).Decode(&captured))
		w.WriteHeader(http.StatusCreated)
		_, _ = w.Write([]byte(`{}`))
	}))
	defer server.Close()

	svc := NewGitHubServiceWithBaseURL("test-token", server.URL)
	err := svc.CreateBranch(context.Background(), "acme", "widgets", "release/1.2.3", "abc123")
	require.NoError(t, err)
	assert.Equal(t, "refs/heads/release/1.2.3", captured["ref"])
	assert.Equal(t, "abc123", captured["sha"])
}

func TestGetContent(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/repos/acme/widgets/contents/setup.py", r.URL.Path)
		assert.Equal(t, "release/1.2.3", r.URL.Query().Get("ref"))

		_ = json.NewEncoder(w).Encode(map[string]string{
			"content":  base64.StdEncoding.EncodeToString([]byte("version=\"1.2.2\"\n")),
			"encoding": "base64",
			"sha":      "blob-sha-1",
		})
	}))
	defer server.Close()

	svc := NewGitHubServiceWithBaseURL("test-token", server.URL)
	file, err := svc.GetContent(context.Background(), "acme", "widgets", "setup.py", "release/1.2.3")
	require.NoError(t, err)
	assert.Equal(t, "version=\"1.2.2\"\n", file.Content)
	assert.Equal(t, "blob-sha-1", file.SHA)
}

func TestPutContent(t *testing.T) {
	var captured map[string]string
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPut, r.Method)
		require.NoError(t, json.NewDecoder(r.Body).Decode(&captured))
		w.WriteHeader(http.StatusOK)
		_ = json.NewEncoder(w).Encode(map[string]any{
			"commit": map[string]string{"sha": "commit-sha-2"},
		})
	}))
	defer server.Close()

	svc := NewGitHubServiceWithBaseURL("test-token", server.URL)
	sha, err := svc.PutContent(context.Background(), "acme", "widgets", PutContentInput{
		Path:    "setup.py",
		Branch:  "release/1.2.3",
		Message: "Bump version: 1.2.2 -> 1.2.3",
		Content: "version=\"1.2.3\"\n",
		SHA:     "blob-sha-1",
	})
	require.NoError(t, err)
	assert.Equal(t, "commit-sha-2", sha)

	decoded, err := base64.StdEncoding.DecodeString(captured["content"])
	require.NoError(t, err)
	assert.Equal(t, "version=\"1.2.3\"\n", string(decoded))
	assert.Equal(t, "blob-sha-1", captured["sha"])
	assert.Equal(t, "release/1.2.3", captured["branch"])
}

func TestCreatePullRequest(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/repos/acme/widgets/pulls", r.URL.Path)

		var body map[string]string
		require.NoError(t, json.NewDecoder(r.Body).Decode(&body))
		assert.Equal(t, "release/1.2.3", body["head"])
		assert.Equal(t, "mainline", body["base"])

		w.WriteHeader(http.StatusCreated)
		_ = json.NewEncoder(w).Encode(map[string]any{
			"number":   42,
			"html_url": "https://github.com/acme/widgets/pull/42",
			"state":    "open",
		})
	}))
	defer server.Close()

	svc := NewGitHubServiceWithBaseURL("test-token", server.URL)
	pr, err := svc.CreatePullRequest(context.Background(), "acme", "widgets", PullRequestInput{
		Title: "Release 1.2.3",
		Head:  "release/1.2.3",
		Base:  "mainline",
	})
	require.NoError(t, err)
	assert.Equal(t, 42, pr.Number)
	assert.Equal(t, "https://github.com/acme/widgets/pull/42", pr.HTMLURL)
}

func TestAddLabels(t *testing.T) {
	var captured map[string][]string
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/repos/acme/widgets/issues/42/labels", r.URL.Path)
		require.NoError(t, json.NewDecoder(r.Body).Decode(&captured))
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte(`[]`))
	}))
	defer server.Close()

	svc := NewGitHubServiceWithBaseURL("test-token", server.URL)
	err := svc.AddLabels(context.Background(), "acme", "widgets", 42, []string{"release"})
	require.NoError(t, err)
	assert.Equal(t, []string{"release"}, captured["labels"])
}

func TestAddLabelsEmpty(t *testing.T) {
	// no request should be issued for an empty label set
	svc := NewGitHubServiceWithBaseURL("test-token", "http://127.0.0.1:0")
	err := svc.AddLabels(context.Background(), "acme", "widgets", 42, nil)
	assert.NoError(t, err)
}

func TestValidateWebhookSignature(t *testing.T) {
	secret := "shhh"
	body := []byte(`{"action":"published"}`)

	mac := hmac.New(sha256.New, []byte(secret))
	mac.Write(body)
	signature := "sha256=" + hex.EncodeToString(mac.Sum(nil))

	assert.NoError(t, ValidateWebhookSignature(secret, body, signature))

	err := ValidateWebhookSignature(secret, []byte(`tampered`), signature)
	assert.ErrorIs(t, err, errors.ErrInvalidSignature)

	err = ValidateWebhookSignature(secret, body, "sha1=deadbeef")
	assert.ErrorIs(t, err, errors.ErrInvalidSignature)
}

func TestSealSecret(t *testing.T) {
	// 32 zero bytes is a valid curve25519 public key for encryption purposes
	key := base64.StdEncoding.EncodeToString(make([]byte, 32))

	sealed, err := sealSecret(key, "value")
	require.NoError(t, err)

	raw, err := base64.StdEncoding.DecodeString(sealed)
	require.NoError(t, err)
	// sealed box = 32-byte ephemeral key + 16-byte MAC + plaintext
	assert.Equal(t, 32+16+len("value"), len(raw))

	_, err = sealSecret("not-base64!!", "value")
	assert.Error(t, err)

	short := base64.StdEncoding.EncodeToString([]byte("short"))
	_, err = sealSecret(short, "value")
	assert.Error(t, err)
}
