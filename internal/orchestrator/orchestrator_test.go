package orchestrator

import (
	"encoding/json"
	"strings"
	"testing"

	"github.com/savaki/release-pipeline/internal/models"
)

func TestExecutionName(t *testing.T) {
	tests := []struct {
		name  string
		owner string
		repo  string
		sk    string
		want  string
	}{
		{
			name:  "standard repo",
			owner: "acme",
			repo:  "widgets",
			sk:    "2HFj3kLmNoPqRsTuVwXy",
			want:  "acme-widgets-2HFj3kLmNoPqRsTuVwXy",
		},
		{
			name:  "hyphenated repo",
			owner: "acme",
			repo:  "data-profiler",
			sk:    "2HFj4kLmNoPqRsTuVwXz",
			want:  "acme-data-profiler-2HFj4kLmNoPqRsTuVwXz",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := ExecutionName(tt.owner, tt.repo, tt.sk); got != tt.want {
				t.Errorf("execution name = %q, want %q", got, tt.want)
			}
		})
	}
}

func TestExecutionInputJSONKeys(t *testing.T) {
	input := models.PipelineInput{
		Owner:     "acme",
		Repo:      "widgets",
		Tag:       "v1.2.3",
		Version:   "1.2.3",
		SK:        "2HFj3kLmNoPqRsTuVwXy",
		CommitSHA: "abc123",
	}

	data, err := json.Marshal(input)
	if err != nil {
		t.Fatalf("json.Marshal failed: %v", err)
	}

	jsonStr := string(data)
	for _, key := range []string{`"owner"`, `"repo"`, `"tag"`, `"version"`, `"sk"`, `"commit_sha"`} {
		if !strings.Contains(jsonStr, key) {
			t.Errorf("JSON missing expected key %s: %s", key, jsonStr)
		}
	}
}
