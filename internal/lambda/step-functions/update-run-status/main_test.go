package main

import (
	"context"
	"encoding/json"
	"os"
	"path/filepath"
	"testing"

	"github.com/savaki/release-pipeline/internal/dao/rundao"
)

// loadTestData loads JSON test data from a file
func loadTestData(t *testing.T, filename string) *UpdateStatusInput {
	t.Helper()

	path := filepath.Join("testdata", filename)
	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("failed to read test data file %s: %v", path, err)
	}

	var input UpdateStatusInput
	if err := json.Unmarshal(data, &input); err != nil {
		t.Fatalf("failed to unmarshal test data: %v", err)
	}

	return &input
}

func TestUpdateStatusInput_Success(t *testing.T) {
	input := loadTestData(t, "success.json")

	if input.Owner != "acme" || input.Repo != "widgets" {
		t.Errorf("Owner/Repo = %q/%q, want acme/widgets", input.Owner, input.Repo)
	}
	if input.SK != "2HFj3kLmNoPqRsTuVwXy" {
		t.Errorf("SK = %q, want 2HFj3kLmNoPqRsTuVwXy", input.SK)
	}
	if input.Status != string(rundao.RunStatusSuccess) {
		t.Errorf("Status = %q, want SUCCESS", input.Status)
	}
	if input.ErrorMsg != nil {
		t.Errorf("ErrorMsg = %v, want nil", *input.ErrorMsg)
	}
	if !rundao.RunStatus(input.Status).Terminal() {
		t.Error("SUCCESS should be a terminal status")
	}
}

func TestUpdateStatusInput_Failure(t *testing.T) {
	input := loadTestData(t, "failure.json")

	if input.Status != string(rundao.RunStatusFailed) {
		t.Errorf("Status = %q, want FAILED", input.Status)
	}
	if input.ErrorMsg == nil {
		t.Fatal("expected ErrorMsg to be set")
	}
	if *input.ErrorMsg != "failed to bump version: pattern not found in setup.py" {
		t.Errorf("unexpected error message: %s", *input.ErrorMsg)
	}
	if !rundao.RunStatus(input.Status).Terminal() {
		t.Error("FAILED should be a terminal status")
	}
}

func TestNonTerminalStatusKeepsLock(t *testing.T) {
	for _, status := range []rundao.RunStatus{rundao.RunStatusPending, rundao.RunStatusInProgress} {
		if status.Terminal() {
			t.Errorf("%s should not be terminal", status)
		}
	}
}

// an unrecognized status must fail before any write; the zero Handler
// would panic if the handler reached DynamoDB
func TestUnknownStatusRejected(t *testing.T) {
	handler := &Handler{}

	for _, status := range []string{"DONE", "success", ""} {
		err := handler.HandleUpdateRunStatus(context.Background(), &UpdateStatusInput{
			Owner:  "acme",
			Repo:   "widgets",
			SK:     "2HFj3kLmNoPqRsTuVwXy",
			Status: status,
		})
		if err == nil {
			t.Errorf("status %q: expected error", status)
		}
	}
}
