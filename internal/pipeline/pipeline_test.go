package pipeline

import (
	"context"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/savaki/release-pipeline/internal/models"
)

func noopStep(name string) Step {
	return Step{Name: name, Run: func(ctx context.Context, input *models.PipelineInput) error { return nil }}
}

func TestNewOrdersJobsByNeeds(t *testing.T) {
	p, err := New(
		Job{Name: "pull-request", Needs: []string{"release"}, Steps: []Step{noopStep("open-pr")}},
		Job{Name: "release", Steps: []Step{noopStep("derive-version")}},
	)
	require.NoError(t, err)

	jobs := p.Jobs()
	require.Len(t, jobs, 2)
	assert.Equal(t, "release", jobs[0].Name)
	assert.Equal(t, "pull-request", jobs[1].Name)
}

func TestNewValidation(t *testing.T) {
	tests := []struct {
		name string
		jobs []Job
	}{
		{
			name: "missing name",
			jobs: []Job{{Steps: []Step{noopStep("a")}}},
		},
		{
			name: "duplicate name",
			jobs: []Job{{Name: "release"}, {Name: "release"}},
		},
		{
			name: "unknown need",
			jobs: []Job{{Name: "pull-request", Needs: []string{"release"}}},
		},
		{
			name: "cycle",
			jobs: []Job{
				{Name: "a", Needs: []string{"b"}},
				{Name: "b", Needs: []string{"a"}},
			},
		},
		{
			name: "self cycle",
			jobs: []Job{{Name: "a", Needs: []string{"a"}}},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := New(tt.jobs...)
			require.Error(t, err)
		})
	}
}

func TestRunExecutesStepsInOrder(t *testing.T) {
	var got []string
	record := func(name string) Step {
		return Step{Name: name, Run: func(ctx context.Context, input *models.PipelineInput) error {
			got = append(got, name)
			return nil
		}}
	}

	p, err := New(
		Job{Name: "pull-request", Needs: []string{"release"}, Steps: []Step{record("open-pr")}},
		Job{Name: "release", Steps: []Step{record("derive-version"), record("bump-files")}},
	)
	require.NoError(t, err)

	err = p.Run(context.Background(), &models.PipelineInput{Owner: "acme", Repo: "widgets", Tag: "v1.2.3"})
	require.NoError(t, err)
	assert.Equal(t, []string{"derive-version", "bump-files", "open-pr"}, got)
}

func TestRunAbortsOnFirstFailure(t *testing.T) {
	boom := fmt.Errorf("boom")
	var ran []string
	record := func(name string, err error) Step {
		return Step{Name: name, Run: func(ctx context.Context, input *models.PipelineInput) error {
			ran = append(ran, name)
			return err
		}}
	}

	p, err := New(
		Job{Name: "release", Steps: []Step{record("derive-version", nil), record("bump-files", boom), record("package-artifact", nil)}},
		Job{Name: "pull-request", Needs: []string{"release"}, Steps: []Step{record("open-pr", nil)}},
	)
	require.NoError(t, err)

	err = p.Run(context.Background(), &models.PipelineInput{Owner: "acme", Repo: "widgets", Tag: "v1.2.3"})
	require.Error(t, err)

	var stepErr *StepError
	require.ErrorAs(t, err, &stepErr)
	assert.Equal(t, "release", stepErr.Job)
	assert.Equal(t, "bump-files", stepErr.Step)
	assert.ErrorIs(t, err, boom)

	// neither the rest of the job nor the dependent job ran
	assert.Equal(t, []string{"derive-version", "bump-files"}, ran)
}
