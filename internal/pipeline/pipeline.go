// Package pipeline runs a release as an ordered set of jobs. Jobs
// declare dependencies by name; steps within a job run in order and the
// first failure aborts the whole run.
package pipeline

import (
	"context"
	"fmt"

	"github.com/rs/zerolog"

	"github.com/savaki/release-pipeline/internal/models"
)

// Step is a named unit of work within a job
type Step struct {
	Name string
	Run  func(ctx context.Context, input *models.PipelineInput) error
}

// Job is a named sequence of steps. Needs lists jobs that must complete
// before this one starts.
type Job struct {
	Name  string
	Needs []string
	Steps []Step
}

// StepError identifies the job and step that failed a run
type StepError struct {
	Job  string
	Step string
	Err  error
}

func (e *StepError) Error() string {
	return fmt.Sprintf("job %s, step %s: %v", e.Job, e.Step, e.Err)
}

func (e *StepError) Unwrap() error {
	return e.Err
}

// Pipeline is a validated set of jobs in execution order
type Pipeline struct {
	jobs []Job
}

// New validates the job graph and returns a Pipeline whose jobs are in
// dependency order. Unknown needs and cycles are rejected.
func New(jobs ...Job) (*Pipeline, error) {
	byName := make(map[string]*Job, len(jobs))
	for i := range jobs {
		job := &jobs[i]
		if job.Name == "" {
			return nil, fmt.Errorf("job %d: name is required", i)
		}
		if _, exists := byName[job.Name]; exists {
			return nil, fmt.Errorf("duplicate job name %q", job.Name)
		}
		byName[job.Name] = job
	}

	for _, job := range jobs {
		for _, need := range job.Needs {
			if _, ok := byName[need]; !ok {
				return nil, fmt.Errorf("job %s needs unknown job %q", job.Name, need)
			}
		}
	}

	const (
		unvisited = iota
		visiting
		done
	)

	state := make(map[string]int, len(jobs))
	ordered := make([]Job, 0, len(jobs))

	var visit func(name string) error
	visit = func(name string) error {
		switch state[name] {
		case done:
			return nil
		case visiting:
			return fmt.Errorf("dependency cycle through job %q", name)
		}
		state[name] = visiting
		for _, need := range byName[name].Needs {
			if err := visit(need); err != nil {
				return err
			}
		}
		state[name] = done
		ordered = append(ordered, *byName[name])
		return nil
	}

	for _, job := range jobs {
		if err := visit(job.Name); err != nil {
			return nil, err
		}
	}

	return &Pipeline{jobs: ordered}, nil
}

// Jobs returns the jobs in execution order
func (p *Pipeline) Jobs() []Job {
	return p.jobs
}

// Run executes every job in dependency order. The first failing step
// aborts the run and is reported with its job and step name.
func (p *Pipeline) Run(ctx context.Context, input *models.PipelineInput) error {
	logger := zerolog.Ctx(ctx)

	for _, job := range p.jobs {
		logger.Info().
			Str("job", job.Name).
			Str("repo", input.Repo).
			Str("tag", input.Tag).
			Msg("Starting job")

		for _, step := range job.Steps {
			logger.Info().
				Str("job", job.Name).
				Str("step", step.Name).
				Msg("Running step")

			if err := step.Run(ctx, input); err != nil {
				logger.Error().
					Err(err).
					Str("job", job.Name).
					Str("step", step.Name).
					Msg("Step failed")
				return &StepError{Job: job.Name, Step: step.Name, Err: err}
			}
		}

		logger.Info().
			Str("job", job.Name).
			Msg("Job completed")
	}

	return nil
}
