package main

import (
	"context"
	"os"

	"github.com/urfave/cli/v2"

	"github.com/savaki/release-pipeline/cmd/release-pipeline/commands"
	"github.com/savaki/release-pipeline/internal/di"
)

func main() {
	logger := di.ProvideLogger()
	ctx := logger.WithContext(context.Background())

	app := &cli.App{
		Name:  "release-pipeline",
		Usage: "GitHub release automation toolkit",
		Description: `A unified CLI tool for running and managing release pipelines.

This tool provides commands for:
  - Running a release pipeline locally against a tagged repository
  - Inspecting and retrying release runs
  - Inspecting and clearing per-repository release locks
  - Wiring a GitHub repository to the pipeline with OIDC authentication`,
		Commands: []*cli.Command{
			commands.RunCommand(&logger),
			commands.RunsCommand(&logger),
			commands.RetryCommand(&logger),
			commands.LockCommand(&logger),
			commands.SetupGitHubCommand(&logger),
		},
	}

	if err := app.RunContext(ctx, os.Args); err != nil {
		logger.Error().Err(err).Msg("Application error")
		os.Exit(1)
	}
}
