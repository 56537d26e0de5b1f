package commands

import (
	"encoding/json"
	"fmt"

	"github.com/rs/zerolog"
	"github.com/urfave/cli/v2"

	"github.com/savaki/release-pipeline/internal/dao/rundao"
	"github.com/savaki/release-pipeline/internal/services"
)

// RunsCommand returns the runs command for inspecting release runs
func RunsCommand(logger *zerolog.Logger) *cli.Command {
	return &cli.Command{
		Name:  "runs",
		Usage: "List release runs",
		Description: `List release runs recorded in DynamoDB.

Without --repo, lists the most recent run for every repository. With
--repo, lists every run for that repository.`,
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:    "env",
				Usage:   "Environment name",
				Value:   "dev",
				EnvVars: []string{"ENV", "ENVIRONMENT"},
			},
			&cli.StringFlag{
				Name:    "repo",
				Aliases: []string{"r"},
				Usage:   "Repository in format 'owner/repo'",
			},
			&cli.StringFlag{
				Name:  "ksuid",
				Usage: "Show a single run by KSUID (requires --repo)",
			},
		},
		Action: runsAction,
	}
}

func runsAction(c *cli.Context) error {
	ctx := c.Context

	dbService, err := services.NewDynamoDBService(c.String("env"))
	if err != nil {
		return fmt.Errorf("failed to create DynamoDB service: %w", err)
	}

	repoFlag := c.String("repo")
	ksuid := c.String("ksuid")

	var result any
	switch {
	case ksuid != "":
		if repoFlag == "" {
			return fmt.Errorf("--ksuid requires --repo")
		}
		owner, repo, err := splitRepo(repoFlag)
		if err != nil {
			return err
		}
		run, err := dbService.GetRun(ctx, owner, repo, ksuid)
		if err != nil {
			return fmt.Errorf("failed to get run: %w", err)
		}
		result = run

	case repoFlag != "":
		owner, repo, err := splitRepo(repoFlag)
		if err != nil {
			return err
		}
		runs, err := dbService.QueryRunsByRepo(ctx, owner, repo)
		if err != nil {
			return fmt.Errorf("failed to query runs: %w", err)
		}
		result = runs

	default:
		runs, err := dbService.QueryLatestRuns(ctx)
		if err != nil {
			return fmt.Errorf("failed to query latest runs: %w", err)
		}
		result = runs
	}

	jsonData, err := json.MarshalIndent(result, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal runs: %w", err)
	}

	fmt.Println(string(jsonData))
	return nil
}

func splitRepo(s string) (owner, repo string, err error) {
	pk := rundao.PK(s)
	owner, repo, err = rundao.ParsePK(pk)
	if err != nil {
		return "", "", fmt.Errorf("repo must be in format 'owner/repo', got: %s", s)
	}
	return owner, repo, nil
}
