package commands

import (
	"encoding/json"
	"fmt"

	"github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb"
	"github.com/rs/zerolog"
	"github.com/urfave/cli/v2"

	"github.com/savaki/release-pipeline/internal/dao/lockdao"
)

// LockCommand returns the lock command for inspecting and clearing
// per-repository release locks
func LockCommand(logger *zerolog.Logger) *cli.Command {
	envFlag := &cli.StringFlag{
		Name:    "env",
		Usage:   "Environment name",
		Value:   "dev",
		EnvVars: []string{"ENV", "ENVIRONMENT"},
	}
	repoFlag := &cli.StringFlag{
		Name:     "repo",
		Aliases:  []string{"r"},
		Usage:    "Repository in format 'owner/repo'",
		Required: true,
	}

	return &cli.Command{
		Name:  "lock",
		Usage: "Inspect and clear release locks",
		Subcommands: []*cli.Command{
			{
				Name:   "show",
				Usage:  "Show the release lock for a repository",
				Flags:  []cli.Flag{envFlag, repoFlag},
				Action: lockShowAction,
			},
			{
				Name:  "clear",
				Usage: "Clear the release lock for a repository regardless of holder",
				Description: `Clear a stuck release lock. Locks expire on their own after two hours;
clearing one while its run is still executing lets a second release run
concurrently against the same repository.`,
				Flags:  []cli.Flag{envFlag, repoFlag},
				Action: lockClearAction,
			},
		},
	}
}

func lockDAO(c *cli.Context) (*lockdao.DAO, error) {
	cfg, err := config.LoadDefaultConfig(c.Context)
	if err != nil {
		return nil, fmt.Errorf("failed to load AWS config: %w", err)
	}
	return lockdao.New(dynamodb.NewFromConfig(cfg), lockdao.TableName(c.String("env"))), nil
}

func lockShowAction(c *cli.Context) error {
	owner, repo, err := splitRepo(c.String("repo"))
	if err != nil {
		return err
	}

	locks, err := lockDAO(c)
	if err != nil {
		return err
	}

	record, err := locks.Find(c.Context, lockdao.NewID(owner, repo))
	if err != nil {
		return fmt.Errorf("failed to get lock: %w", err)
	}

	if record == nil {
		fmt.Printf("No lock held for %s/%s\n", owner, repo)
		return nil
	}

	jsonData, err := json.MarshalIndent(record, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal lock: %w", err)
	}

	fmt.Println(string(jsonData))
	return nil
}

func lockClearAction(c *cli.Context) error {
	logger := zerolog.Ctx(c.Context)

	owner, repo, err := splitRepo(c.String("repo"))
	if err != nil {
		return err
	}

	locks, err := lockDAO(c)
	if err != nil {
		return err
	}

	id := lockdao.NewID(owner, repo)
	record, err := locks.Find(c.Context, id)
	if err != nil {
		return fmt.Errorf("failed to get lock: %w", err)
	}
	if record == nil {
		fmt.Printf("No lock held for %s/%s\n", owner, repo)
		return nil
	}

	if err := locks.Delete(c.Context, id); err != nil {
		return fmt.Errorf("failed to clear lock: %w", err)
	}

	logger.Info().
		Str("owner", owner).
		Str("repo", repo).
		Str("run_id", record.RunID).
		Msg("Cleared release lock")

	fmt.Printf("✓ Cleared lock for %s/%s (was held by run %s)\n", owner, repo, record.RunID)
	return nil
}
