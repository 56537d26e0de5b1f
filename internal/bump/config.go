package bump

import (
	"fmt"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/savaki/release-pipeline/internal/errors"
)

// ConfigFileName is the pipeline configuration file expected at the
// target repository root
const ConfigFileName = ".release.yml"

const (
	currentPlaceholder = "{current}"
	newPlaceholder     = "{new}"

	defaultReleaseBranchPrefix = "release/"
)

// Target describes a single file rewrite. Search must contain the
// {current} placeholder; replace must contain {new}. When replace is
// omitted it defaults to search with {current} swapped for {new}.
type Target struct {
	File    string `yaml:"file"`
	Search  string `yaml:"search"`
	Replace string `yaml:"replace"`
}

// Config is the parsed .release.yml
type Config struct {
	CurrentVersion      string   `yaml:"current_version"`
	BaseBranch          string   `yaml:"base_branch"`
	ReleaseBranchPrefix string   `yaml:"release_branch_prefix"`
	Labels              []string `yaml:"labels"`
	Targets             []Target `yaml:"bump"`
}

// Load parses and validates a .release.yml document
func Load(data []byte) (*Config, error) {
	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("failed to parse %s: %w", ConfigFileName, err)
	}

	if len(cfg.Targets) == 0 {
		return nil, errors.ErrNoBumpTargets
	}

	for i := range cfg.Targets {
		target := &cfg.Targets[i]
		if target.File == "" {
			return nil, fmt.Errorf("bump target %d: file is required", i)
		}
		if !strings.Contains(target.Search, currentPlaceholder) {
			return nil, fmt.Errorf("bump target %s: search must contain %s", target.File, currentPlaceholder)
		}
		if target.Replace == "" {
			target.Replace = strings.ReplaceAll(target.Search, currentPlaceholder, newPlaceholder)
		}
		if !strings.Contains(target.Replace, newPlaceholder) {
			return nil, fmt.Errorf("bump target %s: replace must contain %s", target.File, newPlaceholder)
		}
	}

	if cfg.ReleaseBranchPrefix == "" {
		cfg.ReleaseBranchPrefix = defaultReleaseBranchPrefix
	}

	return &cfg, nil
}

// ReleaseBranch returns the branch name that carries the bump commits
// for the given version, e.g. release/1.2.3
func (c *Config) ReleaseBranch(version string) string {
	return c.ReleaseBranchPrefix + version
}

// Base returns the PR target branch, falling back to the repository
// default branch when the config does not pin one
func (c *Config) Base(repoDefault string) string {
	if c.BaseBranch != "" {
		return c.BaseBranch
	}
	return repoDefault
}

// UpdateCurrentVersion rewrites the current_version line in a raw
// .release.yml document so the config tracks the release it just made.
// Errors when the document does not carry the expected line.
func UpdateCurrentVersion(content, current, next string) (string, error) {
	line := "current_version: " + current
	if !strings.Contains(content, line) {
		return "", fmt.Errorf("%s: %q line not found", ConfigFileName, line)
	}
	return strings.Replace(content, line, "current_version: "+next, 1), nil
}
