// Package bump rewrites version strings in project files according to
// the repository's .release.yml. A search pattern that does not match
// fails the plan rather than silently skipping the file: a stale pattern
// means the config and the tree have drifted and the release should not
// proceed.
package bump

import (
	"fmt"
	"strings"

	"github.com/savaki/release-pipeline/internal/errors"
)

// Rewrite is a planned content change for a single file
type Rewrite struct {
	File        string // path within the repository
	Content     string // full rewritten file content
	Occurrences int    // number of pattern matches replaced
}

// Plan computes the rewrites that move every configured target from
// current to next. files maps repository paths to current contents.
// No file is modified; callers commit the returned contents.
func Plan(cfg *Config, current, next string, files map[string]string) ([]Rewrite, error) {
	if current == next {
		return nil, fmt.Errorf("current and next version are both %s", current)
	}

	rewrites := make([]Rewrite, 0, len(cfg.Targets))
	for _, target := range cfg.Targets {
		content, ok := files[target.File]
		if !ok {
			return nil, fmt.Errorf("bump target %s: file not found in repository", target.File)
		}

		search := strings.ReplaceAll(target.Search, currentPlaceholder, current)
		replace := strings.ReplaceAll(target.Replace, newPlaceholder, next)

		n := strings.Count(content, search)
		if n == 0 {
			return nil, fmt.Errorf("%w: %s, pattern %q", errors.ErrPatternNotFound, target.File, search)
		}

		rewrites = append(rewrites, Rewrite{
			File:        target.File,
			Content:     strings.ReplaceAll(content, search, replace),
			Occurrences: n,
		})
	}

	return rewrites, nil
}

// Apply runs Plan and returns the rewritten contents keyed by path
func Apply(cfg *Config, current, next string, files map[string]string) (map[string]string, error) {
	rewrites, err := Plan(cfg, current, next, files)
	if err != nil {
		return nil, err
	}

	out := make(map[string]string, len(rewrites))
	for _, rw := range rewrites {
		out[rw.File] = rw.Content
	}
	return out, nil
}
