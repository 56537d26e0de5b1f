package bump

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/savaki/release-pipeline/internal/errors"
)

const sampleConfig = `
base_branch: mainline
labels:
  - release
bump:
  - file: setup.py
    search: 'version="{current}"'
  - file: src/pkg/_version.py
    search: '__version__ = "{current}"'
    replace: '__version__ = "{new}"'
`

func TestLoad(t *testing.T) {
	cfg, err := Load([]byte(sampleConfig))
	require.NoError(t, err)

	assert.Equal(t, "mainline", cfg.BaseBranch)
	assert.Equal(t, []string{"release"}, cfg.Labels)
	require.Len(t, cfg.Targets, 2)

	// omitted replace defaults to search with the placeholder swapped
	assert.Equal(t, `version="{new}"`, cfg.Targets[0].Replace)
	assert.Equal(t, `__version__ = "{new}"`, cfg.Targets[1].Replace)

	// default prefix
	assert.Equal(t, "release/1.2.3", cfg.ReleaseBranch("1.2.3"))
}

func TestLoadValidation(t *testing.T) {
	tests := []struct {
		name string
		yaml string
	}{
		{
			name: "no targets",
			yaml: "base_branch: main\n",
		},
		{
			name: "missing file",
			yaml: "bump:\n  - search: 'v={current}'\n",
		},
		{
			name: "search without placeholder",
			yaml: "bump:\n  - file: setup.py\n    search: 'version=\"1.0.0\"'\n",
		},
		{
			name: "replace without placeholder",
			yaml: "bump:\n  - file: setup.py\n    search: 'v={current}'\n    replace: 'v=1.0.0'\n",
		},
		{
			name: "not yaml",
			yaml: "{{{",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Load([]byte(tt.yaml))
			assert.Error(t, err)
		})
	}
}

func TestLoadNoTargetsSentinel(t *testing.T) {
	_, err := Load([]byte("base_branch: main\n"))
	assert.ErrorIs(t, err, errors.ErrNoBumpTargets)
}

func TestBase(t *testing.T) {
	cfg := &Config{BaseBranch: "mainline"}
	assert.Equal(t, "mainline", cfg.Base("main"))

	cfg = &Config{}
	assert.Equal(t, "main", cfg.Base("main"))
}

func TestPlan(t *testing.T) {
	cfg, err := Load([]byte(sampleConfig))
	require.NoError(t, err)

	files := map[string]string{
		"setup.py":            "setup(\n    name=\"pkg\",\n    version=\"0.4.9\",\n)\n",
		"src/pkg/_version.py": "__version__ = \"0.4.9\"\n",
	}

	rewrites, err := Plan(cfg, "0.4.9", "0.5.0", files)
	require.NoError(t, err)
	require.Len(t, rewrites, 2)

	assert.Equal(t, "setup.py", rewrites[0].File)
	assert.Contains(t, rewrites[0].Content, `version="0.5.0"`)
	assert.NotContains(t, rewrites[0].Content, "0.4.9")
	assert.Equal(t, 1, rewrites[0].Occurrences)

	assert.Equal(t, "src/pkg/_version.py", rewrites[1].File)
	assert.Equal(t, "__version__ = \"0.5.0\"\n", rewrites[1].Content)
}

func TestPlanPatternNotFound(t *testing.T) {
	cfg, err := Load([]byte(sampleConfig))
	require.NoError(t, err)

	files := map[string]string{
		"setup.py":            "version=\"0.4.8\"\n", // stale version
		"src/pkg/_version.py": "__version__ = \"0.4.9\"\n",
	}

	_, err = Plan(cfg, "0.4.9", "0.5.0", files)
	assert.ErrorIs(t, err, errors.ErrPatternNotFound)
	assert.Contains(t, err.Error(), "setup.py")
}

func TestPlanMissingFile(t *testing.T) {
	cfg, err := Load([]byte(sampleConfig))
	require.NoError(t, err)

	files := map[string]string{
		"setup.py": "version=\"0.4.9\"\n",
	}

	_, err = Plan(cfg, "0.4.9", "0.5.0", files)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "src/pkg/_version.py")
}

// A second application against already-bumped content fails: the search
// pattern for the old version is gone.
func TestPlanNotIdempotent(t *testing.T) {
	cfg, err := Load([]byte(sampleConfig))
	require.NoError(t, err)

	files := map[string]string{
		"setup.py":            "version=\"0.4.9\"\n",
		"src/pkg/_version.py": "__version__ = \"0.4.9\"\n",
	}

	bumped, err := Apply(cfg, "0.4.9", "0.5.0", files)
	require.NoError(t, err)

	_, err = Plan(cfg, "0.4.9", "0.5.0", bumped)
	assert.ErrorIs(t, err, errors.ErrPatternNotFound)
}

func TestPlanSameVersion(t *testing.T) {
	cfg, err := Load([]byte(sampleConfig))
	require.NoError(t, err)

	_, err = Plan(cfg, "0.5.0", "0.5.0", map[string]string{})
	assert.Error(t, err)
}

func TestPlanMultipleOccurrences(t *testing.T) {
	cfg, err := Load([]byte("bump:\n  - file: README.md\n    search: '{current}'\n"))
	require.NoError(t, err)

	files := map[string]string{
		"README.md": "install pkg==1.0.0\npin pkg==1.0.0\n",
	}

	rewrites, err := Plan(cfg, "1.0.0", "1.1.0", files)
	require.NoError(t, err)
	require.Len(t, rewrites, 1)
	assert.Equal(t, 2, rewrites[0].Occurrences)
	assert.Equal(t, "install pkg==1.1.0\npin pkg==1.1.0\n", rewrites[0].Content)
}
