package tagref

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/savaki/release-pipeline/internal/errors"
)

func TestParseRef(t *testing.T) {
	tests := []struct {
		name    string
		ref     string
		want    Version
		wantErr bool
	}{
		{
			name: "simple release tag",
			ref:  "refs/tags/v1.2.3",
			want: Version{Major: 1, Minor: 2, Patch: 3},
		},
		{
			name: "prerelease tag",
			ref:  "refs/tags/v0.4.0-rc.1",
			want: Version{Major: 0, Minor: 4, Patch: 0, Prerelease: "rc.1"},
		},
		{
			name: "build metadata",
			ref:  "refs/tags/v2.0.0+build.17",
			want: Version{Major: 2, Patch: 0, Build: "build.17"},
		},
		{
			name:    "branch ref is not a release tag",
			ref:     "refs/heads/v1.2.3",
			wantErr: true,
		},
		{
			name:    "tag missing v prefix",
			ref:     "refs/tags/1.2.3",
			wantErr: true,
		},
		{
			name:    "bare tag without refs prefix",
			ref:     "v1.2.3",
			wantErr: true,
		},
		{
			name:    "leading zero rejected",
			ref:     "refs/tags/v01.2.3",
			wantErr: true,
		},
		{
			name:    "missing patch",
			ref:     "refs/tags/v1.2",
			wantErr: true,
		},
		{
			name:    "empty prerelease",
			ref:     "refs/tags/v1.2.3-",
			wantErr: true,
		},
		{
			name:    "empty prerelease identifier",
			ref:     "refs/tags/v1.2.3-rc..1",
			wantErr: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := ParseRef(tt.ref)
			if tt.wantErr {
				require.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

// The derived version string must equal the tag suffix after the literal
// prefix refs/tags/v.
func TestParseRefRoundTrip(t *testing.T) {
	refs := []string{
		"refs/tags/v1.2.3",
		"refs/tags/v0.0.1",
		"refs/tags/v10.20.30",
		"refs/tags/v1.0.0-alpha",
		"refs/tags/v1.0.0-rc.2+linux.amd64",
	}

	for _, ref := range refs {
		t.Run(ref, func(t *testing.T) {
			v, err := ParseRef(ref)
			require.NoError(t, err)
			assert.Equal(t, strings.TrimPrefix(ref, "refs/tags/v"), v.String())
			assert.Equal(t, ref, v.Ref())
		})
	}
}

func TestParseRefSentinel(t *testing.T) {
	_, err := ParseRef("refs/heads/mainline")
	assert.ErrorIs(t, err, errors.ErrNotReleaseTag)

	_, err = ParseRef("refs/tags/v1.2")
	assert.ErrorIs(t, err, errors.ErrInvalidVersionFormat)
}

func TestBump(t *testing.T) {
	base := Version{Major: 1, Minor: 2, Patch: 3, Prerelease: "rc.1", Build: "b5"}

	tests := []struct {
		part string
		want Version
	}{
		{part: "major", want: Version{Major: 2}},
		{part: "minor", want: Version{Major: 1, Minor: 3}},
		{part: "patch", want: Version{Major: 1, Minor: 2, Patch: 4}},
	}

	for _, tt := range tests {
		t.Run(tt.part, func(t *testing.T) {
			got, err := base.Bump(tt.part)
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}

	_, err := base.Bump("micro")
	assert.Error(t, err)
}

func TestCompare(t *testing.T) {
	tests := []struct {
		a, b string
		want int
	}{
		{"1.0.0", "1.0.0", 0},
		{"1.0.0", "1.0.1", -1},
		{"1.1.0", "1.0.9", 1},
		{"2.0.0", "1.9.9", 1},
		{"1.0.0-rc.1", "1.0.0", -1},
		{"1.0.0-rc.1", "1.0.0-rc.2", -1},
		{"1.0.0-alpha", "1.0.0-alpha.1", -1},
		{"1.0.0-1", "1.0.0-alpha", -1},
		{"1.0.0-rc.10", "1.0.0-rc.9", 1},
		{"1.0.0+a", "1.0.0+b", 0},
	}

	for _, tt := range tests {
		t.Run(tt.a+" vs "+tt.b, func(t *testing.T) {
			a, err := Parse(tt.a)
			require.NoError(t, err)
			b, err := Parse(tt.b)
			require.NoError(t, err)
			assert.Equal(t, tt.want, a.Compare(b))
			assert.Equal(t, -tt.want, b.Compare(a))
		})
	}
}

func TestIsPrerelease(t *testing.T) {
	v, err := Parse("1.0.0-rc.1")
	require.NoError(t, err)
	assert.True(t, v.IsPrerelease())

	v, err = Parse("1.0.0")
	require.NoError(t, err)
	assert.False(t, v.IsPrerelease())
}
