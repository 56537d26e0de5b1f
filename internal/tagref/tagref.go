package tagref

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/savaki/release-pipeline/internal/errors"
)

// TagRefPrefix is the fully qualified ref prefix for tags
const TagRefPrefix = "refs/tags/"

// Version represents a semantic version parsed from a release tag.
// A parsed version always round-trips: String() equals the tag ref with
// the literal "refs/tags/v" prefix removed.
type Version struct {
	Major      uint64
	Minor      uint64
	Patch      uint64
	Prerelease string // e.g. "rc.1", empty when absent
	Build      string // build metadata after "+", empty when absent
}

// ParseRef parses a fully qualified tag ref like "refs/tags/v1.2.3".
// Refs outside refs/tags/ (e.g. refs/heads/v1.2.3) are not release tags.
func ParseRef(ref string) (Version, error) {
	tag, ok := strings.CutPrefix(ref, TagRefPrefix)
	if !ok {
		return Version{}, fmt.Errorf("%w: %s", errors.ErrNotReleaseTag, ref)
	}
	return ParseTag(tag)
}

// ParseTag parses a release tag like "v1.2.3" or "v1.2.3-rc.1+build.5"
func ParseTag(tag string) (Version, error) {
	rest, ok := strings.CutPrefix(tag, "v")
	if !ok {
		return Version{}, fmt.Errorf("%w: tag %s missing v prefix", errors.ErrNotReleaseTag, tag)
	}
	return Parse(rest)
}

// Parse parses a bare semantic version string like "1.2.3-rc.1+build.5"
func Parse(s string) (Version, error) {
	if s == "" {
		return Version{}, fmt.Errorf("%w: empty version", errors.ErrInvalidVersionFormat)
	}

	var v Version

	core := s
	if i := strings.IndexByte(core, '+'); i >= 0 {
		v.Build = core[i+1:]
		core = core[:i]
		if v.Build == "" {
			return Version{}, fmt.Errorf("%w: %s, empty build metadata", errors.ErrInvalidVersionFormat, s)
		}
	}
	if i := strings.IndexByte(core, '-'); i >= 0 {
		v.Prerelease = core[i+1:]
		core = core[:i]
		if err := validatePrerelease(v.Prerelease); err != nil {
			return Version{}, fmt.Errorf("%w: %s, %v", errors.ErrInvalidVersionFormat, s, err)
		}
	}

	parts := strings.Split(core, ".")
	if len(parts) != 3 {
		return Version{}, fmt.Errorf("%w: %s, expected {major}.{minor}.{patch}", errors.ErrInvalidVersionFormat, s)
	}

	nums := make([]uint64, 3)
	for i, part := range parts {
		n, err := parseNumericIdentifier(part)
		if err != nil {
			return Version{}, fmt.Errorf("%w: %s, %v", errors.ErrInvalidVersionFormat, s, err)
		}
		nums[i] = n
	}

	v.Major, v.Minor, v.Patch = nums[0], nums[1], nums[2]
	return v, nil
}

// parseNumericIdentifier parses a non-negative integer rejecting leading zeros
func parseNumericIdentifier(s string) (uint64, error) {
	if s == "" {
		return 0, fmt.Errorf("empty numeric identifier")
	}
	if len(s) > 1 && s[0] == '0' {
		return 0, fmt.Errorf("leading zero in %q", s)
	}
	n, err := strconv.ParseUint(s, 10, 64)
	if err != nil {
		return 0, fmt.Errorf("non-numeric identifier %q", s)
	}
	return n, nil
}

func validatePrerelease(pre string) error {
	if pre == "" {
		return fmt.Errorf("empty prerelease")
	}
	for _, ident := range strings.Split(pre, ".") {
		if ident == "" {
			return fmt.Errorf("empty prerelease identifier")
		}
		if isNumeric(ident) && len(ident) > 1 && ident[0] == '0' {
			return fmt.Errorf("leading zero in prerelease identifier %q", ident)
		}
	}
	return nil
}

func isNumeric(s string) bool {
	for i := 0; i < len(s); i++ {
		if s[i] < '0' || s[i] > '9' {
			return false
		}
	}
	return len(s) > 0
}

// String returns the bare version string without the v prefix
func (v Version) String() string {
	var sb strings.Builder
	fmt.Fprintf(&sb, "%d.%d.%d", v.Major, v.Minor, v.Patch)
	if v.Prerelease != "" {
		sb.WriteByte('-')
		sb.WriteString(v.Prerelease)
	}
	if v.Build != "" {
		sb.WriteByte('+')
		sb.WriteString(v.Build)
	}
	return sb.String()
}

// TagName returns the tag form, e.g. "v1.2.3"
func (v Version) TagName() string {
	return "v" + v.String()
}

// Ref returns the fully qualified tag ref, e.g. "refs/tags/v1.2.3"
func (v Version) Ref() string {
	return TagRefPrefix + v.TagName()
}

// IsPrerelease reports whether the version carries a prerelease identifier
func (v Version) IsPrerelease() bool {
	return v.Prerelease != ""
}

// Bump returns a copy with the named part incremented. Lower parts reset
// to zero; prerelease and build metadata are cleared.
func (v Version) Bump(part string) (Version, error) {
	switch part {
	case "major":
		return Version{Major: v.Major + 1}, nil
	case "minor":
		return Version{Major: v.Major, Minor: v.Minor + 1}, nil
	case "patch":
		return Version{Major: v.Major, Minor: v.Minor, Patch: v.Patch + 1}, nil
	default:
		return Version{}, fmt.Errorf("unknown version part %q, expected major, minor, or patch", part)
	}
}

// Compare returns -1, 0, or 1 per semantic version precedence.
// Build metadata is ignored.
func (v Version) Compare(other Version) int {
	if c := compareUint(v.Major, other.Major); c != 0 {
		return c
	}
	if c := compareUint(v.Minor, other.Minor); c != 0 {
		return c
	}
	if c := compareUint(v.Patch, other.Patch); c != 0 {
		return c
	}
	return comparePrerelease(v.Prerelease, other.Prerelease)
}

func compareUint(a, b uint64) int {
	switch {
	case a < b:
		return -1
	case a > b:
		return 1
	default:
		return 0
	}
}

// comparePrerelease orders prerelease identifiers per semver: a version
// without a prerelease sorts after one with, numeric identifiers compare
// numerically and sort before alphanumeric ones.
func comparePrerelease(a, b string) int {
	switch {
	case a == b:
		return 0
	case a == "":
		return 1
	case b == "":
		return -1
	}

	as := strings.Split(a, ".")
	bs := strings.Split(b, ".")
	for i := 0; i < len(as) && i < len(bs); i++ {
		ai, bi := as[i], bs[i]
		if ai == bi {
			continue
		}
		aNum, bNum := isNumeric(ai), isNumeric(bi)
		switch {
		case aNum && bNum:
			an, _ := strconv.ParseUint(ai, 10, 64)
			bn, _ := strconv.ParseUint(bi, 10, 64)
			return compareUint(an, bn)
		case aNum:
			return -1
		case bNum:
			return 1
		default:
			if ai < bi {
				return -1
			}
			return 1
		}
	}
	return compareUint(uint64(len(as)), uint64(len(bs)))
}
