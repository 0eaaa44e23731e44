// Package semverx models SemverX versions: semantic versions whose major,
// minor, and patch components each carry a release-channel state. The
// textual form is "2.stable.1.experimental.0.legacy"; a plain "2.1.0" is
// accepted as all-stable.
package semverx

import (
	"errors"
	"fmt"
	"strconv"
	"strings"

	mm "github.com/Masterminds/semver/v3"
)

// ErrInvalidVersion is returned when a version string cannot be parsed.
var ErrInvalidVersion = errors.New("invalid version")

// ErrInvalidState is returned when a state name is not recognised.
var ErrInvalidState = errors.New("invalid version state")

// State is the release channel of a single version component.
type State uint8

// Component states. The cost of moving into a state is a heuristic weight
// only; states never affect version precedence.
const (
	Stable State = iota
	Experimental
	Legacy
)

// Cost returns the upgrade cost of moving into s: Stable 0,
// Experimental 5, Legacy 10.
func (s State) Cost() uint64 {
	switch s {
	case Experimental:
		return 5
	case Legacy:
		return 10
	default:
		return 0
	}
}

// String returns the lowercase state name used in the textual form.
func (s State) String() string {
	switch s {
	case Stable:
		return "stable"
	case Experimental:
		return "experimental"
	case Legacy:
		return "legacy"
	default:
		return fmt.Sprintf("state(%d)", uint8(s))
	}
}

// ParseState parses a state name, case-insensitively.
func ParseState(raw string) (State, error) {
	switch strings.ToLower(strings.TrimSpace(raw)) {
	case "stable":
		return Stable, nil
	case "experimental":
		return Experimental, nil
	case "legacy":
		return Legacy, nil
	default:
		return 0, fmt.Errorf("%w: %q", ErrInvalidState, raw)
	}
}

// Version is an immutable SemverX version. Two versions are equal when
// all six fields are equal, so Version is usable as a map key.
type Version struct {
	Major      uint32
	MajorState State
	Minor      uint32
	MinorState State
	Patch      uint32
	PatchState State
}

// New returns an all-stable version.
func New(major, minor, patch uint32) Version {
	return Version{Major: major, Minor: minor, Patch: patch}
}

// Parse parses either the six-part SemverX form
// ("1.stable.2.experimental.3.legacy") or a plain three-part version
// ("1.2.3", optionally prefixed with "v"), which is taken as all-stable.
func Parse(raw string) (Version, error) {
	s := strings.TrimPrefix(strings.TrimSpace(raw), "v")
	parts := strings.Split(s, ".")

	switch len(parts) {
	case 3:
		nums, err := parseNumbers(raw, parts[0], parts[1], parts[2])
		if err != nil {
			return Version{}, err
		}
		return New(nums[0], nums[1], nums[2]), nil
	case 6:
		nums, err := parseNumbers(raw, parts[0], parts[2], parts[4])
		if err != nil {
			return Version{}, err
		}
		var states [3]State
		for i, p := range []string{parts[1], parts[3], parts[5]} {
			st, err := ParseState(p)
			if err != nil {
				return Version{}, fmt.Errorf("%w %q: %w", ErrInvalidVersion, raw, err)
			}
			states[i] = st
		}
		return Version{
			Major: nums[0], MajorState: states[0],
			Minor: nums[1], MinorState: states[1],
			Patch: nums[2], PatchState: states[2],
		}, nil
	default:
		return Version{}, fmt.Errorf("%w: %q", ErrInvalidVersion, raw)
	}
}

// MustParse is like Parse but panics on error. Intended for tests and
// package-level literals.
func MustParse(raw string) Version {
	v, err := Parse(raw)
	if err != nil {
		panic(err)
	}
	return v
}

func parseNumbers(raw string, fields ...string) ([3]uint32, error) {
	var out [3]uint32
	for i, f := range fields {
		n, err := strconv.ParseUint(f, 10, 32)
		if err != nil {
			return out, fmt.Errorf("%w: %q", ErrInvalidVersion, raw)
		}
		out[i] = uint32(n)
	}
	return out, nil
}

// String returns the six-part textual form.
func (v Version) String() string {
	return fmt.Sprintf("%d.%s.%d.%s.%d.%s",
		v.Major, v.MajorState, v.Minor, v.MinorState, v.Patch, v.PatchState)
}

// Plain returns the three-part projection "major.minor.patch".
func (v Version) Plain() string {
	return fmt.Sprintf("%d.%d.%d", v.Major, v.Minor, v.Patch)
}

// IsStable reports whether every component is on the stable channel.
func (v Version) IsStable() bool {
	return v.MajorState == Stable && v.MinorState == Stable && v.PatchState == Stable
}

// States returns the component states in major, minor, patch order.
func (v Version) States() [3]State {
	return [3]State{v.MajorState, v.MinorState, v.PatchState}
}

// Compare orders versions by major, minor, then patch. States are ignored.
func (v Version) Compare(o Version) int {
	switch {
	case v.Major != o.Major:
		return cmpUint(v.Major, o.Major)
	case v.Minor != o.Minor:
		return cmpUint(v.Minor, o.Minor)
	default:
		return cmpUint(v.Patch, o.Patch)
	}
}

func cmpUint(a, b uint32) int {
	switch {
	case a < b:
		return -1
	case a > b:
		return 1
	default:
		return 0
	}
}

// semver returns the Masterminds projection used for classic constraints.
func (v Version) semver() *mm.Version {
	return mm.New(uint64(v.Major), uint64(v.Minor), uint64(v.Patch), "", "")
}
