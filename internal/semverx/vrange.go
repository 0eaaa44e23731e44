package semverx

import (
	"errors"
	"fmt"
	"slices"
	"strconv"
	"strings"

	mm "github.com/Masterminds/semver/v3"
)

// ErrInvalidRange is returned when a range expression cannot be parsed.
var ErrInvalidRange = errors.New("invalid version range")

const (
	wildcard  = "*"
	boundsSep = ".."
)

// Range selects a set of versions. A Range is built either from bounds
// (Min, Max, AllowedStates) or by ParseRange, which also understands
// SemverX wildcard patterns ("2.stable.*.stable.*.*") and classic
// constraints (">=1.2.0 <2.0.0", "^1.4") evaluated on the plain projection.
// The zero Range matches every version.
type Range struct {
	// Min is the inclusive lower bound, if set.
	Min *Version
	// Max is the inclusive upper bound, if set.
	Max *Version
	// AllowedStates restricts every component state; empty allows all.
	AllowedStates []State

	raw        string
	pattern    *pattern
	constraint *mm.Constraints
}

// pattern is a parsed wildcard form. A nil number or state matches anything.
type pattern struct {
	nums   [3]*uint32
	states [3]*State
}

// Any returns the range that matches every version.
func Any() Range { return Range{raw: wildcard} }

// Exactly returns a range matching only v.
func Exactly(v Version) Range {
	nums := [3]uint32{v.Major, v.Minor, v.Patch}
	states := v.States()
	p := &pattern{}
	for i := range nums {
		p.nums[i] = &nums[i]
		p.states[i] = &states[i]
	}
	return Range{raw: v.String(), pattern: p}
}

// Between returns a range with inclusive bounds and optional allowed states.
func Between(lo, hi Version, states ...State) Range {
	return Range{Min: &lo, Max: &hi, AllowedStates: states}
}

// AtLeast returns an unbounded-above range.
func AtLeast(lo Version, states ...State) Range {
	return Range{Min: &lo, AllowedStates: states}
}

// ParseRange parses a range expression. Accepted forms:
//
//	""  "*"  "*.*.*"                 any version
//	"2.stable.*.stable.*.stable"      SemverX wildcard pattern
//	"2.*.*"                           plain wildcard pattern
//	"1.2.3" / "1.stable.2.stable.3.stable"  exact version
//	">=1.2.0 <2.0.0", "^1.4", "~1.4.2"      classic constraint
//	"1.2.0..2.0.0 [stable,experimental]"     inclusive bounds, open ends allowed
func ParseRange(raw string) (Range, error) {
	s := strings.TrimSpace(raw)
	if s == "" || s == wildcard {
		return Any(), nil
	}

	if strings.Contains(s, boundsSep) {
		return parseBounds(raw, s)
	}

	if strings.ContainsAny(s, "<>=^~ ,|") {
		c, err := mm.NewConstraint(s)
		if err != nil {
			return Range{}, fmt.Errorf("semverx: parse constraint %q: %w", raw, err)
		}
		return Range{raw: s, constraint: c}, nil
	}

	if !strings.Contains(s, wildcard) {
		v, err := Parse(s)
		if err != nil {
			return Range{}, fmt.Errorf("%w: %q", ErrInvalidRange, raw)
		}
		r := Exactly(v)
		r.raw = s
		return r, nil
	}

	p, err := parsePattern(s)
	if err != nil {
		return Range{}, fmt.Errorf("%w: %q", ErrInvalidRange, raw)
	}
	return Range{raw: s, pattern: p}, nil
}

// MustParseRange is like ParseRange but panics on error.
func MustParseRange(raw string) Range {
	r, err := ParseRange(raw)
	if err != nil {
		panic(err)
	}
	return r
}

func parseBounds(raw, s string) (Range, error) {
	var r Range
	if i := strings.IndexByte(s, '['); i >= 0 {
		if !strings.HasSuffix(s, "]") {
			return Range{}, fmt.Errorf("%w: %q", ErrInvalidRange, raw)
		}
		for _, name := range strings.Split(s[i+1:len(s)-1], ",") {
			st, err := ParseState(name)
			if err != nil {
				return Range{}, fmt.Errorf("%w: %q: %w", ErrInvalidRange, raw, err)
			}
			r.AllowedStates = append(r.AllowedStates, st)
		}
		s = strings.TrimSpace(s[:i])
	}

	lo, hi, _ := strings.Cut(s, boundsSep)
	if lo = strings.TrimSpace(lo); lo != "" {
		v, err := Parse(lo)
		if err != nil {
			return Range{}, fmt.Errorf("%w: %q", ErrInvalidRange, raw)
		}
		r.Min = &v
	}
	if hi = strings.TrimSpace(hi); hi != "" {
		v, err := Parse(hi)
		if err != nil {
			return Range{}, fmt.Errorf("%w: %q", ErrInvalidRange, raw)
		}
		r.Max = &v
	}
	return r, nil
}

func parsePattern(s string) (*pattern, error) {
	parts := strings.Split(s, ".")
	p := &pattern{}

	var numFields, stateFields []string
	switch len(parts) {
	case 3:
		numFields = parts
	case 6:
		numFields = []string{parts[0], parts[2], parts[4]}
		stateFields = []string{parts[1], parts[3], parts[5]}
	default:
		return nil, ErrInvalidRange
	}

	for i, f := range numFields {
		if f == wildcard {
			continue
		}
		n, err := strconv.ParseUint(f, 10, 32)
		if err != nil {
			return nil, err
		}
		v := uint32(n)
		p.nums[i] = &v
	}
	for i, f := range stateFields {
		if f == wildcard {
			continue
		}
		st, err := ParseState(f)
		if err != nil {
			return nil, err
		}
		p.states[i] = &st
	}
	return p, nil
}

// Contains reports whether v falls inside the range.
func (r Range) Contains(v Version) bool {
	if r.constraint != nil && !r.constraint.Check(v.semver()) {
		return false
	}
	if r.pattern != nil && !r.pattern.matches(v) {
		return false
	}
	if r.Min != nil && v.Compare(*r.Min) < 0 {
		return false
	}
	if r.Max != nil && v.Compare(*r.Max) > 0 {
		return false
	}
	if len(r.AllowedStates) > 0 {
		for _, st := range v.States() {
			if !slices.Contains(r.AllowedStates, st) {
				return false
			}
		}
	}
	return true
}

func (p *pattern) matches(v Version) bool {
	nums := [3]uint32{v.Major, v.Minor, v.Patch}
	states := v.States()
	for i := range nums {
		if p.nums[i] != nil && *p.nums[i] != nums[i] {
			return false
		}
		if p.states[i] != nil && *p.states[i] != states[i] {
			return false
		}
	}
	return true
}

// String returns the expression the range was parsed from, or the bounds
// form "min..max [states]". The result always parses back with ParseRange.
func (r Range) String() string {
	if r.raw != "" {
		return r.raw
	}
	if r.Min == nil && r.Max == nil && len(r.AllowedStates) == 0 {
		return wildcard
	}
	var b strings.Builder
	if r.Min != nil {
		b.WriteString(r.Min.String())
	}
	b.WriteString(boundsSep)
	if r.Max != nil {
		b.WriteString(r.Max.String())
	}
	if len(r.AllowedStates) > 0 {
		names := make([]string, len(r.AllowedStates))
		for i, st := range r.AllowedStates {
			names[i] = st.String()
		}
		fmt.Fprintf(&b, " [%s]", strings.Join(names, ","))
	}
	return b.String()
}
