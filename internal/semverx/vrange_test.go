package semverx

import (
	"errors"
	"testing"
)

func TestRangeContains(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name    string
		expr    string
		version string
		want    bool
	}{
		{"any", "*", "9.legacy.9.legacy.9.legacy", true},
		{"any plain wildcard", "*.*.*", "1.0.0", true},
		{"semverx wildcard match", "2.stable.*.stable.*.stable", "2.4.1", true},
		{"semverx wildcard wrong major", "2.stable.*.stable.*.stable", "3.0.0", false},
		{"semverx wildcard wrong state", "2.stable.*.stable.*.stable", "2.stable.1.stable.0.experimental", false},
		{"state wildcard", "2.stable.*.*.*.*", "2.stable.1.legacy.0.experimental", true},
		{"exact six part", "1.stable.0.experimental.0.stable", "1.stable.0.experimental.0.stable", true},
		{"exact rejects other state", "1.stable.0.experimental.0.stable", "1.0.0", false},
		{"constraint", ">=1.2.0 <2.0.0", "1.9.0", true},
		{"constraint upper", ">=1.2.0 <2.0.0", "2.0.0", false},
		{"caret", "^1.4", "1.7.3", true},
		{"bounds", "1.0.0..2.0.0", "2.0.0", true},
		{"bounds below", "1.0.0..2.0.0", "0.9.9", false},
		{"open upper", "1.0.0..", "40.0.0", true},
		{"bounds states", "1.0.0..2.0.0 [stable]", "1.stable.1.experimental.0.stable", false},
		{"bounds states allowed", "1.0.0..2.0.0 [stable,experimental]", "1.stable.1.experimental.0.stable", true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			r, err := ParseRange(tt.expr)
			if err != nil {
				t.Fatalf("ParseRange(%q): %v", tt.expr, err)
			}
			if got := r.Contains(MustParse(tt.version)); got != tt.want {
				t.Errorf("%q.Contains(%s) = %v, want %v", tt.expr, tt.version, got, tt.want)
			}
		})
	}
}

func TestParseRangeErrors(t *testing.T) {
	t.Parallel()

	for _, expr := range []string{"1.x.*", "2.bogus.*.stable.*.stable", "1.0.0..nope", "1..2 [fresh]"} {
		if _, err := ParseRange(expr); !errors.Is(err, ErrInvalidRange) {
			t.Errorf("ParseRange(%q) error = %v, want ErrInvalidRange", expr, err)
		}
	}
	if _, err := ParseRange(">= not a version"); err == nil {
		t.Error("expected constraint parse error")
	}
}

func TestRangeStringRoundTrip(t *testing.T) {
	t.Parallel()

	ranges := []Range{
		{},
		Between(New(1, 0, 0), New(2, 0, 0), Stable),
		AtLeast(MustParse("1.stable.2.experimental.0.stable")),
		{Max: &Version{Major: 3}},
		{AllowedStates: []State{Stable, Legacy}},
		Exactly(MustParse("4.legacy.0.stable.1.stable")),
	}
	probes := []Version{
		New(0, 5, 0), New(1, 0, 0), New(1, 5, 0), New(2, 0, 0), New(3, 1, 0),
		MustParse("1.stable.2.experimental.0.stable"),
		MustParse("4.legacy.0.stable.1.stable"),
	}

	for _, r := range ranges {
		back, err := ParseRange(r.String())
		if err != nil {
			t.Fatalf("ParseRange(%q): %v", r.String(), err)
		}
		for _, v := range probes {
			if r.Contains(v) != back.Contains(v) {
				t.Errorf("range %q: Contains(%s) differs after round trip", r.String(), v)
			}
		}
	}
}
