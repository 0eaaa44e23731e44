// Package fault defines the 18-level package health scale and the recovery
// policy that maps each level to an action. Levels are grouped into six
// bands of three; the band selects the RecoveryAction.
package fault

import (
	"errors"
	"fmt"
	"strconv"
	"strings"
)

// ErrInvalidLevel is returned when a level name or number is out of range.
var ErrInvalidLevel = errors.New("invalid fault level")

// Level is a package's fault severity, 0 (Clean) through 17 (SystemPanic).
type Level uint8

// The canonical 18-level scale.
const (
	Clean Level = iota
	LowWarning
	LowMediumWarning
	MediumWarning
	MediumHighWarning
	HighWarning
	LowDanger
	LowMediumDanger
	MediumDanger
	MediumHighDanger
	HighDanger
	CriticalDanger
	LowPanic
	LowMediumPanic
	MediumPanic
	MediumHighPanic
	HighPanic
	SystemPanic
)

// MaxLevel is the highest valid level.
const MaxLevel = SystemPanic

const levelsPerBand = 3

var levelNames = [...]string{
	"Clean",
	"LowWarning",
	"LowMediumWarning",
	"MediumWarning",
	"MediumHighWarning",
	"HighWarning",
	"LowDanger",
	"LowMediumDanger",
	"MediumDanger",
	"MediumHighDanger",
	"HighDanger",
	"CriticalDanger",
	"LowPanic",
	"LowMediumPanic",
	"MediumPanic",
	"MediumHighPanic",
	"HighPanic",
	"SystemPanic",
}

// String returns the level name, e.g. "MediumDanger".
func (l Level) String() string {
	if !l.Valid() {
		return fmt.Sprintf("Level(%d)", uint8(l))
	}
	return levelNames[l]
}

// Valid reports whether l is on the scale.
func (l Level) Valid() bool {
	return l <= MaxLevel
}

// Category returns "clean", "warning", "danger", or "panic".
func (l Level) Category() string {
	switch {
	case l == Clean:
		return "clean"
	case l < LowDanger:
		return "warning"
	case l < LowPanic:
		return "danger"
	default:
		return "panic"
	}
}

// ParseLevel accepts a level name (case-insensitive) or its number.
func ParseLevel(raw string) (Level, error) {
	s := strings.TrimSpace(raw)
	for i, name := range levelNames {
		if strings.EqualFold(name, s) {
			return Level(i), nil
		}
	}
	if n, err := strconv.Atoi(s); err == nil && n >= 0 && n <= int(MaxLevel) {
		return Level(n), nil
	}
	return 0, fmt.Errorf("%w: %q", ErrInvalidLevel, raw)
}

// Max returns the more severe of a and b.
func Max(a, b Level) Level {
	if a > b {
		return a
	}
	return b
}
