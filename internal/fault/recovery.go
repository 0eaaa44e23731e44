package fault

import (
	"errors"
	"fmt"
	"strings"
)

// ErrInvalidAction is returned when parsing an unknown recovery action.
var ErrInvalidAction = errors.New("invalid recovery action")

// RecoveryAction is the remedial step the registry takes for a fault band.
type RecoveryAction uint8

// Recovery actions, one per band of three levels.
const (
	NoAction RecoveryAction = iota
	NotifyObservers
	RequestManualReview
	FreezeUpdates
	RollbackToStable
	SystemReset
)

// String returns the action name.
func (a RecoveryAction) String() string {
	switch a {
	case NoAction:
		return "NoAction"
	case NotifyObservers:
		return "NotifyObservers"
	case RequestManualReview:
		return "RequestManualReview"
	case FreezeUpdates:
		return "FreezeUpdates"
	case RollbackToStable:
		return "RollbackToStable"
	case SystemReset:
		return "SystemReset"
	default:
		return fmt.Sprintf("RecoveryAction(%d)", uint8(a))
	}
}

// ParseAction accepts an action name (case-insensitive) or one of the
// short forms rollback and reset.
func ParseAction(raw string) (RecoveryAction, error) {
	s := strings.TrimSpace(raw)
	switch strings.ToLower(s) {
	case "rollback":
		return RollbackToStable, nil
	case "reset":
		return SystemReset, nil
	}
	for a := NoAction; a <= SystemReset; a++ {
		if strings.EqualFold(a.String(), s) {
			return a, nil
		}
	}
	return 0, fmt.Errorf("%w: %q", ErrInvalidAction, raw)
}

// ActionFor maps a level to its band's recovery action. It is a pure
// function of the level. Levels above MaxLevel map to SystemReset.
func ActionFor(l Level) RecoveryAction {
	if !l.Valid() {
		return SystemReset
	}
	return RecoveryAction(l / levelsPerBand)
}

// Transition describes a change of fault level on one package.
type Transition struct {
	From Level
	To   Level
}

// Raise computes the transition for observing level seen while at cur.
// Fault only rises: a less severe observation leaves the level unchanged.
func Raise(cur, seen Level) Transition {
	return Transition{From: cur, To: Max(cur, seen)}
}

// Escalated reports whether the level increased.
func (t Transition) Escalated() bool {
	return t.To > t.From
}

// BandChanged reports whether the transition moved into a different band,
// which is when the band's side effect must run.
func (t Transition) BandChanged() bool {
	return ActionFor(t.From) != ActionFor(t.To)
}

// Action returns the recovery action for the destination level.
func (t Transition) Action() RecoveryAction {
	return ActionFor(t.To)
}

// String renders the transition as "From -> To (Action)".
func (t Transition) String() string {
	return fmt.Sprintf("%s -> %s (%s)", t.From, t.To, t.Action())
}
