// Package resolve finds installation and upgrade paths through a
// dependency graph. Four strategies share the Strategy interface:
// an Eulerian admissibility check, a bounded Hamiltonian search, A* over
// version distance, and a Hybrid that chains them. Engine adds caching
// and instrumentation on top.
package resolve

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/papapumpkin/semverx/internal/depgraph"
	"github.com/papapumpkin/semverx/internal/fault"
)

// ErrNoPathFound is returned when A* exhausts the frontier.
var ErrNoPathFound = errors.New("no path found")

// ErrNoHamiltonianPath is returned when no path visits every node once.
var ErrNoHamiltonianPath = errors.New("no Hamiltonian path")

// ErrSearchTimeout is returned when the Hamiltonian search exceeds its budget.
var ErrSearchTimeout = errors.New("search timed out")

// ErrNotEulerian is returned when the graph fails the Eulerian check.
var ErrNotEulerian = errors.New("disconnected dependency graph")

// ErrUnknownStrategy is returned for an unrecognised strategy name.
var ErrUnknownStrategy = errors.New("unknown strategy")

// ErrNodeNotFound aliases the graph error so callers need only this package.
var ErrNodeNotFound = depgraph.ErrNodeNotFound

// Kind names a resolution strategy.
type Kind string

// Strategy kinds.
const (
	Eulerian    Kind = "eulerian"
	Hamiltonian Kind = "hamiltonian"
	AStar       Kind = "astar"
	Hybrid      Kind = "hybrid"
)

// Kinds lists every strategy kind.
func Kinds() []Kind {
	return []Kind{Eulerian, Hamiltonian, AStar, Hybrid}
}

// ParseKind accepts a strategy name, case-insensitively. "a*" is accepted
// for AStar.
func ParseKind(raw string) (Kind, error) {
	s := strings.ToLower(strings.TrimSpace(raw))
	if s == "a*" {
		return AStar, nil
	}
	for _, k := range Kinds() {
		if string(k) == s {
			return k, nil
		}
	}
	return "", fmt.Errorf("%w: %q", ErrUnknownStrategy, raw)
}

// Stage is a step of a single resolution request. Stages only advance.
type Stage uint8

// Request stages in order.
const (
	Requested Stage = iota
	EulerianChecked
	AStarAttempted
	HamiltonianAttempted
	Resolved
	Failed
)

// String returns the stage name.
func (s Stage) String() string {
	switch s {
	case Requested:
		return "Requested"
	case EulerianChecked:
		return "EulerianChecked"
	case AStarAttempted:
		return "AStarAttempted"
	case HamiltonianAttempted:
		return "HamiltonianAttempted"
	case Resolved:
		return "Resolved"
	case Failed:
		return "Failed"
	default:
		return fmt.Sprintf("Stage(%d)", uint8(s))
	}
}

// Path is an ordered walk from start to goal with its accumulated cost.
type Path struct {
	Nodes []string
	Cost  uint64
}

// Len returns the number of nodes on the path.
func (p Path) Len() int { return len(p.Nodes) }

// Contains reports whether id appears on the path.
func (p Path) Contains(id string) bool {
	for _, n := range p.Nodes {
		if n == id {
			return true
		}
	}
	return false
}

// String renders the path as "a -> b -> c".
func (p Path) String() string {
	return strings.Join(p.Nodes, " -> ")
}

func (p Path) clone() Path {
	return Path{Nodes: append([]string(nil), p.Nodes...), Cost: p.Cost}
}

// Outcome is the result of a resolution request that did not fail.
type Outcome struct {
	Strategy Kind
	Path     Path
	// Level is the fault severity the request observed; Clean when nothing
	// went wrong.
	Level fault.Level
	// Verdict is a short human-readable note, e.g. "semi-Eulerian path detected".
	Verdict string
	// Stages is the sequence of request stages visited.
	Stages []Stage
	// Cached is set when the Engine served the outcome from cache.
	Cached bool
}

func (o Outcome) clone() Outcome {
	o.Path = o.Path.clone()
	o.Stages = append([]Stage(nil), o.Stages...)
	return o
}

// ResolutionError reports a strategy failure together with the fault level
// it implies for the requesting package.
type ResolutionError struct {
	Strategy Kind
	Reason   string
	Level    fault.Level
	Stages   []Stage
	Err      error
}

// Error implements error.
func (e *ResolutionError) Error() string {
	return fmt.Sprintf("resolve: %s: %s", e.Strategy, e.Reason)
}

// Unwrap returns the underlying sentinel.
func (e *ResolutionError) Unwrap() error {
	return e.Err
}

// LevelOf extracts the fault level implied by err. It reports false for
// errors that carry no fault, such as unknown nodes or cancellation.
func LevelOf(err error) (fault.Level, bool) {
	var re *ResolutionError
	if errors.As(err, &re) {
		return re.Level, true
	}
	return fault.Clean, false
}

// Strategy resolves a path between two packages on a graph snapshot.
type Strategy interface {
	Kind() Kind
	Resolve(ctx context.Context, g *depgraph.Snapshot, start, goal string) (Outcome, error)
}

func requireNodes(g *depgraph.Snapshot, ids ...string) error {
	for _, id := range ids {
		if !g.Has(id) {
			return fmt.Errorf("%w: %s", ErrNodeNotFound, id)
		}
	}
	return nil
}
