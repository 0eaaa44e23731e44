package resolve

import (
	"context"

	"github.com/papapumpkin/semverx/internal/depgraph"
	"github.com/papapumpkin/semverx/internal/fault"
)

// Verdicts reported by the Eulerian check.
const (
	VerdictEulerian     = "Eulerian circuit exists"
	VerdictSemiEulerian = "semi-Eulerian path detected"
	VerdictDisconnected = "disconnected dependency graph"
)

// EulerianCheck is an O(V+E) admissibility test. It produces no path.
// Every node, including one with no edges, must be reachable ignoring
// direction, and in-degree must equal out-degree everywhere for a Clean verdict. Exactly
// two nodes off by one yield a MediumWarning; anything else fails with
// SystemPanic.
type EulerianCheck struct{}

// Kind returns Eulerian.
func (EulerianCheck) Kind() Kind { return Eulerian }

// Resolve runs the check. start and goal are ignored.
func (c EulerianCheck) Resolve(ctx context.Context, g *depgraph.Snapshot, _, _ string) (Outcome, error) {
	if err := ctx.Err(); err != nil {
		return Outcome{}, err
	}
	level, verdict := c.Check(g)
	stages := []Stage{Requested, EulerianChecked}
	if level == fault.SystemPanic {
		return Outcome{}, &ResolutionError{
			Strategy: Eulerian,
			Reason:   verdict,
			Level:    level,
			Stages:   append(stages, Failed),
			Err:      ErrNotEulerian,
		}
	}
	return Outcome{
		Strategy: Eulerian,
		Level:    level,
		Verdict:  verdict,
		Stages:   append(stages, Resolved),
	}, nil
}

// Check returns the fault level and verdict for g.
func (EulerianCheck) Check(g *depgraph.Snapshot) (fault.Level, string) {
	if !g.Connected() {
		return fault.SystemPanic, VerdictDisconnected
	}

	unbalanced := 0
	for _, id := range g.Nodes() {
		in, _ := g.InDegree(id)
		out, _ := g.OutDegree(id)
		switch d := in - out; {
		case d == 0:
		case d == 1 || d == -1:
			unbalanced++
		default:
			return fault.SystemPanic, VerdictDisconnected
		}
	}

	switch unbalanced {
	case 0:
		return fault.Clean, VerdictEulerian
	case 2:
		return fault.MediumWarning, VerdictSemiEulerian
	default:
		return fault.SystemPanic, VerdictDisconnected
	}
}

// Admissible reports whether g has a Clean Eulerian verdict.
func (c EulerianCheck) Admissible(g *depgraph.Snapshot) bool {
	level, _ := c.Check(g)
	return level == fault.Clean
}
