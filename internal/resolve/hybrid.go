package resolve

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/papapumpkin/semverx/internal/depgraph"
	"github.com/papapumpkin/semverx/internal/fault"
)

// DefaultHybridFallbackTimeout bounds the Hamiltonian fallback of Hybrid.
const DefaultHybridFallbackTimeout = 500 * time.Millisecond

// VerdictHamiltonianFallback marks an outcome produced by the fallback.
const VerdictHamiltonianFallback = "resolved by Hamiltonian fallback"

// HybridResolver chains the strategies: the Eulerian check first, then A*,
// and when A* fails a bounded Hamiltonian search whose path is accepted
// only if it covers both start and goal. A fallback path costs its hop
// count and carries a MediumWarning.
type HybridResolver struct {
	FallbackTimeout time.Duration

	euler EulerianCheck
	astar AStarSearch
	ham   HamiltonianSearch
}

// Kind returns Hybrid.
func (HybridResolver) Kind() Kind { return Hybrid }

// Resolve runs the chain.
func (r HybridResolver) Resolve(ctx context.Context, g *depgraph.Snapshot, start, goal string) (Outcome, error) {
	if err := requireNodes(g, start, goal); err != nil {
		return Outcome{}, err
	}
	stages := []Stage{Requested}

	eulerLevel, eulerVerdict := r.euler.Check(g)
	stages = append(stages, EulerianChecked)

	path, err := r.astar.Find(ctx, g, start, goal)
	stages = append(stages, AStarAttempted)
	if err == nil {
		verdict := "resolved by A*"
		if eulerLevel == fault.Clean {
			verdict = eulerVerdict + "; " + verdict
		}
		return Outcome{
			Strategy: Hybrid,
			Path:     path,
			Verdict:  verdict,
			Stages:   append(stages, Resolved),
		}, nil
	}
	if !errors.Is(err, ErrNoPathFound) {
		return Outcome{}, fmt.Errorf("resolve: hybrid: %w", err)
	}

	timeout := r.FallbackTimeout
	if timeout <= 0 {
		timeout = DefaultHybridFallbackTimeout
	}
	ham := r.ham
	ham.Timeout = timeout
	hpath, herr := ham.Find(ctx, g, start)
	stages = append(stages, HamiltonianAttempted)
	if herr == nil && hpath.Contains(start) && hpath.Contains(goal) {
		return Outcome{
			Strategy: Hybrid,
			Path:     Path{Nodes: hpath.Nodes, Cost: uint64(len(hpath.Nodes) - 1)},
			Level:    fault.MediumWarning,
			Verdict:  VerdictHamiltonianFallback,
			Stages:   append(stages, Resolved),
		}, nil
	}
	if ctx.Err() != nil {
		return Outcome{}, fmt.Errorf("resolve: hybrid: %w", ctx.Err())
	}

	reason := "all strategies exhausted"
	if herr != nil {
		reason = fmt.Sprintf("%s (%v)", reason, herr)
	}
	return Outcome{}, &ResolutionError{
		Strategy: Hybrid,
		Reason:   reason,
		Level:    fault.HighPanic,
		Stages:   append(stages, Failed),
		Err:      err,
	}
}
