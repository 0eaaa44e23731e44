package resolve

import (
	"context"
	"fmt"
	"time"

	"github.com/papapumpkin/semverx/internal/depgraph"
	"github.com/papapumpkin/semverx/internal/fault"
)

// DefaultHamiltonianTimeout bounds a standalone Hamiltonian search.
const DefaultHamiltonianTimeout = time.Second

// HamiltonianSearch looks for a directed path visiting every node exactly
// once, by backtracking DFS from each candidate start. Elapsed time is
// polled at every step and before each new start; the search also stops
// when ctx is done.
type HamiltonianSearch struct {
	Timeout time.Duration
	// now is injectable for tests.
	now func() time.Time
}

// Kind returns Hamiltonian.
func (HamiltonianSearch) Kind() Kind { return Hamiltonian }

// Resolve searches for a Hamiltonian path, trying start first. A found
// path is accepted when it contains both start and goal; its cost is the
// number of hops.
func (h HamiltonianSearch) Resolve(ctx context.Context, g *depgraph.Snapshot, start, goal string) (Outcome, error) {
	if err := requireNodes(g, start, goal); err != nil {
		return Outcome{}, err
	}
	stages := []Stage{Requested, HamiltonianAttempted}

	path, err := h.Find(ctx, g, start)
	if err != nil {
		if ctx.Err() != nil {
			return Outcome{}, fmt.Errorf("resolve: hamiltonian: %w", ctx.Err())
		}
		return Outcome{}, &ResolutionError{
			Strategy: Hamiltonian,
			Reason:   err.Error(),
			Level:    fault.HighPanic,
			Stages:   append(stages, Failed),
			Err:      err,
		}
	}
	if !path.Contains(start) || !path.Contains(goal) {
		return Outcome{}, &ResolutionError{
			Strategy: Hamiltonian,
			Reason:   fmt.Sprintf("path does not cover %s and %s", start, goal),
			Level:    fault.HighPanic,
			Stages:   append(stages, Failed),
			Err:      ErrNoHamiltonianPath,
		}
	}
	return Outcome{
		Strategy: Hamiltonian,
		Path:     path,
		Stages:   append(stages, Resolved),
	}, nil
}

// Find returns any Hamiltonian path of g, preferring one that begins at
// first when first is non-empty. It returns ErrNoHamiltonianPath when none
// exists and ErrSearchTimeout when the budget runs out.
func (h HamiltonianSearch) Find(ctx context.Context, g *depgraph.Snapshot, first string) (Path, error) {
	timeout := h.Timeout
	if timeout <= 0 {
		timeout = DefaultHamiltonianTimeout
	}
	now := h.now
	if now == nil {
		now = time.Now
	}

	nodes := g.Nodes()
	if len(nodes) == 0 {
		return Path{}, ErrNoHamiltonianPath
	}

	adj := make(map[string][]string, len(nodes))
	for _, id := range nodes {
		adj[id], _ = g.Neighbors(id)
	}

	s := &hamSearch{
		adj:      adj,
		total:    len(nodes),
		visited:  make(map[string]bool, len(nodes)),
		deadline: now().Add(timeout),
		now:      now,
		ctx:      ctx,
	}

	starts := nodes
	if first != "" && g.Has(first) {
		starts = append([]string{first}, without(nodes, first)...)
	}
	for _, st := range starts {
		if s.expired() {
			return Path{}, s.stopErr()
		}
		s.path = s.path[:0]
		if s.dfs(st) {
			out := append([]string(nil), s.path...)
			return Path{Nodes: out, Cost: uint64(len(out) - 1)}, nil
		}
		if s.stopped {
			return Path{}, s.stopErr()
		}
	}
	return Path{}, ErrNoHamiltonianPath
}

type hamSearch struct {
	adj      map[string][]string
	total    int
	visited  map[string]bool
	path     []string
	deadline time.Time
	now      func() time.Time
	ctx      context.Context
	stopped  bool
}

func (s *hamSearch) expired() bool {
	if s.stopped {
		return true
	}
	if s.ctx.Err() != nil || s.now().After(s.deadline) {
		s.stopped = true
	}
	return s.stopped
}

func (s *hamSearch) stopErr() error {
	if err := s.ctx.Err(); err != nil {
		return err
	}
	return ErrSearchTimeout
}

func (s *hamSearch) dfs(v string) bool {
	if s.expired() {
		return false
	}
	s.visited[v] = true
	s.path = append(s.path, v)
	if len(s.path) == s.total {
		return true
	}
	for _, w := range s.adj[v] {
		if s.visited[w] {
			continue
		}
		if s.dfs(w) {
			return true
		}
		if s.stopped {
			break
		}
	}
	s.visited[v] = false
	s.path = s.path[:len(s.path)-1]
	return false
}

func without(ids []string, drop string) []string {
	out := make([]string, 0, len(ids))
	for _, id := range ids {
		if id != drop {
			out = append(out, id)
		}
	}
	return out
}
