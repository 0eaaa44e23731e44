package resolve

import (
	"container/heap"
	"context"
	"fmt"

	"github.com/papapumpkin/semverx/internal/depgraph"
	"github.com/papapumpkin/semverx/internal/fault"
	"github.com/papapumpkin/semverx/internal/semverx"
)

// AStarSearch finds the cheapest path from start to goal along dependency
// edges. An edge costs the version distance between its endpoints (at
// least 1) when both carry versions, and 1 otherwise. The heuristic is the
// version distance to goal when every node is versioned, and zero
// otherwise, which keeps it consistent with the edge costs.
type AStarSearch struct{}

// Kind returns AStar.
func (AStarSearch) Kind() Kind { return AStar }

// Resolve runs A*. Failure to reach goal yields a ResolutionError wrapping
// ErrNoPathFound.
func (a AStarSearch) Resolve(ctx context.Context, g *depgraph.Snapshot, start, goal string) (Outcome, error) {
	if err := requireNodes(g, start, goal); err != nil {
		return Outcome{}, err
	}
	stages := []Stage{Requested, AStarAttempted}

	path, err := a.Find(ctx, g, start, goal)
	if err != nil {
		if ctx.Err() != nil {
			return Outcome{}, fmt.Errorf("resolve: astar: %w", ctx.Err())
		}
		return Outcome{}, &ResolutionError{
			Strategy: AStar,
			Reason:   fmt.Sprintf("no path from %s to %s", start, goal),
			Level:    fault.MediumDanger,
			Stages:   append(stages, Failed),
			Err:      err,
		}
	}
	return Outcome{Strategy: AStar, Path: path, Stages: append(stages, Resolved)}, nil
}

// Find returns the cheapest path or ErrNoPathFound.
func (AStarSearch) Find(ctx context.Context, g *depgraph.Snapshot, start, goal string) (Path, error) {
	goalVersion, goalVersioned := g.Version(goal)
	useHeuristic := goalVersioned && g.AllVersioned()

	h := func(id string) uint64 {
		if !useHeuristic {
			return 0
		}
		v, _ := g.Version(id)
		return semverx.Distance(v, goalVersion)
	}

	best := map[string]uint64{start: 0}
	parent := make(map[string]string)
	closed := make(map[string]bool)

	open := &frontier{}
	heap.Push(open, &frontierItem{id: start, g: 0, f: h(start)})

	for open.Len() > 0 {
		if err := ctx.Err(); err != nil {
			return Path{}, err
		}
		cur := heap.Pop(open).(*frontierItem)
		if closed[cur.id] || cur.g > best[cur.id] {
			continue
		}
		if cur.id == goal {
			return Path{Nodes: walkBack(parent, start, goal), Cost: cur.g}, nil
		}
		closed[cur.id] = true

		next, _ := g.Neighbors(cur.id)
		for _, n := range next {
			if closed[n] {
				continue
			}
			tentative := cur.g + edgeCost(g, cur.id, n)
			if prev, seen := best[n]; seen && tentative >= prev {
				continue
			}
			best[n] = tentative
			parent[n] = cur.id
			heap.Push(open, &frontierItem{id: n, g: tentative, f: tentative + h(n)})
		}
	}
	return Path{}, fmt.Errorf("%w: %s -> %s", ErrNoPathFound, start, goal)
}

func edgeCost(g *depgraph.Snapshot, from, to string) uint64 {
	a, okA := g.Version(from)
	b, okB := g.Version(to)
	if !okA || !okB {
		return 1
	}
	return max(semverx.Distance(a, b), 1)
}

func walkBack(parent map[string]string, start, goal string) []string {
	var rev []string
	for cur := goal; ; cur = parent[cur] {
		rev = append(rev, cur)
		if cur == start {
			break
		}
	}
	out := make([]string, len(rev))
	for i, id := range rev {
		out[len(rev)-1-i] = id
	}
	return out
}

type frontierItem struct {
	id string
	g  uint64
	f  uint64
}

// frontier is a min-heap on f, then g descending, then id.
type frontier []*frontierItem

func (q frontier) Len() int { return len(q) }

func (q frontier) Less(i, j int) bool {
	if q[i].f != q[j].f {
		return q[i].f < q[j].f
	}
	if q[i].g != q[j].g {
		return q[i].g > q[j].g
	}
	return q[i].id < q[j].id
}

func (q frontier) Swap(i, j int) { q[i], q[j] = q[j], q[i] }

func (q *frontier) Push(x any) { *q = append(*q, x.(*frontierItem)) }

func (q *frontier) Pop() any {
	old := *q
	n := len(old)
	it := old[n-1]
	old[n-1] = nil
	*q = old[:n-1]
	return it
}
