package depgraph

import (
	"fmt"
	"sort"
)

// TransitiveDeps returns everything id transitively depends on, sorted.
func (s *Snapshot) TransitiveDeps(id string) ([]string, error) {
	if !s.Has(id) {
		return nil, fmt.Errorf("%w: %s", ErrNodeNotFound, id)
	}
	return s.reach(id, s.out), nil
}

// TransitiveDependents returns everything that transitively depends on id,
// sorted.
func (s *Snapshot) TransitiveDependents(id string) ([]string, error) {
	if !s.Has(id) {
		return nil, fmt.Errorf("%w: %s", ErrNodeNotFound, id)
	}
	return s.reach(id, s.in), nil
}

// reach collects nodes reachable from id along edges, excluding id itself
// unless it lies on a cycle back to itself.
func (s *Snapshot) reach(id string, edges map[string]map[string]bool) []string {
	visited := make(map[string]bool)
	queue := []string{id}
	for len(queue) > 0 {
		cur := queue[0]
		queue = queue[1:]
		for next := range edges[cur] {
			if !visited[next] {
				visited[next] = true
				queue = append(queue, next)
			}
		}
	}
	return sortedKeys(visited)
}

// InstallOrder returns id and its transitive dependencies ordered so every
// dependency precedes its dependents; id comes last. Ties are broken
// alphabetically. Returns ErrCycle if the closure contains a cycle.
func (s *Snapshot) InstallOrder(id string) ([]string, error) {
	if !s.Has(id) {
		return nil, fmt.Errorf("%w: %s", ErrNodeNotFound, id)
	}

	closure := map[string]bool{id: true}
	for _, dep := range s.reach(id, s.out) {
		closure[dep] = true
	}

	// Kahn's algorithm restricted to the closure, counting unmet
	// dependencies per node.
	pending := make(map[string]int, len(closure))
	for n := range closure {
		pending[n] = len(s.out[n])
	}

	var ready []string
	for n, c := range pending {
		if c == 0 {
			ready = append(ready, n)
		}
	}
	sort.Strings(ready)

	order := make([]string, 0, len(closure))
	for len(ready) > 0 {
		n := ready[0]
		ready = ready[1:]
		order = append(order, n)

		var freed []string
		for dependent := range s.in[n] {
			if !closure[dependent] {
				continue
			}
			pending[dependent]--
			if pending[dependent] == 0 {
				freed = append(freed, dependent)
			}
		}
		sort.Strings(freed)
		ready = append(ready, freed...)
	}

	if len(order) != len(closure) {
		return nil, fmt.Errorf("%w: %s: ordered %d of %d packages",
			ErrCycle, id, len(order), len(closure))
	}
	return order, nil
}

// Cycles returns the strongly connected components that contain a cycle,
// each sorted, ordered by first member. Self-loops cannot exist, so every
// returned component has at least two members.
func (s *Snapshot) Cycles() [][]string {
	t := &tarjan{
		s:     s,
		index: make(map[string]int),
		low:   make(map[string]int),
		on:    make(map[string]bool),
	}
	for _, id := range s.Nodes() {
		if _, seen := t.index[id]; !seen {
			t.strongConnect(id)
		}
	}
	sort.Slice(t.out, func(i, j int) bool { return t.out[i][0] < t.out[j][0] })
	return t.out
}

type tarjan struct {
	s     *Snapshot
	next  int
	index map[string]int
	low   map[string]int
	on    map[string]bool
	stack []string
	out   [][]string
}

func (t *tarjan) strongConnect(v string) {
	t.index[v] = t.next
	t.low[v] = t.next
	t.next++
	t.stack = append(t.stack, v)
	t.on[v] = true

	for w := range t.s.out[v] {
		if _, seen := t.index[w]; !seen {
			t.strongConnect(w)
			t.low[v] = min(t.low[v], t.low[w])
		} else if t.on[w] {
			t.low[v] = min(t.low[v], t.index[w])
		}
	}

	if t.low[v] != t.index[v] {
		return
	}
	var comp []string
	for {
		w := t.stack[len(t.stack)-1]
		t.stack = t.stack[:len(t.stack)-1]
		t.on[w] = false
		comp = append(comp, w)
		if w == v {
			break
		}
	}
	if len(comp) > 1 {
		sort.Strings(comp)
		t.out = append(t.out, comp)
	}
}
