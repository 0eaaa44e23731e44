package depgraph

import (
	"fmt"
	"sort"

	"github.com/papapumpkin/semverx/internal/semverx"
)

// Snapshot is an immutable copy of a Graph taken under its read lock.
// Resolution and analysis run against a Snapshot so they never hold the
// graph lock while searching. A Snapshot is safe for concurrent reads.
type Snapshot struct {
	nodes map[string]*Node
	// out maps nodeID → set of dependency IDs (forward edges).
	out map[string]map[string]bool
	// in maps nodeID → set of dependent IDs (backward edges).
	in map[string]map[string]bool
	// generation is the graph mutation counter at capture time.
	generation uint64
}

func newSnapshot() *Snapshot {
	return &Snapshot{
		nodes: make(map[string]*Node),
		out:   make(map[string]map[string]bool),
		in:    make(map[string]map[string]bool),
	}
}

// clone deep-copies s. Node values are copied so later graph mutations do
// not leak into the copy.
func (s *Snapshot) clone() *Snapshot {
	c := &Snapshot{
		nodes:      make(map[string]*Node, len(s.nodes)),
		out:        make(map[string]map[string]bool, len(s.out)),
		in:         make(map[string]map[string]bool, len(s.in)),
		generation: s.generation,
	}
	for id, n := range s.nodes {
		cp := *n
		c.nodes[id] = &cp
		c.out[id] = copySet(s.out[id])
		c.in[id] = copySet(s.in[id])
	}
	return c
}

func copySet(m map[string]bool) map[string]bool {
	c := make(map[string]bool, len(m))
	for k := range m {
		c[k] = true
	}
	return c
}

// Generation returns the graph's mutation counter at capture time. Two
// snapshots with equal generations have identical edges.
func (s *Snapshot) Generation() uint64 {
	return s.generation
}

// Len returns the number of nodes.
func (s *Snapshot) Len() int {
	return len(s.nodes)
}

// Has reports whether id is a node.
func (s *Snapshot) Has(id string) bool {
	_, ok := s.nodes[id]
	return ok
}

// Node returns a copy of the node with the given ID.
func (s *Snapshot) Node(id string) (Node, error) {
	n, ok := s.nodes[id]
	if !ok {
		return Node{}, fmt.Errorf("%w: %s", ErrNodeNotFound, id)
	}
	return *n, nil
}

// Version returns the version attached to id, if any.
func (s *Snapshot) Version(id string) (semverx.Version, bool) {
	n, ok := s.nodes[id]
	if !ok || n.Version == nil {
		return semverx.Version{}, false
	}
	return *n.Version, true
}

// AllVersioned reports whether every node carries a version.
func (s *Snapshot) AllVersioned() bool {
	for _, n := range s.nodes {
		if n.Version == nil {
			return false
		}
	}
	return true
}

// Nodes returns all node IDs sorted alphabetically.
func (s *Snapshot) Nodes() []string {
	return sortedKeys(s.nodes)
}

// Neighbors returns the outgoing neighbours (dependencies) of id, sorted.
func (s *Snapshot) Neighbors(id string) ([]string, error) {
	if !s.Has(id) {
		return nil, fmt.Errorf("%w: %s", ErrNodeNotFound, id)
	}
	return sortedKeys(s.out[id]), nil
}

// Dependents returns the nodes with an edge into id, sorted.
func (s *Snapshot) Dependents(id string) ([]string, error) {
	if !s.Has(id) {
		return nil, fmt.Errorf("%w: %s", ErrNodeNotFound, id)
	}
	return sortedKeys(s.in[id]), nil
}

// OutDegree returns the number of dependencies of id.
func (s *Snapshot) OutDegree(id string) (int, error) {
	if !s.Has(id) {
		return 0, fmt.Errorf("%w: %s", ErrNodeNotFound, id)
	}
	return len(s.out[id]), nil
}

// InDegree returns the number of dependents of id.
func (s *Snapshot) InDegree(id string) (int, error) {
	if !s.Has(id) {
		return 0, fmt.Errorf("%w: %s", ErrNodeNotFound, id)
	}
	return len(s.in[id]), nil
}

// Degree returns in-degree plus out-degree.
func (s *Snapshot) Degree(id string) (int, error) {
	if !s.Has(id) {
		return 0, fmt.Errorf("%w: %s", ErrNodeNotFound, id)
	}
	return len(s.in[id]) + len(s.out[id]), nil
}

// HasEdge reports whether from depends on to.
func (s *Snapshot) HasEdge(from, to string) bool {
	return s.out[from][to]
}

// EdgeCount returns the number of directed edges.
func (s *Snapshot) EdgeCount() int {
	n := 0
	for _, deps := range s.out {
		n += len(deps)
	}
	return n
}

// Edges returns every edge sorted by From, then To.
func (s *Snapshot) Edges() []Edge {
	edges := make([]Edge, 0, s.EdgeCount())
	for _, from := range sortedKeys(s.out) {
		for _, to := range sortedKeys(s.out[from]) {
			edges = append(edges, Edge{From: from, To: to})
		}
	}
	return edges
}

func sortedKeys[V any](m map[string]V) []string {
	ids := make([]string, 0, len(m))
	for id := range m {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids
}
