// Package depgraph models package dependencies as a directed graph.
// Edges point from a package to its dependencies: if A depends on B there
// is an edge A → B. Cycles are allowed; callers that need an order ask for
// one and receive ErrCycle when none exists.
//
// Graph is safe for concurrent use. Searches and analyses run on a
// Snapshot captured under the graph's read lock.
package depgraph

import (
	"errors"
	"fmt"
	"sync"

	"github.com/papapumpkin/semverx/internal/semverx"
)

// ErrNodeNotFound is returned when an operation references a non-existent node.
var ErrNodeNotFound = errors.New("node not found")

// ErrSelfEdge is returned when an edge would make a package depend on itself.
var ErrSelfEdge = errors.New("self-referencing edge")

// ErrCycle is returned when an ordering is requested over a cyclic graph.
var ErrCycle = errors.New("dependency cycle")

// Node is a package in the graph. Presence in the graph does not imply the
// package has been published.
type Node struct {
	ID string
	// Version is the published version, or nil for a referenced-only package.
	Version *semverx.Version
}

// Edge is a single dependency: From depends on To.
type Edge struct {
	From string
	To   string
}

// Graph is the mutable dependency graph.
type Graph struct {
	mu sync.RWMutex
	s  *Snapshot
}

// New creates an empty Graph.
func New() *Graph {
	return &Graph{s: newSnapshot()}
}

// AddNode adds id if it is not already present. It reports whether the
// node was added.
func (g *Graph) AddNode(id string) bool {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.addNodeLocked(id)
}

func (g *Graph) addNodeLocked(id string) bool {
	if _, exists := g.s.nodes[id]; exists {
		return false
	}
	g.s.nodes[id] = &Node{ID: id}
	g.s.out[id] = make(map[string]bool)
	g.s.in[id] = make(map[string]bool)
	g.s.generation++
	return true
}

// SetVersion attaches v to id, adding the node if needed.
func (g *Graph) SetVersion(id string, v semverx.Version) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.addNodeLocked(id)
	g.s.nodes[id].Version = &v
	g.s.generation++
}

// ClearVersion detaches any version from id.
func (g *Graph) ClearVersion(id string) {
	g.mu.Lock()
	defer g.mu.Unlock()
	if n, ok := g.s.nodes[id]; ok && n.Version != nil {
		n.Version = nil
		g.s.generation++
	}
}

// AddEdge records that from depends on to. Both nodes must already exist.
// Adding an existing edge is a no-op. It reports whether a new edge was
// added.
func (g *Graph) AddEdge(from, to string) (bool, error) {
	if from == to {
		return false, fmt.Errorf("%w: %s", ErrSelfEdge, from)
	}
	g.mu.Lock()
	defer g.mu.Unlock()

	if _, ok := g.s.nodes[from]; !ok {
		return false, fmt.Errorf("%w: %s", ErrNodeNotFound, from)
	}
	if _, ok := g.s.nodes[to]; !ok {
		return false, fmt.Errorf("%w: %s", ErrNodeNotFound, to)
	}
	if g.s.out[from][to] {
		return false, nil
	}
	g.s.out[from][to] = true
	g.s.in[to][from] = true
	g.s.generation++
	return true, nil
}

// RemoveEdge deletes the edge from → to if present.
func (g *Graph) RemoveEdge(from, to string) error {
	g.mu.Lock()
	defer g.mu.Unlock()

	if _, ok := g.s.nodes[from]; !ok {
		return fmt.Errorf("%w: %s", ErrNodeNotFound, from)
	}
	if !g.s.out[from][to] {
		return nil
	}
	delete(g.s.out[from], to)
	delete(g.s.in[to], from)
	g.s.generation++
	return nil
}

// Remove deletes a node and all edges touching it.
func (g *Graph) Remove(id string) error {
	g.mu.Lock()
	defer g.mu.Unlock()

	if _, ok := g.s.nodes[id]; !ok {
		return fmt.Errorf("%w: %s", ErrNodeNotFound, id)
	}
	for dep := range g.s.out[id] {
		delete(g.s.in[dep], id)
	}
	for dependent := range g.s.in[id] {
		delete(g.s.out[dependent], id)
	}
	delete(g.s.out, id)
	delete(g.s.in, id)
	delete(g.s.nodes, id)
	g.s.generation++
	return nil
}

// Snapshot returns an immutable copy of the current graph.
func (g *Graph) Snapshot() *Snapshot {
	g.mu.RLock()
	defer g.mu.RUnlock()
	return g.s.clone()
}

// Generation returns the mutation counter. It increases on every change to
// nodes, versions, or edges.
func (g *Graph) Generation() uint64 {
	g.mu.RLock()
	defer g.mu.RUnlock()
	return g.s.generation
}

// Len returns the number of nodes.
func (g *Graph) Len() int {
	g.mu.RLock()
	defer g.mu.RUnlock()
	return g.s.Len()
}

// Has reports whether id is a node.
func (g *Graph) Has(id string) bool {
	g.mu.RLock()
	defer g.mu.RUnlock()
	return g.s.Has(id)
}

// Nodes returns all node IDs sorted alphabetically.
func (g *Graph) Nodes() []string {
	g.mu.RLock()
	defer g.mu.RUnlock()
	return g.s.Nodes()
}

// Neighbors returns the dependencies of id, sorted.
func (g *Graph) Neighbors(id string) ([]string, error) {
	g.mu.RLock()
	defer g.mu.RUnlock()
	return g.s.Neighbors(id)
}

// Dependents returns the packages that depend on id, sorted.
func (g *Graph) Dependents(id string) ([]string, error) {
	g.mu.RLock()
	defer g.mu.RUnlock()
	return g.s.Dependents(id)
}

// Degree returns in-degree plus out-degree of id.
func (g *Graph) Degree(id string) (int, error) {
	g.mu.RLock()
	defer g.mu.RUnlock()
	return g.s.Degree(id)
}

// Edges returns every edge sorted by From, then To.
func (g *Graph) Edges() []Edge {
	g.mu.RLock()
	defer g.mu.RUnlock()
	return g.s.Edges()
}
