// Package index is the registry's ordered package store: an AVL tree of
// Records keyed by package ID behind a single reader/writer lock. Inserts
// and lookups are O(log n). Records handed out are copies; mutation goes
// through Update.
package index

import (
	"errors"
	"fmt"
	"sync"
)

// ErrDuplicateKey is returned when inserting an ID that already exists.
var ErrDuplicateKey = errors.New("duplicate package id")

// ErrNotFound is returned by Update for an unknown ID. Search reports a
// miss with a boolean instead.
var ErrNotFound = errors.New("package not found")

// ErrKeyChanged is returned when an Update callback alters the package ID.
var ErrKeyChanged = errors.New("package id is immutable")

// Index is a concurrency-safe AVL index of package records.
type Index struct {
	mu   sync.RWMutex
	root *node
	size int
}

// New returns an empty Index.
func New() *Index {
	return &Index{}
}

// Insert adds rec. An existing key is rejected with ErrDuplicateKey and
// leaves the index unchanged.
func (ix *Index) Insert(rec Record) error {
	if rec.PackageID == "" {
		return errors.New("index: empty package id")
	}
	ix.mu.Lock()
	defer ix.mu.Unlock()

	root, ok := insert(ix.root, rec.Clone())
	if !ok {
		return fmt.Errorf("%w: %s", ErrDuplicateKey, rec.PackageID)
	}
	ix.root = root
	ix.size++
	return nil
}

// Search returns a copy of the record for id. A miss is not an error.
func (ix *Index) Search(id string) (Record, bool) {
	ix.mu.RLock()
	defer ix.mu.RUnlock()

	n := find(ix.root, id)
	if n == nil {
		return Record{}, false
	}
	return n.rec.Clone(), true
}

// Contains reports whether id is indexed.
func (ix *Index) Contains(id string) bool {
	ix.mu.RLock()
	defer ix.mu.RUnlock()
	return find(ix.root, id) != nil
}

// Update applies fn to the record for id under the write lock. If fn
// returns an error the record is left unchanged. It returns the updated
// copy.
func (ix *Index) Update(id string, fn func(*Record) error) (Record, error) {
	ix.mu.Lock()
	defer ix.mu.Unlock()

	n := find(ix.root, id)
	if n == nil {
		return Record{}, fmt.Errorf("%w: %s", ErrNotFound, id)
	}
	work := n.rec.Clone()
	if err := fn(&work); err != nil {
		return Record{}, err
	}
	if work.PackageID != id {
		return Record{}, fmt.Errorf("%w: %s", ErrKeyChanged, id)
	}
	n.rec = work
	return work.Clone(), nil
}

// Len returns the number of records.
func (ix *Index) Len() int {
	ix.mu.RLock()
	defer ix.mu.RUnlock()
	return ix.size
}

// Height returns the tree height; an empty index has height 0.
func (ix *Index) Height() int {
	ix.mu.RLock()
	defer ix.mu.RUnlock()
	return height(ix.root)
}

// All returns copies of every record in ascending ID order.
func (ix *Index) All() []Record {
	ix.mu.RLock()
	defer ix.mu.RUnlock()

	out := make([]Record, 0, ix.size)
	walk(ix.root, func(n *node) bool {
		out = append(out, n.rec.Clone())
		return true
	})
	return out
}

// Keys returns every ID in ascending order.
func (ix *Index) Keys() []string {
	ix.mu.RLock()
	defer ix.mu.RUnlock()

	out := make([]string, 0, ix.size)
	walk(ix.root, func(n *node) bool {
		out = append(out, n.rec.PackageID)
		return true
	})
	return out
}

// Valid reports whether the tree satisfies the ordering, height, and
// balance invariants.
func (ix *Index) Valid() bool {
	ix.mu.RLock()
	defer ix.mu.RUnlock()
	return verify(ix.root, nil, nil) >= 0
}
