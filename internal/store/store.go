// Package store persists registry snapshots. A snapshot is the flattened
// set of index records plus the dependency edge list; loading rebuilds the
// index by repeated insert, so record order in the backend is irrelevant.
package store

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/papapumpkin/semverx/internal/depgraph"
	"github.com/papapumpkin/semverx/internal/index"
)

// ErrUnknownDriver is returned by Open for an unsupported driver name.
var ErrUnknownDriver = errors.New("unknown store driver")

// Drivers.
const (
	DriverSQLite = "sqlite"
	DriverBadger = "badger"
)

// Snapshot is the persisted form of a registry.
type Snapshot struct {
	Records []index.Record
	Edges   []depgraph.Edge
	SavedAt time.Time
}

// Store saves and loads whole snapshots. Save replaces whatever was stored.
type Store interface {
	Save(ctx context.Context, snap Snapshot) error
	Load(ctx context.Context) (Snapshot, error)
	Close() error
}

// Config selects a backend.
type Config struct {
	Driver string
	// Path is the SQLite file or Badger directory.
	Path string
	// InMemory keeps Badger data in memory; Path is ignored.
	InMemory bool
	Logger   *slog.Logger
}

// Open returns the Store for cfg.Driver.
func Open(ctx context.Context, cfg Config) (Store, error) {
	switch cfg.Driver {
	case DriverSQLite, "":
		return NewSQLiteStore(ctx, cfg.Path)
	case DriverBadger:
		return NewBadgerStore(cfg)
	default:
		return nil, fmt.Errorf("%w: %q", ErrUnknownDriver, cfg.Driver)
	}
}

// Index rebuilds an index from the snapshot's records.
func (snap Snapshot) Index() (*index.Index, error) {
	ix := index.New()
	for _, r := range snap.Records {
		if err := ix.Insert(r); err != nil {
			return nil, fmt.Errorf("store: rebuild index: %w", err)
		}
	}
	return ix, nil
}
