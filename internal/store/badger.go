package store

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"time"

	"github.com/dgraph-io/badger/v4"

	"github.com/papapumpkin/semverx/internal/depgraph"
)

// Key layout:
//
//	pkg/<package_id>          -> record JSON
//	edge/<from>\x00<to>       -> empty
//	meta/saved_at             -> RFC 3339 timestamp
const (
	pkgPrefix  = "pkg/"
	edgePrefix = "edge/"
	savedAtKey = "meta/saved_at"
	edgeSep    = 0
)

// BadgerStore implements Store on a BadgerDB key-value store.
type BadgerStore struct {
	db *badger.DB
}

// NewBadgerStore opens a Badger database at cfg.Path, or in memory when
// cfg.InMemory is set.
func NewBadgerStore(cfg Config) (*BadgerStore, error) {
	var opts badger.Options
	if cfg.InMemory {
		opts = badger.DefaultOptions("").WithInMemory(true)
	} else {
		if cfg.Path == "" {
			return nil, errors.New("store: badger path is required for a persistent database")
		}
		if err := os.MkdirAll(cfg.Path, 0o750); err != nil {
			return nil, fmt.Errorf("store: create %s: %w", cfg.Path, err)
		}
		opts = badger.DefaultOptions(cfg.Path)
	}
	opts = opts.WithNumVersionsToKeep(1)
	if cfg.Logger != nil {
		opts = opts.WithLogger(&badgerLogger{logger: cfg.Logger})
	} else {
		opts = opts.WithLogger(nil)
	}

	db, err := badger.Open(opts)
	if err != nil {
		return nil, fmt.Errorf("store: open badger: %w", err)
	}
	return &BadgerStore{db: db}, nil
}

// Save replaces the stored snapshot.
func (s *BadgerStore) Save(ctx context.Context, snap Snapshot) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if err := s.db.DropPrefix([]byte(pkgPrefix), []byte(edgePrefix)); err != nil {
		return fmt.Errorf("store: clear: %w", err)
	}

	wb := s.db.NewWriteBatch()
	defer wb.Cancel()
	for _, r := range snap.Records {
		doc, err := encodeRecord(r)
		if err != nil {
			return err
		}
		if err := wb.Set([]byte(pkgPrefix+r.PackageID), doc); err != nil {
			return fmt.Errorf("store: write %s: %w", r.PackageID, err)
		}
	}
	for _, e := range snap.Edges {
		if err := wb.Set(edgeKey(e), nil); err != nil {
			return fmt.Errorf("store: write edge %s->%s: %w", e.From, e.To, err)
		}
	}
	saved := snap.SavedAt
	if saved.IsZero() {
		saved = time.Now()
	}
	if err := wb.Set([]byte(savedAtKey), []byte(saved.UTC().Format(time.RFC3339Nano))); err != nil {
		return fmt.Errorf("store: write meta: %w", err)
	}
	if err := wb.Flush(); err != nil {
		return fmt.Errorf("store: flush: %w", err)
	}
	return nil
}

// Load reads the stored snapshot in key order.
func (s *BadgerStore) Load(ctx context.Context) (Snapshot, error) {
	var snap Snapshot
	err := s.db.View(func(txn *badger.Txn) error {
		it := txn.NewIterator(badger.DefaultIteratorOptions)
		defer it.Close()

		for it.Seek([]byte(pkgPrefix)); it.ValidForPrefix([]byte(pkgPrefix)); it.Next() {
			if err := ctx.Err(); err != nil {
				return err
			}
			doc, err := it.Item().ValueCopy(nil)
			if err != nil {
				return fmt.Errorf("store: read %s: %w", it.Item().Key(), err)
			}
			r, err := decodeRecord(doc)
			if err != nil {
				return err
			}
			snap.Records = append(snap.Records, r)
		}

		for it.Seek([]byte(edgePrefix)); it.ValidForPrefix([]byte(edgePrefix)); it.Next() {
			e, ok := parseEdgeKey(it.Item().KeyCopy(nil))
			if !ok {
				return fmt.Errorf("store: malformed edge key %q", it.Item().Key())
			}
			snap.Edges = append(snap.Edges, e)
		}

		item, err := txn.Get([]byte(savedAtKey))
		if errors.Is(err, badger.ErrKeyNotFound) {
			return nil
		}
		if err != nil {
			return fmt.Errorf("store: read meta: %w", err)
		}
		return item.Value(func(v []byte) error {
			snap.SavedAt, _ = time.Parse(time.RFC3339Nano, string(v))
			return nil
		})
	})
	if err != nil {
		return Snapshot{}, err
	}
	return snap, nil
}

// Close closes the database.
func (s *BadgerStore) Close() error {
	return s.db.Close()
}

var _ Store = (*BadgerStore)(nil)

func edgeKey(e depgraph.Edge) []byte {
	k := make([]byte, 0, len(edgePrefix)+len(e.From)+1+len(e.To))
	k = append(k, edgePrefix...)
	k = append(k, e.From...)
	k = append(k, edgeSep)
	return append(k, e.To...)
}

func parseEdgeKey(k []byte) (depgraph.Edge, bool) {
	rest := bytes.TrimPrefix(k, []byte(edgePrefix))
	from, to, ok := bytes.Cut(rest, []byte{edgeSep})
	if !ok || len(from) == 0 || len(to) == 0 {
		return depgraph.Edge{}, false
	}
	return depgraph.Edge{From: string(from), To: string(to)}, true
}

// badgerLogger routes Badger's internal logging to slog.
type badgerLogger struct {
	logger *slog.Logger
}

func (l *badgerLogger) Errorf(format string, args ...any) {
	l.logger.Error(fmt.Sprintf(format, args...))
}

func (l *badgerLogger) Warningf(format string, args ...any) {
	l.logger.Warn(fmt.Sprintf(format, args...))
}

func (l *badgerLogger) Infof(format string, args ...any) {
	l.logger.Debug(fmt.Sprintf(format, args...))
}

func (l *badgerLogger) Debugf(format string, args ...any) {
	l.logger.Debug(fmt.Sprintf(format, args...))
}
