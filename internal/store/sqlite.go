package store

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	_ "modernc.org/sqlite" // Pure-Go SQLite driver.

	"github.com/papapumpkin/semverx/internal/depgraph"
)

// schema contains the DDL executed on first open. Using IF NOT EXISTS makes
// it safe to run on every startup.
const schema = `
CREATE TABLE IF NOT EXISTS packages (
    package_id TEXT PRIMARY KEY,
    version    TEXT NOT NULL,
    fault      INTEGER NOT NULL DEFAULT 0,
    record     TEXT NOT NULL,
    updated_at TIMESTAMP NOT NULL DEFAULT CURRENT_TIMESTAMP
);

CREATE TABLE IF NOT EXISTS dependencies (
    from_id TEXT NOT NULL,
    to_id   TEXT NOT NULL,
    PRIMARY KEY (from_id, to_id)
);

CREATE TABLE IF NOT EXISTS snapshot_meta (
    key   TEXT PRIMARY KEY,
    value TEXT NOT NULL
);
`

// SQLiteStore implements Store using a local SQLite database in WAL mode.
type SQLiteStore struct {
	db *sql.DB
}

// NewSQLiteStore opens (or creates) a SQLite database at dbPath, enables WAL
// mode and busy timeout, and creates the schema tables if they do not exist.
func NewSQLiteStore(ctx context.Context, dbPath string) (*SQLiteStore, error) {
	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, fmt.Errorf("store: open database: %w", err)
	}

	// SQLite has a single writer; one connection avoids SQLITE_BUSY between
	// pooled connections that would each need their own PRAGMA setup.
	db.SetMaxOpenConns(1)

	if _, err := db.ExecContext(ctx, "PRAGMA journal_mode=WAL"); err != nil {
		db.Close()
		return nil, fmt.Errorf("store: enable WAL mode: %w", err)
	}
	if _, err := db.ExecContext(ctx, "PRAGMA busy_timeout=5000"); err != nil {
		db.Close()
		return nil, fmt.Errorf("store: set busy timeout: %w", err)
	}
	if _, err := db.ExecContext(ctx, schema); err != nil {
		db.Close()
		return nil, fmt.Errorf("store: create schema: %w", err)
	}
	return &SQLiteStore{db: db}, nil
}

// Save replaces the stored snapshot in one transaction.
func (s *SQLiteStore) Save(ctx context.Context, snap Snapshot) (err error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("store: begin: %w", err)
	}
	defer func() {
		if err != nil {
			_ = tx.Rollback()
		}
	}()

	for _, q := range []string{"DELETE FROM dependencies", "DELETE FROM packages"} {
		if _, err = tx.ExecContext(ctx, q); err != nil {
			return fmt.Errorf("store: clear: %w", err)
		}
	}

	const insertPkg = `
		INSERT INTO packages (package_id, version, fault, record, updated_at)
		VALUES (?, ?, ?, ?, ?)`
	for _, r := range snap.Records {
		var doc []byte
		if doc, err = encodeRecord(r); err != nil {
			return err
		}
		if _, err = tx.ExecContext(ctx, insertPkg,
			r.PackageID, r.Version.String(), int(r.Fault), string(doc), r.LastUpdate.UTC()); err != nil {
			return fmt.Errorf("store: insert package %s: %w", r.PackageID, err)
		}
	}

	const insertEdge = `INSERT OR IGNORE INTO dependencies (from_id, to_id) VALUES (?, ?)`
	for _, e := range snap.Edges {
		if _, err = tx.ExecContext(ctx, insertEdge, e.From, e.To); err != nil {
			return fmt.Errorf("store: insert edge %s->%s: %w", e.From, e.To, err)
		}
	}

	saved := snap.SavedAt
	if saved.IsZero() {
		saved = time.Now()
	}
	const upsertMeta = `
		INSERT INTO snapshot_meta (key, value) VALUES ('saved_at', ?)
		ON CONFLICT(key) DO UPDATE SET value = excluded.value`
	if _, err = tx.ExecContext(ctx, upsertMeta, saved.UTC().Format(time.RFC3339Nano)); err != nil {
		return fmt.Errorf("store: write meta: %w", err)
	}

	if err = tx.Commit(); err != nil {
		return fmt.Errorf("store: commit: %w", err)
	}
	return nil
}

// Load reads the stored snapshot. An empty database yields an empty snapshot.
func (s *SQLiteStore) Load(ctx context.Context) (Snapshot, error) {
	var snap Snapshot

	rows, err := s.db.QueryContext(ctx, "SELECT record FROM packages ORDER BY package_id")
	if err != nil {
		return Snapshot{}, fmt.Errorf("store: load packages: %w", err)
	}
	defer rows.Close()
	for rows.Next() {
		var doc string
		if err := rows.Scan(&doc); err != nil {
			return Snapshot{}, fmt.Errorf("store: scan package: %w", err)
		}
		r, err := decodeRecord([]byte(doc))
		if err != nil {
			return Snapshot{}, err
		}
		snap.Records = append(snap.Records, r)
	}
	if err := rows.Err(); err != nil {
		return Snapshot{}, fmt.Errorf("store: iterate packages: %w", err)
	}

	edges, err := s.db.QueryContext(ctx, "SELECT from_id, to_id FROM dependencies ORDER BY from_id, to_id")
	if err != nil {
		return Snapshot{}, fmt.Errorf("store: load edges: %w", err)
	}
	defer edges.Close()
	for edges.Next() {
		var e depgraph.Edge
		if err := edges.Scan(&e.From, &e.To); err != nil {
			return Snapshot{}, fmt.Errorf("store: scan edge: %w", err)
		}
		snap.Edges = append(snap.Edges, e)
	}
	if err := edges.Err(); err != nil {
		return Snapshot{}, fmt.Errorf("store: iterate edges: %w", err)
	}

	var saved string
	err = s.db.QueryRowContext(ctx, "SELECT value FROM snapshot_meta WHERE key = 'saved_at'").Scan(&saved)
	if err == nil {
		snap.SavedAt, _ = time.Parse(time.RFC3339Nano, saved)
	}
	return snap, nil
}

// Close closes the database.
func (s *SQLiteStore) Close() error {
	return s.db.Close()
}

var _ Store = (*SQLiteStore)(nil)
