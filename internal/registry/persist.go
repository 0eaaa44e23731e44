package registry

import (
	"context"
	"fmt"

	"github.com/papapumpkin/semverx/internal/depgraph"
	"github.com/papapumpkin/semverx/internal/fault"
	"github.com/papapumpkin/semverx/internal/store"
	"github.com/papapumpkin/semverx/internal/telemetry"
)

// Snapshot captures every record and edge at one instant.
func (r *Registry) Snapshot() store.Snapshot {
	r.mu.Lock()
	defer r.mu.Unlock()
	return store.Snapshot{
		Records: r.index.All(),
		Edges:   r.graph.Edges(),
		SavedAt: r.now(),
	}
}

// Save writes a snapshot to st, replacing its contents.
func (r *Registry) Save(ctx context.Context, st store.Store) error {
	snap := r.Snapshot()
	if err := st.Save(ctx, snap); err != nil {
		return fmt.Errorf("registry: save: %w", err)
	}
	r.logger.Debug("snapshot saved", "records", len(snap.Records), "edges", len(snap.Edges))
	return nil
}

// Restore builds a registry from the snapshot in st. The index is rebuilt
// by repeated insert and the graph from the saved edges. Observers are
// live state and are not restored.
func Restore(ctx context.Context, st store.Store, opts ...Option) (*Registry, error) {
	snap, err := st.Load(ctx)
	if err != nil {
		return nil, fmt.Errorf("registry: restore: %w", err)
	}
	ix, err := snap.Index()
	if err != nil {
		return nil, fmt.Errorf("registry: restore: %w", err)
	}
	g := depgraph.New()
	for _, rec := range snap.Records {
		g.AddNode(rec.PackageID)
		g.SetVersion(rec.PackageID, rec.Version)
	}
	for _, e := range snap.Edges {
		g.AddNode(e.From)
		g.AddNode(e.To)
		if _, err := g.AddEdge(e.From, e.To); err != nil {
			return nil, fmt.Errorf("registry: restore edge %s -> %s: %w", e.From, e.To, err)
		}
	}

	r := build(ix, g, opts)
	r.logger.Info("registry restored",
		"records", ix.Len(), "edges", len(snap.Edges), "saved_at", snap.SavedAt)
	r.emit(telemetry.KindRestore, "", fault.Clean, map[string]any{
		"records": ix.Len(),
		"edges":   len(snap.Edges),
	})
	return r, nil
}
