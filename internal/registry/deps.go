package registry

import (
	"context"
	"errors"
	"fmt"
	"slices"

	"github.com/papapumpkin/semverx/internal/depgraph"
	"github.com/papapumpkin/semverx/internal/fault"
	"github.com/papapumpkin/semverx/internal/index"
	"github.com/papapumpkin/semverx/internal/observer"
	"github.com/papapumpkin/semverx/internal/telemetry"
)

func checkEdge(from string, e index.DependencyEdge) error {
	switch e.Target {
	case "":
		return fmt.Errorf("registry: dependency of %s: %w", from, ErrEmptyID)
	case from:
		return fmt.Errorf("registry: %w: %s", depgraph.ErrSelfEdge, from)
	}
	return nil
}

// unsatisfiedLevel is the fault a dependent takes for an edge whose range
// excludes the target's published version.
func unsatisfiedLevel(e index.DependencyEdge) fault.Level {
	if e.Optional {
		return fault.LowWarning
	}
	return fault.LowDanger
}

// AddDependency declares that from depends on e.Target. The target need
// not be published yet. Redeclaring a target replaces its range. The
// returned changes list every fault raised: the dependent when the range
// excludes the target's version, and every member of a cycle the edge
// closes.
func (r *Registry) AddDependency(ctx context.Context, from string, e index.DependencyEdge) ([]Change, error) {
	if err := checkEdge(from, e); err != nil {
		return nil, err
	}
	r.mu.Lock()
	changes, updates, err := r.addDependencyLocked(ctx, from, e)
	r.mu.Unlock()
	if err != nil {
		return nil, err
	}
	r.dispatch(ctx, updates)
	return changes, nil
}

func (r *Registry) addDependencyLocked(ctx context.Context, from string, e index.DependencyEdge) ([]Change, []observer.Update, error) {
	_, err := r.index.Update(from, func(rec *index.Record) error {
		if rec.Frozen {
			return fmt.Errorf("%w: %s at %s", ErrFrozen, from, rec.Fault)
		}
		i := slices.IndexFunc(rec.Dependencies, func(d index.DependencyEdge) bool { return d.Target == e.Target })
		if i >= 0 {
			rec.Dependencies[i] = e
		} else {
			rec.Dependencies = append(rec.Dependencies, e)
		}
		rec.LastUpdate = r.now()
		return nil
	})
	if err != nil {
		return nil, nil, fmt.Errorf("registry: add dependency: %w", err)
	}
	return r.linkLocked(ctx, from, e)
}

// linkLocked records an edge of a published record in the graph and the
// target's dependents, then validates it.
func (r *Registry) linkLocked(ctx context.Context, from string, e index.DependencyEdge) ([]Change, []observer.Update, error) {
	r.graph.AddNode(e.Target)
	added, err := r.graph.AddEdge(from, e.Target)
	if err != nil {
		return nil, nil, fmt.Errorf("registry: add dependency: %w", err)
	}
	if added {
		r.engine.Invalidate()
	}
	_, _ = r.index.Update(e.Target, func(rec *index.Record) error {
		if rec.Dependents == nil {
			rec.Dependents = map[string]bool{}
		}
		rec.Dependents[from] = true
		return nil
	})

	r.logger.Debug("dependency added", "package_id", from, "target", e.Target, "range", e.Range, "optional", e.Optional)
	r.emit(telemetry.KindDependency, from, fault.Clean, map[string]any{
		"target":   e.Target,
		"range":    e.Range.String(),
		"optional": e.Optional,
	})

	var (
		changes []Change
		updates []observer.Update
	)
	if target, ok := r.index.Search(e.Target); ok && !e.Range.Contains(target.Version) {
		reason := fmt.Sprintf("dependency %s %s excludes %s", e.Target, e.Range, target.Version)
		ch, more, err := r.raiseLocked(ctx, from, unsatisfiedLevel(e), reason)
		if err != nil {
			return nil, nil, err
		}
		changes = append(changes, ch)
		updates = append(updates, more...)
	}
	if added {
		c, u := r.cycleFaultsLocked(ctx, from)
		changes = append(changes, c...)
		updates = append(updates, u...)
	}
	return changes, updates, nil
}

// checkDependentsLocked re-validates every published dependent of target
// against target's current version.
func (r *Registry) checkDependentsLocked(ctx context.Context, target string) ([]Change, []observer.Update) {
	rec, ok := r.index.Search(target)
	if !ok {
		return nil, nil
	}
	deps, err := r.graph.Dependents(target)
	if err != nil {
		return nil, nil
	}
	var (
		changes []Change
		updates []observer.Update
	)
	for _, id := range deps {
		dep, ok := r.index.Search(id)
		if !ok {
			continue
		}
		for _, e := range dep.Dependencies {
			if e.Target != target || e.Range.Contains(rec.Version) {
				continue
			}
			reason := fmt.Sprintf("dependency %s %s excludes %s", target, e.Range, rec.Version)
			ch, more, err := r.raiseLocked(ctx, id, unsatisfiedLevel(e), reason)
			if err != nil {
				r.logger.Warn("dependent check failed", "package_id", id, "error", err)
				continue
			}
			changes = append(changes, ch)
			updates = append(updates, more...)
		}
	}
	return changes, updates
}

// cycleFaultsLocked raises every published member of each cycle that
// contains one of ids to HighDanger.
func (r *Registry) cycleFaultsLocked(ctx context.Context, ids ...string) ([]Change, []observer.Update) {
	var (
		changes []Change
		updates []observer.Update
	)
	for _, cycle := range r.graph.Snapshot().Cycles() {
		if !slices.ContainsFunc(cycle, func(m string) bool { return slices.Contains(ids, m) }) {
			continue
		}
		reason := fmt.Sprintf("dependency cycle %v", cycle)
		for _, member := range cycle {
			if !r.index.Contains(member) {
				continue
			}
			ch, more, err := r.raiseLocked(ctx, member, fault.HighDanger, reason)
			if err != nil {
				continue
			}
			changes = append(changes, ch)
			updates = append(updates, more...)
		}
	}
	return changes, updates
}

// InstallOrder returns the transitive dependencies of id followed by id,
// each after everything it depends on. A cycle raises its members to
// HighDanger and returns an error wrapping depgraph.ErrCycle.
func (r *Registry) InstallOrder(ctx context.Context, id string) ([]string, error) {
	order, err := r.graph.Snapshot().InstallOrder(id)
	if err == nil {
		return order, nil
	}
	if !errors.Is(err, depgraph.ErrCycle) {
		return nil, fmt.Errorf("registry: install order: %w", err)
	}
	closure, _ := r.graph.Snapshot().TransitiveDeps(id)
	r.mu.Lock()
	_, updates := r.cycleFaultsLocked(ctx, append(closure, id)...)
	r.mu.Unlock()
	r.dispatch(ctx, updates)
	return nil, fmt.Errorf("registry: install order: %w", err)
}

// Rank scores every package by criticality, most critical first.
func (r *Registry) Rank(opts depgraph.RankOptions) []depgraph.Ranked {
	return r.graph.Snapshot().Criticality(opts)
}
