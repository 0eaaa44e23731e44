package registry

import (
	"context"
	"errors"

	"github.com/papapumpkin/semverx/internal/fault"
	"github.com/papapumpkin/semverx/internal/resolve"
	"github.com/papapumpkin/semverx/internal/telemetry"
)

// Resolve finds a path from start to goal with the given strategy on a
// snapshot of the current graph. It has no side effects on records.
func (r *Registry) Resolve(ctx context.Context, kind resolve.Kind, start, goal string) (resolve.Outcome, error) {
	o, err := r.engine.Resolve(ctx, r.graph.Snapshot(), kind, start, goal)
	data := map[string]any{"strategy": string(kind), "goal": goal}
	if err != nil {
		data["error"] = err.Error()
		lvl, _ := resolve.LevelOf(err)
		r.emit(telemetry.KindResolve, start, lvl, data)
		return resolve.Outcome{}, err
	}
	data["path"] = o.Path.Nodes
	data["cost"] = o.Path.Cost
	data["cached"] = o.Cached
	r.emit(telemetry.KindResolve, start, o.Level, data)
	return o, nil
}

// ResolveFor resolves on behalf of the package start. A strategy failure
// raises start's fault to the level the failure implies; errors that
// carry no fault, such as unknown packages or cancellation, change
// nothing. The raised change, if any, is returned with the error.
func (r *Registry) ResolveFor(ctx context.Context, kind resolve.Kind, start, goal string) (resolve.Outcome, *Change, error) {
	o, err := r.Resolve(ctx, kind, start, goal)
	if err == nil {
		return o, nil, nil
	}
	lvl, ok := resolve.LevelOf(err)
	if !ok || lvl == fault.Clean || !r.index.Contains(start) {
		return resolve.Outcome{}, nil, err
	}
	ch, rerr := r.ReportFault(ctx, start, lvl, err.Error())
	if rerr != nil {
		return resolve.Outcome{}, nil, errors.Join(err, rerr)
	}
	return resolve.Outcome{}, &ch, err
}
