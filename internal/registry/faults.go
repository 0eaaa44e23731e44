package registry

import (
	"context"
	"fmt"

	"github.com/papapumpkin/semverx/internal/fault"
	"github.com/papapumpkin/semverx/internal/index"
	"github.com/papapumpkin/semverx/internal/observer"
	"github.com/papapumpkin/semverx/internal/telemetry"
)

// ReportFault raises the fault level of id to at least level. A less severe
// report leaves the record unchanged. Crossing into a new band runs that
// band's side effect and notifies the package's observers.
func (r *Registry) ReportFault(ctx context.Context, id string, level fault.Level, reason string) (Change, error) {
	if !level.Valid() {
		return Change{}, fmt.Errorf("registry: %w: %d", fault.ErrInvalidLevel, level)
	}
	r.mu.Lock()
	ch, updates, err := r.raiseLocked(ctx, id, level, reason)
	r.mu.Unlock()
	if err != nil {
		return Change{}, err
	}
	r.dispatch(ctx, updates)
	return ch, nil
}

// raiseLocked applies an observed level to id. Caller holds r.mu and must
// dispatch the returned updates after releasing it.
func (r *Registry) raiseLocked(ctx context.Context, id string, seen fault.Level, reason string) (Change, []observer.Update, error) {
	var (
		tr       fault.Transition
		updates  []observer.Update
		reverted bool
	)
	rec, err := r.index.Update(id, func(rec *index.Record) error {
		tr = fault.Raise(rec.Fault, seen)
		if !tr.Escalated() {
			return nil
		}
		rec.Fault = tr.To
		rec.LastUpdate = r.now()
		if tr.BandChanged() {
			var u *observer.Update
			u, reverted = r.applyBand(rec, tr, reason)
			if u != nil {
				updates = append(updates, *u)
			}
		}
		return nil
	})
	if err != nil {
		return Change{}, nil, fmt.Errorf("registry: raise: %w", err)
	}
	ch := Change{PackageID: id, Transition: tr, Reason: reason}
	if !tr.Escalated() {
		return ch, nil, nil
	}

	r.ins.escalated(ctx, tr)
	r.logger.Warn("fault escalated",
		"package_id", id, "from", tr.From, "to", tr.To, "action", tr.Action(), "reason", reason)
	r.emit(telemetry.KindFault, id, tr.To, map[string]any{
		"from":   tr.From.String(),
		"action": tr.Action().String(),
		"reason": reason,
	})

	if reverted {
		r.graph.SetVersion(id, rec.Version)
		_, more := r.checkDependentsLocked(ctx, id)
		updates = append(updates, more...)
	}
	return ch, updates, nil
}

// applyBand runs the side effects for the band tr moved into. Bands are
// cumulative: a jump from below RollbackToStable into SystemReset also
// requests review, freezes, and rolls back. It reports the update to send
// and whether the version was rolled back.
func (r *Registry) applyBand(rec *index.Record, tr fault.Transition, reason string) (*observer.Update, bool) {
	act := tr.Action()
	if act == fault.NoAction {
		return nil, false
	}
	if act >= fault.RequestManualReview {
		rec.ReviewPending = true
	}
	if act >= fault.FreezeUpdates {
		rec.Frozen = true
	}
	u := observer.Update{
		PackageID:  rec.PackageID,
		NewVersion: rec.Version,
		Type:       observer.OptIn,
		Fault:      tr.To,
		Action:     act,
		Reason:     reason,
		At:         rec.LastUpdate,
	}

	reverted := false
	rollback := act >= fault.RollbackToStable && fault.ActionFor(tr.From) < fault.RollbackToStable
	if rollback && rec.LastStable != nil && rec.LastStable.Version != rec.Version {
		old := rec.Version
		revertToStable(rec)
		u.OldVersion = &old
		u.NewVersion = rec.Version
		reverted = true
	}
	switch act {
	case fault.RollbackToStable:
		u.Type = observer.StaleRelease
		if reverted {
			u.Type = observer.Mandatory
		}
	case fault.SystemReset:
		u.Type = observer.StaleRelease
	}
	return &u, reverted
}

func revertToStable(rec *index.Record) {
	rec.Version = rec.LastStable.Version
	rec.Metadata = rec.LastStable.Metadata
	rec.Checksum = rec.LastStable.Checksum
	rec.Signature = ""
}

// Recover applies an explicit recovery action and returns the record to
// Clean. RollbackToStable restores the last all-stable release and fails
// with ErrNoStableSnapshot when there is none. SystemReset discards the
// record's review, freeze, update history, and rollback target while
// keeping its current release and dependencies.
func (r *Registry) Recover(ctx context.Context, id string, action fault.RecoveryAction) (index.Record, error) {
	if action != fault.RollbackToStable && action != fault.SystemReset {
		return index.Record{}, fmt.Errorf("registry: %w: %s", ErrInvalidRecovery, action)
	}

	r.mu.Lock()
	var (
		prev    index.Record
		changed bool
	)
	rec, err := r.index.Update(id, func(rec *index.Record) error {
		prev = rec.Clone()
		switch action {
		case fault.RollbackToStable:
			if rec.LastStable == nil {
				return fmt.Errorf("%w: %s", ErrNoStableSnapshot, id)
			}
			if rec.Version != rec.LastStable.Version {
				revertToStable(rec)
				changed = true
			}
		case fault.SystemReset:
			rec.UpdateCount = 0
			rec.LastStable = nil
			rec.RememberStable()
		}
		rec.Fault = fault.Clean
		rec.Frozen = false
		rec.ReviewPending = false
		rec.LastUpdate = r.now()
		return nil
	})
	if err != nil {
		r.mu.Unlock()
		return index.Record{}, fmt.Errorf("registry: recover: %w", err)
	}
	u := observer.Update{
		PackageID:  id,
		NewVersion: rec.Version,
		Type:       observer.Mandatory,
		Action:     action,
		Reason:     "recovered from " + prev.Fault.String(),
		At:         rec.LastUpdate,
	}
	if changed {
		u.OldVersion = &prev.Version
	}
	updates := []observer.Update{u}
	if changed {
		r.graph.SetVersion(id, rec.Version)
		_, more := r.checkDependentsLocked(ctx, id)
		updates = append(updates, more...)
	}
	r.mu.Unlock()

	r.ins.recovered(ctx, action)
	r.logger.Info("fault recovered", "package_id", id, "action", action, "from", prev.Fault, "version", rec.Version)
	r.emit(telemetry.KindRecover, id, fault.Clean, map[string]any{
		"action":  action.String(),
		"from":    prev.Fault.String(),
		"version": rec.Version.String(),
	})
	r.dispatch(ctx, updates)
	return rec, nil
}

// Approve completes a pending manual review so promotions may proceed. It
// does not lower the fault level.
func (r *Registry) Approve(_ context.Context, id string) (index.Record, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	rec, err := r.index.Update(id, func(rec *index.Record) error {
		rec.ReviewPending = false
		return nil
	})
	if err != nil {
		return index.Record{}, fmt.Errorf("registry: approve: %w", err)
	}
	r.logger.Info("review approved", "package_id", id, "fault", rec.Fault)
	return rec, nil
}
