package registry

import (
	"fmt"

	"github.com/papapumpkin/semverx/internal/index"
	"github.com/papapumpkin/semverx/internal/observer"
)

// Subscribe registers obs for updates to id. The observer's ID is also
// recorded on the package record.
func (r *Registry) Subscribe(id string, obs observer.Observer) (observer.ID, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if !r.index.Contains(id) {
		return "", fmt.Errorf("registry: subscribe: %w: %s", index.ErrNotFound, id)
	}
	oid, err := r.hub.Register(id, obs)
	if err != nil {
		return "", fmt.Errorf("registry: subscribe %s: %w", id, err)
	}
	_, err = r.index.Update(id, func(rec *index.Record) error {
		if rec.Observers == nil {
			rec.Observers = map[string]bool{}
		}
		rec.Observers[string(oid)] = true
		return nil
	})
	if err != nil {
		_ = r.hub.Unregister(id, oid)
		return "", fmt.Errorf("registry: subscribe: %w", err)
	}
	r.logger.Debug("observer subscribed", "package_id", id, "observer_id", oid)
	return oid, nil
}

// Unsubscribe removes an observer from id.
func (r *Registry) Unsubscribe(id string, oid observer.ID) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if err := r.hub.Unregister(id, oid); err != nil {
		return fmt.Errorf("registry: unsubscribe %s: %w", id, err)
	}
	_, err := r.index.Update(id, func(rec *index.Record) error {
		delete(rec.Observers, string(oid))
		return nil
	})
	if err != nil {
		return fmt.Errorf("registry: unsubscribe: %w", err)
	}
	r.logger.Debug("observer unsubscribed", "package_id", id, "observer_id", oid)
	return nil
}

// Observers lists the observers of id with their last notification times.
func (r *Registry) Observers(id string) ([]observer.Info, error) {
	return r.hub.Observers(id)
}
