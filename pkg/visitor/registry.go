// Package visitor provides the per-visitor state registry. Each visitor's
// mutable state is guarded by its own lock: updates for one visitor are
// serialized while distinct visitors proceed fully in parallel.
package visitor

import (
	"errors"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"

	"tourgo/pkg/model"
)

// ErrVisitorNotFound indicates an operation referenced an unregistered
// visitor ID. The caller must register the visitor first.
var ErrVisitorNotFound = errors.New("visitor not found")

type entry struct {
	mu sync.Mutex
	v  *model.Visitor
}

// Registry is a thread-safe store of visitor state keyed by visitor ID.
type Registry struct {
	mu      sync.RWMutex
	entries map[string]*entry
	ttl     time.Duration
	logger  *slog.Logger
}

// NewRegistry creates a Registry. A ttl of 0 disables idle eviction:
// visitors then live for the process lifetime.
func NewRegistry(ttl time.Duration) *Registry {
	return &Registry{
		entries: make(map[string]*entry),
		ttl:     ttl,
		logger:  slog.With("component", "visitor_registry"),
	}
}

// Register creates a visitor for the given device and returns its state.
func (r *Registry) Register(deviceID string, lang model.Language) *model.Visitor {
	v := &model.Visitor{
		ID:       uuid.NewString(),
		DeviceID: deviceID,
		Language: lang,
		LastSeen: time.Now(),
	}

	r.mu.Lock()
	r.entries[v.ID] = &entry{v: v}
	r.mu.Unlock()

	r.logger.Info("Registered visitor", "id", v.ID, "device", deviceID, "language", lang)
	return v
}

// With runs fn against the visitor's state under the visitor's own lock and
// refreshes the last-seen timestamp. Calls for the same visitor are
// serialized; calls for distinct visitors are not.
func (r *Registry) With(id string, fn func(v *model.Visitor) error) error {
	r.mu.RLock()
	e, ok := r.entries[id]
	r.mu.RUnlock()
	if !ok {
		return ErrVisitorNotFound
	}

	e.mu.Lock()
	defer e.mu.Unlock()
	if err := fn(e.v); err != nil {
		return err
	}
	e.v.LastSeen = time.Now()
	return nil
}

// Snapshot returns a copy of the visitor's state, safe to read without
// holding any lock.
func (r *Registry) Snapshot(id string) (*model.Visitor, error) {
	r.mu.RLock()
	e, ok := r.entries[id]
	r.mu.RUnlock()
	if !ok {
		return nil, ErrVisitorNotFound
	}

	e.mu.Lock()
	defer e.mu.Unlock()

	cp := *e.v
	cp.Visits = make([]model.VisitLogEntry, len(e.v.Visits))
	copy(cp.Visits, e.v.Visits)
	return &cp, nil
}

// Len returns the number of registered visitors.
func (r *Registry) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.entries)
}

// Cleanup evicts visitors idle longer than the TTL and returns the IDs of
// the removed visitors, so callers can drop any state they keep per
// visitor. With a zero TTL it is a no-op.
func (r *Registry) Cleanup() []string {
	if r.ttl == 0 {
		return nil
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	cutoff := time.Now().Add(-r.ttl)
	var evicted []string
	for id, e := range r.entries {
		if e.v.LastSeen.Before(cutoff) {
			delete(r.entries, id)
			evicted = append(evicted, id)
		}
	}
	if len(evicted) > 0 {
		r.logger.Debug("Evicted idle visitors", "removed", len(evicted), "remaining", len(r.entries))
	}
	return evicted
}
