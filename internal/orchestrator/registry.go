/**
 * Engine Registry - Registered engines and their availability
 *
 * Holds engines in registration order and answers which are currently usable.
 * Registration order is the deterministic tie-break for the ordering policy.
 */

package orchestrator

import (
	"sync"

	"github.com/docmill/recognition-worker/internal/engine"
)

// Registry holds registered engines. Read-mostly; a read-write lock keeps
// availability checks cheap under concurrent requests.
type Registry struct {
	mu      sync.RWMutex
	engines map[string]engine.Engine
	order   []string
}

// NewRegistry creates an empty registry.
func NewRegistry() *Registry {
	return &Registry{
		engines: make(map[string]engine.Engine),
	}
}

// Register adds an engine. Re-registering an identifier replaces the engine
// but keeps its original position in registration order.
func (r *Registry) Register(e engine.Engine) {
	r.mu.Lock()
	defer r.mu.Unlock()

	id := e.Name()
	if _, exists := r.engines[id]; !exists {
		r.order = append(r.order, id)
	}
	r.engines[id] = e
}

// Get returns the engine registered under id.
func (r *Registry) Get(id string) (engine.Engine, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	e, ok := r.engines[id]
	return e, ok
}

// Names returns all registered identifiers in registration order.
func (r *Registry) Names() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()

	return append([]string(nil), r.order...)
}

// Available returns identifiers of currently usable engines, in registration
// order. Engines reporting unavailable are excluded entirely - never ordered,
// never attempted.
func (r *Registry) Available() []string {
	r.mu.RLock()
	snapshot := make([]engine.Engine, 0, len(r.order))
	ids := make([]string, 0, len(r.order))
	for _, id := range r.order {
		snapshot = append(snapshot, r.engines[id])
		ids = append(ids, id)
	}
	r.mu.RUnlock()

	// IsAvailable may probe a remote service; call it outside the lock.
	available := make([]string, 0, len(ids))
	for i, e := range snapshot {
		if e.IsAvailable() {
			available = append(available, ids[i])
		}
	}
	return available
}
