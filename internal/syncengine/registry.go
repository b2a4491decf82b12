package syncengine

import (
	"sort"
	"sync"
)

// Registry is a concurrency-safe mapping from window to the player currently
// attached to it. Players attach when they finish initializing and detach
// when they go away; the engine only reads it through HandleLookup.
type Registry struct {
	mu      sync.RWMutex
	handles map[WindowID]PlayerHandle
}

// NewRegistry returns an empty registry.
func NewRegistry() *Registry {
	return &Registry{handles: make(map[WindowID]PlayerHandle)}
}

// Attach installs h as the player of window id, replacing any previous one.
func (r *Registry) Attach(id WindowID, h PlayerHandle) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.handles[id] = h
}

// Detach removes h from window id. It is a no-op when another handle has
// replaced h in the meantime, so a late disconnect cannot evict its successor.
func (r *Registry) Detach(id WindowID, h PlayerHandle) bool {
	r.mu.Lock()
	defer r.mu.Unlock()

	cur, ok := r.handles[id]
	if !ok || cur != h {
		return false
	}
	delete(r.handles, id)
	return true
}

// Handle implements HandleLookup.
func (r *Registry) Handle(id WindowID) (PlayerHandle, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	h, ok := r.handles[id]
	return h, ok
}

// Count returns the number of attached players. Used for metrics.
func (r *Registry) Count() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.handles)
}

// WindowIDs returns the ids of windows with an attached player, sorted.
func (r *Registry) WindowIDs() []WindowID {
	r.mu.RLock()
	defer r.mu.RUnlock()

	ids := make([]WindowID, 0, len(r.handles))
	for id := range r.handles {
		ids = append(ids, id)
	}
	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })
	return ids
}
