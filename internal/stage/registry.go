package stage

import "sync"

// Registry tracks the last known stage per content identity key for the
// lifetime of the process. Independent tasks referencing the same content
// consult it to avoid creating redundant work for content that is already
// done.
//
// Updates are last-write-wins per key, except that DONE is sticky: once a key
// has reached DONE it is never downgraded by a lesser stage from an
// overlapping poll.
type Registry struct {
	mu   sync.RWMutex
	last map[string]Stage
}

// NewRegistry creates an empty registry. Callers own the instance; there is
// no package-level default, so tests can run isolated registries.
func NewRegistry() *Registry {
	return &Registry{
		last: make(map[string]Stage),
	}
}

// Observe records a stage for a content identity key.
func (r *Registry) Observe(key string, s Stage) {
	if key == "" || s == "" {
		return
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	if r.last[key] == StageDone && s != StageDone {
		return
	}
	r.last[key] = s
}

// Last returns the last recorded stage for a key.
func (r *Registry) Last(key string) (Stage, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	s, ok := r.last[key]
	return s, ok
}

// Done reports whether the key has reached the terminal success stage.
func (r *Registry) Done(key string) bool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.last[key] == StageDone
}
