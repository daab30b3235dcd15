// Package registry maps job identifiers to the specs they were submitted
// with.
package registry

import (
	"sync"

	"github.com/drericflores/hstp/pkg/lib"
)

var logger = lib.Logger.WithField("component", "registry")

// Registry is safe for concurrent use. Lookups run in parallel; registration
// is serialized.
type Registry struct {
	mu    sync.RWMutex
	specs map[string]lib.JobSpec
	order []string
}

func New() *Registry {
	return &Registry{specs: make(map[string]lib.JobSpec)}
}

// Register stores a copy of spec. It fails with *lib.ErrDuplicateID when the
// id is already present.
func (r *Registry) Register(spec lib.JobSpec) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.specs[spec.ID]; ok {
		return lib.NewErrDuplicateID(spec.ID)
	}
	r.specs[spec.ID] = spec.Clone()
	r.order = append(r.order, spec.ID)
	logger.WithField("job", spec.ID).Debug("registered")
	return nil
}

// Unregister removes id. Unknown ids are ignored.
func (r *Registry) Unregister(id string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.specs[id]; !ok {
		return
	}
	delete(r.specs, id)
	for i, existing := range r.order {
		if existing == id {
			r.order = append(r.order[:i], r.order[i+1:]...)
			break
		}
	}
}

// Lookup returns a copy of the spec registered under id or *lib.ErrNotFound.
func (r *Registry) Lookup(id string) (lib.JobSpec, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	spec, ok := r.specs[id]
	if !ok {
		return lib.JobSpec{}, lib.NewErrNotFound("job", id)
	}
	return spec.Clone(), nil
}

// List returns every spec in registration order.
func (r *Registry) List() []lib.JobSpec {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]lib.JobSpec, 0, len(r.order))
	for _, id := range r.order {
		out = append(out, r.specs[id].Clone())
	}
	return out
}

func (r *Registry) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.specs)
}
