package widget

import (
	"sync"

	"github.com/aridash/ari/internal/errors"
)

// Registry resolves widget IDs. Lookups of removed or unknown widgets return
// a NotFound error, which callers treat as a no-op.
type Registry struct {
	mu      sync.RWMutex
	widgets map[string]Widget
	order   []string
}

// NewRegistry creates an empty Registry.
func NewRegistry() *Registry {
	return &Registry{widgets: make(map[string]Widget)}
}

// Register adds w. Registering an ID twice is an error.
func (r *Registry) Register(w Widget) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, ok := r.widgets[w.ID()]; ok {
		return errors.Wrapf(errors.ErrWidgetExists, "register %s", w.ID())
	}
	r.widgets[w.ID()] = w
	r.order = append(r.order, w.ID())
	return nil
}

// Lookup returns the widget registered under id.
func (r *Registry) Lookup(id string) (Widget, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	w, ok := r.widgets[id]
	if !ok {
		return nil, errors.NewNotFoundError("widget", id)
	}
	return w, nil
}

// Remove calls the widget's Remove and unregisters it. Must be called on the loop.
func (r *Registry) Remove(id string) error {
	r.mu.Lock()
	w, ok := r.widgets[id]
	if ok {
		delete(r.widgets, id)
		for i, v := range r.order {
			if v == id {
				r.order = append(r.order[:i:i], r.order[i+1:]...)
				break
			}
		}
	}
	r.mu.Unlock()

	if !ok {
		return errors.NewNotFoundError("widget", id)
	}
	return w.Remove()
}

// RemoveAll removes every widget in registration order and joins their errors.
func (r *Registry) RemoveAll() error {
	var errs []error
	for _, w := range r.All() {
		if err := r.Remove(w.ID()); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

// All returns the registered widgets in registration order.
func (r *Registry) All() []Widget {
	r.mu.RLock()
	defer r.mu.RUnlock()

	out := make([]Widget, 0, len(r.order))
	for _, id := range r.order {
		out = append(out, r.widgets[id])
	}
	return out
}

// Len returns the number of registered widgets.
func (r *Registry) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.widgets)
}
