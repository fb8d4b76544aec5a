package oscillator

import (
	"errors"
	"fmt"

	"github.com/google/uuid"
)

var (
	ErrNotFound  = errors.New("oscillator not found")
	ErrDuplicate = errors.New("duplicate oscillator id")
)

// Set is the persisted form of a registry.
type Set struct {
	List        []Config `json:"list"`
	ReferenceID string   `json:"referenceId,omitempty"`
}

// Registry owns oscillators by id. Parameters only refer to them by id and
// hold non-owning handles obtained through a resolver.
type Registry struct {
	items       map[string]*Oscillator
	order       []string
	referenceID string
}

func NewRegistry() *Registry {
	return &Registry{items: make(map[string]*Oscillator)}
}

// Add creates an oscillator from cfg. An empty id is replaced by a new uuid.
func (r *Registry) Add(cfg Config, anchor float64) (*Oscillator, error) {
	if cfg.ID == "" {
		cfg.ID = "osc_" + uuid.NewString()
	}
	if _, ok := r.items[cfg.ID]; ok {
		return nil, fmt.Errorf("%w: %s", ErrDuplicate, cfg.ID)
	}
	o := New(cfg, anchor)
	r.items[cfg.ID] = o
	r.order = append(r.order, cfg.ID)
	if r.referenceID == "" {
		r.referenceID = cfg.ID
	}
	return o, nil
}

// Get returns the oscillator registered under id.
func (r *Registry) Get(id string) (*Oscillator, bool) {
	o, ok := r.items[id]
	return o, ok
}

// Update applies p to the oscillator registered under id.
func (r *Registry) Update(id string, p Patch) error {
	o, ok := r.items[id]
	if !ok {
		return fmt.Errorf("%w: %s", ErrNotFound, id)
	}
	o.Update(p)
	return nil
}

// Remove retires and drops the oscillator. Stale handles output 0.
func (r *Registry) Remove(id string) bool {
	o, ok := r.items[id]
	if !ok {
		return false
	}
	o.retire()
	delete(r.items, id)
	for i, v := range r.order {
		if v == id {
			r.order = append(r.order[:i], r.order[i+1:]...)
			break
		}
	}
	if r.referenceID == id {
		r.referenceID = ""
		if len(r.order) > 0 {
			r.referenceID = r.order[0]
		}
	}
	return true
}

// All returns the oscillators in insertion order.
func (r *Registry) All() []*Oscillator {
	out := make([]*Oscillator, 0, len(r.order))
	for _, id := range r.order {
		out = append(out, r.items[id])
	}
	return out
}

// Len returns the number of registered oscillators.
func (r *Registry) Len() int { return len(r.order) }

// ReferenceID is the id of the session's primary oscillator.
func (r *Registry) ReferenceID() string { return r.referenceID }

// SetReferenceID selects the primary oscillator.
func (r *Registry) SetReferenceID(id string) error {
	if _, ok := r.items[id]; !ok {
		return fmt.Errorf("%w: %s", ErrNotFound, id)
	}
	r.referenceID = id
	return nil
}

// Clear retires and removes every oscillator.
func (r *Registry) Clear() {
	for _, o := range r.items {
		o.retire()
	}
	r.items = make(map[string]*Oscillator)
	r.order = nil
	r.referenceID = ""
}

// Snapshot returns the persisted form in insertion order.
func (r *Registry) Snapshot() Set {
	set := Set{List: make([]Config, 0, len(r.order)), ReferenceID: r.referenceID}
	for _, id := range r.order {
		set.List = append(set.List, r.items[id].Config())
	}
	return set
}

// Load replaces the registry contents with set. Entries that cannot be
// added are skipped and returned as errors.
func (r *Registry) Load(set Set, anchor float64) []error {
	r.Clear()
	var errs []error
	for _, cfg := range set.List {
		if _, err := r.Add(cfg, anchor); err != nil {
			errs = append(errs, err)
		}
	}
	if set.ReferenceID != "" {
		if err := r.SetReferenceID(set.ReferenceID); err != nil {
			errs = append(errs, fmt.Errorf("reference oscillator: %w", err))
		}
	}
	return errs
}
