package track

import (
	"encoding/json"
	"errors"
	"fmt"
	"log"

	"github.com/cbegin/breathwave-go/internal/modulation"
)

var (
	ErrNotFound  = errors.New("track not found")
	ErrDuplicate = errors.New("duplicate track id")
)

// EventKind says what changed in a registry.
type EventKind string

const (
	EventAdd    EventKind = "add"
	EventRemove EventKind = "remove"
	EventClear  EventKind = "clear"
)

// Event is delivered to subscribers. Track is nil for EventClear.
type Event struct {
	Kind  EventKind
	Track *Track
}

// Listener receives registry events synchronously on the caller's goroutine.
type Listener func(Event)

type subscription struct {
	fn Listener
}

// LoadReport summarizes a bulk load.
type LoadReport struct {
	Loaded   []string
	Skipped  []error
	Warnings []Warning
}

// Registry owns tracks by id and keeps insertion order for serialization.
type Registry struct {
	logger    *log.Logger
	items     map[string]*Track
	order     []string
	listeners []*subscription
}

func NewRegistry(logger *log.Logger) *Registry {
	if logger == nil {
		logger = log.Default()
	}
	return &Registry{logger: logger, items: make(map[string]*Track)}
}

// Subscribe registers fn for add, remove, and clear events. The returned
// function cancels the subscription.
func (r *Registry) Subscribe(fn Listener) (cancel func()) {
	s := &subscription{fn: fn}
	r.listeners = append(r.listeners, s)
	return func() {
		for i, v := range r.listeners {
			if v == s {
				r.listeners = append(r.listeners[:i], r.listeners[i+1:]...)
				return
			}
		}
	}
}

func (r *Registry) emit(e Event) {
	for _, s := range append([]*subscription(nil), r.listeners...) {
		s.fn(e)
	}
}

// Add registers t.
func (r *Registry) Add(t *Track) error {
	if t == nil {
		return errors.New("nil track")
	}
	if _, ok := r.items[t.id]; ok {
		return fmt.Errorf("%w: %s", ErrDuplicate, t.id)
	}
	r.items[t.id] = t
	r.order = append(r.order, t.id)
	r.emit(Event{Kind: EventAdd, Track: t})
	return nil
}

// Remove drops the track; it is disabled so stale handles evaluate empty.
func (r *Registry) Remove(id string) bool {
	t, ok := r.items[id]
	if !ok {
		return false
	}
	t.enabled = false
	delete(r.items, id)
	for i, v := range r.order {
		if v == id {
			r.order = append(r.order[:i], r.order[i+1:]...)
			break
		}
	}
	r.emit(Event{Kind: EventRemove, Track: t})
	return true
}

func (r *Registry) Get(id string) (*Track, bool) {
	t, ok := r.items[id]
	return t, ok
}

// All returns tracks in insertion order.
func (r *Registry) All() []*Track {
	out := make([]*Track, 0, len(r.order))
	for _, id := range r.order {
		out = append(out, r.items[id])
	}
	return out
}

// ByKind returns the tracks of one kind in insertion order.
func (r *Registry) ByKind(kind Kind) []*Track {
	var out []*Track
	for _, id := range r.order {
		if t := r.items[id]; t.kind == kind {
			out = append(out, t)
		}
	}
	return out
}

func (r *Registry) Len() int { return len(r.order) }

// Clear removes every track and fires a single EventClear.
func (r *Registry) Clear() {
	for _, t := range r.items {
		t.enabled = false
	}
	r.items = make(map[string]*Track)
	r.order = nil
	r.emit(Event{Kind: EventClear})
}

// Records returns the persisted tracks in insertion order.
func (r *Registry) Records() []Record {
	out := make([]Record, 0, len(r.order))
	for _, id := range r.order {
		out = append(out, r.items[id].Record())
	}
	return out
}

// Evaluate samples every track at time at.
func (r *Registry) Evaluate(at float64) []Frame {
	out := make([]Frame, 0, len(r.order))
	for _, id := range r.order {
		out = append(out, r.items[id].Evaluate(at))
	}
	return out
}

// Load replaces the registry contents with raw track records. Malformed
// records are skipped and logged; unresolved modulators are logged as
// warnings and leave the slot without a source. Loading never stops early.
func (r *Registry) Load(raw []json.RawMessage, resolve modulation.Resolver) LoadReport {
	r.Clear()
	var rep LoadReport
	skip := func(i int, err error) {
		err = fmt.Errorf("track record %d: %w", i, err)
		r.logger.Printf("track: skipping %v", err)
		rep.Skipped = append(rep.Skipped, err)
	}
	for i, msg := range raw {
		var rec Record
		if err := json.Unmarshal(msg, &rec); err != nil {
			skip(i, err)
			continue
		}
		if rec.ID == "" {
			skip(i, errors.New("missing id"))
			continue
		}
		t, err := New(rec.ID, rec.Kind, rec.Label)
		if err != nil {
			skip(i, err)
			continue
		}
		warns := t.Hydrate(rec, resolve)
		for _, w := range warns {
			r.logger.Printf("track: warning: %v", w)
		}
		if err := r.Add(t); err != nil {
			skip(i, err)
			continue
		}
		rep.Warnings = append(rep.Warnings, warns...)
		rep.Loaded = append(rep.Loaded, t.id)
	}
	return rep
}
