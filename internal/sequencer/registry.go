package sequencer

import (
	"errors"
	"fmt"
	"log"

	"github.com/google/uuid"
)

var (
	ErrNotFound  = errors.New("control track not found")
	ErrDuplicate = errors.New("duplicate control track id")
	ErrNoSource  = errors.New("no row source configured")
)

// Registry owns control tracks by id.
type Registry struct {
	source RowSource
	logger *log.Logger
	items  map[string]*ControlTrack
	order  []string
}

func NewRegistry(source RowSource, logger *log.Logger) *Registry {
	if logger == nil {
		logger = log.Default()
	}
	return &Registry{source: source, logger: logger, items: make(map[string]*ControlTrack)}
}

// SetSource replaces the row source used for new control tracks.
func (r *Registry) SetSource(source RowSource) { r.source = source }

func (r *Registry) rows(datasetID, sequenceID string) ([]Row, error) {
	if r.source == nil {
		return nil, ErrNoSource
	}
	return r.source.SequenceRows(datasetID, sequenceID)
}

// AddControl creates a stopped control track over the given sequence.
func (r *Registry) AddControl(datasetID, sequenceID string, tempo float64, label string) (*ControlTrack, error) {
	rows, err := r.rows(datasetID, sequenceID)
	if err != nil {
		return nil, fmt.Errorf("control track %s/%s: %w", datasetID, sequenceID, err)
	}
	c := newControlTrack("seq_"+uuid.NewString(), datasetID, sequenceID, tempo, label, rows)
	r.insert(c)
	return c, nil
}

func (r *Registry) insert(c *ControlTrack) {
	r.items[c.id] = c
	r.order = append(r.order, c.id)
}

func (r *Registry) lookup(id string) (*ControlTrack, error) {
	c, ok := r.items[id]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrNotFound, id)
	}
	return c, nil
}

// Start starts the control track at time at.
func (r *Registry) Start(id string, at float64) error {
	c, err := r.lookup(id)
	if err != nil {
		return err
	}
	c.Start(at)
	return nil
}

// Stop halts the control track.
func (r *Registry) Stop(id string) error {
	c, err := r.lookup(id)
	if err != nil {
		return err
	}
	c.Stop()
	return nil
}

// SetTempo changes the tempo of a control track; see ControlTrack.SetTempo.
func (r *Registry) SetTempo(id string, bpm, at float64) error {
	c, err := r.lookup(id)
	if err != nil {
		return err
	}
	c.SetTempo(bpm, at)
	return nil
}

// Get returns the control track registered under id.
func (r *Registry) Get(id string) (*ControlTrack, bool) {
	c, ok := r.items[id]
	return c, ok
}

// Remove stops and drops the control track. Stale handles output 0.
func (r *Registry) Remove(id string) bool {
	c, ok := r.items[id]
	if !ok {
		return false
	}
	c.Stop()
	c.retired = true
	delete(r.items, id)
	for i, v := range r.order {
		if v == id {
			r.order = append(r.order[:i], r.order[i+1:]...)
			break
		}
	}
	return true
}

// All returns the control tracks in insertion order.
func (r *Registry) All() []*ControlTrack {
	out := make([]*ControlTrack, 0, len(r.order))
	for _, id := range r.order {
		out = append(out, r.items[id])
	}
	return out
}

// Len returns the number of control tracks.
func (r *Registry) Len() int { return len(r.order) }

// Clear removes every control track.
func (r *Registry) Clear() {
	for _, id := range append([]string(nil), r.order...) {
		r.Remove(id)
	}
}

// Records returns the persisted form in insertion order.
func (r *Registry) Records() []Record {
	out := make([]Record, 0, len(r.order))
	for _, id := range r.order {
		out = append(out, r.items[id].Record())
	}
	return out
}

// Load replaces the registry contents. A record whose rows cannot be
// fetched is kept without rows, so references to it still resolve and
// contribute 0. Running records are started at time at.
func (r *Registry) Load(records []Record, at float64) []error {
	r.Clear()
	var errs []error
	for _, rec := range records {
		if rec.ID == "" {
			rec.ID = "seq_" + uuid.NewString()
		}
		if _, ok := r.items[rec.ID]; ok {
			errs = append(errs, fmt.Errorf("%w: %s", ErrDuplicate, rec.ID))
			continue
		}
		rows, err := r.rows(rec.DatasetID, rec.SequenceID)
		if err != nil {
			r.logger.Printf("sequencer: control track %s has no rows (%s/%s): %v", rec.ID, rec.DatasetID, rec.SequenceID, err)
			errs = append(errs, fmt.Errorf("control track %s: %w", rec.ID, err))
		}
		c := newControlTrack(rec.ID, rec.DatasetID, rec.SequenceID, rec.Tempo, rec.Label, rows)
		r.insert(c)
		if rec.Running {
			c.Start(at)
		}
	}
	return errs
}
