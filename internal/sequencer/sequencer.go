package sequencer

import (
	"encoding/json"
	"math"
)

// Tempo limits in beats per minute.
const (
	MinTempo     = 10.0
	MaxTempo     = 360.0
	DefaultTempo = 60.0
)

// Row is one row of a permutation-like structure: an ordered list of
// discrete symbols.
type Row []int

// RowSource supplies the ordered rows of a sequence. Implementations must
// treat the returned rows as read-only snapshots.
type RowSource interface {
	SequenceRows(datasetID, sequenceID string) ([]Row, error)
}

// Sample is the control-track state at one instant.
type Sample struct {
	Value       float64 // progress through the current row, 0..1
	RowIndex    int
	SymbolIndex int
	Symbol      int
	StepCount   int
	RowLength   int
	Running     bool
}

// Record is the persisted form of a control track.
type Record struct {
	ID         string  `json:"id"`
	DatasetID  string  `json:"datasetId"`
	SequenceID string  `json:"sequenceId"`
	Tempo      float64 `json:"tempo"`
	Label      string  `json:"label"`
	Running    bool    `json:"running"`
}

// UnmarshalJSON defaults Tempo to DefaultTempo when the field is absent.
func (r *Record) UnmarshalJSON(data []byte) error {
	type plain Record
	v := plain{Tempo: DefaultTempo}
	if err := json.Unmarshal(data, &v); err != nil {
		return err
	}
	*r = Record(v)
	return nil
}

// ControlTrack walks the rows of a sequence at a tempo, one row per beat,
// and exposes the progress through the current row as a modulation signal.
type ControlTrack struct {
	id         string
	datasetID  string
	sequenceID string
	label      string
	tempo      float64
	rows       []Row

	running   bool
	retired   bool
	rebasedAt float64 // time of the last start or tempo change
	baseSteps float64 // steps completed before rebasedAt
}

func newControlTrack(id, datasetID, sequenceID string, tempo float64, label string, rows []Row) *ControlTrack {
	return &ControlTrack{
		id:         id,
		datasetID:  datasetID,
		sequenceID: sequenceID,
		label:      label,
		tempo:      clampTempo(tempo, DefaultTempo),
		rows:       rows,
	}
}

func (c *ControlTrack) ID() string         { return c.id }
func (c *ControlTrack) Label() string      { return c.label }
func (c *ControlTrack) Tempo() float64     { return c.tempo }
func (c *ControlTrack) Running() bool      { return c.running && !c.retired }
func (c *ControlTrack) DatasetID() string  { return c.datasetID }
func (c *ControlTrack) SequenceID() string { return c.sequenceID }

// StepCount is the number of rows the track cycles through.
func (c *ControlTrack) StepCount() int { return len(c.rows) }

// Record returns the persisted form.
func (c *ControlTrack) Record() Record {
	return Record{
		ID:         c.id,
		DatasetID:  c.datasetID,
		SequenceID: c.sequenceID,
		Tempo:      c.tempo,
		Label:      c.label,
		Running:    c.running,
	}
}

// Start begins stepping from the first row at time at. Starting a running
// track is a no-op.
func (c *ControlTrack) Start(at float64) {
	if c.running {
		return
	}
	c.Restart(at)
}

// Restart rewinds the track to the first row and runs it from time at,
// whether or not it was already running.
func (c *ControlTrack) Restart(at float64) {
	if c.retired || !finite(at) {
		return
	}
	c.running = true
	c.rebasedAt = at
	c.baseSteps = 0
}

// Stop halts the track and rewinds it.
func (c *ControlTrack) Stop() {
	c.running = false
	c.baseSteps = 0
}

// SetTempo changes the tempo. A running track is rebased at time at so the
// step count stays continuous across the change.
func (c *ControlTrack) SetTempo(bpm, at float64) {
	bpm = clampTempo(bpm, c.tempo)
	if c.running && finite(at) {
		c.baseSteps = c.steps(at)
		c.rebasedAt = at
	}
	c.tempo = bpm
}

func (c *ControlTrack) steps(t float64) float64 {
	return c.baseSteps + math.Max(0, t-c.rebasedAt)*c.tempo/60
}

// ValueAt implements modulation.Source.
func (c *ControlTrack) ValueAt(t float64) float64 {
	return c.Sample(t).Value
}

// Sample returns the position at time t. It does not mutate the track.
func (c *ControlTrack) Sample(t float64) Sample {
	n := len(c.rows)
	if !c.Running() {
		return Sample{StepCount: n}
	}
	if n == 0 || !finite(t) {
		return Sample{StepCount: n, Running: true}
	}
	step := c.steps(t)
	whole := math.Floor(step)
	frac := step - whole
	idx := int(math.Mod(whole, float64(n)))
	row := c.rows[idx]
	s := Sample{
		Value:     frac,
		RowIndex:  idx,
		StepCount: n,
		RowLength: len(row),
		Running:   true,
	}
	if len(row) > 0 {
		s.SymbolIndex = min(int(frac*float64(len(row))), len(row)-1)
		s.Symbol = row[s.SymbolIndex]
	}
	return s
}

func clampTempo(bpm, fallback float64) float64 {
	if !finite(bpm) {
		bpm = fallback
	}
	return math.Min(MaxTempo, math.Max(MinTempo, bpm))
}

func finite(v float64) bool {
	return !math.IsNaN(v) && !math.IsInf(v, 0)
}
