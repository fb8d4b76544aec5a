// Package ccout turns per-frame parameter values into MIDI control change
// messages and records them as a standard MIDI file.
package ccout

import (
	"errors"
	"fmt"
	"io"
	"math"

	"gitlab.com/gomidi/midi/v2"
	"gitlab.com/gomidi/midi/v2/smf"

	"github.com/cbegin/breathwave-go/internal/track"
)

// Mapping routes one track parameter to a controller. Values in [Min, Max]
// are scaled to 0..127.
type Mapping struct {
	TrackID    string  `yaml:"track"`
	Parameter  string  `yaml:"parameter"`
	Channel    uint8   `yaml:"channel"`
	Controller uint8   `yaml:"controller"`
	Min        float64 `yaml:"min"`
	Max        float64 `yaml:"max"`
}

func (m Mapping) validate() error {
	switch {
	case m.TrackID == "" || m.Parameter == "":
		return errors.New("track and parameter must be set")
	case m.Channel > 15:
		return fmt.Errorf("channel %d out of range", m.Channel)
	case m.Controller > 127:
		return fmt.Errorf("controller %d out of range", m.Controller)
	case !(m.Max > m.Min):
		return fmt.Errorf("max %v must exceed min %v", m.Max, m.Min)
	}
	return nil
}

// Scale maps v from [lo, hi] onto 0..127, clamping outside the range.
func Scale(v, lo, hi float64) uint8 {
	if math.IsNaN(v) || !(hi > lo) {
		return 0
	}
	x := math.Round((v - lo) / (hi - lo) * 127)
	return uint8(math.Min(127, math.Max(0, x)))
}

// Encoder emits a control change only when a mapped value's 7-bit form
// changes.
type Encoder struct {
	mappings []Mapping
	last     []int
}

func NewEncoder(mappings []Mapping) (*Encoder, error) {
	for i, m := range mappings {
		if err := m.validate(); err != nil {
			return nil, fmt.Errorf("cc mapping %d: %w", i, err)
		}
	}
	last := make([]int, len(mappings))
	for i := range last {
		last[i] = -1
	}
	return &Encoder{mappings: append([]Mapping(nil), mappings...), last: last}, nil
}

// Encode returns the messages for one frame. Disabled or missing tracks
// emit nothing.
func (e *Encoder) Encode(frames []track.Frame) []midi.Message {
	var out []midi.Message
	for i, m := range e.mappings {
		v, ok := lookup(frames, m.TrackID, m.Parameter)
		if !ok {
			continue
		}
		cc := Scale(v, m.Min, m.Max)
		if int(cc) == e.last[i] {
			continue
		}
		e.last[i] = int(cc)
		out = append(out, midi.ControlChange(m.Channel, m.Controller, cc))
	}
	return out
}

// Reset forgets the last sent values so the next frame emits everything.
func (e *Encoder) Reset() {
	for i := range e.last {
		e.last[i] = -1
	}
}

func lookup(frames []track.Frame, trackID, param string) (float64, bool) {
	for _, f := range frames {
		if f.TrackID != trackID {
			continue
		}
		if !f.Enabled {
			return 0, false
		}
		v, ok := f.Values[param]
		return v, ok
	}
	return 0, false
}

// TicksPerSecond is the file resolution: 960 ticks per quarter at 60 BPM.
const TicksPerSecond = 960

// Recorder collects timed messages into a single-track MIDI file.
type Recorder struct {
	tr       smf.Track
	lastTick uint32
}

func NewRecorder(name string) *Recorder {
	r := &Recorder{}
	if name != "" {
		r.tr.Add(0, smf.MetaTrackSequenceName(name))
	}
	r.tr.Add(0, smf.MetaTempo(60))
	return r
}

// Record appends msgs at time t seconds from the start of the recording.
// Times that go backwards are recorded at the previous time.
func (r *Recorder) Record(t float64, msgs []midi.Message) {
	if len(msgs) == 0 {
		return
	}
	tick := r.lastTick
	if t > 0 && !math.IsInf(t, 1) {
		if v := uint32(math.Round(t * TicksPerSecond)); v > tick {
			tick = v
		}
	}
	delta := tick - r.lastTick
	for _, m := range msgs {
		r.tr.Add(delta, m)
		delta = 0
	}
	r.lastTick = tick
}

// WriteTo closes the track and writes the file.
func (r *Recorder) WriteTo(w io.Writer) (int64, error) {
	r.tr.Close(0)
	s := smf.New()
	s.TimeFormat = smf.MetricTicks(TicksPerSecond)
	if err := s.Add(r.tr); err != nil {
		return 0, err
	}
	return s.WriteTo(w)
}
