package oscillator

import "math"

// Sample is the oscillator output at one instant.
type Sample struct {
	Value  float64 // shaped value times amplitude and envelope
	Phase  float64 // accumulated phase in [0, 1), before PhaseOffset
	Period float64 // period in seconds at this instant
}

// Oscillator produces a breathing waveform whose period may change over the
// session without discontinuities in phase. It is driven from a single
// control goroutine and holds no locks.
type Oscillator struct {
	cfg          Config
	anchor       float64
	sessionStart *float64
	sessionEnd   *float64
	paused       bool
	retired      bool

	phase       float64
	lastElapsed float64
	lastPeriod  float64
	primed      bool
	last        Sample
}

// New creates an oscillator. anchor is the timestamp, in seconds, that
// elapsed time is measured from while no session start is set.
func New(cfg Config, anchor float64) *Oscillator {
	if !finite(anchor) {
		anchor = 0
	}
	return &Oscillator{cfg: sanitize(cfg, DefaultConfig()), anchor: anchor}
}

// ID returns the configured identifier.
func (o *Oscillator) ID() string { return o.cfg.ID }

// Config returns a copy of the current configuration.
func (o *Oscillator) Config() Config {
	c := o.cfg
	if c.Trajectory != nil {
		c.Trajectory = append([]Stage(nil), c.Trajectory...)
	}
	return c
}

// Update applies a partial configuration. Out-of-range values are clamped
// and non-finite values keep the previous setting.
// A changed StartOffsetSeconds shifts elapsed time without moving the
// phase.
func (o *Oscillator) Update(p Patch) {
	offset := o.cfg.StartOffsetSeconds
	o.cfg = p.Apply(o.cfg)
	if o.primed {
		o.lastElapsed = math.Max(0, o.lastElapsed-(o.cfg.StartOffsetSeconds-offset))
	}
}

// StartSession anchors elapsed time at t.
func (o *Oscillator) StartSession(t float64) {
	if !finite(t) {
		return
	}
	o.sessionStart = &t
	o.sessionEnd = nil
	o.primed = false
}

// EndSession marks t as the end of the session; output fades over
// FadeOutSeconds from there.
func (o *Oscillator) EndSession(t float64) {
	if !finite(t) {
		return
	}
	o.sessionEnd = &t
}

// ClearSession drops the session window and falls back to the anchor.
func (o *Oscillator) ClearSession() {
	o.sessionStart = nil
	o.sessionEnd = nil
	o.primed = false
}

// Ending reports whether EndSession was called for the current session.
func (o *Oscillator) Ending() bool { return o.sessionEnd != nil }

// SetPaused freezes the phase and silences the output while paused.
func (o *Oscillator) SetPaused(paused bool) { o.paused = paused }

// Paused reports whether the oscillator is paused.
func (o *Oscillator) Paused() bool { return o.paused }

// retire makes the oscillator permanently silent. Parameters still holding
// a handle see 0 from the next sample on.
func (o *Oscillator) retire() { o.retired = true }

// ValueAt implements modulation.Source.
func (o *Oscillator) ValueAt(t float64) float64 {
	return o.Sample(t).Value
}

// Sample advances the phase to t and returns the output. Calling it twice
// with the same t yields the same result.
func (o *Oscillator) Sample(t float64) Sample {
	if o.retired {
		return Sample{}
	}
	if !finite(t) {
		return o.last
	}
	origin := o.anchor
	if o.sessionStart != nil {
		origin = *o.sessionStart
	}
	elapsed := t - origin - o.cfg.StartOffsetSeconds
	if elapsed < 0 {
		o.primed = false
		o.last = Sample{Phase: o.phase, Period: o.cfg.PeriodAt(0)}
		return o.last
	}

	period := o.cfg.PeriodAt(elapsed)
	switch {
	case !o.primed || elapsed < o.lastElapsed:
		o.phase = wrap(o.cfg.Cycles(0, elapsed))
		o.primed = true
	case !o.paused:
		avg := (period + o.lastPeriod) / 2
		o.phase = wrap(o.phase + (elapsed-o.lastElapsed)/avg)
	}
	o.lastElapsed = elapsed
	o.lastPeriod = period

	shaped := o.cfg.Waveform.Shape(wrap(o.phase+o.cfg.PhaseOffset), o.cfg.InhaleRatio)
	o.last = Sample{
		Value:  shaped * o.cfg.Amplitude * o.envelope(t),
		Phase:  o.phase,
		Period: period,
	}
	return o.last
}

func (o *Oscillator) envelope(t float64) float64 {
	if o.paused {
		return 0
	}
	if o.sessionEnd != nil && t >= *o.sessionEnd {
		if o.cfg.FadeOutSeconds <= 0 {
			return 0
		}
		return math.Max(0, 1-(t-*o.sessionEnd)/o.cfg.FadeOutSeconds)
	}
	return 1
}
