package oscillator

import (
	"encoding/json"
	"math"
)

// Limits applied to every configuration before it is used.
const (
	MinPeriodSeconds = 0.1
	MaxPeriodSeconds = 120.0
	MinInhaleRatio   = 0.05
	MaxInhaleRatio   = 0.95
	MinAmplitude     = 0.0
	MaxAmplitude     = 1.5
)

// Waveform selects the shape applied to the accumulated phase.
type Waveform string

const (
	WaveSine     Waveform = "sine"
	WaveTriangle Waveform = "triangle"
	WaveSquare   Waveform = "square"
	WaveSawtooth Waveform = "sawtooth"
	WaveBreath   Waveform = "breath"
)

// Valid reports whether w is one of the known waveforms.
func (w Waveform) Valid() bool {
	switch w {
	case WaveSine, WaveTriangle, WaveSquare, WaveSawtooth, WaveBreath:
		return true
	}
	return false
}

// Shape maps a phase in [0, 1) to a value in [-1, 1]. inhaleRatio is the
// duty cycle for square and the rising fraction of the cycle for breath.
func (w Waveform) Shape(phase, inhaleRatio float64) float64 {
	switch w {
	case WaveSine:
		return math.Sin(2 * math.Pi * phase)
	case WaveSquare:
		if phase < inhaleRatio {
			return 1
		}
		return -1
	case WaveSawtooth:
		return 2*phase - 1
	case WaveBreath:
		if phase < inhaleRatio {
			return -1 + 2*phase/inhaleRatio
		}
		return 1 - 2*(phase-inhaleRatio)/(1-inhaleRatio)
	default: // WaveTriangle
		if phase < 0.5 {
			return 4*phase - 1
		}
		return 3 - 4*phase
	}
}

// Stage is one knot of a multi-stage period trajectory. The period ramps
// linearly from this stage to the next over HoldDuration seconds.
type Stage struct {
	Period       float64 `json:"period"`
	HoldDuration float64 `json:"holdDuration"`
}

// Config is the persisted description of an oscillator.
type Config struct {
	ID                 string   `json:"id"`
	Label              string   `json:"label"`
	StartPeriodSeconds float64  `json:"startPeriodSeconds"`
	EndPeriodSeconds   float64  `json:"endPeriodSeconds"`
	TransitionSeconds  float64  `json:"transitionSeconds"`
	Waveform           Waveform `json:"waveform"`
	InhaleRatio        float64  `json:"inhaleRatio"`
	Amplitude          float64  `json:"amplitude"`
	PhaseOffset        float64  `json:"phaseOffset,omitempty"`
	StartOffsetSeconds float64  `json:"startOffsetSeconds,omitempty"`
	FadeOutSeconds     float64  `json:"fadeOutSeconds,omitempty"`
	Trajectory         []Stage  `json:"trajectory,omitempty"`
}

// DefaultConfig is a steady six second breath.
func DefaultConfig() Config {
	return Config{
		Label:              "Breath",
		StartPeriodSeconds: 6,
		EndPeriodSeconds:   6,
		Waveform:           WaveBreath,
		InhaleRatio:        0.4,
		Amplitude:          1,
	}
}

// UnmarshalJSON decodes over DefaultConfig, so fields absent from a
// persisted record take their default instead of zero.
func (c *Config) UnmarshalJSON(data []byte) error {
	type plain Config
	v := plain(DefaultConfig())
	if err := json.Unmarshal(data, &v); err != nil {
		return err
	}
	*c = Config(v)
	return nil
}

// Patch is a partial update. Nil fields are left untouched.
type Patch struct {
	Label              *string
	StartPeriodSeconds *float64
	EndPeriodSeconds   *float64
	TransitionSeconds  *float64
	Waveform           *Waveform
	InhaleRatio        *float64
	Amplitude          *float64
	PhaseOffset        *float64
	StartOffsetSeconds *float64
	FadeOutSeconds     *float64
	Trajectory         *[]Stage
}

// Apply returns c with the patch applied and sanitized against c.
func (p Patch) Apply(c Config) Config {
	next := c
	if p.Label != nil {
		next.Label = *p.Label
	}
	setFloat(&next.StartPeriodSeconds, p.StartPeriodSeconds)
	setFloat(&next.EndPeriodSeconds, p.EndPeriodSeconds)
	setFloat(&next.TransitionSeconds, p.TransitionSeconds)
	setFloat(&next.InhaleRatio, p.InhaleRatio)
	setFloat(&next.Amplitude, p.Amplitude)
	setFloat(&next.PhaseOffset, p.PhaseOffset)
	setFloat(&next.StartOffsetSeconds, p.StartOffsetSeconds)
	setFloat(&next.FadeOutSeconds, p.FadeOutSeconds)
	if p.Waveform != nil {
		next.Waveform = *p.Waveform
	}
	if p.Trajectory != nil {
		next.Trajectory = *p.Trajectory
	}
	return sanitize(next, c)
}

func setFloat(dst *float64, v *float64) {
	if v != nil {
		*dst = *v
	}
}

// sanitize clamps every field of c into its legal range. Non-finite values
// and unknown waveforms fall back to the matching field of prev.
func sanitize(c, prev Config) Config {
	c.StartPeriodSeconds = clamp(finiteOr(c.StartPeriodSeconds, prev.StartPeriodSeconds), MinPeriodSeconds, MaxPeriodSeconds)
	c.EndPeriodSeconds = clamp(finiteOr(c.EndPeriodSeconds, prev.EndPeriodSeconds), MinPeriodSeconds, MaxPeriodSeconds)
	c.TransitionSeconds = math.Max(0, finiteOr(c.TransitionSeconds, prev.TransitionSeconds))
	c.InhaleRatio = clamp(finiteOr(c.InhaleRatio, prev.InhaleRatio), MinInhaleRatio, MaxInhaleRatio)
	c.Amplitude = clamp(finiteOr(c.Amplitude, prev.Amplitude), MinAmplitude, MaxAmplitude)
	c.PhaseOffset = wrap(finiteOr(c.PhaseOffset, prev.PhaseOffset))
	c.StartOffsetSeconds = math.Max(0, finiteOr(c.StartOffsetSeconds, prev.StartOffsetSeconds))
	c.FadeOutSeconds = math.Max(0, finiteOr(c.FadeOutSeconds, prev.FadeOutSeconds))
	if !c.Waveform.Valid() {
		c.Waveform = prev.Waveform
		if !c.Waveform.Valid() {
			c.Waveform = WaveBreath
		}
	}
	if len(c.Trajectory) > 0 {
		stages := make([]Stage, 0, len(c.Trajectory))
		for _, st := range c.Trajectory {
			if !finite(st.Period) {
				continue
			}
			stages = append(stages, Stage{
				Period:       clamp(st.Period, MinPeriodSeconds, MaxPeriodSeconds),
				HoldDuration: math.Max(0, finiteOr(st.HoldDuration, 0)),
			})
		}
		c.Trajectory = stages
	}
	if len(c.Trajectory) == 0 {
		c.Trajectory = nil
	}
	return c
}

// PeriodAt returns the breathing period at elapsed seconds into the session.
func (c *Config) PeriodAt(elapsed float64) float64 {
	if n := len(c.Trajectory); n > 0 {
		if elapsed <= 0 {
			return c.Trajectory[0].Period
		}
		at := 0.0
		for i := 0; i < n-1; i++ {
			hold := c.Trajectory[i].HoldDuration
			if elapsed < at+hold {
				return lerp(c.Trajectory[i].Period, c.Trajectory[i+1].Period, (elapsed-at)/hold)
			}
			at += hold
		}
		return c.Trajectory[n-1].Period
	}
	if c.TransitionSeconds <= 0 || elapsed >= c.TransitionSeconds {
		return c.EndPeriodSeconds
	}
	if elapsed <= 0 {
		return c.StartPeriodSeconds
	}
	return lerp(c.StartPeriodSeconds, c.EndPeriodSeconds, elapsed/c.TransitionSeconds)
}

// Cycles integrates 1/period over [from, to], i.e. the exact number of
// cycles completed between two elapsed times. Negative times count as 0.
func (c *Config) Cycles(from, to float64) float64 {
	from = math.Max(0, from)
	to = math.Max(0, to)
	if to <= from {
		return 0
	}
	total := 0.0
	c.eachPiece(func(start, dur, p0, p1 float64) bool {
		end := start + dur
		a := math.Max(from, start)
		b := math.Min(to, end)
		if b > a {
			total += pieceCycles(start, dur, p0, p1, a, b)
		}
		return end < to
	})
	return total
}

// eachPiece walks the period curve as linear pieces in time order. The last
// piece has infinite duration. fn returns false to stop.
func (c *Config) eachPiece(fn func(start, dur, p0, p1 float64) bool) {
	inf := math.Inf(1)
	if n := len(c.Trajectory); n > 0 {
		at := 0.0
		for i := 0; i < n-1; i++ {
			hold := c.Trajectory[i].HoldDuration
			if hold > 0 {
				if !fn(at, hold, c.Trajectory[i].Period, c.Trajectory[i+1].Period) {
					return
				}
				at += hold
			}
		}
		last := c.Trajectory[n-1].Period
		fn(at, inf, last, last)
		return
	}
	if c.TransitionSeconds > 0 {
		if !fn(0, c.TransitionSeconds, c.StartPeriodSeconds, c.EndPeriodSeconds) {
			return
		}
		fn(c.TransitionSeconds, inf, c.EndPeriodSeconds, c.EndPeriodSeconds)
		return
	}
	fn(0, inf, c.EndPeriodSeconds, c.EndPeriodSeconds)
}

// pieceCycles integrates 1/p(x) over [a, b] for p linear from p0 at start to
// p1 at start+dur.
func pieceCycles(start, dur, p0, p1, a, b float64) float64 {
	if p0 == p1 || math.IsInf(dur, 1) {
		return (b - a) / p0
	}
	slope := (p1 - p0) / dur
	pa := p0 + slope*(a-start)
	pb := p0 + slope*(b-start)
	return math.Log(pb/pa) / slope
}

func lerp(a, b, t float64) float64 {
	return a + (b-a)*t
}

func clamp(v, lo, hi float64) float64 {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}

func finite(v float64) bool {
	return !math.IsNaN(v) && !math.IsInf(v, 0)
}

func finiteOr(v, fallback float64) float64 {
	if finite(v) {
		return v
	}
	return fallback
}

// wrap folds v into [0, 1).
func wrap(v float64) float64 {
	_, f := math.Modf(v)
	if f < 0 {
		f++
	}
	if f >= 1 {
		f = 0
	}
	return f
}
