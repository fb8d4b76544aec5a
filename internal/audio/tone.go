package audio

import (
	"math"
	"sync/atomic"

	"github.com/cbegin/breathwave-go/internal/oscillator"
)

// ToneParams is one control-thread update for a Tone.
type ToneParams struct {
	Frequency float64 // Hz
	Gain      float64 // 0..1
	Pan       float64 // -1 (left) .. 1 (right)
	Waveform  oscillator.Waveform
	// BreathDepth scales the gain by the breath processor, if any:
	// gain * (1 - depth/2 + depth/2 * breath).
	BreathDepth float64
}

// Tone is a stereo preview voice. Parameters arrive through Post and are
// picked up at the next block; gain and pan are ramped across the block so
// updates at frame rate do not click.
type Tone struct {
	sampleRate float64
	inbox      atomic.Pointer[ToneParams]
	stopped    atomic.Bool
	breath     *oscillator.Processor

	// Owned by the audio thread.
	cur       ToneParams
	ready     bool
	phase     float64
	left      float64
	right     float64
	breathBuf []float32
}

// NewTone returns a silent tone. breath may be nil.
func NewTone(sampleRate int, breath *oscillator.Processor) *Tone {
	if sampleRate <= 0 {
		sampleRate = 48000
	}
	return &Tone{sampleRate: float64(sampleRate), breath: breath}
}

// Post replaces any update not yet consumed by the audio thread.
func (t *Tone) Post(p ToneParams) {
	p.Frequency = clampFinite(p.Frequency, 0, t.sampleRate/2)
	p.Gain = clampFinite(p.Gain, 0, 1)
	p.Pan = clampFinite(p.Pan, -1, 1)
	p.BreathDepth = clampFinite(p.BreathDepth, 0, 1)
	if !p.Waveform.Valid() {
		p.Waveform = oscillator.WaveSine
	}
	t.inbox.Store(&p)
}

// Stop silences the tone and ends the stream at the next read.
func (t *Tone) Stop() {
	t.stopped.Store(true)
	if t.breath != nil {
		t.breath.Stop()
	}
}

// Finished implements FinishingSource.
func (t *Tone) Finished() bool { return t.stopped.Load() }

// Process implements SampleSource.
func (t *Tone) Process(dst []float32) {
	frames := len(dst) / 2
	if t.stopped.Load() || frames == 0 {
		clear(dst)
		return
	}
	if p := t.inbox.Swap(nil); p != nil {
		t.cur = *p
		t.ready = true
	}
	if !t.ready {
		clear(dst)
		return
	}
	var breath []float32
	if t.breath != nil && t.cur.BreathDepth > 0 {
		if cap(t.breathBuf) < frames {
			t.breathBuf = make([]float32, frames)
		}
		breath = t.breathBuf[:frames]
		t.breath.Process(breath)
	}

	// Equal-power pan.
	angle := (t.cur.Pan + 1) * math.Pi / 4
	left := t.cur.Gain * math.Cos(angle)
	right := t.cur.Gain * math.Sin(angle)
	stepL := (left - t.left) / float64(frames)
	stepR := (right - t.right) / float64(frames)
	inc := t.cur.Frequency / t.sampleRate
	half := t.cur.BreathDepth / 2

	for i := 0; i < frames; i++ {
		v := t.cur.Waveform.Shape(t.phase, 0.5)
		if breath != nil {
			v *= 1 - half + half*float64(breath[i])
		}
		t.left += stepL
		t.right += stepR
		dst[2*i] = float32(v * t.left)
		dst[2*i+1] = float32(v * t.right)
		t.phase, _ = math.Modf(t.phase + inc)
	}
	t.left, t.right = left, right
}

func clampFinite(v, lo, hi float64) float64 {
	if math.IsNaN(v) || math.IsInf(v, 0) {
		return lo
	}
	return math.Min(hi, math.Max(lo, v))
}
