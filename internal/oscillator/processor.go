package oscillator

import "sync/atomic"

// Message carries a configuration change into the render context.
type Message struct {
	Config Config
	Paused bool
	// Ending starts the fade-out over Config.FadeOutSeconds from the block
	// that picks the message up.
	Ending bool
}

// Processor is the render-context twin of Oscillator. It runs at a fixed
// sample rate on the audio thread and never shares mutable state with the
// control thread: configuration arrives through Post, and only the most
// recent message is applied at the start of the next block.
type Processor struct {
	sampleRate float64
	inbox      atomic.Pointer[Message]
	stopped    atomic.Bool

	// Owned by the render goroutine.
	cur        Message
	ready      bool
	elapsed    float64
	phase      float64
	lastPeriod float64
	fade       float64 // seconds since Ending was first seen
}

func NewProcessor(sampleRate int) *Processor {
	if sampleRate <= 0 {
		sampleRate = 48000
	}
	return &Processor{sampleRate: float64(sampleRate)}
}

// Post replaces any message not yet picked up by the render thread.
func (p *Processor) Post(m Message) {
	m.Config = sanitize(m.Config, DefaultConfig())
	p.inbox.Store(&m)
}

// Stop makes the processor output silence from the next block on.
func (p *Processor) Stop() { p.stopped.Store(true) }

// Stopped reports whether Stop was called.
func (p *Processor) Stopped() bool { return p.stopped.Load() }

// Process fills dst with one oscillator value per sample.
func (p *Processor) Process(dst []float32) {
	if p.stopped.Load() {
		clear(dst)
		return
	}
	if m := p.inbox.Swap(nil); m != nil {
		if !m.Ending || !p.cur.Ending {
			p.fade = 0
		}
		p.cur = *m
		p.ready = true
	}
	if !p.ready {
		clear(dst)
		return
	}
	cfg := &p.cur.Config
	dt := 1 / p.sampleRate
	for i := range dst {
		elapsed := p.elapsed - cfg.StartOffsetSeconds
		if elapsed < 0 {
			dst[i] = 0
			p.elapsed += dt
			continue
		}
		period := cfg.PeriodAt(elapsed)
		if p.lastPeriod == 0 {
			p.lastPeriod = period
		}
		if p.cur.Paused {
			dst[i] = 0
			p.lastPeriod = period
			p.elapsed += dt
			continue
		}
		v := cfg.Waveform.Shape(wrap(p.phase+cfg.PhaseOffset), cfg.InhaleRatio) * cfg.Amplitude
		if p.cur.Ending {
			v *= p.envelope(cfg.FadeOutSeconds)
			p.fade += dt
		}
		dst[i] = float32(v)
		p.phase = wrap(p.phase + dt/((period+p.lastPeriod)/2))
		p.lastPeriod = period
		p.elapsed += dt
	}
}

func (p *Processor) envelope(fadeOut float64) float64 {
	if fadeOut <= 0 {
		return 0
	}
	return max(0, 1-p.fade/fadeOut)
}
