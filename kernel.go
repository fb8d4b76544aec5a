package breathwave

import (
	"context"
	"errors"
	"log"
	"time"

	intmod "github.com/cbegin/breathwave-go/internal/modulation"
	intosc "github.com/cbegin/breathwave-go/internal/oscillator"
	intseq "github.com/cbegin/breathwave-go/internal/sequencer"
	inttrack "github.com/cbegin/breathwave-go/internal/track"
)

type Option func(*kernelConfig)

type kernelConfig struct {
	logger *log.Logger
	rows   intseq.RowSource
	clock  func() float64
}

func defaultKernelConfig() kernelConfig {
	start := time.Now()
	return kernelConfig{
		logger: log.Default(),
		clock:  func() float64 { return time.Since(start).Seconds() },
	}
}

func WithLogger(logger *log.Logger) Option {
	return func(cfg *kernelConfig) {
		if logger != nil {
			cfg.logger = logger
		}
	}
}

// WithRowSource sets the dataset provider control tracks read their rows
// from.
func WithRowSource(rows intseq.RowSource) Option {
	return func(cfg *kernelConfig) {
		cfg.rows = rows
	}
}

// WithClock replaces the monotonic session clock, in seconds.
func WithClock(clock func() float64) Option {
	return func(cfg *kernelConfig) {
		if clock != nil {
			cfg.clock = clock
		}
	}
}

// Kernel owns the oscillator, control track, and track registries of one
// session and wires them together. It is driven from a single goroutine.
type Kernel struct {
	logger      *log.Logger
	clock       func() float64
	oscillators *intosc.Registry
	sequencers  *intseq.Registry
	tracks      *inttrack.Registry
}

func New(opts ...Option) *Kernel {
	cfg := defaultKernelConfig()
	for _, opt := range opts {
		opt(&cfg)
	}
	return &Kernel{
		logger:      cfg.logger,
		clock:       cfg.clock,
		oscillators: intosc.NewRegistry(),
		sequencers:  intseq.NewRegistry(cfg.rows, cfg.logger),
		tracks:      inttrack.NewRegistry(cfg.logger),
	}
}

func (k *Kernel) Oscillators() *intosc.Registry { return k.oscillators }
func (k *Kernel) Sequencers() *intseq.Registry  { return k.sequencers }
func (k *Kernel) Tracks() *inttrack.Registry    { return k.tracks }

// Now reads the session clock.
func (k *Kernel) Now() float64 { return k.clock() }

// Resolve finds a live modulation source. It only reads the registries and
// is safe to hand to track hydration.
func (k *Kernel) Resolve(kind intmod.Kind, id string) (intmod.Source, bool) {
	switch kind {
	case intmod.KindOscillator:
		if o, ok := k.oscillators.Get(id); ok {
			return o, true
		}
	case intmod.KindSequencer:
		if c, ok := k.sequencers.Get(id); ok {
			return c, true
		}
	}
	return nil, false
}

// Rebind re-resolves every modulation slot of every track, e.g. after an
// oscillator or control track was removed. Slots that lost their source
// are returned as warnings.
func (k *Kernel) Rebind() []inttrack.Warning {
	var warns []inttrack.Warning
	for _, t := range k.tracks.All() {
		for _, name := range t.ParameterNames() {
			p, _ := t.Parameter(name)
			for _, id := range p.Resolve(k.Resolve) {
				warns = append(warns, inttrack.Warning{TrackID: t.ID(), Parameter: name, SlotID: id, Err: inttrack.ErrUnresolved})
			}
		}
	}
	return warns
}

// RemoveOscillator drops an oscillator and unbinds the slots that followed
// it. It reports whether the oscillator existed.
func (k *Kernel) RemoveOscillator(id string) bool {
	if !k.oscillators.Remove(id) {
		return false
	}
	k.Rebind()
	return true
}

// RemoveSequencer drops a control track and unbinds the slots that followed
// it.
func (k *Kernel) RemoveSequencer(id string) bool {
	if !k.sequencers.Remove(id) {
		return false
	}
	k.Rebind()
	return true
}

// StartSession anchors every oscillator at t and restarts every control
// track from its first row at t, including tracks restored as running.
func (k *Kernel) StartSession(t float64) {
	for _, o := range k.oscillators.All() {
		o.StartSession(t)
	}
	for _, c := range k.sequencers.All() {
		c.Restart(t)
	}
}

// EndSession begins the oscillator fade-out at t. Control tracks keep
// running until stopped.
func (k *Kernel) EndSession(t float64) {
	for _, o := range k.oscillators.All() {
		o.EndSession(t)
	}
}

// SetPaused pauses or resumes every oscillator.
func (k *Kernel) SetPaused(paused bool) {
	for _, o := range k.oscillators.All() {
		o.SetPaused(paused)
	}
}

// Frame evaluates every track at time t.
func (k *Kernel) Frame(t float64) []inttrack.Frame {
	return k.tracks.Evaluate(t)
}

// FrameFunc receives each evaluated frame from Run.
type FrameFunc func(t float64, frames []inttrack.Frame) error

// Run evaluates a frame fps times per second until ctx is done or fn
// returns an error. Cancellation is not an error.
func (k *Kernel) Run(ctx context.Context, fps int, fn FrameFunc) error {
	if fps <= 0 {
		return errors.New("fps must be positive")
	}
	ticker := time.NewTicker(time.Second / time.Duration(fps))
	defer ticker.Stop()
	for {
		if ctx.Err() != nil {
			return nil
		}
		t := k.Now()
		if err := fn(t, k.Frame(t)); err != nil {
			return err
		}
		select {
		case <-ctx.Done():
			return nil
		case <-ticker.C:
		}
	}
}
