package oscillator

import (
	"errors"
	"math"
	"strings"
	"testing"
)

func TestRegistryAddGeneratesIDs(t *testing.T) {
	r := NewRegistry()
	o, err := r.Add(DefaultConfig(), 0)
	if err != nil {
		t.Fatalf("add: %v", err)
	}
	if !strings.HasPrefix(o.ID(), "osc_") {
		t.Fatalf("generated id = %q, want osc_ prefix", o.ID())
	}
	if r.ReferenceID() != o.ID() {
		t.Fatalf("first oscillator should become the reference, got %q", r.ReferenceID())
	}
	cfg := DefaultConfig()
	cfg.ID = o.ID()
	if _, err := r.Add(cfg, 0); !errors.Is(err, ErrDuplicate) {
		t.Fatalf("duplicate add err = %v, want ErrDuplicate", err)
	}
}

func TestRegistryRemoveMakesHandlesInert(t *testing.T) {
	r := NewRegistry()
	cfg := Config{ID: "a", StartPeriodSeconds: 4, EndPeriodSeconds: 4, Waveform: WaveSquare, Amplitude: 1}
	o, _ := r.Add(cfg, 0)
	if o.ValueAt(1) == 0 {
		t.Fatalf("live oscillator should produce output")
	}
	if !r.Remove("a") {
		t.Fatalf("remove returned false")
	}
	if v := o.ValueAt(2); v != 0 {
		t.Fatalf("removed oscillator value = %v, want 0", v)
	}
	if _, ok := r.Get("a"); ok {
		t.Fatalf("removed oscillator still resolvable")
	}
	if r.ReferenceID() != "" {
		t.Fatalf("reference should be cleared, got %q", r.ReferenceID())
	}
}

func TestRegistrySnapshotLoadRoundTrip(t *testing.T) {
	r := NewRegistry()
	r.Add(Config{ID: "a", Label: "slow", StartPeriodSeconds: 4, EndPeriodSeconds: 10, TransitionSeconds: 60, Waveform: WaveBreath, InhaleRatio: 0.3, Amplitude: 1}, 0)
	r.Add(Config{ID: "b", Label: "staged", Waveform: WaveSine, Amplitude: 0.5, Trajectory: []Stage{{Period: 5, HoldDuration: 30}, {Period: 8}}}, 0)
	if err := r.SetReferenceID("b"); err != nil {
		t.Fatalf("set reference: %v", err)
	}
	set := r.Snapshot()

	other := NewRegistry()
	if errs := other.Load(set, 0); len(errs) != 0 {
		t.Fatalf("load errors: %v", errs)
	}
	got := other.Snapshot()
	if got.ReferenceID != "b" || len(got.List) != 2 {
		t.Fatalf("snapshot = %+v", got)
	}
	for i := range set.List {
		a, b := set.List[i], got.List[i]
		if a.ID != b.ID || a.StartPeriodSeconds != b.StartPeriodSeconds || a.EndPeriodSeconds != b.EndPeriodSeconds ||
			a.Waveform != b.Waveform || len(a.Trajectory) != len(b.Trajectory) {
			t.Errorf("config %d mismatch: %+v vs %+v", i, a, b)
		}
	}
}

func TestRegistryLoadSkipsDuplicates(t *testing.T) {
	r := NewRegistry()
	errs := r.Load(Set{List: []Config{{ID: "x"}, {ID: "x"}}, ReferenceID: "missing"}, 0)
	if len(errs) != 2 {
		t.Fatalf("errors = %v, want duplicate and missing reference", errs)
	}
	if r.Len() != 1 {
		t.Fatalf("len = %d, want 1", r.Len())
	}
}

func TestProcessorUsesLatestMessage(t *testing.T) {
	p := NewProcessor(1000)
	buf := make([]float32, 64)
	p.Process(buf)
	for i, v := range buf {
		if v != 0 {
			t.Fatalf("sample %d = %v before any message, want 0", i, v)
		}
	}

	p.Post(Message{Config: Config{StartPeriodSeconds: 2, EndPeriodSeconds: 2, Waveform: WaveSquare, InhaleRatio: 0.5, Amplitude: 1}})
	p.Post(Message{Config: Config{StartPeriodSeconds: 2, EndPeriodSeconds: 2, Waveform: WaveSquare, InhaleRatio: 0.5, Amplitude: 0.5}})
	p.Process(buf)
	for i, v := range buf {
		if math.Abs(float64(v)) != 0.5 {
			t.Fatalf("sample %d = %v, want magnitude 0.5 from the last message", i, v)
		}
	}
}

func TestProcessorPauseAndStop(t *testing.T) {
	p := NewProcessor(1000)
	buf := make([]float32, 32)
	p.Post(Message{Config: Config{StartPeriodSeconds: 1, EndPeriodSeconds: 1, Waveform: WaveSquare, Amplitude: 1}, Paused: true})
	p.Process(buf)
	for _, v := range buf {
		if v != 0 {
			t.Fatalf("paused processor produced %v", v)
		}
	}
	p.Post(Message{Config: Config{StartPeriodSeconds: 1, EndPeriodSeconds: 1, Waveform: WaveSquare, Amplitude: 1}})
	p.Stop()
	p.Process(buf)
	for _, v := range buf {
		if v != 0 {
			t.Fatalf("stopped processor produced %v", v)
		}
	}
	if !p.Stopped() {
		t.Fatalf("Stopped() = false after Stop")
	}
}

func TestProcessorMatchesSquarePeriod(t *testing.T) {
	p := NewProcessor(100)
	p.Post(Message{Config: Config{StartPeriodSeconds: 1, EndPeriodSeconds: 1, Waveform: WaveSquare, InhaleRatio: 0.5, Amplitude: 1}})
	buf := make([]float32, 100)
	p.Process(buf)
	if buf[10] != 1 || buf[60] != -1 {
		t.Fatalf("square at 0.1s = %v, at 0.6s = %v; want 1, -1", buf[10], buf[60])
	}
}

func TestProcessorPauseKeepsTimelineMoving(t *testing.T) {
	cfg := Config{StartPeriodSeconds: 2, EndPeriodSeconds: 6, TransitionSeconds: 2, Waveform: WaveSawtooth, Amplitude: 1}

	o := New(cfg, 0)
	o.StartSession(0)
	o.SetPaused(true)
	var want float64
	for i := 0; i < 200; i++ {
		if i == 100 {
			o.SetPaused(false)
		}
		want = o.Sample(float64(i) / 100).Value
	}

	p := NewProcessor(100)
	buf := make([]float32, 100)
	p.Post(Message{Config: cfg, Paused: true})
	p.Process(buf)
	p.Post(Message{Config: cfg})
	p.Process(buf)
	if got := float64(buf[99]); math.Abs(got-want) > 0.02 {
		t.Fatalf("after resume processor = %v, oscillator = %v", got, want)
	}
}

func TestProcessorFadesAfterEnding(t *testing.T) {
	cfg := Config{StartPeriodSeconds: 1, EndPeriodSeconds: 1, Waveform: WaveSquare, InhaleRatio: 0.5, Amplitude: 1, FadeOutSeconds: 1}
	p := NewProcessor(100)
	buf := make([]float32, 100)
	p.Post(Message{Config: cfg, Ending: true})
	p.Process(buf)
	if math.Abs(float64(buf[0])) != 1 {
		t.Fatalf("fade start = %v, want magnitude 1", buf[0])
	}
	if got := math.Abs(float64(buf[50])); math.Abs(got-0.5) > 1e-6 {
		t.Fatalf("half way through fade = %v, want magnitude 0.5", got)
	}
	p.Process(buf)
	for i, v := range buf {
		if math.Abs(float64(v)) > 1e-6 {
			t.Fatalf("sample %d = %v after fade, want 0", i, v)
		}
	}

	p.Post(Message{Config: cfg})
	p.Process(buf)
	if math.Abs(float64(buf[0])) != 1 {
		t.Fatalf("new session after fade = %v, want magnitude 1", buf[0])
	}
}
