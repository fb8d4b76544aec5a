package breathwave

import (
	"bytes"
	"context"
	"errors"
	"io"
	"log"
	"math"
	"testing"

	intds "github.com/cbegin/breathwave-go/internal/dataset"
	intmod "github.com/cbegin/breathwave-go/internal/modulation"
	intseq "github.com/cbegin/breathwave-go/internal/sequencer"
	inttrack "github.com/cbegin/breathwave-go/internal/track"
)

const sessionJSON = `{
  "oscillators": {
    "list": [{"id": "osc_a", "label": "breath", "startPeriodSeconds": 4, "endPeriodSeconds": 8,
              "transitionSeconds": 60, "waveform": "sine", "inhaleRatio": 0.4, "amplitude": 1}],
    "referenceId": "osc_a"
  },
  "sequencers": [{"id": "seq_a", "datasetId": "builtin", "sequenceId": "plain-hunt-4", "tempo": 60, "label": "hunt", "running": true}],
  "tracks": [
    {"id": "tone", "type": "audio", "label": "tone", "enabled": true,
     "parameters": {"frequency": {"base": 440, "min": 20, "max": 20000, "modulations": [
       {"slotId": "s1", "type": "sequencer", "depth": 100, "enabled": true, "modulatorId": "seq_a", "label": "hunt"}]}}},
    {"id": "glow", "type": "visual", "label": "glow",
     "parameters": {"brightness": {"base": 0.5, "modulations": [
       {"slotId": "s2", "type": "oscillator", "depth": 0.5, "modulatorId": "osc_missing"}]}}},
    "not an object"
  ]
}`

type fakeClock struct{ now float64 }

func (c *fakeClock) read() float64 { return c.now }

func newTestKernel(clock *fakeClock) *Kernel {
	return New(
		WithLogger(log.New(io.Discard, "", 0)),
		WithRowSource(intds.NewProvider()),
		WithClock(clock.read),
	)
}

func frameValue(t *testing.T, frames []inttrack.Frame, trackID, name string) float64 {
	t.Helper()
	for _, f := range frames {
		if f.TrackID == trackID {
			v, ok := f.Values[name]
			if !ok {
				t.Fatalf("track %s has no value %s", trackID, name)
			}
			return v
		}
	}
	t.Fatalf("no frame for track %s", trackID)
	return 0
}

func TestLoadSessionResolvesAfterDependencies(t *testing.T) {
	clock := &fakeClock{}
	k := newTestKernel(clock)
	rep, err := k.LoadSession([]byte(sessionJSON))
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if k.Tracks().Len() != 2 {
		t.Fatalf("tracks = %d, want 2", k.Tracks().Len())
	}
	if len(rep.Tracks.Skipped) != 1 || len(rep.Tracks.Warnings) != 1 {
		t.Fatalf("report = %+v", rep)
	}
	if !errors.Is(rep.Err(), inttrack.ErrUnresolved) {
		t.Fatalf("report error = %v, want unresolved warning", rep.Err())
	}

	// 2.25 beats into the hunt at 60 bpm: progress 0.25.
	frames := k.Frame(2.25)
	if v := frameValue(t, frames, "tone", "frequency"); math.Abs(v-465) > 1e-9 {
		t.Fatalf("frequency = %v, want 465", v)
	}
	if v := frameValue(t, frames, "glow", "brightness"); v != 0.5 {
		t.Fatalf("brightness = %v, want base 0.5", v)
	}
}

func TestSessionRoundTrip(t *testing.T) {
	clock := &fakeClock{}
	first := newTestKernel(clock)
	if _, err := first.LoadSession([]byte(sessionJSON)); err != nil {
		t.Fatal(err)
	}
	saved, err := first.SaveSession()
	if err != nil {
		t.Fatalf("save: %v", err)
	}
	second := newTestKernel(clock)
	rep, err := second.LoadSession(saved)
	if err != nil {
		t.Fatalf("reload: %v", err)
	}
	if len(rep.Tracks.Skipped) != 0 {
		t.Fatalf("reload skipped %v", rep.Tracks.Skipped)
	}
	again, err := second.SaveSession()
	if err != nil {
		t.Fatal(err)
	}
	if !bytes.Equal(saved, again) {
		t.Fatalf("round trip differs:\n%s\n---\n%s", saved, again)
	}
	if second.Oscillators().ReferenceID() != "osc_a" {
		t.Fatalf("reference = %q", second.Oscillators().ReferenceID())
	}
}

func TestLoadSessionRejectsGarbage(t *testing.T) {
	k := newTestKernel(&fakeClock{})
	if _, err := k.LoadSession([]byte(`[1, 2`)); err == nil {
		t.Fatalf("expected decode error")
	}
}

func TestRemoveOscillatorUnbindsSlots(t *testing.T) {
	clock := &fakeClock{}
	k := newTestKernel(clock)
	k.LoadSession([]byte(sessionJSON))
	glow, _ := k.Tracks().Get("glow")
	p, _ := glow.Parameter("brightness")
	slot := p.Slots()[0].ID
	p.Attach(slot, k.Oscillators().All()[0], intmod.AttachOptions{})
	if len(k.Rebind()) != 0 {
		t.Fatalf("all slots should resolve after attaching osc_a")
	}
	if !k.RemoveOscillator("osc_a") {
		t.Fatalf("remove failed")
	}
	if got := p.Unresolved(); len(got) != 1 || got[0] != slot {
		t.Fatalf("unresolved = %v", got)
	}
	for _, at := range []float64{0.3, 1, 2.7} {
		if v := p.Value(at); v != 0.5 {
			t.Fatalf("value(%v) = %v, want base after removal", at, v)
		}
	}
	if k.RemoveOscillator("osc_a") {
		t.Fatalf("second remove should report false")
	}
}

func TestStartSessionAnchorsOscillators(t *testing.T) {
	k := newTestKernel(&fakeClock{})
	k.LoadSession([]byte(sessionJSON))
	k.StartSession(10)
	o, _ := k.Oscillators().Get("osc_a")
	if s := o.Sample(10); math.Abs(s.Value) > 1e-9 || s.Phase != 0 {
		t.Fatalf("sample at session start = %+v", s)
	}
	k.SetPaused(true)
	if v := o.ValueAt(11); v != 0 {
		t.Fatalf("paused value = %v", v)
	}
}

func TestRunStopsOnCancelAndError(t *testing.T) {
	clock := &fakeClock{}
	k := newTestKernel(clock)
	k.LoadSession([]byte(sessionJSON))

	ctx, cancel := context.WithCancel(context.Background())
	calls := 0
	err := k.Run(ctx, 1000, func(at float64, frames []inttrack.Frame) error {
		calls++
		clock.now += 0.001
		if len(frames) != 2 {
			t.Errorf("frames = %d, want 2", len(frames))
		}
		if calls == 3 {
			cancel()
		}
		return nil
	})
	if err != nil || calls != 3 {
		t.Fatalf("run = %v after %d calls", err, calls)
	}

	boom := errors.New("boom")
	err = k.Run(context.Background(), 1000, func(float64, []inttrack.Frame) error { return boom })
	if !errors.Is(err, boom) {
		t.Fatalf("err = %v, want boom", err)
	}
	if err := k.Run(context.Background(), 0, nil); err == nil {
		t.Fatalf("zero fps should fail")
	}
}

func TestLoadSessionFillsMissingFields(t *testing.T) {
	k := newTestKernel(&fakeClock{})
	doc := `{
  "oscillators": {"list": [{"id": "osc_a", "label": "b", "waveform": "sine"}]},
  "sequencers": [{"id": "seq_a", "datasetId": "builtin", "sequenceId": "plain-hunt-4", "running": true}],
  "tracks": []
}`
	rep, err := k.LoadSession([]byte(doc))
	if err != nil || rep.Err() != nil {
		t.Fatalf("load: %v %v", err, rep.Err())
	}
	o, _ := k.Oscillators().Get("osc_a")
	cfg := o.Config()
	if cfg.StartPeriodSeconds != 6 || cfg.EndPeriodSeconds != 6 || cfg.Amplitude != 1 || cfg.InhaleRatio != 0.4 {
		t.Fatalf("restored config = %+v, want defaults for missing fields", cfg)
	}
	peak := 0.0
	for i := 0; i < 100; i++ {
		peak = math.Max(peak, math.Abs(o.ValueAt(float64(i)/10)))
	}
	if peak < 0.9 {
		t.Fatalf("peak over 10s = %v, want an audible oscillator", peak)
	}
	c, _ := k.Sequencers().Get("seq_a")
	if c.Tempo() != intseq.DefaultTempo {
		t.Fatalf("tempo = %v, want %v", c.Tempo(), intseq.DefaultTempo)
	}
}

func TestStartSessionRestartsRestoredSequencers(t *testing.T) {
	k := newTestKernel(&fakeClock{})
	k.LoadSession([]byte(sessionJSON))
	k.StartSession(10)
	c, _ := k.Sequencers().Get("seq_a")
	if s := c.Sample(10.25); s.RowIndex != 0 || math.Abs(s.Value-0.25) > 1e-9 {
		t.Fatalf("sample after session start = %+v, want row 0 progress 0.25", s)
	}
}

func TestExportTrackParameterIncludesSequencer(t *testing.T) {
	k := newTestKernel(&fakeClock{now: 3})
	hunt, err := k.Sequencers().AddControl(intds.BuiltinID, "plain-hunt-6", 60, "hunt")
	if err != nil {
		t.Fatal(err)
	}
	drone, _ := inttrack.New("drone", inttrack.KindAudio, "drone")
	drone.Set("frequency", intmod.Number(196))
	if _, err := drone.Modulate("frequency", intmod.KindSequencer, hunt, 24); err != nil {
		t.Fatal(err)
	}
	k.Tracks().Add(drone)

	curve, err := k.ExportTrackParameter("drone", "frequency", 100, 10)
	if err != nil {
		t.Fatal(err)
	}
	if len(curve) != 1000 {
		t.Fatalf("len = %d, want 1000", len(curve))
	}
	// One row per second at 60 bpm, starting at the render origin.
	for _, c := range []struct {
		i    int
		want float64
	}{{0, 196}, {50, 208}, {125, 202}, {975, 214}} {
		if got := float64(curve[c.i]); math.Abs(got-c.want) > 1e-3 {
			t.Fatalf("curve[%d] = %v, want %v", c.i, got, c.want)
		}
	}
	if _, err := k.ExportTrackParameter("nope", "frequency", 100, 1); err == nil {
		t.Fatalf("unknown track should fail")
	}
}
