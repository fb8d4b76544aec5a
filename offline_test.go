package breathwave

import (
	"encoding/binary"
	"math"
	"testing"

	intmod "github.com/cbegin/breathwave-go/internal/modulation"
	intosc "github.com/cbegin/breathwave-go/internal/oscillator"
)

func TestEncodeWAVHeader(t *testing.T) {
	wav := EncodeWAVFloat32LE([]float32{0, 0.5, -0.5}, 48000, 1)
	if len(wav) != 44+12 {
		t.Fatalf("len = %d, want 56", len(wav))
	}
	if string(wav[0:4]) != "RIFF" || string(wav[8:12]) != "WAVE" || string(wav[36:40]) != "data" {
		t.Fatalf("bad chunk ids: %q", wav[:40])
	}
	if got := binary.LittleEndian.Uint16(wav[20:]); got != 3 {
		t.Fatalf("format = %d, want 3 (IEEE float)", got)
	}
	if got := binary.LittleEndian.Uint32(wav[24:]); got != 48000 {
		t.Fatalf("sample rate = %d", got)
	}
	if got := math.Float32frombits(binary.LittleEndian.Uint32(wav[48:])); got != 0.5 {
		t.Fatalf("second sample = %v, want 0.5", got)
	}
}

func TestRenderParameterFollowsOscillator(t *testing.T) {
	cfg := intosc.DefaultConfig()
	cfg.ID = "osc"
	cfg.Waveform = intosc.WaveSquare
	cfg.InhaleRatio = 0.5
	cfg.StartPeriodSeconds, cfg.EndPeriodSeconds = 1, 1
	osc := intosc.New(cfg, 0)

	lo, hi := 0.0, 1.0
	p := intmod.NewParameter("gain", intmod.Number(0.5), intmod.Options{Min: &lo, Max: &hi})
	slot, _ := p.CreateSlot(intmod.SlotSpec{Kind: intmod.KindOscillator, Depth: 0.5})
	p.Attach(slot, osc, intmod.AttachOptions{})

	curve := RenderParameter(p, 100, 0, 2)
	if len(curve) != 200 {
		t.Fatalf("len = %d, want 200", len(curve))
	}
	for _, c := range []struct {
		i    int
		want float32
	}{{10, 1}, {60, 0}, {110, 1}, {160, 0}} {
		if curve[c.i] != c.want {
			t.Fatalf("curve[%d] = %v, want %v", c.i, curve[c.i], c.want)
		}
	}
	if RenderParameter(p, 100, 0, 0) != nil {
		t.Fatalf("zero duration should render nothing")
	}
}

func TestRenderTrackParameter(t *testing.T) {
	k := newTestKernel(&fakeClock{})
	k.LoadSession([]byte(sessionJSON))
	curve, err := k.RenderTrackParameter("glow", "brightness", 50, 0, 1)
	if err != nil {
		t.Fatal(err)
	}
	for i, v := range curve {
		if v != 0.5 {
			t.Fatalf("curve[%d] = %v, want 0.5", i, v)
		}
	}
	if _, err := k.RenderTrackParameter("nope", "gain", 50, 0, 1); err == nil {
		t.Fatalf("unknown track should fail")
	}
	if _, err := k.RenderTrackParameter("glow", "nope", 50, 0, 1); err == nil {
		t.Fatalf("unknown parameter should fail")
	}
}
