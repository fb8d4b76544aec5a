package sequencer

import (
	"encoding/json"
	"errors"
	"math"
	"testing"
)

type fakeSource map[string][]Row

func (f fakeSource) SequenceRows(datasetID, sequenceID string) ([]Row, error) {
	rows, ok := f[datasetID+"/"+sequenceID]
	if !ok {
		return nil, errors.New("unknown sequence")
	}
	return rows, nil
}

var fourRows = fakeSource{
	"minimus/hunt": {
		{1, 2, 3, 4},
		{2, 1, 4, 3},
		{2, 4, 1, 3},
		{4, 2, 3, 1},
	},
}

func TestControlTrackWrapsRows(t *testing.T) {
	r := NewRegistry(fourRows, nil)
	c, err := r.AddControl("minimus", "hunt", 60, "hunt")
	if err != nil {
		t.Fatalf("add control: %v", err)
	}
	if err := r.Start(c.ID(), 100); err != nil {
		t.Fatalf("start: %v", err)
	}
	s := c.Sample(104.5)
	if s.StepCount != 4 {
		t.Fatalf("step count = %d, want 4", s.StepCount)
	}
	if s.RowIndex != 0 {
		t.Fatalf("row index = %d, want 0 (wrapped)", s.RowIndex)
	}
	if math.Abs(s.Value-0.5) > 1e-9 {
		t.Fatalf("progress = %v, want 0.5", s.Value)
	}
	if s.SymbolIndex != 2 || s.Symbol != 3 || s.RowLength != 4 {
		t.Fatalf("symbol = %d@%d (len %d), want 3@2 (len 4)", s.Symbol, s.SymbolIndex, s.RowLength)
	}
}

func TestControlTrackStoppedIsZero(t *testing.T) {
	r := NewRegistry(fourRows, nil)
	c, _ := r.AddControl("minimus", "hunt", 120, "")
	s := c.Sample(10)
	if s.Running || s.Value != 0 || s.RowIndex != 0 || s.SymbolIndex != 0 {
		t.Fatalf("stopped sample = %+v, want zero", s)
	}
	c.Start(0)
	if !c.Sample(1.3).Running {
		t.Fatalf("started track should report running")
	}
	r.Stop(c.ID())
	if s := c.Sample(2); s.Running || s.Value != 0 {
		t.Fatalf("sample after stop = %+v, want zero", s)
	}
}

func TestSetTempoKeepsStepsContinuous(t *testing.T) {
	r := NewRegistry(fourRows, nil)
	c, _ := r.AddControl("minimus", "hunt", 60, "")
	c.Start(0)
	before := c.Sample(1.25)
	r.SetTempo(c.ID(), 120, 1.25)
	after := c.Sample(1.25)
	if before != after {
		t.Fatalf("tempo change jumped: %+v -> %+v", before, after)
	}
	// 0.25s at 120 bpm is half a step: 1.25 + 0.5 = 1.75 steps.
	s := c.Sample(1.5)
	if s.RowIndex != 1 || math.Abs(s.Value-0.75) > 1e-9 {
		t.Fatalf("sample = %+v, want row 1 progress 0.75", s)
	}
}

func TestTempoIsClamped(t *testing.T) {
	r := NewRegistry(fourRows, nil)
	c, _ := r.AddControl("minimus", "hunt", 1000, "")
	if c.Tempo() != MaxTempo {
		t.Fatalf("tempo = %v, want %v", c.Tempo(), MaxTempo)
	}
	c.SetTempo(1, 0)
	if c.Tempo() != MinTempo {
		t.Fatalf("tempo = %v, want %v", c.Tempo(), MinTempo)
	}
	c.SetTempo(math.NaN(), 0)
	if c.Tempo() != MinTempo {
		t.Fatalf("NaN tempo should keep %v, got %v", MinTempo, c.Tempo())
	}
}

func TestAddControlUnknownSequence(t *testing.T) {
	r := NewRegistry(fourRows, nil)
	if _, err := r.AddControl("minimus", "missing", 60, ""); err == nil {
		t.Fatalf("expected error for unknown sequence")
	}
	if r.Len() != 0 {
		t.Fatalf("failed add should not register a track")
	}
	empty := NewRegistry(nil, nil)
	if _, err := empty.AddControl("a", "b", 60, ""); !errors.Is(err, ErrNoSource) {
		t.Fatalf("err = %v, want ErrNoSource", err)
	}
}

func TestRemoveMakesHandleInert(t *testing.T) {
	r := NewRegistry(fourRows, nil)
	c, _ := r.AddControl("minimus", "hunt", 60, "")
	c.Start(0)
	r.Remove(c.ID())
	if s := c.Sample(0.5); s.Running || s.Value != 0 {
		t.Fatalf("removed track sample = %+v", s)
	}
	c.Start(1)
	if c.Running() {
		t.Fatalf("removed track restarted")
	}
	if err := r.Start(c.ID(), 1); !errors.Is(err, ErrNotFound) {
		t.Fatalf("err = %v, want ErrNotFound", err)
	}
}

func TestLoadKeepsTracksWithMissingRows(t *testing.T) {
	r := NewRegistry(fourRows, nil)
	errs := r.Load([]Record{
		{ID: "a", DatasetID: "minimus", SequenceID: "hunt", Tempo: 90, Running: true},
		{ID: "b", DatasetID: "gone", SequenceID: "x", Tempo: 60, Running: true},
		{ID: "a", DatasetID: "minimus", SequenceID: "hunt"},
	}, 0)
	if len(errs) != 2 {
		t.Fatalf("errors = %v, want missing rows and duplicate", errs)
	}
	if r.Len() != 2 {
		t.Fatalf("len = %d, want 2", r.Len())
	}
	b, ok := r.Get("b")
	if !ok {
		t.Fatalf("track b should be kept")
	}
	if v := b.ValueAt(3.3); v != 0 {
		t.Fatalf("track without rows value = %v, want 0", v)
	}
	recs := r.Records()
	if recs[0].ID != "a" || recs[0].Tempo != 90 || !recs[0].Running {
		t.Fatalf("record = %+v", recs[0])
	}
}

func TestRecordDecodeDefaultsTempo(t *testing.T) {
	var recs []Record
	doc := `[{"id": "a", "datasetId": "minimus", "sequenceId": "hunt", "running": true}]`
	if err := json.Unmarshal([]byte(doc), &recs); err != nil {
		t.Fatal(err)
	}
	if recs[0].Tempo != DefaultTempo {
		t.Fatalf("decoded tempo = %v, want %v", recs[0].Tempo, DefaultTempo)
	}
	r := NewRegistry(fourRows, nil)
	if errs := r.Load(recs, 0); len(errs) != 0 {
		t.Fatalf("load: %v", errs)
	}
	c, _ := r.Get("a")
	if c.Tempo() != DefaultTempo {
		t.Fatalf("restored tempo = %v, want %v", c.Tempo(), DefaultTempo)
	}
}

func TestRestartRewindsRunningTrack(t *testing.T) {
	r := NewRegistry(fourRows, nil)
	c, _ := r.AddControl("minimus", "hunt", 60, "")
	c.Start(0)
	c.Start(5)
	if s := c.Sample(5.25); s.RowIndex != 1 {
		t.Fatalf("Start on a running track moved it: row %d, want 1", s.RowIndex)
	}
	c.Restart(5)
	if s := c.Sample(5.25); s.RowIndex != 0 || math.Abs(s.Value-0.25) > 1e-9 {
		t.Fatalf("after restart = %+v, want row 0 progress 0.25", s)
	}
}
