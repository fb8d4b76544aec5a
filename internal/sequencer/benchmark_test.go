package sequencer

import "testing"

func BenchmarkControlTrackSample(b *testing.B) {
	r := NewRegistry(fourRows, nil)
	c, err := r.AddControl("minimus", "hunt", 144, "")
	if err != nil {
		b.Fatalf("add control: %v", err)
	}
	c.Start(0)

	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		c.Sample(float64(i) / 60)
	}
}
