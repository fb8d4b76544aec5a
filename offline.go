package breathwave

import (
	"encoding/binary"
	"fmt"
	"math"

	intmod "github.com/cbegin/breathwave-go/internal/modulation"
)

const renderBlock = 1024

// RenderParameter samples p at sampleRate for the given number of seconds,
// starting at time start. The result is one mono control curve.
func RenderParameter(p *intmod.Parameter, sampleRate int, start, seconds float64) []float32 {
	if sampleRate <= 0 || !(seconds > 0) {
		return nil
	}
	frames := int(float64(sampleRate) * seconds)
	out := make([]float32, frames)
	dt := 1 / float64(sampleRate)
	for off := 0; off < frames; off += renderBlock {
		end := min(off+renderBlock, frames)
		p.Render(out[off:end], start+float64(off)*dt, dt)
	}
	return out
}

// RenderTrackParameter renders one parameter of a registered track.
func (k *Kernel) RenderTrackParameter(trackID, name string, sampleRate int, start, seconds float64) ([]float32, error) {
	t, ok := k.tracks.Get(trackID)
	if !ok {
		return nil, fmt.Errorf("track %s not found", trackID)
	}
	p, ok := t.Parameter(name)
	if !ok {
		return nil, fmt.Errorf("track %s has no parameter %s", trackID, name)
	}
	return RenderParameter(p, sampleRate, start, seconds), nil
}

// ExportTrackParameter renders a parameter the way a session played from
// time 0 would drive it: the session is started at 0 first, so oscillators
// are anchored there and every control track runs from its first row.
// The kernel is left in that session; call StartSession again before
// running in real time.
func (k *Kernel) ExportTrackParameter(trackID, name string, sampleRate int, seconds float64) ([]float32, error) {
	if _, ok := k.tracks.Get(trackID); !ok {
		return nil, fmt.Errorf("track %s not found", trackID)
	}
	k.StartSession(0)
	return k.RenderTrackParameter(trackID, name, sampleRate, 0, seconds)
}

func EncodeWAVFloat32LE(samples []float32, sampleRate int, channels int) []byte {
	dataSize := len(samples) * 4
	byteRate := sampleRate * channels * 4
	blockAlign := channels * 4
	chunkSize := 36 + dataSize
	out := make([]byte, 44+dataSize)
	copy(out[0:], []byte("RIFF"))
	binary.LittleEndian.PutUint32(out[4:], uint32(chunkSize))
	copy(out[8:], []byte("WAVE"))
	copy(out[12:], []byte("fmt "))
	binary.LittleEndian.PutUint32(out[16:], 16)
	binary.LittleEndian.PutUint16(out[20:], 3)
	binary.LittleEndian.PutUint16(out[22:], uint16(channels))
	binary.LittleEndian.PutUint32(out[24:], uint32(sampleRate))
	binary.LittleEndian.PutUint32(out[28:], uint32(byteRate))
	binary.LittleEndian.PutUint16(out[32:], uint16(blockAlign))
	binary.LittleEndian.PutUint16(out[34:], 32)
	copy(out[36:], []byte("data"))
	binary.LittleEndian.PutUint32(out[40:], uint32(dataSize))
	for i, s := range samples {
		binary.LittleEndian.PutUint32(out[44+i*4:], math.Float32bits(s))
	}
	return out
}
