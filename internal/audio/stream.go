// Package audio is the render side of the preview: sources that run on the
// audio thread and an ebiten-backed player that pulls them.
package audio

import (
	"encoding/binary"
	"fmt"
	"io"
	"math"
	"sync"
	"sync/atomic"
	"time"

	ebitaudio "github.com/hajimehoshi/ebiten/v2/audio"
)

// SampleSource fills interleaved stereo float32 frames. It is called on the
// audio thread and must not block.
type SampleSource interface {
	Process(dst []float32)
}

// FinishingSource is a SampleSource that can signal when playback has ended.
// When Finished returns true, the stream will return io.EOF on the next Read.
type FinishingSource interface {
	SampleSource
	Finished() bool
}

// StreamReader adapts a SampleSource to the float32 little-endian byte
// stream ebiten expects.
type StreamReader struct {
	mu     sync.Mutex
	source SampleSource
	buf    []float32
	frames atomic.Uint64
}

func NewStreamReader(source SampleSource) *StreamReader {
	return &StreamReader{source: source}
}

func (r *StreamReader) Read(p []byte) (int, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	frames := len(p) / 8
	if frames == 0 {
		return 0, nil
	}
	need := frames * 2
	if cap(r.buf) < need {
		r.buf = make([]float32, need)
	}
	r.buf = r.buf[:need]
	r.source.Process(r.buf)
	for i, v := range r.buf {
		binary.LittleEndian.PutUint32(p[i*4:], math.Float32bits(v))
	}
	r.frames.Add(uint64(frames))
	n := frames * 8
	if fs, ok := r.source.(FinishingSource); ok && fs.Finished() {
		return n, io.EOF
	}
	return n, nil
}

// Frames returns the number of stereo frames rendered so far.
func (r *StreamReader) Frames() uint64 { return r.frames.Load() }

func (r *StreamReader) Close() error { return nil }

// Player plays one source through the process-wide ebiten audio context.
type Player struct {
	player *ebitaudio.Player
	reader *StreamReader
}

var (
	audioContextOnce sync.Once
	audioContext     *ebitaudio.Context
	audioSampleRate  int
)

// ebiten allows a single audio context per process.
func sharedAudioContext(sampleRate int) (*ebitaudio.Context, error) {
	audioContextOnce.Do(func() {
		audioSampleRate = sampleRate
		audioContext = ebitaudio.NewContext(sampleRate)
	})
	if audioSampleRate != sampleRate {
		return nil, fmt.Errorf("audio context already initialized at %d Hz (requested %d Hz)", audioSampleRate, sampleRate)
	}
	return audioContext, nil
}

func NewPlayer(sampleRate int, source SampleSource) (*Player, error) {
	ctx, err := sharedAudioContext(sampleRate)
	if err != nil {
		return nil, err
	}
	reader := NewStreamReader(source)
	pl, err := ctx.NewPlayerF32(reader)
	if err != nil {
		return nil, err
	}
	return &Player{player: pl, reader: reader}, nil
}

func (p *Player) Play()           { p.player.Play() }
func (p *Player) Pause()          { p.player.Pause() }
func (p *Player) IsPlaying() bool { return p.player.IsPlaying() }

// Position returns the current playback position (what the listener actually hears).
func (p *Player) Position() time.Duration {
	return p.player.Position()
}

// Rendered returns the number of frames handed to the audio device. It runs
// ahead of Position by the device buffer.
func (p *Player) Rendered() uint64 { return p.reader.Frames() }

func (p *Player) Stop() error {
	p.player.Pause()
	if err := p.player.Close(); err != nil {
		return err
	}
	return p.reader.Close()
}
