package breathwave

import (
	"encoding/json"
	"errors"
	"fmt"

	intosc "github.com/cbegin/breathwave-go/internal/oscillator"
	intseq "github.com/cbegin/breathwave-go/internal/sequencer"
	inttrack "github.com/cbegin/breathwave-go/internal/track"
)

// Session is the persisted session fragment. Track records stay raw so one
// malformed track cannot fail the whole document.
type Session struct {
	Tracks      []json.RawMessage `json:"tracks"`
	Oscillators intosc.Set        `json:"oscillators"`
	Sequencers  []intseq.Record   `json:"sequencers"`
}

type savedSession struct {
	Tracks      []inttrack.Record `json:"tracks"`
	Oscillators intosc.Set        `json:"oscillators"`
	Sequencers  []intseq.Record   `json:"sequencers"`
}

// LoadReport collects everything that degraded during LoadSession.
type LoadReport struct {
	Oscillators []error
	Sequencers  []error
	Tracks      inttrack.LoadReport
}

// Err joins every problem in the report, or returns nil.
func (r LoadReport) Err() error {
	errs := append([]error(nil), r.Oscillators...)
	errs = append(errs, r.Sequencers...)
	errs = append(errs, r.Tracks.Skipped...)
	for _, w := range r.Tracks.Warnings {
		errs = append(errs, w)
	}
	return errors.Join(errs...)
}

// LoadSession replaces the kernel state with a persisted session.
// Oscillators and control tracks are loaded first; tracks are hydrated
// after, resolving modulator ids against them. Only a document that is not
// a session at all is an error; everything else degrades and is reported.
func (k *Kernel) LoadSession(data []byte) (LoadReport, error) {
	var s Session
	if err := json.Unmarshal(data, &s); err != nil {
		return LoadReport{}, fmt.Errorf("decode session: %w", err)
	}
	now := k.Now()
	var rep LoadReport
	rep.Oscillators = k.oscillators.Load(s.Oscillators, now)
	for _, err := range rep.Oscillators {
		k.logger.Printf("session: oscillator: %v", err)
	}
	rep.Sequencers = k.sequencers.Load(s.Sequencers, now)
	rep.Tracks = k.tracks.Load(s.Tracks, k.Resolve)
	return rep, nil
}

// SaveSession serializes the kernel state in registry order.
func (k *Kernel) SaveSession() ([]byte, error) {
	s := savedSession{
		Tracks:      k.tracks.Records(),
		Oscillators: k.oscillators.Snapshot(),
		Sequencers:  k.sequencers.Records(),
	}
	return json.MarshalIndent(s, "", "  ")
}
