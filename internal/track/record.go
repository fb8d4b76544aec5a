package track

import (
	"encoding/json"
	"math"

	"github.com/cbegin/breathwave-go/internal/modulation"
)

// Record is the persisted form of a track.
type Record struct {
	ID         string                 `json:"id"`
	Kind       Kind                   `json:"type"`
	Label      string                 `json:"label"`
	Enabled    bool                   `json:"enabled"`
	Parameters map[string]ParamRecord `json:"parameters"`
}

// UnmarshalJSON defaults Enabled to true when the field is absent.
func (r *Record) UnmarshalJSON(data []byte) error {
	type plain Record
	v := plain{Enabled: true}
	if err := json.Unmarshal(data, &v); err != nil {
		return err
	}
	*r = Record(v)
	return nil
}

// ParamRecord is the persisted form of a parameter. Bounds are omitted when
// unbounded.
type ParamRecord struct {
	Base        modulation.Base `json:"base"`
	Min         *float64        `json:"min,omitempty"`
	Max         *float64        `json:"max,omitempty"`
	Options     []string        `json:"options,omitempty"`
	Modulations []SlotRecord    `json:"modulations"`
}

// SlotRecord is the persisted form of a modulation slot.
type SlotRecord struct {
	SlotID      string          `json:"slotId"`
	Type        modulation.Kind `json:"type"`
	Depth       float64         `json:"depth"`
	Enabled     bool            `json:"enabled"`
	ModulatorID *string         `json:"modulatorId"`
	Label       string          `json:"label"`
}

// UnmarshalJSON defaults Enabled to true when the field is absent.
func (s *SlotRecord) UnmarshalJSON(data []byte) error {
	type plain SlotRecord
	v := plain{Enabled: true}
	if err := json.Unmarshal(data, &v); err != nil {
		return err
	}
	*s = SlotRecord(v)
	return nil
}

func paramRecord(p *modulation.Parameter) ParamRecord {
	pr := ParamRecord{
		Base:        p.Base(),
		Min:         bound(p.Min()),
		Max:         bound(p.Max()),
		Options:     p.Options(),
		Modulations: []SlotRecord{},
	}
	for _, s := range p.Slots() {
		sr := SlotRecord{
			SlotID:  s.ID,
			Type:    s.Kind,
			Depth:   s.Depth,
			Enabled: s.Enabled,
			Label:   s.Label,
		}
		if s.ModulatorID != "" {
			id := s.ModulatorID
			sr.ModulatorID = &id
		}
		pr.Modulations = append(pr.Modulations, sr)
	}
	return pr
}

func bound(v float64) *float64 {
	if math.IsInf(v, 0) || math.IsNaN(v) {
		return nil
	}
	return &v
}
