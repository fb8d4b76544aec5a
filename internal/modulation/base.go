package modulation

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strconv"
)

// Base is a parameter's unmodulated value: either a number or one of the
// parameter's enumerated options.
type Base struct {
	num    float64
	choice string
	enum   bool
}

// Number returns a numeric base.
func Number(v float64) Base { return Base{num: v} }

// Choice returns an enumerated base.
func Choice(s string) Base { return Base{choice: s, enum: true} }

func (b Base) IsChoice() bool { return b.enum }
func (b Base) Float() float64 { return b.num }
func (b Base) Choice() string { return b.choice }

func (b Base) String() string {
	if b.enum {
		return b.choice
	}
	return strconv.FormatFloat(b.num, 'g', -1, 64)
}

// MarshalJSON writes a number or a string.
func (b Base) MarshalJSON() ([]byte, error) {
	if b.enum {
		return json.Marshal(b.choice)
	}
	if !finite(b.num) {
		return nil, fmt.Errorf("base %v is not finite", b.num)
	}
	return json.Marshal(b.num)
}

// UnmarshalJSON accepts a number, a string, or null (zero).
func (b *Base) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	switch {
	case bytes.Equal(data, []byte("null")):
		*b = Base{}
		return nil
	case len(data) > 0 && data[0] == '"':
		var s string
		if err := json.Unmarshal(data, &s); err != nil {
			return err
		}
		*b = Choice(s)
		return nil
	}
	var v float64
	if err := json.Unmarshal(data, &v); err != nil {
		return fmt.Errorf("base must be a number or a string: %w", err)
	}
	*b = Number(v)
	return nil
}
