package track

import "github.com/cbegin/breathwave-go/internal/modulation"

// Kind selects the render engine a track feeds. Engines switch on Kind and
// read parameters by the names its Schema declares.
type Kind string

const (
	KindAudio  Kind = "audio"
	KindVisual Kind = "visual"
	KindHaptic Kind = "haptic"
)

func (k Kind) Valid() bool {
	switch k {
	case KindAudio, KindVisual, KindHaptic:
		return true
	}
	return false
}

// Kinds lists every track kind in a stable order.
func Kinds() []Kind { return []Kind{KindAudio, KindVisual, KindHaptic} }

// Field declares one parameter of a track kind.
type Field struct {
	Name    string
	Default modulation.Base
	Min     *float64
	Max     *float64
	Options []string
}

func (f Field) options() modulation.Options {
	return modulation.Options{Min: f.Min, Max: f.Max, Options: f.Options}
}

// Schema is the ordered parameter declaration of a track kind.
type Schema []Field

func num(name string, def, lo, hi float64) Field {
	return Field{Name: name, Default: modulation.Number(def), Min: &lo, Max: &hi}
}

func enum(name string, options ...string) Field {
	return Field{Name: name, Default: modulation.Choice(options[0]), Options: options}
}

var schemas = map[Kind]Schema{
	KindAudio: {
		num("gain", 0.5, 0, 1),
		num("frequency", 220, 20, 20000),
		num("pan", 0, -1, 1),
		num("beatFrequency", 0, 0, 40),
		enum("waveform", "sine", "triangle", "square", "sawtooth"),
	},
	KindVisual: {
		num("brightness", 0.5, 0, 1),
		num("hue", 200, 0, 360),
		num("scale", 1, 0, 4),
		num("speed", 1, 0, 10),
		enum("pattern", "pulse", "ring", "wave"),
	},
	KindHaptic: {
		num("intensity", 0.5, 0, 1),
		num("sharpness", 0.5, 0, 1),
		enum("pattern", "continuous", "pulse"),
	},
}

// SchemaFor returns the parameter declaration of kind, or nil for an
// unknown kind.
func SchemaFor(kind Kind) Schema {
	s, ok := schemas[kind]
	if !ok {
		return nil
	}
	out := make(Schema, len(s))
	copy(out, s)
	return out
}
