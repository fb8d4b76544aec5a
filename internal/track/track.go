// Package track groups named, modulatable parameters into audio, visual,
// and haptic tracks, and keeps them in a registry that loads and
// serializes sessions.
package track

import (
	"errors"
	"fmt"
	"sort"

	"github.com/google/uuid"

	"github.com/cbegin/breathwave-go/internal/modulation"
)

var (
	ErrInvalidKind        = errors.New("invalid track kind")
	ErrUnknownParameter   = errors.New("unknown parameter")
	ErrDuplicateParameter = errors.New("duplicate parameter")
	ErrUnresolved         = errors.New("unresolved modulator")
)

// Warning reports a recoverable problem found while hydrating a track.
type Warning struct {
	TrackID   string
	Parameter string
	SlotID    string
	Err       error
}

func (w Warning) Error() string {
	switch {
	case w.SlotID != "":
		return fmt.Sprintf("track %s: %s: slot %s: %v", w.TrackID, w.Parameter, w.SlotID, w.Err)
	case w.Parameter != "":
		return fmt.Sprintf("track %s: %s: %v", w.TrackID, w.Parameter, w.Err)
	}
	return fmt.Sprintf("track %s: %v", w.TrackID, w.Err)
}

func (w Warning) Unwrap() error { return w.Err }

// Frame is the evaluated state of a track at one instant.
type Frame struct {
	TrackID string
	Kind    Kind
	Enabled bool
	Values  map[string]float64
}

// Track owns an ordered set of parameters.
type Track struct {
	id      string
	kind    Kind
	label   string
	enabled bool
	params  map[string]*modulation.Parameter
	order   []string
}

// New creates an enabled track populated with the schema parameters of
// kind. An empty id is generated.
func New(id string, kind Kind, label string) (*Track, error) {
	if !kind.Valid() {
		return nil, fmt.Errorf("%w: %q", ErrInvalidKind, kind)
	}
	if id == "" {
		id = "trk_" + uuid.NewString()
	}
	t := &Track{
		id:      id,
		kind:    kind,
		label:   label,
		enabled: true,
		params:  make(map[string]*modulation.Parameter),
	}
	for _, f := range SchemaFor(kind) {
		t.put(modulation.NewParameter(f.Name, f.Default, f.options()))
	}
	return t, nil
}

func (t *Track) ID() string         { return t.id }
func (t *Track) Kind() Kind         { return t.kind }
func (t *Track) Label() string      { return t.label }
func (t *Track) SetLabel(l string)  { t.label = l }
func (t *Track) Enabled() bool      { return t.enabled }
func (t *Track) SetEnabled(on bool) { t.enabled = on }

// ParameterNames returns parameter names in declaration order.
func (t *Track) ParameterNames() []string {
	return append([]string(nil), t.order...)
}

func (t *Track) put(p *modulation.Parameter) {
	if _, ok := t.params[p.Name()]; !ok {
		t.order = append(t.order, p.Name())
	}
	t.params[p.Name()] = p
}

// AddParameter adds a parameter that is not part of the kind's schema.
func (t *Track) AddParameter(name string, def modulation.Base, opts modulation.Options) (*modulation.Parameter, error) {
	if name == "" {
		return nil, fmt.Errorf("%w: empty name", ErrUnknownParameter)
	}
	if _, ok := t.params[name]; ok {
		return nil, fmt.Errorf("%w: %s", ErrDuplicateParameter, name)
	}
	p := modulation.NewParameter(name, def, opts)
	t.put(p)
	return p, nil
}

func (t *Track) Parameter(name string) (*modulation.Parameter, bool) {
	p, ok := t.params[name]
	return p, ok
}

// Set replaces the base value of a parameter.
func (t *Track) Set(name string, v modulation.Base) error {
	p, ok := t.params[name]
	if !ok {
		return fmt.Errorf("%w: %s", ErrUnknownParameter, name)
	}
	return p.Set(v)
}

// Modulate adds a slot on the named parameter bound to src and returns the
// slot id.
func (t *Track) Modulate(name string, kind modulation.Kind, src modulation.Source, depth float64) (string, error) {
	p, ok := t.params[name]
	if !ok {
		return "", fmt.Errorf("%w: %s", ErrUnknownParameter, name)
	}
	id, err := p.CreateSlot(modulation.SlotSpec{Kind: kind, Depth: depth})
	if err != nil {
		return "", err
	}
	if err := p.Attach(id, src, modulation.AttachOptions{}); err != nil {
		return "", err
	}
	return id, nil
}

// Record returns the persisted form.
func (t *Track) Record() Record {
	rec := Record{
		ID:         t.id,
		Kind:       t.kind,
		Label:      t.label,
		Enabled:    t.enabled,
		Parameters: make(map[string]ParamRecord, len(t.order)),
	}
	for _, name := range t.order {
		rec.Parameters[name] = paramRecord(t.params[name])
	}
	return rec
}

// Hydrate applies a persisted record. Oscillators and control tracks must
// already be loaded so resolve can find them. Problems are reported as
// warnings; the affected slot or value keeps its default.
func (t *Track) Hydrate(rec Record, resolve modulation.Resolver) []Warning {
	t.label = rec.Label
	t.enabled = rec.Enabled
	names := make([]string, 0, len(rec.Parameters))
	for name := range rec.Parameters {
		names = append(names, name)
	}
	sort.Strings(names)
	var warns []Warning
	for _, name := range names {
		warns = append(warns, t.hydrateParam(name, rec.Parameters[name], resolve)...)
	}
	return warns
}

func (t *Track) hydrateParam(name string, pr ParamRecord, resolve modulation.Resolver) []Warning {
	warn := func(slotID string, err error) Warning {
		return Warning{TrackID: t.id, Parameter: name, SlotID: slotID, Err: err}
	}
	opts := modulation.Options{Min: pr.Min, Max: pr.Max, Options: pr.Options}
	def := pr.Base
	if old, ok := t.params[name]; ok {
		if opts.Min == nil {
			opts.Min = bound(old.Min())
		}
		if opts.Max == nil {
			opts.Max = bound(old.Max())
		}
		if opts.Options == nil {
			opts.Options = old.Options()
		}
		def = old.Base()
	}
	p := modulation.NewParameter(name, def, opts)
	var warns []Warning
	if err := p.Set(pr.Base); err != nil {
		warns = append(warns, warn("", err))
	}
	for _, sr := range pr.Modulations {
		spec := modulation.SlotSpec{
			ID:      sr.SlotID,
			Kind:    sr.Type,
			Label:   sr.Label,
			Depth:   sr.Depth,
			Enabled: &sr.Enabled,
		}
		if sr.ModulatorID != nil {
			spec.ModulatorID = *sr.ModulatorID
		}
		if _, err := p.CreateSlot(spec); err != nil {
			warns = append(warns, warn(sr.SlotID, err))
		}
	}
	for _, id := range p.Resolve(resolve) {
		warns = append(warns, warn(id, ErrUnresolved))
	}
	t.put(p)
	return warns
}

// Evaluate samples every parameter at time at. A disabled track yields no
// values.
func (t *Track) Evaluate(at float64) Frame {
	f := Frame{TrackID: t.id, Kind: t.kind, Enabled: t.enabled}
	if !t.enabled {
		return f
	}
	f.Values = make(map[string]float64, len(t.order))
	for _, name := range t.order {
		f.Values[name] = t.params[name].Value(at)
	}
	return f
}
