// Package modulation combines a parameter's base value with weighted,
// switchable contributions from live modulation sources.
//
// A Parameter never owns its sources. Each slot stores the id of the
// oscillator or control track it follows plus a non-owning handle that is
// obtained, and replaced, through a Resolver.
package modulation

import (
	"errors"
	"fmt"
	"math"
	"slices"

	"github.com/google/uuid"
	"github.com/viterin/vek/vek32"
)

var (
	ErrUnknownSlot     = errors.New("unknown modulation slot")
	ErrDuplicateSlot   = errors.New("duplicate modulation slot id")
	ErrInvalidKind     = errors.New("invalid modulation source kind")
	ErrNotModulatable  = errors.New("parameter is not modulatable")
	ErrUnknownOption   = errors.New("unknown option")
	ErrBaseKind        = errors.New("base kind does not match parameter")
	ErrNonFiniteNumber = errors.New("value is not finite")
)

// Source is anything sampled per frame for modulation.
type Source interface {
	ValueAt(t float64) float64
}

// Kind names the registry a slot's modulator lives in.
type Kind string

const (
	KindOscillator Kind = "oscillator"
	KindSequencer  Kind = "sequencer"
)

func (k Kind) Valid() bool {
	return k == KindOscillator || k == KindSequencer
}

// Resolver looks up a live source by kind and id. It must not mutate the
// registries it reads.
type Resolver func(kind Kind, id string) (Source, bool)

// Options bound a parameter. Nil Min/Max mean unbounded. A non-empty
// Options list makes the parameter an enumeration.
type Options struct {
	Min     *float64
	Max     *float64
	Options []string
}

// Slot is one modulation binding.
type Slot struct {
	ID          string
	Kind        Kind
	Label       string
	Depth       float64
	Enabled     bool
	ModulatorID string

	source Source
}

// Bound reports whether the slot currently has a live source.
func (s Slot) Bound() bool { return s.source != nil }

// SlotSpec describes a slot to create. Enabled defaults to true.
type SlotSpec struct {
	ID          string
	Kind        Kind
	Label       string
	Depth       float64
	Enabled     *bool
	ModulatorID string
}

// AttachOptions adjust a slot while a source is attached to it.
type AttachOptions struct {
	Depth       *float64
	Enabled     *bool
	ModulatorID string
}

type identified interface {
	ID() string
}

// Parameter is a named control value: clamp(base + sum(depth * source), min, max).
type Parameter struct {
	name    string
	base    Base
	min     float64
	max     float64
	options []string
	slots   []*Slot

	scratch []float32
}

// NewParameter creates a parameter. For enumerations a base that is not one
// of the options is replaced by the first option.
func NewParameter(name string, def Base, opts Options) *Parameter {
	p := &Parameter{
		name:    name,
		min:     math.Inf(-1),
		max:     math.Inf(1),
		options: slices.Clone(opts.Options),
	}
	if opts.Min != nil && !math.IsNaN(*opts.Min) {
		p.min = *opts.Min
	}
	if opts.Max != nil && !math.IsNaN(*opts.Max) {
		p.max = *opts.Max
	}
	if p.min > p.max {
		p.min, p.max = p.max, p.min
	}
	if err := p.Set(def); err != nil {
		if p.IsEnum() {
			p.base = Choice(p.options[0])
		} else {
			p.base = Number(0)
		}
	}
	return p
}

func (p *Parameter) Name() string { return p.name }
func (p *Parameter) Base() Base   { return p.base }
func (p *Parameter) IsEnum() bool { return len(p.options) > 0 }

// Min and Max return the clamp bounds; unbounded sides are infinite.
func (p *Parameter) Min() float64 { return p.min }
func (p *Parameter) Max() float64 { return p.max }

// Options returns a copy of the enumerated options.
func (p *Parameter) Options() []string { return slices.Clone(p.options) }

// Set replaces the base value. Enumerations accept an option name or an
// integral option index. Non-finite numbers are rejected and the previous
// base is kept.
func (p *Parameter) Set(b Base) error {
	if p.IsEnum() {
		if !b.IsChoice() {
			i := b.Float()
			if i != math.Trunc(i) || i < 0 || int(i) >= len(p.options) {
				return fmt.Errorf("%w: index %v for %s", ErrUnknownOption, i, p.name)
			}
			b = Choice(p.options[int(i)])
		}
		if !slices.Contains(p.options, b.Choice()) {
			return fmt.Errorf("%w: %q for %s", ErrUnknownOption, b.Choice(), p.name)
		}
		p.base = b
		return nil
	}
	if b.IsChoice() {
		return fmt.Errorf("%w: %s is numeric", ErrBaseKind, p.name)
	}
	if !finite(b.Float()) {
		return fmt.Errorf("%w: %s", ErrNonFiniteNumber, p.name)
	}
	p.base = b
	return nil
}

// CreateSlot appends a slot. A missing id is generated. Enumerated
// parameters cannot be modulated.
func (p *Parameter) CreateSlot(spec SlotSpec) (string, error) {
	if p.IsEnum() {
		return "", fmt.Errorf("%w: %s", ErrNotModulatable, p.name)
	}
	if !spec.Kind.Valid() {
		return "", fmt.Errorf("%w: %q", ErrInvalidKind, spec.Kind)
	}
	if spec.ID == "" {
		spec.ID = "mod_" + uuid.NewString()
	}
	if p.slot(spec.ID) != nil {
		return "", fmt.Errorf("%w: %s", ErrDuplicateSlot, spec.ID)
	}
	s := &Slot{
		ID:          spec.ID,
		Kind:        spec.Kind,
		Label:       spec.Label,
		Depth:       finiteOr(spec.Depth, 0),
		Enabled:     true,
		ModulatorID: spec.ModulatorID,
	}
	if spec.Enabled != nil {
		s.Enabled = *spec.Enabled
	}
	p.slots = append(p.slots, s)
	return s.ID, nil
}

func (p *Parameter) slot(id string) *Slot {
	for _, s := range p.slots {
		if s.ID == id {
			return s
		}
	}
	return nil
}

func (p *Parameter) lookup(id string) (*Slot, error) {
	s := p.slot(id)
	if s == nil {
		return nil, fmt.Errorf("%w: %s on %s", ErrUnknownSlot, id, p.name)
	}
	return s, nil
}

// Attach binds src to a slot. If opts.ModulatorID is empty and src has an
// ID method, that id is recorded so the binding survives serialization.
func (p *Parameter) Attach(slotID string, src Source, opts AttachOptions) error {
	s, err := p.lookup(slotID)
	if err != nil {
		return err
	}
	s.source = src
	switch {
	case opts.ModulatorID != "":
		s.ModulatorID = opts.ModulatorID
	case src != nil:
		if id, ok := src.(identified); ok {
			s.ModulatorID = id.ID()
		}
	}
	if opts.Depth != nil && finite(*opts.Depth) {
		s.Depth = *opts.Depth
	}
	if opts.Enabled != nil {
		s.Enabled = *opts.Enabled
	}
	return nil
}

// SetDepth sets a slot's depth. Any finite value is accepted, including
// negative ones; a non-finite depth leaves the slot unchanged.
func (p *Parameter) SetDepth(slotID string, depth float64) error {
	s, err := p.lookup(slotID)
	if err != nil {
		return err
	}
	if finite(depth) {
		s.Depth = depth
	}
	return nil
}

func (p *Parameter) SetEnabled(slotID string, enabled bool) error {
	s, err := p.lookup(slotID)
	if err != nil {
		return err
	}
	s.Enabled = enabled
	return nil
}

// Unbind detaches the source and modulator id from the named slots, or
// from every slot when no ids are given. The slots themselves are kept.
func (p *Parameter) Unbind(ids ...string) error {
	if len(ids) == 0 {
		for _, s := range p.slots {
			s.source, s.ModulatorID = nil, ""
		}
		return nil
	}
	var errs []error
	for _, id := range ids {
		s, err := p.lookup(id)
		if err != nil {
			errs = append(errs, err)
			continue
		}
		s.source, s.ModulatorID = nil, ""
	}
	return errors.Join(errs...)
}

// RemoveSlot deletes a slot.
func (p *Parameter) RemoveSlot(id string) error {
	for i, s := range p.slots {
		if s.ID == id {
			p.slots = slices.Delete(p.slots, i, i+1)
			return nil
		}
	}
	return fmt.Errorf("%w: %s on %s", ErrUnknownSlot, id, p.name)
}

// Slots returns copies of the slots in order.
func (p *Parameter) Slots() []Slot {
	out := make([]Slot, len(p.slots))
	for i, s := range p.slots {
		out[i] = *s
	}
	return out
}

// Unresolved lists slots that name a modulator but have no live source.
func (p *Parameter) Unresolved() []string {
	var ids []string
	for _, s := range p.slots {
		if s.ModulatorID != "" && s.source == nil {
			ids = append(ids, s.ID)
		}
	}
	return ids
}

// Resolve rebinds every slot that names a modulator. Slots whose modulator
// cannot be found lose their source and are returned.
func (p *Parameter) Resolve(r Resolver) []string {
	var missing []string
	for _, s := range p.slots {
		if s.ModulatorID == "" {
			continue
		}
		var src Source
		var ok bool
		if r != nil {
			src, ok = r(s.Kind, s.ModulatorID)
		}
		if !ok || src == nil {
			s.source = nil
			missing = append(missing, s.ID)
			continue
		}
		s.source = src
	}
	return missing
}

// Value returns the parameter value at time t. Enumerations return the
// index of the current option. Disabled and unbound slots contribute 0, as
// do non-finite contributions.
func (p *Parameter) Value(t float64) float64 {
	if p.IsEnum() {
		return float64(slices.Index(p.options, p.base.Choice()))
	}
	v := p.base.Float()
	for _, s := range p.slots {
		if !s.Enabled || s.source == nil || s.Depth == 0 {
			continue
		}
		c := s.Depth * s.source.ValueAt(t)
		if finite(c) {
			v += c
		}
	}
	return clamp(v, p.min, p.max)
}

// Render writes the value at t0, t0+dt, ... into dst. It reuses an internal
// buffer and must not be called concurrently on the same parameter.
func (p *Parameter) Render(dst []float32, t0, dt float64) {
	n := len(dst)
	if n == 0 {
		return
	}
	vek32.Zeros_Into(dst, n)
	if p.IsEnum() {
		vek32.AddNumber_Inplace(dst, float32(p.Value(t0)))
		return
	}
	vek32.AddNumber_Inplace(dst, float32(p.base.Float()))
	if cap(p.scratch) < n {
		p.scratch = make([]float32, n)
	}
	buf := p.scratch[:n]
	for _, s := range p.slots {
		if !s.Enabled || s.source == nil || s.Depth == 0 {
			continue
		}
		for i := range buf {
			c := s.Depth * s.source.ValueAt(t0+float64(i)*dt)
			if !finite(c) {
				c = 0
			}
			buf[i] = float32(c)
		}
		vek32.Add_Inplace(dst, buf)
	}
	if !math.IsInf(p.max, 1) {
		vek32.MinimumNumber_Inplace(dst, float32(p.max))
	}
	if !math.IsInf(p.min, -1) {
		vek32.MaximumNumber_Inplace(dst, float32(p.min))
	}
}

func clamp(v, lo, hi float64) float64 {
	return math.Min(hi, math.Max(lo, v))
}

func finite(v float64) bool {
	return !math.IsNaN(v) && !math.IsInf(v, 0)
}

func finiteOr(v, fallback float64) float64 {
	if finite(v) {
		return v
	}
	return fallback
}
