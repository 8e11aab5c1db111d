package automation

import (
	"sync/atomic"

	"clip-automation/internal/unit"
)

// Parameter binds a keyframe curve to one automatable control of a live unit.
//
// The curve is published as an immutable snapshot, so Update may run on the
// playback goroutine while the edit goroutine replaces keyframes.
type Parameter struct {
	control unit.Control
	keys    atomic.Pointer[Keyframes]
}

// NewParameter returns a parameter with an empty curve.
func NewParameter(c unit.Control) *Parameter {
	p := &Parameter{control: c}
	p.keys.Store(&Keyframes{})
	return p
}

// Name returns the bound control's name.
func (p *Parameter) Name() string { return p.control.Name() }

// Value returns the control's current value.
func (p *Parameter) Value() float64 { return p.control.Value() }

// SetValue sets the control's static value.
func (p *Parameter) SetValue(v float64) { p.control.SetValue(v) }

// Keyframes returns the current curve. The result must not be modified.
func (p *Parameter) Keyframes() Keyframes {
	return *p.keys.Load()
}

// SetKeyframes replaces the whole curve.
func (p *Parameter) SetKeyframes(ks []Keyframe) {
	n := Normalize(ks)
	p.keys.Store(&n)
}

// Evaluate returns the automated value at t, or the static control value
// when there are no keyframes.
func (p *Parameter) Evaluate(t float64) float64 {
	k := *p.keys.Load()
	if len(k) == 0 {
		return p.control.Value()
	}
	return k.Evaluate(t, 0)
}

// Update pushes the value at t into the live control. It does not allocate
// and leaves the control alone when the curve is empty.
func (p *Parameter) Update(t float64) {
	k := *p.keys.Load()
	if len(k) == 0 {
		return
	}
	p.control.SetValue(k.Evaluate(t, 0))
}
