// Package unit defines the transform units that make up a clip's audio chain.
package unit

import (
	"math"
	"strings"
	"sync/atomic"
)

// BuiltinPrefix tags identity strings of in-process units so that loading a
// project can tell them apart from externally resolved plugins.
const BuiltinPrefix = "BUILTIN: "

// Buffer is one block of non-interleaved audio, one slice per channel.
type Buffer [][]float32

// NewBuffer allocates a zeroed buffer.
func NewBuffer(channels, frames int) Buffer {
	b := make(Buffer, channels)
	for i := range b {
		b[i] = make([]float32, frames)
	}
	return b
}

// Clear zeroes every sample without reallocating.
func (b Buffer) Clear() {
	for _, ch := range b {
		clear(ch)
	}
}

// Frames returns the number of samples per channel.
func (b Buffer) Frames() int {
	if len(b) == 0 {
		return 0
	}
	return len(b[0])
}

// Control is one parameter of a unit. SetValue must be safe to call from the
// playback goroutine while the edit goroutine reads Value.
type Control interface {
	Name() string
	Value() float64
	SetValue(v float64)
	Automatable() bool
}

// Unit is an opaque, stateful audio transform.
type Unit interface {
	Name() string
	Prepare(sampleRate float64, bufferSize int)
	Process(buf Buffer)
	Release()
	Parameters() []Control
}

// Identified is implemented by externally resolved units that carry their
// own host-specific identity string.
type Identified interface {
	Identifier() string
}

// IdentifierOf returns the identity string used to re-create u.
func IdentifierOf(u Unit) string {
	if id, ok := u.(Identified); ok {
		return id.Identifier()
	}
	return BuiltinPrefix + u.Name()
}

// IsBuiltin reports whether the identity string names an in-process unit.
func IsBuiltin(identifier string) bool {
	return strings.HasPrefix(identifier, BuiltinPrefix)
}

// FloatControl is a range-clamped control whose value is stored atomically.
type FloatControl struct {
	name        string
	min, max    float64
	automatable bool
	bits        atomic.Uint64
}

// NewFloatControl returns a control clamped to [min, max] starting at def.
func NewFloatControl(name string, min, max, def float64, automatable bool) *FloatControl {
	c := &FloatControl{name: name, min: min, max: max, automatable: automatable}
	c.SetValue(def)
	return c
}

// Name returns the control name.
func (c *FloatControl) Name() string { return c.name }

// Automatable reports whether keyframes may drive the control.
func (c *FloatControl) Automatable() bool { return c.automatable }

// Value returns the current value.
func (c *FloatControl) Value() float64 {
	return math.Float64frombits(c.bits.Load())
}

// SetValue stores v clamped to the control range. NaN is ignored.
func (c *FloatControl) SetValue(v float64) {
	if math.IsNaN(v) {
		return
	}
	if v < c.min {
		v = c.min
	} else if v > c.max {
		v = c.max
	}
	c.bits.Store(math.Float64bits(v))
}
