package unit

import "math"

// Gain scales every channel by a linear factor.
type Gain struct {
	gain *FloatControl
}

// NewGain returns a Gain at unity.
func NewGain() *Gain {
	return &Gain{gain: NewFloatControl("gain", 0, 4, 1, true)}
}

// Name returns "Gain".
func (g *Gain) Name() string { return "Gain" }

// Prepare is a no-op; Gain keeps no per-rate state.
func (g *Gain) Prepare(sampleRate float64, n int) {}

// Release is a no-op.
func (g *Gain) Release() {}

// Parameters returns the unit's single control.
func (g *Gain) Parameters() []Control { return []Control{g.gain} }

// Process scales buf in place.
func (g *Gain) Process(buf Buffer) {
	k := float32(g.gain.Value())
	if k == 1 {
		return
	}
	for _, ch := range buf {
		for i := range ch {
			ch[i] *= k
		}
	}
}

// Pan is an equal-power stereo panner. Buffers with fewer than two channels
// pass through untouched.
type Pan struct {
	pan *FloatControl
}

// NewPan returns a centred Pan.
func NewPan() *Pan {
	return &Pan{pan: NewFloatControl("pan", -1, 1, 0, true)}
}

// Name returns "Pan".
func (p *Pan) Name() string { return "Pan" }

// Prepare is a no-op.
func (p *Pan) Prepare(sampleRate float64, n int) {}

// Release is a no-op.
func (p *Pan) Release() {}

// Parameters returns the unit's single control.
func (p *Pan) Parameters() []Control { return []Control{p.pan} }

// Process weights the first two channels by the pan law.
func (p *Pan) Process(buf Buffer) {
	if len(buf) < 2 {
		return
	}
	// -1 → full left, +1 → full right, 0 → both at -3 dB
	angle := (p.pan.Value() + 1) * math.Pi / 4
	l, r := float32(math.Cos(angle)), float32(math.Sin(angle))
	for i := range buf[0] {
		buf[0][i] *= l
	}
	for i := range buf[1] {
		buf[1][i] *= r
	}
}

// Mute silences the block while its switch is on. The switch is not
// automatable.
type Mute struct {
	on *FloatControl
}

// NewMute returns a Mute with its switch off.
func NewMute() *Mute {
	return &Mute{on: NewFloatControl("on", 0, 1, 0, false)}
}

// Name returns "Mute".
func (m *Mute) Name() string { return "Mute" }

// Prepare is a no-op.
func (m *Mute) Prepare(sampleRate float64, n int) {}

// Release is a no-op.
func (m *Mute) Release() {}

// Parameters returns the unit's single control.
func (m *Mute) Parameters() []Control { return []Control{m.on} }

// Process clears buf while the switch is on.
func (m *Mute) Process(buf Buffer) {
	if m.on.Value() >= 0.5 {
		buf.Clear()
	}
}
