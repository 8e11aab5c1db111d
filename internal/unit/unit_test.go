package unit

import (
	"errors"
	"math"
	"testing"
)

type external struct {
	*Gain
}

func (external) Identifier() string { return "VST3-Compressor-1a2b" }

func TestIdentifierOf(t *testing.T) {
	if got := IdentifierOf(NewGain()); got != "BUILTIN: Gain" {
		t.Errorf("builtin identifier = %q", got)
	}
	if got := IdentifierOf(external{NewGain()}); got != "VST3-Compressor-1a2b" {
		t.Errorf("external identifier = %q", got)
	}
	if !IsBuiltin("BUILTIN: Pan") || IsBuiltin("VST3-Compressor-1a2b") {
		t.Error("IsBuiltin misclassifies identifiers")
	}
}

func TestFloatControl_Clamp(t *testing.T) {
	c := NewFloatControl("gain", 0, 2, 1, true)
	tests := []struct {
		in, want float64
	}{
		{0.5, 0.5},
		{-1, 0},
		{3, 2},
	}
	for _, tt := range tests {
		c.SetValue(tt.in)
		if got := c.Value(); got != tt.want {
			t.Errorf("SetValue(%v) -> %v, want %v", tt.in, got, tt.want)
		}
	}
	c.SetValue(math.NaN())
	if got := c.Value(); got != 2 {
		t.Errorf("NaN should be ignored, value = %v", got)
	}
}

func TestRegistry(t *testing.T) {
	r := NewRegistry()
	if err := RegisterBuiltins(r); err != nil {
		t.Fatalf("RegisterBuiltins: %v", err)
	}

	t.Run("create_known", func(t *testing.T) {
		u, err := r.Create("BUILTIN: Pan")
		if err != nil {
			t.Fatal(err)
		}
		if u.Name() != "Pan" {
			t.Errorf("created %q", u.Name())
		}
	})

	t.Run("create_unknown", func(t *testing.T) {
		_, err := r.Create("BUILTIN: Reverb")
		if !errors.Is(err, ErrUnknownIdentifier) {
			t.Errorf("expected ErrUnknownIdentifier, got %v", err)
		}
	})

	t.Run("duplicate", func(t *testing.T) {
		err := r.Register("BUILTIN: Gain", func() Unit { return NewGain() })
		if !errors.Is(err, ErrDuplicateIdentifier) {
			t.Errorf("expected ErrDuplicateIdentifier, got %v", err)
		}
	})

	t.Run("identifiers_sorted_and_indexed", func(t *testing.T) {
		ids := r.Identifiers()
		want := []string{"BUILTIN: Gain", "BUILTIN: Mute", "BUILTIN: Pan"}
		if len(ids) != len(want) {
			t.Fatalf("Identifiers = %v", ids)
		}
		for i := range want {
			if ids[i] != want[i] {
				t.Errorf("ids[%d] = %q, want %q", i, ids[i], want[i])
			}
		}
		if r.IdentifierAt(1) != "BUILTIN: Gain" || r.IdentifierAt(0) != "" || r.IdentifierAt(4) != "" {
			t.Error("IdentifierAt is not 1-based over sorted identifiers")
		}
	})

	t.Run("sealed", func(t *testing.T) {
		r.Seal()
		err := r.Register("BUILTIN: Other", func() Unit { return NewGain() })
		if !errors.Is(err, ErrRegistrySealed) {
			t.Errorf("expected ErrRegistrySealed, got %v", err)
		}
	})
}

func TestGain_Process(t *testing.T) {
	g := NewGain()
	g.Parameters()[0].SetValue(0.5)
	buf := Buffer{{1, -1}, {0.5, 2}}
	g.Process(buf)
	if buf[0][0] != 0.5 || buf[0][1] != -0.5 || buf[1][1] != 1 {
		t.Errorf("gain not applied: %v", buf)
	}
}

func TestPan_Process(t *testing.T) {
	p := NewPan()
	p.Parameters()[0].SetValue(-1)
	buf := Buffer{{1, 1}, {1, 1}}
	p.Process(buf)
	if math.Abs(float64(buf[0][0])-1) > 1e-6 || math.Abs(float64(buf[1][0])) > 1e-6 {
		t.Errorf("hard left pan: %v", buf)
	}

	mono := Buffer{{1}}
	p.Process(mono)
	if mono[0][0] != 1 {
		t.Error("mono buffer should pass through")
	}
}

func TestMute(t *testing.T) {
	m := NewMute()
	if m.Parameters()[0].Automatable() {
		t.Error("mute switch must not be automatable")
	}
	buf := Buffer{{1, 2}}
	m.Process(buf)
	if buf[0][0] != 1 {
		t.Error("mute off should pass through")
	}
	m.Parameters()[0].SetValue(1)
	m.Process(buf)
	if buf[0][0] != 0 || buf[0][1] != 0 {
		t.Errorf("mute on should clear, got %v", buf)
	}
}

func TestBuffer(t *testing.T) {
	b := NewBuffer(2, 4)
	if len(b) != 2 || b.Frames() != 4 {
		t.Fatalf("NewBuffer shape = %d x %d", len(b), b.Frames())
	}
	b[1][3] = 7
	b.Clear()
	if b[1][3] != 0 {
		t.Error("Clear left samples")
	}
	if (Buffer{}).Frames() != 0 {
		t.Error("empty buffer frames should be 0")
	}
}
