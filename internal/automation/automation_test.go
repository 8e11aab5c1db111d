package automation

import (
	"testing"

	"clip-automation/internal/unit"
)

func TestKeyframes_Evaluate(t *testing.T) {
	curve := Keyframes{{Time: 0, Value: 0}, {Time: 10, Value: 1}}
	tests := []struct {
		at   float64
		want float64
	}{
		{5, 0.5},
		{-1, 0},
		{20, 1},
		{0, 0},
		{10, 1},
		{2.5, 0.25},
	}
	for _, tt := range tests {
		if got := curve.Evaluate(tt.at, 99); got != tt.want {
			t.Errorf("Evaluate(%v) = %v, want %v", tt.at, got, tt.want)
		}
	}
}

func TestKeyframes_EvaluateEmptyReturnsStatic(t *testing.T) {
	if got := (Keyframes{}).Evaluate(3, 0.7); got != 0.7 {
		t.Errorf("empty curve = %v, want static 0.7", got)
	}
}

func TestKeyframes_EvaluateMultiSegment(t *testing.T) {
	curve := Keyframes{{0, 0}, {1, 10}, {3, 10}, {4, 0}}
	tests := []struct {
		at, want float64
	}{
		{0.5, 5},
		{1, 10},
		{2, 10},
		{3.5, 5},
		{3, 10},
	}
	for _, tt := range tests {
		if got := curve.Evaluate(tt.at, 0); got != tt.want {
			t.Errorf("Evaluate(%v) = %v, want %v", tt.at, got, tt.want)
		}
	}
}

func TestNormalize(t *testing.T) {
	got := Normalize([]Keyframe{{5, 1}, {1, 2}, {5, 3}, {0, 0}})
	want := Keyframes{{0, 0}, {1, 2}, {5, 3}}
	if len(got) != len(want) {
		t.Fatalf("Normalize = %v, want %v", got, want)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Errorf("Normalize[%d] = %v, want %v", i, got[i], want[i])
		}
	}
}

func TestParameter_UpdatePushesToControl(t *testing.T) {
	c := unit.NewFloatControl("gain", 0, 4, 1, true)
	p := NewParameter(c)

	p.Update(3)
	if c.Value() != 1 {
		t.Errorf("empty curve should leave control untouched, got %v", c.Value())
	}
	if got := p.Evaluate(3); got != 1 {
		t.Errorf("Evaluate without keyframes = %v, want static 1", got)
	}

	p.SetKeyframes([]Keyframe{{10, 1}, {0, 0}})
	p.Update(5)
	if c.Value() != 0.5 {
		t.Errorf("control = %v, want 0.5", c.Value())
	}
	p.Update(-1)
	if c.Value() != 0 {
		t.Errorf("control = %v, want 0", c.Value())
	}
	p.Update(20)
	if c.Value() != 1 {
		t.Errorf("control = %v, want 1", c.Value())
	}
}

func TestParameter_SetKeyframesPublishesSnapshot(t *testing.T) {
	p := NewParameter(unit.NewFloatControl("pan", -1, 1, 0, true))
	p.SetKeyframes([]Keyframe{{2, 1}, {1, -1}, {2, 0.5}})
	before := p.Keyframes()
	if len(before) != 2 || before[0].Time != 1 || before[1].Value != 0.5 {
		t.Fatalf("keyframes = %v", before)
	}

	p.SetKeyframes(nil)
	if len(p.Keyframes()) != 0 {
		t.Errorf("keyframes after clear = %v", p.Keyframes())
	}
	if len(before) != 2 {
		t.Error("a published curve must not change after replacement")
	}
}

func TestParameter_UpdateDoesNotAllocate(t *testing.T) {
	p := NewParameter(unit.NewFloatControl("gain", 0, 4, 1, true))
	p.SetKeyframes([]Keyframe{{0, 0}, {1, 2}, {2, 1}, {8, 4}})
	pos := 0.0
	allocs := testing.AllocsPerRun(1000, func() {
		p.Update(pos)
		pos += 0.01
	})
	if allocs != 0 {
		t.Errorf("Update allocated %v times per run", allocs)
	}
}
