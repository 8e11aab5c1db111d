package tree

import (
	"errors"
	"testing"
)

func TestNode_PropertyDefaultsAndConversions(t *testing.T) {
	n := New("Clip")
	w := Writer{}

	if got := n.String("description", ""); got != "" {
		t.Errorf("missing string: got %q", got)
	}
	if got := n.Float("start", 0); got != 0 {
		t.Errorf("missing float: got %v", got)
	}

	_ = w.Set(n, "start", 1.5)
	_ = w.Set(n, "videoLine", 3)
	_ = w.Set(n, "muted", true)

	if got := n.Float("start", 0); got != 1.5 {
		t.Errorf("Float(start) = %v, want 1.5", got)
	}
	if got := n.Int("start", 0); got != 1 {
		t.Errorf("Int(start) = %v, want 1 (truncated)", got)
	}
	if got := n.Float("videoLine", 0); got != 3 {
		t.Errorf("Float(videoLine) = %v, want 3", got)
	}
	if v, _ := n.Get("videoLine"); v != int64(3) {
		t.Errorf("int should be normalized to int64, got %T", v)
	}
	if got := n.Float("muted", 0); got != 1 {
		t.Errorf("Float(muted) = %v, want 1", got)
	}
	if got := n.String("start", "fallback"); got != "fallback" {
		t.Errorf("String on float property should return default, got %q", got)
	}
}

func TestNode_SetRejectsUnsupportedValues(t *testing.T) {
	n := New("Clip")
	err := Writer{}.Set(n, "bad", []int{1})
	if !errors.Is(err, ErrInvalidValue) {
		t.Errorf("expected ErrInvalidValue, got %v", err)
	}
	if n.Has("bad") {
		t.Error("invalid value should not be stored")
	}
}

func TestNode_KeysKeepInsertionOrder(t *testing.T) {
	n := New("Clip")
	w := Writer{}
	for _, k := range []string{"source", "start", "length", "offset"} {
		_ = w.Set(n, k, 0.0)
	}
	_ = w.Set(n, "source", "x.wav")
	keys := n.Keys()
	want := []string{"source", "start", "length", "offset"}
	for i := range want {
		if keys[i] != want[i] {
			t.Fatalf("Keys() = %v, want %v", keys, want)
		}
	}
}

func TestNode_InsertChild(t *testing.T) {
	parent := New("AudioProcessors")
	w := Writer{}
	a, b, c := New("A"), New("B"), New("C")

	t.Run("append_on_negative_index", func(t *testing.T) {
		_ = w.InsertChild(parent, a, -1)
		_ = w.InsertChild(parent, b, 99)
		if parent.NumChildren() != 2 || parent.Child(0) != a || parent.Child(1) != b {
			t.Fatalf("unexpected children %v", parent.Children())
		}
	})

	t.Run("insert_at_front", func(t *testing.T) {
		_ = w.InsertChild(parent, c, 0)
		if parent.Child(0) != c || parent.Child(1) != a || parent.Child(2) != b {
			t.Fatalf("c should be first, got %v", parent.Children())
		}
		if c.Parent() != parent {
			t.Error("parent not set")
		}
	})

	t.Run("reject_attached_node", func(t *testing.T) {
		err := w.InsertChild(New("Other"), a, 0)
		if !errors.Is(err, ErrHasParent) {
			t.Errorf("expected ErrHasParent, got %v", err)
		}
	})

	t.Run("reject_cycle", func(t *testing.T) {
		root := New("Root")
		_ = w.AppendChild(root, New("Leaf"))
		leaf := root.Child(0)
		if err := w.AppendChild(leaf, root); !errors.Is(err, ErrCycle) {
			t.Errorf("expected ErrCycle, got %v", err)
		}
	})
}

func TestNode_RemoveChild(t *testing.T) {
	parent := New("P")
	w := Writer{}
	a := New("A")
	_ = w.AppendChild(parent, a)

	if err := w.RemoveChild(parent, 3); !errors.Is(err, ErrIndexOutOfRange) {
		t.Errorf("expected ErrIndexOutOfRange, got %v", err)
	}
	if err := w.RemoveChild(parent, 0); err != nil {
		t.Fatalf("RemoveChild: %v", err)
	}
	if parent.NumChildren() != 0 || a.Parent() != nil {
		t.Error("child should be detached")
	}
}

func TestNode_ListenersBubbleWithOrigin(t *testing.T) {
	root := New("Clip")
	procs := New("AudioProcessors")
	_ = Writer{}.AppendChild(root, procs)

	var got []Change
	cancel := root.Subscribe(func(c Change) { got = append(got, c) })

	mine := NewOrigin()
	_ = Writer{Origin: mine}.AppendChild(procs, New("AudioProcessor"))
	_ = Writer{}.Set(root, "start", 2.0)

	if len(got) != 2 {
		t.Fatalf("expected 2 notifications, got %d", len(got))
	}
	if got[0].Kind != ChildAdded || got[0].Node != procs || got[0].Origin != mine || got[0].Index != 0 {
		t.Errorf("unexpected child change %+v", got[0])
	}
	if got[1].Kind != PropertyChanged || got[1].Node != root || got[1].Origin != External {
		t.Errorf("unexpected property change %+v", got[1])
	}

	cancel()
	_ = Writer{}.Set(root, "start", 3.0)
	if len(got) != 2 {
		t.Error("cancelled listener still notified")
	}
}

func TestNode_SetSameValueDoesNotNotify(t *testing.T) {
	n := New("Clip")
	_ = Writer{}.Set(n, "start", 1.0)
	calls := 0
	n.Subscribe(func(Change) { calls++ })
	_ = Writer{}.Set(n, "start", 1.0)
	if calls != 0 {
		t.Errorf("expected no notification for unchanged value, got %d", calls)
	}
}

func TestNode_Clone(t *testing.T) {
	root := New("Clip")
	w := Writer{}
	_ = w.Set(root, "source", "a.wav")
	child := New("AudioProcessors")
	_ = w.AppendChild(root, child)
	_ = w.Set(child, "x", 1.0)
	root.Subscribe(func(Change) { t.Error("clone must not carry listeners") })

	c := root.Clone()
	if c == root || c.Child(0) == child {
		t.Fatal("clone shares nodes with original")
	}
	if c.String("source", "") != "a.wav" || c.Child(0).Float("x", 0) != 1 {
		t.Error("clone lost properties")
	}
	if c.Child(0).Parent() != c {
		t.Error("clone parent links wrong")
	}
	_ = w.Set(c, "source", "b.wav")
}

func TestNode_ChildWithProperty(t *testing.T) {
	parent := New("P")
	w := Writer{}
	for _, name := range []string{"gain", "pan"} {
		c := New("Parameter")
		_ = w.Set(c, "name", name)
		_ = w.AppendChild(parent, c)
	}
	if c := parent.ChildWithProperty("name", "pan"); c == nil || parent.IndexOf(c) != 1 {
		t.Errorf("ChildWithProperty(pan) = %v", c)
	}
	if c := parent.ChildWithProperty("name", "missing"); c != nil {
		t.Error("expected nil for missing property value")
	}
}
