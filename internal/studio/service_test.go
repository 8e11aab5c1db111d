package studio

import (
	"bytes"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"clip-automation/internal/clip"
	"clip-automation/internal/engine"
	"clip-automation/internal/timeline"
	"clip-automation/internal/tree"
	"clip-automation/internal/unit"
)

func newTestEngine(t *testing.T) *engine.Default {
	t.Helper()
	reg := unit.NewRegistry()
	if err := unit.RegisterBuiltins(reg); err != nil {
		t.Fatal(err)
	}
	reg.Seal()
	return engine.New(reg, nil)
}

func mediaFile(t *testing.T, name string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	if err := os.WriteFile(path, []byte("RIFF"), 0o600); err != nil {
		t.Fatal(err)
	}
	return path
}

func newTestService(t *testing.T) (*Service, *InMemoryStore) {
	t.Helper()
	eng := newTestEngine(t)
	track := timeline.New(timeline.Options{SampleRate: 48000, Engine: eng})
	t.Cleanup(track.Close)
	store := NewInMemoryStore()
	return NewService(track, eng, eng.Registry(), store, nil), store
}

func TestService_CreateClip(t *testing.T) {
	svc, _ := newTestService(t)

	v, err := svc.CreateClip(CreateClipRequest{Source: mediaFile(t, "a.wav"), Start: 1, Length: 2, Description: "intro", AudioLine: 2})
	if err != nil {
		t.Fatalf("CreateClip: %v", err)
	}
	if v.ID == "" || !v.Bound || v.StartSamples != 48000 || v.Description != "intro" || v.AudioLine != 2 {
		t.Errorf("view = %+v", v)
	}
	if svc.ActiveClips() != 1 {
		t.Errorf("ActiveClips = %d", svc.ActiveClips())
	}

	// One undo reverts the whole creation.
	if _, err := svc.Undo(); err != nil {
		t.Fatal(err)
	}
	if svc.ActiveClips() != 0 {
		t.Errorf("ActiveClips after undo = %d", svc.ActiveClips())
	}
}

func TestService_CreateClip_invalid(t *testing.T) {
	svc, _ := newTestService(t)

	if _, err := svc.CreateClip(CreateClipRequest{}); !errors.Is(err, ErrInvalidRequest) {
		t.Errorf("expected ErrInvalidRequest, got %v", err)
	}
	if _, err := svc.CreateClip(CreateClipRequest{Source: "/nowhere/x.wav"}); !errors.Is(err, ErrUnresolved) {
		t.Errorf("expected ErrUnresolved, got %v", err)
	}
	if _, err := svc.CreateClip(CreateClipRequest{Source: mediaFile(t, "a.wav"), Start: -1}); !errors.Is(err, ErrInvalidRequest) {
		t.Errorf("expected ErrInvalidRequest for negative start, got %v", err)
	}
}

func TestService_UpdateClip(t *testing.T) {
	svc, _ := newTestService(t)
	v, _ := svc.CreateClip(CreateClipRequest{Source: mediaFile(t, "a.wav"), Length: 1})

	start, desc := 0.5, "chorus"
	got, err := svc.UpdateClip(v.ID, UpdateClipRequest{Start: &start, Description: &desc})
	if err != nil {
		t.Fatal(err)
	}
	if got.StartSamples != 24000 || got.Description != "chorus" || got.LengthSamples != 48000 {
		t.Errorf("updated view = %+v", got)
	}

	if _, err := svc.UpdateClip("missing", UpdateClipRequest{}); !errors.Is(err, timeline.ErrClipNotFound) {
		t.Errorf("expected ErrClipNotFound, got %v", err)
	}
}

func TestService_Processors(t *testing.T) {
	svc, _ := newTestService(t)
	v, _ := svc.CreateClip(CreateClipRequest{Source: mediaFile(t, "a.wav"), Length: 4})

	p, err := svc.AddProcessor(v.ID, AddProcessorRequest{Identifier: "BUILTIN: Gain"})
	if err != nil {
		t.Fatal(err)
	}
	if p.Index != 0 || !p.Resolved || len(p.Parameters) != 1 {
		t.Errorf("processor view = %+v", p)
	}
	zero := 0
	p, err = svc.AddProcessor(v.ID, AddProcessorRequest{Identifier: "BUILTIN: Pan", Index: &zero})
	if err != nil {
		t.Fatal(err)
	}
	if p.Index != 0 || p.Name != "Pan" {
		t.Errorf("insert at 0 = %+v", p)
	}

	if _, err := svc.AddProcessor(v.ID, AddProcessorRequest{Identifier: "VST3-Unknown"}); !errors.Is(err, ErrUnresolved) {
		t.Errorf("expected ErrUnresolved, got %v", err)
	}

	kv, err := svc.SetKeyframe(v.ID, 1, "gain", KeyframeRequest{Time: 1, Value: 2})
	if err != nil {
		t.Fatal(err)
	}
	if len(kv.Parameters[0].Keyframes) != 1 {
		t.Errorf("keyframes = %+v", kv.Parameters[0].Keyframes)
	}
	if _, err := svc.SetKeyframe(v.ID, 1, "drive", KeyframeRequest{Time: 1}); !errors.Is(err, clip.ErrUnknownParameter) {
		t.Errorf("expected ErrUnknownParameter, got %v", err)
	}
	if _, err := svc.SetKeyframe(v.ID, 7, "gain", KeyframeRequest{Time: 1}); !errors.Is(err, clip.ErrIndexOutOfRange) {
		t.Errorf("expected ErrIndexOutOfRange, got %v", err)
	}

	if err := svc.RemoveProcessor(v.ID, 0); err != nil {
		t.Fatal(err)
	}
	got, _ := svc.GetClip(v.ID)
	if len(got.Processors) != 1 || got.Processors[0].Name != "Gain" {
		t.Errorf("processors after remove = %+v", got.Processors)
	}

	h, err := svc.Undo()
	if err != nil {
		t.Fatal(err)
	}
	if !h.CanRedo {
		t.Error("expected redo to be available")
	}
	got, _ = svc.GetClip(v.ID)
	if len(got.Processors) != 2 || got.Processors[0].Name != "Pan" {
		t.Errorf("processors after undo = %+v", got.Processors)
	}
}

func TestService_AddProcessorByPlugin(t *testing.T) {
	svc, _ := newTestService(t)
	v, _ := svc.CreateClip(CreateClipRequest{Source: mediaFile(t, "a.wav"), Length: 1})

	// GET /plugins lists Gain, Mute, Pan.
	p, err := svc.AddProcessor(v.ID, AddProcessorRequest{Plugin: 3})
	if err != nil {
		t.Fatal(err)
	}
	if p.Identifier != "BUILTIN: Pan" {
		t.Errorf("plugin 3 = %q, want BUILTIN: Pan", p.Identifier)
	}
	if _, err := svc.AddProcessor(v.ID, AddProcessorRequest{Plugin: 9}); !errors.Is(err, ErrInvalidRequest) {
		t.Errorf("expected ErrInvalidRequest for an unknown plugin number, got %v", err)
	}
}

func TestService_UndoNothing(t *testing.T) {
	svc, _ := newTestService(t)
	if _, err := svc.Undo(); !errors.Is(err, tree.ErrNothingToUndo) {
		t.Errorf("expected ErrNothingToUndo, got %v", err)
	}
}

func TestService_SaveAndReopen(t *testing.T) {
	svc, store := newTestService(t)
	v, _ := svc.CreateClip(CreateClipRequest{Source: mediaFile(t, "a.wav"), Length: 4})
	_, _ = svc.AddProcessor(v.ID, AddProcessorRequest{Identifier: "BUILTIN: Gain"})
	_, _ = svc.SetKeyframe(v.ID, 0, "gain", KeyframeRequest{Time: 0, Value: 0})
	_, _ = svc.SetKeyframe(v.ID, 0, "gain", KeyframeRequest{Time: 2, Value: 1})

	if err := svc.Save(); err != nil {
		t.Fatal(err)
	}

	track, err := OpenTrack(store, timeline.Options{Engine: newTestEngine(t)})
	if err != nil {
		t.Fatal(err)
	}
	defer track.Close()
	if Unresolved(track) != 0 {
		t.Errorf("Unresolved = %d", Unresolved(track))
	}
	d, err := track.Clip(v.ID)
	if err != nil {
		t.Fatal(err)
	}
	h, _ := d.AudioProcessor(0)
	p, _ := h.Parameter("gain")
	if got := p.Evaluate(1); got != 0.5 {
		t.Errorf("restored curve at 1 s = %v, want 0.5", got)
	}
}

func TestOpenTrack_emptyStore(t *testing.T) {
	track, err := OpenTrack(NewInMemoryStore(), timeline.Options{SampleRate: 44100})
	if err != nil {
		t.Fatal(err)
	}
	defer track.Close()
	if len(track.Clips()) != 0 || track.SampleRate() != 44100 {
		t.Errorf("empty store should yield a fresh track")
	}
}

func TestUnresolved_countsMissingUnits(t *testing.T) {
	doc := `type: Track
properties:
  sampleRate: 48000.0
children:
  - type: Clips
    children:
      - type: Clip
        properties:
          id: c1
        children:
          - type: AudioProcessors
            children:
              - type: AudioProcessor
                properties:
                  identifier: "BUILTIN: Gain"
              - type: AudioProcessor
                properties:
                  identifier: VST3-Missing
`
	store := NewInMemoryStore()
	_ = store.Save([]byte(doc))
	track, err := OpenTrack(store, timeline.Options{Engine: newTestEngine(t)})
	if err != nil {
		t.Fatal(err)
	}
	defer track.Close()
	if n := Unresolved(track); n != 1 {
		t.Errorf("Unresolved = %d, want 1", n)
	}

	var buf bytes.Buffer
	_ = track.Save(&buf)
	if !strings.Contains(buf.String(), "plugin not known") {
		t.Errorf("saved document should carry the resolution status:\n%s", buf.String())
	}
}
