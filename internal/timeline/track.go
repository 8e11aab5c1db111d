// Package timeline holds the clips placed on a track and supplies them with
// the processing configuration, callback lock, undo history and engine they
// share.
package timeline

import (
	"errors"
	"fmt"
	"io"
	"log/slog"
	"math"
	"sync"
	"sync/atomic"

	"clip-automation/internal/clip"
	"clip-automation/internal/engine"
	"clip-automation/internal/tree"
	"clip-automation/internal/unit"
)

// Node types and keys of the track layout.
const (
	TypeTrack = "Track"
	TypeClips = "Clips"

	KeySampleRate = "sampleRate"
)

const (
	DefaultSampleRate = 48000
	DefaultBufferSize = 512
)

var (
	// ErrClipNotFound is returned when no clip has the requested id.
	ErrClipNotFound = errors.New("clip not found")

	// ErrInvalidSampleRate is returned for a non-positive sample rate.
	ErrInvalidSampleRate = errors.New("sample rate must be positive")

	// ErrNotTrack is returned when a loaded document is not a track.
	ErrNotTrack = errors.New("document is not a track")
)

// Options configures a Track. Zero values fall back to the defaults.
type Options struct {
	SampleRate float64
	BufferSize int
	UndoLimit  int
	Engine     engine.Engine
	Logger     *slog.Logger
}

// Timing places a clip on the timeline, in seconds.
type Timing struct {
	Start  float64
	Length float64
	Offset float64
}

// Track owns a list of clip descriptors mirrored in its own tree.
//
// Edits (AddClip, RemoveClip, Undo, Redo, Save, SetSampleRate and every
// descriptor mutation) belong to one edit goroutine. Render may run
// concurrently from the playback goroutine.
type Track struct {
	sampleRate atomic.Uint64
	bufferSize int
	lock       sync.Mutex
	undo       *tree.UndoManager
	eng        engine.Engine
	log        *slog.Logger

	state       *tree.Node
	clipsNode   *tree.Node
	origin      tree.Origin
	unsubscribe func()

	// clips mirrors the Clips children; replaced wholesale on every change.
	clips atomic.Pointer[[]*clip.Descriptor]
}

// New returns an empty track.
func New(opts Options) *Track {
	state := tree.New(TypeTrack)
	rate := opts.SampleRate
	if rate <= 0 {
		rate = DefaultSampleRate
	}
	_ = tree.Writer{}.Set(state, KeySampleRate, rate)
	return newTrack(state, opts)
}

// Open loads a track saved with Save. Clips and processors that cannot be
// resolved are kept with their status recorded; they never fail the load.
func Open(r io.Reader, opts Options) (*Track, error) {
	state, err := tree.Decode(r)
	if err != nil {
		return nil, fmt.Errorf("open track: %w", err)
	}
	if state.Type() != TypeTrack {
		return nil, fmt.Errorf("%w: %q", ErrNotTrack, state.Type())
	}
	if state.Float(KeySampleRate, 0) <= 0 {
		rate := opts.SampleRate
		if rate <= 0 {
			rate = DefaultSampleRate
		}
		_ = tree.Writer{}.Set(state, KeySampleRate, rate)
	}
	return newTrack(state, opts), nil
}

func newTrack(state *tree.Node, opts Options) *Track {
	t := &Track{
		bufferSize: opts.BufferSize,
		undo:       tree.NewUndoManager(opts.UndoLimit),
		eng:        opts.Engine,
		log:        opts.Logger,
		state:      state,
		origin:     tree.NewOrigin(),
	}
	if t.bufferSize <= 0 {
		t.bufferSize = DefaultBufferSize
	}
	if t.log == nil {
		t.log = slog.New(slog.NewTextHandler(io.Discard, nil))
	}
	t.sampleRate.Store(math.Float64bits(state.Float(KeySampleRate, DefaultSampleRate)))
	t.clipsNode, _ = tree.Writer{}.ChildOrCreate(state, TypeClips)

	clips := make([]*clip.Descriptor, 0, t.clipsNode.NumChildren())
	for _, n := range t.clipsNode.Children() {
		clips = append(clips, clip.Restore(t, n))
	}
	t.clips.Store(&clips)

	t.unsubscribe = state.Subscribe(t.treeChanged)
	return t
}

// SampleRate returns the processing rate in Hz.
func (t *Track) SampleRate() float64 { return math.Float64frombits(t.sampleRate.Load()) }

// DefaultBufferSize returns the block size units are prepared with.
func (t *Track) DefaultBufferSize() int { return t.bufferSize }

// CallbackLock returns the lock shared by chain edits and rendering.
func (t *Track) CallbackLock() clip.CallbackLock { return &t.lock }

// UndoManager returns the track's undo history.
func (t *Track) UndoManager() tree.UndoSink { return t.undo }

// Engine returns the engine clips resolve through, or nil.
func (t *Track) Engine() engine.Engine { return t.eng }

// Logger returns the track logger.
func (t *Track) Logger() *slog.Logger { return t.log }

// State returns the track tree.
func (t *Track) State() *tree.Node { return t.state }

// SetSampleRate changes the processing rate and refreshes every clip's
// cached sample counts.
func (t *Track) SetSampleRate(rate float64) error {
	if rate <= 0 || math.IsNaN(rate) || math.IsInf(rate, 0) {
		return fmt.Errorf("%w: %v", ErrInvalidSampleRate, rate)
	}
	return tree.Writer{}.Set(t.state, KeySampleRate, rate)
}

// AddClip places media on the track and returns its descriptor. The
// insertion is undoable.
func (t *Track) AddClip(media engine.MediaClip, timing Timing) (*clip.Descriptor, error) {
	d := clip.New(t, media)
	w := tree.Writer{}
	_ = w.Set(d.State(), clip.KeyStart, timing.Start)
	_ = w.Set(d.State(), clip.KeyLength, timing.Length)
	_ = w.Set(d.State(), clip.KeyOffset, timing.Offset)

	w = tree.Writer{Origin: t.origin, Undo: t.undo}
	if err := w.AppendChild(t.clipsNode, d.State()); err != nil {
		d.Close()
		return nil, fmt.Errorf("add clip: %w", err)
	}
	t.insert(d, -1)

	t.log.Debug("clip added",
		slog.String("clip_id", d.ID()),
		slog.String("source", d.Source()))
	return d, nil
}

// RemoveClip removes the clip with id. The descriptor is closed when the
// tree change arrives, so undo brings it back the same way.
func (t *Track) RemoveClip(id string) error {
	idx := t.indexOf(id)
	if idx < 0 {
		return fmt.Errorf("%w: %s", ErrClipNotFound, id)
	}
	return tree.Writer{Undo: t.undo}.RemoveChild(t.clipsNode, idx)
}

// Clip returns the descriptor with id.
func (t *Track) Clip(id string) (*clip.Descriptor, error) {
	for _, d := range *t.clips.Load() {
		if d.ID() == id {
			return d, nil
		}
	}
	return nil, fmt.Errorf("%w: %s", ErrClipNotFound, id)
}

// Clips returns the descriptors in track order.
func (t *Track) Clips() []*clip.Descriptor {
	cur := *t.clips.Load()
	out := make([]*clip.Descriptor, len(cur))
	copy(out, cur)
	return out
}

// BeginTransaction names the next group of undoable edits.
func (t *Track) BeginTransaction(name string) { t.undo.BeginTransaction(name) }

// CanUndo reports whether there is a transaction to undo.
func (t *Track) CanUndo() bool { return t.undo.CanUndo() }

// CanRedo reports whether there is a transaction to redo.
func (t *Track) CanRedo() bool { return t.undo.CanRedo() }

// UndoName returns the name of the transaction Undo would revert.
func (t *Track) UndoName() string { return t.undo.UndoName() }

// Undo reverts the most recent transaction.
func (t *Track) Undo() error {
	name := t.undo.UndoName()
	if err := t.undo.Undo(); err != nil {
		return err
	}
	t.log.Debug("undo", slog.String("transaction", name))
	return nil
}

// Redo re-applies the most recently undone transaction.
func (t *Track) Redo() error {
	if err := t.undo.Redo(); err != nil {
		return err
	}
	t.log.Debug("redo", slog.String("transaction", t.undo.UndoName()))
	return nil
}

// Render drives every clip whose span overlaps the block starting at
// position, a track position in samples. Each active clip processes buf at
// the clip-local time of the first block sample inside its span. Clips whose
// chain is being edited are skipped and counted.
func (t *Track) Render(position int64, buf unit.Buffer) (rendered, skipped int) {
	rate := t.SampleRate()
	end := position + int64(max(buf.Frames(), 1))
	for _, d := range *t.clips.Load() {
		start := d.StartInSamples()
		if start >= end || start+d.LengthInSamples() <= position {
			continue
		}
		local := float64(max(position, start)-start+d.OffsetInSamples()) / rate
		if d.TryRender(local, buf) {
			rendered++
		} else {
			skipped++
		}
	}
	return rendered, skipped
}

// Save writes the track tree as YAML.
func (t *Track) Save(w io.Writer) error {
	if err := tree.Encode(w, t.state); err != nil {
		return fmt.Errorf("save track: %w", err)
	}
	return nil
}

// Close detaches from the tree and releases every clip.
func (t *Track) Close() {
	if t.unsubscribe != nil {
		t.unsubscribe()
		t.unsubscribe = nil
	}
	empty := []*clip.Descriptor{}
	for _, d := range *t.clips.Swap(&empty) {
		d.Close()
	}
}

func (t *Track) indexOf(id string) int {
	n := t.clipsNode.ChildWithProperty(clip.KeyID, id)
	if n == nil {
		return -1
	}
	return t.clipsNode.IndexOf(n)
}

func (t *Track) treeChanged(c tree.Change) {
	switch {
	case c.Node == t.state && c.Key == KeySampleRate:
		t.applySampleRate()
	case c.Node == t.clipsNode && c.Origin != t.origin:
		switch c.Kind {
		case tree.ChildAdded:
			d := clip.Restore(t, c.Child)
			t.insert(d, c.Index)
			t.log.Debug("clip restored", slog.String("clip_id", d.ID()))
		case tree.ChildRemoved:
			if d := t.remove(c.Child); d != nil {
				d.Close()
				t.log.Debug("clip removed", slog.String("clip_id", d.ID()))
			}
		}
	}
}

func (t *Track) applySampleRate() {
	rate := t.state.Float(KeySampleRate, DefaultSampleRate)
	t.sampleRate.Store(math.Float64bits(rate))
	for _, d := range *t.clips.Load() {
		d.RefreshSampleCounts()
	}
	t.log.Info("sample rate changed", slog.Float64("sample_rate", rate))
}

func (t *Track) insert(d *clip.Descriptor, index int) {
	cur := *t.clips.Load()
	next := make([]*clip.Descriptor, 0, len(cur)+1)
	if index < 0 || index >= len(cur) {
		next = append(append(next, cur...), d)
	} else {
		next = append(next, cur[:index]...)
		next = append(next, d)
		next = append(next, cur[index:]...)
	}
	t.clips.Store(&next)
}

func (t *Track) remove(state *tree.Node) *clip.Descriptor {
	cur := *t.clips.Load()
	for i, d := range cur {
		if d.State() != state {
			continue
		}
		next := make([]*clip.Descriptor, 0, len(cur)-1)
		next = append(next, cur[:i]...)
		next = append(next, cur[i+1:]...)
		t.clips.Store(&next)
		return d
	}
	return nil
}
