// Package clip binds a media clip placed on a timeline to its chain of
// transform units and mirrors both into an undo-aware property tree.
package clip

import (
	"errors"
	"fmt"
	"io"
	"log/slog"
	"math"
	"sync"
	"sync/atomic"

	"github.com/google/uuid"

	"clip-automation/internal/engine"
	"clip-automation/internal/tree"
	"clip-automation/internal/unit"
)

// Descriptor errors
var (
	// ErrUnbound is returned when a descriptor has no resolved media clip.
	ErrUnbound = errors.New("clip has no bound media")

	// ErrIndexOutOfRange is returned for a processor index outside the chain.
	ErrIndexOutOfRange = errors.New("processor index out of range")

	// ErrUnknownParameter is returned when a processor has no parameter by that name.
	ErrUnknownParameter = errors.New("unknown parameter")

	// ErrKeyframeNotFound is returned when removing a keyframe that does not exist.
	ErrKeyframeNotFound = errors.New("keyframe not found")
)

// CallbackLock serializes rendering against chain mutations.
type CallbackLock interface {
	sync.Locker
	TryLock() bool
}

// Owner is the timeline element a descriptor belongs to. It supplies the
// processing configuration and the shared infrastructure of the edit.
type Owner interface {
	SampleRate() float64
	DefaultBufferSize() int
	CallbackLock() CallbackLock
	// UndoManager may return nil, in which case edits are not undoable.
	UndoManager() tree.UndoSink
	// Engine may return nil; processors restored without one stay unresolved.
	Engine() engine.Engine
	Logger() *slog.Logger
}

// Descriptor is one clip on a timeline: its media, its timing and its chain
// of audio transform units. The tree returned by State is authoritative; the
// runtime chain follows it through change notifications.
//
// All mutating methods belong to a single edit goroutine. Render and
// TryRender may run concurrently on the playback goroutine.
type Descriptor struct {
	owner  Owner
	media  engine.MediaClip
	state  *tree.Node
	origin tree.Origin
	log    *slog.Logger

	unsubscribe func()
	processors  []*Holder

	startSamples  atomic.Int64
	lengthSamples atomic.Int64
	offsetSamples atomic.Int64
}

func newDescriptor(owner Owner, state *tree.Node) *Descriptor {
	return &Descriptor{
		owner:  owner,
		state:  state,
		origin: tree.NewOrigin(),
		log:    loggerOf(owner),
	}
}

func loggerOf(owner Owner) *slog.Logger {
	if l := owner.Logger(); l != nil {
		return l
	}
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

// New creates a descriptor for media with a fresh tree: a new id, the media
// source and empty processor containers.
func New(owner Owner, media engine.MediaClip) *Descriptor {
	d := newDescriptor(owner, tree.New(TypeClip))
	d.media = media

	w := tree.Writer{}
	_ = w.Set(d.state, KeyID, uuid.NewString())
	if media != nil && media.Source() != "" {
		_ = w.Set(d.state, KeySource, media.Source())
	}
	_ = w.AppendChild(d.state, tree.New(TypeVideoProcessors))
	_ = w.AppendChild(d.state, tree.New(TypeAudioProcessors))

	d.RefreshSampleCounts()
	d.unsubscribe = d.state.Subscribe(d.treeChanged)
	return d
}

// Restore rebuilds a descriptor from a persisted tree. The media source is
// resolved through the owner's engine and every stored processor is
// re-created; resolution failures are logged and recorded on the tree, never
// returned.
func Restore(owner Owner, state *tree.Node) *Descriptor {
	d := newDescriptor(owner, state)
	w := tree.Writer{}

	if !state.Has(KeyID) {
		_ = w.Set(state, KeyID, uuid.NewString())
	}
	if src := state.String(KeySource, ""); src != "" {
		if eng := owner.Engine(); eng != nil {
			m, err := eng.OpenClip(src)
			if err != nil {
				d.log.Warn("clip media unresolved",
					slog.String("clip_id", d.ID()),
					slog.String("source", src),
					slog.String("error", err.Error()))
			} else {
				d.media = m
			}
		}
	}

	_, _ = w.ChildOrCreate(state, TypeVideoProcessors)
	procs, _ := w.ChildOrCreate(state, TypeAudioProcessors)
	for _, n := range procs.Children() {
		d.splice(restoreHolder(owner, n), -1)
	}

	d.RefreshSampleCounts()
	d.unsubscribe = d.state.Subscribe(d.treeChanged)

	d.log.Debug("clip restored",
		slog.String("clip_id", d.ID()),
		slog.Int("processors", len(d.processors)))
	return d
}

// State returns the tree mirroring this descriptor.
func (d *Descriptor) State() *tree.Node { return d.state }

// Owner returns the timeline element this descriptor belongs to.
func (d *Descriptor) Owner() Owner { return d.owner }

// ID returns the clip's stable identifier.
func (d *Descriptor) ID() string { return d.state.String(KeyID, "") }

// Source returns the media source the clip was placed from.
func (d *Descriptor) Source() string { return d.state.String(KeySource, "") }

// MediaClip returns the bound media, or ErrUnbound when resolution failed.
func (d *Descriptor) MediaClip() (engine.MediaClip, error) {
	if d.media == nil {
		return nil, ErrUnbound
	}
	return d.media, nil
}

// Description returns the free-text label, empty by default.
func (d *Descriptor) Description() string { return d.state.String(KeyDescription, "") }

// Start returns the clip's position on the track in seconds.
func (d *Descriptor) Start() float64 { return d.state.Float(KeyStart, 0) }

// Length returns the clip's duration in seconds.
func (d *Descriptor) Length() float64 { return d.state.Float(KeyLength, 0) }

// Offset returns the media time in seconds that plays at Start.
func (d *Descriptor) Offset() float64 { return d.state.Float(KeyOffset, 0) }

// VideoLine returns the video lane index.
func (d *Descriptor) VideoLine() int { return int(d.state.Int(KeyVideoLine, 0)) }

// AudioLine returns the audio lane index.
func (d *Descriptor) AudioLine() int { return int(d.state.Int(KeyAudioLine, 0)) }

// SetDescription writes the label as one undoable edit.
func (d *Descriptor) SetDescription(s string) { d.set(KeyDescription, s) }

// SetStart moves the clip to seconds on the track.
func (d *Descriptor) SetStart(seconds float64) { d.set(KeyStart, seconds) }

// SetLength sets the clip's duration.
func (d *Descriptor) SetLength(seconds float64) { d.set(KeyLength, seconds) }

// SetOffset sets the media time that plays at Start.
func (d *Descriptor) SetOffset(seconds float64) { d.set(KeyOffset, seconds) }

// SetVideoLine moves the clip to another video lane.
func (d *Descriptor) SetVideoLine(line int) { d.set(KeyVideoLine, line) }

// SetAudioLine moves the clip to another audio lane.
func (d *Descriptor) SetAudioLine(line int) { d.set(KeyAudioLine, line) }

func (d *Descriptor) set(key string, value any) {
	if err := d.state.SetProperty(key, value, d.owner.UndoManager()); err != nil {
		d.log.Error("clip property write failed",
			slog.String("clip_id", d.ID()),
			slog.String("key", key),
			slog.String("error", err.Error()))
	}
}

// StartInSamples returns the cached start position in samples.
func (d *Descriptor) StartInSamples() int64 { return d.startSamples.Load() }

// LengthInSamples returns the cached length in samples.
func (d *Descriptor) LengthInSamples() int64 { return d.lengthSamples.Load() }

// OffsetInSamples returns the cached media offset in samples.
func (d *Descriptor) OffsetInSamples() int64 { return d.offsetSamples.Load() }

// RefreshSampleCounts recomputes the cached sample counts from the current
// timing and the owner's sample rate. Any property change on the clip node
// triggers it; owners call it after changing their sample rate.
func (d *Descriptor) RefreshSampleCounts() {
	sr := d.owner.SampleRate()
	d.startSamples.Store(toSamples(d.Start(), sr))
	d.lengthSamples.Store(toSamples(d.Length(), sr))
	d.offsetSamples.Store(toSamples(d.Offset(), sr))
}

func toSamples(seconds, sampleRate float64) int64 {
	return int64(math.Round(seconds * sampleRate))
}

// AddAudioProcessor inserts u into the chain at index, or appends when index
// is out of range. The unit is prepared with the owner's configuration, the
// insertion is recorded for undo, and the returned holder is live.
func (d *Descriptor) AddAudioProcessor(u unit.Unit, index int) (*Holder, error) {
	h := newHolder(d.owner, u)
	if u != nil {
		u.Prepare(d.owner.SampleRate(), d.owner.DefaultBufferSize())
	}

	procs := d.audioProcessorsNode()
	w := tree.Writer{Origin: d.origin, Undo: d.owner.UndoManager()}
	if err := w.InsertChild(procs, h.state, index); err != nil {
		h.release()
		return nil, fmt.Errorf("add processor: %w", err)
	}
	d.splice(h, index)

	d.log.Debug("processor added",
		slog.String("clip_id", d.ID()),
		slog.String("identifier", h.Identifier()),
		slog.Int("processors", len(d.processors)))
	return h, nil
}

// RemoveAudioProcessor removes the processor at index. The removal is made
// on the tree only; the runtime chain follows through the change listener,
// so undo and redo restore it the same way.
func (d *Descriptor) RemoveAudioProcessor(index int) error {
	procs := d.audioProcessorsNode()
	if index < 0 || index >= procs.NumChildren() {
		return fmt.Errorf("%w: %d", ErrIndexOutOfRange, index)
	}
	w := tree.Writer{Undo: d.owner.UndoManager()}
	return w.RemoveChild(procs, index)
}

// AudioProcessors returns a snapshot of the chain in processing order.
func (d *Descriptor) AudioProcessors() []*Holder {
	lock := d.owner.CallbackLock()
	lock.Lock()
	defer lock.Unlock()
	out := make([]*Holder, len(d.processors))
	copy(out, d.processors)
	return out
}

// NumAudioProcessors returns the chain length.
func (d *Descriptor) NumAudioProcessors() int {
	lock := d.owner.CallbackLock()
	lock.Lock()
	defer lock.Unlock()
	return len(d.processors)
}

// AudioProcessor returns the holder at index.
func (d *Descriptor) AudioProcessor(index int) (*Holder, error) {
	lock := d.owner.CallbackLock()
	lock.Lock()
	defer lock.Unlock()
	if index < 0 || index >= len(d.processors) {
		return nil, fmt.Errorf("%w: %d", ErrIndexOutOfRange, index)
	}
	return d.processors[index], nil
}

// Render updates every processor's automation for position, in clip-local
// seconds, and runs the chain over buf. It blocks while the chain is being
// mutated.
func (d *Descriptor) Render(position float64, buf unit.Buffer) {
	lock := d.owner.CallbackLock()
	lock.Lock()
	defer lock.Unlock()
	d.render(position, buf)
}

// TryRender is Render for a caller that must not block. It reports false and
// leaves buf untouched when the chain is being mutated.
func (d *Descriptor) TryRender(position float64, buf unit.Buffer) bool {
	lock := d.owner.CallbackLock()
	if !lock.TryLock() {
		return false
	}
	defer lock.Unlock()
	d.render(position, buf)
	return true
}

func (d *Descriptor) render(position float64, buf unit.Buffer) {
	for _, h := range d.processors {
		h.UpdateAutomation(position)
		if h.unit != nil {
			h.unit.Process(buf)
		}
	}
}

// Close stops following the tree and releases every unit in the chain.
func (d *Descriptor) Close() {
	if d.unsubscribe != nil {
		d.unsubscribe()
		d.unsubscribe = nil
	}
	lock := d.owner.CallbackLock()
	lock.Lock()
	procs := d.processors
	d.processors = nil
	lock.Unlock()
	for _, h := range procs {
		h.release()
	}
}

func (d *Descriptor) audioProcessorsNode() *tree.Node {
	n, _ := tree.Writer{}.ChildOrCreate(d.state, TypeAudioProcessors)
	return n
}

// splice inserts h into the runtime chain, appending for an out-of-range index.
func (d *Descriptor) splice(h *Holder, index int) {
	lock := d.owner.CallbackLock()
	lock.Lock()
	defer lock.Unlock()
	if index < 0 || index >= len(d.processors) {
		d.processors = append(d.processors, h)
		return
	}
	d.processors = append(d.processors, nil)
	copy(d.processors[index+1:], d.processors[index:])
	d.processors[index] = h
}

// erase removes the holder at index from the runtime chain and releases it.
func (d *Descriptor) erase(index int) {
	lock := d.owner.CallbackLock()
	lock.Lock()
	if index < 0 || index >= len(d.processors) {
		lock.Unlock()
		d.log.Warn("processor chain out of sync",
			slog.String("clip_id", d.ID()),
			slog.Int("index", index))
		return
	}
	h := d.processors[index]
	d.processors = append(d.processors[:index], d.processors[index+1:]...)
	lock.Unlock()
	h.release()
}

// holderFor finds the holder mirrored by node. It reads the chain without
// the callback lock, which is safe because only the edit goroutine writes it.
func (d *Descriptor) holderFor(node *tree.Node) *Holder {
	for _, h := range d.processors {
		if h.state == node {
			return h
		}
	}
	return nil
}

func (d *Descriptor) treeChanged(c tree.Change) {
	switch c.Kind {
	case tree.PropertyChanged, tree.PropertyRemoved:
		if c.Node == d.state {
			d.RefreshSampleCounts()
			return
		}
	case tree.ChildAdded, tree.ChildRemoved:
		if c.Node.Type() == TypeAudioProcessors && c.Node.Parent() == d.state {
			d.chainChanged(c)
			return
		}
	}
	d.automationChanged(c)
}

// chainChanged mirrors processor nodes added or removed by anyone other than
// this descriptor.
func (d *Descriptor) chainChanged(c tree.Change) {
	if c.Origin == d.origin {
		return
	}
	switch c.Kind {
	case tree.ChildAdded:
		h := restoreHolder(d.owner, c.Child)
		d.splice(h, c.Index)
		d.log.Debug("processor restored",
			slog.String("clip_id", d.ID()),
			slog.String("identifier", h.Identifier()),
			slog.Int("index", c.Index))
	case tree.ChildRemoved:
		d.erase(c.Index)
		d.log.Debug("processor removed",
			slog.String("clip_id", d.ID()),
			slog.Int("index", c.Index))
	}
}

// automationChanged reloads the runtime parameter whose subtree changed.
func (d *Descriptor) automationChanged(c tree.Change) {
	if (c.Kind == tree.ChildAdded || c.Kind == tree.ChildRemoved) &&
		c.Node.Type() == TypeAudioProcessor && c.Child != nil && c.Child.Type() == TypeParameter {
		h := d.holderFor(c.Node)
		if h == nil {
			return
		}
		if c.Kind == tree.ChildAdded {
			h.reloadParameter(c.Child)
		} else {
			h.resetParameter(c.Child.String(KeyName, ""))
		}
		return
	}
	for n := c.Node; n != nil && n != d.state; n = n.Parent() {
		if n.Type() == TypeParameter {
			if h := d.holderFor(n.Parent()); h != nil {
				h.reloadParameter(n)
			}
			return
		}
	}
}
