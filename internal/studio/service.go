// Package studio exposes one track for editing over HTTP. The Service
// serializes every edit so the track's tree only ever sees one writer.
package studio

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"strings"
	"sync"

	"clip-automation/internal/clip"
	"clip-automation/internal/engine"
	"clip-automation/internal/timeline"
)

var (
	// ErrInvalidRequest is returned for requests with missing or invalid fields.
	ErrInvalidRequest = errors.New("invalid request")

	// ErrUnresolved is returned when a media source or unit identity cannot be resolved.
	ErrUnresolved = errors.New("cannot resolve")
)

// Catalog lists the unit identities available for new processors.
type Catalog interface {
	Identifiers() []string
	IdentifierAt(index int) string
}

// OpenTrack loads the track saved in store, or returns a new empty track
// when the store holds nothing.
func OpenTrack(store Store, opts timeline.Options) (*timeline.Track, error) {
	doc, ok, err := store.Load()
	if err != nil {
		return nil, err
	}
	if !ok {
		return timeline.New(opts), nil
	}
	return timeline.Open(bytes.NewReader(doc), opts)
}

// Unresolved counts the processors on t whose unit could not be created.
func Unresolved(t *timeline.Track) int {
	n := 0
	for _, d := range t.Clips() {
		for _, h := range d.AudioProcessors() {
			if h.Unit() == nil {
				n++
			}
		}
	}
	return n
}

// Service applies edits to a track and persists it through a Store.
type Service struct {
	mu      sync.Mutex
	track   *timeline.Track
	engine  engine.Engine
	catalog Catalog
	store   Store
	log     *slog.Logger
}

// NewService returns a Service editing track. catalog may be nil.
func NewService(track *timeline.Track, eng engine.Engine, catalog Catalog, store Store, log *slog.Logger) *Service {
	if log == nil {
		log = slog.New(slog.NewTextHandler(io.Discard, nil))
	}
	return &Service{track: track, engine: eng, catalog: catalog, store: store, log: log}
}

// Track returns the edited track.
func (s *Service) Track() *timeline.Track { return s.track }

// ActiveClips returns the number of clips on the track.
func (s *Service) ActiveClips() int {
	return len(s.track.Clips())
}

// ListClips returns every clip in track order.
func (s *Service) ListClips() []ClipView {
	s.mu.Lock()
	defer s.mu.Unlock()
	views := make([]ClipView, 0)
	for _, d := range s.track.Clips() {
		views = append(views, newClipView(d))
	}
	return views
}

// GetClip returns the clip with id.
func (s *Service) GetClip(id string) (ClipView, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	d, err := s.track.Clip(id)
	if err != nil {
		return ClipView{}, err
	}
	return newClipView(d), nil
}

// CreateClip resolves req.Source and places it on the track.
func (s *Service) CreateClip(req CreateClipRequest) (ClipView, error) {
	if strings.TrimSpace(req.Source) == "" {
		return ClipView{}, fmt.Errorf("%w: source is required", ErrInvalidRequest)
	}
	if req.Start < 0 || req.Length < 0 || req.Offset < 0 {
		return ClipView{}, fmt.Errorf("%w: timing must not be negative", ErrInvalidRequest)
	}
	if s.engine == nil {
		return ClipView{}, fmt.Errorf("%w: %s: %s", ErrUnresolved, req.Source, clip.StatusEngineMissing)
	}
	media, err := s.engine.OpenClip(req.Source)
	if err != nil {
		return ClipView{}, fmt.Errorf("%w: %v", ErrUnresolved, err)
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	s.track.BeginTransaction("add clip")
	d, err := s.track.AddClip(media, timeline.Timing{Start: req.Start, Length: req.Length, Offset: req.Offset})
	if err != nil {
		return ClipView{}, err
	}
	if req.Description != "" {
		d.SetDescription(req.Description)
	}
	if req.VideoLine != 0 {
		d.SetVideoLine(req.VideoLine)
	}
	if req.AudioLine != 0 {
		d.SetAudioLine(req.AudioLine)
	}
	s.log.Info("clip created", slog.String("clip_id", d.ID()), slog.String("source", d.Source()))
	return newClipView(d), nil
}

// UpdateClip applies the fields present in req as one undoable edit.
func (s *Service) UpdateClip(id string, req UpdateClipRequest) (ClipView, error) {
	for _, v := range []*float64{req.Start, req.Length, req.Offset} {
		if v != nil && *v < 0 {
			return ClipView{}, fmt.Errorf("%w: timing must not be negative", ErrInvalidRequest)
		}
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	d, err := s.track.Clip(id)
	if err != nil {
		return ClipView{}, err
	}
	s.track.BeginTransaction("edit clip")
	if req.Description != nil {
		d.SetDescription(*req.Description)
	}
	if req.Start != nil {
		d.SetStart(*req.Start)
	}
	if req.Length != nil {
		d.SetLength(*req.Length)
	}
	if req.Offset != nil {
		d.SetOffset(*req.Offset)
	}
	if req.VideoLine != nil {
		d.SetVideoLine(*req.VideoLine)
	}
	if req.AudioLine != nil {
		d.SetAudioLine(*req.AudioLine)
	}
	return newClipView(d), nil
}

// DeleteClip removes the clip with id.
func (s *Service) DeleteClip(id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.track.BeginTransaction("remove clip")
	if err := s.track.RemoveClip(id); err != nil {
		return err
	}
	s.log.Info("clip removed", slog.String("clip_id", id))
	return nil
}

// AddProcessor creates the unit named by req.Identifier, or by req.Plugin
// in catalog order, and inserts it into the clip's chain.
func (s *Service) AddProcessor(id string, req AddProcessorRequest) (ProcessorView, error) {
	if req.Identifier == "" && req.Plugin > 0 && s.catalog != nil {
		req.Identifier = s.catalog.IdentifierAt(req.Plugin)
	}
	if req.Identifier == "" {
		return ProcessorView{}, fmt.Errorf("%w: identifier or plugin is required", ErrInvalidRequest)
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	d, err := s.track.Clip(id)
	if err != nil {
		return ProcessorView{}, err
	}
	if s.engine == nil {
		return ProcessorView{}, fmt.Errorf("%w: %s: %s", ErrUnresolved, req.Identifier, clip.StatusEngineMissing)
	}
	u, err := s.engine.CreateUnit(req.Identifier, s.track.SampleRate(), s.track.DefaultBufferSize())
	if err != nil {
		return ProcessorView{}, fmt.Errorf("%w: %v", ErrUnresolved, err)
	}

	index := -1
	if req.Index != nil {
		index = *req.Index
	}
	s.track.BeginTransaction("add processor")
	h, err := d.AddAudioProcessor(u, index)
	if err != nil {
		return ProcessorView{}, err
	}
	for i, c := range d.AudioProcessors() {
		if c == h {
			return newProcessorView(i, h), nil
		}
	}
	return newProcessorView(d.NumAudioProcessors()-1, h), nil
}

// RemoveProcessor removes the processor at index from the clip's chain.
func (s *Service) RemoveProcessor(id string, index int) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	d, err := s.track.Clip(id)
	if err != nil {
		return err
	}
	s.track.BeginTransaction("remove processor")
	return d.RemoveAudioProcessor(index)
}

// SetKeyframe adds or moves a keyframe on a processor parameter.
func (s *Service) SetKeyframe(id string, index int, param string, req KeyframeRequest) (ProcessorView, error) {
	return s.editProcessor(id, index, "set keyframe", func(h *clip.Holder) error {
		if req.Time < 0 {
			return fmt.Errorf("%w: keyframe time must not be negative", ErrInvalidRequest)
		}
		return h.SetKeyframe(param, req.Time, req.Value)
	})
}

// RemoveKeyframe deletes the keyframe at time.
func (s *Service) RemoveKeyframe(id string, index int, param string, time float64) (ProcessorView, error) {
	return s.editProcessor(id, index, "remove keyframe", func(h *clip.Holder) error {
		return h.RemoveKeyframe(param, time)
	})
}

// ClearAutomation removes every keyframe of a parameter.
func (s *Service) ClearAutomation(id string, index int, param string) (ProcessorView, error) {
	return s.editProcessor(id, index, "clear automation", func(h *clip.Holder) error {
		return h.ClearAutomation(param)
	})
}

// SetParameterValue sets a parameter's static value.
func (s *Service) SetParameterValue(id string, index int, param string, req ParameterValueRequest) (ProcessorView, error) {
	return s.editProcessor(id, index, "set parameter", func(h *clip.Holder) error {
		return h.SetParameterValue(param, req.Value)
	})
}

func (s *Service) editProcessor(id string, index int, name string, edit func(*clip.Holder) error) (ProcessorView, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	d, err := s.track.Clip(id)
	if err != nil {
		return ProcessorView{}, err
	}
	h, err := d.AudioProcessor(index)
	if err != nil {
		return ProcessorView{}, err
	}
	s.track.BeginTransaction(name)
	if err := edit(h); err != nil {
		return ProcessorView{}, err
	}
	return newProcessorView(index, h), nil
}

// Undo reverts the most recent edit.
func (s *Service) Undo() (HistoryView, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.track.Undo(); err != nil {
		return newHistoryView(s.track), err
	}
	return newHistoryView(s.track), nil
}

// Redo re-applies the most recently undone edit.
func (s *Service) Redo() (HistoryView, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.track.Redo(); err != nil {
		return newHistoryView(s.track), err
	}
	return newHistoryView(s.track), nil
}

// History reports what Undo and Redo would do.
func (s *Service) History() HistoryView {
	s.mu.Lock()
	defer s.mu.Unlock()
	return newHistoryView(s.track)
}

// Plugins lists the unit identities that AddProcessor accepts.
func (s *Service) Plugins() []string {
	if s.catalog == nil {
		return []string{}
	}
	return s.catalog.Identifiers()
}

// WriteProject writes the current project document to w.
func (s *Service) WriteProject(w io.Writer) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.track.Save(w)
}

// Save persists the project document to the store.
func (s *Service) Save() error {
	var buf bytes.Buffer
	if err := s.WriteProject(&buf); err != nil {
		return err
	}
	if err := s.store.Save(buf.Bytes()); err != nil {
		return err
	}
	s.log.Info("project saved", slog.Int("bytes", buf.Len()))
	return nil
}
