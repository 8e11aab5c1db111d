package studio

import (
	"clip-automation/internal/clip"
	"clip-automation/internal/timeline"
)

// CreateClipRequest is the body of POST /clips.
type CreateClipRequest struct {
	Source      string  `json:"source"`
	Description string  `json:"description"`
	Start       float64 `json:"start"`
	Length      float64 `json:"length"`
	Offset      float64 `json:"offset"`
	VideoLine   int     `json:"videoLine"`
	AudioLine   int     `json:"audioLine"`
}

// UpdateClipRequest is the body of PATCH /clips/{clip_id}. Absent fields are
// left unchanged.
type UpdateClipRequest struct {
	Description *string  `json:"description"`
	Start       *float64 `json:"start"`
	Length      *float64 `json:"length"`
	Offset      *float64 `json:"offset"`
	VideoLine   *int     `json:"videoLine"`
	AudioLine   *int     `json:"audioLine"`
}

// AddProcessorRequest is the body of POST /clips/{clip_id}/processors.
// Plugin is a 1-based position in GET /plugins and is used when Identifier
// is empty. A nil Index appends.
type AddProcessorRequest struct {
	Identifier string `json:"identifier"`
	Plugin     int    `json:"plugin,omitempty"`
	Index      *int   `json:"index"`
}

// KeyframeRequest is the body of PUT .../keyframes.
type KeyframeRequest struct {
	Time  float64 `json:"time"`
	Value float64 `json:"value"`
}

// ParameterValueRequest is the body of PUT .../parameters/{name}.
type ParameterValueRequest struct {
	Value float64 `json:"value"`
}

// SeekRequest is the body of POST /transport/seek.
type SeekRequest struct {
	Seconds float64 `json:"seconds"`
}

// ClipView is the JSON representation of a clip descriptor.
type ClipView struct {
	ID            string          `json:"id"`
	Source        string          `json:"source"`
	Description   string          `json:"description"`
	Start         float64         `json:"start"`
	Length        float64         `json:"length"`
	Offset        float64         `json:"offset"`
	StartSamples  int64           `json:"startSamples"`
	LengthSamples int64           `json:"lengthSamples"`
	OffsetSamples int64           `json:"offsetSamples"`
	VideoLine     int             `json:"videoLine"`
	AudioLine     int             `json:"audioLine"`
	Bound         bool            `json:"bound"`
	Processors    []ProcessorView `json:"processors"`
}

// ProcessorView is the JSON representation of a transform unit holder.
type ProcessorView struct {
	Index      int             `json:"index"`
	Name       string          `json:"name"`
	Identifier string          `json:"identifier"`
	Status     string          `json:"status,omitempty"`
	Resolved   bool            `json:"resolved"`
	Parameters []ParameterView `json:"parameters"`
}

// ParameterView is the JSON representation of an automation parameter.
type ParameterView struct {
	Name      string         `json:"name"`
	Value     float64        `json:"value"`
	Keyframes []KeyframeView `json:"keyframes"`
}

// KeyframeView is one point of a parameter curve.
type KeyframeView struct {
	Time  float64 `json:"time"`
	Value float64 `json:"value"`
}

// HistoryView reports the undo state after an edit.
type HistoryView struct {
	CanUndo  bool   `json:"canUndo"`
	CanRedo  bool   `json:"canRedo"`
	UndoName string `json:"undoName,omitempty"`
}

func newClipView(d *clip.Descriptor) ClipView {
	_, err := d.MediaClip()
	v := ClipView{
		ID:            d.ID(),
		Source:        d.Source(),
		Description:   d.Description(),
		Start:         d.Start(),
		Length:        d.Length(),
		Offset:        d.Offset(),
		StartSamples:  d.StartInSamples(),
		LengthSamples: d.LengthInSamples(),
		OffsetSamples: d.OffsetInSamples(),
		VideoLine:     d.VideoLine(),
		AudioLine:     d.AudioLine(),
		Bound:         err == nil,
		Processors:    []ProcessorView{},
	}
	for i, h := range d.AudioProcessors() {
		v.Processors = append(v.Processors, newProcessorView(i, h))
	}
	return v
}

func newProcessorView(index int, h *clip.Holder) ProcessorView {
	v := ProcessorView{
		Index:      index,
		Name:       h.Name(),
		Identifier: h.Identifier(),
		Status:     h.Status(),
		Resolved:   h.Unit() != nil,
		Parameters: []ParameterView{},
	}
	for _, p := range h.Parameters() {
		pv := ParameterView{Name: p.Name(), Value: p.Value(), Keyframes: []KeyframeView{}}
		for _, k := range p.Keyframes() {
			pv.Keyframes = append(pv.Keyframes, KeyframeView{Time: k.Time, Value: k.Value})
		}
		v.Parameters = append(v.Parameters, pv)
	}
	return v
}

func newHistoryView(t *timeline.Track) HistoryView {
	return HistoryView{CanUndo: t.CanUndo(), CanRedo: t.CanRedo(), UndoName: t.UndoName()}
}
