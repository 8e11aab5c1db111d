package clip

import (
	"fmt"
	"log/slog"
	"strings"

	"clip-automation/internal/automation"
	"clip-automation/internal/tree"
	"clip-automation/internal/unit"
)

// Holder owns one transform unit of a clip's chain, its automation
// parameters and the tree node mirroring both. A holder whose unit could not
// be created keeps a nil unit, no parameters and a status explaining why.
type Holder struct {
	owner  Owner
	state  *tree.Node
	unit   unit.Unit
	params []*automation.Parameter
}

// newHolder wraps a live unit and serializes it into a fresh node.
func newHolder(owner Owner, u unit.Unit) *Holder {
	h := &Holder{owner: owner, state: tree.New(TypeAudioProcessor), unit: u}
	w := tree.Writer{}
	if u == nil {
		_ = w.Set(h.state, KeyPluginStatus, StatusNoUnit)
		return h
	}
	_ = w.Set(h.state, KeyName, u.Name())
	_ = w.Set(h.state, KeyIdentifier, unit.IdentifierOf(u))
	h.params = automatableParameters(u)
	for _, p := range h.params {
		_ = w.AppendChild(h.state, parameterNode(p))
	}
	return h
}

// restoreHolder re-creates the unit described by node through the owner's
// engine. Resolution failures are recorded on the node and never returned.
func restoreHolder(owner Owner, node *tree.Node) *Holder {
	h := &Holder{owner: owner, state: node}
	w := tree.Writer{}
	identifier := node.String(KeyIdentifier, "")
	if identifier == "" {
		_ = w.Set(node, KeyPluginStatus, StatusNoUnit)
		return h
	}

	eng := owner.Engine()
	if eng == nil {
		_ = w.Set(node, KeyPluginStatus, StatusEngineMissing)
		return h
	}

	u, err := eng.CreateUnit(identifier, owner.SampleRate(), owner.DefaultBufferSize())
	if err == nil && u == nil {
		err = fmt.Errorf("no unit for %q", identifier)
	}
	if err != nil {
		builtin := unit.IsBuiltin(identifier)
		status := err.Error()
		if builtin {
			status = StatusBuiltinMissing + ": " + strings.TrimPrefix(identifier, unit.BuiltinPrefix)
		}
		_ = w.Set(node, KeyPluginStatus, status)
		loggerOf(owner).Warn("processor unresolved",
			slog.String("identifier", identifier),
			slog.Bool("builtin", builtin),
			slog.String("error", err.Error()))
		return h
	}
	_ = w.Remove(node, KeyPluginStatus)

	h.unit = u
	h.params = automatableParameters(u)
	for _, p := range h.params {
		if pn := h.findParameterNode(p.Name()); pn != nil {
			loadParameter(p, pn)
		}
	}
	return h
}

func automatableParameters(u unit.Unit) []*automation.Parameter {
	var params []*automation.Parameter
	for _, c := range u.Parameters() {
		if c.Automatable() {
			params = append(params, automation.NewParameter(c))
		}
	}
	return params
}

func parameterNode(p *automation.Parameter) *tree.Node {
	w := tree.Writer{}
	n := tree.New(TypeParameter)
	_ = w.Set(n, KeyName, p.Name())
	_ = w.Set(n, KeyValue, p.Value())
	for _, k := range p.Keyframes() {
		_ = w.AppendChild(n, keyframeNode(k.Time, k.Value))
	}
	return n
}

func keyframeNode(time, value float64) *tree.Node {
	w := tree.Writer{}
	n := tree.New(TypeKeyframe)
	_ = w.Set(n, KeyTime, time)
	_ = w.Set(n, KeyValue, value)
	return n
}

// loadParameter copies the static value and curve stored in node onto p.
func loadParameter(p *automation.Parameter, node *tree.Node) {
	if node.Has(KeyValue) {
		p.SetValue(node.Float(KeyValue, p.Value()))
	}
	keys := make([]automation.Keyframe, 0, node.NumChildren())
	for _, kn := range node.Children() {
		if kn.Type() != TypeKeyframe {
			continue
		}
		keys = append(keys, automation.Keyframe{
			Time:  kn.Float(KeyTime, 0),
			Value: kn.Float(KeyValue, 0),
		})
	}
	p.SetKeyframes(keys)
}

// State returns the node mirroring this holder.
func (h *Holder) State() *tree.Node { return h.state }

// Unit returns the live unit, or nil when resolution failed.
func (h *Holder) Unit() unit.Unit { return h.unit }

// Name returns the unit's display name.
func (h *Holder) Name() string { return h.state.String(KeyName, "") }

// Identifier returns the identity string the unit is re-created from.
func (h *Holder) Identifier() string { return h.state.String(KeyIdentifier, "") }

// Status returns why the holder has no unit; empty when the unit is live.
func (h *Holder) Status() string { return h.state.String(KeyPluginStatus, "") }

// Parameters returns the automation parameters in control order.
func (h *Holder) Parameters() []*automation.Parameter {
	out := make([]*automation.Parameter, len(h.params))
	copy(out, h.params)
	return out
}

// Parameter returns the parameter with the given control name.
func (h *Holder) Parameter(name string) (*automation.Parameter, bool) {
	for _, p := range h.params {
		if p.Name() == name {
			return p, true
		}
	}
	return nil, false
}

// UpdateAutomation pushes every curve's value at position into the live unit.
func (h *Holder) UpdateAutomation(position float64) {
	for _, p := range h.params {
		p.Update(position)
	}
}

// SetKeyframe adds or moves the keyframe of param at time. The change goes
// through the tree; the runtime curve follows from the change notification.
func (h *Holder) SetKeyframe(param string, time, value float64) error {
	p, ok := h.Parameter(param)
	if !ok {
		return fmt.Errorf("%w: %s", ErrUnknownParameter, param)
	}
	w := h.writer()
	pn, err := h.parameterNodeOrCreate(w, p)
	if err != nil {
		return err
	}
	insertAt := -1
	for i, kn := range pn.Children() {
		if kn.Type() != TypeKeyframe {
			continue
		}
		kt := kn.Float(KeyTime, 0)
		if kt == time {
			return w.Set(kn, KeyValue, value)
		}
		if kt > time {
			insertAt = i
			break
		}
	}
	return w.InsertChild(pn, keyframeNode(time, value), insertAt)
}

// RemoveKeyframe deletes the keyframe of param at time.
func (h *Holder) RemoveKeyframe(param string, time float64) error {
	p, ok := h.Parameter(param)
	if !ok {
		return fmt.Errorf("%w: %s", ErrUnknownParameter, param)
	}
	pn := h.findParameterNode(p.Name())
	if pn != nil {
		for i, kn := range pn.Children() {
			if kn.Type() == TypeKeyframe && kn.Float(KeyTime, 0) == time {
				return h.writer().RemoveChild(pn, i)
			}
		}
	}
	return fmt.Errorf("%w: %s at %g", ErrKeyframeNotFound, param, time)
}

// ClearAutomation removes every keyframe of param.
func (h *Holder) ClearAutomation(param string) error {
	p, ok := h.Parameter(param)
	if !ok {
		return fmt.Errorf("%w: %s", ErrUnknownParameter, param)
	}
	pn := h.findParameterNode(p.Name())
	if pn == nil {
		return nil
	}
	w := h.writer()
	for i := pn.NumChildren() - 1; i >= 0; i-- {
		if pn.Child(i).Type() != TypeKeyframe {
			continue
		}
		if err := w.RemoveChild(pn, i); err != nil {
			return err
		}
	}
	return nil
}

// SetParameterValue sets the static value used while param has no keyframes.
func (h *Holder) SetParameterValue(param string, value float64) error {
	p, ok := h.Parameter(param)
	if !ok {
		return fmt.Errorf("%w: %s", ErrUnknownParameter, param)
	}
	w := h.writer()
	pn, err := h.parameterNodeOrCreate(w, p)
	if err != nil {
		return err
	}
	return w.Set(pn, KeyValue, value)
}

// reloadParameter refreshes the runtime parameter described by node.
func (h *Holder) reloadParameter(node *tree.Node) {
	if p, ok := h.Parameter(node.String(KeyName, "")); ok {
		loadParameter(p, node)
	}
}

// resetParameter drops the curve of a parameter whose node was removed.
func (h *Holder) resetParameter(name string) {
	if p, ok := h.Parameter(name); ok {
		p.SetKeyframes(nil)
	}
}

func (h *Holder) writer() tree.Writer {
	return tree.Writer{Undo: h.owner.UndoManager()}
}

func (h *Holder) findParameterNode(name string) *tree.Node {
	if c := h.state.ChildWithProperty(KeyName, name); c != nil && c.Type() == TypeParameter {
		return c
	}
	return nil
}

func (h *Holder) parameterNodeOrCreate(w tree.Writer, p *automation.Parameter) (*tree.Node, error) {
	if pn := h.findParameterNode(p.Name()); pn != nil {
		return pn, nil
	}
	pn := parameterNode(p)
	if err := w.AppendChild(h.state, pn); err != nil {
		return nil, err
	}
	return pn, nil
}

// release frees the unit's resources.
func (h *Holder) release() {
	if h.unit != nil {
		h.unit.Release()
	}
}
