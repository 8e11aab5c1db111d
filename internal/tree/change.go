package tree

import (
	"errors"
	"fmt"
)

// Mutation errors
var (
	// ErrIndexOutOfRange is returned when a child index does not exist.
	ErrIndexOutOfRange = errors.New("child index out of range")

	// ErrHasParent is returned when inserting a node that is already attached.
	ErrHasParent = errors.New("node already has a parent")

	// ErrCycle is returned when inserting a node below itself.
	ErrCycle = errors.New("node cannot be its own descendant")

	// ErrInvalidValue is returned for property values outside the supported kinds.
	ErrInvalidValue = errors.New("unsupported property value")

	// ErrNilNode is returned when a change targets no node.
	ErrNilNode = errors.New("change has no target node")
)

// ChangeKind enumerates the mutations a tree supports.
type ChangeKind int

const (
	PropertyChanged ChangeKind = iota
	PropertyRemoved
	ChildAdded
	ChildRemoved
)

// String returns the kind name used in logs.
func (k ChangeKind) String() string {
	switch k {
	case PropertyChanged:
		return "property-changed"
	case PropertyRemoved:
		return "property-removed"
	case ChildAdded:
		return "child-added"
	case ChildRemoved:
		return "child-removed"
	}
	return fmt.Sprintf("ChangeKind(%d)", int(k))
}

// Change is a single tree mutation. For property changes Node is the node
// that owns the property; for child changes Node is the parent.
type Change struct {
	Kind   ChangeKind
	Node   *Node
	Key    string
	Value  any
	Child  *Node
	Index  int
	Origin Origin
}

// Apply performs c, notifies listeners and returns the change that reverts it.
// For ChildAdded the returned inverse carries the index the child actually
// landed at; out-of-range or negative insertion indexes append.
func Apply(c Change) (Change, error) {
	if c.Node == nil {
		return Change{}, ErrNilNode
	}
	n := c.Node
	switch c.Kind {
	case PropertyChanged:
		v := normalize(c.Value)
		if !validValue(v) {
			return Change{}, fmt.Errorf("%w: %T", ErrInvalidValue, c.Value)
		}
		inverse := Change{Kind: PropertyRemoved, Node: n, Key: c.Key, Origin: c.Origin}
		if i := n.indexOfKey(c.Key); i >= 0 {
			old := n.props[i].value
			if old == v {
				return Change{Kind: PropertyChanged, Node: n, Key: c.Key, Value: old, Origin: c.Origin}, nil
			}
			inverse = Change{Kind: PropertyChanged, Node: n, Key: c.Key, Value: old, Origin: c.Origin}
			n.props[i].value = v
		} else {
			n.props = append(n.props, property{key: c.Key, value: v})
		}
		c.Value = v
		n.notify(c)
		return inverse, nil

	case PropertyRemoved:
		i := n.indexOfKey(c.Key)
		if i < 0 {
			return Change{Kind: PropertyRemoved, Node: n, Key: c.Key, Origin: c.Origin}, nil
		}
		old := n.props[i].value
		n.props = append(n.props[:i], n.props[i+1:]...)
		n.notify(c)
		return Change{Kind: PropertyChanged, Node: n, Key: c.Key, Value: old, Origin: c.Origin}, nil

	case ChildAdded:
		child := c.Child
		if child == nil {
			return Change{}, ErrNilNode
		}
		if child.parent != nil {
			return Change{}, ErrHasParent
		}
		if child == n || child.IsAncestorOf(n) {
			return Change{}, ErrCycle
		}
		idx := c.Index
		if idx < 0 || idx > len(n.children) {
			idx = len(n.children)
		}
		n.children = append(n.children, nil)
		copy(n.children[idx+1:], n.children[idx:])
		n.children[idx] = child
		child.parent = n
		c.Index = idx
		n.notify(c)
		return Change{Kind: ChildRemoved, Node: n, Index: idx, Child: child, Origin: c.Origin}, nil

	case ChildRemoved:
		idx := c.Index
		if idx < 0 || idx >= len(n.children) {
			return Change{}, fmt.Errorf("%w: %d of %d", ErrIndexOutOfRange, idx, len(n.children))
		}
		child := n.children[idx]
		n.children = append(n.children[:idx], n.children[idx+1:]...)
		child.parent = nil
		c.Child = child
		n.notify(c)
		return Change{Kind: ChildAdded, Node: n, Index: idx, Child: child, Origin: c.Origin}, nil
	}
	return Change{}, fmt.Errorf("unknown change kind %v", c.Kind)
}

// UndoSink accepts changes as part of an undoable transaction.
type UndoSink interface {
	Perform(c Change) error
}

// Writer stamps every change with Origin and routes it through Undo when set.
// A zero Writer makes external, non-undoable changes.
type Writer struct {
	Origin Origin
	Undo   UndoSink
}

func (w Writer) apply(c Change) error {
	c.Origin = w.Origin
	if w.Undo != nil {
		return w.Undo.Perform(c)
	}
	_, err := Apply(c)
	return err
}

// Set writes a property.
func (w Writer) Set(n *Node, key string, value any) error {
	return w.apply(Change{Kind: PropertyChanged, Node: n, Key: key, Value: value})
}

// Remove deletes a property; removing a missing property is a no-op.
func (w Writer) Remove(n *Node, key string) error {
	return w.apply(Change{Kind: PropertyRemoved, Node: n, Key: key})
}

// InsertChild attaches child to parent at index, appending when index is
// negative or past the end.
func (w Writer) InsertChild(parent, child *Node, index int) error {
	return w.apply(Change{Kind: ChildAdded, Node: parent, Child: child, Index: index})
}

// AppendChild attaches child as the last child of parent.
func (w Writer) AppendChild(parent, child *Node) error {
	return w.InsertChild(parent, child, -1)
}

// RemoveChild detaches the child at index.
func (w Writer) RemoveChild(parent *Node, index int) error {
	return w.apply(Change{Kind: ChildRemoved, Node: parent, Index: index})
}

// ChildOrCreate returns the first child of the given type, creating and
// appending one when missing.
func (w Writer) ChildOrCreate(parent *Node, typ string) (*Node, error) {
	if c := parent.ChildOfType(typ); c != nil {
		return c, nil
	}
	c := New(typ)
	if err := w.AppendChild(parent, c); err != nil {
		return nil, err
	}
	return c, nil
}

// SetProperty is shorthand for an external write through undo.
func (n *Node) SetProperty(key string, value any, undo UndoSink) error {
	return Writer{Undo: undo}.Set(n, key, value)
}
