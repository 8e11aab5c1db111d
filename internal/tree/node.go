// Package tree provides an ordered, observable property tree used as the
// persistent mirror of editable state. All mutations are expressed as Change
// records so they can be undone, replayed and attributed to an Origin.
package tree

import (
	"sync/atomic"
)

type property struct {
	key   string
	value any
}

type subscription struct {
	id uint64
	fn func(Change)
}

// Node is a typed node with ordered properties and ordered children.
// A Node is not safe for concurrent use; it belongs to the edit context.
type Node struct {
	typ       string
	props     []property
	children  []*Node
	parent    *Node
	listeners []subscription
	nextSubID uint64
}

// New returns a detached node of the given type.
func New(typ string) *Node {
	return &Node{typ: typ}
}

// Type returns the node type name.
func (n *Node) Type() string {
	return n.typ
}

// Parent returns the parent node, or nil for a root or detached node.
func (n *Node) Parent() *Node {
	return n.parent
}

// IsAncestorOf reports whether n is a strict ancestor of other.
func (n *Node) IsAncestorOf(other *Node) bool {
	for p := other.parent; p != nil; p = p.parent {
		if p == n {
			return true
		}
	}
	return false
}

// Has reports whether the property exists.
func (n *Node) Has(key string) bool {
	return n.indexOfKey(key) >= 0
}

// Get returns the raw property value.
func (n *Node) Get(key string) (any, bool) {
	if i := n.indexOfKey(key); i >= 0 {
		return n.props[i].value, true
	}
	return nil, false
}

// Keys returns property names in insertion order.
func (n *Node) Keys() []string {
	keys := make([]string, len(n.props))
	for i, p := range n.props {
		keys[i] = p.key
	}
	return keys
}

// String returns the property as a string, or def when it is missing or not a string.
func (n *Node) String(key, def string) string {
	if v, ok := n.Get(key); ok {
		if s, ok := v.(string); ok {
			return s
		}
	}
	return def
}

// Float returns the property as a float64. Integer values are converted.
func (n *Node) Float(key string, def float64) float64 {
	v, ok := n.Get(key)
	if !ok {
		return def
	}
	switch x := v.(type) {
	case float64:
		return x
	case int64:
		return float64(x)
	case bool:
		if x {
			return 1
		}
		return 0
	}
	return def
}

// Int returns the property as an int64. Float values are truncated.
func (n *Node) Int(key string, def int64) int64 {
	v, ok := n.Get(key)
	if !ok {
		return def
	}
	switch x := v.(type) {
	case int64:
		return x
	case float64:
		return int64(x)
	case bool:
		if x {
			return 1
		}
		return 0
	}
	return def
}

// NumChildren returns the number of children.
func (n *Node) NumChildren() int {
	return len(n.children)
}

// Child returns the child at index, or nil when out of range.
func (n *Node) Child(index int) *Node {
	if index < 0 || index >= len(n.children) {
		return nil
	}
	return n.children[index]
}

// Children returns a copy of the child list.
func (n *Node) Children() []*Node {
	out := make([]*Node, len(n.children))
	copy(out, n.children)
	return out
}

// IndexOf returns the index of child, or -1.
func (n *Node) IndexOf(child *Node) int {
	for i, c := range n.children {
		if c == child {
			return i
		}
	}
	return -1
}

// ChildOfType returns the first child with the given type, or nil.
func (n *Node) ChildOfType(typ string) *Node {
	for _, c := range n.children {
		if c.typ == typ {
			return c
		}
	}
	return nil
}

// ChildWithProperty returns the first child whose property key equals value.
func (n *Node) ChildWithProperty(key string, value any) *Node {
	value = normalize(value)
	for _, c := range n.children {
		if v, ok := c.Get(key); ok && v == value {
			return c
		}
	}
	return nil
}

// Clone returns a deep copy of the node and its subtree, detached and
// without listeners.
func (n *Node) Clone() *Node {
	c := &Node{typ: n.typ}
	if len(n.props) > 0 {
		c.props = make([]property, len(n.props))
		copy(c.props, n.props)
	}
	for _, child := range n.children {
		cc := child.Clone()
		cc.parent = c
		c.children = append(c.children, cc)
	}
	return c
}

// Subscribe registers fn to receive every change applied to this node or
// any of its descendants. The returned function removes the subscription.
func (n *Node) Subscribe(fn func(Change)) (cancel func()) {
	n.nextSubID++
	id := n.nextSubID
	n.listeners = append(n.listeners, subscription{id: id, fn: fn})
	return func() {
		for i, s := range n.listeners {
			if s.id == id {
				n.listeners = append(n.listeners[:i:i], n.listeners[i+1:]...)
				return
			}
		}
	}
}

func (n *Node) indexOfKey(key string) int {
	for i, p := range n.props {
		if p.key == key {
			return i
		}
	}
	return -1
}

// notify delivers c to listeners of n and of every ancestor, innermost first.
func (n *Node) notify(c Change) {
	for t := n; t != nil; t = t.parent {
		if len(t.listeners) == 0 {
			continue
		}
		subs := make([]subscription, len(t.listeners))
		copy(subs, t.listeners)
		for _, s := range subs {
			s.fn(c)
		}
	}
}

// normalize maps accepted Go values onto the four stored kinds.
func normalize(v any) any {
	switch x := v.(type) {
	case int:
		return int64(x)
	case int32:
		return int64(x)
	case uint32:
		return int64(x)
	case float32:
		return float64(x)
	}
	return v
}

func validValue(v any) bool {
	switch v.(type) {
	case string, float64, int64, bool:
		return true
	}
	return false
}

var originCounter atomic.Uint64

// Origin attributes a change to whoever made it. External (the zero value)
// marks changes from undo, redo, loading or any foreign writer.
type Origin uint64

// External is the origin of changes nobody claims.
const External Origin = 0

// NewOrigin returns an origin tag unique within the process.
func NewOrigin() Origin {
	return Origin(originCounter.Add(1))
}
