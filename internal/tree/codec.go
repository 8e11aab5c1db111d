package tree

import (
	"errors"
	"fmt"
	"io"
	"math"
	"strconv"
	"strings"

	"gopkg.in/yaml.v3"
)

// ErrMalformed is returned by Decode for documents that are not node trees.
var ErrMalformed = errors.New("malformed tree document")

const (
	fieldType       = "type"
	fieldProperties = "properties"
	fieldChildren   = "children"
)

// Encode writes n and its subtree as a YAML document. Property order and
// value kinds survive a Decode round trip.
func Encode(w io.Writer, n *Node) error {
	enc := yaml.NewEncoder(w)
	enc.SetIndent(2)
	if err := enc.Encode(toYAML(n)); err != nil {
		return fmt.Errorf("encode tree: %w", err)
	}
	return enc.Close()
}

// Decode reads a document written by Encode.
func Decode(r io.Reader) (*Node, error) {
	var doc yaml.Node
	if err := yaml.NewDecoder(r).Decode(&doc); err != nil {
		return nil, fmt.Errorf("decode tree: %w", err)
	}
	if doc.Kind != yaml.DocumentNode || len(doc.Content) != 1 {
		return nil, ErrMalformed
	}
	return fromYAML(doc.Content[0])
}

func toYAML(n *Node) *yaml.Node {
	m := &yaml.Node{Kind: yaml.MappingNode}
	m.Content = append(m.Content, scalar("!!str", fieldType), scalar("!!str", n.typ))

	if len(n.props) > 0 {
		props := &yaml.Node{Kind: yaml.MappingNode}
		for _, k := range n.Keys() {
			v, _ := n.Get(k)
			props.Content = append(props.Content, scalar("!!str", k), valueToYAML(v))
		}
		m.Content = append(m.Content, scalar("!!str", fieldProperties), props)
	}

	if len(n.children) > 0 {
		seq := &yaml.Node{Kind: yaml.SequenceNode}
		for _, c := range n.children {
			seq.Content = append(seq.Content, toYAML(c))
		}
		m.Content = append(m.Content, scalar("!!str", fieldChildren), seq)
	}
	return m
}

func scalar(tag, value string) *yaml.Node {
	return &yaml.Node{Kind: yaml.ScalarNode, Tag: tag, Value: value}
}

func valueToYAML(v any) *yaml.Node {
	switch x := v.(type) {
	case string:
		return scalar("!!str", x)
	case bool:
		return scalar("!!bool", strconv.FormatBool(x))
	case int64:
		return scalar("!!int", strconv.FormatInt(x, 10))
	case float64:
		return scalar("!!float", formatFloat(x))
	}
	return scalar("!!null", "~")
}

// formatFloat always produces text that resolves to a YAML float.
func formatFloat(f float64) string {
	switch {
	case math.IsNaN(f):
		return ".nan"
	case math.IsInf(f, 1):
		return ".inf"
	case math.IsInf(f, -1):
		return "-.inf"
	}
	s := strconv.FormatFloat(f, 'g', -1, 64)
	if !strings.ContainsAny(s, ".eE") {
		s += ".0"
	}
	return s
}

func fromYAML(y *yaml.Node) (*Node, error) {
	if y.Kind != yaml.MappingNode {
		return nil, fmt.Errorf("%w: expected mapping at line %d", ErrMalformed, y.Line)
	}
	n := &Node{}
	for i := 0; i+1 < len(y.Content); i += 2 {
		key, val := y.Content[i].Value, y.Content[i+1]
		switch key {
		case fieldType:
			n.typ = val.Value
		case fieldProperties:
			if val.Kind != yaml.MappingNode {
				return nil, fmt.Errorf("%w: properties at line %d", ErrMalformed, val.Line)
			}
			for j := 0; j+1 < len(val.Content); j += 2 {
				v, err := valueFromYAML(val.Content[j+1])
				if err != nil {
					return nil, err
				}
				n.props = append(n.props, property{key: val.Content[j].Value, value: v})
			}
		case fieldChildren:
			if val.Kind != yaml.SequenceNode {
				return nil, fmt.Errorf("%w: children at line %d", ErrMalformed, val.Line)
			}
			for _, cy := range val.Content {
				c, err := fromYAML(cy)
				if err != nil {
					return nil, err
				}
				c.parent = n
				n.children = append(n.children, c)
			}
		}
	}
	if n.typ == "" {
		return nil, fmt.Errorf("%w: node without type at line %d", ErrMalformed, y.Line)
	}
	return n, nil
}

func valueFromYAML(y *yaml.Node) (any, error) {
	if y.Kind != yaml.ScalarNode {
		return nil, fmt.Errorf("%w: property value at line %d", ErrMalformed, y.Line)
	}
	switch y.ShortTag() {
	case "!!str":
		return y.Value, nil
	case "!!bool":
		var b bool
		if err := y.Decode(&b); err != nil {
			return nil, err
		}
		return b, nil
	case "!!int":
		var i int64
		if err := y.Decode(&i); err != nil {
			return nil, err
		}
		return i, nil
	case "!!float":
		var f float64
		if err := y.Decode(&f); err != nil {
			return nil, err
		}
		return f, nil
	}
	return nil, fmt.Errorf("%w: unsupported value %q at line %d", ErrMalformed, y.Value, y.Line)
}
