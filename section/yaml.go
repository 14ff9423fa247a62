package section

import (
	"fmt"

	"gopkg.in/yaml.v3"
)

// UnmarshalYAML decodes a YAML mapping node into the section, preserving the
// order in which keys appear in the document. Nested mappings become nested
// sections, sequences become []any, scalars keep the native type the YAML
// parser assigns them.
func (s *Section) UnmarshalYAML(node *yaml.Node) error {
	if s.values == nil {
		s.values = make(map[string]any)
	}
	if node.Kind == yaml.DocumentNode {
		if len(node.Content) == 0 {
			return nil
		}
		node = node.Content[0]
	}
	if node.Kind != yaml.MappingNode {
		return fmt.Errorf("cannot decode %s node into a section (line %d)", nodeKind(node), node.Line)
	}
	for i := 0; i+1 < len(node.Content); i += 2 {
		var key string
		if err := node.Content[i].Decode(&key); err != nil {
			return fmt.Errorf("decode mapping key at line %d: %w", node.Content[i].Line, err)
		}
		value, err := decodeNode(node.Content[i+1])
		if err != nil {
			return err
		}
		s.put(key, value)
	}
	return nil
}

// MarshalYAML encodes the section as a YAML mapping node with keys in
// insertion order.
func (s *Section) MarshalYAML() (interface{}, error) {
	return s.encode()
}

func (s *Section) encode() (*yaml.Node, error) {
	node := &yaml.Node{Kind: yaml.MappingNode, Tag: "!!map"}
	for _, key := range s.keys {
		keyNode := &yaml.Node{}
		if err := keyNode.Encode(key); err != nil {
			return nil, fmt.Errorf("encode key %q: %w", key, err)
		}
		valueNode, err := encodeValue(s.values[key])
		if err != nil {
			return nil, fmt.Errorf("encode value at %q: %w", key, err)
		}
		node.Content = append(node.Content, keyNode, valueNode)
	}
	return node, nil
}

func decodeNode(node *yaml.Node) (any, error) {
	switch node.Kind {
	case yaml.AliasNode:
		return decodeNode(node.Alias)

	case yaml.MappingNode:
		child := New()
		if err := child.UnmarshalYAML(node); err != nil {
			return nil, err
		}
		return child, nil

	case yaml.SequenceNode:
		seq := make([]any, 0, len(node.Content))
		for _, item := range node.Content {
			value, err := decodeNode(item)
			if err != nil {
				return nil, err
			}
			seq = append(seq, value)
		}
		return seq, nil

	default:
		var value any
		if err := node.Decode(&value); err != nil {
			return nil, fmt.Errorf("decode scalar at line %d: %w", node.Line, err)
		}
		return value, nil
	}
}

func encodeValue(value any) (*yaml.Node, error) {
	switch v := value.(type) {
	case *Section:
		return v.encode()
	case []any:
		node := &yaml.Node{Kind: yaml.SequenceNode, Tag: "!!seq"}
		for _, item := range v {
			itemNode, err := encodeValue(item)
			if err != nil {
				return nil, err
			}
			node.Content = append(node.Content, itemNode)
		}
		return node, nil
	default:
		node := &yaml.Node{}
		if err := node.Encode(value); err != nil {
			return nil, err
		}
		return node, nil
	}
}

func nodeKind(node *yaml.Node) string {
	switch node.Kind {
	case yaml.ScalarNode:
		return "scalar"
	case yaml.SequenceNode:
		return "sequence"
	case yaml.MappingNode:
		return "mapping"
	case yaml.AliasNode:
		return "alias"
	case yaml.DocumentNode:
		return "document"
	}
	return "unknown"
}
