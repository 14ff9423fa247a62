package fileconf

import (
	"fmt"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/ygrebnov/fileconf/section"
)

// Codec turns raw document bytes into a section tree and back. Load and Save
// call it on the configured Handle; YAMLCodec is the default implementation.
type Codec interface {
	// Parse decodes document bytes into a section tree. Empty input yields
	// an empty section.
	Parse(data []byte) (*section.Section, error)

	// Serialize encodes a section tree to document bytes. A non-empty header
	// is emitted as a leading comment block.
	Serialize(root *section.Section, header string) ([]byte, error)
}

// YAMLCodec reads and writes YAML documents. It decodes through yaml.Node so
// mapping keys keep the order they appear in on disk, and re-serialization
// writes them back in insertion order rather than alphabetically.
type YAMLCodec struct{}

func (YAMLCodec) Parse(data []byte) (*section.Section, error) {
	root := section.New()
	if len(data) == 0 {
		return root, nil
	}
	if err := yaml.Unmarshal(data, root); err != nil {
		return nil, fmt.Errorf("%w: %w", ErrParse, err)
	}
	return root, nil
}

func (YAMLCodec) Serialize(root *section.Section, header string) ([]byte, error) {
	var b strings.Builder
	if header != "" {
		for _, line := range strings.Split(header, "\n") {
			if line == "" {
				b.WriteString("#\n")
			} else {
				b.WriteString("# " + line + "\n")
			}
		}
		b.WriteString("\n")
	}
	if root != nil && !root.IsEmpty() {
		data, err := yaml.Marshal(root)
		if err != nil {
			return nil, fmt.Errorf("%w: %w", ErrFormat, err)
		}
		b.Write(data)
	}
	return []byte(b.String()), nil
}
