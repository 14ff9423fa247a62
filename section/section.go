// Package section implements an ordered, hierarchical key-value tree that
// mirrors a parsed configuration document. Keys within a section keep their
// insertion order so a document survives a load/save cycle without its keys
// being shuffled. Values are one of: a scalar (string, bool, numeric, nil),
// an ordered sequence ([]any), or a nested *Section.
//
// Paths are dot-delimited: "a.b.c" addresses the value under key "c" of the
// section under key "b" of the section under key "a". The package performs
// no type coercion; it is a pure tree store.
package section

import (
	"fmt"
	"strings"
)

// PathSeparator joins nested keys into a single addressable path.
const PathSeparator = "."

// Section is a single mapping level of the tree. The zero value is not
// usable; construct instances with New.
type Section struct {
	keys   []string
	values map[string]any
}

// New returns an empty section.
func New() *Section {
	return &Section{values: make(map[string]any)}
}

// Store sets the value at the given dot-delimited path, creating intermediate
// sections as needed. Storing nil removes the key instead of storing a nil
// value. Existing non-section values along the path are replaced by sections.
func (s *Section) Store(path string, value any) {
	parent, last := s.traverse(path, value != nil)

	if parent == nil {
		return
	}
	if value == nil {
		parent.remove(last)
		return
	}
	parent.put(last, value)
}

// Retrieve returns the value at the given path, or nil when the path is not
// set or any intermediate key is not a section.
func (s *Section) Retrieve(path string) any {
	parent, last := s.traverse(path, false)
	if parent == nil {
		return nil
	}
	return parent.values[last]
}

// IsStored reports whether a non-nil value exists at the given path.
func (s *Section) IsStored(path string) bool {
	return s.Retrieve(path) != nil
}

// Child returns the nested section at the given path, or nil when the path
// is absent or holds a non-section value.
func (s *Section) Child(path string) *Section {
	child, _ := s.Retrieve(path).(*Section)
	return child
}

// Keys returns the immediate keys of this section in insertion order. When
// deep is true it returns every transitively nested dotted key instead,
// including the keys of nested sections themselves.
func (s *Section) Keys(deep bool) []string {
	if !deep {
		out := make([]string, len(s.keys))
		copy(out, s.keys)
		return out
	}
	var out []string
	s.collectKeys("", &out)
	return out
}

func (s *Section) collectKeys(prefix string, out *[]string) {
	for _, k := range s.keys {
		path := k
		if prefix != "" {
			path = prefix + PathSeparator + k
		}
		*out = append(*out, path)
		if child, ok := s.values[k].(*Section); ok {
			child.collectKeys(path, out)
		}
	}
}

// Clear removes all keys from this section.
func (s *Section) Clear() {
	s.keys = nil
	s.values = make(map[string]any)
}

// Len returns the number of immediate keys.
func (s *Section) Len() int {
	return len(s.keys)
}

// IsEmpty reports whether this section holds no keys.
func (s *Section) IsEmpty() bool {
	return len(s.keys) == 0
}

// Clone returns a deep copy of the section. Nested sections and sequences
// are copied; scalar values are shared.
func (s *Section) Clone() *Section {
	out := New()
	for _, k := range s.keys {
		out.put(k, CloneValue(s.values[k]))
	}
	return out
}

// CloneValue deep-copies a tree value: sections and sequences are cloned
// recursively, scalars are returned as-is.
func CloneValue(value any) any {
	switch v := value.(type) {
	case *Section:
		return v.Clone()
	case []any:
		out := make([]any, len(v))
		for i, item := range v {
			out[i] = CloneValue(item)
		}
		return out
	default:
		return value
	}
}

// String renders the section on one line, mainly for diagnostics.
func (s *Section) String() string {
	var b strings.Builder
	b.WriteString("{")
	for i, k := range s.keys {
		if i > 0 {
			b.WriteString(", ")
		}
		b.WriteString(k)
		b.WriteString(": ")
		fmt.Fprintf(&b, "%v", s.values[k])
	}
	b.WriteString("}")
	return b.String()
}

// traverse walks to the parent section of the last path segment. When create
// is true, missing or non-section intermediate values are replaced with new
// sections; otherwise traversal stops and nil is returned.
func (s *Section) traverse(path string, create bool) (parent *Section, last string) {
	segments := strings.Split(path, PathSeparator)
	current := s

	for _, seg := range segments[:len(segments)-1] {
		next, ok := current.values[seg].(*Section)
		if !ok {
			if !create {
				return nil, ""
			}
			next = New()
			current.put(seg, next)
		}
		current = next
	}
	return current, segments[len(segments)-1]
}

func (s *Section) put(key string, value any) {
	if _, exists := s.values[key]; !exists {
		s.keys = append(s.keys, key)
	}
	s.values[key] = value
}

func (s *Section) remove(key string) {
	if _, exists := s.values[key]; !exists {
		return
	}
	delete(s.values, key)
	for i, k := range s.keys {
		if k == key {
			s.keys = append(s.keys[:i], s.keys[i+1:]...)
			break
		}
	}
}
