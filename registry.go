package fileconf

import (
	"path/filepath"
	"sync"

	"github.com/ygrebnov/fileconf/section"
)

// Registry maps absolute file identities to the single shared section tree
// backing every Handle opened against that file. Sharing is deliberate:
// several handles may legitimately point at the same file, and routing them
// through one tree lets each observe the others' in-memory writes before
// anything is flushed to disk.
//
// The registry owns its sections; handles hold non-owning references. A
// section leaves the registry only when its file is deleted through
// Handle.Delete.
//
// One mutex serializes every Load and Save on every handle attached to the
// registry, not just the lookup itself, so one handle's load can never
// interleave with another handle's save on the same backing tree.
type Registry struct {
	mu       sync.Mutex
	sections map[string]*section.Section
}

// NewRegistry returns an empty registry. Handles attach to it via
// WithRegistry; handles constructed without one share a process-wide default.
func NewRegistry() *Registry {
	return &Registry{sections: make(map[string]*section.Section)}
}

var defaultRegistry = NewRegistry()

// DefaultRegistry returns the process-wide registry used by handles that were
// not given an explicit one.
func DefaultRegistry() *Registry { return defaultRegistry }

// lookupOrCreate returns the shared section for the given identity, creating
// it on first use. loadedBefore reports whether the identity was already
// known. Callers must hold r.mu.
func (r *Registry) lookupOrCreate(identity string) (sec *section.Section, loadedBefore bool) {
	sec, loadedBefore = r.sections[identity]
	if !loadedBefore {
		sec = section.New()
		r.sections[identity] = sec
	}
	return sec, loadedBefore
}

// remove drops the section for the given identity. Callers must hold r.mu.
func (r *Registry) remove(identity string) {
	delete(r.sections, identity)
}

// fileIdentity canonicalizes a path into the sharing key used by the
// registry.
func fileIdentity(path string) (string, error) {
	abs, err := filepath.Abs(path)
	if err != nil {
		return "", err
	}
	return filepath.Clean(abs), nil
}
