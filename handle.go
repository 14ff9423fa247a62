package fileconf

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
	"sync/atomic"

	"github.com/ygrebnov/fileconf/section"
	"github.com/ygrebnov/fileconf/streams"
)

// Handle states. Load and Save are serialized through the registry mutex;
// the state value only tracks re-entrancy within a single call stack (a hook
// that calls Save while a load or save is already running), so those calls
// defer or no-op instead of re-acquiring the held lock.
const (
	stateIdle int32 = iota
	stateLoading
	stateSaving
)

// Handle binds one logical configuration object to a file-backed section
// tree. The tree itself is owned by the registry and shared between every
// handle opened against the same file identity; the handle only holds a
// reference, plus an optional defaults tree used as the copy source for keys
// the file does not have yet.
//
// A handle is constructed around an optional target object whose exported
// fields are loaded from and saved to the document by the field binder, and
// whose hook methods (see the hook interfaces) are discovered by type
// assertion.
type Handle struct {
	registry  *Registry
	codec     Codec
	converter Converter
	streams   streams.IOStreams
	target    any
	binding   Binding

	file         string
	section      *section.Section
	defaults     *section.Section
	defaultsFS   fs.FS
	defaultsName string

	pathPrefix string
	header     string
	alwaysLoad bool
	created    bool
	dirty      bool
	state      atomic.Int32
}

// HandleOption configures a Handle at construction time.
type HandleOption func(*Handle)

// WithRegistry attaches the handle to an explicit registry instead of the
// process-wide default. Panics if r is nil.
func WithRegistry(r *Registry) HandleOption {
	return func(h *Handle) {
		if r == nil {
			panic("fileconf: WithRegistry: registry cannot be nil")
		}
		h.registry = r
	}
}

// WithCodec replaces the default YAML codec. Panics if c is nil.
func WithCodec(c Codec) HandleOption {
	return func(h *Handle) {
		if c == nil {
			panic("fileconf: WithCodec: codec cannot be nil")
		}
		h.codec = c
	}
}

// WithConverter replaces the default value converter. Panics if c is nil.
func WithConverter(c Converter) HandleOption {
	return func(h *Handle) {
		if c == nil {
			panic("fileconf: WithConverter: converter cannot be nil")
		}
		h.converter = c
	}
}

// New constructs a Handle around the given target object. Pass nil to use
// the handle purely through its accessor methods, without field binding.
func New(target any, opts ...HandleOption) *Handle {
	h := &Handle{
		registry:   defaultRegistry,
		codec:      YAMLCodec{},
		converter:  DefaultConverter{},
		target:     target,
		binding:    defaultBinding(),
		alwaysLoad: true,
	}
	for _, opt := range opts {
		opt(h)
	}
	return h
}

// SetStreams wires user-facing message streams for reconciliation traces and
// key-migration notices. Pass nil to silence them.
func (h *Handle) SetStreams(s streams.IOStreams) { h.streams = s }

// SetDefaults points the handle at a bundled defaults document, typically an
// embed.FS entry shipped with the program. The document is parsed on the
// next Load; missing keys in the live file are then copied from it.
func (h *Handle) SetDefaults(fsys fs.FS, name string) {
	if fsys == nil {
		panic("fileconf: SetDefaults: fsys cannot be nil")
	}
	h.defaultsFS = fsys
	h.defaultsName = name
	h.defaults = nil
}

// SetHeader sets the comment block written at the top of the file on save.
// Pass no values to remove it.
func (h *Handle) SetHeader(lines ...string) {
	h.header = strings.Join(lines, "\n")
}

// SetAlwaysLoad controls whether Load re-parses the file even when its
// shared section was already populated by an earlier Load (of this or any
// other handle). Defaults to true.
func (h *Handle) SetAlwaysLoad(always bool) { h.alwaysLoad = always }

// SetBinding replaces the field binder directives for the target object.
func (h *Handle) SetBinding(b Binding) { h.binding = b }

// SetPathPrefix sets the prefix composed in front of every relative path
// passed to the accessors, so repeated section calls like Get("player.name"),
// Get("player.health") become Get("name"), Get("health") under the "player"
// prefix. Pass the empty string to remove it. Panics when the prefix ends
// with a dot or a file-extension-looking suffix; both indicate a programming
// error, caught at assignment rather than on every resolve.
func (h *Handle) SetPathPrefix(prefix string) {
	if prefix != "" {
		if strings.HasSuffix(prefix, ".") {
			panic("fileconf: SetPathPrefix: prefix must not end with a dot: " + prefix)
		}
		for _, ext := range []string{".yml", ".yaml", ".json"} {
			if strings.HasSuffix(prefix, ext) {
				panic("fileconf: SetPathPrefix: prefix must not end with " + ext)
			}
		}
	}
	h.pathPrefix = prefix
}

// PathPrefix returns the current path prefix, empty when unset.
func (h *Handle) PathPrefix() string { return h.pathPrefix }

// buildPath composes the path prefix with a caller-supplied relative path.
// An empty relative path resolves to the prefix itself. One trailing dot is
// stripped; a path still ending in a dot afterwards means the prefix itself
// carries stray dots, which is a configuration error.
func (h *Handle) buildPath(path string) (string, error) {
	composed := path
	if h.pathPrefix != "" {
		if path == "" {
			composed = h.pathPrefix
		} else {
			composed = h.pathPrefix + section.PathSeparator + path
		}
	}
	composed = strings.TrimSuffix(composed, ".")
	if strings.HasSuffix(composed, ".") {
		return "", fmt.Errorf("%w: path %q must not end with '.' after prefix %q", ErrPathPrefix, path, h.pathPrefix)
	}
	return composed, nil
}

// ------------------------------------------------------------------------
// Defaults reconciliation
// ------------------------------------------------------------------------

// copyDefault copies the value at the given absolute path from the defaults
// tree into the live tree when the live tree does not have it, and marks the
// handle dirty so the file is rewritten at the end of the load. A key absent
// from the defaults as well is a SchemaDriftError.
func (h *Handle) copyDefault(path string) error {
	if h.defaults == nil || h.section.IsStored(path) {
		return nil
	}
	value := h.defaults.Retrieve(path)
	if value == nil {
		return &SchemaDriftError{File: h.FileName(), Path: path}
	}

	h.trace("updating %s at %q -> %v", h.FileName(), path, flatten(value))
	h.section.Store(path, section.CloneValue(value))
	h.dirty = true
	return nil
}

// reconcileMapChildren walks one level of the defaults map at the given
// absolute path and copies each child key individually, so a user who
// customized some of the entries keeps theirs and still receives the ones an
// upgrade introduced.
func (h *Handle) reconcileMapChildren(path string) error {
	if h.defaults == nil {
		return nil
	}
	child := h.defaults.Child(path)
	if child == nil {
		if h.section.IsStored(path) {
			return nil
		}
		return &SchemaDriftError{File: h.FileName(), Path: path}
	}
	for _, key := range child.Keys(false) {
		if err := h.copyDefault(path + section.PathSeparator + key); err != nil {
			return err
		}
	}
	return nil
}

// ------------------------------------------------------------------------
// Load / save lifecycle
// ------------------------------------------------------------------------

// Load opens the file at the given path: it looks up or creates the shared
// section tree for the file identity, parses the on-disk document into it on
// first open (or on every open when SetAlwaysLoad is on), runs the field
// binder's load pass and the load hooks, and finally rewrites the file when
// defaults reconciliation left unsaved changes.
//
// Local per-field binding failures are collected and returned joined; they
// never abort the rest of the load. A SchemaDriftError aborts the whole call.
func (h *Handle) Load(path string) error {
	identity, err := fileIdentity(path)
	if err != nil {
		return fmt.Errorf("resolve %s: %w", path, err)
	}
	if h.state.Load() == stateLoading {
		return fmt.Errorf("load %s: configuration is already being loaded", identity)
	}

	h.registry.mu.Lock()
	defer h.registry.mu.Unlock()

	return h.loadLocked(identity)
}

// Reload re-runs Load against the previously opened file identity, dropping
// unsaved in-memory changes of this handle.
func (h *Handle) Reload() error {
	if h.file == "" {
		return fmt.Errorf("%w: cannot reload", ErrNotLoaded)
	}
	if h.state.Load() == stateLoading {
		return fmt.Errorf("load %s: configuration is already being loaded", h.file)
	}

	h.registry.mu.Lock()
	defer h.registry.mu.Unlock()

	return h.loadLocked(h.file)
}

func (h *Handle) loadLocked(identity string) error {
	h.state.Store(stateLoading)
	defer h.state.Store(stateIdle)

	if h.defaults == nil && h.defaultsFS != nil {
		data, err := fs.ReadFile(h.defaultsFS, h.defaultsName)
		if err != nil {
			return fmt.Errorf("read bundled defaults %s: %w", h.defaultsName, err)
		}
		defaults, err := h.codec.Parse(data)
		if err != nil {
			return fmt.Errorf("bundled defaults %s: %w", h.defaultsName, err)
		}
		h.defaults = defaults
	}

	sec, loadedBefore := h.registry.lookupOrCreate(identity)
	h.section = sec
	h.file = identity
	h.created = false

	if !loadedBefore || h.alwaysLoad {
		data, err := os.ReadFile(identity)
		switch {
		case errors.Is(err, os.ErrNotExist):
			h.created = true
		case err != nil:
			return fmt.Errorf("read %s: %w", identity, err)
		default:
			parsed, perr := h.codec.Parse(data)
			if perr != nil {
				return fmt.Errorf("%s: %w", identity, perr)
			}
			replaceContents(sec, parsed)
		}
	}

	if h.created {
		// The file is materialized by the save at the end of this load. The
		// target's current field values seed the fresh document first, so
		// factory defaults survive the load pass instead of being zeroed as
		// absent keys.
		h.dirty = true
		if hook, ok := h.target.(FileCreateHook); ok {
			hook.OnFileCreate()
		}
		if err := h.seedFields(); err != nil {
			return err
		}
	}
	if hook, ok := h.target.(PreLoadHook); ok {
		hook.OnPreLoad()
	}

	bindErr := h.loadFields()
	if bindErr != nil && errors.Is(bindErr, ErrSchemaDrift) {
		return bindErr
	}

	handled := false
	if hook, ok := h.target.(LoadHook); ok {
		if err := hook.OnLoad(); err != nil {
			if !errors.Is(err, ErrEventHandled) {
				return err
			}
			handled = true
		}
	}
	if !handled {
		if hook, ok := h.target.(LoadFinishHook); ok {
			hook.OnLoadFinish()
		}
	}

	if h.dirty || h.saveAfterLoad() {
		// Leave the loading state before saving, so the save pass does not
		// see stale re-entrancy state and defer itself.
		h.state.Store(stateIdle)
		if err := h.saveLocked(); err != nil {
			return err
		}
		h.dirty = false
	}

	return bindErr
}

func (h *Handle) saveAfterLoad() bool {
	p, ok := h.target.(SaveAfterLoad)
	return ok && p.SaveAfterLoad()
}

// Save runs the field binder's save pass and the save hooks, then serializes
// the shared section tree and writes it to the file.
//
// A Save issued while a save is already running on this handle returns
// immediately; a Save issued while a load is running marks the handle dirty
// and defers the write to the enclosing Load.
func (h *Handle) Save() error {
	if h.file == "" {
		return fmt.Errorf("%w: cannot save", ErrNotLoaded)
	}
	switch h.state.Load() {
	case stateSaving:
		return nil
	case stateLoading:
		h.dirty = true
		return nil
	}

	h.registry.mu.Lock()
	defer h.registry.mu.Unlock()

	return h.saveLocked()
}

func (h *Handle) saveLocked() error {
	if h.state.Load() == stateSaving {
		return nil
	}

	if hook, ok := h.target.(PreSaveHook); ok {
		hook.OnPreSave()
	}
	if p, ok := h.target.(SavePredicate); ok && !p.CanSave() {
		if hook, ok := h.target.(SaveFinishHook); ok {
			hook.OnSaveFinish()
		}
		return nil
	}

	h.state.Store(stateSaving)
	err := h.saveFields()
	if err == nil {
		if hook, ok := h.target.(SaveHook); ok {
			if herr := hook.OnSave(); herr != nil && !errors.Is(herr, ErrEventHandled) {
				err = herr
			}
		}
	}
	h.state.Store(stateIdle)
	if err != nil {
		return err
	}

	if err := EnsurePath(h.file); err != nil {
		return errors.Join(ErrEnsureConfigDir, err)
	}
	data, err := h.codec.Serialize(h.section, h.header)
	if err != nil {
		return fmt.Errorf("%s: %w", h.file, err)
	}
	if err := writeFileAtomic(h.file, data); err != nil {
		return err
	}
	h.dirty = false

	if hook, ok := h.target.(SaveFinishHook); ok {
		hook.OnSaveFinish()
	}
	return nil
}

// Delete removes the file from disk and drops its shared section from the
// registry. Subsequent loads of the same identity start from scratch.
func (h *Handle) Delete() error {
	if h.file == "" {
		return fmt.Errorf("%w: cannot delete", ErrNotLoaded)
	}

	h.registry.mu.Lock()
	defer h.registry.mu.Unlock()

	if err := os.Remove(h.file); err != nil && !errors.Is(err, os.ErrNotExist) {
		return fmt.Errorf("delete %s: %w", h.file, err)
	}
	h.registry.remove(h.file)
	return nil
}

// ------------------------------------------------------------------------
// State accessors
// ------------------------------------------------------------------------

// Dirty reports whether the handle carries unsaved in-memory changes.
func (h *Handle) Dirty() bool { return h.dirty }

// FileCreated reports whether the last Load found no file on disk and
// created it.
func (h *Handle) FileCreated() bool { return h.created }

// File returns the absolute identity of the loaded file, empty before Load.
func (h *Handle) File() string { return h.file }

// FileName returns the base name of the loaded file, or "null" before Load.
func (h *Handle) FileName() string {
	if h.file == "" {
		return "null"
	}
	return filepath.Base(h.file)
}

// CleanFileName returns the file name without its extension, or empty before
// Load.
func (h *Handle) CleanFileName() string {
	if h.file == "" {
		return ""
	}
	name := filepath.Base(h.file)
	return strings.TrimSuffix(name, filepath.Ext(name))
}

// Keys returns the keys of the backing section. The path prefix is not
// applied here: these are the raw tree keys.
func (h *Handle) Keys(deep bool) []string {
	if h.section == nil {
		return nil
	}
	return h.section.Keys(deep)
}

// IsEmpty reports whether the backing section holds no keys.
func (h *Handle) IsEmpty() bool {
	return h.section == nil || h.section.IsEmpty()
}

// Clear removes every key from the backing section.
func (h *Handle) Clear() {
	if h.section != nil {
		h.section.Clear()
	}
}

func (h *Handle) trace(format string, args ...any) {
	if h.streams != nil && h.streams.Out() != nil {
		fmt.Fprintf(h.streams.Out(), "fileconf: "+format+"\n", args...)
	}
}

// replaceContents swaps the keys of dst for those of src while keeping the
// dst pointer, which other handles share through the registry.
func replaceContents(dst, src *section.Section) {
	dst.Clear()
	for _, key := range src.Keys(false) {
		dst.Store(key, src.Retrieve(key))
	}
}

// flatten renders a value on one line for trace messages.
func flatten(value any) string {
	return strings.ReplaceAll(fmt.Sprint(value), "\n", ", ")
}
