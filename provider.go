package fileconf

import (
	"context"
	"fmt"
	"io/fs"
	"reflect"
	"sync"

	modellib "github.com/ygrebnov/model"

	"github.com/ygrebnov/fileconf/streams"
)

// Provider manages the lifecycle of a configuration object of type T bound
// to a single document file.
//
// A Provider[T] performs the following steps exactly once (it is safe to
// call Get from multiple goroutines):
//  1. Construct a new *T using the factory set via WithDefaultFn (or a
//     zero-value fallback).
//  2. If WithModel is set, bind a model.Model[T] to the same *T and call
//     SetDefaults() to populate zero values using `default` struct tags.
//  3. Load the file through a Handle bound to *T: the document is parsed
//     into the shared section tree, bundled defaults are reconciled, and
//     the binder's load pass fills the exported fields of T.
//  4. Apply environment overrides using `env` struct tags (or field names
//     in SCREAMING_SNAKE_CASE).
//  5. If WithModel was set, validate the final object using model.Validate().
//
// Subsequent calls to Get() return the same pointer and metadata.
type Provider[T any] struct {
	mu          sync.RWMutex
	initOnce    sync.Once
	path        string
	envPrefix   string
	cfg         *T
	defaultFn   func() *T
	streams     streams.IOStreams
	handleOpts  []HandleOption
	handleInit  func(*Handle)
	handle      *Handle
	fileCreated bool
	initErr     error
	modelInit   ModelInit[T]
	model       *modellib.Model[T]
}

// Option configures a Provider at construction time. Options are composable
// and can be passed to NewProvider in any order.
type Option[T any] func(*Provider[T])

// NewProvider constructs a Provider[T] for the given file path and applies
// all given options. If no WithDefaultFn is provided, NewProvider uses a
// zero-value factory that returns a new *T with all fields zeroed.
func NewProvider[T any](path string, opts ...Option[T]) *Provider[T] {
	p := &Provider[T]{path: path}
	for _, opt := range opts {
		opt(p)
	}

	if p.defaultFn == nil {
		p.defaultFn = func() *T { var t T; return &t }
	}

	return p
}

// WithDefaultFn registers a factory that returns a new *T. The factory is
// invoked once during Get() to construct the base configuration object
// before the file and environment passes. Panics if fn is nil.
func WithDefaultFn[T any](fn func() *T) Option[T] {
	return func(p *Provider[T]) {
		if fn == nil {
			panic("fileconf: WithDefaultFn: fn cannot be nil")
		}
		p.defaultFn = fn
	}
}

// WithEnvPrefix sets the prefix used for environment overrides, e.g.
// "MYAPP". Panics if prefix is empty.
func WithEnvPrefix[T any](prefix string) Option[T] {
	return func(p *Provider[T]) {
		if prefix == "" {
			panic("fileconf: WithEnvPrefix: prefix cannot be empty")
		}
		p.envPrefix = prefix
	}
}

// WithStreams wires user-facing message streams (e.g., for "created new
// config"/"loaded from" notifications and reconciliation traces). Pass
// adapters from the companion streams package to route output to buffers,
// logs, or io.Discard.
func WithStreams[T any](s streams.IOStreams) Option[T] {
	return func(p *Provider[T]) {
		p.streams = s
	}
}

// WithBundledDefaults points the provider's handle at a defaults document
// embedded with the program; missing keys are copied from it on load.
func WithBundledDefaults[T any](fsys fs.FS, name string) Option[T] {
	return func(p *Provider[T]) {
		prev := p.handleInit
		p.handleInit = func(h *Handle) {
			if prev != nil {
				prev(h)
			}
			h.SetDefaults(fsys, name)
		}
	}
}

// WithHandleOptions forwards construction options to the underlying Handle
// (registry, codec, converter).
func WithHandleOptions[T any](opts ...HandleOption) Option[T] {
	return func(p *Provider[T]) {
		p.handleOpts = append(p.handleOpts, opts...)
	}
}

// WithHandleInit registers a hook that runs against the underlying Handle
// before the first load, for setter-style configuration such as
// SetPathPrefix, SetHeader or SetBinding. Panics if fn is nil.
func WithHandleInit[T any](fn func(*Handle)) Option[T] {
	return func(p *Provider[T]) {
		if fn == nil {
			panic("fileconf: WithHandleInit: fn cannot be nil")
		}
		prev := p.handleInit
		p.handleInit = func(h *Handle) {
			if prev != nil {
				prev(h)
			}
			fn(h)
		}
	}
}

// ModelInit is a constructor hook that binds a model.Model[T] to the
// Provider-managed *T. It allows the Provider to call SetDefaults() before
// the file and environment passes and Validate() after them. Return the
// constructed model.Model[T] or an error.
type ModelInit[T any] func(*T) (*modellib.Model[T], error)

// WithModel enables integration with github.com/ygrebnov/model. The
// provided init function is called exactly once during the first Get() to
// build a model.Model[T] bound to the Provider's *T. The Provider will
// then:
//   - call SetDefaults() before the file and environment passes, and
//   - call Validate() after all overrides are applied.
//
// Panics if init is nil.
func WithModel[T any](init ModelInit[T]) Option[T] {
	return func(p *Provider[T]) {
		if init == nil {
			panic("fileconf: WithModel: init cannot be nil")
		}
		p.modelInit = init
	}
}

// Get initializes and returns the final configuration pointer, whether the
// file was created on this run, and an error if initialization failed. Get
// is safe for concurrent use; initialization runs at most once.
func (p *Provider[T]) Get() (cfg *T, fileCreated bool, err error) {
	p.initOnce.Do(func() {
		// 1) Construct default config instance.
		p.cfg = p.defaultFn()

		// 2) Optionally construct model wrapper around the config instance
		// to apply defaults before the file and environment passes.
		if p.modelInit != nil {
			mdl, err := p.modelInit(p.cfg)
			if err != nil {
				p.initErr = err
				return
			}
			p.model = mdl

			if err := p.model.SetDefaults(); err != nil {
				p.initErr = err
				return
			}
		}

		// 3) File pass: parse, reconcile bundled defaults, bind fields.
		p.handle = New(p.cfg, p.handleOpts...)
		p.handle.SetStreams(p.streams)
		if p.handleInit != nil {
			p.handleInit(p.handle)
		}
		if err := p.handle.Load(p.path); err != nil {
			p.initErr = err
			return
		}
		p.fileCreated = p.handle.FileCreated()

		if p.streams != nil && p.streams.Out() != nil {
			if p.fileCreated {
				fmt.Fprintf(p.streams.Out(), "fileconf: created new config at %s\n", p.handle.File())
			} else {
				fmt.Fprintf(p.streams.Out(), "fileconf: loaded from %s\n", p.handle.File())
			}
		}

		// 4) Apply environment overrides.
		p.loadFromEnv(p.cfg)

		// 5) Optionally validate after the file and environment passes.
		if p.model != nil {
			if err := p.model.Validate(context.Background()); err != nil {
				p.initErr = err
				return
			}
		}
	})

	if p.initErr != nil {
		return nil, false, p.initErr
	}

	p.mu.RLock()
	defer p.mu.RUnlock()
	return p.cfg, p.fileCreated, nil
}

// Save persists the current state of the configuration object back to the
// file. Get must have succeeded first.
func (p *Provider[T]) Save() error {
	if _, _, err := p.Get(); err != nil {
		return err
	}
	return p.handle.Save()
}

// Handle returns the underlying Handle after a successful Get, for direct
// accessor use. It returns nil before initialization.
func (p *Provider[T]) Handle() *Handle {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return p.handle
}

func (p *Provider[T]) loadFromEnv(cfg *T) {
	rv := reflect.ValueOf(cfg)
	if rv.Kind() != reflect.Pointer || rv.IsNil() {
		return
	}
	applyEnv(rv.Elem(), p.envPrefix, nil)
}
