package fileconf

import (
	"errors"
	"fmt"
)

// Exported error categories returned by this package. These are used with
// wrapping so callers can detect error classes using errors.Is/As.
//   - ErrSchemaDrift: a key the program requires is absent from the bundled
//     defaults document; always fatal for the whole load.
//   - ErrTypeMismatch: a stored raw value cannot hold the declared type;
//     aborts only the accessor call that triggered it.
//   - ErrConversion: the value converter rejected a raw value outright.
//   - ErrBinding: no accessor could be resolved for one bound field.
//   - ErrEnsureConfigDir: failure to create parent directories for a file.
//   - ErrParse: failure to parse an existing configuration file.
//   - ErrFormat: failure to serialize a section tree to bytes.
//   - ErrWrite: failure to write the configuration file to disk.
//   - ErrNotLoaded: an operation that needs a file was called before Load.
//   - ErrPathPrefix: an invalid path prefix or composed path.
var (
	ErrSchemaDrift     = errors.New("bundled defaults out of date")
	ErrTypeMismatch    = errors.New("malformed configuration")
	ErrConversion      = errors.New("convert value")
	ErrBinding         = errors.New("bind field")
	ErrEnsureConfigDir = errors.New("ensure config dir")
	ErrParse           = errors.New("parse config file")
	ErrFormat          = errors.New("format config")
	ErrWrite           = errors.New("write to config file")
	ErrNotLoaded       = errors.New("no config file loaded")
	ErrPathPrefix      = errors.New("invalid path prefix")
)

// ErrEventHandled is a control-flow signal, not a failure. Returning it (or
// an error wrapping it) from an OnLoad or OnSave hook cleanly stops the
// remaining hook chain; the surrounding load or save still completes.
var ErrEventHandled = errors.New("event handled")

// SchemaDriftError reports that the live schema expects a key the bundled
// defaults document does not carry. Defaults ship with the program and are
// assumed to be the authoritative superset of every key the program reads,
// so this is a packaging defect rather than a user error.
type SchemaDriftError struct {
	File string // file identity of the live configuration
	Path string // absolute key path that is missing from defaults
}

func (e *SchemaDriftError) Error() string {
	return fmt.Sprintf("bundled defaults for %s lack key at %q, are they out of date?", e.File, e.Path)
}

func (e *SchemaDriftError) Is(target error) bool { return target == ErrSchemaDrift }

// TypeMismatchError reports that the raw value stored at a path cannot be
// coerced to the declared type. It aborts only the single accessor call that
// raised it; callers decide whether that is fatal.
type TypeMismatchError struct {
	File     string
	Path     string
	Expected string // declared type name
	Actual   string // raw value type name
	Value    any    // raw value, for the diagnostic
}

func (e *TypeMismatchError) Error() string {
	return fmt.Sprintf("malformed configuration: key %q in %s must be %s but got %s: %v",
		e.Path, e.File, e.Expected, e.Actual, e.Value)
}

func (e *TypeMismatchError) Is(target error) bool { return target == ErrTypeMismatch }

// ConversionError reports that the value converter rejected a raw value.
type ConversionError struct {
	Type   string // target type name
	Value  any    // raw value that could not be converted
	Reason error  // optional underlying cause
}

func (e *ConversionError) Error() string {
	if e.Reason != nil {
		return fmt.Sprintf("cannot convert %v (%T) to %s: %v", e.Value, e.Value, e.Type, e.Reason)
	}
	return fmt.Sprintf("cannot convert %v (%T) to %s", e.Value, e.Value, e.Type)
}

func (e *ConversionError) Unwrap() error { return e.Reason }

func (e *ConversionError) Is(target error) bool { return target == ErrConversion }

// BindingError reports that one field of a bound object could not be loaded
// or saved. Sibling fields are unaffected; the binder collects these and
// reports them together.
type BindingError struct {
	Field string // Go field name
	Path  string // resolved store path
	Err   error
}

func (e *BindingError) Error() string {
	return fmt.Sprintf("bind field %s at %q: %v", e.Field, e.Path, e.Err)
}

func (e *BindingError) Unwrap() error { return e.Err }

func (e *BindingError) Is(target error) bool { return target == ErrBinding }
