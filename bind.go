package fileconf

import (
	"errors"
	"reflect"
	"time"

	"github.com/google/uuid"
)

// Binding holds the directives the field binder honors when it maps the
// target object's exported fields onto document paths. The zero value is not
// meaningful; start from DefaultBinding.
type Binding struct {
	// Disabled excludes all of the target's own fields from binding. Fields
	// carrying their own conf tag still bind.
	Disabled bool

	// Deep recurses into embedded struct fields using the same selection
	// procedure. Embedded types from this package are never walked.
	Deep bool

	// Naming converts a field identifier into its document key. Defaults to
	// lower_snake_case.
	Naming NamingConvention

	// LoadNils zeroes a field whose key is absent during the load pass
	// instead of leaving its current value. Defaults to true.
	LoadNils bool

	// SaveNils writes nil-valued fields (nil pointers, maps, slices) during
	// the save pass, removing their keys. Defaults to true.
	SaveNils bool
}

// DefaultBinding returns the directives used when none are configured.
func DefaultBinding() Binding {
	return Binding{Naming: SnakeCase, LoadNils: true, SaveNils: true}
}

func defaultBinding() Binding { return DefaultBinding() }

// boundField is the resolved mapping of one field to one document path. It
// lives for a single load or save pass; directives are cheap to re-derive
// and the target's shape cannot change at runtime.
type boundField struct {
	index []int
	name  string
	path  string
	typ   reflect.Type
	load  bool
	save  bool
}

// collectFields walks the target type's exported fields and produces the
// ordered list of bindable fields, honoring per-field conf tags and the
// handle's Binding directives.
//
// Tag grammar: conf:"-" excludes a field; conf:"path" overrides the derived
// key; the options "noload" and "nosave" disable one direction.
func collectFields(t reflect.Type, b Binding) []boundField {
	var out []boundField
	appendFields(t, b, nil, &out)
	return out
}

func appendFields(t reflect.Type, b Binding, prefix []int, out *[]boundField) {
	for i := 0; i < t.NumField(); i++ {
		sf := t.Field(i)
		if sf.PkgPath != "" {
			continue // unexported
		}

		tag, hasTag := sf.Tag.Lookup("conf")
		name, opts := splitTag(tag)

		if sf.Anonymous && sf.Type.Kind() == reflect.Struct && !hasTag {
			if b.Deep && sf.Type.PkgPath() != ownPkgPath {
				appendFields(sf.Type, b, append(prefix, i), out)
			}
			continue
		}

		if name == "-" {
			continue
		}
		// A class-level disable excludes untagged fields only; an explicit
		// tag is a per-field directive and wins.
		if b.Disabled && !hasTag {
			continue
		}

		if name == "" {
			name = convertCase(sf.Name, b.Naming)
		}

		index := make([]int, 0, len(prefix)+1)
		index = append(append(index, prefix...), i)
		*out = append(*out, boundField{
			index: index,
			name:  sf.Name,
			path:  name,
			typ:   sf.Type,
			load:  !opts.noload,
			save:  !opts.nosave,
		})
	}
}

var ownPkgPath = reflect.TypeOf(Handle{}).PkgPath()

type tagOptions struct {
	noload bool
	nosave bool
}

func splitTag(tag string) (name string, opts tagOptions) {
	for i, part := range splitComma(tag) {
		if i == 0 {
			name = part
			continue
		}
		switch part {
		case "noload":
			opts.noload = true
		case "nosave":
			opts.nosave = true
		}
	}
	return name, opts
}

func splitComma(s string) []string {
	var out []string
	start := 0
	for i := 0; i <= len(s); i++ {
		if i == len(s) || s[i] == ',' {
			out = append(out, s[start:i])
			start = i + 1
		}
	}
	return out
}

// ------------------------------------------------------------------------
// Load pass
// ------------------------------------------------------------------------

// loadFields reads every bindable field of the target from the document.
// A failure to resolve or convert one field becomes a BindingError for that
// field only; siblings still load, and the joined errors are returned. A
// SchemaDriftError aborts immediately.
func (h *Handle) loadFields() error {
	target := h.targetStruct()
	if !target.IsValid() {
		return nil
	}

	var errs []error
	for _, f := range collectFields(target.Type(), h.binding) {
		if !f.load {
			continue
		}
		value, err := h.getForField(f)
		if err != nil {
			if errors.Is(err, ErrSchemaDrift) {
				return err
			}
			errs = append(errs, &BindingError{Field: f.name, Path: f.path, Err: err})
			continue
		}

		fv := target.FieldByIndex(f.index)
		if value == nil {
			if h.binding.LoadNils {
				fv.Set(reflect.Zero(fv.Type()))
			}
			continue
		}
		rv := reflect.ValueOf(value)
		if !rv.Type().AssignableTo(fv.Type()) {
			errs = append(errs, &BindingError{
				Field: f.name, Path: f.path,
				Err: &ConversionError{Type: fv.Type().String(), Value: value},
			})
			continue
		}
		fv.Set(rv)
	}
	return errors.Join(errs...)
}

// getForField dispatches on the declared field shape: sequence-, set-, map-
// and pair-shaped fields go straight to the corresponding typed accessor;
// everything else consults the fixed accessor table and finally falls back
// to the generic get.
func (h *Handle) getForField(f boundField) (any, error) {
	t := f.typ

	switch {
	case t.Kind() == reflect.Slice:
		out, err := h.listForType(f.path, t.Elem(), nil)
		if err != nil {
			return nil, err
		}
		return out.Interface(), nil

	case isSetType(t):
		items, err := h.listForType(f.path, t.Key(), nil)
		if err != nil {
			return nil, err
		}
		out := reflect.MakeMapWithSize(t, items.Len())
		empty := reflect.ValueOf(struct{}{})
		for i := 0; i < items.Len(); i++ {
			out.SetMapIndex(items.Index(i), empty)
		}
		return out.Interface(), nil

	case t.Kind() == reflect.Map:
		out, err := h.mapForType(f.path, t.Key(), t.Elem(), nil)
		if err != nil {
			return nil, err
		}
		return out.Interface(), nil

	case t.Implements(pairType):
		return h.tupleForType(f.path, t, nil)
	}

	if accessor, ok := accessorTable[t]; ok {
		return accessor(h, f.path)
	}

	return h.get(f.path, t, nil)
}

var pairType = reflect.TypeOf((*pair)(nil)).Elem()

// accessorTable maps scalar field types to their dedicated accessors, so a
// bound string field inherits GetString's list-joining behavior and a
// duration field its text notation. Populated once at package init rather
// than resolved per call.
var accessorTable = map[reflect.Type]func(*Handle, string) (any, error){
	reflect.TypeOf(""):               presentOnly(func(h *Handle, p string) (any, error) { return h.GetString(p) }),
	reflect.TypeOf(false):            presentOnly(func(h *Handle, p string) (any, error) { return h.GetBool(p) }),
	reflect.TypeOf(int(0)):           presentOnly(func(h *Handle, p string) (any, error) { return h.GetInt(p) }),
	reflect.TypeOf(int64(0)):         presentOnly(func(h *Handle, p string) (any, error) { return h.GetInt64(p) }),
	reflect.TypeOf(float64(0)):       presentOnly(func(h *Handle, p string) (any, error) { return h.GetFloat(p) }),
	reflect.TypeOf(time.Duration(0)): presentOnly(func(h *Handle, p string) (any, error) { return h.GetDuration(p) }),
	reflect.TypeOf(uuid.UUID{}):      presentOnly(func(h *Handle, p string) (any, error) { return h.GetUUID(p) }),
}

// presentOnly runs defaults reconciliation first and reports absence as a
// nil value, which the load pass turns into the LoadNils behavior instead of
// writing a spurious zero.
func presentOnly(accessor func(*Handle, string) (any, error)) func(*Handle, string) (any, error) {
	return func(h *Handle, path string) (any, error) {
		abs, err := h.buildPath(path)
		if err != nil {
			return nil, err
		}
		if err := h.copyDefault(abs); err != nil {
			return nil, err
		}
		if !h.section.IsStored(abs) {
			return nil, nil
		}
		return accessor(h, path)
	}
}

// ------------------------------------------------------------------------
// Save pass
// ------------------------------------------------------------------------

// saveFields mirrors loadFields: every bindable field with saving enabled is
// serialized into the document at its resolved path.
func (h *Handle) saveFields() error {
	target := h.targetStruct()
	if !target.IsValid() {
		return nil
	}

	var errs []error
	for _, f := range collectFields(target.Type(), h.binding) {
		if !f.save {
			continue
		}
		fv := target.FieldByIndex(f.index)
		if isNilValue(fv) && !h.binding.SaveNils {
			continue
		}
		var value any
		if !isNilValue(fv) {
			value = fv.Interface()
		}
		if err := h.set(f.path, value); err != nil {
			errs = append(errs, &BindingError{Field: f.name, Path: f.path, Err: err})
		}
	}
	return errors.Join(errs...)
}

// seedFields writes the target's non-zero field values into a freshly
// created document, so factory defaults survive the load pass. Zero fields
// stay absent and fall back to bundled defaults or the LoadNils behavior.
func (h *Handle) seedFields() error {
	target := h.targetStruct()
	if !target.IsValid() {
		return nil
	}

	var errs []error
	for _, f := range collectFields(target.Type(), h.binding) {
		if !f.save {
			continue
		}
		fv := target.FieldByIndex(f.index)
		if fv.IsZero() {
			continue
		}
		if err := h.set(f.path, fv.Interface()); err != nil {
			errs = append(errs, &BindingError{Field: f.name, Path: f.path, Err: err})
		}
	}
	return errors.Join(errs...)
}

func isNilValue(v reflect.Value) bool {
	switch v.Kind() {
	case reflect.Pointer, reflect.Interface, reflect.Map, reflect.Slice:
		return v.IsNil()
	}
	return false
}

// targetStruct unwraps the bound target down to its settable struct value.
// Only pointer targets participate in binding; anything else (including nil)
// leaves the handle accessor-only.
func (h *Handle) targetStruct() reflect.Value {
	if h.target == nil {
		return reflect.Value{}
	}
	rv := reflect.ValueOf(h.target)
	if rv.Kind() != reflect.Pointer {
		return reflect.Value{}
	}
	for rv.Kind() == reflect.Pointer {
		if rv.IsNil() {
			return reflect.Value{}
		}
		rv = rv.Elem()
	}
	if rv.Kind() != reflect.Struct {
		return reflect.Value{}
	}
	return rv
}
