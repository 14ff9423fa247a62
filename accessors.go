package fileconf

import (
	"fmt"
	"reflect"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/ygrebnov/fileconf/section"
)

// get is the core typed read: resolve the absolute path, reconcile defaults,
// apply the fixed pre-conversion coercions, delegate to the value converter
// and validate the result. The def value is returned only when the key is
// absent from both the live tree and the defaults; it is never persisted.
func (h *Handle) get(path string, target reflect.Type, def any, params ...any) (any, error) {
	if h.section == nil {
		return nil, fmt.Errorf("%w: cannot read %q", ErrNotLoaded, path)
	}
	abs, err := h.buildPath(path)
	if err != nil {
		return nil, err
	}
	if err := h.copyDefault(abs); err != nil {
		return nil, err
	}

	raw := h.section.Retrieve(abs)
	if raw == nil {
		return def, nil
	}

	// The document codec cannot tell an empty sequence written as the
	// literal "[]" from a string, nor a 32-bit integer from a 64-bit one.
	if s, ok := raw.(string); ok && s == "[]" && target.Kind() == reflect.Slice {
		raw = []any{}
	}
	if n, ok := raw.(int); ok && target.Kind() == reflect.Int64 && target != durationType {
		raw = int64(n)
	}

	converted, err := h.converter.Deserialize(target, raw, params...)
	if err != nil {
		return nil, fmt.Errorf("key %q in %s: %w", abs, h.FileName(), err)
	}
	if err := h.checkAssignable(abs, converted, target); err != nil {
		return nil, err
	}
	return converted, nil
}

// checkAssignable guards against values the converter passed through without
// reaching the declared type, e.g. "enabled: truee" being a string where a
// bool is declared.
func (h *Handle) checkAssignable(path string, value any, target reflect.Type) error {
	if value == nil || target == anyType {
		return nil
	}
	actual := reflect.TypeOf(value)
	if actual.AssignableTo(target) {
		return nil
	}
	// A section stands in for any self-deserializing object type, and a
	// sequence for a declared set (sets are stored as sequences; order is
	// insignificant on read).
	if actual == reflect.TypeOf((*section.Section)(nil)) {
		if target.Implements(deserializableType) || reflect.PointerTo(target).Implements(deserializableType) {
			return nil
		}
	}
	if actual.Kind() == reflect.Slice && target.Kind() == reflect.Map && isSetType(target) {
		return nil
	}
	return &TypeMismatchError{
		File:     h.FileName(),
		Path:     path,
		Expected: target.String(),
		Actual:   actual.String(),
		Value:    value,
	}
}

var deserializableType = reflect.TypeOf((*Deserializable)(nil)).Elem()

func isSetType(t reflect.Type) bool {
	return t.Kind() == reflect.Map && t.Elem() == reflect.TypeOf(struct{}{})
}

// ------------------------------------------------------------------------
// Scalar accessors
// ------------------------------------------------------------------------

// GetObject returns the raw value at the given path after defaults
// reconciliation, or the optional def when the key is absent.
func (h *Handle) GetObject(path string, def ...any) (any, error) {
	var d any
	if len(def) > 0 {
		d = def[0]
	}
	return h.get(path, anyType, d)
}

// GetString returns the string at the given path. A sequence is joined with
// newlines, a boolean or numeric scalar is stringified; any other non-string
// value is a TypeMismatchError.
func (h *Handle) GetString(path string, def ...string) (string, error) {
	var d any
	if len(def) > 0 {
		d = def[0]
	}
	raw, err := h.get(path, anyType, d)
	if err != nil || raw == nil {
		return "", err
	}

	switch v := raw.(type) {
	case string:
		return v, nil
	case []any:
		parts := make([]string, 0, len(v))
		for _, item := range v {
			parts = append(parts, fmt.Sprint(item))
		}
		return strings.Join(parts, "\n"), nil
	case bool, int, int32, int64, uint, uint64, float32, float64:
		return fmt.Sprint(v), nil
	}

	abs, _ := h.buildPath(path)
	return "", &TypeMismatchError{
		File: h.FileName(), Path: abs,
		Expected: "string", Actual: fmt.Sprintf("%T", raw), Value: raw,
	}
}

// GetBool returns the boolean at the given path.
func (h *Handle) GetBool(path string, def ...bool) (bool, error) {
	return scalar[bool](h, path, def)
}

// GetInt returns the integer at the given path.
func (h *Handle) GetInt(path string, def ...int) (int, error) {
	return scalar[int](h, path, def)
}

// GetInt64 returns the 64-bit integer at the given path. A stored 32-bit
// value is widened transparently.
func (h *Handle) GetInt64(path string, def ...int64) (int64, error) {
	return scalar[int64](h, path, def)
}

// GetFloat returns the floating-point number at the given path. Integer
// values are accepted and widened.
func (h *Handle) GetFloat(path string, def ...float64) (float64, error) {
	return scalar[float64](h, path, def)
}

// GetDuration returns the duration at the given path, stored in
// time.ParseDuration notation such as "90s" or "1h30m".
func (h *Handle) GetDuration(path string, def ...time.Duration) (time.Duration, error) {
	return scalar[time.Duration](h, path, def)
}

// GetUUID returns the UUID at the given path, stored in canonical text form.
func (h *Handle) GetUUID(path string, def ...uuid.UUID) (uuid.UUID, error) {
	return scalar[uuid.UUID](h, path, def)
}

func scalar[T any](h *Handle, path string, def []T) (T, error) {
	var zero T
	var d any
	if len(def) > 0 {
		d = def[0]
	}
	raw, err := h.get(path, reflect.TypeOf(zero), d)
	if err != nil || raw == nil {
		return zero, err
	}
	return raw.(T), nil
}

// ------------------------------------------------------------------------
// List accessors
// ------------------------------------------------------------------------

// GetAnyList returns the untyped sequence at the given path. A single
// non-sequence value is wrapped into a one-element list, so documents may
// write "key: value" instead of "key: [value]". An absent key yields an
// empty list, never nil.
func (h *Handle) GetAnyList(path string) ([]any, error) {
	raw, err := h.GetObject(path)
	if err != nil {
		return nil, err
	}
	switch v := raw.(type) {
	case nil:
		return []any{}, nil
	case string:
		if v == "[]" || v == "'[]'" {
			return []any{}, nil
		}
		return []any{v}, nil
	case []any:
		out := make([]any, len(v))
		copy(out, v)
		return out, nil
	default:
		return []any{raw}, nil
	}
}

// GetStringList returns the list of strings at the given path. The literal
// strings "[]" and "'[]'" map to an empty list; a bare string splits on
// newlines. Every element is stringified, since the document codec would
// otherwise read bare true/false/yes/no tokens as booleans.
func (h *Handle) GetStringList(path string) ([]string, error) {
	raw, err := h.GetObject(path)
	if err != nil {
		return nil, err
	}

	switch v := raw.(type) {
	case nil:
		return []string{}, nil
	case string:
		if v == "[]" || v == "'[]'" {
			return []string{}, nil
		}
		return strings.Split(v, "\n"), nil
	case []any:
		out := make([]string, 0, len(v))
		for _, item := range v {
			if item != nil {
				out = append(out, fmt.Sprint(item))
			}
		}
		return out, nil
	}

	abs, _ := h.buildPath(path)
	return nil, &TypeMismatchError{
		File: h.FileName(), Path: abs,
		Expected: "list", Actual: fmt.Sprintf("%T", raw), Value: raw,
	}
}

// GetList returns the typed list at the given path. Elements failing
// conversion abort the call; nil elements become the element type's zero
// value only for pointer and interface elements and are dropped otherwise.
func GetList[T any](h *Handle, path string, params ...any) ([]T, error) {
	elem := reflect.TypeOf((*T)(nil)).Elem()
	out, err := h.listForType(path, elem, params)
	if err != nil {
		return nil, err
	}
	return out.Interface().([]T), nil
}

// GetSet returns the set at the given path, stored in the document as a
// sequence.
func GetSet[T comparable](h *Handle, path string, params ...any) (map[T]struct{}, error) {
	items, err := GetList[T](h, path, params...)
	if err != nil {
		return nil, err
	}
	out := make(map[T]struct{}, len(items))
	for _, item := range items {
		out[item] = struct{}{}
	}
	return out, nil
}

func (h *Handle) listForType(path string, elem reflect.Type, params []any) (reflect.Value, error) {
	items, err := h.GetAnyList(path)
	if err != nil {
		return reflect.Value{}, err
	}

	out := reflect.MakeSlice(reflect.SliceOf(elem), 0, len(items))
	for _, item := range items {
		if item == nil {
			// Zero values only make sense for element types that can
			// represent "absent"; primitives and strings cannot.
			if elem.Kind() == reflect.Pointer || elem.Kind() == reflect.Interface {
				out = reflect.Append(out, reflect.Zero(elem))
			}
			continue
		}
		converted, err := h.converter.Deserialize(elem, item, params...)
		if err != nil {
			abs, _ := h.buildPath(path)
			return reflect.Value{}, fmt.Errorf("key %q in %s: %w", abs, h.FileName(), err)
		}
		out = reflect.Append(out, reflect.ValueOf(converted))
	}
	return out, nil
}

// ------------------------------------------------------------------------
// Map and tuple accessors
// ------------------------------------------------------------------------

// GetMap returns the typed map at the given path. When defaults exist and
// the path is unset, every immediate child key of the defaults section is
// reconciled individually first, so map entries introduced by an upgrade are
// picked up even when the user never had the parent key.
func GetMap[K comparable, V any](h *Handle, path string, params ...any) (map[K]V, error) {
	keyType := reflect.TypeOf((*K)(nil)).Elem()
	valType := reflect.TypeOf((*V)(nil)).Elem()
	out, err := h.mapForType(path, keyType, valType, params)
	if err != nil {
		return nil, err
	}
	return out.Interface().(map[K]V), nil
}

func (h *Handle) mapForType(path string, keyType, valType reflect.Type, params []any) (reflect.Value, error) {
	if h.section == nil {
		return reflect.Value{}, fmt.Errorf("%w: cannot read %q", ErrNotLoaded, path)
	}
	abs, err := h.buildPath(path)
	if err != nil {
		return reflect.Value{}, err
	}
	if err := h.reconcileMapChildren(abs); err != nil {
		return reflect.Value{}, err
	}

	out := reflect.MakeMap(reflect.MapOf(keyType, valType))
	sec := h.section.Child(abs)
	if sec == nil {
		// A stored scalar or sequence cannot hold map entries.
		if raw := h.section.Retrieve(abs); raw != nil {
			return reflect.Value{}, &TypeMismatchError{
				File: h.FileName(), Path: abs,
				Expected: "section", Actual: fmt.Sprintf("%T", raw), Value: raw,
			}
		}
		return out, nil
	}
	for _, rawKey := range sec.Keys(false) {
		key, err := h.converter.Deserialize(keyType, rawKey, params...)
		if err != nil {
			return reflect.Value{}, fmt.Errorf("key %q in %s: %w", abs, h.FileName(), err)
		}
		if err := h.checkAssignable(abs, key, keyType); err != nil {
			return reflect.Value{}, err
		}
		value, err := h.converter.Deserialize(valType, sec.Retrieve(rawKey), params...)
		if err != nil {
			return reflect.Value{}, fmt.Errorf("key %q in %s: %w", abs+section.PathSeparator+rawKey, h.FileName(), err)
		}
		if err := h.checkAssignable(abs+section.PathSeparator+rawKey, value, valType); err != nil {
			return reflect.Value{}, err
		}
		out.SetMapIndex(reflect.ValueOf(key), reflect.ValueOf(value))
	}
	return out, nil
}

// GetTuple returns the paired value at the given path, stored as a mapping
// with "first" and "second" sub-keys. An absent key yields the zero tuple.
func GetTuple[K, V any](h *Handle, path string, params ...any) (Tuple[K, V], error) {
	var out Tuple[K, V]
	raw, err := h.tupleForType(path, reflect.TypeOf(out), params)
	if err != nil {
		return out, err
	}
	if raw == nil {
		return out, nil
	}
	return raw.(Tuple[K, V]), nil
}

func (h *Handle) tupleForType(path string, tupleType reflect.Type, params []any) (any, error) {
	raw, err := h.get(path, reflect.TypeOf((*section.Section)(nil)), nil)
	if err != nil || raw == nil {
		return nil, err
	}
	sec := raw.(*section.Section)

	first, second := reflect.Zero(tupleType).Interface().(pair).pairTypes()
	abs, _ := h.buildPath(path)

	out := reflect.New(tupleType).Elem()
	firstValue, err := h.converter.Deserialize(first, sec.Retrieve(tupleFirstKey), params...)
	if err != nil {
		return nil, fmt.Errorf("key %q in %s: %w", abs, h.FileName(), err)
	}
	secondValue, err := h.converter.Deserialize(second, sec.Retrieve(tupleSecondKey), params...)
	if err != nil {
		return nil, fmt.Errorf("key %q in %s: %w", abs, h.FileName(), err)
	}
	if firstValue != nil {
		out.FieldByName("First").Set(reflect.ValueOf(firstValue))
	}
	if secondValue != nil {
		out.FieldByName("Second").Set(reflect.ValueOf(secondValue))
	}
	return out.Interface(), nil
}

// ------------------------------------------------------------------------
// Writes
// ------------------------------------------------------------------------

// Set serializes the given value through the converter and stores it at the
// given path, marking the handle dirty. Storing nil removes the key. The
// write reaches disk on the next Save.
func (h *Handle) Set(path string, value any) error {
	if h.section == nil {
		return fmt.Errorf("%w: cannot set %q", ErrNotLoaded, path)
	}
	if h.state.Load() == stateIdle {
		h.registry.mu.Lock()
		defer h.registry.mu.Unlock()
	}
	return h.set(path, value)
}

func (h *Handle) set(path string, value any) error {
	abs, err := h.buildPath(path)
	if err != nil {
		return err
	}
	raw, err := h.converter.Serialize(value)
	if err != nil {
		return fmt.Errorf("key %q in %s: %w", abs, h.FileName(), err)
	}
	h.section.Store(abs, raw)
	h.dirty = true
	return nil
}

// SetAndSave stores the value at the given path and saves the file
// immediately.
func (h *Handle) SetAndSave(path string, value any) error {
	if err := h.Set(path, value); err != nil {
		return err
	}
	return h.Save()
}

// IsSet reports whether the given path holds a non-nil value. The path
// prefix is applied.
func (h *Handle) IsSet(path string) bool {
	if h.section == nil {
		return false
	}
	abs, err := h.buildPath(path)
	if err != nil {
		return false
	}
	return h.section.IsStored(abs)
}

// IsSetDefault reports whether the defaults document holds a non-nil value
// at the given path. The path prefix is applied.
func (h *Handle) IsSetDefault(path string) bool {
	if h.defaults == nil {
		return false
	}
	abs, err := h.buildPath(path)
	if err != nil {
		return false
	}
	return h.defaults.IsStored(abs)
}

// Move migrates the value from a relative path (prefix applied) to an
// absolute one (prefix not applied), used when renaming keys between
// releases.
func (h *Handle) Move(fromRel, toAbs string) error {
	value, err := h.GetObject(fromRel)
	if err != nil {
		return err
	}
	if err := h.Set(fromRel, nil); err != nil {
		return err
	}
	h.section.Store(toAbs, value)
	h.dirty = true

	from, _ := h.buildPath(fromRel)
	h.trace("update %s: moved %q (was %v) to %q", h.FileName(), from, flatten(value), toAbs)
	return nil
}

