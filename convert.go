package fileconf

import (
	"fmt"
	"math"
	"reflect"
	"sort"
	"strconv"
	"time"

	"github.com/google/uuid"

	"github.com/ygrebnov/fileconf/section"
)

// Serializable is implemented by domain types that convert themselves into a
// section tree for storage.
type Serializable interface {
	SerializeSection() *section.Section
}

// Deserializable is implemented by domain types that restore themselves from
// a section tree. The method is called on a freshly allocated value.
type Deserializable interface {
	DeserializeSection(s *section.Section) error
}

// DeserializableWith is the variant of Deserializable for types whose
// restoration needs extra caller-supplied arguments, passed through the
// accessor's trailing params.
type DeserializableWith interface {
	DeserializeSectionWith(s *section.Section, params ...any) error
}

// Converter coerces raw stored values into declared target types and back.
// The default implementation covers primitives, strings, time.Duration,
// uuid.UUID, sequences, sections and Serializable/Deserializable types.
type Converter interface {
	// Deserialize converts a raw stored value into the target type. The
	// returned value is assignable to target on success.
	Deserialize(target reflect.Type, raw any, params ...any) (any, error)

	// Serialize converts a typed value into a form the codec can store:
	// a scalar, []any, or *section.Section.
	Serialize(value any) (any, error)
}

// DefaultConverter is the Converter used when none is configured.
type DefaultConverter struct{}

var (
	durationType = reflect.TypeOf(time.Duration(0))
	uuidType     = reflect.TypeOf(uuid.UUID{})
	sectionType  = reflect.TypeOf((*section.Section)(nil))
	anyType      = reflect.TypeOf((*any)(nil)).Elem()
)

func (c DefaultConverter) Deserialize(target reflect.Type, raw any, params ...any) (any, error) {
	if raw == nil {
		return nil, nil
	}
	if target == anyType {
		return raw, nil
	}
	if reflect.TypeOf(raw) == target {
		return raw, nil
	}

	// Domain types that restore themselves from a section tree. Both T and
	// *T declarations are supported.
	if v, handled, err := deserializeSection(target, raw, params); handled {
		return v, err
	}

	switch target {
	case durationType:
		s, ok := raw.(string)
		if !ok {
			return nil, &ConversionError{Type: "time.Duration", Value: raw}
		}
		d, err := time.ParseDuration(s)
		if err != nil {
			return nil, &ConversionError{Type: "time.Duration", Value: raw, Reason: err}
		}
		return d, nil

	case uuidType:
		s, ok := raw.(string)
		if !ok {
			return nil, &ConversionError{Type: "uuid.UUID", Value: raw}
		}
		id, err := uuid.Parse(s)
		if err != nil {
			return nil, &ConversionError{Type: "uuid.UUID", Value: raw, Reason: err}
		}
		return id, nil

	case sectionType:
		if s, ok := raw.(*section.Section); ok {
			return s, nil
		}
		return nil, &ConversionError{Type: "*section.Section", Value: raw}
	}

	switch target.Kind() {
	case reflect.String:
		return c.toString(target, raw)
	case reflect.Bool:
		return c.toBool(target, raw)
	case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64:
		return c.toInt(target, raw)
	case reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64:
		return c.toUint(target, raw)
	case reflect.Float32, reflect.Float64:
		return c.toFloat(target, raw)
	case reflect.Slice:
		return c.toSlice(target, raw, params)
	case reflect.Map:
		return c.toMap(target, raw, params)
	}

	return nil, &ConversionError{Type: target.String(), Value: raw}
}

func deserializeSection(target reflect.Type, raw any, params []any) (any, bool, error) {
	implements := func(t reflect.Type) bool {
		return t.Implements(reflect.TypeOf((*Deserializable)(nil)).Elem()) ||
			t.Implements(reflect.TypeOf((*DeserializableWith)(nil)).Elem())
	}

	var value reflect.Value
	switch {
	case target.Kind() == reflect.Pointer && implements(target):
		value = reflect.New(target.Elem())
	case implements(reflect.PointerTo(target)):
		value = reflect.New(target)
	default:
		return nil, false, nil
	}

	sec, ok := raw.(*section.Section)
	if !ok {
		return nil, true, &ConversionError{Type: target.String(), Value: raw}
	}

	var err error
	switch d := value.Interface().(type) {
	case DeserializableWith:
		err = d.DeserializeSectionWith(sec, params...)
	case Deserializable:
		err = d.DeserializeSection(sec)
	}
	if err != nil {
		return nil, true, &ConversionError{Type: target.String(), Value: raw, Reason: err}
	}

	if target.Kind() == reflect.Pointer {
		return value.Interface(), true, nil
	}
	return value.Elem().Interface(), true, nil
}

func (DefaultConverter) toString(target reflect.Type, raw any) (any, error) {
	switch v := raw.(type) {
	case string:
		return convertNamed(target, v), nil
	case bool, int, int32, int64, uint, uint64, float32, float64:
		return convertNamed(target, fmt.Sprint(v)), nil
	}
	return nil, &ConversionError{Type: target.String(), Value: raw}
}

func (DefaultConverter) toBool(target reflect.Type, raw any) (any, error) {
	switch v := raw.(type) {
	case bool:
		return convertNamed(target, v), nil
	case string:
		b, err := strconv.ParseBool(v)
		if err != nil {
			return nil, &ConversionError{Type: target.String(), Value: raw, Reason: err}
		}
		return convertNamed(target, b), nil
	}
	return nil, &ConversionError{Type: target.String(), Value: raw}
}

func (DefaultConverter) toInt(target reflect.Type, raw any) (any, error) {
	var n int64
	switch v := raw.(type) {
	case int:
		n = int64(v)
	case int32:
		n = int64(v)
	case int64:
		n = v
	case uint64:
		n = int64(v)
	case float64:
		if v != math.Trunc(v) {
			return nil, &ConversionError{Type: target.String(), Value: raw}
		}
		n = int64(v)
	case string:
		parsed, err := strconv.ParseInt(v, 10, 64)
		if err != nil {
			return nil, &ConversionError{Type: target.String(), Value: raw, Reason: err}
		}
		n = parsed
	default:
		return nil, &ConversionError{Type: target.String(), Value: raw}
	}
	if reflect.Zero(target).OverflowInt(n) {
		return nil, &ConversionError{Type: target.String(), Value: raw}
	}
	out := reflect.New(target).Elem()
	out.SetInt(n)
	return out.Interface(), nil
}

func (DefaultConverter) toUint(target reflect.Type, raw any) (any, error) {
	var n uint64
	switch v := raw.(type) {
	case int:
		if v < 0 {
			return nil, &ConversionError{Type: target.String(), Value: raw}
		}
		n = uint64(v)
	case int64:
		if v < 0 {
			return nil, &ConversionError{Type: target.String(), Value: raw}
		}
		n = uint64(v)
	case uint64:
		n = v
	case string:
		parsed, err := strconv.ParseUint(v, 10, 64)
		if err != nil {
			return nil, &ConversionError{Type: target.String(), Value: raw, Reason: err}
		}
		n = parsed
	default:
		return nil, &ConversionError{Type: target.String(), Value: raw}
	}
	if reflect.Zero(target).OverflowUint(n) {
		return nil, &ConversionError{Type: target.String(), Value: raw}
	}
	out := reflect.New(target).Elem()
	out.SetUint(n)
	return out.Interface(), nil
}

func (DefaultConverter) toFloat(target reflect.Type, raw any) (any, error) {
	var f float64
	switch v := raw.(type) {
	case int:
		f = float64(v)
	case int64:
		f = float64(v)
	case float32:
		f = float64(v)
	case float64:
		f = v
	case string:
		parsed, err := strconv.ParseFloat(v, 64)
		if err != nil {
			return nil, &ConversionError{Type: target.String(), Value: raw, Reason: err}
		}
		f = parsed
	default:
		return nil, &ConversionError{Type: target.String(), Value: raw}
	}
	out := reflect.New(target).Elem()
	out.SetFloat(f)
	return out.Interface(), nil
}

func (c DefaultConverter) toSlice(target reflect.Type, raw any, params []any) (any, error) {
	items, ok := raw.([]any)
	if !ok {
		// A single value stands in for a one-element sequence.
		items = []any{raw}
	}
	out := reflect.MakeSlice(target, 0, len(items))
	for _, item := range items {
		if item == nil {
			out = reflect.Append(out, reflect.Zero(target.Elem()))
			continue
		}
		converted, err := c.Deserialize(target.Elem(), item, params...)
		if err != nil {
			return nil, err
		}
		out = reflect.Append(out, reflect.ValueOf(converted))
	}
	return out.Interface(), nil
}

func (c DefaultConverter) toMap(target reflect.Type, raw any, params []any) (any, error) {
	sec, ok := raw.(*section.Section)
	if !ok {
		return nil, &ConversionError{Type: target.String(), Value: raw}
	}
	out := reflect.MakeMapWithSize(target, sec.Len())
	for _, key := range sec.Keys(false) {
		k, err := c.Deserialize(target.Key(), key, params...)
		if err != nil {
			return nil, err
		}
		v, err := c.Deserialize(target.Elem(), sec.Retrieve(key), params...)
		if err != nil {
			return nil, err
		}
		out.SetMapIndex(reflect.ValueOf(k), reflect.ValueOf(v))
	}
	return out.Interface(), nil
}

// convertNamed keeps named string/bool types (e.g. type Mode string) intact.
func convertNamed(target reflect.Type, v any) any {
	rv := reflect.ValueOf(v)
	if rv.Type() == target {
		return v
	}
	return rv.Convert(target).Interface()
}

func (c DefaultConverter) Serialize(value any) (any, error) {
	if value == nil {
		return nil, nil
	}

	switch v := value.(type) {
	case Serializable:
		return v.SerializeSection(), nil
	case *section.Section:
		return v, nil
	case time.Duration:
		return v.String(), nil
	case uuid.UUID:
		return v.String(), nil
	case pair:
		first, second := v.pairValues()
		firstRaw, err := c.Serialize(first)
		if err != nil {
			return nil, err
		}
		secondRaw, err := c.Serialize(second)
		if err != nil {
			return nil, err
		}
		out := section.New()
		out.Store(tupleFirstKey, firstRaw)
		out.Store(tupleSecondKey, secondRaw)
		return out, nil
	case string, bool,
		int, int8, int16, int32, int64,
		uint, uint8, uint16, uint32, uint64,
		float32, float64:
		return v, nil
	}

	rv := reflect.ValueOf(value)
	switch rv.Kind() {
	case reflect.Pointer:
		if rv.IsNil() {
			return nil, nil
		}
		return c.Serialize(rv.Elem().Interface())

	case reflect.String:
		return rv.String(), nil
	case reflect.Bool:
		return rv.Bool(), nil
	case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64:
		return rv.Int(), nil
	case reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64:
		return int64(rv.Uint()), nil
	case reflect.Float32, reflect.Float64:
		return rv.Float(), nil

	case reflect.Slice, reflect.Array:
		out := make([]any, 0, rv.Len())
		for i := 0; i < rv.Len(); i++ {
			item, err := c.Serialize(rv.Index(i).Interface())
			if err != nil {
				return nil, err
			}
			out = append(out, item)
		}
		return out, nil

	case reflect.Map:
		// Sets (map[T]struct{}) serialize as sequences; other maps as
		// sections. Go map iteration order is random, so entries are sorted
		// by key text to keep saved files stable.
		if rv.Type().Elem() == reflect.TypeOf(struct{}{}) {
			items := make([]any, 0, rv.Len())
			for _, key := range rv.MapKeys() {
				item, err := c.Serialize(key.Interface())
				if err != nil {
					return nil, err
				}
				items = append(items, item)
			}
			sort.Slice(items, func(i, j int) bool {
				return fmt.Sprint(items[i]) < fmt.Sprint(items[j])
			})
			return items, nil
		}

		keys := rv.MapKeys()
		sort.Slice(keys, func(i, j int) bool {
			return fmt.Sprint(keys[i].Interface()) < fmt.Sprint(keys[j].Interface())
		})
		out := section.New()
		for _, key := range keys {
			item, err := c.Serialize(rv.MapIndex(key).Interface())
			if err != nil {
				return nil, err
			}
			out.Store(fmt.Sprint(key.Interface()), item)
		}
		return out, nil
	}

	return nil, &ConversionError{Type: "storable value", Value: value}
}
