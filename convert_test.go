package fileconf

import (
	"errors"
	"reflect"
	"strings"
	"testing"
	"time"

	"github.com/google/uuid"

	"github.com/ygrebnov/fileconf/section"
)

type mode string

// realm restores itself from a section tree.
type realm struct {
	Name  string
	Limit int
}

func (r *realm) DeserializeSection(s *section.Section) error {
	name, _ := s.Retrieve("name").(string)
	limit, _ := s.Retrieve("limit").(int)
	if name == "" {
		return errors.New("realm needs a name")
	}
	r.Name = name
	r.Limit = limit
	return nil
}

func (r realm) SerializeSection() *section.Section {
	out := section.New()
	out.Store("name", r.Name)
	out.Store("limit", r.Limit)
	return out
}

func TestDefaultConverterDeserialize(t *testing.T) {
	realmSection := section.New()
	realmSection.Store("name", "overworld")
	realmSection.Store("limit", 10)

	badRealmSection := section.New()
	badRealmSection.Store("limit", 1)

	id := uuid.MustParse("123e4567-e89b-12d3-a456-426614174000")

	tests := []struct {
		name        string
		target      reflect.Type
		raw         any
		params      []any
		want        any
		errIs       error
		errContains string
	}{
		{
			name:   "nil passes through",
			target: reflect.TypeOf(""),
			raw:    nil,
			want:   nil,
		},
		{
			name:   "exact type passes through",
			target: reflect.TypeOf(""),
			raw:    "hello",
			want:   "hello",
		},
		{
			name:   "any target passes through",
			target: anyType,
			raw:    []any{1, 2},
			want:   []any{1, 2},
		},
		{
			name:   "int to string",
			target: reflect.TypeOf(""),
			raw:    42,
			want:   "42",
		},
		{
			name:   "bool to string",
			target: reflect.TypeOf(""),
			raw:    true,
			want:   "true",
		},
		{
			name:   "string to named string type",
			target: reflect.TypeOf(mode("")),
			raw:    "survival",
			want:   mode("survival"),
		},
		{
			name:   "string to bool",
			target: reflect.TypeOf(false),
			raw:    "true",
			want:   true,
		},
		{
			name:        "garbage string to bool",
			target:      reflect.TypeOf(false),
			raw:         "truee",
			errIs:       ErrConversion,
			errContains: "truee",
		},
		{
			name:   "string to int",
			target: reflect.TypeOf(0),
			raw:    "17",
			want:   17,
		},
		{
			name:   "float with no fraction to int",
			target: reflect.TypeOf(0),
			raw:    float64(3),
			want:   3,
		},
		{
			name:   "float with fraction to int fails",
			target: reflect.TypeOf(0),
			raw:    3.5,
			errIs:  ErrConversion,
		},
		{
			name:   "int overflow",
			target: reflect.TypeOf(int8(0)),
			raw:    300,
			errIs:  ErrConversion,
		},
		{
			name:   "negative to uint fails",
			target: reflect.TypeOf(uint(0)),
			raw:    -1,
			errIs:  ErrConversion,
		},
		{
			name:   "int to uint",
			target: reflect.TypeOf(uint16(0)),
			raw:    500,
			want:   uint16(500),
		},
		{
			name:   "int to float",
			target: reflect.TypeOf(float64(0)),
			raw:    7,
			want:   float64(7),
		},
		{
			name:   "string to float",
			target: reflect.TypeOf(float64(0)),
			raw:    "2.5",
			want:   2.5,
		},
		{
			name:   "duration from text",
			target: durationType,
			raw:    "1h30m",
			want:   90 * time.Minute,
		},
		{
			name:        "duration from int fails",
			target:      durationType,
			raw:         90,
			errIs:       ErrConversion,
			errContains: "time.Duration",
		},
		{
			name:   "uuid from text",
			target: uuidType,
			raw:    id.String(),
			want:   id,
		},
		{
			name:   "uuid from garbage fails",
			target: uuidType,
			raw:    "not-a-uuid",
			errIs:  ErrConversion,
		},
		{
			name:   "section target",
			target: sectionType,
			raw:    realmSection,
			want:   realmSection,
		},
		{
			name:   "sequence to typed slice",
			target: reflect.TypeOf([]int(nil)),
			raw:    []any{1, "2", 3},
			want:   []int{1, 2, 3},
		},
		{
			name:   "single value wraps into one-element slice",
			target: reflect.TypeOf([]string(nil)),
			raw:    "solo",
			want:   []string{"solo"},
		},
		{
			name:   "section to map",
			target: reflect.TypeOf(map[string]int(nil)),
			raw:    realmIntSection(),
			want:   map[string]int{"a": 1, "b": 2},
		},
		{
			name:   "deserializable value target",
			target: reflect.TypeOf(realm{}),
			raw:    realmSection,
			want:   realm{Name: "overworld", Limit: 10},
		},
		{
			name:   "deserializable pointer target",
			target: reflect.TypeOf(&realm{}),
			raw:    realmSection,
			want:   &realm{Name: "overworld", Limit: 10},
		},
		{
			name:        "deserializable rejecting its section",
			target:      reflect.TypeOf(realm{}),
			raw:         badRealmSection,
			errIs:       ErrConversion,
			errContains: "realm needs a name",
		},
		{
			name:   "deserializable needs a section",
			target: reflect.TypeOf(realm{}),
			raw:    "scalar",
			errIs:  ErrConversion,
		},
		{
			name:   "unsupported target",
			target: reflect.TypeOf(make(chan int)),
			raw:    "x",
			errIs:  ErrConversion,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := DefaultConverter{}.Deserialize(tt.target, tt.raw, tt.params...)
			if tt.errIs != nil {
				if !errors.Is(err, tt.errIs) {
					t.Fatalf("error = %v, want errors.Is(%v)", err, tt.errIs)
				}
				if tt.errContains != "" && !strings.Contains(err.Error(), tt.errContains) {
					t.Fatalf("error %q does not contain %q", err, tt.errContains)
				}
				return
			}
			if err != nil {
				t.Fatalf("Deserialize: %v", err)
			}
			if !reflect.DeepEqual(got, tt.want) {
				t.Errorf("Deserialize = %#v, want %#v", got, tt.want)
			}
		})
	}
}

func realmIntSection() *section.Section {
	s := section.New()
	s.Store("a", 1)
	s.Store("b", 2)
	return s
}

func TestDefaultConverterSerialize(t *testing.T) {
	id := uuid.MustParse("123e4567-e89b-12d3-a456-426614174000")

	tests := []struct {
		name  string
		value any
		want  any
		errIs error
	}{
		{name: "nil", value: nil, want: nil},
		{name: "string", value: "text", want: "text"},
		{name: "int", value: 42, want: 42},
		{name: "bool", value: true, want: true},
		{name: "duration to text", value: 90 * time.Second, want: "1m30s"},
		{name: "uuid to text", value: id, want: id.String()},
		{name: "named string flattens", value: mode("creative"), want: "creative"},
		{name: "nil pointer", value: (*int)(nil), want: nil},
		{name: "pointer dereferences", value: ptr(7), want: 7},
		{name: "slice of scalars", value: []string{"a", "b"}, want: []any{"a", "b"}},
		{name: "slice of durations", value: []time.Duration{time.Second}, want: []any{"1s"}},
		{name: "func is not storable", value: func() {}, errIs: ErrConversion},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := DefaultConverter{}.Serialize(tt.value)
			if tt.errIs != nil {
				if !errors.Is(err, tt.errIs) {
					t.Fatalf("error = %v, want errors.Is(%v)", err, tt.errIs)
				}
				return
			}
			if err != nil {
				t.Fatalf("Serialize: %v", err)
			}
			if !reflect.DeepEqual(got, tt.want) {
				t.Errorf("Serialize = %#v, want %#v", got, tt.want)
			}
		})
	}
}

func TestSerializeSet(t *testing.T) {
	set := map[string]struct{}{"beta": {}, "alpha": {}, "gamma": {}}
	got, err := DefaultConverter{}.Serialize(set)
	if err != nil {
		t.Fatalf("Serialize: %v", err)
	}
	if want := []any{"alpha", "beta", "gamma"}; !reflect.DeepEqual(got, want) {
		t.Errorf("set serialized to %v, want sorted %v", got, want)
	}
}

func TestSerializeMap(t *testing.T) {
	m := map[string]int{"b": 2, "a": 1}
	got, err := DefaultConverter{}.Serialize(m)
	if err != nil {
		t.Fatalf("Serialize: %v", err)
	}
	sec, ok := got.(*section.Section)
	if !ok {
		t.Fatalf("map serialized to %T, want *section.Section", got)
	}
	if keys := sec.Keys(false); !reflect.DeepEqual(keys, []string{"a", "b"}) {
		t.Errorf("map keys = %v, want sorted [a b]", keys)
	}
	if sec.Retrieve("a") != 1 || sec.Retrieve("b") != 2 {
		t.Errorf("map values lost: %v", sec)
	}
}

func TestSerializeTuple(t *testing.T) {
	got, err := DefaultConverter{}.Serialize(Tuple[string, int]{First: "level", Second: 3})
	if err != nil {
		t.Fatalf("Serialize: %v", err)
	}
	sec, ok := got.(*section.Section)
	if !ok {
		t.Fatalf("tuple serialized to %T, want *section.Section", got)
	}
	if sec.Retrieve("first") != "level" || sec.Retrieve("second") != 3 {
		t.Errorf("tuple section = %v, want {first: level, second: 3}", sec)
	}
}

func TestSerializeSerializable(t *testing.T) {
	got, err := DefaultConverter{}.Serialize(realm{Name: "nether", Limit: 5})
	if err != nil {
		t.Fatalf("Serialize: %v", err)
	}
	sec, ok := got.(*section.Section)
	if !ok {
		t.Fatalf("serialized to %T, want *section.Section", got)
	}
	if sec.Retrieve("name") != "nether" || sec.Retrieve("limit") != 5 {
		t.Errorf("section = %v", sec)
	}
}

func ptr[T any](v T) *T { return &v }
