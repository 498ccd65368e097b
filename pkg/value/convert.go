package value

import (
	"fmt"
	"math"
	"reflect"
	"regexp"
	"slices"
	"strings"
	"time"

	goreflect "github.com/goccy/go-reflect"
)

// TagName is the struct tag read by [FromGo] and by the decoder.
const TagName = "docengine"

var (
	timeTyp  = goreflect.TypeOf(time.Time{})
	bytesTyp = goreflect.TypeOf([]byte(nil))
)

// ErrUnsupportedType is returned by [FromGo] for Go values that have no
// document representation, like channels and functions.
type ErrUnsupportedType struct {
	Type string
}

// Error implements [error].
func (e ErrUnsupportedType) Error() string {
	return fmt.Sprintf("cannot convert %s to a document value", e.Type)
}

// FromGo converts a Go value into a [Value]. Maps become documents with keys
// in sorted order, structs keep field order and honor the docengine tag with
// the omitempty and omitzero flags.
func FromGo(in any) (Value, error) {
	switch t := in.(type) {
	case nil:
		return Null{}, nil
	case Value:
		return t, nil
	case time.Time:
		return DateTimeOf(t), nil
	case *regexp.Regexp:
		if t == nil {
			return Null{}, nil
		}
		return Regex{Pattern: t.String()}, nil
	case []byte:
		if t == nil {
			return Null{}, nil
		}
		return Binary{Data: slices.Clone(t)}, nil
	}
	return fromReflect(goreflect.ValueNoEscapeOf(in))
}

// DocumentFromGo is like [FromGo] but requires a map or struct.
func DocumentFromGo(in any) (*Document, error) {
	v, err := FromGo(in)
	if err != nil {
		return nil, err
	}
	switch t := v.(type) {
	case *Document:
		return t, nil
	case Null:
		return NewDocument(), nil
	}
	return nil, fmt.Errorf("%w: got %s", ErrNotDocument, KindOf(v))
}

func fromReflect(r goreflect.Value) (Value, error) {
	for r.Kind() == reflect.Pointer || r.Kind() == goreflect.Interface {
		if r.IsNil() {
			return Null{}, nil
		}
		r = r.Elem()
	}
	if r.Kind() == goreflect.Invalid {
		return Null{}, nil
	}
	if v, ok := r.Interface().(Value); ok {
		return v, nil
	}
	switch r.Kind() {
	case goreflect.Bool:
		return Bool(r.Bool()), nil
	case goreflect.Int8, goreflect.Int16, goreflect.Int32:
		return Int32(r.Int()), nil
	case goreflect.Int:
		n := r.Int()
		if n >= math.MinInt32 && n <= math.MaxInt32 {
			return Int32(n), nil
		}
		return Int64(n), nil
	case goreflect.Int64:
		return Int64(r.Int()), nil
	case goreflect.Uint8, goreflect.Uint16:
		return Int32(r.Uint()), nil
	case goreflect.Uint32:
		return Int64(r.Uint()), nil
	case goreflect.Uint, goreflect.Uint64:
		n := r.Uint()
		if n > math.MaxInt64 {
			return nil, ErrUnsupportedType{Type: "uint64 above MaxInt64"}
		}
		return Int64(n), nil
	case goreflect.Float32, goreflect.Float64:
		return Double(r.Float()), nil
	case goreflect.String:
		return String(r.String()), nil
	case goreflect.Slice:
		if r.IsNil() {
			return Null{}, nil
		}
		if r.Type() == bytesTyp {
			return Binary{Data: slices.Clone(r.Bytes())}, nil
		}
		return fromList(r)
	case goreflect.Array:
		return fromList(r)
	case goreflect.Map:
		if r.IsNil() {
			return Null{}, nil
		}
		return fromMap(r)
	case goreflect.Struct:
		if r.Type() == timeTyp {
			return DateTimeOf(r.Interface().(time.Time)), nil
		}
		return fromStruct(r)
	}
	return nil, ErrUnsupportedType{Type: r.Type().String()}
}

func fromList(r goreflect.Value) (Value, error) {
	res := make(Array, r.Len())
	for i := range r.Len() {
		v, err := fromReflect(r.Index(i))
		if err != nil {
			return nil, err
		}
		res[i] = v
	}
	return res, nil
}

func fromMap(r goreflect.Value) (Value, error) {
	if r.Type().Key().Kind() != goreflect.String {
		return nil, ErrUnsupportedType{Type: r.Type().String()}
	}
	keys := r.MapKeys()
	slices.SortFunc(keys, func(a, b goreflect.Value) int {
		return strings.Compare(a.String(), b.String())
	})
	res := &Document{fields: make([]Field, 0, len(keys))}
	for _, k := range keys {
		v, err := fromReflect(r.MapIndex(k))
		if err != nil {
			return nil, err
		}
		res.fields = append(res.fields, Field{Key: k.String(), Value: v})
	}
	return res, nil
}

func fromStruct(r goreflect.Value) (Value, error) {
	typ := r.Type()
	res := &Document{fields: make([]Field, 0, r.NumField())}
	for n := range r.NumField() {
		field := typ.Field(n)
		if field.PkgPath != "" {
			continue
		}
		name, skip := fieldName(field, r.Field(n))
		if skip {
			continue
		}
		v, err := fromReflect(r.Field(n))
		if err != nil {
			return nil, err
		}
		res.Set(name, v)
	}
	return res, nil
}

func fieldName(field goreflect.StructField, r goreflect.Value) (string, bool) {
	name := field.Name
	tag, ok := field.Tag.Lookup(TagName)
	if !ok {
		return name, false
	}
	if tag == "-" {
		return "", true
	}
	segments := strings.Split(tag, ",")
	if segments[0] != "" {
		name = segments[0]
	}
	segments = segments[1:]
	if slices.Contains(segments, "omitempty") && isEmpty(r) {
		return "", true
	}
	if slices.Contains(segments, "omitzero") && r.IsZero() {
		return "", true
	}
	return name, false
}

func isEmpty(r goreflect.Value) bool {
	switch r.Kind() {
	case reflect.Pointer, goreflect.Interface:
		return r.IsNil()
	case goreflect.Slice, goreflect.Map, goreflect.String, goreflect.Array:
		return r.Len() == 0
	}
	return false
}

// ToGo converts v into plain Go values: documents become map[string]any,
// arrays []any, dates [time.Time] and numbers their natural Go type. ObjectID,
// Regex, MinKey and MaxKey are returned unchanged.
func ToGo(v Value) any {
	switch t := v.(type) {
	case nil, Null:
		return nil
	case Bool:
		return bool(t)
	case Int32:
		return int32(t)
	case Int64:
		return int64(t)
	case Double:
		return float64(t)
	case String:
		return string(t)
	case DateTime:
		return t.Time()
	case Binary:
		return slices.Clone(t.Data)
	case Array:
		res := make([]any, len(t))
		for n, item := range t {
			res[n] = ToGo(item)
		}
		return res
	case *Document:
		res := make(map[string]any, t.Len())
		for _, f := range t.fields {
			res[f.Key] = ToGo(f.Value)
		}
		return res
	default:
		return v
	}
}
