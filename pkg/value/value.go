// Package value contains the closed set of values a document can hold. Every
// consumer switches over the concrete types declared here; no other type
// implements [Value].
package value

import (
	"bytes"
	"math"
	"time"
)

// Value is a document value. It is sealed: only the types in this package
// implement it.
type Value interface {
	isValue()
}

// Null represents both an explicit null and, when read by the engine, a
// missing field.
type Null struct{}

// Bool is a boolean value.
type Bool bool

// Int32 is a 32 bit signed integer.
type Int32 int32

// Int64 is a 64 bit signed integer.
type Int64 int64

// Double is an IEEE-754 binary64 number.
type Double float64

// String is an UTF-8 string.
type String string

// Binary is an opaque byte string with a subtype tag.
type Binary struct {
	Subtype byte
	Data    []byte
}

// DateTime is a point in time stored as milliseconds since the Unix epoch.
type DateTime int64

// Regex is a regular expression literal.
type Regex struct {
	Pattern string
	Options string
}

// MinKey sorts before every other value.
type MinKey struct{}

// MaxKey sorts after every other value.
type MaxKey struct{}

// Array is an ordered list of values.
type Array []Value

func (Null) isValue()      {}
func (Bool) isValue()      {}
func (Int32) isValue()     {}
func (Int64) isValue()     {}
func (Double) isValue()    {}
func (String) isValue()    {}
func (Binary) isValue()    {}
func (ObjectID) isValue()  {}
func (DateTime) isValue()  {}
func (Regex) isValue()     {}
func (MinKey) isValue()    {}
func (MaxKey) isValue()    {}
func (Array) isValue()     {}
func (*Document) isValue() {}

// Time returns d as a [time.Time] in UTC.
func (d DateTime) Time() time.Time {
	return time.UnixMilli(int64(d)).UTC()
}

// DateTimeOf converts t to a [DateTime], truncating to milliseconds.
func DateTimeOf(t time.Time) DateTime {
	return DateTime(t.UnixMilli())
}

// Kind identifies the concrete type of a [Value].
type Kind int8

// Kinds, valued after their $type codes.
const (
	KindMinKey   Kind = -1
	KindDouble   Kind = 1
	KindString   Kind = 2
	KindDocument Kind = 3
	KindArray    Kind = 4
	KindBinary   Kind = 5
	KindObjectID Kind = 7
	KindBool     Kind = 8
	KindDateTime Kind = 9
	KindNull     Kind = 10
	KindRegex    Kind = 11
	KindInt32    Kind = 16
	KindInt64    Kind = 18
	KindMaxKey   Kind = 127
)

var kindNames = map[Kind]string{
	KindMinKey:   "minKey",
	KindDouble:   "double",
	KindString:   "string",
	KindDocument: "object",
	KindArray:    "array",
	KindBinary:   "binData",
	KindObjectID: "objectId",
	KindBool:     "bool",
	KindDateTime: "date",
	KindNull:     "null",
	KindRegex:    "regex",
	KindInt32:    "int",
	KindInt64:    "long",
	KindMaxKey:   "maxKey",
}

// String returns the alias accepted by $type for k.
func (k Kind) String() string {
	if s, ok := kindNames[k]; ok {
		return s
	}
	return "unknown"
}

// KindByName returns the kind with the given $type alias.
func KindByName(name string) (Kind, bool) {
	for k, n := range kindNames {
		if n == name {
			return k, true
		}
	}
	return 0, false
}

// KindOf returns the kind of v. A nil interface is reported as null.
func KindOf(v Value) Kind {
	switch v.(type) {
	case MinKey:
		return KindMinKey
	case Double:
		return KindDouble
	case String:
		return KindString
	case *Document:
		return KindDocument
	case Array:
		return KindArray
	case Binary:
		return KindBinary
	case ObjectID:
		return KindObjectID
	case Bool:
		return KindBool
	case DateTime:
		return KindDateTime
	case Regex:
		return KindRegex
	case Int32:
		return KindInt32
	case Int64:
		return KindInt64
	case MaxKey:
		return KindMaxKey
	default:
		return KindNull
	}
}

// IsNumber reports whether v is an Int32, Int64 or Double.
func IsNumber(v Value) bool {
	switch v.(type) {
	case Int32, Int64, Double:
		return true
	}
	return false
}

// IsNull reports whether v is null or a nil interface.
func IsNull(v Value) bool {
	switch v.(type) {
	case nil, Null:
		return true
	}
	return false
}

// AsFloat returns the numeric value of v as float64.
func AsFloat(v Value) (float64, bool) {
	switch t := v.(type) {
	case Int32:
		return float64(t), true
	case Int64:
		return float64(t), true
	case Double:
		return float64(t), true
	}
	return 0, false
}

// AsInt returns v as int64 when v is a number with an integral value in range.
func AsInt(v Value) (int64, bool) {
	switch t := v.(type) {
	case Int32:
		return int64(t), true
	case Int64:
		return int64(t), true
	case Double:
		f := float64(t)
		if f != math.Trunc(f) || f < math.MinInt64 || f >= math.MaxInt64 {
			return 0, false
		}
		return int64(f), true
	}
	return 0, false
}

// Truthy reports the boolean interpretation of v used by expressions: null,
// false and numeric zero are false, everything else is true.
func Truthy(v Value) bool {
	switch t := v.(type) {
	case nil, Null:
		return false
	case Bool:
		return bool(t)
	case Int32:
		return t != 0
	case Int64:
		return t != 0
	case Double:
		return t != 0
	}
	return true
}

// Identical reports whether a and b are the same value including numeric
// subtype and field order. Unlike query equality, Int32(1) and Double(1) are
// not identical.
func Identical(a, b Value) bool {
	if a == nil {
		a = Null{}
	}
	if b == nil {
		b = Null{}
	}
	switch x := a.(type) {
	case Double:
		y, ok := b.(Double)
		if !ok {
			return false
		}
		if math.IsNaN(float64(x)) {
			return math.IsNaN(float64(y))
		}
		return x == y
	case Binary:
		y, ok := b.(Binary)
		return ok && x.Subtype == y.Subtype && bytes.Equal(x.Data, y.Data)
	case Array:
		y, ok := b.(Array)
		if !ok || len(x) != len(y) {
			return false
		}
		for n := range x {
			if !Identical(x[n], y[n]) {
				return false
			}
		}
		return true
	case *Document:
		y, ok := b.(*Document)
		if !ok || x.Len() != y.Len() {
			return false
		}
		for n, f := range x.fields {
			g := y.fields[n]
			if f.Key != g.Key || !Identical(f.Value, g.Value) {
				return false
			}
		}
		return true
	default:
		return a == b
	}
}

// Clone returns a deep copy of v.
func Clone(v Value) Value {
	switch t := v.(type) {
	case nil:
		return Null{}
	case Array:
		res := make(Array, len(t))
		for n, item := range t {
			res[n] = Clone(item)
		}
		return res
	case *Document:
		return t.Clone()
	case Binary:
		return Binary{Subtype: t.Subtype, Data: bytes.Clone(t.Data)}
	default:
		return v
	}
}
