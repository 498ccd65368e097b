package value

import (
	"iter"
	"slices"
)

// Field is a single key/value pair of a [Document].
type Field struct {
	Key   string
	Value Value
}

// Document is an ordered mapping from unique string keys to values. Field
// order is the insertion order and is preserved by every operation, except
// [Document.Unset] which closes the gap left by the removed key.
type Document struct {
	fields []Field
}

// NewDocument returns a document holding the given fields. Later duplicates
// replace earlier ones in place.
func NewDocument(fields ...Field) *Document {
	d := &Document{fields: make([]Field, 0, len(fields))}
	for _, f := range fields {
		d.Set(f.Key, f.Value)
	}
	return d
}

// D builds a document from alternating keys and values. It panics when a key
// is not a string or a value is not a [Value], and is meant for literals.
func D(kv ...any) *Document {
	if len(kv)%2 != 0 {
		panic("value: odd number of arguments to D")
	}
	d := &Document{fields: make([]Field, 0, len(kv)/2)}
	for n := 0; n < len(kv); n += 2 {
		v, ok := kv[n+1].(Value)
		if !ok && kv[n+1] != nil {
			panic("value: D argument is not a Value")
		}
		d.Set(kv[n].(string), v)
	}
	return d
}

// Len returns the number of fields.
func (d *Document) Len() int {
	if d == nil {
		return 0
	}
	return len(d.fields)
}

func (d *Document) index(key string) int {
	if d == nil {
		return -1
	}
	for n, f := range d.fields {
		if f.Key == key {
			return n
		}
	}
	return -1
}

// Get returns the value stored under key and whether it exists.
func (d *Document) Get(key string) (Value, bool) {
	if n := d.index(key); n >= 0 {
		return d.fields[n].Value, true
	}
	return nil, false
}

// Has reports whether key exists.
func (d *Document) Has(key string) bool {
	return d.index(key) >= 0
}

// Set replaces the value of an existing key in place or appends a new field.
func (d *Document) Set(key string, v Value) {
	if v == nil {
		v = Null{}
	}
	if n := d.index(key); n >= 0 {
		d.fields[n].Value = v
		return
	}
	d.fields = append(d.fields, Field{Key: key, Value: v})
}

// SetFirst sets key and moves it to the first position.
func (d *Document) SetFirst(key string, v Value) {
	if v == nil {
		v = Null{}
	}
	if n := d.index(key); n >= 0 {
		d.fields = slices.Delete(d.fields, n, n+1)
	}
	d.fields = slices.Insert(d.fields, 0, Field{Key: key, Value: v})
}

// Unset removes key and reports whether it existed.
func (d *Document) Unset(key string) bool {
	n := d.index(key)
	if n < 0 {
		return false
	}
	d.fields = slices.Delete(d.fields, n, n+1)
	return true
}

// Keys returns the keys in order.
func (d *Document) Keys() []string {
	keys := make([]string, d.Len())
	for n, f := range d.Fields() {
		keys[n] = f.Key
	}
	return keys
}

// Fields returns the underlying fields. The slice must not be modified.
func (d *Document) Fields() []Field {
	if d == nil {
		return nil
	}
	return d.fields
}

// All returns an ordered iterator over the fields.
func (d *Document) All() iter.Seq2[string, Value] {
	return func(yield func(string, Value) bool) {
		for _, f := range d.Fields() {
			if !yield(f.Key, f.Value) {
				return
			}
		}
	}
}

// ID returns the _id field.
func (d *Document) ID() (Value, bool) {
	return d.Get("_id")
}

// Clone returns a deep copy of d.
func (d *Document) Clone() *Document {
	if d == nil {
		return NewDocument()
	}
	res := &Document{fields: make([]Field, len(d.fields))}
	for n, f := range d.fields {
		res.fields[n] = Field{Key: f.Key, Value: Clone(f.Value)}
	}
	return res
}

// String implements [fmt.Stringer] using the canonical text format.
func (d *Document) String() string {
	return Format(d)
}
