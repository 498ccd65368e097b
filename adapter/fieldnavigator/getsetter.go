package fieldnavigator

import (
	"github.com/vinicius-lino-figueiredo/docengine/domain"
	"github.com/vinicius-lino-figueiredo/docengine/pkg/value"
)

// ArrayGetSetter is a [domain.GetSetter] that can read and write a specific
// index of a [value.Array].
type ArrayGetSetter struct {
	Array value.Array
	Index int
}

// NewGetSetterWithArrayIndex returns a new implementation of [domain.GetSetter]
// that will represent an element of arr.
func NewGetSetterWithArrayIndex(arr value.Array, index int) domain.GetSetter {
	return &ArrayGetSetter{Array: arr, Index: index}
}

func (a *ArrayGetSetter) inRange() bool {
	return a.Index >= 0 && a.Index < len(a.Array)
}

// Get implements [domain.GetSetter].
func (a *ArrayGetSetter) Get() (value.Value, bool) {
	if a.inRange() {
		return a.Array[a.Index], true
	}
	return nil, false
}

// Set implements [domain.GetSetter].
func (a *ArrayGetSetter) Set(v value.Value) {
	if v == nil {
		v = value.Null{}
	}
	if a.inRange() {
		a.Array[a.Index] = v
	}
}

// Unset implements [domain.GetSetter]. Array elements are never removed, they
// become null.
func (a *ArrayGetSetter) Unset() {
	if a.inRange() {
		a.Array[a.Index] = value.Null{}
	}
}

// DocGetSetter is a [domain.GetSetter] that can read and write a specific key
// of a [value.Document].
type DocGetSetter struct {
	Doc *value.Document
	Key string
}

// NewGetSetterWithDoc returns a new implementation of [domain.GetSetter] that
// will represent a field of doc.
func NewGetSetterWithDoc(doc *value.Document, key string) domain.GetSetter {
	return &DocGetSetter{Doc: doc, Key: key}
}

// Get implements [domain.GetSetter].
func (d *DocGetSetter) Get() (value.Value, bool) {
	return d.Doc.Get(d.Key)
}

// Set implements [domain.GetSetter].
func (d *DocGetSetter) Set(v value.Value) {
	d.Doc.Set(d.Key, v)
}

// Unset implements [domain.GetSetter].
func (d *DocGetSetter) Unset() {
	d.Doc.Unset(d.Key)
}

// EmptyGetSetter is a [domain.GetSetter] of a location that does not exist.
type EmptyGetSetter struct{}

// NewGetSetterEmpty returns a new [domain.GetSetter] of an undefined value.
func NewGetSetterEmpty() domain.GetSetter {
	return &EmptyGetSetter{}
}

// Get implements [domain.GetSetter].
func (gs *EmptyGetSetter) Get() (value.Value, bool) { return nil, false }

// Set implements [domain.GetSetter].
func (gs *EmptyGetSetter) Set(value.Value) {}

// Unset implements [domain.GetSetter].
func (gs *EmptyGetSetter) Unset() {}
