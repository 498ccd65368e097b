// Package fieldnavigator resolves dotted field paths. Reads project over
// arrays and may reach many values, writes address a single concrete
// location.
package fieldnavigator

import (
	"fmt"
	"iter"
	"strconv"
	"strings"

	"github.com/vinicius-lino-figueiredo/docengine/domain"
	"github.com/vinicius-lino-figueiredo/docengine/pkg/value"
)

// FieldNavigator implements [domain.FieldNavigator].
type FieldNavigator struct{}

// NewFieldNavigator returns a new instance of [domain.FieldNavigator].
func NewFieldNavigator() domain.FieldNavigator {
	return &FieldNavigator{}
}

// GetAddress implements [domain.FieldNavigator].
func (fn *FieldNavigator) GetAddress(field string) ([]string, error) {
	addr := strings.Split(field, ".")
	for _, part := range addr {
		if part == "" {
			return nil, domain.ErrInvalidFieldName{
				Field:  field,
				Reason: "empty field path component",
			}
		}
	}
	return addr, nil
}

// Walk implements [domain.FieldNavigator].
func (fn *FieldNavigator) Walk(v value.Value, addr ...string) iter.Seq[domain.Found] {
	return func(yield func(domain.Found) bool) {
		walk(v, addr, -1, yield)
	}
}

// Resolve implements [domain.FieldNavigator].
func (fn *FieldNavigator) Resolve(v value.Value, addr ...string) iter.Seq[value.Value] {
	return func(yield func(value.Value) bool) {
		for f := range fn.Walk(v, addr...) {
			if !yield(f.Value) {
				return
			}
		}
	}
}

// walk returns false when yield asked to stop.
func walk(v value.Value, addr []string, pos int, yield func(domain.Found) bool) bool {
	if len(addr) == 0 {
		return yield(domain.Found{Value: v, Pos: pos})
	}
	switch t := v.(type) {
	case *value.Document:
		child, ok := t.Get(addr[0])
		if !ok {
			return true
		}
		return walk(child, addr[1:], pos, yield)
	case value.Array:
		if i, ok := arrayIndex(addr[0]); ok && i < len(t) {
			return walk(t[i], addr[1:], pos, yield)
		}
		for n, item := range t {
			doc, ok := item.(*value.Document)
			if !ok {
				continue
			}
			p := pos
			if p < 0 {
				p = n
			}
			if !walk(doc, addr, p, yield) {
				return false
			}
		}
	}
	return true
}

func arrayIndex(part string) (int, bool) {
	if part == "" || part[0] < '0' || part[0] > '9' {
		return 0, false
	}
	i, err := strconv.Atoi(part)
	if err != nil {
		return 0, false
	}
	return i, true
}

// GetField implements [domain.FieldNavigator]. A location that cannot be
// reached without creating anything is returned as an empty GetSetter.
func (fn *FieldNavigator) GetField(doc *value.Document, addr ...string) (domain.GetSetter, error) {
	if len(addr) == 0 {
		return nil, domain.ErrInvalidFieldName{Reason: "empty field path"}
	}
	var curr value.Value = doc
	for n, part := range addr {
		var gs domain.GetSetter
		switch t := curr.(type) {
		case *value.Document:
			gs = NewGetSetterWithDoc(t, part)
		case value.Array:
			i, ok := arrayIndex(part)
			if !ok || i >= len(t) {
				return NewGetSetterEmpty(), nil
			}
			gs = NewGetSetterWithArrayIndex(t, i)
		default:
			return NewGetSetterEmpty(), nil
		}
		if n == len(addr)-1 {
			return gs, nil
		}
		v, ok := gs.Get()
		if !ok {
			return NewGetSetterEmpty(), nil
		}
		curr = v
	}
	return NewGetSetterEmpty(), nil
}

// EnsureField implements [domain.FieldNavigator].
func (fn *FieldNavigator) EnsureField(doc *value.Document, addr ...string) (domain.GetSetter, error) {
	if len(addr) == 0 {
		return nil, domain.ErrInvalidFieldName{Reason: "empty field path"}
	}
	var (
		curr   value.Value = doc
		parent domain.GetSetter
	)
	for n, part := range addr {
		last := n == len(addr)-1
		var gs domain.GetSetter
		switch t := curr.(type) {
		case *value.Document:
			gs = NewGetSetterWithDoc(t, part)
		case value.Array:
			i, ok := arrayIndex(part)
			if !ok {
				return nil, cannotCreate(addr, n, t)
			}
			if i >= len(t) {
				grown := make(value.Array, i+1)
				copy(grown, t)
				for j := len(t); j <= i; j++ {
					grown[j] = value.Null{}
				}
				parent.Set(grown)
				t = grown
			}
			gs = NewGetSetterWithArrayIndex(t, i)
		default:
			return nil, cannotCreate(addr, n, t)
		}
		if last {
			return gs, nil
		}
		v, ok := gs.Get()
		if !ok || isPadding(curr, v) {
			v = value.NewDocument()
			gs.Set(v)
		}
		parent, curr = gs, v
	}
	return nil, nil
}

// isPadding reports whether v is a null inside an array, which is replaced
// by a document when a path goes through it.
func isPadding(container, v value.Value) bool {
	_, isArr := container.(value.Array)
	_, isNull := v.(value.Null)
	return isArr && isNull
}

func cannotCreate(addr []string, n int, in value.Value) error {
	return domain.ErrTypeMismatch{
		Op:     fmt.Sprintf("path %q", strings.Join(addr[:n+1], ".")),
		Want:   "document",
		Actual: in,
	}
}
