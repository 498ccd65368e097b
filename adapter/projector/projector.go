// Package projector contains the default [domain.Projector] implementation.
package projector

import (
	"errors"

	"github.com/vinicius-lino-figueiredo/docengine/adapter/fieldnavigator"
	"github.com/vinicius-lino-figueiredo/docengine/domain"
	"github.com/vinicius-lino-figueiredo/docengine/pkg/value"
)

var (
	// ErrMixOmitType is returned when user provides a projection object
	// with mixed "omit" and "show" operators.
	ErrMixOmitType = errors.New("can't both keep and omit fields except for _id")
)

// Projector implements [domain.Projector].
type Projector struct {
	fn domain.FieldNavigator
}

// NewProjector returns a new implementation of [domain.Projector].
func NewProjector(opts ...Option) domain.Projector {
	p := Projector{}
	for _, opt := range opts {
		opt(&p)
	}
	if p.fn == nil {
		p.fn = fieldnavigator.NewFieldNavigator()
	}
	return &p
}

// node is a projected path tree. A leaf ends a projected path.
type node struct {
	leaf     bool
	children map[string]*node
}

func (n *node) add(addr []string) bool {
	curr := n
	for _, part := range addr {
		if curr.leaf {
			return false
		}
		if curr.children == nil {
			curr.children = make(map[string]*node)
		}
		next, ok := curr.children[part]
		if !ok {
			next = &node{}
			curr.children[part] = next
		}
		curr = next
	}
	if curr.leaf || len(curr.children) > 0 {
		return false
	}
	curr.leaf = true
	return true
}

// Project implements [domain.Projector]. Inclusion projections keep the listed
// paths plus _id unless it is excluded, exclusion projections drop them.
// Paths crossing arrays apply to every document element.
func (q *Projector) Project(docs []*value.Document, proj *value.Document) ([]*value.Document, error) {
	if proj.Len() == 0 {
		return docs, nil
	}

	keepID := true
	tree := &node{}
	fields, oneFields := 0, 0
	for field, v := range proj.All() {
		keep, err := flag(field, v)
		if err != nil {
			return nil, err
		}
		if field == "_id" {
			keepID = keep
			continue
		}
		fields++
		if keep {
			oneFields++
		}
		if oneFields > 0 && oneFields != fields {
			return nil, ErrMixOmitType
		}
		addr, err := q.fn.GetAddress(field)
		if err != nil {
			return nil, err
		}
		if !tree.add(addr) {
			return nil, domain.ErrInvalidFieldName{Field: field, Reason: "path collision in projection"}
		}
	}

	include := oneFields > 0 || (fields == 0 && keepID)
	if include && keepID {
		tree.add([]string{"_id"})
	}
	if !include && !keepID {
		tree.add([]string{"_id"})
	}

	res := make([]*value.Document, len(docs))
	for n, doc := range docs {
		if include {
			res[n] = includeDoc(doc, tree)
		} else {
			res[n] = excludeDoc(doc, tree)
		}
	}
	return res, nil
}

func flag(field string, v value.Value) (bool, error) {
	switch t := v.(type) {
	case value.Bool:
		return bool(t), nil
	case value.Int32, value.Int64, value.Double:
		return value.Truthy(t), nil
	}
	return false, domain.ErrTypeMismatch{Op: "projection of " + field, Want: "number or bool", Actual: v}
}

func includeDoc(doc *value.Document, tree *node) *value.Document {
	res := value.NewDocument()
	for k, v := range doc.All() {
		child, ok := tree.children[k]
		if !ok {
			continue
		}
		if child.leaf {
			res.Set(k, value.Clone(v))
			continue
		}
		if sub, ok := includeValue(v, child); ok {
			res.Set(k, sub)
		}
	}
	return res
}

func includeValue(v value.Value, tree *node) (value.Value, bool) {
	switch t := v.(type) {
	case *value.Document:
		return includeDoc(t, tree), true
	case value.Array:
		res := make(value.Array, 0, len(t))
		for _, item := range t {
			if sub, ok := includeValue(item, tree); ok {
				res = append(res, sub)
			}
		}
		return res, true
	}
	return nil, false
}

func excludeDoc(doc *value.Document, tree *node) *value.Document {
	res := value.NewDocument()
	for k, v := range doc.All() {
		child, ok := tree.children[k]
		if !ok {
			res.Set(k, value.Clone(v))
			continue
		}
		if child.leaf {
			continue
		}
		res.Set(k, excludeValue(v, child))
	}
	return res
}

func excludeValue(v value.Value, tree *node) value.Value {
	switch t := v.(type) {
	case *value.Document:
		return excludeDoc(t, tree)
	case value.Array:
		res := make(value.Array, len(t))
		for n, item := range t {
			res[n] = excludeValue(item, tree)
		}
		return res
	}
	return value.Clone(v)
}
