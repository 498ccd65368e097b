package collection

import (
	"context"
	"errors"
	"strings"

	"github.com/vinicius-lino-figueiredo/docengine/domain"
	"github.com/vinicius-lino-figueiredo/docengine/pkg/value"
)

type picker func(ctx context.Context, qry *value.Document) ([]*domain.Record, bool, error)

// candidates returns a superset of the records matching qry, in natural
// order. The first usable index wins: _id equality, single field equality,
// compound equality, $in, then a range. Callers must hold the lock.
func (c *Collection) candidates(ctx context.Context, qry *value.Document) ([]*domain.Record, error) {
	if qry.Len() == 0 {
		return c.records, nil
	}
	for _, pick := range []picker{
		c.idCandidates,
		c.simpleCandidates,
		c.compoundCandidates,
		c.inCandidates,
		c.rangeCandidates,
	} {
		recs, ok, err := pick(ctx, qry)
		if err != nil || ok {
			return recs, err
		}
	}
	return c.records, nil
}

func (c *Collection) idCandidates(_ context.Context, qry *value.Document) ([]*domain.Record, bool, error) {
	v, ok := qry.Get("_id")
	if !ok {
		return nil, false, nil
	}
	eq, ok := indexable(v)
	if !ok {
		return nil, false, nil
	}
	recs, err := c.indexes[domain.IDIndexName].GetMatching(eq)
	return recs, true, err
}

func (c *Collection) simpleCandidates(_ context.Context, qry *value.Document) ([]*domain.Record, bool, error) {
	for field, v := range qry.All() {
		idx, ok := c.singleFieldIndex(field)
		if !ok {
			continue
		}
		eq, ok := indexable(v)
		if !ok || !usable(idx, eq) {
			continue
		}
		recs, err := idx.GetMatching(eq)
		return recs, true, err
	}
	return nil, false, nil
}

func (c *Collection) compoundCandidates(_ context.Context, qry *value.Document) ([]*domain.Record, bool, error) {
IndexLoop:
	for _, name := range c.indexOrder {
		idx := c.indexes[name]
		spec := idx.Spec()
		if len(spec.Keys) < 2 {
			continue
		}
		tuple := make(value.Array, 0, len(spec.Keys))
		for _, k := range spec.Keys {
			v, ok := qry.Get(k.Field)
			if !ok {
				continue IndexLoop
			}
			eq, ok := indexable(v)
			if !ok || !usable(idx, eq) {
				continue IndexLoop
			}
			tuple = append(tuple, eq)
		}
		recs, err := idx.GetMatching(tuple)
		return recs, true, err
	}
	return nil, false, nil
}

func (c *Collection) inCandidates(_ context.Context, qry *value.Document) ([]*domain.Record, bool, error) {
FieldLoop:
	for field, v := range qry.All() {
		idx, ok := c.singleFieldIndex(field)
		if !ok {
			continue
		}
		ops, ok := v.(*value.Document)
		if !ok || !isOperatorDoc(ops) {
			continue
		}
		in, ok := ops.Get("$in")
		if !ok {
			continue
		}
		arr, ok := in.(value.Array)
		if !ok {
			continue
		}
		for _, e := range arr {
			switch e.(type) {
			case value.Array, value.Regex:
				continue FieldLoop
			}
			if !usable(idx, e) {
				continue FieldLoop
			}
		}
		recs, err := idx.GetMatching(arr...)
		return recs, true, err
	}
	return nil, false, nil
}

func (c *Collection) rangeCandidates(ctx context.Context, qry *value.Document) ([]*domain.Record, bool, error) {
	for field, v := range qry.All() {
		idx, ok := c.singleFieldIndex(field)
		if !ok {
			continue
		}
		ops, ok := v.(*value.Document)
		if !ok || !isOperatorDoc(ops) {
			continue
		}

		var bounds domain.Bounds
		for op, arg := range ops.All() {
			switch arg.(type) {
			case value.Null, value.Array, value.Regex:
				continue
			}
			switch op {
			case "$gt", "$gte":
				bounds.Lower = &domain.Bound{Value: arg, Inclusive: op == "$gte"}
			case "$lt", "$lte":
				bounds.Upper = &domain.Bound{Value: arg, Inclusive: op == "$lte"}
			}
		}
		if bounds.Lower == nil && bounds.Upper == nil {
			continue
		}
		// Array elements can meet each bound separately.
		if idx.Multikey() && bounds.Lower != nil && bounds.Upper != nil {
			bounds.Upper = nil
		}
		recs, err := idx.GetBetweenBounds(ctx, bounds)
		return recs, true, err
	}
	return nil, false, nil
}

func (c *Collection) singleFieldIndex(field string) (domain.Index, bool) {
	for _, name := range c.indexOrder {
		idx := c.indexes[name]
		keys := idx.Spec().Keys
		if len(keys) == 1 && keys[0].Field == field {
			return idx, true
		}
	}
	return nil, false
}

// usable reports whether looking eq up in idx finds every matching record.
// Sparse indexes miss the documents null equality matches.
func usable(idx domain.Index, eq value.Value) bool {
	return !idx.Spec().Sparse || !value.IsNull(eq)
}

func isOperatorDoc(doc *value.Document) bool {
	return doc.Len() > 0 && strings.HasPrefix(doc.Fields()[0].Key, "$")
}

// equalityValue returns the value a filter term requires a field to equal, if
// the term is a plain equality.
func equalityValue(v value.Value) (value.Value, bool) {
	switch t := v.(type) {
	case *value.Document:
		if !isOperatorDoc(t) {
			return t, true
		}
		if t.Len() != 1 {
			return nil, false
		}
		return t.Get("$eq")
	case value.Regex:
		return nil, false
	}
	return v, true
}

// indexable is like equalityValue but also rejects values that can match
// documents stored under other keys.
func indexable(v value.Value) (value.Value, bool) {
	eq, ok := equalityValue(v)
	if !ok {
		return nil, false
	}
	switch eq.(type) {
	case value.Array, value.Regex:
		return nil, false
	}
	return eq, true
}

func (c *Collection) addToIndexes(ctx context.Context, recs ...*domain.Record) error {
	var failingIndex int
	var err error
	for i, name := range c.indexOrder {
		if err = c.indexes[name].Insert(ctx, recs...); err != nil {
			failingIndex = i
			break
		}
	}
	if err != nil {
		for i := range failingIndex {
			if removeErr := c.indexes[c.indexOrder[i]].Remove(ctx, recs...); removeErr != nil {
				return errors.Join(err, removeErr)
			}
		}
		return err
	}
	return nil
}

func (c *Collection) removeFromIndexes(ctx context.Context, recs ...*domain.Record) error {
	var failingIndex int
	var err error
	for i, name := range c.indexOrder {
		if err = c.indexes[name].Remove(ctx, recs...); err != nil {
			failingIndex = i
			break
		}
	}
	if err != nil {
		for i := range failingIndex {
			if insertErr := c.indexes[c.indexOrder[i]].Insert(ctx, recs...); insertErr != nil {
				return errors.Join(err, insertErr)
			}
		}
		return err
	}
	return nil
}

func (c *Collection) updateIndexes(ctx context.Context, pairs ...domain.RecordUpdate) error {
	var failingIndex int
	var err error
	for i, name := range c.indexOrder {
		if err = c.indexes[name].Update(ctx, pairs...); err != nil {
			failingIndex = i
			break
		}
	}
	if err != nil {
		for i := range failingIndex {
			if revertErr := c.indexes[c.indexOrder[i]].RevertUpdate(ctx, pairs...); revertErr != nil {
				err = errors.Join(err, revertErr)
				break
			}
		}
	}
	return err
}
