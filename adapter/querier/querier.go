// Package querier contains the default [domain.Querier] implementation.
package querier

import (
	"fmt"
	"slices"

	"github.com/vinicius-lino-figueiredo/docengine/adapter/comparer"
	"github.com/vinicius-lino-figueiredo/docengine/adapter/fieldnavigator"
	"github.com/vinicius-lino-figueiredo/docengine/adapter/matcher"
	"github.com/vinicius-lino-figueiredo/docengine/adapter/projector"
	"github.com/vinicius-lino-figueiredo/docengine/domain"
	"github.com/vinicius-lino-figueiredo/docengine/pkg/value"
)

// Querier implements [domain.Querier].
type Querier struct {
	newMatcher domain.MatcherFactory
	cmpr       domain.Comparer
	fn         domain.FieldNavigator
	proj       domain.Projector
}

// NewQuerier returns a new implementation of [domain.Querier].
func NewQuerier(opts ...Option) domain.Querier {
	q := Querier{
		cmpr: comparer.NewComparer(),
	}
	for _, opt := range opts {
		opt(&q)
	}
	if q.fn == nil {
		q.fn = fieldnavigator.NewFieldNavigator()
	}
	if q.proj == nil {
		q.proj = projector.NewProjector(projector.WithFieldNavigator(q.fn))
	}
	if q.newMatcher == nil {
		q.newMatcher = func() domain.Matcher {
			return matcher.NewMatcher(
				matcher.WithComparer(q.cmpr),
				matcher.WithFieldNavigator(q.fn),
			)
		}
	}
	return &q
}

// Query implements [domain.Querier]. Candidates are filtered in the given
// order, then sorted, paged and projected.
func (q *Querier) Query(candidates []*value.Document, opts ...domain.QueryOption) ([]*value.Document, error) {
	options := domain.QueryOptions{Cap: 256}
	for _, opt := range opts {
		opt(&options)
	}

	res, finished, err := q.filter(candidates, options)
	if err != nil {
		return nil, err
	}

	if !finished && options.Sort != nil {
		sorted, err := q.sort(res, options.Sort)
		if err != nil {
			return nil, fmt.Errorf("sorting: %w", err)
		}
		res = q.skipAndLimit(sorted, options.Skip, options.Limit)
	}

	res, err = q.proj.Project(res, options.Projection)
	if err != nil {
		return nil, fmt.Errorf("projecting: %w", err)
	}
	return res, nil
}

// filter returns the matching candidates. Without a sort, skip and limit are
// applied while filtering and the returned bool tells the limit was reached.
func (q *Querier) filter(data []*value.Document, opts domain.QueryOptions) ([]*value.Document, bool, error) {
	var skipped int64
	res := make([]*value.Document, 0, min(opts.Cap, len(data)))

	mtchr := q.newMatcher()
	if err := mtchr.SetQuery(opts.Query); err != nil {
		return nil, false, err
	}

	limit := abs(opts.Limit)
	for _, doc := range data {
		matches, err := mtchr.Match(doc)
		if err != nil {
			return nil, false, fmt.Errorf("matching document: %w", err)
		}
		if !matches {
			continue
		}
		if opts.Sort == nil {
			if skipped < opts.Skip {
				skipped++
				continue
			}
			if limit > 0 && int64(len(res)) == limit {
				return res, true, nil
			}
		}
		res = append(res, doc)
	}
	return res, false, nil
}

func (q *Querier) sort(data []*value.Document, sort domain.Sort) ([]*value.Document, error) {
	type criterion struct {
		addr  []string
		order int
	}
	crits := make([]criterion, len(sort))
	for n, s := range sort {
		addr, err := q.fn.GetAddress(s.Key)
		if err != nil {
			return nil, fmt.Errorf("getting address: %w", err)
		}
		order := 1
		if s.Order < 0 {
			order = -1
		}
		crits[n] = criterion{addr: addr, order: order}
	}

	type keyed struct {
		doc  *value.Document
		keys []value.Value
	}
	rows := make([]keyed, len(data))
	for n, doc := range data {
		keys := make([]value.Value, len(crits))
		for c, crit := range crits {
			keys[c] = SortKey(q.fn, doc, crit.addr)
		}
		rows[n] = keyed{doc: doc, keys: keys}
	}

	slices.SortStableFunc(rows, func(a, b keyed) int {
		for n, crit := range crits {
			if comp := q.cmpr.Compare(a.keys[n], b.keys[n]); comp != 0 {
				return comp * crit.order
			}
		}
		return 0
	})

	res := make([]*value.Document, len(rows))
	for n, row := range rows {
		res[n] = row.doc
	}
	return res, nil
}

// SortKey returns the value doc is sorted by for addr: the single resolved
// value, an array of them when the path crossed an array, or null when the
// path is missing.
func SortKey(fn domain.FieldNavigator, doc value.Value, addr []string) value.Value {
	var found value.Array
	for v := range fn.Resolve(doc, addr...) {
		found = append(found, v)
	}
	switch len(found) {
	case 0:
		return value.Null{}
	case 1:
		return found[0]
	}
	return found
}

func (q *Querier) skipAndLimit(data []*value.Document, skip, limit int64) []*value.Document {
	length := int64(len(data))

	skip = max(skip, 0)      // skip cannot be negative
	skip = min(skip, length) // cannot skip more than length

	limit = abs(limit)
	if limit == 0 {
		return data[skip:]
	}
	return data[skip:min(skip+limit, length)]
}

func abs(n int64) int64 {
	if n < 0 {
		return -n
	}
	return n
}
