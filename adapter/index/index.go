// Package index contains the default [domain.Index] implementation.
package index

import (
	"context"
	"errors"
	"fmt"
	"iter"
	"slices"

	"github.com/vinicius-lino-figueiredo/bst"
	"github.com/vinicius-lino-figueiredo/bst/adapter/avl"
	"github.com/vinicius-lino-figueiredo/docengine/adapter/comparer"
	"github.com/vinicius-lino-figueiredo/docengine/adapter/fieldnavigator"
	"github.com/vinicius-lino-figueiredo/docengine/adapter/hasher"
	"github.com/vinicius-lino-figueiredo/docengine/domain"
	"github.com/vinicius-lino-figueiredo/docengine/pkg/uncomparable"
	"github.com/vinicius-lino-figueiredo/docengine/pkg/value"
)

// Index implements [domain.Index]. Single field indexes are keyed by the
// field value, compound ones by an array holding one value per field. Array
// values contribute one key per element.
type Index struct {
	spec  domain.IndexSpec
	addrs [][]string
	// Exported to allow testing. Should not be a problem because Index is
	// used as interface.
	Tree           bst.BST[value.Value, *domain.Record]
	comparer       domain.Comparer
	bstComparer    bst.Comparer[value.Value, *domain.Record]
	hasher         domain.Hasher
	fieldNavigator domain.FieldNavigator
	multikey       bool
}

// NewIndex returns a new implementation of domain.Index.
func NewIndex(options ...domain.IndexOption) (domain.Index, error) {
	opts := domain.IndexOptions{
		Comparer:       comparer.NewComparer(),
		Hasher:         hasher.NewHasher(),
		FieldNavigator: fieldnavigator.NewFieldNavigator(),
	}
	for _, option := range options {
		option(&opts)
	}

	if len(opts.Keys) == 0 {
		return nil, domain.ErrNoIndexKeys
	}

	addrs := make([][]string, len(opts.Keys))
	for n, k := range opts.Keys {
		if k.Direction != 1 && k.Direction != -1 {
			return nil, domain.ErrTypeMismatch{Op: fmt.Sprintf("index key %q", k.Field), Want: "1 or -1", Actual: value.Int32(k.Direction)}
		}
		addr, err := opts.FieldNavigator.GetAddress(k.Field)
		if err != nil {
			return nil, err
		}
		addrs[n] = addr
	}

	if opts.Name == "" {
		opts.Name = domain.DefaultIndexName(opts.Keys)
	}

	bstComparer := NewBSTComparer(opts.Comparer)

	return &Index{
		spec: domain.IndexSpec{
			Name:   opts.Name,
			Keys:   slices.Clone(opts.Keys),
			Unique: opts.Unique,
			Sparse: opts.Sparse,
		},
		addrs:          addrs,
		Tree:           avl.NewBST(opts.Unique, 8, bstComparer),
		comparer:       opts.Comparer,
		bstComparer:    bstComparer,
		hasher:         opts.Hasher,
		fieldNavigator: opts.FieldNavigator,
	}, nil
}

// Spec implements [domain.Index].
func (i *Index) Spec() domain.IndexSpec {
	return i.spec
}

// Reset implements [domain.Index].
func (i *Index) Reset(ctx context.Context, recs ...*domain.Record) error {
	select {
	case <-ctx.Done():
		return ctx.Err()
	default:
	}
	i.Tree = avl.NewBST(i.spec.Unique, 8, i.bstComparer)
	i.multikey = false
	return i.Insert(ctx, recs...)
}

// Multikey implements [domain.Index]. Once an array was indexed the index
// stays multikey until it is reset.
func (i *Index) Multikey() bool {
	return i.multikey
}

// getKeys returns the distinct keys of doc. Sparse indexes return no keys for
// documents that have none of the indexed fields.
func (i *Index) getKeys(doc *value.Document) []value.Value {
	perField := make([][]value.Value, len(i.addrs))
	found := false
	for n, addr := range i.addrs {
		var vals []value.Value
		for v := range i.fieldNavigator.Resolve(doc, addr...) {
			found = true
			if arr, ok := v.(value.Array); ok {
				i.multikey = true
				vals = append(vals, arr...)
				continue
			}
			vals = append(vals, v)
		}
		if len(vals) == 0 {
			vals = []value.Value{value.Null{}}
		}
		perField[n] = i.distinct(vals)
	}

	if i.spec.Sparse && !found {
		return nil
	}

	if len(perField) == 1 {
		return perField[0]
	}

	keys := []value.Value{value.Array{}}
	for _, vals := range perField {
		next := make([]value.Value, 0, len(keys)*len(vals))
		for _, k := range keys {
			for _, v := range vals {
				tuple := slices.Clone(k.(value.Array))
				next = append(next, append(tuple, v))
			}
		}
		keys = next
	}
	return keys
}

func (i *Index) distinct(vals []value.Value) []value.Value {
	slices.SortStableFunc(vals, i.comparer.Compare)
	return slices.CompactFunc(vals, i.comparer.Equal)
}

// keyDocument describes key the way duplicate key errors report it.
func (i *Index) keyDocument(key value.Value) *value.Document {
	if len(i.spec.Keys) == 1 {
		return value.D(i.spec.Keys[0].Field, key)
	}
	doc := value.NewDocument()
	tuple, _ := key.(value.Array)
	for n, k := range i.spec.Keys {
		if n < len(tuple) {
			doc.Set(k.Field, tuple[n])
		}
	}
	return doc
}

type entry struct {
	key value.Value
	rec *domain.Record
}

// Insert implements [domain.Index]. Either every record is indexed or none
// is.
func (i *Index) Insert(ctx context.Context, recs ...*domain.Record) error {
	select {
	case <-ctx.Done():
		return ctx.Err()
	default:
	}

	inserted := make([]entry, 0, len(recs))

	var err error
RecordInsertion:
	for _, rec := range recs {
		for _, k := range i.getKeys(rec.Doc) {
			if err = i.Tree.Insert(k, rec); err != nil {
				if e := new(bst.ErrUniqueViolated); errors.As(err, e) {
					err = domain.ErrDuplicateKey{Index: i.spec.Name, Key: i.keyDocument(k)}
				}
				break RecordInsertion
			}
			inserted = append(inserted, entry{key: k, rec: rec})
		}
	}
	if err != nil {
		nErrs := make([]error, 1, len(inserted)+1)
		nErrs[0] = err
		for _, e := range inserted {
			if err := i.Tree.Delete(e.key, &e.rec); err != nil {
				nErrs = append(nErrs, err)
			}
		}
		if len(nErrs) > 1 {
			return errors.Join(nErrs...)
		}
		return err
	}
	return nil
}

// Remove implements [domain.Index].
func (i *Index) Remove(ctx context.Context, recs ...*domain.Record) error {
	select {
	case <-ctx.Done():
		return ctx.Err()
	default:
	}

	var errs []error
	for _, rec := range recs {
		for _, k := range i.getKeys(rec.Doc) {
			if err := i.Tree.Delete(k, &rec); err != nil {
				errs = append(errs, err)
			}
		}
	}
	return errors.Join(errs...)
}

// Update implements [domain.Index]. Old versions are removed before new ones
// are inserted so a record can keep its own keys. On failure the index is
// left as it was.
func (i *Index) Update(ctx context.Context, pairs ...domain.RecordUpdate) error {
	select {
	case <-ctx.Done():
		return ctx.Err()
	default:
	}

	subCtx := context.WithoutCancel(ctx)

	olds := make([]*domain.Record, len(pairs))
	news := make([]*domain.Record, len(pairs))
	for n, pair := range pairs {
		olds[n], news[n] = pair.Old, pair.New
	}

	if err := i.Remove(subCtx, olds...); err != nil {
		if restoreErr := i.Insert(subCtx, olds...); restoreErr != nil {
			return errors.Join(err, restoreErr)
		}
		return err
	}
	if err := i.Insert(subCtx, news...); err != nil {
		if restoreErr := i.Insert(subCtx, olds...); restoreErr != nil {
			return errors.Join(err, restoreErr)
		}
		return err
	}
	return nil
}

// RevertUpdate implements [domain.Index].
func (i *Index) RevertUpdate(ctx context.Context, pairs ...domain.RecordUpdate) error {
	revert := make([]domain.RecordUpdate, len(pairs))
	for n, pair := range pairs {
		revert[n] = domain.RecordUpdate{Old: pair.New, New: pair.Old}
	}
	return i.Update(ctx, revert...)
}

// CheckUnique implements [domain.Index].
func (i *Index) CheckUnique(rec *domain.Record) error {
	if !i.spec.Unique {
		return nil
	}
	for _, k := range i.getKeys(rec.Doc) {
		found, err := i.Tree.Search(k)
		if err != nil {
			return err
		}
		if found == nil {
			continue
		}
		for _, other := range found.Values() {
			if other.Seq != rec.Seq {
				return domain.ErrDuplicateKey{Index: i.spec.Name, Key: i.keyDocument(k)}
			}
		}
	}
	return nil
}

// GetMatching implements [domain.Index]. Records are returned once, in
// insertion order, even when many of their keys match.
func (i *Index) GetMatching(values ...value.Value) ([]*domain.Record, error) {
	looked := uncomparable.New[struct{}](i.hasher, i.comparer)
	seen := make(map[uint64]struct{})
	var res []*domain.Record
	for _, v := range values {
		if _, ok := looked.Get(v); ok {
			continue
		}
		looked.Set(v, struct{}{})
		found, err := i.Tree.Search(v)
		if err != nil {
			return nil, err
		}
		if found == nil {
			continue
		}
		res = collect(res, seen, slices.Values(found.Values()))
	}
	sortBySeq(res)
	return res, nil
}

// GetBetweenBounds implements [domain.Index].
func (i *Index) GetBetweenBounds(ctx context.Context, bounds domain.Bounds) ([]*domain.Record, error) {
	select {
	case <-ctx.Done():
		return nil, ctx.Err()
	default:
	}

	var qry bst.Query[value.Value]
	if bounds.Lower != nil {
		qry.GreaterThan = &bst.Bound[value.Value]{Value: bounds.Lower.Value, IncludeEqual: bounds.Lower.Inclusive}
	}
	if bounds.Upper != nil {
		qry.LowerThan = &bst.Bound[value.Value]{Value: bounds.Upper.Value, IncludeEqual: bounds.Upper.Inclusive}
	}

	seen := make(map[uint64]struct{})
	var res []*domain.Record
	for rec, err := range i.Tree.Query(qry) {
		if err != nil {
			return nil, err
		}
		res = collect(res, seen, slices.Values([]*domain.Record{rec}))
	}
	sortBySeq(res)
	return res, nil
}

// GetAll implements [domain.Index]. Multikey records are yielded once.
func (i *Index) GetAll() iter.Seq[*domain.Record] {
	return func(yield func(*domain.Record) bool) {
		seen := make(map[uint64]struct{})
		for rec := range i.Tree.GetAll() {
			if _, ok := seen[rec.Seq]; ok {
				continue
			}
			seen[rec.Seq] = struct{}{}
			if !yield(rec) {
				return
			}
		}
	}
}

// GetNumberOfKeys implements [domain.Index].
func (i *Index) GetNumberOfKeys() int {
	return i.Tree.GetNumberOfKeys()
}

func collect(res []*domain.Record, seen map[uint64]struct{}, recs iter.Seq[*domain.Record]) []*domain.Record {
	for rec := range recs {
		if _, ok := seen[rec.Seq]; ok {
			continue
		}
		seen[rec.Seq] = struct{}{}
		res = append(res, rec)
	}
	return res
}

func sortBySeq(recs []*domain.Record) {
	slices.SortFunc(recs, func(a, b *domain.Record) int {
		switch {
		case a.Seq < b.Seq:
			return -1
		case a.Seq > b.Seq:
			return 1
		}
		return 0
	})
}
