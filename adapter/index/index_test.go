package index

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/suite"
	"github.com/vinicius-lino-figueiredo/bst"
	"github.com/vinicius-lino-figueiredo/docengine/domain"
	"github.com/vinicius-lino-figueiredo/docengine/pkg/value"
)

type IndexTestSuite struct {
	suite.Suite
	ctx context.Context
	seq uint64
}

func (s *IndexTestSuite) SetupTest() {
	s.ctx = context.Background()
	s.seq = 0
}

func (s *IndexTestSuite) rec(doc string) *domain.Record {
	s.seq++
	return &domain.Record{Seq: s.seq, Doc: value.MustParse(doc)}
}

func (s *IndexTestSuite) newIndex(opts ...domain.IndexOption) *Index {
	i, err := NewIndex(opts...)
	s.Require().NoError(err)
	return i.(*Index)
}

func seqs(recs []*domain.Record) []uint64 {
	res := make([]uint64, len(recs))
	for n, r := range recs {
		res[n] = r.Seq
	}
	return res
}

func (s *IndexTestSuite) TestNewIndex() {
	idx := s.newIndex(domain.WithIndexKeys(domain.IndexKey{Field: "a.b", Direction: -1}))
	s.Equal("a.b_-1", idx.Spec().Name)

	_, err := NewIndex()
	s.ErrorIs(err, domain.ErrNoIndexKeys)

	_, err = NewIndex(domain.WithIndexKeys(domain.IndexKey{Field: "a", Direction: 2}))
	s.ErrorAs(err, new(domain.ErrTypeMismatch))

	_, err = NewIndex(domain.WithIndexKeys(domain.IndexKey{Field: "a..b", Direction: 1}))
	s.ErrorAs(err, new(domain.ErrInvalidFieldName))
}

func (s *IndexTestSuite) TestInsertAndMatch() {
	idx := s.newIndex(domain.WithIndexKeys(domain.IndexKey{Field: "tf", Direction: 1}))
	r1 := s.rec(`{"a": 5, "tf": "hello"}`)
	r2 := s.rec(`{"a": 8, "tf": "world"}`)
	r3 := s.rec(`{"a": 2, "tf": "hello"}`)
	s.NoError(idx.Insert(s.ctx, r1, r2, r3))
	s.Equal(2, idx.GetNumberOfKeys())

	res, err := idx.GetMatching(value.String("hello"))
	s.NoError(err)
	s.Equal([]uint64{1, 3}, seqs(res))

	res, err = idx.GetMatching(value.String("world"), value.String("hello"), value.String("nope"))
	s.NoError(err)
	s.Equal([]uint64{1, 2, 3}, seqs(res))
}

// Numbers of different subtypes share a key.
func (s *IndexTestSuite) TestNumericKeys() {
	idx := s.newIndex(domain.WithIndexKeys(domain.IndexKey{Field: "n", Direction: 1}))
	s.NoError(idx.Insert(s.ctx, s.rec(`{"n": 1}`), s.rec(`{"n": 1.0}`), s.rec(`{"n": {"$numberLong": "1"}}`)))
	s.Equal(1, idx.GetNumberOfKeys())

	res, err := idx.GetMatching(value.Double(1), value.Int32(1))
	s.NoError(err)
	s.Len(res, 3)
}

func (s *IndexTestSuite) TestMultikey() {
	idx := s.newIndex(domain.WithIndexKeys(domain.IndexKey{Field: "tags", Direction: 1}))
	s.NoError(idx.Insert(s.ctx, s.rec(`{"tags": ["a", "b", "a"]}`), s.rec(`{"tags": "b"}`)))
	s.Equal(2, idx.GetNumberOfKeys())

	res, err := idx.GetMatching(value.String("b"))
	s.NoError(err)
	s.Equal([]uint64{1, 2}, seqs(res))

	s.Len(collectAll(idx), 2)
	s.True(idx.Multikey())
}

func (s *IndexTestSuite) TestMultikeyFlag() {
	idx := s.newIndex(domain.WithIndexKeys(domain.IndexKey{Field: "a", Direction: 1}))
	s.NoError(idx.Insert(s.ctx, s.rec(`{"a": 1}`), s.rec(`{"a": {"b": [1]}}`)))
	s.False(idx.Multikey())

	arr := s.rec(`{"a": [1, 10]}`)
	s.NoError(idx.Insert(s.ctx, arr))
	s.True(idx.Multikey())

	s.NoError(idx.Remove(s.ctx, arr))
	s.True(idx.Multikey())

	s.NoError(idx.Reset(s.ctx, s.rec(`{"a": 2}`)))
	s.False(idx.Multikey())
}

func (s *IndexTestSuite) TestNestedMultikey() {
	idx := s.newIndex(domain.WithIndexKeys(domain.IndexKey{Field: "a.b", Direction: 1}))
	s.NoError(idx.Insert(s.ctx, s.rec(`{"a": [{"b": 1}, {"b": [2, 3]}]}`)))
	s.Equal(3, idx.GetNumberOfKeys())
	res, err := idx.GetMatching(value.Int32(3))
	s.NoError(err)
	s.Len(res, 1)
}

func (s *IndexTestSuite) TestMissingFieldIsNull() {
	idx := s.newIndex(domain.WithIndexKeys(domain.IndexKey{Field: "x", Direction: 1}))
	s.NoError(idx.Insert(s.ctx, s.rec(`{"a": 1}`), s.rec(`{"x": null}`)))
	res, err := idx.GetMatching(value.Null{})
	s.NoError(err)
	s.Len(res, 2)
}

func (s *IndexTestSuite) TestUnique() {
	idx := s.newIndex(
		domain.WithIndexKeys(domain.IndexKey{Field: "a", Direction: 1}),
		domain.WithIndexUnique(true),
	)
	s.NoError(idx.Insert(s.ctx, s.rec(`{"a": "x"}`)))

	err := idx.Insert(s.ctx, s.rec(`{"a": "y"}`), s.rec(`{"a": "x"}`))
	var dup domain.ErrDuplicateKey
	s.Require().ErrorAs(err, &dup)
	s.Equal("a_1", dup.Index)
	s.True(value.Identical(value.MustParse(`{"a": "x"}`), dup.Key))

	// the batch was rolled back
	res, err := idx.GetMatching(value.String("y"))
	s.NoError(err)
	s.Empty(res)

	// a multikey document conflicts through any element
	err = idx.Insert(s.ctx, s.rec(`{"a": ["z", "x"]}`))
	s.ErrorAs(err, new(domain.ErrDuplicateKey))
	s.Equal(1, idx.GetNumberOfKeys())

	// repeated elements in one document do not conflict with themselves
	s.NoError(idx.Insert(s.ctx, s.rec(`{"a": ["w", "w"]}`)))

	// two documents without the field share the null key
	s.NoError(idx.Insert(s.ctx, s.rec(`{}`)))
	s.ErrorAs(idx.Insert(s.ctx, s.rec(`{"b": 1}`)), new(domain.ErrDuplicateKey))
}

func (s *IndexTestSuite) TestSparse() {
	idx := s.newIndex(
		domain.WithIndexKeys(domain.IndexKey{Field: "a", Direction: 1}),
		domain.WithIndexUnique(true),
		domain.WithIndexSparse(true),
	)
	s.NoError(idx.Insert(s.ctx, s.rec(`{}`), s.rec(`{"b": 1}`), s.rec(`{"a": null}`)))
	s.Equal(1, idx.GetNumberOfKeys())
	s.Len(collectAll(idx), 1)
}

func (s *IndexTestSuite) TestCompound() {
	idx := s.newIndex(
		domain.WithIndexKeys(
			domain.IndexKey{Field: "a", Direction: 1},
			domain.IndexKey{Field: "b", Direction: -1},
		),
		domain.WithIndexUnique(true),
	)
	s.Equal("a_1_b_-1", idx.Spec().Name)

	s.NoError(idx.Insert(s.ctx, s.rec(`{"a": 1, "b": 1}`), s.rec(`{"a": 1, "b": 2}`)))
	err := idx.Insert(s.ctx, s.rec(`{"a": 1.0, "b": 2}`))
	var dup domain.ErrDuplicateKey
	s.Require().ErrorAs(err, &dup)
	s.True(value.Identical(value.MustParse(`{"a": 1.0, "b": 2}`), dup.Key))

	res, err := idx.GetMatching(value.Array{value.Int32(1), value.Int32(2)})
	s.NoError(err)
	s.Equal([]uint64{2}, seqs(res))

	// cartesian product over multikey fields
	s.NoError(idx.Insert(s.ctx, s.rec(`{"a": [5, 6], "b": [7, 8]}`)))
	s.Equal(6, idx.GetNumberOfKeys())
}

func (s *IndexTestSuite) TestRemove() {
	idx := s.newIndex(domain.WithIndexKeys(domain.IndexKey{Field: "a", Direction: 1}))
	r1, r2 := s.rec(`{"a": [1, 2]}`), s.rec(`{"a": 2}`)
	s.NoError(idx.Insert(s.ctx, r1, r2))
	s.NoError(idx.Remove(s.ctx, r1))

	res, err := idx.GetMatching(value.Int32(2))
	s.NoError(err)
	s.Equal([]uint64{2}, seqs(res))
	res, err = idx.GetMatching(value.Int32(1))
	s.NoError(err)
	s.Empty(res)
}

func (s *IndexTestSuite) TestUpdate() {
	idx := s.newIndex(
		domain.WithIndexKeys(domain.IndexKey{Field: "a", Direction: 1}),
		domain.WithIndexUnique(true),
	)
	r1, r2 := s.rec(`{"a": 1}`), s.rec(`{"a": 2}`)
	s.NoError(idx.Insert(s.ctx, r1, r2))

	s.Run("KeepsOwnKey", func() {
		n1 := &domain.Record{Seq: r1.Seq, Doc: value.MustParse(`{"a": 1, "b": 1}`)}
		s.NoError(idx.Update(s.ctx, domain.RecordUpdate{Old: r1, New: n1}))
		s.NoError(idx.RevertUpdate(s.ctx, domain.RecordUpdate{Old: r1, New: n1}))
	})

	s.Run("Swap", func() {
		n1 := &domain.Record{Seq: r1.Seq, Doc: value.MustParse(`{"a": 2}`)}
		n2 := &domain.Record{Seq: r2.Seq, Doc: value.MustParse(`{"a": 1}`)}
		s.NoError(idx.Update(s.ctx, domain.RecordUpdate{Old: r1, New: n1}, domain.RecordUpdate{Old: r2, New: n2}))
		res, err := idx.GetMatching(value.Int32(1))
		s.NoError(err)
		s.Require().Len(res, 1)
		s.Same(n2, res[0])
		s.NoError(idx.RevertUpdate(s.ctx, domain.RecordUpdate{Old: r1, New: n1}, domain.RecordUpdate{Old: r2, New: n2}))
	})

	s.Run("RollbackOnConflict", func() {
		n1 := &domain.Record{Seq: r1.Seq, Doc: value.MustParse(`{"a": 3}`)}
		n2 := &domain.Record{Seq: r2.Seq, Doc: value.MustParse(`{"a": 3}`)}
		err := idx.Update(s.ctx, domain.RecordUpdate{Old: r1, New: n1}, domain.RecordUpdate{Old: r2, New: n2})
		s.ErrorAs(err, new(domain.ErrDuplicateKey))

		res, err := idx.GetMatching(value.Int32(1), value.Int32(2))
		s.NoError(err)
		s.Equal([]*domain.Record{r1, r2}, res)
		res, err = idx.GetMatching(value.Int32(3))
		s.NoError(err)
		s.Empty(res)
	})
}

func (s *IndexTestSuite) TestCheckUnique() {
	idx := s.newIndex(
		domain.WithIndexKeys(domain.IndexKey{Field: "a", Direction: 1}),
		domain.WithIndexUnique(true),
	)
	r1 := s.rec(`{"a": 1}`)
	s.NoError(idx.Insert(s.ctx, r1))

	s.NoError(idx.CheckUnique(&domain.Record{Seq: r1.Seq, Doc: value.MustParse(`{"a": 1, "b": 2}`)}))
	s.ErrorAs(idx.CheckUnique(s.rec(`{"a": [0, 1]}`)), new(domain.ErrDuplicateKey))
	s.NoError(idx.CheckUnique(s.rec(`{"a": 2}`)))

	plain := s.newIndex(domain.WithIndexKeys(domain.IndexKey{Field: "a", Direction: 1}))
	s.NoError(plain.Insert(s.ctx, r1))
	s.NoError(plain.CheckUnique(s.rec(`{"a": 1}`)))
}

func (s *IndexTestSuite) TestBounds() {
	idx := s.newIndex(domain.WithIndexKeys(domain.IndexKey{Field: "n", Direction: 1}))
	for _, d := range []string{`{"n": 1}`, `{"n": 5}`, `{"n": 7.5}`, `{"n": 10}`, `{"n": "x"}`, `{"n": [3, 20]}`} {
		s.NoError(idx.Insert(s.ctx, s.rec(d)))
	}

	res, err := idx.GetBetweenBounds(s.ctx, domain.Bounds{
		Lower: &domain.Bound{Value: value.Int32(5), Inclusive: true},
		Upper: &domain.Bound{Value: value.Int32(10)},
	})
	s.NoError(err)
	s.Equal([]uint64{2, 3}, seqs(res))

	res, err = idx.GetBetweenBounds(s.ctx, domain.Bounds{Lower: &domain.Bound{Value: value.Int32(7)}})
	s.NoError(err)
	// the string sorts after every number
	s.Equal([]uint64{3, 4, 5, 6}, seqs(res))

	ctx, cancel := context.WithCancel(s.ctx)
	cancel()
	_, err = idx.GetBetweenBounds(ctx, domain.Bounds{})
	s.ErrorIs(err, context.Canceled)
}

func (s *IndexTestSuite) TestReset() {
	idx := s.newIndex(domain.WithIndexKeys(domain.IndexKey{Field: "a", Direction: 1}))
	s.NoError(idx.Insert(s.ctx, s.rec(`{"a": 1}`), s.rec(`{"a": 2}`)))
	s.NoError(idx.Reset(s.ctx, s.rec(`{"a": 3}`)))
	s.Equal(1, idx.GetNumberOfKeys())
	s.Equal([]uint64{3}, seqs(collectAll(idx)))
}

type failingTree struct {
	bst.BST[value.Value, *domain.Record]
	insertErr, deleteErr error
}

func (f failingTree) Insert(value.Value, *domain.Record) error { return f.insertErr }

func (f failingTree) Delete(value.Value, **domain.Record) error { return f.deleteErr }

func (s *IndexTestSuite) TestUpdateRestoreFailure() {
	idx := s.newIndex(domain.WithIndexKeys(domain.IndexKey{Field: "a", Direction: 1}))
	old := s.rec(`{"a": 1}`)
	s.NoError(idx.Insert(s.ctx, old))

	deleteErr, insertErr := errors.New("delete failed"), errors.New("insert failed")
	idx.Tree = failingTree{BST: idx.Tree, insertErr: insertErr, deleteErr: deleteErr}

	err := idx.Update(s.ctx, domain.RecordUpdate{Old: old, New: s.rec(`{"a": 2}`)})
	s.ErrorIs(err, deleteErr)
	s.ErrorIs(err, insertErr)
}

func collectAll(idx *Index) []*domain.Record {
	var res []*domain.Record
	for r := range idx.GetAll() {
		res = append(res, r)
	}
	return res
}

func TestIndexTestSuite(t *testing.T) {
	suite.Run(t, new(IndexTestSuite))
}
