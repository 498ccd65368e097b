package index

import (
	"github.com/vinicius-lino-figueiredo/bst"
	"github.com/vinicius-lino-figueiredo/docengine/domain"
	"github.com/vinicius-lino-figueiredo/docengine/pkg/value"
)

type bstComparer struct {
	comparer domain.Comparer
}

// NewBSTComparer adapts comparer to the tree: keys follow the canonical order
// and records are told apart by their sequence.
func NewBSTComparer(comparer domain.Comparer) bst.Comparer[value.Value, *domain.Record] {
	return &bstComparer{
		comparer: comparer,
	}
}

// CompareKeys implements bst.Comparer.
func (bc *bstComparer) CompareKeys(a value.Value, b value.Value) (int, error) {
	return bc.comparer.Compare(a, b), nil
}

// CompareValues implements bst.Comparer.
func (bc *bstComparer) CompareValues(a *domain.Record, b *domain.Record) (bool, error) {
	return a.Seq == b.Seq, nil
}
