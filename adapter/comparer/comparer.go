// Package comparer contains the default [domain.Comparer] implementation,
// ordering values by type bracket first and by natural order inside each
// bracket.
package comparer

import (
	"bytes"
	"cmp"
	"math"
	"strings"

	"github.com/vinicius-lino-figueiredo/docengine/domain"
	"github.com/vinicius-lino-figueiredo/docengine/pkg/value"
)

// Comparer implements [domain.Comparer].
type Comparer struct{}

// NewComparer returns a new implementation of [domain.Comparer].
func NewComparer() domain.Comparer {
	return &Comparer{}
}

// Rank returns the position of the type bracket of v in the canonical type
// order. Int32, Int64 and Double share a bracket and a missing value (nil) is
// ranked as null.
func Rank(v value.Value) int {
	switch v.(type) {
	case value.MinKey:
		return 1
	case nil, value.Null:
		return 2
	case value.Int32, value.Int64, value.Double:
		return 3
	case value.String:
		return 4
	case *value.Document:
		return 5
	case value.Array:
		return 6
	case value.Binary:
		return 7
	case value.ObjectID:
		return 8
	case value.Bool:
		return 9
	case value.DateTime:
		return 10
	case value.Regex:
		return 11
	case value.MaxKey:
		return 12
	}
	return 2
}

// Comparable implements [domain.Comparer].
func (c *Comparer) Comparable(a, b value.Value) bool {
	return Rank(a) == Rank(b)
}

// Equal implements [domain.Comparer].
func (c *Comparer) Equal(a, b value.Value) bool {
	return c.Compare(a, b) == 0
}

// Compare implements [domain.Comparer].
func (c *Comparer) Compare(a, b value.Value) int {
	ra, rb := Rank(a), Rank(b)
	if ra != rb {
		return cmp.Compare(ra, rb)
	}

	switch x := a.(type) {
	case value.Int32, value.Int64, value.Double:
		return CompareNumbers(x, b)
	case value.String:
		return strings.Compare(string(x), string(b.(value.String)))
	case *value.Document:
		return c.compareDocuments(x, b.(*value.Document))
	case value.Array:
		return c.compareArrays(x, b.(value.Array))
	case value.Binary:
		y := b.(value.Binary)
		if r := cmp.Compare(len(x.Data), len(y.Data)); r != 0 {
			return r
		}
		if r := cmp.Compare(x.Subtype, y.Subtype); r != 0 {
			return r
		}
		return bytes.Compare(x.Data, y.Data)
	case value.ObjectID:
		y := b.(value.ObjectID)
		return bytes.Compare(x[:], y[:])
	case value.Bool:
		y := b.(value.Bool)
		switch {
		case x == y:
			return 0
		case !bool(x):
			return -1
		default:
			return 1
		}
	case value.DateTime:
		return cmp.Compare(x, b.(value.DateTime))
	case value.Regex:
		y := b.(value.Regex)
		if r := strings.Compare(x.Pattern, y.Pattern); r != 0 {
			return r
		}
		return strings.Compare(x.Options, y.Options)
	}
	// null, missing, MinKey and MaxKey only equal themselves
	return 0
}

func (c *Comparer) compareDocuments(a, b *value.Document) int {
	fa, fb := a.Fields(), b.Fields()
	for n := range min(len(fa), len(fb)) {
		if r := strings.Compare(fa[n].Key, fb[n].Key); r != 0 {
			return r
		}
		if r := c.Compare(fa[n].Value, fb[n].Value); r != 0 {
			return r
		}
	}
	return cmp.Compare(len(fa), len(fb))
}

func (c *Comparer) compareArrays(a, b value.Array) int {
	for n := range min(len(a), len(b)) {
		if r := c.Compare(a[n], b[n]); r != 0 {
			return r
		}
	}
	return cmp.Compare(len(a), len(b))
}

// CompareNumbers compares two numeric values of any subtype by exact numeric
// value. NaN equals NaN and sorts before every other number.
func CompareNumbers(a, b value.Value) int {
	ai, aInt := integer(a)
	bi, bInt := integer(b)
	if aInt && bInt {
		return cmp.Compare(ai, bi)
	}
	af, _ := value.AsFloat(a)
	bf, _ := value.AsFloat(b)
	if aInt {
		return -compareFloatInt(bf, ai)
	}
	if bInt {
		return compareFloatInt(af, bi)
	}
	switch {
	case math.IsNaN(af) && math.IsNaN(bf):
		return 0
	case math.IsNaN(af):
		return -1
	case math.IsNaN(bf):
		return 1
	}
	return cmp.Compare(af, bf)
}

func integer(v value.Value) (int64, bool) {
	switch t := v.(type) {
	case value.Int32:
		return int64(t), true
	case value.Int64:
		return int64(t), true
	}
	return 0, false
}

// compareFloatInt compares f and i without losing precision on integers
// above 2^53.
func compareFloatInt(f float64, i int64) int {
	switch {
	case math.IsNaN(f):
		return -1
	case f < math.MinInt64:
		return -1
	case f >= math.MaxInt64:
		return 1
	}
	t := math.Trunc(f)
	if r := cmp.Compare(int64(t), i); r != 0 {
		return r
	}
	return cmp.Compare(f-t, 0)
}
