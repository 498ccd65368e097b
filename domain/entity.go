package domain

import (
	"fmt"
	"strings"

	"github.com/vinicius-lino-figueiredo/docengine/pkg/value"
)

// IDIndexName is the name of the index every collection keeps on _id.
const IDIndexName = "_id_"

// Record is a stored document together with its insertion sequence. Records
// are replaced wholesale on update and never mutated, so readers holding a
// record keep a consistent view.
type Record struct {
	Seq uint64
	Doc *value.Document
}

// RecordUpdate pairs the old and new version of a record.
type RecordUpdate struct {
	Old *Record
	New *Record
}

// IndexKey is one field of an index with its direction (1 or -1).
type IndexKey struct {
	Field     string
	Direction int
}

// IndexSpec describes an index.
type IndexSpec struct {
	Name   string
	Keys   []IndexKey
	Unique bool
	Sparse bool
}

// DefaultIndexName builds the conventional name of an index over keys, like
// "a_1_b_-1".
func DefaultIndexName(keys []IndexKey) string {
	parts := make([]string, 0, len(keys)*2)
	for _, k := range keys {
		parts = append(parts, k.Field, fmt.Sprint(k.Direction))
	}
	return strings.Join(parts, "_")
}

// SameKeys reports whether s and o index the same fields in the same
// directions.
func (s IndexSpec) SameKeys(o IndexSpec) bool {
	if len(s.Keys) != len(o.Keys) {
		return false
	}
	for n, k := range s.Keys {
		if o.Keys[n] != k {
			return false
		}
	}
	return true
}

// Fields returns the indexed field paths.
func (s IndexSpec) Fields() []string {
	res := make([]string, len(s.Keys))
	for n, k := range s.Keys {
		res[n] = k.Field
	}
	return res
}

// Document returns the description of s as listed by Indexes.
func (s IndexSpec) Document() *value.Document {
	keys := value.NewDocument()
	for _, k := range s.Keys {
		keys.Set(k.Field, value.Int32(k.Direction))
	}
	doc := value.D("name", value.String(s.Name), "key", keys)
	if s.Unique {
		doc.Set("unique", value.Bool(true))
	}
	if s.Sparse {
		doc.Set("sparse", value.Bool(true))
	}
	return doc
}

// Bound is one end of a range lookup.
type Bound struct {
	Value     value.Value
	Inclusive bool
}

// Bounds is a range lookup. A nil end is unbounded.
type Bounds struct {
	Lower *Bound
	Upper *Bound
}

// Sort represents an ordered list of fields which should be used to sort query
// results, applied in sequence.
type Sort = []SortName

// SortName represents a single field and the order which should be used to sort
// it. A positive Order value means ascending order and a negative value means
// descending order.
type SortName struct {
	Key   string
	Order int64
}

// MatchResult is the outcome of [Matcher.MatchPos]. Pos is -1 when no array
// element took part in the match.
type MatchResult struct {
	Matched bool
	Pos     int
}

// WriteConcern selects whether write errors are reported.
type WriteConcern uint8

// Supported write concerns.
const (
	Acknowledged WriteConcern = iota
	Unacknowledged
)

// InsertOutcome reports the result of an insert.
type InsertOutcome struct {
	Acknowledged bool
	InsertedIDs  []value.Value
}

// UpdateOutcome reports the result of an update.
type UpdateOutcome struct {
	Acknowledged bool
	Matched      int64
	Modified     int64
	UpsertedID   value.Value
}

// DeleteOutcome reports the result of a delete.
type DeleteOutcome struct {
	Acknowledged bool
	Deleted      int64
}

// Found is a value reached by [FieldNavigator.Walk]. Pos is the index inside
// the first array the walk projected over, or -1.
type Found struct {
	Value value.Value
	Pos   int
}
