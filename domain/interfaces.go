// Package domain declares the contracts shared by the engine components and
// the types that travel between them.
package domain

import (
	"context"
	"iter"
	"time"

	"github.com/vinicius-lino-figueiredo/docengine/pkg/value"
)

// Comparer implements the canonical ordering of values.
type Comparer interface {
	// Compare returns a negative number if a sorts before b, a positive
	// number if after and zero if they are query-equal.
	Compare(a, b value.Value) int
	// Equal reports whether a and b are query-equal.
	Equal(a, b value.Value) bool
	// Comparable reports whether a and b belong to the same type bracket,
	// which is required by range operators.
	Comparable(a, b value.Value) bool
}

// Hasher hashes values consistently with [Comparer.Equal].
type Hasher interface {
	Hash(v value.Value) uint64
}

// Getter reads a single value.
type Getter interface {
	Get() (value.Value, bool)
}

// GetSetter reads and writes a single concrete location inside a document.
type GetSetter interface {
	Getter
	Set(v value.Value)
	Unset()
}

// FieldNavigator resolves dotted paths.
type FieldNavigator interface {
	// GetAddress splits a dotted path into its segments.
	GetAddress(field string) ([]string, error)
	// Walk lazily yields every value reachable through addr, projecting over
	// arrays.
	Walk(v value.Value, addr ...string) iter.Seq[Found]
	// Resolve is like Walk but only yields the values.
	Resolve(v value.Value, addr ...string) iter.Seq[value.Value]
	// GetField returns the single location addressed by addr without
	// projecting over arrays.
	GetField(doc *value.Document, addr ...string) (GetSetter, error)
	// EnsureField is like GetField but creates missing intermediate
	// documents and pads arrays with null.
	EnsureField(doc *value.Document, addr ...string) (GetSetter, error)
}

// Matcher evaluates a compiled filter.
type Matcher interface {
	// SetQuery compiles the filter that will be used by the next calls.
	SetQuery(query *value.Document) error
	// Match reports whether v satisfies the filter.
	Match(v value.Value) (bool, error)
	// MatchPos is like Match but also reports the array position matched
	// by the first array-projecting condition.
	MatchPos(v value.Value) (MatchResult, error)
}

// MatcherFactory creates a fresh [Matcher]. Matchers hold the compiled query,
// so each operation gets its own.
type MatcherFactory = func() Matcher

// Modifier applies update documents.
type Modifier interface {
	// Modify returns a new document resulting from applying update to doc.
	// doc is never changed.
	Modify(doc, update *value.Document, options ...ModifyOption) (*value.Document, error)
}

// Projector reshapes find results.
type Projector interface {
	Project(docs []*value.Document, projection *value.Document) ([]*value.Document, error)
}

// Querier filters, sorts, pages and projects candidate documents.
type Querier interface {
	Query(candidates []*value.Document, options ...QueryOption) ([]*value.Document, error)
}

// Index keeps an ordered mapping from key values to records.
type Index interface {
	Spec() IndexSpec
	Insert(ctx context.Context, recs ...*Record) error
	Remove(ctx context.Context, recs ...*Record) error
	Update(ctx context.Context, pairs ...RecordUpdate) error
	RevertUpdate(ctx context.Context, pairs ...RecordUpdate) error
	GetMatching(values ...value.Value) ([]*Record, error)
	GetBetweenBounds(ctx context.Context, bounds Bounds) ([]*Record, error)
	// CheckUnique returns [ErrDuplicateKey] when a unique index already
	// holds one of the keys of rec under another record.
	CheckUnique(rec *Record) error
	GetAll() iter.Seq[*Record]
	GetNumberOfKeys() int
	// Multikey reports whether some indexed document held an array in an
	// indexed field.
	Multikey() bool
	Reset(ctx context.Context, recs ...*Record) error
}

// IndexFactory creates an [Index].
type IndexFactory = func(...IndexOption) (Index, error)

// Cursor iterates over materialized results.
type Cursor interface {
	// Next advances the cursor and reports whether there is a document.
	Next() bool
	// Document returns the current document.
	Document() *value.Document
	// Scan decodes the current document into target.
	Scan(ctx context.Context, target any) error
	// All returns every remaining document.
	All(ctx context.Context) ([]*value.Document, error)
	Err() error
	Close() error
}

// CursorFactory creates a [Cursor] over docs.
type CursorFactory = func(context.Context, []*value.Document, ...CursorOption) (Cursor, error)

// Decoder decodes documents into Go values.
type Decoder interface {
	Decode(source *value.Document, target any) error
}

// IDGenerator creates _id values for documents inserted without one.
type IDGenerator interface {
	GenerateID() (value.Value, error)
}

// TimeGetter returns the current time.
type TimeGetter interface {
	GetTime() time.Time
}

// Logger is a leveled, structured logger.
type Logger interface {
	Debug(msg string, args ...any)
	Info(msg string, args ...any)
	Warn(msg string, args ...any)
	Error(msg string, args ...any)
}

// Metrics records operation outcomes.
type Metrics interface {
	Observe(collection, operation string, started time.Time, err error)
}

// Pipeline is a parsed aggregation pipeline.
type Pipeline interface {
	Run(ctx context.Context, input []*value.Document) ([]*value.Document, error)
}

// Collection is a named set of documents with its indexes.
type Collection interface {
	Name() string
	Insert(ctx context.Context, docs []any, options ...InsertOption) (InsertOutcome, error)
	Find(ctx context.Context, filter any, options ...FindOption) (Cursor, error)
	FindOne(ctx context.Context, filter any, target any, options ...FindOption) error
	Count(ctx context.Context, filter any) (int64, error)
	Distinct(ctx context.Context, field string, filter any) (value.Array, error)
	Update(ctx context.Context, filter, update any, options ...UpdateOption) (UpdateOutcome, error)
	Delete(ctx context.Context, filter any, options ...DeleteOption) (DeleteOutcome, error)
	FindOneAndUpdate(ctx context.Context, filter, update any, options ...FindAndModifyOption) (*value.Document, error)
	FindOneAndDelete(ctx context.Context, filter any, options ...FindAndModifyOption) (*value.Document, error)
	CreateIndex(ctx context.Context, keys any, options ...IndexOption) (string, error)
	DropIndex(ctx context.Context, name string) error
	Indexes(ctx context.Context) ([]IndexSpec, error)
	Aggregate(ctx context.Context, pipeline []any) (Cursor, error)
	// Snapshot returns clones of every document in natural order.
	Snapshot(ctx context.Context) ([]*value.Document, error)
	// ReplaceAll removes every document and inserts docs, keeping the
	// index definitions.
	ReplaceAll(ctx context.Context, docs []*value.Document) error
}

// Registry owns the collections of a database.
type Registry interface {
	GetOrCreateCollection(ctx context.Context, name string) (Collection, error)
	Collection(name string) (Collection, bool)
	DropCollection(ctx context.Context, name string) error
	RenameCollection(ctx context.Context, from, to string, dropTarget bool) error
	CollectionNames() []string
}
