// Package docengine provides an embedded, in-memory MongoDB-like document
// database for Go.
//
// Documents live in collections, which answer filter queries, apply update
// operator documents, keep secondary indexes and run aggregation pipelines. A
// [Registry] groups collections so pipelines can join ($lookup) and write
// ($out) across them.
//
// The usual start is [NewRegistry] followed by
// [Registry.GetOrCreateCollection]. Standalone collections can be created with
// [NewCollection].
package docengine

import (
	"github.com/vinicius-lino-figueiredo/docengine/adapter/collection"
	"github.com/vinicius-lino-figueiredo/docengine/adapter/registry"
	"github.com/vinicius-lino-figueiredo/docengine/domain"
	"github.com/vinicius-lino-figueiredo/docengine/pkg/value"
)

var (
	// ErrNotFound is returned when [Collection.FindOne] or the find and
	// modify methods cannot find any matching document.
	ErrNotFound = domain.ErrNotFound
	// ErrPositionalNoMatch is returned when an update uses the positional
	// operator and the filter did not match an array element.
	ErrPositionalNoMatch = domain.ErrPositionalNoMatch
	// ErrCannotDropIDIndex is returned when trying to drop the _id index.
	ErrCannotDropIDIndex = domain.ErrCannotDropIDIndex
	// ErrIndexNotFound is returned when dropping an unknown index.
	ErrIndexNotFound = domain.ErrIndexNotFound
	// ErrIndexExists is returned when creating an index that conflicts with
	// an existing one.
	ErrIndexExists = domain.ErrIndexExists
	// ErrCursorClosed is returned when trying to perform operations on a
	// closed [Cursor].
	ErrCursorClosed = domain.ErrCursorClosed
	// ErrScanBeforeNext is returned when calling [Cursor.Scan] before
	// calling [Cursor.Next].
	ErrScanBeforeNext = domain.ErrScanBeforeNext
	// ErrTargetNil is returned when decoding into a nil target.
	ErrTargetNil = domain.ErrTargetNil
	// ErrCollectionNotFound is returned by registry operations naming an
	// unknown collection.
	ErrCollectionNotFound = domain.ErrCollectionNotFound
	// ErrCollectionExists is returned when renaming onto an existing
	// collection without dropping it.
	ErrCollectionExists = domain.ErrCollectionExists
	// ErrMissingGroupID is returned by $group stages without _id.
	ErrMissingGroupID = domain.ErrMissingGroupID
)

// ErrInvalidOperator is returned for unknown or misplaced $-operators.
type ErrInvalidOperator = domain.ErrInvalidOperator

// ErrInvalidFieldName is returned for field names not allowed where they
// appear.
type ErrInvalidFieldName = domain.ErrInvalidFieldName

// ErrImmutableField is returned when an update would change _id.
type ErrImmutableField = domain.ErrImmutableField

// ErrDuplicateKey is returned when a write violates a unique index.
type ErrDuplicateKey = domain.ErrDuplicateKey

// ErrTypeMismatch is returned when an operator receives a value of the wrong
// type.
type ErrTypeMismatch = domain.ErrTypeMismatch

// ErrUpdateConflict is returned when two update operators target the same
// path.
type ErrUpdateConflict = domain.ErrUpdateConflict

// ErrDecode wraps third party decoding errors.
type ErrDecode = domain.ErrDecode

// Value is any value that can be stored in a document.
type Value = value.Value

// Document is an ordered set of fields.
type Document = value.Document

// Array is a list of values.
type Array = value.Array

// D builds a document from alternating keys and values.
func D(kv ...any) *Document {
	return value.D(kv...)
}

// Parse reads a document written in relaxed extended JSON.
func Parse(text string) (*Document, error) {
	return value.ParseDocument([]byte(text))
}

// Registry owns the collections of a database.
type Registry = domain.Registry

// Collection is a named set of documents with its indexes.
type Collection = domain.Collection

// Cursor iterates over query and pipeline results.
type Cursor = domain.Cursor

// Logger receives the events of collections and registries.
type Logger = domain.Logger

// Metrics observes collection operations.
type Metrics = domain.Metrics

// IndexSpec describes an index.
type IndexSpec = domain.IndexSpec

// Sort lists the fields used to sort results, applied in sequence.
type Sort = domain.Sort

// SortName is a single sort field. A positive order sorts ascending.
type SortName = domain.SortName

// WriteConcern selects whether write errors are reported.
type WriteConcern = domain.WriteConcern

// Supported write concerns.
const (
	Acknowledged   = domain.Acknowledged
	Unacknowledged = domain.Unacknowledged
)

// NewRegistry creates an empty registry. Collections are created on demand
// by [Registry.GetOrCreateCollection].
func NewRegistry(options ...registry.Option) Registry {
	return registry.NewRegistry(options...)
}

// WithRegistryLogger sets the logger of the registry and of every collection
// it creates.
func WithRegistryLogger(l Logger) registry.Option {
	return registry.WithLogger(l)
}

// WithCollectionOptions sets options applied to every collection created by
// the registry.
func WithCollectionOptions(opts ...collection.Option) registry.Option {
	return registry.WithCollectionOptions(opts...)
}

// NewCollection creates a standalone collection. Without [WithRegistry] its
// pipelines cannot use $lookup or $out.
func NewCollection(options ...collection.Option) (Collection, error) {
	c, err := collection.NewCollection(options...)
	if err != nil {
		return nil, err
	}
	return c, nil
}

// WithCollectionName sets the collection name.
func WithCollectionName(n string) collection.Option {
	return collection.WithName(n)
}

// WithRegistry sets the registry pipelines use to reach other collections.
func WithRegistry(r Registry) collection.Option {
	return collection.WithRegistry(r)
}

// WithTimestamps enables automatic createdAt and updatedAt fields.
func WithTimestamps(t bool) collection.Option {
	return collection.WithTimestamps(t)
}

// WithLogger sets the collection logger.
func WithLogger(l Logger) collection.Option {
	return collection.WithLogger(l)
}

// WithMetrics sets the observer of collection operations.
func WithMetrics(m Metrics) collection.Option {
	return collection.WithMetrics(m)
}

// WithIDGenerator sets the generator of missing _id values.
func WithIDGenerator(ig domain.IDGenerator) collection.Option {
	return collection.WithIDGenerator(ig)
}

// WithTimeGetter sets the clock used by timestamps and $currentDate.
func WithTimeGetter(t domain.TimeGetter) collection.Option {
	return collection.WithTimeGetter(t)
}

// WithComparer sets the value ordering.
func WithComparer(c domain.Comparer) collection.Option {
	return collection.WithComparer(c)
}

// WithProjection sets the fields returned by a find.
func WithProjection(p any) domain.FindOption {
	return domain.WithFindProjection(p)
}

// WithSkip sets the number of matching documents to skip.
func WithSkip(s int64) domain.FindOption {
	return domain.WithFindSkip(s)
}

// WithLimit sets the maximum number of returned documents.
func WithLimit(l int64) domain.FindOption {
	return domain.WithFindLimit(l)
}

// WithSort sets the result order.
func WithSort(s Sort) domain.FindOption {
	return domain.WithFindSort(s)
}

// WithInsertWriteConcern sets the write concern of an insert.
func WithInsertWriteConcern(w WriteConcern) domain.InsertOption {
	return domain.WithInsertWriteConcern(w)
}

// WithUpdateMulti makes an update apply to every matching document.
func WithUpdateMulti(m bool) domain.UpdateOption {
	return domain.WithUpdateMulti(m)
}

// WithUpsert makes an update insert a document when nothing matches.
func WithUpsert(u bool) domain.UpdateOption {
	return domain.WithUpsert(u)
}

// WithUpdateWriteConcern sets the write concern of an update.
func WithUpdateWriteConcern(w WriteConcern) domain.UpdateOption {
	return domain.WithUpdateWriteConcern(w)
}

// WithDeleteMulti makes a delete remove every matching document.
func WithDeleteMulti(m bool) domain.DeleteOption {
	return domain.WithDeleteMulti(m)
}

// WithDeleteWriteConcern sets the write concern of a delete.
func WithDeleteWriteConcern(w WriteConcern) domain.DeleteOption {
	return domain.WithDeleteWriteConcern(w)
}

// WithReturnNew makes find and modify return the updated document.
func WithReturnNew(r bool) domain.FindAndModifyOption {
	return domain.WithReturnNew(r)
}

// WithFindAndModifyUpsert makes find and modify insert when nothing matches.
func WithFindAndModifyUpsert(u bool) domain.FindAndModifyOption {
	return domain.WithFindAndModifyUpsert(u)
}

// WithFindAndModifySort selects which matching document is modified.
func WithFindAndModifySort(s Sort) domain.FindAndModifyOption {
	return domain.WithFindAndModifySort(s)
}

// WithIndexName sets the index name instead of the one built from its keys.
func WithIndexName(n string) domain.IndexOption {
	return domain.WithIndexName(n)
}

// WithIndexUnique rejects documents sharing a key.
func WithIndexUnique(u bool) domain.IndexOption {
	return domain.WithIndexUnique(u)
}

// WithIndexSparse skips documents lacking every indexed field.
func WithIndexSparse(s bool) domain.IndexOption {
	return domain.WithIndexSparse(s)
}
