package domain

import "github.com/vinicius-lino-figueiredo/docengine/pkg/value"

// WithFindProjection specifies which fields to include or exclude from query
// results.
func WithFindProjection(p any) FindOption {
	return func(fo *FindOptions) {
		fo.Projection = p
	}
}

// WithFindSkip sets the number of documents to skip in query results.
func WithFindSkip(s int64) FindOption {
	return func(fo *FindOptions) {
		fo.Skip = s
	}
}

// WithFindLimit sets the maximum number of documents to return.
func WithFindLimit(l int64) FindOption {
	return func(fo *FindOptions) {
		fo.Limit = l
	}
}

// WithFindSort specifies the sort order for query results.
func WithFindSort(s Sort) FindOption {
	return func(fo *FindOptions) {
		fo.Sort = s
	}
}

// FindOption configures query behavior through the functional options pattern.
type FindOption func(*FindOptions)

// FindOptions contains parameters for customizing query execution.
type FindOptions struct {
	// Projection specifies which fields to include or exclude from results.
	Projection any
	// Skip specifies the number of documents to skip.
	Skip int64
	// Limit specifies the maximum number of documents to return.
	Limit int64
	// Sort specifies the sort order for results.
	Sort Sort
}

// WithInsertWriteConcern sets the write concern of an insert.
func WithInsertWriteConcern(w WriteConcern) InsertOption {
	return func(io *InsertOptions) {
		io.WriteConcern = w
	}
}

// InsertOption configures insert behavior through the functional options
// pattern.
type InsertOption func(*InsertOptions)

// InsertOptions contains parameters for customizing inserts.
type InsertOptions struct {
	WriteConcern WriteConcern
}

// WithUpdateMulti enables updating multiple documents that match the query.
func WithUpdateMulti(m bool) UpdateOption {
	return func(uo *UpdateOptions) {
		uo.Multi = m
	}
}

// WithUpsert enables inserting a document if no matches are found.
func WithUpsert(u bool) UpdateOption {
	return func(uo *UpdateOptions) {
		uo.Upsert = u
	}
}

// WithUpdateWriteConcern sets the write concern of an update.
func WithUpdateWriteConcern(w WriteConcern) UpdateOption {
	return func(uo *UpdateOptions) {
		uo.WriteConcern = w
	}
}

// UpdateOption configures update behavior through the functional options
// pattern.
type UpdateOption func(*UpdateOptions)

// UpdateOptions contains parameters for customizing update operations.
type UpdateOptions struct {
	// Multi enables updating multiple documents that match the query.
	Multi bool
	// Upsert enables inserting a document if no matches are found.
	Upsert bool
	// WriteConcern selects whether errors are reported.
	WriteConcern WriteConcern
}

// WithDeleteMulti enables removing multiple documents that match the query.
func WithDeleteMulti(m bool) DeleteOption {
	return func(do *DeleteOptions) {
		do.Multi = m
	}
}

// WithDeleteWriteConcern sets the write concern of a delete.
func WithDeleteWriteConcern(w WriteConcern) DeleteOption {
	return func(do *DeleteOptions) {
		do.WriteConcern = w
	}
}

// DeleteOption configures delete behavior through the functional options
// pattern.
type DeleteOption func(*DeleteOptions)

// DeleteOptions contains parameters for customizing delete operations.
type DeleteOptions struct {
	Multi        bool
	WriteConcern WriteConcern
}

// WithReturnNew makes FindOneAndUpdate return the document after the update.
func WithReturnNew(r bool) FindAndModifyOption {
	return func(fo *FindAndModifyOptions) {
		fo.ReturnNew = r
	}
}

// WithFindAndModifyUpsert enables inserting a document if no matches are
// found.
func WithFindAndModifyUpsert(u bool) FindAndModifyOption {
	return func(fo *FindAndModifyOptions) {
		fo.Upsert = u
	}
}

// WithFindAndModifySort selects which document is modified when many match.
func WithFindAndModifySort(s Sort) FindAndModifyOption {
	return func(fo *FindAndModifyOptions) {
		fo.Sort = s
	}
}

// WithFindAndModifyProjection reshapes the returned document.
func WithFindAndModifyProjection(p any) FindAndModifyOption {
	return func(fo *FindAndModifyOptions) {
		fo.Projection = p
	}
}

// FindAndModifyOption configures FindOneAndUpdate and FindOneAndDelete.
type FindAndModifyOption func(*FindAndModifyOptions)

// FindAndModifyOptions contains parameters for find-and-modify operations.
type FindAndModifyOptions struct {
	Upsert     bool
	ReturnNew  bool
	Sort       Sort
	Projection any
}

// WithIndexName sets the index name. The default is built from its keys.
func WithIndexName(n string) IndexOption {
	return func(io *IndexOptions) {
		io.Name = n
	}
}

// WithIndexKeys sets the indexed fields.
func WithIndexKeys(keys ...IndexKey) IndexOption {
	return func(io *IndexOptions) {
		io.Keys = keys
	}
}

// WithIndexUnique enables the unique constraint.
func WithIndexUnique(u bool) IndexOption {
	return func(io *IndexOptions) {
		io.Unique = u
	}
}

// WithIndexSparse makes the index skip documents that lack every indexed
// field.
func WithIndexSparse(s bool) IndexOption {
	return func(io *IndexOptions) {
		io.Sparse = s
	}
}

// WithIndexComparer sets the comparer used to order keys.
func WithIndexComparer(c Comparer) IndexOption {
	return func(io *IndexOptions) {
		io.Comparer = c
	}
}

// WithIndexHasher sets the hasher used to group matching keys.
func WithIndexHasher(h Hasher) IndexOption {
	return func(io *IndexOptions) {
		io.Hasher = h
	}
}

// WithIndexFieldNavigator sets the navigator used to read keys.
func WithIndexFieldNavigator(f FieldNavigator) IndexOption {
	return func(io *IndexOptions) {
		io.FieldNavigator = f
	}
}

// IndexOption configures an index through the functional options pattern.
type IndexOption func(*IndexOptions)

// IndexOptions contains the parameters of an index.
type IndexOptions struct {
	Name           string
	Keys           []IndexKey
	Unique         bool
	Sparse         bool
	Comparer       Comparer
	Hasher         Hasher
	FieldNavigator FieldNavigator
}

// WithModifyUpsert tells the modifier the document is being inserted by an
// upsert, enabling $setOnInsert.
func WithModifyUpsert(u bool) ModifyOption {
	return func(mo *ModifyOptions) {
		mo.Upsert = u
	}
}

// WithModifyPos sets the array position matched by the filter, used by the
// positional $ placeholder.
func WithModifyPos(p int) ModifyOption {
	return func(mo *ModifyOptions) {
		mo.Pos = p
	}
}

// ModifyOption configures a single modification.
type ModifyOption func(*ModifyOptions)

// ModifyOptions contains the parameters of a single modification.
type ModifyOptions struct {
	Upsert bool
	Pos    int
}

// WithQuery sets the filter used by the querier.
func WithQuery(q *value.Document) QueryOption {
	return func(qo *QueryOptions) {
		qo.Query = q
	}
}

// WithQueryLimit sets the maximum amount of documents returned.
func WithQueryLimit(l int64) QueryOption {
	return func(qo *QueryOptions) {
		qo.Limit = l
	}
}

// WithQuerySkip sets the amount of matching documents skipped.
func WithQuerySkip(s int64) QueryOption {
	return func(qo *QueryOptions) {
		qo.Skip = s
	}
}

// WithQuerySort sets the result order.
func WithQuerySort(s Sort) QueryOption {
	return func(qo *QueryOptions) {
		qo.Sort = s
	}
}

// WithQueryProjection sets the projection applied to the results.
func WithQueryProjection(p *value.Document) QueryOption {
	return func(qo *QueryOptions) {
		qo.Projection = p
	}
}

// QueryOption configures a querier call through the functional options
// pattern.
type QueryOption func(*QueryOptions)

// QueryOptions contains the parameters of a querier call.
type QueryOptions struct {
	Query      *value.Document
	Limit      int64
	Skip       int64
	Sort       Sort
	Projection *value.Document
	Cap        int
}

// WithCursorDecoder sets the decoder used by [Cursor.Scan].
func WithCursorDecoder(d Decoder) CursorOption {
	return func(co *CursorOptions) {
		co.Decoder = d
	}
}

// CursorOption configures a cursor through the functional options pattern.
type CursorOption func(*CursorOptions)

// CursorOptions contains the parameters of a cursor.
type CursorOptions struct {
	Decoder Decoder
}
