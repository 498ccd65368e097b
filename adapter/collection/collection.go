// Package collection contains the default [domain.Collection] implementation.
package collection

import (
	"cmp"
	"context"
	"errors"
	"slices"
	"strings"
	"sync/atomic"
	"time"

	"github.com/vinicius-lino-figueiredo/docengine/adapter/aggregation"
	"github.com/vinicius-lino-figueiredo/docengine/adapter/comparer"
	"github.com/vinicius-lino-figueiredo/docengine/adapter/cursor"
	"github.com/vinicius-lino-figueiredo/docengine/adapter/decoder"
	"github.com/vinicius-lino-figueiredo/docengine/adapter/fieldnavigator"
	"github.com/vinicius-lino-figueiredo/docengine/adapter/hasher"
	"github.com/vinicius-lino-figueiredo/docengine/adapter/idgenerator"
	"github.com/vinicius-lino-figueiredo/docengine/adapter/index"
	"github.com/vinicius-lino-figueiredo/docengine/adapter/logger"
	"github.com/vinicius-lino-figueiredo/docengine/adapter/matcher"
	"github.com/vinicius-lino-figueiredo/docengine/adapter/metrics"
	"github.com/vinicius-lino-figueiredo/docengine/adapter/modifier"
	"github.com/vinicius-lino-figueiredo/docengine/adapter/projector"
	"github.com/vinicius-lino-figueiredo/docengine/adapter/querier"
	"github.com/vinicius-lino-figueiredo/docengine/adapter/timegetter"
	"github.com/vinicius-lino-figueiredo/docengine/domain"
	"github.com/vinicius-lino-figueiredo/docengine/pkg/ctxsync"
	"github.com/vinicius-lino-figueiredo/docengine/pkg/uncomparable"
	"github.com/vinicius-lino-figueiredo/docengine/pkg/value"
)

// Collection implements [domain.Collection]. Records are kept in insertion
// order and are never mutated: updates store a new record under the same
// sequence number.
type Collection struct {
	name       atomic.Pointer[string]
	lock       *ctxsync.RWMutex
	seq        uint64
	records    []*domain.Record
	indexes    map[string]domain.Index
	indexOrder []string

	timestampData  bool
	registry       domain.Registry
	logger         domain.Logger
	metrics        domain.Metrics
	idGenerator    domain.IDGenerator
	timeGetter     domain.TimeGetter
	comparer       domain.Comparer
	hasher         domain.Hasher
	fieldNavigator domain.FieldNavigator
	newMatcher     domain.MatcherFactory
	modifier       domain.Modifier
	projector      domain.Projector
	querier        domain.Querier
	decoder        domain.Decoder
	indexFactory   domain.IndexFactory
	cursorFactory  domain.CursorFactory
}

// NewCollection returns a new empty collection holding only the _id index.
func NewCollection(options ...Option) (*Collection, error) {
	c := &Collection{
		lock:    ctxsync.NewRWMutex(),
		indexes: make(map[string]domain.Index),
	}
	for _, option := range options {
		option(c)
	}
	if c.name.Load() == nil {
		c.name.Store(new(string))
	}
	if c.logger == nil {
		c.logger = logger.NewDiscardLogger()
	}
	if c.metrics == nil {
		c.metrics = metrics.NewNop()
	}
	if c.timeGetter == nil {
		c.timeGetter = timegetter.NewTimeGetter()
	}
	if c.idGenerator == nil {
		c.idGenerator = idgenerator.NewIDGenerator(idgenerator.WithTimeGetter(c.timeGetter))
	}
	if c.comparer == nil {
		c.comparer = comparer.NewComparer()
	}
	if c.hasher == nil {
		c.hasher = hasher.NewHasher()
	}
	if c.fieldNavigator == nil {
		c.fieldNavigator = fieldnavigator.NewFieldNavigator()
	}
	if c.newMatcher == nil {
		c.newMatcher = func() domain.Matcher {
			return matcher.NewMatcher(
				matcher.WithComparer(c.comparer),
				matcher.WithFieldNavigator(c.fieldNavigator),
			)
		}
	}
	if c.modifier == nil {
		c.modifier = modifier.NewModifier(
			modifier.WithComparer(c.comparer),
			modifier.WithFieldNavigator(c.fieldNavigator),
			modifier.WithMatcherFactory(c.newMatcher),
			modifier.WithTimeGetter(c.timeGetter),
		)
	}
	c.projector = projector.NewProjector(projector.WithFieldNavigator(c.fieldNavigator))
	c.querier = querier.NewQuerier(
		querier.WithMatcherFactory(c.newMatcher),
		querier.WithComparer(c.comparer),
		querier.WithFieldNavigator(c.fieldNavigator),
		querier.WithProjector(c.projector),
	)
	if c.decoder == nil {
		c.decoder = decoder.NewDecoder()
	}
	if c.indexFactory == nil {
		c.indexFactory = index.NewIndex
	}
	if c.cursorFactory == nil {
		c.cursorFactory = cursor.NewCursor
	}

	idIdx, err := c.newIndex(
		domain.WithIndexName(domain.IDIndexName),
		domain.WithIndexKeys(domain.IndexKey{Field: "_id", Direction: 1}),
		domain.WithIndexUnique(true),
	)
	if err != nil {
		return nil, err
	}
	c.indexes[domain.IDIndexName] = idIdx
	c.indexOrder = []string{domain.IDIndexName}
	return c, nil
}

func (c *Collection) newIndex(options ...domain.IndexOption) (domain.Index, error) {
	opts := append([]domain.IndexOption{
		domain.WithIndexComparer(c.comparer),
		domain.WithIndexHasher(c.hasher),
		domain.WithIndexFieldNavigator(c.fieldNavigator),
	}, options...)
	return c.indexFactory(opts...)
}

// Name implements [domain.Collection].
func (c *Collection) Name() string {
	return *c.name.Load()
}

// SetName renames the collection. Callers must hold the write lock.
func (c *Collection) SetName(name string) {
	c.name.Store(&name)
}

// Lock acquires the write lock, giving up when ctx is done.
func (c *Collection) Lock(ctx context.Context) error {
	return c.lock.LockWithContext(ctx)
}

// Unlock releases the write lock.
func (c *Collection) Unlock() {
	c.lock.Unlock()
}

func (c *Collection) observe(op string, started time.Time, err error) {
	c.metrics.Observe(c.Name(), op, started, err)
}

// finish records the outcome of a write and applies its write concern.
// Unacknowledged writes never report errors.
func (c *Collection) finish(op string, started time.Time, wc domain.WriteConcern, err error) (bool, error) {
	c.observe(op, started, err)
	if wc != domain.Unacknowledged {
		return true, err
	}
	if err != nil {
		c.logger.Error("unacknowledged write failed", "collection", c.Name(), "operation", op, "error", err)
	}
	return false, nil
}

// Insert implements [domain.Collection]. Either every document is inserted or
// none is.
func (c *Collection) Insert(ctx context.Context, docs []any, options ...domain.InsertOption) (domain.InsertOutcome, error) {
	started := time.Now()
	var opts domain.InsertOptions
	for _, option := range options {
		option(&opts)
	}

	ids, err := c.insert(ctx, docs)
	ack, err := c.finish("insert", started, opts.WriteConcern, err)
	if err != nil || !ack {
		return domain.InsertOutcome{Acknowledged: ack}, err
	}
	return domain.InsertOutcome{Acknowledged: true, InsertedIDs: ids}, nil
}

func (c *Collection) insert(ctx context.Context, raw []any) ([]value.Value, error) {
	docs := make([]*value.Document, len(raw))
	for n, r := range raw {
		doc, err := value.DocumentFromGo(r)
		if err != nil {
			return nil, err
		}
		docs[n] = doc.Clone()
	}

	if err := c.lock.LockWithContext(ctx); err != nil {
		return nil, err
	}
	defer c.lock.Unlock()

	recs, err := c.prepare(docs)
	if err != nil {
		return nil, err
	}
	if err := c.insertRecords(context.WithoutCancel(ctx), recs); err != nil {
		return nil, err
	}

	ids := make([]value.Value, len(recs))
	for n, rec := range recs {
		ids[n], _ = rec.Doc.ID()
	}
	return ids, nil
}

// prepare validates docs, gives them an _id and wraps them in records
// numbered after the current sequence. docs are changed in place.
func (c *Collection) prepare(docs []*value.Document) ([]*domain.Record, error) {
	now := value.DateTimeOf(c.timeGetter.GetTime())
	recs := make([]*domain.Record, len(docs))
	for n, doc := range docs {
		if err := checkDocument(doc); err != nil {
			return nil, err
		}
		id, ok := doc.ID()
		if !ok {
			newID, err := c.idGenerator.GenerateID()
			if err != nil {
				return nil, err
			}
			id = newID
		}
		switch id.(type) {
		case value.Array, value.Regex:
			return nil, domain.ErrInvalidFieldName{Field: "_id", Reason: "_id cannot be an array or a regular expression"}
		}
		doc.SetFirst("_id", id)

		if c.timestampData {
			if !doc.Has("createdAt") {
				doc.Set("createdAt", now)
			}
			if !doc.Has("updatedAt") {
				doc.Set("updatedAt", now)
			}
		}
		recs[n] = &domain.Record{Seq: c.seq + uint64(n) + 1, Doc: doc}
	}
	return recs, nil
}

func (c *Collection) insertRecords(ctx context.Context, recs []*domain.Record) error {
	for _, rec := range recs {
		for _, name := range c.indexOrder {
			if err := c.indexes[name].CheckUnique(rec); err != nil {
				return err
			}
		}
	}
	if err := c.addToIndexes(ctx, recs...); err != nil {
		return err
	}
	c.records = append(c.records, recs...)
	c.seq += uint64(len(recs))
	return nil
}

// Find implements [domain.Collection].
func (c *Collection) Find(ctx context.Context, filter any, options ...domain.FindOption) (cur domain.Cursor, err error) {
	defer func(started time.Time) { c.observe("find", started, err) }(time.Now())

	var opts domain.FindOptions
	for _, option := range options {
		option(&opts)
	}
	qry, err := value.DocumentFromGo(filter)
	if err != nil {
		return nil, err
	}
	proj, err := value.DocumentFromGo(opts.Projection)
	if err != nil {
		return nil, err
	}

	docs, err := c.findDocs(ctx, qry, opts.Sort, opts.Skip, opts.Limit, proj)
	if err != nil {
		return nil, err
	}
	return c.cursorFactory(ctx, docs, domain.WithCursorDecoder(c.decoder))
}

func (c *Collection) findDocs(ctx context.Context, qry *value.Document, sort domain.Sort, skip, limit int64, proj *value.Document) ([]*value.Document, error) {
	if err := c.lock.RLockWithContext(ctx); err != nil {
		return nil, err
	}
	defer c.lock.RUnlock()

	recs, err := c.find(ctx, qry, sort, skip, limit)
	if err != nil {
		return nil, err
	}
	return c.projector.Project(cloneRecords(recs), proj)
}

// find returns the records matching qry in natural order, or ordered by sort
// when given. Callers must hold the lock.
func (c *Collection) find(ctx context.Context, qry *value.Document, sort domain.Sort, skip, limit int64) ([]*domain.Record, error) {
	cands, err := c.candidates(ctx, qry)
	if err != nil {
		return nil, err
	}

	docs := make([]*value.Document, len(cands))
	byDoc := make(map[*value.Document]*domain.Record, len(cands))
	for n, rec := range cands {
		docs[n] = rec.Doc
		byDoc[rec.Doc] = rec
	}

	found, err := c.querier.Query(docs,
		domain.WithQuery(qry),
		domain.WithQuerySort(sort),
		domain.WithQuerySkip(skip),
		domain.WithQueryLimit(limit),
	)
	if err != nil {
		return nil, err
	}

	res := make([]*domain.Record, len(found))
	for n, doc := range found {
		res[n] = byDoc[doc]
	}
	return res, nil
}

// FindOne implements [domain.Collection]. It returns [domain.ErrNotFound]
// when nothing matches.
func (c *Collection) FindOne(ctx context.Context, filter any, target any, options ...domain.FindOption) error {
	cur, err := c.Find(ctx, filter, append(options, domain.WithFindLimit(1))...)
	if err != nil {
		return err
	}
	defer cur.Close()

	if !cur.Next() {
		if err := cur.Err(); err != nil {
			return err
		}
		return domain.ErrNotFound
	}
	return cur.Scan(ctx, target)
}

// Count implements [domain.Collection].
func (c *Collection) Count(ctx context.Context, filter any) (n int64, err error) {
	defer func(started time.Time) { c.observe("count", started, err) }(time.Now())

	qry, err := value.DocumentFromGo(filter)
	if err != nil {
		return 0, err
	}
	if err := c.lock.RLockWithContext(ctx); err != nil {
		return 0, err
	}
	defer c.lock.RUnlock()

	recs, err := c.find(ctx, qry, nil, 0, 0)
	if err != nil {
		return 0, err
	}
	return int64(len(recs)), nil
}

// Distinct implements [domain.Collection]. Array values contribute their
// elements. Values are listed in order of first appearance.
func (c *Collection) Distinct(ctx context.Context, field string, filter any) (res value.Array, err error) {
	defer func(started time.Time) { c.observe("distinct", started, err) }(time.Now())

	addr, err := c.fieldNavigator.GetAddress(field)
	if err != nil {
		return nil, err
	}
	qry, err := value.DocumentFromGo(filter)
	if err != nil {
		return nil, err
	}
	if err := c.lock.RLockWithContext(ctx); err != nil {
		return nil, err
	}
	defer c.lock.RUnlock()

	recs, err := c.find(ctx, qry, nil, 0, 0)
	if err != nil {
		return nil, err
	}

	seen := uncomparable.New[struct{}](c.hasher, c.comparer)
	res = value.Array{}
	add := func(v value.Value) {
		if _, ok := seen.Get(v); ok {
			return
		}
		seen.Set(v, struct{}{})
		res = append(res, value.Clone(v))
	}
	for _, rec := range recs {
		for v := range c.fieldNavigator.Resolve(rec.Doc, addr...) {
			if arr, ok := v.(value.Array); ok {
				for _, e := range arr {
					add(e)
				}
				continue
			}
			add(v)
		}
	}
	return res, nil
}

// Update implements [domain.Collection]. Either every matched document is
// updated or none is.
func (c *Collection) Update(ctx context.Context, filter, update any, options ...domain.UpdateOption) (domain.UpdateOutcome, error) {
	started := time.Now()
	var opts domain.UpdateOptions
	for _, option := range options {
		option(&opts)
	}

	res, err := c.update(ctx, filter, update, opts)
	ack, err := c.finish("update", started, opts.WriteConcern, err)
	if err != nil || !ack {
		return domain.UpdateOutcome{Acknowledged: ack}, err
	}
	res.Acknowledged = true
	return res, nil
}

func (c *Collection) update(ctx context.Context, filter, update any, opts domain.UpdateOptions) (domain.UpdateOutcome, error) {
	qry, err := value.DocumentFromGo(filter)
	if err != nil {
		return domain.UpdateOutcome{}, err
	}
	upd, err := value.DocumentFromGo(update)
	if err != nil {
		return domain.UpdateOutcome{}, err
	}
	if opts.Multi && !isOperatorDoc(upd) && upd.Len() > 0 {
		return domain.UpdateOutcome{}, domain.ErrInvalidOperator{Operator: "multi", Reason: "multi update only works with update operators"}
	}

	if err := c.lock.LockWithContext(ctx); err != nil {
		return domain.UpdateOutcome{}, err
	}
	defer c.lock.Unlock()
	ctx = context.WithoutCancel(ctx)

	limit := int64(1)
	if opts.Multi {
		limit = 0
	}
	recs, err := c.find(ctx, qry, nil, 0, limit)
	if err != nil {
		return domain.UpdateOutcome{}, err
	}

	if len(recs) == 0 {
		if !opts.Upsert {
			return domain.UpdateOutcome{}, nil
		}
		doc, err := c.upsert(ctx, qry, upd)
		if err != nil {
			return domain.UpdateOutcome{}, err
		}
		id, _ := doc.ID()
		return domain.UpdateOutcome{UpsertedID: id}, nil
	}

	pairs, err := c.modify(qry, upd, recs)
	if err != nil {
		return domain.UpdateOutcome{}, err
	}
	if err := c.commit(ctx, pairs); err != nil {
		return domain.UpdateOutcome{}, err
	}
	return domain.UpdateOutcome{Matched: int64(len(recs)), Modified: int64(len(pairs))}, nil
}

// modify applies upd to recs. Records left unchanged are not returned.
func (c *Collection) modify(qry, upd *value.Document, recs []*domain.Record) ([]domain.RecordUpdate, error) {
	m := c.newMatcher()
	if err := m.SetQuery(qry); err != nil {
		return nil, err
	}

	now := value.DateTimeOf(c.timeGetter.GetTime())
	pairs := make([]domain.RecordUpdate, 0, len(recs))
	for _, rec := range recs {
		match, err := m.MatchPos(rec.Doc)
		if err != nil {
			return nil, err
		}
		doc, err := c.modifier.Modify(rec.Doc, upd, domain.WithModifyPos(match.Pos))
		if err != nil {
			return nil, err
		}
		if value.Identical(rec.Doc, doc) {
			continue
		}
		if err := checkDocument(doc); err != nil {
			return nil, err
		}
		if c.timestampData {
			if created, ok := rec.Doc.Get("createdAt"); ok {
				doc.Set("createdAt", created)
			}
			doc.Set("updatedAt", now)
		}
		pairs = append(pairs, domain.RecordUpdate{
			Old: rec,
			New: &domain.Record{Seq: rec.Seq, Doc: doc},
		})
	}
	return pairs, nil
}

func (c *Collection) commit(ctx context.Context, pairs []domain.RecordUpdate) error {
	if len(pairs) == 0 {
		return nil
	}
	if err := c.updateIndexes(ctx, pairs...); err != nil {
		return err
	}
	for _, pair := range pairs {
		n, ok := slices.BinarySearchFunc(c.records, pair.Old.Seq, func(r *domain.Record, seq uint64) int {
			return cmp.Compare(r.Seq, seq)
		})
		if ok {
			c.records[n] = pair.New
		}
	}
	return nil
}

// upsert inserts the document built from the equality terms of qry and upd.
func (c *Collection) upsert(ctx context.Context, qry, upd *value.Document) (*value.Document, error) {
	base := value.NewDocument()
	c.collectEqualities(base, qry)

	doc, err := c.modifier.Modify(base, upd, domain.WithModifyUpsert(true))
	if err != nil {
		return nil, err
	}
	recs, err := c.prepare([]*value.Document{doc})
	if err != nil {
		return nil, err
	}
	if err := c.insertRecords(ctx, recs); err != nil {
		return nil, err
	}
	return recs[0].Doc, nil
}

func (c *Collection) collectEqualities(base, qry *value.Document) {
	for k, v := range qry.All() {
		if k == "$and" {
			arr, _ := v.(value.Array)
			for _, e := range arr {
				if d, ok := e.(*value.Document); ok {
					c.collectEqualities(base, d)
				}
			}
			continue
		}
		if strings.HasPrefix(k, "$") {
			continue
		}
		eq, ok := equalityValue(v)
		if !ok {
			continue
		}
		addr, err := c.fieldNavigator.GetAddress(k)
		if err != nil {
			continue
		}
		gs, err := c.fieldNavigator.EnsureField(base, addr...)
		if err != nil {
			continue
		}
		gs.Set(value.Clone(eq))
	}
}

// Delete implements [domain.Collection].
func (c *Collection) Delete(ctx context.Context, filter any, options ...domain.DeleteOption) (domain.DeleteOutcome, error) {
	started := time.Now()
	var opts domain.DeleteOptions
	for _, option := range options {
		option(&opts)
	}

	n, err := c.delete(ctx, filter, opts.Multi)
	ack, err := c.finish("delete", started, opts.WriteConcern, err)
	if err != nil || !ack {
		return domain.DeleteOutcome{Acknowledged: ack}, err
	}
	return domain.DeleteOutcome{Acknowledged: true, Deleted: n}, nil
}

func (c *Collection) delete(ctx context.Context, filter any, multi bool) (int64, error) {
	qry, err := value.DocumentFromGo(filter)
	if err != nil {
		return 0, err
	}
	if err := c.lock.LockWithContext(ctx); err != nil {
		return 0, err
	}
	defer c.lock.Unlock()
	ctx = context.WithoutCancel(ctx)

	limit := int64(1)
	if multi {
		limit = 0
	}
	recs, err := c.find(ctx, qry, nil, 0, limit)
	if err != nil {
		return 0, err
	}
	if err := c.removeRecords(ctx, recs); err != nil {
		return 0, err
	}
	return int64(len(recs)), nil
}

func (c *Collection) removeRecords(ctx context.Context, recs []*domain.Record) error {
	if len(recs) == 0 {
		return nil
	}
	if err := c.removeFromIndexes(ctx, recs...); err != nil {
		return err
	}
	gone := make(map[uint64]struct{}, len(recs))
	for _, rec := range recs {
		gone[rec.Seq] = struct{}{}
	}
	c.records = slices.DeleteFunc(c.records, func(r *domain.Record) bool {
		_, ok := gone[r.Seq]
		return ok
	})
	return nil
}

// FindOneAndUpdate implements [domain.Collection]. It returns the document as
// it was before the update unless [domain.WithReturnNew] is set. When nothing
// matches it returns [domain.ErrNotFound], or the upserted document (nil
// without ReturnNew) when upserting.
func (c *Collection) FindOneAndUpdate(ctx context.Context, filter, update any, options ...domain.FindAndModifyOption) (res *value.Document, err error) {
	defer func(started time.Time) { c.observe("findOneAndUpdate", started, err) }(time.Now())

	var opts domain.FindAndModifyOptions
	for _, option := range options {
		option(&opts)
	}
	qry, err := value.DocumentFromGo(filter)
	if err != nil {
		return nil, err
	}
	upd, err := value.DocumentFromGo(update)
	if err != nil {
		return nil, err
	}
	proj, err := value.DocumentFromGo(opts.Projection)
	if err != nil {
		return nil, err
	}

	if err := c.lock.LockWithContext(ctx); err != nil {
		return nil, err
	}
	defer c.lock.Unlock()
	ctx = context.WithoutCancel(ctx)

	recs, err := c.find(ctx, qry, opts.Sort, 0, 1)
	if err != nil {
		return nil, err
	}

	if len(recs) == 0 {
		if !opts.Upsert {
			return nil, domain.ErrNotFound
		}
		doc, err := c.upsert(ctx, qry, upd)
		if err != nil || !opts.ReturnNew {
			return nil, err
		}
		return c.projectOne(doc, proj)
	}

	pairs, err := c.modify(qry, upd, recs)
	if err != nil {
		return nil, err
	}
	if err := c.commit(ctx, pairs); err != nil {
		return nil, err
	}
	doc := recs[0].Doc
	if opts.ReturnNew && len(pairs) > 0 {
		doc = pairs[0].New.Doc
	}
	return c.projectOne(doc, proj)
}

// FindOneAndDelete implements [domain.Collection]. It returns the removed
// document or [domain.ErrNotFound].
func (c *Collection) FindOneAndDelete(ctx context.Context, filter any, options ...domain.FindAndModifyOption) (res *value.Document, err error) {
	defer func(started time.Time) { c.observe("findOneAndDelete", started, err) }(time.Now())

	var opts domain.FindAndModifyOptions
	for _, option := range options {
		option(&opts)
	}
	qry, err := value.DocumentFromGo(filter)
	if err != nil {
		return nil, err
	}
	proj, err := value.DocumentFromGo(opts.Projection)
	if err != nil {
		return nil, err
	}

	if err := c.lock.LockWithContext(ctx); err != nil {
		return nil, err
	}
	defer c.lock.Unlock()
	ctx = context.WithoutCancel(ctx)

	recs, err := c.find(ctx, qry, opts.Sort, 0, 1)
	if err != nil {
		return nil, err
	}
	if len(recs) == 0 {
		return nil, domain.ErrNotFound
	}
	if err := c.removeRecords(ctx, recs); err != nil {
		return nil, err
	}
	return c.projectOne(recs[0].Doc, proj)
}

func (c *Collection) projectOne(doc, proj *value.Document) (*value.Document, error) {
	res, err := c.projector.Project([]*value.Document{doc.Clone()}, proj)
	if err != nil {
		return nil, err
	}
	return res[0], nil
}

// CreateIndex implements [domain.Collection]. keys is a document mapping
// fields to 1 or -1. Creating an index that already exists with the same
// definition does nothing.
func (c *Collection) CreateIndex(ctx context.Context, keys any, options ...domain.IndexOption) (name string, err error) {
	defer func(started time.Time) { c.observe("createIndex", started, err) }(time.Now())

	keyDoc, err := value.DocumentFromGo(keys)
	if err != nil {
		return "", err
	}
	idxKeys, err := indexKeys(keyDoc)
	if err != nil {
		return "", err
	}

	var opts domain.IndexOptions
	for _, option := range options {
		option(&opts)
	}
	spec := domain.IndexSpec{Name: opts.Name, Keys: idxKeys, Unique: opts.Unique, Sparse: opts.Sparse}
	if spec.Name == "" {
		spec.Name = domain.DefaultIndexName(idxKeys)
	}

	if err := c.lock.LockWithContext(ctx); err != nil {
		return "", err
	}
	defer c.lock.Unlock()

	for _, existing := range c.indexOrder {
		es := c.indexes[existing].Spec()
		if es.Name != spec.Name && !es.SameKeys(spec) {
			continue
		}
		if es.SameKeys(spec) && es.Unique == spec.Unique && es.Sparse == spec.Sparse {
			return es.Name, nil
		}
		return "", domain.ErrIndexExists
	}

	idx, err := c.newIndex(append(options,
		domain.WithIndexName(spec.Name),
		domain.WithIndexKeys(idxKeys...),
	)...)
	if err != nil {
		return "", err
	}
	if err := idx.Insert(context.WithoutCancel(ctx), c.records...); err != nil {
		return "", err
	}

	c.indexes[spec.Name] = idx
	c.indexOrder = append(c.indexOrder, spec.Name)
	c.logger.Info("index created", "collection", c.Name(), "index", spec.Name, "documents", len(c.records))
	return spec.Name, nil
}

func indexKeys(doc *value.Document) ([]domain.IndexKey, error) {
	if doc.Len() == 0 {
		return nil, domain.ErrNoIndexKeys
	}
	keys := make([]domain.IndexKey, 0, doc.Len())
	for field, v := range doc.All() {
		dir, ok := value.AsInt(v)
		if !ok || (dir != 1 && dir != -1) {
			return nil, domain.ErrTypeMismatch{Op: "createIndex", Want: "1 or -1", Actual: v}
		}
		keys = append(keys, domain.IndexKey{Field: field, Direction: int(dir)})
	}
	return keys, nil
}

// DropIndex implements [domain.Collection].
func (c *Collection) DropIndex(ctx context.Context, name string) (err error) {
	defer func(started time.Time) { c.observe("dropIndex", started, err) }(time.Now())

	if name == domain.IDIndexName {
		return domain.ErrCannotDropIDIndex
	}
	if err := c.lock.LockWithContext(ctx); err != nil {
		return err
	}
	defer c.lock.Unlock()

	if _, ok := c.indexes[name]; !ok {
		return domain.ErrIndexNotFound
	}
	delete(c.indexes, name)
	c.indexOrder = slices.DeleteFunc(c.indexOrder, func(n string) bool { return n == name })
	c.logger.Info("index dropped", "collection", c.Name(), "index", name)
	return nil
}

// Indexes implements [domain.Collection]. Indexes are listed in creation
// order, starting with _id.
func (c *Collection) Indexes(ctx context.Context) ([]domain.IndexSpec, error) {
	if err := c.lock.RLockWithContext(ctx); err != nil {
		return nil, err
	}
	defer c.lock.RUnlock()

	specs := make([]domain.IndexSpec, len(c.indexOrder))
	for n, name := range c.indexOrder {
		specs[n] = c.indexes[name].Spec()
	}
	return specs, nil
}

// Aggregate implements [domain.Collection]. The pipeline runs over a snapshot
// taken when it starts, without holding the collection lock.
func (c *Collection) Aggregate(ctx context.Context, pipeline []any) (cur domain.Cursor, err error) {
	defer func(started time.Time) { c.observe("aggregate", started, err) }(time.Now())

	stages := make(value.Array, len(pipeline))
	for n, s := range pipeline {
		if stages[n], err = value.FromGo(s); err != nil {
			return nil, err
		}
	}
	p, err := aggregation.NewPipeline(stages,
		aggregation.WithRegistry(c.registry),
		aggregation.WithLogger(c.logger),
		aggregation.WithComparer(c.comparer),
		aggregation.WithHasher(c.hasher),
		aggregation.WithFieldNavigator(c.fieldNavigator),
		aggregation.WithMatcherFactory(c.newMatcher),
	)
	if err != nil {
		return nil, err
	}

	docs, err := c.snapshot(ctx)
	if err != nil {
		return nil, err
	}
	out, err := p.Run(ctx, docs)
	if err != nil {
		return nil, err
	}
	return c.cursorFactory(ctx, out, domain.WithCursorDecoder(c.decoder))
}

// Snapshot implements [domain.Collection].
func (c *Collection) Snapshot(ctx context.Context) (docs []*value.Document, err error) {
	defer func(started time.Time) { c.observe("snapshot", started, err) }(time.Now())
	return c.snapshot(ctx)
}

func (c *Collection) snapshot(ctx context.Context) ([]*value.Document, error) {
	if err := c.lock.RLockWithContext(ctx); err != nil {
		return nil, err
	}
	defer c.lock.RUnlock()
	return cloneRecords(c.records), nil
}

// ReplaceAll implements [domain.Collection]. Indexes are rebuilt from docs.
// On failure the previous contents are kept.
func (c *Collection) ReplaceAll(ctx context.Context, docs []*value.Document) (err error) {
	defer func(started time.Time) { c.observe("replaceAll", started, err) }(time.Now())

	clones := make([]*value.Document, len(docs))
	for n, doc := range docs {
		clones[n] = doc.Clone()
	}

	if err := c.lock.LockWithContext(ctx); err != nil {
		return err
	}
	defer c.lock.Unlock()
	ctx = context.WithoutCancel(ctx)

	recs, err := c.prepare(clones)
	if err != nil {
		return err
	}
	for n, name := range c.indexOrder {
		if err := c.indexes[name].Reset(ctx, recs...); err != nil {
			errs := []error{err}
			for _, prev := range c.indexOrder[:n+1] {
				if restoreErr := c.indexes[prev].Reset(ctx, c.records...); restoreErr != nil {
					errs = append(errs, restoreErr)
				}
			}
			return errors.Join(errs...)
		}
	}
	c.records = recs
	c.seq += uint64(len(recs))
	return nil
}

func cloneRecords(recs []*domain.Record) []*value.Document {
	docs := make([]*value.Document, len(recs))
	for n, rec := range recs {
		docs[n] = rec.Doc.Clone()
	}
	return docs
}

// checkDocument rejects field names starting with '$' or containing '.', at
// any depth.
func checkDocument(doc *value.Document) error {
	for k, v := range doc.All() {
		if strings.HasPrefix(k, "$") {
			return domain.ErrInvalidFieldName{Field: k, Reason: "field names cannot start with '$'"}
		}
		if strings.Contains(k, ".") {
			return domain.ErrInvalidFieldName{Field: k, Reason: "field names cannot contain '.'"}
		}
		if err := checkValue(v); err != nil {
			return err
		}
	}
	return nil
}

func checkValue(v value.Value) error {
	switch t := v.(type) {
	case *value.Document:
		return checkDocument(t)
	case value.Array:
		for _, e := range t {
			if err := checkValue(e); err != nil {
				return err
			}
		}
	}
	return nil
}
