package aggregation

import (
	"context"
	"slices"
	"strings"

	"github.com/vinicius-lino-figueiredo/docengine/adapter/projector"
	"github.com/vinicius-lino-figueiredo/docengine/domain"
	"github.com/vinicius-lino-figueiredo/docengine/pkg/uncomparable"
	"github.com/vinicius-lino-figueiredo/docengine/pkg/value"
)

type matchStage struct {
	matcher domain.Matcher
}

func (p *Pipeline) parseMatch(arg value.Value) (stage, error) {
	filter, ok := arg.(*value.Document)
	if !ok {
		return nil, mismatch("$match", "a document", arg)
	}
	m := p.newMatcher()
	if err := m.SetQuery(filter); err != nil {
		return nil, err
	}
	return &matchStage{matcher: m}, nil
}

func (s *matchStage) run(_ context.Context, docs []*value.Document) ([]*value.Document, error) {
	res := make([]*value.Document, 0, len(docs))
	for _, doc := range docs {
		ok, err := s.matcher.Match(doc)
		if err != nil {
			return nil, err
		}
		if ok {
			res = append(res, doc)
		}
	}
	return res, nil
}

type computedField struct {
	addr []string
	expr expression
}

// projectStage keeps or drops flagged paths through the projector and then
// writes computed fields, evaluated against the input document.
type projectStage struct {
	p        *Pipeline
	flags    *value.Document
	computed []computedField
	empty    bool
}

func (p *Pipeline) parseProject(arg value.Value) (stage, error) {
	spec, ok := arg.(*value.Document)
	if !ok || spec.Len() == 0 {
		return nil, mismatch("$project", "a non-empty document", arg)
	}
	s := &projectStage{p: p, flags: value.NewDocument()}
	for _, f := range flattenProjection("", spec) {
		switch f.Value.(type) {
		case value.Bool, value.Int32, value.Int64, value.Double:
			s.flags.Set(f.Key, f.Value)
			continue
		}
		addr, err := p.fieldNavigator.GetAddress(f.Key)
		if err != nil {
			return nil, err
		}
		expr, err := p.compiler.compile(f.Value)
		if err != nil {
			return nil, err
		}
		s.computed = append(s.computed, computedField{addr: addr, expr: expr})
	}
	if len(s.computed) == 0 {
		return s, nil
	}

	keepID, included := true, 0
	for k, v := range s.flags.All() {
		if k == "_id" {
			keepID = value.Truthy(v)
			continue
		}
		if !value.Truthy(v) {
			return nil, projector.ErrMixOmitType
		}
		included++
	}
	if included == 0 {
		if keepID {
			s.flags = value.D("_id", value.Int32(1))
		} else {
			s.empty = true
		}
	}
	return s, nil
}

// flattenProjection turns nested projection documents into dotted paths.
// Documents starting with an operator are expressions and are kept as is.
func flattenProjection(prefix string, spec *value.Document) []value.Field {
	var res []value.Field
	for k, v := range spec.All() {
		path := k
		if prefix != "" {
			path = prefix + "." + k
		}
		if sub, ok := v.(*value.Document); ok && sub.Len() > 0 && !strings.HasPrefix(sub.Keys()[0], "$") {
			res = append(res, flattenProjection(path, sub)...)
			continue
		}
		res = append(res, value.Field{Key: path, Value: v})
	}
	return res
}

func (s *projectStage) run(_ context.Context, docs []*value.Document) ([]*value.Document, error) {
	var (
		res []*value.Document
		err error
	)
	if s.empty {
		res = make([]*value.Document, len(docs))
		for n := range res {
			res[n] = value.NewDocument()
		}
	} else if res, err = s.p.projector.Project(docs, s.flags); err != nil {
		return nil, err
	}
	if len(s.computed) == 0 {
		return res, nil
	}
	for n, doc := range docs {
		if err := s.p.setComputed(res[n], doc, s.computed); err != nil {
			return nil, err
		}
	}
	return res, nil
}

// setComputed evaluates fields against root and writes them into target.
// Fields evaluating to nothing are not written.
func (p *Pipeline) setComputed(target, root *value.Document, fields []computedField) error {
	s := scope{root: root}
	for _, f := range fields {
		v, err := f.expr.eval(s)
		if err != nil {
			return err
		}
		if v == nil {
			continue
		}
		gs, err := p.fieldNavigator.EnsureField(target, f.addr...)
		if err != nil {
			return err
		}
		gs.Set(value.Clone(v))
	}
	return nil
}

type addFieldsStage struct {
	p      *Pipeline
	fields []computedField
}

func (p *Pipeline) parseAddFields(arg value.Value) (stage, error) {
	spec, ok := arg.(*value.Document)
	if !ok || spec.Len() == 0 {
		return nil, mismatch("$addFields", "a non-empty document", arg)
	}
	s := &addFieldsStage{p: p}
	for k, v := range spec.All() {
		addr, err := p.fieldNavigator.GetAddress(k)
		if err != nil {
			return nil, err
		}
		if strings.HasPrefix(k, "$") {
			return nil, domain.ErrInvalidFieldName{Field: k, Reason: "field names cannot start with $"}
		}
		expr, err := p.compiler.compile(v)
		if err != nil {
			return nil, err
		}
		s.fields = append(s.fields, computedField{addr: addr, expr: expr})
	}
	return s, nil
}

func (s *addFieldsStage) run(_ context.Context, docs []*value.Document) ([]*value.Document, error) {
	res := make([]*value.Document, len(docs))
	for n, doc := range docs {
		res[n] = doc.Clone()
		if err := s.p.setComputed(res[n], doc, s.fields); err != nil {
			return nil, err
		}
	}
	return res, nil
}

type unsetStage struct {
	p     *Pipeline
	flags *value.Document
}

func (p *Pipeline) parseUnset(arg value.Value) (stage, error) {
	var fields value.Array
	switch t := arg.(type) {
	case value.String:
		fields = value.Array{t}
	case value.Array:
		fields = t
	}
	if len(fields) == 0 {
		return nil, mismatch("$unset", "a field name or an array of field names", arg)
	}
	s := &unsetStage{p: p, flags: value.NewDocument()}
	for _, f := range fields {
		name, ok := f.(value.String)
		if !ok {
			return nil, mismatch("$unset", "field names", f)
		}
		s.flags.Set(string(name), value.Int32(0))
	}
	return s, nil
}

func (s *unsetStage) run(_ context.Context, docs []*value.Document) ([]*value.Document, error) {
	return s.p.projector.Project(docs, s.flags)
}

type sortStage struct {
	p    *Pipeline
	sort domain.Sort
}

func (p *Pipeline) parseSort(arg value.Value) (stage, error) {
	spec, ok := arg.(*value.Document)
	if !ok || spec.Len() == 0 {
		return nil, mismatch("$sort", "a non-empty document", arg)
	}
	s := &sortStage{p: p}
	for k, v := range spec.All() {
		dir, ok := value.AsInt(v)
		if !ok || (dir != 1 && dir != -1) {
			return nil, mismatch("$sort", "1 or -1", v)
		}
		s.sort = append(s.sort, domain.SortName{Key: k, Order: dir})
	}
	return s, nil
}

func (s *sortStage) run(_ context.Context, docs []*value.Document) ([]*value.Document, error) {
	return s.p.querier.Query(docs, domain.WithQuerySort(s.sort))
}

func nonNegative(op string, arg value.Value) (int64, error) {
	n, ok := value.AsInt(arg)
	if !ok || n < 0 {
		return 0, mismatch(op, "a non-negative integer", arg)
	}
	return n, nil
}

type skipStage int64

func (p *Pipeline) parseSkip(arg value.Value) (stage, error) {
	n, err := nonNegative("$skip", arg)
	return skipStage(n), err
}

func (s skipStage) run(_ context.Context, docs []*value.Document) ([]*value.Document, error) {
	return docs[min(int64(s), int64(len(docs))):], nil
}

type limitStage int64

func (p *Pipeline) parseLimit(arg value.Value) (stage, error) {
	n, err := nonNegative("$limit", arg)
	if err == nil && n == 0 {
		err = mismatch("$limit", "a positive integer", arg)
	}
	return limitStage(n), err
}

func (s limitStage) run(_ context.Context, docs []*value.Document) ([]*value.Document, error) {
	return docs[:min(int64(s), int64(len(docs)))], nil
}

// unwindStage emits one document per element of an array field. Documents
// whose field is missing, empty or not an array are dropped unless preserve
// is set.
type unwindStage struct {
	p        *Pipeline
	addr     []string
	index    []string
	preserve bool
}

func (p *Pipeline) parseUnwind(arg value.Value) (stage, error) {
	s := &unwindStage{p: p}
	var path value.Value = arg
	if spec, ok := arg.(*value.Document); ok {
		path, _ = spec.Get("path")
		if idx, ok := spec.Get("includeArrayIndex"); ok {
			name, ok := idx.(value.String)
			if !ok || name == "" || strings.HasPrefix(string(name), "$") {
				return nil, mismatch("$unwind includeArrayIndex", "a field name", idx)
			}
			addr, err := p.fieldNavigator.GetAddress(string(name))
			if err != nil {
				return nil, err
			}
			s.index = addr
		}
		if preserve, ok := spec.Get("preserveNullAndEmptyArrays"); ok {
			b, ok := preserve.(value.Bool)
			if !ok {
				return nil, mismatch("$unwind preserveNullAndEmptyArrays", "a boolean", preserve)
			}
			s.preserve = bool(b)
		}
	}
	str, ok := path.(value.String)
	if !ok {
		return nil, mismatch("$unwind", "a field path", path)
	}
	field, ok := strings.CutPrefix(string(str), "$")
	if !ok {
		return nil, domain.ErrInvalidFieldName{Field: string(str), Reason: "unwind paths must start with $"}
	}
	addr, err := p.fieldNavigator.GetAddress(field)
	if err != nil {
		return nil, err
	}
	s.addr = addr
	return s, nil
}

func (s *unwindStage) run(_ context.Context, docs []*value.Document) ([]*value.Document, error) {
	res := make([]*value.Document, 0, len(docs))
	for _, doc := range docs {
		field, err := s.p.fieldNavigator.GetField(doc, s.addr...)
		if err != nil {
			return nil, err
		}
		v, _ := field.Get()
		arr, isArray := v.(value.Array)
		if len(arr) == 0 {
			if !s.preserve {
				continue
			}
			out := doc.Clone()
			if isArray {
				if f, err := s.p.fieldNavigator.GetField(out, s.addr...); err == nil {
					f.Unset()
				}
			}
			if err := s.setIndex(out, value.Null{}); err != nil {
				return nil, err
			}
			res = append(res, out)
			continue
		}
		for n, item := range arr {
			out := doc.Clone()
			f, err := s.p.fieldNavigator.EnsureField(out, s.addr...)
			if err != nil {
				return nil, err
			}
			f.Set(value.Clone(item))
			if err := s.setIndex(out, value.Int64(n)); err != nil {
				return nil, err
			}
			res = append(res, out)
		}
	}
	return res, nil
}

func (s *unwindStage) setIndex(doc *value.Document, v value.Value) error {
	if s.index == nil {
		return nil
	}
	f, err := s.p.fieldNavigator.EnsureField(doc, s.index...)
	if err != nil {
		return err
	}
	f.Set(v)
	return nil
}

// lookupStage joins documents of another collection. The foreign documents
// are indexed by their foreignField values once per run.
type lookupStage struct {
	p       *Pipeline
	from    string
	local   string
	localA  []string
	foreign []string
	as      []string
}

func (p *Pipeline) parseLookup(arg value.Value) (stage, error) {
	if p.registry == nil {
		return nil, ErrRegistryRequired
	}
	spec, ok := arg.(*value.Document)
	if !ok {
		return nil, mismatch("$lookup", "a document", arg)
	}
	fields := map[string]string{}
	for _, key := range []string{"from", "localField", "foreignField", "as"} {
		v, ok := spec.Get(key)
		str, isStr := v.(value.String)
		if !ok || !isStr || str == "" {
			return nil, domain.ErrInvalidOperator{Operator: "$lookup", Reason: key + " must be a non-empty string"}
		}
		fields[key] = string(str)
	}
	for key := range spec.All() {
		if _, ok := fields[key]; !ok {
			return nil, domain.ErrInvalidOperator{Operator: "$lookup", Reason: "unknown argument " + key}
		}
	}

	s := &lookupStage{p: p, from: fields["from"], local: fields["localField"]}
	var err error
	if s.localA, err = p.fieldNavigator.GetAddress(fields["localField"]); err != nil {
		return nil, err
	}
	if s.foreign, err = p.fieldNavigator.GetAddress(fields["foreignField"]); err != nil {
		return nil, err
	}
	if s.as, err = p.fieldNavigator.GetAddress(fields["as"]); err != nil {
		return nil, err
	}
	return s, nil
}

// keys returns the values doc is joined by: each resolved value and the
// elements of resolved arrays.
func (s *lookupStage) keys(doc *value.Document, addr []string) []value.Value {
	var res []value.Value
	for v := range s.p.fieldNavigator.Resolve(doc, addr...) {
		res = append(res, v)
		if arr, ok := v.(value.Array); ok {
			res = append(res, arr...)
		}
	}
	return res
}

func (s *lookupStage) run(ctx context.Context, docs []*value.Document) ([]*value.Document, error) {
	var foreign []*value.Document
	if coll, ok := s.p.registry.Collection(s.from); ok {
		var err error
		if foreign, err = coll.Snapshot(ctx); err != nil {
			return nil, err
		}
	}

	byKey := uncomparable.New[[]int](s.p.hasher, s.p.comparer)
	for n, f := range foreign {
		keys := s.keys(f, s.foreign)
		if len(keys) == 0 {
			keys = []value.Value{value.Null{}}
		}
		for _, k := range keys {
			positions, _ := byKey.Get(k)
			if len(positions) == 0 || positions[len(positions)-1] != n {
				byKey.Set(k, append(positions, n))
			}
		}
	}

	res := make([]*value.Document, len(docs))
	for n, doc := range docs {
		out := doc.Clone()
		res[n] = out
		joined := value.Array{}

		keys := s.keys(doc, s.localA)
		if len(keys) == 0 {
			id, _ := doc.ID()
			s.p.logger.Warn("lookup document without local field",
				"from", s.from,
				"localField", s.local,
				"_id", value.Format(orNull(id)),
			)
		}

		var matched []int
		for _, k := range keys {
			positions, _ := byKey.Get(k)
			matched = append(matched, positions...)
		}
		slices.Sort(matched)
		for _, pos := range slices.Compact(matched) {
			joined = append(joined, foreign[pos].Clone())
		}

		f, err := s.p.fieldNavigator.EnsureField(out, s.as...)
		if err != nil {
			return nil, err
		}
		f.Set(joined)
	}
	return res, nil
}

// sampleStage draws size documents with replacement.
type sampleStage struct {
	p    *Pipeline
	size int64
}

func (p *Pipeline) parseSample(arg value.Value) (stage, error) {
	spec, ok := arg.(*value.Document)
	if !ok {
		return nil, mismatch("$sample", "a document", arg)
	}
	size, ok := spec.Get("size")
	if !ok {
		return nil, domain.ErrInvalidOperator{Operator: "$sample", Reason: "size is required"}
	}
	n, err := nonNegative("$sample size", size)
	if err != nil {
		return nil, err
	}
	return &sampleStage{p: p, size: n}, nil
}

func (s *sampleStage) run(_ context.Context, docs []*value.Document) ([]*value.Document, error) {
	if len(docs) == 0 {
		return []*value.Document{}, nil
	}
	res := make([]*value.Document, s.size)
	for n := range res {
		res[n] = docs[s.p.intN(len(docs))].Clone()
	}
	return res, nil
}

// outStage replaces the contents of a collection with its input and emits
// nothing.
type outStage struct {
	p    *Pipeline
	name string
}

func (p *Pipeline) parseOut(arg value.Value) (stage, error) {
	if p.registry == nil {
		return nil, ErrRegistryRequired
	}
	name, ok := arg.(value.String)
	if !ok || name == "" {
		return nil, mismatch("$out", "a collection name", arg)
	}
	return &outStage{p: p, name: string(name)}, nil
}

func (s *outStage) run(ctx context.Context, docs []*value.Document) ([]*value.Document, error) {
	coll, err := s.p.registry.GetOrCreateCollection(ctx, s.name)
	if err != nil {
		return nil, err
	}
	if err := coll.ReplaceAll(ctx, docs); err != nil {
		return nil, err
	}
	s.p.logger.Debug("pipeline output written", "collection", s.name, "documents", len(docs))
	return []*value.Document{}, nil
}

type countStage string

func (p *Pipeline) parseCount(arg value.Value) (stage, error) {
	name, ok := arg.(value.String)
	if !ok || name == "" {
		return nil, mismatch("$count", "a non-empty field name", arg)
	}
	if strings.HasPrefix(string(name), "$") || strings.Contains(string(name), ".") {
		return nil, domain.ErrInvalidFieldName{Field: string(name), Reason: "count field names cannot start with $ or contain ."}
	}
	return countStage(name), nil
}

func (s countStage) run(_ context.Context, docs []*value.Document) ([]*value.Document, error) {
	if len(docs) == 0 {
		return []*value.Document{}, nil
	}
	var n value.Value = value.Int64(len(docs))
	if len(docs) <= 1<<31-1 {
		n = value.Int32(len(docs))
	}
	return []*value.Document{value.D(string(s), n)}, nil
}

type replaceRootStage struct {
	expr expression
}

func (p *Pipeline) parseReplaceRoot(arg value.Value) (stage, error) {
	spec, ok := arg.(*value.Document)
	if !ok {
		return nil, mismatch("$replaceRoot", "a document", arg)
	}
	newRoot, ok := spec.Get("newRoot")
	if !ok {
		return nil, domain.ErrInvalidOperator{Operator: "$replaceRoot", Reason: "newRoot is required"}
	}
	return p.parseReplaceWith(newRoot)
}

func (p *Pipeline) parseReplaceWith(arg value.Value) (stage, error) {
	expr, err := p.compiler.compile(arg)
	if err != nil {
		return nil, err
	}
	return &replaceRootStage{expr: expr}, nil
}

func (s *replaceRootStage) run(_ context.Context, docs []*value.Document) ([]*value.Document, error) {
	res := make([]*value.Document, len(docs))
	for n, doc := range docs {
		v, err := s.expr.eval(scope{root: doc})
		if err != nil {
			return nil, err
		}
		root, ok := v.(*value.Document)
		if !ok {
			return nil, mismatch("$replaceRoot", "newRoot to be a document", v)
		}
		res[n] = root.Clone()
	}
	return res, nil
}
