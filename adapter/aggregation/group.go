package aggregation

import (
	"context"
	"strings"

	"github.com/vinicius-lino-figueiredo/docengine/domain"
	"github.com/vinicius-lino-figueiredo/docengine/pkg/uncomparable"
	"github.com/vinicius-lino-figueiredo/docengine/pkg/value"
)

// accumulator folds the values of one group, in input order.
type accumulator interface {
	add(v value.Value)
	result() value.Value
}

var accumulators = map[string]func(p *Pipeline) accumulator{
	"$sum":      func(*Pipeline) accumulator { return &sumAcc{total: value.Int32(0)} },
	"$avg":      func(*Pipeline) accumulator { return &avgAcc{} },
	"$min":      func(p *Pipeline) accumulator { return &extremeAcc{comparer: p.comparer, dir: -1} },
	"$max":      func(p *Pipeline) accumulator { return &extremeAcc{comparer: p.comparer, dir: 1} },
	"$first":    func(*Pipeline) accumulator { return &firstAcc{} },
	"$last":     func(*Pipeline) accumulator { return &lastAcc{} },
	"$push":     func(*Pipeline) accumulator { return &pushAcc{items: value.Array{}} },
	"$addToSet": func(p *Pipeline) accumulator { return newAddToSetAcc(p) },
}

// sumAcc ignores non numeric values.
type sumAcc struct {
	total value.Value
}

func (a *sumAcc) add(v value.Value) {
	if value.IsNumber(v) {
		a.total = combine(a.total, v, addInt64, func(x, y float64) float64 { return x + y })
	}
}

func (a *sumAcc) result() value.Value { return a.total }

type avgAcc struct {
	sum   float64
	count int
}

func (a *avgAcc) add(v value.Value) {
	if f, ok := value.AsFloat(v); ok {
		a.sum += f
		a.count++
	}
}

func (a *avgAcc) result() value.Value {
	if a.count == 0 {
		return value.Null{}
	}
	return value.Double(a.sum / float64(a.count))
}

// extremeAcc keeps the smallest (dir -1) or largest (dir 1) non null value.
type extremeAcc struct {
	comparer domain.Comparer
	dir      int
	best     value.Value
}

func (a *extremeAcc) add(v value.Value) {
	if value.IsNull(v) {
		return
	}
	if a.best == nil || a.comparer.Compare(v, a.best)*a.dir > 0 {
		a.best = v
	}
}

func (a *extremeAcc) result() value.Value { return value.Clone(orNull(a.best)) }

type firstAcc struct {
	set bool
	v   value.Value
}

func (a *firstAcc) add(v value.Value) {
	if !a.set {
		a.v, a.set = v, true
	}
}

func (a *firstAcc) result() value.Value { return value.Clone(orNull(a.v)) }

type lastAcc struct {
	v value.Value
}

func (a *lastAcc) add(v value.Value) { a.v = v }

func (a *lastAcc) result() value.Value { return value.Clone(orNull(a.v)) }

type pushAcc struct {
	items value.Array
}

func (a *pushAcc) add(v value.Value) {
	if v != nil {
		a.items = append(a.items, value.Clone(v))
	}
}

func (a *pushAcc) result() value.Value { return a.items }

type addToSetAcc struct {
	seen  *uncomparable.Map[struct{}]
	items value.Array
}

func newAddToSetAcc(p *Pipeline) *addToSetAcc {
	return &addToSetAcc{
		seen:  uncomparable.New[struct{}](p.hasher, p.comparer),
		items: value.Array{},
	}
}

func (a *addToSetAcc) add(v value.Value) {
	if v == nil {
		return
	}
	if _, ok := a.seen.Get(v); ok {
		return
	}
	a.seen.Set(v, struct{}{})
	a.items = append(a.items, value.Clone(v))
}

func (a *addToSetAcc) result() value.Value { return a.items }

type groupField struct {
	name string
	acc  string
	expr expression
}

type groupStage struct {
	p      *Pipeline
	id     expression
	fields []groupField
}

func (p *Pipeline) parseGroup(arg value.Value) (stage, error) {
	spec, ok := arg.(*value.Document)
	if !ok {
		return nil, mismatch("$group", "a document", arg)
	}
	idSpec, ok := spec.Get("_id")
	if !ok {
		return nil, domain.ErrMissingGroupID
	}
	id, err := p.compiler.compile(idSpec)
	if err != nil {
		return nil, err
	}

	g := &groupStage{p: p, id: id}
	for name, v := range spec.All() {
		if name == "_id" {
			continue
		}
		if strings.HasPrefix(name, "$") || strings.Contains(name, ".") {
			return nil, domain.ErrInvalidFieldName{Field: name, Reason: "group field names cannot start with $ or contain ."}
		}
		accDoc, ok := v.(*value.Document)
		if !ok || accDoc.Len() != 1 {
			return nil, domain.ErrInvalidOperator{Operator: name, Reason: "the group field must be an accumulator object"}
		}
		f := accDoc.Fields()[0]
		if _, ok := accumulators[f.Key]; !ok {
			return nil, domain.ErrInvalidOperator{Operator: f.Key}
		}
		expr, err := p.compiler.compile(f.Value)
		if err != nil {
			return nil, err
		}
		g.fields = append(g.fields, groupField{name: name, acc: f.Key, expr: expr})
	}
	return g, nil
}

type group struct {
	key  value.Value
	accs []accumulator
}

// run emits groups in the order their first document arrived.
func (g *groupStage) run(_ context.Context, docs []*value.Document) ([]*value.Document, error) {
	groups := uncomparable.New[*group](g.p.hasher, g.p.comparer)
	var order []*group
	for _, doc := range docs {
		s := scope{root: doc}
		key, err := g.id.eval(s)
		if err != nil {
			return nil, err
		}
		key = orNull(key)
		grp, ok := groups.Get(key)
		if !ok {
			grp = &group{key: value.Clone(key), accs: make([]accumulator, len(g.fields))}
			for n, f := range g.fields {
				grp.accs[n] = accumulators[f.acc](g.p)
			}
			groups.Set(key, grp)
			order = append(order, grp)
		}
		for n, f := range g.fields {
			v, err := f.expr.eval(s)
			if err != nil {
				return nil, err
			}
			grp.accs[n].add(v)
		}
	}

	res := make([]*value.Document, len(order))
	for n, grp := range order {
		out := value.D("_id", grp.key)
		for i, f := range g.fields {
			out.Set(f.name, grp.accs[i].result())
		}
		res[n] = out
	}
	return res, nil
}
