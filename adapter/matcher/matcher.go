// Package matcher contains the default implementation of [domain.Matcher]
// using the mongo-like filter language.
package matcher

import (
	"math"
	"slices"
	"strings"

	"github.com/vinicius-lino-figueiredo/docengine/adapter/comparer"
	"github.com/vinicius-lino-figueiredo/docengine/adapter/fieldnavigator"
	"github.com/vinicius-lino-figueiredo/docengine/domain"
	"github.com/vinicius-lino-figueiredo/docengine/pkg/value"
)

// Matcher implements [domain.Matcher].
type Matcher struct {
	comparer       domain.Comparer
	fieldNavigator domain.FieldNavigator
	query          Query
}

// NewMatcher returns a new implementation of domain.Matcher.
func NewMatcher(options ...Option) domain.Matcher {
	m := &Matcher{
		comparer:       comparer.NewComparer(),
		fieldNavigator: fieldnavigator.NewFieldNavigator(),
		query:          Query{Lo: LogicOp{Type: And}},
	}
	for _, option := range options {
		option(m)
	}
	return m
}

// SetQuery implements [domain.Matcher]. A nil query matches everything.
func (m *Matcher) SetQuery(query *value.Document) error {
	qry, err := m.makeQuery(query)
	if err != nil {
		return err
	}
	m.query = qry
	return nil
}

func (m *Matcher) makeQuery(query *value.Document) (Query, error) {
	lo, err := m.makeLogicOp(query)
	return Query{Lo: lo}, err
}

// makeLogicOp compiles a filter document into an And of its field rules and
// logic operators, kept in document order.
func (m *Matcher) makeLogicOp(query *value.Document) (LogicOp, error) {
	lo := LogicOp{Type: And}
	for key, v := range query.All() {
		if !strings.HasPrefix(key, "$") {
			rule, err := m.makeFieldRule(key, v)
			if err != nil {
				return lo, err
			}
			lo.Rules = append(lo.Rules, rule)
			continue
		}
		var typ uint8
		switch key {
		case "$and":
			typ = And
		case "$or":
			typ = Or
		case "$nor":
			typ = Nor
		case "$comment":
			continue
		default:
			return lo, domain.ErrInvalidOperator{Operator: key}
		}
		sub, err := m.makeSubOps(key, typ, v)
		if err != nil {
			return lo, err
		}
		lo.Sub = append(lo.Sub, sub)
	}
	return lo, nil
}

func (m *Matcher) makeSubOps(name string, typ uint8, v value.Value) (LogicOp, error) {
	lo := LogicOp{Type: typ}
	arr, ok := v.(value.Array)
	if !ok || len(arr) == 0 {
		return lo, domain.ErrInvalidOperator{Operator: name, Reason: "must be a nonempty array"}
	}
	lo.Sub = make([]LogicOp, 0, len(arr))
	for _, item := range arr {
		doc, ok := item.(*value.Document)
		if !ok {
			return lo, domain.ErrInvalidOperator{Operator: name, Reason: "entries must be documents"}
		}
		sub, err := m.makeLogicOp(doc)
		if err != nil {
			return lo, err
		}
		lo.Sub = append(lo.Sub, sub)
	}
	return lo, nil
}

func (m *Matcher) makeFieldRule(field string, v value.Value) (FieldRule, error) {
	addr, err := m.fieldNavigator.GetAddress(field)
	if err != nil {
		return FieldRule{}, err
	}
	switch t := v.(type) {
	case value.Regex:
		cond, err := m.makeRegex(t, nil)
		return FieldRule{Addr: addr, Conds: []Cond{cond}}, err
	case *value.Document:
		dollar, err := m.ensureNotMixed(t)
		if err != nil {
			return FieldRule{}, err
		}
		if dollar {
			return m.makeDollarRule(addr, t)
		}
	}
	return FieldRule{Addr: addr, Conds: []Cond{{Op: Eq, Val: v}}}, nil
}

// ensureNotMixed reports whether doc is an operator document, failing when it
// mixes operators and plain fields.
func (m *Matcher) ensureNotMixed(doc *value.Document) (bool, error) {
	var dollar, total int
	var op string
	for key := range doc.All() {
		total++
		if strings.HasPrefix(key, "$") {
			dollar++
			op = key
		}
	}
	if dollar > 0 && dollar != total {
		return false, domain.ErrInvalidOperator{Operator: op, Reason: "cannot mix operators and fields"}
	}
	return dollar > 0, nil
}

func (m *Matcher) makeDollarRule(addr []string, doc *value.Document) (FieldRule, error) {
	conds, err := m.makeConds(doc)
	return FieldRule{Addr: addr, Conds: conds}, err
}

func (m *Matcher) makeConds(doc *value.Document) ([]Cond, error) {
	conds := make([]Cond, 0, doc.Len())
	for key, v := range doc.All() {
		switch key {
		case "$options":
			if !doc.Has("$regex") {
				return nil, domain.ErrInvalidOperator{Operator: key, Reason: "needs a $regex"}
			}
			continue
		case "$regex":
			cond, err := m.makeRegexOp(v, doc)
			if err != nil {
				return nil, err
			}
			conds = append(conds, cond)
			continue
		}
		cond, err := m.makeCond(key, v)
		if err != nil {
			return nil, err
		}
		conds = append(conds, cond)
	}
	return conds, nil
}

func (m *Matcher) makeCond(k string, v value.Value) (Cond, error) {
	switch k {
	case "$eq":
		return Cond{Op: Eq, Val: v}, nil
	case "$ne":
		return Cond{Op: Ne, Val: v}, nil
	case "$gt":
		return Cond{Op: Gt, Val: v}, nil
	case "$gte":
		return Cond{Op: Gte, Val: v}, nil
	case "$lt":
		return Cond{Op: Lt, Val: v}, nil
	case "$lte":
		return Cond{Op: Lte, Val: v}, nil
	case "$in":
		return m.makeIn(In, k, v)
	case "$nin":
		return m.makeIn(Nin, k, v)
	case "$exists":
		return Cond{Op: Exists, Exists: value.Truthy(v)}, nil
	case "$type":
		return m.makeType(v)
	case "$mod":
		return m.makeMod(v)
	case "$all":
		return m.makeAll(v)
	case "$size":
		return m.makeSize(v)
	case "$elemMatch":
		return m.makeElemMatch(v)
	case "$not":
		return m.makeNot(v)
	default:
		return Cond{}, domain.ErrInvalidOperator{Operator: k}
	}
}

func (m *Matcher) makeRegexOp(v value.Value, doc *value.Document) (Cond, error) {
	var r value.Regex
	switch t := v.(type) {
	case value.String:
		r.Pattern = string(t)
	case value.Regex:
		r = t
	default:
		return Cond{}, domain.ErrTypeMismatch{Op: "$regex", Want: "string or regex", Actual: v}
	}
	opts, ok := doc.Get("$options")
	if !ok {
		return m.makeRegex(r, nil)
	}
	s, ok := opts.(value.String)
	if !ok {
		return Cond{}, domain.ErrTypeMismatch{Op: "$options", Want: "string", Actual: opts}
	}
	return m.makeRegex(r, &s)
}

func (m *Matcher) makeRegex(r value.Regex, opts *value.String) (Cond, error) {
	if opts != nil {
		r.Options = string(*opts)
	}
	rgx, err := compileRegex(r)
	if err != nil {
		return Cond{}, err
	}
	return Cond{Op: Regex, Val: r, Rgx: rgx}, nil
}

func (m *Matcher) makeIn(op uint8, name string, v value.Value) (Cond, error) {
	arr, ok := v.(value.Array)
	if !ok {
		return Cond{}, domain.ErrTypeMismatch{Op: name, Want: "array", Actual: v}
	}
	cond := Cond{Op: op, Vals: make([]value.Value, 0, len(arr))}
	for _, item := range arr {
		r, ok := item.(value.Regex)
		if !ok {
			cond.Vals = append(cond.Vals, item)
			continue
		}
		rgx, err := compileRegex(r)
		if err != nil {
			return Cond{}, err
		}
		cond.Rgxs = append(cond.Rgxs, rgx)
	}
	return cond, nil
}

func (m *Matcher) makeType(v value.Value) (Cond, error) {
	cond := Cond{Op: Type}
	items, ok := v.(value.Array)
	if !ok {
		items = value.Array{v}
	}
	for _, item := range items {
		switch t := item.(type) {
		case value.String:
			if t == "number" {
				cond.Numbers = true
				continue
			}
			k, ok := value.KindByName(string(t))
			if !ok {
				return Cond{}, domain.ErrInvalidOperator{Operator: "$type", Reason: "unknown type name " + string(t)}
			}
			cond.Kinds = append(cond.Kinds, k)
		case value.Int32, value.Int64, value.Double:
			code, ok := value.AsInt(t)
			if !ok || code < math.MinInt8 || code > math.MaxInt8 || value.Kind(code).String() == "unknown" {
				return Cond{}, domain.ErrInvalidOperator{Operator: "$type", Reason: "invalid numerical type code " + value.Format(t)}
			}
			cond.Kinds = append(cond.Kinds, value.Kind(code))
		default:
			return Cond{}, domain.ErrTypeMismatch{Op: "$type", Want: "type name or code", Actual: item}
		}
	}
	return cond, nil
}

func (m *Matcher) makeMod(v value.Value) (Cond, error) {
	arr, ok := v.(value.Array)
	if !ok || len(arr) != 2 {
		return Cond{}, domain.ErrTypeMismatch{Op: "$mod", Want: "array of [divisor, remainder]", Actual: v}
	}
	div, ok := truncate(arr[0])
	if !ok {
		return Cond{}, domain.ErrTypeMismatch{Op: "$mod", Want: "number", Actual: arr[0]}
	}
	if div == 0 {
		return Cond{}, domain.ErrTypeMismatch{Op: "$mod", Want: "nonzero divisor", Actual: arr[0]}
	}
	rem, ok := truncate(arr[1])
	if !ok {
		return Cond{}, domain.ErrTypeMismatch{Op: "$mod", Want: "number", Actual: arr[1]}
	}
	return Cond{Op: Mod, Div: div, Rem: rem}, nil
}

// truncate returns the integer part of a finite number.
func truncate(v value.Value) (int64, bool) {
	switch t := v.(type) {
	case value.Int32:
		return int64(t), true
	case value.Int64:
		return int64(t), true
	case value.Double:
		f := math.Trunc(float64(t))
		if math.IsNaN(f) || f < math.MinInt64 || f >= math.MaxInt64 {
			return 0, false
		}
		return int64(f), true
	}
	return 0, false
}

func (m *Matcher) makeAll(v value.Value) (Cond, error) {
	arr, ok := v.(value.Array)
	if !ok {
		return Cond{}, domain.ErrTypeMismatch{Op: "$all", Want: "array", Actual: v}
	}
	cond := Cond{Op: All}
	for _, item := range arr {
		switch t := item.(type) {
		case value.Regex:
			rgx, err := compileRegex(t)
			if err != nil {
				return Cond{}, err
			}
			cond.Rgxs = append(cond.Rgxs, rgx)
			continue
		case *value.Document:
			if em, ok := t.Get("$elemMatch"); ok && t.Len() == 1 {
				sub, err := m.makeElemMatch(em)
				if err != nil {
					return Cond{}, err
				}
				cond.Conds = append(cond.Conds, sub)
				continue
			}
		}
		cond.Vals = append(cond.Vals, item)
	}
	return cond, nil
}

func (m *Matcher) makeSize(v value.Value) (Cond, error) {
	n, ok := value.AsInt(v)
	if !ok || n < 0 || n > math.MaxInt32 {
		return Cond{}, domain.ErrTypeMismatch{Op: "$size", Want: "non-negative integer", Actual: v}
	}
	return Cond{Op: Size, Size: int(n)}, nil
}

func (m *Matcher) makeElemMatch(v value.Value) (Cond, error) {
	doc, ok := v.(*value.Document)
	if !ok {
		return Cond{}, domain.ErrTypeMismatch{Op: "$elemMatch", Want: "document", Actual: v}
	}
	if m.isOperatorOnly(doc) {
		conds, err := m.makeConds(doc)
		if err != nil {
			return Cond{}, err
		}
		return Cond{Op: ElemMatch, Scalar: true, Conds: conds}, nil
	}
	qry, err := m.makeQuery(doc)
	if err != nil {
		return Cond{}, err
	}
	return Cond{Op: ElemMatch, Sub: &qry}, nil
}

// isOperatorOnly reports whether doc starts with a field operator, as opposed
// to a field name or a logic operator.
func (m *Matcher) isOperatorOnly(doc *value.Document) bool {
	fields := doc.Fields()
	if len(fields) == 0 {
		return false
	}
	switch k := fields[0].Key; k {
	case "$and", "$or", "$nor", "$comment":
		return false
	default:
		return strings.HasPrefix(k, "$")
	}
}

func (m *Matcher) makeNot(v value.Value) (Cond, error) {
	switch t := v.(type) {
	case value.Regex:
		cond, err := m.makeRegex(t, nil)
		if err != nil {
			return Cond{}, err
		}
		return Cond{Op: Not, Conds: []Cond{cond}}, nil
	case *value.Document:
		if t.Len() == 0 {
			return Cond{}, domain.ErrInvalidOperator{Operator: "$not", Reason: "cannot be empty"}
		}
		dollar, err := m.ensureNotMixed(t)
		if err != nil {
			return Cond{}, err
		}
		if !dollar {
			return Cond{}, domain.ErrTypeMismatch{Op: "$not", Want: "operator document or regex", Actual: v}
		}
		conds, err := m.makeConds(t)
		if err != nil {
			return Cond{}, err
		}
		return Cond{Op: Not, Conds: conds}, nil
	}
	return Cond{}, domain.ErrTypeMismatch{Op: "$not", Want: "operator document or regex", Actual: v}
}

// Match implements [domain.Matcher].
func (m *Matcher) Match(v value.Value) (bool, error) {
	res, err := m.MatchPos(v)
	return res.Matched, err
}

// MatchPos implements [domain.Matcher].
func (m *Matcher) MatchPos(v value.Value) (domain.MatchResult, error) {
	ok, pos := m.matchLogicOp(v, m.query.Lo)
	if !ok {
		pos = -1
	}
	return domain.MatchResult{Matched: ok, Pos: pos}, nil
}

func (m *Matcher) matchLogicOp(v value.Value, lo LogicOp) (bool, int) {
	switch lo.Type {
	case And:
		pos := -1
		for _, rule := range lo.Rules {
			ok, p := m.matchRule(v, rule)
			if !ok {
				return false, -1
			}
			pos = firstPos(pos, p)
		}
		for _, sub := range lo.Sub {
			ok, p := m.matchLogicOp(v, sub)
			if !ok {
				return false, -1
			}
			pos = firstPos(pos, p)
		}
		return true, pos
	case Or:
		for _, sub := range lo.Sub {
			if ok, p := m.matchLogicOp(v, sub); ok {
				return true, p
			}
		}
		return false, -1
	case Nor:
		for _, sub := range lo.Sub {
			if ok, _ := m.matchLogicOp(v, sub); ok {
				return false, -1
			}
		}
		return true, -1
	default:
		return false, -1
	}
}

func firstPos(curr, p int) int {
	if curr < 0 {
		return p
	}
	return curr
}

func (m *Matcher) matchRule(v value.Value, rule FieldRule) (bool, int) {
	found := slices.Collect(m.fieldNavigator.Walk(v, rule.Addr...))
	return m.matchConds(found, rule.Conds)
}

func (m *Matcher) matchConds(found []domain.Found, conds []Cond) (bool, int) {
	pos := -1
	for n := range conds {
		ok, p := m.matchCond(found, &conds[n])
		if !ok {
			return false, -1
		}
		pos = firstPos(pos, p)
	}
	return true, pos
}

func (m *Matcher) matchCond(found []domain.Found, cond *Cond) (bool, int) {
	switch cond.Op {
	case Eq:
		return m.eq(found, cond.Val)
	case Ne:
		ok, _ := m.eq(found, cond.Val)
		return !ok, -1
	case Gt, Gte, Lt, Lte:
		return m.compare(found, cond)
	case In:
		return m.in(found, cond)
	case Nin:
		ok, _ := m.in(found, cond)
		return !ok, -1
	case Exists:
		return (len(found) > 0) == cond.Exists, -1
	case Type:
		return anyValue(found, func(v value.Value) bool {
			return m.hasType(v, cond)
		})
	case Mod:
		return anyValue(found, func(v value.Value) bool {
			i, ok := truncate(v)
			return ok && i%cond.Div == cond.Rem
		})
	case All:
		return m.all(found, cond)
	case Size:
		for _, f := range found {
			if arr, ok := f.Value.(value.Array); ok && len(arr) == cond.Size {
				return true, f.Pos
			}
		}
		return false, -1
	case ElemMatch:
		return m.elemMatch(found, cond)
	case Not:
		ok, _ := m.matchConds(found, cond.Conds)
		return !ok, -1
	case Regex:
		return anyValue(found, func(v value.Value) bool {
			return matchRegex(v, cond)
		})
	default:
		return false, -1
	}
}

// anyValue reports whether pred holds for a resolved value or, when that
// value is an array, for one of its elements. The returned position is the
// one of the matching array element.
func anyValue(found []domain.Found, pred func(value.Value) bool) (bool, int) {
	for _, f := range found {
		if pred(f.Value) {
			return true, f.Pos
		}
		arr, ok := f.Value.(value.Array)
		if !ok {
			continue
		}
		for n, item := range arr {
			if pred(item) {
				if f.Pos >= 0 {
					return true, f.Pos
				}
				return true, n
			}
		}
	}
	return false, -1
}

func (m *Matcher) eq(found []domain.Found, lit value.Value) (bool, int) {
	if len(found) == 0 {
		return value.IsNull(lit), -1
	}
	return anyValue(found, func(v value.Value) bool {
		return m.comparer.Equal(v, lit)
	})
}

func (m *Matcher) compare(found []domain.Found, cond *Cond) (bool, int) {
	if len(found) == 0 {
		// a missing field is null, which only satisfies inclusive bounds
		// against null.
		return value.IsNull(cond.Val) && (cond.Op == Gte || cond.Op == Lte), -1
	}
	return anyValue(found, func(v value.Value) bool {
		if !m.comparer.Comparable(v, cond.Val) {
			return false
		}
		c := m.comparer.Compare(v, cond.Val)
		switch cond.Op {
		case Gt:
			return c > 0
		case Gte:
			return c >= 0
		case Lt:
			return c < 0
		default:
			return c <= 0
		}
	})
}

func (m *Matcher) in(found []domain.Found, cond *Cond) (bool, int) {
	if len(found) == 0 {
		return slices.ContainsFunc(cond.Vals, value.IsNull), -1
	}
	return anyValue(found, func(v value.Value) bool {
		for _, lit := range cond.Vals {
			if m.comparer.Equal(v, lit) {
				return true
			}
		}
		s, ok := v.(value.String)
		if !ok {
			return false
		}
		for _, rgx := range cond.Rgxs {
			if rgx.MatchString(string(s)) {
				return true
			}
		}
		return false
	})
}

func (m *Matcher) hasType(v value.Value, cond *Cond) bool {
	if cond.Numbers && value.IsNumber(v) {
		return true
	}
	return slices.Contains(cond.Kinds, value.KindOf(v))
}

func matchRegex(v value.Value, cond *Cond) bool {
	switch t := v.(type) {
	case value.String:
		return cond.Rgx.MatchString(string(t))
	case value.Regex:
		return t == cond.Val
	}
	return false
}

func (m *Matcher) all(found []domain.Found, cond *Cond) (bool, int) {
	if len(cond.Vals)+len(cond.Rgxs)+len(cond.Conds) == 0 {
		return false, -1
	}
	for _, lit := range cond.Vals {
		if ok, _ := m.eq(found, lit); !ok {
			return false, -1
		}
	}
	for _, rgx := range cond.Rgxs {
		ok, _ := anyValue(found, func(v value.Value) bool {
			s, isStr := v.(value.String)
			return isStr && rgx.MatchString(string(s))
		})
		if !ok {
			return false, -1
		}
	}
	for n := range cond.Conds {
		if ok, _ := m.elemMatch(found, &cond.Conds[n]); !ok {
			return false, -1
		}
	}
	return true, -1
}

func (m *Matcher) elemMatch(found []domain.Found, cond *Cond) (bool, int) {
	for _, f := range found {
		arr, ok := f.Value.(value.Array)
		if !ok {
			continue
		}
		for n, item := range arr {
			if !m.matchElem(item, cond) {
				continue
			}
			if f.Pos >= 0 {
				return true, f.Pos
			}
			return true, n
		}
	}
	return false, -1
}

func (m *Matcher) matchElem(item value.Value, cond *Cond) bool {
	if cond.Scalar {
		ok, _ := m.matchConds([]domain.Found{{Value: item, Pos: -1}}, cond.Conds)
		return ok
	}
	doc, ok := item.(*value.Document)
	if !ok {
		return false
	}
	ok, _ = m.matchLogicOp(doc, cond.Sub.Lo)
	return ok
}
