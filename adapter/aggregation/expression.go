package aggregation

import (
	"strings"

	"github.com/vinicius-lino-figueiredo/docengine/domain"
	"github.com/vinicius-lino-figueiredo/docengine/pkg/value"
)

// scope holds the variables visible to an expression. A nil result from
// eval means the expression produced no value, like a missing field.
type scope struct {
	root *value.Document
}

type expression interface {
	eval(s scope) (value.Value, error)
}

type literal struct {
	v value.Value
}

func (l literal) eval(scope) (value.Value, error) { return l.v, nil }

// fieldPath reads "$a.b" style paths. Paths that cross arrays produce an
// array with every value found.
type fieldPath struct {
	fn   domain.FieldNavigator
	addr []string
}

func (f fieldPath) eval(s scope) (value.Value, error) {
	if len(f.addr) == 0 {
		return s.root, nil
	}
	var (
		found   value.Array
		crossed bool
	)
	for item := range f.fn.Walk(s.root, f.addr...) {
		found = append(found, item.Value)
		crossed = crossed || item.Pos >= 0
	}
	if crossed {
		return found, nil
	}
	if len(found) == 0 {
		if f.crossesArray(s.root) {
			return value.Array{}, nil
		}
		return nil, nil
	}
	return found[0], nil
}

// crossesArray reports whether a proper prefix of the path reaches an array,
// in which case the path resolves to an array even when nothing is found.
func (f fieldPath) crossesArray(root value.Value) bool {
	for n := 1; n < len(f.addr); n++ {
		for item := range f.fn.Walk(root, f.addr[:n]...) {
			if _, ok := item.Value.(value.Array); ok || item.Pos >= 0 {
				return true
			}
		}
	}
	return false
}

type objectExpr struct {
	keys  []string
	exprs []expression
}

func (o objectExpr) eval(s scope) (value.Value, error) {
	doc := value.NewDocument()
	for n, e := range o.exprs {
		v, err := e.eval(s)
		if err != nil {
			return nil, err
		}
		if v != nil {
			doc.Set(o.keys[n], v)
		}
	}
	return doc, nil
}

type arrayExpr []expression

func (a arrayExpr) eval(s scope) (value.Value, error) {
	res := make(value.Array, len(a))
	for n, e := range a {
		v, err := e.eval(s)
		if err != nil {
			return nil, err
		}
		if v == nil {
			v = value.Null{}
		}
		res[n] = v
	}
	return res, nil
}

type call struct {
	name string
	op   operator
	comp *compiler
	args []expression
}

func (c call) eval(s scope) (value.Value, error) {
	if c.op.lazy != nil {
		return c.op.lazy(c.comp, s, c.args)
	}
	vals := make([]value.Value, len(c.args))
	for n, arg := range c.args {
		v, err := arg.eval(s)
		if err != nil {
			return nil, err
		}
		vals[n] = v
	}
	return c.op.eager(c.comp, c.name, vals)
}

// compiler turns expression values into evaluable trees.
type compiler struct {
	fn       domain.FieldNavigator
	comparer domain.Comparer
}

func (c *compiler) compile(v value.Value) (expression, error) {
	switch t := v.(type) {
	case value.String:
		if strings.HasPrefix(string(t), "$") {
			return c.compilePath(string(t))
		}
	case *value.Document:
		return c.compileDocument(t)
	case value.Array:
		res := make(arrayExpr, len(t))
		for n, item := range t {
			e, err := c.compile(item)
			if err != nil {
				return nil, err
			}
			res[n] = e
		}
		return res, nil
	}
	return literal{v: v}, nil
}

func (c *compiler) compilePath(path string) (expression, error) {
	if rest, ok := strings.CutPrefix(path, "$$"); ok {
		name, sub, _ := strings.Cut(rest, ".")
		if name != "ROOT" && name != "CURRENT" {
			return nil, domain.ErrInvalidOperator{Operator: path, Reason: "undefined variable"}
		}
		if sub == "" {
			return fieldPath{fn: c.fn}, nil
		}
		path = "$" + sub
	}
	addr, err := c.fn.GetAddress(path[1:])
	if err != nil {
		return nil, err
	}
	return fieldPath{fn: c.fn, addr: addr}, nil
}

func (c *compiler) compileDocument(doc *value.Document) (expression, error) {
	fields := doc.Fields()
	if len(fields) > 0 && strings.HasPrefix(fields[0].Key, "$") {
		return c.compileCall(doc)
	}
	obj := objectExpr{
		keys:  make([]string, len(fields)),
		exprs: make([]expression, len(fields)),
	}
	for n, f := range fields {
		if strings.HasPrefix(f.Key, "$") {
			return nil, domain.ErrInvalidFieldName{Field: f.Key, Reason: "field names in expression objects cannot start with $"}
		}
		e, err := c.compile(f.Value)
		if err != nil {
			return nil, err
		}
		obj.keys[n], obj.exprs[n] = f.Key, e
	}
	return obj, nil
}

func (c *compiler) compileCall(doc *value.Document) (expression, error) {
	fields := doc.Fields()
	name, arg := fields[0].Key, fields[0].Value
	if len(fields) != 1 {
		return nil, domain.ErrInvalidOperator{Operator: name, Reason: "an expression object with an operator must have a single field"}
	}
	if name == "$literal" {
		return literal{v: value.Clone(arg)}, nil
	}
	op, ok := operators[name]
	if !ok {
		return nil, domain.ErrInvalidOperator{Operator: name}
	}

	var raw []value.Value
	switch t := arg.(type) {
	case value.Array:
		raw = t
	case *value.Document:
		if op.named == nil {
			raw = []value.Value{t}
			break
		}
		for _, key := range op.named {
			v, ok := t.Get(key)
			if !ok {
				return nil, domain.ErrInvalidOperator{Operator: name, Reason: "missing argument " + key}
			}
			raw = append(raw, v)
		}
	default:
		raw = []value.Value{arg}
	}

	if len(raw) < op.minArgs || (op.maxArgs >= 0 && len(raw) > op.maxArgs) {
		return nil, domain.ErrInvalidOperator{Operator: name, Reason: "wrong number of arguments"}
	}

	args := make([]expression, len(raw))
	for n, r := range raw {
		e, err := c.compile(r)
		if err != nil {
			return nil, err
		}
		args[n] = e
	}
	return call{name: name, op: op, comp: c, args: args}, nil
}
