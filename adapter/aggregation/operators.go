package aggregation

import (
	"math"
	"strings"
	"time"

	"github.com/vinicius-lino-figueiredo/docengine/domain"
	"github.com/vinicius-lino-figueiredo/docengine/pkg/value"
)

// operator describes an expression operator. Eager operators receive their
// evaluated arguments, lazy ones decide what to evaluate. named lists the
// argument keys accepted in the document form, like {$cond: {if, then, else}}.
type operator struct {
	minArgs, maxArgs int
	named            []string
	eager            func(c *compiler, name string, args []value.Value) (value.Value, error)
	lazy             func(c *compiler, s scope, args []expression) (value.Value, error)
}

var operators = map[string]operator{
	"$add":         {minArgs: 0, maxArgs: -1, eager: (*compiler).add},
	"$subtract":    {minArgs: 2, maxArgs: 2, eager: (*compiler).subtract},
	"$multiply":    {minArgs: 0, maxArgs: -1, eager: (*compiler).multiply},
	"$divide":      {minArgs: 2, maxArgs: 2, eager: (*compiler).divide},
	"$mod":         {minArgs: 2, maxArgs: 2, eager: (*compiler).mod},
	"$abs":         {minArgs: 1, maxArgs: 1, eager: (*compiler).abs},
	"$concat":      {minArgs: 0, maxArgs: -1, eager: (*compiler).concat},
	"$toLower":     {minArgs: 1, maxArgs: 1, eager: (*compiler).changeCase},
	"$toUpper":     {minArgs: 1, maxArgs: 1, eager: (*compiler).changeCase},
	"$substr":      {minArgs: 3, maxArgs: 3, eager: (*compiler).substr},
	"$substrBytes": {minArgs: 3, maxArgs: 3, eager: (*compiler).substr},
	"$strLenBytes": {minArgs: 1, maxArgs: 1, eager: (*compiler).strLenBytes},
	"$eq":          {minArgs: 2, maxArgs: 2, eager: (*compiler).compare},
	"$ne":          {minArgs: 2, maxArgs: 2, eager: (*compiler).compare},
	"$gt":          {minArgs: 2, maxArgs: 2, eager: (*compiler).compare},
	"$gte":         {minArgs: 2, maxArgs: 2, eager: (*compiler).compare},
	"$lt":          {minArgs: 2, maxArgs: 2, eager: (*compiler).compare},
	"$lte":         {minArgs: 2, maxArgs: 2, eager: (*compiler).compare},
	"$cmp":         {minArgs: 2, maxArgs: 2, eager: (*compiler).compare},
	"$and":         {minArgs: 0, maxArgs: -1, lazy: (*compiler).and},
	"$or":          {minArgs: 0, maxArgs: -1, lazy: (*compiler).or},
	"$not":         {minArgs: 1, maxArgs: 1, eager: (*compiler).not},
	"$cond":        {minArgs: 3, maxArgs: 3, named: []string{"if", "then", "else"}, lazy: (*compiler).cond},
	"$ifNull":      {minArgs: 2, maxArgs: 2, lazy: (*compiler).ifNull},
	"$size":        {minArgs: 1, maxArgs: 1, eager: (*compiler).size},
	"$arrayElemAt": {minArgs: 2, maxArgs: 2, eager: (*compiler).arrayElemAt},
	"$in":          {minArgs: 2, maxArgs: 2, eager: (*compiler).in},
	"$year":        {minArgs: 1, maxArgs: 1, eager: (*compiler).datePart},
	"$month":       {minArgs: 1, maxArgs: 1, eager: (*compiler).datePart},
	"$dayOfMonth":  {minArgs: 1, maxArgs: 1, eager: (*compiler).datePart},
	"$hour":        {minArgs: 1, maxArgs: 1, eager: (*compiler).datePart},
	"$minute":      {minArgs: 1, maxArgs: 1, eager: (*compiler).datePart},
	"$second":      {minArgs: 1, maxArgs: 1, eager: (*compiler).datePart},
}

func mismatch(op, want string, v value.Value) error {
	if v == nil {
		v = value.Null{}
	}
	return domain.ErrTypeMismatch{Op: op, Want: want, Actual: v}
}

func orNull(v value.Value) value.Value {
	if v == nil {
		return value.Null{}
	}
	return v
}

// combine applies an arithmetic operation keeping the widest operand type.
// Integer results that overflow move to the next wider type.
func combine(a, b value.Value, ints func(x, y int64) (int64, bool), floats func(x, y float64) float64) value.Value {
	_, aDouble := a.(value.Double)
	_, bDouble := b.(value.Double)
	if !aDouble && !bDouble {
		x, _ := value.AsInt(a)
		y, _ := value.AsInt(b)
		if r, ok := ints(x, y); ok {
			_, a64 := a.(value.Int64)
			_, b64 := b.(value.Int64)
			if !a64 && !b64 && r >= math.MinInt32 && r <= math.MaxInt32 {
				return value.Int32(r)
			}
			return value.Int64(r)
		}
	}
	x, _ := value.AsFloat(a)
	y, _ := value.AsFloat(b)
	return value.Double(floats(x, y))
}

func addInt64(a, b int64) (int64, bool) {
	r := a + b
	if (a > 0 && b > 0 && r < 0) || (a < 0 && b < 0 && r >= 0) {
		return 0, false
	}
	return r, true
}

func subInt64(a, b int64) (int64, bool) {
	if b == math.MinInt64 {
		if a >= 0 {
			return 0, false
		}
		return a - b, true
	}
	return addInt64(a, -b)
}

func mulInt64(a, b int64) (int64, bool) {
	if a == 0 || b == 0 {
		return 0, true
	}
	if (a == -1 && b == math.MinInt64) || (b == -1 && a == math.MinInt64) {
		return 0, false
	}
	r := a * b
	if r/b != a {
		return 0, false
	}
	return r, true
}

func (c *compiler) add(name string, args []value.Value) (value.Value, error) {
	var (
		sum     value.Value = value.Int32(0)
		date    value.DateTime
		hasDate bool
	)
	for _, arg := range args {
		switch t := arg.(type) {
		case nil, value.Null:
			return value.Null{}, nil
		case value.DateTime:
			if hasDate {
				return nil, mismatch(name, "at most one date", arg)
			}
			date, hasDate = t, true
		case value.Int32, value.Int64, value.Double:
			sum = combine(sum, arg, addInt64, func(x, y float64) float64 { return x + y })
		default:
			return nil, mismatch(name, "numbers or a date", arg)
		}
	}
	if hasDate {
		f, _ := value.AsFloat(sum)
		return date + value.DateTime(math.Round(f)), nil
	}
	return sum, nil
}

func (c *compiler) subtract(name string, args []value.Value) (value.Value, error) {
	a, b := args[0], args[1]
	if value.IsNull(a) || value.IsNull(b) {
		return value.Null{}, nil
	}
	if x, ok := a.(value.DateTime); ok {
		switch y := b.(type) {
		case value.DateTime:
			return value.Int64(x - y), nil
		case value.Int32, value.Int64, value.Double:
			f, _ := value.AsFloat(y)
			return x - value.DateTime(math.Round(f)), nil
		}
		return nil, mismatch(name, "a date or a number", b)
	}
	if !value.IsNumber(a) {
		return nil, mismatch(name, "a number or a date", a)
	}
	if !value.IsNumber(b) {
		return nil, mismatch(name, "a number", b)
	}
	return combine(a, b, subInt64, func(x, y float64) float64 { return x - y }), nil
}

func (c *compiler) multiply(name string, args []value.Value) (value.Value, error) {
	var product value.Value = value.Int32(1)
	for _, arg := range args {
		if value.IsNull(arg) {
			return value.Null{}, nil
		}
		if !value.IsNumber(arg) {
			return nil, mismatch(name, "numbers", arg)
		}
		product = combine(product, arg, mulInt64, func(x, y float64) float64 { return x * y })
	}
	return product, nil
}

// numbers returns the two arguments of a binary numeric operator. null is
// reported with ok false.
func numbers(name string, args []value.Value) (a, b value.Value, ok bool, err error) {
	a, b = args[0], args[1]
	if value.IsNull(a) || value.IsNull(b) {
		return nil, nil, false, nil
	}
	for _, v := range args {
		if !value.IsNumber(v) {
			return nil, nil, false, mismatch(name, "numbers", v)
		}
	}
	if f, _ := value.AsFloat(b); f == 0 {
		return nil, nil, false, mismatch(name, "a non-zero divisor", b)
	}
	return a, b, true, nil
}

func (c *compiler) divide(name string, args []value.Value) (value.Value, error) {
	a, b, ok, err := numbers(name, args)
	if !ok {
		return value.Null{}, err
	}
	x, _ := value.AsFloat(a)
	y, _ := value.AsFloat(b)
	return value.Double(x / y), nil
}

func (c *compiler) mod(name string, args []value.Value) (value.Value, error) {
	a, b, ok, err := numbers(name, args)
	if !ok {
		return value.Null{}, err
	}
	return combine(a, b,
		func(x, y int64) (int64, bool) { return x % y, true },
		math.Mod,
	), nil
}

func (c *compiler) abs(name string, args []value.Value) (value.Value, error) {
	switch t := args[0].(type) {
	case nil, value.Null:
		return value.Null{}, nil
	case value.Int32:
		if t == math.MinInt32 {
			return -value.Int64(t), nil
		}
		if t < 0 {
			return -t, nil
		}
		return t, nil
	case value.Int64:
		if t == math.MinInt64 {
			return value.Double(-float64(t)), nil
		}
		if t < 0 {
			return -t, nil
		}
		return t, nil
	case value.Double:
		return value.Double(math.Abs(float64(t))), nil
	}
	return nil, mismatch(name, "a number", args[0])
}

func (c *compiler) concat(name string, args []value.Value) (value.Value, error) {
	var b strings.Builder
	for _, arg := range args {
		switch t := arg.(type) {
		case nil, value.Null:
			return value.Null{}, nil
		case value.String:
			b.WriteString(string(t))
		default:
			return nil, mismatch(name, "strings", arg)
		}
	}
	return value.String(b.String()), nil
}

func (c *compiler) changeCase(name string, args []value.Value) (value.Value, error) {
	switch t := args[0].(type) {
	case nil, value.Null:
		return value.String(""), nil
	case value.String:
		if name == "$toLower" {
			return value.String(strings.ToLower(string(t))), nil
		}
		return value.String(strings.ToUpper(string(t))), nil
	}
	return nil, mismatch(name, "a string", args[0])
}

func (c *compiler) substr(name string, args []value.Value) (value.Value, error) {
	var s string
	switch t := args[0].(type) {
	case nil, value.Null:
		return value.String(""), nil
	case value.String:
		s = string(t)
	default:
		return nil, mismatch(name, "a string", args[0])
	}
	start, ok := value.AsInt(args[1])
	if !ok {
		return nil, mismatch(name, "an integer start", args[1])
	}
	length, ok := value.AsInt(args[2])
	if !ok {
		return nil, mismatch(name, "an integer length", args[2])
	}
	if start < 0 || start >= int64(len(s)) {
		return value.String(""), nil
	}
	end := int64(len(s))
	if length >= 0 && start+length < end {
		end = start + length
	}
	return value.String(s[start:end]), nil
}

func (c *compiler) strLenBytes(name string, args []value.Value) (value.Value, error) {
	s, ok := args[0].(value.String)
	if !ok {
		return nil, mismatch(name, "a string", args[0])
	}
	return value.Int32(len(s)), nil
}

func (c *compiler) compare(name string, args []value.Value) (value.Value, error) {
	cmp := c.comparer.Compare(orNull(args[0]), orNull(args[1]))
	switch name {
	case "$eq":
		return value.Bool(cmp == 0), nil
	case "$ne":
		return value.Bool(cmp != 0), nil
	case "$gt":
		return value.Bool(cmp > 0), nil
	case "$gte":
		return value.Bool(cmp >= 0), nil
	case "$lt":
		return value.Bool(cmp < 0), nil
	case "$lte":
		return value.Bool(cmp <= 0), nil
	}
	return value.Int32(max(-1, min(1, cmp))), nil
}

func (c *compiler) and(s scope, args []expression) (value.Value, error) {
	for _, arg := range args {
		v, err := arg.eval(s)
		if err != nil {
			return nil, err
		}
		if !value.Truthy(v) {
			return value.Bool(false), nil
		}
	}
	return value.Bool(true), nil
}

func (c *compiler) or(s scope, args []expression) (value.Value, error) {
	for _, arg := range args {
		v, err := arg.eval(s)
		if err != nil {
			return nil, err
		}
		if value.Truthy(v) {
			return value.Bool(true), nil
		}
	}
	return value.Bool(false), nil
}

func (c *compiler) not(_ string, args []value.Value) (value.Value, error) {
	return value.Bool(!value.Truthy(args[0])), nil
}

func (c *compiler) cond(s scope, args []expression) (value.Value, error) {
	v, err := args[0].eval(s)
	if err != nil {
		return nil, err
	}
	if value.Truthy(v) {
		return args[1].eval(s)
	}
	return args[2].eval(s)
}

func (c *compiler) ifNull(s scope, args []expression) (value.Value, error) {
	v, err := args[0].eval(s)
	if err != nil {
		return nil, err
	}
	if !value.IsNull(v) {
		return v, nil
	}
	return args[1].eval(s)
}

func (c *compiler) size(name string, args []value.Value) (value.Value, error) {
	arr, ok := args[0].(value.Array)
	if !ok {
		return nil, mismatch(name, "an array", args[0])
	}
	return value.Int32(len(arr)), nil
}

func (c *compiler) arrayElemAt(name string, args []value.Value) (value.Value, error) {
	if value.IsNull(args[0]) || value.IsNull(args[1]) {
		return value.Null{}, nil
	}
	arr, ok := args[0].(value.Array)
	if !ok {
		return nil, mismatch(name, "an array", args[0])
	}
	idx, ok := value.AsInt(args[1])
	if !ok {
		return nil, mismatch(name, "an integer index", args[1])
	}
	if idx < 0 {
		idx += int64(len(arr))
	}
	if idx < 0 || idx >= int64(len(arr)) {
		return nil, nil
	}
	return arr[idx], nil
}

func (c *compiler) in(name string, args []value.Value) (value.Value, error) {
	arr, ok := args[1].(value.Array)
	if !ok {
		return nil, mismatch(name, "an array", args[1])
	}
	needle := orNull(args[0])
	for _, item := range arr {
		if c.comparer.Equal(needle, item) {
			return value.Bool(true), nil
		}
	}
	return value.Bool(false), nil
}

func (c *compiler) datePart(name string, args []value.Value) (value.Value, error) {
	var t time.Time
	switch d := args[0].(type) {
	case nil, value.Null:
		return value.Null{}, nil
	case value.DateTime:
		t = d.Time()
	case value.ObjectID:
		t = d.Timestamp().UTC()
	default:
		return nil, mismatch(name, "a date", args[0])
	}
	switch name {
	case "$year":
		return value.Int32(t.Year()), nil
	case "$month":
		return value.Int32(t.Month()), nil
	case "$dayOfMonth":
		return value.Int32(t.Day()), nil
	case "$hour":
		return value.Int32(t.Hour()), nil
	case "$minute":
		return value.Int32(t.Minute()), nil
	}
	return value.Int32(t.Second()), nil
}
