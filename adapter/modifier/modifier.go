// Package modifier contains a [domain.Modifier] implementation to apply changes
// to a doc based on a mongo-like API.
package modifier

import (
	"fmt"
	"math"
	"slices"
	"strconv"
	"strings"

	"github.com/vinicius-lino-figueiredo/docengine/adapter/comparer"
	"github.com/vinicius-lino-figueiredo/docengine/adapter/fieldnavigator"
	"github.com/vinicius-lino-figueiredo/docengine/adapter/matcher"
	"github.com/vinicius-lino-figueiredo/docengine/adapter/timegetter"
	"github.com/vinicius-lino-figueiredo/docengine/domain"
	"github.com/vinicius-lino-figueiredo/docengine/pkg/value"
)

const setOnInsert = "$setOnInsert"

type modFunc func(doc *value.Document, addr []string, arg value.Value) error

type pushProps struct {
	each     value.Array
	position int
	hasPos   bool
	sort     *value.Document
	sortDir  int
	slice    int
	hasSlice bool
}

// Modifier implements [domain.Modifier].
type Modifier struct {
	comparer       domain.Comparer
	fieldNavigator domain.FieldNavigator
	matcherFactory domain.MatcherFactory
	timeGetter     domain.TimeGetter
	mods           map[string]modFunc
}

// NewModifier implements [domain.Modifier].
func NewModifier(options ...Option) domain.Modifier {
	m := &Modifier{
		comparer:       comparer.NewComparer(),
		fieldNavigator: fieldnavigator.NewFieldNavigator(),
		timeGetter:     timegetter.NewTimeGetter(),
	}
	for _, option := range options {
		option(m)
	}
	if m.matcherFactory == nil {
		m.matcherFactory = func() domain.Matcher {
			return matcher.NewMatcher(
				matcher.WithComparer(m.comparer),
				matcher.WithFieldNavigator(m.fieldNavigator),
			)
		}
	}

	m.mods = map[string]modFunc{
		"$set":         m.set,
		"$unset":       m.unset,
		"$inc":         m.inc,
		"$mul":         m.mul,
		"$min":         m.minMax("$min", -1),
		"$max":         m.minMax("$max", 1),
		"$rename":      m.rename,
		"$push":        m.push,
		"$addToSet":    m.addToSet,
		"$pop":         m.pop,
		"$pull":        m.pull,
		"$pullAll":     m.pullAll,
		"$currentDate": m.currentDate,
		setOnInsert:    m.set,
	}

	return m
}

// Modify implements [domain.Modifier].
func (m *Modifier) Modify(doc, update *value.Document, options ...domain.ModifyOption) (*value.Document, error) {
	opts := domain.ModifyOptions{Pos: -1}
	for _, option := range options {
		option(&opts)
	}

	if update.Len() > 0 && strings.HasPrefix(update.Fields()[0].Key, "$") {
		return m.dollarMod(doc, update, opts)
	}
	return m.replaceMod(doc, update)
}

func (m *Modifier) replaceMod(doc, repl *value.Document) (*value.Document, error) {
	if err := checkReplacement(repl, true); err != nil {
		return nil, err
	}

	res := repl.Clone()
	id, hasID := doc.ID()
	if !hasID {
		if newID, ok := res.ID(); ok {
			res.SetFirst("_id", newID)
		}
		return res, nil
	}
	if newID, ok := res.ID(); ok && !m.comparer.Equal(id, newID) {
		return nil, domain.ErrImmutableField{Field: "_id"}
	}
	res.SetFirst("_id", value.Clone(id))
	return res, nil
}

// checkReplacement rejects $-prefixed keys at any depth and dotted keys at
// the top level.
func checkReplacement(v value.Value, top bool) error {
	switch t := v.(type) {
	case *value.Document:
		for k, item := range t.All() {
			if strings.HasPrefix(k, "$") {
				return domain.ErrInvalidFieldName{Field: k, Reason: "field names cannot start with $"}
			}
			if top && strings.Contains(k, ".") {
				return domain.ErrInvalidFieldName{Field: k, Reason: "field names cannot contain ."}
			}
			if err := checkReplacement(item, false); err != nil {
				return err
			}
		}
	case value.Array:
		for _, item := range t {
			if err := checkReplacement(item, false); err != nil {
				return err
			}
		}
	}
	return nil
}

type modCall struct {
	name  string
	field string
	fn    modFunc
	addr  []string
	arg   value.Value
}

func (m *Modifier) dollarMod(doc, update *value.Document, opts domain.ModifyOptions) (*value.Document, error) {
	var (
		calls []modCall
		late  []modCall
		paths []string
	)

	for modName, arg := range update.All() {
		if !strings.HasPrefix(modName, "$") {
			return nil, domain.ErrInvalidOperator{Operator: modName, Reason: "cannot mix modifiers and normal fields"}
		}
		mod, ok := m.mods[modName]
		if !ok {
			return nil, domain.ErrInvalidOperator{Operator: modName}
		}
		args, ok := arg.(*value.Document)
		if !ok {
			return nil, domain.ErrTypeMismatch{Op: modName, Want: "document", Actual: arg}
		}

		for field, fieldArg := range args.All() {
			addr, err := m.address(field, opts.Pos)
			if err != nil {
				return nil, fmt.Errorf("modifying field %q: %w", field, err)
			}
			touched := []string{strings.Join(addr, ".")}
			if modName == "$rename" {
				dest, err := m.renameTarget(fieldArg)
				if err != nil {
					return nil, fmt.Errorf("modifying field %q: %w", field, err)
				}
				touched = append(touched, dest)
			}
			for _, p := range touched {
				if other, ok := conflict(paths, p); ok {
					return nil, domain.ErrUpdateConflict{Path: p, Other: other}
				}
				paths = append(paths, p)
			}

			call := modCall{name: modName, field: field, fn: mod, addr: addr, arg: fieldArg}
			if modName == setOnInsert {
				if opts.Upsert {
					late = append(late, call)
				}
				continue
			}
			calls = append(calls, call)
		}
	}

	res := doc.Clone()
	for _, call := range append(calls, late...) {
		if err := call.fn(res, call.addr, call.arg); err != nil {
			return nil, fmt.Errorf("modifying field %q: %w", call.field, err)
		}
	}

	if id, ok := doc.ID(); ok {
		newID, has := res.ID()
		if !has || !m.comparer.Equal(id, newID) {
			return nil, domain.ErrImmutableField{Field: "_id"}
		}
		res.Set("_id", value.Clone(id))
	}

	return res, nil
}

// address splits field and replaces the positional segment with pos.
func (m *Modifier) address(field string, pos int) ([]string, error) {
	addr, err := m.fieldNavigator.GetAddress(field)
	if err != nil {
		return nil, err
	}
	positional := false
	for n, part := range addr {
		if !strings.HasPrefix(part, "$") {
			continue
		}
		if part != "$" {
			return nil, domain.ErrInvalidFieldName{Field: field, Reason: "path segments cannot start with $"}
		}
		if positional {
			return nil, domain.ErrInvalidFieldName{Field: field, Reason: "too many positional elements"}
		}
		if n == 0 {
			return nil, domain.ErrInvalidFieldName{Field: field, Reason: "positional element cannot be the first segment"}
		}
		if pos < 0 {
			return nil, domain.ErrPositionalNoMatch
		}
		positional = true
		addr[n] = strconv.Itoa(pos)
	}
	return addr, nil
}

func (m *Modifier) renameTarget(arg value.Value) (string, error) {
	dest, ok := arg.(value.String)
	if !ok {
		return "", domain.ErrTypeMismatch{Op: "$rename", Want: "string", Actual: arg}
	}
	addr, err := m.fieldNavigator.GetAddress(string(dest))
	if err != nil {
		return "", err
	}
	for _, part := range addr {
		if strings.HasPrefix(part, "$") {
			return "", domain.ErrInvalidFieldName{Field: string(dest), Reason: "path segments cannot start with $"}
		}
	}
	return string(dest), nil
}

// conflict returns the first path in paths that is equal to p or a prefix of
// it, or the other way around.
func conflict(paths []string, p string) (string, bool) {
	for _, other := range paths {
		if other == p || strings.HasPrefix(p, other+".") || strings.HasPrefix(other, p+".") {
			return other, true
		}
	}
	return "", false
}

// locate returns the writable location of addr and its value before any
// missing intermediate was created.
func (m *Modifier) locate(doc *value.Document, addr []string) (domain.GetSetter, value.Value, bool, error) {
	curr, err := m.fieldNavigator.GetField(doc, addr...)
	if err != nil {
		return nil, nil, false, err
	}
	v, existed := curr.Get()
	gs, err := m.fieldNavigator.EnsureField(doc, addr...)
	if err != nil {
		return nil, nil, false, err
	}
	return gs, v, existed, nil
}

func (m *Modifier) set(doc *value.Document, addr []string, arg value.Value) error {
	field, err := m.fieldNavigator.EnsureField(doc, addr...)
	if err != nil {
		return err
	}
	field.Set(value.Clone(arg))
	return nil
}

func (m *Modifier) unset(doc *value.Document, addr []string, _ value.Value) error {
	field, err := m.fieldNavigator.GetField(doc, addr...)
	if err != nil {
		return err
	}
	if _, defined := field.Get(); defined {
		field.Unset()
	}
	return nil
}

func (m *Modifier) inc(doc *value.Document, addr []string, arg value.Value) error {
	return m.arithmetic("$inc", doc, addr, arg)
}

func (m *Modifier) mul(doc *value.Document, addr []string, arg value.Value) error {
	return m.arithmetic("$mul", doc, addr, arg)
}

func (m *Modifier) arithmetic(mod string, doc *value.Document, addr []string, arg value.Value) error {
	if !value.IsNumber(arg) {
		return domain.ErrTypeMismatch{Op: mod, Want: "number", Actual: arg}
	}
	field, curr, existed, err := m.locate(doc, addr)
	if err != nil {
		return err
	}
	if !existed {
		if mod == "$mul" {
			arg = zeroOf(arg)
		}
		field.Set(arg)
		return nil
	}
	if !value.IsNumber(curr) {
		return domain.ErrTypeMismatch{Op: mod, Want: "numeric field", Actual: curr}
	}
	res, err := compute(mod, curr, arg)
	if err != nil {
		return err
	}
	field.Set(res)
	return nil
}

func zeroOf(v value.Value) value.Value {
	switch v.(type) {
	case value.Int32:
		return value.Int32(0)
	case value.Int64:
		return value.Int64(0)
	default:
		return value.Double(0)
	}
}

// compute applies mod keeping the widest operand type. Int32 results that do
// not fit are widened to Int64. Int64 results wrap around.
func compute(mod string, a, b value.Value) (value.Value, error) {
	_, aDouble := a.(value.Double)
	_, bDouble := b.(value.Double)
	if aDouble || bDouble {
		fa, _ := value.AsFloat(a)
		fb, _ := value.AsFloat(b)
		if mod == "$mul" {
			return value.Double(fa * fb), nil
		}
		return value.Double(fa + fb), nil
	}

	ia, _ := value.AsInt(a)
	ib, _ := value.AsInt(b)
	r := ia + ib
	if mod == "$mul" {
		r = ia * ib
	}

	_, a32 := a.(value.Int32)
	_, b32 := b.(value.Int32)
	if a32 && b32 && r >= math.MinInt32 && r <= math.MaxInt32 {
		return value.Int32(r), nil
	}
	return value.Int64(r), nil
}

// minMax builds $min (dir -1) and $max (dir 1). The value is replaced only
// when arg is strictly better.
func (m *Modifier) minMax(mod string, dir int) modFunc {
	return func(doc *value.Document, addr []string, arg value.Value) error {
		field, curr, existed, err := m.locate(doc, addr)
		if err != nil {
			return err
		}
		if !existed || m.comparer.Compare(arg, curr)*dir > 0 {
			field.Set(value.Clone(arg))
		}
		return nil
	}
}

func (m *Modifier) rename(doc *value.Document, addr []string, arg value.Value) error {
	dest, err := m.renameTarget(arg)
	if err != nil {
		return err
	}
	src, err := m.fieldNavigator.GetField(doc, addr...)
	if err != nil {
		return err
	}
	v, ok := src.Get()
	if !ok {
		return nil
	}
	if _, inArray := src.(*fieldnavigator.ArrayGetSetter); inArray {
		return domain.ErrTypeMismatch{Op: "$rename", Want: "a source outside arrays", Actual: value.Array{}}
	}
	destAddr, err := m.fieldNavigator.GetAddress(dest)
	if err != nil {
		return err
	}
	src.Unset()
	field, err := m.fieldNavigator.EnsureField(doc, destAddr...)
	if err != nil {
		return err
	}
	field.Set(v)
	return nil
}

// arrayField returns the array at addr for the modifiers that append to it.
// A missing field starts as an empty array.
func (m *Modifier) arrayField(mod string, doc *value.Document, addr []string) (domain.GetSetter, value.Array, error) {
	field, curr, existed, err := m.locate(doc, addr)
	if err != nil {
		return nil, nil, err
	}
	if !existed {
		return field, value.Array{}, nil
	}
	arr, ok := curr.(value.Array)
	if !ok {
		return nil, nil, domain.ErrTypeMismatch{Op: mod, Want: "array field", Actual: curr}
	}
	return field, slices.Clone(arr), nil
}

// existingArray is like arrayField for modifiers that only remove elements:
// a missing field is reported as nil with no error.
func (m *Modifier) existingArray(mod string, doc *value.Document, addr []string) (domain.GetSetter, value.Array, error) {
	field, err := m.fieldNavigator.GetField(doc, addr...)
	if err != nil {
		return nil, nil, err
	}
	curr, ok := field.Get()
	if !ok {
		return nil, nil, nil
	}
	arr, ok := curr.(value.Array)
	if !ok {
		return nil, nil, domain.ErrTypeMismatch{Op: mod, Want: "array field", Actual: curr}
	}
	return field, arr, nil
}

func (m *Modifier) push(doc *value.Document, addr []string, arg value.Value) error {
	props, err := m.pushProperties(arg)
	if err != nil {
		return err
	}
	field, arr, err := m.arrayField("$push", doc, addr)
	if err != nil {
		return err
	}

	pos := len(arr)
	if props.hasPos {
		pos = props.position
		if pos < 0 {
			pos = max(len(arr)+pos, 0)
		}
		pos = min(pos, len(arr))
	}
	arr = slices.Insert(arr, pos, props.each...)

	if props.sort != nil || props.sortDir != 0 {
		if err := m.sortArray(arr, props); err != nil {
			return err
		}
	}

	if props.hasSlice {
		if props.slice >= 0 {
			arr = arr[:min(props.slice, len(arr))]
		} else {
			arr = arr[max(len(arr)+props.slice, 0):]
		}
	}

	field.Set(arr)
	return nil
}

func (m *Modifier) pushProperties(arg value.Value) (pushProps, error) {
	d, ok := arg.(*value.Document)
	if !ok || !d.Has("$each") {
		return pushProps{each: value.Array{value.Clone(arg)}}, nil
	}

	var props pushProps
	for k, v := range d.All() {
		switch k {
		case "$each":
			each, ok := v.(value.Array)
			if !ok {
				return props, domain.ErrTypeMismatch{Op: "$each", Want: "array", Actual: v}
			}
			props.each = value.Clone(each).(value.Array)
		case "$position":
			n, ok := value.AsInt(v)
			if !ok {
				return props, domain.ErrTypeMismatch{Op: "$position", Want: "integer", Actual: v}
			}
			props.position, props.hasPos = int(n), true
		case "$slice":
			n, ok := value.AsInt(v)
			if !ok {
				return props, domain.ErrTypeMismatch{Op: "$slice", Want: "integer", Actual: v}
			}
			props.slice, props.hasSlice = int(n), true
		case "$sort":
			if err := m.sortProperties(&props, v); err != nil {
				return props, err
			}
		default:
			return props, domain.ErrInvalidOperator{Operator: k, Reason: "unknown $push modifier"}
		}
	}
	return props, nil
}

func (m *Modifier) sortProperties(props *pushProps, v value.Value) error {
	if d, ok := v.(*value.Document); ok {
		if d.Len() == 0 {
			return domain.ErrTypeMismatch{Op: "$sort", Want: "a nonempty document", Actual: v}
		}
		for k, dir := range d.All() {
			if _, err := m.fieldNavigator.GetAddress(k); err != nil {
				return err
			}
			if n, ok := value.AsInt(dir); !ok || (n != 1 && n != -1) {
				return domain.ErrTypeMismatch{Op: "$sort", Want: "1 or -1", Actual: dir}
			}
		}
		props.sort = d
		return nil
	}
	n, ok := value.AsInt(v)
	if !ok || (n != 1 && n != -1) {
		return domain.ErrTypeMismatch{Op: "$sort", Want: "1, -1 or a document", Actual: v}
	}
	props.sortDir = int(n)
	return nil
}

func (m *Modifier) sortArray(arr value.Array, props pushProps) error {
	if props.sort == nil {
		slices.SortStableFunc(arr, func(a, b value.Value) int {
			return m.comparer.Compare(a, b) * props.sortDir
		})
		return nil
	}

	type sortField struct {
		addr []string
		dir  int
	}
	fields := make([]sortField, 0, props.sort.Len())
	for k, dir := range props.sort.All() {
		addr, err := m.fieldNavigator.GetAddress(k)
		if err != nil {
			return err
		}
		n, _ := value.AsInt(dir)
		fields = append(fields, sortField{addr: addr, dir: int(n)})
	}

	first := func(v value.Value, addr []string) value.Value {
		for found := range m.fieldNavigator.Resolve(v, addr...) {
			return found
		}
		return value.Null{}
	}

	slices.SortStableFunc(arr, func(a, b value.Value) int {
		for _, f := range fields {
			if c := m.comparer.Compare(first(a, f.addr), first(b, f.addr)); c != 0 {
				return c * f.dir
			}
		}
		return 0
	})
	return nil
}

func (m *Modifier) addToSet(doc *value.Document, addr []string, arg value.Value) error {
	items := value.Array{arg}
	if d, ok := arg.(*value.Document); ok && d.Has("$each") {
		if d.Len() > 1 {
			return domain.ErrInvalidOperator{Operator: "$each", Reason: "cannot use another field in conjunction with $each"}
		}
		each, _ := d.Get("$each")
		arr, ok := each.(value.Array)
		if !ok {
			return domain.ErrTypeMismatch{Op: "$each", Want: "array", Actual: each}
		}
		items = arr
	}

	field, arr, err := m.arrayField("$addToSet", doc, addr)
	if err != nil {
		return err
	}
	for _, item := range items {
		if !slices.ContainsFunc(arr, func(v value.Value) bool { return m.comparer.Equal(v, item) }) {
			arr = append(arr, value.Clone(item))
		}
	}
	field.Set(arr)
	return nil
}

func (m *Modifier) pop(doc *value.Document, addr []string, arg value.Value) error {
	n, ok := value.AsInt(arg)
	if !ok || (n != 1 && n != -1) {
		return domain.ErrTypeMismatch{Op: "$pop", Want: "1 or -1", Actual: arg}
	}
	field, arr, err := m.existingArray("$pop", doc, addr)
	if err != nil || field == nil || len(arr) == 0 {
		return err
	}
	if n < 0 {
		field.Set(slices.Clone(arr[1:]))
	} else {
		field.Set(slices.Clone(arr[:len(arr)-1]))
	}
	return nil
}

func (m *Modifier) pull(doc *value.Document, addr []string, arg value.Value) error {
	pred, err := m.pullPredicate(arg)
	if err != nil {
		return err
	}
	field, arr, err := m.existingArray("$pull", doc, addr)
	if err != nil || field == nil {
		return err
	}
	res := make(value.Array, 0, len(arr))
	for _, item := range arr {
		remove, err := pred(item)
		if err != nil {
			return err
		}
		if !remove {
			res = append(res, item)
		}
	}
	field.Set(res)
	return nil
}

// pullPredicate compiles the condition of a $pull. Operator documents and
// regular expressions are tested against each element as if it were a field,
// field documents are tested against document elements, anything else is an
// equality test.
func (m *Modifier) pullPredicate(arg value.Value) (func(value.Value) (bool, error), error) {
	wrapped := false
	switch t := arg.(type) {
	case value.Regex:
		wrapped = true
	case *value.Document:
		wrapped = t.Len() > 0 && strings.HasPrefix(t.Fields()[0].Key, "$")
	default:
		return func(v value.Value) (bool, error) {
			return m.comparer.Equal(v, arg), nil
		}, nil
	}

	mtc := m.matcherFactory()
	if !wrapped {
		if err := mtc.SetQuery(arg.(*value.Document)); err != nil {
			return nil, err
		}
		return func(v value.Value) (bool, error) {
			d, ok := v.(*value.Document)
			if !ok {
				return false, nil
			}
			return mtc.Match(d)
		}, nil
	}

	if err := mtc.SetQuery(value.D("v", arg)); err != nil {
		return nil, err
	}
	return func(v value.Value) (bool, error) {
		return mtc.Match(value.D("v", v))
	}, nil
}

func (m *Modifier) pullAll(doc *value.Document, addr []string, arg value.Value) error {
	items, ok := arg.(value.Array)
	if !ok {
		return domain.ErrTypeMismatch{Op: "$pullAll", Want: "array", Actual: arg}
	}
	field, arr, err := m.existingArray("$pullAll", doc, addr)
	if err != nil || field == nil {
		return err
	}
	res := make(value.Array, 0, len(arr))
	for _, v := range arr {
		if !slices.ContainsFunc(items, func(item value.Value) bool { return m.comparer.Equal(v, item) }) {
			res = append(res, v)
		}
	}
	field.Set(res)
	return nil
}

func (m *Modifier) currentDate(doc *value.Document, addr []string, arg value.Value) error {
	switch t := arg.(type) {
	case value.Bool:
	case *value.Document:
		typ, _ := t.Get("$type")
		if t.Len() != 1 || typ != value.String("date") {
			return domain.ErrTypeMismatch{Op: "$currentDate", Want: `true or {"$type": "date"}`, Actual: arg}
		}
	default:
		return domain.ErrTypeMismatch{Op: "$currentDate", Want: `true or {"$type": "date"}`, Actual: arg}
	}
	field, err := m.fieldNavigator.EnsureField(doc, addr...)
	if err != nil {
		return err
	}
	field.Set(value.DateTimeOf(m.timeGetter.GetTime()))
	return nil
}
