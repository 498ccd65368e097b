package matcher

import (
	"regexp"

	"github.com/vinicius-lino-figueiredo/docengine/pkg/value"
)

// Numeric representations of supported logic operators.
const (
	And uint8 = iota
	Or
	Nor
)

// Numeric representations of supported operators.
const (
	Eq uint8 = iota
	Ne
	Gt
	Gte
	Lt
	Lte
	In
	Nin
	Exists
	Type
	Mod
	All
	Size
	ElemMatch
	Not
	Regex
)

// Query stores a compiled filter in a typed and easier to iterate struct.
type Query struct {
	Lo LogicOp
}

// LogicOp stores a logic operator ($and, $or, $nor) and its children, which
// can be either a set of rules or a nested set of LogicOps. Rules are only
// used by And.
type LogicOp struct {
	Type  uint8
	Rules []FieldRule
	Sub   []LogicOp
}

// FieldRule stores a set of conditions used to match a given object field.
// An empty Addr addresses the matched value itself.
type FieldRule struct {
	Addr  []string
	Conds []Cond
}

// Cond stores a single operation on a document field (such as $gt, $size).
type Cond struct {
	Op uint8
	// Val is the operand of comparisons and the literal of a regex.
	Val value.Value
	// Vals holds the literal members of $in, $nin and $all.
	Vals []value.Value
	// Rgx is the compiled pattern of $regex.
	Rgx *regexp.Regexp
	// Rgxs holds the regex members of $in, $nin and $all.
	Rgxs []*regexp.Regexp
	// Conds holds the conditions negated by $not and the $elemMatch
	// members of $all.
	Conds []Cond
	// Sub is the filter of $elemMatch.
	Sub *Query
	// Scalar is set when a $elemMatch filter only has operators, so it is
	// applied to the elements themselves.
	Scalar  bool
	Exists  bool
	Size    int
	Kinds   []value.Kind
	Numbers bool
	Div     int64
	Rem     int64
}
