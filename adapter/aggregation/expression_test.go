package aggregation

import (
	"testing"

	"github.com/stretchr/testify/suite"
	"github.com/vinicius-lino-figueiredo/docengine/adapter/comparer"
	"github.com/vinicius-lino-figueiredo/docengine/adapter/fieldnavigator"
	"github.com/vinicius-lino-figueiredo/docengine/domain"
	"github.com/vinicius-lino-figueiredo/docengine/pkg/value"
)

type ExpressionTestSuite struct {
	suite.Suite
	c   *compiler
	doc *value.Document
}

func (s *ExpressionTestSuite) SetupTest() {
	s.c = &compiler{
		fn:       fieldnavigator.NewFieldNavigator(),
		comparer: comparer.NewComparer(),
	}
	s.doc = value.MustParse(`{
		"a": 5,
		"b": 2,
		"s": "Hello",
		"d": {"$date": 86400000},
		"arr": [1, 2, 3],
		"n": null,
		"docs": [{"x": 1}, {"x": 2}],
	}`)
}

func (s *ExpressionTestSuite) eval(expr string) (value.Value, error) {
	v, err := value.Parse([]byte(expr))
	s.Require().NoError(err)
	e, err := s.c.compile(v)
	if err != nil {
		return nil, err
	}
	return e.eval(scope{root: s.doc})
}

func (s *ExpressionTestSuite) check(expr string, want value.Value) {
	s.T().Helper()
	got, err := s.eval(expr)
	s.Require().NoError(err, expr)
	s.True(value.Identical(want, got), "%s: want %s, got %s", expr, value.Format(want), value.Format(orNull(got)))
}

func (s *ExpressionTestSuite) TestArithmetic() {
	s.check(`{"$add": ["$a", "$b", 1]}`, value.Int32(8))
	s.check(`{"$add": ["$d", 1000]}`, value.DateTime(86401000))
	s.check(`{"$add": ["$a", "$missing"]}`, value.Null{})
	s.check(`{"$add": [{"$numberInt": "2147483647"}, 1]}`, value.Int64(2147483648))
	s.check(`{"$subtract": ["$a", "$b"]}`, value.Int32(3))
	s.check(`{"$subtract": ["$d", "$d"]}`, value.Int64(0))
	s.check(`{"$subtract": ["$d", 400]}`, value.DateTime(86399600))
	s.check(`{"$multiply": ["$a", 2.5]}`, value.Double(12.5))
	s.check(`{"$divide": ["$a", "$b"]}`, value.Double(2.5))
	s.check(`{"$mod": ["$a", "$b"]}`, value.Int32(1))
	s.check(`{"$abs": -3}`, value.Int32(3))
	s.check(`{"$abs": -3.5}`, value.Double(3.5))

	_, err := s.eval(`{"$divide": ["$a", 0]}`)
	s.ErrorAs(err, new(domain.ErrTypeMismatch))
	_, err = s.eval(`{"$add": ["$s", 1]}`)
	s.ErrorAs(err, new(domain.ErrTypeMismatch))
	_, err = s.eval(`{"$add": ["$d", "$d"]}`)
	s.ErrorAs(err, new(domain.ErrTypeMismatch))
}

func (s *ExpressionTestSuite) TestStrings() {
	s.check(`{"$concat": ["$s", " ", "world"]}`, value.String("Hello world"))
	s.check(`{"$concat": ["$s", "$missing"]}`, value.Null{})
	s.check(`{"$toUpper": "$s"}`, value.String("HELLO"))
	s.check(`{"$toLower": "$s"}`, value.String("hello"))
	s.check(`{"$toLower": "$missing"}`, value.String(""))
	s.check(`{"$substr": ["$s", 1, 3]}`, value.String("ell"))
	s.check(`{"$substr": ["$s", 2, -1]}`, value.String("llo"))
	s.check(`{"$substr": ["$s", 9, 1]}`, value.String(""))
	s.check(`{"$strLenBytes": "$s"}`, value.Int32(5))

	_, err := s.eval(`{"$concat": ["a", 1]}`)
	s.ErrorAs(err, new(domain.ErrTypeMismatch))
}

func (s *ExpressionTestSuite) TestComparisonAndLogic() {
	s.check(`{"$gt": ["$a", "$b"]}`, value.Bool(true))
	s.check(`{"$lte": ["$a", "$b"]}`, value.Bool(false))
	s.check(`{"$eq": ["$a", 5.0]}`, value.Bool(true))
	s.check(`{"$ne": ["$s", 5]}`, value.Bool(true))
	s.check(`{"$cmp": ["$b", "$a"]}`, value.Int32(-1))
	s.check(`{"$cmp": ["$s", 1]}`, value.Int32(1))
	s.check(`{"$and": [true, "$a"]}`, value.Bool(true))
	s.check(`{"$and": [true, "$n"]}`, value.Bool(false))
	s.check(`{"$or": [false, 0]}`, value.Bool(false))
	s.check(`{"$or": [false, "$s"]}`, value.Bool(true))
	s.check(`{"$not": "$n"}`, value.Bool(true))
	s.check(`{"$cond": {"if": {"$gte": ["$a", 5]}, "then": "big", "else": "small"}}`, value.String("big"))
	s.check(`{"$cond": [false, 1, 2]}`, value.Int32(2))
	s.check(`{"$ifNull": ["$missing", "default"]}`, value.String("default"))
	s.check(`{"$ifNull": ["$n", "default"]}`, value.String("default"))
	s.check(`{"$ifNull": ["$a", 0]}`, value.Int32(5))
}

func (s *ExpressionTestSuite) TestArraysAndDates() {
	s.check(`{"$size": "$arr"}`, value.Int32(3))
	s.check(`{"$arrayElemAt": ["$arr", -1]}`, value.Int32(3))
	s.check(`{"$arrayElemAt": ["$arr", 0]}`, value.Int32(1))
	s.check(`{"$in": [2, "$arr"]}`, value.Bool(true))
	s.check(`{"$in": ["2", "$arr"]}`, value.Bool(false))
	s.check(`{"$year": "$d"}`, value.Int32(1970))
	s.check(`{"$month": "$d"}`, value.Int32(1))
	s.check(`{"$dayOfMonth": "$d"}`, value.Int32(2))
	s.check(`{"$hour": "$d"}`, value.Int32(0))

	got, err := s.eval(`{"$arrayElemAt": ["$arr", 7]}`)
	s.NoError(err)
	s.Nil(got)

	_, err = s.eval(`{"$size": "$a"}`)
	s.ErrorAs(err, new(domain.ErrTypeMismatch))
	_, err = s.eval(`{"$year": "$s"}`)
	s.ErrorAs(err, new(domain.ErrTypeMismatch))
}

func (s *ExpressionTestSuite) TestPathsAndLiterals() {
	s.check(`"$a"`, value.Int32(5))
	s.check(`"$docs.x"`, value.Array{value.Int32(1), value.Int32(2)})
	s.check(`"$$ROOT.a"`, value.Int32(5))
	s.check(`"$$CURRENT.s"`, value.String("Hello"))
	s.check(`{"$literal": "$a"}`, value.String("$a"))
	s.check(`{"k": "$a", "m": "$missing"}`, value.D("k", value.Int32(5)))
	s.check(`["$a", "$missing"]`, value.Array{value.Int32(5), value.Null{}})
	s.check(`7`, value.Int32(7))

	got, err := s.eval(`"$missing"`)
	s.NoError(err)
	s.Nil(got)

	root, err := s.eval(`"$$ROOT"`)
	s.NoError(err)
	s.Same(s.doc, root)
}

func (s *ExpressionTestSuite) TestInvalid() {
	for _, expr := range []string{
		`{"$foo": 1}`,
		`{"$add": 1, "x": 2}`,
		`{"$cond": [1]}`,
		`{"$cond": {"if": true}}`,
		`"$$FOO"`,
		`{"a": {"$bar": []}}`,
	} {
		_, err := s.eval(expr)
		s.ErrorAs(err, new(domain.ErrInvalidOperator), expr)
	}

	_, err := s.eval(`{"a": 1, "$b": 2}`)
	s.ErrorAs(err, new(domain.ErrInvalidFieldName))
}

func TestExpressionTestSuite(t *testing.T) {
	suite.Run(t, new(ExpressionTestSuite))
}
