package matcher

import (
	"testing"

	"github.com/stretchr/testify/suite"
	"github.com/vinicius-lino-figueiredo/docengine/domain"
	"github.com/vinicius-lino-figueiredo/docengine/pkg/value"
)

type MatcherTestSuite struct {
	suite.Suite
	m *Matcher
}

func (s *MatcherTestSuite) SetupTest() {
	s.m = NewMatcher().(*Matcher)
}

func (s *MatcherTestSuite) Matches(doc, query string) bool {
	s.T().Helper()
	s.Require().NoError(s.m.SetQuery(value.MustParse(query)))
	ok, err := s.m.Match(value.MustParse(doc))
	s.Require().NoError(err)
	return ok
}

func (s *MatcherTestSuite) Pos(doc, query string) int {
	s.T().Helper()
	s.Require().NoError(s.m.SetQuery(value.MustParse(query)))
	res, err := s.m.MatchPos(value.MustParse(doc))
	s.Require().NoError(err)
	s.Require().True(res.Matched)
	return res.Pos
}

func (s *MatcherTestSuite) QueryErr(query string) error {
	s.T().Helper()
	return s.m.SetQuery(value.MustParse(query))
}

func (s *MatcherTestSuite) TestEmptyQuery() {
	s.True(s.Matches(`{"a": 1}`, `{}`))
	s.NoError(s.m.SetQuery(nil))
	ok, err := s.m.Match(value.MustParse(`{"a": 1}`))
	s.NoError(err)
	s.True(ok)
}

func (s *MatcherTestSuite) TestEquality() {
	s.True(s.Matches(`{"a": 12}`, `{"a": 12}`))
	s.True(s.Matches(`{"a": 12}`, `{"a": 12.0}`))
	s.True(s.Matches(`{"a": {"$numberLong": "12"}}`, `{"a": 12}`))
	s.False(s.Matches(`{"a": "12"}`, `{"a": 12}`))
	s.False(s.Matches(`{"a": 12}`, `{"b": 12}`))
	s.True(s.Matches(`{"a": {"b": "x"}}`, `{"a.b": "x"}`))
	s.True(s.Matches(`{"a": {"b": 1, "c": 2}}`, `{"a": {"b": 1, "c": 2}}`))
	s.False(s.Matches(`{"a": {"b": 1, "c": 2}}`, `{"a": {"c": 2, "b": 1}}`))
	s.True(s.Matches(`{"a": 1, "b": 2}`, `{"a": 1, "b": 2}`))
	s.False(s.Matches(`{"a": 1, "b": 2}`, `{"a": 1, "b": 3}`))

	id := `{"$oid": "5f1d7f3e9d1b2c3a4b5c6d7e"}`
	s.True(s.Matches(`{"_id": `+id+`}`, `{"_id": `+id+`}`))
	s.False(s.Matches(`{"_id": `+id+`}`, `{"_id": "5f1d7f3e9d1b2c3a4b5c6d7e"}`))
}

// A literal array matches whole-array equality and element containment.
func (s *MatcherTestSuite) TestArrayEquality() {
	s.True(s.Matches(`{"a": [1, 2]}`, `{"a": [1, 2]}`))
	s.False(s.Matches(`{"a": [1, 2]}`, `{"a": [2, 1]}`))
	s.False(s.Matches(`{"a": [1, 2, 3]}`, `{"a": [1, 2]}`))
	s.True(s.Matches(`{"a": [[1, 2], 3]}`, `{"a": [1, 2]}`))
	s.True(s.Matches(`{"a": [1, 2]}`, `{"a": 2}`))
	s.True(s.Matches(`{"a": [{"b": 1}, {"b": 2}]}`, `{"a.b": 2}`))
	s.True(s.Matches(`{"a": [{"b": [5, 6]}]}`, `{"a.b": 6}`))
}

// Null matches null and missing fields.
func (s *MatcherTestSuite) TestNull() {
	s.True(s.Matches(`{"a": null}`, `{"a": null}`))
	s.True(s.Matches(`{"b": 1}`, `{"a": null}`))
	s.False(s.Matches(`{"a": 0}`, `{"a": null}`))
	s.True(s.Matches(`{"a": [1, null]}`, `{"a": null}`))
	s.False(s.Matches(`{"b": 1}`, `{"a": {"$ne": null}}`))
	s.True(s.Matches(`{"a": 1}`, `{"a": {"$ne": null}}`))
	// array elements lacking the field are skipped, not read as null
	s.False(s.Matches(`{"a": [{"b": 1}, {"c": 2}]}`, `{"a.b": null}`))
}

func (s *MatcherTestSuite) TestComparisons() {
	s.True(s.Matches(`{"a": 5}`, `{"a": {"$gt": 4}}`))
	s.False(s.Matches(`{"a": 5}`, `{"a": {"$gt": 5}}`))
	s.True(s.Matches(`{"a": 5}`, `{"a": {"$gte": 5.0}}`))
	s.True(s.Matches(`{"a": 5}`, `{"a": {"$lt": 5.5}}`))
	s.True(s.Matches(`{"a": 5}`, `{"a": {"$lte": 5}}`))
	s.True(s.Matches(`{"a": "b"}`, `{"a": {"$gt": "a"}}`))
	s.True(s.Matches(`{"a": 5}`, `{"a": {"$gt": 1, "$lt": 10}}`))
	s.False(s.Matches(`{"a": 5}`, `{"a": {"$gt": 1, "$lt": 3}}`))
	s.True(s.Matches(`{"a": {"$date": 2000}}`, `{"a": {"$gt": {"$date": 1000}}}`))

	// different brackets never match, even if the global order agrees
	s.False(s.Matches(`{"a": "5"}`, `{"a": {"$gt": 4}}`))
	s.False(s.Matches(`{"a": 5}`, `{"a": {"$lt": "a"}}`))
	s.False(s.Matches(`{"a": null}`, `{"a": {"$lt": 1}}`))
	s.False(s.Matches(`{"b": 1}`, `{"a": {"$gt": 0}}`))

	// any element can satisfy each bound
	s.True(s.Matches(`{"a": [1, 10]}`, `{"a": {"$gt": 5}}`))
	s.True(s.Matches(`{"a": [1, 10]}`, `{"a": {"$gt": 5, "$lt": 2}}`))
	s.False(s.Matches(`{"a": [1, 2]}`, `{"a": {"$gt": 5}}`))

	// inclusive bounds on null accept missing fields
	s.True(s.Matches(`{"b": 1}`, `{"a": {"$gte": null}}`))
	s.False(s.Matches(`{"b": 1}`, `{"a": {"$gt": null}}`))
}

func (s *MatcherTestSuite) TestIn() {
	s.True(s.Matches(`{"a": 2}`, `{"a": {"$in": [1, 2]}}`))
	s.False(s.Matches(`{"a": 3}`, `{"a": {"$in": [1, 2]}}`))
	s.True(s.Matches(`{"a": [3, 2]}`, `{"a": {"$in": [1, 2]}}`))
	s.False(s.Matches(`{"a": 2}`, `{"a": {"$in": []}}`))
	s.True(s.Matches(`{"b": 1}`, `{"a": {"$in": [1, null]}}`))
	s.True(s.Matches(`{"a": "hello"}`, `{"a": {"$in": [1, {"$regularExpression": {"pattern": "^he", "options": ""}}]}}`))
	s.False(s.Matches(`{"a": "yellow"}`, `{"a": {"$in": [1, {"$regularExpression": {"pattern": "^he", "options": ""}}]}}`))

	s.False(s.Matches(`{"a": 2}`, `{"a": {"$nin": [1, 2]}}`))
	s.True(s.Matches(`{"a": 3}`, `{"a": {"$nin": [1, 2]}}`))
	s.True(s.Matches(`{"b": 3}`, `{"a": {"$nin": [1, 2]}}`))
	s.False(s.Matches(`{"a": [3, 2]}`, `{"a": {"$nin": [1, 2]}}`))

	var tm domain.ErrTypeMismatch
	s.ErrorAs(s.QueryErr(`{"a": {"$in": 1}}`), &tm)
	s.ErrorAs(s.QueryErr(`{"a": {"$nin": "x"}}`), &tm)
}

// $exists only depends on the resolved set being empty.
func (s *MatcherTestSuite) TestExists() {
	s.True(s.Matches(`{"a": null}`, `{"a": {"$exists": true}}`))
	s.False(s.Matches(`{"b": 1}`, `{"a": {"$exists": true}}`))
	s.True(s.Matches(`{"b": 1}`, `{"a": {"$exists": false}}`))
	s.True(s.Matches(`{"b": 1}`, `{"a": {"$exists": 0}}`))
	s.True(s.Matches(`{"a": []}`, `{"a": {"$exists": 1}}`))
	s.True(s.Matches(`{"a": [{"b": 1}, {"c": 1}]}`, `{"a.b": {"$exists": true}}`))
	s.False(s.Matches(`{"a": [{"c": 1}]}`, `{"a.b": {"$exists": true}}`))
}

func (s *MatcherTestSuite) TestType() {
	s.True(s.Matches(`{"a": 1}`, `{"a": {"$type": "int"}}`))
	s.True(s.Matches(`{"a": 1}`, `{"a": {"$type": 16}}`))
	s.True(s.Matches(`{"a": 1}`, `{"a": {"$type": "number"}}`))
	s.False(s.Matches(`{"a": 1}`, `{"a": {"$type": "long"}}`))
	s.True(s.Matches(`{"a": 1.5}`, `{"a": {"$type": ["string", "double"]}}`))
	s.True(s.Matches(`{"a": [1, "x"]}`, `{"a": {"$type": "string"}}`))
	s.True(s.Matches(`{"a": [1, "x"]}`, `{"a": {"$type": "array"}}`))
	s.True(s.Matches(`{"a": null}`, `{"a": {"$type": "null"}}`))
	s.False(s.Matches(`{"b": 1}`, `{"a": {"$type": "null"}}`))
	s.True(s.Matches(`{"a": {"$minKey": 1}}`, `{"a": {"$type": -1}}`))

	var io domain.ErrInvalidOperator
	s.ErrorAs(s.QueryErr(`{"a": {"$type": "nope"}}`), &io)
	s.ErrorAs(s.QueryErr(`{"a": {"$type": 99}}`), &io)
	var tm domain.ErrTypeMismatch
	s.ErrorAs(s.QueryErr(`{"a": {"$type": true}}`), &tm)
}

func (s *MatcherTestSuite) TestMod() {
	s.True(s.Matches(`{"a": 10}`, `{"a": {"$mod": [4, 2]}}`))
	s.False(s.Matches(`{"a": 11}`, `{"a": {"$mod": [4, 2]}}`))
	s.True(s.Matches(`{"a": 10.9}`, `{"a": {"$mod": [4, 2]}}`))
	s.True(s.Matches(`{"a": -6}`, `{"a": {"$mod": [4, -2]}}`))
	s.True(s.Matches(`{"a": [1, 6]}`, `{"a": {"$mod": [4, 2]}}`))
	s.False(s.Matches(`{"a": "10"}`, `{"a": {"$mod": [4, 2]}}`))

	var tm domain.ErrTypeMismatch
	s.ErrorAs(s.QueryErr(`{"a": {"$mod": [0, 1]}}`), &tm)
	s.ErrorAs(s.QueryErr(`{"a": {"$mod": [1]}}`), &tm)
	s.ErrorAs(s.QueryErr(`{"a": {"$mod": ["a", 1]}}`), &tm)
	s.ErrorAs(s.QueryErr(`{"a": {"$mod": 3}}`), &tm)
}

func (s *MatcherTestSuite) TestAll() {
	s.True(s.Matches(`{"a": [1, 2, 3]}`, `{"a": {"$all": [3, 1]}}`))
	s.False(s.Matches(`{"a": [1, 2, 3]}`, `{"a": {"$all": [3, 4]}}`))
	s.True(s.Matches(`{"a": 1}`, `{"a": {"$all": [1]}}`))
	s.False(s.Matches(`{"a": [1]}`, `{"a": {"$all": []}}`))
	s.True(s.Matches(`{"a": [[1, 2], 3]}`, `{"a": {"$all": [[1, 2]]}}`))
	s.True(s.Matches(`{"a": ["apple", "kiwi"]}`, `{"a": {"$all": [{"$regularExpression": {"pattern": "^k", "options": ""}}]}}`))
	s.True(s.Matches(
		`{"a": [{"x": 1, "y": 2}, {"x": 3, "y": 4}]}`,
		`{"a": {"$all": [{"$elemMatch": {"x": 1}}, {"$elemMatch": {"y": 4}}]}}`,
	))
	s.False(s.Matches(
		`{"a": [{"x": 1, "y": 2}]}`,
		`{"a": {"$all": [{"$elemMatch": {"x": 1}}, {"$elemMatch": {"y": 4}}]}}`,
	))
}

func (s *MatcherTestSuite) TestSize() {
	s.True(s.Matches(`{"a": [1, 2]}`, `{"a": {"$size": 2}}`))
	s.False(s.Matches(`{"a": [1, 2]}`, `{"a": {"$size": 1}}`))
	s.True(s.Matches(`{"a": []}`, `{"a": {"$size": 0}}`))
	s.False(s.Matches(`{"a": "ab"}`, `{"a": {"$size": 2}}`))
	s.False(s.Matches(`{"b": 1}`, `{"a": {"$size": 0}}`))
	s.True(s.Matches(`{"a": [{"b": [1]}, {"b": [1, 2]}]}`, `{"a.b": {"$size": 2}}`))

	var tm domain.ErrTypeMismatch
	s.ErrorAs(s.QueryErr(`{"a": {"$size": -1}}`), &tm)
	s.ErrorAs(s.QueryErr(`{"a": {"$size": 1.5}}`), &tm)
	s.ErrorAs(s.QueryErr(`{"a": {"$size": "1"}}`), &tm)
}

func (s *MatcherTestSuite) TestElemMatch() {
	doc := `{"results": [{"product": "abc", "score": 10}, {"product": "xyz", "score": 5}]}`
	s.True(s.Matches(doc, `{"results": {"$elemMatch": {"product": "xyz", "score": {"$gte": 5}}}}`))
	s.False(s.Matches(doc, `{"results": {"$elemMatch": {"product": "xyz", "score": {"$gte": 8}}}}`))
	// without $elemMatch both conditions may be met by different elements
	s.True(s.Matches(doc, `{"results.product": "xyz", "results.score": {"$gte": 8}}`))

	// operator-only filters apply to scalar elements
	s.True(s.Matches(`{"a": [1, 5, 9]}`, `{"a": {"$elemMatch": {"$gt": 4, "$lt": 6}}}`))
	s.False(s.Matches(`{"a": [1, 9]}`, `{"a": {"$elemMatch": {"$gt": 4, "$lt": 6}}}`))
	s.False(s.Matches(`{"a": 5}`, `{"a": {"$elemMatch": {"$gt": 4}}}`))
	s.True(s.Matches(`{"a": [{"b": 1}, {"b": 2}]}`, `{"a": {"$elemMatch": {"$or": [{"b": 5}, {"b": 2}]}}}`))

	var tm domain.ErrTypeMismatch
	s.ErrorAs(s.QueryErr(`{"a": {"$elemMatch": 1}}`), &tm)
}

func (s *MatcherTestSuite) TestNot() {
	s.True(s.Matches(`{"a": 3}`, `{"a": {"$not": {"$gt": 5}}}`))
	s.False(s.Matches(`{"a": 6}`, `{"a": {"$not": {"$gt": 5}}}`))
	s.True(s.Matches(`{"b": 1}`, `{"a": {"$not": {"$gt": 5}}}`))
	s.True(s.Matches(`{"a": "xyz"}`, `{"a": {"$not": {"$regularExpression": {"pattern": "^a", "options": ""}}}}`))
	s.False(s.Matches(`{"a": "abc"}`, `{"a": {"$not": {"$regularExpression": {"pattern": "^a", "options": ""}}}}`))

	var tm domain.ErrTypeMismatch
	s.ErrorAs(s.QueryErr(`{"a": {"$not": 1}}`), &tm)
	s.ErrorAs(s.QueryErr(`{"a": {"$not": {"b": 1}}}`), &tm)
	var io domain.ErrInvalidOperator
	s.ErrorAs(s.QueryErr(`{"a": {"$not": {}}}`), &io)
}

func (s *MatcherTestSuite) TestRegex() {
	s.True(s.Matches(`{"a": "Hello"}`, `{"a": {"$regularExpression": {"pattern": "^hel", "options": "i"}}}`))
	s.False(s.Matches(`{"a": "Hello"}`, `{"a": {"$regularExpression": {"pattern": "^hel", "options": ""}}}`))
	s.True(s.Matches(`{"a": "Hello"}`, `{"a": {"$regex": "^hel", "$options": "i"}}`))
	s.True(s.Matches(`{"a": "a\nb"}`, `{"a": {"$regex": "^b", "$options": "m"}}`))
	s.False(s.Matches(`{"a": "a\nb"}`, `{"a": {"$regex": "^b"}}`))
	s.True(s.Matches(`{"a": "a\nb"}`, `{"a": {"$regex": "a.b", "$options": "s"}}`))
	s.True(s.Matches(`{"a": "abc"}`, `{"a": {"$regex": "a b c # letters", "$options": "x"}}`))
	s.True(s.Matches(`{"a": ["x", "abc"]}`, `{"a": {"$regex": "b"}}`))
	s.False(s.Matches(`{"a": 1}`, `{"a": {"$regex": "1"}}`))

	var io domain.ErrInvalidOperator
	s.ErrorAs(s.QueryErr(`{"a": {"$regex": "a", "$options": "q"}}`), &io)
	s.ErrorAs(s.QueryErr(`{"a": {"$options": "i"}}`), &io)
	s.ErrorAs(s.QueryErr(`{"a": {"$regex": "("}}`), &io)
	var tm domain.ErrTypeMismatch
	s.ErrorAs(s.QueryErr(`{"a": {"$regex": 1}}`), &tm)
}

func (s *MatcherTestSuite) TestLogicOperators() {
	s.True(s.Matches(`{"a": 1, "b": 2}`, `{"$and": [{"a": 1}, {"b": 2}]}`))
	s.False(s.Matches(`{"a": 1, "b": 2}`, `{"$and": [{"a": 1}, {"b": 3}]}`))
	s.True(s.Matches(`{"a": 1}`, `{"$or": [{"a": 2}, {"a": 1}]}`))
	s.False(s.Matches(`{"a": 3}`, `{"$or": [{"a": 2}, {"a": 1}]}`))
	s.True(s.Matches(`{"a": 3}`, `{"$nor": [{"a": 2}, {"a": 1}]}`))
	s.False(s.Matches(`{"a": 1}`, `{"$nor": [{"a": 2}, {"a": 1}]}`))
	s.True(s.Matches(`{"a": 1, "b": 5}`, `{"b": 5, "$or": [{"a": 2}, {"$and": [{"a": 1}]}]}`))
	s.True(s.Matches(`{"a": 1}`, `{"a": 1, "$comment": "ignored"}`))

	var io domain.ErrInvalidOperator
	for _, q := range []string{
		`{"$and": []}`,
		`{"$or": []}`,
		`{"$nor": []}`,
		`{"$or": {"a": 1}}`,
		`{"$or": [1]}`,
	} {
		s.ErrorAs(s.QueryErr(q), &io, q)
	}
}

func (s *MatcherTestSuite) TestInvalidOperators() {
	var io domain.ErrInvalidOperator
	s.ErrorAs(s.QueryErr(`{"$where": "x"}`), &io)
	s.Equal("$where", io.Operator)
	s.ErrorAs(s.QueryErr(`{"a": {"$foo": 1}}`), &io)
	s.Equal("$foo", io.Operator)
	s.Empty(io.Reason)
	s.ErrorAs(s.QueryErr(`{"a": {"$gt": 1, "b": 2}}`), &io)
	s.ErrorAs(s.QueryErr(`{"a": {"$elemMatch": {"$foo": 1}}}`), &io)

	var fn domain.ErrInvalidFieldName
	s.ErrorAs(s.QueryErr(`{"a..b": 1}`), &fn)
}

// A failed SetQuery keeps the previous query.
func (s *MatcherTestSuite) TestFailedSetQuery() {
	s.Require().NoError(s.m.SetQuery(value.MustParse(`{"a": 1}`)))
	s.Error(s.m.SetQuery(value.MustParse(`{"$and": []}`)))
	ok, err := s.m.Match(value.MustParse(`{"a": 2}`))
	s.NoError(err)
	s.False(ok)
}

// MatchPos reports the matched position inside the first projected array.
func (s *MatcherTestSuite) TestMatchPos() {
	s.Equal(1, s.Pos(`{"a": [1, 2, 3]}`, `{"a": 2}`))
	s.Equal(2, s.Pos(`{"a": [1, 2, 3]}`, `{"a": {"$gt": 2}}`))
	s.Equal(1, s.Pos(`{"a": [{"b": 1}, {"b": 2}]}`, `{"a.b": 2}`))
	s.Equal(1, s.Pos(`{"a": [{"b": 1}, {"b": 2}]}`, `{"a": {"$elemMatch": {"b": {"$gt": 1}}}}`))
	s.Equal(0, s.Pos(`{"a": [{"b": [7, 8]}, {"b": [9]}]}`, `{"a.b": 8}`))
	s.Equal(-1, s.Pos(`{"a": 2}`, `{"a": 2}`))
	s.Equal(-1, s.Pos(`{"a": [1, 2]}`, `{"a": {"$ne": 3}}`))
	s.Equal(1, s.Pos(`{"x": 1, "a": [5, 6]}`, `{"x": 1, "a": 6}`))

	s.Require().NoError(s.m.SetQuery(value.MustParse(`{"a": 4}`)))
	res, err := s.m.MatchPos(value.MustParse(`{"a": [1, 2]}`))
	s.NoError(err)
	s.Equal(domain.MatchResult{Matched: false, Pos: -1}, res)
}

func TestMatcherTestSuite(t *testing.T) {
	suite.Run(t, new(MatcherTestSuite))
}
