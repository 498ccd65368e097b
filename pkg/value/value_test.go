package value

import (
	"math"
	"testing"
	"time"

	"github.com/stretchr/testify/suite"
)

type ValueTestSuite struct {
	suite.Suite
}

func (s *ValueTestSuite) TestIdentical() {
	s.True(Identical(nil, Null{}))
	s.True(Identical(Double(math.NaN()), Double(math.NaN())))
	s.False(Identical(Int32(1), Double(1)))
	s.False(Identical(Int32(1), Int64(1)))
	s.True(Identical(Array{Int32(1), String("a")}, Array{Int32(1), String("a")}))
	s.False(Identical(Array{Int32(1)}, Array{Int32(1), Int32(1)}))
	s.False(Identical(D("a", Int32(1), "b", Int32(2)), D("b", Int32(2), "a", Int32(1))))
	s.True(Identical(Binary{Subtype: 1, Data: []byte{2}}, Binary{Subtype: 1, Data: []byte{2}}))
	s.False(Identical(Binary{Data: []byte{2}}, Binary{Subtype: 1, Data: []byte{2}}))
	s.True(Identical(Regex{Pattern: "a"}, Regex{Pattern: "a"}))
	s.False(Identical(Regex{Pattern: "a"}, Regex{Pattern: "a", Options: "i"}))
}

func (s *ValueTestSuite) TestClone() {
	arr := Array{D("a", Int32(1))}
	cp := Clone(arr).(Array)
	cp[0].(*Document).Set("a", Int32(2))
	s.Equal(`[{"a": 1}]`, Format(arr))
	s.Equal(Null{}, Clone(nil))
	s.Equal(String("x"), Clone(String("x")))
}

func (s *ValueTestSuite) TestNumbers() {
	s.True(IsNumber(Int32(1)))
	s.True(IsNumber(Double(1)))
	s.False(IsNumber(String("1")))

	n, ok := AsInt(Double(3))
	s.True(ok)
	s.Equal(int64(3), n)
	_, ok = AsInt(Double(2.5))
	s.False(ok)
	_, ok = AsInt(Double(math.Inf(1)))
	s.False(ok)
	_, ok = AsInt(String("3"))
	s.False(ok)

	f, ok := AsFloat(Int64(4))
	s.True(ok)
	s.Equal(4.0, f)
	_, ok = AsFloat(Null{})
	s.False(ok)
}

func (s *ValueTestSuite) TestTruthy() {
	for _, v := range []Value{nil, Null{}, Bool(false), Int32(0), Int64(0), Double(0)} {
		s.False(Truthy(v), Format(v))
	}
	for _, v := range []Value{Bool(true), Int32(-1), Double(.1), String(""), Array{}, NewDocument()} {
		s.True(Truthy(v), Format(v))
	}
	s.True(IsNull(nil))
	s.True(IsNull(Null{}))
	s.False(IsNull(Int32(0)))
}

func (s *ValueTestSuite) TestKinds() {
	s.Equal(KindInt64, KindOf(Int64(1)))
	s.Equal(KindNull, KindOf(nil))
	s.Equal(KindDocument, KindOf(NewDocument()))
	s.Equal("binData", KindOf(Binary{}).String())
	s.Equal("unknown", Kind(99).String())

	k, ok := KindByName("long")
	s.True(ok)
	s.Equal(KindInt64, k)
	_, ok = KindByName("decimal")
	s.False(ok)
}

func (s *ValueTestSuite) TestDateTime() {
	t := time.Date(2024, 5, 6, 7, 8, 9, 10_500_000, time.FixedZone("x", 3600))
	d := DateTimeOf(t)
	s.Equal(t.UnixMilli(), int64(d))
	s.True(d.Time().Equal(t.Truncate(time.Millisecond)))
	s.Equal(time.UTC, d.Time().Location())
}

func (s *ValueTestSuite) TestObjectID() {
	id := NewObjectID(time.Unix(100, 0), [5]byte{1, 2, 3, 4, 5}, 0xff010203)
	s.Equal("000000640102030405010203", id.Hex())
	s.Equal(`ObjectID("000000640102030405010203")`, id.String())
	s.Equal(time.Unix(100, 0).UTC(), id.Timestamp())
	s.False(id.IsZero())
	s.True(ObjectID{}.IsZero())

	back, err := ObjectIDFromHex(id.Hex())
	s.Require().NoError(err)
	s.Equal(id, back)

	_, err = ObjectIDFromHex("abc")
	s.ErrorIs(err, ErrInvalidObjectID)
	_, err = ObjectIDFromHex("zz0000000000000000000000")
	s.ErrorIs(err, ErrInvalidObjectID)
}

func TestValueTestSuite(t *testing.T) {
	suite.Run(t, new(ValueTestSuite))
}
