package idgenerator

import (
	"bytes"
	"io"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/suite"
	"github.com/vinicius-lino-figueiredo/docengine/pkg/value"
)

type fixedTime struct{ t time.Time }

func (f fixedTime) GetTime() time.Time { return f.t }

type IDGeneratorTestSuite struct {
	suite.Suite
	ig *IDGenerator
}

func (s *IDGeneratorTestSuite) SetupTest() {
	s.ig = NewIDGenerator().(*IDGenerator)
}

func (s *IDGeneratorTestSuite) TestLayout() {
	now := time.Date(2024, 5, 6, 7, 8, 9, 0, time.UTC)
	seed := []byte{1, 2, 3, 4, 5, 0, 0, 9}
	s.ig = NewIDGenerator(
		WithReader(bytes.NewReader(seed)),
		WithTimeGetter(fixedTime{t: now}),
	).(*IDGenerator)

	v, err := s.ig.GenerateID()
	s.Require().NoError(err)
	id, ok := v.(value.ObjectID)
	s.Require().True(ok)
	s.Equal(now, id.Timestamp())
	s.Equal([]byte{1, 2, 3, 4, 5}, id[4:9])
	s.Equal([]byte{0, 0, 10}, id[9:])

	// the seed is read once
	v, err = s.ig.GenerateID()
	s.Require().NoError(err)
	id = v.(value.ObjectID)
	s.Equal([]byte{0, 0, 11}, id[9:])
}

func (s *IDGeneratorTestSuite) TestCollision() {
	seen := make(map[value.ObjectID]struct{})
	for range 1000 {
		v, err := s.ig.GenerateID()
		s.Require().NoError(err)
		id := v.(value.ObjectID)
		_, dup := seen[id]
		s.False(dup)
		seen[id] = struct{}{}
	}
}

// Ids created later sort after earlier ones within the same process.
func (s *IDGeneratorTestSuite) TestIncreasing() {
	a, err := s.ig.GenerateID()
	s.Require().NoError(err)
	b, err := s.ig.GenerateID()
	s.Require().NoError(err)
	ida, idb := a.(value.ObjectID), b.(value.ObjectID)
	if ida.Timestamp().Equal(idb.Timestamp()) && ida[11] != 0xff {
		s.Less(bytes.Compare(ida[:], idb[:]), 0)
	}
}

func (s *IDGeneratorTestSuite) TestReadError() {
	s.ig = NewIDGenerator(WithReader(strings.NewReader(""))).(*IDGenerator)

	id, err := s.ig.GenerateID()
	s.ErrorIs(err, io.EOF)
	s.Nil(id)

	// the failure is sticky
	_, err = s.ig.GenerateID()
	s.ErrorIs(err, io.EOF)
}

func TestIDGeneratorTestSuite(t *testing.T) {
	suite.Run(t, new(IDGeneratorTestSuite))
}
