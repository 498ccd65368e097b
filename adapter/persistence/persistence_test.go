package persistence

import (
	"bufio"
	"bytes"
	"context"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/suite"
	"github.com/vinicius-lino-figueiredo/docengine/adapter/logger"
	"github.com/vinicius-lino-figueiredo/docengine/domain"
	"github.com/vinicius-lino-figueiredo/docengine/pkg/value"
)

type PersistenceTestSuite struct {
	suite.Suite
	ctx context.Context
	p   *Persistence
	dir string
}

func (s *PersistenceTestSuite) SetupTest() {
	s.ctx = context.Background()
	s.p = NewPersistence()
	s.dir = s.T().TempDir()
}

func (s *PersistenceTestSuite) expect(want string, docs []*value.Document) {
	s.T().Helper()
	v, err := value.Parse([]byte(want))
	s.Require().NoError(err)
	arr := v.(value.Array)
	expected := make([]*value.Document, len(arr))
	for n, e := range arr {
		expected[n] = e.(*value.Document)
	}
	s.Empty(cmp.Diff(expected, docs, cmp.Comparer(value.Identical)))
}

func (s *PersistenceTestSuite) TestRoundTrip() {
	docs := []*value.Document{
		value.MustParse(`{"_id": 1, "tags": ["a", "b"], "at": {"$date": {"$numberLong": "5"}}}`),
		value.MustParse(`{"_id": {"$oid": "0123456789abcdef01234567"}, "n": {"$numberLong": "7"}}`),
		value.MustParse(`{"nested": {"x": 1.5}}`),
	}
	for _, indent := range []bool{false, true} {
		path := filepath.Join(s.dir, "dump.json")
		s.Require().NoError(s.p.WriteFile(s.ctx, path, docs, indent))
		got, err := s.p.ReadFile(s.ctx, path)
		s.Require().NoError(err)
		s.Empty(cmp.Diff(docs, got, cmp.Comparer(value.Identical)))
	}

	data, err := os.ReadFile(filepath.Join(s.dir, "dump.json"))
	s.Require().NoError(err)
	s.True(strings.HasPrefix(string(data), "[\n  {\n"))
}

func (s *PersistenceTestSuite) TestLastLineWins() {
	raw := strings.Join([]string{
		`{"_id": 1, "a": 1}`,
		``,
		`{"_id": 2}`,
		`{"b": 3}`,
		`{"_id": 1, "a": 2}`,
		`{"_id": 2, "$$deleted": true}`,
		`{"_id": 3}`,
	}, "\n")
	docs, err := s.p.Read(s.ctx, strings.NewReader(raw))
	s.Require().NoError(err)
	s.expect(`[{"_id": 1, "a": 2}, {"_id": 3}, {"b": 3}]`, docs)
}

func (s *PersistenceTestSuite) TestCorruptLines() {
	raw := "{\"_id\": 1}\nnot json\n{\"_id\": 2}\n{\"_id\": 3}\n{\"_id\": 4}\n"

	_, err := s.p.Read(s.ctx, strings.NewReader(raw))
	var corrupt domain.ErrCorruptData
	s.Require().ErrorAs(err, &corrupt)
	s.Equal(1, corrupt.CorruptItems)
	s.Equal(5, corrupt.DataLength)
	s.InDelta(0.2, corrupt.CorruptionRate, 1e-9)

	log := new(bytes.Buffer)
	p := NewPersistence(WithCorruptAlertThreshold(0.25), WithLogger(logger.NewLogger(log, slog.LevelDebug)))
	docs, err := p.Read(s.ctx, strings.NewReader(raw))
	s.Require().NoError(err)
	s.Len(docs, 4)
	s.Contains(log.String(), "skipped corrupt records")

	_, err = s.p.Read(s.ctx, strings.NewReader(`[{"_id": 1}, 2, 3]`))
	s.ErrorAs(err, &corrupt)
}

func (s *PersistenceTestSuite) TestArray() {
	docs, err := s.p.Read(s.ctx, strings.NewReader("  \n [{\"a\": 1},\n {\"a\": 1}] "))
	s.Require().NoError(err)
	s.expect(`[{"a": 1}, {"a": 1}]`, docs)

	_, err = s.p.Read(s.ctx, strings.NewReader(`[{"a": 1}`))
	s.Error(err)

	docs, err = s.p.Read(s.ctx, strings.NewReader(""))
	s.NoError(err)
	s.Empty(docs)
}

func (s *PersistenceTestSuite) TestLongLine() {
	p := NewPersistence(WithMaxLineSize(16))
	_, err := p.Read(s.ctx, strings.NewReader(`{"_id": 1, "text": "longer than sixteen bytes"}`))
	s.ErrorIs(err, bufio.ErrTooLong)
}

func (s *PersistenceTestSuite) TestErrors() {
	_, err := s.p.ReadFile(s.ctx, filepath.Join(s.dir, "missing.json"))
	s.ErrorIs(err, os.ErrNotExist)

	ctx, cancel := context.WithCancel(s.ctx)
	cancel()
	_, err = s.p.Read(ctx, strings.NewReader(`{"_id": 1}`))
	s.ErrorIs(err, context.Canceled)

	path := filepath.Join(s.dir, "canceled.json")
	err = s.p.WriteFile(ctx, path, []*value.Document{value.MustParse(`{"_id": 1}`)}, false)
	s.ErrorIs(err, context.Canceled)
	_, err = os.Stat(path)
	s.ErrorIs(err, os.ErrNotExist)
}

func TestPersistenceTestSuite(t *testing.T) {
	suite.Run(t, new(PersistenceTestSuite))
}
