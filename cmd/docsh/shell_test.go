package main

import (
	"bytes"
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/suite"
	"github.com/vinicius-lino-figueiredo/docengine/adapter/logger"
	"github.com/vinicius-lino-figueiredo/docengine/domain"
)

type ShellTestSuite struct {
	suite.Suite
	ctx context.Context
	out *bytes.Buffer
	sh  *Shell
}

func (s *ShellTestSuite) SetupTest() {
	s.ctx = context.Background()
	s.out = new(bytes.Buffer)
	sh, err := newShell(s.out, logger.NewDiscardLogger())
	s.Require().NoError(err)
	s.sh = sh
}

// run executes the lines and returns what they printed.
func (s *ShellTestSuite) run(lines ...string) string {
	s.T().Helper()
	s.out.Reset()
	for _, line := range lines {
		quit, err := s.sh.exec(s.ctx, line)
		s.Require().NoError(err, line)
		s.False(quit)
	}
	return s.out.String()
}

func (s *ShellTestSuite) TestSplitArgs() {
	args, err := splitArgs(` {"a": "x y", "b": [1, {"c": "}"}]}  name "quoted word" [1,2]`)
	s.Require().NoError(err)
	s.Equal([]string{`{"a": "x y", "b": [1, {"c": "}"}]}`, "name", `"quoted word"`, "[1,2]"}, args)

	args, err = splitArgs("")
	s.NoError(err)
	s.Empty(args)

	_, err = splitArgs(`{"a": 1`)
	s.ErrorIs(err, errUnbalanced)
	_, err = splitArgs(`"open`)
	s.Error(err)
}

func (s *ShellTestSuite) TestParseOptions() {
	doc, err := parseDocument(`{"sort": {"a": -1, "b": 1}, "limit": 5, "skip": 2, "multi": true, "name": "x"}`)
	s.Require().NoError(err)
	opts, err := parseOptions(doc)
	s.Require().NoError(err)
	s.Equal(domain.Sort{{Key: "a", Order: -1}, {Key: "b", Order: 1}}, opts.sort)
	s.Equal(int64(5), opts.limit)
	s.Equal(int64(2), opts.skip)
	s.True(opts.multi)
	s.Equal("x", opts.name)

	doc, _ = parseDocument(`{"limit": "many"}`)
	_, err = parseOptions(doc)
	s.ErrorContains(err, "limit")

	doc, _ = parseDocument(`{"colour": 1}`)
	_, err = parseOptions(doc)
	s.ErrorContains(err, "unknown option")
}

func (s *ShellTestSuite) TestCRUD() {
	s.Equal("inserted 1\ninserted 2\ninserted 3\n",
		s.run(`insert [{"_id": 1, "a": 1}, {"_id": 2, "a": 2}, {"_id": 3, "a": 3}]`))

	s.Equal("{\"_id\": 2, \"a\": 2}\n{\"_id\": 3, \"a\": 3}\n",
		s.run(`find {"a": {"$gt": 1}}`))
	s.Equal("{\"a\": 3}\n",
		s.run(`find {} {"sort": {"a": -1}, "limit": 1, "projection": {"_id": 0}}`))
	s.Equal("{\"_id\": 1, \"a\": 1}\n", s.run("findone"))

	s.Equal("matched 2, modified 2\n",
		s.run(`update {"a": {"$lte": 2}} {"$inc": {"a": 10}} {"multi": true}`))
	s.Equal("matched 0, modified 0\nupserted 9\n",
		s.run(`update {"_id": 9} {"$set": {"a": 0}} {"upsert": true}`))
	s.Equal("{\"_id\": 3, \"a\": 4}\n",
		s.run(`update {"_id": 3} {"$inc": {"a": 1}} {"new": true}`))

	s.Equal("4\n", s.run("count"))
	s.Equal("2\n", s.run(`count {"a": {"$gt": 10}}`))
	s.Equal("[11, 12, 4, 0]\n", s.run("distinct a"))

	s.Equal("deleted 1\n", s.run(`delete {"a": {"$gt": 10}}`))
	s.Equal("deleted 3\n", s.run(`delete {} {"multi": true}`))
	s.Equal("0\n", s.run("count"))

	_, err := s.sh.exec(s.ctx, `findone {"_id": 1}`)
	s.ErrorIs(err, domain.ErrNotFound)
}

func (s *ShellTestSuite) TestAggregate() {
	s.run(`insert [{"g": "x", "n": 1}, {"g": "y", "n": 2}, {"g": "x", "n": 3}]`)
	s.Equal("{\"_id\": \"x\", \"total\": 4}\n{\"_id\": \"y\", \"total\": 2}\n",
		s.run(`aggregate [{"$group": {"_id": "$g", "total": {"$sum": "$n"}}}, {"$sort": {"_id": 1}}]`))
}

func (s *ShellTestSuite) TestIndexes() {
	s.Equal("email_1\n", s.run(`createindex {"email": 1} {"unique": true}`))
	s.Equal("by_age\n", s.run(`createindex {"age": -1} {"name": "by_age", "sparse": true}`))
	s.Equal("_id_ unique\nemail_1 unique\nby_age sparse\n", s.run("indexes"))

	s.run(`insert {"email": "a"}`)
	_, err := s.sh.exec(s.ctx, `insert {"email": "a"}`)
	var dup domain.ErrDuplicateKey
	s.ErrorAs(err, &dup)

	s.run("dropindex email_1")
	s.Equal("_id_ unique\nby_age sparse\n", s.run("indexes"))
	_, err = s.sh.exec(s.ctx, "dropindex _id_")
	s.ErrorIs(err, domain.ErrCannotDropIDIndex)
}

func (s *ShellTestSuite) TestCollections() {
	s.run(`insert {"_id": 1}`, "use other", `insert {"_id": 2}`)
	s.Equal("other\ntest\n", s.run("collections"))

	_, err := s.sh.exec(s.ctx, "rename other test")
	s.ErrorIs(err, domain.ErrCollectionExists)

	s.run("rename --drop-target other test")
	s.Equal("test", s.sh.current)
	s.Equal("test\n", s.run("collections"))
	s.Equal("{\"_id\": 2}\n", s.run("find"))

	s.run("drop")
	s.Empty(s.run("collections"))
	_, err = s.sh.exec(s.ctx, "drop missing")
	s.ErrorIs(err, domain.ErrCollectionNotFound)
}

func (s *ShellTestSuite) TestLoadExport() {
	dir := s.T().TempDir()
	lines := filepath.Join(dir, "lines.json")
	s.Require().NoError(os.WriteFile(lines, []byte("{\"_id\": 1}\n{\"_id\": 2, \"tags\": [\"a b\"]}\n"), 0o600))
	array := filepath.Join(dir, "array.json")
	s.Require().NoError(os.WriteFile(array, []byte(`[{"_id": 3}]`), 0o600))

	s.Equal("loaded 2 documents into test\n", s.run("load "+lines))
	s.Equal("loaded 1 documents into test\n", s.run("load "+array))

	out := filepath.Join(dir, "out.json")
	s.Equal("exported 3 documents\n", s.run("export "+out))
	data, err := os.ReadFile(out)
	s.Require().NoError(err)
	s.Equal("{\"_id\": 1}\n{\"_id\": 2, \"tags\": [\"a b\"]}\n{\"_id\": 3}\n", string(data))

	s.run("export --pretty " + out)
	data, err = os.ReadFile(out)
	s.Require().NoError(err)
	s.True(strings.HasPrefix(string(data), "[\n"))
	docs, err := s.sh.store.ReadFile(s.ctx, out)
	s.Require().NoError(err)
	s.Len(docs, 3)

	_, err = s.sh.exec(s.ctx, "load "+filepath.Join(dir, "missing.json"))
	s.ErrorIs(err, os.ErrNotExist)
}

func (s *ShellTestSuite) TestStats() {
	s.run(`insert {"_id": 1}`, "count", "count")
	stats := s.run("stats")
	s.Contains(stats, "collection=test operation=insert status=ok 1\n")
	s.Contains(stats, "collection=test operation=count status=ok 2\n")
}

func (s *ShellTestSuite) TestErrors() {
	_, err := s.sh.exec(s.ctx, "frobnicate")
	s.ErrorContains(err, "unknown command")
	_, err = s.sh.exec(s.ctx, "update {}")
	s.ErrorIs(err, errUsage)
	_, err = s.sh.exec(s.ctx, `find {"a": {"$nope": 1}}`)
	var op domain.ErrInvalidOperator
	s.ErrorAs(err, &op)

	quit, err := s.sh.exec(s.ctx, "exit")
	s.NoError(err)
	s.True(quit)
}

func (s *ShellTestSuite) TestRun() {
	dir := s.T().TempDir()
	file := filepath.Join(dir, "seed.json")
	s.Require().NoError(os.WriteFile(file, []byte(`[{"_id": 1}, {"_id": 2}]`), 0o600))

	out, errOut := new(bytes.Buffer), new(bytes.Buffer)
	code := run(s.ctx, []string{"--load", "seed=" + file, "-u", "seed", "-e", "count", "-e", `find {"_id": 2}`}, out, errOut)
	s.Equal(0, code, errOut.String())
	s.Equal("loaded 2 documents into seed\n2\n{\"_id\": 2}\n", out.String())

	out.Reset()
	code = run(s.ctx, []string{"--load", "nameless"}, out, errOut)
	s.Equal(2, code)

	code = run(s.ctx, []string{"--log-level", "loud"}, out, errOut)
	s.Equal(2, code)

	code = run(s.ctx, []string{"-e", "nonsense"}, out, errOut)
	s.Equal(1, code)
}

func TestShellTestSuite(t *testing.T) {
	suite.Run(t, new(ShellTestSuite))
}
