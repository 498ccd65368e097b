package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"slices"
	"strings"

	"github.com/prometheus/client_golang/prometheus"
	flag "github.com/spf13/pflag"
	"github.com/vinicius-lino-figueiredo/docengine"
	"github.com/vinicius-lino-figueiredo/docengine/adapter/persistence"
	"github.com/vinicius-lino-figueiredo/docengine/domain"
	"github.com/vinicius-lino-figueiredo/docengine/pkg/value"
)

var errUsage = errors.New("wrong arguments, see 'help'")

var commandNames = []string{
	"aggregate", "collections", "count", "createindex", "delete", "distinct",
	"drop", "dropindex", "exit", "export", "find", "findone", "help",
	"indexes", "insert", "load", "rename", "stats", "update", "use",
}

const helpText = `Commands:
  use <name>                               switch the current collection
  collections                              list collections
  insert <doc|[docs]>                      insert documents
  find [filter] [options]                  list matching documents
  findone [filter] [options]               print the first matching document
  count [filter]                           count matching documents
  distinct <field> [filter]                list the distinct values of a field
  update <filter> <update> [options]       update documents
  delete <filter> [options]                delete documents
  aggregate <[stages]>                     run an aggregation pipeline
  createindex <keys> [options]             create an index
  indexes                                  list indexes
  dropindex <name>                         drop an index
  drop [name]                              drop a collection
  rename [--drop-target] <from> <to>       rename a collection
  load <file>                              insert the documents of a dump file
  export [--pretty] <file>                 write the documents to a dump file
  stats                                    print operation counters
  exit                                     leave the shell

Options documents accept sort, projection, skip, limit, multi, upsert, new,
name, unique and sparse, like {"sort": {"a": -1}, "limit": 5}.
`

// Shell runs commands against a registry.
type Shell struct {
	db       docengine.Registry
	gatherer prometheus.Gatherer
	store    *persistence.Persistence
	out      io.Writer
	session  string
	current  string
	pretty   bool
}

// exec runs one command line and reports whether the shell should stop.
func (s *Shell) exec(ctx context.Context, line string) (bool, error) {
	cmd, rest, _ := strings.Cut(strings.TrimSpace(line), " ")
	args, err := splitArgs(rest)
	if err != nil {
		return false, err
	}

	switch strings.ToLower(cmd) {
	case "":
		return false, nil
	case "exit", "quit":
		return true, nil
	case "help", "?":
		fmt.Fprint(s.out, helpText)
		return false, nil
	case "use":
		return false, s.use(args)
	case "collections", "show":
		for _, name := range s.db.CollectionNames() {
			fmt.Fprintln(s.out, name)
		}
		return false, nil
	case "insert":
		return false, s.insert(ctx, args)
	case "find":
		return false, s.find(ctx, args, false)
	case "findone":
		return false, s.find(ctx, args, true)
	case "count":
		return false, s.count(ctx, args)
	case "distinct":
		return false, s.distinct(ctx, args)
	case "update":
		return false, s.update(ctx, args)
	case "delete":
		return false, s.delete(ctx, args)
	case "aggregate":
		return false, s.aggregate(ctx, args)
	case "createindex":
		return false, s.createIndex(ctx, args)
	case "indexes":
		return false, s.indexes(ctx)
	case "dropindex":
		return false, s.dropIndex(ctx, args)
	case "drop":
		return false, s.drop(ctx, args)
	case "rename":
		return false, s.rename(ctx, args)
	case "load":
		if len(args) != 1 {
			return false, errUsage
		}
		return false, s.loadFile(ctx, s.current, args[0])
	case "export":
		return false, s.export(ctx, args)
	case "stats":
		return false, s.stats()
	default:
		return false, fmt.Errorf("unknown command %q, see 'help'", cmd)
	}
}

func (s *Shell) collection(ctx context.Context) (docengine.Collection, error) {
	return s.db.GetOrCreateCollection(ctx, s.current)
}

func (s *Shell) print(v value.Value) {
	if s.pretty {
		fmt.Fprintln(s.out, value.FormatIndent(v, "  "))
		return
	}
	fmt.Fprintln(s.out, value.Format(v))
}

func (s *Shell) use(args []string) error {
	if len(args) != 1 {
		return errUsage
	}
	name, err := unquote(args[0])
	if err != nil {
		return err
	}
	s.current = name
	fmt.Fprintf(s.out, "switched to %s\n", name)
	return nil
}

func (s *Shell) insert(ctx context.Context, args []string) error {
	if len(args) != 1 {
		return errUsage
	}
	v, err := value.Parse([]byte(args[0]))
	if err != nil {
		return err
	}
	docs := []any{v}
	if arr, ok := v.(value.Array); ok {
		docs = make([]any, len(arr))
		for n, item := range arr {
			docs[n] = item
		}
	}
	c, err := s.collection(ctx)
	if err != nil {
		return err
	}
	res, err := c.Insert(ctx, docs)
	if err != nil {
		return err
	}
	for _, id := range res.InsertedIDs {
		fmt.Fprintf(s.out, "inserted %s\n", value.Format(id))
	}
	return nil
}

func (s *Shell) find(ctx context.Context, args []string, one bool) error {
	if len(args) > 2 {
		return errUsage
	}
	filter, err := optional(args, 0)
	if err != nil {
		return err
	}
	raw, err := optional(args, 1)
	if err != nil {
		return err
	}
	opts, err := parseOptions(raw)
	if err != nil {
		return err
	}
	if one {
		opts.limit = 1
	}

	findOpts := []domain.FindOption{
		domain.WithFindSort(opts.sort),
		domain.WithFindSkip(opts.skip),
		domain.WithFindLimit(opts.limit),
	}
	if opts.projection != nil {
		findOpts = append(findOpts, domain.WithFindProjection(opts.projection))
	}

	c, err := s.collection(ctx)
	if err != nil {
		return err
	}
	cur, err := c.Find(ctx, filter, findOpts...)
	if err != nil {
		return err
	}
	defer cur.Close()

	n := 0
	for cur.Next() {
		s.print(cur.Document())
		n++
	}
	if err := cur.Err(); err != nil {
		return err
	}
	if one && n == 0 {
		return docengine.ErrNotFound
	}
	return nil
}

func (s *Shell) count(ctx context.Context, args []string) error {
	if len(args) > 1 {
		return errUsage
	}
	filter, err := optional(args, 0)
	if err != nil {
		return err
	}
	c, err := s.collection(ctx)
	if err != nil {
		return err
	}
	n, err := c.Count(ctx, filter)
	if err != nil {
		return err
	}
	fmt.Fprintln(s.out, n)
	return nil
}

func (s *Shell) distinct(ctx context.Context, args []string) error {
	if len(args) < 1 || len(args) > 2 {
		return errUsage
	}
	field, err := unquote(args[0])
	if err != nil {
		return err
	}
	filter, err := optional(args, 1)
	if err != nil {
		return err
	}
	c, err := s.collection(ctx)
	if err != nil {
		return err
	}
	values, err := c.Distinct(ctx, field, filter)
	if err != nil {
		return err
	}
	s.print(values)
	return nil
}

func (s *Shell) update(ctx context.Context, args []string) error {
	if len(args) < 2 || len(args) > 3 {
		return errUsage
	}
	filter, err := parseDocument(args[0])
	if err != nil {
		return err
	}
	upd, err := parseDocument(args[1])
	if err != nil {
		return err
	}
	raw, err := optional(args, 2)
	if err != nil {
		return err
	}
	opts, err := parseOptions(raw)
	if err != nil {
		return err
	}
	c, err := s.collection(ctx)
	if err != nil {
		return err
	}

	if opts.returnNew || len(opts.sort) > 0 {
		doc, err := c.FindOneAndUpdate(ctx, filter, upd,
			domain.WithReturnNew(opts.returnNew),
			domain.WithFindAndModifyUpsert(opts.upsert),
			domain.WithFindAndModifySort(opts.sort),
		)
		if err != nil {
			return err
		}
		if doc != nil {
			s.print(doc)
		}
		return nil
	}

	res, err := c.Update(ctx, filter, upd,
		domain.WithUpdateMulti(opts.multi),
		domain.WithUpsert(opts.upsert),
	)
	if err != nil {
		return err
	}
	fmt.Fprintf(s.out, "matched %d, modified %d\n", res.Matched, res.Modified)
	if res.UpsertedID != nil {
		fmt.Fprintf(s.out, "upserted %s\n", value.Format(res.UpsertedID))
	}
	return nil
}

func (s *Shell) delete(ctx context.Context, args []string) error {
	if len(args) < 1 || len(args) > 2 {
		return errUsage
	}
	filter, err := parseDocument(args[0])
	if err != nil {
		return err
	}
	raw, err := optional(args, 1)
	if err != nil {
		return err
	}
	opts, err := parseOptions(raw)
	if err != nil {
		return err
	}
	c, err := s.collection(ctx)
	if err != nil {
		return err
	}
	res, err := c.Delete(ctx, filter, domain.WithDeleteMulti(opts.multi))
	if err != nil {
		return err
	}
	fmt.Fprintf(s.out, "deleted %d\n", res.Deleted)
	return nil
}

func (s *Shell) aggregate(ctx context.Context, args []string) error {
	if len(args) != 1 {
		return errUsage
	}
	stages, err := parseArray(args[0])
	if err != nil {
		return err
	}
	pipeline := make([]any, len(stages))
	for n, st := range stages {
		pipeline[n] = st
	}
	c, err := s.collection(ctx)
	if err != nil {
		return err
	}
	cur, err := c.Aggregate(ctx, pipeline)
	if err != nil {
		return err
	}
	docs, err := cur.All(ctx)
	if err != nil {
		return err
	}
	for _, doc := range docs {
		s.print(doc)
	}
	return nil
}

func (s *Shell) createIndex(ctx context.Context, args []string) error {
	if len(args) < 1 || len(args) > 2 {
		return errUsage
	}
	keys, err := parseDocument(args[0])
	if err != nil {
		return err
	}
	raw, err := optional(args, 1)
	if err != nil {
		return err
	}
	opts, err := parseOptions(raw)
	if err != nil {
		return err
	}
	idxOpts := []domain.IndexOption{
		domain.WithIndexUnique(opts.unique),
		domain.WithIndexSparse(opts.sparse),
	}
	if opts.name != "" {
		idxOpts = append(idxOpts, domain.WithIndexName(opts.name))
	}
	c, err := s.collection(ctx)
	if err != nil {
		return err
	}
	name, err := c.CreateIndex(ctx, keys, idxOpts...)
	if err != nil {
		return err
	}
	fmt.Fprintln(s.out, name)
	return nil
}

func (s *Shell) indexes(ctx context.Context) error {
	c, err := s.collection(ctx)
	if err != nil {
		return err
	}
	specs, err := c.Indexes(ctx)
	if err != nil {
		return err
	}
	for _, spec := range specs {
		var flags []string
		if spec.Unique {
			flags = append(flags, "unique")
		}
		if spec.Sparse {
			flags = append(flags, "sparse")
		}
		fmt.Fprintln(s.out, strings.Join(append([]string{spec.Name}, flags...), " "))
	}
	return nil
}

func (s *Shell) dropIndex(ctx context.Context, args []string) error {
	if len(args) != 1 {
		return errUsage
	}
	name, err := unquote(args[0])
	if err != nil {
		return err
	}
	c, err := s.collection(ctx)
	if err != nil {
		return err
	}
	return c.DropIndex(ctx, name)
}

func (s *Shell) drop(ctx context.Context, args []string) error {
	if len(args) > 1 {
		return errUsage
	}
	name := s.current
	if len(args) == 1 {
		var err error
		if name, err = unquote(args[0]); err != nil {
			return err
		}
	}
	return s.db.DropCollection(ctx, name)
}

func (s *Shell) rename(ctx context.Context, args []string) error {
	flagSet := flag.NewFlagSet("rename", flag.ContinueOnError)
	flagSet.SetOutput(io.Discard)
	dropTarget := flagSet.Bool("drop-target", false, "replace an existing target")
	if err := flagSet.Parse(args); err != nil {
		return err
	}
	if flagSet.NArg() != 2 {
		return errUsage
	}
	from, to := flagSet.Arg(0), flagSet.Arg(1)
	if err := s.db.RenameCollection(ctx, from, to, *dropTarget); err != nil {
		return err
	}
	if s.current == from {
		s.current = to
	}
	return nil
}

// loadFile inserts the documents of a dump into the named collection.
func (s *Shell) loadFile(ctx context.Context, name, path string) error {
	docs, err := s.store.ReadFile(ctx, path)
	if err != nil {
		return fmt.Errorf("loading %s: %w", path, err)
	}
	raw := make([]any, len(docs))
	for n, doc := range docs {
		raw[n] = doc
	}
	c, err := s.db.GetOrCreateCollection(ctx, name)
	if err != nil {
		return err
	}
	res, err := c.Insert(ctx, raw)
	if err != nil {
		return fmt.Errorf("loading %s: %w", path, err)
	}
	fmt.Fprintf(s.out, "loaded %d documents into %s\n", len(res.InsertedIDs), name)
	return nil
}

// export writes the current collection to a dump file.
func (s *Shell) export(ctx context.Context, args []string) error {
	flagSet := flag.NewFlagSet("export", flag.ContinueOnError)
	flagSet.SetOutput(io.Discard)
	pretty := flagSet.Bool("pretty", false, "write an indented array")
	if err := flagSet.Parse(args); err != nil {
		return err
	}
	if flagSet.NArg() != 1 {
		return errUsage
	}

	c, err := s.collection(ctx)
	if err != nil {
		return err
	}
	docs, err := c.Snapshot(ctx)
	if err != nil {
		return err
	}
	if err := s.store.WriteFile(ctx, flagSet.Arg(0), docs, *pretty); err != nil {
		return err
	}
	fmt.Fprintf(s.out, "exported %d documents\n", len(docs))
	return nil
}

// stats prints the operation counters gathered from the collections.
func (s *Shell) stats() error {
	families, err := s.gatherer.Gather()
	if err != nil {
		return err
	}
	var lines []string
	for _, mf := range families {
		for _, m := range mf.GetMetric() {
			c := m.GetCounter()
			if c == nil {
				continue
			}
			labels := make([]string, 0, len(m.GetLabel()))
			for _, l := range m.GetLabel() {
				labels = append(labels, l.GetName()+"="+l.GetValue())
			}
			lines = append(lines, fmt.Sprintf("%s %g", strings.Join(labels, " "), c.GetValue()))
		}
	}
	slices.Sort(lines)
	for _, l := range lines {
		fmt.Fprintln(s.out, l)
	}
	return nil
}
