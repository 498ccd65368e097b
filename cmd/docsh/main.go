// docsh is an interactive shell over an in-memory docengine database.
//
// Usage:
//
//	docsh [flags]
//
// Flags:
//
//	-l, --load name=path   Load a dump file into a collection (repeatable)
//	-u, --use name         Initial collection (default: test)
//	-e, --eval command     Run a command and exit (repeatable)
//	    --pretty           Indent printed documents
//	    --log-level level  debug, info, warn or error (default: warn)
//
// Type 'help' in the shell for the list of commands.
package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	"github.com/google/uuid"
	"github.com/peterh/liner"
	"github.com/prometheus/client_golang/prometheus"
	flag "github.com/spf13/pflag"
	"github.com/vinicius-lino-figueiredo/docengine"
	"github.com/vinicius-lino-figueiredo/docengine/adapter/logger"
	"github.com/vinicius-lino-figueiredo/docengine/adapter/metrics"
	"github.com/vinicius-lino-figueiredo/docengine/adapter/persistence"
)

func main() {
	os.Exit(run(context.Background(), os.Args[1:], os.Stdout, os.Stderr))
}

func run(ctx context.Context, args []string, out, errOut io.Writer) int {
	flagSet := flag.NewFlagSet("docsh", flag.ContinueOnError)
	flagSet.SetOutput(errOut)

	loads := flagSet.StringArrayP("load", "l", nil, "load a dump file into a collection, as name=path")
	use := flagSet.StringP("use", "u", "test", "initial collection")
	evals := flagSet.StringArrayP("eval", "e", nil, "run a command and exit")
	pretty := flagSet.Bool("pretty", false, "indent printed documents")
	level := flagSet.String("log-level", "warn", "log level: debug, info, warn or error")

	if err := flagSet.Parse(args); err != nil {
		if errors.Is(err, flag.ErrHelp) {
			return 0
		}
		fmt.Fprintln(errOut, "error:", err)
		return 2
	}

	var lvl slog.Level
	if err := lvl.UnmarshalText([]byte(*level)); err != nil {
		fmt.Fprintln(errOut, "error:", err)
		return 2
	}

	sh, err := newShell(out, logger.NewLogger(errOut, lvl))
	if err != nil {
		fmt.Fprintln(errOut, "error:", err)
		return 1
	}
	sh.pretty = *pretty
	sh.current = *use

	for _, load := range *loads {
		name, path, ok := strings.Cut(load, "=")
		if !ok {
			fmt.Fprintf(errOut, "error: --load wants name=path, got %q\n", load)
			return 2
		}
		if err := sh.loadFile(ctx, name, path); err != nil {
			fmt.Fprintln(errOut, "error:", err)
			return 1
		}
	}

	if len(*evals) > 0 {
		for _, line := range *evals {
			if _, err := sh.exec(ctx, line); err != nil {
				fmt.Fprintln(errOut, "error:", err)
				return 1
			}
		}
		return 0
	}

	if err := sh.repl(ctx); err != nil {
		fmt.Fprintln(errOut, "error:", err)
		return 1
	}
	return 0
}

func newShell(out io.Writer, log docengine.Logger) (*Shell, error) {
	reg := prometheus.NewRegistry()
	m, err := metrics.NewPrometheus(reg)
	if err != nil {
		return nil, err
	}
	return &Shell{
		db: docengine.NewRegistry(
			docengine.WithRegistryLogger(log),
			docengine.WithCollectionOptions(docengine.WithMetrics(m)),
		),
		gatherer: reg,
		store:    persistence.NewPersistence(persistence.WithLogger(log)),
		out:      out,
		session:  uuid.NewString(),
		current:  "test",
	}, nil
}

func historyFile() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return ""
	}
	return filepath.Join(home, ".docsh_history")
}

// repl reads commands until exit or end of input.
func (s *Shell) repl(ctx context.Context) error {
	ln := liner.NewLiner()
	defer ln.Close()
	ln.SetCtrlCAborts(true)
	ln.SetCompleter(completer)

	if f, err := os.Open(historyFile()); err == nil {
		_, _ = ln.ReadHistory(f)
		f.Close()
	}
	defer func() {
		if path := historyFile(); path != "" {
			if f, err := os.Create(path); err == nil {
				_, _ = ln.WriteHistory(f)
				f.Close()
			}
		}
	}()

	fmt.Fprintf(s.out, "docsh session %s\n", s.session)
	fmt.Fprintln(s.out, "Type 'help' for available commands.")

	for {
		line, err := ln.Prompt(s.current + "> ")
		if err != nil {
			if errors.Is(err, liner.ErrPromptAborted) || errors.Is(err, io.EOF) {
				fmt.Fprintln(s.out, "Bye!")
				return nil
			}
			return fmt.Errorf("reading input: %w", err)
		}

		line = strings.TrimSpace(line)
		if line == "" {
			continue
		}
		ln.AppendHistory(line)

		quit, err := s.exec(ctx, line)
		if err != nil {
			fmt.Fprintln(s.out, "error:", err)
		}
		if quit {
			fmt.Fprintln(s.out, "Bye!")
			return nil
		}
	}
}

func completer(line string) []string {
	var res []string
	for _, cmd := range commandNames {
		if strings.HasPrefix(cmd, strings.ToLower(line)) {
			res = append(res, cmd)
		}
	}
	return res
}
