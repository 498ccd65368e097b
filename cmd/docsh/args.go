package main

import (
	"errors"
	"fmt"
	"strings"

	"github.com/vinicius-lino-figueiredo/docengine/domain"
	"github.com/vinicius-lino-figueiredo/docengine/pkg/value"
)

var errUnbalanced = errors.New("unbalanced brackets")

// splitArgs splits a command line into words and JSON values. Objects, arrays
// and quoted strings are kept whole, so they may contain spaces.
func splitArgs(line string) ([]string, error) {
	var (
		args []string
		i    int
	)
	for i < len(line) {
		switch c := line[i]; {
		case c == ' ' || c == '\t' || c == '\n' || c == '\r':
			i++
		case c == '{' || c == '[':
			end, err := balancedEnd(line, i)
			if err != nil {
				return nil, err
			}
			args = append(args, line[i:end])
			i = end
		case c == '"':
			end, err := stringEnd(line, i)
			if err != nil {
				return nil, err
			}
			args = append(args, line[i:end])
			i = end
		default:
			start := i
			for i < len(line) && !strings.ContainsRune(" \t\n\r{[", rune(line[i])) {
				i++
			}
			args = append(args, line[start:i])
		}
	}
	return args, nil
}

func balancedEnd(line string, start int) (int, error) {
	depth := 0
	for i := start; i < len(line); i++ {
		switch line[i] {
		case '"':
			end, err := stringEnd(line, i)
			if err != nil {
				return 0, err
			}
			i = end - 1
		case '{', '[':
			depth++
		case '}', ']':
			depth--
			if depth == 0 {
				return i + 1, nil
			}
		}
	}
	return 0, errUnbalanced
}

func stringEnd(line string, start int) (int, error) {
	for i := start + 1; i < len(line); i++ {
		switch line[i] {
		case '\\':
			i++
		case '"':
			return i + 1, nil
		}
	}
	return 0, fmt.Errorf("unterminated string at %d", start)
}

// unquote returns bare words as they are and decodes quoted ones.
func unquote(arg string) (string, error) {
	if !strings.HasPrefix(arg, `"`) {
		return arg, nil
	}
	v, err := value.Parse([]byte(arg))
	if err != nil {
		return "", err
	}
	s, ok := v.(value.String)
	if !ok {
		return "", fmt.Errorf("expected a string, got %s", arg)
	}
	return string(s), nil
}

func parseDocument(arg string) (*value.Document, error) {
	doc, err := value.ParseDocument([]byte(arg))
	if err != nil {
		return nil, fmt.Errorf("parsing %q: %w", arg, err)
	}
	return doc, nil
}

func parseArray(arg string) (value.Array, error) {
	v, err := value.Parse([]byte(arg))
	if err != nil {
		return nil, fmt.Errorf("parsing %q: %w", arg, err)
	}
	arr, ok := v.(value.Array)
	if !ok {
		return nil, fmt.Errorf("expected an array, got %s", arg)
	}
	return arr, nil
}

// optional returns the document at args[n], or an empty document when there
// are fewer arguments.
func optional(args []string, n int) (*value.Document, error) {
	if n >= len(args) {
		return value.NewDocument(), nil
	}
	return parseDocument(args[n])
}

// commandOptions holds the settings given as a trailing options document,
// like {"limit": 5, "sort": {"a": -1}}.
type commandOptions struct {
	sort       domain.Sort
	projection *value.Document
	skip       int64
	limit      int64
	multi      bool
	upsert     bool
	returnNew  bool
	unique     bool
	sparse     bool
	name       string
}

func parseOptions(doc *value.Document) (commandOptions, error) {
	var opts commandOptions
	for key, v := range doc.All() {
		var ok bool
		switch key {
		case "sort":
			var sort *value.Document
			if sort, ok = v.(*value.Document); ok {
				for field, dir := range sort.All() {
					n, _ := value.AsInt(dir)
					opts.sort = append(opts.sort, domain.SortName{Key: field, Order: n})
				}
			}
		case "projection":
			opts.projection, ok = v.(*value.Document)
		case "skip":
			opts.skip, ok = value.AsInt(v)
		case "limit":
			opts.limit, ok = value.AsInt(v)
		case "name":
			var s value.String
			s, ok = v.(value.String)
			opts.name = string(s)
		case "multi", "upsert", "new", "unique", "sparse":
			var b value.Bool
			b, ok = v.(value.Bool)
			switch key {
			case "multi":
				opts.multi = bool(b)
			case "upsert":
				opts.upsert = bool(b)
			case "new":
				opts.returnNew = bool(b)
			case "unique":
				opts.unique = bool(b)
			case "sparse":
				opts.sparse = bool(b)
			}
		default:
			return opts, fmt.Errorf("unknown option %q", key)
		}
		if !ok {
			return opts, fmt.Errorf("invalid value for option %q: %s", key, value.Format(v))
		}
	}
	return opts, nil
}
