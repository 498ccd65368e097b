package matcher

import (
	"fmt"
	"regexp"
	"strings"

	"github.com/vinicius-lino-figueiredo/docengine/domain"
	"github.com/vinicius-lino-figueiredo/docengine/pkg/value"
)

// compileRegex translates r into a Go regular expression. Options i, m and s
// map to the flags of the same name, x drops unescaped whitespace and
// comments from the pattern.
func compileRegex(r value.Regex) (*regexp.Regexp, error) {
	pattern := r.Pattern
	var flags strings.Builder
	for _, o := range r.Options {
		switch o {
		case 'i', 'm', 's':
			if !strings.ContainsRune(flags.String(), o) {
				flags.WriteRune(o)
			}
		case 'x':
			pattern = stripExtended(pattern)
		default:
			return nil, domain.ErrInvalidOperator{
				Operator: "$options",
				Reason:   fmt.Sprintf("invalid flag %q", o),
			}
		}
	}
	if flags.Len() > 0 {
		pattern = "(?" + flags.String() + ")" + pattern
	}
	rgx, err := regexp.Compile(pattern)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", domain.ErrInvalidOperator{
			Operator: "$regex",
			Reason:   "invalid pattern",
		}, err)
	}
	return rgx, nil
}

func stripExtended(p string) string {
	var b strings.Builder
	var class, comment bool
	for n := 0; n < len(p); n++ {
		c := p[n]
		switch {
		case comment:
			comment = c != '\n'
		case c == '\\' && n+1 < len(p):
			b.WriteByte(c)
			n++
			b.WriteByte(p[n])
		case class:
			class = c != ']'
			b.WriteByte(c)
		case c == '[':
			class = true
			b.WriteByte(c)
		case c == '#':
			comment = true
		case c == ' ', c == '\t', c == '\n', c == '\r', c == '\f', c == '\v':
		default:
			b.WriteByte(c)
		}
	}
	return b.String()
}
