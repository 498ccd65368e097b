package value

import (
	"encoding/base64"
	"fmt"
	"math"
	"strconv"
	"strings"
	"unicode/utf8"
)

// Format writes v in its canonical text form. The output can be read back by
// [Parse] into an identical value.
func Format(v Value) string {
	var b strings.Builder
	appendValue(&b, v, "", "")
	return b.String()
}

// FormatIndent is like [Format] but places every field and array item on its
// own line, prefixed by indent repeated per nesting level.
func FormatIndent(v Value, indent string) string {
	var b strings.Builder
	appendValue(&b, v, "\n", indent)
	return b.String()
}

func appendValue(b *strings.Builder, v Value, nl, indent string) {
	switch t := v.(type) {
	case nil, Null:
		b.WriteString("null")
	case Bool:
		b.WriteString(strconv.FormatBool(bool(t)))
	case Int32:
		b.WriteString(strconv.FormatInt(int64(t), 10))
	case Int64:
		fmt.Fprintf(b, `{"$numberLong": "%d"}`, int64(t))
	case Double:
		appendDouble(b, float64(t))
	case String:
		appendString(b, string(t))
	case Binary:
		fmt.Fprintf(b, `{"$binary": {"base64": "%s", "subType": "%02x"}}`, base64.StdEncoding.EncodeToString(t.Data), t.Subtype)
	case ObjectID:
		fmt.Fprintf(b, `{"$oid": "%s"}`, t.Hex())
	case DateTime:
		fmt.Fprintf(b, `{"$date": {"$numberLong": "%d"}}`, int64(t))
	case Regex:
		b.WriteString(`{"$regularExpression": {"pattern": `)
		appendString(b, t.Pattern)
		b.WriteString(`, "options": `)
		appendString(b, t.Options)
		b.WriteString("}}")
	case MinKey:
		b.WriteString(`{"$minKey": 1}`)
	case MaxKey:
		b.WriteString(`{"$maxKey": 1}`)
	case Array:
		if len(t) == 0 {
			b.WriteString("[]")
			return
		}
		b.WriteByte('[')
		inner := nl + indent
		for n, item := range t {
			if n > 0 {
				b.WriteByte(',')
				if nl == "" {
					b.WriteByte(' ')
				}
			}
			b.WriteString(inner)
			appendValue(b, item, inner, indent)
		}
		b.WriteString(nl)
		b.WriteByte(']')
	case *Document:
		if t.Len() == 0 {
			b.WriteString("{}")
			return
		}
		b.WriteByte('{')
		inner := nl + indent
		for n, f := range t.fields {
			if n > 0 {
				b.WriteByte(',')
				if nl == "" {
					b.WriteByte(' ')
				}
			}
			b.WriteString(inner)
			appendString(b, f.Key)
			b.WriteString(": ")
			appendValue(b, f.Value, inner, indent)
		}
		b.WriteString(nl)
		b.WriteByte('}')
	}
}

func appendDouble(b *strings.Builder, f float64) {
	switch {
	case math.IsNaN(f):
		b.WriteString(`{"$numberDouble": "NaN"}`)
		return
	case math.IsInf(f, 1):
		b.WriteString(`{"$numberDouble": "Infinity"}`)
		return
	case math.IsInf(f, -1):
		b.WriteString(`{"$numberDouble": "-Infinity"}`)
		return
	}
	s := strconv.FormatFloat(f, 'g', -1, 64)
	b.WriteString(s)
	if !strings.ContainsAny(s, ".e") {
		b.WriteString(".0")
	}
}

const hexDigits = "0123456789abcdef"

func appendString(b *strings.Builder, s string) {
	b.WriteByte('"')
	for i := 0; i < len(s); {
		c := s[i]
		if c < utf8.RuneSelf {
			switch {
			case c == '"' || c == '\\':
				b.WriteByte('\\')
				b.WriteByte(c)
			case c == '\n':
				b.WriteString(`\n`)
			case c == '\r':
				b.WriteString(`\r`)
			case c == '\t':
				b.WriteString(`\t`)
			case c < ' ':
				b.WriteString(`\u00`)
				b.WriteByte(hexDigits[c>>4])
				b.WriteByte(hexDigits[c&0xf])
			default:
				b.WriteByte(c)
			}
			i++
			continue
		}
		r, size := utf8.DecodeRuneInString(s[i:])
		if r == utf8.RuneError && size == 1 {
			b.WriteString(`\ufffd`)
		} else {
			b.WriteString(s[i : i+size])
		}
		i += size
	}
	b.WriteByte('"')
}
