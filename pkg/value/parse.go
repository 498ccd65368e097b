package value

import (
	"encoding/base64"
	"encoding/hex"
	"errors"
	"fmt"
	"io"
	"math"
	"strconv"
	"time"
	"unicode"
	"unicode/utf16"
	"unicode/utf8"

	"github.com/tailscale/hujson"
)

var (
	// ErrTrailingData is returned when there are unskippable bytes after
	// the value ends.
	ErrTrailingData = errors.New("trailing data after JSON")
	// ErrInvalidUTF8Char is returned when the parser finds an incomplete or
	// invalid UTF-8 character.
	ErrInvalidUTF8Char = errors.New("invalid utf8 char")
	// ErrExpectedString is returned when an object is started, but no
	// string is found for the key.
	ErrExpectedString = errors.New("expected string")
	// ErrUnterminatedString is returned when a string starts but is not
	// terminated before end of input.
	ErrUnterminatedString = errors.New("unterminated string")
	// ErrNoComma is returned when there is no comma between items of an
	// object or array.
	ErrNoComma = errors.New("expected comma")
	// ErrNoColon is returned when there is no colon after an object key.
	ErrNoColon = errors.New("expected colon")
	// ErrInvalidNumber is returned when a literal could not be read as a
	// number.
	ErrInvalidNumber = errors.New("invalid JSON number")
	// ErrNotDocument is returned by [ParseDocument] when the text holds a
	// value other than an object.
	ErrNotDocument = errors.New("value is not a document")
)

// ErrInvalidLiteral when a known token (true, false or null) starts but is not
// correctly finished.
type ErrInvalidLiteral struct {
	Value string
}

// Error implements [error].
func (e ErrInvalidLiteral) Error() string {
	return fmt.Sprintf("invalid literal %q", e.Value)
}

// ErrUnknownEscapeChar is returned when the escape character (\) does not
// precede a valid escapable char.
type ErrUnknownEscapeChar struct {
	Char byte
}

// Error implements [error].
func (e ErrUnknownEscapeChar) Error() string {
	return fmt.Sprintf("unknown escape char, %q", e.Char)
}

// ErrInvalidControlChar indicates an unescaped control character in a string.
type ErrInvalidControlChar struct {
	Char byte
}

// Error implements [error].
func (e ErrInvalidControlChar) Error() string {
	return fmt.Sprintf("invalid control char, %q", e.Char)
}

// ErrExtendedJSON is returned when a $-wrapper such as $oid or $date holds an
// argument of the wrong shape.
type ErrExtendedJSON struct {
	Wrapper string
	Reason  string
}

// Error implements [error].
func (e ErrExtendedJSON) Error() string {
	return fmt.Sprintf("invalid %s: %s", e.Wrapper, e.Reason)
}

// Parse reads a single value from its canonical text form, a superset of JSON
// that also accepts comments, trailing commas and the extended wrappers
// written by [Format].
func Parse(text []byte) (Value, error) {
	std, err := hujson.Standardize(text)
	if err != nil {
		return nil, err
	}
	p := parser{data: std, n: len(std)}
	return p.parse()
}

// ParseDocument is like [Parse] but requires the value to be a document.
func ParseDocument(text []byte) (*Document, error) {
	v, err := Parse(text)
	if err != nil {
		return nil, err
	}
	d, ok := v.(*Document)
	if !ok {
		return nil, fmt.Errorf("%w: got %s", ErrNotDocument, KindOf(v))
	}
	return d, nil
}

// MustParse is like [ParseDocument] but panics on error. It is meant for
// literals in code and tests.
func MustParse(text string) *Document {
	d, err := ParseDocument([]byte(text))
	if err != nil {
		panic(err)
	}
	return d
}

type parser struct {
	data []byte
	i    int
	n    int
}

func (p *parser) parse() (Value, error) {
	p.skip()
	val, err := p.value()
	if err != nil {
		return nil, err
	}
	p.skip()
	if p.i != p.n {
		return nil, ErrTrailingData
	}
	return val, nil
}

func (p *parser) skip() {
	for p.i < p.n {
		switch p.data[p.i] {
		case ' ', '\t', '\n', '\r':
			p.i++
		default:
			return
		}
	}
}

func (p *parser) value() (Value, error) {
	if p.i >= p.n {
		return nil, io.ErrUnexpectedEOF
	}
	switch p.data[p.i] {
	case '{':
		return p.obj()
	case '[':
		return p.arr()
	case '"':
		s, err := p.str()
		return String(s), err
	case 't':
		return p.expect("true", Bool(true))
	case 'f':
		return p.expect("false", Bool(false))
	case 'n':
		return p.expect("null", Null{})
	default:
		return p.num()
	}
}

func (p *parser) obj() (Value, error) {
	p.i++ // skip '{'
	p.skip()
	d := NewDocument()
	if p.i < p.n && p.data[p.i] == '}' {
		p.i++
		return d, nil
	}
	for {
		p.skip()
		if p.i >= p.n {
			return nil, io.ErrUnexpectedEOF
		}
		key, err := p.str()
		if err != nil {
			return nil, err
		}
		p.skip()
		if p.i >= p.n || p.data[p.i] != ':' {
			return nil, ErrNoColon
		}
		p.i++
		p.skip()
		val, err := p.value()
		if err != nil {
			return nil, err
		}
		d.Set(key, val)
		p.skip()
		if p.i >= p.n {
			return nil, io.ErrUnexpectedEOF
		}
		if p.data[p.i] == '}' {
			p.i++
			break
		}
		if p.data[p.i] != ',' {
			return nil, ErrNoComma
		}
		p.i++
	}
	return unwrapExtended(d)
}

func (p *parser) arr() (Value, error) {
	p.i++ // skip '['
	p.skip()
	out := Array{}
	if p.i < p.n && p.data[p.i] == ']' {
		p.i++
		return out, nil
	}
	for {
		val, err := p.value()
		if err != nil {
			return nil, err
		}
		out = append(out, val)
		p.skip()
		if p.i >= p.n {
			return nil, io.ErrUnexpectedEOF
		}
		if p.data[p.i] == ']' {
			p.i++
			break
		}
		if p.data[p.i] != ',' {
			return nil, ErrNoComma
		}
		p.i++
		p.skip()
	}
	return out, nil
}

func (p *parser) str() (string, error) {
	if p.data[p.i] != '"' {
		return "", ErrExpectedString
	}
	for i := p.i + 1; i < p.n; i++ {
		switch p.data[i] {
		case '\\':
			i++
		case '"':
			s, err := p.decodeString(p.data[p.i+1 : i])
			if err != nil {
				return "", err
			}
			p.i = i + 1
			return s, nil
		}
	}
	return "", ErrUnterminatedString
}

func (p *parser) decodeString(b []byte) (string, error) {
	out := make([]byte, len(b)+2*utf8.UTFMax)

	i := 0 // current byte
	w := 0 // written

	for i < len(b) {
		if w >= len(out)-2*utf8.UTFMax {
			nb := make([]byte, (len(out)+utf8.UTFMax)*2)
			copy(nb, out[0:w])
			out = nb
		}
		switch c := b[i]; {
		case c == '\\':
			i++
			switch b[i] {
			case '"', '\\', '/', '\'':
				out[w] = b[i]
			case 'b':
				out[w] = '\b'
			case 'f':
				out[w] = '\f'
			case 'n':
				out[w] = '\n'
			case 'r':
				out[w] = '\r'
			case 't':
				out[w] = '\t'
			case 'u':
				si, sw, err := p.slashU(b[i-1:], out[w:])
				if err != nil {
					return "", err
				}
				i += si - 1
				w += sw
				continue
			default:
				return "", ErrUnknownEscapeChar{Char: b[i]}
			}
			i++
			w++

		case c < ' ':
			return "", ErrInvalidControlChar{Char: c}

		case c < utf8.RuneSelf:
			out[w] = c
			i++
			w++

		default:
			rr, size := utf8.DecodeRune(b[i:])
			if rr == utf8.RuneError && size == 1 {
				return "", ErrInvalidUTF8Char
			}
			i += size
			w += utf8.EncodeRune(out[w:], rr)
		}
	}
	return string(out[0:w]), nil
}

// slashU decodes a \uXXXX escape, pairing surrogates when possible. It
// returns how many bytes were read and written.
func (p *parser) slashU(b []byte, out []byte) (int, int, error) {
	rr := p.getUTF(b)
	if rr < 0 {
		return 0, 0, ErrInvalidUTF8Char
	}
	if utf16.IsSurrogate(rr) {
		rr1 := p.getUTF(b[6:])
		if dec := utf16.DecodeRune(rr, rr1); dec != unicode.ReplacementChar {
			return 12, utf8.EncodeRune(out, dec), nil
		}
		rr = unicode.ReplacementChar
	}
	return 6, utf8.EncodeRune(out, rr), nil
}

func (p *parser) getUTF(b []byte) rune {
	if len(b) < 6 || b[0] != '\\' || b[1] != 'u' {
		return -1
	}
	r, err := strconv.ParseInt(string(b[2:6]), 16, 64)
	if err != nil {
		return -1
	}
	return rune(r)
}

func (p *parser) num() (Value, error) {
	start := p.i
	integral := true
	for p.i < p.n {
		c := p.data[p.i]
		if (c >= '0' && c <= '9') || c == '-' || c == '+' {
			p.i++
		} else if c == '.' || c == 'e' || c == 'E' {
			integral = false
			p.i++
		} else {
			break
		}
	}
	s := string(p.data[start:p.i])
	if s == "" {
		return nil, ErrInvalidLiteral{Value: string(p.data[p.i:min(p.i+8, p.n)])}
	}
	if integral {
		if n, err := strconv.ParseInt(s, 10, 64); err == nil {
			if n >= math.MinInt32 && n <= math.MaxInt32 {
				return Int32(n), nil
			}
			return Int64(n), nil
		}
	}
	f, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrInvalidNumber, err)
	}
	return Double(f), nil
}

func (p *parser) expect(lit string, val Value) (Value, error) {
	end := p.i + len(lit)
	if end > p.n || string(p.data[p.i:end]) != lit {
		return nil, ErrInvalidLiteral{Value: string(p.data[p.i:min(p.n, end)])}
	}
	p.i = end
	return val, nil
}

// unwrapExtended turns single-key wrapper documents into the typed value they
// describe. Any other document is returned as is.
func unwrapExtended(d *Document) (Value, error) {
	if d.Len() != 1 {
		return d, nil
	}
	f := d.fields[0]
	switch f.Key {
	case "$oid":
		s, ok := f.Value.(String)
		if !ok {
			return nil, ErrExtendedJSON{Wrapper: f.Key, Reason: "expected string"}
		}
		id, err := ObjectIDFromHex(string(s))
		if err != nil {
			return nil, fmt.Errorf("%w: %w", ErrExtendedJSON{Wrapper: f.Key, Reason: "bad hex"}, err)
		}
		return id, nil
	case "$date":
		return unwrapDate(f.Value)
	case "$numberInt":
		s, ok := f.Value.(String)
		if !ok {
			return nil, ErrExtendedJSON{Wrapper: f.Key, Reason: "expected string"}
		}
		n, err := strconv.ParseInt(string(s), 10, 32)
		if err != nil {
			return nil, fmt.Errorf("%w: %w", ErrExtendedJSON{Wrapper: f.Key, Reason: "bad number"}, err)
		}
		return Int32(n), nil
	case "$numberLong":
		s, ok := f.Value.(String)
		if !ok {
			return nil, ErrExtendedJSON{Wrapper: f.Key, Reason: "expected string"}
		}
		n, err := strconv.ParseInt(string(s), 10, 64)
		if err != nil {
			return nil, fmt.Errorf("%w: %w", ErrExtendedJSON{Wrapper: f.Key, Reason: "bad number"}, err)
		}
		return Int64(n), nil
	case "$numberDouble":
		s, ok := f.Value.(String)
		if !ok {
			return nil, ErrExtendedJSON{Wrapper: f.Key, Reason: "expected string"}
		}
		n, err := strconv.ParseFloat(string(s), 64)
		if err != nil {
			return nil, fmt.Errorf("%w: %w", ErrExtendedJSON{Wrapper: f.Key, Reason: "bad number"}, err)
		}
		return Double(n), nil
	case "$regularExpression":
		sub, ok := f.Value.(*Document)
		if !ok {
			return nil, ErrExtendedJSON{Wrapper: f.Key, Reason: "expected document"}
		}
		pattern, _ := sub.Get("pattern")
		options, _ := sub.Get("options")
		pat, ok1 := pattern.(String)
		opts, ok2 := options.(String)
		if !ok1 || (options != nil && !ok2) {
			return nil, ErrExtendedJSON{Wrapper: f.Key, Reason: "pattern and options must be strings"}
		}
		return Regex{Pattern: string(pat), Options: string(opts)}, nil
	case "$binary":
		return unwrapBinary(f.Value)
	case "$minKey":
		return MinKey{}, nil
	case "$maxKey":
		return MaxKey{}, nil
	}
	return d, nil
}

func unwrapDate(v Value) (Value, error) {
	switch t := v.(type) {
	case Int32:
		return DateTime(t), nil
	case Int64:
		return DateTime(t), nil
	case Double:
		return DateTime(int64(t)), nil
	case String:
		tm, err := time.Parse(time.RFC3339Nano, string(t))
		if err != nil {
			return nil, fmt.Errorf("%w: %w", ErrExtendedJSON{Wrapper: "$date", Reason: "bad timestamp"}, err)
		}
		return DateTimeOf(tm), nil
	}
	return nil, ErrExtendedJSON{Wrapper: "$date", Reason: "expected number or string"}
}

func unwrapBinary(v Value) (Value, error) {
	sub, ok := v.(*Document)
	if !ok {
		return nil, ErrExtendedJSON{Wrapper: "$binary", Reason: "expected document"}
	}
	b64, _ := sub.Get("base64")
	st, _ := sub.Get("subType")
	bs, ok1 := b64.(String)
	ss, ok2 := st.(String)
	if !ok1 || !ok2 {
		return nil, ErrExtendedJSON{Wrapper: "$binary", Reason: "base64 and subType must be strings"}
	}
	data, err := base64.StdEncoding.DecodeString(string(bs))
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrExtendedJSON{Wrapper: "$binary", Reason: "bad base64"}, err)
	}
	if len(ss) == 1 {
		ss = "0" + ss
	}
	subType, err := hex.DecodeString(string(ss))
	if err != nil || len(subType) != 1 {
		return nil, ErrExtendedJSON{Wrapper: "$binary", Reason: "bad subType"}
	}
	return Binary{Subtype: subType[0], Data: data}, nil
}
