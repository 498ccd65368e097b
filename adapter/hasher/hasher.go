// Package hasher contains the default [domain.Hasher] implementation. Values
// are written to an xxhash digest using a canonical encoding in which every
// pair of query-equal values produces the same bytes: numbers with an
// integral value hash as int64 regardless of subtype.
package hasher

import (
	"encoding/binary"
	"math"

	"github.com/cespare/xxhash/v2"
	"github.com/vinicius-lino-figueiredo/docengine/domain"
	"github.com/vinicius-lino-figueiredo/docengine/pkg/value"
)

const (
	tagNull byte = iota
	tagInt
	tagFloat
	tagString
	tagDocument
	tagArray
	tagBinary
	tagObjectID
	tagFalse
	tagTrue
	tagDate
	tagRegex
	tagMinKey
	tagMaxKey
)

// Hasher implements [domain.Hasher].
type Hasher struct{}

// NewHasher returns a new implementation of [domain.Hasher].
func NewHasher() domain.Hasher {
	return &Hasher{}
}

// Hash implements [domain.Hasher].
func (h *Hasher) Hash(v value.Value) uint64 {
	d := xxhash.New()
	w := writer{d: d}
	w.value(v)
	return d.Sum64()
}

type writer struct {
	d   *xxhash.Digest
	buf [9]byte
}

func (w *writer) tagged(tag byte, n uint64) {
	w.buf[0] = tag
	binary.LittleEndian.PutUint64(w.buf[1:], n)
	_, _ = w.d.Write(w.buf[:]) // xxhash.Digest.Write never fails
}

func (w *writer) tag(tag byte) {
	_, _ = w.d.Write([]byte{tag})
}

func (w *writer) str(tag byte, s string) {
	w.tagged(tag, uint64(len(s)))
	_, _ = w.d.WriteString(s)
}

func (w *writer) value(v value.Value) {
	switch t := v.(type) {
	case nil, value.Null:
		w.tag(tagNull)
	case value.Int32, value.Int64, value.Double:
		if n, ok := value.AsInt(t); ok {
			w.tagged(tagInt, uint64(n))
			return
		}
		f, _ := value.AsFloat(t)
		if math.IsNaN(f) {
			f = math.NaN()
		}
		w.tagged(tagFloat, math.Float64bits(f))
	case value.String:
		w.str(tagString, string(t))
	case *value.Document:
		w.tagged(tagDocument, uint64(t.Len()))
		for k, item := range t.All() {
			w.str(tagString, k)
			w.value(item)
		}
	case value.Array:
		w.tagged(tagArray, uint64(len(t)))
		for _, item := range t {
			w.value(item)
		}
	case value.Binary:
		w.tagged(tagBinary, uint64(t.Subtype))
		w.tagged(tagBinary, uint64(len(t.Data)))
		_, _ = w.d.Write(t.Data)
	case value.ObjectID:
		w.tag(tagObjectID)
		_, _ = w.d.Write(t[:])
	case value.Bool:
		if t {
			w.tag(tagTrue)
		} else {
			w.tag(tagFalse)
		}
	case value.DateTime:
		w.tagged(tagDate, uint64(t))
	case value.Regex:
		w.str(tagRegex, t.Pattern)
		w.str(tagRegex, t.Options)
	case value.MinKey:
		w.tag(tagMinKey)
	case value.MaxKey:
		w.tag(tagMaxKey)
	}
}
