// Package uncomparable contains a map keyed by document values. Keys are
// grouped by a [domain.Hasher] and told apart by a [domain.Comparer], so keys
// that are query-equal, like Int32(1) and Double(1), are the same key even
// though Go's == disagrees.
package uncomparable

import (
	"iter"

	"github.com/vinicius-lino-figueiredo/docengine/domain"
	"github.com/vinicius-lino-figueiredo/docengine/pkg/value"
)

const loadFactor = 4

// Map represents a map[value.Value]T. Iteration follows the order in which
// keys were first set.
type Map[T any] struct {
	entries  []entry[T]
	buckets  [][]int
	hasher   domain.Hasher
	comparer domain.Comparer
	length   int
}

type entry[T any] struct {
	key   value.Value
	value T
	live  bool
}

// New returns a new instance of [Map] with the given [domain.Hasher] and
// [domain.Comparer].
func New[T any](hasher domain.Hasher, comparer domain.Comparer) *Map[T] {
	return &Map[T]{
		buckets:  make([][]int, 8),
		hasher:   hasher,
		comparer: comparer,
	}
}

func (m *Map[T]) bucket(key value.Value) int {
	return int(m.hasher.Hash(key) % uint64(len(m.buckets)))
}

func (m *Map[T]) find(key value.Value) (bucket, pos int) {
	bucket = m.bucket(key)
	for n, idx := range m.buckets[bucket] {
		if m.comparer.Equal(key, m.entries[idx].key) {
			return bucket, n
		}
	}
	return bucket, -1
}

// Get returns the value for the given key with a bool to indicate whether it
// exists in the map or not.
func (m *Map[T]) Get(key value.Value) (T, bool) {
	b, n := m.find(key)
	if n < 0 {
		return *new(T), false
	}
	return m.entries[m.buckets[b][n]].value, true
}

// Set adds or replaces the given key. A replaced key keeps its position and
// its first stored form.
func (m *Map[T]) Set(key value.Value, v T) {
	b, n := m.find(key)
	if n >= 0 {
		m.entries[m.buckets[b][n]].value = v
		return
	}
	m.entries = append(m.entries, entry[T]{key: key, value: v, live: true})
	m.buckets[b] = append(m.buckets[b], len(m.entries)-1)
	m.length++
	if m.length > len(m.buckets)*loadFactor {
		m.rehash(len(m.buckets) * 2)
	}
}

// Delete removes a given key from the map, if it exists.
func (m *Map[T]) Delete(key value.Value) {
	b, n := m.find(key)
	if n < 0 {
		return
	}
	idx := m.buckets[b][n]
	m.entries[idx] = entry[T]{}
	bucket := m.buckets[b]
	m.buckets[b] = append(bucket[:n], bucket[n+1:]...)
	m.length--
	if len(m.entries) > 2*m.length+8 {
		m.rehash(len(m.buckets))
	}
}

// rehash compacts the removed entries and redistributes keys over size
// buckets.
func (m *Map[T]) rehash(size int) {
	live := make([]entry[T], 0, m.length)
	for _, e := range m.entries {
		if e.live {
			live = append(live, e)
		}
	}
	m.entries = live
	m.buckets = make([][]int, size)
	for idx, e := range m.entries {
		b := m.bucket(e.key)
		m.buckets[b] = append(m.buckets[b], idx)
	}
}

// Len returns the amount of stored values.
func (m *Map[T]) Len() int {
	return m.length
}

// Keys returns an [iter.Seq] containing all the stored keys.
func (m *Map[T]) Keys() iter.Seq[value.Value] {
	return func(yield func(value.Value) bool) {
		for k := range m.Iter() {
			if !yield(k) {
				return
			}
		}
	}
}

// Values returns an [iter.Seq] containing all the stored values.
func (m *Map[T]) Values() iter.Seq[T] {
	return func(yield func(T) bool) {
		for _, v := range m.Iter() {
			if !yield(v) {
				return
			}
		}
	}
}

// Iter returns an [iter.Seq2] containing all the key+value pairs.
func (m *Map[T]) Iter() iter.Seq2[value.Value, T] {
	return func(yield func(value.Value, T) bool) {
		for _, e := range m.entries {
			if e.live && !yield(e.key, e.value) {
				return
			}
		}
	}
}
