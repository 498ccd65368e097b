// Package idgenerator contains the default [domain.IDGenerator] implementation
// creating ObjectIDs.
package idgenerator

import (
	"crypto/rand"
	"encoding/binary"
	"io"
	"sync"
	"sync/atomic"

	"github.com/vinicius-lino-figueiredo/docengine/adapter/timegetter"
	"github.com/vinicius-lino-figueiredo/docengine/domain"
	"github.com/vinicius-lino-figueiredo/docengine/pkg/value"
)

// IDGenerator implements [domain.IDGenerator]. Every ObjectID carries the
// creation second, five random bytes chosen once per generator and a counter
// starting at a random value.
type IDGenerator struct {
	reader     io.Reader
	timeGetter domain.TimeGetter

	init    sync.Once
	initErr error
	process [5]byte
	counter atomic.Uint32
}

// NewIDGenerator implements [domain.IDGenerator].
func NewIDGenerator(opts ...Option) domain.IDGenerator {
	i := IDGenerator{
		reader:     rand.Reader,
		timeGetter: timegetter.NewTimeGetter(),
	}
	for _, opt := range opts {
		opt(&i)
	}
	return &i
}

func (i *IDGenerator) seed() error {
	i.init.Do(func() {
		var buf [8]byte
		if _, err := io.ReadFull(i.reader, buf[:]); err != nil {
			i.initErr = err
			return
		}
		copy(i.process[:], buf[:5])
		var c [4]byte
		copy(c[1:], buf[5:])
		i.counter.Store(binary.BigEndian.Uint32(c[:]))
	})
	return i.initErr
}

// GenerateID implements [domain.IDGenerator].
func (i *IDGenerator) GenerateID() (value.Value, error) {
	if err := i.seed(); err != nil {
		return nil, err
	}
	n := i.counter.Add(1)
	return value.NewObjectID(i.timeGetter.GetTime(), i.process, n), nil
}
