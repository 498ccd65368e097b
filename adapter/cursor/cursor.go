// Package cursor contains the default [domain.Cursor] implementation.
package cursor

import (
	"context"

	"github.com/vinicius-lino-figueiredo/docengine/adapter/decoder"
	"github.com/vinicius-lino-figueiredo/docengine/domain"
	"github.com/vinicius-lino-figueiredo/docengine/pkg/value"
)

// Cursor implements domain.Cursor over materialized results.
type Cursor struct {
	data   []*value.Document
	ctx    context.Context
	cancel context.CancelCauseFunc
	dec    domain.Decoder
	index  int64
}

// NewCursor returns a new implementation of Cursor.
func NewCursor(ctx context.Context, dt []*value.Document, options ...domain.CursorOption) (domain.Cursor, error) {
	select {
	case <-ctx.Done():
		return nil, ctx.Err()
	default:
	}

	opts := domain.CursorOptions{
		Decoder: decoder.NewDecoder(),
	}

	for _, option := range options {
		option(&opts)
	}

	ctx, cancel := context.WithCancelCause(ctx)
	cur := &Cursor{
		ctx:    ctx,
		cancel: cancel,
		index:  -1,
		dec:    opts.Decoder,
		data:   dt,
	}

	return cur, nil
}

// Err implements domain.Cursor.
func (c *Cursor) Err() error {
	return context.Cause(c.ctx)
}

// Document implements domain.Cursor.
func (c *Cursor) Document() *value.Document {
	if c.index < 0 || c.index >= int64(len(c.data)) {
		return nil
	}
	return c.data[c.index]
}

// Scan implements domain.Cursor.
func (c *Cursor) Scan(ctx context.Context, target any) error {
	select {
	case <-c.ctx.Done():
		return context.Cause(c.ctx)
	case <-ctx.Done():
		return ctx.Err()
	default:
	}
	if c.index < 0 {
		return domain.ErrScanBeforeNext
	}
	return c.dec.Decode(c.data[c.index], target)
}

// All implements domain.Cursor. It returns the documents not yet visited by
// Next and exhausts the cursor.
func (c *Cursor) All(ctx context.Context) ([]*value.Document, error) {
	select {
	case <-c.ctx.Done():
		return nil, context.Cause(c.ctx)
	case <-ctx.Done():
		return nil, ctx.Err()
	default:
	}
	res := c.data[c.index+1:]
	c.index = int64(len(c.data)) - 1
	return res, nil
}

// Close implements domain.Cursor.
func (c *Cursor) Close() error {
	select {
	case <-c.ctx.Done():
		return context.Cause(c.ctx)
	default:
	}
	c.cancel(domain.ErrCursorClosed)
	c.data = nil
	return nil
}

// Next implements domain.Cursor.
func (c *Cursor) Next() bool {
	select {
	case <-c.ctx.Done():
		return false
	default:
	}
	if c.index+1 < int64(len(c.data)) {
		c.index++
		return true
	}
	return false
}
