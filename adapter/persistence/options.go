package persistence

import (
	"github.com/vinicius-lino-figueiredo/docengine/domain"
)

// WithCorruptAlertThreshold sets the share of unreadable records above which
// reading a dump fails.
func WithCorruptAlertThreshold(c float64) Option {
	return func(p *Persistence) {
		p.corruptAlertThreshold = c
	}
}

// WithMaxLineSize sets the size of the longest line Read accepts.
func WithMaxLineSize(n int) Option {
	return func(p *Persistence) {
		p.maxLineSize = n
	}
}

// WithComparer sets the comparer used to tell _id values apart.
func WithComparer(c domain.Comparer) Option {
	return func(p *Persistence) {
		p.comparer = c
	}
}

// WithHasher sets the hasher used to group _id values.
func WithHasher(h domain.Hasher) Option {
	return func(p *Persistence) {
		p.hasher = h
	}
}

// WithLogger sets the logger.
func WithLogger(l domain.Logger) Option {
	return func(p *Persistence) {
		p.logger = l
	}
}

// Option configures a [Persistence].
type Option func(*Persistence)
