package aggregation

import "github.com/vinicius-lino-figueiredo/docengine/domain"

// WithRegistry sets the registry used by $lookup and $out to reach other
// collections.
func WithRegistry(r domain.Registry) Option {
	return func(p *Pipeline) {
		p.registry = r
	}
}

// WithLogger sets the logger used to report documents skipped by stages.
func WithLogger(l domain.Logger) Option {
	return func(p *Pipeline) {
		p.logger = l
	}
}

// WithComparer sets the comparer used to sort, group and compare values.
func WithComparer(c domain.Comparer) Option {
	return func(p *Pipeline) {
		p.comparer = c
	}
}

// WithHasher sets the hasher used to group values.
func WithHasher(h domain.Hasher) Option {
	return func(p *Pipeline) {
		p.hasher = h
	}
}

// WithFieldNavigator sets the field navigator used to read and write paths.
func WithFieldNavigator(f domain.FieldNavigator) Option {
	return func(p *Pipeline) {
		p.fieldNavigator = f
	}
}

// WithMatcherFactory sets the factory of the matchers used by $match.
func WithMatcherFactory(m domain.MatcherFactory) Option {
	return func(p *Pipeline) {
		p.newMatcher = m
	}
}

// WithRandom sets the function $sample uses to pick a position in [0, n).
func WithRandom(intN func(n int) int) Option {
	return func(p *Pipeline) {
		p.intN = intN
	}
}

// Option configures a pipeline through the functional options pattern.
type Option func(*Pipeline)
