package querier

import "github.com/vinicius-lino-figueiredo/docengine/domain"

// WithMatcherFactory sets the factory of the matchers used to filter
// candidates. Each call to Query gets its own matcher.
func WithMatcherFactory(m domain.MatcherFactory) Option {
	return func(q *Querier) {
		q.newMatcher = m
	}
}

// WithComparer sets the comparer implementation for sorting operations.
func WithComparer(c domain.Comparer) Option {
	return func(q *Querier) {
		q.cmpr = c
	}
}

// WithFieldNavigator sets the field navigator for accessing document
// fields.
func WithFieldNavigator(f domain.FieldNavigator) Option {
	return func(q *Querier) {
		q.fn = f
	}
}

// WithProjector sets the implementation what will be used to project
// the resultant documents.
func WithProjector(p domain.Projector) Option {
	return func(q *Querier) {
		q.proj = p
	}
}

// Option configures querier behavior through the functional options
// pattern.
type Option func(*Querier)
