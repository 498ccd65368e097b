package modifier

import "github.com/vinicius-lino-figueiredo/docengine/domain"

// WithComparer sets the comparer used by $min, $max, $addToSet, $pull and
// sorted $push.
func WithComparer(c domain.Comparer) Option {
	return func(m *Modifier) {
		m.comparer = c
	}
}

// WithFieldNavigator sets the field navigator used to reach the modified
// fields.
func WithFieldNavigator(f domain.FieldNavigator) Option {
	return func(m *Modifier) {
		m.fieldNavigator = f
	}
}

// WithMatcherFactory sets the factory of the matchers used by $pull
// conditions.
func WithMatcherFactory(f domain.MatcherFactory) Option {
	return func(m *Modifier) {
		m.matcherFactory = f
	}
}

// WithTimeGetter sets the clock used by $currentDate.
func WithTimeGetter(t domain.TimeGetter) Option {
	return func(m *Modifier) {
		m.timeGetter = t
	}
}

// Option configures modifier behavior through the functional options pattern.
type Option func(*Modifier)
