package collection

import "github.com/vinicius-lino-figueiredo/docengine/domain"

// Option configures a [Collection] through the functional options pattern.
type Option func(*Collection)

// WithName sets the collection name.
func WithName(n string) Option {
	return func(c *Collection) {
		c.name.Store(&n)
	}
}

// WithRegistry sets the registry handed to aggregation pipelines so $lookup
// and $out can reach other collections.
func WithRegistry(r domain.Registry) Option {
	return func(c *Collection) {
		c.registry = r
	}
}

// WithTimestamps enables automatic timestamping of documents with createdAt and
// updatedAt fields.
func WithTimestamps(t bool) Option {
	return func(c *Collection) {
		c.timestampData = t
	}
}

// WithLogger sets the logger.
func WithLogger(l domain.Logger) Option {
	return func(c *Collection) {
		c.logger = l
	}
}

// WithMetrics sets the operation observer.
func WithMetrics(m domain.Metrics) Option {
	return func(c *Collection) {
		c.metrics = m
	}
}

// WithIDGenerator sets the generator used for documents inserted without _id.
func WithIDGenerator(ig domain.IDGenerator) Option {
	return func(c *Collection) {
		c.idGenerator = ig
	}
}

// WithTimeGetter sets the clock used by timestamps and $currentDate.
func WithTimeGetter(t domain.TimeGetter) Option {
	return func(c *Collection) {
		c.timeGetter = t
	}
}

// WithComparer sets the comparer for value comparison operations.
func WithComparer(cmp domain.Comparer) Option {
	return func(c *Collection) {
		c.comparer = cmp
	}
}

// WithHasher sets the hasher used by indexes and aggregation groups.
func WithHasher(h domain.Hasher) Option {
	return func(c *Collection) {
		c.hasher = h
	}
}

// WithFieldNavigator sets the path resolver.
func WithFieldNavigator(f domain.FieldNavigator) Option {
	return func(c *Collection) {
		c.fieldNavigator = f
	}
}

// WithMatcherFactory sets the function creating the matchers of each
// operation.
func WithMatcherFactory(m domain.MatcherFactory) Option {
	return func(c *Collection) {
		c.newMatcher = m
	}
}

// WithModifier sets the update engine.
func WithModifier(m domain.Modifier) Option {
	return func(c *Collection) {
		c.modifier = m
	}
}

// WithIndexFactory sets the function used to create indexes.
func WithIndexFactory(i domain.IndexFactory) Option {
	return func(c *Collection) {
		c.indexFactory = i
	}
}

// WithCursorFactory sets the function used to create result cursors.
func WithCursorFactory(cf domain.CursorFactory) Option {
	return func(c *Collection) {
		c.cursorFactory = cf
	}
}

// WithDecoder sets the decoder used by FindOne and cursors.
func WithDecoder(d domain.Decoder) Option {
	return func(c *Collection) {
		c.decoder = d
	}
}
