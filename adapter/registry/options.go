package registry

import (
	"github.com/vinicius-lino-figueiredo/docengine/adapter/collection"
	"github.com/vinicius-lino-figueiredo/docengine/domain"
)

// Option configures a [Registry] through the functional options pattern.
type Option func(*Registry)

// WithLogger sets the logger of the registry and of the collections it
// creates.
func WithLogger(l domain.Logger) Option {
	return func(r *Registry) {
		r.logger = l
	}
}

// WithCollectionOptions sets options applied to every collection the registry
// creates. Name and registry are always set by the registry.
func WithCollectionOptions(opts ...collection.Option) Option {
	return func(r *Registry) {
		r.collectionOptions = append(r.collectionOptions, opts...)
	}
}
