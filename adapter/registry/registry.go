// Package registry contains the default [domain.Registry] implementation.
package registry

import (
	"context"
	"slices"
	"strings"

	"github.com/puzpuzpuz/xsync/v3"
	"github.com/vinicius-lino-figueiredo/docengine/adapter/collection"
	"github.com/vinicius-lino-figueiredo/docengine/adapter/logger"
	"github.com/vinicius-lino-figueiredo/docengine/domain"
	"github.com/vinicius-lino-figueiredo/docengine/pkg/ctxsync"
)

// Registry implements [domain.Registry]. Every collection it creates gets the
// registry itself, so pipelines can reach sibling collections.
type Registry struct {
	collections *xsync.MapOf[string, *collection.Collection]
	// renames serializes renames so two of them never lock the same pair
	// of collections in opposite orders.
	renames           *ctxsync.Mutex
	logger            domain.Logger
	collectionOptions []collection.Option
}

// NewRegistry returns a new empty implementation of [domain.Registry].
func NewRegistry(options ...Option) domain.Registry {
	r := &Registry{
		collections: xsync.NewMapOf[string, *collection.Collection](),
		renames:     ctxsync.NewMutex(),
	}
	for _, option := range options {
		option(r)
	}
	if r.logger == nil {
		r.logger = logger.NewDiscardLogger()
	}
	return r
}

// GetOrCreateCollection implements [domain.Registry].
func (r *Registry) GetOrCreateCollection(ctx context.Context, name string) (domain.Collection, error) {
	select {
	case <-ctx.Done():
		return nil, ctx.Err()
	default:
	}
	if c, ok := r.collections.Load(name); ok {
		return c, nil
	}
	if err := checkName(name); err != nil {
		return nil, err
	}

	var createErr error
	c, _ := r.collections.Compute(name, func(old *collection.Collection, loaded bool) (*collection.Collection, bool) {
		if loaded {
			return old, false
		}
		opts := append([]collection.Option{collection.WithLogger(r.logger)}, r.collectionOptions...)
		opts = append(opts, collection.WithName(name), collection.WithRegistry(r))
		created, err := collection.NewCollection(opts...)
		if err != nil {
			createErr = err
			return nil, true
		}
		r.logger.Debug("collection created", "collection", name)
		return created, false
	})
	if createErr != nil {
		return nil, createErr
	}
	return c, nil
}

// Collection implements [domain.Registry].
func (r *Registry) Collection(name string) (domain.Collection, bool) {
	c, ok := r.collections.Load(name)
	if !ok {
		return nil, false
	}
	return c, true
}

// DropCollection implements [domain.Registry]. Operations already running on
// the collection finish first.
func (r *Registry) DropCollection(ctx context.Context, name string) error {
	c, ok := r.collections.Load(name)
	if !ok {
		return domain.ErrCollectionNotFound
	}
	if err := c.Lock(ctx); err != nil {
		return err
	}
	defer c.Unlock()

	dropped := false
	r.collections.Compute(name, func(old *collection.Collection, loaded bool) (*collection.Collection, bool) {
		dropped = loaded && old == c
		return old, dropped || !loaded
	})
	if !dropped {
		return domain.ErrCollectionNotFound
	}
	r.logger.Info("collection dropped", "collection", name)
	return nil
}

// RenameCollection implements [domain.Registry]. With dropTarget an existing
// collection named to is dropped, otherwise it makes the rename fail with
// [domain.ErrCollectionExists]. Renaming a collection to its own name does
// nothing.
func (r *Registry) RenameCollection(ctx context.Context, from, to string, dropTarget bool) error {
	if err := checkName(to); err != nil {
		return err
	}
	if err := r.renames.LockWithContext(ctx); err != nil {
		return err
	}
	defer r.renames.Unlock()

	src, ok := r.collections.Load(from)
	if !ok {
		return domain.ErrCollectionNotFound
	}
	if from == to {
		return nil
	}
	target, hasTarget := r.collections.Load(to)
	if hasTarget && !dropTarget {
		return domain.ErrCollectionExists
	}

	locked := []*collection.Collection{src}
	if hasTarget {
		locked = append(locked, target)
	}
	// Lexicographic order of the current names.
	slices.SortFunc(locked, func(a, b *collection.Collection) int {
		return strings.Compare(a.Name(), b.Name())
	})
	for n, c := range locked {
		if err := c.Lock(ctx); err != nil {
			for _, prev := range locked[:n] {
				prev.Unlock()
			}
			return err
		}
	}
	defer func() {
		for _, c := range locked {
			c.Unlock()
		}
	}()

	conflict := false
	r.collections.Compute(to, func(old *collection.Collection, loaded bool) (*collection.Collection, bool) {
		if loaded && old != target {
			conflict = true
			return old, false
		}
		return src, false
	})
	if conflict {
		return domain.ErrCollectionExists
	}
	r.collections.Delete(from)
	src.SetName(to)

	r.logger.Info("collection renamed", "from", from, "to", to, "droppedTarget", hasTarget)
	return nil
}

// CollectionNames implements [domain.Registry]. Names are sorted.
func (r *Registry) CollectionNames() []string {
	names := make([]string, 0, r.collections.Size())
	r.collections.Range(func(name string, _ *collection.Collection) bool {
		names = append(names, name)
		return true
	})
	slices.Sort(names)
	return names
}

func checkName(name string) error {
	if name == "" {
		return domain.ErrInvalidFieldName{Field: name, Reason: "collection names cannot be empty"}
	}
	if strings.Contains(name, "$") {
		return domain.ErrInvalidFieldName{Field: name, Reason: "collection names cannot contain '$'"}
	}
	return nil
}
