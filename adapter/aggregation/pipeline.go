// Package aggregation contains the default [domain.Pipeline] implementation.
package aggregation

import (
	"context"
	"errors"
	"fmt"
	"math/rand/v2"

	"github.com/vinicius-lino-figueiredo/docengine/adapter/comparer"
	"github.com/vinicius-lino-figueiredo/docengine/adapter/fieldnavigator"
	"github.com/vinicius-lino-figueiredo/docengine/adapter/hasher"
	"github.com/vinicius-lino-figueiredo/docengine/adapter/logger"
	"github.com/vinicius-lino-figueiredo/docengine/adapter/matcher"
	"github.com/vinicius-lino-figueiredo/docengine/adapter/projector"
	"github.com/vinicius-lino-figueiredo/docengine/adapter/querier"
	"github.com/vinicius-lino-figueiredo/docengine/domain"
	"github.com/vinicius-lino-figueiredo/docengine/pkg/value"
)

// ErrRegistryRequired is returned when a stage that reaches other
// collections is used without a registry.
var ErrRegistryRequired = errors.New("stage requires a collection registry")

type stage interface {
	run(ctx context.Context, docs []*value.Document) ([]*value.Document, error)
}

type namedStage struct {
	name string
	stage
}

var stageParsers = map[string]func(p *Pipeline, arg value.Value) (stage, error){
	"$match":       (*Pipeline).parseMatch,
	"$project":     (*Pipeline).parseProject,
	"$addFields":   (*Pipeline).parseAddFields,
	"$set":         (*Pipeline).parseAddFields,
	"$unset":       (*Pipeline).parseUnset,
	"$group":       (*Pipeline).parseGroup,
	"$sort":        (*Pipeline).parseSort,
	"$skip":        (*Pipeline).parseSkip,
	"$limit":       (*Pipeline).parseLimit,
	"$unwind":      (*Pipeline).parseUnwind,
	"$lookup":      (*Pipeline).parseLookup,
	"$sample":      (*Pipeline).parseSample,
	"$out":         (*Pipeline).parseOut,
	"$count":       (*Pipeline).parseCount,
	"$replaceRoot": (*Pipeline).parseReplaceRoot,
	"$replaceWith": (*Pipeline).parseReplaceWith,
}

// Pipeline implements [domain.Pipeline]. Stages are parsed once by
// [NewPipeline] and run in order over materialized documents.
type Pipeline struct {
	stages         []namedStage
	registry       domain.Registry
	logger         domain.Logger
	comparer       domain.Comparer
	hasher         domain.Hasher
	fieldNavigator domain.FieldNavigator
	newMatcher     domain.MatcherFactory
	projector      domain.Projector
	querier        domain.Querier
	compiler       *compiler
	intN           func(n int) int
}

// NewPipeline parses stages into a new implementation of [domain.Pipeline].
func NewPipeline(stages value.Array, options ...Option) (domain.Pipeline, error) {
	p := &Pipeline{
		comparer:       comparer.NewComparer(),
		hasher:         hasher.NewHasher(),
		fieldNavigator: fieldnavigator.NewFieldNavigator(),
		intN:           rand.IntN,
	}
	for _, option := range options {
		option(p)
	}
	if p.logger == nil {
		p.logger = logger.NewDiscardLogger()
	}
	if p.newMatcher == nil {
		p.newMatcher = func() domain.Matcher {
			return matcher.NewMatcher(
				matcher.WithComparer(p.comparer),
				matcher.WithFieldNavigator(p.fieldNavigator),
			)
		}
	}
	p.projector = projector.NewProjector(projector.WithFieldNavigator(p.fieldNavigator))
	p.querier = querier.NewQuerier(
		querier.WithComparer(p.comparer),
		querier.WithFieldNavigator(p.fieldNavigator),
		querier.WithMatcherFactory(p.newMatcher),
		querier.WithProjector(p.projector),
	)
	p.compiler = &compiler{fn: p.fieldNavigator, comparer: p.comparer}

	p.stages = make([]namedStage, 0, len(stages))
	for n, raw := range stages {
		spec, ok := raw.(*value.Document)
		if !ok || spec.Len() != 1 {
			return nil, domain.ErrInvalidOperator{Operator: fmt.Sprint(n), Reason: "a pipeline stage must be a document with a single field"}
		}
		f := spec.Fields()[0]
		parse, ok := stageParsers[f.Key]
		if !ok {
			return nil, domain.ErrInvalidOperator{Operator: f.Key}
		}
		if f.Key == "$out" && n != len(stages)-1 {
			return nil, domain.ErrInvalidOperator{Operator: f.Key, Reason: "must be the last stage of the pipeline"}
		}
		s, err := parse(p, f.Value)
		if err != nil {
			return nil, fmt.Errorf("parsing stage %s: %w", f.Key, err)
		}
		p.stages = append(p.stages, namedStage{name: f.Key, stage: s})
	}
	return p, nil
}

// Run implements [domain.Pipeline]. input is not changed.
func (p *Pipeline) Run(ctx context.Context, input []*value.Document) ([]*value.Document, error) {
	docs := input
	for _, s := range p.stages {
		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		default:
		}
		var err error
		docs, err = s.run(ctx, docs)
		if err != nil {
			return nil, fmt.Errorf("running stage %s: %w", s.name, err)
		}
	}
	return docs, nil
}
