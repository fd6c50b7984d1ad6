package filter

import (
	"context"
	"fmt"
	"time"

	"github.com/mohammed-shakir/vector-scene-tiler/internal/core/model"
	"github.com/mohammed-shakir/vector-scene-tiler/internal/core/observability"
)

// Graph is an ordered, immutable chain of stages. One graph is shared by
// every cell of a layer level.
type Graph struct {
	name   string
	stages []Filter
}

// NewGraph validates that stages chain: the first must accept features
// and every stage must produce what the next one accepts.
func NewGraph(name string, stages ...Filter) (*Graph, error) {
	if len(stages) == 0 {
		return nil, fmt.Errorf("%w: %q", ErrEmptyGraph, name)
	}
	if stages[0].Accepts() != CapFeatures {
		return nil, fmt.Errorf("%w: graph %q stage 0 (%s) accepts %s, want %s",
			ErrCapabilityMismatch, name, stages[0].Type(), stages[0].Accepts(), CapFeatures)
	}
	for i := 1; i < len(stages); i++ {
		prev, cur := stages[i-1], stages[i]
		if prev.Produces() != cur.Accepts() {
			return nil, fmt.Errorf("%w: graph %q stage %d (%s) produces %s but stage %d (%s) accepts %s",
				ErrCapabilityMismatch, name, i-1, prev.Type(), prev.Produces(), i, cur.Type(), cur.Accepts())
		}
	}
	return &Graph{name: name, stages: append([]Filter(nil), stages...)}, nil
}

// Inherit builds a new graph from clones of g's stages followed by extra.
func (g *Graph) Inherit(name string, extra ...Filter) (*Graph, error) {
	stages := make([]Filter, 0, len(g.stages)+len(extra))
	for _, s := range g.stages {
		stages = append(stages, s.Clone())
	}
	stages = append(stages, extra...)
	return NewGraph(name, stages...)
}

func (g *Graph) Name() string { return g.name }

func (g *Graph) Len() int { return len(g.stages) }

// Stages returns the stage list; the filters themselves must not be mutated.
func (g *Graph) Stages() []Filter { return append([]Filter(nil), g.stages...) }

func (g *Graph) Output() Capability { return g.stages[len(g.stages)-1].Produces() }

// Process runs the features through every stage in order.
func (g *Graph) Process(ctx context.Context, features []*model.Feature, env *Env) (Stream, error) {
	in := Features(features)
	for i, f := range g.stages {
		if err := ctx.Err(); err != nil {
			return Stream{}, err
		}
		start := time.Now()
		out, err := f.Process(ctx, in, env)
		observability.ObserveFilterStage(f.Type(), time.Since(start))
		if err != nil {
			return Stream{}, fmt.Errorf("graph %q stage %d %s: %w", g.name, i, label(f), err)
		}
		if out.Kind != f.Produces() {
			return Stream{}, fmt.Errorf("%w: graph %q stage %d %s returned %s, declared %s",
				ErrUnexpectedOutput, g.name, i, label(f), out.Kind, f.Produces())
		}
		in = out
	}
	return in, nil
}

func label(f Filter) string {
	if n := f.Name(); n != "" && n != f.Type() {
		return f.Type() + "(" + n + ")"
	}
	return f.Type()
}
