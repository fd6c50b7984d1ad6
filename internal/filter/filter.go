// Package filter defines pipeline stages, the ordered graphs that chain
// them and the per-cell environment they run in.
package filter

import (
	"context"
	"errors"
	"fmt"

	"github.com/mohammed-shakir/vector-scene-tiler/internal/core/model"
	"github.com/mohammed-shakir/vector-scene-tiler/internal/props"
	"github.com/mohammed-shakir/vector-scene-tiler/internal/scene"
)

// Capability names the kind of data flowing between two stages.
type Capability int

const (
	CapNone Capability = iota
	CapFeatures
	CapDrawables
	CapNodes
)

func (c Capability) String() string {
	switch c {
	case CapFeatures:
		return "features"
	case CapDrawables:
		return "drawables"
	case CapNodes:
		return "nodes"
	default:
		return "none"
	}
}

// Stream carries exactly one of its slices, selected by Kind.
type Stream struct {
	Kind      Capability
	Features  []*model.Feature
	Drawables []*scene.Drawable
	Nodes     []*scene.Node
}

func Features(fs []*model.Feature) Stream   { return Stream{Kind: CapFeatures, Features: fs} }
func Drawables(ds []*scene.Drawable) Stream { return Stream{Kind: CapDrawables, Drawables: ds} }
func Nodes(ns []*scene.Node) Stream         { return Stream{Kind: CapNodes, Nodes: ns} }

func (s Stream) Len() int {
	switch s.Kind {
	case CapFeatures:
		return len(s.Features)
	case CapDrawables:
		return len(s.Drawables)
	case CapNodes:
		return len(s.Nodes)
	}
	return 0
}

var (
	ErrCapabilityMismatch = errors.New("filter: stage capabilities do not chain")
	ErrEmptyGraph         = errors.New("filter: graph has no stages")
	ErrUnexpectedOutput   = errors.New("filter: stage produced undeclared output")
	ErrWrongInput         = errors.New("filter: stage received wrong input")
	ErrUnknownFilter      = errors.New("filter: unknown filter type")
	ErrUnknownProperty    = errors.New("filter: unknown property")
)

// Filter is one pipeline stage. Implementations must not keep references
// to the stream or env after Process returns; graphs share one instance
// of every stage across concurrently compiled cells.
type Filter interface {
	Type() string
	Name() string
	Accepts() Capability
	Produces() Capability
	Process(ctx context.Context, in Stream, env *Env) (Stream, error)
	Properties() []props.Property
	SetProperty(name string, v props.Value) error
	Clone() Filter
}

// Expect returns ErrWrongInput unless s is of kind c.
func Expect(s Stream, c Capability) error {
	if s.Kind != c {
		return fmt.Errorf("%w: got %s want %s", ErrWrongInput, s.Kind, c)
	}
	return nil
}
