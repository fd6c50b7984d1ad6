// Package filters holds the stock pipeline stages.
package filters

import (
	"context"

	"github.com/mohammed-shakir/vector-scene-tiler/internal/clip"
	"github.com/mohammed-shakir/vector-scene-tiler/internal/core/model"
	"github.com/mohammed-shakir/vector-scene-tiler/internal/filter"
)

// Crop clips every feature to the working extent. Shapes that vanish are
// dropped, and so are features left without shapes.
type Crop struct {
	filter.Base
}

func NewCrop() *Crop { return &Crop{Base: filter.NewBase("crop")} }

func (*Crop) Accepts() filter.Capability  { return filter.CapFeatures }
func (*Crop) Produces() filter.Capability { return filter.CapFeatures }

func (c *Crop) Clone() filter.Filter {
	n := NewCrop()
	_ = filter.CopyProperties(n, c)
	return n
}

func (c *Crop) Process(ctx context.Context, in filter.Stream, env *filter.Env) (filter.Stream, error) {
	if err := filter.Expect(in, filter.CapFeatures); err != nil {
		return filter.Stream{}, err
	}
	if env.Extent.IsInfinite() {
		return in, nil
	}
	out := in.Features[:0]
	for _, f := range in.Features {
		if err := ctx.Err(); err != nil {
			return filter.Stream{}, err
		}
		if cropFeature(f, env.Extent) {
			out = append(out, f)
		}
	}
	return filter.Features(out), nil
}

func cropFeature(f *model.Feature, w model.Extent) bool {
	shapes := f.Shapes[:0]
	for _, s := range f.Shapes {
		cs, ok := clip.Shape(s, w)
		if !ok || len(cs.Parts) == 0 {
			continue
		}
		shapes = append(shapes, cs)
	}
	f.Shapes = shapes
	return len(shapes) > 0
}
