package filters

import (
	"context"
	"fmt"
	"math"

	"github.com/mohammed-shakir/vector-scene-tiler/internal/core/model"
	"github.com/mohammed-shakir/vector-scene-tiler/internal/filter"
)

// Clamp drapes features on the terrain. Every vertex with a known height
// gets Z = height + offset; the lowest clamped Z is written to the
// attribute. Without a terrain reader features pass through untouched.
type Clamp struct {
	filter.Base
	Offset    float64
	Attribute string
}

func NewClamp() *Clamp {
	c := &Clamp{Base: filter.NewBase("clamp"), Attribute: "clamped_elevation"}
	c.Bind(
		filter.FloatParam("offset", &c.Offset),
		filter.StringParam("attribute", &c.Attribute),
	)
	return c
}

func (*Clamp) Accepts() filter.Capability  { return filter.CapFeatures }
func (*Clamp) Produces() filter.Capability { return filter.CapFeatures }

func (c *Clamp) Clone() filter.Filter {
	n := NewClamp()
	_ = filter.CopyProperties(n, c)
	return n
}

func (c *Clamp) Process(ctx context.Context, in filter.Stream, env *filter.Env) (filter.Stream, error) {
	if err := filter.Expect(in, filter.CapFeatures); err != nil {
		return filter.Stream{}, err
	}
	if env.Terrain == nil {
		env.Log().DebugContext(ctx, "no terrain, clamp skipped", "filter", c.Name())
		return in, nil
	}
	fn, err := env.Reproject(env.InputSRS, env.TerrainSRS)
	if err != nil {
		return filter.Stream{}, err
	}
	for _, f := range in.Features {
		lowest := math.Inf(1)
		for si := range f.Shapes {
			for _, p := range f.Shapes[si].Parts {
				for i := range p {
					tx, ty, _ := fn(env.World(p[i].X, p[i].Y, p[i].Z))
					h, ok, err := env.Terrain.HeightAt(ctx, tx, ty)
					if err != nil {
						return filter.Stream{}, fmt.Errorf("clamp feature %d: %w", f.OID, err)
					}
					if !ok {
						continue
					}
					p[i].Z = h + c.Offset - env.Origin[2]
					p[i].Dim = 3
					lowest = math.Min(lowest, p[i].Z)
				}
			}
		}
		if c.Attribute != "" && !math.IsInf(lowest, 1) {
			f.SetAttr(c.Attribute, model.FloatAttr(lowest))
		}
	}
	return in, nil
}
