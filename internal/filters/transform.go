package filters

import (
	"context"
	"fmt"

	"github.com/mohammed-shakir/vector-scene-tiler/internal/core/model"
	"github.com/mohammed-shakir/vector-scene-tiler/internal/filter"
	"github.com/mohammed-shakir/vector-scene-tiler/internal/props"
	"github.com/mohammed-shakir/vector-scene-tiler/internal/srs"
)

// Transform reprojects features from the input SRS into to_srs (the
// output SRS when empty), then optionally re-centres them on the working
// extent and translates them.
type Transform struct {
	filter.Base
	ToSRS     string
	Localize  bool
	Translate []float64
}

func NewTransform() *Transform {
	t := &Transform{Base: filter.NewBase("transform")}
	t.Bind(
		filter.StringParam("to_srs", &t.ToSRS),
		filter.BoolParam("localize", &t.Localize),
		filter.VecParam("translate", &t.Translate),
	)
	return t
}

func (*Transform) Accepts() filter.Capability  { return filter.CapFeatures }
func (*Transform) Produces() filter.Capability { return filter.CapFeatures }

func (t *Transform) Clone() filter.Filter {
	n := NewTransform()
	_ = filter.CopyProperties(n, t)
	return n
}

func (t *Transform) target(env *filter.Env) (*srs.SRS, error) {
	if t.ToSRS == "" {
		return env.OutputSRS, nil
	}
	reg := srs.NewRegistry()
	if env.Session != nil && env.Session.SRS != nil {
		reg = env.Session.SRS
	}
	return reg.Resolve(t.ToSRS)
}

// Process leaves the env describing the new frame: InputSRS becomes the
// target, Extent is mapped along with the features and Origin holds the
// localizing offset, so later stages keep reading coordinates correctly.
func (t *Transform) Process(ctx context.Context, in filter.Stream, env *filter.Env) (filter.Stream, error) {
	if err := filter.Expect(in, filter.CapFeatures); err != nil {
		return filter.Stream{}, err
	}
	to, err := t.target(env)
	if err != nil {
		return filter.Stream{}, err
	}
	fn, err := env.Reproject(env.InputSRS, to)
	if err != nil {
		return filter.Stream{}, err
	}

	var origin [3]float64
	if t.Localize {
		origin, err = localOrigin(in.Features, env, fn)
		if err != nil {
			return filter.Stream{}, err
		}
		env.Props.Set(filter.OriginProp, props.Vec(origin[:]...))
	} else {
		env.Props.Delete(filter.OriginProp)
	}
	var shift [3]float64
	copy(shift[:], t.Translate)

	move := func(x, y, z float64) (float64, float64, float64) {
		x, y, z = fn(env.World(x, y, z))
		return x - origin[0] + shift[0], y - origin[1] + shift[1], z - origin[2] + shift[2]
	}

	for _, f := range in.Features {
		if err := ctx.Err(); err != nil {
			return filter.Stream{}, err
		}
		for si := range f.Shapes {
			for _, p := range f.Shapes[si].Parts {
				for i := range p {
					p[i].X, p[i].Y, p[i].Z = move(p[i].X, p[i].Y, p[i].Z)
					p[i].SRS = to
				}
			}
		}
	}

	env.Extent = moveExtent(env.Extent, move, to)
	env.InputSRS = to
	env.Origin = origin
	return in, nil
}

// moveExtent maps the corners of e and returns their bounding box.
func moveExtent(e model.Extent, move func(x, y, z float64) (float64, float64, float64), to *srs.SRS) model.Extent {
	switch {
	case e.IsInfinite():
		return model.InfiniteExtent(to)
	case !e.IsValid():
		return model.EmptyExtent(to)
	}
	out := model.EmptyExtent(to)
	for _, c := range [][2]float64{{e.XMin, e.YMin}, {e.XMax, e.YMin}, {e.XMax, e.YMax}, {e.XMin, e.YMax}} {
		x, y, _ := move(c[0], c[1], 0)
		out.ExpandToInclude(x, y)
	}
	return out
}

// localOrigin is the centre of the working extent, or of the features
// when the extent is unbounded, mapped through fn.
func localOrigin(fs []*model.Feature, env *filter.Env, fn srs.Func) ([3]float64, error) {
	e := env.Extent
	if e.IsInfinite() {
		e = model.EmptyExtent(nil)
		for _, f := range fs {
			e.Union(f.Extent())
		}
	}
	if !e.IsValid() {
		return [3]float64{}, fmt.Errorf("transform: cannot localize an empty extent")
	}
	cx, cy := e.Center()
	x, y, _ := fn(env.World(cx, cy, 0))
	return [3]float64{x, y, 0}, nil
}
