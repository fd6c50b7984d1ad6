package filters

import (
	"context"

	"github.com/paulmach/orb"
	"github.com/paulmach/orb/simplify"

	"github.com/mohammed-shakir/vector-scene-tiler/internal/core/model"
	"github.com/mohammed-shakir/vector-scene-tiler/internal/filter"
)

// Decimate removes vertices with Douglas-Peucker. Lines left with fewer
// than two points and rings with fewer than three are dropped.
type Decimate struct {
	filter.Base
	Distance float64
}

func NewDecimate() *Decimate {
	d := &Decimate{Base: filter.NewBase("decimate")}
	d.Bind(filter.FloatParam("distance", &d.Distance))
	return d
}

func (*Decimate) Accepts() filter.Capability  { return filter.CapFeatures }
func (*Decimate) Produces() filter.Capability { return filter.CapFeatures }

func (d *Decimate) Clone() filter.Filter {
	n := NewDecimate()
	_ = filter.CopyProperties(n, d)
	return n
}

func (d *Decimate) Process(ctx context.Context, in filter.Stream, env *filter.Env) (filter.Stream, error) {
	if err := filter.Expect(in, filter.CapFeatures); err != nil {
		return filter.Stream{}, err
	}
	if d.Distance <= 0 {
		return in, nil
	}
	s := simplify.DouglasPeucker(d.Distance)
	out := in.Features[:0]
	for _, f := range in.Features {
		if err := ctx.Err(); err != nil {
			return filter.Stream{}, err
		}
		shapes := f.Shapes[:0]
		for _, sh := range f.Shapes {
			switch sh.Type {
			case model.ShapeLine:
				sh.Parts = decimateParts(sh.Parts, 2, func(p model.Part) orb.LineString {
					return s.LineString(lineString(p))
				})
			case model.ShapePolygon:
				sh.Parts = decimateParts(sh.Parts, 3, func(p model.Part) orb.LineString {
					r := append(orb.Ring(lineString(p)), orb.Point{p[0].X, p[0].Y})
					return orb.LineString(s.Ring(r))
				})
			}
			if len(sh.Parts) > 0 {
				shapes = append(shapes, sh)
			}
		}
		f.Shapes = shapes
		if len(shapes) > 0 {
			out = append(out, f)
		}
	}
	env.Log().DebugContext(ctx, "decimated", "filter", d.Name(), "features", len(out))
	return filter.Features(out), nil
}

func decimateParts(parts []model.Part, minPts int, fn func(model.Part) orb.LineString) []model.Part {
	out := parts[:0]
	for _, p := range parts {
		if len(p) < minPts {
			continue
		}
		kept := subsequence(p, fn(p))
		if minPts == 3 {
			kept = kept.Open()
		}
		if len(kept) >= minPts {
			out = append(out, kept)
		}
	}
	return out
}

// subsequence maps the simplified 2D points back onto the source
// vertices so Z and SRS survive.
func subsequence(src model.Part, ls orb.LineString) model.Part {
	out := make(model.Part, 0, len(ls))
	j := 0
	for _, q := range ls {
		for j < len(src) && (src[j].X != q[0] || src[j].Y != q[1]) {
			j++
		}
		if j == len(src) {
			if len(src) > 0 && src[0].X == q[0] && src[0].Y == q[1] {
				out = append(out, src[0])
			}
			break
		}
		out = append(out, src[j])
		j++
	}
	return out
}

func lineString(p model.Part) orb.LineString {
	ls := make(orb.LineString, len(p))
	for i, pt := range p {
		ls[i] = orb.Point{pt.X, pt.Y}
	}
	return ls
}
