package filters

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"

	"github.com/mohammed-shakir/vector-scene-tiler/internal/core/model"
	"github.com/mohammed-shakir/vector-scene-tiler/internal/filter"
	"github.com/mohammed-shakir/vector-scene-tiler/internal/props"
	"github.com/mohammed-shakir/vector-scene-tiler/internal/resource"
	"github.com/mohammed-shakir/vector-scene-tiler/internal/scene"
)

// ColorProp holds the color of the last batch a buildgeom stage emitted.
const ColorProp = "buildgeom.color"

var (
	ErrNoScriptEngine = errors.New("buildgeom: script property without a script engine")
	ErrBadColor       = errors.New("buildgeom: bad color")
)

// BuildGeom turns features into drawables. Points become point batches,
// lines become line strips and polygons become flat polygons, or roofs
// plus walls when height is positive. color and height may be literals or
// scripts evaluated per feature.
type BuildGeom struct {
	filter.Base
	Color  props.Value
	Height props.Value
	Skin   string
}

func NewBuildGeom() *BuildGeom {
	b := &BuildGeom{
		Base:   filter.NewBase("buildgeom"),
		Color:  props.String("#ffffffff"),
		Height: props.Float(0),
	}
	b.Bind(
		filter.ValueParam("color", &b.Color),
		filter.ValueParam("height", &b.Height),
		filter.StringParam("skin", &b.Skin),
	)
	return b
}

func (*BuildGeom) Accepts() filter.Capability  { return filter.CapFeatures }
func (*BuildGeom) Produces() filter.Capability { return filter.CapDrawables }

func (b *BuildGeom) Clone() filter.Filter {
	n := NewBuildGeom()
	_ = filter.CopyProperties(n, b)
	return n
}

func (b *BuildGeom) Process(ctx context.Context, in filter.Stream, env *filter.Env) (filter.Stream, error) {
	if err := filter.Expect(in, filter.CapFeatures); err != nil {
		return filter.Stream{}, err
	}
	if b.Skin != "" {
		if env.Session == nil || env.Session.Resources == nil {
			return filter.Stream{}, fmt.Errorf("buildgeom: skin %q: %w", b.Skin, resource.ErrUnknownResource)
		}
		if _, ok := env.Session.Resources.Lookup(b.Skin); !ok {
			return filter.Stream{}, fmt.Errorf("buildgeom: skin %q: %w", b.Skin, resource.ErrUnknownResource)
		}
	}
	var out []*scene.Drawable
	for _, f := range in.Features {
		if err := ctx.Err(); err != nil {
			return filter.Stream{}, err
		}
		color, err := b.color(ctx, f, env)
		if err != nil {
			return filter.Stream{}, fmt.Errorf("feature %d: %w", f.OID, err)
		}
		height, err := b.height(ctx, f, env)
		if err != nil {
			return filter.Stream{}, fmt.Errorf("feature %d: %w", f.OID, err)
		}
		ds := b.build(f, color, height)
		for _, d := range ds {
			if d.Skin != "" {
				env.MarkResourceUsed(d.Skin)
			}
		}
		out = append(out, ds...)
		env.Props.Set(ColorProp, props.Vec(float64(color[0]), float64(color[1]), float64(color[2]), float64(color[3])))
	}
	return filter.Drawables(out), nil
}

func (b *BuildGeom) eval(ctx context.Context, v props.Value, f *model.Feature, env *filter.Env) (props.Value, error) {
	if v.Kind != props.KindScript {
		return v, nil
	}
	if env.Session == nil || env.Session.Scripts == nil {
		return props.Value{}, ErrNoScriptEngine
	}
	r, err := env.Session.Scripts.Run(ctx, v.AsString(), f, env.Props)
	if err != nil {
		return props.Value{}, err
	}
	if vec, err := r.Vector(); err == nil && len(vec) > 1 {
		return props.Vec(vec...), nil
	}
	return props.String(r.String()), nil
}

func (b *BuildGeom) color(ctx context.Context, f *model.Feature, env *filter.Env) (scene.Color, error) {
	v, err := b.eval(ctx, b.Color, f, env)
	if err != nil {
		return scene.Color{}, err
	}
	if v.Kind == props.KindVec {
		vec, _ := v.AsVec()
		return colorFromVec(vec)
	}
	return ParseColor(v.AsString())
}

func (b *BuildGeom) height(ctx context.Context, f *model.Feature, env *filter.Env) (float64, error) {
	v, err := b.eval(ctx, b.Height, f, env)
	if err != nil {
		return 0, err
	}
	h, err := v.AsFloat()
	if err != nil {
		return 0, fmt.Errorf("buildgeom: height: %w", err)
	}
	return h, nil
}

// ParseColor accepts #rrggbb, #rrggbbaa or "r,g,b[,a]" with components
// in [0,1].
func ParseColor(s string) (scene.Color, error) {
	s = strings.TrimSpace(s)
	if h, ok := strings.CutPrefix(s, "#"); ok {
		if len(h) != 6 && len(h) != 8 {
			return scene.Color{}, fmt.Errorf("%w: %q", ErrBadColor, s)
		}
		if len(h) == 6 {
			h += "ff"
		}
		n, err := strconv.ParseUint(h, 16, 32)
		if err != nil {
			return scene.Color{}, fmt.Errorf("%w: %q", ErrBadColor, s)
		}
		return scene.Color{
			float32(n>>24&0xff) / 255, float32(n>>16&0xff) / 255,
			float32(n>>8&0xff) / 255, float32(n&0xff) / 255,
		}, nil
	}
	vec, err := props.String(s).AsVec()
	if err != nil {
		return scene.Color{}, fmt.Errorf("%w: %q", ErrBadColor, s)
	}
	return colorFromVec(vec)
}

func colorFromVec(v []float64) (scene.Color, error) {
	if len(v) != 3 && len(v) != 4 {
		return scene.Color{}, fmt.Errorf("%w: %d components", ErrBadColor, len(v))
	}
	c := scene.White
	for i, x := range v {
		c[i] = float32(x)
	}
	return c, nil
}

func (b *BuildGeom) build(f *model.Feature, color scene.Color, height float64) []*scene.Drawable {
	var out []*scene.Drawable
	newDrawable := func(m scene.PrimitiveMode) *scene.Drawable {
		d := &scene.Drawable{Mode: m, Color: color, FeatureOID: f.OID}
		out = append(out, d)
		return d
	}
	for _, sh := range f.Shapes {
		switch sh.Type {
		case model.ShapePoint:
			d := newDrawable(scene.ModePoints)
			for _, p := range sh.Parts {
				d.AddRun(vertices(p, 0))
			}
		case model.ShapeLine:
			d := newDrawable(scene.ModeLineStrip)
			for _, p := range sh.Parts {
				if len(p) >= 2 {
					d.AddRun(vertices(p, 0))
				}
			}
		case model.ShapePolygon:
			roof := newDrawable(scene.ModePolygon)
			for _, p := range sh.Parts {
				if len(p) >= 3 {
					roof.AddRun(vertices(p, height))
				}
			}
			if height > 0 {
				walls := newDrawable(scene.ModeTriangles)
				walls.Skin = b.Skin
				for _, p := range sh.Parts {
					if len(p) >= 3 {
						walls.AddRun(wall(p, height))
					}
				}
			}
		}
	}
	kept := out[:0]
	for _, d := range out {
		if len(d.Vertices) > 0 {
			kept = append(kept, d)
		}
	}
	return kept
}

func vertices(p model.Part, dz float64) []scene.Vec3 {
	out := make([]scene.Vec3, len(p))
	for i, pt := range p {
		out[i] = scene.V(pt.X, pt.Y, pt.Z+dz)
	}
	return out
}

// wall emits two triangles per ring edge, closing the ring.
func wall(ring model.Part, height float64) []scene.Vec3 {
	out := make([]scene.Vec3, 0, len(ring)*6)
	for i := range ring {
		a, b := ring[i], ring[(i+1)%len(ring)]
		a0, b0 := scene.V(a.X, a.Y, a.Z), scene.V(b.X, b.Y, b.Z)
		a1, b1 := scene.V(a.X, a.Y, a.Z+height), scene.V(b.X, b.Y, b.Z+height)
		out = append(out, a0, b0, b1, a0, b1, a1)
	}
	return out
}
