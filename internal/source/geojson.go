package source

import (
	"fmt"
	"os"

	"github.com/paulmach/orb"
	"github.com/paulmach/orb/geojson"

	"github.com/mohammed-shakir/vector-scene-tiler/internal/core/model"
	"github.com/mohammed-shakir/vector-scene-tiler/internal/srs"
)

// LoadGeoJSON reads a FeatureCollection file into a Memory source.
func LoadGeoJSON(path string, s *srs.SRS) (*Memory, error) {
	b, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("source: read %s: %w", path, err)
	}
	features, err := DecodeGeoJSON(b, s)
	if err != nil {
		return nil, fmt.Errorf("source: %s: %w", path, err)
	}
	return NewMemory(s, features), nil
}

// DecodeGeoJSON converts a FeatureCollection. Numeric ids become OIDs;
// features without one are numbered by position.
func DecodeGeoJSON(b []byte, s *srs.SRS) ([]*model.Feature, error) {
	fc, err := geojson.UnmarshalFeatureCollection(b)
	if err != nil {
		return nil, err
	}
	out := make([]*model.Feature, 0, len(fc.Features))
	for i, gf := range fc.Features {
		oid := int64(i)
		if id, ok := gf.ID.(float64); ok {
			oid = int64(id)
		}
		f := model.NewFeature(oid, shapes(gf.Geometry, s)...)
		for k, v := range gf.Properties {
			a, err := model.AttrFrom(v)
			if err != nil {
				continue
			}
			f.SetAttr(k, a)
		}
		out = append(out, f)
	}
	return out, nil
}

func shapes(g orb.Geometry, s *srs.SRS) []model.Shape {
	switch g := g.(type) {
	case orb.Point:
		return []model.Shape{{Type: model.ShapePoint, Parts: []model.Part{{model.Pt2(g[0], g[1], s)}}}}
	case orb.MultiPoint:
		sh := model.Shape{Type: model.ShapePoint}
		for _, p := range g {
			sh.Parts = append(sh.Parts, model.Part{model.Pt2(p[0], p[1], s)})
		}
		return []model.Shape{sh}
	case orb.LineString:
		return []model.Shape{{Type: model.ShapeLine, Parts: []model.Part{part(g, s)}}}
	case orb.MultiLineString:
		sh := model.Shape{Type: model.ShapeLine}
		for _, ls := range g {
			sh.Parts = append(sh.Parts, part(ls, s))
		}
		return []model.Shape{sh}
	case orb.Polygon:
		return []model.Shape{polygon(g, s)}
	case orb.MultiPolygon:
		out := make([]model.Shape, 0, len(g))
		for _, p := range g {
			out = append(out, polygon(p, s))
		}
		return out
	case orb.Collection:
		var out []model.Shape
		for _, c := range g {
			out = append(out, shapes(c, s)...)
		}
		return out
	default:
		return nil
	}
}

func part(ps []orb.Point, s *srs.SRS) model.Part {
	out := make(model.Part, len(ps))
	for i, p := range ps {
		out[i] = model.Pt2(p[0], p[1], s)
	}
	return out
}

func polygon(p orb.Polygon, s *srs.SRS) model.Shape {
	sh := model.Shape{Type: model.ShapePolygon}
	for _, r := range p {
		sh.Parts = append(sh.Parts, part(r, s).Open())
	}
	return sh
}

// EncodeGeoJSON is the inverse of DecodeGeoJSON for 2D shapes.
func EncodeGeoJSON(features []*model.Feature) ([]byte, error) {
	fc := geojson.NewFeatureCollection()
	for _, f := range features {
		gf := geojson.NewFeature(geometry(f.Shapes))
		gf.ID = f.OID
		for k, a := range f.Attrs {
			gf.Properties[k] = a.Value()
		}
		fc.Append(gf)
	}
	return fc.MarshalJSON()
}

func geometry(shapes []model.Shape) orb.Geometry {
	var gs []orb.Geometry
	for _, sh := range shapes {
		switch sh.Type {
		case model.ShapePoint:
			mp := make(orb.MultiPoint, 0, len(sh.Parts))
			for _, p := range sh.Parts {
				for _, pt := range p {
					mp = append(mp, orb.Point{pt.X, pt.Y})
				}
			}
			if len(mp) == 1 {
				gs = append(gs, mp[0])
			} else {
				gs = append(gs, mp)
			}
		case model.ShapeLine:
			ml := make(orb.MultiLineString, 0, len(sh.Parts))
			for _, p := range sh.Parts {
				ml = append(ml, lineString(p))
			}
			if len(ml) == 1 {
				gs = append(gs, ml[0])
			} else {
				gs = append(gs, ml)
			}
		case model.ShapePolygon:
			poly := make(orb.Polygon, 0, len(sh.Parts))
			for _, p := range sh.Parts {
				r := orb.Ring(lineString(p))
				if len(r) > 0 {
					r = append(r, r[0])
				}
				poly = append(poly, r)
			}
			gs = append(gs, poly)
		}
	}
	if len(gs) == 1 {
		return gs[0]
	}
	return orb.Collection(gs)
}

func lineString(p model.Part) orb.LineString {
	ls := make(orb.LineString, len(p))
	for i, pt := range p {
		ls[i] = orb.Point{pt.X, pt.Y}
	}
	return ls
}
