// Package model defines the geometry and feature records shared across the pipeline.
package model

import (
	"fmt"
	"math"

	"github.com/mohammed-shakir/vector-scene-tiler/internal/srs"
)

type Point struct {
	X, Y, Z float64
	Dim     int
	SRS     *srs.SRS
}

func Pt2(x, y float64, s *srs.SRS) Point    { return Point{X: x, Y: y, Dim: 2, SRS: s} }
func Pt3(x, y, z float64, s *srs.SRS) Point { return Point{X: x, Y: y, Z: z, Dim: 3, SRS: s} }

// SameXY compares planar coordinates exactly.
func (p Point) SameXY(o Point) bool { return p.X == o.X && p.Y == o.Y }

func (p Point) String() string {
	if p.Dim >= 3 {
		return fmt.Sprintf("(%g %g %g)", p.X, p.Y, p.Z)
	}
	return fmt.Sprintf("(%g %g)", p.X, p.Y)
}

// Part is one polygon ring (stored open) or one polyline / point run.
type Part []Point

func (p Part) Clone() Part {
	if p == nil {
		return nil
	}
	out := make(Part, len(p))
	copy(out, p)
	return out
}

// Open drops a duplicated closing vertex.
func (p Part) Open() Part {
	if len(p) >= 2 && p[0].SameXY(p[len(p)-1]) {
		return p[:len(p)-1]
	}
	return p
}

// SignedArea is positive for counter-clockwise rings.
func (p Part) SignedArea() float64 {
	r := p.Open()
	if len(r) < 3 {
		return 0
	}
	var sum float64
	for i := range r {
		j := (i + 1) % len(r)
		sum += r[i].X*r[j].Y - r[j].X*r[i].Y
	}
	return sum / 2
}

func (p Part) Area() float64 { return math.Abs(p.SignedArea()) }

func (p Part) Extent() Extent {
	e := EmptyExtent(nil)
	for _, pt := range p {
		if e.SRS == nil {
			e.SRS = pt.SRS
		}
		e.ExpandToInclude(pt.X, pt.Y)
	}
	return e
}

type ShapeType int

const (
	ShapeUnknown ShapeType = iota
	ShapePoint
	ShapeLine
	ShapePolygon
)

func (t ShapeType) String() string {
	switch t {
	case ShapePoint:
		return "point"
	case ShapeLine:
		return "line"
	case ShapePolygon:
		return "polygon"
	default:
		return "unknown"
	}
}

type Shape struct {
	Type  ShapeType
	Parts []Part
}

func (s Shape) Extent() Extent {
	e := EmptyExtent(nil)
	for _, p := range s.Parts {
		e.Union(p.Extent())
	}
	return e
}

func (s Shape) Clone() Shape {
	out := Shape{Type: s.Type, Parts: make([]Part, len(s.Parts))}
	for i, p := range s.Parts {
		out.Parts[i] = p.Clone()
	}
	return out
}

func (s Shape) NumPoints() int {
	n := 0
	for _, p := range s.Parts {
		n += len(p)
	}
	return n
}

// Area sums signed ring areas; rings wound opposite to the first act as holes.
func (s Shape) Area() float64 {
	if s.Type != ShapePolygon {
		return 0
	}
	var sum float64
	for _, p := range s.Parts {
		sum += p.SignedArea()
	}
	return math.Abs(sum)
}
