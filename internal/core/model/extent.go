package model

import (
	"fmt"
	"math"

	"github.com/mohammed-shakir/vector-scene-tiler/internal/srs"
)

// Extent is an axis-aligned rectangle. Min <= Max on both axes unless
// the extent is empty (invalid) or infinite.
type Extent struct {
	XMin, YMin float64
	XMax, YMax float64
	SRS        *srs.SRS

	valid    bool
	infinite bool
}

func NewExtent(x1, y1, x2, y2 float64, s *srs.SRS) Extent {
	return Extent{
		XMin: math.Min(x1, x2), YMin: math.Min(y1, y2),
		XMax: math.Max(x1, x2), YMax: math.Max(y1, y2),
		SRS: s, valid: true,
	}
}

func EmptyExtent(s *srs.SRS) Extent { return Extent{SRS: s} }

func InfiniteExtent(s *srs.SRS) Extent {
	return Extent{
		XMin: math.Inf(-1), YMin: math.Inf(-1),
		XMax: math.Inf(1), YMax: math.Inf(1),
		SRS: s, valid: true, infinite: true,
	}
}

func (e Extent) IsValid() bool    { return e.valid }
func (e Extent) IsInfinite() bool { return e.infinite }

func (e Extent) Width() float64 {
	if !e.valid {
		return 0
	}
	return e.XMax - e.XMin
}

func (e Extent) Height() float64 {
	if !e.valid {
		return 0
	}
	return e.YMax - e.YMin
}

func (e Extent) Center() (float64, float64) {
	return (e.XMin + e.XMax) / 2, (e.YMin + e.YMax) / 2
}

func (e Extent) ContainsPoint(x, y float64) bool {
	if !e.valid {
		return false
	}
	return x >= e.XMin && x <= e.XMax && y >= e.YMin && y <= e.YMax
}

// Contains reports whether o lies inside e, boundaries included.
func (e Extent) Contains(o Extent) bool {
	if !e.valid || !o.valid {
		return false
	}
	if e.infinite {
		return true
	}
	return o.XMin >= e.XMin && o.XMax <= e.XMax && o.YMin >= e.YMin && o.YMax <= e.YMax
}

// Intersects treats touching edges as intersecting.
func (e Extent) Intersects(o Extent) bool {
	if !e.valid || !o.valid {
		return false
	}
	if e.infinite || o.infinite {
		return true
	}
	return e.XMin <= o.XMax && o.XMin <= e.XMax && e.YMin <= o.YMax && o.YMin <= e.YMax
}

func (e Extent) Intersection(o Extent) Extent {
	if !e.Intersects(o) {
		return EmptyExtent(e.SRS)
	}
	if e.infinite {
		return o
	}
	if o.infinite {
		return e
	}
	return NewExtent(
		math.Max(e.XMin, o.XMin), math.Max(e.YMin, o.YMin),
		math.Min(e.XMax, o.XMax), math.Min(e.YMax, o.YMax), e.SRS)
}

func (e *Extent) ExpandToInclude(x, y float64) {
	if e.infinite {
		return
	}
	if !e.valid {
		e.XMin, e.XMax, e.YMin, e.YMax = x, x, y, y
		e.valid = true
		return
	}
	e.XMin = math.Min(e.XMin, x)
	e.YMin = math.Min(e.YMin, y)
	e.XMax = math.Max(e.XMax, x)
	e.YMax = math.Max(e.YMax, y)
}

func (e *Extent) Union(o Extent) {
	if !o.valid {
		return
	}
	if o.infinite {
		*e = InfiniteExtent(e.SRS)
		return
	}
	if e.SRS == nil {
		e.SRS = o.SRS
	}
	e.ExpandToInclude(o.XMin, o.YMin)
	e.ExpandToInclude(o.XMax, o.YMax)
}

// Square grows the shorter side around the center.
func (e Extent) Square() Extent {
	if !e.valid || e.infinite {
		return e
	}
	w, h := e.Width(), e.Height()
	if w == h {
		return e
	}
	cx, cy := e.Center()
	half := math.Max(w, h) / 2
	return NewExtent(cx-half, cy-half, cx+half, cy+half, e.SRS)
}

func (e Extent) Equal(o Extent) bool {
	if e.valid != o.valid || e.infinite != o.infinite {
		return false
	}
	if !e.valid {
		return true
	}
	return e.XMin == o.XMin && e.YMin == o.YMin && e.XMax == o.XMax && e.YMax == o.YMax
}

func (e Extent) String() string {
	switch {
	case !e.valid:
		return "extent(empty)"
	case e.infinite:
		return "extent(infinite)"
	}
	return fmt.Sprintf("extent(%g,%g,%g,%g %s)", e.XMin, e.YMin, e.XMax, e.YMax, e.SRS)
}
