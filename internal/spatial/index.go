// Package spatial wraps an R-tree keyed by model extents.
package spatial

import (
	"math"

	"github.com/dhconnelly/rtreego"

	"github.com/mohammed-shakir/vector-scene-tiler/internal/core/model"
)

// minLength pads degenerate (point or line) extents; the tree rejects
// zero-length sides.
const minLength = 1e-9

type entry[T any] struct {
	ext  model.Extent
	rect rtreego.Rect
	val  T
}

func (e *entry[T]) Bounds() rtreego.Rect { return e.rect }

// Index is built once and then only queried; concurrent queries are safe.
type Index[T any] struct {
	tree *rtreego.Rtree
	n    int
}

func NewIndex[T any]() *Index[T] {
	return &Index[T]{tree: rtreego.NewTree(2, 25, 50)}
}

// Insert adds v under extent e. Invalid extents are ignored.
func (ix *Index[T]) Insert(e model.Extent, v T) {
	if !e.IsValid() || e.IsInfinite() {
		return
	}
	ix.tree.Insert(&entry[T]{ext: e, rect: Rect(e), val: v})
	ix.n++
}

func (ix *Index[T]) Len() int { return ix.n }

// Search returns the values whose extent intersects e, touching edges
// included. An infinite e returns everything.
func (ix *Index[T]) Search(e model.Extent) []T {
	if !e.IsValid() {
		return nil
	}
	var q rtreego.Rect
	if e.IsInfinite() {
		q = Rect(model.NewExtent(-math.MaxFloat64/4, -math.MaxFloat64/4, math.MaxFloat64/4, math.MaxFloat64/4, nil))
	} else {
		q = Rect(pad(e))
	}
	hits := ix.tree.SearchIntersect(q)
	out := make([]T, 0, len(hits))
	for _, h := range hits {
		en := h.(*entry[T])
		if e.Intersects(en.ext) {
			out = append(out, en.val)
		}
	}
	return out
}

// Rect converts an extent into a tree rectangle, padding empty sides.
func Rect(e model.Extent) rtreego.Rect {
	w, h := e.Width(), e.Height()
	if w < minLength {
		w = minLength
	}
	if h < minLength {
		h = minLength
	}
	r, _ := rtreego.NewRect(rtreego.Point{e.XMin, e.YMin}, []float64{w, h})
	return r
}

// pad grows e slightly so edge contact survives the tree's strict test.
func pad(e model.Extent) model.Extent {
	d := math.Max(minLength, 1e-12*math.Max(math.Abs(e.XMax), math.Abs(e.YMax)))
	return model.NewExtent(e.XMin-d, e.YMin-d, e.XMax+d, e.YMax+d, e.SRS)
}
