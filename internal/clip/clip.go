// Package clip crops points, polylines and non-convex polygons to an
// axis-aligned window.
//
// Polygons are clipped one boundary line at a time (south, east, north,
// west). For each line the ring is cut into inside chains, each running
// from an ENTRY crossing to an EXIT crossing in traversal order. The
// crossings are also ranked along the boundary line; ranks 2k and 2k+1
// bound a stretch of the line that lies inside the polygon, so an EXIT
// at rank r continues at the ENTRY of rank r^1. Parts that cannot close
// yet are parked in a map keyed by the rank they resume at.
package clip

import (
	"sort"

	"github.com/mohammed-shakir/vector-scene-tiler/internal/core/model"
)

type side int

const (
	south side = iota
	east
	north
	west
)

var sides = [...]side{south, east, north, west}

func (s side) String() string {
	return [...]string{"south", "east", "north", "west"}[s]
}

// Shape crops s to w. It reports false for shape types it cannot clip;
// the returned shape may have no parts.
func Shape(s model.Shape, w model.Extent) (model.Shape, bool) {
	out := model.Shape{Type: s.Type}
	switch s.Type {
	case model.ShapePoint:
		out.Parts = Points(s.Parts, w)
	case model.ShapeLine:
		out.Parts = Lines(s.Parts, w)
	case model.ShapePolygon:
		out.Parts = Polygon(s.Parts, w)
	default:
		return out, false
	}
	return out, true
}

// Points keeps the points inside w, boundary included.
func Points(parts []model.Part, w model.Extent) []model.Part {
	var out []model.Part
	for _, p := range parts {
		var kept model.Part
		for _, pt := range p {
			if w.ContainsPoint(pt.X, pt.Y) {
				kept = append(kept, pt)
			}
		}
		if len(kept) > 0 {
			out = append(out, kept)
		}
	}
	return out
}

// Lines clips every polyline against the four boundaries in turn,
// splitting a line each time it leaves the window.
func Lines(parts []model.Part, w model.Extent) []model.Part {
	if !w.IsValid() {
		return nil
	}
	var out []model.Part
	for _, p := range parts {
		if len(p) < 2 {
			continue
		}
		ext := p.Extent()
		if w.Contains(ext) {
			out = append(out, p.Clone())
			continue
		}
		if outsideAny(ext, w) {
			continue
		}
		cur := []model.Part{p}
		for _, sd := range sides {
			var next []model.Part
			for _, q := range cur {
				if insideSide(q.Extent(), sd, w) {
					next = append(next, q)
					continue
				}
				next = append(next, clipLine(q, sd, w)...)
			}
			cur = next
		}
		out = append(out, cur...)
	}
	return out
}

func clipLine(pts model.Part, sd side, w model.Extent) []model.Part {
	var out []model.Part
	var cur model.Part
	flush := func() {
		if len(cur) >= 2 {
			out = append(out, cur)
		}
		cur = nil
	}
	for i, b := range pts {
		inb := inside(b, sd, w)
		if i == 0 {
			if inb {
				cur = model.Part{b}
			}
			continue
		}
		a := pts[i-1]
		ina := inside(a, sd, w)
		switch {
		case ina && inb:
			cur = appendDistinct(cur, b)
		case ina && !inb:
			if x, ok := intersect(a, b, sd, w); ok {
				cur = appendDistinct(cur, x)
			}
			flush()
		case !ina && inb:
			if x, ok := intersect(a, b, sd, w); ok {
				cur = model.Part{x}
			}
			cur = appendDistinct(cur, b)
		}
	}
	flush()
	return out
}

// Polygon clips polygon rings to w. Rings with fewer than three points
// are dropped.
func Polygon(rings []model.Part, w model.Extent) []model.Part {
	if !w.IsValid() {
		return nil
	}
	var cur []model.Part
	ext := model.EmptyExtent(w.SRS)
	for _, r := range rings {
		if len(r.Open()) < 3 {
			continue
		}
		cur = append(cur, r)
		ext.Union(r.Extent())
	}
	if len(cur) == 0 {
		return nil
	}
	if w.Contains(ext) {
		out := make([]model.Part, len(cur))
		for i, r := range cur {
			out[i] = r.Clone()
		}
		return out
	}
	if outsideAny(ext, w) {
		return nil
	}

	for _, sd := range sides {
		var next []model.Part
		for _, r := range cur {
			if insideSide(r.Extent(), sd, w) {
				next = append(next, r)
				continue
			}
			next = append(next, clipRing(r.Open(), sd, w)...)
		}
		cur = next
		if len(cur) == 0 {
			return nil
		}
	}
	return cur
}

type crossing struct {
	coord float64
	chain int
	entry bool
	rank  int
}

type chain struct {
	pts   model.Part
	entry int // crossing index
	exit  int
}

// clipRing clips one open ring against a single boundary line.
func clipRing(ring model.Part, sd side, w model.Extent) []model.Part {
	n := len(ring)
	start := -1
	anyIn := false
	for i, p := range ring {
		if inside(p, sd, w) {
			anyIn = true
		} else if start < 0 {
			start = i
		}
	}
	if !anyIn {
		return nil
	}
	if start < 0 {
		return []model.Part{ring.Clone()}
	}

	// Walk from an outside vertex so that every chain opens with an
	// ENTRY and closes with an EXIT without wrapping.
	var (
		xs     []crossing
		chains []chain
		cur    *chain
	)
	for k := 0; k < n; k++ {
		a := ring[(start+k)%n]
		b := ring[(start+k+1)%n]
		ina, inb := inside(a, sd, w), inside(b, sd, w)
		switch {
		case !ina && inb:
			x, ok := intersect(a, b, sd, w)
			if !ok {
				x = b
			}
			cur = &chain{pts: model.Part{x}, entry: len(xs)}
			xs = append(xs, crossing{coord: along(x, sd), chain: len(chains), entry: true})
			cur.pts = appendDistinct(cur.pts, b)
		case ina && inb:
			if cur != nil {
				cur.pts = appendDistinct(cur.pts, b)
			}
		case ina && !inb:
			if cur == nil {
				continue
			}
			x, ok := intersect(a, b, sd, w)
			if !ok {
				x = a
			}
			cur.pts = appendDistinct(cur.pts, x)
			cur.exit = len(xs)
			xs = append(xs, crossing{coord: along(x, sd), chain: len(chains), entry: false})
			chains = append(chains, *cur)
			cur = nil
		}
	}

	// Chains lying entirely on the boundary line enclose nothing; drop
	// them together with their crossings so the rank pairing holds.
	keep := make([]bool, len(chains))
	var live []int
	for i, c := range chains {
		if !onLine(c.pts, sd, w) {
			keep[i] = true
		}
	}
	for i, x := range xs {
		if keep[x.chain] {
			live = append(live, i)
		}
	}
	if len(live) == 0 {
		return nil
	}
	sort.SliceStable(live, func(i, j int) bool { return xs[live[i]].coord < xs[live[j]].coord })
	for r, idx := range live {
		xs[idx].rank = r
	}

	// Traverse chains starting with the one holding the lowest rank.
	first := xs[live[0]].chain
	order := make([]int, 0, len(chains))
	for k := 0; k < len(chains); k++ {
		ci := (first + k) % len(chains)
		if keep[ci] {
			order = append(order, ci)
		}
	}
	return stitch(chains, xs, order)
}

type part struct {
	start int
	want  int
	pts   model.Part
}

func stitch(chains []chain, xs []crossing, order []int) []model.Part {
	var out []model.Part
	suspended := map[int]*part{} // keyed by the rank the part resumes at
	byStart := map[int]*part{}

	for _, ci := range order {
		c := chains[ci]
		entry, exit := xs[c.entry].rank, xs[c.exit].rank

		p, ok := suspended[entry]
		if ok {
			delete(suspended, entry)
			p.pts = append(p.pts, c.pts...)
		} else {
			p = &part{start: entry, pts: c.pts.Clone()}
			byStart[entry] = p
		}

		want := exit ^ 1
		for {
			if want == p.start {
				delete(byStart, p.start)
				out = appendRing(out, p.pts)
				break
			}
			if q, ok := byStart[want]; ok && q != p {
				// q is parked; splice it behind p.
				delete(byStart, q.start)
				delete(suspended, q.want)
				p.pts = append(p.pts, q.pts...)
				want = q.want
				continue
			}
			p.want = want
			suspended[want] = p
			break
		}
	}

	if len(suspended) > 0 {
		keys := make([]int, 0, len(suspended))
		for k := range suspended {
			keys = append(keys, k)
		}
		sort.Ints(keys)
		for _, k := range keys {
			out = appendRing(out, suspended[k].pts)
		}
	}
	return out
}

func appendRing(out []model.Part, pts model.Part) []model.Part {
	var r model.Part
	for _, p := range pts {
		r = appendDistinct(r, p)
	}
	r = r.Open()
	if len(r) < 3 || r.SignedArea() == 0 {
		return out
	}
	return append(out, r)
}

func appendDistinct(p model.Part, pt model.Point) model.Part {
	if n := len(p); n > 0 && p[n-1].SameXY(pt) {
		return p
	}
	return append(p, pt)
}

func inside(p model.Point, sd side, w model.Extent) bool {
	switch sd {
	case south:
		return p.Y >= w.YMin
	case east:
		return p.X <= w.XMax
	case north:
		return p.Y <= w.YMax
	default:
		return p.X >= w.XMin
	}
}

func bound(sd side, w model.Extent) float64 {
	switch sd {
	case south:
		return w.YMin
	case east:
		return w.XMax
	case north:
		return w.YMax
	default:
		return w.XMin
	}
}

func horizontal(sd side) bool { return sd == south || sd == north }

// along is the position of p along the boundary line.
func along(p model.Point, sd side) float64 {
	if horizontal(sd) {
		return p.X
	}
	return p.Y
}

func onLine(pts model.Part, sd side, w model.Extent) bool {
	b := bound(sd, w)
	for _, p := range pts {
		v := p.X
		if horizontal(sd) {
			v = p.Y
		}
		if v != b {
			return false
		}
	}
	return true
}

// intersect returns where segment a-b meets the boundary line. A
// parameter of exactly 0 or 1 yields the segment endpoint itself.
func intersect(a, b model.Point, sd side, w model.Extent) (model.Point, bool) {
	c := bound(sd, w)
	var t float64
	if horizontal(sd) {
		d := b.Y - a.Y
		if d == 0 {
			return model.Point{}, false
		}
		t = (c - a.Y) / d
	} else {
		d := b.X - a.X
		if d == 0 {
			return model.Point{}, false
		}
		t = (c - a.X) / d
	}
	switch {
	case t == 0:
		return a, true
	case t == 1:
		return b, true
	case t < 0 || t > 1:
		return model.Point{}, false
	}
	p := model.Point{
		X:   a.X + t*(b.X-a.X),
		Y:   a.Y + t*(b.Y-a.Y),
		Z:   a.Z + t*(b.Z-a.Z),
		Dim: max(a.Dim, b.Dim),
		SRS: a.SRS,
	}
	if horizontal(sd) {
		p.Y = c
	} else {
		p.X = c
	}
	return p, true
}

func insideSide(e model.Extent, sd side, w model.Extent) bool {
	switch sd {
	case south:
		return e.YMin >= w.YMin
	case east:
		return e.XMax <= w.XMax
	case north:
		return e.YMax <= w.YMax
	default:
		return e.XMin >= w.XMin
	}
}

func outsideAny(e model.Extent, w model.Extent) bool {
	return e.YMax < w.YMin || e.XMin > w.XMax || e.YMin > w.YMax || e.XMax < w.XMin
}
