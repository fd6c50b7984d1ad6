package profile

import (
	"errors"
	"math"
	"testing"

	"github.com/mohammed-shakir/vector-scene-tiler/internal/core/model"
)

func ext(x1, y1, x2, y2 float64) model.Extent { return model.NewExtent(x1, y1, x2, y2, nil) }

func mustQuad(t *testing.T, e model.Extent, cell float64, levels int) *QuadTree {
	t.Helper()
	q, err := NewQuadTree(e, cell, cell, levels)
	if err != nil {
		t.Fatal(err)
	}
	return q
}

// interiorsOverlap reports whether a and b share more than a boundary.
func interiorsOverlap(a, b model.Extent) bool {
	return a.XMin < b.XMax && b.XMin < a.XMax && a.YMin < b.YMax && b.YMin < a.YMax
}

func checkPartition(t *testing.T, p Profile, k Key) {
	t.Helper()
	kids := k.Children()
	if len(kids) != p.Fanout() {
		t.Fatalf("%s: %d children want %d", k, len(kids), p.Fanout())
	}
	union := model.EmptyExtent(nil)
	var area float64
	for i, c := range kids {
		ce := p.ExtentOf(c)
		union.Union(ce)
		area += ce.Width() * ce.Height()
		for _, d := range kids[i+1:] {
			if interiorsOverlap(ce, p.ExtentOf(d)) {
				t.Fatalf("%s: children %s and %s overlap", k, c, d)
			}
		}
	}
	pe := p.ExtentOf(k)
	if !union.Equal(pe) {
		t.Fatalf("%s: children union %v != parent %v", k, union, pe)
	}
	if math.Abs(area-pe.Width()*pe.Height()) > 1e-9*pe.Width()*pe.Height() {
		t.Fatalf("%s: children area %v != parent area %v", k, area, pe.Width()*pe.Height())
	}
}

func TestQuadTree_BaseDepthAndSquare(t *testing.T) {
	q := mustQuad(t, ext(0, 0, 100, 70), 30, 1)
	e := q.Extent()
	if e.Width() != 100 || e.Height() != 100 || e.YMin != -15 {
		t.Fatalf("extent not squared around center: %v", e)
	}
	// 100 -> 50 -> 25: depth 2 is the first to fit 30.
	if q.BaseDepth() != 2 {
		t.Fatalf("BaseDepth=%d want 2", q.BaseDepth())
	}
	if c, r := q.NumCells(0); c != 4 || r != 4 {
		t.Fatalf("NumCells(0)=%d,%d", c, r)
	}
}

func TestQuadTree_PartitionInvariant(t *testing.T) {
	q := mustQuad(t, ext(-3.3, 1.7, 97.1, 55.9), 40, 4)
	for level := 0; level < q.Levels()-1; level++ {
		for _, k := range q.Keys(level) {
			checkPartition(t, q, k)
		}
	}
}

func TestQuadTree_ParentChildRoundTrip(t *testing.T) {
	q := mustQuad(t, ext(0, 0, 1000, 1000), 250, 3)
	for level := 0; level < q.Levels()-1; level++ {
		for _, k := range q.Keys(level) {
			for i := 0; i < 4; i++ {
				c, ok := q.ChildOf(k, i)
				if !ok {
					t.Fatalf("ChildOf(%s,%d) missing", k, i)
				}
				p, ok := q.ParentOf(c)
				if !ok || p != k {
					t.Fatalf("ParentOf(ChildOf(%s,%d)) = %s,%v", k, i, p, ok)
				}
			}
		}
	}

	leaf, _ := q.KeyAt(2, 0, 0)
	if _, ok := q.ChildOf(leaf, 0); ok {
		t.Fatalf("finest level must have no children")
	}
	root, _ := q.KeyAt(0, 0, 0)
	if _, ok := q.ParentOf(root); ok {
		t.Fatalf("level 0 must have no parent")
	}
	if _, ok := q.ChildOf(root, 4); ok {
		t.Fatalf("quadrant 4 is invalid")
	}
}

func TestQuadTree_QuadrantLayout(t *testing.T) {
	q := mustQuad(t, ext(0, 0, 100, 100), 100, 2)
	root, _ := q.KeyAt(0, 0, 0)
	ne, _ := q.ChildOf(root, 3)
	if got := q.ExtentOf(ne); !got.Equal(ext(50, 50, 100, 100)) {
		t.Fatalf("quadrant 3 = %v want north-east", got)
	}
	sw, _ := q.ChildOf(root, 0)
	if got := q.ExtentOf(sw); !got.Equal(ext(0, 0, 50, 50)) {
		t.Fatalf("quadrant 0 = %v want south-west", got)
	}
}

func TestQuadTree_LastEdgeSnapsToMax(t *testing.T) {
	q := mustQuad(t, ext(0.1, 0.1, 0.7, 0.7), 0, 6)
	cols, rows := q.NumCells(5)
	last, _ := q.KeyAt(5, cols-1, rows-1)
	if e := q.ExtentOf(last); e.XMax != q.Extent().XMax || e.YMax != q.Extent().YMax {
		t.Fatalf("last cell %v does not end at %v", e, q.Extent())
	}
}

func TestParseKey(t *testing.T) {
	q := mustQuad(t, ext(0, 0, 100, 100), 50, 3)
	k, _ := q.KeyAt(2, 5, 7)
	got, err := q.ParseKey(k.String())
	if err != nil || got != k {
		t.Fatalf("ParseKey(%q) = %v, %v", k.String(), got, err)
	}
	for _, bad := range []string{"", "1_2", "a_b_c", "0_9_9", "7_0_0"} {
		if _, err := q.ParseKey(bad); !errors.Is(err, ErrInvalidKey) {
			t.Fatalf("ParseKey(%q): want ErrInvalidKey, got %v", bad, err)
		}
	}
}

func TestKeysIntersecting(t *testing.T) {
	q := mustQuad(t, ext(0, 0, 100, 100), 25, 1)
	got := q.KeysIntersecting(0, ext(30, 30, 45, 45))
	if len(got) != 1 || got[0].Col != 1 || got[0].Row != 1 {
		t.Fatalf("got %v", got)
	}
	// Touching edges count as intersecting.
	if got := q.KeysIntersecting(0, ext(50, 50, 60, 60)); len(got) != 4 {
		t.Fatalf("expected 4 cells around a shared corner, got %v", got)
	}
	if got := q.KeysIntersecting(0, ext(200, 200, 300, 300)); len(got) != 0 {
		t.Fatalf("expected none, got %v", got)
	}
	if got := q.KeysIntersecting(0, model.InfiniteExtent(nil)); len(got) != 16 {
		t.Fatalf("infinite query returned %d keys", len(got))
	}
}

func TestGrid_FixedCountScenario(t *testing.T) {
	g, err := NewGrid(ext(0, 0, 100, 100), 2, 2, 1)
	if err != nil {
		t.Fatal(err)
	}
	keys := g.Keys(0)
	if len(keys) != 4 {
		t.Fatalf("keys=%d", len(keys))
	}
	for _, k := range keys {
		e := g.ExtentOf(k)
		if e.Width() != 50 || e.Height() != 50 {
			t.Fatalf("%s: %v", k, e)
		}
	}
	if g.Fanout() != 1 {
		t.Fatalf("grid fanout=%d", g.Fanout())
	}
}

func TestGrid_BySizeLastCellAbsorbsRemainder(t *testing.T) {
	g, err := NewGridBySize(ext(0, 0, 100, 50), 30, 20, 2)
	if err != nil {
		t.Fatal(err)
	}
	cols, rows := g.NumCells(0)
	if cols != 3 || rows != 2 {
		t.Fatalf("NumCells=%d,%d want 3,2", cols, rows)
	}
	last, _ := g.KeyAt(0, 2, 1)
	if e := g.ExtentOf(last); !e.Equal(ext(60, 20, 100, 50)) {
		t.Fatalf("last cell %v", e)
	}

	// Fan-out 1: the child is the same cell one level finer.
	k, _ := g.KeyAt(0, 1, 1)
	checkPartition(t, g, k)
	c, ok := g.ChildOf(k, 0)
	if !ok || c.Level != 1 || c.Col != 1 || c.Row != 1 {
		t.Fatalf("ChildOf=%v,%v", c, ok)
	}
	if p, _ := g.ParentOf(c); p != k {
		t.Fatalf("ParentOf(child)=%v", p)
	}
	if _, ok := g.ChildOf(k, 1); ok {
		t.Fatalf("grid has only quadrant 0")
	}
}

func TestConstructorErrors(t *testing.T) {
	if _, err := NewQuadTree(model.EmptyExtent(nil), 1, 1, 1); !errors.Is(err, ErrInvalidExtent) {
		t.Fatalf("want ErrInvalidExtent, got %v", err)
	}
	if _, err := NewGrid(ext(0, 0, 1, 1), 1, 1, 0); !errors.Is(err, ErrNoLevels) {
		t.Fatalf("want ErrNoLevels, got %v", err)
	}
	if _, err := NewGridBySize(ext(0, 0, 1, 0), 1, 1, 1); !errors.Is(err, ErrInvalidExtent) {
		t.Fatalf("want ErrInvalidExtent, got %v", err)
	}
}
