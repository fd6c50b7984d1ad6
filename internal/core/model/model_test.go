package model

import (
	"math"
	"testing"
)

func TestExtent_MinMaxNormalised(t *testing.T) {
	e := NewExtent(10, 20, 0, 5, nil)
	if e.XMin != 0 || e.XMax != 10 || e.YMin != 5 || e.YMax != 20 {
		t.Fatalf("not normalised: %v", e)
	}
}

func TestExtent_ContainsIntersects(t *testing.T) {
	outer := NewExtent(0, 0, 100, 100, nil)
	inner := NewExtent(10, 10, 20, 20, nil)
	touching := NewExtent(100, 0, 150, 50, nil)
	far := NewExtent(200, 200, 300, 300, nil)

	cases := []struct {
		name       string
		o          Extent
		contains   bool
		intersects bool
	}{
		{"inner", inner, true, true},
		{"touching", touching, false, true},
		{"far", far, false, false},
		{"self", outer, true, true},
		{"empty", EmptyExtent(nil), false, false},
	}
	for _, c := range cases {
		if got := outer.Contains(c.o); got != c.contains {
			t.Errorf("%s: Contains=%v want %v", c.name, got, c.contains)
		}
		if got := outer.Intersects(c.o); got != c.intersects {
			t.Errorf("%s: Intersects=%v want %v", c.name, got, c.intersects)
		}
	}

	if !InfiniteExtent(nil).Contains(far) {
		t.Fatalf("infinite extent must contain everything")
	}
}

func TestExtent_UnionAndSquare(t *testing.T) {
	e := EmptyExtent(nil)
	e.Union(NewExtent(0, 0, 10, 5, nil))
	e.Union(NewExtent(-5, 2, 3, 8, nil))
	if !e.Equal(NewExtent(-5, 0, 10, 8, nil)) {
		t.Fatalf("union got %v", e)
	}

	sq := NewExtent(0, 0, 100, 50, nil).Square()
	if sq.Width() != 100 || sq.Height() != 100 {
		t.Fatalf("square got %v", sq)
	}
	if cx, cy := sq.Center(); cx != 50 || cy != 25 {
		t.Fatalf("square moved center to (%v,%v)", cx, cy)
	}
}

func TestPart_AreaAndOpen(t *testing.T) {
	closed := Part{Pt2(0, 0, nil), Pt2(4, 0, nil), Pt2(4, 3, nil), Pt2(0, 3, nil), Pt2(0, 0, nil)}
	if n := len(closed.Open()); n != 4 {
		t.Fatalf("Open len=%d want 4", n)
	}
	if a := closed.SignedArea(); math.Abs(a-12) > 1e-12 {
		t.Fatalf("area=%v want 12", a)
	}
	rev := Part{Pt2(0, 3, nil), Pt2(4, 3, nil), Pt2(4, 0, nil), Pt2(0, 0, nil)}
	if a := rev.SignedArea(); a >= 0 {
		t.Fatalf("clockwise ring should have negative area, got %v", a)
	}
}

func TestFeature_CloneIsDeep(t *testing.T) {
	f := NewFeature(7, Shape{Type: ShapeLine, Parts: []Part{{Pt2(0, 0, nil), Pt2(1, 1, nil)}}})
	f.SetAttr("name", StringAttr("a"))

	c := f.Clone()
	c.Shapes[0].Parts[0][0].X = 99
	c.SetAttr("name", StringAttr("b"))

	if f.Shapes[0].Parts[0][0].X != 0 {
		t.Fatalf("clone shares point storage")
	}
	if a, _ := f.Attr("name"); a.String() != "a" {
		t.Fatalf("clone shares attribute map")
	}
}

func TestAttrFrom(t *testing.T) {
	a, err := AttrFrom(float64(12))
	if err != nil || a.Type != AttrInt || a.Int() != 12 {
		t.Fatalf("integral float should become int, got %+v err=%v", a, err)
	}
	a, _ = AttrFrom(2.5)
	if a.Type != AttrFloat || a.Float() != 2.5 {
		t.Fatalf("got %+v", a)
	}
	if _, err := AttrFrom([]int{1}); err == nil {
		t.Fatalf("expected error for slice")
	}
}
