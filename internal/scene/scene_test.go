package scene

import (
	"errors"
	"math"
	"testing"
)

func TestSphere_ExpandByPoints(t *testing.T) {
	s := EmptySphere()
	pts := []Vec3{V(0, 0, 0), V(10, 0, 0), V(0, 10, 0), V(10, 10, 5)}
	for _, p := range pts {
		s.ExpandBy(p)
	}
	for _, p := range pts {
		if d := s.Center.Dist(p); d > s.Radius+1e-9 {
			t.Fatalf("point %v outside sphere %+v (d=%v)", p, s, d)
		}
	}
}

func TestSphere_ExpandBySphere(t *testing.T) {
	a := Sphere{Center: V(0, 0, 0), Radius: 1}
	b := Sphere{Center: V(10, 0, 0), Radius: 2}
	a.ExpandBySphere(b)
	if math.Abs(a.Radius-6.5) > 1e-12 || math.Abs(a.Center.X-5.5) > 1e-12 {
		t.Fatalf("got %+v", a)
	}

	inner := Sphere{Center: V(1, 0, 0), Radius: 0.5}
	before := a
	a.ExpandBySphere(inner)
	if a != before {
		t.Fatalf("contained sphere must not change bound")
	}
}

func TestIndexNode_EncloseContainsChildren(t *testing.T) {
	ix := &IndexNode{Center: V(50, 50, 0), Radius: 35.36}
	ix.Children = []PagedChild{
		{Ref: "a", Center: V(25, 25, 0), Radius: 35.36},
		{Ref: "b", Center: V(75, 75, 0), Radius: 40},
	}
	ix.Enclose()
	if ix.Center != V(50, 50, 0) {
		t.Fatalf("center moved: %v", ix.Center)
	}
	for _, c := range ix.Children {
		if !ix.Sphere().ContainsSphere(c.Sphere(), 1e-9) {
			t.Fatalf("child %s not enclosed by %+v", c.Ref, ix.Sphere())
		}
	}
}

func TestDrawable_RunsAndMerge(t *testing.T) {
	a := &Drawable{Mode: ModePolygon, Color: White}
	a.AddRun([]Vec3{V(0, 0, 0), V(1, 0, 0), V(1, 1, 0)})
	b := &Drawable{Mode: ModePolygon, Color: White}
	b.AddRun([]Vec3{V(5, 5, 0), V(6, 5, 0), V(6, 6, 0)})
	b.AddRun([]Vec3{V(8, 8, 0), V(9, 8, 0), V(9, 9, 0)})

	if !a.SameBatch(b) {
		t.Fatalf("expected same batch")
	}
	a.Merge(b)
	runs := a.Runs()
	if len(runs) != 3 || len(a.Vertices) != 9 {
		t.Fatalf("runs=%d vertices=%d", len(runs), len(a.Vertices))
	}
	if runs[2][0] != V(8, 8, 0) {
		t.Fatalf("third run starts at %v", runs[2][0])
	}
}

func TestMarshal_RoundTrip(t *testing.T) {
	n := &Node{Name: "cell"}
	d := &Drawable{Mode: ModeLineStrip, Color: Color{1, 0, 0, 1}, FeatureOID: 9}
	d.AddRun([]Vec3{V(0, 0, 0), V(3, 4, 0)})
	n.Drawables = append(n.Drawables, d)
	n.ComputeBound()

	b, err := Marshal(n)
	if err != nil {
		t.Fatal(err)
	}
	o, err := Unmarshal(b)
	if err != nil {
		t.Fatal(err)
	}
	got, ok := o.(*Node)
	if !ok {
		t.Fatalf("decoded %T", o)
	}
	if got.Name != "cell" || got.NumDrawables() != 1 || got.Bound != n.Bound {
		t.Fatalf("got %+v", got)
	}
	if got.Drawables[0].FeatureOID != 9 || got.Drawables[0].Color != d.Color {
		t.Fatalf("drawable fields lost: %+v", got.Drawables[0])
	}

	if _, err := Unmarshal([]byte(`{"kind":"mesh","value":{}}`)); !errors.Is(err, ErrUnknownKind) {
		t.Fatalf("want ErrUnknownKind, got %v", err)
	}
}

func TestNode_WorldBound(t *testing.T) {
	n := &Node{Bound: Sphere{Center: V(1, 2, 0), Radius: 3}}
	if got := n.WorldBound(); got != n.Bound {
		t.Fatalf("without origin WorldBound=%v", got)
	}
	o := V(100, 200, 5)
	n.Origin = &o
	if got := n.WorldBound(); got.Center != V(101, 202, 5) || got.Radius != 3 {
		t.Fatalf("WorldBound=%v", got)
	}
}
