// Package scene holds the renderable objects produced by the filter
// pipeline: drawables grouped under nodes, and the paged index nodes that
// reference per-cell content.
package scene

import (
	"encoding/json"
	"errors"
	"fmt"
	"math"
)

type Vec3 struct {
	X float64 `json:"x"`
	Y float64 `json:"y"`
	Z float64 `json:"z"`
}

func (v Vec3) Add(o Vec3) Vec3      { return Vec3{v.X + o.X, v.Y + o.Y, v.Z + o.Z} }
func (v Vec3) Sub(o Vec3) Vec3      { return Vec3{v.X - o.X, v.Y - o.Y, v.Z - o.Z} }
func (v Vec3) Scale(f float64) Vec3 { return Vec3{v.X * f, v.Y * f, v.Z * f} }
func (v Vec3) Len() float64         { return math.Sqrt(v.X*v.X + v.Y*v.Y + v.Z*v.Z) }
func (v Vec3) Dist(o Vec3) float64  { return v.Sub(o).Len() }
func (v Vec3) String() string       { return fmt.Sprintf("(%g %g %g)", v.X, v.Y, v.Z) }

func V(x, y, z float64) Vec3 { return Vec3{x, y, z} }

// Sphere is a bounding sphere. A negative radius marks it as empty.
type Sphere struct {
	Center Vec3    `json:"center"`
	Radius float64 `json:"radius"`
}

func EmptySphere() Sphere { return Sphere{Radius: -1} }

func (s Sphere) Valid() bool { return s.Radius >= 0 }

// ExpandBy grows s to contain p, moving the center toward p.
func (s *Sphere) ExpandBy(p Vec3) {
	if !s.Valid() {
		*s = Sphere{Center: p}
		return
	}
	dv := p.Sub(s.Center)
	r := dv.Len()
	if r <= s.Radius {
		return
	}
	dr := (r - s.Radius) / 2
	s.Center = s.Center.Add(dv.Scale(dr / r))
	s.Radius += dr
}

// ExpandBySphere grows s to the smallest sphere along the center line
// that contains both.
func (s *Sphere) ExpandBySphere(o Sphere) {
	if !o.Valid() {
		return
	}
	if !s.Valid() {
		*s = o
		return
	}
	d := s.Center.Dist(o.Center)
	if d+o.Radius <= s.Radius {
		return
	}
	if d+s.Radius <= o.Radius {
		*s = o
		return
	}
	nr := (s.Radius + d + o.Radius) / 2
	s.Center = s.Center.Add(o.Center.Sub(s.Center).Scale((nr - s.Radius) / d))
	s.Radius = nr
}

// ExpandRadiusBy keeps the center fixed and widens the radius until o fits.
func (s *Sphere) ExpandRadiusBy(o Sphere) {
	if !o.Valid() {
		return
	}
	if !s.Valid() {
		*s = o
		return
	}
	s.Radius = math.Max(s.Radius, s.Center.Dist(o.Center)+o.Radius)
}

func (s Sphere) ContainsSphere(o Sphere, tol float64) bool {
	if !s.Valid() || !o.Valid() {
		return false
	}
	return s.Center.Dist(o.Center)+o.Radius <= s.Radius+tol
}

type PrimitiveMode int

const (
	ModePoints PrimitiveMode = iota
	ModeLineStrip
	ModePolygon
	ModeTriangles
)

func (m PrimitiveMode) String() string {
	switch m {
	case ModeLineStrip:
		return "line_strip"
	case ModePolygon:
		return "polygon"
	case ModeTriangles:
		return "triangles"
	default:
		return "points"
	}
}

type Color [4]float32

var White = Color{1, 1, 1, 1}

// Drawable is one batch of primitives sharing a mode, color and skin.
// Parts holds the start offset of every primitive run in Vertices.
type Drawable struct {
	Mode       PrimitiveMode `json:"mode"`
	Vertices   []Vec3        `json:"vertices"`
	Parts      []int         `json:"parts,omitempty"`
	Color      Color         `json:"color"`
	Skin       string        `json:"skin,omitempty"`
	FeatureOID int64         `json:"oid"`
}

// AddRun appends one primitive run.
func (d *Drawable) AddRun(pts []Vec3) {
	if len(pts) == 0 {
		return
	}
	d.Parts = append(d.Parts, len(d.Vertices))
	d.Vertices = append(d.Vertices, pts...)
}

// Runs splits Vertices back into the primitive runs.
func (d *Drawable) Runs() [][]Vec3 {
	if len(d.Parts) == 0 {
		if len(d.Vertices) == 0 {
			return nil
		}
		return [][]Vec3{d.Vertices}
	}
	out := make([][]Vec3, 0, len(d.Parts))
	for i, start := range d.Parts {
		end := len(d.Vertices)
		if i+1 < len(d.Parts) {
			end = d.Parts[i+1]
		}
		out = append(out, d.Vertices[start:end])
	}
	return out
}

func (d *Drawable) Bound() Sphere {
	s := EmptySphere()
	for _, v := range d.Vertices {
		s.ExpandBy(v)
	}
	return s
}

// SameBatch reports whether two drawables can be merged.
func (d *Drawable) SameBatch(o *Drawable) bool {
	return d.Mode == o.Mode && d.Color == o.Color && d.Skin == o.Skin
}

// Merge appends o's runs to d.
func (d *Drawable) Merge(o *Drawable) {
	for _, r := range o.Runs() {
		d.AddRun(r)
	}
}

// Node is the compiled content of one cell. Vertices are relative to
// Origin when it is set.
type Node struct {
	Name      string      `json:"name,omitempty"`
	Origin    *Vec3       `json:"origin,omitempty"`
	Drawables []*Drawable `json:"drawables,omitempty"`
	Children  []*Node     `json:"children,omitempty"`
	Bound     Sphere      `json:"bound"`
}

// WorldBound is Bound moved by Origin.
func (n *Node) WorldBound() Sphere {
	b := n.Bound
	if n.Origin != nil && b.Valid() {
		b.Center = b.Center.Add(*n.Origin)
	}
	return b
}

// ComputeBound recomputes and stores the bound of n and its subtree.
func (n *Node) ComputeBound() Sphere {
	s := EmptySphere()
	for _, d := range n.Drawables {
		s.ExpandBySphere(d.Bound())
	}
	for _, c := range n.Children {
		s.ExpandBySphere(c.ComputeBound())
	}
	n.Bound = s
	return s
}

func (n *Node) NumDrawables() int {
	c := len(n.Drawables)
	for _, ch := range n.Children {
		c += ch.NumDrawables()
	}
	return c
}

func (n *Node) Empty() bool { return n.NumDrawables() == 0 }

// PagedChild is one reference held by an index node. Paged is true when
// Ref points to another index rather than to content.
type PagedChild struct {
	Ref      string  `json:"ref"`
	MinRange float64 `json:"min_range"`
	MaxRange float64 `json:"max_range"`
	Center   Vec3    `json:"center"`
	Radius   float64 `json:"radius"`
	Paged    bool    `json:"paged,omitempty"`
}

func (c PagedChild) Sphere() Sphere { return Sphere{Center: c.Center, Radius: c.Radius} }

type IndexNode struct {
	Name     string       `json:"name,omitempty"`
	Children []PagedChild `json:"children"`
	Center   Vec3         `json:"center"`
	Radius   float64      `json:"radius"`
}

func (ix *IndexNode) Sphere() Sphere { return Sphere{Center: ix.Center, Radius: ix.Radius} }

// Enclose widens the index's own sphere so it contains every child.
func (ix *IndexNode) Enclose() {
	s := ix.Sphere()
	if len(ix.Children) == 0 && ix.Radius == 0 {
		s = EmptySphere()
	}
	for _, c := range ix.Children {
		s.ExpandRadiusBy(c.Sphere())
	}
	if s.Valid() {
		ix.Center, ix.Radius = s.Center, s.Radius
	}
}

// Object is anything a content writer can persist.
type Object interface {
	Kind() string
	Bounds() Sphere
}

const (
	KindNode  = "node"
	KindIndex = "index"
)

func (n *Node) Kind() string         { return KindNode }
func (n *Node) Bounds() Sphere       { return n.Bound }
func (ix *IndexNode) Kind() string   { return KindIndex }
func (ix *IndexNode) Bounds() Sphere { return ix.Sphere() }

var ErrUnknownKind = errors.New("scene: unknown object kind")

type envelope struct {
	Kind  string          `json:"kind"`
	Value json.RawMessage `json:"value"`
}

// Marshal encodes an object with its kind tag.
func Marshal(o Object) ([]byte, error) {
	if o == nil {
		return nil, errors.New("scene: nil object")
	}
	raw, err := json.Marshal(o)
	if err != nil {
		return nil, fmt.Errorf("scene: encode %s: %w", o.Kind(), err)
	}
	return json.Marshal(envelope{Kind: o.Kind(), Value: raw})
}

func Unmarshal(b []byte) (Object, error) {
	var env envelope
	if err := json.Unmarshal(b, &env); err != nil {
		return nil, fmt.Errorf("scene: decode envelope: %w", err)
	}
	var o Object
	switch env.Kind {
	case KindNode:
		o = &Node{}
	case KindIndex:
		o = &IndexNode{}
	default:
		return nil, fmt.Errorf("%w: %q", ErrUnknownKind, env.Kind)
	}
	if err := json.Unmarshal(env.Value, o); err != nil {
		return nil, fmt.Errorf("scene: decode %s: %w", env.Kind, err)
	}
	return o, nil
}
