package model

import (
	"fmt"
	"strconv"
)

type AttrType int

const (
	AttrString AttrType = iota
	AttrInt
	AttrFloat
	AttrBool
)

type Attribute struct {
	Type AttrType
	s    string
	i    int64
	f    float64
	b    bool
}

func StringAttr(v string) Attribute { return Attribute{Type: AttrString, s: v} }
func IntAttr(v int64) Attribute     { return Attribute{Type: AttrInt, i: v} }
func FloatAttr(v float64) Attribute { return Attribute{Type: AttrFloat, f: v} }
func BoolAttr(v bool) Attribute     { return Attribute{Type: AttrBool, b: v} }

func (a Attribute) String() string {
	switch a.Type {
	case AttrInt:
		return strconv.FormatInt(a.i, 10)
	case AttrFloat:
		return strconv.FormatFloat(a.f, 'g', -1, 64)
	case AttrBool:
		return strconv.FormatBool(a.b)
	default:
		return a.s
	}
}

func (a Attribute) Float() float64 {
	switch a.Type {
	case AttrInt:
		return float64(a.i)
	case AttrFloat:
		return a.f
	case AttrBool:
		if a.b {
			return 1
		}
		return 0
	default:
		f, _ := strconv.ParseFloat(a.s, 64)
		return f
	}
}

func (a Attribute) Int() int64 {
	switch a.Type {
	case AttrInt:
		return a.i
	case AttrFloat:
		return int64(a.f)
	case AttrBool:
		if a.b {
			return 1
		}
		return 0
	default:
		n, _ := strconv.ParseInt(a.s, 10, 64)
		return n
	}
}

func (a Attribute) Bool() bool {
	switch a.Type {
	case AttrBool:
		return a.b
	case AttrInt:
		return a.i != 0
	case AttrFloat:
		return a.f != 0
	default:
		b, _ := strconv.ParseBool(a.s)
		return b
	}
}

// Value returns the attribute as a plain Go value.
func (a Attribute) Value() any {
	switch a.Type {
	case AttrInt:
		return a.i
	case AttrFloat:
		return a.f
	case AttrBool:
		return a.b
	default:
		return a.s
	}
}

// AttrFrom converts decoded JSON-ish values.
func AttrFrom(v any) (Attribute, error) {
	switch t := v.(type) {
	case string:
		return StringAttr(t), nil
	case bool:
		return BoolAttr(t), nil
	case int:
		return IntAttr(int64(t)), nil
	case int64:
		return IntAttr(t), nil
	case float64:
		if t == float64(int64(t)) {
			return IntAttr(int64(t)), nil
		}
		return FloatAttr(t), nil
	case float32:
		return FloatAttr(float64(t)), nil
	case nil:
		return StringAttr(""), nil
	default:
		return Attribute{}, fmt.Errorf("unsupported attribute value %T", v)
	}
}

// Feature is owned by its source; pipeline stages mutate the copy they are handed.
type Feature struct {
	OID    int64
	Shapes []Shape
	Attrs  map[string]Attribute
}

func NewFeature(oid int64, shapes ...Shape) *Feature {
	return &Feature{OID: oid, Shapes: shapes, Attrs: map[string]Attribute{}}
}

func (f *Feature) Extent() Extent {
	e := EmptyExtent(nil)
	for _, s := range f.Shapes {
		e.Union(s.Extent())
	}
	return e
}

func (f *Feature) Attr(name string) (Attribute, bool) {
	a, ok := f.Attrs[name]
	return a, ok
}

func (f *Feature) SetAttr(name string, a Attribute) {
	if f.Attrs == nil {
		f.Attrs = map[string]Attribute{}
	}
	f.Attrs[name] = a
}

func (f *Feature) Clone() *Feature {
	out := &Feature{
		OID:    f.OID,
		Shapes: make([]Shape, len(f.Shapes)),
		Attrs:  make(map[string]Attribute, len(f.Attrs)),
	}
	for i, s := range f.Shapes {
		out.Shapes[i] = s.Clone()
	}
	for k, v := range f.Attrs {
		out.Attrs[k] = v
	}
	return out
}
