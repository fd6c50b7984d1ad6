package filter

import (
	"fmt"

	"github.com/mohammed-shakir/vector-scene-tiler/internal/props"
)

// Param binds one declarative property to a field of a filter. With Any
// set, values of every kind are stored without conversion.
type Param struct {
	Name string
	Kind props.Kind
	Any  bool
	Get  func() props.Value
	Set  func(props.Value) error
}

// Base implements naming and the property surface for concrete filters.
// Embed it and call Bind from the constructor.
type Base struct {
	typ    string
	name   string
	params []Param
}

func NewBase(typ string) Base { return Base{typ: typ, name: typ} }

func (b *Base) Bind(ps ...Param) { b.params = append(b.params, ps...) }

func (b *Base) Type() string { return b.typ }
func (b *Base) Name() string { return b.name }

func (b *Base) SetName(n string) {
	if n == "" {
		n = b.typ
	}
	b.name = n
}

// Properties lists the bound parameters in declaration order; "name" is first.
func (b *Base) Properties() []props.Property {
	out := make([]props.Property, 0, len(b.params)+1)
	out = append(out, props.Property{Name: "name", Value: props.String(b.name)})
	for _, p := range b.params {
		out = append(out, props.Property{Name: p.Name, Value: p.Get()})
	}
	return out
}

// SetProperty converts v to the parameter's kind before assigning it.
func (b *Base) SetProperty(name string, v props.Value) error {
	if name == "name" {
		b.SetName(v.AsString())
		return nil
	}
	for _, p := range b.params {
		if p.Name != name {
			continue
		}
		if !p.Any && v.Kind != p.Kind {
			cv, err := props.Parse(p.Kind, v.AsString())
			if err != nil {
				return fmt.Errorf("%s.%s: %w", b.typ, name, err)
			}
			v = cv
		}
		if err := p.Set(v); err != nil {
			return fmt.Errorf("%s.%s: %w", b.typ, name, err)
		}
		return nil
	}
	return fmt.Errorf("%w: %s.%s", ErrUnknownProperty, b.typ, name)
}

// CopyProperties copies every property of src onto dst. Filters use it to
// implement Clone without sharing bound closures.
func CopyProperties(dst, src Filter) error {
	for _, p := range src.Properties() {
		if err := dst.SetProperty(p.Name, p.Value); err != nil {
			return err
		}
	}
	return nil
}

func FloatParam(name string, dst *float64) Param {
	return Param{
		Name: name, Kind: props.KindFloat,
		Get: func() props.Value { return props.Float(*dst) },
		Set: func(v props.Value) (err error) { *dst, err = v.AsFloat(); return },
	}
}

func IntParam(name string, dst *int) Param {
	return Param{
		Name: name, Kind: props.KindInt,
		Get: func() props.Value { return props.Int(int64(*dst)) },
		Set: func(v props.Value) error {
			n, err := v.AsInt()
			*dst = int(n)
			return err
		},
	}
}

func BoolParam(name string, dst *bool) Param {
	return Param{
		Name: name, Kind: props.KindBool,
		Get: func() props.Value { return props.Bool(*dst) },
		Set: func(v props.Value) (err error) { *dst, err = v.AsBool(); return },
	}
}

func StringParam(name string, dst *string) Param {
	return Param{
		Name: name, Kind: props.KindString,
		Get: func() props.Value { return props.String(*dst) },
		Set: func(v props.Value) error { *dst = v.AsString(); return nil },
	}
}

func VecParam(name string, dst *[]float64) Param {
	return Param{
		Name: name, Kind: props.KindVec,
		Get: func() props.Value { return props.Vec(*dst...) },
		Set: func(v props.Value) (err error) { *dst, err = v.AsVec(); return },
	}
}

// ValueParam stores the value untouched; used for properties that may be
// either a literal or a script.
func ValueParam(name string, dst *props.Value) Param {
	return Param{
		Name: name, Kind: dst.Kind, Any: true,
		Get: func() props.Value { return *dst },
		Set: func(v props.Value) error { *dst = v; return nil },
	}
}
