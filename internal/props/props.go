// Package props implements string-keyed typed property values used by
// filters, the layer compiler and the per-run property bag.
package props

import (
	"errors"
	"fmt"
	"sort"
	"strconv"
	"strings"
	"sync"
)

type Kind int

const (
	KindString Kind = iota
	KindFloat
	KindInt
	KindBool
	KindVec
	// KindScript is source text evaluated per feature by the script engine.
	KindScript
)

func (k Kind) String() string {
	switch k {
	case KindFloat:
		return "float"
	case KindInt:
		return "int"
	case KindBool:
		return "bool"
	case KindVec:
		return "vec"
	case KindScript:
		return "script"
	default:
		return "string"
	}
}

func ParseKind(s string) (Kind, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "", "string":
		return KindString, nil
	case "float", "double":
		return KindFloat, nil
	case "int", "integer":
		return KindInt, nil
	case "bool", "boolean":
		return KindBool, nil
	case "vec", "vector":
		return KindVec, nil
	case "script":
		return KindScript, nil
	}
	return 0, fmt.Errorf("unknown property kind %q", s)
}

var ErrWrongKind = errors.New("property has wrong kind")

type Value struct {
	Kind Kind
	s    string
	f    float64
	i    int64
	b    bool
	v    []float64
}

func String(s string) Value   { return Value{Kind: KindString, s: s} }
func Script(src string) Value { return Value{Kind: KindScript, s: src} }
func Float(f float64) Value   { return Value{Kind: KindFloat, f: f} }
func Int(i int64) Value       { return Value{Kind: KindInt, i: i} }
func Bool(b bool) Value       { return Value{Kind: KindBool, b: b} }

func Vec(v ...float64) Value {
	c := make([]float64, len(v))
	copy(c, v)
	return Value{Kind: KindVec, v: c}
}

func (v Value) AsString() string {
	switch v.Kind {
	case KindFloat:
		return strconv.FormatFloat(v.f, 'g', -1, 64)
	case KindInt:
		return strconv.FormatInt(v.i, 10)
	case KindBool:
		return strconv.FormatBool(v.b)
	case KindVec:
		parts := make([]string, len(v.v))
		for i, f := range v.v {
			parts[i] = strconv.FormatFloat(f, 'g', -1, 64)
		}
		return strings.Join(parts, ",")
	default:
		return v.s
	}
}

func (v Value) AsFloat() (float64, error) {
	switch v.Kind {
	case KindFloat:
		return v.f, nil
	case KindInt:
		return float64(v.i), nil
	case KindString:
		f, err := strconv.ParseFloat(strings.TrimSpace(v.s), 64)
		if err != nil {
			return 0, fmt.Errorf("%w: %q is not a number", ErrWrongKind, v.s)
		}
		return f, nil
	}
	return 0, fmt.Errorf("%w: %s is not a number", ErrWrongKind, v.Kind)
}

func (v Value) AsInt() (int64, error) {
	switch v.Kind {
	case KindInt:
		return v.i, nil
	case KindFloat:
		return int64(v.f), nil
	case KindString:
		n, err := strconv.ParseInt(strings.TrimSpace(v.s), 10, 64)
		if err != nil {
			return 0, fmt.Errorf("%w: %q is not an integer", ErrWrongKind, v.s)
		}
		return n, nil
	}
	return 0, fmt.Errorf("%w: %s is not an integer", ErrWrongKind, v.Kind)
}

func (v Value) AsBool() (bool, error) {
	switch v.Kind {
	case KindBool:
		return v.b, nil
	case KindInt:
		return v.i != 0, nil
	case KindString:
		b, err := strconv.ParseBool(strings.TrimSpace(v.s))
		if err != nil {
			return false, fmt.Errorf("%w: %q is not a bool", ErrWrongKind, v.s)
		}
		return b, nil
	}
	return false, fmt.Errorf("%w: %s is not a bool", ErrWrongKind, v.Kind)
}

func (v Value) AsVec() ([]float64, error) {
	switch v.Kind {
	case KindVec:
		out := make([]float64, len(v.v))
		copy(out, v.v)
		return out, nil
	case KindFloat, KindInt:
		f, _ := v.AsFloat()
		return []float64{f}, nil
	case KindString:
		return parseVec(v.s)
	}
	return nil, fmt.Errorf("%w: %s is not a vector", ErrWrongKind, v.Kind)
}

// Parse builds a value of kind k from its textual form.
func Parse(k Kind, s string) (Value, error) {
	switch k {
	case KindString:
		return String(s), nil
	case KindScript:
		return Script(s), nil
	case KindFloat:
		return String(s).asKind(KindFloat)
	case KindInt:
		return String(s).asKind(KindInt)
	case KindBool:
		return String(s).asKind(KindBool)
	case KindVec:
		v, err := parseVec(s)
		if err != nil {
			return Value{}, err
		}
		return Vec(v...), nil
	}
	return Value{}, fmt.Errorf("unknown kind %d", k)
}

func (v Value) asKind(k Kind) (Value, error) {
	switch k {
	case KindFloat:
		f, err := v.AsFloat()
		return Float(f), err
	case KindInt:
		n, err := v.AsInt()
		return Int(n), err
	case KindBool:
		b, err := v.AsBool()
		return Bool(b), err
	}
	return v, nil
}

func parseVec(s string) ([]float64, error) {
	s = strings.Trim(strings.TrimSpace(s), "()[]")
	if s == "" {
		return nil, nil
	}
	fields := strings.FieldsFunc(s, func(r rune) bool { return r == ',' || r == ' ' })
	out := make([]float64, 0, len(fields))
	for _, f := range fields {
		n, err := strconv.ParseFloat(f, 64)
		if err != nil {
			return nil, fmt.Errorf("%w: %q is not a vector", ErrWrongKind, s)
		}
		out = append(out, n)
	}
	return out, nil
}

func (v Value) Equal(o Value) bool {
	if v.Kind != o.Kind {
		return false
	}
	return v.AsString() == o.AsString()
}

type Property struct {
	Name  string
	Value Value
}

// Bag is the name -> value map carried by a per-run environment.
type Bag struct {
	mu sync.RWMutex
	m  map[string]Value
}

func NewBag() *Bag { return &Bag{m: map[string]Value{}} }

func (b *Bag) Set(name string, v Value) {
	b.mu.Lock()
	b.m[name] = v
	b.mu.Unlock()
}

func (b *Bag) Get(name string) (Value, bool) {
	b.mu.RLock()
	defer b.mu.RUnlock()
	v, ok := b.m[name]
	return v, ok
}

func (b *Bag) Delete(name string) {
	b.mu.Lock()
	delete(b.m, name)
	b.mu.Unlock()
}

func (b *Bag) Clone() *Bag {
	b.mu.RLock()
	defer b.mu.RUnlock()
	out := &Bag{m: make(map[string]Value, len(b.m))}
	for k, v := range b.m {
		out.m[k] = v
	}
	return out
}

// List returns properties sorted by name.
func (b *Bag) List() []Property {
	b.mu.RLock()
	defer b.mu.RUnlock()
	out := make([]Property, 0, len(b.m))
	for k, v := range b.m {
		out = append(out, Property{Name: k, Value: v})
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out
}
