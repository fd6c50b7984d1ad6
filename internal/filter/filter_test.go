package filter

import (
	"context"
	"errors"
	"testing"

	"github.com/mohammed-shakir/vector-scene-tiler/internal/core/model"
	"github.com/mohammed-shakir/vector-scene-tiler/internal/props"
	"github.com/mohammed-shakir/vector-scene-tiler/internal/scene"
)

// stub is a configurable filter used to exercise graphs.
type stub struct {
	Base
	in, out Capability
	tag     string
	lie     bool
	fail    error
}

func newStub(in, out Capability) *stub {
	s := &stub{Base: NewBase("stub"), in: in, out: out}
	s.Bind(StringParam("tag", &s.tag), BoolParam("lie", &s.lie))
	return s
}

func (s *stub) Accepts() Capability  { return s.in }
func (s *stub) Produces() Capability { return s.out }

func (s *stub) Clone() Filter {
	c := newStub(s.in, s.out)
	c.SetName(s.Name())
	_ = CopyProperties(c, s)
	return c
}

func (s *stub) Process(_ context.Context, in Stream, env *Env) (Stream, error) {
	if err := Expect(in, s.in); err != nil {
		return Stream{}, err
	}
	if s.fail != nil {
		return Stream{}, s.fail
	}
	if s.tag != "" {
		env.Props.Set("last", props.String(s.tag))
		env.MarkResourceUsed(s.tag)
	}
	if s.lie {
		return Nodes(nil), nil
	}
	switch s.out {
	case CapDrawables:
		return Drawables([]*scene.Drawable{{}}), nil
	case CapNodes:
		return Nodes([]*scene.Node{{Name: "n"}}), nil
	}
	return in, nil
}

func TestNewGraph_CapabilityChecks(t *testing.T) {
	cases := []struct {
		name   string
		stages []Filter
		want   error
	}{
		{"empty", nil, ErrEmptyGraph},
		{"first not features", []Filter{newStub(CapDrawables, CapNodes)}, ErrCapabilityMismatch},
		{"gap", []Filter{newStub(CapFeatures, CapDrawables), newStub(CapFeatures, CapFeatures)}, ErrCapabilityMismatch},
		{"ok", []Filter{
			newStub(CapFeatures, CapFeatures),
			newStub(CapFeatures, CapDrawables),
			newStub(CapDrawables, CapNodes),
		}, nil},
	}
	for _, c := range cases {
		_, err := NewGraph(c.name, c.stages...)
		if !errors.Is(err, c.want) {
			t.Errorf("%s: got %v want %v", c.name, err, c.want)
		}
	}
}

func TestGraph_ProcessRunsStagesInOrder(t *testing.T) {
	a := newStub(CapFeatures, CapFeatures)
	_ = a.SetProperty("tag", props.String("first"))
	b := newStub(CapFeatures, CapDrawables)
	_ = b.SetProperty("tag", props.String("second"))
	c := newStub(CapDrawables, CapNodes)

	g, err := NewGraph("g", a, b, c)
	if err != nil {
		t.Fatal(err)
	}
	if g.Output() != CapNodes {
		t.Fatalf("Output=%s", g.Output())
	}

	env := NewEnv(nil)
	out, err := g.Process(context.Background(), []*model.Feature{model.NewFeature(1)}, env)
	if err != nil {
		t.Fatal(err)
	}
	if out.Kind != CapNodes || out.Len() != 1 {
		t.Fatalf("got %+v", out)
	}
	if v, _ := env.Props.Get("last"); v.AsString() != "second" {
		t.Fatalf("stages ran out of order, last=%q", v.AsString())
	}
	if got := env.ResourcesUsed(); len(got) != 2 || got[0] != "first" || got[1] != "second" {
		t.Fatalf("ResourcesUsed=%v", got)
	}
}

func TestGraph_ProcessRejectsUndeclaredOutput(t *testing.T) {
	liar := newStub(CapFeatures, CapFeatures)
	_ = liar.SetProperty("lie", props.Bool(true))
	g, err := NewGraph("g", liar)
	if err != nil {
		t.Fatal(err)
	}
	if _, err := g.Process(context.Background(), nil, NewEnv(nil)); !errors.Is(err, ErrUnexpectedOutput) {
		t.Fatalf("want ErrUnexpectedOutput, got %v", err)
	}
}

func TestGraph_ProcessWrapsStageError(t *testing.T) {
	boom := errors.New("boom")
	s := newStub(CapFeatures, CapFeatures)
	s.fail = boom
	g, _ := NewGraph("g", s)
	if _, err := g.Process(context.Background(), nil, NewEnv(nil)); !errors.Is(err, boom) {
		t.Fatalf("want wrapped boom, got %v", err)
	}
}

func TestGraph_InheritClonesStages(t *testing.T) {
	a := newStub(CapFeatures, CapFeatures)
	_ = a.SetProperty("tag", props.String("parent"))
	parent, _ := NewGraph("parent", a)

	child, err := parent.Inherit("child", newStub(CapFeatures, CapDrawables))
	if err != nil {
		t.Fatal(err)
	}
	if child.Len() != 2 || child.Output() != CapDrawables {
		t.Fatalf("child has %d stages, output %s", child.Len(), child.Output())
	}
	inherited := child.Stages()[0]
	if inherited == Filter(a) {
		t.Fatalf("inherited stage must be a copy")
	}
	_ = a.SetProperty("tag", props.String("changed"))
	for _, p := range inherited.Properties() {
		if p.Name == "tag" && p.Value.AsString() != "parent" {
			t.Fatalf("clone follows parent mutation: %q", p.Value.AsString())
		}
	}

	if _, err := parent.Inherit("bad", newStub(CapNodes, CapNodes)); !errors.Is(err, ErrCapabilityMismatch) {
		t.Fatalf("want ErrCapabilityMismatch, got %v", err)
	}
}

func TestBase_SetPropertyConverts(t *testing.T) {
	s := newStub(CapFeatures, CapFeatures)
	if err := s.SetProperty("lie", props.String("true")); err != nil || !s.lie {
		t.Fatalf("string to bool conversion failed: %v", err)
	}
	if err := s.SetProperty("lie", props.String("maybe")); !errors.Is(err, props.ErrWrongKind) {
		t.Fatalf("want ErrWrongKind, got %v", err)
	}
	if err := s.SetProperty("nope", props.Int(1)); !errors.Is(err, ErrUnknownProperty) {
		t.Fatalf("want ErrUnknownProperty, got %v", err)
	}
	_ = s.SetProperty("name", props.String("renamed"))
	if s.Name() != "renamed" || s.Properties()[0].Value.AsString() != "renamed" {
		t.Fatalf("name property not applied")
	}
}

func TestRegistry(t *testing.T) {
	r := NewRegistry()
	r.MustRegister("stub", func() Filter { return newStub(CapFeatures, CapFeatures) })
	if err := r.Register("STUB", func() Filter { return nil }); err == nil {
		t.Fatalf("duplicate registration must fail")
	}
	f, err := r.New(" Stub ")
	if err != nil || f.Type() != "stub" {
		t.Fatalf("New got %v %v", f, err)
	}
	if _, err := r.New("missing"); !errors.Is(err, ErrUnknownFilter) {
		t.Fatalf("want ErrUnknownFilter, got %v", err)
	}
	if got := r.Types(); len(got) != 1 || got[0] != "stub" {
		t.Fatalf("Types=%v", got)
	}
}

func TestEnv_CloneIsolatesCellState(t *testing.T) {
	tmpl := NewEnv(nil)
	tmpl.Props.Set("k", props.Int(1))
	tmpl.MarkResourceUsed("brick")

	c := tmpl.Clone()
	c.Props.Set("k", props.Int(2))
	c.MarkResourceUsed("glass")
	c.MarkResourceUsed("glass")

	if v, _ := tmpl.Props.Get("k"); v.AsString() != "1" {
		t.Fatalf("clone wrote through to template")
	}
	if got := c.ResourcesUsed(); len(got) != 1 || got[0] != "glass" {
		t.Fatalf("clone resources=%v", got)
	}
	if c.Session != tmpl.Session {
		t.Fatalf("session must be shared")
	}
}
