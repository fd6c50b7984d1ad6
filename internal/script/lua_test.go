package script

import (
	"context"
	"errors"
	"reflect"
	"sync"
	"testing"

	"github.com/mohammed-shakir/vector-scene-tiler/internal/core/model"
	"github.com/mohammed-shakir/vector-scene-tiler/internal/props"
)

func building(height float64, kind string) *model.Feature {
	f := model.NewFeature(42)
	f.SetAttr("height", model.FloatAttr(height))
	f.SetAttr("kind", model.StringAttr(kind))
	return f
}

func TestLuaEngine_Expressions(t *testing.T) {
	e := NewLuaEngine(8)
	vars := props.NewBag()
	vars.Set("scale", props.Float(2))
	vars.Set("tint", props.Vec(1, 0, 0, 1))

	cases := []struct {
		src  string
		want string
	}{
		{"feature.attrs.height * env.scale", "25"},
		{"feature.oid", "42"},
		{"string.upper(feature.attrs.kind)", "HOUSE"},
		{"env.tint", "1,0,0,1"},
		{"local h = feature.attrs.height\nif h > 10 then return 'tall' end\nreturn 'low'", "tall"},
	}
	for _, c := range cases {
		r, err := e.Run(context.Background(), c.src, building(12.5, "house"), vars)
		if err != nil {
			t.Fatalf("%q: %v", c.src, err)
		}
		if got := r.String(); got != c.want {
			t.Fatalf("%q: got %q want %q", c.src, got, c.want)
		}
	}
}

func TestLuaEngine_Errors(t *testing.T) {
	e := NewLuaEngine(8)
	if _, err := e.Run(context.Background(), "1 +", nil, nil); !errors.Is(err, ErrCompile) {
		t.Fatalf("want ErrCompile, got %v", err)
	}
	if _, err := e.Run(context.Background(), "error('boom')", nil, nil); !errors.Is(err, ErrRuntime) {
		t.Fatalf("want ErrRuntime, got %v", err)
	}
}

func TestLuaEngine_ConcurrentUse(t *testing.T) {
	e := NewLuaEngine(4)
	var wg sync.WaitGroup
	errs := make(chan error, 32)
	for i := 0; i < 32; i++ {
		wg.Add(1)
		go func(h float64) {
			defer wg.Done()
			r, err := e.Run(context.Background(), "feature.attrs.height + 1", building(h, "x"), nil)
			if err != nil {
				errs <- err
				return
			}
			if n, _ := r.Number(); n != h+1 {
				errs <- errors.New("wrong result from shared engine")
			}
		}(float64(i))
	}
	wg.Wait()
	close(errs)
	for err := range errs {
		t.Fatal(err)
	}
}

func TestResult_Coercion(t *testing.T) {
	v, err := StringResult("0.5, 0.5, 1").Vector()
	if err != nil || !reflect.DeepEqual(v, []float64{0.5, 0.5, 1}) {
		t.Fatalf("Vector got %v %v", v, err)
	}
	if _, err := (Result{}).Number(); !errors.Is(err, ErrCoerce) {
		t.Fatalf("nil result must not coerce to number")
	}
	n, err := StringResult(" 3.5 ").Number()
	if err != nil || n != 3.5 {
		t.Fatalf("Number got %v %v", n, err)
	}
}
