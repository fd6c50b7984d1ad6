package script

import (
	"context"
	"fmt"
	"strings"
	"sync"

	"github.com/cespare/xxhash/v2"
	lru "github.com/hashicorp/golang-lru/v2"
	lua "github.com/yuin/gopher-lua"
	"github.com/yuin/gopher-lua/parse"

	"github.com/mohammed-shakir/vector-scene-tiler/internal/core/model"
	"github.com/mohammed-shakir/vector-scene-tiler/internal/props"
)

// LuaEngine runs scripts on pooled Lua states. Compiled chunks are cached
// by a hash of their source.
//
// Scripts see two globals: feature (oid, attrs) and env (the property
// bag). A bare expression is evaluated as if prefixed by "return".
type LuaEngine struct {
	states sync.Pool
	protos *lru.Cache[uint64, *lua.FunctionProto]
}

func NewLuaEngine(cacheSize int) *LuaEngine {
	if cacheSize <= 0 {
		cacheSize = 256
	}
	c, _ := lru.New[uint64, *lua.FunctionProto](cacheSize)
	e := &LuaEngine{protos: c}
	e.states.New = func() any { return newState() }
	return e
}

var libs = []struct {
	name string
	fn   lua.LGFunction
}{
	{lua.BaseLibName, lua.OpenBase},
	{lua.MathLibName, lua.OpenMath},
	{lua.StringLibName, lua.OpenString},
	{lua.TabLibName, lua.OpenTable},
}

func newState() *lua.LState {
	L := lua.NewState(lua.Options{SkipOpenLibs: true})
	for _, lib := range libs {
		if err := L.CallByParam(lua.P{Fn: L.NewFunction(lib.fn), NRet: 0, Protect: true}, lua.LString(lib.name)); err != nil {
			panic(fmt.Sprintf("script: open %s: %v", lib.name, err))
		}
	}
	return L
}

func (e *LuaEngine) compile(src string) (*lua.FunctionProto, error) {
	key := xxhash.Sum64String(src)
	if p, ok := e.protos.Get(key); ok {
		return p, nil
	}
	p, err := compileExpr(src)
	if err != nil {
		return nil, err
	}
	e.protos.Add(key, p)
	return p, nil
}

func compileExpr(src string) (*lua.FunctionProto, error) {
	// Try the expression form first, then fall back to a chunk.
	for _, body := range []string{"return " + src, src} {
		chunk, err := parse.Parse(strings.NewReader(body), "<script>")
		if err != nil {
			continue
		}
		p, err := lua.Compile(chunk, "<script>")
		if err != nil {
			return nil, fmt.Errorf("%w: %v", ErrCompile, err)
		}
		return p, nil
	}
	_, err := parse.Parse(strings.NewReader(src), "<script>")
	return nil, fmt.Errorf("%w: %v", ErrCompile, err)
}

func (e *LuaEngine) Run(ctx context.Context, src string, f *model.Feature, vars *props.Bag) (Result, error) {
	proto, err := e.compile(src)
	if err != nil {
		return Result{}, err
	}
	L := e.states.Get().(*lua.LState)
	defer e.states.Put(L)

	L.SetContext(ctx)
	defer L.RemoveContext()
	L.SetTop(0)

	L.SetGlobal("feature", featureTable(L, f))
	L.SetGlobal("env", bagTable(L, vars))

	L.Push(L.NewFunctionFromProto(proto))
	if err := L.PCall(0, 1, nil); err != nil {
		return Result{}, fmt.Errorf("%w: %v", ErrRuntime, err)
	}
	ret := L.Get(-1)
	L.Pop(1)
	return fromLua(ret), nil
}

func featureTable(L *lua.LState, f *model.Feature) *lua.LTable {
	t := L.NewTable()
	attrs := L.NewTable()
	t.RawSetString("attrs", attrs)
	if f == nil {
		return t
	}
	t.RawSetString("oid", lua.LNumber(f.OID))
	if len(f.Shapes) > 0 {
		t.RawSetString("type", lua.LString(f.Shapes[0].Type.String()))
	}
	for k, a := range f.Attrs {
		switch a.Type {
		case model.AttrInt, model.AttrFloat:
			attrs.RawSetString(k, lua.LNumber(a.Float()))
		case model.AttrBool:
			attrs.RawSetString(k, lua.LBool(a.Bool()))
		default:
			attrs.RawSetString(k, lua.LString(a.String()))
		}
	}
	return t
}

func bagTable(L *lua.LState, b *props.Bag) *lua.LTable {
	t := L.NewTable()
	if b == nil {
		return t
	}
	for _, p := range b.List() {
		v := p.Value
		switch v.Kind {
		case props.KindFloat, props.KindInt:
			f, _ := v.AsFloat()
			t.RawSetString(p.Name, lua.LNumber(f))
		case props.KindBool:
			bv, _ := v.AsBool()
			t.RawSetString(p.Name, lua.LBool(bv))
		case props.KindVec:
			vec, _ := v.AsVec()
			vt := L.NewTable()
			for _, x := range vec {
				vt.Append(lua.LNumber(x))
			}
			t.RawSetString(p.Name, vt)
		default:
			t.RawSetString(p.Name, lua.LString(v.AsString()))
		}
	}
	return t
}

func fromLua(v lua.LValue) Result {
	switch lv := v.(type) {
	case lua.LNumber:
		return NumberResult(float64(lv))
	case lua.LString:
		return StringResult(string(lv))
	case lua.LBool:
		return BoolResult(bool(lv))
	case *lua.LTable:
		n := lv.Len()
		out := make([]float64, 0, n)
		for i := 1; i <= n; i++ {
			if num, ok := lv.RawGetInt(i).(lua.LNumber); ok {
				out = append(out, float64(num))
			}
		}
		return VectorResult(out)
	}
	return Result{}
}
