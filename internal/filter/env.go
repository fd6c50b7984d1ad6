package filter

import (
	"context"
	"io"
	"log/slog"
	"sort"

	"github.com/mohammed-shakir/vector-scene-tiler/internal/core/model"
	"github.com/mohammed-shakir/vector-scene-tiler/internal/props"
	"github.com/mohammed-shakir/vector-scene-tiler/internal/resource"
	"github.com/mohammed-shakir/vector-scene-tiler/internal/script"
	"github.com/mohammed-shakir/vector-scene-tiler/internal/srs"
)

// OriginProp is the env property where a localizing stage leaves the
// origin it subtracted from every coordinate.
const OriginProp = "localize.origin"

// Terrain answers elevation queries in the terrain SRS. ok is false when
// no height is known at (x, y).
type Terrain interface {
	HeightAt(ctx context.Context, x, y float64) (h float64, ok bool, err error)
}

// Session holds services shared by every cell of one compile run. It is
// read-only while cells execute.
type Session struct {
	Scripts   script.Engine
	Resources *resource.Cache
	SRS       *srs.Registry
	Policy    srs.Policy
}

func NewSession() *Session {
	return &Session{
		Resources: resource.NewCache(),
		SRS:       srs.NewRegistry(),
		Policy:    srs.DefaultPolicy(),
	}
}

// Env is the mutable context of one graph run. Never share an Env
// between two concurrently running cells; use Clone.
type Env struct {
	Extent     model.Extent
	InputSRS   *srs.SRS
	OutputSRS  *srs.SRS
	TerrainSRS *srs.SRS
	Terrain    Terrain
	Props      *props.Bag
	Session    *Session
	Logger     *slog.Logger

	// Origin is the offset a localizing stage subtracted. Features and
	// Extent are stored relative to it: world = local + Origin, in InputSRS.
	Origin [3]float64

	used []string
}

func NewEnv(s *Session) *Env {
	if s == nil {
		s = NewSession()
	}
	return &Env{
		Extent:  model.InfiniteExtent(nil),
		Props:   props.NewBag(),
		Session: s,
	}
}

// Clone copies the template for a new cell. The property bag is copied,
// the resource marks start empty and the session is shared.
func (e *Env) Clone() *Env {
	c := *e
	if e.Props != nil {
		c.Props = e.Props.Clone()
	} else {
		c.Props = props.NewBag()
	}
	c.used = nil
	return &c
}

// MarkResourceUsed records that the cell depends on a session resource.
// The mark is applied to the session cache after the cell completes.
func (e *Env) MarkResourceUsed(name string) {
	for _, u := range e.used {
		if u == name {
			return
		}
	}
	e.used = append(e.used, name)
}

func (e *Env) ResourcesUsed() []string {
	out := append([]string(nil), e.used...)
	sort.Strings(out)
	return out
}

// World adds Origin back to a local coordinate.
func (e *Env) World(x, y, z float64) (float64, float64, float64) {
	return x + e.Origin[0], y + e.Origin[1], z + e.Origin[2]
}

func (e *Env) Log() *slog.Logger {
	if e.Logger != nil {
		return e.Logger
	}
	return discard
}

var discard = slog.New(slog.NewTextHandler(io.Discard, nil))

// Transformer maps input coordinates to the output SRS under the session policy.
func (e *Env) Transformer() (srs.Func, error) {
	return e.Reproject(e.InputSRS, e.OutputSRS)
}

func (e *Env) Reproject(from, to *srs.SRS) (srs.Func, error) {
	p := srs.DefaultPolicy()
	if e.Session != nil {
		p = e.Session.Policy
	}
	return p.Transformer(from, to)
}
