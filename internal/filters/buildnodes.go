package filters

import (
	"context"

	"github.com/mohammed-shakir/vector-scene-tiler/internal/filter"
	"github.com/mohammed-shakir/vector-scene-tiler/internal/scene"
)

// BuildNodes wraps all drawables in one node. With merge set, drawables
// of the same batch are folded together in first-seen order.
type BuildNodes struct {
	filter.Base
	NodeName string
	Merge    bool
}

func NewBuildNodes() *BuildNodes {
	b := &BuildNodes{Base: filter.NewBase("buildnodes"), Merge: true}
	b.Bind(
		filter.StringParam("node_name", &b.NodeName),
		filter.BoolParam("merge", &b.Merge),
	)
	return b
}

func (*BuildNodes) Accepts() filter.Capability  { return filter.CapDrawables }
func (*BuildNodes) Produces() filter.Capability { return filter.CapNodes }

func (b *BuildNodes) Clone() filter.Filter {
	n := NewBuildNodes()
	_ = filter.CopyProperties(n, b)
	return n
}

func (b *BuildNodes) Process(ctx context.Context, in filter.Stream, env *filter.Env) (filter.Stream, error) {
	if err := filter.Expect(in, filter.CapDrawables); err != nil {
		return filter.Stream{}, err
	}
	if err := ctx.Err(); err != nil {
		return filter.Stream{}, err
	}
	if len(in.Drawables) == 0 {
		return filter.Nodes(nil), nil
	}
	ds := in.Drawables
	if b.Merge {
		ds = merge(ds)
	}
	n := &scene.Node{Name: b.NodeName, Drawables: ds}
	n.ComputeBound()
	return filter.Nodes([]*scene.Node{n}), nil
}

func merge(ds []*scene.Drawable) []*scene.Drawable {
	var out []*scene.Drawable
	for _, d := range ds {
		merged := false
		for _, o := range out {
			if o.SameBatch(d) {
				o.Merge(d)
				o.FeatureOID = 0
				merged = true
				break
			}
		}
		if !merged {
			c := *d
			c.Vertices = append([]scene.Vec3(nil), d.Vertices...)
			c.Parts = append([]int(nil), d.Parts...)
			if len(c.Parts) == 0 {
				c.Parts = []int{0}
			}
			out = append(out, &c)
		}
	}
	return out
}
