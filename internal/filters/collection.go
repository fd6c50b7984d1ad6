package filters

import (
	"context"

	"github.com/mohammed-shakir/vector-scene-tiler/internal/core/model"
	"github.com/mohammed-shakir/vector-scene-tiler/internal/filter"
	"github.com/mohammed-shakir/vector-scene-tiler/internal/props"
)

// GroupsProp receives the number of groups a collection stage produced.
const GroupsProp = "collection.groups"

// Collection merges features sharing the group_by attribute value into
// one feature carrying the first member's OID and attributes. An empty
// group_by collects everything into a single feature.
type Collection struct {
	filter.Base
	GroupBy string
}

func NewCollection() *Collection {
	c := &Collection{Base: filter.NewBase("collection")}
	c.Bind(filter.StringParam("group_by", &c.GroupBy))
	return c
}

func (*Collection) Accepts() filter.Capability  { return filter.CapFeatures }
func (*Collection) Produces() filter.Capability { return filter.CapFeatures }

func (c *Collection) Clone() filter.Filter {
	n := NewCollection()
	_ = filter.CopyProperties(n, c)
	return n
}

func (c *Collection) Process(ctx context.Context, in filter.Stream, env *filter.Env) (filter.Stream, error) {
	if err := filter.Expect(in, filter.CapFeatures); err != nil {
		return filter.Stream{}, err
	}
	groups := map[string]*model.Feature{}
	var out []*model.Feature
	for _, f := range in.Features {
		if err := ctx.Err(); err != nil {
			return filter.Stream{}, err
		}
		var key string
		if c.GroupBy != "" {
			if a, ok := f.Attr(c.GroupBy); ok {
				key = a.String()
			}
		}
		g, ok := groups[key]
		if !ok {
			groups[key] = f
			out = append(out, f)
			continue
		}
		g.Shapes = append(g.Shapes, f.Shapes...)
	}
	env.Props.Set(GroupsProp, props.Int(int64(len(out))))
	return filter.Features(out), nil
}
