package filters

import "github.com/mohammed-shakir/vector-scene-tiler/internal/filter"

// NewRegistry returns a registry holding every stock stage.
func NewRegistry() *filter.Registry {
	r := filter.NewRegistry()
	r.MustRegister("crop", func() filter.Filter { return NewCrop() })
	r.MustRegister("transform", func() filter.Filter { return NewTransform() })
	r.MustRegister("decimate", func() filter.Filter { return NewDecimate() })
	r.MustRegister("clamp", func() filter.Filter { return NewClamp() })
	r.MustRegister("collection", func() filter.Filter { return NewCollection() })
	r.MustRegister("buildgeom", func() filter.Filter { return NewBuildGeom() })
	r.MustRegister("buildnodes", func() filter.Filter { return NewBuildNodes() })
	return r
}
