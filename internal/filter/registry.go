package filter

import (
	"fmt"
	"sort"
	"strings"
)

type Constructor func() Filter

// Registry maps filter type names to constructors. Build one at start-up
// and pass it to whatever decodes layer documents.
type Registry struct {
	ctors map[string]Constructor
}

func NewRegistry() *Registry {
	return &Registry{ctors: map[string]Constructor{}}
}

func (r *Registry) Register(typ string, c Constructor) error {
	k := strings.ToLower(strings.TrimSpace(typ))
	if k == "" || c == nil {
		return fmt.Errorf("filter: invalid registration %q", typ)
	}
	if _, ok := r.ctors[k]; ok {
		return fmt.Errorf("filter: type %q already registered", typ)
	}
	r.ctors[k] = c
	return nil
}

func (r *Registry) MustRegister(typ string, c Constructor) {
	if err := r.Register(typ, c); err != nil {
		panic(err)
	}
}

func (r *Registry) New(typ string) (Filter, error) {
	c, ok := r.ctors[strings.ToLower(strings.TrimSpace(typ))]
	if !ok {
		return nil, fmt.Errorf("%w: %q", ErrUnknownFilter, typ)
	}
	return c(), nil
}

func (r *Registry) Types() []string {
	out := make([]string, 0, len(r.ctors))
	for k := range r.ctors {
		out = append(out, k)
	}
	sort.Strings(out)
	return out
}
