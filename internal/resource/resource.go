// Package resource tracks external textures and models referenced by
// compiled content and packages them next to the output.
package resource

import (
	"errors"
	"fmt"
	"sort"
	"sync"
)

type Kind string

const (
	KindTexture Kind = "texture"
	KindModel   Kind = "model"
)

type Resource struct {
	Name string `yaml:"name"`
	Kind Kind   `yaml:"kind"`
	URI  string `yaml:"uri"`
}

var (
	ErrUnknownResource = errors.New("resource: not defined")
	ErrConflict        = errors.New("resource: conflicting definition")
)

// Cache holds resource definitions for a session. Lookups are safe from
// worker goroutines; MarkUsed is called only while post-processing.
type Cache struct {
	mu   sync.RWMutex
	defs map[string]Resource
	used map[string]struct{}
}

func NewCache() *Cache {
	return &Cache{defs: map[string]Resource{}, used: map[string]struct{}{}}
}

// Define adds r. Redefining a name with identical content is a no-op.
func (c *Cache) Define(r Resource) error {
	if r.Name == "" {
		return errors.New("resource: name is required")
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	if old, ok := c.defs[r.Name]; ok {
		if old == r {
			return nil
		}
		return fmt.Errorf("%w: %q", ErrConflict, r.Name)
	}
	c.defs[r.Name] = r
	return nil
}

func (c *Cache) Lookup(name string) (Resource, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	r, ok := c.defs[name]
	return r, ok
}

func (c *Cache) MarkUsed(name string) (Resource, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	r, ok := c.defs[name]
	if !ok {
		return Resource{}, fmt.Errorf("%w: %q", ErrUnknownResource, name)
	}
	c.used[name] = struct{}{}
	return r, nil
}

func (c *Cache) IsUsed(name string) bool {
	c.mu.RLock()
	defer c.mu.RUnlock()
	_, ok := c.used[name]
	return ok
}

// Used returns the used resources sorted by name.
func (c *Cache) Used() []Resource {
	c.mu.RLock()
	defer c.mu.RUnlock()
	out := make([]Resource, 0, len(c.used))
	for n := range c.used {
		out = append(out, c.defs[n])
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out
}

// Defined returns every definition sorted by name.
func (c *Cache) Defined() []Resource {
	c.mu.RLock()
	defer c.mu.RUnlock()
	out := make([]Resource, 0, len(c.defs))
	for _, r := range c.defs {
		out = append(out, r)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out
}
