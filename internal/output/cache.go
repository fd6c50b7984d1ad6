package output

import (
	"context"
	"strings"

	lru "github.com/hashicorp/golang-lru/v2"

	"github.com/mohammed-shakir/vector-scene-tiler/internal/core/observability"
)

// CachedReader keeps recently served objects in memory. Only successful
// reads are cached; callers drop stale entries with Invalidate.
type CachedReader struct {
	next  Reader
	cache *lru.Cache[string, []byte]
}

func NewCachedReader(next Reader, size int) *CachedReader {
	if size <= 0 {
		size = 256
	}
	c, _ := lru.New[string, []byte](size)
	return &CachedReader{next: next, cache: c}
}

func (r *CachedReader) Read(ctx context.Context, path string) ([]byte, error) {
	if b, ok := r.cache.Get(path); ok {
		observability.IncTileCache(true)
		return b, nil
	}
	observability.IncTileCache(false)
	b, err := r.next.Read(ctx, path)
	if err != nil {
		return nil, err
	}
	r.cache.Add(path, b)
	return b, nil
}

func (r *CachedReader) Invalidate(paths ...string) {
	for _, p := range paths {
		r.cache.Remove(p)
	}
}

// InvalidateLayer drops the root and every index written under l.
func (r *CachedReader) InvalidateLayer(l Layout) int {
	n := 0
	idx := l.Prefix + "_"
	for _, k := range r.cache.Keys() {
		if k == l.RootPath() || (strings.HasPrefix(k, idx) && strings.HasSuffix(k, ".idx.json")) {
			if r.cache.Remove(k) {
				n++
			}
		}
	}
	return n
}

func (r *CachedReader) Len() int { return r.cache.Len() }
