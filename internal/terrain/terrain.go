// Package terrain reads elevation tiles used to clamp features and to
// snap index centers to the ground.
package terrain

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"math"
	"os"
	"path/filepath"
	"sort"

	lru "github.com/hashicorp/golang-lru/v2"

	"github.com/mohammed-shakir/vector-scene-tiler/internal/core/model"
	"github.com/mohammed-shakir/vector-scene-tiler/internal/core/observability"
	"github.com/mohammed-shakir/vector-scene-tiler/internal/spatial"
	"github.com/mohammed-shakir/vector-scene-tiler/internal/srs"
)

var ErrBadHeightfield = errors.New("terrain: malformed heightfield")

// Heightfield is a regular grid of posts covering Extent. Row 0 is the
// southern edge; Heights is row-major with Cols*Rows entries.
type Heightfield struct {
	Extent  model.Extent
	Cols    int
	Rows    int
	Heights []float64
}

func (h *Heightfield) validate() error {
	if h.Cols < 2 || h.Rows < 2 || len(h.Heights) != h.Cols*h.Rows || !h.Extent.IsValid() {
		return fmt.Errorf("%w: %dx%d posts, %d heights", ErrBadHeightfield, h.Cols, h.Rows, len(h.Heights))
	}
	return nil
}

// HeightAt interpolates bilinearly. ok is false outside the extent.
func (h *Heightfield) HeightAt(x, y float64) (float64, bool) {
	if !h.Extent.ContainsPoint(x, y) {
		return 0, false
	}
	fx := (x - h.Extent.XMin) / h.Extent.Width() * float64(h.Cols-1)
	fy := (y - h.Extent.YMin) / h.Extent.Height() * float64(h.Rows-1)
	if h.Extent.Width() == 0 {
		fx = 0
	}
	if h.Extent.Height() == 0 {
		fy = 0
	}
	c0 := min(int(math.Floor(fx)), h.Cols-2)
	r0 := min(int(math.Floor(fy)), h.Rows-2)
	tx, ty := fx-float64(c0), fy-float64(r0)

	at := func(c, r int) float64 { return h.Heights[r*h.Cols+c] }
	south := at(c0, r0)*(1-tx) + at(c0+1, r0)*tx
	north := at(c0, r0+1)*(1-tx) + at(c0+1, r0+1)*tx
	return south*(1-ty) + north*ty, true
}

// Loader reads one heightfield by path.
type Loader interface {
	Load(ctx context.Context, path string) (*Heightfield, error)
}

type fileHeightfield struct {
	XMin    float64   `json:"xmin"`
	YMin    float64   `json:"ymin"`
	XMax    float64   `json:"xmax"`
	YMax    float64   `json:"ymax"`
	Cols    int       `json:"cols"`
	Rows    int       `json:"rows"`
	Heights []float64 `json:"heights"`
}

// FileLoader reads JSON heightfields relative to Root.
type FileLoader struct {
	Root string
	SRS  *srs.SRS
}

func (l FileLoader) Load(ctx context.Context, path string) (*Heightfield, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	p := path
	if l.Root != "" && !filepath.IsAbs(p) {
		p = filepath.Join(l.Root, p)
	}
	b, err := os.ReadFile(p)
	if err != nil {
		return nil, fmt.Errorf("terrain: read %s: %w", path, err)
	}
	var f fileHeightfield
	if err := json.Unmarshal(b, &f); err != nil {
		return nil, fmt.Errorf("terrain: decode %s: %w", path, err)
	}
	h := &Heightfield{
		Extent:  model.NewExtent(f.XMin, f.YMin, f.XMax, f.YMax, l.SRS),
		Cols:    f.Cols,
		Rows:    f.Rows,
		Heights: f.Heights,
	}
	if err := h.validate(); err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return h, nil
}

// WriteFile stores h in the format FileLoader reads.
func WriteFile(path string, h *Heightfield) error {
	b, err := json.Marshal(fileHeightfield{
		XMin: h.Extent.XMin, YMin: h.Extent.YMin, XMax: h.Extent.XMax, YMax: h.Extent.YMax,
		Cols: h.Cols, Rows: h.Rows, Heights: h.Heights,
	})
	if err != nil {
		return err
	}
	return os.WriteFile(path, b, 0o644)
}

// Tile is one catalog entry.
type Tile struct {
	Path   string
	Extent model.Extent
}

// Reader resolves heights through a tile catalog and a most-recently-used
// cache of loaded tiles. A Reader is not shared between tasks: Clone gives
// each task its own cache over the same catalog.
type Reader struct {
	loader Loader
	srs    *srs.SRS
	index  *spatial.Index[Tile]
	size   int
	cache  *lru.Cache[string, *Heightfield]
}

func NewReader(loader Loader, s *srs.SRS, tiles []Tile, cacheSize int) *Reader {
	ix := spatial.NewIndex[Tile]()
	for _, t := range tiles {
		ix.Insert(t.Extent, t)
	}
	return newReader(loader, s, ix, cacheSize)
}

func newReader(loader Loader, s *srs.SRS, ix *spatial.Index[Tile], size int) *Reader {
	if size <= 0 {
		size = 16
	}
	c, _ := lru.New[string, *Heightfield](size)
	return &Reader{loader: loader, srs: s, index: ix, size: size, cache: c}
}

// Catalog loads every path once to learn its extent.
func Catalog(ctx context.Context, loader Loader, paths []string) ([]Tile, error) {
	out := make([]Tile, 0, len(paths))
	for _, p := range paths {
		h, err := loader.Load(ctx, p)
		if err != nil {
			return nil, err
		}
		out = append(out, Tile{Path: p, Extent: h.Extent})
	}
	return out, nil
}

func (r *Reader) SRS() *srs.SRS { return r.srs }

func (r *Reader) Clone() *Reader { return newReader(r.loader, r.srs, r.index, r.size) }

// ReadNodeFile returns the heightfield at path, loading it on a miss.
func (r *Reader) ReadNodeFile(ctx context.Context, path string) (*Heightfield, error) {
	if h, ok := r.cache.Get(path); ok {
		observability.IncTerrainCacheHit()
		return h, nil
	}
	observability.IncTerrainCacheMiss()
	h, err := r.loader.Load(ctx, path)
	if err != nil {
		return nil, err
	}
	r.cache.Add(path, h)
	return h, nil
}

// HeightAt samples the first catalog tile, by path order, covering (x, y).
func (r *Reader) HeightAt(ctx context.Context, x, y float64) (float64, bool, error) {
	tiles := r.index.Search(model.NewExtent(x, y, x, y, r.srs))
	sort.Slice(tiles, func(i, j int) bool { return tiles[i].Path < tiles[j].Path })
	for _, t := range tiles {
		h, err := r.ReadNodeFile(ctx, t.Path)
		if err != nil {
			return 0, false, err
		}
		if z, ok := h.HeightAt(x, y); ok {
			return z, true, nil
		}
	}
	return 0, false, nil
}

// Cached reports how many tiles the cache holds.
func (r *Reader) Cached() int { return r.cache.Len() }
