package terrain

import (
	"context"
	"errors"
	"math"
	"path/filepath"
	"sync"
	"testing"

	"github.com/mohammed-shakir/vector-scene-tiler/internal/core/model"
	"github.com/mohammed-shakir/vector-scene-tiler/internal/srs"
)

type countingLoader struct {
	mu    sync.Mutex
	calls map[string]int
	tiles map[string]*Heightfield
}

func (l *countingLoader) Load(_ context.Context, path string) (*Heightfield, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.calls == nil {
		l.calls = map[string]int{}
	}
	l.calls[path]++
	h, ok := l.tiles[path]
	if !ok {
		return nil, errors.New("missing " + path)
	}
	return h, nil
}

// ramp rises by one unit per x unit across [x0, x0+10] x [0, 10].
func ramp(x0 float64) *Heightfield {
	return &Heightfield{
		Extent:  model.NewExtent(x0, 0, x0+10, 10, srs.Local),
		Cols:    2,
		Rows:    2,
		Heights: []float64{x0, x0 + 10, x0, x0 + 10},
	}
}

func TestHeightfield_Bilinear(t *testing.T) {
	h := &Heightfield{
		Extent:  model.NewExtent(0, 0, 2, 2, nil),
		Cols:    3,
		Rows:    3,
		Heights: []float64{0, 0, 0, 0, 4, 0, 0, 0, 0},
	}
	cases := []struct {
		x, y, want float64
	}{
		{1, 1, 4},
		{0.5, 1, 2},
		{0.5, 0.5, 1},
		{2, 2, 0},
		{0, 0, 0},
	}
	for _, c := range cases {
		got, ok := h.HeightAt(c.x, c.y)
		if !ok || math.Abs(got-c.want) > 1e-12 {
			t.Fatalf("HeightAt(%v,%v)=%v,%v want %v", c.x, c.y, got, ok, c.want)
		}
	}
	if _, ok := h.HeightAt(3, 1); ok {
		t.Fatalf("outside point should miss")
	}
}

func TestReader_CachesTilesAndClonesIndependently(t *testing.T) {
	l := &countingLoader{tiles: map[string]*Heightfield{"w": ramp(0), "e": ramp(10)}}
	r := NewReader(l, srs.Local, []Tile{
		{Path: "w", Extent: ramp(0).Extent},
		{Path: "e", Extent: ramp(10).Extent},
	}, 4)
	ctx := context.Background()

	z, ok, err := r.HeightAt(ctx, 15, 5)
	if err != nil || !ok || z != 15 {
		t.Fatalf("HeightAt(15,5)=%v,%v,%v", z, ok, err)
	}
	if _, _, err := r.HeightAt(ctx, 12, 3); err != nil {
		t.Fatal(err)
	}
	if l.calls["e"] != 1 {
		t.Fatalf("tile e loaded %d times", l.calls["e"])
	}
	if _, ok, _ := r.HeightAt(ctx, 50, 5); ok {
		t.Fatalf("point outside the catalog should miss")
	}

	c := r.Clone()
	if c.Cached() != 0 {
		t.Fatalf("clone shares the cache")
	}
	if _, _, err := c.HeightAt(ctx, 15, 5); err != nil {
		t.Fatal(err)
	}
	if l.calls["e"] != 2 {
		t.Fatalf("clone should load through its own cache, calls=%d", l.calls["e"])
	}
}

func TestReader_SharedEdgePicksFirstByPath(t *testing.T) {
	l := &countingLoader{tiles: map[string]*Heightfield{"a": ramp(0), "b": ramp(10)}}
	r := NewReader(l, nil, []Tile{{Path: "b", Extent: ramp(10).Extent}, {Path: "a", Extent: ramp(0).Extent}}, 0)
	z, ok, err := r.HeightAt(context.Background(), 10, 5)
	if err != nil || !ok || z != 10 {
		t.Fatalf("HeightAt on seam=%v,%v,%v", z, ok, err)
	}
}

func TestFileLoader_RoundTripAndCatalog(t *testing.T) {
	dir := t.TempDir()
	if err := WriteFile(filepath.Join(dir, "t.json"), ramp(0)); err != nil {
		t.Fatal(err)
	}
	l := FileLoader{Root: dir, SRS: srs.Local}
	tiles, err := Catalog(context.Background(), l, []string{"t.json"})
	if err != nil {
		t.Fatal(err)
	}
	if len(tiles) != 1 || !tiles[0].Extent.Equal(ramp(0).Extent) {
		t.Fatalf("catalog=%v", tiles)
	}
	if _, err := l.Load(context.Background(), "missing.json"); err == nil {
		t.Fatalf("missing file should error")
	}

	bad := &Heightfield{Extent: model.NewExtent(0, 0, 1, 1, nil), Cols: 2, Rows: 2, Heights: []float64{1}}
	if err := WriteFile(filepath.Join(dir, "bad.json"), bad); err != nil {
		t.Fatal(err)
	}
	if _, err := l.Load(context.Background(), "bad.json"); !errors.Is(err, ErrBadHeightfield) {
		t.Fatalf("want ErrBadHeightfield, got %v", err)
	}
}
