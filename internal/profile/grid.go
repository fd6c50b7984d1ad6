package profile

import (
	"fmt"
	"math"

	"github.com/mohammed-shakir/vector-scene-tiler/internal/core/model"
)

// Grid is a uniform cols x rows partition repeated for every level. Each
// level is one visibility-range slice over the same cells, so a cell's
// only child is the same cell one level finer.
type Grid struct {
	ext          model.Extent
	cols, rows   int
	sizeX, sizeY float64
	levels       int
}

func NewGrid(extent model.Extent, cols, rows, levels int) (*Grid, error) {
	if err := checkGridExtent(extent); err != nil {
		return nil, err
	}
	if cols < 1 || rows < 1 {
		return nil, fmt.Errorf("profile: grid needs at least one column and row, got %dx%d", cols, rows)
	}
	if levels < 1 {
		return nil, ErrNoLevels
	}
	return &Grid{
		ext: extent, cols: cols, rows: rows, levels: levels,
		sizeX: extent.Width() / float64(cols),
		sizeY: extent.Height() / float64(rows),
	}, nil
}

// NewGridBySize fits as many whole cells of the given size as possible;
// the last column and row absorb the remainder.
func NewGridBySize(extent model.Extent, cellW, cellH float64, levels int) (*Grid, error) {
	if err := checkGridExtent(extent); err != nil {
		return nil, err
	}
	if cellW <= 0 || cellH <= 0 {
		return nil, fmt.Errorf("profile: cell size must be positive, got %gx%g", cellW, cellH)
	}
	if levels < 1 {
		return nil, ErrNoLevels
	}
	cols := max(1, int(math.Floor(extent.Width()/cellW)))
	rows := max(1, int(math.Floor(extent.Height()/cellH)))
	return &Grid{
		ext: extent, cols: cols, rows: rows, levels: levels,
		sizeX: cellW, sizeY: cellH,
	}, nil
}

func checkGridExtent(e model.Extent) error {
	if !e.IsValid() || e.IsInfinite() || e.Width() <= 0 || e.Height() <= 0 {
		return fmt.Errorf("%w: %s", ErrInvalidExtent, e)
	}
	return nil
}

func (g *Grid) Name() string         { return "grid" }
func (g *Grid) Extent() model.Extent { return g.ext }
func (g *Grid) Levels() int          { return g.levels }
func (g *Grid) Fanout() int          { return 1 }

func (g *Grid) NumCells(level int) (int, int) {
	if level < 0 || level >= g.levels {
		return 0, 0
	}
	return g.cols, g.rows
}

func (g *Grid) ExtentOf(k Key) model.Extent {
	if !g.contains(k) {
		return model.EmptyExtent(g.ext.SRS)
	}
	return model.NewExtent(
		edge(k.Col, g.cols, g.ext.XMin, g.sizeX, g.ext.XMax),
		edge(k.Row, g.rows, g.ext.YMin, g.sizeY, g.ext.YMax),
		edge(k.Col+1, g.cols, g.ext.XMin, g.sizeX, g.ext.XMax),
		edge(k.Row+1, g.rows, g.ext.YMin, g.sizeY, g.ext.YMax),
		g.ext.SRS,
	)
}

func (g *Grid) ParentOf(k Key) (Key, bool) {
	if !g.contains(k) || k.Level == 0 {
		return Key{}, false
	}
	return Key{Col: k.Col, Row: k.Row, Level: k.Level - 1, p: g}, true
}

func (g *Grid) ChildOf(k Key, q int) (Key, bool) {
	if !g.contains(k) || q != 0 || k.Level+1 >= g.levels {
		return Key{}, false
	}
	return Key{Col: k.Col, Row: k.Row, Level: k.Level + 1, p: g}, true
}

func (g *Grid) KeyAt(level, col, row int) (Key, bool) {
	k := Key{Col: col, Row: row, Level: level, p: g}
	return k, g.contains(k)
}

func (g *Grid) Keys(level int) []Key { return allKeys(g, level) }

func (g *Grid) KeysIntersecting(level int, e model.Extent) []Key {
	return keysIntersecting(g, level, e, g.sizeX, g.sizeY)
}

func (g *Grid) ParseKey(s string) (Key, error) { return parseKey(g, s) }

func (g *Grid) contains(k Key) bool {
	if k.p != Profile(g) || k.Level < 0 || k.Level >= g.levels {
		return false
	}
	return k.Col >= 0 && k.Row >= 0 && k.Col < g.cols && k.Row < g.rows
}
