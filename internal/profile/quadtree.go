package profile

import (
	"fmt"
	"math"

	"github.com/mohammed-shakir/vector-scene-tiler/internal/core/model"
)

const maxDepth = 30

// QuadTree halves a square extent at every level. Level 0 is the
// coarsest depth whose cells fit the target cell size; level l is
// depth base+l.
type QuadTree struct {
	ext    model.Extent
	base   int
	levels int
}

// NewQuadTree squares extent around its center. cellW and cellH are the
// target dimensions of a level-0 cell; zero keeps the whole extent as
// the single level-0 cell.
func NewQuadTree(extent model.Extent, cellW, cellH float64, levels int) (*QuadTree, error) {
	if !extent.IsValid() || extent.IsInfinite() || extent.Width() <= 0 && extent.Height() <= 0 {
		return nil, fmt.Errorf("%w: %s", ErrInvalidExtent, extent)
	}
	if levels < 1 {
		return nil, ErrNoLevels
	}
	ext := extent.Square()
	target := math.Max(cellW, cellH)
	base := 0
	if target > 0 {
		for base < maxDepth && ext.Width()/float64(uint64(1)<<base) > target {
			base++
		}
	}
	if base+levels-1 > maxDepth {
		return nil, fmt.Errorf("profile: %d levels from depth %d exceed max depth %d", levels, base, maxDepth)
	}
	return &QuadTree{ext: ext, base: base, levels: levels}, nil
}

func (q *QuadTree) Name() string         { return "quadtree" }
func (q *QuadTree) Extent() model.Extent { return q.ext }
func (q *QuadTree) Levels() int          { return q.levels }
func (q *QuadTree) Fanout() int          { return 4 }

// BaseDepth is the tree depth of level 0.
func (q *QuadTree) BaseDepth() int { return q.base }

func (q *QuadTree) side(level int) int { return 1 << (q.base + level) }

func (q *QuadTree) NumCells(level int) (int, int) {
	if level < 0 || level >= q.levels {
		return 0, 0
	}
	n := q.side(level)
	return n, n
}

func (q *QuadTree) cellSize(level int) float64 {
	return q.ext.Width() / float64(q.side(level))
}

// ExtentOf derives edges from integer indices so that children partition
// their parent exactly.
func (q *QuadTree) ExtentOf(k Key) model.Extent {
	if !q.contains(k) {
		return model.EmptyExtent(q.ext.SRS)
	}
	n := q.side(k.Level)
	size := q.cellSize(k.Level)
	return model.NewExtent(
		edge(k.Col, n, q.ext.XMin, size, q.ext.XMax),
		edge(k.Row, n, q.ext.YMin, size, q.ext.YMax),
		edge(k.Col+1, n, q.ext.XMin, size, q.ext.XMax),
		edge(k.Row+1, n, q.ext.YMin, size, q.ext.YMax),
		q.ext.SRS,
	)
}

func (q *QuadTree) ParentOf(k Key) (Key, bool) {
	if !q.contains(k) || k.Level == 0 {
		return Key{}, false
	}
	return Key{Col: k.Col >> 1, Row: k.Row >> 1, Level: k.Level - 1, p: q}, true
}

// ChildOf returns quadrant i of k: bit 0 selects the east column, bit 1
// the north row.
func (q *QuadTree) ChildOf(k Key, i int) (Key, bool) {
	if !q.contains(k) || i < 0 || i > 3 || k.Level+1 >= q.levels {
		return Key{}, false
	}
	return Key{Col: k.Col<<1 + i&1, Row: k.Row<<1 + i>>1, Level: k.Level + 1, p: q}, true
}

func (q *QuadTree) KeyAt(level, col, row int) (Key, bool) {
	k := Key{Col: col, Row: row, Level: level, p: q}
	return k, q.contains(k)
}

func (q *QuadTree) Keys(level int) []Key { return allKeys(q, level) }

func (q *QuadTree) KeysIntersecting(level int, e model.Extent) []Key {
	if level < 0 || level >= q.levels {
		return nil
	}
	s := q.cellSize(level)
	return keysIntersecting(q, level, e, s, s)
}

func (q *QuadTree) ParseKey(s string) (Key, error) { return parseKey(q, s) }

func (q *QuadTree) contains(k Key) bool {
	if k.p != Profile(q) || k.Level < 0 || k.Level >= q.levels {
		return false
	}
	n := q.side(k.Level)
	return k.Col >= 0 && k.Row >= 0 && k.Col < n && k.Row < n
}
