// Package profile partitions a working extent into addressable cells,
// either as a quad-tree or as a uniform grid.
package profile

import (
	"errors"
	"fmt"
	"strconv"
	"strings"

	"github.com/mohammed-shakir/vector-scene-tiler/internal/core/model"
)

var (
	ErrInvalidExtent = errors.New("profile: invalid extent")
	ErrInvalidKey    = errors.New("profile: invalid key")
	ErrNoLevels      = errors.New("profile: at least one level is required")
)

// Profile maps cell keys to extents. Implementations are immutable and
// safe for concurrent use.
type Profile interface {
	Name() string
	Extent() model.Extent
	Levels() int
	// Fanout is the number of children per cell: 4 for a quad-tree, 1 for a grid.
	Fanout() int
	NumCells(level int) (cols, rows int)
	ExtentOf(k Key) model.Extent
	ParentOf(k Key) (Key, bool)
	ChildOf(k Key, q int) (Key, bool)
	KeyAt(level, col, row int) (Key, bool)
	Keys(level int) []Key
	KeysIntersecting(level int, e model.Extent) []Key
	ParseKey(s string) (Key, error)
}

// Key addresses one cell. Keys are values; two keys are equal when their
// column, row, level and profile match.
type Key struct {
	Col, Row, Level int
	p               Profile
}

func (k Key) Valid() bool      { return k.p != nil }
func (k Key) Profile() Profile { return k.p }

func (k Key) Extent() model.Extent {
	if k.p == nil {
		return model.EmptyExtent(nil)
	}
	return k.p.ExtentOf(k)
}

// String is the stable identity used for output names: level_col_row.
func (k Key) String() string {
	return strconv.Itoa(k.Level) + "_" + strconv.Itoa(k.Col) + "_" + strconv.Itoa(k.Row)
}

func (k Key) Parent() (Key, bool) {
	if k.p == nil {
		return Key{}, false
	}
	return k.p.ParentOf(k)
}

// Children returns every existing child of k.
func (k Key) Children() []Key {
	if k.p == nil {
		return nil
	}
	var out []Key
	for q := 0; q < k.p.Fanout(); q++ {
		if c, ok := k.p.ChildOf(k, q); ok {
			out = append(out, c)
		}
	}
	return out
}

func parseKey(p Profile, s string) (Key, error) {
	parts := strings.Split(strings.TrimSpace(s), "_")
	if len(parts) != 3 {
		return Key{}, fmt.Errorf("%w: %q", ErrInvalidKey, s)
	}
	var n [3]int
	for i, f := range parts {
		v, err := strconv.Atoi(f)
		if err != nil {
			return Key{}, fmt.Errorf("%w: %q", ErrInvalidKey, s)
		}
		n[i] = v
	}
	k, ok := p.KeyAt(n[0], n[1], n[2])
	if !ok {
		return Key{}, fmt.Errorf("%w: %q out of range", ErrInvalidKey, s)
	}
	return k, nil
}

// span returns the [i0, i1] index range of cells along one axis whose
// edges overlap [lo, hi], given the axis origin and cell size.
func span(lo, hi, origin, size float64, n int) (int, int) {
	i0 := int((lo - origin) / size)
	i1 := int((hi - origin) / size)
	if i0 > 0 {
		i0--
	}
	i1++
	return max(0, i0), min(n-1, i1)
}

func keysIntersecting(p Profile, level int, e model.Extent, sizeX, sizeY float64) []Key {
	if !e.IsValid() || level < 0 || level >= p.Levels() {
		return nil
	}
	if !e.Intersects(p.Extent()) {
		return nil
	}
	cols, rows := p.NumCells(level)
	if e.IsInfinite() {
		return p.Keys(level)
	}
	pe := p.Extent()
	c0, c1 := span(e.XMin, e.XMax, pe.XMin, sizeX, cols)
	r0, r1 := span(e.YMin, e.YMax, pe.YMin, sizeY, rows)
	var out []Key
	for r := r0; r <= r1; r++ {
		for c := c0; c <= c1; c++ {
			k, _ := p.KeyAt(level, c, r)
			if p.ExtentOf(k).Intersects(e) {
				out = append(out, k)
			}
		}
	}
	return out
}

func allKeys(p Profile, level int) []Key {
	if level < 0 || level >= p.Levels() {
		return nil
	}
	cols, rows := p.NumCells(level)
	out := make([]Key, 0, cols*rows)
	for r := 0; r < rows; r++ {
		for c := 0; c < cols; c++ {
			out = append(out, Key{Col: c, Row: r, Level: level, p: p})
		}
	}
	return out
}

// edge returns the coordinate of cell boundary i out of n along an axis.
// The last boundary is the extent max itself.
func edge(i, n int, origin, size, maxv float64) float64 {
	if i >= n {
		return maxv
	}
	return origin + float64(i)*size
}
