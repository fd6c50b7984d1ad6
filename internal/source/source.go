// Package source provides feature sources read by the cell compiler.
package source

import (
	"context"
	"errors"
	"sort"

	"github.com/mohammed-shakir/vector-scene-tiler/internal/core/model"
	"github.com/mohammed-shakir/vector-scene-tiler/internal/spatial"
	"github.com/mohammed-shakir/vector-scene-tiler/internal/srs"
)

var ErrCursorDone = errors.New("source: cursor exhausted")

// FeatureSource is shared by every task of a compile and must be safe for
// concurrent Cursor calls. Cursors hand out features the caller owns.
type FeatureSource interface {
	SRS() *srs.SRS
	Extent() model.Extent
	Cursor(ctx context.Context, query model.Extent) (Cursor, error)
}

type Cursor interface {
	HasNext() bool
	Next() (*model.Feature, error)
	Close() error
}

// ReadAll drains c and closes it.
func ReadAll(c Cursor) ([]*model.Feature, error) {
	defer c.Close()
	var out []*model.Feature
	for c.HasNext() {
		f, err := c.Next()
		if err != nil {
			return out, err
		}
		out = append(out, f)
	}
	return out, nil
}

// Memory is an immutable in-memory source indexed by feature extent.
type Memory struct {
	srs      *srs.SRS
	extent   model.Extent
	features []*model.Feature
	index    *spatial.Index[int]
}

// NewMemory copies features; later changes to the arguments do not leak in.
func NewMemory(s *srs.SRS, features []*model.Feature) *Memory {
	m := &Memory{
		srs:      s,
		extent:   model.EmptyExtent(s),
		features: make([]*model.Feature, 0, len(features)),
		index:    spatial.NewIndex[int](),
	}
	for _, f := range features {
		c := f.Clone()
		e := c.Extent()
		m.index.Insert(e, len(m.features))
		m.features = append(m.features, c)
		m.extent.Union(e)
	}
	m.extent.SRS = s
	return m
}

func (m *Memory) SRS() *srs.SRS        { return m.srs }
func (m *Memory) Extent() model.Extent { return m.extent }
func (m *Memory) Len() int             { return len(m.features) }

// Cursor yields clones of the features whose extent touches query, in
// insertion order.
func (m *Memory) Cursor(ctx context.Context, query model.Extent) (Cursor, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	ids := m.index.Search(query)
	sort.Ints(ids)
	return &memCursor{ctx: ctx, src: m, ids: ids}, nil
}

type memCursor struct {
	ctx context.Context
	src *Memory
	ids []int
	pos int
}

func (c *memCursor) HasNext() bool { return c.pos < len(c.ids) }

func (c *memCursor) Next() (*model.Feature, error) {
	if err := c.ctx.Err(); err != nil {
		return nil, err
	}
	if c.pos >= len(c.ids) {
		return nil, ErrCursorDone
	}
	f := c.src.features[c.ids[c.pos]].Clone()
	c.pos++
	return f, nil
}

func (c *memCursor) Close() error {
	c.pos = len(c.ids)
	return nil
}
