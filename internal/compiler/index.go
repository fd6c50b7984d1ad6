package compiler

import (
	"context"
	"fmt"
	"math"

	"github.com/mohammed-shakir/vector-scene-tiler/internal/core/model"
	"github.com/mohammed-shakir/vector-scene-tiler/internal/output"
	"github.com/mohammed-shakir/vector-scene-tiler/internal/profile"
	"github.com/mohammed-shakir/vector-scene-tiler/internal/scene"
)

// indexer assembles the paged index once every cell has drained. It runs
// on the draining goroutine only.
type indexer struct {
	run     *run
	profile profile.Profile
	roots   []profile.Key
	results map[string]Result
	report  *Report
}

func (ix *indexer) finest(k profile.Key) bool { return k.Level >= len(ix.run.levels)-1 }

// build writes an index for every non-leaf cell with something to
// reference, children before parents, and the root index last.
func (ix *indexer) build(ctx context.Context) error {
	r := ix.run
	root := &scene.IndexNode{Name: r.layout.Prefix}
	root.Center, root.Radius = ix.sphereOf(ctx, ix.profile.Extent(), 0)

	for _, k := range ix.roots {
		if err := ctx.Err(); err != nil {
			return err
		}
		if ix.finest(k) {
			if ref, ok := ix.contentRef(ctx, k); ok {
				root.Children = append(root.Children, ref)
			}
			continue
		}
		if ref, ok := ix.indexRef(ctx, k); ok {
			root.Children = append(root.Children, ref)
		}
	}
	root.Enclose()

	path := r.layout.RootPath()
	if err := r.writer.Write(ctx, path, root); err != nil {
		ix.report.warn(fmt.Errorf("write root index %s: %w", path, err))
		return nil
	}
	ix.report.Indexes++
	ix.report.Root = path
	return nil
}

// indexRef builds and writes the index of k and returns a paged reference
// to it. ok is false when the index would be empty or was not written.
func (ix *indexer) indexRef(ctx context.Context, k profile.Key) (scene.PagedChild, bool) {
	r := ix.run
	node := &scene.IndexNode{Name: k.String()}
	node.Center, node.Radius = ix.cellSphere(ctx, k)

	if ref, ok := ix.contentRef(ctx, k); ok {
		node.Children = append(node.Children, ref)
	}
	for _, c := range k.Children() {
		if _, planned := ix.results[c.String()]; !planned {
			continue
		}
		var (
			ref scene.PagedChild
			ok  bool
		)
		if ix.finest(c) {
			ref, ok = ix.contentRef(ctx, c)
		} else {
			ref, ok = ix.indexRef(ctx, c)
		}
		if ok {
			node.Children = append(node.Children, ref)
		}
	}
	if len(node.Children) == 0 {
		return scene.PagedChild{}, false
	}
	node.Enclose()

	path := r.layout.IndexPath(k)
	if err := r.writer.Write(ctx, path, node); err != nil {
		ix.report.warn(fmt.Errorf("write index %s: %w", path, err))
		return scene.PagedChild{}, false
	}
	ix.report.Indexes++

	lo, hi := ix.subtreeRange(k.Level)
	return scene.PagedChild{
		Ref:      path,
		MinRange: lo,
		MaxRange: hi,
		Center:   node.Center,
		Radius:   node.Radius,
		Paged:    true,
	}, true
}

// contentRef references the content of k when the writer still has it.
func (ix *indexer) contentRef(ctx context.Context, k profile.Key) (scene.PagedChild, bool) {
	r := ix.run
	path := r.layout.ContentPath(k)
	ok, err := r.writer.Exists(ctx, path)
	if err != nil {
		ix.report.warn(fmt.Errorf("stat %s: %w", path, err))
		return scene.PagedChild{}, false
	}
	if !ok {
		return scene.PagedChild{}, false
	}

	s := scene.Sphere{}
	s.Center, s.Radius = ix.cellSphere(ctx, k)
	if b := ix.contentBound(ctx, k, path); b.Valid() {
		s.ExpandRadiusBy(b)
	}
	lvl := r.levels[k.Level]
	return scene.PagedChild{
		Ref:      path,
		MinRange: lvl.MinRange,
		MaxRange: lvl.MaxRange,
		Center:   s.Center,
		Radius:   s.Radius,
	}, true
}

// contentBound is the bound recorded when the cell compiled, or the bound
// of the stored content for cells skipped in this run.
func (ix *indexer) contentBound(ctx context.Context, k profile.Key, path string) scene.Sphere {
	if res, ok := ix.results[k.String()]; ok && res.Bound.Valid() {
		return res.Bound
	}
	rd, ok := ix.run.writer.(output.Reader)
	if !ok {
		return scene.EmptySphere()
	}
	b, err := rd.Read(ctx, path)
	if err != nil {
		ix.report.warn(fmt.Errorf("read %s: %w", path, err))
		return scene.EmptySphere()
	}
	obj, err := scene.Unmarshal(b)
	if err != nil {
		ix.report.warn(fmt.Errorf("decode %s: %w", path, err))
		return scene.EmptySphere()
	}
	if n, ok := obj.(*scene.Node); ok {
		return n.WorldBound()
	}
	return obj.Bounds()
}

func (ix *indexer) cellSphere(ctx context.Context, k profile.Key) (scene.Vec3, float64) {
	return ix.sphereOf(ctx, k.Extent(), k.Level)
}

// sphereOf centers a sphere on e in the output SRS, with the center
// snapped to terrain, and reaches every corner of e.
func (ix *indexer) sphereOf(ctx context.Context, e model.Extent, level int) (scene.Vec3, float64) {
	r := ix.run
	cx, cy := e.Center()
	z := 0.0
	if r.terrain != nil {
		tx, ty, _ := r.profToTerrain(cx, cy, 0)
		h, ok, err := r.terrain.HeightAt(ctx, tx, ty)
		switch {
		case err != nil:
			ix.report.warn(fmt.Errorf("terrain at level %d (%g, %g): %w", level, cx, cy, err))
		case ok:
			z = h
		}
	}
	ox, oy, oz := r.profToOut(cx, cy, z)
	center := scene.V(ox, oy, oz)
	radius := 0.0
	for _, c := range [][2]float64{{e.XMin, e.YMin}, {e.XMax, e.YMin}, {e.XMax, e.YMax}, {e.XMin, e.YMax}} {
		x, y, cz := r.profToOut(c[0], c[1], z)
		radius = math.Max(radius, center.Dist(scene.V(x, y, cz)))
	}
	return center, radius
}

// subtreeRange is the union of the ranges of level and every finer level.
func (ix *indexer) subtreeRange(level int) (float64, float64) {
	lo, hi := math.Inf(1), math.Inf(-1)
	for _, l := range ix.run.levels[level:] {
		lo = math.Min(lo, l.MinRange)
		hi = math.Max(hi, l.MaxRange)
	}
	return lo, hi
}
