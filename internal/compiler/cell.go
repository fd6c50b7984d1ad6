package compiler

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/mohammed-shakir/vector-scene-tiler/internal/core/model"
	"github.com/mohammed-shakir/vector-scene-tiler/internal/core/observability"
	"github.com/mohammed-shakir/vector-scene-tiler/internal/events"
	"github.com/mohammed-shakir/vector-scene-tiler/internal/filter"
	"github.com/mohammed-shakir/vector-scene-tiler/internal/logger"
	"github.com/mohammed-shakir/vector-scene-tiler/internal/profile"
	"github.com/mohammed-shakir/vector-scene-tiler/internal/resource"
	"github.com/mohammed-shakir/vector-scene-tiler/internal/scene"
	"github.com/mohammed-shakir/vector-scene-tiler/internal/source"
)

// Status is the lifecycle of one cell: Queued, Running, one of Compiled,
// Failed or Skipped, then PostProcessed.
type Status int

const (
	StatusQueued Status = iota
	StatusRunning
	StatusCompiled
	StatusFailed
	StatusSkipped
	StatusPostProcessed
)

func (s Status) String() string {
	switch s {
	case StatusQueued:
		return "queued"
	case StatusRunning:
		return "running"
	case StatusCompiled:
		return "compiled"
	case StatusFailed:
		return "failed"
	case StatusSkipped:
		return "skipped"
	case StatusPostProcessed:
		return "post_processed"
	}
	return "unknown"
}

// Result is the outcome of a cell. Status is one of Compiled, Failed or
// Skipped. Node is nil for cells without content and is released once
// the cell has been post-processed.
type Result struct {
	Status    Status
	Message   string
	Err       error
	Node      *scene.Node
	Extent    model.Extent
	Bound     scene.Sphere
	Resources []string
	Features  int
	Duration  time.Duration
	Written   bool
}

// HasContent reports whether the cell left content at its path.
func (r Result) HasContent() bool { return r.Written || r.Status == StatusSkipped }

// CellCompiler compiles one cell. Run executes on a worker; PostProcess
// on the draining goroutine.
type CellCompiler struct {
	Key   profile.Key
	Path  string
	Level int

	run     *run
	graph   *filter.Graph
	input   model.Extent
	outExt  model.Extent
	mu      sync.Mutex
	state   Status
	result  Result
	settled bool
}

func newCell(r *run, k profile.Key) *CellCompiler {
	return &CellCompiler{
		Key:    k,
		Path:   r.layout.ContentPath(k),
		Level:  k.Level,
		run:    r,
		graph:  r.levels[k.Level].Graph,
		input:  r.toInput(k.Extent()),
		outExt: r.toOutput(k.Extent()),
	}
}

func (c *CellCompiler) State() Status {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.state
}

func (c *CellCompiler) Result() Result {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.result
}

func (c *CellCompiler) Run(ctx context.Context) {
	c.mu.Lock()
	c.state = StatusRunning
	c.mu.Unlock()

	start := time.Now()
	res := c.compile(ctx)
	res.Duration = time.Since(start)
	res.Extent = c.outExt
	observability.ObserveCellCompile(c.run.layer, c.Level, res.Duration)
	c.settle(res)
}

// Fail records err as the cell's outcome unless it already settled.
func (c *CellCompiler) Fail(err error) {
	c.settle(Result{Status: StatusFailed, Err: err, Message: err.Error(), Extent: c.outExt})
}

func (c *CellCompiler) settle(res Result) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.settled {
		return
	}
	c.settled = true
	c.state = res.Status
	c.result = res
}

func failed(err error) Result {
	return Result{Status: StatusFailed, Err: err, Message: err.Error()}
}

func (c *CellCompiler) compile(ctx context.Context) Result {
	r := c.run
	if !r.opts.Overwrite {
		ok, err := r.writer.Exists(ctx, c.Path)
		if err != nil {
			return failed(fmt.Errorf("stat %s: %w", c.Path, err))
		}
		if ok {
			return Result{Status: StatusSkipped, Message: "content exists"}
		}
	}

	env := r.env.Clone()
	env.Extent = c.input
	// workers run on the task manager's context
	ctx = logger.WithCell(logger.WithLayer(logger.WithRunID(ctx, r.runID), r.layer), c.Key.String())
	env.Logger = r.log.With("cell_level", c.Level)
	if r.terrain != nil {
		env.Terrain = r.terrain.Clone()
	}

	cur, err := r.source.Cursor(ctx, c.input)
	if err != nil {
		return failed(fmt.Errorf("open cursor: %w", err))
	}
	features, err := source.ReadAll(cur)
	if err != nil {
		return failed(fmt.Errorf("read features: %w", err))
	}
	if len(features) == 0 {
		return Result{Status: StatusCompiled, Message: "no features"}
	}

	out, err := c.graph.Process(ctx, features, env)
	if err != nil {
		return Result{Status: StatusFailed, Err: err, Message: err.Error(), Features: len(features)}
	}
	node := wrap(out.Nodes)
	if node == nil {
		return Result{Status: StatusCompiled, Message: "no geometry", Features: len(features)}
	}
	node.Name = c.Key.String()
	if o := env.Origin; o != ([3]float64{}) {
		origin := scene.V(o[0], o[1], o[2])
		node.Origin = &origin
	}
	node.ComputeBound()
	return Result{
		Status:    StatusCompiled,
		Node:      node,
		Bound:     node.WorldBound(),
		Resources: env.ResourcesUsed(),
		Features:  len(features),
	}
}

// wrap returns the single non-empty node, or a group of them.
func wrap(nodes []*scene.Node) *scene.Node {
	var kept []*scene.Node
	for _, n := range nodes {
		if n != nil && !n.Empty() {
			kept = append(kept, n)
		}
	}
	switch len(kept) {
	case 0:
		return nil
	case 1:
		return kept[0]
	}
	return &scene.Node{Children: kept}
}

// PostProcess registers resources, packages them, writes the content and
// publishes the completion event. The returned error is a warning: the
// cell keeps its compiled status.
func (c *CellCompiler) PostProcess(ctx context.Context) error {
	r := c.run
	res := c.Result()

	var warns []error
	if res.Status == StatusCompiled && res.Node != nil {
		var used []resource.Resource
		for _, name := range res.Resources {
			rs, err := r.session.Resources.MarkUsed(name)
			if err != nil {
				warns = append(warns, err)
				continue
			}
			used = append(used, rs)
		}
		if r.packager != nil && len(used) > 0 {
			if _, err := r.packager.Package(ctx, used); err != nil {
				warns = append(warns, fmt.Errorf("package resources: %w", err))
			}
		}
		if err := r.writer.Write(ctx, c.Path, res.Node); err != nil {
			warns = append(warns, fmt.Errorf("write %s: %w", c.Path, err))
		} else {
			res.Written = true
		}
	}
	warn := errors.Join(warns...)
	if warn != nil {
		if res.Message != "" {
			res.Message += "; "
		}
		res.Message += warn.Error()
	}

	observability.IncCellResult(r.layer, res.Status.String())
	if r.events != nil {
		ev := events.Event{
			RunID:      r.runID,
			Layer:      r.layer,
			Cell:       c.Key.String(),
			Level:      c.Level,
			Status:     res.Status.String(),
			Message:    res.Message,
			DurationMS: res.Duration.Milliseconds(),
		}
		if res.HasContent() {
			ev.Path = c.Path
		}
		r.events.Publish(ev)
	}

	res.Node = nil
	c.mu.Lock()
	c.result = res
	c.state = StatusPostProcessed
	c.mu.Unlock()
	if warn != nil {
		return fmt.Errorf("cell %s: %w", c.Key, warn)
	}
	return nil
}
