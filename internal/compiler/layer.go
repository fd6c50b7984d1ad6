// Package compiler turns a feature source into tiled scene content and
// the paged index that references it.
package compiler

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"math"
	"time"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"

	"github.com/mohammed-shakir/vector-scene-tiler/internal/core/model"
	"github.com/mohammed-shakir/vector-scene-tiler/internal/core/observability"
	"github.com/mohammed-shakir/vector-scene-tiler/internal/events"
	"github.com/mohammed-shakir/vector-scene-tiler/internal/filter"
	"github.com/mohammed-shakir/vector-scene-tiler/internal/logger"
	"github.com/mohammed-shakir/vector-scene-tiler/internal/output"
	"github.com/mohammed-shakir/vector-scene-tiler/internal/profile"
	"github.com/mohammed-shakir/vector-scene-tiler/internal/props"
	"github.com/mohammed-shakir/vector-scene-tiler/internal/resource"
	"github.com/mohammed-shakir/vector-scene-tiler/internal/source"
	"github.com/mohammed-shakir/vector-scene-tiler/internal/srs"
	"github.com/mohammed-shakir/vector-scene-tiler/internal/task"
	"github.com/mohammed-shakir/vector-scene-tiler/internal/terrain"
)

var (
	ErrNoLevels      = errors.New("compiler: no levels configured")
	ErrTooManyLevels = errors.New("compiler: more levels than the profile provides")
	ErrNoProfile     = errors.New("compiler: profile is required")
	ErrNoSource      = errors.New("compiler: feature source is required")
	ErrNoWriter      = errors.New("compiler: content writer is required")
	ErrNoGraph       = errors.New("compiler: level has no filter graph")
)

// Level configures one level of detail: the graph compiling its cells and
// the viewing range in which its content is shown.
type Level struct {
	MinRange float64
	MaxRange float64
	Graph    *filter.Graph
}

// TaskManager is the worker pool the compiler drains. *task.Manager
// implements it.
type TaskManager interface {
	Queue(t task.Task) error
	Seal()
	Wait(ctx context.Context, timeout time.Duration) (task.Task, error)
	Close()
}

// EventSink receives one event per post-processed cell.
type EventSink interface {
	Publish(ev events.Event)
}

// Progress is handed to Options.Progress after every post-processed cell.
type Progress struct {
	Cell     string
	Status   Status
	Done     int
	Total    int
	Elapsed  time.Duration
	Failed   int
	Compiled int
}

type Options struct {
	Workers     int
	Overwrite   bool
	WaitTimeout time.Duration
	Progress    func(Progress)
	// NewTasks builds the worker pool; nil uses task.New.
	NewTasks func(workers int, log *slog.Logger) TaskManager
}

// MapLayerCompiler compiles every cell of a profile that intersects the
// source and assembles the paged index over the results.
type MapLayerCompiler struct {
	filter.Base

	Profile  profile.Profile
	Source   source.FeatureSource
	Levels   []Level
	Session  *filter.Session
	Env      *filter.Env
	Terrain  *terrain.Reader
	Writer   output.Writer
	Layout   output.Layout
	Packager *resource.Packager
	Events   EventSink
	Log      *slog.Logger
	Options  Options
}

func NewMapLayerCompiler(name string) *MapLayerCompiler {
	m := &MapLayerCompiler{
		Base:    filter.NewBase("maplayer"),
		Session: filter.NewSession(),
		Layout:  output.NewLayout(name),
		Options: Options{Workers: 1, WaitTimeout: 10 * time.Second},
	}
	m.SetName(name)
	m.Bind(
		filter.IntParam("workers", &m.Options.Workers),
		filter.BoolParam("overwrite", &m.Options.Overwrite),
		filter.Param{
			Name: "wait_timeout", Kind: props.KindString,
			Get: func() props.Value { return props.String(m.Options.WaitTimeout.String()) },
			Set: func(v props.Value) error {
				d, err := time.ParseDuration(v.AsString())
				if err != nil {
					return err
				}
				m.Options.WaitTimeout = d
				return nil
			},
		},
		filter.Param{
			Name: "prefix", Kind: props.KindString,
			Get: func() props.Value { return props.String(m.Layout.Prefix) },
			Set: func(v props.Value) error { m.Layout = output.NewLayout(v.AsString()); return nil },
		},
	)
	return m
}

func (m *MapLayerCompiler) log() *slog.Logger {
	if m.Log != nil {
		return m.Log
	}
	return slog.Default()
}

func (m *MapLayerCompiler) validate() error {
	switch {
	case len(m.Levels) == 0:
		return ErrNoLevels
	case m.Profile == nil:
		return ErrNoProfile
	case m.Source == nil:
		return ErrNoSource
	case m.Writer == nil:
		return ErrNoWriter
	case len(m.Levels) > m.Profile.Levels():
		return fmt.Errorf("%w: %d > %d", ErrTooManyLevels, len(m.Levels), m.Profile.Levels())
	}
	for i, l := range m.Levels {
		if l.Graph == nil {
			return fmt.Errorf("%w: level %d", ErrNoGraph, i)
		}
		if out := l.Graph.Output(); out != filter.CapNodes {
			return fmt.Errorf("%w: level %d graph %q ends in %s, want %s",
				filter.ErrCapabilityMismatch, i, l.Graph.Name(), out, filter.CapNodes)
		}
	}
	return nil
}

// run is the immutable state shared by the cells of one Compile call.
type run struct {
	runID    string
	layer    string
	log      *slog.Logger
	opts     Options
	levels   []Level
	layout   output.Layout
	writer   output.Writer
	source   source.FeatureSource
	session  *filter.Session
	env      *filter.Env
	terrain  *terrain.Reader
	packager *resource.Packager
	events   EventSink

	toInput       func(model.Extent) model.Extent
	toOutput      func(model.Extent) model.Extent
	profToOut     srs.Func
	profToTerrain srs.Func
}

func (m *MapLayerCompiler) prepare(runID string) (*run, error) {
	session := m.Session
	if session == nil {
		session = filter.NewSession()
	}
	env := m.Env
	if env == nil {
		env = filter.NewEnv(session)
	}
	env = env.Clone()
	env.Session = session
	env.InputSRS = m.Source.SRS()
	if m.Terrain != nil && env.TerrainSRS == nil {
		env.TerrainSRS = m.Terrain.SRS()
	}

	profSRS := m.Profile.Extent().SRS
	if profSRS == nil {
		profSRS = env.InputSRS
	}
	toIn, err := session.Policy.Transformer(profSRS, env.InputSRS)
	if err != nil {
		return nil, fmt.Errorf("profile to source: %w", err)
	}
	toOut, err := session.Policy.Transformer(profSRS, env.OutputSRS)
	if err != nil {
		return nil, fmt.Errorf("profile to output: %w", err)
	}
	toTerrain, err := session.Policy.Transformer(profSRS, env.TerrainSRS)
	if err != nil {
		return nil, fmt.Errorf("profile to terrain: %w", err)
	}
	if _, err := env.Transformer(); err != nil {
		return nil, fmt.Errorf("source to output: %w", err)
	}

	outSRS := env.OutputSRS
	if outSRS == nil {
		outSRS = profSRS
	}
	return &run{
		runID:         runID,
		layer:         m.Name(),
		log:           m.log(),
		opts:          m.Options,
		levels:        m.Levels,
		layout:        m.Layout,
		writer:        m.Writer,
		source:        m.Source,
		session:       session,
		env:           env,
		terrain:       m.Terrain,
		packager:      m.Packager,
		events:        m.Events,
		toInput:       func(e model.Extent) model.Extent { return reproject(e, toIn, env.InputSRS) },
		toOutput:      func(e model.Extent) model.Extent { return reproject(e, toOut, outSRS) },
		profToOut:     toOut,
		profToTerrain: toTerrain,
	}, nil
}

// reproject maps the corners of e and returns their bounding box.
func reproject(e model.Extent, fn srs.Func, to *srs.SRS) model.Extent {
	if !e.IsValid() || e.IsInfinite() {
		e.SRS = to
		return e
	}
	out := model.EmptyExtent(to)
	for _, c := range [][2]float64{{e.XMin, e.YMin}, {e.XMax, e.YMin}, {e.XMax, e.YMax}, {e.XMin, e.YMax}} {
		x, y, _ := fn(c[0], c[1], 0)
		out.ExpandToInclude(x, y)
	}
	return out
}

// plan lists the cells of every level that intersect the source, coarse
// levels first.
func (m *MapLayerCompiler) plan(r *run) []*CellCompiler {
	ext := m.Source.Extent()
	if ext.IsValid() && !ext.IsInfinite() {
		profSRS := m.Profile.Extent().SRS
		fn, err := r.session.Policy.Transformer(m.Source.SRS(), profSRS)
		if err == nil {
			ext = reproject(ext, fn, profSRS)
		}
	} else if ext.IsInfinite() {
		ext = m.Profile.Extent()
	}
	var cells []*CellCompiler
	for l := range m.Levels {
		for _, k := range m.Profile.KeysIntersecting(l, ext) {
			cells = append(cells, newCell(r, k))
		}
	}
	return cells
}

// Compile runs every cell, post-processes completions as they arrive and
// writes the index hierarchy. Configuration errors are returned before any
// cell is queued; cell failures are reported in the Report.
func (m *MapLayerCompiler) Compile(ctx context.Context) (*Report, error) {
	if err := m.validate(); err != nil {
		return nil, err
	}
	runID := logger.RunID(ctx)
	if runID == "" {
		runID = uuid.NewString()
	}
	ctx = logger.WithLayer(logger.WithRunID(ctx, runID), m.Name())

	r, err := m.prepare(runID)
	if err != nil {
		return nil, err
	}
	cells := m.plan(r)
	rep := newReport(r.layer, runID, len(cells))
	r.log.InfoContext(ctx, "compile started", "cells", len(cells), "levels", len(m.Levels), "workers", m.Options.Workers)

	newTasks := m.Options.NewTasks
	if newTasks == nil {
		newTasks = func(n int, log *slog.Logger) TaskManager { return task.New(n, log) }
	}
	// task manager logs carry no context
	tm := newTasks(m.Options.Workers, r.log.With("run_id", runID, "layer", r.layer))
	defer tm.Close()

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		defer tm.Seal()
		for _, c := range cells {
			if err := gctx.Err(); err != nil {
				return err
			}
			observability.IncCellsQueued(r.layer)
			if err := tm.Queue(c); err != nil {
				return fmt.Errorf("queue %s: %w", c.Key, err)
			}
		}
		return nil
	})

	drainErr := m.drain(ctx, r, tm, rep)
	if err := g.Wait(); err != nil && drainErr == nil {
		drainErr = err
	}
	if drainErr != nil {
		rep.finish()
		return rep, drainErr
	}

	results := make(map[string]Result, len(cells))
	var roots []profile.Key
	for _, c := range cells {
		results[c.Key.String()] = c.Result()
		if c.Level == 0 {
			roots = append(roots, c.Key)
		}
	}
	idx := &indexer{run: r, profile: m.Profile, roots: roots, results: results, report: rep}
	if err := idx.build(ctx); err != nil {
		rep.finish()
		return rep, err
	}

	rep.finish()
	if r.events != nil && rep.Root != "" {
		r.events.Publish(events.Event{
			RunID:      runID,
			Layer:      r.layer,
			Status:     events.StatusIndexed,
			Path:       rep.Root,
			Message:    rep.Summary(),
			DurationMS: rep.Duration.Milliseconds(),
		})
	}
	r.log.InfoContext(ctx, "compile finished",
		"compiled", rep.Compiled, "failed", rep.Failed, "skipped", rep.Skipped,
		"written", rep.Written, "indexes", rep.Indexes, "warnings", len(rep.Warnings),
		"dur", rep.Duration.String())
	return rep, nil
}

func (m *MapLayerCompiler) drain(ctx context.Context, r *run, tm TaskManager, rep *Report) error {
	timeout := m.Options.WaitTimeout
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	for {
		t, err := tm.Wait(ctx, timeout)
		switch {
		case errors.Is(err, task.ErrTimeout):
			r.log.InfoContext(ctx, "compile progress",
				"done", rep.Done(), "total", rep.Queued,
				"pct", math.Round(100*float64(rep.Done())/math.Max(1, float64(rep.Queued))))
			continue
		case errors.Is(err, task.ErrDrained):
			return nil
		case err != nil:
			return err
		}

		c, ok := t.(*CellCompiler)
		if !ok {
			return fmt.Errorf("compiler: unexpected task %T", t)
		}
		before := c.Result()
		outcome := before.Status
		if werr := c.PostProcess(ctx); werr != nil {
			rep.warn(werr)
			r.log.WarnContext(ctx, "cell post-process", "cell", c.Key.String(), "err", werr)
		}
		res := c.Result()
		rep.add(c.Key.String(), before, res)
		switch outcome {
		case StatusFailed:
			r.log.WarnContext(ctx, "cell failed", "cell", c.Key.String(), "err", res.Message)
		default:
			r.log.DebugContext(ctx, "cell done", "cell", c.Key.String(), "status", outcome.String(),
				"features", res.Features, "dur", res.Duration.String())
		}
		if m.Options.Progress != nil {
			m.Options.Progress(Progress{
				Cell:     c.Key.String(),
				Status:   outcome,
				Done:     rep.Done(),
				Total:    rep.Queued,
				Elapsed:  time.Since(rep.Started),
				Failed:   rep.Failed,
				Compiled: rep.Compiled,
			})
		}
	}
}
