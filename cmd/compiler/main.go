package main

import (
	"context"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/mohammed-shakir/vector-scene-tiler/internal/compiler"
	"github.com/mohammed-shakir/vector-scene-tiler/internal/core/config"
	"github.com/mohammed-shakir/vector-scene-tiler/internal/events"
	"github.com/mohammed-shakir/vector-scene-tiler/internal/filter"
	"github.com/mohammed-shakir/vector-scene-tiler/internal/filters"
	"github.com/mohammed-shakir/vector-scene-tiler/internal/layerdoc"
	"github.com/mohammed-shakir/vector-scene-tiler/internal/logger"
	"github.com/mohammed-shakir/vector-scene-tiler/internal/metrics"
	"github.com/mohammed-shakir/vector-scene-tiler/internal/output"
	"github.com/mohammed-shakir/vector-scene-tiler/internal/resource"
	"github.com/mohammed-shakir/vector-scene-tiler/internal/srs"
)

var Version = "dev"

func main() {
	os.Exit(run())
}

func run() int {
	layerPath := flag.String("layer", "", "layer document (YAML)")
	workers := flag.Int("workers", 0, "worker count (overrides WORKERS)")
	overwrite := flag.Bool("overwrite", false, "recompile cells whose content already exists")
	prefix := flag.String("prefix", "", "output name prefix (overrides the layer name)")
	savePath := flag.String("save", "", "write the resolved layer document here")
	flag.Parse()

	if *layerPath == "" && flag.NArg() > 0 {
		*layerPath = flag.Arg(0)
	}
	if *layerPath == "" {
		fmt.Fprintln(os.Stderr, "usage: compiler -layer layer.yaml")
		return 2
	}

	cfg := config.FromEnv()

	zl := logger.Build(logger.Config{
		Level:     cfg.LogLevel,
		Console:   cfg.LogConsole,
		SampleN:   cfg.LogSampleN,
		Component: "compiler",
	}, os.Stdout)
	appLog := logger.NewSlog(&zl)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	prov, err := metrics.Init(metrics.Config{
		Enabled: cfg.Metrics.Enabled,
		Addr:    cfg.Metrics.Addr,
		Path:    cfg.Metrics.Path,
		Build: metrics.BuildInfo{
			Version:   Version,
			Revision:  os.Getenv("BUILD_REVISION"),
			BuildDate: os.Getenv("BUILD_DATE"),
		},
	})
	if err != nil {
		appLog.Error("metrics init failed", "err", err)
		return 1
	}
	mctx, stopMetrics := context.WithCancel(ctx)
	g, gctx := errgroup.WithContext(mctx)
	g.Go(func() error { return prov.Serve(gctx) })
	defer func() {
		stopMetrics()
		if err := g.Wait(); err != nil {
			appLog.Warn("metrics server exited", "err", err)
		}
	}()

	doc, err := layerdoc.Load(*layerPath)
	if err != nil {
		appLog.Error("load layer document", "path", *layerPath, "err", err)
		return 1
	}
	if doc.Terrain != nil && doc.Terrain.CacheSize == 0 {
		doc.Terrain.CacheSize = cfg.TerrainCacheSize
	}

	session := filter.NewSession()
	session.Policy = srs.Policy{GeographicEquivalence: cfg.GeographicEquivalence}

	layer, err := layerdoc.Build(ctx, doc, layerdoc.Options{
		Registry: filters.NewRegistry(),
		Session:  session,
		Log:      appLog,
	})
	if err != nil {
		appLog.Error("build layer", "layer", doc.Name, "err", err)
		return 1
	}

	store, err := output.Open(ctx, cfg.Archive)
	if err != nil {
		appLog.Error("open archive", "driver", string(cfg.Archive.Driver), "err", err)
		return 1
	}
	if c, ok := store.(interface{ Close() error }); ok {
		defer func() { _ = c.Close() }()
	}

	m := layer.Compiler
	m.Writer = store
	m.Packager = resource.NewPackager(cfg.Archive.OutputDir, appLog)
	applyOverrides(m, doc.Properties, cfg, flagOverrides{workers: *workers, overwrite: *overwrite, prefix: *prefix})
	m.Options.Progress = progressLog(appLog)

	if cfg.Events.Enabled {
		pub, err := events.NewPublisher(cfg.Events.Brokers, cfg.Events.Topic, cfg.Events.QueueSize, appLog)
		if err != nil {
			appLog.Error("events publisher", "err", err)
			return 1
		}
		defer func() { _ = pub.Close() }()
		m.Events = pub
	}

	appLog.Info("compiling layer",
		"layer", doc.Name,
		"version", Version,
		"workers", m.Options.Workers,
		"archive", string(cfg.Archive.Driver))

	rep, err := m.Compile(ctx)
	if err != nil {
		appLog.Error("compile failed", "layer", doc.Name, "err", err)
		return 1
	}
	fmt.Println(rep.Summary())

	if *savePath != "" {
		doc.Capture(layer)
		if err := doc.Save(*savePath); err != nil {
			appLog.Error("save layer document", "path", *savePath, "err", err)
			return 1
		}
	}

	if err := rep.Err(); err != nil {
		return 1
	}
	return 0
}

// flagOverrides holds command-line settings; zero values are unset.
type flagOverrides struct {
	workers   int
	overwrite bool
	prefix    string
}

// applyOverrides layers settings onto m. Document properties win over the
// environment, flags win over both.
func applyOverrides(m *compiler.MapLayerCompiler, props map[string]any, cfg config.Config, f flagOverrides) {
	inDoc := func(k string) bool {
		_, ok := props[k]
		return ok
	}
	if !inDoc("workers") {
		m.Options.Workers = cfg.Workers
	}
	if !inDoc("wait_timeout") && cfg.WaitTimeout > 0 {
		m.Options.WaitTimeout = cfg.WaitTimeout
	}
	if !inDoc("overwrite") && cfg.Overwrite {
		m.Options.Overwrite = true
	}
	if !inDoc("prefix") && cfg.OutputPrefix != "" {
		m.Layout = output.NewLayout(cfg.OutputPrefix)
	}

	if f.workers > 0 {
		m.Options.Workers = f.workers
	}
	if f.overwrite {
		m.Options.Overwrite = true
	}
	if p := strings.TrimSpace(f.prefix); p != "" {
		m.Layout = output.NewLayout(p)
	}
}

// progressLog logs one line per ten percent of cells done.
func progressLog(log *slog.Logger) func(compiler.Progress) {
	last := -1
	return func(p compiler.Progress) {
		if p.Total <= 0 {
			return
		}
		pct := 100 * p.Done / p.Total
		if pct/10 <= last {
			return
		}
		last = pct / 10
		log.Info("compile progress",
			"done", p.Done,
			"total", p.Total,
			"pct", pct,
			"failed", p.Failed,
			"elapsed", p.Elapsed.Round(time.Millisecond).String())
	}
}
