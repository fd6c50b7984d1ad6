package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"golang.org/x/sync/errgroup"

	"github.com/mohammed-shakir/vector-scene-tiler/internal/core/config"
	"github.com/mohammed-shakir/vector-scene-tiler/internal/core/server"
	"github.com/mohammed-shakir/vector-scene-tiler/internal/events"
	"github.com/mohammed-shakir/vector-scene-tiler/internal/logger"
	"github.com/mohammed-shakir/vector-scene-tiler/internal/metrics"
	"github.com/mohammed-shakir/vector-scene-tiler/internal/output"
)

var Version = "dev"

func main() {
	os.Exit(run())
}

func run() int {
	cfg := config.FromEnv()

	zl := logger.Build(logger.Config{
		Level:     cfg.LogLevel,
		Console:   cfg.LogConsole,
		SampleN:   cfg.LogSampleN,
		Component: "tileserver",
	}, os.Stdout)
	appLog := logger.NewSlog(&zl)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()
	g, gctx := errgroup.WithContext(ctx)

	// served on the tile listener under /metrics
	prov, err := metrics.Init(metrics.Config{
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

	store, err := output.Open(ctx, cfg.Archive)
	if err != nil {
		appLog.Error("open archive", "driver", string(cfg.Archive.Driver), "err", err)
		return 1
	}
	if c, ok := store.(interface{ Close() error }); ok {
		defer func() { _ = c.Close() }()
	}

	appLog.Info("starting tile server",
		"addr", cfg.Addr,
		"version", Version,
		"archive", string(cfg.Archive.Driver))

	var reader output.Reader = store
	if cfg.TileCacheSize > 0 {
		cached := output.NewCachedReader(store, cfg.TileCacheSize)
		reader = cached
		if cfg.Events.Enabled {
			c := events.NewConsumer(events.ConsumerConfig{
				Brokers: cfg.Events.Brokers,
				Topic:   cfg.Events.Topic,
				GroupID: cfg.Events.GroupID,
			}, appLog, cached)
			g.Go(func() error { return c.Start(gctx) })
		}
	}

	h := server.NewRouter(appLog, server.Options{
		Store:   reader,
		Ready:   store,
		Metrics: prov.Handler(),
		MaxAge:  cfg.TileMaxAge,
	})
	g.Go(func() error {
		defer stop()
		return server.Run(gctx, cfg, appLog, h)
	})
	if err := g.Wait(); err != nil {
		appLog.Error("server exited with error", "err", err)
		return 1
	}
	appLog.Info("server stopped")
	return 0
}
