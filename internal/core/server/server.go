// Package server serves compiled scene content over HTTP.
package server

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/mohammed-shakir/vector-scene-tiler/internal/core/config"
	"github.com/mohammed-shakir/vector-scene-tiler/internal/core/health"
	middleware "github.com/mohammed-shakir/vector-scene-tiler/internal/core/middleware"
	"github.com/mohammed-shakir/vector-scene-tiler/internal/output"
)

// Options configures the tile routes. Metrics defaults to the global
// Prometheus handler; Ready is optional.
type Options struct {
	Store        output.Reader
	Ready        health.ReadinessReporter
	Metrics      http.Handler
	MaxAge       time.Duration
	ReadyTimeout time.Duration
}

func NewRouter(logger *slog.Logger, o Options) http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.Recover())
	r.Use(middleware.Logging(logger))
	r.Use(middleware.Metrics())
	r.Use(middleware.CORS())

	if o.Metrics == nil {
		o.Metrics = promhttp.Handler()
	}
	if o.ReadyTimeout <= 0 {
		o.ReadyTimeout = 2 * time.Second
	}

	r.Get("/healthz", health.Liveness())
	if o.Ready != nil {
		r.Get("/readyz", health.Readiness(o.Ready, o.ReadyTimeout))
	}
	r.Method(http.MethodGet, "/metrics", o.Metrics)

	tiles := HandleTile(logger, o.Store, o.MaxAge)
	r.Get("/tiles/{name}", tiles)
	r.Head("/tiles/{name}", tiles)
	return r
}

// sets up http and starts serving
func Run(ctx context.Context, cfg config.Config, logger *slog.Logger, handler http.Handler) error {
	srv := &http.Server{
		Addr:              cfg.Addr,
		Handler:           handler,
		ReadHeaderTimeout: 5 * time.Second,
		ReadTimeout:       15 * time.Second,
		WriteTimeout:      60 * time.Second,
		IdleTimeout:       60 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		logger.Info("http listen", "addr", cfg.Addr)
		if err := srv.ListenAndServe(); !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
	}()

	select {
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		_ = srv.Shutdown(shutdownCtx)
		return nil
	case err := <-errCh:
		return err
	}
}
