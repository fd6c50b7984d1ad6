// Package metrics exposes Prometheus metrics for the compiler and tile server.
package metrics

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/mohammed-shakir/vector-scene-tiler/internal/core/observability"
)

type BuildInfo struct {
	Version   string
	Revision  string
	BuildDate string
}

type Config struct {
	Enabled bool
	Addr    string
	Path    string
	Build   BuildInfo
}

type Provider struct {
	reg       *prometheus.Registry
	buildInfo *prometheus.GaugeVec
	cfg       Config
}

// Init builds a private registry holding the runtime collectors, the build
// info gauge and the pipeline collectors from observability.
func Init(cfg Config) (*Provider, error) {
	reg := prometheus.NewRegistry()

	reg.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)

	build := prometheus.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "app_build_info",
			Help: "Build info for this binary (value is always 1).",
		},
		[]string{"version", "revision", "build_date"},
	)
	reg.MustRegister(build)
	v := cfg.Build
	if v.Version == "" {
		v.Version = "dev"
	}
	build.WithLabelValues(v.Version, v.Revision, v.BuildDate).Set(1)

	if err := observability.Init(reg); err != nil {
		return nil, err
	}
	if cfg.Path == "" {
		cfg.Path = "/metrics"
	}
	return &Provider{reg: reg, buildInfo: build, cfg: cfg}, nil
}

func (p *Provider) Handler() http.Handler {
	return promhttp.HandlerFor(p.reg, promhttp.HandlerOpts{})
}

func (p *Provider) Register(cs ...prometheus.Collector) {
	for _, c := range cs {
		p.reg.MustRegister(c)
	}
}

func (p *Provider) Registerer() prometheus.Registerer { return p.reg }

// Serve exposes the registry on cfg.Addr until ctx is cancelled. It
// returns nil right away when metrics are disabled.
func (p *Provider) Serve(ctx context.Context) error {
	if !p.cfg.Enabled || p.cfg.Addr == "" {
		return nil
	}
	mux := http.NewServeMux()
	mux.Handle(p.cfg.Path, p.Handler())
	srv := &http.Server{Addr: p.cfg.Addr, Handler: mux, ReadHeaderTimeout: 5 * time.Second}

	errCh := make(chan error, 1)
	go func() { errCh <- srv.ListenAndServe() }()

	select {
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	case <-ctx.Done():
		shCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		return srv.Shutdown(shCtx)
	}
}
