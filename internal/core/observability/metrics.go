package observability

import (
	"errors"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	cellsQueued = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "cells_queued_total",
			Help: "Cell compile tasks queued.",
		},
		[]string{"layer"},
	)

	cellResults = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "cell_results_total",
			Help: "Cell compile results by status.",
		},
		[]string{"layer", "status"},
	)

	cellCompileSeconds = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "cell_compile_seconds",
			Help:    "Time spent running the filter graph for one cell.",
			Buckets: prometheus.ExponentialBuckets(0.001, 2, 15), // 1ms to ~16s
		},
		[]string{"layer", "level"},
	)

	filterStageSeconds = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "filter_stage_seconds",
			Help:    "Time spent in one filter stage.",
			Buckets: prometheus.ExponentialBuckets(0.0001, 2, 15),
		},
		[]string{"filter"},
	)

	tasksInFlight = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "tasks_in_flight",
			Help: "Tasks currently executing on worker goroutines.",
		},
	)

	terrainCache = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "terrain_cache_total",
			Help: "Terrain node cache lookups by outcome.",
		},
		[]string{"outcome"},
	)

	contentWrites = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "content_writes_total",
			Help: "Scene objects written by kind and result.",
		},
		[]string{"kind", "result"},
	)

	archiveOpSeconds = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "archive_op_seconds",
			Help:    "Redis archive operation latency by op and result.",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"op", "result"},
	)

	tileRequests = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "tile_requests_total",
			Help: "Tile server requests by status.",
		},
		[]string{"status"},
	)

	tileCache = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "tile_cache_total",
			Help: "Tile server read cache lookups by outcome.",
		},
		[]string{"outcome"},
	)

	eventsConsumed = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "cell_events_consumed_total",
			Help: "Cell events consumed by the tile server, by status and result.",
		},
		[]string{"status", "result"},
	)

	httpRequestDurationSeconds = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "http_request_duration_seconds",
			Help:    "Duration of HTTP requests in seconds.",
			Buckets: prometheus.ExponentialBuckets(0.005, 2, 12), // 5ms to ~20s
		},
		[]string{"method", "route", "status"},
	)
)

// Init additionally registers the collectors with reg, for binaries that
// serve a private registry. Already-registered collectors are skipped.
func Init(reg prometheus.Registerer) error {
	if reg == nil {
		return nil
	}
	cs := []prometheus.Collector{
		cellsQueued, cellResults, cellCompileSeconds, filterStageSeconds,
		tasksInFlight, terrainCache, contentWrites, archiveOpSeconds,
		tileRequests, tileCache, eventsConsumed, httpRequestDurationSeconds,
	}
	for _, c := range cs {
		if err := reg.Register(c); err != nil {
			var are prometheus.AlreadyRegisteredError
			if errors.As(err, &are) {
				continue
			}
			return err
		}
	}
	return nil
}

func IncCellsQueued(layer string) { cellsQueued.WithLabelValues(layer).Inc() }

func IncCellResult(layer, status string) { cellResults.WithLabelValues(layer, status).Inc() }

func ObserveCellCompile(layer string, level int, d time.Duration) {
	cellCompileSeconds.WithLabelValues(layer, strconv.Itoa(level)).Observe(d.Seconds())
}

func ObserveFilterStage(filter string, d time.Duration) {
	filterStageSeconds.WithLabelValues(filter).Observe(d.Seconds())
}

func TaskStarted()  { tasksInFlight.Inc() }
func TaskFinished() { tasksInFlight.Dec() }

func IncTerrainCacheHit()  { terrainCache.WithLabelValues("hit").Inc() }
func IncTerrainCacheMiss() { terrainCache.WithLabelValues("miss").Inc() }

func IncContentWrite(kind string, err error) {
	res := "ok"
	if err != nil {
		res = "error"
	}
	contentWrites.WithLabelValues(kind, res).Inc()
}

func ObserveArchiveOp(op string, err error, seconds float64) {
	res := "ok"
	if err != nil {
		res = "error"
	}
	archiveOpSeconds.WithLabelValues(op, res).Observe(seconds)
}

func IncTileCache(hit bool) {
	if hit {
		tileCache.WithLabelValues("hit").Inc()
		return
	}
	tileCache.WithLabelValues("miss").Inc()
}

func IncEventConsumed(status string, err error) {
	res := "ok"
	if err != nil {
		res = "error"
	}
	eventsConsumed.WithLabelValues(status, res).Inc()
}

func ObserveHTTP(method, route string, status int, durationSeconds float64) {
	st := strconv.Itoa(status)
	tileRequests.WithLabelValues(st).Inc()
	httpRequestDurationSeconds.WithLabelValues(method, route, st).Observe(durationSeconds)
}
