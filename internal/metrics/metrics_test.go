package metrics

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"

	"github.com/mohammed-shakir/vector-scene-tiler/internal/core/observability"
)

func assertHasMetricLine(t *testing.T, body, metric string, wantLabels ...string) {
	t.Helper()
	for ln := range strings.SplitSeq(body, "\n") {
		if !strings.HasPrefix(ln, metric+"{") {
			continue
		}
		ok := true
		for _, s := range wantLabels {
			if !strings.Contains(ln, s) {
				ok = false
				break
			}
		}
		if ok && (len(ln) > 0 && ln[len(ln)-1] >= '0' && ln[len(ln)-1] <= '9') {
			return
		}
	}
	t.Fatalf("expected a %s line with labels %v; got:\n%s", metric, wantLabels, body)
}

func TestProvider_RegistersStandardCollectors_AndBuildInfo(t *testing.T) {
	p, err := Init(Config{Build: BuildInfo{Version: "test", Revision: "r", BuildDate: "now"}})
	if err != nil {
		t.Fatal(err)
	}

	g := prometheus.NewGauge(prometheus.GaugeOpts{Name: "test_gauge", Help: "smoke"})
	p.Register(g)
	g.Set(42)

	if n := testutil.CollectAndCount(g); n == 0 {
		t.Fatalf("expected at least 1 sample from test_gauge, got %d", n)
	}

	req := httptest.NewRequest(http.MethodGet, "/metrics", nil)
	rr := httptest.NewRecorder()
	p.Handler().ServeHTTP(rr, req)
	if rr.Code != http.StatusOK {
		t.Fatalf("status=%d want 200", rr.Code)
	}
	body := rr.Body.String()

	if !strings.Contains(body, "go_goroutines") {
		t.Fatalf("expected go_goroutines in payload; got:\n%s", body)
	}
	assertHasMetricLine(t, body, "app_build_info", `version="test"`)
}

func TestProvider_ExportsPipelineCollectors(t *testing.T) {
	p, err := Init(Config{})
	if err != nil {
		t.Fatal(err)
	}
	observability.IncCellsQueued("buildings")
	observability.IncCellResult("buildings", "failed")
	observability.IncTerrainCacheMiss()

	rr := httptest.NewRecorder()
	p.Handler().ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	body := rr.Body.String()

	assertHasMetricLine(t, body, "cells_queued_total", `layer="buildings"`)
	assertHasMetricLine(t, body, "cell_results_total", `layer="buildings"`, `status="failed"`)
	assertHasMetricLine(t, body, "terrain_cache_total", `outcome="miss"`)
}

func TestProvider_ServeDisabledReturnsImmediately(t *testing.T) {
	p, err := Init(Config{Enabled: false, Addr: ":0"})
	if err != nil {
		t.Fatal(err)
	}
	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	if err := p.Serve(ctx); err != nil {
		t.Fatalf("Serve: %v", err)
	}
}
