package server

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/mohammed-shakir/vector-scene-tiler/internal/output"
)

type mapStore map[string]string

func (m mapStore) Read(_ context.Context, path string) ([]byte, error) {
	switch path {
	case "broken.json":
		return nil, errors.New("connection refused")
	case "bad.json":
		return nil, output.ErrBadPath
	}
	v, ok := m[path]
	if !ok {
		return nil, output.ErrNotFound
	}
	return []byte(v), nil
}

type readiness struct{ err error }

func (r readiness) Ready(context.Context) error { return r.err }

func newTestServer(t *testing.T, ready error) *httptest.Server {
	t.Helper()
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	store := mapStore{"roads.json": `{"root":true}`}
	h := NewRouter(logger, Options{Store: store, Ready: readiness{ready}, MaxAge: time.Minute})
	ts := httptest.NewServer(h)
	t.Cleanup(ts.Close)
	return ts
}

func get(t *testing.T, url string, hdr map[string]string) (*http.Response, string) {
	t.Helper()
	req, err := http.NewRequest(http.MethodGet, url, nil)
	if err != nil {
		t.Fatal(err)
	}
	for k, v := range hdr {
		req.Header.Set(k, v)
	}
	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		t.Fatal(err)
	}
	defer resp.Body.Close()
	b, _ := io.ReadAll(resp.Body)
	return resp, string(b)
}

func TestTiles_ServeAndRevalidate(t *testing.T) {
	ts := newTestServer(t, nil)

	resp, body := get(t, ts.URL+"/tiles/roads.json", nil)
	if resp.StatusCode != http.StatusOK || body != `{"root":true}` {
		t.Fatalf("status=%d body=%q", resp.StatusCode, body)
	}
	if ct := resp.Header.Get("Content-Type"); ct != "application/json" {
		t.Fatalf("Content-Type=%q", ct)
	}
	if cc := resp.Header.Get("Cache-Control"); cc != "public, max-age=60" {
		t.Fatalf("Cache-Control=%q", cc)
	}
	etag := resp.Header.Get("ETag")
	if etag != ETag([]byte(`{"root":true}`)) {
		t.Fatalf("ETag=%q", etag)
	}

	resp, body = get(t, ts.URL+"/tiles/roads.json", map[string]string{"If-None-Match": "W/" + etag})
	if resp.StatusCode != http.StatusNotModified || body != "" {
		t.Fatalf("revalidate status=%d body=%q", resp.StatusCode, body)
	}
	resp, _ = get(t, ts.URL+"/tiles/roads.json", map[string]string{"If-None-Match": `"stale"`})
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("stale etag status=%d", resp.StatusCode)
	}
}

func TestTiles_ErrorStatuses(t *testing.T) {
	ts := newTestServer(t, nil)
	cases := map[string]int{
		"missing.json": http.StatusNotFound,
		"bad.json":     http.StatusBadRequest,
		"broken.json":  http.StatusBadGateway,
	}
	for name, want := range cases {
		resp, _ := get(t, ts.URL+"/tiles/"+name, nil)
		if resp.StatusCode != want {
			t.Fatalf("%s: status=%d want %d", name, resp.StatusCode, want)
		}
	}
}

func TestHealthAndMetricsRoutes(t *testing.T) {
	ts := newTestServer(t, nil)
	if resp, body := get(t, ts.URL+"/healthz", nil); resp.StatusCode != http.StatusOK || body != "ok" {
		t.Fatalf("healthz status=%d body=%q", resp.StatusCode, body)
	}
	if resp, body := get(t, ts.URL+"/readyz", nil); resp.StatusCode != http.StatusOK || !strings.Contains(body, `"ready"`) {
		t.Fatalf("readyz status=%d body=%q", resp.StatusCode, body)
	}
	if resp, _ := get(t, ts.URL+"/metrics", nil); resp.StatusCode != http.StatusOK {
		t.Fatalf("metrics status=%d", resp.StatusCode)
	}

	down := newTestServer(t, errors.New("redis down"))
	resp, body := get(t, down.URL+"/readyz", nil)
	if resp.StatusCode != http.StatusServiceUnavailable || !strings.Contains(body, "redis down") {
		t.Fatalf("readyz status=%d body=%q", resp.StatusCode, body)
	}
}

func TestCORSPreflight(t *testing.T) {
	ts := newTestServer(t, nil)
	req, _ := http.NewRequest(http.MethodOptions, ts.URL+"/tiles/roads.json", nil)
	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		t.Fatal(err)
	}
	resp.Body.Close()
	if resp.StatusCode != http.StatusNoContent || resp.Header.Get("Access-Control-Allow-Origin") != "*" {
		t.Fatalf("preflight status=%d headers=%v", resp.StatusCode, resp.Header)
	}
}
