package health

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"
)

func TestLiveness_Handler(t *testing.T) {
	req := httptest.NewRequest(http.MethodGet, "/healthz", nil)
	rr := httptest.NewRecorder()

	Liveness()(rr, req)

	if rr.Code != http.StatusOK {
		t.Fatalf("status=%d want 200", rr.Code)
	}
	ct := rr.Header().Get("Content-Type")
	if !strings.HasPrefix(ct, "text/plain") {
		t.Fatalf("content-type=%q want text/plain", ct)
	}
	if got := strings.TrimSpace(rr.Body.String()); got != "ok" {
		t.Fatalf("body=%q want ok", got)
	}
}

type readyFunc func(ctx context.Context) error

func (f readyFunc) Ready(ctx context.Context) error { return f(ctx) }

func TestReadiness_Handler(t *testing.T) {
	cases := []struct {
		name string
		err  error
		code int
		body string
	}{
		{"ready", nil, http.StatusOK, `"status":"ready"`},
		{"down", errors.New("redis: connection refused"), http.StatusServiceUnavailable, `"error":"redis: connection refused"`},
	}
	for _, c := range cases {
		var sawDeadline bool
		h := Readiness(readyFunc(func(ctx context.Context) error {
			_, sawDeadline = ctx.Deadline()
			return c.err
		}), time.Second)
		rr := httptest.NewRecorder()
		h(rr, httptest.NewRequest(http.MethodGet, "/readyz", nil))
		if rr.Code != c.code || !strings.Contains(rr.Body.String(), c.body) {
			t.Fatalf("%s: status=%d body=%s", c.name, rr.Code, rr.Body.String())
		}
		if !sawDeadline {
			t.Fatalf("%s: check ran without a deadline", c.name)
		}
	}
}
