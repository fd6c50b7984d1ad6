package logger

import (
	"bytes"
	"context"
	"encoding/json"
	"log/slog"
	"strings"
	"testing"

	"github.com/rs/zerolog"
)

func TestSlog_CarriesContextFields(t *testing.T) {
	var buf bytes.Buffer
	zl := Build(Config{Level: "debug", Component: "compiler"}, &buf)
	log := NewSlog(&zl)

	ctx := WithCell(WithLayer(WithRunID(context.Background(), "run-1"), "roads"), "0_1_1")
	log.InfoContext(ctx, "cell compiled", "features", 3, "ok", true)

	var line map[string]any
	if err := json.Unmarshal(buf.Bytes(), &line); err != nil {
		t.Fatalf("not JSON: %v: %s", err, buf.String())
	}
	want := map[string]any{
		"msg": "cell compiled", "level": "info", "component": "compiler",
		"run_id": "run-1", "layer": "roads", "cell": "0_1_1",
		"features": float64(3), "ok": true,
	}
	for k, v := range want {
		if line[k] != v {
			t.Fatalf("%s=%v want %v (line %s)", k, line[k], v, buf.String())
		}
	}
	if RunID(ctx) != "run-1" {
		t.Fatalf("RunID=%q", RunID(ctx))
	}
}

func TestWithHelpers_IgnoreEmpty(t *testing.T) {
	ctx := context.Background()
	if WithLayer(ctx, "") != ctx || WithCell(ctx, "") != ctx {
		t.Fatalf("empty values should not wrap the context")
	}
	if id := NewID(); len(id) != 16 {
		t.Fatalf("NewID=%q", id)
	}
}

func TestSlog_GroupsPrefixKeys(t *testing.T) {
	var buf bytes.Buffer
	zl := Build(Config{Level: "debug"}, &buf)
	log := NewSlog(&zl).WithGroup("tile").With("layer", "roads")

	log.Info("served", "bytes", 12, slog.Group("cache", "hit", true))

	var line map[string]any
	if err := json.Unmarshal(buf.Bytes(), &line); err != nil {
		t.Fatalf("not JSON: %v: %s", err, buf.String())
	}
	want := map[string]any{"tile.layer": "roads", "tile.bytes": float64(12), "tile.cache.hit": true}
	for k, v := range want {
		if line[k] != v {
			t.Fatalf("%s=%v want %v (line %s)", k, line[k], v, buf.String())
		}
	}
	if _, ok := line["bytes"]; ok {
		t.Fatalf("ungrouped key leaked: %s", buf.String())
	}
}

func TestSlog_EnabledFollowsGlobalLevel(t *testing.T) {
	prev := zerolog.GlobalLevel()
	t.Cleanup(func() { zerolog.SetGlobalLevel(prev) })

	var buf bytes.Buffer
	zl := Build(Config{Level: "info"}, &buf)
	log := NewSlog(&zl)

	if log.Enabled(context.Background(), slog.LevelDebug) {
		t.Fatalf("debug enabled at info level")
	}
	if !log.Enabled(context.Background(), slog.LevelWarn) {
		t.Fatalf("warn disabled at info level")
	}
	log.Debug("hidden")
	if buf.Len() != 0 {
		t.Fatalf("debug line written: %s", buf.String())
	}
}

func TestSlog_ContextAndWithDoNotDuplicateKeys(t *testing.T) {
	var buf bytes.Buffer
	zl := Build(Config{Level: "debug"}, &buf)
	log := NewSlog(&zl).With("run_id", "run-2", "layer", "roads")

	ctx := WithLayer(WithRunID(context.Background(), "run-2"), "roads")
	log.InfoContext(ctx, "layer compiled", "layer", "roads")

	out := buf.String()
	for _, k := range []string{`"run_id"`, `"layer"`} {
		if n := strings.Count(out, k); n != 1 {
			t.Fatalf("%s appears %d times: %s", k, n, out)
		}
	}
	var line map[string]any
	if err := json.Unmarshal(buf.Bytes(), &line); err != nil {
		t.Fatalf("not JSON: %v: %s", err, out)
	}
	if line["run_id"] != "run-2" || line["layer"] != "roads" {
		t.Fatalf("line=%v", line)
	}
}
