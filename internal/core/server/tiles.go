package server

import (
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/cespare/xxhash/v2"
	"github.com/go-chi/chi/v5"

	"github.com/mohammed-shakir/vector-scene-tiler/internal/output"
)

// HandleTile serves one stored object by name. Responses carry a content
// hash as ETag so clients can revalidate.
func HandleTile(logger *slog.Logger, store output.Reader, maxAge time.Duration) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		name := chi.URLParam(r, "name")
		if name == "" || strings.Contains(name, "..") {
			http.Error(w, "invalid tile name", http.StatusBadRequest)
			return
		}

		b, err := store.Read(r.Context(), name)
		switch {
		case errors.Is(err, output.ErrNotFound):
			http.Error(w, "tile not found", http.StatusNotFound)
			return
		case errors.Is(err, output.ErrBadPath):
			http.Error(w, "invalid tile name", http.StatusBadRequest)
			return
		case err != nil:
			logger.ErrorContext(r.Context(), "tile read failed", "name", name, "err", err)
			http.Error(w, "tile store unavailable", http.StatusBadGateway)
			return
		}

		etag := ETag(b)
		h := w.Header()
		h.Set("ETag", etag)
		if maxAge > 0 {
			h.Set("Cache-Control", "public, max-age="+strconv.Itoa(int(maxAge.Seconds())))
		}
		if match(r.Header.Get("If-None-Match"), etag) {
			w.WriteHeader(http.StatusNotModified)
			return
		}
		h.Set("Content-Type", "application/json")
		h.Set("Content-Length", strconv.Itoa(len(b)))
		w.WriteHeader(http.StatusOK)
		if r.Method == http.MethodHead {
			return
		}
		_, _ = w.Write(b)
	}
}

func ETag(b []byte) string {
	return fmt.Sprintf(`"%016x"`, xxhash.Sum64(b))
}

func match(header, etag string) bool {
	for _, v := range strings.Split(header, ",") {
		v = strings.TrimSpace(strings.TrimPrefix(strings.TrimSpace(v), "W/"))
		if v == "*" || v == etag {
			return true
		}
	}
	return false
}
