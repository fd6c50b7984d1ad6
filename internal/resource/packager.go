package resource

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path"
	"path/filepath"
	"strings"
	"sync"

	"github.com/cespare/xxhash/v2"
)

// Packager copies resource files into <Dir>/resources under names derived
// from a hash of their content. Each resource is copied at most once.
type Packager struct {
	dir string
	log *slog.Logger

	mu   sync.Mutex
	done map[string]string
}

func NewPackager(dir string, log *slog.Logger) *Packager {
	if log == nil {
		log = slog.Default()
	}
	return &Packager{dir: dir, log: log, done: map[string]string{}}
}

// Package copies every resource not yet packaged and returns the output
// relative paths of those that succeeded. Failures are joined.
func (p *Packager) Package(ctx context.Context, rs []Resource) ([]string, error) {
	out := make([]string, 0, len(rs))
	var errs []error
	for _, r := range rs {
		if err := ctx.Err(); err != nil {
			return out, err
		}
		rel, err := p.one(r)
		if err != nil {
			errs = append(errs, err)
			continue
		}
		out = append(out, rel)
	}
	return out, errors.Join(errs...)
}

// Path returns where r was packaged, if it was.
func (p *Packager) Path(name string) (string, bool) {
	p.mu.Lock()
	defer p.mu.Unlock()
	rel, ok := p.done[name]
	return rel, ok
}

func (p *Packager) one(r Resource) (string, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if rel, ok := p.done[r.Name]; ok {
		return rel, nil
	}

	data, err := os.ReadFile(r.URI)
	if err != nil {
		return "", fmt.Errorf("package %s %q: %w", r.Kind, r.Name, err)
	}
	rel := PackagedName(r, data)
	dst := filepath.Join(p.dir, filepath.FromSlash(rel))
	if err := os.MkdirAll(filepath.Dir(dst), 0o755); err != nil {
		return "", fmt.Errorf("package %q: %w", r.Name, err)
	}
	if err := os.WriteFile(dst, data, 0o644); err != nil {
		return "", fmt.Errorf("package %q: %w", r.Name, err)
	}
	p.done[r.Name] = rel
	p.log.Debug("resource packaged", "name", r.Name, "kind", r.Kind, "path", rel, "bytes", len(data))
	return rel, nil
}

// PackagedName is resources/<hash><ext>, stable for identical content.
func PackagedName(r Resource, data []byte) string {
	ext := strings.ToLower(path.Ext(r.URI))
	return fmt.Sprintf("resources/%016x%s", xxhash.Sum64(data), ext)
}
