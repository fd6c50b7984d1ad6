package output

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"

	"github.com/mohammed-shakir/vector-scene-tiler/internal/core/observability"
	"github.com/mohammed-shakir/vector-scene-tiler/internal/scene"
)

// FileWriter stores objects as JSON files below a root directory.
type FileWriter struct {
	root string
}

func NewFileWriter(root string) (*FileWriter, error) {
	if err := os.MkdirAll(root, 0o755); err != nil {
		return nil, fmt.Errorf("output: create %s: %w", root, err)
	}
	return &FileWriter{root: root}, nil
}

func (w *FileWriter) Root() string { return w.root }

// Ready reports whether the root is still a directory.
func (w *FileWriter) Ready(context.Context) error {
	fi, err := os.Stat(w.root)
	if err != nil {
		return fmt.Errorf("output: %w", err)
	}
	if !fi.IsDir() {
		return fmt.Errorf("output: %s is not a directory", w.root)
	}
	return nil
}

func (w *FileWriter) resolve(path string) (string, error) {
	clean := filepath.Clean(filepath.FromSlash(path))
	if path == "" || filepath.IsAbs(clean) || clean == ".." || strings.HasPrefix(clean, ".."+string(filepath.Separator)) {
		return "", fmt.Errorf("%w: %q", ErrBadPath, path)
	}
	return filepath.Join(w.root, clean), nil
}

// Write replaces path atomically through a temporary file.
func (w *FileWriter) Write(ctx context.Context, path string, obj scene.Object) (err error) {
	defer func() { observability.IncContentWrite(obj.Kind(), err) }()
	if err := ctx.Err(); err != nil {
		return err
	}
	full, err := w.resolve(path)
	if err != nil {
		return err
	}
	b, err := scene.Marshal(obj)
	if err != nil {
		return fmt.Errorf("output: encode %s: %w", path, err)
	}
	if err := os.MkdirAll(filepath.Dir(full), 0o755); err != nil {
		return fmt.Errorf("output: %w", err)
	}
	tmp, err := os.CreateTemp(filepath.Dir(full), ".tmp-*")
	if err != nil {
		return fmt.Errorf("output: %w", err)
	}
	defer os.Remove(tmp.Name())
	if _, err := tmp.Write(b); err != nil {
		_ = tmp.Close()
		return fmt.Errorf("output: write %s: %w", path, err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("output: write %s: %w", path, err)
	}
	if err := os.Rename(tmp.Name(), full); err != nil {
		return fmt.Errorf("output: write %s: %w", path, err)
	}
	return nil
}

func (w *FileWriter) Exists(ctx context.Context, path string) (bool, error) {
	if err := ctx.Err(); err != nil {
		return false, err
	}
	full, err := w.resolve(path)
	if err != nil {
		return false, err
	}
	st, err := os.Stat(full)
	switch {
	case err == nil:
		return st.Mode().IsRegular(), nil
	case errors.Is(err, fs.ErrNotExist):
		return false, nil
	default:
		return false, fmt.Errorf("output: stat %s: %w", path, err)
	}
}

func (w *FileWriter) Read(ctx context.Context, path string) ([]byte, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	full, err := w.resolve(path)
	if err != nil {
		return nil, err
	}
	b, err := os.ReadFile(full)
	if errors.Is(err, fs.ErrNotExist) {
		return nil, fmt.Errorf("%w: %s", ErrNotFound, path)
	}
	if err != nil {
		return nil, fmt.Errorf("output: read %s: %w", path, err)
	}
	return b, nil
}
