package output

import (
	"context"
	"errors"

	"github.com/mohammed-shakir/vector-scene-tiler/internal/scene"
)

var (
	ErrNotFound = errors.New("output: object not found")
	ErrBadPath  = errors.New("output: invalid path")
)

// Writer is used from the draining goroutine only; implementations need
// not serialize concurrent writes to the same path.
type Writer interface {
	Write(ctx context.Context, path string, obj scene.Object) error
	Exists(ctx context.Context, path string) (bool, error)
}

// Reader returns the encoded object stored at path.
type Reader interface {
	Read(ctx context.Context, path string) ([]byte, error)
}

// Store is both ends of an archive.
type Store interface {
	Writer
	Reader
}
