package output

import (
	"context"
	"fmt"

	"github.com/mohammed-shakir/vector-scene-tiler/internal/core/config"
)

// Archive is a Store that can report on its backend.
type Archive interface {
	Store
	Ready(ctx context.Context) error
}

// Open returns the archive selected by the driver setting.
func Open(ctx context.Context, c config.ArchiveCfg) (Archive, error) {
	switch c.Driver {
	case config.DriverRedis:
		opts := []Option{}
		if c.PoolSize > 0 {
			opts = append(opts, WithPoolSize(c.PoolSize))
		}
		if c.DialTimeout > 0 {
			opts = append(opts, WithDialTimeout(c.DialTimeout))
		}
		if c.OpTimeout > 0 {
			opts = append(opts, WithReadTimeout(c.OpTimeout), WithWriteTimeout(c.OpTimeout))
		}
		a, err := NewRedisArchive(ctx, c.RedisAddr, c.Namespace, c.TTL, opts...)
		if err != nil {
			return nil, err
		}
		return a, nil
	case config.DriverFile, "":
		w, err := NewFileWriter(c.OutputDir)
		if err != nil {
			return nil, err
		}
		return w, nil
	default:
		return nil, fmt.Errorf("output: unknown archive driver %q", c.Driver)
	}
}
