// Package storage provides the archive storage backends.
package storage

import (
	"context"
	"errors"
	"fmt"
	"io"

	"github.com/mvarela/gapfill/internal/config"
)

var (
	// ErrNotFound is returned when the requested object does not exist.
	ErrNotFound = errors.New("object not found")

	// ErrInvalidConfig is returned for unusable backend configuration.
	ErrInvalidConfig = errors.New("invalid backend configuration")
)

// Backend stores archived backfill reports under opaque keys.
type Backend interface {
	Put(ctx context.Context, key string, r io.Reader) error
	Get(ctx context.Context, key string) (io.ReadCloser, error)
	Delete(ctx context.Context, key string) error
	Exists(ctx context.Context, key string) (bool, error)
}

// NewBackend builds the configured backend, wrapping it in compression
// when one is set.
func NewBackend(ctx context.Context, cfg config.ArchiveConfig) (Backend, error) {
	var backend Backend
	var err error

	switch cfg.Backend {
	case "filesystem":
		if cfg.Path == "" {
			return nil, fmt.Errorf("%w: filesystem backend requires a path", ErrInvalidConfig)
		}
		backend = NewFilesystemBackend(cfg.Path)
	case "s3":
		backend, err = NewS3Backend(ctx, cfg.S3)
		if err != nil {
			return nil, err
		}
	default:
		return nil, fmt.Errorf("%w: unknown backend type %q", ErrInvalidConfig, cfg.Backend)
	}

	switch cfg.Compression {
	case "":
		return backend, nil
	case "gzip", "zstd":
		return NewCompressedBackend(backend, cfg.Compression), nil
	default:
		return nil, fmt.Errorf("%w: unknown compression %q", ErrInvalidConfig, cfg.Compression)
	}
}
