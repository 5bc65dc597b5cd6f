// Package storage persists JSON documents for the job board. Documents are
// addressed by slash separated keys such as "jobs/<id>.json".
package storage

import (
	"context"
	"errors"
	"fmt"

	"github.com/muandane/special-stack/jobcache/internal/config"
)

var ErrNotFound = errors.New("storage: document not found")

// Documents is the document store the job service reads and writes.
type Documents interface {
	Get(ctx context.Context, key string) ([]byte, error)
	Put(ctx context.Context, key string, data []byte) error
	Delete(ctx context.Context, key string) error
	// List returns the keys beginning with prefix in lexical order.
	List(ctx context.Context, prefix string) ([]string, error)
}

// Open builds the driver selected by cfg.
func Open(ctx context.Context, cfg *config.StorageConfig) (Documents, error) {
	switch cfg.Driver {
	case "", config.DriverMinio:
		return NewS3(ctx, cfg)
	case config.DriverMemory:
		return NewMemory()
	default:
		return nil, fmt.Errorf("storage: unknown driver %q", cfg.Driver)
	}
}
