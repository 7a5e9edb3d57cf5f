// Package objectstore abstracts where raw inputs come from and where
// processed artifacts go. The gcp deployment uses GCS buckets; local runs
// use plain directories. The pipeline only ever sees the Store interface.
package objectstore

import (
	"context"
	"io"
)

// Store is a flat key/blob namespace.
type Store interface {
	// Get opens the object under key for reading. The caller closes it.
	Get(ctx context.Context, key string) (io.ReadCloser, error)

	// Put writes the whole of r under key, replacing any prior object.
	Put(ctx context.Context, key string, r io.Reader) error

	// List returns the keys under prefix, in lexical order.
	List(ctx context.Context, prefix string) ([]string, error)

	// Close releases client resources.
	Close() error
}
