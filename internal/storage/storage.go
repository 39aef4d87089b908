package storage

import (
	"context"
	"errors"
	"io"
)

// ErrNotFound is returned by Get when no object exists at key.
var ErrNotFound = errors.New("object not found")

// Storage abstracts object storage for archived analyses. Implementations
// handle the local filesystem or S3-compatible object storage (CEPH, MinIO,
// etc.).
type Storage interface {
	// Put writes content at key, replacing any existing object, and returns
	// its location.
	Put(ctx context.Context, key string, body io.Reader, contentType string) (location string, err error)

	// Get opens the object at key. The caller closes the reader.
	Get(ctx context.Context, key string) (io.ReadCloser, error)

	// Delete removes the object at key. Deleting a missing object is not an
	// error.
	Delete(ctx context.Context, key string) error
}
