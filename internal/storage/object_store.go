package storage

import (
	"context"
	"time"
)

// StoredObject describes the durable copy of an uploaded file.
type StoredObject struct {
	Key    string
	URL    string
	Format string
	Size   int64
}

// ObjectStore abstracts the cloud file host. A failed call returns an
// error and the caller decides whether to continue; there is no retry or
// deduplication at this layer.
type ObjectStore interface {
	Store(ctx context.Context, data []byte, folder, key string) (StoredObject, error)
	Delete(ctx context.Context, key string) error
	SignedURL(key string, ttl time.Duration) (string, error)
}
