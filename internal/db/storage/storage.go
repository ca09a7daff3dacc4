// Package storage declares the persistence contract shared by all
// storage variants. Records are opaque serialized bytes keyed by
// collection name and record identifier, so the registries and the
// ledger stay storage-agnostic.
package storage

import "context"

// Storage is implemented by every storage variant (file-backed,
// in-memory, SQL-backed).
type Storage interface {
	// Get returns the serialized record for key, or models.ErrNotFound.
	Get(ctx context.Context, collection, key string) ([]byte, error)

	// Put stores the serialized record under key, overwriting any
	// previous value, and persists the change before returning.
	Put(ctx context.Context, collection, key string, record []byte) error

	// Delete removes the record for key, or returns models.ErrNotFound.
	Delete(ctx context.Context, collection, key string) error

	// ListAll returns every record in the collection.
	ListAll(ctx context.Context, collection string) ([][]byte, error)

	Ping(ctx context.Context) error

	Close() error
}
