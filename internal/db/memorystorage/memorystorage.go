// Package memorystorage provides the volatile storage variant: the
// file-backed cache with no file behind it. Useful for tests and for
// sessions that do not need to survive the process.
package memorystorage

import (
	"context"

	jsoniter "github.com/json-iterator/go"

	"libris/internal/db/jsondb"
)

type MemoryStorage struct {
	*jsondb.JSONDB
}

func New() (*MemoryStorage, error) {
	return &MemoryStorage{
		JSONDB: &jsondb.JSONDB{
			Cache: jsondb.CacheStruct{
				Collections: map[string]map[string]jsoniter.RawMessage{},
			},
		},
	}, nil
}

func (theStorage *MemoryStorage) Close() error {
	return nil
}

func (theStorage *MemoryStorage) Ping(ctx context.Context) error {
	return nil
}
