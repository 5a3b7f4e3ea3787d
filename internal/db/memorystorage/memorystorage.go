// Package memorystorage is the non-persistent storage backend used when
// neither a database DSN nor a storage file is configured.
package memorystorage

import (
	"github.com/patric-chuzhbe/contentapi/internal/db/jsondb"
)

type MemoryStorage struct {
	*jsondb.JSONDB
}

func New() *MemoryStorage {
	return &MemoryStorage{
		JSONDB: &jsondb.JSONDB{
			Cache: jsondb.NewCache(),
		},
	}
}

// Close drops nothing and writes nothing.
func (s *MemoryStorage) Close() error {
	return nil
}
