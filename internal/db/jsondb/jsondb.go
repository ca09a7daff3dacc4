// Package jsondb provides the durable, file-backed storage variant.
// The whole database is one JSON document holding a map of collections;
// it is loaded once at startup and rewritten on every mutation.
package jsondb

import (
	"context"
	"fmt"
	"io"
	"os"

	jsoniter "github.com/json-iterator/go"

	"libris/internal/models"
)

var json = jsoniter.ConfigCompatibleWithStandardLibrary

// JSONDB keeps the full record set resident in Cache and writes it
// through to fileName after every successful mutation. An empty
// fileName makes the cache volatile; memorystorage relies on that.
type JSONDB struct {
	fileName string
	Cache    CacheStruct
}

// CacheStruct is the on-disk document shape: collection name to record
// key to serialized record.
type CacheStruct struct {
	Collections map[string]map[string]jsoniter.RawMessage
}

func initDBFile(fileName string) error {
	dbFile, err := os.OpenFile(fileName, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0644)
	if err != nil {
		return err
	}
	_, err = fmt.Fprintln(dbFile, `{
	"Collections": {}
}`)
	if err != nil {
		return err
	}
	return dbFile.Close()
}

func writeToJSONFile(fileName string, cache interface{}) error {
	jsonData, err := json.MarshalIndent(cache, "", "  ")
	if err != nil {
		return fmt.Errorf("error marshaling JSON: %w", err)
	}

	file, err2 := os.OpenFile(fileName, os.O_WRONLY|os.O_TRUNC|os.O_CREATE, 0644)
	if err2 != nil {
		return fmt.Errorf("%w: error opening file: %s", models.ErrStorage, err2)
	}
	defer file.Close()

	_, err = file.Write(jsonData)
	if err != nil {
		return fmt.Errorf("%w: error writing to file: %s", models.ErrStorage, err)
	}

	return nil
}

func parseJSONFile(fileName string, cacheMap *CacheStruct) error {
	file, err := os.Open(fileName)
	if err != nil {
		return err
	}
	defer file.Close()

	content, err := io.ReadAll(file)
	if err != nil {
		return fmt.Errorf("%w: error reading file: %s", models.ErrStorage, err)
	}

	// An empty or freshly truncated file is an empty library, not corruption.
	if len(content) == 0 {
		return nil
	}

	if err := json.Unmarshal(content, cacheMap); err != nil {
		return fmt.Errorf("%w: %s: %s", models.ErrCorruptData, fileName, err)
	}

	return nil
}

// New loads the database from fileName, creating an empty one when the
// file does not exist yet. A file that exists but cannot be decoded
// fails with models.ErrCorruptData.
func New(fileName string) (*JSONDB, error) {
	db := JSONDB{
		fileName: fileName,
		Cache:    CacheStruct{},
	}

	err := parseJSONFile(db.fileName, &db.Cache)
	if err != nil {
		if !os.IsNotExist(err) {
			return nil, err
		}
		err := initDBFile(fileName)
		if err != nil {
			return nil, fmt.Errorf("%w: %s", models.ErrStorage, err)
		}
		err = parseJSONFile(db.fileName, &db.Cache)
		if err != nil {
			return nil, err
		}
	}

	if db.Cache.Collections == nil {
		db.Cache.Collections = map[string]map[string]jsoniter.RawMessage{}
	}

	return &db, nil
}

// flush rewrites the backing file. With no file name the cache is
// memory-only and there is nothing to do.
func (db *JSONDB) flush() error {
	if db.fileName == "" {
		return nil
	}

	return writeToJSONFile(db.fileName, db.Cache)
}

// Get returns the serialized record stored under key.
func (db *JSONDB) Get(ctx context.Context, collection, key string) ([]byte, error) {
	record, found := db.Cache.Collections[collection][key]
	if !found {
		return nil, fmt.Errorf("%s/%s: %w", collection, key, models.ErrNotFound)
	}

	return record, nil
}

// Put stores the record under key and writes the change through to the file.
func (db *JSONDB) Put(ctx context.Context, collection, key string, record []byte) error {
	if db.Cache.Collections == nil {
		db.Cache.Collections = map[string]map[string]jsoniter.RawMessage{}
	}
	if db.Cache.Collections[collection] == nil {
		db.Cache.Collections[collection] = map[string]jsoniter.RawMessage{}
	}
	db.Cache.Collections[collection][key] = record

	return db.flush()
}

// Delete removes the record under key and writes the change through to the file.
func (db *JSONDB) Delete(ctx context.Context, collection, key string) error {
	if _, found := db.Cache.Collections[collection][key]; !found {
		return fmt.Errorf("%s/%s: %w", collection, key, models.ErrNotFound)
	}
	delete(db.Cache.Collections[collection], key)

	return db.flush()
}

// ListAll returns every record in the collection.
func (db *JSONDB) ListAll(ctx context.Context, collection string) ([][]byte, error) {
	records := make([][]byte, 0, len(db.Cache.Collections[collection]))
	for _, record := range db.Cache.Collections[collection] {
		records = append(records, record)
	}

	return records, nil
}

// Ping reports whether the backing file is still writable.
func (db *JSONDB) Ping(ctx context.Context) error {
	if db.fileName == "" {
		return nil
	}
	file, err := os.OpenFile(db.fileName, os.O_WRONLY, 0644)
	if err != nil {
		return fmt.Errorf("%w: %s", models.ErrStorage, err)
	}

	return file.Close()
}

// Close flushes the cache a final time.
func (db *JSONDB) Close() error {
	return db.flush()
}
