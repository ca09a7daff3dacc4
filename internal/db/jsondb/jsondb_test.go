package jsondb

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"libris/internal/models"
)

func Test(t *testing.T) {
	t.Run("The base jsondb package test", func(t *testing.T) {
		fileName := filepath.Join(t.TempDir(), "db_test.json")

		theStorage, err := New(fileName)
		require.NoError(t, err)
		require.NotNil(t, theStorage)

		err = theStorage.Put(context.Background(), "books", "978-1", []byte(`{"isbn":"978-1"}`))
		assert.NoError(t, err, "The `theStorage.Put()` should not return error")

		record, err := theStorage.Get(context.Background(), "books", "978-1")
		assert.NoError(t, err, "The `theStorage.Get()` should not return error")
		assert.JSONEq(t, `{"isbn":"978-1"}`, string(record))

		_, err = theStorage.Get(context.Background(), "books", "unexistent")
		assert.ErrorIs(t, err, models.ErrNotFound)

		_, err = theStorage.Get(context.Background(), "unexistent collection", "978-1")
		assert.ErrorIs(t, err, models.ErrNotFound)

		err = theStorage.Put(context.Background(), "books", "978-2", []byte(`{"isbn":"978-2"}`))
		assert.NoError(t, err)

		records, err := theStorage.ListAll(context.Background(), "books")
		assert.NoError(t, err, "The `theStorage.ListAll()` should not return error")
		assert.Len(t, records, 2)

		err = theStorage.Delete(context.Background(), "books", "978-2")
		assert.NoError(t, err, "The `theStorage.Delete()` should not return error")

		err = theStorage.Delete(context.Background(), "books", "978-2")
		assert.ErrorIs(t, err, models.ErrNotFound, "deleting twice should fail with not found")

		err = theStorage.Ping(context.Background())
		assert.NoError(t, err, "The jsondb.Ping() should not return error")

		err = theStorage.Close()
		assert.NoError(t, err, "The jsondb.Close() should not return error")
	})

	t.Run("mutations are written through and survive a reopen", func(t *testing.T) {
		fileName := filepath.Join(t.TempDir(), "db_test.json")

		theStorage, err := New(fileName)
		require.NoError(t, err)

		err = theStorage.Put(context.Background(), "users", "1", []byte(`{"user_id":"1","name":"Ann"}`))
		require.NoError(t, err)

		// No Close: the write-through alone must make the record durable.
		reopened, err := New(fileName)
		require.NoError(t, err)

		record, err := reopened.Get(context.Background(), "users", "1")
		require.NoError(t, err)
		assert.JSONEq(t, `{"user_id":"1","name":"Ann"}`, string(record))
	})

	t.Run("missing and empty files start an empty library", func(t *testing.T) {
		fileName := filepath.Join(t.TempDir(), "unexistent.json")

		theStorage, err := New(fileName)
		require.NoError(t, err)

		records, err := theStorage.ListAll(context.Background(), "books")
		require.NoError(t, err)
		assert.Empty(t, records)

		emptyFileName := filepath.Join(t.TempDir(), "empty.json")
		require.NoError(t, os.WriteFile(emptyFileName, nil, 0644))

		theStorage, err = New(emptyFileName)
		require.NoError(t, err)

		records, err = theStorage.ListAll(context.Background(), "users")
		require.NoError(t, err)
		assert.Empty(t, records)
	})

	t.Run("a corrupt file fails with the corruption error kind", func(t *testing.T) {
		fileName := filepath.Join(t.TempDir(), "corrupt.json")
		require.NoError(t, os.WriteFile(fileName, []byte(`{"Collections": not json`), 0644))

		_, err := New(fileName)
		assert.ErrorIs(t, err, models.ErrCorruptData)
	})
}
