// Package postgresdb provides a PostgreSQL-backed implementation of the
// storage contract for installations that keep the library catalog in a
// shared database instead of a local file.
package postgresdb

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/pressly/goose/v3"

	_ "github.com/jackc/pgx/v5/stdlib"

	"libris/internal/models"
)

// PostgresDB persists records in a single key-value table managed by
// goose migrations.
type PostgresDB struct {
	database          *sql.DB
	connectionTimeout time.Duration
}

// New connects to the database, runs schema migrations and returns a
// ready storage instance.
func New(
	ctx context.Context,
	databaseDSN string,
	connectionTimeout time.Duration,
	migrationsDir string,
) (*PostgresDB, error) {
	database, err := sql.Open("pgx", databaseDSN)
	if err != nil {
		return nil, fmt.Errorf("%w: %s", models.ErrStorage, err)
	}

	result := &PostgresDB{
		database:          database,
		connectionTimeout: connectionTimeout,
	}

	if err := goose.SetDialect("postgres"); err != nil {
		return nil, fmt.Errorf("error while `goose.SetDialect()` calling: %w", err)
	}

	if err := goose.Up(result.database, migrationsDir); err != nil {
		return nil, fmt.Errorf("error while `goose.Up()` calling: %w", err)
	}

	return result, nil
}

// Get returns the serialized record stored under key.
func (db *PostgresDB) Get(ctx context.Context, collection, key string) ([]byte, error) {
	var record []byte
	err := db.database.QueryRowContext(
		ctx,
		`SELECT record FROM records WHERE collection = $1 AND key = $2`,
		collection,
		key,
	).Scan(&record)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("%s/%s: %w", collection, key, models.ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("%w: %s", models.ErrStorage, err)
	}

	return record, nil
}

// Put stores the record under key with an UPSERT.
func (db *PostgresDB) Put(ctx context.Context, collection, key string, record []byte) error {
	_, err := db.database.ExecContext(
		ctx,
		`
			INSERT INTO records (collection, key, record)
				VALUES ($1, $2, $3)
				ON CONFLICT (collection, key) DO UPDATE SET record = EXCLUDED.record
		`,
		collection,
		key,
		record,
	)
	if err != nil {
		return fmt.Errorf("%w: %s", models.ErrStorage, err)
	}

	return nil
}

// Delete removes the record under key, failing when it is absent.
func (db *PostgresDB) Delete(ctx context.Context, collection, key string) error {
	result, err := db.database.ExecContext(
		ctx,
		`DELETE FROM records WHERE collection = $1 AND key = $2`,
		collection,
		key,
	)
	if err != nil {
		return fmt.Errorf("%w: %s", models.ErrStorage, err)
	}

	affected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("%w: %s", models.ErrStorage, err)
	}
	if affected == 0 {
		return fmt.Errorf("%s/%s: %w", collection, key, models.ErrNotFound)
	}

	return nil
}

// ListAll returns every record in the collection.
func (db *PostgresDB) ListAll(ctx context.Context, collection string) ([][]byte, error) {
	rows, err := db.database.QueryContext(
		ctx,
		`SELECT record FROM records WHERE collection = $1`,
		collection,
	)
	if err != nil {
		return nil, fmt.Errorf("%w: %s", models.ErrStorage, err)
	}
	defer rows.Close()

	var records [][]byte
	for rows.Next() {
		var record []byte
		if err := rows.Scan(&record); err != nil {
			return nil, fmt.Errorf("%w: %s", models.ErrStorage, err)
		}
		records = append(records, record)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("%w: %s", models.ErrStorage, err)
	}

	return records, nil
}

// Ping verifies the database connection.
func (db *PostgresDB) Ping(ctx context.Context) error {
	ctx, cancel := context.WithTimeout(ctx, db.connectionTimeout*time.Second)
	defer cancel()

	return db.database.PingContext(ctx)
}

// Close closes the underlying connection pool.
func (db *PostgresDB) Close() error {
	return db.database.Close()
}
