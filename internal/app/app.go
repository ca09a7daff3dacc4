// Package app initializes and runs the interactive library session.
// It configures logging, selects and opens the storage backend, wires
// the registries and the checkout ledger, and handles shutdown.
package app

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"libris/internal/books"
	"libris/internal/checkouts"
	"libris/internal/config"
	"libris/internal/db/jsondb"
	"libris/internal/db/memorystorage"
	"libris/internal/db/postgresdb"
	"libris/internal/db/storage"
	"libris/internal/logger"
	"libris/internal/models"
	"libris/internal/shell"
	"libris/internal/users"
)

// App bundles the configuration, the storage backend and the shell that
// drives one interactive session.
type App struct {
	cfg   *config.Config
	db    storage.Storage
	shell *shell.Shell
}

// New loads the configuration, initializes the logger, opens the
// configured storage backend and wires the registries, the ledger and
// the shell together.
func New() (*App, error) {
	var err error
	app := &App{}

	app.cfg, err = config.New()
	if err != nil {
		return nil, err
	}

	err = logger.Init(app.cfg.LogLevel)
	if err != nil {
		return nil, err
	}

	app.db, err = getStorageByType(app.cfg)
	if err != nil {
		return nil, err
	}

	bookRegistry := books.New(app.db)
	userRegistry := users.New(app.db)
	ledger := checkouts.New(app.db, bookRegistry, userRegistry)

	// The ledger guards deletes: no removing records an active
	// checkout still points at.
	bookRegistry.SetCheckoutGuard(ledger)
	userRegistry.SetCheckoutGuard(ledger)

	app.shell = shell.New(os.Stdin, os.Stdout, bookRegistry, userRegistry, ledger)

	return app, nil
}

// Run drives the shell until the user quits or a termination signal
// arrives, then closes the storage backend.
func (a *App) Run() error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	logger.Log.Debugln("session starting", "storage", storageName(a.cfg))

	shellErrCh := make(chan error, 1)
	go func() {
		shellErrCh <- a.shell.Run(ctx)
	}()

	select {
	case <-ctx.Done():
		logger.Log.Infoln("Received shutdown signal. Saving database and exiting...")
		return a.db.Close()

	case err := <-shellErrCh:
		if err != nil && !errors.Is(err, context.Canceled) {
			closeErr := a.db.Close()
			if closeErr != nil {
				return errors.Join(err, closeErr)
			}
			return err
		}

		return a.db.Close()
	}
}

// Close finalizes resources used by App such as logging.
func (a *App) Close() {
	if err := logger.Sync(); err != nil {
		fmt.Println("Logger sync error:", err)
	}
}

func getAvailableStorageType(cfg *config.Config) int {
	if cfg.DatabaseDSN != "" {
		return models.StorageTypePostgresql
	}

	if cfg.DBFileName != "" {
		return models.StorageTypeFile
	}

	return models.StorageTypeMemory
}

func storageName(cfg *config.Config) string {
	switch getAvailableStorageType(cfg) {
	case models.StorageTypePostgresql:
		return "postgresql"
	case models.StorageTypeFile:
		return cfg.DBFileName
	default:
		return "memory"
	}
}

func getStorageByType(cfg *config.Config) (storage.Storage, error) {
	switch getAvailableStorageType(cfg) {
	case models.StorageTypePostgresql:
		return postgresdb.New(
			context.Background(),
			cfg.DatabaseDSN,
			cfg.DBConnectionTimeout,
			cfg.MigrationsDir,
		)

	case models.StorageTypeFile:
		return jsondb.New(cfg.DBFileName)
	}

	return memorystorage.New()
}
