// File: cmd/server/providers.go
package main

import (
	"fmt"
	"log"

	"redsocial_backend/internal/config"
	"redsocial_backend/internal/platform/database"
	"redsocial_backend/internal/platform/logger"
	"redsocial_backend/internal/profile"

	"go.uber.org/zap"
)

// provideLogger builds the application logger and a cleanup that flushes
// buffered entries on shutdown.
func provideLogger(cfg *config.Config) (*zap.Logger, func(), error) {
	appLogger, err := logger.New(cfg)
	if err != nil {
		return nil, nil, err
	}
	cleanup := func() {
		// Sync on stderr loggers returns an error on some platforms,
		// which is harmless during shutdown.
		if err := appLogger.Sync(); err != nil {
			log.Printf("WARN: Failed to sync logger during cleanup: %v", err)
		}
	}
	return appLogger, cleanup, nil
}

// provideProfileStore builds the profile store backend selected by
// STORE_DRIVER, with a cleanup that releases its connections.
func provideProfileStore(cfg *config.Config, appLogger *zap.Logger) (profile.Store, func(), error) {
	switch cfg.StoreDriver {
	case config.StoreDriverFirestore:
		store, err := profile.NewFirestoreStore(cfg, appLogger)
		if err != nil {
			return nil, nil, err
		}
		cleanup := func() {
			if err := store.Close(); err != nil {
				appLogger.Warn("Failed to close Firestore client", zap.Error(err))
			}
		}
		return store, cleanup, nil

	case config.StoreDriverPostgres, config.StoreDriverSQLite:
		db, err := database.NewGORM(cfg)
		if err != nil {
			return nil, nil, err
		}
		store, err := profile.NewGormStore(db)
		if err != nil {
			database.CloseGORMDB(db)
			return nil, nil, err
		}
		cleanup := func() {
			database.CloseGORMDB(db)
		}
		return store, cleanup, nil

	default:
		return nil, nil, fmt.Errorf("unknown store driver %q", cfg.StoreDriver)
	}
}
