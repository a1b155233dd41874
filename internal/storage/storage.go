// Package storage opens the ledger store selected by configuration.
package storage

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/MrJamesThe3rd/cafenet/internal/backup"
	"github.com/MrJamesThe3rd/cafenet/internal/config"
	"github.com/MrJamesThe3rd/cafenet/internal/database"
	"github.com/MrJamesThe3rd/cafenet/internal/ledger"
	"github.com/MrJamesThe3rd/cafenet/internal/ledger/memstore"
	"github.com/MrJamesThe3rd/cafenet/internal/ledger/store"
)

// Store is everything the binaries need from a backend: the ledger
// repository plus the snapshot primitives used by backups.
type Store interface {
	ledger.Repository
	backup.Source
	backup.Restorer
}

// Open connects to the configured backend, applying the schema for
// Postgres. The returned close func releases it.
func Open(ctx context.Context, cfg *config.Config) (Store, func() error, error) {
	switch cfg.DB.Driver {
	case config.DriverMemory:
		slog.Warn("using in-memory store, data is lost on exit")
		return memstore.New(), func() error { return nil }, nil

	case config.DriverPostgres:
		db, err := database.New(cfg.ConnectionString())
		if err != nil {
			return nil, nil, err
		}

		if err := database.Migrate(ctx, db); err != nil {
			db.Close()
			return nil, nil, err
		}

		return store.New(db), db.Close, nil
	}

	return nil, nil, fmt.Errorf("unknown store driver %q", cfg.DB.Driver)
}
