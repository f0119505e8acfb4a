package main

import (
	"context"
	"fmt"

	"github.com/heshamhussin961-design/family-tree/modules/family/infrastructure/persistence"
	"github.com/heshamhussin961-design/family-tree/modules/family/infrastructure/sources"
	"github.com/heshamhussin961-design/family-tree/modules/family/services"
	"github.com/heshamhussin961-design/family-tree/pkg/composables"
	"github.com/heshamhussin961-design/family-tree/pkg/configuration"
)

type familyStore interface {
	services.Store
	Close() error
}

type migrator interface {
	Migrate(ctx context.Context) ([]int64, error)
}

// openStore opens the configured backend. With migrate set, pending schema
// migrations are applied before the store is returned.
func openStore(ctx context.Context, conf *configuration.Configuration, migrate bool) (familyStore, error) {
	var store familyStore
	switch conf.Store {
	case configuration.StoreMemory:
		return persistence.NewMemoryStore(), nil
	case configuration.StorePostgres:
		pg, err := persistence.OpenPgStore(ctx, conf.Database.Opts)
		if err != nil {
			return nil, withCode(exitDB, fmt.Errorf("connect postgres: %w", err))
		}
		store = pg
	default:
		lite, err := persistence.OpenSQLite(conf.SQLite.Path)
		if err != nil {
			return nil, withCode(exitDB, fmt.Errorf("open sqlite %s: %w", conf.SQLite.Path, err))
		}
		store = lite
	}

	if migrate {
		if m, ok := store.(migrator); ok {
			applied, err := m.Migrate(ctx)
			if err != nil {
				_ = store.Close()
				return nil, withCode(exitDB, fmt.Errorf("migrate: %w", err))
			}
			if len(applied) > 0 {
				composables.UseLogger(ctx).WithField("versions", applied).Info("family.schema.migrated")
			}
		}
	}
	return store, nil
}

func newLoader(conf *configuration.Configuration) *sources.Loader {
	return sources.NewLoader(sources.S3Config{
		Region:    conf.S3.Region,
		Endpoint:  conf.S3.Endpoint,
		PathStyle: conf.S3.PathStyle,
	})
}
