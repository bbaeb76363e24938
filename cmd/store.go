package main

import (
	"context"

	"github.com/rotisserie/eris"

	"github.com/sells-group/bizdir/internal/db"
	"github.com/sells-group/bizdir/internal/dedupe"
	"github.com/sells-group/bizdir/internal/directory"
	"github.com/sells-group/bizdir/internal/validate"
)

func initStore(ctx context.Context) (directory.Store, error) {
	switch cfg.Store.Driver {
	case "sqlite":
		dsn := cfg.Store.DatabaseURL
		if dsn == "" {
			dsn = "bizdir.db"
		}
		return directory.NewSQLite(dsn)
	case "postgres":
		return directory.NewPostgres(ctx, cfg.Store.DatabaseURL, db.PoolConfig{
			MaxConns: cfg.Store.MaxConns,
			MinConns: cfg.Store.MinConns,
		})
	default:
		return nil, eris.Errorf("unsupported store driver: %s", cfg.Store.Driver)
	}
}

// openStore initializes and migrates the store.
func openStore(ctx context.Context) (directory.Store, error) {
	st, err := initStore(ctx)
	if err != nil {
		return nil, err
	}
	if err := st.Migrate(ctx); err != nil {
		st.Close() //nolint:errcheck
		return nil, err
	}
	return st, nil
}

func newClassifier() *dedupe.Classifier {
	return dedupe.NewClassifier(cfg.Dedupe.Thresholds)
}

func newGuard(st directory.Store, policy validate.Policy) *validate.Guard {
	return validate.NewGuard(st, newClassifier(), policy)
}
