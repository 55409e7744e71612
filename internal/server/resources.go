package server

import (
	"context"
	"fmt"

	"github.com/hongminglow/dunes-blog/internal/auth"
	"github.com/hongminglow/dunes-blog/internal/config"
	"github.com/hongminglow/dunes-blog/internal/revocation"
	"github.com/hongminglow/dunes-blog/internal/storage"
	"github.com/hongminglow/dunes-blog/internal/storage/jsonfile"
	"github.com/hongminglow/dunes-blog/internal/storage/mongo"
	"github.com/hongminglow/dunes-blog/internal/storage/postgres"
	"github.com/hongminglow/dunes-blog/internal/storage/sqlite"
)

// OpenStore connects the credential store selected by cfg.StoreDriver.
// The caller owns the store and must Close it.
func OpenStore(ctx context.Context, cfg config.Config) (storage.UserStore, error) {
	var (
		store storage.UserStore
		err   error
	)
	switch cfg.StoreDriver {
	case config.StoreJSON:
		var s *jsonfile.Store
		s, err = jsonfile.Open(cfg.UsersFile)
		store = s
	case config.StoreMongo:
		var s *mongo.Store
		s, err = mongo.NewUserStore(ctx, cfg.MongoURI, cfg.MongoDatabase)
		store = s
	case config.StorePostgres:
		var s *postgres.Store
		s, err = postgres.NewUserStore(ctx, cfg.DatabaseURL)
		store = s
	case config.StoreSQLite:
		var s *sqlite.Store
		s, err = sqlite.NewUserStore(ctx, cfg.SQLitePath)
		store = s
	default:
		return nil, fmt.Errorf("unknown store driver %q", cfg.StoreDriver)
	}
	if err != nil {
		return nil, fmt.Errorf("open %s store: %w", cfg.StoreDriver, err)
	}
	return store, nil
}

// OpenRevocations builds the session denylist selected by cfg.RevocationStore.
// It returns a nil list when revocation is disabled. The returned close
// function is never nil.
func OpenRevocations(ctx context.Context, cfg config.Config) (auth.RevocationList, func() error, error) {
	noop := func() error { return nil }
	switch cfg.RevocationStore {
	case config.RevocationNone, "":
		return nil, noop, nil
	case config.RevocationMemory:
		return revocation.NewMemory(), noop, nil
	case config.RevocationRedis:
		r, err := revocation.NewRedis(ctx, revocation.RedisOptions{
			Addr:     cfg.RedisAddr,
			Password: cfg.RedisPassword,
			DB:       cfg.RedisDB,
		})
		if err != nil {
			return nil, noop, err
		}
		return r, r.Close, nil
	default:
		return nil, noop, fmt.Errorf("unknown revocation driver %q", cfg.RevocationStore)
	}
}
