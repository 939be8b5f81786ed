// Package backend opens the storage implementations spacestore can run on
// and hands them out behind the engine and domain interfaces.
package backend

import (
	"context"
	"fmt"
	"sort"

	"github.com/sirupsen/logrus"

	"github.com/persistorai/spacestore/internal/db"
	"github.com/persistorai/spacestore/internal/dbpool"
	"github.com/persistorai/spacestore/internal/domain"
	"github.com/persistorai/spacestore/internal/engine"
	"github.com/persistorai/spacestore/internal/kvstore"
	"github.com/persistorai/spacestore/internal/store"
)

// Registered backend names.
const (
	Postgres = "postgres"
	Badger   = "badger"
)

// Options carries what any constructor may need. Each backend reads only
// its own fields.
type Options struct {
	DatabaseURL    string
	MaxConns       int
	BadgerPath     string
	BadgerInMemory bool
	// Migrate applies pending migrations when the backend is opened.
	Migrate bool
}

// Backend is an opened storage implementation.
type Backend struct {
	Name     string
	Engine   engine.Backend
	Reader   domain.FeatureReader
	Activity domain.ActivityStore
	// Pool is set for postgres only. The notify bridge and the migrate
	// command use it.
	Pool *dbpool.Pool

	health func(ctx context.Context) error
	schema func(ctx context.Context) error
	close  func()
}

// HealthCheck verifies the backend is reachable.
func (b *Backend) HealthCheck(ctx context.Context) error { return b.health(ctx) }

// SchemaCheck verifies the backend's schema is current.
func (b *Backend) SchemaCheck(ctx context.Context) error {
	if b.schema == nil {
		return nil
	}

	return b.schema(ctx)
}

// Close releases the backend's resources.
func (b *Backend) Close() {
	if b.close != nil {
		b.close()
	}
}

// Constructor opens a backend.
type Constructor func(ctx context.Context, opts Options, log *logrus.Logger) (*Backend, error)

var registry = map[string]Constructor{
	Postgres: openPostgres,
	Badger:   openBadger,
}

// Names returns the registered backend names, sorted.
func Names() []string {
	names := make([]string, 0, len(registry))
	for name := range registry {
		names = append(names, name)
	}
	sort.Strings(names)

	return names
}

// Registered reports whether name is a known backend.
func Registered(name string) bool {
	_, ok := registry[name]
	return ok
}

// Open opens the backend registered under name.
func Open(ctx context.Context, name string, opts Options, log *logrus.Logger) (*Backend, error) {
	ctor, ok := registry[name]
	if !ok {
		return nil, fmt.Errorf("unknown storage backend %q (registered: %v)", name, Names())
	}

	b, err := ctor(ctx, opts, log)
	if err != nil {
		return nil, fmt.Errorf("opening %s backend: %w", name, err)
	}
	b.Name = name

	log.WithField("backend", name).Info("backend.open")

	return b, nil
}

func openPostgres(ctx context.Context, opts Options, log *logrus.Logger) (*Backend, error) {
	if opts.DatabaseURL == "" {
		return nil, fmt.Errorf("database url is required")
	}

	pool, err := dbpool.NewPool(ctx, opts.DatabaseURL, opts.MaxConns)
	if err != nil {
		return nil, err
	}

	if opts.Migrate {
		if err := db.Migrate(ctx, pool, log); err != nil {
			pool.Close()
			return nil, err
		}
	}

	base := store.Base{Pool: pool, Log: log}
	features := store.NewFeatureStore(base)

	return &Backend{
		Engine:   features,
		Reader:   features,
		Activity: store.NewActivityStore(base),
		Pool:     pool,
		health:   pool.HealthCheck,
		schema: func(ctx context.Context) error {
			return schemaCurrent(ctx, pool)
		},
		close: pool.Close,
	}, nil
}

// schemaCurrent fails unless every embedded migration is applied.
func schemaCurrent(ctx context.Context, pool *dbpool.Pool) error {
	states, err := db.Status(ctx, pool)
	if err != nil {
		return err
	}

	for _, s := range states {
		if !s.Applied {
			return fmt.Errorf("migration %d (%s) is pending", s.Version, s.File)
		}
	}

	return nil
}

func openBadger(_ context.Context, opts Options, log *logrus.Logger) (*Backend, error) {
	cfg := kvstore.DefaultConfig(opts.BadgerPath)
	if opts.BadgerInMemory {
		cfg = kvstore.InMemoryConfig()
	}

	kv, err := kvstore.Open(cfg, log)
	if err != nil {
		return nil, err
	}

	features := kvstore.NewFeatureStore(kv, log)

	return &Backend{
		Engine:   features,
		Reader:   features,
		Activity: kvstore.NewActivityStore(kv, log),
		health:   func(context.Context) error { return kv.HealthCheck() },
		close: func() {
			if err := kv.Close(); err != nil {
				log.WithError(err).Warn("closing badger")
			}
		},
	}, nil
}
