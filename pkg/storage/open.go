package storage

import (
	"context"
	"fmt"
	"io"

	"go.uber.org/multierr"

	"github.com/angelmondragon/storefront/pkg/config"
	"github.com/angelmondragon/storefront/pkg/db"
	"github.com/angelmondragon/storefront/pkg/logger"
	"github.com/angelmondragon/storefront/pkg/migrate"
	sfredis "github.com/angelmondragon/storefront/pkg/redis"
)

// Deps are shared clients handed to Open; missing ones are created on demand.
type Deps struct {
	Logger *logger.Logger
	Redis  *sfredis.Client
}

// Backend is an opened Storage plus the resources behind it.
type Backend struct {
	Storage
	Driver  string
	pingers []func(context.Context) error
	closers []io.Closer
}

// Ping checks every connection the backend holds.
func (b *Backend) Ping(ctx context.Context) error {
	var err error
	for _, ping := range b.pingers {
		err = multierr.Append(err, ping(ctx))
	}
	return err
}

// Close releases the connections Open created. Shared deps are left open.
func (b *Backend) Close() error {
	var err error
	for _, c := range b.closers {
		err = multierr.Append(err, c.Close())
	}
	return err
}

// Open builds the Storage selected by cfg.Storage.Driver.
func Open(ctx context.Context, cfg *config.Config, deps Deps) (*Backend, error) {
	logg := deps.Logger
	if logg == nil {
		logg = logger.Nop()
	}
	backend := &Backend{Driver: cfg.Storage.Driver}

	switch cfg.Storage.Driver {
	case config.StorageDriverMemory, "":
		backend.Driver = config.StorageDriverMemory
		backend.Storage = NewMemory()

	case config.StorageDriverFile:
		file, err := NewFile(cfg.Storage.FilePath)
		if err != nil {
			return nil, err
		}
		backend.Storage = file

	case config.StorageDriverRedis:
		client := deps.Redis
		if client == nil {
			created, err := sfredis.New(ctx, cfg.Redis, logg)
			if err != nil {
				return nil, fmt.Errorf("open redis storage: %w", err)
			}
			client = created
			backend.closers = append(backend.closers, created)
		}
		backend.pingers = append(backend.pingers, client.Ping)
		backend.Storage = NewRedis(client, cfg.Storage.TTL)

	case config.StorageDriverSQL:
		client, err := db.New(ctx, cfg.DB, cfg.FeatureFlags.UseSQLite, logg)
		if err != nil {
			return nil, fmt.Errorf("open sql storage: %w", err)
		}
		backend.closers = append(backend.closers, client)
		backend.pingers = append(backend.pingers, client.Ping)
		if err := migrate.MaybeRun(ctx, cfg, logg, client); err != nil {
			_ = client.Close()
			return nil, err
		}
		backend.Storage = NewSQL(client)

	default:
		return nil, fmt.Errorf("unknown storage driver %q", cfg.Storage.Driver)
	}

	logg.Info(logg.WithField(ctx, "storage_driver", backend.Driver), "storage backend ready")
	return backend, nil
}
