package infra

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/redis/go-redis/v9"

	"github.com/khata-ledger/khata/internal/config"
	"github.com/khata-ledger/khata/internal/ledger"
	"github.com/khata-ledger/khata/internal/notification"
	"github.com/khata-ledger/khata/internal/party"
)

// Check reports whether a dependency is reachable.
type Check func(ctx context.Context) error

// Backends holds the store handles and clients built once at start-up and
// injected into the services.
type Backends struct {
	Parties  party.Repository
	Entries  ledger.Store
	Cache    *redis.Client
	Notifier notification.Notifier
	// Checks are keyed by dependency name for the health endpoint.
	Checks map[string]Check

	closers []func() error
}

// Open builds the backends selected by cfg. On error everything opened so far
// is closed.
func Open(ctx context.Context, cfg config.Config, logger *slog.Logger) (*Backends, error) {
	b := &Backends{Checks: map[string]Check{}}

	switch cfg.StoreDriver {
	case config.DriverPostgres:
		pool, err := NewPostgresPool(ctx, cfg.DatabaseURL)
		if err != nil {
			return nil, err
		}
		b.onClose(func() error { pool.Close(); return nil })
		b.Parties = party.NewPostgresRepository(pool)
		b.Entries = ledger.NewPostgresStore(pool)
		b.Checks["store"] = pool.Ping
	case config.DriverSQLite:
		db, err := OpenSQLite(ctx, cfg.SQLitePath)
		if err != nil {
			return nil, err
		}
		b.onClose(db.Close)
		b.Parties = party.NewSQLiteRepository(db)
		b.Entries = ledger.NewSQLiteStore(db)
		b.Checks["store"] = db.PingContext
	case config.DriverMemory:
		b.Parties = party.NewMemoryRepository()
		b.Entries = ledger.NewInMemory()
	default:
		return nil, fmt.Errorf("unknown store driver %q", cfg.StoreDriver)
	}
	logger.Info("store ready", "driver", cfg.StoreDriver)

	cache, err := NewRedisClient(ctx, cfg.RedisURL)
	if err != nil {
		b.Close()
		return nil, err
	}
	if cache != nil {
		b.Cache = cache
		b.onClose(cache.Close)
		b.Checks["redis"] = func(ctx context.Context) error { return cache.Ping(ctx).Err() }
	}

	if len(cfg.KafkaBrokers) > 0 {
		kafka := notification.NewKafkaNotifier(cfg.KafkaBrokers, cfg.KafkaTopic)
		b.onClose(kafka.Close)
		b.Notifier = kafka
		logger.Info("publishing ledger events to kafka", "topic", cfg.KafkaTopic)
	} else {
		b.Notifier = notification.NewLoggerNotifier(logger)
	}

	return b, nil
}

func (b *Backends) onClose(fn func() error) {
	b.closers = append(b.closers, fn)
}

// Close releases everything in reverse order of opening.
func (b *Backends) Close() error {
	var errs []error
	for i := len(b.closers) - 1; i >= 0; i-- {
		if err := b.closers[i](); err != nil {
			errs = append(errs, err)
		}
	}
	b.closers = nil
	return errors.Join(errs...)
}
