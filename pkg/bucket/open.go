package bucket

import (
	"context"
	"fmt"
	"time"

	"github.com/heywhy/bucket/internal/config"
	"github.com/heywhy/bucket/internal/infrastructure/sqlite"
	"github.com/heywhy/bucket/internal/log"
	"github.com/heywhy/bucket/internal/tracing"
)

// tracerShutdownTimeout bounds the flush of pending spans on Close.
const tracerShutdownTimeout = 5 * time.Second

// Open builds a bucket from a validated configuration: loader options,
// a sqlite or in-memory cache backend, and tracing. Close releases the
// database and flushes traces.
func Open(cfg config.Config, opts ...Option) (*Bucket, error) {
	if err := config.Validate(cfg); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	provider, err := tracing.NewProvider(cfg.Tracing)
	if err != nil {
		return nil, fmt.Errorf("initializing tracing: %w", err)
	}
	shutdown := func() error {
		ctx, cancel := context.WithTimeout(context.Background(), tracerShutdownTimeout)
		defer cancel()
		return provider.Shutdown(ctx)
	}

	closers := []func() error{shutdown}
	base := []Option{
		WithOptions(cfg.LoaderOptions()),
		WithTracer(provider.Tracer()),
		WithWatchDebounce(time.Duration(cfg.Watch.DebounceMs) * time.Millisecond),
	}

	if cfg.Storage.Driver != config.StorageMemory {
		db, err := sqlite.NewDB(cfg.StoragePath())
		if err != nil {
			_ = shutdown()
			return nil, err
		}
		closers = append(closers, db.Close)
		base = append(base, WithStorage(db.Store()))
	}
	for _, closer := range closers {
		base = append(base, withCloser(closer))
	}

	b, err := New(append(base, opts...)...)
	if err != nil {
		for i := len(closers) - 1; i >= 0; i-- {
			_ = closers[i]()
		}
		return nil, err
	}
	log.Debug(log.CatConfig, "bucket opened", "storage", cfg.Storage.Driver, "tracing", provider.Enabled())
	return b, nil
}
