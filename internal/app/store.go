package app

import (
	"context"
	"fmt"
	"time"

	"github.com/rs/zerolog"
	"github.com/sethvargo/go-retry"

	"github.com/vovakirdan/lobbychat/internal/config"
	"github.com/vovakirdan/lobbychat/internal/store"
	"github.com/vovakirdan/lobbychat/internal/store/postgres"
	"github.com/vovakirdan/lobbychat/internal/store/sqlite"
)

// MigratingStore is a store that can provision its own schema.
type MigratingStore interface {
	store.Store
	Migrate(ctx context.Context, logger *zerolog.Logger) error
}

type opener func(ctx context.Context, cfg config.StoreConfig) (MigratingStore, error)

func openDriver(ctx context.Context, cfg config.StoreConfig) (MigratingStore, error) {
	switch cfg.Driver {
	case "sqlite":
		st, err := sqlite.New(cfg.SQLitePath)
		if err != nil {
			return nil, err
		}
		return st, nil
	case "postgres":
		st, err := postgres.New(ctx, cfg.PostgresDSN)
		if err != nil {
			return nil, err
		}
		return st, nil
	default:
		return nil, fmt.Errorf("unknown store driver %q", cfg.Driver)
	}
}

// OpenStore connects to the configured store, retrying with exponential backoff.
// Exhausting the attempts is fatal for the caller.
func OpenStore(ctx context.Context, cfg config.StoreConfig, logger *zerolog.Logger) (MigratingStore, error) {
	return openWithRetry(ctx, cfg, openDriver, logger)
}

func openWithRetry(ctx context.Context, cfg config.StoreConfig, open opener, logger *zerolog.Logger) (MigratingStore, error) {
	attempts := cfg.ConnectAttempts
	if attempts == 0 {
		attempts = 1
	}
	base := cfg.ConnectBackoff
	if base <= 0 {
		base = 100 * time.Millisecond
	}
	backoff := retry.WithMaxRetries(attempts-1, retry.NewExponential(base))

	var (
		st    MigratingStore
		tries int
	)
	err := retry.Do(ctx, backoff, func(ctx context.Context) error {
		tries++
		opened, err := open(ctx, cfg)
		if err != nil {
			logger.Warn().Err(err).Int("attempt", tries).Str("driver", cfg.Driver).Msg("store connect failed")
			return retry.RetryableError(err)
		}
		if err := opened.Ping(ctx); err != nil {
			_ = opened.Close()
			logger.Warn().Err(err).Int("attempt", tries).Str("driver", cfg.Driver).Msg("store ping failed")
			return retry.RetryableError(err)
		}
		st = opened
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("connect %s store after %d attempts: %w", cfg.Driver, tries, err)
	}

	logger.Info().Str("driver", cfg.Driver).Int("attempts", tries).Msg("store connected")
	return st, nil
}
