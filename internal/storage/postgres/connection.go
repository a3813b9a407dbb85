package postgres

import (
	"context"
	"fmt"
	"net/url"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/ternarybob/arbor"
	"github.com/ternarybob/skillmatch/internal/common"
)

// NewPool connects to the database with linear-backoff retries on
// transient connect failures.
func NewPool(ctx context.Context, cfg common.DatabaseConfig, logger arbor.ILogger) (*pgxpool.Pool, error) {
	dsn := fmt.Sprintf("postgres://%s:%s@%s/%s?connect_timeout=%d",
		url.QueryEscape(cfg.User),
		url.QueryEscape(cfg.Password),
		cfg.Server,
		cfg.Database,
		int(cfg.ConnectTimeout().Seconds()),
	)

	poolCfg, err := pgxpool.ParseConfig(dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to parse database config: %w", err)
	}
	if cfg.PoolMax > 0 {
		poolCfg.MaxConns = int32(cfg.PoolMax)
	}

	attempts := cfg.RetryAttempts
	if attempts <= 0 {
		attempts = 1
	}

	var pool *pgxpool.Pool
	var lastErr error
	for attempt := 1; attempt <= attempts; attempt++ {
		connectCtx, cancel := context.WithTimeout(ctx, cfg.ConnectTimeout())
		pool, lastErr = pgxpool.NewWithConfig(connectCtx, poolCfg)
		if lastErr == nil {
			lastErr = pool.Ping(connectCtx)
		}
		cancel()

		if lastErr == nil {
			logger.Info().
				Str("server", cfg.Server).
				Str("database", cfg.Database).
				Int("pool_max", cfg.PoolMax).
				Msg("Database connected")
			return pool, nil
		}

		if pool != nil {
			pool.Close()
			pool = nil
		}

		logger.Warn().
			Err(lastErr).
			Int("attempt", attempt).
			Int("max_attempts", attempts).
			Msg("Database connect failed")

		if attempt < attempts {
			select {
			case <-ctx.Done():
				return nil, ctx.Err()
			case <-time.After(cfg.RetryBackoff()):
			}
		}
	}

	return nil, fmt.Errorf("database unreachable after %d attempts: %w", attempts, lastErr)
}
