// Package postgres is the relational persistence layer backing books,
// chapters, descriptions, generated images, and parsing jobs. It replaces
// the teacher's DefraDB/GraphQL client with github.com/jackc/pgx/v5
// against the schema in schema.sql.
package postgres

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/avast/retry-go/v4"
	"github.com/jackc/pgx/v5/pgxpool"
)

// Client wraps a pgx connection pool.
type Client struct {
	Pool   *pgxpool.Pool
	logger *slog.Logger
}

// Config configures the connection.
type Config struct {
	DSN            string
	ConnectTimeout time.Duration
	Logger         *slog.Logger
}

// New establishes a connection pool, retrying with backoff the way the
// teacher retries DefraDB container startup (internal/defra/docker.go),
// since a freshly-started Postgres instance may not accept connections
// for the first few seconds.
func New(ctx context.Context, cfg Config) (*Client, error) {
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}
	timeout := cfg.ConnectTimeout
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	var pool *pgxpool.Pool
	err := retry.Do(
		func() error {
			connectCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
			defer cancel()

			p, err := pgxpool.New(connectCtx, cfg.DSN)
			if err != nil {
				return fmt.Errorf("create pool: %w", err)
			}
			if err := p.Ping(connectCtx); err != nil {
				p.Close()
				return fmt.Errorf("ping: %w", err)
			}
			pool = p
			return nil
		},
		retry.Context(ctx),
		retry.Attempts(0), // unlimited within the overall timeout
		retry.MaxDelay(5*time.Second),
		retry.OnRetry(func(n uint, err error) {
			logger.Warn("postgres connection attempt failed, retrying", "attempt", n, "error", err)
		}),
	)
	if err != nil {
		return nil, fmt.Errorf("connect to postgres: %w", err)
	}

	return &Client{Pool: pool, logger: logger}, nil
}

// Close releases the connection pool.
func (c *Client) Close() {
	c.Pool.Close()
}
