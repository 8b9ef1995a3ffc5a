// Package warehouse provides Postgres persistence for raw deliveries, staged
// streams, watermarks, and the discovered-contract dimension.
package warehouse

import (
	"context"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

const defaultTimeout = 30 * time.Second

// QueryError carries the warehouse operation that failed alongside the cause.
type QueryError struct {
	Op  string
	Err error
}

func (e *QueryError) Error() string {
	return fmt.Sprintf("warehouse %s: %v", e.Op, e.Err)
}

func (e *QueryError) Unwrap() error {
	return e.Err
}

// Client wraps a pgx pool and applies a uniform per-operation timeout.
type Client struct {
	pool    *pgxpool.Pool
	timeout time.Duration
}

func NewClient(ctx context.Context, dsn string, timeout time.Duration) (*Client, error) {
	if dsn == "" {
		return nil, fmt.Errorf("database url is required")
	}
	if timeout <= 0 {
		timeout = defaultTimeout
	}
	pool, err := pgxpool.New(ctx, dsn)
	if err != nil {
		return nil, fmt.Errorf("connect warehouse: %w", err)
	}
	return &Client{pool: pool, timeout: timeout}, nil
}

func (c *Client) Close() {
	if c.pool != nil {
		c.pool.Close()
	}
}

// Ping verifies connectivity.
func (c *Client) Ping(ctx context.Context) error {
	ctx, cancel := c.deadline(ctx)
	defer cancel()
	if err := c.pool.Ping(ctx); err != nil {
		return &QueryError{Op: "ping", Err: err}
	}
	return nil
}

// Exec runs one statement under the client timeout and reports affected rows.
func (c *Client) Exec(ctx context.Context, op, sql string, args ...any) (int64, error) {
	ctx, cancel := c.deadline(ctx)
	defer cancel()
	tag, err := c.pool.Exec(ctx, sql, args...)
	if err != nil {
		return 0, &QueryError{Op: op, Err: err}
	}
	return tag.RowsAffected(), nil
}

// RunInTx executes fn inside a transaction under the client timeout,
// committing on nil and rolling back otherwise.
func (c *Client) RunInTx(ctx context.Context, op string, fn func(ctx context.Context, tx pgx.Tx) error) error {
	ctx, cancel := c.deadline(ctx)
	defer cancel()
	tx, err := c.pool.Begin(ctx)
	if err != nil {
		return &QueryError{Op: op, Err: err}
	}
	defer func() { _ = tx.Rollback(ctx) }()
	if err := fn(ctx, tx); err != nil {
		return &QueryError{Op: op, Err: err}
	}
	if err := tx.Commit(ctx); err != nil {
		return &QueryError{Op: op, Err: err}
	}
	return nil
}

func (c *Client) deadline(ctx context.Context) (context.Context, context.CancelFunc) {
	return context.WithTimeout(ctx, c.timeout)
}
