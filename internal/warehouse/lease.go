package warehouse

import (
	"context"
	"hash/fnv"

	"github.com/jackc/pgx/v5/pgxpool"
)

// Lease is a session-scoped advisory lock pinned to one pooled connection.
// It guards a job against overlapping invocations across processes.
type Lease struct {
	conn *pgxpool.Conn
	key  int64
}

// AcquireLease takes the named advisory lock without waiting. acquired=false
// means another run currently holds it.
func (c *Client) AcquireLease(ctx context.Context, name string) (*Lease, bool, error) {
	ctx, cancel := c.deadline(ctx)
	defer cancel()
	conn, err := c.pool.Acquire(ctx)
	if err != nil {
		return nil, false, &QueryError{Op: "acquire lease", Err: err}
	}
	key := leaseKey(name)
	var acquired bool
	if err := conn.QueryRow(ctx, `SELECT pg_try_advisory_lock($1)`, key).Scan(&acquired); err != nil {
		conn.Release()
		return nil, false, &QueryError{Op: "acquire lease", Err: err}
	}
	if !acquired {
		conn.Release()
		return nil, false, nil
	}
	return &Lease{conn: conn, key: key}, true, nil
}

// Release unlocks the lease and returns its connection to the pool.
func (l *Lease) Release(ctx context.Context) {
	if l == nil || l.conn == nil {
		return
	}
	_, _ = l.conn.Exec(ctx, `SELECT pg_advisory_unlock($1)`, l.key)
	l.conn.Release()
	l.conn = nil
}

func leaseKey(name string) int64 {
	h := fnv.New64a()
	_, _ = h.Write([]byte(name))
	return int64(h.Sum64())
}
