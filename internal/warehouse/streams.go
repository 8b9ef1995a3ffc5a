package warehouse

import (
	"context"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
)

// HasNewRows reports whether any raw event after cursor matches the stream's
// shape predicate. The predicate is a trusted SQL fragment over alias r.
func (c *Client) HasNewRows(ctx context.Context, predicate string, cursor time.Time) (bool, error) {
	ctx, cancel := c.deadline(ctx)
	defer cancel()
	query := fmt.Sprintf(`
		SELECT EXISTS (
			SELECT 1 FROM raw_events r WHERE r.received_at > $1 AND (%s)
		)
	`, predicate)
	var exists bool
	if err := c.pool.QueryRow(ctx, query, cursor).Scan(&exists); err != nil {
		return false, &QueryError{Op: "peek stream", Err: err}
	}
	return exists, nil
}

// extractQuery nests a stream's insert in a CTE over one src window. Under
// read committed every statement takes its own snapshot, so an aggregate
// re-scanning raw_events could count a row the insert never staged; deriving
// both from src pins them to the same row set.
func extractQuery(predicate, extract string) string {
	return fmt.Sprintf(`
		WITH src AS (
			SELECT r.event_id, r.received_at, r.body
			FROM raw_events r
			WHERE r.received_at > $1 AND (%s)
		), staged AS (
			%s
		)
		SELECT (SELECT count(*) FROM staged), (SELECT max(received_at) FROM src)
	`, predicate, extract)
}

// ExtractStream stages every raw event after cursor matching the predicate
// and advances the stream watermark to the window's observed maximum
// received_at, all in one transaction. The insert and the observed maximum
// come out of a single statement, so the cursor never moves past a raw event
// the insert did not consume. It returns the number of newly staged rows and
// the new cursor position.
func (c *Client) ExtractStream(ctx context.Context, stream, predicate, extract string, cursor time.Time) (int64, time.Time, error) {
	var staged int64
	var observedMax time.Time
	err := c.RunInTx(ctx, "extract "+stream, func(ctx context.Context, tx pgx.Tx) error {
		var observed *time.Time
		if err := tx.QueryRow(ctx, extractQuery(predicate, extract), cursor).Scan(&staged, &observed); err != nil {
			return fmt.Errorf("stage rows: %w", err)
		}
		if observed == nil {
			// The window was empty; leave the cursor alone.
			staged = 0
			return nil
		}
		observedMax = observed.UTC()
		return c.advanceWatermark(ctx, tx, stream, observedMax, staged)
	})
	if err != nil {
		return 0, time.Time{}, err
	}
	return staged, observedMax, nil
}
