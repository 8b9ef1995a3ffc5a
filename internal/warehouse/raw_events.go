package warehouse

import (
	"context"

	"chainstage/internal/model"
)

// ExistsByBlock reports whether a delivery for the block identity is already
// stored.
func (c *Client) ExistsByBlock(ctx context.Context, blockHash string, blockIndex int64) (bool, error) {
	ctx, cancel := c.deadline(ctx)
	defer cancel()
	var exists bool
	err := c.pool.QueryRow(ctx, `
		SELECT EXISTS (
			SELECT 1 FROM raw_events WHERE block_hash = $1 AND block_index = $2
		)
	`, blockHash, blockIndex).Scan(&exists)
	if err != nil {
		return false, &QueryError{Op: "exists by block", Err: err}
	}
	return exists, nil
}

// InsertRawEvent stores one delivery. inserted=false means another delivery
// with the same block identity won a concurrent race.
func (c *Client) InsertRawEvent(ctx context.Context, ev model.RawEvent) (bool, error) {
	affected, err := c.Exec(ctx, "insert raw event", `
		INSERT INTO raw_events (
			event_id, received_at, path, body, body_text, headers, url, method, block_hash, block_index
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)
		ON CONFLICT (block_hash, block_index) WHERE block_hash IS NOT NULL DO NOTHING
	`,
		ev.EventID,
		ev.ReceivedAt,
		ev.Path,
		ev.Body,
		ev.BodyText,
		ev.Headers,
		ev.URL,
		ev.Method,
		ev.BlockHash,
		ev.BlockIndex,
	)
	if err != nil {
		return false, err
	}
	return affected == 1, nil
}
