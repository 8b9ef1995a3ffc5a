package warehouse

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"

	"chainstage/internal/model"
)

// LoadWatermark returns the stream's watermark. Missing rows report found=false.
func (c *Client) LoadWatermark(ctx context.Context, stream string) (model.Watermark, bool, error) {
	if stream == "" {
		return model.Watermark{}, false, fmt.Errorf("stream name required")
	}
	ctx, cancel := c.deadline(ctx)
	defer cancel()
	wm := model.Watermark{StreamName: stream}
	err := c.pool.QueryRow(ctx, `
		SELECT last_processed_at, status, updated_at, rows_processed
		FROM stream_watermarks
		WHERE stream_name = $1
	`, stream).Scan(&wm.LastProcessedAt, &wm.Status, &wm.UpdatedAt, &wm.RowsProcessed)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return model.Watermark{}, false, nil
		}
		return model.Watermark{}, false, &QueryError{Op: "load watermark", Err: err}
	}
	return wm, true, nil
}

// advanceWatermark moves the stream cursor forward inside the extraction
// transaction. The GREATEST guard absorbs any attempt to move it backward.
func (c *Client) advanceWatermark(ctx context.Context, tx pgx.Tx, stream string, cursor time.Time, rows int64) error {
	if stream == "" {
		return fmt.Errorf("stream name required")
	}
	_, err := tx.Exec(ctx, `
		INSERT INTO stream_watermarks (stream_name, last_processed_at, status, updated_at, rows_processed)
		VALUES ($1, $2, $3, now(), $4)
		ON CONFLICT (stream_name) DO UPDATE
		SET last_processed_at = GREATEST(stream_watermarks.last_processed_at, EXCLUDED.last_processed_at),
			status = EXCLUDED.status,
			updated_at = now(),
			rows_processed = EXCLUDED.rows_processed
	`, stream, cursor, model.StatusSuccess, rows)
	if err != nil {
		return &QueryError{Op: "advance watermark", Err: err}
	}
	return nil
}

// MarkWatermarkError records a failed run without touching the cursor.
func (c *Client) MarkWatermarkError(ctx context.Context, stream string) error {
	if stream == "" {
		return fmt.Errorf("stream name required")
	}
	_, err := c.Exec(ctx, "mark watermark error", `
		INSERT INTO stream_watermarks (stream_name, last_processed_at, status, updated_at, rows_processed)
		VALUES ($1, to_timestamp(0), $2, now(), 0)
		ON CONFLICT (stream_name) DO UPDATE
		SET status = EXCLUDED.status,
			updated_at = now(),
			rows_processed = 0
	`, stream, model.StatusError)
	return err
}
