// Package ingest accepts webhook deliveries and stores them as immutable raw
// events.
package ingest

import (
	"context"
	"encoding/json"
	"net/http"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"chainstage/internal/metrics"
	"chainstage/internal/model"
	"chainstage/internal/payload"
)

// Store is the persistence surface the ingestor writes to.
type Store interface {
	ExistsByBlock(ctx context.Context, blockHash string, blockIndex int64) (bool, error)
	InsertRawEvent(ctx context.Context, ev model.RawEvent) (bool, error)
}

// Ingestor turns webhook deliveries into raw event rows. It never rejects a
// delivery: malformed bodies are stored opaque and internal failures are
// reported in the receipt, not the transport status.
type Ingestor struct {
	store  Store
	logger *zap.Logger
	dedupe bool
	now    func() time.Time
}

func NewIngestor(store Store, dedupe bool, logger *zap.Logger) *Ingestor {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Ingestor{store: store, logger: logger, dedupe: dedupe, now: time.Now}
}

// Ingest stores one delivery and reports the outcome. The receipt always
// carries a fresh event id, even when nothing was stored.
func (i *Ingestor) Ingest(ctx context.Context, path string, body []byte, headers http.Header, url, method string) model.Receipt {
	receipt := model.Receipt{OK: true, EventID: uuid.New()}

	ev := model.RawEvent{
		EventID:    receipt.EventID,
		ReceivedAt: i.now().UTC(),
		Path:       path,
		Headers:    flattenHeaders(headers),
		URL:        url,
		Method:     method,
	}

	if json.Valid(body) {
		ev.Body = body
		if i.dedupe {
			if doc, err := payload.Parse(body); err == nil {
				if ref, ok := doc.BlockIdentity(); ok {
					ev.BlockHash = &ref.Hash
					ev.BlockIndex = &ref.Index
				}
			}
		}
	} else if len(body) > 0 {
		text := string(body)
		ev.BodyText = &text
	}

	if ev.BlockHash != nil {
		exists, err := i.store.ExistsByBlock(ctx, *ev.BlockHash, *ev.BlockIndex)
		if err != nil {
			return i.fail(receipt, err)
		}
		if exists {
			return i.skipDuplicate(receipt, ev)
		}
	}

	inserted, err := i.store.InsertRawEvent(ctx, ev)
	if err != nil {
		return i.fail(receipt, err)
	}
	if !inserted {
		// Lost the block-identity race to a concurrent delivery.
		return i.skipDuplicate(receipt, ev)
	}

	metrics.IngestTotal.WithLabelValues("stored").Inc()
	i.logger.Debug("delivery stored",
		zap.String("event_id", receipt.EventID.String()),
		zap.String("path", path))
	return receipt
}

func (i *Ingestor) skipDuplicate(receipt model.Receipt, ev model.RawEvent) model.Receipt {
	i.logger.Info("duplicate delivery skipped",
		zap.String("block_hash", *ev.BlockHash),
		zap.Int64("block_index", *ev.BlockIndex))
	metrics.IngestTotal.WithLabelValues("deduplicated").Inc()
	receipt.Deduplicated = true
	return receipt
}

func (i *Ingestor) fail(receipt model.Receipt, err error) model.Receipt {
	i.logger.Error("delivery not stored",
		zap.String("event_id", receipt.EventID.String()),
		zap.Error(err))
	metrics.IngestTotal.WithLabelValues("failed").Inc()
	receipt.OK = false
	receipt.Error = err.Error()
	return receipt
}

func flattenHeaders(h http.Header) map[string]string {
	if len(h) == 0 {
		return nil
	}
	out := make(map[string]string, len(h))
	for name, values := range h {
		if len(values) > 0 {
			out[name] = values[0]
		}
	}
	return out
}
