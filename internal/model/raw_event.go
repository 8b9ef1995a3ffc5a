package model

import (
	"time"

	"github.com/google/uuid"
)

// RawEvent is one stored webhook delivery, written once and never mutated.
// Body holds the payload when it parsed as JSON; BodyText preserves the
// original bytes when it did not.
type RawEvent struct {
	EventID    uuid.UUID         `json:"event_id"`
	ReceivedAt time.Time         `json:"received_at"`
	Path       string            `json:"path"`
	Body       []byte            `json:"body,omitempty"`
	BodyText   *string           `json:"body_text,omitempty"`
	Headers    map[string]string `json:"headers,omitempty"`
	URL        string            `json:"url"`
	Method     string            `json:"method"`
	BlockHash  *string           `json:"block_hash,omitempty"`
	BlockIndex *int64            `json:"block_index,omitempty"`
}
