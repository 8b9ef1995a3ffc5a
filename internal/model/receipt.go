package model

import "github.com/google/uuid"

// Receipt reports the outcome of one webhook ingestion attempt. It is the
// response body of the webhook endpoint regardless of transport status.
type Receipt struct {
	OK           bool      `json:"ok"`
	EventID      uuid.UUID `json:"event_id"`
	Error        string    `json:"error,omitempty"`
	Deduplicated bool      `json:"-"`
}
