package model

import "time"

// Run status values shared by watermark rows and job results.
const (
	StatusSuccess   = "success"
	StatusNoNewData = "no_new_data"
	StatusError     = "error"
)

// Names of the watermark-tracked staging streams.
const (
	StreamTransactions = "transactions"
	StreamEvents       = "events"
	StreamAddresses    = "addresses"
)

// Watermark marks the upper bound of raw events already materialized into one
// stream's staging table. LastProcessedAt only moves forward, and only after
// the staged rows it covers are committed.
type Watermark struct {
	StreamName      string    `json:"stream_name"`
	LastProcessedAt time.Time `json:"last_processed_at"`
	Status          string    `json:"status"`
	UpdatedAt       time.Time `json:"updated_at"`
	RowsProcessed   int64     `json:"rows_processed"`
}
