package model

import "time"

// RefreshResult reports one incremental transform run for a stream.
type RefreshResult struct {
	StreamName      string     `json:"stream_name"`
	Status          string     `json:"status"`
	RowsProcessed   int64      `json:"rows_processed"`
	LastProcessedAt *time.Time `json:"last_processed_at,omitempty"`
	DurationMS      int64      `json:"duration_ms"`
	Error           string     `json:"error,omitempty"`
}

// DiscoveryResult reports one contract discovery run.
type DiscoveryResult struct {
	JobName     string `json:"job_name"`
	Status      string `json:"status"`
	NewEntities int64  `json:"new_entities_discovered"`
	DurationMS  int64  `json:"duration_ms"`
	Error       string `json:"error,omitempty"`
}

// ValidationResult reports one metadata validation run.
type ValidationResult struct {
	Status     string `json:"status"`
	Processed  int64  `json:"tokens_processed"`
	Succeeded  int64  `json:"successful_validations"`
	Failed     int64  `json:"failed_validations"`
	DurationMS int64  `json:"duration_ms"`
	Error      string `json:"error,omitempty"`
}

// ReserveResult reports one reserve resolution run.
type ReserveResult struct {
	Status           string `json:"status"`
	Processed        int64  `json:"pools_processed"`
	PrimaryResolved  int64  `json:"primary_resolved"`
	FallbackResolved int64  `json:"fallback_resolved"`
	Failed           int64  `json:"failed"`
	DurationMS       int64  `json:"duration_ms"`
	Error            string `json:"error,omitempty"`
}
