package enrich

import (
	"fmt"
	"time"

	"golang.org/x/time/rate"

	"chainstage/internal/model"
)

// chunkContracts splits entities into consecutive batches of at most size.
func chunkContracts(entities []model.Contract, size int) ([][]model.Contract, error) {
	if size <= 0 {
		return nil, fmt.Errorf("batch size must be positive")
	}
	if len(entities) == 0 {
		return nil, nil
	}
	batches := make([][]model.Contract, 0, (len(entities)+size-1)/size)
	for start := 0; start < len(entities); start += size {
		end := start + size
		if end > len(entities) {
			end = len(entities)
		}
		batches = append(batches, entities[start:end])
	}
	return batches, nil
}

// pacer builds the inter-batch limiter. The first wait never blocks.
func pacer(pause time.Duration) *rate.Limiter {
	if pause <= 0 {
		return rate.NewLimiter(rate.Inf, 1)
	}
	return rate.NewLimiter(rate.Every(pause), 1)
}
