// Package enrich validates discovered contracts against external sources and
// resolves pool reserves. External calls are batched, bounded, and fail per
// entity, never per batch.
package enrich

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"sync"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
	"golang.org/x/time/rate"

	"chainstage/internal/metrics"
	"chainstage/internal/model"
	"chainstage/internal/payload"
	"chainstage/internal/warehouse"
)

const maxMetadataBytes = 1 << 20

// Warehouse is the storage surface the enrichment jobs run against.
type Warehouse interface {
	AcquireLease(ctx context.Context, name string) (*warehouse.Lease, bool, error)
	ListPendingContracts(ctx context.Context, limit int) ([]model.Contract, error)
	ListReserveCandidates(ctx context.Context, limit int) ([]model.Contract, error)
	SaveValidation(ctx context.Context, entity model.Contract) error
	UpsertReserves(ctx context.Context, snap model.ReserveSnapshot) error
}

// Options bound the enrichment jobs' external calls.
type Options struct {
	BatchSize    int
	BatchPause   time.Duration
	CallTimeout  time.Duration
	FetchTimeout time.Duration
}

func (o Options) withDefaults() Options {
	if o.BatchSize <= 0 {
		o.BatchSize = 5
	}
	if o.CallTimeout <= 0 {
		o.CallTimeout = 10 * time.Second
	}
	if o.FetchTimeout <= 0 {
		o.FetchTimeout = 10 * time.Second
	}
	return o
}

// Validator enriches pending contracts with on-chain and HTTP metadata.
type Validator struct {
	wh      Warehouse
	caller  Caller
	httpc   *http.Client
	limiter *rate.Limiter
	opts    Options
	logger  *zap.Logger
}

func NewValidator(wh Warehouse, caller Caller, opts Options, logger *zap.Logger) *Validator {
	if logger == nil {
		logger = zap.NewNop()
	}
	opts = opts.withDefaults()
	return &Validator{
		wh:      wh,
		caller:  caller,
		httpc:   &http.Client{Timeout: opts.FetchTimeout},
		limiter: pacer(opts.BatchPause),
		opts:    opts,
		logger:  logger,
	}
}

// Run validates up to limit pending contracts. Every entity is settled
// individually; the batch never aborts on a single failure.
func (v *Validator) Run(ctx context.Context, limit int) (model.ValidationResult, error) {
	started := time.Now()
	res := model.ValidationResult{Status: model.StatusError}

	if limit <= 0 {
		return v.finish(res, started, fmt.Errorf("limit must be positive"))
	}

	lease, acquired, err := v.wh.AcquireLease(ctx, "validate")
	if err != nil {
		return v.finish(res, started, err)
	}
	if !acquired {
		v.logger.Info("validation skipped, lease busy")
		res.Status = model.StatusNoNewData
		return v.finish(res, started, nil)
	}
	defer lease.Release(ctx)

	pending, err := v.wh.ListPendingContracts(ctx, limit)
	if err != nil {
		return v.finish(res, started, err)
	}
	if len(pending) == 0 {
		res.Status = model.StatusSuccess
		return v.finish(res, started, nil)
	}

	batches, err := chunkContracts(pending, v.opts.BatchSize)
	if err != nil {
		return v.finish(res, started, err)
	}

	for _, batch := range batches {
		if err := v.limiter.Wait(ctx); err != nil {
			return v.finish(res, started, err)
		}
		outcomes := make([]model.Contract, len(batch))
		g, gctx := errgroup.WithContext(ctx)
		for idx, entity := range batch {
			g.Go(func() error {
				outcomes[idx] = v.validateOne(gctx, entity)
				return nil
			})
		}
		_ = g.Wait()

		for _, entity := range outcomes {
			res.Processed++
			if err := v.wh.SaveValidation(ctx, entity); err != nil {
				v.logger.Error("persist validation",
					zap.String("address", entity.Address),
					zap.Error(err))
				res.Failed++
				continue
			}
			if entity.AnalysisStatus == model.AnalysisValidated {
				res.Succeeded++
			} else {
				res.Failed++
			}
		}
	}

	res.Status = model.StatusSuccess
	v.logger.Info("validation complete",
		zap.Int64("processed", res.Processed),
		zap.Int64("succeeded", res.Succeeded),
		zap.Int64("failed", res.Failed))
	return v.finish(res, started, nil)
}

// validateOne settles a single entity: it issues only the calls the entity's
// capability list names, degrades each failed field to null, and records the
// failure on the entity.
func (v *Validator) validateOne(ctx context.Context, entity model.Contract) model.Contract {
	entity.Errors = []string{}
	addr := common.HexToAddress(entity.Address)

	var (
		wg                         sync.WaitGroup
		name, symbol, uri          string
		decimals                   int32
		nameErr, symbolErr, decErr error
		uriErr                     error
		nameSet, symbolSet, uriSet bool
		decimalsSet                bool
	)

	call := func(run func()) {
		wg.Add(1)
		go func() {
			defer wg.Done()
			run()
		}()
	}

	if entity.HasCapability(model.CapName) {
		call(func() {
			callCtx, cancel := context.WithTimeout(ctx, v.opts.CallTimeout)
			defer cancel()
			if s, err := fetchText(callCtx, v.caller, addr, "name"); err != nil {
				nameErr = err
			} else {
				name, nameSet = s, true
			}
		})
	}
	if entity.HasCapability(model.CapSymbol) {
		call(func() {
			callCtx, cancel := context.WithTimeout(ctx, v.opts.CallTimeout)
			defer cancel()
			if s, err := fetchText(callCtx, v.caller, addr, "symbol"); err != nil {
				symbolErr = err
			} else {
				symbol, symbolSet = s, true
			}
		})
	}
	if entity.HasCapability(model.CapDecimals) {
		call(func() {
			callCtx, cancel := context.WithTimeout(ctx, v.opts.CallTimeout)
			defer cancel()
			if d, err := fetchDecimals(callCtx, v.caller, addr); err != nil {
				decErr = err
			} else {
				decimals, decimalsSet = d, true
			}
		})
	}
	if entity.HasCapability(model.CapTokenURI) {
		call(func() {
			callCtx, cancel := context.WithTimeout(ctx, v.opts.CallTimeout)
			defer cancel()
			if s, err := fetchText(callCtx, v.caller, addr, "contractURI"); err != nil {
				uriErr = err
			} else {
				uri, uriSet = s, true
			}
		})
	}
	wg.Wait()

	if nameErr != nil {
		entity.Errors = append(entity.Errors, fmt.Sprintf("name: %v", nameErr))
	} else if nameSet && name != "" {
		entity.TokenName = &name
	}
	if symbolErr != nil {
		entity.Errors = append(entity.Errors, fmt.Sprintf("symbol: %v", symbolErr))
	} else if symbolSet && symbol != "" {
		entity.TokenSymbol = &symbol
	}
	if decErr != nil {
		entity.Errors = append(entity.Errors, fmt.Sprintf("decimals: %v", decErr))
	} else if decimalsSet {
		entity.TokenDecimals = &decimals
	}
	if uriErr != nil {
		entity.Errors = append(entity.Errors, fmt.Sprintf("token_uri: %v", uriErr))
	} else if uriSet && uri != "" {
		entity.TokenURI = &uri
	}

	// Secondary fetch: a resolved http(s) URI may carry richer metadata.
	// Its failure is recorded on the entity like any other call.
	if entity.TokenURI != nil {
		if doc, err := v.fetchURIMetadata(ctx, *entity.TokenURI); err != nil {
			entity.Errors = append(entity.Errors, fmt.Sprintf("token_uri fetch: %v", err))
		} else {
			if entity.TokenName == nil {
				if s, err := payload.StringAt(doc, "name"); err == nil && s != "" {
					entity.TokenName = &s
				}
			}
			if entity.TokenSymbol == nil {
				if s, err := payload.StringAt(doc, "symbol"); err == nil && s != "" {
					entity.TokenSymbol = &s
				}
			}
		}
	}

	if entity.TokenName == nil {
		fallback := fallbackName(entity.Address)
		entity.TokenName = &fallback
	}
	if entity.TokenSymbol == nil {
		fallback := fallbackSymbol(entity.Address)
		entity.TokenSymbol = &fallback
	}

	if len(entity.Errors) == 0 {
		entity.AnalysisStatus = model.AnalysisValidated
	} else {
		entity.AnalysisStatus = model.AnalysisFailed
		v.logger.Warn("entity validation degraded",
			zap.String("address", entity.Address),
			zap.Strings("errors", entity.Errors))
	}
	return entity
}

func (v *Validator) fetchURIMetadata(ctx context.Context, uri string) (payload.Document, error) {
	parsed, err := url.Parse(uri)
	if err != nil {
		return nil, fmt.Errorf("parse uri: %w", err)
	}
	if parsed.Scheme != "http" && parsed.Scheme != "https" {
		return nil, fmt.Errorf("unsupported uri scheme %q", parsed.Scheme)
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, uri, nil)
	if err != nil {
		return nil, err
	}
	resp, err := v.httpc.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("status %d", resp.StatusCode)
	}
	raw, err := io.ReadAll(io.LimitReader(resp.Body, maxMetadataBytes))
	if err != nil {
		return nil, err
	}
	return payload.Parse(raw)
}

func (v *Validator) finish(res model.ValidationResult, started time.Time, err error) (model.ValidationResult, error) {
	res.DurationMS = time.Since(started).Milliseconds()
	if err != nil {
		res.Error = err.Error()
		v.logger.Error("validation failed", zap.Error(err))
	}
	metrics.JobRunsTotal.WithLabelValues("validate", res.Status).Inc()
	metrics.JobDuration.WithLabelValues("validate").Observe(time.Since(started).Seconds())
	return res, err
}

// fallbackName derives a deterministic display name from the address.
func fallbackName(address string) string {
	return "Contract " + shortAddress(address)
}

// fallbackSymbol derives a deterministic display symbol from the address.
func fallbackSymbol(address string) string {
	hex := strings.TrimPrefix(strings.ToLower(address), "0x")
	if len(hex) > 4 {
		hex = hex[:4]
	}
	return strings.ToUpper(hex)
}

func shortAddress(address string) string {
	if len(address) <= 12 {
		return address
	}
	return address[:6] + "..." + address[len(address)-4:]
}
