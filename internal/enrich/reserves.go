package enrich

import (
	"context"
	"fmt"
	"math/big"
	"strings"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
	"golang.org/x/time/rate"

	"chainstage/internal/metrics"
	"chainstage/internal/model"
)

// Resolver refreshes reserve snapshots for pool-capable contracts.
type Resolver struct {
	wh      Warehouse
	caller  Caller
	limiter *rate.Limiter
	opts    Options
	logger  *zap.Logger
}

func NewResolver(wh Warehouse, caller Caller, opts Options, logger *zap.Logger) *Resolver {
	if logger == nil {
		logger = zap.NewNop()
	}
	opts = opts.withDefaults()
	return &Resolver{
		wh:      wh,
		caller:  caller,
		limiter: pacer(opts.BatchPause),
		opts:    opts,
		logger:  logger,
	}
}

// Run resolves reserves for up to limit pool contracts. Each pool gets a
// snapshot even when both strategies fail, so staleness stays visible.
func (r *Resolver) Run(ctx context.Context, limit int) (model.ReserveResult, error) {
	started := time.Now()
	res := model.ReserveResult{Status: model.StatusError}

	if limit <= 0 {
		return r.finish(res, started, fmt.Errorf("limit must be positive"))
	}

	lease, acquired, err := r.wh.AcquireLease(ctx, "reserves")
	if err != nil {
		return r.finish(res, started, err)
	}
	if !acquired {
		r.logger.Info("reserve resolution skipped, lease busy")
		res.Status = model.StatusNoNewData
		return r.finish(res, started, nil)
	}
	defer lease.Release(ctx)

	candidates, err := r.wh.ListReserveCandidates(ctx, limit)
	if err != nil {
		return r.finish(res, started, err)
	}
	if len(candidates) == 0 {
		res.Status = model.StatusSuccess
		return r.finish(res, started, nil)
	}

	batches, err := chunkContracts(candidates, r.opts.BatchSize)
	if err != nil {
		return r.finish(res, started, err)
	}

	for _, batch := range batches {
		if err := r.limiter.Wait(ctx); err != nil {
			return r.finish(res, started, err)
		}
		snaps := make([]model.ReserveSnapshot, len(batch))
		g, gctx := errgroup.WithContext(ctx)
		for idx, pool := range batch {
			g.Go(func() error {
				snaps[idx] = r.resolveOne(gctx, pool)
				return nil
			})
		}
		_ = g.Wait()

		for _, snap := range snaps {
			res.Processed++
			if err := r.wh.UpsertReserves(ctx, snap); err != nil {
				r.logger.Error("persist reserves",
					zap.String("address", snap.Address),
					zap.Error(err))
				res.Failed++
				continue
			}
			switch snap.Method {
			case model.ReserveViaGetReserves:
				res.PrimaryResolved++
			case model.ReserveViaBalanceOf:
				res.FallbackResolved++
			default:
				res.Failed++
			}
		}
	}

	res.Status = model.StatusSuccess
	r.logger.Info("reserve resolution complete",
		zap.Int64("processed", res.Processed),
		zap.Int64("primary", res.PrimaryResolved),
		zap.Int64("fallback", res.FallbackResolved),
		zap.Int64("failed", res.Failed))
	return r.finish(res, started, nil)
}

// resolveOne tries getReserves first, then falls back to summing balanceOf
// over the pool's token legs. The snapshot records which strategy won.
func (r *Resolver) resolveOne(ctx context.Context, pool model.Contract) model.ReserveSnapshot {
	snap := model.ReserveSnapshot{
		Address: pool.Address,
		Method:  model.ReserveUnavailable,
	}
	addr := common.HexToAddress(pool.Address)

	callCtx, cancel := context.WithTimeout(ctx, r.opts.CallTimeout)
	r0, r1, err := fetchReserves(callCtx, r.caller, addr)
	cancel()
	if err == nil && (r0.Sign() > 0 || r1.Sign() > 0) {
		snap.Reserve0 = r0.String()
		snap.Reserve1 = r1.String()
		snap.Method = model.ReserveViaGetReserves
		// Token legs are best effort here; getReserves already settled
		// the amounts.
		if t0, t1, err := r.fetchTokenLegs(ctx, addr); err == nil {
			snap.Token0 = strings.ToLower(t0.Hex())
			snap.Token1 = strings.ToLower(t1.Hex())
		}
		return snap
	}
	if err != nil {
		r.logger.Debug("getReserves failed, trying balanceOf",
			zap.String("address", pool.Address),
			zap.Error(err))
	}

	t0, t1, err := r.fetchTokenLegs(ctx, addr)
	if err != nil {
		r.logger.Warn("reserve resolution failed",
			zap.String("address", pool.Address),
			zap.Error(err))
		return snap
	}
	snap.Token0 = strings.ToLower(t0.Hex())
	snap.Token1 = strings.ToLower(t1.Hex())

	b0, err := r.fetchLegBalance(ctx, t0, addr)
	if err != nil {
		r.logger.Warn("reserve resolution failed",
			zap.String("address", pool.Address),
			zap.String("token", snap.Token0),
			zap.Error(err))
		return snap
	}
	b1, err := r.fetchLegBalance(ctx, t1, addr)
	if err != nil {
		r.logger.Warn("reserve resolution failed",
			zap.String("address", pool.Address),
			zap.String("token", snap.Token1),
			zap.Error(err))
		return snap
	}

	snap.Reserve0 = b0.String()
	snap.Reserve1 = b1.String()
	snap.Method = model.ReserveViaBalanceOf
	return snap
}

func (r *Resolver) fetchTokenLegs(ctx context.Context, pool common.Address) (common.Address, common.Address, error) {
	callCtx, cancel := context.WithTimeout(ctx, r.opts.CallTimeout)
	defer cancel()
	t0, err := fetchPairToken(callCtx, r.caller, pool, "token0")
	if err != nil {
		return common.Address{}, common.Address{}, fmt.Errorf("token0: %w", err)
	}
	t1, err := fetchPairToken(callCtx, r.caller, pool, "token1")
	if err != nil {
		return common.Address{}, common.Address{}, fmt.Errorf("token1: %w", err)
	}
	return t0, t1, nil
}

func (r *Resolver) fetchLegBalance(ctx context.Context, token, pool common.Address) (*big.Int, error) {
	callCtx, cancel := context.WithTimeout(ctx, r.opts.CallTimeout)
	defer cancel()
	return fetchBalance(callCtx, r.caller, token, pool)
}

func (r *Resolver) finish(res model.ReserveResult, started time.Time, err error) (model.ReserveResult, error) {
	res.DurationMS = time.Since(started).Milliseconds()
	if err != nil {
		res.Error = err.Error()
		r.logger.Error("reserve resolution failed", zap.Error(err))
	}
	metrics.JobRunsTotal.WithLabelValues("resolve_reserves", res.Status).Inc()
	metrics.JobDuration.WithLabelValues("resolve_reserves").Observe(time.Since(started).Seconds())
	return res, err
}
