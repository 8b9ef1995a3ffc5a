// Package discovery extracts contract addresses from staged data and
// registers unseen ones for analysis.
package discovery

import (
	"context"
	"time"

	"go.uber.org/zap"

	"chainstage/internal/metrics"
	"chainstage/internal/model"
	"chainstage/internal/warehouse"
)

const jobName = "contract_discovery"

// Three extraction rules feed the candidate set: the structured contract
// column of staged events, addresses pattern-matched out of transaction memo
// text, and the address half of composite asset identifiers. Candidates are
// merged per address, anti-joined against known contracts, and inserted
// pending. Capabilities follow the finding rule; pool-style event emitters
// additionally get the reserves tag.
const discoverSQL = `
	WITH candidates AS (
		SELECT lower(e.contract_address) AS address,
			count(*) AS occurrences,
			max(e.received_at) AS last_seen,
			1 AS priority,
			'event_source' AS rule,
			CASE WHEN bool_or(e.event_name IN ('Swap', 'Sync', 'Mint', 'Burn'))
				THEN ARRAY['name', 'symbol', 'decimals', 'reserves']
				ELSE ARRAY['name', 'symbol', 'decimals']
			END AS capabilities
		FROM stg_events e
		WHERE e.contract_address ~ '^0x[0-9a-fA-F]{40}$'
		GROUP BY lower(e.contract_address)

		UNION ALL

		SELECT lower(split_part(a.asset, ':', 2)) AS address,
			count(*) AS occurrences,
			max(a.received_at) AS last_seen,
			2 AS priority,
			'asset_split' AS rule,
			ARRAY['name', 'symbol', 'decimals', 'token_uri'] AS capabilities
		FROM stg_address_activity a
		WHERE a.asset LIKE '%:%'
			AND split_part(a.asset, ':', 2) ~ '^0x[0-9a-fA-F]{40}$'
		GROUP BY lower(split_part(a.asset, ':', 2))

		UNION ALL

		SELECT lower(m.groups[1]) AS address,
			count(*) AS occurrences,
			max(t.received_at) AS last_seen,
			3 AS priority,
			'memo_match' AS rule,
			ARRAY['name', 'symbol'] AS capabilities
		FROM stg_transactions t
		CROSS JOIN LATERAL regexp_matches(t.memo, '0x[0-9a-fA-F]{40}', 'g') AS m(groups)
		WHERE t.memo IS NOT NULL
		GROUP BY lower(m.groups[1])
	),
	merged AS (
		SELECT c.address,
			sum(c.occurrences)::bigint AS tx_count,
			max(c.last_seen) AS last_seen,
			(array_agg(c.rule ORDER BY c.priority))[1] AS discovered_via
		FROM candidates c
		GROUP BY c.address
	),
	merged_caps AS (
		SELECT c.address, array_agg(DISTINCT cap ORDER BY cap) AS capabilities
		FROM candidates c, unnest(c.capabilities) AS cap
		GROUP BY c.address
	)
	INSERT INTO contracts (address, tx_count, last_seen, discovered_via, capabilities, analysis_status)
	SELECT m.address, m.tx_count, m.last_seen, m.discovered_via, mc.capabilities, 'pending'
	FROM merged m
	JOIN merged_caps mc ON mc.address = m.address
	LEFT JOIN contracts existing ON existing.address = m.address
	WHERE existing.address IS NULL
	ON CONFLICT (address) DO NOTHING`

// Warehouse is the storage surface the job runs against.
type Warehouse interface {
	AcquireLease(ctx context.Context, name string) (*warehouse.Lease, bool, error)
	Exec(ctx context.Context, op, sql string, args ...any) (int64, error)
}

// Job registers contract addresses found in staged rows.
type Job struct {
	wh     Warehouse
	logger *zap.Logger
}

func NewJob(wh Warehouse, logger *zap.Logger) *Job {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Job{wh: wh, logger: logger}
}

// Run executes one discovery pass. Re-running against unchanged staged data
// discovers nothing and succeeds.
func (j *Job) Run(ctx context.Context) (model.DiscoveryResult, error) {
	started := time.Now()
	res := model.DiscoveryResult{JobName: jobName, Status: model.StatusError}

	lease, acquired, err := j.wh.AcquireLease(ctx, "discovery")
	if err != nil {
		return j.finish(res, started, err)
	}
	if !acquired {
		j.logger.Info("discovery skipped, lease busy")
		res.Status = model.StatusNoNewData
		return j.finish(res, started, nil)
	}
	defer lease.Release(ctx)

	inserted, err := j.wh.Exec(ctx, "discover contracts", discoverSQL)
	if err != nil {
		return j.finish(res, started, err)
	}

	res.Status = model.StatusSuccess
	res.NewEntities = inserted
	j.logger.Info("discovery complete", zap.Int64("new_entities", inserted))
	return j.finish(res, started, nil)
}

func (j *Job) finish(res model.DiscoveryResult, started time.Time, err error) (model.DiscoveryResult, error) {
	res.DurationMS = time.Since(started).Milliseconds()
	if err != nil {
		res.Error = err.Error()
		j.logger.Error("discovery failed", zap.Error(err))
	}
	metrics.JobRunsTotal.WithLabelValues(jobName, res.Status).Inc()
	metrics.JobDuration.WithLabelValues(jobName).Observe(time.Since(started).Seconds())
	return res, err
}
