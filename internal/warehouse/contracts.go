package warehouse

import (
	"context"
	"fmt"

	"chainstage/internal/model"
)

// ListPendingContracts returns up to limit contracts awaiting validation,
// token-capable entities first, then by observed activity.
func (c *Client) ListPendingContracts(ctx context.Context, limit int) ([]model.Contract, error) {
	if limit <= 0 {
		return nil, fmt.Errorf("limit must be positive")
	}
	ctx, cancel := c.deadline(ctx)
	defer cancel()
	rows, err := c.pool.Query(ctx, `
		SELECT address, tx_count, last_seen, discovered_via, capabilities, analysis_status
		FROM contracts
		WHERE analysis_status = $1
		ORDER BY ($2 = ANY(capabilities)) DESC, tx_count DESC, address
		LIMIT $3
	`, model.AnalysisPending, model.CapDecimals, limit)
	if err != nil {
		return nil, &QueryError{Op: "list pending contracts", Err: err}
	}
	defer rows.Close()

	var out []model.Contract
	for rows.Next() {
		var entity model.Contract
		if err := rows.Scan(
			&entity.Address,
			&entity.TxCount,
			&entity.LastSeen,
			&entity.DiscoveredVia,
			&entity.Capabilities,
			&entity.AnalysisStatus,
		); err != nil {
			return nil, &QueryError{Op: "list pending contracts", Err: err}
		}
		out = append(out, entity)
	}
	if err := rows.Err(); err != nil {
		return nil, &QueryError{Op: "list pending contracts", Err: err}
	}
	return out, nil
}

// ListReserveCandidates returns reserve-capable contracts by activity.
// Entities that failed metadata validation outright are excluded.
func (c *Client) ListReserveCandidates(ctx context.Context, limit int) ([]model.Contract, error) {
	if limit <= 0 {
		return nil, fmt.Errorf("limit must be positive")
	}
	ctx, cancel := c.deadline(ctx)
	defer cancel()
	rows, err := c.pool.Query(ctx, `
		SELECT address, tx_count, last_seen, discovered_via, capabilities, analysis_status
		FROM contracts
		WHERE $1 = ANY(capabilities) AND analysis_status IN ($2, $3)
		ORDER BY tx_count DESC, address
		LIMIT $4
	`, model.CapReserves, model.AnalysisPending, model.AnalysisValidated, limit)
	if err != nil {
		return nil, &QueryError{Op: "list reserve candidates", Err: err}
	}
	defer rows.Close()

	var out []model.Contract
	for rows.Next() {
		var entity model.Contract
		if err := rows.Scan(
			&entity.Address,
			&entity.TxCount,
			&entity.LastSeen,
			&entity.DiscoveredVia,
			&entity.Capabilities,
			&entity.AnalysisStatus,
		); err != nil {
			return nil, &QueryError{Op: "list reserve candidates", Err: err}
		}
		out = append(out, entity)
	}
	if err := rows.Err(); err != nil {
		return nil, &QueryError{Op: "list reserve candidates", Err: err}
	}
	return out, nil
}

// SaveValidation persists one entity's enrichment outcome. The analysis
// status only moves forward from pending.
func (c *Client) SaveValidation(ctx context.Context, entity model.Contract) error {
	_, err := c.Exec(ctx, "save validation", `
		UPDATE contracts
		SET analysis_status = $2,
			token_name = $3,
			token_symbol = $4,
			token_decimals = $5,
			token_uri = $6,
			errors = COALESCE($7, '{}'::text[]),
			validated_at = now(),
			updated_at = now()
		WHERE address = $1
	`,
		entity.Address,
		entity.AnalysisStatus,
		entity.TokenName,
		entity.TokenSymbol,
		entity.TokenDecimals,
		entity.TokenURI,
		entity.Errors,
	)
	return err
}

// UpsertReserves stores the latest reserve snapshot for a pool contract.
func (c *Client) UpsertReserves(ctx context.Context, snap model.ReserveSnapshot) error {
	_, err := c.Exec(ctx, "upsert reserves", `
		INSERT INTO contract_reserves (address, token0, token1, reserve0, reserve1, method, updated_at)
		VALUES ($1, $2, $3, NULLIF($4, '')::numeric, NULLIF($5, '')::numeric, $6, now())
		ON CONFLICT (address) DO UPDATE
		SET token0 = EXCLUDED.token0,
			token1 = EXCLUDED.token1,
			reserve0 = EXCLUDED.reserve0,
			reserve1 = EXCLUDED.reserve1,
			method = EXCLUDED.method,
			updated_at = now()
	`,
		snap.Address,
		snap.Token0,
		snap.Token1,
		snap.Reserve0,
		snap.Reserve1,
		snap.Method,
	)
	return err
}
