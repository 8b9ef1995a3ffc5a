package warehouse

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5"
)

var schemaStatements = []struct {
	name string
	ddl  string
}{
	{"raw_events", `
		CREATE TABLE IF NOT EXISTS raw_events (
			event_id UUID PRIMARY KEY,
			received_at TIMESTAMPTZ NOT NULL,
			path TEXT NOT NULL DEFAULT '',
			body JSONB,
			body_text TEXT,
			headers JSONB,
			url TEXT NOT NULL DEFAULT '',
			method TEXT NOT NULL DEFAULT '',
			block_hash TEXT,
			block_index BIGINT
		)`},
	{"raw_events_block_identity", `
		CREATE UNIQUE INDEX IF NOT EXISTS raw_events_block_identity
		ON raw_events (block_hash, block_index)
		WHERE block_hash IS NOT NULL`},
	{"raw_events_received_at", `
		CREATE INDEX IF NOT EXISTS raw_events_received_at
		ON raw_events (received_at)`},
	{"stream_watermarks", `
		CREATE TABLE IF NOT EXISTS stream_watermarks (
			stream_name TEXT PRIMARY KEY,
			last_processed_at TIMESTAMPTZ NOT NULL,
			status TEXT NOT NULL,
			updated_at TIMESTAMPTZ NOT NULL,
			rows_processed BIGINT NOT NULL DEFAULT 0
		)`},
	{"stg_transactions", `
		CREATE TABLE IF NOT EXISTS stg_transactions (
			event_id UUID NOT NULL,
			received_at TIMESTAMPTZ NOT NULL,
			block_hash TEXT,
			block_index BIGINT,
			tx_hash TEXT NOT NULL,
			fee BIGINT,
			success BOOLEAN,
			operation_count INTEGER NOT NULL DEFAULT 0,
			from_address TEXT,
			to_address TEXT,
			memo TEXT,
			UNIQUE (event_id, tx_hash)
		)`},
	{"stg_transactions_received_at", `
		CREATE INDEX IF NOT EXISTS stg_transactions_received_at
		ON stg_transactions (received_at)`},
	{"stg_events", `
		CREATE TABLE IF NOT EXISTS stg_events (
			event_id UUID NOT NULL,
			received_at TIMESTAMPTZ NOT NULL,
			block_hash TEXT,
			block_index BIGINT,
			tx_hash TEXT NOT NULL,
			event_index INTEGER NOT NULL,
			contract_address TEXT,
			event_name TEXT,
			message TEXT,
			data JSONB,
			UNIQUE (event_id, tx_hash, event_index)
		)`},
	{"stg_events_contract", `
		CREATE INDEX IF NOT EXISTS stg_events_contract
		ON stg_events (contract_address)`},
	{"stg_address_activity", `
		CREATE TABLE IF NOT EXISTS stg_address_activity (
			event_id UUID NOT NULL,
			received_at TIMESTAMPTZ NOT NULL,
			block_hash TEXT,
			block_index BIGINT,
			tx_hash TEXT NOT NULL,
			op_index INTEGER NOT NULL,
			direction TEXT NOT NULL,
			address TEXT,
			counterparty TEXT,
			op_type TEXT,
			amount NUMERIC,
			asset TEXT,
			UNIQUE (event_id, tx_hash, op_index, direction)
		)`},
	{"contracts", `
		CREATE TABLE IF NOT EXISTS contracts (
			address TEXT PRIMARY KEY,
			tx_count BIGINT NOT NULL DEFAULT 0,
			last_seen TIMESTAMPTZ NOT NULL DEFAULT now(),
			discovered_via TEXT NOT NULL DEFAULT '',
			capabilities TEXT[] NOT NULL DEFAULT '{}',
			analysis_status TEXT NOT NULL DEFAULT 'pending',
			token_name TEXT,
			token_symbol TEXT,
			token_decimals INTEGER,
			token_uri TEXT,
			errors TEXT[] NOT NULL DEFAULT '{}',
			validated_at TIMESTAMPTZ,
			created_at TIMESTAMPTZ NOT NULL DEFAULT now(),
			updated_at TIMESTAMPTZ NOT NULL DEFAULT now()
		)`},
	{"contracts_status", `
		CREATE INDEX IF NOT EXISTS contracts_status
		ON contracts (analysis_status, tx_count DESC)`},
	{"contract_reserves", `
		CREATE TABLE IF NOT EXISTS contract_reserves (
			address TEXT PRIMARY KEY,
			token0 TEXT,
			token1 TEXT,
			reserve0 NUMERIC,
			reserve1 NUMERIC,
			method TEXT NOT NULL,
			updated_at TIMESTAMPTZ NOT NULL DEFAULT now()
		)`},
}

// Migrate creates the warehouse schema. With drop set, every table in the
// public schema is removed first.
func (c *Client) Migrate(ctx context.Context, drop bool) error {
	return c.RunInTx(ctx, "migrate", func(ctx context.Context, tx pgx.Tx) error {
		if drop {
			if _, err := tx.Exec(ctx, `
				DO $$
				DECLARE
					r RECORD;
				BEGIN
					FOR r IN (
						SELECT tablename FROM pg_tables WHERE schemaname = 'public'
					) LOOP
						EXECUTE 'DROP TABLE IF EXISTS ' || quote_ident(r.tablename) || ' CASCADE';
					END LOOP;
				END $$;
			`); err != nil {
				return fmt.Errorf("drop existing tables: %w", err)
			}
		}
		for _, stmt := range schemaStatements {
			if _, err := tx.Exec(ctx, stmt.ddl); err != nil {
				return fmt.Errorf("create %s: %w", stmt.name, err)
			}
		}
		return nil
	})
}
