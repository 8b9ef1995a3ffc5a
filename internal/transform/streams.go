package transform

import "chainstage/internal/model"

// Shared fragments for payloads shaped as one block with a transaction list.
// Numeric casts and lateral array inputs are guarded so one poison payload
// cannot wedge a stream.
const (
	hasTransactions = `
		r.body IS NOT NULL
		AND jsonb_typeof(r.body->'transactions') = 'array'`

	hasEvents = hasTransactions + `
		AND EXISTS (
			SELECT 1 FROM jsonb_array_elements(r.body->'transactions') AS x(tx)
			WHERE jsonb_typeof(x.tx->'events') = 'array'
			AND jsonb_array_length(x.tx->'events') > 0
		)`

	hasOperations = hasTransactions + `
		AND EXISTS (
			SELECT 1 FROM jsonb_array_elements(r.body->'transactions') AS x(tx)
			WHERE jsonb_typeof(x.tx->'operations') = 'array'
			AND jsonb_array_length(x.tx->'operations') > 0
		)`

	blockIndexExpr = `
		CASE WHEN r.body->'block'->>'index' ~ '^[0-9]+$'
			THEN (r.body->'block'->>'index')::bigint
		END`
)

var builtinStreams = []Stream{
	{
		Name:      model.StreamTransactions,
		Predicate: hasTransactions,
		Extract: `
			INSERT INTO stg_transactions (
				event_id, received_at, block_hash, block_index, tx_hash,
				fee, success, operation_count, from_address, to_address, memo
			)
			SELECT
				r.event_id,
				r.received_at,
				r.body->'block'->>'hash',
				` + blockIndexExpr + `,
				t.tx->>'hash',
				CASE WHEN t.tx->>'fee' ~ '^-?[0-9]+$' THEN (t.tx->>'fee')::bigint END,
				CASE WHEN lower(t.tx->>'success') IN ('true', 'false') THEN (t.tx->>'success')::boolean END,
				CASE WHEN jsonb_typeof(t.tx->'operations') = 'array' THEN jsonb_array_length(t.tx->'operations') ELSE 0 END,
				lower(t.tx->>'from'),
				lower(t.tx->>'to'),
				t.tx->>'memo'
			FROM src r
			CROSS JOIN LATERAL jsonb_array_elements(r.body->'transactions') AS t(tx)
			WHERE jsonb_typeof(t.tx) = 'object'
				AND t.tx->>'hash' IS NOT NULL
			ORDER BY r.received_at
			ON CONFLICT (event_id, tx_hash) DO NOTHING
			RETURNING 1`,
	},
	{
		Name:      model.StreamEvents,
		Predicate: hasEvents,
		Extract: `
			INSERT INTO stg_events (
				event_id, received_at, block_hash, block_index, tx_hash,
				event_index, contract_address, event_name, message, data
			)
			SELECT
				r.event_id,
				r.received_at,
				r.body->'block'->>'hash',
				` + blockIndexExpr + `,
				t.tx->>'hash',
				COALESCE(
					CASE WHEN ev.value->>'index' ~ '^[0-9]+$' THEN (ev.value->>'index')::int END,
					ev.ordinality::int - 1
				),
				lower(ev.value->>'contract'),
				ev.value->>'name',
				ev.value->>'message',
				ev.value->'data'
			FROM src r
			CROSS JOIN LATERAL jsonb_array_elements(r.body->'transactions') AS t(tx)
			CROSS JOIN LATERAL jsonb_array_elements(
				CASE WHEN jsonb_typeof(t.tx->'events') = 'array' THEN t.tx->'events' END
			) WITH ORDINALITY AS ev(value, ordinality)
			WHERE jsonb_typeof(t.tx) = 'object'
				AND t.tx->>'hash' IS NOT NULL
				AND jsonb_typeof(ev.value) = 'object'
			ORDER BY r.received_at
			ON CONFLICT (event_id, tx_hash, event_index) DO NOTHING
			RETURNING 1`,
	},
	{
		Name:      model.StreamAddresses,
		Predicate: hasOperations,
		Extract: `
			INSERT INTO stg_address_activity (
				event_id, received_at, block_hash, block_index, tx_hash,
				op_index, direction, address, counterparty, op_type, amount, asset
			)
			SELECT
				r.event_id,
				r.received_at,
				r.body->'block'->>'hash',
				` + blockIndexExpr + `,
				t.tx->>'hash',
				op.ordinality::int - 1,
				leg.direction,
				lower(leg.address),
				lower(leg.counterparty),
				op.value->>'type',
				CASE WHEN op.value->>'amount' ~ '^-?[0-9]+(\.[0-9]+)?$' THEN (op.value->>'amount')::numeric END,
				op.value->>'asset'
			FROM src r
			CROSS JOIN LATERAL jsonb_array_elements(r.body->'transactions') AS t(tx)
			CROSS JOIN LATERAL jsonb_array_elements(
				CASE WHEN jsonb_typeof(t.tx->'operations') = 'array' THEN t.tx->'operations' END
			) WITH ORDINALITY AS op(value, ordinality)
			CROSS JOIN LATERAL (
				VALUES
					('sent', op.value->>'from', op.value->>'to'),
					('received', op.value->>'to', op.value->>'from')
			) AS leg(direction, address, counterparty)
			WHERE jsonb_typeof(t.tx) = 'object'
				AND t.tx->>'hash' IS NOT NULL
				AND jsonb_typeof(op.value) = 'object'
				AND leg.address IS NOT NULL
			ORDER BY r.received_at
			ON CONFLICT (event_id, tx_hash, op_index, direction) DO NOTHING
			RETURNING 1`,
	},
}
