package postgres

// SQL for the outbound queue and SDK key/value state.

const (
	// queryEnqueue inserts one finished record. _track_id is unique, so a
	// replayed enqueue hits ON CONFLICT DO NOTHING and returns no rows.
	queryEnqueue = `
		INSERT INTO outbound_events (
			track_id, kind, event, payload_format, payload, enqueued_at
		)
		VALUES ($1, $2, $3, $4, $5, $6)
		ON CONFLICT (track_id) DO NOTHING
		RETURNING seq
	`

	// queryPendingAfter reads queued records in enqueue order after a cursor.
	queryPendingAfter = `
		SELECT seq, track_id, kind, payload_format, payload, enqueued_at
		FROM outbound_events
		WHERE seq > $1
		ORDER BY seq ASC
		LIMIT $2
	`

	// queryAckThrough removes everything up to and including a delivered seq.
	queryAckThrough = `
		DELETE FROM outbound_events
		WHERE seq <= $1
	`

	queryKVGet = `
		SELECT value FROM sdk_kv WHERE key = $1
	`

	queryKVSet = `
		INSERT INTO sdk_kv (key, value, updated_at)
		VALUES ($1, $2, $3)
		ON CONFLICT (key) DO UPDATE SET value = EXCLUDED.value, updated_at = EXCLUDED.updated_at
	`

	queryKVDelete = `
		DELETE FROM sdk_kv WHERE key = $1
	`
)
