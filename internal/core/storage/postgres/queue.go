package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"time"

	v1 "github.com/aevon-lab/trackpipe/internal/api/v1"
	"github.com/aevon-lab/trackpipe/internal/codec"
	"github.com/aevon-lab/trackpipe/internal/core/storage"
)

// Outbound is a queued record read back for delivery.
type Outbound struct {
	Seq        int64
	Kind       v1.Kind
	Record     *v1.EventRecord
	EnqueuedAt time.Time
}

// Enqueue stores rec. Returns storage.ErrDuplicate when its _track_id is
// already queued.
func (a *Adapter) Enqueue(ctx context.Context, kind v1.Kind, rec *v1.EventRecord) error {
	payload, err := a.codec.Encode(rec)
	if err != nil {
		return err
	}

	var seq int64
	err = a.stmtEnqueue.QueryRowContext(ctx,
		rec.TrackID,
		string(kind),
		rec.Event,
		a.codec.Name(),
		payload,
		a.now().UTC(),
	).Scan(&seq)

	if errors.Is(err, sql.ErrNoRows) {
		return storage.ErrDuplicate
	}
	if err != nil {
		return fmt.Errorf("failed to enqueue record: %w", err)
	}

	slog.Debug("[Postgres] Enqueued record",
		"track_id", rec.TrackID,
		"kind", kind,
		"seq", seq,
		"bytes", len(payload))
	return nil
}

// PendingAfter returns up to limit queued records with seq > cursor, oldest
// first. cursor=0 reads from the beginning.
func (a *Adapter) PendingAfter(ctx context.Context, cursor int64, limit int) ([]Outbound, error) {
	rows, err := a.stmtPendingAfter.QueryContext(ctx, cursor, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to query pending records: %w", err)
	}
	defer rows.Close()

	var out []Outbound
	for rows.Next() {
		var (
			item    Outbound
			trackID string
			kind    string
			format  string
			payload []byte
		)
		if err := rows.Scan(&item.Seq, &trackID, &kind, &format, &payload, &item.EnqueuedAt); err != nil {
			return nil, fmt.Errorf("failed to scan outbound row: %w", err)
		}
		c, err := codec.ParseName(format)
		if err != nil {
			return nil, fmt.Errorf("record %s: %w", trackID, err)
		}
		item.Record, err = c.Decode(payload)
		if err != nil {
			return nil, fmt.Errorf("record %s: %w", trackID, err)
		}
		item.Kind = v1.Kind(kind)
		out = append(out, item)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating pending records: %w", err)
	}
	return out, nil
}

// AckThrough deletes every record with seq <= seq and returns how many were
// removed.
func (a *Adapter) AckThrough(ctx context.Context, seq int64) (int64, error) {
	res, err := a.stmtAckThrough.ExecContext(ctx, seq)
	if err != nil {
		return 0, fmt.Errorf("failed to ack records: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("failed to read ack result: %w", err)
	}
	return n, nil
}
