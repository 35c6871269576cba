// Package dispatch hands finished records to the outbound queue.
package dispatch

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	v1 "github.com/aevon-lab/trackpipe/internal/api/v1"
	"github.com/aevon-lab/trackpipe/internal/core/storage"
	"github.com/aevon-lab/trackpipe/internal/telemetry"
)

type Dispatcher struct {
	queue   storage.Queue
	metrics *telemetry.Metrics
}

func New(queue storage.Queue, metrics *telemetry.Metrics) *Dispatcher {
	return &Dispatcher{queue: queue, metrics: metrics}
}

// Dispatch checks rec and enqueues it. rec must not be modified afterwards.
// A duplicate _track_id is logged and treated as delivered.
func (d *Dispatcher) Dispatch(ctx context.Context, rec *v1.EventRecord) error {
	if err := rec.Validate(); err != nil {
		d.metrics.Dropped(ctx, telemetry.ReasonMalformed)
		return fmt.Errorf("dispatch %s record: %w", rec.Kind, err)
	}

	if err := d.queue.Enqueue(ctx, rec.Kind, rec); err != nil {
		if errors.Is(err, storage.ErrDuplicate) {
			slog.Warn("[Dispatcher] Record already enqueued, skipping",
				"track_id", rec.TrackID,
				"event", rec.Event)
			return nil
		}
		d.metrics.Dropped(ctx, telemetry.ReasonEnqueue)
		return fmt.Errorf("enqueue %s record: %w", rec.Kind, err)
	}

	d.metrics.Dispatched(ctx, rec.Kind)
	slog.Debug("[Dispatcher] Record enqueued",
		"kind", rec.Kind,
		"event", rec.Event,
		"track_id", rec.TrackID,
		"distinct_id", rec.DistinctID)
	return nil
}
