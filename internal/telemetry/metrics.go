// Package telemetry counts what the pipeline does with each record.
package telemetry

import (
	"context"
	"fmt"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"

	v1 "github.com/aevon-lab/trackpipe/internal/api/v1"
	perr "github.com/aevon-lab/trackpipe/internal/core/errors"
	"github.com/aevon-lab/trackpipe/internal/taskqueue"
)

const meterName = "github.com/aevon-lab/trackpipe"

// Drop reasons recorded on trackpipe.records.dropped besides the error
// classes of perr.Class.
const (
	ReasonMalformed = "malformed"
	ReasonEnqueue   = "enqueue_failed"
)

// Metrics holds the pipeline counters. A nil *Metrics records nothing.
type Metrics struct {
	dispatched metric.Int64Counter
	dropped    metric.Int64Counter
	replayed   metric.Int64Counter
	failed     metric.Int64Counter
	enrichment metric.Int64Counter
}

func New(mp metric.MeterProvider) (*Metrics, error) {
	meter := mp.Meter(meterName)

	dispatched, err := meter.Int64Counter("trackpipe.records.dispatched",
		metric.WithDescription("Records handed to the outbound queue"))
	if err != nil {
		return nil, fmt.Errorf("create dispatched counter: %w", err)
	}
	dropped, err := meter.Int64Counter("trackpipe.records.dropped",
		metric.WithDescription("Records dropped before dispatch, by reason"))
	if err != nil {
		return nil, fmt.Errorf("create dropped counter: %w", err)
	}
	replayed, err := meter.Int64Counter("trackpipe.replay.drained",
		metric.WithDescription("Buffered requests released when collection was enabled"))
	if err != nil {
		return nil, fmt.Errorf("create replay counter: %w", err)
	}
	failed, err := meter.Int64Counter("trackpipe.tasks.failed",
		metric.WithDescription("Task queue items that ended in an error or panic"))
	if err != nil {
		return nil, fmt.Errorf("create failed counter: %w", err)
	}

	enrichment, err := meter.Int64Counter("trackpipe.enrichment.skipped",
		metric.WithDescription("Optional enrichment steps skipped after a failure"))
	if err != nil {
		return nil, fmt.Errorf("create enrichment counter: %w", err)
	}

	return &Metrics{
		dispatched: dispatched,
		dropped:    dropped,
		replayed:   replayed,
		failed:     failed,
		enrichment: enrichment,
	}, nil
}

func (m *Metrics) Dispatched(ctx context.Context, kind v1.Kind) {
	if m == nil {
		return
	}
	m.dispatched.Add(ctx, 1, metric.WithAttributes(attribute.String("kind", string(kind))))
}

func (m *Metrics) Dropped(ctx context.Context, reason string) {
	if m == nil {
		return
	}
	m.dropped.Add(ctx, 1, metric.WithAttributes(attribute.String("reason", reason)))
}

func (m *Metrics) Replayed(ctx context.Context, n int) {
	if m == nil || n <= 0 {
		return
	}
	m.replayed.Add(ctx, int64(n))
}

// EnrichmentSkipped records a skipped enrichment step. The record itself is
// still dispatched.
func (m *Metrics) EnrichmentSkipped(ctx context.Context, step string) {
	if m == nil {
		return
	}
	m.enrichment.Add(ctx, 1, metric.WithAttributes(attribute.String("step", step)))
}

// TaskResult records a finished task queue item. Failed items count as a
// dropped record under their error class.
func (m *Metrics) TaskResult(ctx context.Context, res taskqueue.Result) {
	if m == nil || res.OK() {
		return
	}
	class := perr.Class(res.Err)
	if res.Panic != nil {
		class = "panic"
	}
	m.failed.Add(ctx, 1, metric.WithAttributes(attribute.String("class", class)))
	m.dropped.Add(ctx, 1, metric.WithAttributes(attribute.String("reason", class)))
}
