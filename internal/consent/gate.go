// Package consent holds composition work back until data collection is
// enabled and then replays it in order.
package consent

import (
	"log/slog"
	"sync"

	"github.com/aevon-lab/trackpipe/internal/taskqueue"
)

// Submitter is the queue the gate forwards work to.
type Submitter interface {
	Submit(label string, fn taskqueue.Task) bool
}

type deferred struct {
	label string
	fn    taskqueue.Task
}

// Gate buffers tasks while collection is disabled. Enabling is one-way for
// the lifetime of the gate.
type Gate struct {
	mu      sync.Mutex
	enabled bool
	buffer  []deferred
	queue   Submitter
	onDrain func(n int)
}

type Option func(*Gate)

// WithDrainHook registers fn to be told how many buffered tasks were
// released when collection was enabled.
func WithDrainHook(fn func(n int)) Option {
	return func(g *Gate) { g.onDrain = fn }
}

func NewGate(queue Submitter, enabled bool, opts ...Option) *Gate {
	g := &Gate{queue: queue, enabled: enabled}
	for _, opt := range opts {
		opt(g)
	}
	return g
}

// Submit forwards fn to the queue when collection is enabled and buffers it
// otherwise. It reports whether fn was buffered.
func (g *Gate) Submit(label string, fn taskqueue.Task) (buffered bool) {
	g.mu.Lock()
	defer g.mu.Unlock()

	if g.enabled {
		g.queue.Submit(label, fn)
		return false
	}
	g.buffer = append(g.buffer, deferred{label: label, fn: fn})
	slog.Debug("[Consent] Collection disabled, request buffered",
		"label", label,
		"buffered", len(g.buffer))
	return true
}

// SetEnabled(true) releases every buffered task to the queue in FIFO order
// before any later Submit can reach it. Disabling after enabling is ignored.
func (g *Gate) SetEnabled(enabled bool) {
	g.mu.Lock()
	defer g.mu.Unlock()

	if !enabled {
		if g.enabled {
			slog.Warn("[Consent] Disabling collection after it was enabled is not supported, ignoring")
		}
		return
	}
	if g.enabled {
		return
	}

	g.enabled = true
	n := len(g.buffer)
	for _, d := range g.buffer {
		g.queue.Submit(d.label, d.fn)
	}
	g.buffer = nil

	slog.Info("[Consent] Collection enabled, replaying buffered requests", "count", n)
	if g.onDrain != nil && n > 0 {
		g.onDrain(n)
	}
}

func (g *Gate) Enabled() bool {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.enabled
}

// Pending reports how many tasks are buffered.
func (g *Gate) Pending() int {
	g.mu.Lock()
	defer g.mu.Unlock()
	return len(g.buffer)
}
