package pipeline

import (
	"context"
	"log/slog"

	"github.com/aevon-lab/trackpipe/internal/timer"
)

// Timer operations go straight to the task queue: they stamp the call time
// and are never held back by the consent gate.

func (p *Pipeline) validTimerName(name string) bool {
	if err := p.sanitizer.ValidateKey(timer.TrimCrossSuffix(name)); err != nil {
		slog.Warn("[Pipeline] Invalid timer name", "name", name, "error", err)
		return false
	}
	return true
}

// StartTimer starts or restarts the timer for an event name.
func (p *Pipeline) StartTimer(name string) {
	if !p.validTimerName(name) {
		return
	}
	at := p.clock.Now()
	p.queue.Submit("timer start", func(context.Context) error {
		p.timers.Start(name, at)
		return nil
	})
}

// StartCrossTimer starts an independent timer for name and returns its id.
// Pass the id as the event name to ComposeTrack to end it.
func (p *Pipeline) StartCrossTimer(name string) string {
	if !p.validTimerName(name) {
		return ""
	}
	id := timer.CrossID(name)
	at := p.clock.Now()
	p.queue.Submit("timer start", func(context.Context) error {
		p.timers.Start(id, at)
		return nil
	})
	return id
}

func (p *Pipeline) PauseTimer(name string) {
	p.setTimerPaused(name, true)
}

func (p *Pipeline) ResumeTimer(name string) {
	p.setTimerPaused(name, false)
}

func (p *Pipeline) setTimerPaused(name string, paused bool) {
	at := p.clock.Now()
	p.queue.Submit("timer pause", func(context.Context) error {
		p.timers.SetPaused(name, paused, at)
		return nil
	})
}

func (p *Pipeline) RemoveTimer(name string) {
	p.queue.Submit("timer remove", func(context.Context) error {
		p.timers.Remove(name)
		return nil
	})
}

func (p *Pipeline) ClearTimers() {
	p.queue.Submit("timer clear", func(context.Context) error {
		p.timers.Clear()
		return nil
	})
}

// OnBackground folds running intervals into every timer except $AppEnd. It
// runs on the caller under the registry lock.
func (p *Pipeline) OnBackground() {
	p.timers.Background(p.clock.Now())
}

// OnForeground restarts the timers stopped by OnBackground.
func (p *Pipeline) OnForeground() {
	p.timers.Foreground(p.clock.Now())
}
