// Package timer keeps per-event-name duration timers.
package timer

import (
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
)

// SessionEndEvent is never swept on background; it measures the session
// itself.
const SessionEndEvent = "$AppEnd"

const (
	crossSuffix    = "_SATimer"
	crossSuffixLen = 1 + 36 + len(crossSuffix)
)

// DefaultSessionGap is subtracted from the running interval when the host
// goes to the background.
const DefaultSessionGap = 30 * time.Second

// State is a point-in-time copy of one timer.
type State struct {
	Start        time.Time
	Accumulated  time.Duration
	Paused       bool
	Backgrounded bool
}

// elapsed is the duration the timer would report at instant at.
func (s State) elapsed(at time.Time) time.Duration {
	d := s.Accumulated
	if !s.Paused && !s.Backgrounded {
		d += at.Sub(s.Start)
	}
	if d < 0 {
		return 0
	}
	return d
}

// Registry holds at most one timer per name. Every method takes the
// registry-wide lock, so the background and foreground sweeps are atomic
// with respect to single-timer operations.
type Registry struct {
	mu         sync.Mutex
	timers     map[string]*State
	sessionGap time.Duration
}

func NewRegistry(sessionGap time.Duration) *Registry {
	if sessionGap < 0 {
		sessionGap = 0
	}
	return &Registry{
		timers:     make(map[string]*State),
		sessionGap: sessionGap,
	}
}

// Start creates or replaces the running timer for name.
func (r *Registry) Start(name string, at time.Time) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.timers[name] = &State{Start: at}
}

// StartCross starts a timer under a unique id derived from name, so several
// timers for the same event can run side by side. Composing the returned id
// reports it under name.
func (r *Registry) StartCross(name string, at time.Time) string {
	id := CrossID(name)
	r.Start(id, at)
	return id
}

// CrossID returns a fresh cross-timer id for name.
func CrossID(name string) string {
	return name + "_" + strings.ReplaceAll(uuid.NewString(), "-", "_") + crossSuffix
}

// Consume reads and removes the timer for name.
func (r *Registry) Consume(name string, at time.Time) (time.Duration, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()

	s, ok := r.timers[name]
	if !ok {
		return 0, false
	}
	delete(r.timers, name)
	return s.elapsed(at), true
}

// SetPaused pauses or resumes the timer for name. Pausing a paused timer or
// resuming a running one does nothing.
func (r *Registry) SetPaused(name string, paused bool, at time.Time) bool {
	r.mu.Lock()
	defer r.mu.Unlock()

	s, ok := r.timers[name]
	if !ok || s.Paused == paused {
		return false
	}
	if paused {
		if !s.Backgrounded {
			if d := at.Sub(s.Start); d > 0 {
				s.Accumulated += d
			}
		}
		s.Paused = true
		s.Backgrounded = false
		return true
	}
	s.Paused = false
	s.Start = at
	return true
}

func (r *Registry) Remove(name string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.timers, name)
}

func (r *Registry) Clear() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.timers = make(map[string]*State)
}

// Background folds the running interval, minus the session gap, into every
// running timer except SessionEndEvent and stops its clock.
func (r *Registry) Background(at time.Time) {
	r.mu.Lock()
	defer r.mu.Unlock()

	for name, s := range r.timers {
		if name == SessionEndEvent || s.Paused || s.Backgrounded {
			continue
		}
		if d := at.Sub(s.Start) - r.sessionGap; d > 0 {
			s.Accumulated += d
		}
		s.Backgrounded = true
	}
}

// Foreground restarts the clock of every timer stopped by Background.
func (r *Registry) Foreground(at time.Time) {
	r.mu.Lock()
	defer r.mu.Unlock()

	for _, s := range r.timers {
		if s.Backgrounded {
			s.Backgrounded = false
			s.Start = at
		}
	}
}

// Get returns a copy of the timer for name.
func (r *Registry) Get(name string) (State, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	s, ok := r.timers[name]
	if !ok {
		return State{}, false
	}
	return *s, true
}

func (r *Registry) Len() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.timers)
}

// TrimCrossSuffix maps a cross-timer id back to its event name. Other names
// are returned unchanged.
func TrimCrossSuffix(name string) string {
	if strings.HasSuffix(name, crossSuffix) && len(name) > crossSuffixLen {
		return name[:len(name)-crossSuffixLen]
	}
	return name
}
