// Package composer turns entry-point requests into finished event records.
package composer

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"

	v1 "github.com/aevon-lab/trackpipe/internal/api/v1"
	"github.com/aevon-lab/trackpipe/internal/core/clock"
	perr "github.com/aevon-lab/trackpipe/internal/core/errors"
	"github.com/aevon-lab/trackpipe/internal/identity"
	"github.com/aevon-lab/trackpipe/internal/props"
	"github.com/aevon-lab/trackpipe/internal/remoteconfig"
	"github.com/aevon-lab/trackpipe/internal/sanitize"
	"github.com/aevon-lab/trackpipe/internal/timer"
)

// Reserved event names and property keys.
const (
	EventAppStart = "$AppStart"
	EventAppEnd   = timer.SessionEndEvent
	EventSignUp   = "$SignUp"

	keyEventTime     = "event_time"
	keyEventDuration = "event_duration"
	keyLibMethod     = "$lib_method"
	keyLibDetail     = "$lib_detail"
	keyLibVersion    = "$lib_version"
	keyAppVersion    = "$app_version"
	keyScreenName    = "$screen_name"
)

// Marker times outside this window are ignored.
var (
	minValidTime = time.Date(2015, 1, 1, 0, 0, 0, 0, time.UTC)
	maxValidTime = time.Date(2100, 1, 1, 0, 0, 0, 0, time.UTC)
)

// Dispatcher receives finished records.
type Dispatcher interface {
	Dispatch(ctx context.Context, rec *v1.EventRecord) error
}

// Listener observes every track-kind record just before dispatch. It must
// not modify the record.
type Listener interface {
	OnTrack(rec *v1.EventRecord)
}

// Filter is the host's last word on a track-kind record. It may edit props;
// returning false drops the record.
type Filter func(event string, props *v1.Properties) bool

// PluginVersions reports the versions of host plugins. It is called at most
// once.
type PluginVersions func() []string

// Library identifies this SDK in the lib block.
type Library struct {
	Name    string
	Version string
}

// Composer builds records on the task queue worker. Its collaborators are
// shared; the composer itself holds no per-record state.
type Composer struct {
	Library    Library
	Device     *v1.Properties
	Sanitizer  *sanitize.Sanitizer
	Merger     *props.Merger
	Identity   *identity.Resolver
	Timers     *timer.Registry
	Remote     remoteconfig.Source
	Dispatcher Dispatcher
	Filter     Filter
	Plugins    PluginVersions

	// Clock supplies the composition instant. Nil means the wall clock.
	Clock clock.Clock

	mu        sync.RWMutex
	listeners []Listener

	pluginOnce sync.Once
	plugins    []string
}

func (c *Composer) AddListener(l Listener) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.listeners = append(c.listeners, l)
}

// checkRemote applies the kill switch and the ignored-event list.
func (c *Composer) checkRemote(event string) error {
	if c.Remote == nil {
		return nil
	}
	if c.Remote.IsDisabled() {
		return perr.Suppressed(event, "remote kill switch")
	}
	if event != "" && c.Remote.IsEventSuppressed(event) {
		return perr.Suppressed(event, "remote config")
	}
	return nil
}

func (c *Composer) now() time.Time {
	if c.Clock == nil {
		return time.Now()
	}
	return c.Clock.Now()
}

func (c *Composer) newRecord(kind v1.Kind, at time.Time) *v1.EventRecord {
	return &v1.EventRecord{
		TrackID: uuid.NewString(),
		Kind:    kind,
		Time:    at.UnixMilli(),
	}
}

func (c *Composer) stampIdentity(rec *v1.EventRecord) {
	rec.DistinctID = c.Identity.DistinctID()
	rec.LoginID = c.Identity.LoginID()
	rec.AnonymousID = c.Identity.AnonymousID()
}

// appVersion is the device fact, overridden by a super property.
func (c *Composer) appVersion() string {
	version, _ := c.Device.GetString(keyAppVersion)
	if c.Merger != nil && c.Merger.Super != nil {
		if v, ok := c.Merger.Super.Snapshot().GetString(keyAppVersion); ok {
			version = v
		}
	}
	return version
}

func (c *Composer) lib(method, detail string) v1.LibInfo {
	if method == "" {
		method = v1.LibMethodCode
	}
	return v1.LibInfo{
		Lib:        c.Library.Name,
		Version:    c.Library.Version,
		Method:     method,
		AppVersion: c.appVersion(),
		Detail:     detail,
	}
}

func (c *Composer) pluginVersions() []string {
	c.pluginOnce.Do(func() {
		if c.Plugins == nil {
			return
		}
		defer func() {
			if p := recover(); p != nil {
				slog.Warn("[Composer] Plugin version lookup failed", "panic", p)
			}
		}()
		c.plugins = c.Plugins()
	})
	return c.plugins
}

// finish lifts markers, applies the host filter for track kinds, repairs
// over-long values, notifies listeners and dispatches.
func (c *Composer) finish(ctx context.Context, rec *v1.EventRecord) error {
	if rec.Properties == nil {
		rec.Properties = v1.NewProperties()
	}
	liftMarkers(rec)

	if rec.Kind.IsTrack() {
		if c.Filter != nil {
			if !c.Filter(rec.Event, rec.Properties) {
				return perr.Suppressed(rec.Event, "event filter")
			}
			if err := c.Sanitizer.ValidatePropertyTypes(rec.Properties); err != nil {
				return fmt.Errorf("after event filter: %w", err)
			}
			liftMarkers(rec)
		}
		rec.Lib.PluginVersions = c.pluginVersions()
	}
	c.Sanitizer.Repair(rec.Properties)

	if rec.Kind.IsTrack() {
		c.mu.RLock()
		listeners := append([]Listener(nil), c.listeners...)
		c.mu.RUnlock()
		for _, l := range listeners {
			l.OnTrack(rec)
		}
	}

	return c.Dispatcher.Dispatch(ctx, rec)
}

// liftMarkers moves $project, $token and $time out of the properties.
func liftMarkers(rec *v1.EventRecord) {
	p := rec.Properties
	if v, ok := p.Get(v1.MarkerProject); ok {
		rec.Project = markerString(v)
		p.Delete(v1.MarkerProject)
	}
	if v, ok := p.Get(v1.MarkerToken); ok {
		rec.Token = markerString(v)
		p.Delete(v1.MarkerToken)
	}
	if v, ok := p.Get(v1.MarkerTime); ok {
		if t, ok := markerTime(v); ok && validTime(t) {
			rec.Time = t.UnixMilli()
		}
		p.Delete(v1.MarkerTime)
	}
}

func markerString(v v1.Value) string {
	if s, ok := v.AsString(); ok {
		return s
	}
	return fmt.Sprint(v.Interface())
}

func markerTime(v v1.Value) (time.Time, bool) {
	if t, ok := v.AsDate(); ok {
		return t, true
	}
	if n, ok := v.AsNumber(); ok {
		return time.UnixMilli(n.IntPart()), true
	}
	return time.Time{}, false
}

func validTime(t time.Time) bool {
	return !t.Before(minValidTime) && t.Before(maxValidTime)
}
