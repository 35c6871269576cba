package composer

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/shopspring/decimal"

	v1 "github.com/aevon-lab/trackpipe/internal/api/v1"
	"github.com/aevon-lab/trackpipe/internal/props"
	"github.com/aevon-lab/trackpipe/internal/timer"
)

// Track composes and dispatches a track record.
func (c *Composer) Track(ctx context.Context, req TrackRequest) error {
	duration, timed := c.Timers.Consume(req.Event, req.At)

	name := timer.TrimCrossSuffix(req.Event)
	if err := c.Sanitizer.ValidateKey(name); err != nil {
		return fmt.Errorf("event name: %w", err)
	}
	if err := c.checkRemote(name); err != nil {
		return err
	}
	if err := c.Sanitizer.ValidatePropertyTypes(req.Props); err != nil {
		return fmt.Errorf("track %s: %w", name, err)
	}

	caller := req.Props.Clone()

	rec := c.newRecord(v1.KindTrack, req.At)
	rec.Event = name
	c.stampIdentity(rec)

	method := req.Method
	if m, ok := caller.GetString(keyLibMethod); ok && m == v1.LibMethodAutoTrack {
		method = v1.LibMethodAutoTrack
	}
	libVersion, appVersion := c.applyTimingOverrides(rec, name, caller)

	judged := c.now()
	if rec.Time != req.At.UnixMilli() {
		judged = time.UnixMilli(rec.Time)
	}

	detail := req.Origin
	if d, ok := caller.GetString(keyLibDetail); ok {
		detail = d
		caller.Delete(keyLibDetail)
	} else if method == v1.LibMethodAutoTrack {
		if screen, ok := caller.GetString(keyScreenName); ok && screen != "" {
			detail = fmt.Sprintf("%s##%s##%s##%s", strings.SplitN(screen, "|", 2)[0], "", "", "")
		}
	}

	rec.Properties = c.Merger.Merge(ctx, props.Request{
		Event:        name,
		Props:        caller,
		At:           req.At,
		Now:          judged,
		SkipChannel:  name == EventAppEnd,
		FirstDayFlag: true,
	})
	rec.Lib = c.lib(method, detail)
	if libVersion != "" {
		rec.Lib.Version = libVersion
	}
	if appVersion != "" {
		rec.Lib.AppVersion = appVersion
	}
	rec.Properties.Set(keyLibMethod, v1.String(rec.Lib.Method))

	if timed && duration > 0 {
		rec.Properties.Set(keyEventDuration, v1.Number(durationSeconds(duration)))
	}

	return c.finish(ctx, rec)
}

// applyTimingOverrides handles the session events that carry their own
// timestamp. It returns lib and app version overrides for $AppEnd.
func (c *Composer) applyTimingOverrides(rec *v1.EventRecord, name string, caller *v1.Properties) (libVersion, appVersion string) {
	switch name {
	case EventAppStart:
		if ms, ok := millis(caller, keyEventTime); ok && ms > 0 {
			rec.Time = ms
		}
		caller.Delete(keyEventTime)
	case EventAppEnd:
		if ms, ok := millis(caller, keyEventTime); ok && ms > 2000 {
			rec.Time = ms
		}
		caller.Delete(keyEventTime)
		if v, ok := caller.GetString(keyLibVersion); ok && v != "" {
			libVersion = v
		} else {
			caller.Delete(keyLibVersion)
		}
		if v, ok := caller.GetString(keyAppVersion); ok && v != "" {
			appVersion = v
		} else {
			caller.Delete(keyAppVersion)
		}
	}
	return libVersion, appVersion
}

func millis(p *v1.Properties, key string) (int64, bool) {
	v, ok := p.Get(key)
	if !ok {
		return 0, false
	}
	n, ok := v.AsNumber()
	if !ok {
		return 0, false
	}
	return n.IntPart(), true
}

// durationSeconds renders d in seconds with millisecond precision.
func durationSeconds(d time.Duration) decimal.Decimal {
	return decimal.NewFromInt(d.Milliseconds()).Shift(-3)
}

// Signup commits req.LoginID and emits the $SignUp record, at most once per
// login value.
func (c *Composer) Signup(ctx context.Context, req SignupRequest) error {
	if err := c.Sanitizer.ValidateLoginID(req.LoginID); err != nil {
		return err
	}
	if err := c.checkRemote(EventSignUp); err != nil {
		return err
	}
	if err := c.Sanitizer.ValidatePropertyTypes(req.Props); err != nil {
		return fmt.Errorf("signup: %w", err)
	}

	return c.Identity.Login(ctx, req.LoginID, func(ctx context.Context, loginID, originalID string) error {
		rec := c.newRecord(v1.KindTrackSignup, req.At)
		rec.Event = EventSignUp
		rec.DistinctID = loginID
		rec.LoginID = loginID
		rec.AnonymousID = originalID
		rec.OriginalID = originalID
		rec.Properties = c.Merger.Merge(ctx, props.Request{
			Event: EventSignUp,
			Props: req.Props.Clone(),
			At:    req.At,
			Now:   c.now(),
		})
		rec.Lib = c.lib(v1.LibMethodCode, req.Origin)
		rec.Properties.Set(keyLibMethod, v1.String(v1.LibMethodCode))
		return c.finish(ctx, rec)
	})
}
