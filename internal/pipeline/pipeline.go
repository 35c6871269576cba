// Package pipeline is the explicitly constructed event pipeline: it owns the
// consent gate, the task queue, the composer and their shared state, and
// exposes the entry points host code calls.
package pipeline

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	v1 "github.com/aevon-lab/trackpipe/internal/api/v1"
	"github.com/aevon-lab/trackpipe/internal/composer"
	"github.com/aevon-lab/trackpipe/internal/consent"
	"github.com/aevon-lab/trackpipe/internal/core/clock"
	"github.com/aevon-lab/trackpipe/internal/core/storage"
	"github.com/aevon-lab/trackpipe/internal/dispatch"
	"github.com/aevon-lab/trackpipe/internal/identity"
	"github.com/aevon-lab/trackpipe/internal/props"
	"github.com/aevon-lab/trackpipe/internal/remoteconfig"
	"github.com/aevon-lab/trackpipe/internal/sanitize"
	"github.com/aevon-lab/trackpipe/internal/taskqueue"
	"github.com/aevon-lab/trackpipe/internal/telemetry"
	"github.com/aevon-lab/trackpipe/internal/timer"
)

// Options configures New. Queue and KV are required.
type Options struct {
	Library composer.Library

	// Device holds static device facts; it must not change after New.
	Device *v1.Properties

	Queue  storage.Queue
	KV     storage.KVStore
	Remote remoteconfig.Source

	Context props.ContextProvider
	Dynamic props.DynamicSource
	Channel props.ChannelSource
	Filter  composer.Filter
	Plugins composer.PluginVersions

	Clock   clock.Clock
	Metrics *telemetry.Metrics

	CollectionEnabled    bool
	SessionGap           time.Duration
	MaxValueLength       int
	ReferrerTitleEnabled bool
	// Location decides calendar days for $is_first_day; nil is time.Local.
	Location *time.Location
}

// Listener observes track records and committed logins.
type Listener interface {
	composer.Listener
	OnLogin(loginID, anonymousID string)
}

type Pipeline struct {
	clock     clock.Clock
	queue     *taskqueue.Queue
	gate      *consent.Gate
	composer  *composer.Composer
	timers    *timer.Registry
	super     *props.SuperStore
	identity  *identity.Resolver
	sanitizer *sanitize.Sanitizer
}

func New(ctx context.Context, opts Options) (*Pipeline, error) {
	if opts.Queue == nil || opts.KV == nil {
		return nil, fmt.Errorf("pipeline: queue and kv store are required")
	}
	if opts.Clock == nil {
		opts.Clock = clock.Real()
	}
	if opts.Remote == nil {
		opts.Remote = remoteconfig.NewStore()
	}
	if opts.Device == nil {
		opts.Device = v1.NewProperties()
	}
	if opts.SessionGap == 0 {
		opts.SessionGap = timer.DefaultSessionGap
	}

	super, err := props.LoadSuperStore(ctx, opts.KV)
	if err != nil {
		return nil, err
	}
	ident, err := identity.Load(ctx, opts.KV)
	if err != nil {
		return nil, err
	}

	metrics := opts.Metrics
	san := sanitize.New(opts.MaxValueLength)
	timers := timer.NewRegistry(opts.SessionGap)

	queue := taskqueue.New(taskqueue.WithResultHook(func(res taskqueue.Result) {
		metrics.TaskResult(context.Background(), res)
	}))
	gate := consent.NewGate(queue, opts.CollectionEnabled, consent.WithDrainHook(func(n int) {
		metrics.Replayed(context.Background(), n)
	}))

	c := &composer.Composer{
		Library:   opts.Library,
		Device:    opts.Device,
		Sanitizer: san,
		Merger: &props.Merger{
			Device:               opts.Device,
			Super:                super,
			Dynamic:              opts.Dynamic,
			Channel:              opts.Channel,
			Context:              opts.Context,
			FirstDay:             props.NewFirstDay(opts.KV, opts.Location),
			Sanitizer:            san,
			ReferrerTitleEnabled: opts.ReferrerTitleEnabled,
			OnEnrichmentFailure: func(step string, _ error) {
				metrics.EnrichmentSkipped(context.Background(), step)
			},
		},
		Identity:   ident,
		Timers:     timers,
		Remote:     opts.Remote,
		Dispatcher: dispatch.New(opts.Queue, metrics),
		Filter:     opts.Filter,
		Plugins:    opts.Plugins,
		Clock:      opts.Clock,
	}

	slog.Info("[Pipeline] Initialised",
		"collection_enabled", opts.CollectionEnabled,
		"anonymous_id", ident.AnonymousID(),
		"session_gap", opts.SessionGap)

	return &Pipeline{
		clock:     opts.Clock,
		queue:     queue,
		gate:      gate,
		composer:  c,
		timers:    timers,
		super:     super,
		identity:  ident,
		sanitizer: san,
	}, nil
}

// Run drives the task queue until ctx is cancelled, then drains it.
func (p *Pipeline) Run(ctx context.Context) error {
	return p.queue.Run(ctx)
}

// Sync waits until everything submitted to the task queue so far has run.
// Buffered requests are not waited for while collection is disabled.
func (p *Pipeline) Sync(ctx context.Context) error {
	return p.queue.Sync(ctx)
}

// SetDataCollectionEnabled(true) replays buffered requests in order. It
// cannot be undone.
func (p *Pipeline) SetDataCollectionEnabled(enabled bool) {
	p.gate.SetEnabled(enabled)
}

func (p *Pipeline) DataCollectionEnabled() bool {
	return p.gate.Enabled()
}

func (p *Pipeline) DistinctID() string {
	return p.identity.DistinctID()
}

func (p *Pipeline) AddListener(l Listener) {
	p.composer.AddListener(l)
	p.identity.AddListener(l.OnLogin)
}

func (p *Pipeline) submit(label string, task taskqueue.Task) {
	p.gate.Submit(label, task)
}

// ComposeTrack records a code-instrumented event.
func (p *Pipeline) ComposeTrack(name string, properties *v1.Properties, opts ...CallOption) {
	req := composer.TrackRequest{
		Event:  name,
		Props:  properties.Clone(),
		Method: v1.LibMethodCode,
		Origin: resolveOrigin(opts),
		At:     p.clock.Now(),
	}
	p.submit("track "+name, func(ctx context.Context) error {
		return p.composer.Track(ctx, req)
	})
}

// ComposeAutoTrack records an event raised by UI instrumentation.
func (p *Pipeline) ComposeAutoTrack(name string, properties *v1.Properties) {
	req := composer.TrackRequest{
		Event:  name,
		Props:  properties.Clone(),
		Method: v1.LibMethodAutoTrack,
		At:     p.clock.Now(),
	}
	p.submit("autotrack "+name, func(ctx context.Context) error {
		return p.composer.Track(ctx, req)
	})
}

// ComposeItemEvent records an item_set or item_delete. A zero at uses the
// call time.
func (p *Pipeline) ComposeItemEvent(itemType, itemID, eventType string, at time.Time, properties *v1.Properties, opts ...CallOption) {
	kind, err := v1.ParseKind(eventType)
	if err != nil || !kind.IsItem() {
		slog.Warn("[Pipeline] Unknown item event type, dropping", "event_type", eventType)
		return
	}
	req := composer.ItemRequest{
		Kind:     kind,
		ItemType: itemType,
		ItemID:   itemID,
		Time:     at,
		Props:    properties.Clone(),
		Origin:   resolveOrigin(opts),
		At:       p.clock.Now(),
	}
	p.submit(string(kind)+" "+itemType, func(ctx context.Context) error {
		return p.composer.Item(ctx, req)
	})
}

// ComposeEmbeddedEvent records a document forwarded by a web view.
func (p *Pipeline) ComposeEmbeddedEvent(raw []byte) {
	if len(raw) == 0 {
		return
	}
	req := composer.EmbeddedRequest{
		Raw: append([]byte(nil), raw...),
		At:  p.clock.Now(),
	}
	p.submit("embedded", func(ctx context.Context) error {
		return p.composer.Embedded(ctx, req)
	})
}

// ComposeSignup logs loginID in and emits $SignUp, once per login value.
func (p *Pipeline) ComposeSignup(loginID string, properties *v1.Properties, opts ...CallOption) {
	req := composer.SignupRequest{
		LoginID: loginID,
		Props:   properties.Clone(),
		Origin:  resolveOrigin(opts),
		At:      p.clock.Now(),
	}
	p.submit("signup", func(ctx context.Context) error {
		return p.composer.Signup(ctx, req)
	})
}

// ComposeProfile records a profile operation of the given kind.
func (p *Pipeline) ComposeProfile(kind v1.Kind, properties *v1.Properties, opts ...CallOption) {
	req := composer.ProfileRequest{
		Kind:   kind,
		Props:  properties.Clone(),
		Origin: resolveOrigin(opts),
		At:     p.clock.Now(),
	}
	p.submit(string(kind), func(ctx context.Context) error {
		return p.composer.Profile(ctx, req)
	})
}

// Logout clears the login id after every earlier request has been composed.
func (p *Pipeline) Logout() {
	p.submit("logout", func(ctx context.Context) error {
		return p.identity.Logout(ctx)
	})
}

// ResetAnonymousID replaces the anonymous id; an empty id generates one.
func (p *Pipeline) ResetAnonymousID(id string) {
	p.submit("reset anonymous id", func(ctx context.Context) error {
		_, err := p.identity.ResetAnonymousID(ctx, id)
		return err
	})
}
