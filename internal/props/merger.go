// Package props builds the properties document of track-kind records and
// owns the persisted super properties.
package props

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	v1 "github.com/aevon-lab/trackpipe/internal/api/v1"
	perr "github.com/aevon-lab/trackpipe/internal/core/errors"
	"github.com/aevon-lab/trackpipe/internal/sanitize"
)

// Context property keys.
const (
	KeyDeviceID      = "$device_id"
	KeyNetworkType   = "$network_type"
	KeyWifi          = "$wifi"
	KeyOrientation   = "$screen_orientation"
	KeyIsFirstDay    = "$is_first_day"
	KeyReferrerTitle = "$referrer_title"
)

const networkWifi = "WIFI"

// DynamicSource returns volatile properties for one composition. It may be
// user code: its result is validated and a panic is contained.
type DynamicSource func() (map[string]any, error)

// ChannelSource returns the latest channel attribution properties.
type ChannelSource func() *v1.Properties

// ContextProvider reports host state sampled at composition time. Empty
// strings mean unknown and are not written.
type ContextProvider interface {
	NetworkType() string
	Orientation() string
	ReferrerTitle() string
}

// Merger layers the property sources of a track-kind record. Fields other
// than Device and Super are optional.
type Merger struct {
	// Device holds static device facts. It is never mutated.
	Device   *v1.Properties
	Super    *SuperStore
	Dynamic  DynamicSource
	Channel  ChannelSource
	Context  ContextProvider
	FirstDay *FirstDay

	Sanitizer            *sanitize.Sanitizer
	ReferrerTitleEnabled bool

	// OnEnrichmentFailure observes every skipped enrichment step.
	OnEnrichmentFailure func(step string, err error)
}

// Request describes one track-kind composition.
type Request struct {
	Event string
	Props *v1.Properties
	At    time.Time

	// Now is the composition instant $is_first_day is judged at. Zero means At.
	Now time.Time

	// SkipChannel leaves out channel properties ($AppEnd).
	SkipChannel bool

	// FirstDayFlag adds $is_first_day.
	FirstDayFlag bool
}

// Merge returns a new document. Lowest to highest precedence: device facts,
// super properties, dynamic super properties, channel properties, caller
// properties, context facts.
func (m *Merger) Merge(ctx context.Context, req Request) *v1.Properties {
	out := m.Device.Clone()

	static := v1.NewProperties()
	if m.Super != nil {
		static = m.Super.Snapshot()
	}
	dynamic := m.dynamic()
	RemoveFoldedDuplicates(static, dynamic)
	out.Merge(static)
	out.Merge(dynamic)

	if !req.SkipChannel && m.Channel != nil {
		m.safely("channel", func() error {
			out.Merge(m.Channel())
			return nil
		})
	}

	out.Merge(req.Props)

	if m.Context != nil {
		m.safely("context", func() error {
			if m.ReferrerTitleEnabled {
				if title := m.Context.ReferrerTitle(); title != "" {
					out.Set(KeyReferrerTitle, v1.String(title))
				}
			}
			if network := m.Context.NetworkType(); network != "" {
				out.Set(KeyWifi, v1.Bool(network == networkWifi))
				out.Set(KeyNetworkType, v1.String(network))
			}
			if orientation := m.Context.Orientation(); orientation != "" {
				out.Set(KeyOrientation, v1.String(orientation))
			}
			return nil
		})
	}

	if req.FirstDayFlag && m.FirstDay != nil {
		m.safely("first_day", func() error {
			judged := req.Now
			if judged.IsZero() {
				judged = req.At
			}
			first, err := m.FirstDay.IsFirstDay(ctx, judged)
			if err != nil {
				return err
			}
			out.Set(KeyIsFirstDay, v1.Bool(first))
			return nil
		})
	}

	GuardDeviceID(out, m.Device)
	return out
}

// GuardDeviceID resets a $device_id in doc to the device fact.
func GuardDeviceID(doc, device *v1.Properties) {
	if !doc.Has(KeyDeviceID) {
		return
	}
	if id, ok := device.Get(KeyDeviceID); ok {
		doc.Set(KeyDeviceID, id)
	}
}

func (m *Merger) dynamic() *v1.Properties {
	if m.Dynamic == nil {
		return nil
	}
	var result *v1.Properties
	m.safely("dynamic_super_properties", func() error {
		raw, err := m.Dynamic()
		if err != nil {
			return err
		}
		if raw == nil {
			return nil
		}
		doc, err := v1.PropertiesFrom(raw)
		if err != nil {
			return err
		}
		if err := m.Sanitizer.ValidatePropertyTypes(doc); err != nil {
			return err
		}
		result = doc
		return nil
	})
	return result
}

// safely runs one optional enrichment step. A failure or panic skips the
// step and is reported as ErrEnrichment.
func (m *Merger) safely(step string, fn func() error) {
	var err error
	func() {
		defer func() {
			if p := recover(); p != nil {
				err = fmt.Errorf("panic: %v", p)
			}
		}()
		err = fn()
	}()
	if err == nil {
		return
	}

	err = fmt.Errorf("%w: %s: %v", perr.ErrEnrichment, step, err)
	slog.Warn("[Merger] Enrichment skipped", "step", step, "error", err)
	if m.OnEnrichmentFailure != nil {
		m.OnEnrichmentFailure(step, err)
	}
}
