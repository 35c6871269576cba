package v1

import (
	"fmt"
	"strings"
)

// Kind is the record type written to the outbound queue.
type Kind string

const (
	KindTrack            Kind = "track"
	KindTrackSignup      Kind = "track_signup"
	KindProfileSet       Kind = "profile_set"
	KindProfileSetOnce   Kind = "profile_set_once"
	KindProfileIncrement Kind = "profile_increment"
	KindProfileAppend    Kind = "profile_append"
	KindProfileUnset     Kind = "profile_unset"
	KindProfileDelete    Kind = "profile_delete"
	KindItemSet          Kind = "item_set"
	KindItemDelete       Kind = "item_delete"
)

// IsTrack reports whether records of this kind carry an event name and the
// full property enrichment.
func (k Kind) IsTrack() bool {
	return k == KindTrack || k == KindTrackSignup
}

func (k Kind) IsProfile() bool {
	switch k {
	case KindProfileSet, KindProfileSetOnce, KindProfileIncrement,
		KindProfileAppend, KindProfileUnset, KindProfileDelete:
		return true
	}
	return false
}

func (k Kind) IsItem() bool {
	return k == KindItemSet || k == KindItemDelete
}

// ParseKind accepts any casing of a known kind.
func ParseKind(s string) (Kind, error) {
	k := Kind(strings.ToLower(strings.TrimSpace(s)))
	if k.IsTrack() || k.IsProfile() || k.IsItem() {
		return k, nil
	}
	return "", fmt.Errorf("unknown record kind %q", s)
}

// Library method values.
const (
	LibMethodCode      = "code"
	LibMethodAutoTrack = "autoTrack"
)

// LibInfo describes where a record originated.
type LibInfo struct {
	Lib            string   `json:"$lib"`
	Version        string   `json:"$lib_version"`
	Method         string   `json:"$lib_method"`
	AppVersion     string   `json:"$app_version,omitempty"`
	Detail         string   `json:"$lib_detail,omitempty"`
	PluginVersions []string `json:"$lib_plugin_version,omitempty"`
}

// Internal marker keys that are lifted out of properties into record fields.
const (
	MarkerProject = "$project"
	MarkerToken   = "$token"
	MarkerTime    = "$time"
)

// EventRecord is the finished unit handed to the outbound queue.
// It must not be mutated after dispatch.
type EventRecord struct {
	// TrackID is a random tag unique per record.
	TrackID string `json:"_track_id"`
	Kind    Kind   `json:"type"`

	// Event is set for track kinds only.
	Event string `json:"event,omitempty"`

	// Time is Unix milliseconds.
	Time int64 `json:"time"`

	DistinctID  string `json:"distinct_id,omitempty"`
	LoginID     string `json:"login_id,omitempty"`
	AnonymousID string `json:"anonymous_id,omitempty"`

	// OriginalID is the anonymous id a signup record links from.
	OriginalID string `json:"original_id,omitempty"`

	Project string `json:"project,omitempty"`
	Token   string `json:"token,omitempty"`

	ItemType string `json:"item_type,omitempty"`
	ItemID   string `json:"item_id,omitempty"`

	// Hybrid marks records that originated in an embedded web view.
	Hybrid bool `json:"_hybrid_h5,omitempty"`

	Lib        LibInfo     `json:"lib"`
	Properties *Properties `json:"properties"`
}

// Validate checks the structural invariants every dispatched record holds.
func (r *EventRecord) Validate() error {
	if r.TrackID == "" {
		return fmt.Errorf("_track_id is required")
	}
	if r.Kind.IsTrack() && r.Event == "" {
		return fmt.Errorf("event is required for %s records", r.Kind)
	}
	if r.Kind.IsItem() {
		if r.ItemType == "" || r.ItemID == "" {
			return fmt.Errorf("item_type and item_id are required for %s records", r.Kind)
		}
	} else if r.DistinctID == "" {
		return fmt.Errorf("distinct_id is required")
	}
	if r.Time <= 0 {
		return fmt.Errorf("time is required")
	}
	if r.Kind == KindTrackSignup && r.OriginalID == "" {
		return fmt.Errorf("original_id is required for signup records")
	}
	for _, marker := range []string{MarkerProject, MarkerToken, MarkerTime} {
		if r.Properties.Has(marker) {
			return fmt.Errorf("internal marker %s left in properties", marker)
		}
	}
	return nil
}
