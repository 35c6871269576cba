package composer

import (
	"time"

	v1 "github.com/aevon-lab/trackpipe/internal/api/v1"
)

// Requests carry everything an entry point captured at call time. Property
// documents are owned by the request; callers hand over a clone.

type TrackRequest struct {
	// Event may be a cross-timer id; it is reported under its event name.
	Event  string
	Props  *v1.Properties
	Method string
	Origin string
	At     time.Time
}

type SignupRequest struct {
	LoginID string
	Props   *v1.Properties
	Origin  string
	At      time.Time
}

type ItemRequest struct {
	Kind     v1.Kind
	ItemType string
	ItemID   string
	// Time overrides At when non-zero.
	Time   time.Time
	Props  *v1.Properties
	Origin string
	At     time.Time
}

type ProfileRequest struct {
	Kind   v1.Kind
	Props  *v1.Properties
	Origin string
	At     time.Time
}

type EmbeddedRequest struct {
	Raw []byte
	At  time.Time
}
