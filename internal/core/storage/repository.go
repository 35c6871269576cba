package storage

import (
	"context"
	"errors"

	v1 "github.com/aevon-lab/trackpipe/internal/api/v1"
)

// ErrDuplicate is returned when a record with the same _track_id was already enqueued.
var ErrDuplicate = errors.New("record already enqueued")

// Queue is the durable outbound queue finished records are handed to.
// Flushing and delivery are the queue owner's concern.
type Queue interface {
	Enqueue(ctx context.Context, kind v1.Kind, record *v1.EventRecord) error
}

// KVStore persists the small pieces of SDK state: super properties, the
// anonymous and login ids, and the first-day marker.
type KVStore interface {
	// Get returns ok=false when the key has never been set.
	Get(ctx context.Context, key string) (value string, ok bool, err error)
	Set(ctx context.Context, key, value string) error
	Delete(ctx context.Context, key string) error
}

// Well-known KVStore keys.
const (
	KeySuperProperties = "super_properties"
	KeyAnonymousID     = "anonymous_id"
	KeyLoginID         = "login_id"
	KeyFirstDay        = "first_day"
)
