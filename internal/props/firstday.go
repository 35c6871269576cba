package props

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/aevon-lab/trackpipe/internal/core/storage"
)

const dayLayout = "2006-01-02"

// FirstDay answers whether an instant falls on the calendar day the SDK
// first ran. The day is persisted the first time it is asked.
type FirstDay struct {
	mu     sync.Mutex
	kv     storage.KVStore
	loc    *time.Location
	day    string
	loaded bool
}

// NewFirstDay uses loc for calendar days; nil means time.Local.
func NewFirstDay(kv storage.KVStore, loc *time.Location) *FirstDay {
	if loc == nil {
		loc = time.Local
	}
	return &FirstDay{kv: kv, loc: loc}
}

func (f *FirstDay) IsFirstDay(ctx context.Context, at time.Time) (bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	today := at.In(f.loc).Format(dayLayout)
	if !f.loaded {
		day, ok, err := f.kv.Get(ctx, storage.KeyFirstDay)
		if err != nil {
			return false, fmt.Errorf("read first day: %w", err)
		}
		if !ok || day == "" {
			if err := f.kv.Set(ctx, storage.KeyFirstDay, today); err != nil {
				return false, fmt.Errorf("persist first day: %w", err)
			}
			day = today
		}
		f.day = day
		f.loaded = true
	}
	return f.day == today, nil
}
