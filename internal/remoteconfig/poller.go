package remoteconfig

import (
	"context"
	"log/slog"
	"time"
)

// Poller reloads a snapshot file on a fixed interval.
type Poller struct {
	store    *Store
	path     string
	interval time.Duration
}

func NewPoller(store *Store, path string, interval time.Duration) *Poller {
	return &Poller{store: store, path: path, interval: interval}
}

// Start loads the file once and then on every tick until ctx is cancelled.
// A failed reload keeps the previous snapshot.
func (p *Poller) Start(ctx context.Context) error {
	ticker := time.NewTicker(p.interval)
	defer ticker.Stop()

	slog.Info("[RemoteConfig] Starting poller", "path", p.path, "interval", p.interval)

	p.reload(ctx)

	for {
		select {
		case <-ticker.C:
			p.reload(ctx)
		case <-ctx.Done():
			slog.Info("[RemoteConfig] Stopping poller (context cancelled)")
			return nil
		}
	}
}

func (p *Poller) reload(ctx context.Context) {
	if _, _, err := p.store.Reload(ctx, p.path); err != nil {
		slog.Warn("[RemoteConfig] Reload failed, keeping previous snapshot",
			"path", p.path,
			"error", err)
	}
}
