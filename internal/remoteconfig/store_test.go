package remoteconfig

import (
	"context"
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeSnapshot(t *testing.T, dir, content string) string {
	t.Helper()
	path := filepath.Join(dir, "remote.yaml")
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	return path
}

func TestStore_Defaults(t *testing.T) {
	s := NewStore()
	assert.False(t, s.IsDisabled())
	assert.False(t, s.IsEventSuppressed("Purchase"))
}

func TestStore_LoadFile(t *testing.T) {
	path := writeSnapshot(t, t.TempDir(), `
version: "v7"
disabled: false
ignored_events:
  - "$AppViewScreen"
  - " Debug "
`)
	s := NewStore()
	snap, err := s.LoadFile(path)
	require.NoError(t, err)

	assert.Equal(t, "v7", snap.Version)
	assert.True(t, s.IsEventSuppressed("$AppViewScreen"))
	assert.True(t, s.IsEventSuppressed("Debug"))
	assert.False(t, s.IsEventSuppressed("Purchase"))
}

func TestStore_LoadFileErrorsKeepPrevious(t *testing.T) {
	dir := t.TempDir()
	s := NewStore()
	s.Set(Snapshot{Version: "v1", Disabled: true})

	_, err := s.LoadFile(filepath.Join(dir, "missing.yaml"))
	require.Error(t, err)

	bad := writeSnapshot(t, dir, "ignored_events: {not: [a list")
	_, err = s.LoadFile(bad)
	require.Error(t, err)

	assert.Equal(t, "v1", s.Snapshot().Version)
	assert.True(t, s.IsDisabled())
}

func TestStore_ReloadConcurrent(t *testing.T) {
	path := writeSnapshot(t, t.TempDir(), "version: v2\ndisabled: true\n")
	s := NewStore()

	var wg sync.WaitGroup
	for i := 0; i < 10; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			snap, _, err := s.Reload(context.Background(), path)
			assert.NoError(t, err)
			assert.Equal(t, "v2", snap.Version)
		}()
	}
	wg.Wait()
	assert.True(t, s.IsDisabled())
}

func TestPoller_InitialLoadAndStop(t *testing.T) {
	path := writeSnapshot(t, t.TempDir(), "version: v3\nignored_events: [Spam]\n")
	s := NewStore()
	p := NewPoller(s, path, time.Hour)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- p.Start(ctx) }()

	require.Eventually(t, func() bool { return s.IsEventSuppressed("Spam") }, time.Second, 5*time.Millisecond)
	cancel()
	select {
	case err := <-done:
		require.NoError(t, err)
	case <-time.After(time.Second):
		t.Fatal("poller did not stop")
	}
}
