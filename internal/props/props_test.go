package props

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	v1 "github.com/aevon-lab/trackpipe/internal/api/v1"
	perr "github.com/aevon-lab/trackpipe/internal/core/errors"
	"github.com/aevon-lab/trackpipe/internal/core/storage"
	"github.com/aevon-lab/trackpipe/internal/core/storage/memory"
)

type fakeContext struct {
	network, orientation, referrer string
}

func (f fakeContext) NetworkType() string   { return f.network }
func (f fakeContext) Orientation() string   { return f.orientation }
func (f fakeContext) ReferrerTitle() string { return f.referrer }

func doc(kv ...any) *v1.Properties {
	p := v1.NewProperties()
	for i := 0; i < len(kv); i += 2 {
		v, err := v1.ValueOf(kv[i+1])
		if err != nil {
			panic(err)
		}
		p.Set(kv[i].(string), v)
	}
	return p
}

func str(t *testing.T, p *v1.Properties, key string) string {
	t.Helper()
	s, ok := p.GetString(key)
	require.True(t, ok, "missing string %s", key)
	return s
}

func newSuper(t *testing.T, kv storage.KVStore, props *v1.Properties) *SuperStore {
	t.Helper()
	s, err := LoadSuperStore(context.Background(), kv)
	require.NoError(t, err)
	if props != nil {
		require.NoError(t, s.Register(context.Background(), props))
	}
	return s
}

func TestMerge_Precedence(t *testing.T) {
	kv := memory.NewKV()
	m := &Merger{
		Device: doc("$os", "android", "layer", "device", "$device_id", "dev-1"),
		Super:  newSuper(t, kv, doc("layer", "super", "plan", "gold")),
		Dynamic: func() (map[string]any, error) {
			return map[string]any{"layer": "dynamic", "battery": 80}, nil
		},
		Channel: func() *v1.Properties { return doc("layer", "channel", "utm_source", "ad") },
		Context: fakeContext{network: "WIFI", orientation: "portrait"},
	}

	out := m.Merge(context.Background(), Request{
		Event: "Purchase",
		Props: doc("layer", "caller", "$network_type", "caller-net", "$device_id", "spoofed"),
		At:    time.Now(),
	})

	assert.Equal(t, "caller", str(t, out, "layer"))
	assert.Equal(t, "android", str(t, out, "$os"))
	assert.Equal(t, "gold", str(t, out, "plan"))
	assert.Equal(t, "ad", str(t, out, "utm_source"))
	assert.Equal(t, "WIFI", str(t, out, KeyNetworkType), "context facts win over caller properties")
	assert.Equal(t, "portrait", str(t, out, KeyOrientation))
	assert.Equal(t, "dev-1", str(t, out, KeyDeviceID))
	wifi, _ := out.Get(KeyWifi)
	b, _ := wifi.AsBool()
	assert.True(t, b)
	assert.True(t, out.Has("battery"))
	assert.False(t, out.Has(KeyReferrerTitle))
}

func TestMerge_DynamicWinsOverFoldedStaticKey(t *testing.T) {
	m := &Merger{
		Super: newSuper(t, memory.NewKV(), doc("Level", 1, "other", "x")),
		Dynamic: func() (map[string]any, error) {
			return map[string]any{"level": 7}, nil
		},
	}

	out := m.Merge(context.Background(), Request{Event: "e"})
	assert.False(t, out.Has("Level"))
	assert.True(t, out.Has("level"))
	assert.True(t, out.Has("other"))
}

func TestMerge_BadDynamicIsDiscarded(t *testing.T) {
	tests := []struct {
		name    string
		dynamic DynamicSource
	}{
		{"panics", func() (map[string]any, error) { panic("callback crashed") }},
		{"errors", func() (map[string]any, error) { return nil, errors.New("no battery") }},
		{"nested value", func() (map[string]any, error) { return map[string]any{"o": map[string]any{}}, nil }},
		{"reserved key", func() (map[string]any, error) { return map[string]any{"distinct_id": "x"}, nil }},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var failures []error
			m := &Merger{
				Super:   newSuper(t, memory.NewKV(), doc("plan", "gold")),
				Dynamic: tt.dynamic,
				OnEnrichmentFailure: func(step string, err error) {
					assert.Equal(t, "dynamic_super_properties", step)
					failures = append(failures, err)
				},
			}

			out := m.Merge(context.Background(), Request{Event: "e", Props: doc("a", 1)})
			assert.Equal(t, "gold", str(t, out, "plan"), "static super properties still apply")
			assert.True(t, out.Has("a"))
			require.Len(t, failures, 1)
			assert.ErrorIs(t, failures[0], perr.ErrEnrichment)
		})
	}
}

func TestMerge_SkipChannelAndReferrer(t *testing.T) {
	m := &Merger{
		Channel:              func() *v1.Properties { return doc("utm_source", "ad") },
		Context:              fakeContext{network: "4G", referrer: "Home"},
		ReferrerTitleEnabled: true,
	}

	out := m.Merge(context.Background(), Request{Event: "$AppEnd", SkipChannel: true})
	assert.False(t, out.Has("utm_source"))
	assert.Equal(t, "Home", str(t, out, KeyReferrerTitle))
	wifi, _ := out.Get(KeyWifi)
	b, _ := wifi.AsBool()
	assert.False(t, b)
	assert.False(t, out.Has(KeyOrientation))
}

func TestMerge_DoesNotMutateInputs(t *testing.T) {
	device := doc("$os", "android")
	caller := doc("a", 1)
	m := &Merger{Device: device, Context: fakeContext{network: "WIFI"}}

	m.Merge(context.Background(), Request{Event: "e", Props: caller})
	assert.Equal(t, []string{"$os"}, device.Keys())
	assert.Equal(t, []string{"a"}, caller.Keys())
}

func TestFirstDay(t *testing.T) {
	ctx := context.Background()
	kv := memory.NewKV()
	f := NewFirstDay(kv, time.UTC)

	day1 := time.Date(2026, 6, 1, 9, 0, 0, 0, time.UTC)
	first, err := f.IsFirstDay(ctx, day1)
	require.NoError(t, err)
	assert.True(t, first)

	stored, ok, _ := kv.Get(ctx, storage.KeyFirstDay)
	require.True(t, ok)
	assert.Equal(t, "2026-06-01", stored)

	first, _ = f.IsFirstDay(ctx, day1.Add(10*time.Hour))
	assert.True(t, first)
	first, _ = f.IsFirstDay(ctx, day1.Add(24*time.Hour))
	assert.False(t, first)

	// A fresh reader picks up the persisted day.
	again := NewFirstDay(kv, time.UTC)
	first, _ = again.IsFirstDay(ctx, day1.Add(48*time.Hour))
	assert.False(t, first)
}

func TestMerge_FirstDayFlag(t *testing.T) {
	m := &Merger{FirstDay: NewFirstDay(memory.NewKV(), time.UTC)}
	at := time.Date(2026, 6, 1, 9, 0, 0, 0, time.UTC)

	out := m.Merge(context.Background(), Request{Event: "e", At: at, FirstDayFlag: true})
	v, ok := out.Get(KeyIsFirstDay)
	require.True(t, ok)
	b, _ := v.AsBool()
	assert.True(t, b)

	out = m.Merge(context.Background(), Request{Event: "e", At: at})
	assert.False(t, out.Has(KeyIsFirstDay))
}

func TestSuperStore_PersistsAndReloads(t *testing.T) {
	ctx := context.Background()
	kv := memory.NewKV()

	s := newSuper(t, kv, doc("plan", "gold", "Region", "eu"))
	require.NoError(t, s.Register(ctx, doc("region", "us")))
	assert.Equal(t, []string{"plan", "region"}, s.Snapshot().Keys())

	require.NoError(t, s.Unregister(ctx, "plan"))
	require.NoError(t, s.Unregister(ctx, "missing"))

	reloaded, err := LoadSuperStore(ctx, kv)
	require.NoError(t, err)
	assert.Equal(t, "us", str(t, reloaded.Snapshot(), "region"))
	assert.Equal(t, 1, reloaded.Snapshot().Len())

	require.NoError(t, reloaded.Clear(ctx))
	assert.Equal(t, 0, reloaded.Snapshot().Len())
}

func TestLoadSuperStore_CorruptValue(t *testing.T) {
	ctx := context.Background()
	kv := memory.NewKV()
	require.NoError(t, kv.Set(ctx, storage.KeySuperProperties, "{not json"))

	s, err := LoadSuperStore(ctx, kv)
	require.NoError(t, err)
	assert.Equal(t, 0, s.Snapshot().Len())
}

func TestSuperStore_SnapshotIsIndependent(t *testing.T) {
	s := newSuper(t, memory.NewKV(), doc("plan", "gold"))
	snap := s.Snapshot()
	snap.Set("plan", v1.String("changed"))
	assert.Equal(t, "gold", str(t, s.Snapshot(), "plan"))
}
