package identity

import (
	"context"
	"errors"
	"sync"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	perr "github.com/aevon-lab/trackpipe/internal/core/errors"
	"github.com/aevon-lab/trackpipe/internal/core/storage"
	"github.com/aevon-lab/trackpipe/internal/core/storage/memory"
	storagemocks "github.com/aevon-lab/trackpipe/internal/mocks/storage"
)

func TestLoad_GeneratesAnonymousIDOnce(t *testing.T) {
	ctx := context.Background()
	kv := memory.NewKV()

	r, err := Load(ctx, kv)
	require.NoError(t, err)
	_, err = uuid.Parse(r.AnonymousID())
	require.NoError(t, err)
	assert.Equal(t, r.AnonymousID(), r.DistinctID())
	assert.Empty(t, r.LoginID())

	again, err := Load(ctx, kv)
	require.NoError(t, err)
	assert.Equal(t, r.AnonymousID(), again.AnonymousID())
}

func TestLogin_Idempotent(t *testing.T) {
	ctx := context.Background()
	kv := memory.NewKV()
	r, err := Load(ctx, kv)
	require.NoError(t, err)

	var notified, signups int
	r.AddListener(func(loginID, anon string) {
		assert.Equal(t, "user-1", loginID)
		notified++
	})
	signup := func(_ context.Context, loginID, original string) error {
		assert.Equal(t, r.AnonymousID(), original)
		signups++
		return nil
	}

	require.NoError(t, r.Login(ctx, "user-1", signup))
	err = r.Login(ctx, "user-1", signup)
	require.ErrorIs(t, err, perr.ErrIdentityConflict)

	assert.Equal(t, 1, notified)
	assert.Equal(t, 1, signups)
	assert.Equal(t, "user-1", r.DistinctID())

	stored, _, _ := kv.Get(ctx, storage.KeyLoginID)
	assert.Equal(t, "user-1", stored)
}

func TestLogin_SelfReferential(t *testing.T) {
	ctx := context.Background()
	r, err := Load(ctx, memory.NewKV())
	require.NoError(t, err)

	called := false
	err = r.Login(ctx, r.AnonymousID(), func(context.Context, string, string) error {
		called = true
		return nil
	})
	require.ErrorIs(t, err, perr.ErrIdentityConflict)
	assert.False(t, called)
	assert.Empty(t, r.LoginID())
}

func TestLogin_ConcurrentSameValue(t *testing.T) {
	ctx := context.Background()
	r, err := Load(ctx, memory.NewKV())
	require.NoError(t, err)

	var mu sync.Mutex
	signups := 0
	var wg sync.WaitGroup
	for i := 0; i < 16; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_ = r.Login(ctx, "user-9", func(context.Context, string, string) error {
				mu.Lock()
				signups++
				mu.Unlock()
				return nil
			})
		}()
	}
	wg.Wait()
	assert.Equal(t, 1, signups)
}

func TestLogin_SignupErrorIsReturned(t *testing.T) {
	ctx := context.Background()
	r, err := Load(ctx, memory.NewKV())
	require.NoError(t, err)

	boom := errors.New("queue full")
	err = r.Login(ctx, "user-1", func(context.Context, string, string) error { return boom })
	require.ErrorIs(t, err, boom)
	assert.Equal(t, "user-1", r.LoginID())
}

func TestLogoutAndReset(t *testing.T) {
	ctx := context.Background()
	kv := memory.NewKV()
	r, err := Load(ctx, kv)
	require.NoError(t, err)
	require.NoError(t, r.Login(ctx, "user-1", nil))

	require.NoError(t, r.Logout(ctx))
	assert.Equal(t, r.AnonymousID(), r.DistinctID())
	_, ok, _ := kv.Get(ctx, storage.KeyLoginID)
	assert.False(t, ok)

	// Logging in again after logout is a new transition.
	require.NoError(t, r.Login(ctx, "user-1", nil))

	prev := r.AnonymousID()
	id, err := r.ResetAnonymousID(ctx, "")
	require.NoError(t, err)
	assert.NotEqual(t, prev, id)

	id, err = r.ResetAnonymousID(ctx, "device-abc")
	require.NoError(t, err)
	assert.Equal(t, "device-abc", id)
	stored, _, _ := kv.Get(ctx, storage.KeyAnonymousID)
	assert.Equal(t, "device-abc", stored)
}

func TestLogin_PersistFailureChangesNothing(t *testing.T) {
	ctx := context.Background()
	kv := storagemocks.NewKVStore(t)
	kv.EXPECT().Get(mock.Anything, storage.KeyAnonymousID).Return("anon-1", true, nil).Once()
	kv.EXPECT().Get(mock.Anything, storage.KeyLoginID).Return("", false, nil).Once()
	kv.EXPECT().Set(mock.Anything, storage.KeyLoginID, "user-1").Return(errors.New("disk full")).Once()

	r, err := Load(ctx, kv)
	require.NoError(t, err)

	var notified bool
	r.AddListener(func(string, string) { notified = true })
	err = r.Login(ctx, "user-1", func(context.Context, string, string) error {
		t.Fatal("signup must not run when the login id was not persisted")
		return nil
	})

	require.ErrorContains(t, err, "persist login id")
	assert.False(t, notified)
	assert.Equal(t, "anon-1", r.DistinctID())
}

func TestLoad_StorageErrors(t *testing.T) {
	kv := storagemocks.NewKVStore(t)
	kv.EXPECT().Get(mock.Anything, storage.KeyAnonymousID).Return("", false, errors.New("locked")).Once()

	_, err := Load(context.Background(), kv)
	require.ErrorContains(t, err, "load anonymous id")
}
