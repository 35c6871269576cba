// Package identity tracks the anonymous and login ids and performs the
// anonymous-to-login transition at most once per login value.
package identity

import (
	"context"
	"fmt"
	"log/slog"
	"sync"

	"github.com/google/uuid"

	perr "github.com/aevon-lab/trackpipe/internal/core/errors"
	"github.com/aevon-lab/trackpipe/internal/core/storage"
)

// LoginListener is told about every committed login.
type LoginListener func(loginID, anonymousID string)

// SignupFunc emits the signup record for a committed login. It runs while the
// login lock is held.
type SignupFunc func(ctx context.Context, loginID, originalID string) error

type Resolver struct {
	// loginMu serialises the whole login transition.
	loginMu sync.Mutex

	mu          sync.RWMutex
	kv          storage.KVStore
	anonymousID string
	loginID     string
	listeners   []LoginListener
}

// Load restores identity state, generating and persisting an anonymous id on
// first use.
func Load(ctx context.Context, kv storage.KVStore) (*Resolver, error) {
	r := &Resolver{kv: kv}

	anon, ok, err := kv.Get(ctx, storage.KeyAnonymousID)
	if err != nil {
		return nil, fmt.Errorf("load anonymous id: %w", err)
	}
	if !ok || anon == "" {
		anon = uuid.NewString()
		if err := kv.Set(ctx, storage.KeyAnonymousID, anon); err != nil {
			return nil, fmt.Errorf("persist anonymous id: %w", err)
		}
		slog.Info("[Identity] Generated anonymous id", "anonymous_id", anon)
	}
	r.anonymousID = anon

	login, _, err := kv.Get(ctx, storage.KeyLoginID)
	if err != nil {
		return nil, fmt.Errorf("load login id: %w", err)
	}
	r.loginID = login
	return r, nil
}

// DistinctID is the login id when set, else the anonymous id.
func (r *Resolver) DistinctID() string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	if r.loginID != "" {
		return r.loginID
	}
	return r.anonymousID
}

func (r *Resolver) AnonymousID() string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.anonymousID
}

func (r *Resolver) LoginID() string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.loginID
}

func (r *Resolver) AddListener(l LoginListener) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.listeners = append(r.listeners, l)
}

// Login commits newID unless it equals the current login id or the anonymous
// id, in which case it returns ErrIdentityConflict and changes nothing. On
// commit, listeners run and then signup, all under the login lock.
func (r *Resolver) Login(ctx context.Context, newID string, signup SignupFunc) error {
	r.loginMu.Lock()
	defer r.loginMu.Unlock()

	r.mu.RLock()
	current, anon := r.loginID, r.anonymousID
	listeners := append([]LoginListener(nil), r.listeners...)
	r.mu.RUnlock()

	if newID == current {
		return fmt.Errorf("%w: %s is the current login id", perr.ErrIdentityConflict, newID)
	}
	if newID == anon {
		return fmt.Errorf("%w: %s is the anonymous id", perr.ErrIdentityConflict, newID)
	}

	if err := r.kv.Set(ctx, storage.KeyLoginID, newID); err != nil {
		return fmt.Errorf("persist login id: %w", err)
	}
	r.mu.Lock()
	r.loginID = newID
	r.mu.Unlock()

	slog.Info("[Identity] Login committed", "login_id", newID, "anonymous_id", anon)
	for _, l := range listeners {
		l(newID, anon)
	}
	if signup != nil {
		if err := signup(ctx, newID, anon); err != nil {
			return fmt.Errorf("signup record: %w", err)
		}
	}
	return nil
}

// Logout clears the login id.
func (r *Resolver) Logout(ctx context.Context) error {
	r.loginMu.Lock()
	defer r.loginMu.Unlock()

	if err := r.kv.Delete(ctx, storage.KeyLoginID); err != nil {
		return fmt.Errorf("clear login id: %w", err)
	}
	r.mu.Lock()
	r.loginID = ""
	r.mu.Unlock()
	return nil
}

// ResetAnonymousID replaces the anonymous id; an empty id generates a new one.
func (r *Resolver) ResetAnonymousID(ctx context.Context, id string) (string, error) {
	r.loginMu.Lock()
	defer r.loginMu.Unlock()

	if id == "" {
		id = uuid.NewString()
	}
	if err := r.kv.Set(ctx, storage.KeyAnonymousID, id); err != nil {
		return "", fmt.Errorf("persist anonymous id: %w", err)
	}
	r.mu.Lock()
	r.anonymousID = id
	r.mu.Unlock()
	return id, nil
}
