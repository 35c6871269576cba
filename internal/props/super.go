package props

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"strings"
	"sync"

	v1 "github.com/aevon-lab/trackpipe/internal/api/v1"
	"github.com/aevon-lab/trackpipe/internal/core/storage"
)

// SuperStore is the persisted set of properties merged into every
// track-kind record. Reads take a snapshot under the read lock.
type SuperStore struct {
	mu    sync.RWMutex
	kv    storage.KVStore
	props *v1.Properties
}

// LoadSuperStore reads the persisted super properties. A missing or corrupt
// entry starts an empty set.
func LoadSuperStore(ctx context.Context, kv storage.KVStore) (*SuperStore, error) {
	s := &SuperStore{kv: kv, props: v1.NewProperties()}

	raw, ok, err := kv.Get(ctx, storage.KeySuperProperties)
	if err != nil {
		return nil, fmt.Errorf("load super properties: %w", err)
	}
	if !ok || raw == "" {
		return s, nil
	}

	var stored v1.Properties
	if err := json.Unmarshal([]byte(raw), &stored); err != nil {
		slog.Warn("[SuperProperties] Persisted value is corrupt, starting empty", "error", err)
		return s, nil
	}
	s.props = &stored
	return s, nil
}

// Snapshot returns a copy of the current super properties.
func (s *SuperStore) Snapshot() *v1.Properties {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.props.Clone()
}

// Register merges add into the set. An existing key that matches a new key
// case-insensitively is replaced.
func (s *SuperStore) Register(ctx context.Context, add *v1.Properties) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	next := s.props.Clone()
	RemoveFoldedDuplicates(next, add)
	next.Merge(add)
	return s.commit(ctx, next)
}

func (s *SuperStore) Unregister(ctx context.Context, key string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	next := s.props.Clone()
	if !next.Delete(key) {
		return nil
	}
	return s.commit(ctx, next)
}

func (s *SuperStore) Clear(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.commit(ctx, v1.NewProperties())
}

// commit persists next and only then makes it visible. Caller holds mu.
func (s *SuperStore) commit(ctx context.Context, next *v1.Properties) error {
	data, err := json.Marshal(next)
	if err != nil {
		return fmt.Errorf("encode super properties: %w", err)
	}
	if err := s.kv.Set(ctx, storage.KeySuperProperties, string(data)); err != nil {
		return fmt.Errorf("persist super properties: %w", err)
	}
	s.props = next
	return nil
}

// RemoveFoldedDuplicates deletes from dst every key that equals a key of
// winner ignoring case.
func RemoveFoldedDuplicates(dst, winner *v1.Properties) {
	if dst.Len() == 0 || winner.Len() == 0 {
		return
	}
	folded := make(map[string]struct{}, winner.Len())
	for _, k := range winner.Keys() {
		folded[strings.ToLower(k)] = struct{}{}
	}
	for _, k := range dst.Keys() {
		if _, dup := folded[strings.ToLower(k)]; dup {
			dst.Delete(k)
		}
	}
}
