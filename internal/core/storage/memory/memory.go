package memory

import (
	"context"
	"sync"

	v1 "github.com/aevon-lab/trackpipe/internal/api/v1"
	"github.com/aevon-lab/trackpipe/internal/core/storage"
)

// Queue is an in-memory implementation of storage.Queue.
// Useful for testing and development.
type Queue struct {
	mu      sync.RWMutex
	records []*v1.EventRecord
	seen    map[string]struct{}
}

func NewQueue() *Queue {
	return &Queue{seen: make(map[string]struct{})}
}

func (q *Queue) Enqueue(ctx context.Context, kind v1.Kind, record *v1.EventRecord) error {
	q.mu.Lock()
	defer q.mu.Unlock()

	if _, exists := q.seen[record.TrackID]; exists {
		return storage.ErrDuplicate
	}
	q.seen[record.TrackID] = struct{}{}
	q.records = append(q.records, record)
	return nil
}

// Records returns the enqueued records in enqueue order.
func (q *Queue) Records() []*v1.EventRecord {
	q.mu.RLock()
	defer q.mu.RUnlock()
	return append([]*v1.EventRecord(nil), q.records...)
}

// Events returns the event names of enqueued track-kind records in order.
func (q *Queue) Events() []string {
	q.mu.RLock()
	defer q.mu.RUnlock()

	var names []string
	for _, r := range q.records {
		if r.Kind.IsTrack() {
			names = append(names, r.Event)
		}
	}
	return names
}

func (q *Queue) Len() int {
	q.mu.RLock()
	defer q.mu.RUnlock()
	return len(q.records)
}

// KV is an in-memory implementation of storage.KVStore.
type KV struct {
	mu   sync.RWMutex
	data map[string]string
}

func NewKV() *KV {
	return &KV{data: make(map[string]string)}
}

func (kv *KV) Get(ctx context.Context, key string) (string, bool, error) {
	kv.mu.RLock()
	defer kv.mu.RUnlock()
	v, ok := kv.data[key]
	return v, ok, nil
}

func (kv *KV) Set(ctx context.Context, key, value string) error {
	kv.mu.Lock()
	defer kv.mu.Unlock()
	kv.data[key] = value
	return nil
}

func (kv *KV) Delete(ctx context.Context, key string) error {
	kv.mu.Lock()
	defer kv.mu.Unlock()
	delete(kv.data, key)
	return nil
}
