package history

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"sync"

	"github.com/heimdex/heimdex-clipper/internal/logging"
)

const kvKey = "result_history"

// Store persists the whole history list.
type Store interface {
	Get(ctx context.Context) ([]Entry, error)
	Put(ctx context.Context, list []Entry) error
}

// KV is the subset of db.KV the history needs.
type KV interface {
	Get(ctx context.Context, key string) (string, error)
	Set(ctx context.Context, key, value string) error
}

// KVStore keeps the list as one JSON document under a single kv key.
type KVStore struct {
	kv KV
}

func NewKVStore(kv KV) *KVStore {
	return &KVStore{kv: kv}
}

func (s *KVStore) Get(ctx context.Context) ([]Entry, error) {
	raw, err := s.kv.Get(ctx, kvKey)
	if err != nil {
		return nil, err
	}
	if raw == "" {
		return nil, nil
	}
	var list []Entry
	if err := json.Unmarshal([]byte(raw), &list); err != nil {
		return nil, fmt.Errorf("decode history: %w", err)
	}
	return list, nil
}

func (s *KVStore) Put(ctx context.Context, list []Entry) error {
	if list == nil {
		list = []Entry{}
	}
	raw, err := json.Marshal(list)
	if err != nil {
		return fmt.Errorf("encode history: %w", err)
	}
	return s.kv.Set(ctx, kvKey, string(raw))
}

// Recorder serialises load, merge and save against a Store.
type Recorder struct {
	store  Store
	limit  int
	logger *slog.Logger
	mu     sync.Mutex
}

func NewRecorder(store Store, limit int, logger *slog.Logger) *Recorder {
	if limit <= 0 {
		limit = DefaultCap
	}
	return &Recorder{store: store, limit: limit, logger: logging.OrDiscard(logger)}
}

// Record merges entries into the stored history and returns the new list.
func (r *Recorder) Record(ctx context.Context, entries []Entry) ([]Entry, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	current, err := r.store.Get(ctx)
	if err != nil {
		return nil, fmt.Errorf("load history: %w", err)
	}
	merged := Merge(current, entries, r.limit)
	if err := r.store.Put(ctx, merged); err != nil {
		return nil, fmt.Errorf("save history: %w", err)
	}
	r.logger.Debug("history recorded", "incoming", len(entries), "total", len(merged))
	return merged, nil
}

func (r *Recorder) List(ctx context.Context) ([]Entry, error) {
	return r.store.Get(ctx)
}
