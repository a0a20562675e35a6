package audit

import (
	"context"
	"sort"
	"sync"
)

// MemoryStore is an in-memory audit store for demo/development mode.
type MemoryStore struct {
	records []*Record
	mu      sync.RWMutex
}

// NewMemoryStore creates a new in-memory audit store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{}
}

func (m *MemoryStore) Create(_ context.Context, r *Record) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	cp := *r
	m.records = append(m.records, &cp)
	return nil
}

func (m *MemoryStore) List(_ context.Context, q ListQuery) ([]*Record, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	var result []*Record
	for _, r := range m.records {
		if q.Actor != "" && r.Actor != q.Actor {
			continue
		}
		if q.Action != "" && r.Action != q.Action {
			continue
		}
		if q.UserID != "" && r.UserID != q.UserID {
			continue
		}
		cp := *r
		result = append(result, &cp)
	}

	sort.Slice(result, func(i, j int) bool {
		return result[i].CreatedAt.After(result[j].CreatedAt)
	})

	if q.Limit > 0 && len(result) > q.Limit {
		result = result[:q.Limit]
	}
	return result, nil
}

// Compile-time assertion that MemoryStore implements Store.
var _ Store = (*MemoryStore)(nil)
