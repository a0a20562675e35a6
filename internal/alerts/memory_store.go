package alerts

import (
	"context"
	"sort"
	"sync"
)

// MemoryStore is an in-memory alert store for demo/development mode.
type MemoryStore struct {
	alerts map[string]*Alert
	mu     sync.RWMutex
}

// NewMemoryStore creates a new in-memory alert store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		alerts: make(map[string]*Alert),
	}
}

func (m *MemoryStore) Create(ctx context.Context, a *Alert) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	cp := *a
	m.alerts[a.ID] = &cp
	return nil
}

func (m *MemoryStore) Get(ctx context.Context, id string) (*Alert, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	a, ok := m.alerts[id]
	if !ok {
		return nil, ErrAlertNotFound
	}
	// Copies share the AcknowledgedAt/ResolvedAt pointers; callers
	// replace those wholesale, never mutate through them.
	cp := *a
	return &cp, nil
}

func (m *MemoryStore) Update(ctx context.Context, a *Alert) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if _, ok := m.alerts[a.ID]; !ok {
		return ErrAlertNotFound
	}
	cp := *a
	m.alerts[a.ID] = &cp
	return nil
}

func (m *MemoryStore) FindLiveByUser(ctx context.Context, userID string) (*Alert, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	var newest *Alert
	for _, a := range m.alerts {
		if a.UserID != userID || !a.Live() {
			continue
		}
		if newest == nil || a.CreatedAt.After(newest.CreatedAt) {
			newest = a
		}
	}
	if newest == nil {
		return nil, ErrAlertNotFound
	}
	cp := *newest
	return &cp, nil
}

func (m *MemoryStore) List(ctx context.Context, q ListQuery) ([]*Alert, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	var result []*Alert
	for _, a := range m.alerts {
		if q.Status != "" && a.Status != q.Status {
			continue
		}
		if q.UserID != "" && a.UserID != q.UserID {
			continue
		}
		cp := *a
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

func (m *MemoryStore) CountLive(ctx context.Context) (int, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	n := 0
	for _, a := range m.alerts {
		if a.Live() {
			n++
		}
	}
	return n, nil
}

// Compile-time assertion that MemoryStore implements Store.
var _ Store = (*MemoryStore)(nil)
