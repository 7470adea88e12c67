package refunds

import (
	"context"
	"sort"
	"sync"
)

// MemoryStore is an in-process Repository. Conditional updates are a
// compare-and-swap under a single mutex.
type MemoryStore struct {
	mu    sync.RWMutex
	items map[string]*RefundRequest
	keys  map[string]string
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		items: map[string]*RefundRequest{},
		keys:  map[string]string{},
	}
}

func (m *MemoryStore) Insert(ctx context.Context, r *RefundRequest, idempotencyKey string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	if idempotencyKey != "" {
		if _, ok := m.keys[idempotencyKey]; ok {
			return ErrIdempotencyConflict
		}
	}
	if _, ok := m.items[r.ID]; ok {
		return ErrConditionFailed
	}
	m.items[r.ID] = r.Clone()
	if idempotencyKey != "" {
		m.keys[idempotencyKey] = r.ID
	}
	return nil
}

func (m *MemoryStore) FindOne(ctx context.Context, id string, scope Scope) (*RefundRequest, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	m.mu.RLock()
	defer m.mu.RUnlock()
	r, ok := m.items[id]
	if !ok || !scope.Matches(r) {
		return nil, nil
	}
	return r.Clone(), nil
}

func (m *MemoryStore) Find(ctx context.Context, f Filter) ([]*RefundRequest, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := make([]*RefundRequest, 0, len(m.items))
	for _, r := range m.items {
		if f.Matches(r) {
			out = append(out, r.Clone())
		}
	}
	sort.Slice(out, func(i, j int) bool {
		return out[i].CreatedAt.After(out[j].CreatedAt)
	})
	return out, nil
}

func (m *MemoryStore) FindByIDAndUpdate(ctx context.Context, id string, scope Scope, patch Patch, stamp Stamp, requirePending bool) (*RefundRequest, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	current, ok := m.items[id]
	if !ok || !scope.Matches(current) {
		return nil, ErrConditionFailed
	}
	if requirePending && current.Status != StatusPending {
		return nil, ErrConditionFailed
	}
	next := current.Clone()
	patch.Apply(next, stamp)
	m.items[id] = next
	return next.Clone(), nil
}

func (m *MemoryStore) DeleteByID(ctx context.Context, id string) (bool, error) {
	if err := ctx.Err(); err != nil {
		return false, err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.items[id]; !ok {
		return false, nil
	}
	delete(m.items, id)
	return true, nil
}
