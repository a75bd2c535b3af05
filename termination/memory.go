package termination

import (
	"context"
	"fmt"
	"sort"
	"sync"

	"github.com/warp/payroll-engine/generic"
)

// MemoryStore is the in-memory Store used by tests and the dev server.
type MemoryStore struct {
	mu    sync.RWMutex
	items map[string]Termination
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{items: make(map[string]Termination)}
}

func (m *MemoryStore) GetTermination(_ context.Context, org generic.OrganizationID, id string) (Termination, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	t, ok := m.items[id]
	if !ok || t.OrganizationID != org {
		return Termination{}, fmt.Errorf("termination %s: %w", id, generic.ErrNotFound)
	}
	return t.Clone(), nil
}

func (m *MemoryStore) ListTerminations(_ context.Context, org generic.OrganizationID) ([]Termination, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	var out []Termination
	for _, t := range m.items {
		if t.OrganizationID == org {
			out = append(out, t.Clone())
		}
	}
	sort.Slice(out, func(i, j int) bool {
		if !out[i].CreatedAt.Equal(out[j].CreatedAt) {
			return out[i].CreatedAt.Before(out[j].CreatedAt)
		}
		return out[i].ID < out[j].ID
	})
	return out, nil
}

func (m *MemoryStore) SaveTermination(_ context.Context, t Termination) (Termination, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	current, exists := m.items[t.ID]
	switch {
	case t.Version == 0 && exists:
		return Termination{}, fmt.Errorf("termination %s already exists: %w", t.ID, generic.ErrConcurrentModification)
	case t.Version != 0 && (!exists || current.Version != t.Version):
		return Termination{}, fmt.Errorf("termination %s version %d is stale: %w", t.ID, t.Version, generic.ErrConcurrentModification)
	}
	t = t.Clone()
	t.Version++
	m.items[t.ID] = t
	return t.Clone(), nil
}
