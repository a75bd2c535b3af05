package payrun

import (
	"context"
	"fmt"
	"sort"
	"sync"

	"github.com/warp/payroll-engine/generic"
)

// =============================================================================
// MEMORY STORE - Payruns (for testing/dev)
// =============================================================================

type MemoryStore struct {
	mu   sync.RWMutex
	runs map[string]Payrun
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{runs: make(map[string]Payrun)}
}

var _ Store = (*MemoryStore)(nil)

func (m *MemoryStore) GetPayrun(_ context.Context, org generic.OrganizationID, id string) (Payrun, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	run, ok := m.runs[id]
	if !ok || run.OrganizationID != org {
		return Payrun{}, fmt.Errorf("payrun %s: %w", id, generic.ErrNotFound)
	}
	return run.Clone(), nil
}

func (m *MemoryStore) ListPayruns(_ context.Context, org generic.OrganizationID) ([]Payrun, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	var out []Payrun
	for _, run := range m.runs {
		if run.OrganizationID == org {
			out = append(out, run.Clone())
		}
	}
	sort.Slice(out, func(i, j int) bool {
		if !out[i].Period.Start.Equal(out[j].Period.Start) {
			return out[i].Period.Start.Before(out[j].Period.Start)
		}
		return out[i].ID < out[j].ID
	})
	return out, nil
}

func (m *MemoryStore) SavePayrun(_ context.Context, run Payrun) (Payrun, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	current, exists := m.runs[run.ID]
	switch {
	case run.Version == 0 && exists:
		return Payrun{}, fmt.Errorf("payrun %s already exists: %w", run.ID, generic.ErrConcurrentModification)
	case run.Version != 0 && (!exists || current.Version != run.Version):
		return Payrun{}, fmt.Errorf("payrun %s version %d is stale: %w", run.ID, run.Version, generic.ErrConcurrentModification)
	}
	run = run.Clone()
	run.Version++
	m.runs[run.ID] = run
	return run.Clone(), nil
}
