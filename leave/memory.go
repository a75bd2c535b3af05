package leave

import (
	"context"
	"sort"
	"sync"

	"github.com/warp/payroll-engine/generic"
)

// =============================================================================
// MEMORY STORE - Leave types, balances and requests (for testing/dev)
// =============================================================================

type MemoryStore struct {
	mu       sync.RWMutex
	types    map[typeKey]LeaveType
	balances map[balanceKeyT]Balance
	requests map[string]Request
}

type typeKey struct {
	org generic.OrganizationID
	id  generic.PolicyID
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		types:    make(map[typeKey]LeaveType),
		balances: make(map[balanceKeyT]Balance),
		requests: make(map[string]Request),
	}
}

var (
	_ TypeStore    = (*MemoryStore)(nil)
	_ BalanceStore = (*MemoryStore)(nil)
	_ RequestStore = (*MemoryStore)(nil)
)

func (m *MemoryStore) GetLeaveType(_ context.Context, org generic.OrganizationID, id generic.PolicyID) (LeaveType, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	lt, ok := m.types[typeKey{org: org, id: id}]
	if !ok {
		return LeaveType{}, generic.ErrNotFound
	}
	return lt, nil
}

func (m *MemoryStore) ListLeaveTypes(_ context.Context, org generic.OrganizationID) ([]LeaveType, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	var out []LeaveType
	for k, lt := range m.types {
		if k.org == org {
			out = append(out, lt)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

func (m *MemoryStore) SaveLeaveType(_ context.Context, lt LeaveType) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.types[typeKey{org: lt.OrganizationID, id: lt.ID}] = lt
	return nil
}

func (m *MemoryStore) GetBalance(_ context.Context, employeeID generic.EntityID, leaveTypeID generic.PolicyID) (Balance, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	b, ok := m.balances[balanceKeyT{employee: employeeID, leaveType: leaveTypeID}]
	if !ok {
		return Balance{}, generic.ErrNotFound
	}
	return b, nil
}

func (m *MemoryStore) SaveBalance(_ context.Context, b Balance) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.balances[balanceKeyT{employee: b.EmployeeID, leaveType: b.LeaveTypeID}] = b
	return nil
}

func (m *MemoryStore) ListBalances(_ context.Context, employeeID generic.EntityID) ([]Balance, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	var out []Balance
	for k, b := range m.balances {
		if k.employee == employeeID {
			out = append(out, b)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].LeaveTypeID < out[j].LeaveTypeID })
	return out, nil
}

func (m *MemoryStore) GetRequest(_ context.Context, id string) (Request, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	r, ok := m.requests[id]
	if !ok {
		return Request{}, generic.ErrNotFound
	}
	return r, nil
}

func (m *MemoryStore) SaveRequest(_ context.Context, r Request) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.requests[r.ID] = r
	return nil
}

func (m *MemoryStore) ListRequests(_ context.Context, employeeID generic.EntityID) ([]Request, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	var out []Request
	for _, r := range m.requests {
		if r.EmployeeID == employeeID {
			out = append(out, r)
		}
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Start.Equal(out[j].Start) {
			return out[i].ID < out[j].ID
		}
		return out[i].Start.Before(out[j].Start)
	})
	return out, nil
}
