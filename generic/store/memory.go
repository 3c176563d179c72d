// Package store provides Store implementations.
package store

import (
	"context"
	"sort"
	"sync"

	"github.com/warp/staffing-ledger/generic"
)

// =============================================================================
// MEMORY STORE - In-memory implementation (for testing/dev)
// =============================================================================

// Memory implements generic.TxStore and generic.RateCardSource in memory.
type Memory struct {
	mu          sync.RWMutex
	allocations map[generic.AllocationID]generic.Allocation
	batches     map[generic.BatchID]generic.Batch
	employees   map[generic.EmployeeID]generic.EmployeeRateCard
	companies   map[generic.CompanyID]generic.CompanyRateCard
}

func NewMemory() *Memory {
	return &Memory{
		allocations: make(map[generic.AllocationID]generic.Allocation),
		batches:     make(map[generic.BatchID]generic.Batch),
		employees:   make(map[generic.EmployeeID]generic.EmployeeRateCard),
		companies:   make(map[generic.CompanyID]generic.CompanyRateCard),
	}
}

func (m *Memory) GetAllocation(_ context.Context, id generic.AllocationID) (generic.Allocation, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.getAllocationLocked(id)
}

func (m *Memory) ListAllocations(_ context.Context, filter generic.AllocationFilter) ([]generic.Allocation, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.listAllocationsLocked(filter), nil
}

func (m *Memory) InsertAllocation(_ context.Context, a generic.Allocation) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.allocations[a.ID] = a
	return nil
}

func (m *Memory) UpdateAllocation(_ context.Context, a generic.Allocation) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.updateAllocationLocked(a)
}

func (m *Memory) DeleteAllocation(_ context.Context, id generic.AllocationID) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.deleteAllocationLocked(id)
}

func (m *Memory) InsertBatch(_ context.Context, b generic.Batch) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.insertBatchLocked(b)
	return nil
}

func (m *Memory) GetBatch(_ context.Context, id generic.BatchID) (generic.Batch, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.getBatchLocked(id)
}

func (m *Memory) ListBatches(_ context.Context, filter generic.BatchFilter) ([]generic.Batch, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.listBatchesLocked(filter), nil
}

// -----------------------------------------------------------------------------
// Locked helpers, shared with the transactional view
// -----------------------------------------------------------------------------

func (m *Memory) getAllocationLocked(id generic.AllocationID) (generic.Allocation, error) {
	a, ok := m.allocations[id]
	if !ok {
		return generic.Allocation{}, &generic.NotFoundError{Kind: generic.ErrAllocationNotFound, ID: string(id)}
	}
	return a, nil
}

func (m *Memory) listAllocationsLocked(filter generic.AllocationFilter) []generic.Allocation {
	result := make([]generic.Allocation, 0)
	for _, a := range m.allocations {
		if filter.Matches(a) {
			result = append(result, a)
		}
	}
	sort.Slice(result, func(i, j int) bool {
		if !result[i].Date.Equal(result[j].Date) {
			return result[i].Date.Before(result[j].Date)
		}
		return result[i].ID < result[j].ID
	})
	return result
}

func (m *Memory) updateAllocationLocked(a generic.Allocation) error {
	if _, ok := m.allocations[a.ID]; !ok {
		return &generic.NotFoundError{Kind: generic.ErrAllocationNotFound, ID: string(a.ID)}
	}
	m.allocations[a.ID] = a
	return nil
}

func (m *Memory) deleteAllocationLocked(id generic.AllocationID) error {
	if _, ok := m.allocations[id]; !ok {
		return &generic.NotFoundError{Kind: generic.ErrAllocationNotFound, ID: string(id)}
	}
	delete(m.allocations, id)
	return nil
}

func (m *Memory) insertBatchLocked(b generic.Batch) {
	b.Lines = append([]generic.BatchLine(nil), b.Lines...)
	m.batches[b.ID] = b
}

func (m *Memory) getBatchLocked(id generic.BatchID) (generic.Batch, error) {
	b, ok := m.batches[id]
	if !ok {
		return generic.Batch{}, &generic.NotFoundError{Kind: generic.ErrBatchNotFound, ID: string(id)}
	}
	b.Lines = append([]generic.BatchLine(nil), b.Lines...)
	return b, nil
}

func (m *Memory) listBatchesLocked(filter generic.BatchFilter) []generic.Batch {
	result := make([]generic.Batch, 0)
	for _, b := range m.batches {
		if filter.Matches(b) {
			b.Lines = append([]generic.BatchLine(nil), b.Lines...)
			result = append(result, b)
		}
	}
	sort.Slice(result, func(i, j int) bool {
		if !result[i].IssuedDate.Equal(result[j].IssuedDate) {
			return result[i].IssuedDate.Before(result[j].IssuedDate)
		}
		return result[i].ID < result[j].ID
	})
	return result
}

// =============================================================================
// RATE CARDS
// =============================================================================

func (m *Memory) PutEmployee(card generic.EmployeeRateCard) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.employees[card.EmployeeID] = card
}

func (m *Memory) PutCompany(card generic.CompanyRateCard) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.companies[card.CompanyID] = card
}

func (m *Memory) SaveEmployee(_ context.Context, card generic.EmployeeRateCard) error {
	m.PutEmployee(card)
	return nil
}

func (m *Memory) SaveCompany(_ context.Context, card generic.CompanyRateCard) error {
	m.PutCompany(card)
	return nil
}

// ListEmployees returns the employee rate cards ordered by id.
func (m *Memory) ListEmployees(_ context.Context) ([]generic.EmployeeRateCard, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	result := make([]generic.EmployeeRateCard, 0, len(m.employees))
	for _, c := range m.employees {
		result = append(result, c)
	}
	sort.Slice(result, func(i, j int) bool { return result[i].EmployeeID < result[j].EmployeeID })
	return result, nil
}

// ListCompanies returns the company rate cards ordered by id.
func (m *Memory) ListCompanies(_ context.Context) ([]generic.CompanyRateCard, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	result := make([]generic.CompanyRateCard, 0, len(m.companies))
	for _, c := range m.companies {
		result = append(result, c)
	}
	sort.Slice(result, func(i, j int) bool { return result[i].CompanyID < result[j].CompanyID })
	return result, nil
}

// Reset drops every record.
func (m *Memory) Reset(_ context.Context) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.allocations = make(map[generic.AllocationID]generic.Allocation)
	m.batches = make(map[generic.BatchID]generic.Batch)
	m.employees = make(map[generic.EmployeeID]generic.EmployeeRateCard)
	m.companies = make(map[generic.CompanyID]generic.CompanyRateCard)
	return nil
}

func (m *Memory) EmployeeRateCard(_ context.Context, id generic.EmployeeID) (*generic.EmployeeRateCard, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	card, ok := m.employees[id]
	if !ok {
		return nil, nil
	}
	return &card, nil
}

func (m *Memory) CompanyRateCard(_ context.Context, id generic.CompanyID) (*generic.CompanyRateCard, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	card, ok := m.companies[id]
	if !ok {
		return nil, nil
	}
	return &card, nil
}

// =============================================================================
// TRANSACTIONAL MEMORY STORE
// =============================================================================

// WithTx executes fn within a transaction.
// For memory store, this is simulated with a snapshot + rollback on error.
// The write lock is held for the whole unit of work, so units serialize.
func (m *Memory) WithTx(_ context.Context, fn func(generic.Store) error) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	snapshot := m.snapshot()

	if err := fn(&txMemoryView{parent: m}); err != nil {
		m.restore(snapshot)
		return err
	}
	return nil
}

type memorySnapshot struct {
	allocations map[generic.AllocationID]generic.Allocation
	batches     map[generic.BatchID]generic.Batch
}

func (m *Memory) snapshot() memorySnapshot {
	allocs := make(map[generic.AllocationID]generic.Allocation, len(m.allocations))
	for k, v := range m.allocations {
		allocs[k] = v
	}
	batches := make(map[generic.BatchID]generic.Batch, len(m.batches))
	for k, v := range m.batches {
		batches[k] = v
	}
	return memorySnapshot{allocations: allocs, batches: batches}
}

func (m *Memory) restore(s memorySnapshot) {
	m.allocations = s.allocations
	m.batches = s.batches
}

// txMemoryView runs under the parent's write lock.
type txMemoryView struct {
	parent *Memory
}

func (tv *txMemoryView) GetAllocation(_ context.Context, id generic.AllocationID) (generic.Allocation, error) {
	return tv.parent.getAllocationLocked(id)
}

func (tv *txMemoryView) ListAllocations(_ context.Context, filter generic.AllocationFilter) ([]generic.Allocation, error) {
	return tv.parent.listAllocationsLocked(filter), nil
}

func (tv *txMemoryView) InsertAllocation(_ context.Context, a generic.Allocation) error {
	tv.parent.allocations[a.ID] = a
	return nil
}

func (tv *txMemoryView) UpdateAllocation(_ context.Context, a generic.Allocation) error {
	return tv.parent.updateAllocationLocked(a)
}

func (tv *txMemoryView) DeleteAllocation(_ context.Context, id generic.AllocationID) error {
	return tv.parent.deleteAllocationLocked(id)
}

func (tv *txMemoryView) InsertBatch(_ context.Context, b generic.Batch) error {
	tv.parent.insertBatchLocked(b)
	return nil
}

func (tv *txMemoryView) GetBatch(_ context.Context, id generic.BatchID) (generic.Batch, error) {
	return tv.parent.getBatchLocked(id)
}

func (tv *txMemoryView) ListBatches(_ context.Context, filter generic.BatchFilter) ([]generic.Batch, error) {
	return tv.parent.listBatchesLocked(filter), nil
}
