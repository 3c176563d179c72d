/*
store.go - Persistence interfaces for allocations, batches and rate cards

PURPOSE:
  Defines the boundary between the ledger rules and the database. Rules
  live in allocation/ and settlement/; a Store only reads and writes rows.
  Different implementations can use SQLite or in-memory storage.

KEY INTERFACES:
  Store:          Allocation and batch persistence
  TxStore:        Store plus an atomic unit of work
  RateCardSource: Read-only employee and company rate lookups

ATOMIC UNITS OF WORK:
  WithTx() runs fn against a transactional view of the store. If fn returns
  an error nothing it wrote persists. Batch creation relies on this: the
  batch row and every settlement flip commit together or not at all.
  Implementations serialize units of work, so two WithTx calls never
  observe the same allocation mid-transition.

IMPLEMENTATIONS:
  - store/sqlite/sqlite.go: SQLite via database/sql
  - generic/store/memory.go: In-memory for tests and demos

SEE ALSO:
  - settlement/builder.go: The only caller of WithTx
*/
package generic

import "context"

// =============================================================================
// STORE - Allocation and batch persistence
// =============================================================================

// Store persists allocations and batches.
type Store interface {
	// GetAllocation returns the allocation or an error wrapping ErrAllocationNotFound.
	GetAllocation(ctx context.Context, id AllocationID) (Allocation, error)

	// ListAllocations returns matching allocations ordered by date, then id.
	ListAllocations(ctx context.Context, filter AllocationFilter) ([]Allocation, error)

	InsertAllocation(ctx context.Context, a Allocation) error

	// UpdateAllocation replaces the stored row with the same id.
	UpdateAllocation(ctx context.Context, a Allocation) error

	DeleteAllocation(ctx context.Context, id AllocationID) error

	// InsertBatch writes a batch with its lines.
	InsertBatch(ctx context.Context, b Batch) error

	// GetBatch returns the batch or an error wrapping ErrBatchNotFound.
	GetBatch(ctx context.Context, id BatchID) (Batch, error)

	// ListBatches returns matching batches ordered by issued date, then id.
	ListBatches(ctx context.Context, filter BatchFilter) ([]Batch, error)
}

// TxStore wraps Store with transaction support.
type TxStore interface {
	Store

	// WithTx executes fn within a transaction.
	// If fn returns error, transaction is rolled back.
	// If fn returns nil, transaction is committed.
	WithTx(ctx context.Context, fn func(Store) error) error
}

// =============================================================================
// RATE CARDS
// =============================================================================

// RateCardSource looks up rate cards. A missing card is reported as
// (nil, nil), not as an error.
type RateCardSource interface {
	EmployeeRateCard(ctx context.Context, id EmployeeID) (*EmployeeRateCard, error)
	CompanyRateCard(ctx context.Context, id CompanyID) (*CompanyRateCard, error)
}
