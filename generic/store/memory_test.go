package store_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/warp/staffing-ledger/generic"
	"github.com/warp/staffing-ledger/generic/store"
)

func alloc(id string, day int) generic.Allocation {
	return generic.Allocation{
		ID:                 generic.AllocationID(id),
		EmployeeID:         "emp-1",
		CompanyID:          "co-1",
		Date:               generic.NewDate(2024, time.March, day),
		PeriodType:         generic.PeriodFull,
		EmployeeAmount:     generic.MustParseMoney("100"),
		CompanyAmount:      generic.MustParseMoney("150"),
		EmployeeSettlement: generic.StatusPending,
		CompanySettlement:  generic.StatusPending,
	}
}

func TestMemory_CRUD(t *testing.T) {
	m := store.NewMemory()
	ctx := context.Background()

	require.NoError(t, m.InsertAllocation(ctx, alloc("b", 2)))
	require.NoError(t, m.InsertAllocation(ctx, alloc("a", 2)))
	require.NoError(t, m.InsertAllocation(ctx, alloc("c", 1)))

	all, err := m.ListAllocations(ctx, generic.AllocationFilter{})
	require.NoError(t, err)
	require.Len(t, all, 3)
	assert.Equal(t, generic.AllocationID("c"), all[0].ID, "ordered by date")
	assert.Equal(t, generic.AllocationID("a"), all[1].ID, "then by id")

	a := all[0]
	a.Notes = "changed"
	require.NoError(t, m.UpdateAllocation(ctx, a))
	got, err := m.GetAllocation(ctx, "c")
	require.NoError(t, err)
	assert.Equal(t, "changed", got.Notes)

	require.NoError(t, m.DeleteAllocation(ctx, "c"))
	_, err = m.GetAllocation(ctx, "c")
	assert.ErrorIs(t, err, generic.ErrAllocationNotFound)
	assert.ErrorIs(t, m.DeleteAllocation(ctx, "c"), generic.ErrAllocationNotFound)
	assert.ErrorIs(t, m.UpdateAllocation(ctx, alloc("zz", 1)), generic.ErrAllocationNotFound)
}

func TestMemory_WithTx_RollsBackOnError(t *testing.T) {
	m := store.NewMemory()
	ctx := context.Background()
	require.NoError(t, m.InsertAllocation(ctx, alloc("a", 1)))
	boom := errors.New("boom")

	err := m.WithTx(ctx, func(tx generic.Store) error {
		a, err := tx.GetAllocation(ctx, "a")
		require.NoError(t, err)
		a.Settle(generic.LegEmployee)
		require.NoError(t, tx.UpdateAllocation(ctx, a))
		require.NoError(t, tx.InsertBatch(ctx, generic.Batch{ID: "b1", SubjectType: generic.SubjectEmployee}))
		return boom
	})

	assert.ErrorIs(t, err, boom)
	a, err := m.GetAllocation(ctx, "a")
	require.NoError(t, err)
	assert.Equal(t, generic.StatusPending, a.EmployeeSettlement)
	_, err = m.GetBatch(ctx, "b1")
	assert.ErrorIs(t, err, generic.ErrBatchNotFound)
}

func TestMemory_BatchLinesAreCopied(t *testing.T) {
	m := store.NewMemory()
	ctx := context.Background()
	lines := []generic.BatchLine{{AllocationID: "a", Amount: generic.MustParseMoney("1")}}
	require.NoError(t, m.InsertBatch(ctx, generic.Batch{ID: "b1", SubjectType: generic.SubjectCompany, SubjectID: "co-1", Lines: lines}))

	lines[0].AllocationID = "mutated"
	got, err := m.GetBatch(ctx, "b1")
	require.NoError(t, err)
	assert.Equal(t, generic.AllocationID("a"), got.Lines[0].AllocationID)

	listed, err := m.ListBatches(ctx, generic.BatchFilter{SubjectType: generic.SubjectEmployee})
	require.NoError(t, err)
	assert.Empty(t, listed)
}

func TestMemory_RateCardsAndReset(t *testing.T) {
	m := store.NewMemory()
	ctx := context.Background()
	require.NoError(t, m.SaveEmployee(ctx, generic.EmployeeRateCard{EmployeeID: "emp-2", FullDayRate: generic.MustParseMoney("1")}))
	require.NoError(t, m.SaveEmployee(ctx, generic.EmployeeRateCard{EmployeeID: "emp-1", FullDayRate: generic.MustParseMoney("1")}))
	require.NoError(t, m.SaveCompany(ctx, generic.CompanyRateCard{CompanyID: "co-1", ServiceRate: generic.MustParseMoney("1")}))
	require.NoError(t, m.InsertAllocation(ctx, alloc("a", 1)))

	employees, err := m.ListEmployees(ctx)
	require.NoError(t, err)
	require.Len(t, employees, 2)
	assert.Equal(t, generic.EmployeeID("emp-1"), employees[0].EmployeeID)

	missing, err := m.CompanyRateCard(ctx, "co-9")
	require.NoError(t, err)
	assert.Nil(t, missing)

	require.NoError(t, m.Reset(ctx))
	companies, err := m.ListCompanies(ctx)
	require.NoError(t, err)
	assert.Empty(t, companies)
	all, err := m.ListAllocations(ctx, generic.AllocationFilter{})
	require.NoError(t, err)
	assert.Empty(t, all)
}
