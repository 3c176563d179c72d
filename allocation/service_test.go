package allocation_test

import (
	"context"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/warp/staffing-ledger/allocation"
	"github.com/warp/staffing-ledger/generic"
	"github.com/warp/staffing-ledger/generic/store"
	"github.com/warp/staffing-ledger/rates"
)

// =============================================================================
// TEST SETUP
// =============================================================================

func money(s string) decimal.Decimal { return generic.MustParseMoney(s) }

func amount(s string) *decimal.Decimal {
	d := money(s)
	return &d
}

func newTestService(t *testing.T) (*allocation.Service, *store.Memory) {
	t.Helper()
	mem := store.NewMemory()
	mem.PutEmployee(generic.EmployeeRateCard{EmployeeID: "emp-e", FullDayRate: money("15000")})
	mem.PutEmployee(generic.EmployeeRateCard{EmployeeID: "emp-h", FullDayRate: money("15000"), HalfDayRate: amount("8000")})
	mem.PutCompany(generic.CompanyRateCard{CompanyID: "co-c", ServiceRate: money("20000")})

	return allocation.NewService(mem, rates.NewResolver(mem), nil), mem
}

func march(day int) generic.Date { return generic.NewDate(2024, time.March, day) }

func settle(t *testing.T, mem *store.Memory, id generic.AllocationID, leg generic.Leg) {
	t.Helper()
	a, err := mem.GetAllocation(context.Background(), id)
	require.NoError(t, err)
	a.Settle(leg)
	require.NoError(t, mem.UpdateAllocation(context.Background(), a))
}

// =============================================================================
// CREATE
// =============================================================================

func TestCreate_HalfDayDefaultsToHalfOfFullRate(t *testing.T) {
	// GIVEN: employee E with fullDayRate 15000 and no half-day rate
	// WHEN: creating a HALF allocation without explicit amounts
	// THEN: employeeAmount is 7500 and the company leg uses its service rate
	svc, _ := newTestService(t)

	a, err := svc.Create(context.Background(), allocation.CreateInput{
		EmployeeID: "emp-e",
		CompanyID:  "co-c",
		Date:       march(4),
		PeriodType: generic.PeriodHalf,
	})

	require.NoError(t, err)
	assert.True(t, money("7500").Equal(a.EmployeeAmount), "employee amount %s", a.EmployeeAmount)
	assert.True(t, money("20000").Equal(a.CompanyAmount), "company amount %s", a.CompanyAmount)
	assert.Equal(t, generic.StatusPending, a.EmployeeSettlement)
	assert.Equal(t, generic.StatusPending, a.CompanySettlement)
	assert.NotEmpty(t, a.ID)
}

func TestCreate_DefaultsToFullDay(t *testing.T) {
	svc, _ := newTestService(t)

	a, err := svc.Create(context.Background(), allocation.CreateInput{EmployeeID: "emp-h", CompanyID: "co-c", Date: march(4)})

	require.NoError(t, err)
	assert.Equal(t, generic.PeriodFull, a.PeriodType)
	assert.True(t, money("15000").Equal(a.EmployeeAmount))
}

func TestCreate_ManualOverrideWins(t *testing.T) {
	svc, mem := newTestService(t)
	ctx := context.Background()

	a, err := svc.Create(ctx, allocation.CreateInput{
		EmployeeID:     "emp-e",
		CompanyID:      "co-c",
		Date:           march(5),
		EmployeeAmount: amount("9999.99"),
		CompanyAmount:  amount("12345"),
		Location:       "Warehouse 2",
		Notes:          "night shift",
	})
	require.NoError(t, err)

	stored, err := mem.GetAllocation(ctx, a.ID)
	require.NoError(t, err)
	assert.True(t, money("9999.99").Equal(stored.EmployeeAmount))
	assert.True(t, money("12345").Equal(stored.CompanyAmount))
	assert.Equal(t, "Warehouse 2", stored.Location)
	assert.Equal(t, "night shift", stored.Notes)
}

func TestCreate_OverrideSkipsRateLookup(t *testing.T) {
	// Unknown employee and company, both amounts supplied: no rate needed.
	svc, _ := newTestService(t)

	_, err := svc.Create(context.Background(), allocation.CreateInput{
		EmployeeID:     "emp-unknown",
		CompanyID:      "co-unknown",
		Date:           march(5),
		EmployeeAmount: amount("100"),
		CompanyAmount:  amount("150"),
	})

	assert.NoError(t, err)
}

func TestCreate_NonPositiveAmount_Rejected(t *testing.T) {
	svc, mem := newTestService(t)
	ctx := context.Background()

	for _, bad := range []string{"0", "-10", "0.001"} {
		_, err := svc.Create(ctx, allocation.CreateInput{
			EmployeeID:     "emp-e",
			CompanyID:      "co-c",
			Date:           march(6),
			EmployeeAmount: amount(bad),
		})
		assert.ErrorIs(t, err, generic.ErrValidation, "amount %s", bad)

		_, err = svc.Create(ctx, allocation.CreateInput{
			EmployeeID:    "emp-e",
			CompanyID:     "co-c",
			Date:          march(6),
			CompanyAmount: amount(bad),
		})
		assert.ErrorIs(t, err, generic.ErrValidation, "amount %s", bad)
	}

	all, err := mem.ListAllocations(ctx, generic.AllocationFilter{})
	require.NoError(t, err)
	assert.Empty(t, all, "no partial allocation is created")
}

func TestCreate_MissingRate_IsRateUnavailable(t *testing.T) {
	svc, mem := newTestService(t)
	ctx := context.Background()

	_, err := svc.Create(ctx, allocation.CreateInput{EmployeeID: "emp-missing", CompanyID: "co-c", Date: march(7)})
	assert.ErrorIs(t, err, generic.ErrRateUnavailable)

	_, err = svc.Create(ctx, allocation.CreateInput{EmployeeID: "emp-e", CompanyID: "co-missing", Date: march(7)})
	assert.ErrorIs(t, err, generic.ErrRateUnavailable)

	all, err := mem.ListAllocations(ctx, generic.AllocationFilter{})
	require.NoError(t, err)
	assert.Empty(t, all)
}

func TestCreate_MissingReferences_Rejected(t *testing.T) {
	svc, _ := newTestService(t)
	ctx := context.Background()

	cases := []allocation.CreateInput{
		{CompanyID: "co-c", Date: march(1)},
		{EmployeeID: "emp-e", Date: march(1)},
		{EmployeeID: "emp-e", CompanyID: "co-c"},
		{EmployeeID: "emp-e", CompanyID: "co-c", Date: march(1), PeriodType: "NIGHT"},
	}
	for i, in := range cases {
		_, err := svc.Create(ctx, in)
		assert.ErrorIs(t, err, generic.ErrValidation, "case %d", i)
	}
}

// =============================================================================
// UPDATE
// =============================================================================

func TestUpdate_PendingAmountsEditable(t *testing.T) {
	svc, _ := newTestService(t)
	ctx := context.Background()
	a, err := svc.Create(ctx, allocation.CreateInput{EmployeeID: "emp-e", CompanyID: "co-c", Date: march(8)})
	require.NoError(t, err)

	updated, err := svc.Update(ctx, a.ID, generic.AllocationPatch{
		EmployeeAmount: amount("14000"),
		CompanyAmount:  amount("21000"),
	})

	require.NoError(t, err)
	assert.True(t, money("14000").Equal(updated.EmployeeAmount))
	assert.True(t, money("21000").Equal(updated.CompanyAmount))
}

func TestUpdate_SettledLegAmount_Locked(t *testing.T) {
	// GIVEN: an allocation whose company leg is SETTLED
	// WHEN: changing companyAmount
	// THEN: SettlementLocked, and nothing changes
	svc, mem := newTestService(t)
	ctx := context.Background()
	a, err := svc.Create(ctx, allocation.CreateInput{EmployeeID: "emp-e", CompanyID: "co-c", Date: march(8)})
	require.NoError(t, err)
	settle(t, mem, a.ID, generic.LegCompany)

	_, err = svc.Update(ctx, a.ID, generic.AllocationPatch{
		EmployeeAmount: amount("1"),
		CompanyAmount:  amount("1"),
	})

	assert.ErrorIs(t, err, generic.ErrSettlementLocked)
	var locked *generic.SettlementLockedError
	require.ErrorAs(t, err, &locked)
	assert.Equal(t, generic.LegCompany, locked.Leg)

	stored, err := mem.GetAllocation(ctx, a.ID)
	require.NoError(t, err)
	assert.True(t, money("15000").Equal(stored.EmployeeAmount), "pending leg not half-applied")
	assert.True(t, money("20000").Equal(stored.CompanyAmount))
}

func TestUpdate_SettledLeg_OtherLegAndFieldsStillEditable(t *testing.T) {
	svc, mem := newTestService(t)
	ctx := context.Background()
	a, err := svc.Create(ctx, allocation.CreateInput{EmployeeID: "emp-e", CompanyID: "co-c", Date: march(8)})
	require.NoError(t, err)
	settle(t, mem, a.ID, generic.LegEmployee)

	notes := "moved"
	newDate := march(9)
	half := generic.PeriodHalf
	updated, err := svc.Update(ctx, a.ID, generic.AllocationPatch{
		EmployeeAmount: amount("15000"), // unchanged value is not a change
		CompanyAmount:  amount("19000"),
		Notes:          &notes,
		Date:           &newDate,
		PeriodType:     &half,
	})

	require.NoError(t, err)
	assert.True(t, money("19000").Equal(updated.CompanyAmount))
	assert.Equal(t, "moved", updated.Notes)
	assert.True(t, newDate.Equal(updated.Date))
	assert.Equal(t, generic.PeriodHalf, updated.PeriodType)
	assert.Equal(t, generic.StatusSettled, updated.EmployeeSettlement)
}

func TestUpdate_NonPositiveAmount_Rejected(t *testing.T) {
	svc, _ := newTestService(t)
	ctx := context.Background()
	a, err := svc.Create(ctx, allocation.CreateInput{EmployeeID: "emp-e", CompanyID: "co-c", Date: march(8)})
	require.NoError(t, err)

	_, err = svc.Update(ctx, a.ID, generic.AllocationPatch{EmployeeAmount: amount("0")})

	assert.ErrorIs(t, err, generic.ErrValidation)
}

func TestUpdate_Unknown_NotFound(t *testing.T) {
	svc, _ := newTestService(t)

	_, err := svc.Update(context.Background(), "nope", generic.AllocationPatch{})

	assert.True(t, generic.IsNotFound(err))
}

// =============================================================================
// DELETE
// =============================================================================

func TestDelete_PendingAllowed_SettledLocked(t *testing.T) {
	svc, mem := newTestService(t)
	ctx := context.Background()
	pending, err := svc.Create(ctx, allocation.CreateInput{EmployeeID: "emp-e", CompanyID: "co-c", Date: march(10)})
	require.NoError(t, err)
	settled, err := svc.Create(ctx, allocation.CreateInput{EmployeeID: "emp-e", CompanyID: "co-c", Date: march(11)})
	require.NoError(t, err)
	settle(t, mem, settled.ID, generic.LegEmployee)

	require.NoError(t, svc.Delete(ctx, pending.ID))
	_, err = svc.Get(ctx, pending.ID)
	assert.ErrorIs(t, err, generic.ErrAllocationNotFound)

	err = svc.Delete(ctx, settled.ID)
	assert.ErrorIs(t, err, generic.ErrSettlementLocked)
	_, err = svc.Get(ctx, settled.ID)
	assert.NoError(t, err, "settled allocation survives")
}

// =============================================================================
// LIST
// =============================================================================

func TestList_FilterAndOrder(t *testing.T) {
	svc, mem := newTestService(t)
	ctx := context.Background()
	mem.PutEmployee(generic.EmployeeRateCard{EmployeeID: "emp-x", FullDayRate: money("100")})

	mk := func(emp generic.EmployeeID, day int) generic.Allocation {
		a, err := svc.Create(ctx, allocation.CreateInput{EmployeeID: emp, CompanyID: "co-c", Date: march(day)})
		require.NoError(t, err)
		return a
	}
	late := mk("emp-e", 20)
	early := mk("emp-e", 2)
	sameDay1 := mk("emp-e", 10)
	sameDay2 := mk("emp-e", 10)
	mk("emp-x", 10)
	settle(t, mem, late.ID, generic.LegEmployee)

	from, to := march(1), march(31)
	got, err := svc.List(ctx, generic.AllocationFilter{
		EmployeeID:         "emp-e",
		From:               &from,
		To:                 &to,
		EmployeeSettlement: generic.StatusPending,
	})
	require.NoError(t, err)

	require.Len(t, got, 3)
	assert.Equal(t, early.ID, got[0].ID)
	first, second := sameDay1.ID, sameDay2.ID
	if second < first {
		first, second = second, first
	}
	assert.Equal(t, first, got[1].ID, "same-date tie broken by id")
	assert.Equal(t, second, got[2].ID)
}

func TestList_InvalidRange(t *testing.T) {
	svc, _ := newTestService(t)
	from, to := march(10), march(1)

	_, err := svc.List(context.Background(), generic.AllocationFilter{From: &from, To: &to})

	assert.ErrorIs(t, err, generic.ErrValidation)
}
