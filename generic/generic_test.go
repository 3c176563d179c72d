package generic_test

import (
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/warp/staffing-ledger/generic"
)

// =============================================================================
// DATE & PERIOD
// =============================================================================

func TestDate_ParseAndFormat(t *testing.T) {
	d, err := generic.ParseDate("2024-02-29")
	require.NoError(t, err)

	assert.True(t, d.Equal(generic.NewDate(2024, time.February, 29)))
	assert.Equal(t, "2024-02-29", d.String())
	assert.Equal(t, time.Thursday, d.Weekday())
	assert.Equal(t, "2024-03-01", d.AddDays(1).String())

	_, err = generic.ParseDate("2023-02-29")
	assert.Error(t, err, "not a leap year")
	_, err = generic.ParseDate("29/02/2024")
	assert.Error(t, err)

	assert.Equal(t, "", generic.Date{}.String())
	assert.True(t, generic.Date{}.IsZero())
}

func TestDate_DateOfDropsTimeOfDay(t *testing.T) {
	ts := time.Date(2024, time.March, 4, 23, 59, 0, 0, time.UTC)

	assert.True(t, generic.DateOf(ts).Equal(generic.NewDate(2024, time.March, 4)))
	assert.Equal(t, 1, generic.DaysBetween(generic.NewDate(2024, 3, 4), generic.NewDate(2024, 3, 5)))
}

func TestEndOfMonth(t *testing.T) {
	cases := map[string]generic.Date{
		"2024-02-29": generic.EndOfMonth(2024, time.February),
		"2023-02-28": generic.EndOfMonth(2023, time.February),
		"2024-12-31": generic.EndOfMonth(2024, time.December),
		"2024-04-30": generic.EndOfMonth(2024, time.April),
	}
	for want, got := range cases {
		assert.Equal(t, want, got.String())
	}
}

func TestNewPeriod(t *testing.T) {
	start := generic.NewDate(2024, time.March, 1)
	end := generic.NewDate(2024, time.March, 31)

	p, err := generic.NewPeriod(start, end)
	require.NoError(t, err)
	assert.True(t, p.Contains(start))
	assert.True(t, p.Contains(end), "end is inclusive")
	assert.False(t, p.Contains(end.AddDays(1)))
	assert.Len(t, p.Days(), 31)

	single, err := generic.NewPeriod(start, start)
	require.NoError(t, err)
	assert.Len(t, single.Days(), 1)

	_, err = generic.NewPeriod(end, start)
	assert.ErrorIs(t, err, generic.ErrValidation)
	_, err = generic.NewPeriod(generic.Date{}, end)
	assert.ErrorIs(t, err, generic.ErrValidation)
}

func TestPeriod_PreviousMonth(t *testing.T) {
	assert.Equal(t, generic.MonthPeriod(2023, time.December), generic.MonthPeriod(2024, time.January).PreviousMonth())
	assert.Equal(t, generic.MonthPeriod(2024, time.February), generic.MonthPeriod(2024, time.March).PreviousMonth())
}

// =============================================================================
// ALLOCATIONS & FILTERS
// =============================================================================

func testAllocation() generic.Allocation {
	return generic.Allocation{
		ID:                 "a1",
		EmployeeID:         "emp-1",
		CompanyID:          "co-1",
		Date:               generic.NewDate(2024, time.March, 10),
		PeriodType:         generic.PeriodFull,
		EmployeeAmount:     generic.MustParseMoney("150"),
		CompanyAmount:      generic.MustParseMoney("200"),
		EmployeeSettlement: generic.StatusPending,
		CompanySettlement:  generic.StatusPending,
	}
}

func TestAllocation_LegAccessors(t *testing.T) {
	a := testAllocation()

	assert.Equal(t, generic.LegEmployee, generic.SubjectEmployee.Leg())
	assert.Equal(t, generic.LegCompany, generic.SubjectCompany.Leg())
	assert.True(t, generic.MustParseMoney("200").Equal(a.Amount(generic.LegCompany)))
	assert.True(t, a.BelongsTo(generic.SubjectCompany, "co-1"))
	assert.False(t, a.BelongsTo(generic.SubjectEmployee, "co-1"))
	assert.False(t, a.IsSettled())

	a.Settle(generic.LegCompany)
	assert.Equal(t, generic.StatusSettled, a.Status(generic.LegCompany))
	assert.Equal(t, generic.StatusPending, a.Status(generic.LegEmployee), "legs are independent")
	assert.True(t, a.IsSettled())
}

func TestAllocationFilter_Matches(t *testing.T) {
	a := testAllocation()
	march := generic.MonthPeriod(2024, time.March)
	april := generic.MonthPeriod(2024, time.April)

	assert.True(t, generic.AllocationFilter{}.Matches(a))
	assert.True(t, march.Filter().Matches(a))
	assert.False(t, april.Filter().Matches(a))
	assert.False(t, generic.AllocationFilter{CompanyID: "co-2"}.Matches(a))
	assert.True(t, generic.AllocationFilter{EmployeeID: "emp-1", CompanySettlement: generic.StatusPending}.Matches(a))
	assert.False(t, generic.AllocationFilter{EmployeeSettlement: generic.StatusSettled}.Matches(a))
}

func TestSumMoney_IsExact(t *testing.T) {
	// 0.1 + 0.2 style drift must not appear.
	total := generic.SumMoney(generic.MustParseMoney("0.10"), generic.MustParseMoney("0.20"), generic.MustParseMoney("20000.33"))

	assert.Equal(t, "20000.63", total.StringFixed(2))
	assert.True(t, generic.SumMoney().IsZero())
	assert.Equal(t, "7500.01", generic.RoundMoney(generic.MustParseMoney("7500.005")).String())
}

// =============================================================================
// ERRORS
// =============================================================================

func TestErrorPredicates(t *testing.T) {
	wrapped := fmt.Errorf("outer: %w", &generic.SettlementConflictError{AllocationID: "a1", Leg: generic.LegCompany})

	assert.True(t, generic.IsConflict(wrapped))
	assert.True(t, errors.Is(wrapped, generic.ErrSettlementConflict))
	assert.False(t, generic.IsClientError(wrapped))

	notFound := &generic.NotFoundError{Kind: generic.ErrAllocationNotFound, ID: "a9"}
	assert.True(t, generic.IsNotFound(notFound))
	assert.Contains(t, notFound.Error(), "a9")

	assert.True(t, generic.IsClientError(&generic.RateUnavailableError{SubjectType: generic.SubjectEmployee, SubjectID: "e"}))
	assert.True(t, generic.IsClientError(generic.ErrEmptySelection))
	assert.True(t, generic.IsConflict(&generic.SettlementLockedError{AllocationID: "a1", Leg: generic.LegEmployee, Op: "delete"}))

	var v *generic.ValidationError
	require.True(t, errors.As(fmt.Errorf("x: %w", &generic.ValidationError{Field: "date", Reason: "required"}), &v))
	assert.Equal(t, "date", v.Field)
}
