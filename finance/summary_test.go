package finance_test

import (
	"context"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/warp/staffing-ledger/finance"
	"github.com/warp/staffing-ledger/generic"
	"github.com/warp/staffing-ledger/generic/store"
)

func money(s string) decimal.Decimal { return generic.MustParseMoney(s) }

func TestChangePct(t *testing.T) {
	cases := []struct {
		previous, current, want string
	}{
		{"0", "0", "0"},
		{"0", "50", "100"},
		{"0", "-50", "100"},
		{"100", "150", "50"},
		{"100", "50", "-50"},
		{"100", "100", "0"},
		{"3", "4", "33.33"},
		{"-100", "50", "-150"},
	}
	for _, tc := range cases {
		got := finance.ChangePct(money(tc.previous), money(tc.current))
		assert.True(t, money(tc.want).Equal(got), "changePct(%s, %s) = %s, want %s", tc.previous, tc.current, got, tc.want)
	}
}

func seed(t *testing.T, s *store.Memory, id string, date generic.Date, emp, co string, settled bool) {
	t.Helper()
	a := generic.Allocation{
		ID:                 generic.AllocationID(id),
		EmployeeID:         "emp-1",
		CompanyID:          "co-1",
		Date:               date,
		PeriodType:         generic.PeriodFull,
		EmployeeAmount:     money(emp),
		CompanyAmount:      money(co),
		EmployeeSettlement: generic.StatusPending,
		CompanySettlement:  generic.StatusPending,
	}
	if settled {
		a.Settle(generic.LegEmployee)
		a.Settle(generic.LegCompany)
	}
	require.NoError(t, s.InsertAllocation(context.Background(), a))
}

func TestMonthlySummary(t *testing.T) {
	// GIVEN: February revenue 100 / expense 80; March revenue 150 / expense 90,
	//        one of March's allocations fully settled
	// THEN: accrual figures ignore settlement; changes are against February
	s := store.NewMemory()
	seed(t, s, "f1", generic.NewDate(2024, time.February, 29), "80", "100", true)
	seed(t, s, "m1", generic.NewDate(2024, time.March, 1), "50", "100", true)
	seed(t, s, "m2", generic.NewDate(2024, time.March, 31), "40", "50", false)
	seed(t, s, "a1", generic.NewDate(2024, time.April, 1), "999", "999", false)
	calc := finance.NewCalculator(s)

	sum, err := calc.MonthlySummary(context.Background(), 2024, time.March)
	require.NoError(t, err)

	assert.True(t, money("150").Equal(sum.Revenue), "revenue %s", sum.Revenue)
	assert.True(t, money("90").Equal(sum.Expense), "expense %s", sum.Expense)
	assert.True(t, money("60").Equal(sum.Profit), "profit %s", sum.Profit)
	assert.Equal(t, 2, sum.Allocations)
	assert.True(t, money("40").Equal(sum.PendingPayables))
	assert.True(t, money("50").Equal(sum.PendingReceivables))

	assert.True(t, money("50").Equal(sum.RevenueChangePct), "revenue change %s", sum.RevenueChangePct)
	assert.True(t, money("12.5").Equal(sum.ExpenseChangePct), "expense change %s", sum.ExpenseChangePct)
	assert.True(t, money("200").Equal(sum.ProfitChangePct), "profit change %s", sum.ProfitChangePct)
	assert.True(t, money("20").Equal(sum.Previous.Profit))
}

func TestMonthlySummary_JanuaryComparesWithPreviousDecember(t *testing.T) {
	s := store.NewMemory()
	seed(t, s, "d", generic.NewDate(2023, time.December, 31), "100", "100", false)
	seed(t, s, "j", generic.NewDate(2024, time.January, 1), "150", "100", false)
	calc := finance.NewCalculator(s)

	sum, err := calc.MonthlySummary(context.Background(), 2024, time.January)
	require.NoError(t, err)

	assert.True(t, money("0").Equal(sum.RevenueChangePct))
	assert.True(t, money("50").Equal(sum.ExpenseChangePct))
	assert.True(t, money("-50").Equal(sum.Profit), "profit may be negative")
	assert.True(t, money("100").Equal(sum.ProfitChangePct), "zero previous profit, nonzero current")
}

func TestMonthlySummary_EmptyMonths(t *testing.T) {
	calc := finance.NewCalculator(store.NewMemory())

	sum, err := calc.MonthlySummary(context.Background(), 2024, time.June)
	require.NoError(t, err)

	assert.True(t, sum.Revenue.IsZero())
	assert.True(t, sum.RevenueChangePct.IsZero())
	assert.True(t, sum.ProfitChangePct.IsZero())
}

func TestMonthlySummary_InvalidMonth(t *testing.T) {
	_, err := finance.NewCalculator(store.NewMemory()).MonthlySummary(context.Background(), 2024, 0)

	assert.ErrorIs(t, err, generic.ErrValidation)
}
