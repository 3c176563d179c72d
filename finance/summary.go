/*
Package finance rolls allocations up into monthly figures.

PURPOSE:
  Accrual-basis month summary: every allocation dated in the month counts,
  whatever its settlement state.

    revenue = sum(companyAmount)
    expense = sum(employeeAmount)
    profit  = revenue - expense   (may be negative)

  Each figure is compared with the previous calendar month via ChangePct.
  The pending figures report what is still unpaid (employee legs) and
  uninvoiced (company legs) for the month.
*/
package finance

import (
	"context"
	"fmt"
	"time"

	"github.com/shopspring/decimal"
	"github.com/warp/staffing-ledger/generic"
)

var hundred = decimal.NewFromInt(100)

// ChangePct is the percentage change from previous to current, rounded to
// two places. A zero previous value yields 0 if current is also 0, else 100.
func ChangePct(previous, current decimal.Decimal) decimal.Decimal {
	if previous.IsZero() {
		if current.IsZero() {
			return decimal.Zero
		}
		return hundred
	}
	return current.Sub(previous).Div(previous).Mul(hundred).Round(2)
}

// Figures are the accrual totals of one month.
type Figures struct {
	Revenue            decimal.Decimal
	Expense            decimal.Decimal
	Profit             decimal.Decimal
	PendingPayables    decimal.Decimal
	PendingReceivables decimal.Decimal
	Allocations        int
}

// Summary is a month's figures plus the change against the previous month.
type Summary struct {
	Year  int
	Month time.Month
	Figures

	Previous Figures

	RevenueChangePct decimal.Decimal
	ExpenseChangePct decimal.Decimal
	ProfitChangePct  decimal.Decimal
}

// Calculator computes summaries from the store.
type Calculator struct {
	store generic.Store
}

func NewCalculator(store generic.Store) *Calculator {
	return &Calculator{store: store}
}

// MonthlySummary returns the summary for the month.
func (c *Calculator) MonthlySummary(ctx context.Context, year int, month time.Month) (Summary, error) {
	if month < time.January || month > time.December {
		return Summary{}, &generic.ValidationError{Field: "month", Reason: fmt.Sprintf("%d is not in 1-12", month)}
	}

	period := generic.MonthPeriod(year, month)
	current, err := c.figures(ctx, period)
	if err != nil {
		return Summary{}, err
	}
	previous, err := c.figures(ctx, period.PreviousMonth())
	if err != nil {
		return Summary{}, err
	}

	return Summary{
		Year:             year,
		Month:            month,
		Figures:          current,
		Previous:         previous,
		RevenueChangePct: ChangePct(previous.Revenue, current.Revenue),
		ExpenseChangePct: ChangePct(previous.Expense, current.Expense),
		ProfitChangePct:  ChangePct(previous.Profit, current.Profit),
	}, nil
}

func (c *Calculator) figures(ctx context.Context, period generic.Period) (Figures, error) {
	allocations, err := c.store.ListAllocations(ctx, period.Filter())
	if err != nil {
		return Figures{}, err
	}
	return Rollup(allocations), nil
}

// Rollup totals a set of allocations.
func Rollup(allocations []generic.Allocation) Figures {
	f := Figures{
		Revenue:            decimal.Zero,
		Expense:            decimal.Zero,
		PendingPayables:    decimal.Zero,
		PendingReceivables: decimal.Zero,
		Allocations:        len(allocations),
	}
	for _, a := range allocations {
		f.Revenue = f.Revenue.Add(a.CompanyAmount)
		f.Expense = f.Expense.Add(a.EmployeeAmount)
		if a.EmployeeSettlement == generic.StatusPending {
			f.PendingPayables = f.PendingPayables.Add(a.EmployeeAmount)
		}
		if a.CompanySettlement == generic.StatusPending {
			f.PendingReceivables = f.PendingReceivables.Add(a.CompanyAmount)
		}
	}
	f.Profit = f.Revenue.Sub(f.Expense)
	return f
}
