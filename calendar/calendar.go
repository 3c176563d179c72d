// Package calendar lays a month's allocations out on a week grid.
package calendar

import (
	"context"
	"fmt"
	"time"

	"github.com/warp/staffing-ledger/generic"
)

// Day is one cell of the month grid.
type Day struct {
	Date           generic.Date
	InCurrentMonth bool
}

// Week is seven consecutive days, Sunday first.
type Week [7]Day

// MonthGrid returns complete Sunday-to-Saturday weeks covering the month.
// Leading and trailing days of adjacent months are flagged InCurrentMonth=false.
func MonthGrid(year int, month time.Month) []Week {
	first := generic.StartOfMonth(year, month)
	last := generic.EndOfMonth(year, month)

	start := first.AddDays(-int(first.Weekday()))
	end := last.AddDays(int(time.Saturday - last.Weekday()))

	weeks := make([]Week, 0, (generic.DaysBetween(start, end)+1)/7)
	for d := start; d.BeforeOrEqual(end); d = d.AddDays(7) {
		var w Week
		for i := range w {
			day := d.AddDays(i)
			w[i] = Day{Date: day, InCurrentMonth: day.Month() == first.Month() && day.Year() == first.Year()}
		}
		weeks = append(weeks, w)
	}
	return weeks
}

// Aggregator reads allocations for calendar views.
type Aggregator struct {
	store generic.Store
}

func NewAggregator(store generic.Store) *Aggregator {
	return &Aggregator{store: store}
}

// AllocationsByDate groups the month's allocations by YYYY-MM-DD. Dates
// without allocations are absent from the map.
func (a *Aggregator) AllocationsByDate(ctx context.Context, year int, month time.Month) (map[string][]generic.Allocation, error) {
	if err := validateMonth(month); err != nil {
		return nil, err
	}
	allocations, err := a.store.ListAllocations(ctx, generic.MonthPeriod(year, month).Filter())
	if err != nil {
		return nil, err
	}

	byDate := make(map[string][]generic.Allocation)
	for _, alloc := range allocations {
		key := alloc.Date.String()
		byDate[key] = append(byDate[key], alloc)
	}
	return byDate, nil
}

// MonthView is the grid with each cell's allocations attached.
type MonthView struct {
	Year  int
	Month time.Month
	Weeks []WeekView
}

type WeekView [7]DayView

type DayView struct {
	Day
	Allocations []generic.Allocation
}

// Month returns the grid for the month with allocations in their cells.
// Out-of-month cells are always empty.
func (a *Aggregator) Month(ctx context.Context, year int, month time.Month) (MonthView, error) {
	byDate, err := a.AllocationsByDate(ctx, year, month)
	if err != nil {
		return MonthView{}, err
	}

	grid := MonthGrid(year, month)
	view := MonthView{Year: year, Month: month, Weeks: make([]WeekView, len(grid))}
	for i, w := range grid {
		for j, d := range w {
			cell := DayView{Day: d}
			if d.InCurrentMonth {
				cell.Allocations = byDate[d.Date.String()]
			}
			view.Weeks[i][j] = cell
		}
	}
	return view, nil
}

func validateMonth(month time.Month) error {
	if month < time.January || month > time.December {
		return &generic.ValidationError{Field: "month", Reason: fmt.Sprintf("%d is not in 1-12", month)}
	}
	return nil
}
