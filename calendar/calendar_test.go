package calendar_test

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/warp/staffing-ledger/calendar"
	"github.com/warp/staffing-ledger/generic"
	"github.com/warp/staffing-ledger/generic/store"
)

func TestMonthGrid_ShapeForEveryMonth(t *testing.T) {
	// Every month of a leap year and a common year: full weeks, Sunday to
	// Saturday, each in-month date exactly once.
	for _, year := range []int{2023, 2024} {
		for month := time.January; month <= time.December; month++ {
			grid := calendar.MonthGrid(year, month)

			require.NotEmpty(t, grid)
			assert.Equal(t, time.Sunday, grid[0][0].Date.Weekday(), "%d-%02d", year, month)
			last := grid[len(grid)-1]
			assert.Equal(t, time.Saturday, last[6].Date.Weekday(), "%d-%02d", year, month)

			seen := make(map[string]int)
			var prev generic.Date
			for i, week := range grid {
				for j, day := range week {
					if i > 0 || j > 0 {
						assert.True(t, prev.AddDays(1).Equal(day.Date), "consecutive dates")
					}
					prev = day.Date
					inMonth := day.Date.Month() == month && day.Date.Year() == year
					assert.Equal(t, inMonth, day.InCurrentMonth, day.Date.String())
					if day.InCurrentMonth {
						seen[day.Date.String()]++
					}
				}
			}

			days := generic.MonthPeriod(year, month).Days()
			assert.Len(t, seen, len(days))
			for _, d := range days {
				assert.Equal(t, 1, seen[d.String()], d.String())
			}
		}
	}
}

func TestMonthGrid_KnownLayouts(t *testing.T) {
	// February 2015 starts on a Sunday and ends on a Saturday: exactly 4 rows.
	feb2015 := calendar.MonthGrid(2015, time.February)
	assert.Len(t, feb2015, 4)
	assert.Equal(t, "2015-02-01", feb2015[0][0].Date.String())
	assert.True(t, feb2015[0][0].InCurrentMonth)

	// March 2024 starts on a Friday: grid starts Sunday Feb 25, ends Sat Apr 6.
	mar2024 := calendar.MonthGrid(2024, time.March)
	assert.Len(t, mar2024, 6)
	assert.Equal(t, "2024-02-25", mar2024[0][0].Date.String())
	assert.False(t, mar2024[0][0].InCurrentMonth)
	assert.Equal(t, "2024-04-06", mar2024[5][6].Date.String())
}

func seed(t *testing.T, s *store.Memory, id string, date generic.Date) {
	t.Helper()
	require.NoError(t, s.InsertAllocation(context.Background(), generic.Allocation{
		ID:                 generic.AllocationID(id),
		EmployeeID:         "emp-1",
		CompanyID:          "co-1",
		Date:               date,
		PeriodType:         generic.PeriodFull,
		EmployeeAmount:     generic.MustParseMoney("100"),
		CompanyAmount:      generic.MustParseMoney("150"),
		EmployeeSettlement: generic.StatusPending,
		CompanySettlement:  generic.StatusPending,
	}))
}

func TestAllocationsByDate(t *testing.T) {
	s := store.NewMemory()
	seed(t, s, "b", generic.NewDate(2024, time.March, 1))
	seed(t, s, "a", generic.NewDate(2024, time.March, 1))
	seed(t, s, "c", generic.NewDate(2024, time.March, 31))
	seed(t, s, "feb", generic.NewDate(2024, time.February, 29))
	seed(t, s, "apr", generic.NewDate(2024, time.April, 1))
	agg := calendar.NewAggregator(s)

	byDate, err := agg.AllocationsByDate(context.Background(), 2024, time.March)
	require.NoError(t, err)

	assert.Len(t, byDate, 2, "empty dates are absent")
	require.Len(t, byDate["2024-03-01"], 2)
	assert.Equal(t, generic.AllocationID("a"), byDate["2024-03-01"][0].ID)
	assert.Len(t, byDate["2024-03-31"], 1)
	_, ok := byDate["2024-03-02"]
	assert.False(t, ok)
}

func TestMonthView_OutOfMonthCellsEmpty(t *testing.T) {
	s := store.NewMemory()
	seed(t, s, "feb", generic.NewDate(2024, time.February, 29))
	seed(t, s, "mar", generic.NewDate(2024, time.March, 15))
	agg := calendar.NewAggregator(s)

	view, err := agg.Month(context.Background(), 2024, time.March)
	require.NoError(t, err)

	total := 0
	for _, w := range view.Weeks {
		for _, d := range w {
			if !d.InCurrentMonth {
				assert.Empty(t, d.Allocations, d.Date.String())
			}
			total += len(d.Allocations)
		}
	}
	assert.Equal(t, 1, total)
}

func TestAllocationsByDate_InvalidMonth(t *testing.T) {
	agg := calendar.NewAggregator(store.NewMemory())

	_, err := agg.AllocationsByDate(context.Background(), 2024, 13)

	assert.ErrorIs(t, err, generic.ErrValidation)
}
