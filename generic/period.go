package generic

import "time"

// =============================================================================
// PERIOD - Closed date interval
// =============================================================================

// Period is the closed interval [Start, End].
//
// Examples:
//   - March 2024: 2024-03-01 - 2024-03-31
//   - A batch window chosen by the operator
type Period struct {
	Start Date
	End   Date
}

// NewPeriod validates and builds a period.
func NewPeriod(start, end Date) (Period, error) {
	if start.IsZero() || end.IsZero() {
		return Period{}, &ValidationError{Field: "period", Reason: "start and end are required"}
	}
	if end.Before(start) {
		return Period{}, &ValidationError{Field: "period", Reason: "end before start"}
	}
	return Period{Start: start, End: end}, nil
}

// MonthPeriod returns the period covering a calendar month.
func MonthPeriod(year int, month time.Month) Period {
	return Period{Start: StartOfMonth(year, month), End: EndOfMonth(year, month)}
}

// Contains returns true if the date is within [Start, End].
func (p Period) Contains(d Date) bool {
	return d.AfterOrEqual(p.Start) && d.BeforeOrEqual(p.End)
}

// Days returns every date in the period.
func (p Period) Days() []Date {
	var days []Date
	for current := p.Start; current.BeforeOrEqual(p.End); current = current.AddDays(1) {
		days = append(days, current)
	}
	return days
}

// PreviousMonth returns the calendar month before the one containing Start.
func (p Period) PreviousMonth() Period {
	first := StartOfMonth(p.Start.Year(), p.Start.Month()).AddMonths(-1)
	return MonthPeriod(first.Year(), first.Month())
}

// Filter returns a filter selecting allocations dated within the period.
func (p Period) Filter() AllocationFilter {
	start, end := p.Start, p.End
	return AllocationFilter{From: &start, To: &end}
}

func (p Period) String() string {
	return "[" + p.Start.String() + ", " + p.End.String() + "]"
}
