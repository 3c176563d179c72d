/*
dto.go - Data Transfer Objects for API requests and responses

PURPOSE:
  Defines the JSON structures for API communication. These types decouple
  the internal domain model from the external API contract.

NAMING CONVENTION:
  - *DTO: Response types returned to clients
  - *Request: Request body types from clients
  - *Query: Query-string parameters, bound by hand and validated like bodies

WIRE FORMAT:
  Dates are ISO calendar dates (YYYY-MM-DD).
  Amounts are decimal strings ("15000.00"), never JSON floats.

VALIDATION:
  Field shape (required, enum values, date layout, numeric strings) is checked
  with go-playground/validator struct tags before the request reaches a service.
  Business rules (positive amounts, settlement locks, batch preconditions) stay
  in the domain packages.

SEE ALSO:
  - handlers.go: Uses these types
  - generic/types.go: Domain model
*/
package api

import (
	"github.com/shopspring/decimal"
	"github.com/warp/staffing-ledger/calendar"
	"github.com/warp/staffing-ledger/finance"
	"github.com/warp/staffing-ledger/generic"
	"github.com/warp/staffing-ledger/settlement"
)

// =============================================================================
// ALLOCATIONS
// =============================================================================

// AllocationDTO represents an allocation in API responses.
type AllocationDTO struct {
	ID                 string `json:"id"`
	EmployeeID         string `json:"employee_id"`
	CompanyID          string `json:"company_id"`
	Date               string `json:"date"`
	PeriodType         string `json:"period_type"`
	EmployeeAmount     string `json:"employee_amount"`
	CompanyAmount      string `json:"company_amount"`
	EmployeeSettlement string `json:"employee_settlement"`
	CompanySettlement  string `json:"company_settlement"`
	Location           string `json:"location,omitempty"`
	ServiceDescription string `json:"service_description,omitempty"`
	Notes              string `json:"notes,omitempty"`
}

// CreateAllocationRequest books an allocation. Omitted amounts are defaulted
// from the rate cards.
type CreateAllocationRequest struct {
	EmployeeID         string  `json:"employee_id" validate:"required"`
	CompanyID          string  `json:"company_id" validate:"required"`
	Date               string  `json:"date" validate:"required,datetime=2006-01-02"`
	PeriodType         string  `json:"period_type" validate:"omitempty,oneof=FULL HALF"`
	EmployeeAmount     *string `json:"employee_amount" validate:"omitempty,numeric"`
	CompanyAmount      *string `json:"company_amount" validate:"omitempty,numeric"`
	Location           string  `json:"location" validate:"max=200"`
	ServiceDescription string  `json:"service_description" validate:"max=500"`
	Notes              string  `json:"notes" validate:"max=2000"`
}

// UpdateAllocationRequest patches an allocation. Absent fields are unchanged.
type UpdateAllocationRequest struct {
	Date               *string `json:"date" validate:"omitempty,datetime=2006-01-02"`
	PeriodType         *string `json:"period_type" validate:"omitempty,oneof=FULL HALF"`
	EmployeeAmount     *string `json:"employee_amount" validate:"omitempty,numeric"`
	CompanyAmount      *string `json:"company_amount" validate:"omitempty,numeric"`
	Location           *string `json:"location" validate:"omitempty,max=200"`
	ServiceDescription *string `json:"service_description" validate:"omitempty,max=500"`
	Notes              *string `json:"notes" validate:"omitempty,max=2000"`
}

// AllocationQuery filters GET /api/allocations.
type AllocationQuery struct {
	EmployeeID         string
	CompanyID          string
	From               string `validate:"omitempty,datetime=2006-01-02"`
	To                 string `validate:"omitempty,datetime=2006-01-02"`
	EmployeeSettlement string `validate:"omitempty,oneof=PENDING SETTLED"`
	CompanySettlement  string `validate:"omitempty,oneof=PENDING SETTLED"`
}

// =============================================================================
// SETTLEMENT BATCHES
// =============================================================================

// BatchQuery selects a subject's period; used by the preview endpoint.
type BatchQuery struct {
	SubjectType string `json:"subject_type" validate:"required,oneof=EMPLOYEE COMPANY"`
	SubjectID   string `json:"subject_id" validate:"required"`
	PeriodStart string `json:"period_start" validate:"required,datetime=2006-01-02"`
	PeriodEnd   string `json:"period_end" validate:"required,datetime=2006-01-02"`
}

// CreateBatchRequest settles the selected allocations' legs for one subject.
// An empty selection is passed through so the builder can reject it.
type CreateBatchRequest struct {
	BatchQuery
	AllocationIDs []string `json:"allocation_ids" validate:"dive,required"`
}

// PreviewDTO lists the eligible allocations with their pending total.
type PreviewDTO struct {
	SubjectType string          `json:"subject_type"`
	SubjectID   string          `json:"subject_id"`
	PeriodStart string          `json:"period_start"`
	PeriodEnd   string          `json:"period_end"`
	Count       int             `json:"count"`
	Total       string          `json:"total"`
	Allocations []AllocationDTO `json:"allocations"`
}

// BatchLineDTO is one settled leg.
type BatchLineDTO struct {
	AllocationID string `json:"allocation_id"`
	Amount       string `json:"amount"`
}

// BatchDTO represents a payment or invoice.
type BatchDTO struct {
	ID          string         `json:"id"`
	Number      string         `json:"number"`
	SubjectType string         `json:"subject_type"`
	SubjectID   string         `json:"subject_id"`
	PeriodStart string         `json:"period_start"`
	PeriodEnd   string         `json:"period_end"`
	IssuedDate  string         `json:"issued_date"`
	Lines       []BatchLineDTO `json:"lines"`
	Total       string         `json:"total"`
}

// =============================================================================
// CALENDAR & SUMMARY
// =============================================================================

// CalendarDayDTO is one cell of the month grid.
type CalendarDayDTO struct {
	Date           string          `json:"date"`
	InCurrentMonth bool            `json:"in_current_month"`
	Allocations    []AllocationDTO `json:"allocations"`
}

// CalendarDTO is a month grid, Sunday-first weeks.
type CalendarDTO struct {
	Year  int                `json:"year"`
	Month int                `json:"month"`
	Weeks [][]CalendarDayDTO `json:"weeks"`
}

// FiguresDTO holds one month's accrual totals.
type FiguresDTO struct {
	Revenue            string `json:"revenue"`
	Expense            string `json:"expense"`
	Profit             string `json:"profit"`
	PendingPayables    string `json:"pending_payables"`
	PendingReceivables string `json:"pending_receivables"`
	Allocations        int    `json:"allocations"`
}

// SummaryDTO is the monthly financial summary.
type SummaryDTO struct {
	Year  int `json:"year"`
	Month int `json:"month"`
	FiguresDTO
	Previous         FiguresDTO `json:"previous"`
	RevenueChangePct string     `json:"revenue_change_pct"`
	ExpenseChangePct string     `json:"expense_change_pct"`
	ProfitChangePct  string     `json:"profit_change_pct"`
}

// =============================================================================
// RATE CARDS
// =============================================================================

// EmployeeDTO represents an employee rate card.
type EmployeeDTO struct {
	ID          string  `json:"id"`
	Name        string  `json:"name"`
	FullDayRate string  `json:"full_day_rate"`
	HalfDayRate *string `json:"half_day_rate,omitempty"`
}

// CreateEmployeeRequest creates or replaces an employee rate card.
type CreateEmployeeRequest struct {
	ID          string  `json:"id" validate:"required,max=64"`
	Name        string  `json:"name" validate:"required,max=200"`
	FullDayRate string  `json:"full_day_rate" validate:"required,numeric"`
	HalfDayRate *string `json:"half_day_rate" validate:"omitempty,numeric"`
}

// CompanyDTO represents a company rate card.
type CompanyDTO struct {
	ID          string `json:"id"`
	Name        string `json:"name"`
	ServiceRate string `json:"service_rate"`
}

// CreateCompanyRequest creates or replaces a company rate card.
type CreateCompanyRequest struct {
	ID          string `json:"id" validate:"required,max=64"`
	Name        string `json:"name" validate:"required,max=200"`
	ServiceRate string `json:"service_rate" validate:"required,numeric"`
}

// =============================================================================
// SCENARIOS & ERRORS
// =============================================================================

// ScenarioDTO describes a demo scenario.
type ScenarioDTO struct {
	ID          string `json:"id"`
	Name        string `json:"name"`
	Description string `json:"description"`
}

// LoadScenarioRequest selects the scenario to load.
type LoadScenarioRequest struct {
	ScenarioID string `json:"scenario_id" validate:"required"`
}

// ErrorResponse is the body of every non-2xx response.
type ErrorResponse struct {
	Error   string `json:"error"`
	Details string `json:"details,omitempty"`
}

// =============================================================================
// CONVERSIONS
// =============================================================================

func money(d decimal.Decimal) string { return generic.RoundMoney(d).StringFixed(generic.MoneyPlaces) }

func toAllocationDTO(a generic.Allocation) AllocationDTO {
	return AllocationDTO{
		ID:                 string(a.ID),
		EmployeeID:         string(a.EmployeeID),
		CompanyID:          string(a.CompanyID),
		Date:               a.Date.String(),
		PeriodType:         string(a.PeriodType),
		EmployeeAmount:     money(a.EmployeeAmount),
		CompanyAmount:      money(a.CompanyAmount),
		EmployeeSettlement: string(a.EmployeeSettlement),
		CompanySettlement:  string(a.CompanySettlement),
		Location:           a.Location,
		ServiceDescription: a.ServiceDescription,
		Notes:              a.Notes,
	}
}

func toAllocationDTOs(allocations []generic.Allocation) []AllocationDTO {
	dtos := make([]AllocationDTO, len(allocations))
	for i, a := range allocations {
		dtos[i] = toAllocationDTO(a)
	}
	return dtos
}

func toBatchDTO(b generic.Batch) BatchDTO {
	lines := make([]BatchLineDTO, len(b.Lines))
	for i, l := range b.Lines {
		lines[i] = BatchLineDTO{AllocationID: string(l.AllocationID), Amount: money(l.Amount)}
	}
	return BatchDTO{
		ID:          string(b.ID),
		Number:      b.Number,
		SubjectType: string(b.SubjectType),
		SubjectID:   b.SubjectID,
		PeriodStart: b.Period.Start.String(),
		PeriodEnd:   b.Period.End.String(),
		IssuedDate:  b.IssuedDate.String(),
		Lines:       lines,
		Total:       money(b.Total),
	}
}

func toPreviewDTO(q BatchQuery, eligible []generic.Allocation, out settlement.Outstanding) PreviewDTO {
	return PreviewDTO{
		SubjectType: q.SubjectType,
		SubjectID:   q.SubjectID,
		PeriodStart: q.PeriodStart,
		PeriodEnd:   q.PeriodEnd,
		Count:       out.Count,
		Total:       money(out.Total),
		Allocations: toAllocationDTOs(eligible),
	}
}

func toCalendarDTO(v calendar.MonthView) CalendarDTO {
	weeks := make([][]CalendarDayDTO, len(v.Weeks))
	for i, w := range v.Weeks {
		days := make([]CalendarDayDTO, len(w))
		for j, d := range w {
			days[j] = CalendarDayDTO{
				Date:           d.Date.String(),
				InCurrentMonth: d.InCurrentMonth,
				Allocations:    toAllocationDTOs(d.Allocations),
			}
		}
		weeks[i] = days
	}
	return CalendarDTO{Year: v.Year, Month: int(v.Month), Weeks: weeks}
}

func toFiguresDTO(f finance.Figures) FiguresDTO {
	return FiguresDTO{
		Revenue:            money(f.Revenue),
		Expense:            money(f.Expense),
		Profit:             money(f.Profit),
		PendingPayables:    money(f.PendingPayables),
		PendingReceivables: money(f.PendingReceivables),
		Allocations:        f.Allocations,
	}
}

func toSummaryDTO(s finance.Summary) SummaryDTO {
	return SummaryDTO{
		Year:             s.Year,
		Month:            int(s.Month),
		FiguresDTO:       toFiguresDTO(s.Figures),
		Previous:         toFiguresDTO(s.Previous),
		RevenueChangePct: s.RevenueChangePct.StringFixed(2),
		ExpenseChangePct: s.ExpenseChangePct.StringFixed(2),
		ProfitChangePct:  s.ProfitChangePct.StringFixed(2),
	}
}

func toEmployeeDTO(c generic.EmployeeRateCard) EmployeeDTO {
	dto := EmployeeDTO{ID: string(c.EmployeeID), Name: c.Name, FullDayRate: money(c.FullDayRate)}
	if c.HalfDayRate != nil {
		half := money(*c.HalfDayRate)
		dto.HalfDayRate = &half
	}
	return dto
}

func toCompanyDTO(c generic.CompanyRateCard) CompanyDTO {
	return CompanyDTO{ID: string(c.CompanyID), Name: c.Name, ServiceRate: money(c.ServiceRate)}
}
