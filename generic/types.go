/*
Package generic provides the core types of the allocation ledger.

PURPOSE:
  An agency books daily work assignments ("allocations") that pair one
  employee with one client company. Each allocation carries two independent
  money legs: what the agency owes the employee and what it bills the
  company. Legs are settled in batches (payments to employees, invoices to
  companies). This package holds the types every other package shares.

KEY CONCEPTS IN THIS FILE (types.go):
  - Leg / SettlementStatus: the two independent settlement sides
  - Allocation: one employee on one company on one date
  - Batch / BatchLine: an immutable payment or invoice with snapshotted lines
  - AllocationFilter / AllocationPatch: query and edit inputs

DESIGN PRINCIPLES:
  1. Precision: every amount is a decimal.Decimal, never a float
  2. Snapshots: batch lines copy the leg amount at creation time
  3. One-way settlement: PENDING -> SETTLED only, never back

SEE ALSO:
  - errors.go: Error kinds surfaced to callers
  - store.go: Persistence interfaces
  - time.go: Date and Clock
*/
package generic

import (
	"github.com/shopspring/decimal"
)

// =============================================================================
// MONEY
// =============================================================================

// MoneyPlaces is the precision amounts carry at the boundary.
const MoneyPlaces = 2

// RoundMoney rounds an amount to the boundary precision.
func RoundMoney(d decimal.Decimal) decimal.Decimal { return d.Round(MoneyPlaces) }

// SumMoney returns the exact sum of the given amounts.
func SumMoney(amounts ...decimal.Decimal) decimal.Decimal {
	total := decimal.Zero
	for _, a := range amounts {
		total = total.Add(a)
	}
	return total
}

// MustParseMoney parses a decimal string. Panics on malformed input, so it
// is meant for literals in tests and seed data.
func MustParseMoney(s string) decimal.Decimal {
	return decimal.RequireFromString(s)
}

// =============================================================================
// ENUMS
// =============================================================================

// PeriodType is the length of the working day an allocation covers.
type PeriodType string

const (
	PeriodFull PeriodType = "FULL"
	PeriodHalf PeriodType = "HALF"
)

// Valid reports whether p is a known period type.
func (p PeriodType) Valid() bool { return p == PeriodFull || p == PeriodHalf }

// SettlementStatus is the state of one leg.
type SettlementStatus string

const (
	StatusPending SettlementStatus = "PENDING"
	StatusSettled SettlementStatus = "SETTLED"
)

func (s SettlementStatus) Valid() bool { return s == StatusPending || s == StatusSettled }

// SubjectType names who a batch is issued to. It also selects the leg.
type SubjectType string

const (
	SubjectEmployee SubjectType = "EMPLOYEE" // payment, employee leg
	SubjectCompany  SubjectType = "COMPANY"  // invoice, company leg
)

func (s SubjectType) Valid() bool { return s == SubjectEmployee || s == SubjectCompany }

// Leg returns the allocation leg a batch for this subject settles.
func (s SubjectType) Leg() Leg {
	if s == SubjectCompany {
		return LegCompany
	}
	return LegEmployee
}

// Leg identifies one of the two money sides of an allocation.
type Leg string

const (
	LegEmployee Leg = "employee"
	LegCompany  Leg = "company"
)

// =============================================================================
// IDENTIFIERS
// =============================================================================

type AllocationID string
type BatchID string
type EmployeeID string
type CompanyID string

// =============================================================================
// ALLOCATION
// =============================================================================

// Allocation is one employee assigned to one company on one date.
//
// INVARIANTS:
//   - EmployeeAmount > 0 and CompanyAmount > 0
//   - EmployeeID and CompanyID never change after creation
//   - A SETTLED leg never returns to PENDING
type Allocation struct {
	ID         AllocationID
	EmployeeID EmployeeID
	CompanyID  CompanyID
	Date       Date
	PeriodType PeriodType

	EmployeeAmount decimal.Decimal
	CompanyAmount  decimal.Decimal

	EmployeeSettlement SettlementStatus
	CompanySettlement  SettlementStatus

	// Pass-through descriptive fields.
	Location           string
	ServiceDescription string
	Notes              string
}

// Amount returns the amount of the given leg.
func (a Allocation) Amount(leg Leg) decimal.Decimal {
	if leg == LegCompany {
		return a.CompanyAmount
	}
	return a.EmployeeAmount
}

// Status returns the settlement status of the given leg.
func (a Allocation) Status(leg Leg) SettlementStatus {
	if leg == LegCompany {
		return a.CompanySettlement
	}
	return a.EmployeeSettlement
}

// IsSettled reports whether either leg has been settled.
func (a Allocation) IsSettled() bool {
	return a.EmployeeSettlement == StatusSettled || a.CompanySettlement == StatusSettled
}

// Settle marks the given leg SETTLED.
func (a *Allocation) Settle(leg Leg) {
	if leg == LegCompany {
		a.CompanySettlement = StatusSettled
		return
	}
	a.EmployeeSettlement = StatusSettled
}

// BelongsTo reports whether the allocation references the batch subject.
func (a Allocation) BelongsTo(subject SubjectType, subjectID string) bool {
	if subject == SubjectCompany {
		return string(a.CompanyID) == subjectID
	}
	return string(a.EmployeeID) == subjectID
}

// SubjectID returns the id on the side of the given subject type.
func (a Allocation) SubjectID(subject SubjectType) string {
	if subject == SubjectCompany {
		return string(a.CompanyID)
	}
	return string(a.EmployeeID)
}

// AllocationPatch carries the fields an update may change.
// Nil means "leave unchanged".
type AllocationPatch struct {
	Date               *Date
	PeriodType         *PeriodType
	EmployeeAmount     *decimal.Decimal
	CompanyAmount      *decimal.Decimal
	Location           *string
	ServiceDescription *string
	Notes              *string
}

// AllocationFilter selects allocations. Zero-valued fields match everything.
// From and To are inclusive.
type AllocationFilter struct {
	EmployeeID         EmployeeID
	CompanyID          CompanyID
	From               *Date
	To                 *Date
	EmployeeSettlement SettlementStatus
	CompanySettlement  SettlementStatus
}

// Matches reports whether a satisfies the filter.
func (f AllocationFilter) Matches(a Allocation) bool {
	if f.EmployeeID != "" && a.EmployeeID != f.EmployeeID {
		return false
	}
	if f.CompanyID != "" && a.CompanyID != f.CompanyID {
		return false
	}
	if f.From != nil && a.Date.Before(*f.From) {
		return false
	}
	if f.To != nil && a.Date.After(*f.To) {
		return false
	}
	if f.EmployeeSettlement != "" && a.EmployeeSettlement != f.EmployeeSettlement {
		return false
	}
	if f.CompanySettlement != "" && a.CompanySettlement != f.CompanySettlement {
		return false
	}
	return true
}

// =============================================================================
// BATCH - Payment (employee) or invoice (company)
// =============================================================================

// BatchLine is one allocation's leg amount, copied at batch creation.
type BatchLine struct {
	AllocationID AllocationID
	Amount       decimal.Decimal
}

// Batch is an immutable payment or invoice.
//
// INVARIANTS:
//   - len(Lines) >= 1
//   - Total == exact sum of Lines[].Amount
//   - Lines keep the order the caller selected them in
type Batch struct {
	ID          BatchID
	Number      string
	SubjectType SubjectType
	SubjectID   string
	Period      Period
	IssuedDate  Date
	Lines       []BatchLine
	Total       decimal.Decimal
}

// AllocationIDs returns the ids referenced by the batch lines, in order.
func (b Batch) AllocationIDs() []AllocationID {
	ids := make([]AllocationID, len(b.Lines))
	for i, l := range b.Lines {
		ids[i] = l.AllocationID
	}
	return ids
}

// BatchFilter selects batches. Zero-valued fields match everything.
type BatchFilter struct {
	SubjectType SubjectType
	SubjectID   string
}

func (f BatchFilter) Matches(b Batch) bool {
	if f.SubjectType != "" && b.SubjectType != f.SubjectType {
		return false
	}
	if f.SubjectID != "" && b.SubjectID != f.SubjectID {
		return false
	}
	return true
}

// =============================================================================
// RATE CARDS - Read-only input to default amounts
// =============================================================================

// EmployeeRateCard holds an employee's default day rates.
// HalfDayRate is optional.
type EmployeeRateCard struct {
	EmployeeID  EmployeeID
	Name        string
	FullDayRate decimal.Decimal
	HalfDayRate *decimal.Decimal
}

// CompanyRateCard holds a company's single per-service rate.
type CompanyRateCard struct {
	CompanyID   CompanyID
	Name        string
	ServiceRate decimal.Decimal
}
