/*
Package rates computes default allocation amounts from rate cards.

PURPOSE:
  When an operator books an allocation without typing amounts, each leg is
  defaulted from the employee's and the company's rate card. The rules are
  pure functions of the card and the period type; Resolver only adds the
  card lookup.

RULES:
  Employee leg:
    FULL -> FullDayRate
    HALF -> HalfDayRate if configured, else FullDayRate / 2
  Company leg:
    ServiceRate, whatever the period type

  A missing card or a missing/non-positive rate is RateUnavailable. A
  default is never silently zero.

SEE ALSO:
  - directory.go: YAML-backed RateCardSource
  - allocation/service.go: The consumer of Resolver
*/
package rates

import (
	"context"

	"github.com/shopspring/decimal"
	"github.com/warp/staffing-ledger/generic"
)

var two = decimal.NewFromInt(2)

// ResolveEmployeeDefault returns the default employee-leg amount.
func ResolveEmployeeDefault(card generic.EmployeeRateCard, periodType generic.PeriodType) (decimal.Decimal, error) {
	unavailable := &generic.RateUnavailableError{
		SubjectType: generic.SubjectEmployee,
		SubjectID:   string(card.EmployeeID),
		PeriodType:  periodType,
	}

	switch periodType {
	case generic.PeriodHalf:
		if card.HalfDayRate != nil {
			if !card.HalfDayRate.IsPositive() {
				return decimal.Zero, unavailable
			}
			return *card.HalfDayRate, nil
		}
		if !card.FullDayRate.IsPositive() {
			return decimal.Zero, unavailable
		}
		return generic.RoundMoney(card.FullDayRate.Div(two)), nil

	case generic.PeriodFull:
		if !card.FullDayRate.IsPositive() {
			return decimal.Zero, unavailable
		}
		return card.FullDayRate, nil

	default:
		return decimal.Zero, &generic.ValidationError{Field: "period_type", Reason: "must be FULL or HALF"}
	}
}

// ResolveCompanyDefault returns the default company-leg amount.
func ResolveCompanyDefault(card generic.CompanyRateCard) (decimal.Decimal, error) {
	if !card.ServiceRate.IsPositive() {
		return decimal.Zero, &generic.RateUnavailableError{
			SubjectType: generic.SubjectCompany,
			SubjectID:   string(card.CompanyID),
		}
	}
	return card.ServiceRate, nil
}

// =============================================================================
// RESOLVER - Card lookup + default rules
// =============================================================================

// Resolver looks up rate cards and applies the default rules.
type Resolver struct {
	Source generic.RateCardSource
}

func NewResolver(source generic.RateCardSource) *Resolver {
	return &Resolver{Source: source}
}

// EmployeeDefault returns the default employee-leg amount for an employee.
func (r *Resolver) EmployeeDefault(ctx context.Context, id generic.EmployeeID, periodType generic.PeriodType) (decimal.Decimal, error) {
	card, err := r.Source.EmployeeRateCard(ctx, id)
	if err != nil {
		return decimal.Zero, err
	}
	if card == nil {
		return decimal.Zero, &generic.RateUnavailableError{
			SubjectType: generic.SubjectEmployee,
			SubjectID:   string(id),
			PeriodType:  periodType,
		}
	}
	return ResolveEmployeeDefault(*card, periodType)
}

// CompanyDefault returns the default company-leg amount for a company.
func (r *Resolver) CompanyDefault(ctx context.Context, id generic.CompanyID) (decimal.Decimal, error) {
	card, err := r.Source.CompanyRateCard(ctx, id)
	if err != nil {
		return decimal.Zero, err
	}
	if card == nil {
		return decimal.Zero, &generic.RateUnavailableError{
			SubjectType: generic.SubjectCompany,
			SubjectID:   string(id),
		}
	}
	return ResolveCompanyDefault(*card)
}
