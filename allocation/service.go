/*
Package allocation books, edits and removes allocations.

PURPOSE:
  Applies the business rules around an allocation's lifecycle. Field shape
  (formats, required JSON keys) is checked at the HTTP boundary; this
  package owns the rules that need ledger state:
  - defaulting omitted amounts from rate cards
  - keeping both amounts strictly positive
  - refusing to change or delete a settled leg

SETTLEMENT LOCK:
  Once a leg is SETTLED its amount is what was paid or invoiced. Update
  rejects a change to that amount with SettlementLocked; descriptive fields,
  date and period type stay editable. Delete is refused if either leg is
  settled.

  Update and Delete run inside a unit of work so the lock check and the
  write cannot interleave with a batch settling the same allocation.

SEE ALSO:
  - rates/resolver.go: Default amounts
  - settlement/builder.go: The only path from PENDING to SETTLED
*/
package allocation

import (
	"context"
	"log/slog"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/warp/staffing-ledger/generic"
)

// DefaultResolver supplies default leg amounts. Implemented by rates.Resolver.
type DefaultResolver interface {
	EmployeeDefault(ctx context.Context, id generic.EmployeeID, periodType generic.PeriodType) (decimal.Decimal, error)
	CompanyDefault(ctx context.Context, id generic.CompanyID) (decimal.Decimal, error)
}

// CreateInput describes a new allocation. Nil amounts are defaulted.
type CreateInput struct {
	EmployeeID         generic.EmployeeID
	CompanyID          generic.CompanyID
	Date               generic.Date
	PeriodType         generic.PeriodType
	EmployeeAmount     *decimal.Decimal
	CompanyAmount      *decimal.Decimal
	Location           string
	ServiceDescription string
	Notes              string
}

// Service implements allocation CRUD.
type Service struct {
	store  generic.TxStore
	rates  DefaultResolver
	logger *slog.Logger
	newID  func() generic.AllocationID
}

// NewService creates a service. A nil logger discards output.
func NewService(store generic.TxStore, rates DefaultResolver, logger *slog.Logger) *Service {
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	return &Service{
		store:  store,
		rates:  rates,
		logger: logger,
		newID:  func() generic.AllocationID { return generic.AllocationID(uuid.NewString()) },
	}
}

// =============================================================================
// CREATE
// =============================================================================

// Create books an allocation with both legs PENDING.
func (s *Service) Create(ctx context.Context, in CreateInput) (generic.Allocation, error) {
	if in.EmployeeID == "" {
		return generic.Allocation{}, &generic.ValidationError{Field: "employee_id", Reason: "required"}
	}
	if in.CompanyID == "" {
		return generic.Allocation{}, &generic.ValidationError{Field: "company_id", Reason: "required"}
	}
	if in.Date.IsZero() {
		return generic.Allocation{}, &generic.ValidationError{Field: "date", Reason: "required"}
	}
	periodType := in.PeriodType
	if periodType == "" {
		periodType = generic.PeriodFull
	}
	if !periodType.Valid() {
		return generic.Allocation{}, &generic.ValidationError{Field: "period_type", Reason: "must be FULL or HALF"}
	}

	employeeAmount, err := s.resolveEmployeeAmount(ctx, in, periodType)
	if err != nil {
		return generic.Allocation{}, err
	}
	companyAmount, err := s.resolveCompanyAmount(ctx, in)
	if err != nil {
		return generic.Allocation{}, err
	}

	a := generic.Allocation{
		ID:                 s.newID(),
		EmployeeID:         in.EmployeeID,
		CompanyID:          in.CompanyID,
		Date:               in.Date,
		PeriodType:         periodType,
		EmployeeAmount:     employeeAmount,
		CompanyAmount:      companyAmount,
		EmployeeSettlement: generic.StatusPending,
		CompanySettlement:  generic.StatusPending,
		Location:           in.Location,
		ServiceDescription: in.ServiceDescription,
		Notes:              in.Notes,
	}
	if err := s.store.InsertAllocation(ctx, a); err != nil {
		return generic.Allocation{}, err
	}

	s.logger.Info("allocation created",
		slog.String("allocation_id", string(a.ID)),
		slog.String("employee_id", string(a.EmployeeID)),
		slog.String("company_id", string(a.CompanyID)),
		slog.String("date", a.Date.String()),
		slog.String("employee_amount", a.EmployeeAmount.String()),
		slog.String("company_amount", a.CompanyAmount.String()),
	)
	return a, nil
}

func (s *Service) resolveEmployeeAmount(ctx context.Context, in CreateInput, periodType generic.PeriodType) (decimal.Decimal, error) {
	if in.EmployeeAmount != nil {
		return positiveAmount("employee_amount", *in.EmployeeAmount)
	}
	amount, err := s.rates.EmployeeDefault(ctx, in.EmployeeID, periodType)
	if err != nil {
		return decimal.Zero, err
	}
	return positiveAmount("employee_amount", amount)
}

func (s *Service) resolveCompanyAmount(ctx context.Context, in CreateInput) (decimal.Decimal, error) {
	if in.CompanyAmount != nil {
		return positiveAmount("company_amount", *in.CompanyAmount)
	}
	amount, err := s.rates.CompanyDefault(ctx, in.CompanyID)
	if err != nil {
		return decimal.Zero, err
	}
	return positiveAmount("company_amount", amount)
}

// positiveAmount rounds to boundary precision and rejects anything <= 0.
func positiveAmount(field string, d decimal.Decimal) (decimal.Decimal, error) {
	rounded := generic.RoundMoney(d)
	if !rounded.IsPositive() {
		return decimal.Zero, &generic.ValidationError{Field: field, Reason: "must be greater than zero"}
	}
	return rounded, nil
}

// =============================================================================
// UPDATE / DELETE
// =============================================================================

// Update applies a patch. Changing the amount of a settled leg fails with
// SettlementLocked; setting it to its current value is not a change.
func (s *Service) Update(ctx context.Context, id generic.AllocationID, patch generic.AllocationPatch) (generic.Allocation, error) {
	var updated generic.Allocation
	err := s.store.WithTx(ctx, func(tx generic.Store) error {
		a, err := tx.GetAllocation(ctx, id)
		if err != nil {
			return err
		}
		if err := applyPatch(&a, patch); err != nil {
			return err
		}
		if err := tx.UpdateAllocation(ctx, a); err != nil {
			return err
		}
		updated = a
		return nil
	})
	if err != nil {
		if generic.IsConflict(err) {
			s.logger.Warn("allocation update rejected", slog.String("allocation_id", string(id)), slog.Any("error", err))
		}
		return generic.Allocation{}, err
	}

	s.logger.Info("allocation updated", slog.String("allocation_id", string(id)))
	return updated, nil
}

func applyPatch(a *generic.Allocation, p generic.AllocationPatch) error {
	if p.EmployeeAmount != nil {
		amount, err := positiveAmount("employee_amount", *p.EmployeeAmount)
		if err != nil {
			return err
		}
		if !amount.Equal(a.EmployeeAmount) {
			if a.EmployeeSettlement == generic.StatusSettled {
				return &generic.SettlementLockedError{AllocationID: a.ID, Leg: generic.LegEmployee, Op: "update"}
			}
			a.EmployeeAmount = amount
		}
	}
	if p.CompanyAmount != nil {
		amount, err := positiveAmount("company_amount", *p.CompanyAmount)
		if err != nil {
			return err
		}
		if !amount.Equal(a.CompanyAmount) {
			if a.CompanySettlement == generic.StatusSettled {
				return &generic.SettlementLockedError{AllocationID: a.ID, Leg: generic.LegCompany, Op: "update"}
			}
			a.CompanyAmount = amount
		}
	}
	if p.Date != nil {
		if p.Date.IsZero() {
			return &generic.ValidationError{Field: "date", Reason: "required"}
		}
		a.Date = *p.Date
	}
	if p.PeriodType != nil {
		if !p.PeriodType.Valid() {
			return &generic.ValidationError{Field: "period_type", Reason: "must be FULL or HALF"}
		}
		a.PeriodType = *p.PeriodType
	}
	if p.Location != nil {
		a.Location = *p.Location
	}
	if p.ServiceDescription != nil {
		a.ServiceDescription = *p.ServiceDescription
	}
	if p.Notes != nil {
		a.Notes = *p.Notes
	}
	return nil
}

// Delete removes an allocation whose legs are both still PENDING.
func (s *Service) Delete(ctx context.Context, id generic.AllocationID) error {
	err := s.store.WithTx(ctx, func(tx generic.Store) error {
		a, err := tx.GetAllocation(ctx, id)
		if err != nil {
			return err
		}
		if a.EmployeeSettlement == generic.StatusSettled {
			return &generic.SettlementLockedError{AllocationID: id, Leg: generic.LegEmployee, Op: "delete"}
		}
		if a.CompanySettlement == generic.StatusSettled {
			return &generic.SettlementLockedError{AllocationID: id, Leg: generic.LegCompany, Op: "delete"}
		}
		return tx.DeleteAllocation(ctx, id)
	})
	if err != nil {
		if generic.IsConflict(err) {
			s.logger.Warn("allocation delete rejected", slog.String("allocation_id", string(id)), slog.Any("error", err))
		}
		return err
	}

	s.logger.Info("allocation deleted", slog.String("allocation_id", string(id)))
	return nil
}

// =============================================================================
// READS
// =============================================================================

func (s *Service) Get(ctx context.Context, id generic.AllocationID) (generic.Allocation, error) {
	return s.store.GetAllocation(ctx, id)
}

// List returns matching allocations ordered by date, then id.
func (s *Service) List(ctx context.Context, filter generic.AllocationFilter) ([]generic.Allocation, error) {
	if filter.From != nil && filter.To != nil && filter.To.Before(*filter.From) {
		return nil, &generic.ValidationError{Field: "to", Reason: "before from"}
	}
	if filter.EmployeeSettlement != "" && !filter.EmployeeSettlement.Valid() {
		return nil, &generic.ValidationError{Field: "employee_settlement", Reason: "must be PENDING or SETTLED"}
	}
	if filter.CompanySettlement != "" && !filter.CompanySettlement.Valid() {
		return nil, &generic.ValidationError{Field: "company_settlement", Reason: "must be PENDING or SETTLED"}
	}
	return s.store.ListAllocations(ctx, filter)
}
