/*
Package settlement turns pending allocation legs into payments and invoices.

PURPOSE:
  A batch settles one leg of many allocations for one subject:
  - SubjectEmployee: a payment, settles the employee leg
  - SubjectCompany:  an invoice, settles the company leg

ALGORITHM (CreateBatch):
  Inside one unit of work:
  1. Fail with EmptySelection if no ids were given
  2. Re-fetch every selected allocation
  3. Fail with SettlementConflict if any selected leg is not PENDING
  4. Fail with SubjectMismatch if any allocation belongs to another subject
  5. Snapshot each leg amount into a line; total is their exact sum
  6. Insert the batch and flip every selected leg to SETTLED
  Any failure rolls back the whole unit: no batch row, no flipped leg.

  Lines keep the order of the selected ids.

PREVIEWS ARE ADVISORY:
  PreviewEligible is a plain read. Its result can go stale the moment it
  returns; CreateBatch re-checks everything itself.

SEE ALSO:
  - generic/store.go: TxStore.WithTx
  - metrics.go: Prometheus counters
*/
package settlement

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/warp/staffing-ledger/generic"
)

// Request selects allocations for a new batch.
type Request struct {
	SubjectType   generic.SubjectType
	SubjectID     string
	Period        generic.Period
	AllocationIDs []generic.AllocationID
}

// Outstanding summarizes the pending legs of a subject in a period.
type Outstanding struct {
	Count int
	Total decimal.Decimal
}

// Builder implements the batch operations.
type Builder struct {
	store   generic.TxStore
	clock   generic.Clock
	logger  *slog.Logger
	metrics *Metrics
	newID   func() generic.BatchID
}

// Option configures a Builder.
type Option func(*Builder)

// WithLogger sets the logger.
func WithLogger(l *slog.Logger) Option { return func(b *Builder) { b.logger = l } }

// WithMetrics sets the Prometheus counters.
func WithMetrics(m *Metrics) Option { return func(b *Builder) { b.metrics = m } }

// NewBuilder creates a builder. Clock supplies the issued date.
func NewBuilder(store generic.TxStore, clock generic.Clock, opts ...Option) *Builder {
	b := &Builder{
		store:  store,
		clock:  clock,
		logger: slog.New(slog.DiscardHandler),
		newID:  func() generic.BatchID { return generic.BatchID(uuid.NewString()) },
	}
	for _, opt := range opts {
		opt(b)
	}
	return b
}

// =============================================================================
// READS
// =============================================================================

// PreviewEligible returns the subject's allocations in the period whose
// leg is still PENDING, ordered by date then id.
func (b *Builder) PreviewEligible(ctx context.Context, subject generic.SubjectType, subjectID string, period generic.Period) ([]generic.Allocation, error) {
	filter, err := eligibleFilter(subject, subjectID, period)
	if err != nil {
		return nil, err
	}
	return b.store.ListAllocations(ctx, filter)
}

// Outstanding returns the count and sum of eligible pending legs.
func (b *Builder) Outstanding(ctx context.Context, subject generic.SubjectType, subjectID string, period generic.Period) (Outstanding, error) {
	eligible, err := b.PreviewEligible(ctx, subject, subjectID, period)
	if err != nil {
		return Outstanding{}, err
	}
	leg := subject.Leg()
	out := Outstanding{Count: len(eligible), Total: decimal.Zero}
	for _, a := range eligible {
		out.Total = out.Total.Add(a.Amount(leg))
	}
	return out, nil
}

func (b *Builder) GetBatch(ctx context.Context, id generic.BatchID) (generic.Batch, error) {
	return b.store.GetBatch(ctx, id)
}

func (b *Builder) ListBatches(ctx context.Context, filter generic.BatchFilter) ([]generic.Batch, error) {
	return b.store.ListBatches(ctx, filter)
}

func eligibleFilter(subject generic.SubjectType, subjectID string, period generic.Period) (generic.AllocationFilter, error) {
	if err := validateSubject(subject, subjectID); err != nil {
		return generic.AllocationFilter{}, err
	}
	if _, err := generic.NewPeriod(period.Start, period.End); err != nil {
		return generic.AllocationFilter{}, err
	}

	filter := period.Filter()
	if subject == generic.SubjectCompany {
		filter.CompanyID = generic.CompanyID(subjectID)
		filter.CompanySettlement = generic.StatusPending
	} else {
		filter.EmployeeID = generic.EmployeeID(subjectID)
		filter.EmployeeSettlement = generic.StatusPending
	}
	return filter, nil
}

func validateSubject(subject generic.SubjectType, subjectID string) error {
	if !subject.Valid() {
		return &generic.ValidationError{Field: "subject_type", Reason: "must be EMPLOYEE or COMPANY"}
	}
	if subjectID == "" {
		return &generic.ValidationError{Field: "subject_id", Reason: "required"}
	}
	return nil
}

// =============================================================================
// CREATE BATCH
// =============================================================================

// CreateBatch settles the selected legs and records the batch atomically.
func (b *Builder) CreateBatch(ctx context.Context, req Request) (generic.Batch, error) {
	batch, err := b.createBatch(ctx, req)
	if err != nil {
		b.metrics.failed(err)
		b.logger.Warn("batch rejected",
			slog.String("subject_type", string(req.SubjectType)),
			slog.String("subject_id", req.SubjectID),
			slog.Int("selected", len(req.AllocationIDs)),
			slog.Any("error", err),
		)
		return generic.Batch{}, err
	}

	b.metrics.created(batch)
	b.logger.Info("batch created",
		slog.String("batch_id", string(batch.ID)),
		slog.String("number", batch.Number),
		slog.String("subject_type", string(batch.SubjectType)),
		slog.String("subject_id", batch.SubjectID),
		slog.Int("lines", len(batch.Lines)),
		slog.String("total", batch.Total.String()),
	)
	return batch, nil
}

func (b *Builder) createBatch(ctx context.Context, req Request) (generic.Batch, error) {
	if err := validateSubject(req.SubjectType, req.SubjectID); err != nil {
		return generic.Batch{}, err
	}
	period, err := generic.NewPeriod(req.Period.Start, req.Period.End)
	if err != nil {
		return generic.Batch{}, err
	}
	if len(req.AllocationIDs) == 0 {
		return generic.Batch{}, generic.ErrEmptySelection
	}

	leg := req.SubjectType.Leg()
	issued := b.clock.Today()
	batch := generic.Batch{
		ID:          b.newID(),
		SubjectType: req.SubjectType,
		SubjectID:   req.SubjectID,
		Period:      period,
		IssuedDate:  issued,
	}
	batch.Number = batchNumber(req.SubjectType, issued, batch.ID)

	err = b.store.WithTx(ctx, func(tx generic.Store) error {
		selected, err := refetch(ctx, tx, req.AllocationIDs)
		if err != nil {
			return err
		}
		if err := checkSelection(selected, req.SubjectType, req.SubjectID, period); err != nil {
			return err
		}

		lines := make([]generic.BatchLine, len(selected))
		amounts := make([]decimal.Decimal, len(selected))
		for i, a := range selected {
			lines[i] = generic.BatchLine{AllocationID: a.ID, Amount: a.Amount(leg)}
			amounts[i] = lines[i].Amount
		}
		batch.Lines = lines
		batch.Total = generic.SumMoney(amounts...)

		if err := tx.InsertBatch(ctx, batch); err != nil {
			return err
		}
		for _, a := range selected {
			a.Settle(leg)
			if err := tx.UpdateAllocation(ctx, a); err != nil {
				return fmt.Errorf("settle allocation %s: %w", a.ID, err)
			}
		}
		return nil
	})
	if err != nil {
		return generic.Batch{}, err
	}
	return batch, nil
}

// refetch loads the selection in order, rejecting unknown and repeated ids.
func refetch(ctx context.Context, tx generic.Store, ids []generic.AllocationID) ([]generic.Allocation, error) {
	seen := make(map[generic.AllocationID]bool, len(ids))
	selected := make([]generic.Allocation, 0, len(ids))
	for _, id := range ids {
		if seen[id] {
			return nil, &generic.ValidationError{Field: "allocation_ids", Reason: "duplicate id " + string(id)}
		}
		seen[id] = true

		a, err := tx.GetAllocation(ctx, id)
		if err != nil {
			return nil, err
		}
		selected = append(selected, a)
	}
	return selected, nil
}

// checkSelection enforces, in order: pending leg, subject, period.
func checkSelection(selected []generic.Allocation, subject generic.SubjectType, subjectID string, period generic.Period) error {
	leg := subject.Leg()
	for _, a := range selected {
		if a.Status(leg) != generic.StatusPending {
			return &generic.SettlementConflictError{AllocationID: a.ID, Leg: leg}
		}
	}
	for _, a := range selected {
		if !a.BelongsTo(subject, subjectID) {
			return &generic.SubjectMismatchError{
				AllocationID: a.ID,
				SubjectType:  subject,
				Expected:     subjectID,
				Actual:       a.SubjectID(subject),
			}
		}
	}
	for _, a := range selected {
		if !period.Contains(a.Date) {
			return &generic.ValidationError{
				Field:  "allocation_ids",
				Reason: fmt.Sprintf("allocation %s dated %s is outside %s", a.ID, a.Date, period),
			}
		}
	}
	return nil
}

// batchNumber builds the human reference, e.g. INV-20240331-1a2b3c4d.
func batchNumber(subject generic.SubjectType, issued generic.Date, id generic.BatchID) string {
	prefix := "PAY"
	if subject == generic.SubjectCompany {
		prefix = "INV"
	}
	short := strings.ReplaceAll(string(id), "-", "")
	if len(short) > 8 {
		short = short[:8]
	}
	return fmt.Sprintf("%s-%s-%s", prefix, issued.Time().Format("20060102"), short)
}
