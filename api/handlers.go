/*
handlers.go - HTTP API handlers for the staffing ledger

PURPOSE:
  Exposes allocation booking, settlement batches, the calendar and the
  monthly summary via REST. Handles HTTP request/response, JSON
  serialization, and delegates to the domain packages.

ENDPOINTS:
  Allocations:
    GET    /api/allocations            List (employee_id, company_id, from, to,
                                        employee_settlement, company_settlement)
    POST   /api/allocations            Create (amounts default from rate cards)
    GET    /api/allocations/{id}       Get one
    PUT    /api/allocations/{id}       Patch fields
    DELETE /api/allocations/{id}       Delete (both legs must be PENDING)

  Settlement:
    GET    /api/batches/preview        Eligible allocations for a subject/period
    POST   /api/batches                Create a payment or invoice
    GET    /api/batches                List (subject_type, subject_id)
    GET    /api/batches/{id}           Get one

  Views:
    GET    /api/calendar/{year}/{month}
    GET    /api/summary/{year}/{month}
    GET    /api/summary                Current month per the clock

  Rate cards:
    GET/POST /api/employees, GET /api/employees/{id}
    GET/POST /api/companies, GET /api/companies/{id}

ERROR HANDLING:
  Errors are returned as JSON with appropriate HTTP status:
  - 400: Malformed body, field-shape validation, ValidationError
  - 404: Allocation or batch not found
  - 409: SettlementLocked, SettlementConflict
  - 422: RateUnavailable, EmptySelection, SubjectMismatch
  - 500: Internal errors

SEE ALSO:
  - dto.go: Request/response data structures
  - scenarios.go: Demo scenario loaders
  - server.go: Router setup and middleware
*/
package api

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-playground/validator/v10"
	"github.com/shopspring/decimal"
	"github.com/warp/staffing-ledger/allocation"
	"github.com/warp/staffing-ledger/calendar"
	"github.com/warp/staffing-ledger/finance"
	"github.com/warp/staffing-ledger/generic"
	"github.com/warp/staffing-ledger/rates"
	"github.com/warp/staffing-ledger/settlement"
)

// =============================================================================
// HANDLER CONTEXT
// =============================================================================

// Backend is the persistence the HTTP layer needs. Implemented by
// store/sqlite.Store and generic/store.Memory.
type Backend interface {
	generic.TxStore
	generic.RateCardSource
	SaveEmployee(ctx context.Context, card generic.EmployeeRateCard) error
	ListEmployees(ctx context.Context) ([]generic.EmployeeRateCard, error)
	SaveCompany(ctx context.Context, card generic.CompanyRateCard) error
	ListCompanies(ctx context.Context) ([]generic.CompanyRateCard, error)
	Reset(ctx context.Context) error
}

// Handler holds all dependencies for HTTP handlers.
type Handler struct {
	Store       Backend
	Clock       generic.Clock
	Allocations *allocation.Service
	Settlement  *settlement.Builder
	Calendar    *calendar.Aggregator
	Finance     *finance.Calculator

	logger   *slog.Logger
	validate *validator.Validate
}

// NewHandler wires the domain services on top of the backend.
// A nil clock uses the system clock; nil metrics disables settlement counters.
func NewHandler(store Backend, clock generic.Clock, logger *slog.Logger, metrics *Metrics) *Handler {
	if clock == nil {
		clock = generic.SystemClock{}
	}
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	opts := []settlement.Option{settlement.WithLogger(logger)}
	if metrics != nil {
		opts = append(opts, settlement.WithMetrics(settlement.NewMetrics(metrics.Registerer())))
	}
	return &Handler{
		Store:       store,
		Clock:       clock,
		Allocations: allocation.NewService(store, rates.NewResolver(store), logger),
		Settlement:  settlement.NewBuilder(store, clock, opts...),
		Calendar:    calendar.NewAggregator(store),
		Finance:     finance.NewCalculator(store),
		logger:      logger,
		validate:    validator.New(),
	}
}

// =============================================================================
// ALLOCATION HANDLERS
// =============================================================================

// ListAllocations returns allocations matching the query filters.
// GET /api/allocations
func (h *Handler) ListAllocations(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	query := AllocationQuery{
		EmployeeID:         q.Get("employee_id"),
		CompanyID:          q.Get("company_id"),
		From:               q.Get("from"),
		To:                 q.Get("to"),
		EmployeeSettlement: q.Get("employee_settlement"),
		CompanySettlement:  q.Get("company_settlement"),
	}
	if err := h.validate.Struct(query); err != nil {
		writeValidationError(w, err)
		return
	}

	filter := generic.AllocationFilter{
		EmployeeID:         generic.EmployeeID(query.EmployeeID),
		CompanyID:          generic.CompanyID(query.CompanyID),
		EmployeeSettlement: generic.SettlementStatus(query.EmployeeSettlement),
		CompanySettlement:  generic.SettlementStatus(query.CompanySettlement),
	}
	if query.From != "" {
		from := generic.MustParseDate(query.From)
		filter.From = &from
	}
	if query.To != "" {
		to := generic.MustParseDate(query.To)
		filter.To = &to
	}

	allocations, err := h.Allocations.List(r.Context(), filter)
	if err != nil {
		h.writeDomainError(w, "Failed to list allocations", err)
		return
	}
	writeJSON(w, http.StatusOK, toAllocationDTOs(allocations))
}

// CreateAllocation books an allocation.
// POST /api/allocations
func (h *Handler) CreateAllocation(w http.ResponseWriter, r *http.Request) {
	var req CreateAllocationRequest
	if !h.decode(w, r, &req) {
		return
	}

	in := allocation.CreateInput{
		EmployeeID:         generic.EmployeeID(req.EmployeeID),
		CompanyID:          generic.CompanyID(req.CompanyID),
		Date:               generic.MustParseDate(req.Date),
		PeriodType:         generic.PeriodType(req.PeriodType),
		Location:           req.Location,
		ServiceDescription: req.ServiceDescription,
		Notes:              req.Notes,
	}
	var err error
	if in.EmployeeAmount, err = parseOptionalMoney(req.EmployeeAmount); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid employee_amount", err)
		return
	}
	if in.CompanyAmount, err = parseOptionalMoney(req.CompanyAmount); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid company_amount", err)
		return
	}

	a, err := h.Allocations.Create(r.Context(), in)
	if err != nil {
		h.writeDomainError(w, "Failed to create allocation", err)
		return
	}
	writeJSON(w, http.StatusCreated, toAllocationDTO(a))
}

// GetAllocation returns a single allocation.
// GET /api/allocations/{id}
func (h *Handler) GetAllocation(w http.ResponseWriter, r *http.Request) {
	id := generic.AllocationID(chi.URLParam(r, "id"))

	a, err := h.Allocations.Get(r.Context(), id)
	if err != nil {
		h.writeDomainError(w, "Failed to get allocation", err)
		return
	}
	writeJSON(w, http.StatusOK, toAllocationDTO(a))
}

// UpdateAllocation patches an allocation.
// PUT /api/allocations/{id}
func (h *Handler) UpdateAllocation(w http.ResponseWriter, r *http.Request) {
	id := generic.AllocationID(chi.URLParam(r, "id"))

	var req UpdateAllocationRequest
	if !h.decode(w, r, &req) {
		return
	}

	patch := generic.AllocationPatch{
		Location:           req.Location,
		ServiceDescription: req.ServiceDescription,
		Notes:              req.Notes,
	}
	if req.Date != nil {
		d := generic.MustParseDate(*req.Date)
		patch.Date = &d
	}
	if req.PeriodType != nil {
		pt := generic.PeriodType(*req.PeriodType)
		patch.PeriodType = &pt
	}
	var err error
	if patch.EmployeeAmount, err = parseOptionalMoney(req.EmployeeAmount); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid employee_amount", err)
		return
	}
	if patch.CompanyAmount, err = parseOptionalMoney(req.CompanyAmount); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid company_amount", err)
		return
	}

	a, err := h.Allocations.Update(r.Context(), id, patch)
	if err != nil {
		h.writeDomainError(w, "Failed to update allocation", err)
		return
	}
	writeJSON(w, http.StatusOK, toAllocationDTO(a))
}

// DeleteAllocation removes an allocation with both legs pending.
// DELETE /api/allocations/{id}
func (h *Handler) DeleteAllocation(w http.ResponseWriter, r *http.Request) {
	id := generic.AllocationID(chi.URLParam(r, "id"))

	if err := h.Allocations.Delete(r.Context(), id); err != nil {
		h.writeDomainError(w, "Failed to delete allocation", err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// =============================================================================
// SETTLEMENT HANDLERS
// =============================================================================

// PreviewBatch lists the subject's allocations whose leg is still pending.
// GET /api/batches/preview?subject_type=COMPANY&subject_id=co-1&period_start=...&period_end=...
func (h *Handler) PreviewBatch(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	query := BatchQuery{
		SubjectType: q.Get("subject_type"),
		SubjectID:   q.Get("subject_id"),
		PeriodStart: q.Get("period_start"),
		PeriodEnd:   q.Get("period_end"),
	}
	if err := h.validate.Struct(query); err != nil {
		writeValidationError(w, err)
		return
	}

	subject := generic.SubjectType(query.SubjectType)
	period := generic.Period{Start: generic.MustParseDate(query.PeriodStart), End: generic.MustParseDate(query.PeriodEnd)}

	eligible, err := h.Settlement.PreviewEligible(r.Context(), subject, query.SubjectID, period)
	if err != nil {
		h.writeDomainError(w, "Failed to preview batch", err)
		return
	}
	out, err := h.Settlement.Outstanding(r.Context(), subject, query.SubjectID, period)
	if err != nil {
		h.writeDomainError(w, "Failed to preview batch", err)
		return
	}
	writeJSON(w, http.StatusOK, toPreviewDTO(query, eligible, out))
}

// CreateBatch settles the selected legs into a payment or invoice.
// POST /api/batches
func (h *Handler) CreateBatch(w http.ResponseWriter, r *http.Request) {
	var req CreateBatchRequest
	if !h.decode(w, r, &req) {
		return
	}

	ids := make([]generic.AllocationID, len(req.AllocationIDs))
	for i, id := range req.AllocationIDs {
		ids[i] = generic.AllocationID(id)
	}
	batch, err := h.Settlement.CreateBatch(r.Context(), settlement.Request{
		SubjectType:   generic.SubjectType(req.SubjectType),
		SubjectID:     req.SubjectID,
		Period:        generic.Period{Start: generic.MustParseDate(req.PeriodStart), End: generic.MustParseDate(req.PeriodEnd)},
		AllocationIDs: ids,
	})
	if err != nil {
		h.writeDomainError(w, "Failed to create batch", err)
		return
	}
	writeJSON(w, http.StatusCreated, toBatchDTO(batch))
}

// ListBatches returns batches, optionally for one subject.
// GET /api/batches?subject_type=EMPLOYEE&subject_id=emp-1
func (h *Handler) ListBatches(w http.ResponseWriter, r *http.Request) {
	filter := generic.BatchFilter{
		SubjectType: generic.SubjectType(r.URL.Query().Get("subject_type")),
		SubjectID:   r.URL.Query().Get("subject_id"),
	}
	if filter.SubjectType != "" && !filter.SubjectType.Valid() {
		writeError(w, http.StatusBadRequest, "Invalid subject_type (use EMPLOYEE or COMPANY)", nil)
		return
	}

	batches, err := h.Settlement.ListBatches(r.Context(), filter)
	if err != nil {
		h.writeDomainError(w, "Failed to list batches", err)
		return
	}
	dtos := make([]BatchDTO, len(batches))
	for i, b := range batches {
		dtos[i] = toBatchDTO(b)
	}
	writeJSON(w, http.StatusOK, dtos)
}

// GetBatch returns a single batch with its lines.
// GET /api/batches/{id}
func (h *Handler) GetBatch(w http.ResponseWriter, r *http.Request) {
	batch, err := h.Settlement.GetBatch(r.Context(), generic.BatchID(chi.URLParam(r, "id")))
	if err != nil {
		h.writeDomainError(w, "Failed to get batch", err)
		return
	}
	writeJSON(w, http.StatusOK, toBatchDTO(batch))
}

// =============================================================================
// CALENDAR & SUMMARY HANDLERS
// =============================================================================

// GetCalendar returns the month grid with allocations per day.
// GET /api/calendar/{year}/{month}
func (h *Handler) GetCalendar(w http.ResponseWriter, r *http.Request) {
	year, month, ok := yearMonthParams(w, r)
	if !ok {
		return
	}

	view, err := h.Calendar.Month(r.Context(), year, month)
	if err != nil {
		h.writeDomainError(w, "Failed to build calendar", err)
		return
	}
	writeJSON(w, http.StatusOK, toCalendarDTO(view))
}

// GetSummary returns the month's figures compared with the previous month.
// GET /api/summary/{year}/{month}
func (h *Handler) GetSummary(w http.ResponseWriter, r *http.Request) {
	year, month, ok := yearMonthParams(w, r)
	if !ok {
		return
	}
	h.writeSummary(w, r, year, month)
}

// GetCurrentSummary is GetSummary for the clock's current month.
// GET /api/summary
func (h *Handler) GetCurrentSummary(w http.ResponseWriter, r *http.Request) {
	today := h.Clock.Today()
	h.writeSummary(w, r, today.Year(), today.Month())
}

func (h *Handler) writeSummary(w http.ResponseWriter, r *http.Request, year int, month time.Month) {
	summary, err := h.Finance.MonthlySummary(r.Context(), year, month)
	if err != nil {
		h.writeDomainError(w, "Failed to compute summary", err)
		return
	}
	writeJSON(w, http.StatusOK, toSummaryDTO(summary))
}

func yearMonthParams(w http.ResponseWriter, r *http.Request) (int, time.Month, bool) {
	year, err := strconv.Atoi(chi.URLParam(r, "year"))
	if err != nil || year < 1 || year > 9999 {
		writeError(w, http.StatusBadRequest, "Invalid year", err)
		return 0, 0, false
	}
	month, err := strconv.Atoi(chi.URLParam(r, "month"))
	if err != nil || month < 1 || month > 12 {
		writeError(w, http.StatusBadRequest, "Invalid month (use 1-12)", err)
		return 0, 0, false
	}
	return year, time.Month(month), true
}

// =============================================================================
// RATE CARD HANDLERS
// =============================================================================

// ListEmployees returns all employee rate cards.
// GET /api/employees
func (h *Handler) ListEmployees(w http.ResponseWriter, r *http.Request) {
	cards, err := h.Store.ListEmployees(r.Context())
	if err != nil {
		writeError(w, http.StatusInternalServerError, "Failed to list employees", err)
		return
	}
	dtos := make([]EmployeeDTO, len(cards))
	for i, c := range cards {
		dtos[i] = toEmployeeDTO(c)
	}
	writeJSON(w, http.StatusOK, dtos)
}

// GetEmployee returns a single employee rate card.
// GET /api/employees/{id}
func (h *Handler) GetEmployee(w http.ResponseWriter, r *http.Request) {
	card, err := h.Store.EmployeeRateCard(r.Context(), generic.EmployeeID(chi.URLParam(r, "id")))
	if err != nil {
		writeError(w, http.StatusInternalServerError, "Failed to get employee", err)
		return
	}
	if card == nil {
		writeError(w, http.StatusNotFound, "Employee not found", nil)
		return
	}
	writeJSON(w, http.StatusOK, toEmployeeDTO(*card))
}

// SaveEmployee creates or replaces an employee rate card.
// POST /api/employees
func (h *Handler) SaveEmployee(w http.ResponseWriter, r *http.Request) {
	var req CreateEmployeeRequest
	if !h.decode(w, r, &req) {
		return
	}

	full, err := decimal.NewFromString(req.FullDayRate)
	if err != nil {
		writeError(w, http.StatusBadRequest, "Invalid full_day_rate", err)
		return
	}
	half, err := parseOptionalMoney(req.HalfDayRate)
	if err != nil {
		writeError(w, http.StatusBadRequest, "Invalid half_day_rate", err)
		return
	}
	card := generic.EmployeeRateCard{
		EmployeeID:  generic.EmployeeID(req.ID),
		Name:        req.Name,
		FullDayRate: generic.RoundMoney(full),
		HalfDayRate: half,
	}

	if err := h.Store.SaveEmployee(r.Context(), card); err != nil {
		writeError(w, http.StatusInternalServerError, "Failed to save employee", err)
		return
	}
	writeJSON(w, http.StatusCreated, toEmployeeDTO(card))
}

// ListCompanies returns all company rate cards.
// GET /api/companies
func (h *Handler) ListCompanies(w http.ResponseWriter, r *http.Request) {
	cards, err := h.Store.ListCompanies(r.Context())
	if err != nil {
		writeError(w, http.StatusInternalServerError, "Failed to list companies", err)
		return
	}
	dtos := make([]CompanyDTO, len(cards))
	for i, c := range cards {
		dtos[i] = toCompanyDTO(c)
	}
	writeJSON(w, http.StatusOK, dtos)
}

// GetCompany returns a single company rate card.
// GET /api/companies/{id}
func (h *Handler) GetCompany(w http.ResponseWriter, r *http.Request) {
	card, err := h.Store.CompanyRateCard(r.Context(), generic.CompanyID(chi.URLParam(r, "id")))
	if err != nil {
		writeError(w, http.StatusInternalServerError, "Failed to get company", err)
		return
	}
	if card == nil {
		writeError(w, http.StatusNotFound, "Company not found", nil)
		return
	}
	writeJSON(w, http.StatusOK, toCompanyDTO(*card))
}

// SaveCompany creates or replaces a company rate card.
// POST /api/companies
func (h *Handler) SaveCompany(w http.ResponseWriter, r *http.Request) {
	var req CreateCompanyRequest
	if !h.decode(w, r, &req) {
		return
	}

	rate, err := decimal.NewFromString(req.ServiceRate)
	if err != nil {
		writeError(w, http.StatusBadRequest, "Invalid service_rate", err)
		return
	}
	card := generic.CompanyRateCard{
		CompanyID:   generic.CompanyID(req.ID),
		Name:        req.Name,
		ServiceRate: generic.RoundMoney(rate),
	}

	if err := h.Store.SaveCompany(r.Context(), card); err != nil {
		writeError(w, http.StatusInternalServerError, "Failed to save company", err)
		return
	}
	writeJSON(w, http.StatusCreated, toCompanyDTO(card))
}

// =============================================================================
// HELPERS
// =============================================================================

// decode reads and validates a JSON body. It writes the 400 itself and
// reports whether the handler should continue.
func (h *Handler) decode(w http.ResponseWriter, r *http.Request, dst any) bool {
	if err := json.NewDecoder(r.Body).Decode(dst); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body", err)
		return false
	}
	if err := h.validate.Struct(dst); err != nil {
		writeValidationError(w, err)
		return false
	}
	return true
}

func parseOptionalMoney(s *string) (*decimal.Decimal, error) {
	if s == nil {
		return nil, nil
	}
	d, err := decimal.NewFromString(*s)
	if err != nil {
		return nil, err
	}
	return &d, nil
}

// statusFor maps domain errors to HTTP status codes.
func statusFor(err error) int {
	switch {
	case generic.IsNotFound(err):
		return http.StatusNotFound
	case generic.IsConflict(err):
		return http.StatusConflict
	case errors.Is(err, generic.ErrValidation):
		return http.StatusBadRequest
	case generic.IsClientError(err):
		return http.StatusUnprocessableEntity
	default:
		return http.StatusInternalServerError
	}
}

func (h *Handler) writeDomainError(w http.ResponseWriter, message string, err error) {
	status := statusFor(err)
	if status == http.StatusInternalServerError {
		h.logger.Error(message, slog.Any("error", err))
	}
	writeError(w, status, message, err)
}

func writeValidationError(w http.ResponseWriter, err error) {
	var fieldErrs validator.ValidationErrors
	if !errors.As(err, &fieldErrs) {
		writeError(w, http.StatusBadRequest, "Invalid request", err)
		return
	}
	parts := make([]string, len(fieldErrs))
	for i, fe := range fieldErrs {
		if fe.Param() != "" {
			parts[i] = fmt.Sprintf("%s: %s=%s", fe.Field(), fe.Tag(), fe.Param())
		} else {
			parts[i] = fmt.Sprintf("%s: %s", fe.Field(), fe.Tag())
		}
	}
	writeJSON(w, http.StatusBadRequest, ErrorResponse{Error: "Invalid request", Details: strings.Join(parts, "; ")})
}

func writeJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(data)
}

func writeError(w http.ResponseWriter, status int, message string, err error) {
	resp := ErrorResponse{Error: message}
	if err != nil {
		resp.Details = err.Error()
	}
	writeJSON(w, status, resp)
}
