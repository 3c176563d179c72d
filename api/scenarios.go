/*
scenarios.go - Demo scenario loaders for testing and demonstrations

PURPOSE:

	Provides pre-built scenarios that populate the database with realistic
	data for demos. Each scenario creates rate cards and allocations through
	the same services the API uses, so defaults and settlement rules apply.

AVAILABLE SCENARIOS:

	march-agency:   One employee and one company with three pending March
	                allocations (company amounts 20000, 20000, 10000)
	settled-month:  Two employees and two companies; February fully paid and
	                invoiced, March still pending

HOW SCENARIOS WORK:
 1. Reset database (clear all data)
 2. Save employee and company rate cards
 3. Book allocations (amounts omitted where the rate card should decide)
 4. Optionally settle batches

USAGE VIA API:

	POST /api/scenarios/load
	{"scenario_id": "march-agency"}

NOTE:

	Scenarios reset the database. Only use in development/demo environments.

SEE ALSO:
  - handlers.go: Handler wiring
*/
package api

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/shopspring/decimal"
	"github.com/warp/staffing-ledger/allocation"
	"github.com/warp/staffing-ledger/generic"
	"github.com/warp/staffing-ledger/settlement"
)

// =============================================================================
// SCENARIO DEFINITIONS
// =============================================================================

var scenarios = []ScenarioDTO{
	{
		ID:          "march-agency",
		Name:        "March Agency",
		Description: "Three pending March allocations for one company, ready to invoice",
	},
	{
		ID:          "settled-month",
		Name:        "Settled Month",
		Description: "February paid and invoiced, March pending; shows month-over-month summary",
	},
}

// ListScenarios returns available scenarios.
// GET /api/scenarios
func (h *Handler) ListScenarios(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, scenarios)
}

// LoadScenario resets the database and loads a scenario.
// POST /api/scenarios/load
func (h *Handler) LoadScenario(w http.ResponseWriter, r *http.Request) {
	var req LoadScenarioRequest
	if !h.decode(w, r, &req) {
		return
	}

	ctx := r.Context()
	if err := h.Store.Reset(ctx); err != nil {
		writeError(w, http.StatusInternalServerError, "Failed to reset database", err)
		return
	}

	var err error
	switch req.ScenarioID {
	case "march-agency":
		err = h.loadMarchAgencyScenario(ctx)
	case "settled-month":
		err = h.loadSettledMonthScenario(ctx)
	default:
		writeError(w, http.StatusBadRequest, "Unknown scenario", fmt.Errorf("scenario %q", req.ScenarioID))
		return
	}
	if err != nil {
		writeError(w, http.StatusInternalServerError, "Failed to load scenario", err)
		return
	}

	h.logger.Info("scenario loaded", slog.String("scenario_id", req.ScenarioID))
	writeJSON(w, http.StatusOK, map[string]string{"status": "loaded", "scenario_id": req.ScenarioID})
}

// ResetDatabase clears all data.
// POST /api/scenarios/reset
func (h *Handler) ResetDatabase(w http.ResponseWriter, r *http.Request) {
	if err := h.Store.Reset(r.Context()); err != nil {
		writeError(w, http.StatusInternalServerError, "Failed to reset database", err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "reset"})
}

// =============================================================================
// SCENARIO: MARCH AGENCY
// =============================================================================

func (h *Handler) loadMarchAgencyScenario(ctx context.Context) error {
	if err := h.Store.SaveEmployee(ctx, generic.EmployeeRateCard{
		EmployeeID:  "emp-e",
		Name:        "Elena Ortiz",
		FullDayRate: decimal.NewFromInt(15000),
	}); err != nil {
		return err
	}
	if err := h.Store.SaveCompany(ctx, generic.CompanyRateCard{
		CompanyID:   "co-c",
		Name:        "Cobalt Logistics",
		ServiceRate: decimal.NewFromInt(20000),
	}); err != nil {
		return err
	}

	half := decimal.NewFromInt(10000)
	inputs := []allocation.CreateInput{
		{EmployeeID: "emp-e", CompanyID: "co-c", Date: generic.NewDate(2024, time.March, 4), PeriodType: generic.PeriodFull,
			Location: "Main warehouse", ServiceDescription: "Inventory count"},
		{EmployeeID: "emp-e", CompanyID: "co-c", Date: generic.NewDate(2024, time.March, 12), PeriodType: generic.PeriodFull,
			Location: "Main warehouse", ServiceDescription: "Inventory count"},
		// Half day: employee amount defaults to 7500, company charged a flat half rate.
		{EmployeeID: "emp-e", CompanyID: "co-c", Date: generic.NewDate(2024, time.March, 20), PeriodType: generic.PeriodHalf,
			CompanyAmount: &half, Location: "Dock 2", ServiceDescription: "Unloading"},
	}
	return h.createAllocations(ctx, inputs)
}

// =============================================================================
// SCENARIO: SETTLED MONTH
// =============================================================================

func (h *Handler) loadSettledMonthScenario(ctx context.Context) error {
	halfRate := decimal.NewFromInt(9000)
	for _, e := range []generic.EmployeeRateCard{
		{EmployeeID: "emp-e", Name: "Elena Ortiz", FullDayRate: decimal.NewFromInt(15000)},
		{EmployeeID: "emp-m", Name: "Marcus Reed", FullDayRate: decimal.NewFromInt(16000), HalfDayRate: &halfRate},
	} {
		if err := h.Store.SaveEmployee(ctx, e); err != nil {
			return err
		}
	}
	for _, c := range []generic.CompanyRateCard{
		{CompanyID: "co-c", Name: "Cobalt Logistics", ServiceRate: decimal.NewFromInt(20000)},
		{CompanyID: "co-h", Name: "Harbor Events", ServiceRate: decimal.NewFromInt(22000)},
	} {
		if err := h.Store.SaveCompany(ctx, c); err != nil {
			return err
		}
	}

	feb := []allocation.CreateInput{
		{EmployeeID: "emp-e", CompanyID: "co-c", Date: generic.NewDate(2024, time.February, 6), PeriodType: generic.PeriodFull},
		{EmployeeID: "emp-m", CompanyID: "co-c", Date: generic.NewDate(2024, time.February, 7), PeriodType: generic.PeriodFull},
		{EmployeeID: "emp-m", CompanyID: "co-h", Date: generic.NewDate(2024, time.February, 21), PeriodType: generic.PeriodHalf},
	}
	if err := h.createAllocations(ctx, feb); err != nil {
		return err
	}

	// Settle every February leg: one invoice per company, one payment per employee.
	february := generic.MonthPeriod(2024, time.February)
	for _, s := range []struct {
		subject generic.SubjectType
		id      string
	}{
		{generic.SubjectCompany, "co-c"},
		{generic.SubjectCompany, "co-h"},
		{generic.SubjectEmployee, "emp-e"},
		{generic.SubjectEmployee, "emp-m"},
	} {
		if err := h.settleAll(ctx, s.subject, s.id, february); err != nil {
			return err
		}
	}

	mar := []allocation.CreateInput{
		{EmployeeID: "emp-e", CompanyID: "co-c", Date: generic.NewDate(2024, time.March, 5), PeriodType: generic.PeriodFull},
		{EmployeeID: "emp-m", CompanyID: "co-h", Date: generic.NewDate(2024, time.March, 5), PeriodType: generic.PeriodFull},
		{EmployeeID: "emp-e", CompanyID: "co-h", Date: generic.NewDate(2024, time.March, 14), PeriodType: generic.PeriodHalf},
		{EmployeeID: "emp-m", CompanyID: "co-c", Date: generic.NewDate(2024, time.March, 28), PeriodType: generic.PeriodFull},
	}
	return h.createAllocations(ctx, mar)
}

// =============================================================================
// HELPERS
// =============================================================================

func (h *Handler) createAllocations(ctx context.Context, inputs []allocation.CreateInput) error {
	for _, in := range inputs {
		if _, err := h.Allocations.Create(ctx, in); err != nil {
			return fmt.Errorf("failed to create allocation on %s: %w", in.Date, err)
		}
	}
	return nil
}

func (h *Handler) settleAll(ctx context.Context, subject generic.SubjectType, subjectID string, period generic.Period) error {
	eligible, err := h.Settlement.PreviewEligible(ctx, subject, subjectID, period)
	if err != nil {
		return err
	}
	if len(eligible) == 0 {
		return nil
	}
	ids := make([]generic.AllocationID, len(eligible))
	for i, a := range eligible {
		ids[i] = a.ID
	}
	_, err = h.Settlement.CreateBatch(ctx, settlement.Request{
		SubjectType:   subject,
		SubjectID:     subjectID,
		Period:        period,
		AllocationIDs: ids,
	})
	return err
}
