package settlement

import (
	"errors"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/warp/staffing-ledger/generic"
)

// Metrics counts batch outcomes. A nil *Metrics records nothing.
type Metrics struct {
	batchesCreated *prometheus.CounterVec
	linesSettled   *prometheus.CounterVec
	batchFailures  *prometheus.CounterVec
}

// NewMetrics registers the settlement counters with reg.
func NewMetrics(reg prometheus.Registerer) *Metrics {
	m := &Metrics{
		batchesCreated: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "staffing_settlement_batches_created_total",
			Help: "Settlement batches created, by subject type.",
		}, []string{"subject_type"}),
		linesSettled: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "staffing_settlement_legs_settled_total",
			Help: "Allocation legs flipped to SETTLED, by subject type.",
		}, []string{"subject_type"}),
		batchFailures: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "staffing_settlement_batch_failures_total",
			Help: "Rejected batch creations, by reason.",
		}, []string{"reason"}),
	}
	reg.MustRegister(m.batchesCreated, m.linesSettled, m.batchFailures)
	return m
}

func (m *Metrics) created(b generic.Batch) {
	if m == nil {
		return
	}
	m.batchesCreated.WithLabelValues(string(b.SubjectType)).Inc()
	m.linesSettled.WithLabelValues(string(b.SubjectType)).Add(float64(len(b.Lines)))
}

func (m *Metrics) failed(err error) {
	if m == nil {
		return
	}
	m.batchFailures.WithLabelValues(failureReason(err)).Inc()
}

func failureReason(err error) string {
	switch {
	case errors.Is(err, generic.ErrEmptySelection):
		return "empty_selection"
	case errors.Is(err, generic.ErrSettlementConflict):
		return "settlement_conflict"
	case errors.Is(err, generic.ErrSubjectMismatch):
		return "subject_mismatch"
	case errors.Is(err, generic.ErrValidation):
		return "validation"
	case generic.IsNotFound(err):
		return "not_found"
	default:
		return "internal"
	}
}
