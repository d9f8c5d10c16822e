package factoring

import (
	"errors"
	"time"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/odyssey-erp/factoring/internal/platform/lock"
)

// Operation labels.
const (
	OpListInvoice     = "list_invoice"
	OpPurchaseInvoice = "purchase_invoice"
)

// Metrics exposes Prometheus collectors for ledger operations.
type Metrics struct {
	ops      *prometheus.CounterVec
	failures *prometheus.CounterVec
	duration *prometheus.HistogramVec
	invoices *prometheus.GaugeVec
	volume   prometheus.Gauge
}

// NewMetrics registers the ledger metrics against registerer.
func NewMetrics(registerer prometheus.Registerer) *Metrics {
	return buildMetrics(registerer)
}

// Tracker instruments a single operation.
type Tracker struct {
	metrics *Metrics
	op      string
	start   time.Time
}

// Track starts a tracker for op.
func (m *Metrics) Track(op string) *Tracker {
	return &Tracker{metrics: m, op: op, start: time.Now()}
}

// End records the outcome and returns err untouched.
func (t *Tracker) End(err error) error {
	if t == nil || t.metrics == nil {
		return err
	}
	status := "success"
	if err != nil {
		status = "failure"
		t.metrics.failures.WithLabelValues(t.op, failureReason(err)).Inc()
	}
	t.metrics.ops.WithLabelValues(t.op, status).Inc()
	t.metrics.duration.WithLabelValues(t.op).Observe(time.Since(t.start).Seconds())
	return err
}

// ObserveStats publishes the committed aggregate.
func (m *Metrics) ObserveStats(s PlatformStats) {
	if m == nil {
		return
	}
	m.invoices.WithLabelValues(string(StatusListed)).Set(float64(s.ActiveInvoices))
	m.invoices.WithLabelValues(string(StatusSold)).Set(float64(s.SoldInvoices))
	m.volume.Set(float64(s.TotalVolume))
}

func failureReason(err error) string {
	switch {
	case errors.Is(err, ErrUnauthorized):
		return "unauthorized"
	case errors.Is(err, ErrInvoiceNotFound):
		return "not_found"
	case errors.Is(err, ErrAlreadySold):
		return "already_sold"
	case errors.Is(err, ErrOverflow):
		return "overflow"
	case errors.Is(err, ErrConflict):
		return "conflict"
	case errors.Is(err, ErrStatsInconsistent):
		return "stats_inconsistent"
	case errors.Is(err, lock.ErrBusy):
		return "busy"
	default:
		return "error"
	}
}

func buildMetrics(registerer prometheus.Registerer) *Metrics {
	ops := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "factoring_operations_total",
		Help: "Ledger operations partitioned by operation and status.",
	}, []string{"op", "status"})
	failures := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "factoring_operation_failures_total",
		Help: "Failed ledger operations partitioned by operation and reason.",
	}, []string{"op", "reason"})
	duration := prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "factoring_operation_duration_seconds",
		Help:    "Duration in seconds of ledger operations.",
		Buckets: prometheus.DefBuckets,
	}, []string{"op"})
	invoices := prometheus.NewGaugeVec(prometheus.GaugeOpts{
		Name: "factoring_invoices",
		Help: "Invoices currently in each lifecycle state.",
	}, []string{"state"})
	volume := prometheus.NewGauge(prometheus.GaugeOpts{
		Name: "factoring_total_volume",
		Help: "Sum of selling prices over sold invoices.",
	})
	registerer.MustRegister(ops, failures, duration, invoices, volume)
	return &Metrics{ops: ops, failures: failures, duration: duration, invoices: invoices, volume: volume}
}
