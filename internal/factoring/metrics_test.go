package factoring

import (
	"fmt"
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/odyssey-erp/factoring/internal/platform/lock"
)

func TestMetricsTrackLedgerOperations(t *testing.T) {
	reg := prometheus.NewRegistry()
	m := NewMetrics(reg)
	l := NewLedger(NewMemoryRepository(), Config{Metrics: m})

	id := mustList(t, l, alice, 1000, 5)
	mustList(t, l, alice, 500, 0)
	require.NoError(t, l.PurchaseInvoice(as(bob), id, bob))
	require.ErrorIs(t, l.PurchaseInvoice(as(bob), id, bob), ErrAlreadySold)
	_, err := l.ListInvoice(as(bob), alice, 1, 1)
	require.ErrorIs(t, err, ErrUnauthorized)

	assert.Equal(t, 2.0, testutil.ToFloat64(m.ops.WithLabelValues(OpListInvoice, "success")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.ops.WithLabelValues(OpListInvoice, "failure")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.ops.WithLabelValues(OpPurchaseInvoice, "success")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.failures.WithLabelValues(OpPurchaseInvoice, "already_sold")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.failures.WithLabelValues(OpListInvoice, "unauthorized")))

	assert.Equal(t, 1.0, testutil.ToFloat64(m.invoices.WithLabelValues(string(StatusListed))))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.invoices.WithLabelValues(string(StatusSold))))
	assert.Equal(t, 950.0, testutil.ToFloat64(m.volume))

	assert.Equal(t, 2, testutil.CollectAndCount(m.duration))
}

func TestMetricsCountLockContention(t *testing.T) {
	reg := prometheus.NewRegistry()
	m := NewMetrics(reg)
	l := NewLedger(NewMemoryRepository(), Config{Metrics: m, Locker: &stubLocker{err: lock.ErrBusy}})

	_, err := l.ListInvoice(as(alice), alice, 100, 1)
	require.ErrorIs(t, err, lock.ErrBusy)
	assert.Equal(t, 1.0, testutil.ToFloat64(m.failures.WithLabelValues(OpListInvoice, "busy")))
}

func TestNilMetricsAreSafe(t *testing.T) {
	var m *Metrics
	assert.NotPanics(t, func() {
		assert.NoError(t, m.Track(OpListInvoice).End(nil))
		m.ObserveStats(PlatformStats{TotalInvoices: 1})
	})
	assert.ErrorIs(t, m.Track(OpPurchaseInvoice).End(ErrConflict), ErrConflict)
}

func TestFailureReason(t *testing.T) {
	assert.Equal(t, "not_found", failureReason(ErrInvoiceNotFound))
	assert.Equal(t, "overflow", failureReason(ErrOverflow))
	assert.Equal(t, "conflict", failureReason(ErrConflict))
	assert.Equal(t, "stats_inconsistent", failureReason(ErrStatsInconsistent))
	assert.Equal(t, "busy", failureReason(fmt.Errorf("acquire: %w", lock.ErrBusy)))
	assert.Equal(t, "error", failureReason(assert.AnError))
}
