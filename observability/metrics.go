package observability

import (
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"

	ledgererrors "permitledger/core/errors"
)

// LedgerMetrics tracks contract calls by operation and outcome.
type LedgerMetrics struct {
	calls      *prometheus.CounterVec
	rejections *prometheus.CounterVec
	latency    *prometheus.HistogramVec
}

var (
	ledgerMetricsOnce sync.Once
	ledgerRegistry    *LedgerMetrics
)

// Ledger returns the lazily-initialised ledger metrics registered with the
// default Prometheus registry.
func Ledger() *LedgerMetrics {
	ledgerMetricsOnce.Do(func() {
		ledgerRegistry = NewLedgerMetrics(prometheus.DefaultRegisterer)
	})
	return ledgerRegistry
}

// NewLedgerMetrics registers a fresh set of ledger collectors with reg.
func NewLedgerMetrics(reg prometheus.Registerer) *LedgerMetrics {
	m := &LedgerMetrics{
		calls: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "permit",
			Subsystem: "ledger",
			Name:      "calls_total",
			Help:      "Total contract calls segmented by operation and outcome.",
		}, []string{"operation", "outcome"}),
		rejections: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "permit",
			Subsystem: "ledger",
			Name:      "rejections_total",
			Help:      "Contract calls rejected with a ledger error code.",
		}, []string{"operation", "code"}),
		latency: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: "permit",
			Subsystem: "ledger",
			Name:      "call_duration_seconds",
			Help:      "Latency distribution for contract calls.",
			Buckets:   prometheus.DefBuckets,
		}, []string{"operation"}),
	}
	reg.MustRegister(m.calls, m.rejections, m.latency)
	return m
}

// Observe records one contract call. Calls failing with a ledger code count
// as rejected; any other error counts as failed.
func (m *LedgerMetrics) Observe(operation string, err error, duration time.Duration) {
	if m == nil {
		return
	}
	outcome := "ok"
	if err != nil {
		if code, ok := ledgererrors.CodeOf(err); ok {
			outcome = "rejected"
			m.rejections.WithLabelValues(operation, code.String()).Inc()
		} else {
			outcome = "failed"
		}
	}
	m.calls.WithLabelValues(operation, outcome).Inc()
	m.latency.WithLabelValues(operation).Observe(duration.Seconds())
}
