package metrics

import (
	"strings"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// Settlement wraps collectors tracking the withdrawal engine.
type Settlement struct {
	submitted     prometheus.Counter
	refused       *prometheus.CounterVec
	conflicts     *prometheus.CounterVec
	verifications *prometheus.CounterVec
	latency       prometheus.Histogram
}

var (
	settlementOnce sync.Once
	settlementReg  *Settlement
)

// Default returns the lazily registered collectors on the default registry.
func Default() *Settlement {
	settlementOnce.Do(func() {
		settlementReg = New()
		settlementReg.MustRegister(prometheus.DefaultRegisterer)
	})
	return settlementReg
}

// New builds unregistered collectors.
func New() *Settlement {
	return &Settlement{
		submitted: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "weekender",
			Subsystem: "settlement",
			Name:      "withdrawals_submitted_total",
			Help:      "Withdrawal requests written as pending.",
		}),
		refused: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "weekender",
			Subsystem: "settlement",
			Name:      "withdrawals_refused_total",
			Help:      "Withdrawal submissions refused before any write, by reason.",
		}, []string{"reason"}),
		conflicts: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "weekender",
			Subsystem: "settlement",
			Name:      "tx_conflicts_total",
			Help:      "Transaction conflicts by operation and whether a retry followed.",
		}, []string{"operation", "outcome"}),
		verifications: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "weekender",
			Subsystem: "settlement",
			Name:      "verifications_total",
			Help:      "Operator decisions on withdrawal requests.",
		}, []string{"status"}),
		latency: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: "weekender",
			Subsystem: "settlement",
			Name:      "withdrawal_duration_seconds",
			Help:      "Time spent executing a withdrawal including retries.",
			Buckets:   prometheus.DefBuckets,
		}),
	}
}

func (m *Settlement) MustRegister(reg prometheus.Registerer) {
	reg.MustRegister(m.submitted, m.refused, m.conflicts, m.verifications, m.latency)
}

func (m *Settlement) RecordSubmitted(d time.Duration) {
	if m == nil {
		return
	}
	m.submitted.Inc()
	m.latency.Observe(d.Seconds())
}

func (m *Settlement) RecordRefused(reason string) {
	if m == nil {
		return
	}
	if reason = strings.TrimSpace(reason); reason == "" {
		reason = "unspecified"
	}
	m.refused.WithLabelValues(reason).Inc()
}

// RecordConflict counts a conflict; retried is false once attempts ran out.
func (m *Settlement) RecordConflict(operation string, retried bool) {
	if m == nil {
		return
	}
	outcome := "exhausted"
	if retried {
		outcome = "retried"
	}
	m.conflicts.WithLabelValues(operation, outcome).Inc()
}

func (m *Settlement) RecordVerification(status string) {
	if m == nil {
		return
	}
	m.verifications.WithLabelValues(status).Inc()
}
