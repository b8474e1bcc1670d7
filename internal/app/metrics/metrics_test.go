package metrics

import (
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/require"
)

func TestSettlementCounters(t *testing.T) {
	m := New()
	m.MustRegister(prometheus.NewRegistry())

	m.RecordSubmitted(20 * time.Millisecond)
	m.RecordRefused("frequency")
	m.RecordRefused("frequency")
	m.RecordRefused("")
	m.RecordConflict("withdraw", true)
	m.RecordConflict("withdraw", false)
	m.RecordVerification("verified")

	require.Equal(t, 1.0, testutil.ToFloat64(m.submitted))
	require.Equal(t, 2.0, testutil.ToFloat64(m.refused.WithLabelValues("frequency")))
	require.Equal(t, 1.0, testutil.ToFloat64(m.refused.WithLabelValues("unspecified")))
	require.Equal(t, 1.0, testutil.ToFloat64(m.conflicts.WithLabelValues("withdraw", "retried")))
	require.Equal(t, 1.0, testutil.ToFloat64(m.conflicts.WithLabelValues("withdraw", "exhausted")))
	require.Equal(t, 1.0, testutil.ToFloat64(m.verifications.WithLabelValues("verified")))
}

func TestNilSettlementIsNoop(t *testing.T) {
	var m *Settlement
	m.RecordSubmitted(time.Second)
	m.RecordRefused("x")
	m.RecordConflict("x", true)
	m.RecordVerification("x")
}
