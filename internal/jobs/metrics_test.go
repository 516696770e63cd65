package jobmetrics

import (
	"errors"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/require"
)

func TestTrackerRecordsOutcome(t *testing.T) {
	m := NewMetrics(prometheus.NewRegistry())

	require.NoError(t, m.Track("gl:integrity").End(nil))
	boom := errors.New("boom")
	require.ErrorIs(t, m.Track("gl:integrity").End(boom), boom)

	require.Equal(t, 1.0, testutil.ToFloat64(m.runs.WithLabelValues("gl:integrity", "success")))
	require.Equal(t, 1.0, testutil.ToFloat64(m.runs.WithLabelValues("gl:integrity", "failure")))
	require.Equal(t, 1.0, testutil.ToFloat64(m.failures.WithLabelValues("gl:integrity")))
}

func TestFindingsAndHealth(t *testing.T) {
	m := NewMetrics(prometheus.NewRegistry())
	m.AddFindings("trial_balance", "CRITICAL", 1)
	m.AddFindings("journal_balance", "HIGH", 0)
	m.MarkHealthy(time.Unix(1767225600, 0))

	require.Equal(t, 1.0, testutil.ToFloat64(m.findings.WithLabelValues("trial_balance", "CRITICAL")))
	require.Equal(t, 1, testutil.CollectAndCount(m.findings))
	require.Equal(t, 1767225600.0, testutil.ToFloat64(m.lastClean))
}

func TestNilMetricsAreSafe(t *testing.T) {
	var m *Metrics
	require.NoError(t, m.Track("x").End(nil))
	m.AddFindings("trial_balance", "CRITICAL", 3)
	m.MarkHealthy(time.Now())
}
