package observability

import (
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
)

func TestMetricsRecord(t *testing.T) {
	t.Parallel()

	reg := prometheus.NewRegistry()
	m := NewMetrics(reg)

	m.RecordRequest(OutcomeOK)
	m.RecordRequest(OutcomeOK)
	m.RecordRequest("timeout")
	m.RecordUpstream(OutcomeOK, 300*time.Millisecond)
	m.SetActiveSessions(4)
	m.RecordSwept(3)
	m.RecordSwept(0)

	if got := testutil.ToFloat64(m.RequestsTotal.WithLabelValues(OutcomeOK)); got != 2 {
		t.Errorf("expected 2 ok requests, got %v", got)
	}
	if got := testutil.ToFloat64(m.RequestsTotal.WithLabelValues("timeout")); got != 1 {
		t.Errorf("expected 1 timeout request, got %v", got)
	}
	if got := testutil.ToFloat64(m.ActiveSessions); got != 4 {
		t.Errorf("expected 4 active sessions, got %v", got)
	}
	if got := testutil.ToFloat64(m.SweptSessionsTotal); got != 3 {
		t.Errorf("expected 3 swept sessions, got %v", got)
	}
	if n := testutil.CollectAndCount(m.UpstreamDurationSeconds); n != 1 {
		t.Errorf("expected 1 upstream histogram series, got %d", n)
	}
}

func TestNilMetricsAreSafe(t *testing.T) {
	t.Parallel()

	var m *Metrics
	m.RecordRequest(OutcomeOK)
	m.RecordUpstream(OutcomeOK, time.Second)
	m.SetActiveSessions(1)
	m.RecordSwept(1)
}
