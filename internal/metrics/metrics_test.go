package metrics

import (
	"io"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/prometheus/client_golang/prometheus/testutil"
)

func TestCounters(t *testing.T) {
	m := New()
	m.Turn("educational")
	m.Turn("educational")
	m.FlowStarted("transfer")
	m.FlowEnded("transfer", OutcomeCompleted)
	m.Transfer("applied")
	m.Fallback()

	if got := testutil.ToFloat64(m.turns.WithLabelValues("educational")); got != 2 {
		t.Errorf("expected 2 educational turns, got %v", got)
	}
	if got := testutil.ToFloat64(m.flowsEnded.WithLabelValues("transfer", OutcomeCompleted)); got != 1 {
		t.Errorf("expected 1 completed transfer flow, got %v", got)
	}
	if got := testutil.ToFloat64(m.fallbacks); got != 1 {
		t.Errorf("expected 1 fallback, got %v", got)
	}
}

func TestNilMetricsIsNoop(t *testing.T) {
	var m *Metrics
	m.Turn("scoring")
	m.FlowStarted("scoring")
	m.FlowEnded("scoring", OutcomeCancelled)
	m.Transfer("rejected")
	m.Fallback()
}

func TestHandlerExposesCounters(t *testing.T) {
	m := New()
	m.FlowStarted("scoring")

	rec := httptest.NewRecorder()
	m.Handler().ServeHTTP(rec, httptest.NewRequest("GET", "/metrics", nil))
	body, _ := io.ReadAll(rec.Body)
	if !strings.Contains(string(body), `farmfin_flows_started_total{flow="scoring"} 1`) {
		t.Errorf("metrics output missing counter:\n%s", body)
	}
}
