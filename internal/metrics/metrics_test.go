package metrics

import (
	"io"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	prom "github.com/prometheus/client_golang/prometheus"
)

func TestCycleStatsPercentiles(t *testing.T) {
	stats := NewCycleStats(time.Hour)
	for _, ms := range []int{100, 200, 300, 400, 500} {
		stats.Record(time.Duration(ms) * time.Millisecond)
	}

	snap := stats.Snapshot()
	if snap.Count != 5 {
		t.Fatalf("expected count=5, got %d", snap.Count)
	}
	if snap.MinMs != 100 || snap.MaxMs != 500 {
		t.Fatalf("expected min=100 max=500, got min=%d max=%d", snap.MinMs, snap.MaxMs)
	}
	if snap.AvgMs != 300 {
		t.Fatalf("expected avg=300, got %f", snap.AvgMs)
	}
	if snap.P50Ms != 300 {
		t.Fatalf("expected p50=300, got %f", snap.P50Ms)
	}
	if snap.P95Ms != 480 {
		t.Fatalf("expected p95=480, got %f", snap.P95Ms)
	}
	if snap.P99Ms != 496 {
		t.Fatalf("expected p99=496, got %f", snap.P99Ms)
	}
}

func TestCycleStatsPrunesExpiredSamples(t *testing.T) {
	stats := NewCycleStats(10 * time.Millisecond)
	stats.Record(100 * time.Millisecond)
	time.Sleep(25 * time.Millisecond)

	if snap := stats.Snapshot(); snap.Count != 0 {
		t.Fatalf("expected count=0 after prune, got %d", snap.Count)
	}
	stats.Record(-time.Second)
	snap := stats.Snapshot()
	if snap.Count != 1 || snap.MinMs != 0 {
		t.Fatalf("expected one clamped sample, got %+v", snap)
	}
}

func TestPrometheusRecorder(t *testing.T) {
	reg := prom.NewRegistry()
	pr := NewPrometheusRecorder(reg)
	pr.AddOperations("insert", 3)
	pr.AddOperations("move", 0)
	pr.ObserveCycleDuration(250 * time.Millisecond)
	pr.IncCycleOutcome(OutcomeCompleted)
	pr.AddDiagnostics(2)
	pr.IncDegradedLayout()

	rec := httptest.NewRecorder()
	HTTPHandler(reg).ServeHTTP(rec, httptest.NewRequest("GET", "/metrics", nil))
	body, _ := io.ReadAll(rec.Body)
	text := string(body)

	for _, want := range []string{
		`docsync_operations_total{op="insert"} 3`,
		`docsync_cycle_outcomes_total{outcome="completed"} 1`,
		`docsync_diagnostics_total 2`,
		`docsync_degraded_layouts_total 1`,
		`docsync_cycle_duration_seconds_count 1`,
	} {
		if !strings.Contains(text, want) {
			t.Errorf("expected %q in scrape output", want)
		}
	}
	if strings.Contains(text, `op="move"`) {
		t.Error("expected no series for zero additions")
	}
}

func TestNilRecorderIsSafe(t *testing.T) {
	var pr *PrometheusRecorder
	pr.AddOperations("insert", 1)
	pr.IncCycleOutcome(OutcomeFailed)
	var _ Recorder = NoopRecorder{}
	var _ Recorder = pr
}
