// Package metrics exposes sync cycle observability: Prometheus counters and
// histograms, plus a rolling window of cycle latencies for the stats endpoint.
package metrics

import "time"

// Outcome labels a finished sync cycle.
type Outcome string

const (
	OutcomeCompleted Outcome = "completed"
	OutcomeFailed    Outcome = "failed"
	OutcomeCancelled Outcome = "cancelled"
)

// Recorder receives sync cycle observations.
type Recorder interface {
	AddOperations(op string, n int)
	ObserveCycleDuration(d time.Duration)
	IncCycleOutcome(outcome Outcome)
	AddDiagnostics(n int)
	IncDegradedLayout()
}

// NoopRecorder is a Recorder that does nothing.
type NoopRecorder struct{}

func (NoopRecorder) AddOperations(string, int)          {}
func (NoopRecorder) ObserveCycleDuration(time.Duration) {}
func (NoopRecorder) IncCycleOutcome(Outcome)            {}
func (NoopRecorder) AddDiagnostics(int)                 {}
func (NoopRecorder) IncDegradedLayout()                 {}
