package driver

import (
	"errors"

	"github.com/prometheus/client_golang/prometheus"
	"go.uber.org/multierr"

	"github.com/tetratelabs/wasitest/runner"
)

const resultLabel = "result"

var resultLabels = []string{resultLabel}

// Metrics counts test results and their duration.
type Metrics struct {
	results  *prometheus.CounterVec
	duration prometheus.Histogram
}

// NewMetrics returns Metrics registered with registerer.
func NewMetrics(registerer prometheus.Registerer) (*Metrics, error) {
	m := &Metrics{
		results: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "wasitest_results_total",
				Help: "number of tests run, by result",
			},
			resultLabels,
		),
		duration: prometheus.NewHistogram(
			prometheus.HistogramOpts{
				Name:    "wasitest_duration_seconds",
				Help:    "time taken to verify a test",
				Buckets: prometheus.ExponentialBuckets(0.001, 4, 8),
			},
		),
	}
	err := multierr.Combine(
		registerer.Register(m.results),
		registerer.Register(m.duration),
	)
	return m, err
}

func (m *Metrics) observe(r Result) {
	if m == nil {
		return
	}
	m.results.With(prometheus.Labels{
		resultLabel: Classify(r.Err),
	}).Inc()
	m.duration.Observe(r.Duration.Seconds())
}

// Classify names the most severe failure in err, or "passed" if err is nil.
func Classify(err error) string {
	switch {
	case err == nil:
		return "passed"
	case errors.Is(err, runner.ErrIO):
		return "io"
	case errors.Is(err, runner.ErrMetadata):
		return "metadata"
	case errors.Is(err, runner.ErrSetup):
		return "setup"
	case errors.Is(err, runner.ErrTimeout):
		return "timeout"
	case errors.Is(err, runner.ErrUnexpectedTrap):
		return "trap"
	case errors.Is(err, runner.ErrExitCodeMismatch):
		return "exit_code"
	case errors.Is(err, runner.ErrOutputMismatch):
		return "output"
	default:
		return "error"
	}
}
