// Package driver discovers test programs, runs them in parallel and reports
// the results.
package driver

import (
	"context"
	"runtime"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
)

// Verifier runs the test program at path, returning nil when it passes.
// *runner.Runner is the usual implementation.
type Verifier interface {
	Run(ctx context.Context, path string) error
}

// Result is the outcome of one Artifact.
type Result struct {
	Artifact Artifact
	// Err is nil when the test passed.
	Err      error
	Duration time.Duration
}

// Passed returns true if the test passed.
func (r Result) Passed() bool {
	return r.Err == nil
}

// Suite runs artifacts with a Verifier.
type Suite struct {
	Verifier Verifier

	// Parallelism is the maximum number of tests running at once. Zero or
	// negative means runtime.GOMAXPROCS.
	Parallelism int

	// Logger is optional.
	Logger *zap.Logger

	// Metrics is optional.
	Metrics *Metrics
}

// Run verifies every artifact and returns their results in the same order.
// A failing test never stops the others.
func (s *Suite) Run(ctx context.Context, artifacts []Artifact) []Result {
	logger := s.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	limit := s.Parallelism
	if limit <= 0 {
		limit = runtime.GOMAXPROCS(0)
	}

	results := make([]Result, len(artifacts))

	var g errgroup.Group
	g.SetLimit(limit)
	for i, a := range artifacts {
		i, a := i, a
		g.Go(func() error {
			begin := time.Now()
			err := s.Verifier.Run(ctx, a.Path)
			results[i] = Result{Artifact: a, Err: err, Duration: time.Since(begin)}

			if err != nil {
				logger.Debug("test failed", zap.String("test", a.Name), zap.Error(err))
			} else {
				logger.Debug("test passed", zap.String("test", a.Name))
			}
			s.Metrics.observe(results[i])
			return nil
		})
	}
	_ = g.Wait() // workers never fail

	return results
}
