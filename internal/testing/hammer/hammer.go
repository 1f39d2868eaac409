// Package hammer runs a test body from many goroutines released at once, to
// surface state shared between supposedly isolated runs.
package hammer

import (
	"runtime"
	"sync"
	"testing"
)

// Hammer runs a test body in P goroutines, N times each.
type Hammer struct {
	t    *testing.T
	P, N int
}

// New returns a Hammer for t. P and N are reduced under -test.short.
func New(t *testing.T, P, N int) *Hammer {
	if testing.Short() {
		P, N = (P+1)/2, (N+1)/2
	}
	return &Hammer{t: t, P: P, N: N}
}

// Run calls test(p, n) for every goroutine p and iteration n. No goroutine
// starts its first iteration until all are running. A panic in test, such as
// one from a failed require assertion in a goroutine, fails t.
func (h *Hammer) Run(test func(p, n int)) {
	defer runtime.GOMAXPROCS(runtime.GOMAXPROCS(max(h.P/2, 1)))

	var ready, done sync.WaitGroup
	start := make(chan struct{})
	ready.Add(h.P)
	done.Add(h.P)
	for p := 0; p < h.P; p++ {
		go func(p int) {
			defer done.Done()
			defer func() {
				if recovered := recover(); recovered != nil {
					h.t.Error(recovered)
				}
			}()
			ready.Done()
			<-start
			for n := 0; n < h.N; n++ {
				test(p, n)
			}
		}(p)
	}

	ready.Wait()
	close(start)
	done.Wait()
}
