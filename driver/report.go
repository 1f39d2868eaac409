package driver

import (
	"errors"
	"fmt"
	"io"
	"strings"

	"go.uber.org/multierr"

	"github.com/tetratelabs/wasitest/runner"
)

// Report writes results to w in the format of the Rust test harness and
// returns how many passed and failed.
func Report(w io.Writer, results []Result) (passed, failed int) {
	fmt.Fprintf(w, "\nrunning %d tests\n", len(results))

	var failures []Result
	for _, r := range results {
		if r.Passed() {
			passed++
			fmt.Fprintf(w, "test %s ... ok\n", r.Artifact.Name)
			continue
		}
		failed++
		failures = append(failures, r)
		fmt.Fprintf(w, "test %s ... FAILED\n", r.Artifact.Name)
	}

	if failed > 0 {
		fmt.Fprint(w, "\nfailures:\n\n")
		for _, r := range failures {
			fmt.Fprintf(w, "---- %s ----\n%s\n", r.Artifact.Name, Describe(r.Err))
		}
		fmt.Fprint(w, "\nfailures:\n")
		for _, r := range failures {
			fmt.Fprintf(w, "    %s\n", r.Artifact.Name)
		}
	}

	status := "ok"
	if failed > 0 {
		status = "FAILED"
	}
	fmt.Fprintf(w, "\ntest result: %s. %d passed; %d failed\n\n", status, passed, failed)
	return
}

// Describe formats err with one failure per line, each output mismatch
// followed by its diff.
func Describe(err error) string {
	var b strings.Builder
	for _, e := range multierr.Errors(err) {
		b.WriteString(e.Error())
		b.WriteByte('\n')

		var mismatch *runner.MismatchError
		if errors.As(e, &mismatch) {
			b.WriteString(mismatch.Diff())
		}
	}
	return b.String()
}
