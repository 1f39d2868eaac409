package driver

import (
	"bytes"
	"testing"

	"github.com/stretchr/testify/require"
	"go.uber.org/multierr"

	"github.com/tetratelabs/wasitest/runner"
)

func TestReport(t *testing.T) {
	results := []Result{
		{Artifact: Artifact{Name: "args"}},
		{Artifact: Artifact{Name: "stdio"}, Err: multierr.Combine(
			runner.ErrExitCodeMismatch,
			&runner.MismatchError{Stream: "stdout", Expected: "foo\n", Actual: "bar\n"},
		)},
	}

	var buf bytes.Buffer
	passed, failed := Report(&buf, results)
	require.Equal(t, 1, passed)
	require.Equal(t, 1, failed)
	require.Equal(t, `
running 2 tests
test args ... ok
test stdio ... FAILED

failures:

---- stdio ----
exit code mismatch
output mismatch: stdout: expected "foo\n", got "bar\n"
--- expected stdout
+++ actual stdout
@@ -1 +1 @@
-foo
+bar


failures:
    stdio

test result: FAILED. 1 passed; 1 failed

`, buf.String())
}

func TestReport_allPassed(t *testing.T) {
	var buf bytes.Buffer
	passed, failed := Report(&buf, []Result{{Artifact: Artifact{Name: "a"}}})
	require.Equal(t, 1, passed)
	require.Zero(t, failed)
	require.Equal(t, "\nrunning 1 tests\ntest a ... ok\n\ntest result: ok. 1 passed; 0 failed\n\n", buf.String())
}
