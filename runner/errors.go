package runner

import (
	"errors"
	"fmt"

	"github.com/pmezard/go-difflib/difflib"
)

// Errors returned by Runner. A single run can fail several ways at once, in
// which case the returned error combines them (see go.uber.org/multierr) and
// errors.Is matches each.
var (
	// ErrIO means the artifact could not be read.
	ErrIO = errors.New("io error")

	// ErrMetadata means the embedded expectations could not be extracted or
	// decoded. The cause is wrapped too, for example
	// environment.ErrInvalidBinaryFormat or environment.ErrMalformedMetadata.
	ErrMetadata = errors.New("metadata error")

	// ErrSetup means the runtime refused the module or its configuration
	// before the program started.
	ErrSetup = errors.New("setup error")

	// ErrUnexpectedTrap means the program ended abnormally without an exit
	// code. This never passes, whatever exit code was expected.
	ErrUnexpectedTrap = errors.New("unexpected trap")

	// ErrExitCodeMismatch means the program exited with a different code than
	// expected.
	ErrExitCodeMismatch = errors.New("exit code mismatch")

	// ErrOutputMismatch means stdout or stderr differed from what was
	// expected. The error is a *MismatchError.
	ErrOutputMismatch = errors.New("output mismatch")

	// ErrTimeout means the program was still running when Config.Timeout
	// elapsed.
	ErrTimeout = errors.New("timeout")
)

// MismatchError reports the expected and actual content of one output stream.
type MismatchError struct {
	// Stream is "stdout" or "stderr".
	Stream string

	Expected, Actual string
}

// Error implements error
func (e *MismatchError) Error() string {
	return fmt.Sprintf("%v: %s: expected %q, got %q", ErrOutputMismatch, e.Stream, e.Expected, e.Actual)
}

// Unwrap allows errors.Is to match ErrOutputMismatch.
func (e *MismatchError) Unwrap() error {
	return ErrOutputMismatch
}

// Diff returns a unified diff from the expected to the actual output.
func (e *MismatchError) Diff() string {
	diff, err := difflib.GetUnifiedDiffString(difflib.UnifiedDiff{
		A:        difflib.SplitLines(e.Expected),
		B:        difflib.SplitLines(e.Actual),
		FromFile: "expected " + e.Stream,
		ToFile:   "actual " + e.Stream,
		Context:  3,
	})
	if err != nil {
		return ""
	}
	return diff
}
