package runner

import (
	"context"
	"errors"
	"fmt"

	"github.com/tetratelabs/wazero/sys"
)

// exitCode maps the error returned by _start to the program's exit code.
// A program that returned normally exited with zero.
func exitCode(ctx context.Context, callErr error) (int32, error) {
	if callErr == nil {
		return 0, nil
	}

	var exitErr *sys.ExitError
	if !errors.As(callErr, &exitErr) {
		return 0, fmt.Errorf("%w: %w", ErrUnexpectedTrap, callErr)
	}

	// The runtime closes the module with these codes when ctx is done, but
	// a program may also exit with them on its own.
	switch code := exitErr.ExitCode(); {
	case code == sys.ExitCodeDeadlineExceeded && errors.Is(ctx.Err(), context.DeadlineExceeded):
		return 0, fmt.Errorf("%w: %w", ErrTimeout, ctx.Err())
	case code == sys.ExitCodeContextCanceled && errors.Is(ctx.Err(), context.Canceled):
		return 0, fmt.Errorf("%w: interrupted: %w", ErrUnexpectedTrap, ctx.Err())
	default:
		return int32(code), nil
	}
}

func checkExit(ctx context.Context, expected int32, callErr error) error {
	actual, err := exitCode(ctx, callErr)
	if err != nil {
		return err
	}
	if actual != expected {
		return fmt.Errorf("%w: expected %d, got %d", ErrExitCodeMismatch, expected, actual)
	}
	return nil
}

func checkOutput(stream, expected, actual string) error {
	if expected == actual {
		return nil
	}
	return &MismatchError{Stream: stream, Expected: expected, Actual: actual}
}
