// Package drivertest runs test programs as subtests of "go test".
package drivertest

import (
	"context"
	"testing"

	"github.com/tetratelabs/wasitest/driver"
)

// Test runs each artifact as a parallel subtest of t.
func Test(t *testing.T, v driver.Verifier, artifacts []driver.Artifact) {
	if len(artifacts) == 0 {
		t.Skip("no test programs found")
	}
	for _, a := range artifacts {
		a := a
		t.Run(a.Name, func(t *testing.T) {
			t.Parallel()
			if err := v.Run(context.Background(), a.Path); err != nil {
				t.Error(driver.Describe(err))
			}
		})
	}
}
