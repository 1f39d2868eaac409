package drivertest

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"

	"github.com/tetratelabs/wasitest/driver"
	"github.com/tetratelabs/wasitest/internal/testing/wasmgen"
	"github.com/tetratelabs/wasitest/runner"
)

// TestTest runs real programs through a runner.Runner.
func TestTest(t *testing.T) {
	dir := t.TempDir()
	programs := map[string][]byte{
		"hello": wasmgen.New().Stdout("hello").TestData("stdout = 'hello'").Build(),
		"exit":  wasmgen.New().Exit(42).TestData("exit = 42").Build(),
		"dirs":  wasmgen.New().WritePreopens().TestData("dirs = ['/tmp']\nstdout = '|/tmp|'").Build(),
	}
	for name, bin := range programs {
		require.NoError(t, os.WriteFile(filepath.Join(dir, name+".wasm"), bin, 0o600))
	}
	artifacts, err := driver.FromDir(dir)
	require.NoError(t, err)

	Test(t, runner.New(runner.Config{Logger: zaptest.NewLogger(t)}), artifacts)
}
