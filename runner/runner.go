// Package runner executes WASI test programs and verifies them against the
// expectations embedded in their own binary.
//
// A run is isolated: it owns its runtime, its captured output and its
// pre-opened directories. Only Config.Cache may be shared between runs.
package runner

import (
	"context"
	"crypto/rand"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/tetratelabs/wazero"
	"github.com/tetratelabs/wazero/api"
	"github.com/tetratelabs/wazero/imports/wasi_snapshot_preview1"
	"go.uber.org/multierr"
	"go.uber.org/zap"

	"github.com/tetratelabs/wasitest/environment"
)

// Config configures a Runner. The zero value is valid.
type Config struct {
	// RuntimeConfig defaults to wazero.NewRuntimeConfig.
	RuntimeConfig wazero.RuntimeConfig

	// Cache is shared by every run when set.
	Cache wazero.CompilationCache

	// Logger defaults to zap.NewNop.
	Logger *zap.Logger

	// Timeout bounds each run. Zero means only the caller's context does.
	Timeout time.Duration

	// TempDir is the parent of pre-opened directories. Empty means
	// os.TempDir.
	TempDir string
}

// Runner verifies test programs. It is safe for concurrent use.
type Runner struct {
	runtimeConfig wazero.RuntimeConfig
	logger        *zap.Logger
	timeout       time.Duration
	tempDir       string
}

// New returns a Runner for config.
func New(config Config) *Runner {
	r := &Runner{
		runtimeConfig: config.RuntimeConfig,
		logger:        config.Logger,
		timeout:       config.Timeout,
		tempDir:       config.TempDir,
	}
	if r.runtimeConfig == nil {
		r.runtimeConfig = wazero.NewRuntimeConfig()
	}
	if config.Cache != nil {
		r.runtimeConfig = r.runtimeConfig.WithCompilationCache(config.Cache)
	}
	// Cancelling ctx or reaching Timeout stops a program that never returns.
	r.runtimeConfig = r.runtimeConfig.WithCloseOnContextDone(true)
	if r.logger == nil {
		r.logger = zap.NewNop()
	}
	return r
}

// Run reads the test program at path and verifies it with RunBinary.
func (r *Runner) Run(ctx context.Context, path string) error {
	wasm, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("%w: %w", ErrIO, err)
	}
	return r.RunBinary(ctx, filepath.Base(path), wasm)
}

// RunBinary runs wasm to completion and returns nil when its exit code,
// stderr and stdout all match its embedded expectations. Otherwise, the
// error combines every failure observed. name is only used for logging and
// as the module name.
func (r *Runner) RunBinary(ctx context.Context, name string, wasm []byte) (err error) {
	logger := r.logger.With(zap.String("test", name))

	env, found, err := environment.Lookup(wasm)
	if err != nil {
		return fmt.Errorf("%w: %w", ErrMetadata, err)
	}
	if !found {
		logger.Debug("no expectations embedded, using defaults", zap.String("section", environment.SectionName))
	}

	if r.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, r.timeout)
		defer cancel()
	}

	dirs, err := newScratch(r.tempDir, env.Dirs)
	if err != nil {
		return fmt.Errorf("%w: %w", ErrSetup, err)
	}
	// Registered first so it runs after the runtime is closed.
	defer multierr.AppendInvoke(&err, multierr.Invoke(dirs.release))

	rt := wazero.NewRuntimeWithConfig(ctx, r.runtimeConfig)
	defer closeInto(ctx, &err, rt)

	if _, err = wasi_snapshot_preview1.Instantiate(ctx, rt); err != nil {
		return fmt.Errorf("%w: instantiate WASI: %w", ErrSetup, err)
	}

	compiled, err := rt.CompileModule(ctx, wasm)
	if err != nil {
		return fmt.Errorf("%w: compile: %w", ErrSetup, err)
	}

	var stdout, stderr capture
	config := wazero.NewModuleConfig().
		WithName(name).
		// _start is called below, so its error is ours to interpret.
		WithStartFunctions().
		WithStdin(strings.NewReader(env.Stdin)).
		WithStdout(&stdout).
		WithStderr(&stderr).
		WithArgs(env.Args...).
		WithFSConfig(dirs.fsConfig()).
		WithRandSource(rand.Reader).
		WithSysWalltime().
		WithSysNanotime().
		WithSysNanosleep()
	for _, k := range env.VarNames() {
		config = config.WithEnv(k, env.Vars[k])
	}

	mod, err := rt.InstantiateModule(ctx, compiled, config)
	if err != nil {
		return fmt.Errorf("%w: instantiate: %w", ErrSetup, err)
	}

	start := mod.ExportedFunction("_start")
	if start == nil {
		return fmt.Errorf("%w: %s does not export _start", ErrSetup, name)
	}

	begin := time.Now()
	_, callErr := start.Call(ctx)
	logger.Debug("program returned",
		zap.Duration("elapsed", time.Since(begin)),
		zap.NamedError("result", callErr))

	return multierr.Combine(
		checkExit(ctx, env.Exit, callErr),
		checkOutput("stderr", env.Stderr, stderr.seal()),
		checkOutput("stdout", env.Stdout, stdout.seal()),
	)
}

// closeInto closes c and appends any error to err. c is closed even when ctx
// is already done.
func closeInto(ctx context.Context, err *error, c api.Closer) {
	multierr.AppendInvoke(err, multierr.Invoke(func() error {
		return c.Close(context.WithoutCancel(ctx))
	}))
}
