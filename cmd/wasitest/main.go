package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/signal"
	"strings"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/spf13/pflag"
	"github.com/spf13/viper"
	"github.com/tetratelabs/wazero"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"github.com/tetratelabs/wasitest/driver"
	"github.com/tetratelabs/wasitest/environment"
	"github.com/tetratelabs/wasitest/internal/version"
	"github.com/tetratelabs/wasitest/runner"
)

// envPrefix prefixes the environment variables that override run flags,
// e.g. WASITEST_PARALLEL for --parallel.
const envPrefix = "WASITEST"

func main() {
	doMain(os.Stdout, os.Stderr, os.Exit)
}

// doMain is separated out for the purpose of unit testing.
func doMain(stdOut, stdErr io.Writer, exit func(code int)) {
	args := os.Args[1:]
	if len(args) == 0 || args[0] == "-h" || args[0] == "--help" {
		printUsage(stdErr)
		exit(0)
	}

	subCmd := args[0]
	switch subCmd {
	case "run":
		doRun(args[1:], stdOut, stdErr, exit)
	case "inspect":
		doInspect(args[1:], stdOut, stdErr, exit)
	case "embed":
		doEmbed(args[1:], stdErr, exit)
	case "version":
		fmt.Fprintf(stdOut, "wasitest %s (wazero %s)\n", version.Main(), version.Dependency("github.com/tetratelabs/wazero"))
		exit(0)
	default:
		fmt.Fprintln(stdErr, "invalid command")
		printUsage(stdErr)
		exit(1)
	}
}

func doRun(args []string, stdOut, stdErr io.Writer, exit func(code int)) {
	flags := pflag.NewFlagSet("run", pflag.ContinueOnError)
	flags.SetOutput(stdErr)
	flags.Usage = func() {}
	flags.String("dir", "", "directory to run every *.wasm file of, when no artifacts are given")
	flags.String("env-prefix", driver.DefaultEnvPrefix, "environment variable prefix naming artifacts, "+
		"used when neither artifacts nor --dir are given")
	flags.Int("parallel", 0, "maximum number of tests to run at once, defaults to GOMAXPROCS")
	flags.Duration("timeout", 0, "maximum duration of each test, zero for no limit")
	flags.Bool("interp", false, "force interpreter")
	flags.String("cachedir", "", "writeable directory for native code compiled from wasm")
	flags.String("tmpdir", "", "parent directory of the directories pre-opened for tests")
	flags.String("metrics-textfile", "", "file to write Prometheus metrics to after the run")
	flags.String("log-level", "warn", "log level: debug, info, warn or error")

	if err := flags.Parse(args); errors.Is(err, pflag.ErrHelp) {
		printRunUsage(stdErr, flags)
		exit(0)
	} else if err != nil {
		printRunUsage(stdErr, flags)
		exit(1)
	}

	v := viper.New()
	v.SetEnvPrefix(envPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer("-", "_"))
	v.AutomaticEnv()
	if err := v.BindPFlags(flags); err != nil {
		fmt.Fprintf(stdErr, "invalid flags: %v\n", err)
		exit(1)
	}

	exit(runTests(flags.Args(), v, stdOut, stdErr))
}

// runTests runs the artifacts selected by args and v and returns the exit
// code. Deferred cleanup completes before it returns.
func runTests(args []string, v *viper.Viper, stdOut, stdErr io.Writer) int {
	logger, err := newLogger(v.GetString("log-level"), stdErr)
	if err != nil {
		fmt.Fprintf(stdErr, "invalid log-level: %v\n", err)
		return 1
	}
	defer logger.Sync() //nolint

	artifacts, err := discover(args, v)
	if err != nil {
		fmt.Fprintf(stdErr, "error finding artifacts: %v\n", err)
		return 1
	}

	var rtc wazero.RuntimeConfig
	if v.GetBool("interp") {
		rtc = wazero.NewRuntimeConfigInterpreter()
	} else {
		rtc = wazero.NewRuntimeConfig()
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()

	config := runner.Config{
		RuntimeConfig: rtc,
		Logger:        logger,
		Timeout:       v.GetDuration("timeout"),
		TempDir:       v.GetString("tmpdir"),
	}
	if dir := v.GetString("cachedir"); dir != "" {
		cache, err := wazero.NewCompilationCacheWithDir(dir)
		if err != nil {
			fmt.Fprintf(stdErr, "invalid cachedir: %v\n", err)
			return 1
		}
		defer cache.Close(context.Background()) //nolint
		config.Cache = cache
	}

	registry := prometheus.NewRegistry()
	metrics, err := driver.NewMetrics(registry)
	if err != nil {
		fmt.Fprintf(stdErr, "error registering metrics: %v\n", err)
		return 1
	}

	suite := &driver.Suite{
		Verifier:    runner.New(config),
		Parallelism: v.GetInt("parallel"),
		Logger:      logger,
		Metrics:     metrics,
	}
	logger.Info("running tests", zap.Int("count", len(artifacts)))
	_, failed := driver.Report(stdOut, suite.Run(ctx, artifacts))

	if path := v.GetString("metrics-textfile"); path != "" {
		if err = prometheus.WriteToTextfile(path, registry); err != nil {
			fmt.Fprintf(stdErr, "error writing metrics: %v\n", err)
			return 1
		}
	}

	if failed > 0 {
		return 1
	}
	return 0
}

// discover returns the artifacts named by args, else those in the "dir"
// setting, else those named by environment variables.
func discover(args []string, v *viper.Viper) ([]driver.Artifact, error) {
	if len(args) > 0 {
		return driver.FromPaths(args...), nil
	}
	if dir := v.GetString("dir"); dir != "" {
		return driver.FromDir(dir)
	}
	return driver.FromEnviron(v.GetString("env-prefix"), os.Environ()), nil
}

func newLogger(level string, stdErr io.Writer) (*zap.Logger, error) {
	lvl, err := zapcore.ParseLevel(level)
	if err != nil {
		return nil, err
	}
	core := zapcore.NewCore(
		zapcore.NewConsoleEncoder(zap.NewDevelopmentEncoderConfig()),
		zapcore.AddSync(stdErr),
		lvl,
	)
	return zap.New(core), nil
}

func doInspect(args []string, stdOut, stdErr io.Writer, exit func(code int)) {
	if len(args) != 1 {
		fmt.Fprintln(stdErr, "missing path to wasm file")
		printInspectUsage(stdErr)
		exit(1)
	}

	wasm, err := os.ReadFile(args[0])
	if err != nil {
		fmt.Fprintf(stdErr, "error reading wasm binary: %v\n", err)
		exit(1)
	}

	e, found, err := environment.Lookup(wasm)
	if err != nil {
		fmt.Fprintf(stdErr, "error reading %s: %v\n", environment.SectionName, err)
		exit(1)
	}
	if !found {
		fmt.Fprintf(stdErr, "no %s section, defaults apply\n", environment.SectionName)
	}

	data, err := environment.Encode(e)
	if err != nil {
		fmt.Fprintf(stdErr, "error encoding %s: %v\n", environment.SectionName, err)
		exit(1)
	}
	stdOut.Write(data) //nolint
	exit(0)
}

func doEmbed(args []string, stdErr io.Writer, exit func(code int)) {
	flags := pflag.NewFlagSet("embed", pflag.ContinueOnError)
	flags.SetOutput(stdErr)
	flags.Usage = func() {}
	dataPath := flags.String("data", "", "TOML file with the expectations to embed")

	if err := flags.Parse(args); errors.Is(err, pflag.ErrHelp) {
		printEmbedUsage(stdErr, flags)
		exit(0)
	} else if err != nil {
		printEmbedUsage(stdErr, flags)
		exit(1)
	}

	if *dataPath == "" || flags.NArg() != 2 {
		fmt.Fprintln(stdErr, "missing --data, input or output path")
		printEmbedUsage(stdErr, flags)
		exit(1)
	}
	inPath, outPath := flags.Arg(0), flags.Arg(1)

	data, err := os.ReadFile(*dataPath)
	if err != nil {
		fmt.Fprintf(stdErr, "error reading data: %v\n", err)
		exit(1)
	}
	e, err := environment.Decode(data)
	if err != nil {
		fmt.Fprintf(stdErr, "invalid data: %v\n", err)
		exit(1)
	}

	wasm, err := os.ReadFile(inPath)
	if err != nil {
		fmt.Fprintf(stdErr, "error reading wasm binary: %v\n", err)
		exit(1)
	}
	if wasm, err = environment.Embed(wasm, e); err != nil {
		fmt.Fprintf(stdErr, "error embedding data: %v\n", err)
		exit(1)
	}
	if err = os.WriteFile(outPath, wasm, 0o644); err != nil {
		fmt.Fprintf(stdErr, "error writing wasm binary: %v\n", err)
		exit(1)
	}
	exit(0)
}

func printUsage(stdErr io.Writer) {
	fmt.Fprintln(stdErr, "wasitest CLI")
	fmt.Fprintln(stdErr)
	fmt.Fprintln(stdErr, "Usage:\n  wasitest <command>")
	fmt.Fprintln(stdErr)
	fmt.Fprintln(stdErr, "Commands:")
	fmt.Fprintln(stdErr, "  run\t\tRuns WASI test programs and verifies their embedded expectations")
	fmt.Fprintln(stdErr, "  inspect\tPrints the expectations embedded in a test program")
	fmt.Fprintln(stdErr, "  embed\t\tEmbeds expectations into a WebAssembly binary")
	fmt.Fprintln(stdErr, "  version\tDisplays the version of wasitest CLI")
}

func printRunUsage(stdErr io.Writer, flags *pflag.FlagSet) {
	fmt.Fprintln(stdErr, "wasitest CLI")
	fmt.Fprintln(stdErr)
	fmt.Fprintln(stdErr, "Usage:\n  wasitest run <options> [<path to wasm file>...]")
	fmt.Fprintln(stdErr)
	fmt.Fprintln(stdErr, "Options (also set by "+envPrefix+"_<OPTION>, e.g. "+envPrefix+"_LOG_LEVEL):")
	fmt.Fprint(stdErr, flags.FlagUsages())
}

func printInspectUsage(stdErr io.Writer) {
	fmt.Fprintln(stdErr, "wasitest CLI")
	fmt.Fprintln(stdErr)
	fmt.Fprintln(stdErr, "Usage:\n  wasitest inspect <path to wasm file>")
}

func printEmbedUsage(stdErr io.Writer, flags *pflag.FlagSet) {
	fmt.Fprintln(stdErr, "wasitest CLI")
	fmt.Fprintln(stdErr)
	fmt.Fprintln(stdErr, "Usage:\n  wasitest embed --data <toml file> <input wasm> <output wasm>")
	fmt.Fprintln(stdErr)
	fmt.Fprintln(stdErr, "Options:")
	fmt.Fprint(stdErr, flags.FlagUsages())
}
