// SPDX-License-Identifier: MPL-2.0

package cmd

import (
	"context"
	"io"
	"os"

	"github.com/charmbracelet/log"
	"github.com/prometheus/client_golang/prometheus"

	"github.com/postroj/postroj/internal/config"
	"github.com/postroj/postroj/internal/logging"
	"github.com/postroj/postroj/internal/metrics"
	"github.com/postroj/postroj/internal/runner"
	"github.com/postroj/postroj/internal/target"
)

type (
	// App wires CLI services and shared dependencies. All cobra handlers
	// receive an App and reach configuration, streams and metrics through it.
	App struct {
		Config      config.Provider
		Registry    *prometheus.Registry
		Metrics     *metrics.Collector
		stdin       io.Reader
		stdout      io.Writer
		stderr      io.Writer
		execCommand runner.ExecCommandFunc

		flags rootFlags
	}

	// Dependencies defines the injection points for building an App. Nil
	// fields are replaced with production defaults by NewApp.
	Dependencies struct {
		Config config.Provider
		// Registry collects the metrics served by `boot --metrics-addr`.
		Registry *prometheus.Registry
		Stdin    io.Reader
		Stdout   io.Writer
		Stderr   io.Writer
		// ExecCommand replaces exec.CommandContext for every child process.
		ExecCommand runner.ExecCommandFunc
	}

	// rootFlags holds the persistent flags.
	rootFlags struct {
		configPath string
		logLevel   string
		logFormat  string
		verbose    bool
	}

	// session is what a command handler needs after flags are parsed.
	session struct {
		cfg      *config.Config
		logger   *log.Logger
		executor *target.Executor
	}
)

// NewApp creates an App, filling unset dependencies with defaults.
func NewApp(deps Dependencies) (*App, error) {
	if deps.Stdin == nil {
		deps.Stdin = os.Stdin
	}
	if deps.Stdout == nil {
		deps.Stdout = os.Stdout
	}
	if deps.Stderr == nil {
		deps.Stderr = os.Stderr
	}
	if deps.Config == nil {
		deps.Config = config.NewProvider()
	}
	if deps.Registry == nil {
		deps.Registry = prometheus.NewRegistry()
	}

	return &App{
		Config:      deps.Config,
		Registry:    deps.Registry,
		Metrics:     metrics.NewCollectorWithRegistry(deps.Registry),
		stdin:       deps.Stdin,
		stdout:      deps.Stdout,
		stderr:      deps.Stderr,
		execCommand: deps.ExecCommand,
	}, nil
}

// loadOptions returns the config lookup selected by --config.
func (a *App) loadOptions() config.LoadOptions {
	return config.LoadOptions{ConfigFilePath: a.flags.configPath}
}

// loadConfig loads the configuration and applies the logging flags.
func (a *App) loadConfig(ctx context.Context) (*config.Config, error) {
	cfg, err := a.Config.Load(ctx, a.loadOptions())
	if err != nil {
		return nil, err
	}
	if a.flags.logLevel != "" {
		cfg.Log.Level = a.flags.logLevel
	}
	if a.flags.logFormat != "" {
		cfg.Log.Format = a.flags.logFormat
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// newSession loads configuration and builds the logger and executor.
func (a *App) newSession(ctx context.Context) (*session, error) {
	cfg, err := a.loadConfig(ctx)
	if err != nil {
		return nil, err
	}

	logOpts := cfg.LoggingOptions()
	logOpts.Prefix = config.AppName
	logger, err := logging.New(a.stderr, logOpts)
	if err != nil {
		return nil, err
	}

	runnerOpts := []runner.Option{
		runner.WithLogger(logger),
		runner.WithStdio(a.stdin, a.stdout, a.stderr),
	}
	if a.execCommand != nil {
		runnerOpts = append(runnerOpts, runner.WithExecCommand(a.execCommand))
	}

	executor := target.NewExecutor(
		runner.New(runnerOpts...),
		target.WithToolchain(cfg.Toolchain()),
		target.WithLogger(logger),
		target.WithRecorder(a.Metrics),
	)

	return &session{cfg: cfg, logger: logger, executor: executor}, nil
}
