// SPDX-License-Identifier: MPL-2.0

package cmd

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"

	"github.com/spf13/afero"

	"github.com/yokehq/yoke/internal/config"
	"github.com/yokehq/yoke/internal/discovery"
	"github.com/yokehq/yoke/internal/registry"
	"github.com/yokehq/yoke/internal/scriptunit"
	"github.com/yokehq/yoke/internal/store"
	"github.com/yokehq/yoke/internal/taskqueue"
	"github.com/yokehq/yoke/internal/tracing"
	"github.com/yokehq/yoke/pkg/compose"
	"github.com/yokehq/yoke/pkg/resolve"
)

type (
	// App wires CLI services and shared dependencies. Every command handler
	// receives an App and builds its services through it.
	App struct {
		Config config.Provider
		fs     afero.Fs
		stdout io.Writer
		stderr io.Writer

		// global flags
		configPath string
		verbose    bool
		trace      bool
	}

	// Dependencies defines the injection points for building an App. Nil
	// fields are replaced with production defaults by NewApp.
	Dependencies struct {
		Config config.Provider
		Fs     afero.Fs
		Stdout io.Writer
		Stderr io.Writer
	}

	// services are the collaborators behind one command invocation.
	services struct {
		cfg      *config.Config
		logger   *slog.Logger
		store    *store.DirStore
		registry *registry.CachedFetcher
		locator  *discovery.Locator
		queue    *taskqueue.Queue
		pipeline *resolve.Pipeline
		env      *compose.Environment
		tracing  *tracing.Provider
	}
)

// NewApp builds an App, filling unset dependencies with the OS defaults.
func NewApp(deps Dependencies) *App {
	app := &App{
		Config: deps.Config,
		fs:     deps.Fs,
		stdout: deps.Stdout,
		stderr: deps.Stderr,
	}
	if app.fs == nil {
		app.fs = afero.NewOsFs()
	}
	if app.Config == nil {
		app.Config = config.NewProvider(config.WithFs(app.fs))
	}
	if app.stdout == nil {
		app.stdout = os.Stdout
	}
	if app.stderr == nil {
		app.stderr = os.Stderr
	}
	return app
}

func (a *App) loadOptions() config.LoadOptions {
	return config.LoadOptions{ConfigFilePath: a.configPath}
}

func (a *App) loadConfig(ctx context.Context) (*config.Config, error) {
	cfg, err := a.Config.Load(ctx, a.loadOptions())
	if err != nil {
		return nil, err
	}
	if a.verbose {
		cfg.UI.Verbose = true
	}
	if a.trace {
		cfg.Tracing.Enabled = true
	}
	return cfg, nil
}

// services loads the configuration and builds the composition environment
// around it. Callers must close the result.
func (a *App) services(ctx context.Context) (*services, error) {
	cfg, err := a.loadConfig(ctx)
	if err != nil {
		return nil, err
	}

	logger := newLogger(a.stderr, cfg.UI.EffectiveLogLevel())
	tp, err := tracing.NewProvider(tracing.Config{
		Enabled:  cfg.Tracing.Enabled,
		Exporter: string(cfg.Tracing.Exporter),
		Writer:   a.stderr,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to set up tracing: %w", err)
	}
	tracer := tp.Tracer()

	if err := a.fs.MkdirAll(cfg.StoreDir, 0o755); err != nil {
		return nil, fmt.Errorf("failed to create package store: %w", err)
	}
	packages := store.NewDirStore(a.fs, cfg.StoreDir)
	fetcher := registry.NewCachedFetcher(registry.NewDirRegistry(a.fs, cfg.RegistryDir), cfg.RegistryCacheTTL, logger)
	locator := discovery.New(a.fs,
		discovery.WithStoreDir(cfg.StoreDir),
		discovery.WithLookupPaths(cfg.LookupPaths...),
		discovery.WithLogger(logger),
	)
	queue := taskqueue.New(taskqueue.WithLogger(logger), taskqueue.WithTracer(tracer))

	pipeline := &resolve.Pipeline{
		Store:    packages,
		Registry: fetcher,
		Installer: &store.ShellInstaller{
			Command: cfg.InstallCommand,
			Dir:     cfg.StoreDir,
			Env:     []string{"YOKE_STORE_DIR=" + cfg.StoreDir},
			Stdout:  a.stderr,
			Stderr:  a.stderr,
			Logger:  logger,
		},
		Locator: locator,
		Logger:  logger,
		Tracer:  tracer,
	}
	env := compose.NewEnvironment(
		compose.WithFs(a.fs),
		compose.WithLogger(logger),
		compose.WithTracer(tracer),
		compose.WithPipeline(pipeline),
		compose.WithTaskQueue(queue),
		compose.WithLoader(scriptunit.NewLoader(a.fs, scriptunit.WithLogger(logger))),
	)

	return &services{
		cfg:      cfg,
		logger:   logger,
		store:    packages,
		registry: fetcher,
		locator:  locator,
		queue:    queue,
		pipeline: pipeline,
		env:      env,
		tracing:  tp,
	}, nil
}

// Close flushes pending spans.
func (s *services) Close(ctx context.Context) error {
	if err := s.tracing.Shutdown(context.WithoutCancel(ctx)); err != nil && !errors.Is(err, context.Canceled) {
		return fmt.Errorf("failed to flush traces: %w", err)
	}
	return nil
}
