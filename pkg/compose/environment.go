// SPDX-License-Identifier: MPL-2.0

package compose

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/spf13/afero"
	"go.opentelemetry.io/otel/trace"
	"go.opentelemetry.io/otel/trace/noop"

	"github.com/yokehq/yoke/pkg/resolve"
)

type (
	// Environment holds what every context of a tree shares: the catalog of
	// unit definitions, collaborators and the filesystem.
	Environment struct {
		catalog  *Catalog
		fs       afero.Fs
		shared   Options
		pipeline *resolve.Pipeline
		queue    TaskQueue
		loader   Loader
		logger   *slog.Logger
		tracer   trace.Tracer
	}

	// EnvOption configures an Environment.
	EnvOption func(*Environment)
)

// WithFs sets the filesystem configuration documents are read from.
func WithFs(fs afero.Fs) EnvOption { return func(e *Environment) { e.fs = fs } }

// WithCatalog sets the catalog of unit definitions.
func WithCatalog(c *Catalog) EnvOption { return func(e *Environment) { e.catalog = c } }

// WithSharedOptions sets construction options passed to every unit.
func WithSharedOptions(o Options) EnvOption {
	return func(e *Environment) { e.shared = o.Clone() }
}

// WithPipeline sets the pipeline used to install and discover units that
// are not registered. When the pipeline has no Registrar the environment
// registers itself.
func WithPipeline(p *resolve.Pipeline) EnvOption { return func(e *Environment) { e.pipeline = p } }

// WithTaskQueue sets the queue loaded units are handed to.
func WithTaskQueue(q TaskQueue) EnvOption { return func(e *Environment) { e.queue = q } }

// WithLoader sets the loader turning discovered generators into factories.
func WithLoader(l Loader) EnvOption { return func(e *Environment) { e.loader = l } }

// WithLogger sets the logger.
func WithLogger(l *slog.Logger) EnvOption { return func(e *Environment) { e.logger = l } }

// WithTracer sets the tracer.
func WithTracer(t trace.Tracer) EnvOption { return func(e *Environment) { e.tracer = t } }

// NewEnvironment creates an environment. Defaults: an empty catalog, the OS
// filesystem, slog.Default and a no-op tracer.
func NewEnvironment(opts ...EnvOption) *Environment {
	e := &Environment{}
	for _, opt := range opts {
		opt(e)
	}
	if e.catalog == nil {
		e.catalog = NewCatalog()
	}
	if e.fs == nil {
		e.fs = afero.NewOsFs()
	}
	if e.logger == nil {
		e.logger = slog.Default()
	}
	if e.tracer == nil {
		e.tracer = noop.NewTracerProvider().Tracer("yoke")
	}
	if e.pipeline != nil && e.pipeline.Registrar == nil {
		e.pipeline.Registrar = e
	}
	return e
}

// Catalog returns the catalog of unit definitions.
func (e *Environment) Catalog() *Catalog { return e.catalog }

// Fs returns the filesystem.
func (e *Environment) Fs() afero.Fs { return e.fs }

// Logger returns the logger.
func (e *Environment) Logger() *slog.Logger { return e.logger }

// Root creates the root context of a tree.
func (e *Environment) Root(destinationRoot string) *Context {
	return newContext(e, nil, "", destinationRoot, NewSharedState(), nil)
}

// Register loads d with the environment's loader and registers the result
// under d.Namespace. A key that is already registered is left untouched.
func (e *Environment) Register(ctx context.Context, d resolve.Discovered) error {
	if e.catalog.Has(d.Namespace) {
		return nil
	}
	if e.loader == nil {
		return errors.New("no unit loader configured")
	}

	factory, err := e.loader.Load(ctx, d)
	if err != nil {
		return fmt.Errorf("load %s: %w", d.Path, err)
	}

	err = e.catalog.Register(d.Namespace, Definition{
		PackageName: d.PackageName,
		Version:     d.Version,
		Path:        d.Path,
		Factory:     factory,
	})
	if errors.Is(err, ErrDuplicateDefinition) {
		return nil
	}
	if err == nil {
		e.logger.Debug("registered unit", "key", d.Namespace, "path", d.Path)
	}
	return err
}
