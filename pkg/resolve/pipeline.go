// SPDX-License-Identifier: MPL-2.0

package resolve

import (
	"context"
	"errors"
	"log/slog"
	"maps"
	"slices"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"go.opentelemetry.io/otel/trace/noop"

	"github.com/yokehq/yoke/pkg/namespace"
	"github.com/yokehq/yoke/pkg/semver"
)

// Span and event names recorded by the pipeline.
const (
	SpanPrepare         = "resolve.prepare"
	SpanResolvePackage  = "resolve.package"
	SpanInstall         = "resolve.install"
	SpanLookup          = "resolve.lookup"
	EventFetchFailed    = "registry.fetch_failed"
	EventNoMatch        = "registry.no_matching_version"
	EventInstallFailed  = "install.failed"
	EventLookupFailed   = "lookup.failed"
	EventRegisterFailed = "lookup.register_failed"
)

// Pipeline prepares an environment so that a set of namespaces can be
// instantiated: it installs missing packages from the registry, including
// their generator peer dependencies, and registers generators found locally.
//
// Every collaborator is optional. A missing Store treats nothing as
// installed, a missing Registry or Installer disables installation, and a
// missing Locator or Registrar disables local lookup.
type Pipeline struct {
	Store     PackageStore
	Registry  MetadataFetcher
	Installer Installer
	Locator   Locator
	Registrar Registrar
	Logger    *slog.Logger
	Tracer    trace.Tracer
}

// walk is the state of one peer-dependency resolution.
type walk struct {
	batch   *InstallBatch
	visited map[string]struct{}
}

// Prepare parses raws and calls PrepareNamespaces.
func (p *Pipeline) Prepare(ctx context.Context, checker Checker, raws ...string) (bool, error) {
	namespaces := make([]namespace.Namespace, 0, len(raws))
	for _, raw := range raws {
		ns, err := namespace.Parse(raw)
		if err != nil {
			return false, err
		}
		namespaces = append(namespaces, ns)
	}
	return p.PrepareNamespaces(ctx, checker, namespaces...)
}

// PrepareNamespaces makes every namespace satisfiable by checker, or fails
// with an *EnvironmentPreparationError naming the ones that are not.
// Namespaces already satisfied are never touched and no collaborator is
// called when all of them are.
func (p *Pipeline) PrepareNamespaces(ctx context.Context, checker Checker, namespaces ...namespace.Namespace) (bool, error) {
	missing := missingOf(checker, dedupe(namespaces))
	if len(missing) == 0 {
		return true, nil
	}

	ctx, span := p.tracer().Start(ctx, SpanPrepare, trace.WithAttributes(
		attribute.StringSlice("yoke.missing", ids(missing)),
	))
	defer span.End()

	w := &walk{batch: NewInstallBatch(), visited: make(map[string]struct{})}
	for _, ns := range missing {
		if err := ctx.Err(); err != nil {
			return false, err
		}
		if !ns.HasVersionRange() {
			p.logger().Debug("no version range, skipping install", "namespace", ns.ID())
			continue
		}
		if version, ok := p.installed(ctx, ns.PackageName(), ns.VersionRange()); ok {
			p.logger().Debug("package already installed", "package", ns.PackageName(), "version", version)
			continue
		}
		if err := p.resolvePackage(ctx, w, ns.PackageName(), ns.VersionRange()); err != nil {
			return false, err
		}
	}

	if err := p.install(ctx, w.batch); err != nil {
		return false, err
	}
	missing = missingOf(checker, missing)

	if len(missing) > 0 {
		if err := p.lookup(ctx, missing); err != nil {
			return false, err
		}
		missing = missingOf(checker, missing)
	}

	if len(missing) > 0 {
		err := &EnvironmentPreparationError{Missing: ids(missing)}
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return false, err
	}

	span.SetStatus(codes.Ok, "")
	return true, nil
}

// resolvePackage adds name to the batch with the highest registry version
// satisfying versionRange, then walks its generator peer dependencies.
// Peers are resolved before returning so they precede name in the batch
// order. Registry failures are logged and absorbed.
func (p *Pipeline) resolvePackage(ctx context.Context, w *walk, name, versionRange string) error {
	if _, seen := w.visited[name]; seen {
		return nil
	}
	w.visited[name] = struct{}{}

	if p.Registry == nil {
		return nil
	}
	if err := ctx.Err(); err != nil {
		return err
	}

	ctx, span := p.tracer().Start(ctx, SpanResolvePackage, trace.WithAttributes(
		attribute.String("yoke.package", name),
		attribute.String("yoke.range", versionRange),
	))
	defer span.End()

	meta, err := p.Registry.FetchAll(ctx, name)
	if err == nil && meta != nil && meta.Error != "" {
		err = errors.New(meta.Error)
	}
	if err == nil && meta == nil {
		err = errors.New("empty registry response")
	}
	if err != nil {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return ctxErr
		}
		p.logger().Warn("registry fetch failed", "package", name, "error", err)
		span.AddEvent(EventFetchFailed, trace.WithAttributes(attribute.String("error", err.Error())))
		return nil
	}

	version, ok := semver.MaxSatisfying(slices.Collect(maps.Keys(meta.Versions)), versionRange)
	if !ok {
		p.logger().Warn("no registry version satisfies range", "package", name, "range", versionRange)
		span.AddEvent(EventNoMatch)
		return nil
	}
	span.SetAttributes(attribute.String("yoke.version", version))
	w.batch.Add(InstallEntry{Name: name, Range: versionRange, Version: version})

	peers := meta.Versions[version].PeerDependencies
	for _, peer := range slices.Sorted(maps.Keys(peers)) {
		if !namespace.IsGeneratorPackage(peer) {
			continue
		}
		peerRange := peers[peer]
		if _, ok := p.installed(ctx, peer, peerRange); ok {
			continue
		}
		if err := p.resolvePackage(ctx, w, peer, peerRange); err != nil {
			return err
		}
		if w.batch.Has(peer) {
			w.batch.Require(name, peer)
		}
	}
	return nil
}

func (p *Pipeline) install(ctx context.Context, batch *InstallBatch) error {
	if batch.Len() == 0 || p.Installer == nil {
		return nil
	}

	ctx, span := p.tracer().Start(ctx, SpanInstall, trace.WithAttributes(
		attribute.Int("yoke.batch_size", batch.Len()),
	))
	defer span.End()

	p.logger().Info("installing packages", "packages", batch.Map())
	if err := p.Installer.Install(ctx, batch); err != nil {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return ctxErr
		}
		p.logger().Warn("install failed", "error", err)
		span.AddEvent(EventInstallFailed, trace.WithAttributes(attribute.String("error", err.Error())))
	}
	return nil
}

func (p *Pipeline) lookup(ctx context.Context, missing []namespace.Namespace) error {
	if p.Locator == nil || p.Registrar == nil {
		return nil
	}

	ctx, span := p.tracer().Start(ctx, SpanLookup, trace.WithAttributes(
		attribute.StringSlice("yoke.missing", ids(missing)),
	))
	defer span.End()

	for _, ns := range missing {
		if err := ctx.Err(); err != nil {
			return err
		}
		found, err := p.Locator.Lookup(ctx, LookupQueryFor(ns))
		if err != nil {
			p.logger().Warn("lookup failed", "namespace", ns.ID(), "error", err)
			span.AddEvent(EventLookupFailed, trace.WithAttributes(attribute.String("namespace", ns.ID())))
			continue
		}
		for _, d := range found {
			if err := p.Registrar.Register(ctx, d); err != nil {
				p.logger().Warn("could not register generator", "namespace", d.Namespace, "path", d.Path, "error", err)
				span.AddEvent(EventRegisterFailed, trace.WithAttributes(attribute.String("namespace", d.Namespace)))
			}
		}
	}
	return nil
}

func (p *Pipeline) installed(ctx context.Context, name, versionRange string) (string, bool) {
	if p.Store == nil {
		return "", false
	}
	return p.Store.InstalledVersion(ctx, name, versionRange)
}

func (p *Pipeline) logger() *slog.Logger {
	if p.Logger != nil {
		return p.Logger
	}
	return slog.Default()
}

func (p *Pipeline) tracer() trace.Tracer {
	if p.Tracer != nil {
		return p.Tracer
	}
	return noop.NewTracerProvider().Tracer("yoke")
}

func missingOf(checker Checker, namespaces []namespace.Namespace) []namespace.Namespace {
	var missing []namespace.Namespace
	for _, ns := range namespaces {
		if checker == nil || !checker.Satisfied(ns) {
			missing = append(missing, ns)
		}
	}
	return missing
}

func dedupe(namespaces []namespace.Namespace) []namespace.Namespace {
	seen := make(map[string]struct{}, len(namespaces))
	out := make([]namespace.Namespace, 0, len(namespaces))
	for _, ns := range namespaces {
		if _, ok := seen[ns.ID()]; ok {
			continue
		}
		seen[ns.ID()] = struct{}{}
		out = append(out, ns)
	}
	return out
}

func ids(namespaces []namespace.Namespace) []string {
	out := make([]string, len(namespaces))
	for i, ns := range namespaces {
		out[i] = ns.ID()
	}
	return out
}
