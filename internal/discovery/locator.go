// SPDX-License-Identifier: MPL-2.0

package discovery

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"path"
	"path/filepath"
	"slices"
	"strings"
	"sync"

	"github.com/spf13/afero"

	"github.com/yokehq/yoke/internal/store"
	"github.com/yokehq/yoke/pkg/namespace"
	"github.com/yokehq/yoke/pkg/resolve"
)

const (
	// SourceStore indicates the unit was found in the package store.
	SourceStore Source = iota
	// SourceLookupPath indicates the unit was found in a configured lookup path.
	SourceLookupPath
)

type (
	// Source represents the kind of location a unit was found in.
	Source int

	// Location is a directory searched for packages.
	Location struct {
		Dir    string
		Source Source
	}

	// Unit is a discovered generator unit together with where it was found.
	Unit struct {
		resolve.Discovered
		Source Source
	}

	// Locator discovers generator units on a filesystem. It implements
	// resolve.Locator.
	Locator struct {
		fs        afero.Fs
		locations []Location
		logger    *slog.Logger

		mu          sync.Mutex
		diagnostics []Diagnostic
	}

	// Option configures a Locator.
	Option func(*Locator)
)

// String returns a human-readable source name.
func (s Source) String() string {
	switch s {
	case SourceStore:
		return "package store"
	case SourceLookupPath:
		return "lookup path"
	default:
		return "unknown"
	}
}

// WithStoreDir adds the package store as the first lookup location.
func WithStoreDir(dir string) Option {
	return func(l *Locator) {
		if dir != "" {
			l.locations = slices.Insert(l.locations, 0, Location{Dir: dir, Source: SourceStore})
		}
	}
}

// WithLookupPaths appends configured lookup locations.
func WithLookupPaths(dirs ...string) Option {
	return func(l *Locator) {
		for _, dir := range dirs {
			if dir != "" {
				l.locations = append(l.locations, Location{Dir: dir, Source: SourceLookupPath})
			}
		}
	}
}

// WithLogger sets the logger used for debug output.
func WithLogger(logger *slog.Logger) Option {
	return func(l *Locator) { l.logger = logger }
}

// New creates a Locator over fsys.
func New(fsys afero.Fs, opts ...Option) *Locator {
	l := &Locator{fs: fsys, logger: slog.Default()}
	for _, opt := range opts {
		opt(l)
	}
	return l
}

// Locations returns the lookup locations in search order.
func (l *Locator) Locations() []Location { return slices.Clone(l.locations) }

// Lookup implements resolve.Locator.
func (l *Locator) Lookup(ctx context.Context, query resolve.LookupQuery) ([]resolve.Discovered, error) {
	units, err := l.Find(ctx, query)
	if err != nil {
		return nil, err
	}
	out := make([]resolve.Discovered, len(units))
	for i, u := range units {
		out[i] = u.Discovered
	}
	return out, nil
}

// All returns every unit of every generator package in all locations.
func (l *Locator) All(ctx context.Context) ([]Unit, error) {
	return l.Find(ctx, resolve.LookupQuery{})
}

// Find runs query over the lookup locations. An empty PackagePatterns
// matches every generator package; an empty FilePatterns matches every unit.
func (l *Locator) Find(ctx context.Context, query resolve.LookupQuery) ([]Unit, error) {
	if !l.validPatterns(query.PackagePatterns) || !l.validPatterns(query.FilePatterns) {
		return nil, nil
	}

	var units []Unit
	seen := make(map[string]bool)
	for _, loc := range l.locations {
		names, err := l.packageNames(loc.Dir)
		if err != nil {
			l.addDiagnostic(Diagnostic{
				Severity: SeverityWarning,
				Code:     CodeLocationUnreadable,
				Message:  "lookup location could not be read",
				Path:     loc.Dir,
				Cause:    err,
			})
			continue
		}

		for _, name := range names {
			if err := ctx.Err(); err != nil {
				return nil, err
			}
			if seen[name] || !matchAny(query.PackagePatterns, name) {
				continue
			}
			seen[name] = true

			found, err := l.packageUnits(loc, name, query.FilePatterns)
			if err != nil {
				return nil, err
			}
			for _, u := range found {
				units = append(units, u)
				if query.SingleResult {
					return units, nil
				}
			}
		}
	}

	l.logger.Debug("generator lookup finished", "packages", query.PackagePatterns, "files", query.FilePatterns, "found", len(units))
	return units, nil
}

// Diagnostics returns the diagnostics collected so far and clears them.
func (l *Locator) Diagnostics() []Diagnostic {
	l.mu.Lock()
	defer l.mu.Unlock()
	out := l.diagnostics
	l.diagnostics = nil
	return out
}

func (l *Locator) addDiagnostic(d Diagnostic) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.diagnostics = append(l.diagnostics, d)
}

func (l *Locator) validPatterns(patterns []string) bool {
	for _, p := range patterns {
		if _, err := path.Match(p, ""); err != nil {
			l.addDiagnostic(Diagnostic{
				Severity: SeverityError,
				Code:     CodeInvalidPattern,
				Message:  fmt.Sprintf("invalid lookup pattern %q", p),
				Cause:    err,
			})
			return false
		}
	}
	return true
}

// packageNames lists the generator packages directly below dir, scoped
// packages included, in directory order.
func (l *Locator) packageNames(dir string) ([]string, error) {
	entries, err := afero.ReadDir(l.fs, dir)
	if err != nil {
		return nil, err
	}

	var names []string
	for _, e := range entries {
		if !e.IsDir() {
			continue
		}
		if strings.HasPrefix(e.Name(), "@") {
			scoped, err := afero.ReadDir(l.fs, filepath.Join(dir, e.Name()))
			if err != nil {
				continue
			}
			for _, se := range scoped {
				name := e.Name() + "/" + se.Name()
				if se.IsDir() && namespace.IsGeneratorPackage(name) {
					names = append(names, name)
				}
			}
			continue
		}
		if namespace.IsGeneratorPackage(e.Name()) {
			names = append(names, e.Name())
		}
	}
	return names, nil
}

// packageUnits walks the generators directory of a package and returns the
// units whose file path, relative to the package, matches a pattern.
func (l *Locator) packageUnits(loc Location, name string, patterns []string) ([]Unit, error) {
	pkgDir := filepath.Join(loc.Dir, filepath.FromSlash(name))
	genDir := filepath.Join(pkgDir, resolve.GeneratorsDir)

	var version string
	if m, err := store.ReadManifest(l.fs, pkgDir); err == nil {
		version = m.Version
	} else if !errors.Is(err, store.ErrManifestNotFound) {
		l.addDiagnostic(Diagnostic{
			Severity: SeverityWarning,
			Code:     CodeManifestSkipped,
			Message:  "package manifest could not be read",
			Path:     pkgDir,
			Cause:    err,
		})
	}

	if ok, _ := afero.DirExists(l.fs, genDir); !ok {
		return nil, nil
	}

	var units []Unit
	err := afero.Walk(l.fs, genDir, func(p string, info fs.FileInfo, err error) error {
		if err != nil {
			return err
		}
		if info.IsDir() || info.Name() != resolve.UnitFileName {
			return nil
		}

		rel, err := filepath.Rel(pkgDir, p)
		if err != nil {
			return err
		}
		rel = filepath.ToSlash(rel)
		if !matchAny(patterns, rel) {
			return nil
		}

		unitKey := strings.TrimSuffix(strings.TrimPrefix(rel, resolve.GeneratorsDir+"/"), "/"+resolve.UnitFileName)
		if unitKey == resolve.UnitFileName {
			// generators/unit.cue has no unit directory
			return nil
		}
		units = append(units, Unit{
			Discovered: resolve.Discovered{
				Namespace:   namespace.RegistrationKey(name, unitKey),
				PackageName: name,
				PackagePath: pkgDir,
				Path:        p,
				Version:     version,
			},
			Source: loc.Source,
		})
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("failed to scan generators of %s: %w", name, err)
	}
	return units, nil
}

// matchAny reports whether s matches one of patterns. An empty pattern
// list matches everything.
func matchAny(patterns []string, s string) bool {
	if len(patterns) == 0 {
		return true
	}
	for _, p := range patterns {
		if ok, _ := path.Match(p, s); ok {
			return true
		}
	}
	return false
}
