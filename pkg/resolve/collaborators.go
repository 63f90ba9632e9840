// SPDX-License-Identifier: MPL-2.0

package resolve

import (
	"context"
	"path"

	"github.com/yokehq/yoke/pkg/namespace"
)

const (
	// GeneratorsDir is the directory of a package holding its generators.
	GeneratorsDir = "generators"

	// UnitFileName is the file defining a generator unit.
	UnitFileName = "unit.cue"
)

type (
	// PackageStore reports locally installed packages.
	PackageStore interface {
		// InstalledVersion returns the installed version of name when it
		// satisfies versionRange.
		InstalledVersion(ctx context.Context, name, versionRange string) (string, bool)
	}

	// Manifest is the registry manifest of one published package version.
	Manifest struct {
		Name             string            `json:"name"`
		Version          string            `json:"version"`
		PeerDependencies map[string]string `json:"peerDependencies,omitempty"`
	}

	// PackageMetadata lists every published version of a package. A non-empty
	// Error reports a registry-side failure for the package.
	PackageMetadata struct {
		Name     string              `json:"name"`
		Versions map[string]Manifest `json:"versions"`
		Error    string              `json:"error,omitempty"`
	}

	// MetadataFetcher retrieves package metadata from a registry.
	MetadataFetcher interface {
		FetchAll(ctx context.Context, name string) (*PackageMetadata, error)
	}

	// Installer installs a batch of packages. The pipeline re-checks the
	// environment afterwards rather than trusting the result.
	Installer interface {
		Install(ctx context.Context, batch *InstallBatch) error
	}

	// LookupQuery selects locally available generators.
	LookupQuery struct {
		// PackagePatterns are glob patterns matched against package names.
		PackagePatterns []string
		// FilePatterns are glob patterns matched against unit files, relative
		// to the package directory.
		FilePatterns []string
		// SingleResult stops the lookup at the first match.
		SingleResult bool
	}

	// Discovered is a generator unit found on disk.
	Discovered struct {
		// Namespace is the registration key of the unit.
		Namespace   string
		PackageName string
		PackagePath string
		// Path is the unit file.
		Path    string
		Version string
	}

	// Locator discovers generators available on the local filesystem.
	Locator interface {
		Lookup(ctx context.Context, query LookupQuery) ([]Discovered, error)
	}

	// Registrar makes a discovered generator available for instantiation.
	Registrar interface {
		Register(ctx context.Context, d Discovered) error
	}

	// Checker reports whether a namespace can already be satisfied.
	Checker interface {
		Satisfied(ns namespace.Namespace) bool
	}

	// CheckerFunc adapts a function to the Checker interface.
	CheckerFunc func(ns namespace.Namespace) bool
)

// Satisfied calls f(ns).
func (f CheckerFunc) Satisfied(ns namespace.Namespace) bool { return f(ns) }

// UnitFilePattern returns the unit file of ns relative to its package directory.
func UnitFilePattern(ns namespace.Namespace) string {
	return path.Join(GeneratorsDir, ns.UnitKey(), UnitFileName)
}

// LookupQueryFor returns the query that discovers the unit named by ns.
func LookupQueryFor(ns namespace.Namespace) LookupQuery {
	return LookupQuery{
		PackagePatterns: []string{ns.PackageName()},
		FilePatterns:    []string{UnitFilePattern(ns)},
	}
}
