// SPDX-License-Identifier: MPL-2.0

package store

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"path/filepath"
	"slices"
	"strings"

	"github.com/pelletier/go-toml/v2"
	"github.com/spf13/afero"

	"github.com/yokehq/yoke/pkg/semver"
)

// ManifestFileName is the manifest file at the root of every installed package.
const ManifestFileName = "yoke-package.toml"

// ErrManifestNotFound is returned when a package directory has no manifest.
var ErrManifestNotFound = errors.New("package manifest not found")

type (
	// PackageManifest describes an installed package.
	PackageManifest struct {
		Name             string            `toml:"name"`
		Version          string            `toml:"version"`
		Description      string            `toml:"description,omitempty"`
		PeerDependencies map[string]string `toml:"peerDependencies,omitempty"`
	}

	// InstalledPackage is a manifest together with the directory it was read from.
	InstalledPackage struct {
		PackageManifest
		Dir string
	}

	// DirStore is a package store rooted at a directory. Scoped packages
	// live under their scope directory (<root>/@scope/yoke-name).
	DirStore struct {
		fs   afero.Fs
		root string
	}
)

// NewDirStore creates a store rooted at root on fsys.
func NewDirStore(fsys afero.Fs, root string) *DirStore {
	return &DirStore{fs: fsys, root: root}
}

// Root returns the store directory.
func (s *DirStore) Root() string { return s.root }

// Fs returns the filesystem the store reads from.
func (s *DirStore) Fs() afero.Fs { return s.fs }

// PackageDir returns the directory a package is installed into.
func (s *DirStore) PackageDir(name string) string {
	return filepath.Join(s.root, filepath.FromSlash(name))
}

// ReadManifest reads the manifest of an installed package.
func (s *DirStore) ReadManifest(name string) (*PackageManifest, error) {
	return readManifest(s.fs, s.PackageDir(name))
}

// InstalledVersion implements resolve.PackageStore. It reports the installed
// version of name when it satisfies versionRange.
func (s *DirStore) InstalledVersion(_ context.Context, name, versionRange string) (string, bool) {
	m, err := s.ReadManifest(name)
	if err != nil || m.Version == "" {
		return "", false
	}
	v, err := semver.ParseVersion(m.Version)
	if err != nil {
		return "", false
	}
	r, err := semver.ParseRange(versionRange)
	if err != nil || !r.Satisfies(v) {
		return "", false
	}
	return m.Version, true
}

// Packages lists every installed package, sorted by name. Directories
// without a readable manifest are skipped.
func (s *DirStore) Packages() ([]InstalledPackage, error) {
	entries, err := afero.ReadDir(s.fs, s.root)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to read store %s: %w", s.root, err)
	}

	var pkgs []InstalledPackage
	for _, e := range entries {
		if !e.IsDir() {
			continue
		}
		if strings.HasPrefix(e.Name(), "@") {
			scoped, err := afero.ReadDir(s.fs, filepath.Join(s.root, e.Name()))
			if err != nil {
				continue
			}
			for _, se := range scoped {
				if se.IsDir() {
					pkgs = s.appendPackage(pkgs, e.Name()+"/"+se.Name())
				}
			}
			continue
		}
		pkgs = s.appendPackage(pkgs, e.Name())
	}

	slices.SortFunc(pkgs, func(a, b InstalledPackage) int { return strings.Compare(a.Name, b.Name) })
	return pkgs, nil
}

func (s *DirStore) appendPackage(pkgs []InstalledPackage, name string) []InstalledPackage {
	dir := s.PackageDir(name)
	m, err := readManifest(s.fs, dir)
	if err != nil {
		return pkgs
	}
	if m.Name == "" {
		m.Name = name
	}
	return append(pkgs, InstalledPackage{PackageManifest: *m, Dir: dir})
}

// ReadManifest reads the manifest in dir.
func ReadManifest(fsys afero.Fs, dir string) (*PackageManifest, error) {
	return readManifest(fsys, dir)
}

func readManifest(fsys afero.Fs, dir string) (*PackageManifest, error) {
	path := filepath.Join(dir, ManifestFileName)
	data, err := afero.ReadFile(fsys, path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, fmt.Errorf("%w: %s", ErrManifestNotFound, path)
		}
		return nil, fmt.Errorf("failed to read %s: %w", path, err)
	}

	var m PackageManifest
	if err := toml.Unmarshal(data, &m); err != nil {
		return nil, fmt.Errorf("failed to parse %s: %w", path, err)
	}
	return &m, nil
}
