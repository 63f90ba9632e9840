// SPDX-License-Identifier: MPL-2.0

package registry

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"maps"
	"path/filepath"

	"github.com/spf13/afero"

	"github.com/yokehq/yoke/pkg/resolve"
)

// ErrPackageNotFound is reported in PackageMetadata.Error when the registry
// has no document for a package.
var ErrPackageNotFound = errors.New("package not found in registry")

type (
	// DirRegistry serves package metadata from <root>/<name>.json documents.
	// Scoped packages live under their scope directory.
	DirRegistry struct {
		fs   afero.Fs
		root string
	}

	document struct {
		Name     string                  `json:"name"`
		Versions map[string]manifestJSON `json:"versions"`
		Error    string                  `json:"error,omitempty"`
	}

	manifestJSON struct {
		Name             string            `json:"name"`
		Version          string            `json:"version"`
		PeerDependencies map[string]string `json:"peerDependencies"`
		// LegacyPeerDependencies is the misspelled key written by older
		// publishers. Entries under the correct key win.
		LegacyPeerDependencies map[string]string `json:"peerDependecies"`
	}
)

// NewDirRegistry creates a registry reading documents below root.
func NewDirRegistry(fsys afero.Fs, root string) *DirRegistry {
	return &DirRegistry{fs: fsys, root: root}
}

// DocumentPath returns the metadata document of a package.
func (r *DirRegistry) DocumentPath(name string) string {
	return filepath.Join(r.root, filepath.FromSlash(name)+".json")
}

// FetchAll implements resolve.MetadataFetcher. A missing document is not an
// error: it is reported through the metadata Error field, like a registry
// answering "not found".
func (r *DirRegistry) FetchAll(ctx context.Context, name string) (*resolve.PackageMetadata, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	path := r.DocumentPath(name)
	data, err := afero.ReadFile(r.fs, path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return &resolve.PackageMetadata{Name: name, Error: ErrPackageNotFound.Error()}, nil
		}
		return nil, fmt.Errorf("failed to read registry document %s: %w", path, err)
	}

	var doc document
	if err := json.Unmarshal(data, &doc); err != nil {
		return nil, fmt.Errorf("failed to parse registry document %s: %w", path, err)
	}

	meta := &resolve.PackageMetadata{
		Name:     doc.Name,
		Error:    doc.Error,
		Versions: make(map[string]resolve.Manifest, len(doc.Versions)),
	}
	if meta.Name == "" {
		meta.Name = name
	}
	for version, m := range doc.Versions {
		meta.Versions[version] = m.toManifest(meta.Name, version)
	}
	return meta, nil
}

func (m manifestJSON) toManifest(name, version string) resolve.Manifest {
	out := resolve.Manifest{Name: m.Name, Version: m.Version}
	if out.Name == "" {
		out.Name = name
	}
	if out.Version == "" {
		out.Version = version
	}
	if len(m.PeerDependencies) > 0 || len(m.LegacyPeerDependencies) > 0 {
		out.PeerDependencies = make(map[string]string, len(m.PeerDependencies)+len(m.LegacyPeerDependencies))
		maps.Copy(out.PeerDependencies, m.LegacyPeerDependencies)
		maps.Copy(out.PeerDependencies, m.PeerDependencies)
	}
	return out
}
