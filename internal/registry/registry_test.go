// SPDX-License-Identifier: MPL-2.0

package registry

import (
	"context"
	"errors"
	"log/slog"
	"sync/atomic"
	"testing"
	"time"

	"github.com/spf13/afero"

	"github.com/yokehq/yoke/pkg/resolve"
)

const fooDocument = `{
	"name": "yoke-foo",
	"versions": {
		"1.0.0": {"name": "yoke-foo", "version": "1.0.0"},
		"1.2.0": {
			"peerDependencies": {"yoke-bar": "^2.0.0"},
			"peerDependecies": {"yoke-bar": "^1.0.0", "yoke-baz": "~0.1.0"}
		}
	}
}`

func newTestRegistry(t *testing.T) *DirRegistry {
	t.Helper()

	fsys := afero.NewMemMapFs()
	files := map[string]string{
		"/registry/yoke-foo.json":       fooDocument,
		"/registry/@acme/yoke-web.json": `{"versions": {"0.1.0": {}}}`,
		"/registry/yoke-broken.json":    `{"versions": `,
		"/registry/yoke-withdrawn.json": `{"name": "yoke-withdrawn", "error": "unpublished"}`,
	}
	for path, content := range files {
		if err := afero.WriteFile(fsys, path, []byte(content), 0o644); err != nil {
			t.Fatal(err)
		}
	}
	return NewDirRegistry(fsys, "/registry")
}

func TestDirRegistry_FetchAll(t *testing.T) {
	t.Parallel()

	r := newTestRegistry(t)

	meta, err := r.FetchAll(t.Context(), "yoke-foo")
	if err != nil {
		t.Fatalf("FetchAll() error = %v", err)
	}
	if meta.Name != "yoke-foo" || len(meta.Versions) != 2 || meta.Error != "" {
		t.Fatalf("FetchAll() = %+v", meta)
	}

	latest := meta.Versions["1.2.0"]
	if latest.Name != "yoke-foo" || latest.Version != "1.2.0" {
		t.Errorf("manifest defaults not applied: %+v", latest)
	}
	if latest.PeerDependencies["yoke-bar"] != "^2.0.0" {
		t.Errorf("peerDependencies should win over the legacy key: %v", latest.PeerDependencies)
	}
	if latest.PeerDependencies["yoke-baz"] != "~0.1.0" {
		t.Errorf("legacy peerDependecies key not read: %v", latest.PeerDependencies)
	}
	if meta.Versions["1.0.0"].PeerDependencies != nil {
		t.Errorf("1.0.0 should have no peers: %v", meta.Versions["1.0.0"].PeerDependencies)
	}
}

func TestDirRegistry_FetchAllEdgeCases(t *testing.T) {
	t.Parallel()

	r := newTestRegistry(t)

	scoped, err := r.FetchAll(t.Context(), "@acme/yoke-web")
	if err != nil || scoped.Name != "@acme/yoke-web" || scoped.Versions["0.1.0"].Version != "0.1.0" {
		t.Errorf("FetchAll(scoped) = (%+v, %v)", scoped, err)
	}

	missing, err := r.FetchAll(t.Context(), "yoke-missing")
	if err != nil || missing.Error != ErrPackageNotFound.Error() {
		t.Errorf("FetchAll(missing) = (%+v, %v), want a not-found Error field", missing, err)
	}

	withdrawn, err := r.FetchAll(t.Context(), "yoke-withdrawn")
	if err != nil || withdrawn.Error != "unpublished" {
		t.Errorf("FetchAll(withdrawn) = (%+v, %v)", withdrawn, err)
	}

	if _, err := r.FetchAll(t.Context(), "yoke-broken"); err == nil {
		t.Error("FetchAll(broken) should fail")
	}

	ctx, cancel := context.WithCancel(t.Context())
	cancel()
	if _, err := r.FetchAll(ctx, "yoke-foo"); !errors.Is(err, context.Canceled) {
		t.Errorf("FetchAll() with canceled context error = %v", err)
	}
}

type countingFetcher struct {
	calls atomic.Int32
	next  resolve.MetadataFetcher
	fail  bool
}

func (f *countingFetcher) FetchAll(ctx context.Context, name string) (*resolve.PackageMetadata, error) {
	f.calls.Add(1)
	if f.fail {
		return nil, errors.New("registry unreachable")
	}
	return f.next.FetchAll(ctx, name)
}

func TestCachedFetcher(t *testing.T) {
	t.Parallel()

	inner := &countingFetcher{next: newTestRegistry(t)}
	c := NewCachedFetcher(inner, time.Minute, slog.New(slog.DiscardHandler))

	for range 3 {
		if _, err := c.FetchAll(t.Context(), "yoke-foo"); err != nil {
			t.Fatal(err)
		}
	}
	if inner.calls.Load() != 1 {
		t.Errorf("inner calls = %d, want 1", inner.calls.Load())
	}

	for range 2 {
		if _, err := c.FetchAll(t.Context(), "yoke-missing"); err != nil {
			t.Fatal(err)
		}
	}
	if inner.calls.Load() != 3 {
		t.Errorf("metadata with an Error field must not be cached: calls = %d", inner.calls.Load())
	}

	c.Invalidate("yoke-foo")
	if _, err := c.FetchAll(t.Context(), "yoke-foo"); err != nil {
		t.Fatal(err)
	}
	if inner.calls.Load() != 4 {
		t.Errorf("Invalidate() did not drop the entry: calls = %d", inner.calls.Load())
	}

	c.Flush()
	if c.Len() != 0 {
		t.Errorf("Len() after Flush() = %d", c.Len())
	}
}

func TestCachedFetcher_ErrorsNotCached(t *testing.T) {
	t.Parallel()

	inner := &countingFetcher{next: newTestRegistry(t), fail: true}
	c := NewCachedFetcher(inner, 0, nil)

	for range 2 {
		if _, err := c.FetchAll(t.Context(), "yoke-foo"); err == nil {
			t.Fatal("FetchAll() should surface the inner error")
		}
	}
	if inner.calls.Load() != 2 || c.Len() != 0 {
		t.Errorf("errors must not be cached: calls = %d, len = %d", inner.calls.Load(), c.Len())
	}
	if c.ttl != DefaultTTL {
		t.Errorf("ttl = %v, want DefaultTTL", c.ttl)
	}
}
