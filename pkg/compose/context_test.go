// SPDX-License-Identifier: MPL-2.0

package compose

import (
	"context"
	"errors"
	"slices"
	"sync"
	"testing"

	"github.com/yokehq/yoke/pkg/namespace"
	"github.com/yokehq/yoke/pkg/resolve"
)

func TestCreateChild_Idempotent(t *testing.T) {
	t.Parallel()

	env, _ := newTestEnv(t)
	root := env.Root("/work")

	child := root.CreateChild("foo:sub", "/work/sub", nil)
	again := root.CreateChild("foo:sub", "/ignored", map[string]Options{"x": {"k": "v"}})

	if child != again {
		t.Fatal("CreateChild() with the same id returned a new context")
	}
	if child.DestinationRoot() != "/work/sub" {
		t.Errorf("DestinationRoot() = %q, want /work/sub", child.DestinationRoot())
	}
	if child.Parent() != root || root.Parent() != nil {
		t.Error("parent links are wrong")
	}
	if child.Shared() != root.Shared() {
		t.Error("child must share the parent's state")
	}
	if child.Environment() != env || child.Key() != "foo:sub" {
		t.Errorf("Environment/Key mismatch: key=%q", child.Key())
	}
	if child.ID() == root.ID() || child.ID() == "" {
		t.Errorf("context ids should be unique: %q %q", child.ID(), root.ID())
	}

	grandchild := child.CreateChild("bar", "/work/sub/bar", nil)
	if grandchild.Shared() != root.Shared() {
		t.Error("shared state must reach every descendant")
	}
	if got, ok := root.Child("foo:sub"); !ok || got != child {
		t.Error("Child() did not return the created child")
	}
	if !slices.Equal(root.Children(), []string{"foo:sub"}) {
		t.Errorf("Children() = %v", root.Children())
	}
}

func TestCreateChild_ConcurrentCallsShareChild(t *testing.T) {
	t.Parallel()

	env, _ := newTestEnv(t)
	root := env.Root("/work")

	children := make([]*Context, 8)
	var wg sync.WaitGroup
	for i := range children {
		wg.Add(1)
		go func() {
			defer wg.Done()
			children[i] = root.CreateChild("c", "/work/c", nil)
		}()
	}
	wg.Wait()

	for _, c := range children {
		if c != children[0] {
			t.Fatal("concurrent CreateChild() created more than one child")
		}
	}
}

func TestContexts_LoadUnitsIndependently(t *testing.T) {
	t.Parallel()

	f := newUnitFactory()
	env, _ := newTestEnv(t)
	env.Catalog().MustRegister("foo:sub", Definition{Factory: f.Factory})
	root := env.Root("/work")
	child := root.CreateChild("child", "/work/child", nil)

	a, err := root.Require(t.Context(), ns("foo:sub"), nil)
	if err != nil {
		t.Fatal(err)
	}
	b, err := child.Require(t.Context(), ns("foo:sub"), nil)
	if err != nil {
		t.Fatal(err)
	}
	if a == b {
		t.Error("each context must own its unit instances")
	}
	if f.count.Load() != 2 {
		t.Errorf("factory calls = %d, want 2", f.count.Load())
	}
}

func TestSurface(t *testing.T) {
	t.Parallel()

	f := newUnitFactory()
	env, _ := newTestEnv(t)
	env.Catalog().MustRegister("foo:sub", Definition{Factory: f.Factory})
	env.Catalog().MustRegister("@acme/web:app", Definition{Factory: f.Factory})
	root := env.Root("/work")

	for _, raw := range []string{"foo:sub#a", "foo:sub#b", "@acme/web"} {
		if _, err := root.Require(t.Context(), ns(raw), nil); err != nil {
			t.Fatalf("Require(%q) error = %v", raw, err)
		}
	}

	surface := root.Surface()
	entry, ok := surface["foo:sub"]
	if !ok || entry.API != nil || len(entry.Instances) != 2 {
		t.Fatalf("surface[foo:sub] = %+v", entry)
	}
	web, ok := surface["web"]
	if !ok || web.API == nil || web.Instances != nil {
		t.Fatalf("surface[web] = %+v", web)
	}
	if api, ok := surface.Lookup(ns("foo:sub#b")); !ok || api.Namespace().ID() != "foo:sub#b" {
		t.Errorf("Lookup(foo:sub#b) = %v, %v", api, ok)
	}
	if _, ok := surface.Lookup(ns("foo:sub")); ok {
		t.Error("Lookup(foo:sub) without instance should miss")
	}

	delete(surface["foo:sub"].Instances, "a")
	if _, ok := root.Surface().Lookup(ns("foo:sub#a")); !ok {
		t.Error("Surface() must return a copy")
	}
}

func TestAPI(t *testing.T) {
	t.Parallel()

	f := newUnitFactory()
	env, fs := newTestEnv(t)
	env.Catalog().MustRegister("foo:sub", Definition{Factory: f.Factory})
	writeConfig(t, fs, "/work", `{"yoke-foo": {"sub": {"greeting": "hi"}}}`)

	api, err := env.Root("/work").Require(t.Context(), ns("foo:sub#:run@^1.0.0"), nil)
	if err != nil {
		t.Fatal(err)
	}

	if api.Namespace().Complete() != "foo:sub" {
		t.Errorf("Namespace() = %q, want the bare identity", api.Namespace().Complete())
	}
	if !slices.Equal(api.Operations(), []string{"run", "echo", "fail"}) {
		t.Errorf("Operations() = %v", api.Operations())
	}
	if !api.Has("echo") || api.Has("missing") {
		t.Error("Has() mismatch")
	}
	if _, ok := api.Unit().(*recordingUnit); !ok {
		t.Errorf("Unit() = %T", api.Unit())
	}
	if _, err := api.Invoke(t.Context(), "missing"); !errors.Is(err, ErrUnknownOperation) {
		t.Errorf("Invoke(missing) error = %v", err)
	}
	if v, ok := api.ConfigValue("greeting"); !ok || v != "hi" {
		t.Errorf("ConfigValue(greeting) = %v, %v", v, ok)
	}
}

type stubLocator struct {
	found   map[string][]resolve.Discovered
	queries []resolve.LookupQuery
}

func (l *stubLocator) Lookup(_ context.Context, q resolve.LookupQuery) ([]resolve.Discovered, error) {
	l.queries = append(l.queries, q)
	var out []resolve.Discovered
	for _, p := range q.PackagePatterns {
		out = append(out, l.found[p]...)
	}
	return out, nil
}

type stubLoader struct{ factory Factory }

func (l stubLoader) Load(context.Context, resolve.Discovered) (Factory, error) {
	return l.factory, nil
}

func TestRequire_PreparesUnregisteredUnits(t *testing.T) {
	t.Parallel()

	f := newUnitFactory()
	locator := &stubLocator{found: map[string][]resolve.Discovered{
		"yoke-foo": {{Namespace: "foo:sub", PackageName: "yoke-foo", Path: "/pkgs/yoke-foo/generators/sub/unit.cue"}},
	}}
	pipeline := &resolve.Pipeline{Locator: locator}
	env, _ := newTestEnv(t, WithPipeline(pipeline), WithLoader(stubLoader{factory: f.Factory}))
	root := env.Root("/work")

	if pipeline.Registrar != env {
		t.Fatal("environment should register itself as the pipeline registrar")
	}
	if root.Satisfied(ns("foo:sub")) {
		t.Fatal("foo:sub satisfied before preparation")
	}

	got, err := root.With(t.Context(), ns("foo:sub#x:run"), nil)
	if err != nil {
		t.Fatalf("With() error = %v", err)
	}
	if got != "x" {
		t.Errorf("With() = %v, want x", got)
	}
	def, ok := env.Catalog().Lookup("foo:sub")
	if !ok || def.Path != "/pkgs/yoke-foo/generators/sub/unit.cue" || def.PackageName != "yoke-foo" {
		t.Errorf("catalog definition = %+v, %v", def, ok)
	}
	if len(locator.queries) != 1 {
		t.Errorf("lookups = %d, want 1", len(locator.queries))
	}

	if _, err := root.Require(t.Context(), ns("foo:other"), nil); !errors.Is(err, resolve.ErrEnvironmentPreparation) {
		t.Errorf("Require(foo:other) error = %v, want ErrEnvironmentPreparation", err)
	}
}

func TestPrepareEnvironment(t *testing.T) {
	t.Parallel()

	f := newUnitFactory()
	locator := &stubLocator{}
	env, _ := newTestEnv(t, WithPipeline(&resolve.Pipeline{Locator: locator}), WithLoader(stubLoader{factory: f.Factory}))
	env.Catalog().MustRegister("foo:sub", Definition{Factory: f.Factory})
	root := env.Root("/work")

	if _, err := root.Require(t.Context(), ns("foo:sub#one"), nil); err != nil {
		t.Fatal(err)
	}

	ok, err := root.PrepareEnvironment(t.Context(), "foo:sub#one:run@^1.0.0", "foo:sub#two")
	if err != nil || !ok {
		t.Fatalf("PrepareEnvironment() = (%v, %v), want (true, nil)", ok, err)
	}
	if len(locator.queries) != 0 {
		t.Errorf("locator called for satisfied namespaces: %v", locator.queries)
	}

	ok, err = root.PrepareEnvironment(t.Context(), "bar:x")
	var prepErr *resolve.EnvironmentPreparationError
	if ok || !errors.As(err, &prepErr) || !slices.Equal(prepErr.Missing, []string{"bar:x"}) {
		t.Errorf("PrepareEnvironment(bar:x) = (%v, %v)", ok, err)
	}

	if _, err := root.PrepareEnvironment(t.Context(), "Bad"); !errors.Is(err, namespace.ErrInvalidNamespace) {
		t.Errorf("PrepareEnvironment(Bad) error = %v", err)
	}
}

func TestPrepareEnvironment_WithoutPipeline(t *testing.T) {
	t.Parallel()

	env, _ := newTestEnv(t)
	_, err := env.Root("/work").PrepareEnvironment(t.Context(), "foo")
	if !errors.Is(err, resolve.ErrEnvironmentPreparation) {
		t.Errorf("PrepareEnvironment() error = %v, want ErrEnvironmentPreparation", err)
	}
}

func TestEnvironment_Register(t *testing.T) {
	t.Parallel()

	f := newUnitFactory()
	env, _ := newTestEnv(t)
	d := resolve.Discovered{Namespace: "foo:app", PackageName: "yoke-foo"}

	if err := env.Register(t.Context(), d); err == nil {
		t.Error("Register() without loader should fail")
	}

	env, _ = newTestEnv(t, WithLoader(stubLoader{factory: f.Factory}))
	if err := env.Register(t.Context(), d); err != nil {
		t.Fatalf("Register() error = %v", err)
	}
	if err := env.Register(t.Context(), d); err != nil {
		t.Errorf("second Register() error = %v, want nil", err)
	}
	if !slices.Equal(env.Catalog().Keys(), []string{"foo:app"}) {
		t.Errorf("Keys() = %v", env.Catalog().Keys())
	}
}
