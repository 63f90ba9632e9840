// SPDX-License-Identifier: MPL-2.0

package compose

import (
	"context"
	"errors"
	"slices"
	"sync"
	"testing"
	"time"
)

func TestRequire_ConcurrentCallsInstantiateOnce(t *testing.T) {
	t.Parallel()

	env, _ := newTestEnv(t)
	f := newUnitFactory()
	slow := func(ctx context.Context, c Construction) (Unit, error) {
		time.Sleep(20 * time.Millisecond)
		return f.Factory(ctx, c)
	}
	env.Catalog().MustRegister("foo:sub", Definition{Factory: slow})
	root := env.Root("/work")

	const callers = 16
	apis := make([]*API, callers)
	errs := make([]error, callers)
	var wg sync.WaitGroup
	for i := range callers {
		wg.Add(1)
		go func() {
			defer wg.Done()
			apis[i], errs[i] = root.Require(t.Context(), ns("foo:sub"), nil)
		}()
	}
	wg.Wait()

	for i := range callers {
		if errs[i] != nil {
			t.Fatalf("Require() #%d error = %v", i, errs[i])
		}
		if apis[i] != apis[0] {
			t.Fatalf("Require() #%d returned a different API", i)
		}
	}
	if got := f.count.Load(); got != 1 {
		t.Errorf("factory calls = %d, want 1", got)
	}

	again, err := root.Require(t.Context(), ns("foo:sub#:run@^1.0.0"), nil)
	if err != nil || again != apis[0] {
		t.Errorf("decorated Require() = (%p, %v), want the loaded API", again, err)
	}
	if got := f.count.Load(); got != 1 {
		t.Errorf("factory calls after decorated Require = %d, want 1", got)
	}
}

func TestRequire_MergesOptionsInPrecedenceOrder(t *testing.T) {
	t.Parallel()

	f := newUnitFactory()
	env, _ := newTestEnv(t, WithSharedOptions(Options{"a": "shared", "b": "shared", "c": "shared"}))
	env.Catalog().MustRegister("foo:sub", Definition{Factory: f.Factory})

	child := env.Root("/work").CreateChild("foo:sub", "/work/sub", map[string]Options{
		"foo:sub#one:run": {"b": "override", "c": "override"},
	})

	if _, err := child.Require(t.Context(), ns("foo:sub#one"), Options{"c": "call", OptDestinationRoot: "/elsewhere"}); err != nil {
		t.Fatalf("Require() error = %v", err)
	}

	got := f.unit("foo:sub#one").construction
	want := Options{"a": "shared", "b": "override", "c": "call", OptDestinationRoot: "/elsewhere"}
	for k, v := range want {
		if got.Options[k] != v {
			t.Errorf("option %q = %v, want %v", k, got.Options[k], v)
		}
	}
	if got.DestinationRoot != "/work/sub" {
		t.Errorf("DestinationRoot = %q, want /work/sub", got.DestinationRoot)
	}
	if got.Context != child {
		t.Error("Construction.Context should be the requiring context")
	}
}

func TestRequire_DestinationRootIsDefaultOption(t *testing.T) {
	t.Parallel()

	f := newUnitFactory()
	env, _ := newTestEnv(t)
	env.Catalog().MustRegister("foo:app", Definition{Factory: f.Factory})

	if _, err := env.Root("/dest").Require(t.Context(), ns("foo"), nil); err != nil {
		t.Fatalf("Require() error = %v", err)
	}
	if got := f.unit("foo").construction.Options.String(OptDestinationRoot); got != "/dest" {
		t.Errorf("destinationRoot option = %q, want /dest", got)
	}
}

func TestRequire_Errors(t *testing.T) {
	t.Parallel()

	env, _ := newTestEnv(t)
	env.Catalog().MustRegister("nil:app", Definition{Factory: func(context.Context, Construction) (Unit, error) {
		return nil, nil
	}})
	env.Catalog().MustRegister("broken:app", Definition{Factory: func(context.Context, Construction) (Unit, error) {
		return nil, errBoom
	}})
	env.Catalog().MustRegister("dup:app", Definition{Factory: func(context.Context, Construction) (Unit, error) {
		run := func(context.Context, ...any) (any, error) { return nil, nil }
		return Operations{{Name: "x", Run: run}, {Name: "x", Run: run}}, nil
	}})
	root := env.Root("/work")

	tests := []struct {
		raw  string
		want error
	}{
		{"missing", ErrUnitNotRegistered},
		{"foo#*", ErrWildcardNotAllowed},
		{"nil", ErrInvalidUnit},
		{"broken", errBoom},
		{"dup", ErrInvalidUnit},
	}
	for _, tt := range tests {
		t.Run(tt.raw, func(t *testing.T) {
			t.Parallel()

			_, err := root.Require(t.Context(), ns(tt.raw), nil)
			if !errors.Is(err, tt.want) {
				t.Errorf("Require(%q) error = %v, want %v", tt.raw, err, tt.want)
			}
			if root.Loaded(ns(tt.raw).ID()) {
				t.Errorf("%q should not be loaded after a failed Require", tt.raw)
			}
		})
	}
}

func TestOnce_FiresExactlyOnceAfterLoad(t *testing.T) {
	t.Parallel()

	f := newUnitFactory()
	env, _ := newTestEnv(t)
	env.Catalog().MustRegister("foo:sub", Definition{Factory: f.Factory})
	root := env.Root("/work")

	var fired []*API
	if err := root.Once(ns("foo:sub"), func(api *API) { fired = append(fired, api) }); err != nil {
		t.Fatalf("Once() error = %v", err)
	}
	if len(fired) != 0 {
		t.Fatal("Once() callback fired before load")
	}

	api, err := root.Require(t.Context(), ns("foo:sub"), nil)
	if err != nil {
		t.Fatal(err)
	}
	if _, err := root.Require(t.Context(), ns("foo:sub"), nil); err != nil {
		t.Fatal(err)
	}

	if len(fired) != 1 || fired[0] != api {
		t.Fatalf("callback calls = %d, want 1 with the loaded API", len(fired))
	}

	var late int
	if err := root.Once(ns("foo:sub#:run"), func(*API) { late++ }); err != nil {
		t.Fatal(err)
	}
	if late != 1 {
		t.Errorf("Once() on a loaded unit fired %d times, want 1", late)
	}

	if err := root.Once(ns("foo:sub#*"), func(*API) {}); !errors.Is(err, ErrWildcardNotAllowed) {
		t.Errorf("Once() with wildcard error = %v", err)
	}
}

func TestAwait(t *testing.T) {
	t.Parallel()

	f := newUnitFactory()
	env, _ := newTestEnv(t)
	env.Catalog().MustRegister("foo:sub", Definition{Factory: f.Factory})
	root := env.Root("/work")

	done := make(chan *API, 1)
	go func() {
		api, err := root.Await(t.Context(), ns("foo:sub"))
		if err != nil {
			t.Errorf("Await() error = %v", err)
		}
		done <- api
	}()

	api, err := root.Require(t.Context(), ns("foo:sub"), nil)
	if err != nil {
		t.Fatal(err)
	}
	select {
	case got := <-done:
		if got != api {
			t.Error("Await() returned a different API")
		}
	case <-time.After(5 * time.Second):
		t.Fatal("Await() did not return after load")
	}

	ctx, cancel := context.WithCancel(t.Context())
	cancel()
	if _, err := root.Await(ctx, ns("never:loaded")); !errors.Is(err, context.Canceled) {
		t.Errorf("Await() on canceled ctx error = %v", err)
	}
}

func TestDo(t *testing.T) {
	t.Parallel()

	f := newUnitFactory()
	env, _ := newTestEnv(t)
	env.Catalog().MustRegister("foo:sub", Definition{Factory: f.Factory})
	root := env.Root("/work")

	if _, err := root.Do(ns("foo:sub")); !errors.Is(err, ErrNotLoaded) {
		t.Errorf("Do() before load error = %v, want ErrNotLoaded", err)
	}

	loaded, err := root.Require(t.Context(), ns("foo:sub"), nil)
	if err != nil {
		t.Fatal(err)
	}
	api, err := root.Do(ns("foo:sub"))
	if err != nil || api != loaded {
		t.Errorf("Do() = (%p, %v), want the loaded API", api, err)
	}

	for raw, want := range map[string]error{
		"foo:sub#*":        ErrWildcardNotAllowed,
		"foo:sub#:run":     ErrMalformedNamespace,
		"foo:sub@^1.0.0":   ErrMalformedNamespace,
		"foo:sub#other":    ErrNotLoaded,
		"foo:sub#*:run@^1": ErrWildcardNotAllowed,
	} {
		if _, err := root.Do(ns(raw)); !errors.Is(err, want) {
			t.Errorf("Do(%q) error = %v, want %v", raw, err, want)
		}
	}
}

func TestIf(t *testing.T) {
	t.Parallel()

	f := newUnitFactory()
	env, _ := newTestEnv(t)
	env.Catalog().MustRegister("foo:sub", Definition{Factory: f.Factory})
	root := env.Root("/work")

	var loaded, missing int
	onLoaded := func(*API) error { loaded++; return nil }
	onMissing := func() error { missing++; return nil }

	if err := root.If(ns("foo:sub"), onLoaded, onMissing); err != nil {
		t.Fatal(err)
	}
	if loaded != 0 || missing != 1 {
		t.Errorf("before load: loaded=%d missing=%d, want 0/1", loaded, missing)
	}
	if err := root.If(ns("foo:sub"), onLoaded, nil); err != nil {
		t.Errorf("If() with nil onMissing error = %v", err)
	}

	if _, err := root.Require(t.Context(), ns("foo:sub"), nil); err != nil {
		t.Fatal(err)
	}
	if err := root.If(ns("foo:sub"), onLoaded, onMissing); err != nil {
		t.Fatal(err)
	}
	if loaded != 1 || missing != 1 {
		t.Errorf("after load: loaded=%d missing=%d, want 1/1", loaded, missing)
	}

	wantErr := errors.New("callback failed")
	if err := root.If(ns("foo:sub"), func(*API) error { return wantErr }, nil); !errors.Is(err, wantErr) {
		t.Errorf("If() error = %v, want callback error", err)
	}
	if err := root.If(ns("foo:sub#*"), nil, nil); !errors.Is(err, ErrWildcardNotAllowed) {
		t.Errorf("If() with wildcard error = %v", err)
	}
}

func TestCall(t *testing.T) {
	t.Parallel()

	f := newUnitFactory()
	env, _ := newTestEnv(t)
	env.Catalog().MustRegister("foo:sub", Definition{Factory: f.Factory})
	root := env.Root("/work")

	if _, err := root.Call(t.Context(), ns("foo:sub#:run")); !errors.Is(err, ErrNotLoaded) {
		t.Errorf("Call() before load error = %v, want ErrNotLoaded", err)
	}
	if _, err := root.Require(t.Context(), ns("foo:sub"), nil); err != nil {
		t.Fatal(err)
	}

	got, err := root.Call(t.Context(), ns("foo:sub#:echo"), "x", 2)
	if err != nil {
		t.Fatalf("Call(echo) error = %v", err)
	}
	if args, ok := got.([]any); !ok || len(args) != 2 || args[0] != "x" || args[1] != 2 {
		t.Errorf("Call(echo) = %#v, want [x 2]", got)
	}

	multi, err := root.Call(t.Context(), ns("foo:sub#:echo,run"), "y")
	if err != nil {
		t.Fatalf("Call(echo,run) error = %v", err)
	}
	results, ok := multi.([]any)
	if !ok || len(results) != 2 {
		t.Fatalf("Call(echo,run) = %#v, want two results", multi)
	}
	if echoed, ok := results[0].([]any); !ok || len(echoed) != 1 || echoed[0] != "y" {
		t.Errorf("first result = %#v, want [y]", results[0])
	}
	if results[1] != "" {
		t.Errorf("second result = %#v, want empty instance id", results[1])
	}

	if _, err := root.Call(t.Context(), ns("foo:sub#:run,fail")); !errors.Is(err, errBoom) {
		t.Errorf("Call(run,fail) error = %v, want boom", err)
	}
	if _, err := root.Call(t.Context(), ns("foo:sub")); !errors.Is(err, ErrNoMethodsSpecified) {
		t.Errorf("Call() without methods error = %v", err)
	}
	if _, err := root.Call(t.Context(), ns("foo:sub#:nope")); !errors.Is(err, ErrUnknownOperation) {
		t.Errorf("Call(nope) error = %v", err)
	}
	if _, err := root.Call(t.Context(), ns("foo:sub#*:run")); !errors.Is(err, ErrWildcardNotAllowed) {
		t.Errorf("Call() with wildcard error = %v", err)
	}
	if calls := f.unit("foo:sub").Calls(); slices.Contains(calls, "nope") {
		t.Errorf("unexpected calls %v", calls)
	}
}

func TestWith_RequiresThenCalls(t *testing.T) {
	t.Parallel()

	f := newUnitFactory()
	env, _ := newTestEnv(t)
	env.Catalog().MustRegister("foo:sub", Definition{Factory: f.Factory})
	root := env.Root("/work")

	target := ns("foo:sub#one:run@^1.0.0")
	if root.Loaded(target.ID()) {
		t.Fatal("unit loaded before With")
	}

	got, err := root.With(t.Context(), target, Options{"name": "demo"})
	if err != nil {
		t.Fatalf("With() error = %v", err)
	}
	if got != "one" {
		t.Errorf("With() = %#v, want %q", got, "one")
	}

	u := f.unit("foo:sub#one")
	if u == nil {
		t.Fatal("unit foo:sub#one was not instantiated")
	}
	if u.construction.Options.String(OptDestinationRoot) != "/work" || u.construction.Options.String("name") != "demo" {
		t.Errorf("construction options = %v", u.construction.Options)
	}
	if !slices.Equal(u.Calls(), []string{"run"}) {
		t.Errorf("calls = %v, want [run]", u.Calls())
	}

	none, err := root.With(t.Context(), ns("foo:sub#two"), nil)
	if err != nil || none != nil {
		t.Errorf("With() without methods = (%v, %v), want (nil, nil)", none, err)
	}
	if !root.Loaded("foo:sub#two") {
		t.Error("With() without methods should still require the unit")
	}
}

func TestWith_GeneratorRequired(t *testing.T) {
	t.Parallel()

	env, _ := newTestEnv(t)
	_, err := env.Root("/work").With(t.Context(), ns("foo#:run"), nil)
	if !errors.Is(err, ErrGeneratorRequired) {
		t.Errorf("With() error = %v, want ErrGeneratorRequired", err)
	}
}

func TestWith_WildcardExpandsBeforeGeneratorCheck(t *testing.T) {
	t.Parallel()

	env, fs := newTestEnv(t)
	root := env.Root("/work")

	got, err := root.With(t.Context(), ns("foo#*:run"), nil)
	if err != nil {
		t.Fatalf("With() without persisted instances error = %v", err)
	}
	if results, ok := got.([]any); !ok || len(results) != 0 {
		t.Errorf("With() = %#v, want an empty result", got)
	}

	writeConfig(t, fs, "/work", `{"yoke-foo": {"app": {"#a": {}}}}`)
	if _, err := env.Root("/work").With(t.Context(), ns("foo#*:run"), nil); !errors.Is(err, ErrGeneratorRequired) {
		t.Errorf("With() with an instance error = %v, want ErrGeneratorRequired", err)
	}
}

func TestWith_WildcardFansOutOverConfiguredInstances(t *testing.T) {
	t.Parallel()

	f := newUnitFactory()
	env, fs := newTestEnv(t)
	env.Catalog().MustRegister("foo:sub", Definition{Factory: f.Factory})
	writeConfig(t, fs, "/work", `{
		"yoke-foo": {
			"sub": {
				"#b": {"color": "blue"},
				"shared": true,
				"#a": {}
			}
		}
	}`)
	root := env.Root("/work")

	got, err := root.With(t.Context(), ns("foo:sub#*:run"), nil)
	if err != nil {
		t.Fatalf("With() error = %v", err)
	}
	results, ok := got.([]any)
	if !ok || len(results) != 2 || results[0] != "b" || results[1] != "a" {
		t.Errorf("With() = %#v, want [b a]", got)
	}
	if got := f.count.Load(); got != 2 {
		t.Errorf("factory calls = %d, want 2", got)
	}
	if !slices.Equal(root.LoadedIDs(), []string{"foo:sub#a", "foo:sub#b"}) {
		t.Errorf("LoadedIDs() = %v", root.LoadedIDs())
	}
}

func TestWith_WildcardFailureFailsAggregate(t *testing.T) {
	t.Parallel()

	f := newUnitFactory()
	env, fs := newTestEnv(t)
	env.Catalog().MustRegister("foo:sub", Definition{Factory: f.Factory})
	writeConfig(t, fs, "/work", `{"yoke-foo": {"sub": {"#a": {}, "#b": {}}}}`)

	_, err := env.Root("/work").With(t.Context(), ns("foo:sub#*:fail"), nil)
	if !errors.Is(err, errBoom) {
		t.Errorf("With() error = %v, want boom", err)
	}
}

type recordingQueue struct {
	mu    sync.Mutex
	queue []string
}

func (q *recordingQueue) Queue(_ context.Context, _ Unit, api *API) error {
	q.mu.Lock()
	defer q.mu.Unlock()
	q.queue = append(q.queue, api.Namespace().ID())
	return nil
}

type failingQueue struct {
	mu    sync.Mutex
	fails int
	calls int
}

func (q *failingQueue) Queue(context.Context, Unit, *API) error {
	q.mu.Lock()
	defer q.mu.Unlock()
	q.calls++
	if q.calls <= q.fails {
		return errBoom
	}
	return nil
}

func TestRequire_QueueFailureLeavesUnitUnloaded(t *testing.T) {
	t.Parallel()

	f := newUnitFactory()
	q := &failingQueue{fails: 1}
	env, _ := newTestEnv(t, WithTaskQueue(q))
	env.Catalog().MustRegister("foo:sub", Definition{Factory: f.Factory})
	root := env.Root("/work")

	if _, err := root.Require(t.Context(), ns("foo:sub#a"), nil); !errors.Is(err, errBoom) {
		t.Fatalf("Require() error = %v, want boom", err)
	}
	if root.Loaded("foo:sub#a") {
		t.Error("unit must not be loaded when queueing its tasks fails")
	}
	if _, ok := root.Surface().Lookup(ns("foo:sub#a")); ok {
		t.Error("unit must not appear on the surface when queueing its tasks fails")
	}

	if _, err := root.Require(t.Context(), ns("foo:sub#a"), nil); err != nil {
		t.Fatalf("second Require() error = %v", err)
	}
	if !root.Loaded("foo:sub#a") || f.count.Load() != 2 || q.calls != 2 {
		t.Errorf("loaded=%v factory calls=%d queue calls=%d", root.Loaded("foo:sub#a"), f.count.Load(), q.calls)
	}
}

func TestRequire_QueuesLoadedUnits(t *testing.T) {
	t.Parallel()

	f := newUnitFactory()
	q := &recordingQueue{}
	env, _ := newTestEnv(t, WithTaskQueue(q))
	env.Catalog().MustRegister("foo:sub", Definition{Factory: f.Factory})
	root := env.Root("/work")

	for _, raw := range []string{"foo:sub#1", "foo:sub#2", "foo:sub#1:run"} {
		if _, err := root.Require(t.Context(), ns(raw), nil); err != nil {
			t.Fatal(err)
		}
	}
	if !slices.Equal(q.queue, []string{"foo:sub#1", "foo:sub#2"}) {
		t.Errorf("queued = %v", q.queue)
	}
}
