// SPDX-License-Identifier: MPL-2.0

package compose

import (
	"context"
	"log/slog"
	"sync"
	"sync/atomic"
	"testing"

	"github.com/spf13/afero"

	"github.com/yokehq/yoke/pkg/namespace"
)

// recordingUnit exposes "run", which returns the instance id of the unit,
// "echo", which returns its arguments, and "fail".
type recordingUnit struct {
	construction Construction

	mu    sync.Mutex
	calls []string
}

func (u *recordingUnit) PublicOperations() []PublicOperation {
	return []PublicOperation{
		{Name: "run", Run: func(_ context.Context, _ ...any) (any, error) {
			u.record("run")
			return u.construction.Namespace.InstanceID(), nil
		}},
		{Name: "echo", Run: func(_ context.Context, args ...any) (any, error) {
			u.record("echo")
			return args, nil
		}},
		{Name: "fail", Run: func(_ context.Context, _ ...any) (any, error) {
			u.record("fail")
			return nil, errBoom
		}},
	}
}

func (u *recordingUnit) Tasks() []string { return []string{"run"} }

func (u *recordingUnit) record(name string) {
	u.mu.Lock()
	defer u.mu.Unlock()
	u.calls = append(u.calls, name)
}

func (u *recordingUnit) Calls() []string {
	u.mu.Lock()
	defer u.mu.Unlock()
	return append([]string(nil), u.calls...)
}

type errString string

func (e errString) Error() string { return string(e) }

const errBoom = errString("boom")

// unitFactory counts constructions and keeps every unit it built.
type unitFactory struct {
	count atomic.Int32

	mu    sync.Mutex
	units map[string]*recordingUnit
}

func newUnitFactory() *unitFactory {
	return &unitFactory{units: make(map[string]*recordingUnit)}
}

func (f *unitFactory) Factory(_ context.Context, c Construction) (Unit, error) {
	f.count.Add(1)
	u := &recordingUnit{construction: c}
	f.mu.Lock()
	f.units[c.Namespace.ID()] = u
	f.mu.Unlock()
	return u, nil
}

func (f *unitFactory) unit(id string) *recordingUnit {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.units[id]
}

func newTestEnv(t *testing.T, opts ...EnvOption) (*Environment, afero.Fs) {
	t.Helper()

	fs := afero.NewMemMapFs()
	opts = append([]EnvOption{WithFs(fs), WithLogger(slog.New(slog.DiscardHandler))}, opts...)
	return NewEnvironment(opts...), fs
}

func writeConfig(t *testing.T, fs afero.Fs, dir, content string) {
	t.Helper()

	if err := afero.WriteFile(fs, dir+"/"+ConfigFileName, []byte(content), 0o644); err != nil {
		t.Fatalf("write config: %v", err)
	}
}

func ns(raw string) namespace.Namespace { return namespace.MustParse(raw) }
