// SPDX-License-Identifier: MPL-2.0

package scriptunit

import (
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/spf13/afero"

	"github.com/yokehq/yoke/pkg/resolve"
)

func TestLoader_ReadDefinition(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name    string
		content string
		wantErr string
	}{
		{name: "valid", content: greetUnit},
		{name: "no operations", content: `name: "x", operations: []`, wantErr: "operations"},
		{name: "bad operation name", content: `name: "x", operations: [{name: "a-b", script: "true"}]`, wantErr: "name"},
		{name: "empty script", content: `name: "x", operations: [{name: "a", script: ""}]`, wantErr: "script"},
		{name: "unknown field", content: `name: "x", operations: [{name: "a", script: "true"}], extra: 1`, wantErr: "extra"},
		{name: "duplicate operation", content: `name: "x", operations: [{name: "a", script: "true"}, {name: "a", script: "false"}]`, wantErr: "defined twice"},
		{name: "unparsable script", content: `name: "x", operations: [{name: "a", script: "if then"}]`, wantErr: `operation "a"`},
		{name: "absolute dest", content: `name: "x", operations: [{name: "a", script: "true", dest: "/etc"}]`, wantErr: "dest"},
		{name: "escaping dest", content: `name: "x", operations: [{name: "a", script: "true", dest: "../up"}]`, wantErr: "dest"},
		{name: "unknown task", content: `name: "x", operations: [{name: "a", script: "true"}], tasks: ["b"]`, wantErr: `task "b"`},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			fsys := afero.NewMemMapFs()
			writeUnit(t, fsys, "/u/unit.cue", tt.content)

			def, err := NewLoader(fsys).ReadDefinition("/u/unit.cue")
			if tt.wantErr != "" {
				if err == nil || !strings.Contains(err.Error(), tt.wantErr) {
					t.Fatalf("ReadDefinition() error = %v, want it to mention %q", err, tt.wantErr)
				}
				return
			}
			if err != nil {
				t.Fatalf("ReadDefinition() error = %v", err)
			}
			if def.Name != "greet" || def.Path != "/u/unit.cue" || len(def.Operations) != 5 || def.Env["GREETING"] != "hi" {
				t.Errorf("definition = %+v", def)
			}
		})
	}
}

func TestLoader_Load(t *testing.T) {
	t.Parallel()

	fsys := afero.NewMemMapFs()
	writeUnit(t, fsys, "/u/unit.cue", greetUnit)
	l := NewLoader(fsys)

	factory, err := l.Load(t.Context(), resolve.Discovered{Namespace: "foo:greet", Path: "/u/unit.cue"})
	if err != nil || factory == nil {
		t.Fatalf("Load() = (%v, %v)", factory, err)
	}

	if _, err := l.Load(t.Context(), resolve.Discovered{Path: "/u/missing.cue"}); err == nil {
		t.Error("Load() of a missing file should fail")
	}

	ctx, cancel := context.WithCancel(t.Context())
	cancel()
	if _, err := l.Load(ctx, resolve.Discovered{Path: "/u/unit.cue"}); !errors.Is(err, context.Canceled) {
		t.Errorf("Load() with canceled context error = %v", err)
	}
}
