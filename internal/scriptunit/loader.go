// SPDX-License-Identifier: MPL-2.0

package scriptunit

import (
	"context"
	_ "embed"
	"fmt"
	"log/slog"
	"path/filepath"
	"slices"
	"strings"

	"github.com/spf13/afero"
	"mvdan.cc/sh/v3/syntax"

	"github.com/yokehq/yoke/internal/cueutil"
	"github.com/yokehq/yoke/pkg/compose"
	"github.com/yokehq/yoke/pkg/resolve"
)

//go:embed unit_schema.cue
var unitSchema []byte

type (
	// OperationDef is one operation of a unit file.
	OperationDef struct {
		Name        string   `json:"name"`
		Script      string   `json:"script"`
		Description string   `json:"description,omitempty"`
		With        []string `json:"with,omitempty"`
		Dest        string   `json:"dest,omitempty"`
	}

	// Definition is a decoded unit.cue file.
	Definition struct {
		Name        string            `json:"name"`
		Description string            `json:"description,omitempty"`
		Operations  []OperationDef    `json:"operations"`
		Tasks       []string          `json:"tasks,omitempty"`
		Env         map[string]string `json:"env,omitempty"`

		// Path is the file the definition was read from.
		Path string `json:"-"`
		// Source identifies the generator, its package and version.
		Source resolve.Discovered `json:"-"`

		programs map[string]*syntax.File
	}

	// InvalidDefinitionError reports a unit file that decodes but is not usable.
	InvalidDefinitionError struct {
		Path   string
		Reason string
	}

	// Loader reads unit files from a filesystem. It implements compose.Loader.
	Loader struct {
		fs     afero.Fs
		env    []string
		logger *slog.Logger
	}

	// LoaderOption configures a Loader.
	LoaderOption func(*Loader)
)

func (e *InvalidDefinitionError) Error() string {
	return fmt.Sprintf("%s: invalid unit: %s", e.Path, e.Reason)
}

// WithEnv sets the base environment of scripts, os.Environ() by default.
func WithEnv(env []string) LoaderOption {
	return func(l *Loader) { l.env = slices.Clone(env) }
}

// WithLogger sets the logger.
func WithLogger(logger *slog.Logger) LoaderOption {
	return func(l *Loader) { l.logger = logger }
}

// NewLoader creates a loader reading from fsys.
func NewLoader(fsys afero.Fs, opts ...LoaderOption) *Loader {
	l := &Loader{fs: fsys, logger: slog.Default()}
	for _, opt := range opts {
		opt(l)
	}
	return l
}

// Load implements compose.Loader.
func (l *Loader) Load(ctx context.Context, d resolve.Discovered) (compose.Factory, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	def, err := l.ReadDefinition(d.Path)
	if err != nil {
		return nil, err
	}
	def.Source = d
	l.logger.Debug("loaded script unit", "unit", d.Namespace, "path", d.Path, "operations", len(def.Operations))
	return def.Factory(l.env, l.logger), nil
}

// ReadDefinition decodes and checks the unit file at path.
func (l *Loader) ReadDefinition(path string) (*Definition, error) {
	res, err := cueutil.ParseFile[Definition](l.fs, path, unitSchema, "#Unit")
	if err != nil {
		return nil, err
	}
	def := res.Value
	def.Path = path
	if err := def.compile(); err != nil {
		return nil, err
	}
	return def, nil
}

// compile parses every script once and checks names and task references.
func (d *Definition) compile() error {
	d.programs = make(map[string]*syntax.File, len(d.Operations))
	for _, op := range d.Operations {
		if _, dup := d.programs[op.Name]; dup {
			return &InvalidDefinitionError{Path: d.Path, Reason: fmt.Sprintf("operation %q is defined twice", op.Name)}
		}
		prog, err := syntax.NewParser().Parse(strings.NewReader(op.Script), d.Name+"."+op.Name)
		if err != nil {
			return &InvalidDefinitionError{Path: d.Path, Reason: fmt.Sprintf("operation %q: %v", op.Name, err)}
		}
		d.programs[op.Name] = prog
		if op.Dest != "" && !filepath.IsLocal(op.Dest) {
			return &InvalidDefinitionError{Path: d.Path, Reason: fmt.Sprintf("operation %q: dest %q must stay below the destination root", op.Name, op.Dest)}
		}
	}
	for _, task := range d.Tasks {
		if _, ok := d.programs[task]; !ok {
			return &InvalidDefinitionError{Path: d.Path, Reason: fmt.Sprintf("task %q names no operation", task)}
		}
	}
	return nil
}

// Factory returns a factory building units from d. A nil env selects the
// process environment at run time.
func (d *Definition) Factory(env []string, logger *slog.Logger) compose.Factory {
	if logger == nil {
		logger = slog.Default()
	}
	return func(_ context.Context, c compose.Construction) (compose.Unit, error) {
		return &Unit{def: d, construction: c, env: env, logger: logger}, nil
	}
}
