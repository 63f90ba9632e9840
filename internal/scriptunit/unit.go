// SPDX-License-Identifier: MPL-2.0

package scriptunit

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"log/slog"
	"maps"
	"os"
	"path/filepath"
	"slices"
	"strings"

	"mvdan.cc/sh/v3/expand"
	"mvdan.cc/sh/v3/interp"

	"github.com/yokehq/yoke/pkg/compose"
	"github.com/yokehq/yoke/pkg/namespace"
)

const (
	// EnvDestinationRoot holds the destination root of the running unit.
	EnvDestinationRoot = "YOKE_DESTINATION_ROOT"
	// EnvNamespace holds the namespace id of the running unit.
	EnvNamespace = "YOKE_NAMESPACE"
	// EnvInstance holds the instance id of the running unit, if any.
	EnvInstance = "YOKE_INSTANCE"
	// EnvOptionPrefix prefixes every construction option exported to scripts.
	EnvOptionPrefix = "YOKE_OPT_"
)

// ErrScriptFailed is returned when an operation script exits non-zero.
var ErrScriptFailed = errors.New("script failed")

type (
	// Unit is an instantiated script unit.
	Unit struct {
		def          *Definition
		construction compose.Construction
		env          []string
		logger       *slog.Logger
	}

	// ScriptError reports a non-zero exit of an operation script.
	ScriptError struct {
		Unit      string
		Operation string
		ExitCode  int
		Stderr    string
	}
)

func (e *ScriptError) Error() string {
	msg := fmt.Sprintf("%s.%s exited with status %d", e.Unit, e.Operation, e.ExitCode)
	if stderr := strings.TrimSpace(e.Stderr); stderr != "" {
		msg += ": " + stderr
	}
	return msg
}

func (e *ScriptError) Unwrap() error { return ErrScriptFailed }

// Definition returns the unit file the unit was built from.
func (u *Unit) Definition() *Definition { return u.def }

// PublicOperations implements compose.Unit.
func (u *Unit) PublicOperations() []compose.PublicOperation {
	ops := make([]compose.PublicOperation, 0, len(u.def.Operations))
	for _, op := range u.def.Operations {
		ops = append(ops, compose.PublicOperation{
			Name: op.Name,
			Run: func(ctx context.Context, args ...any) (any, error) {
				return u.run(ctx, op, args)
			},
		})
	}
	return ops
}

// Tasks implements compose.Tasker.
func (u *Unit) Tasks() []string { return slices.Clone(u.def.Tasks) }

func (u *Unit) run(ctx context.Context, op OperationDef, args []any) (any, error) {
	ns := u.construction.Namespace

	if err := u.compose(ctx, op); err != nil {
		return nil, err
	}

	params := make([]string, 0, len(args)+1)
	// "--" keeps arguments like "-v" from being read as shell options.
	params = append(params, "--")
	for _, a := range args {
		params = append(params, fmt.Sprint(a))
	}

	var stdout, stderr bytes.Buffer
	opts := []interp.RunnerOption{
		interp.Env(expand.ListEnviron(u.environ()...)),
		interp.StdIO(nil, &stdout, &stderr),
		interp.Params(params...),
	}
	if dir := u.construction.DestinationRoot; dir != "" {
		opts = append(opts, interp.Dir(dir))
	}

	runner, err := interp.New(opts...)
	if err != nil {
		return nil, fmt.Errorf("failed to create interpreter for %s.%s: %w", ns.ID(), op.Name, err)
	}

	u.logger.Debug("running unit operation", "unit", ns.ID(), "operation", op.Name, "args", len(args))
	if err := runner.Run(ctx, u.def.programs[op.Name]); err != nil {
		var exitStatus interp.ExitStatus
		if errors.As(err, &exitStatus) {
			return nil, &ScriptError{Unit: ns.ID(), Operation: op.Name, ExitCode: int(exitStatus), Stderr: stderr.String()}
		}
		return nil, fmt.Errorf("%s.%s: %w", ns.ID(), op.Name, err)
	}
	return strings.TrimSpace(stdout.String()), nil
}

// compose runs the namespaces an operation composes, in order, through the
// context the unit was loaded into, or through its child for op.Dest.
func (u *Unit) compose(ctx context.Context, op OperationDef) error {
	if len(op.With) == 0 {
		return nil
	}
	c := u.construction.Context
	if c == nil {
		return fmt.Errorf("%s.%s composes other units but has no composition context", u.construction.Namespace.ID(), op.Name)
	}
	if op.Dest != "" {
		dir := filepath.Join(u.construction.DestinationRoot, filepath.FromSlash(op.Dest))
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("%s.%s: failed to create %s: %w", u.construction.Namespace.ID(), op.Name, dir, err)
		}
		c = c.CreateChild(filepath.ToSlash(filepath.Clean(op.Dest)), dir, nil)
	}
	for _, raw := range op.With {
		ns, err := namespace.Parse(raw)
		if err != nil {
			return fmt.Errorf("%s.%s: %w", u.construction.Namespace.ID(), op.Name, err)
		}
		if _, err := c.With(ctx, ns, nil); err != nil {
			return fmt.Errorf("%s.%s: composing %s: %w", u.construction.Namespace.ID(), op.Name, raw, err)
		}
	}
	return nil
}

// environ builds the script environment: the base environment, the unit's
// env block, then the yoke variables.
func (u *Unit) environ() []string {
	env := u.env
	if env == nil {
		env = os.Environ()
	}
	env = slices.Clone(env)

	for _, k := range slices.Sorted(maps.Keys(u.def.Env)) {
		env = append(env, k+"="+u.def.Env[k])
	}

	ns := u.construction.Namespace
	env = append(env,
		EnvDestinationRoot+"="+u.construction.DestinationRoot,
		EnvNamespace+"="+ns.ID(),
		EnvInstance+"="+ns.InstanceID(),
	)
	for _, k := range slices.Sorted(maps.Keys(u.construction.Options)) {
		env = append(env, EnvOptionPrefix+EnvKey(k)+"="+fmt.Sprint(u.construction.Options[k]))
	}
	return env
}

// EnvKey turns an option name into an environment variable suffix:
// "destinationRoot" becomes "DESTINATIONROOT", "skip-install" becomes
// "SKIP_INSTALL".
func EnvKey(option string) string {
	return strings.Map(func(r rune) rune {
		switch {
		case r >= 'a' && r <= 'z':
			return r - 'a' + 'A'
		case r >= 'A' && r <= 'Z', r >= '0' && r <= '9', r == '_':
			return r
		default:
			return '_'
		}
	}, option)
}
