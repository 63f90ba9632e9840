// SPDX-License-Identifier: MPL-2.0

package store

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"strings"

	"mvdan.cc/sh/v3/expand"
	"mvdan.cc/sh/v3/interp"
	"mvdan.cc/sh/v3/syntax"

	"github.com/yokehq/yoke/pkg/resolve"
)

// DefaultInstallCommand fetches every package spec passed as a positional
// parameter.
const DefaultInstallCommand = `yoke-fetch "$@"`

// ErrInstallCommandFailed is returned when the install command exits non-zero.
var ErrInstallCommandFailed = errors.New("install command failed")

type (
	// ShellInstaller installs a batch by running one shell command through an
	// in-process POSIX interpreter. Packages are passed as "name@range"
	// positional parameters, dependencies first.
	ShellInstaller struct {
		// Command is the shell script to run. Defaults to DefaultInstallCommand.
		Command string
		// Dir is the working directory, usually the store root.
		Dir string
		// Env is appended to the process environment.
		Env    []string
		Stdout io.Writer
		Stderr io.Writer
		Logger *slog.Logger
	}

	// InstallCommandError reports a non-zero exit of the install command.
	InstallCommandError struct {
		ExitCode int
		Packages []string
	}
)

func (e *InstallCommandError) Error() string {
	return fmt.Sprintf("install command exited with status %d (packages: %s)", e.ExitCode, strings.Join(e.Packages, ", "))
}

func (e *InstallCommandError) Unwrap() error { return ErrInstallCommandFailed }

// Install implements resolve.Installer.
func (i *ShellInstaller) Install(ctx context.Context, batch *resolve.InstallBatch) error {
	if batch == nil || batch.Len() == 0 {
		return nil
	}
	if err := ctx.Err(); err != nil {
		return err
	}

	logger := i.Logger
	if logger == nil {
		logger = slog.Default()
	}

	entries, err := batch.Ordered()
	if err != nil {
		logger.Warn("install batch has a dependency cycle, using discovery order", "error", err)
	}

	specs := make([]string, 0, len(entries))
	for _, e := range entries {
		specs = append(specs, e.Name+"@"+e.Range)
	}

	command := i.Command
	if strings.TrimSpace(command) == "" {
		command = DefaultInstallCommand
	}

	prog, err := syntax.NewParser().Parse(strings.NewReader(command), "install")
	if err != nil {
		return fmt.Errorf("failed to parse install command: %w", err)
	}

	stdout, stderr := i.Stdout, i.Stderr
	if stdout == nil {
		stdout = io.Discard
	}
	if stderr == nil {
		stderr = io.Discard
	}

	env := append(os.Environ(), i.Env...)
	opts := []interp.RunnerOption{
		interp.Env(expand.ListEnviron(env...)),
		interp.StdIO(nil, stdout, stderr),
		// "--" keeps specs like "-x@1" from being read as shell options.
		interp.Params(append([]string{"--"}, specs...)...),
	}
	if i.Dir != "" {
		opts = append(opts, interp.Dir(i.Dir))
	}

	runner, err := interp.New(opts...)
	if err != nil {
		return fmt.Errorf("failed to create interpreter: %w", err)
	}

	logger.Debug("running install command", "packages", specs, "dir", i.Dir)
	if err := runner.Run(ctx, prog); err != nil {
		var exitStatus interp.ExitStatus
		if errors.As(err, &exitStatus) {
			return &InstallCommandError{ExitCode: int(exitStatus), Packages: specs}
		}
		return fmt.Errorf("install command failed: %w", err)
	}
	return nil
}
