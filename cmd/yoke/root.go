// SPDX-License-Identifier: MPL-2.0

package cmd

import (
	"context"
	"errors"
	"fmt"
	"os"

	"github.com/charmbracelet/fang"
	"github.com/spf13/cobra"

	"github.com/yokehq/yoke/internal/issue"
)

var (
	// Version is the semantic version (set via -ldflags).
	Version = "dev"
	// Commit is the git commit hash (set via -ldflags).
	Commit = "unknown"
	// BuildDate is the build timestamp (set via -ldflags).
	BuildDate = "unknown"
)

// NewRootCommand builds the yoke command tree around app.
func NewRootCommand(app *App) *cobra.Command {
	root := &cobra.Command{
		Use:   "yoke",
		Short: "Compose and run generators",
		Long: TitleStyle.Render("yoke") + SubtitleStyle.Render(" - compose and run generators") + `

yoke instantiates generator units named by namespaces, installing their
packages and peer dependencies on demand, and runs the tasks they queue.

` + SubtitleStyle.Render("Namespaces:") + `
  foo                 the app unit of package yoke-foo
  @acme/web:page#home instance "home" of unit page in @acme/yoke-web
  foo:greet#:hello    call operation hello of foo:greet
  foo@^1.2.0          require a version range when installing

` + SubtitleStyle.Render("Examples:") + `
  yoke run foo:greet#:hello --opt color=red
  yoke resolve @acme/web:page
  yoke namespace 'foo:bar#*:build@~2.0.0'
  yoke config show`,
		SilenceUsage: true,
	}
	root.SetOut(app.stdout)
	root.SetErr(app.stderr)

	root.PersistentFlags().BoolVarP(&app.verbose, "verbose", "v", false, "enable verbose output")
	root.PersistentFlags().StringVar(&app.configPath, "config", "", "config file (default is $XDG_CONFIG_HOME/yoke/config.cue)")
	root.PersistentFlags().BoolVar(&app.trace, "trace", false, "export OpenTelemetry spans to stderr")

	root.AddCommand(
		newRunCommand(app),
		newResolveCommand(app),
		newNamespaceCommand(app),
		newListCommand(app),
		newConfigCommand(app),
	)
	return root
}

func versionString() string {
	if Version == "dev" {
		return "dev (built from source)"
	}
	return fmt.Sprintf("%s (commit: %s, built: %s)", Version, Commit, BuildDate)
}

// Execute runs the CLI and exits with the status of the failed command.
func Execute() {
	app := NewApp(Dependencies{})
	if err := fang.Execute(
		context.Background(),
		NewRootCommand(app),
		fang.WithVersion(versionString()),
		fang.WithNotifySignal(os.Interrupt),
	); err != nil {
		var exitErr *ExitError
		if errors.As(err, &exitErr) {
			os.Exit(exitErr.Code)
		}
		os.Exit(1)
	}
}

// formatErrorForDisplay renders actionable errors with their suggestions;
// verbose mode adds the error chain.
func formatErrorForDisplay(err error, verbose bool) string {
	var ae *issue.ActionableError
	if errors.As(err, &ae) {
		return ae.Format(verbose)
	}
	return err.Error()
}

// fail reports a failed operation with its suggestions and converts it
// into an ExitError so the command exits without a second error report.
func (a *App) fail(cmd *cobra.Command, err error, operation string) error {
	ae, code := classify(err, operation)
	fmt.Fprintln(a.stderr, ErrorStyle.Render("Error: ")+formatErrorForDisplay(ae, a.verbose))
	cmd.SilenceErrors = true
	return &ExitError{Code: code, Err: ae}
}
