// SPDX-License-Identifier: MPL-2.0

package cmd

import (
	"context"
	"errors"
	"fmt"
	"io"
	"path/filepath"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/yokehq/yoke/pkg/compose"
	"github.com/yokehq/yoke/pkg/namespace"
)

// ErrInvalidOption is returned for a --opt value without "=".
var ErrInvalidOption = errors.New("option must be key=value")

type runFlags struct {
	dest    string
	opts    []string
	timeout time.Duration
	noTasks bool
}

func newRunCommand(app *App) *cobra.Command {
	var flags runFlags
	cmd := &cobra.Command{
		Use:   "run <namespace>...",
		Short: "Compose generators and run their tasks",
		Long: `Compose generators and run their tasks.

Each namespace is instantiated in the destination directory, installing
missing packages first, and the operations it names are called. The tasks
every loaded unit declares then run in load order.`,
		Args: cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runNamespaces(cmd, app, flags, args)
		},
	}
	cmd.Flags().StringVarP(&flags.dest, "dest", "d", ".", "destination directory")
	cmd.Flags().StringArrayVarP(&flags.opts, "opt", "o", nil, "unit option as key=value (repeatable)")
	cmd.Flags().DurationVar(&flags.timeout, "timeout", 0, "abort after this duration (0 disables)")
	cmd.Flags().BoolVar(&flags.noTasks, "no-tasks", false, "skip the queued tasks")
	return cmd
}

func runNamespaces(cmd *cobra.Command, app *App, flags runFlags, args []string) error {
	namespaces, err := parseNamespaces(args)
	if err != nil {
		return app.fail(cmd, err, "parse namespace")
	}
	opts, err := parseOptions(flags.opts)
	if err != nil {
		return app.fail(cmd, err, "parse options")
	}
	dest, err := filepath.Abs(flags.dest)
	if err != nil {
		return app.fail(cmd, err, "resolve destination")
	}

	ctx := cmd.Context()
	if flags.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, flags.timeout)
		defer cancel()
	}

	svc, err := app.services(ctx)
	if err != nil {
		return app.fail(cmd, err, "load configuration")
	}
	defer func() {
		if err := svc.Close(ctx); err != nil {
			svc.logger.Warn("shutdown", "error", err)
		}
	}()

	root := svc.env.Root(dest)
	for _, ns := range namespaces {
		res, err := root.With(ctx, ns, opts)
		if err != nil {
			return app.fail(cmd, err, "compose "+ns.Complete())
		}
		printResult(app.stdout, ns.Complete(), res)
	}

	if flags.noTasks {
		return nil
	}
	results, err := svc.queue.Run(ctx)
	for _, r := range results {
		printResult(app.stdout, r.Unit+" "+r.Task, r.Value)
	}
	if err != nil {
		return app.fail(cmd, err, "run tasks")
	}
	return nil
}

func parseNamespaces(args []string) ([]namespace.Namespace, error) {
	out := make([]namespace.Namespace, 0, len(args))
	for _, raw := range args {
		ns, err := namespace.Parse(raw)
		if err != nil {
			return nil, err
		}
		out = append(out, ns)
	}
	return out, nil
}

// parseOptions turns key=value pairs into unit options. A repeated key keeps
// the last value.
func parseOptions(pairs []string) (compose.Options, error) {
	opts := make(compose.Options, len(pairs))
	for _, pair := range pairs {
		key, value, ok := strings.Cut(pair, "=")
		key = strings.TrimSpace(key)
		if !ok || key == "" {
			return nil, fmt.Errorf("%w: %q", ErrInvalidOption, pair)
		}
		opts[key] = value
	}
	return opts, nil
}

// printResult writes one result line. Nil results print nothing; slices
// from wildcard or multi-method calls print one line per element.
func printResult(w io.Writer, label string, v any) {
	switch r := v.(type) {
	case nil:
	case []any:
		for i, item := range r {
			printResult(w, fmt.Sprintf("%s[%d]", label, i), item)
		}
	default:
		fmt.Fprintf(w, "%s %s %v\n", nsStyle.Render(label), SubtitleStyle.Render("→"), r)
	}
}
