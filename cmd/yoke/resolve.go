// SPDX-License-Identifier: MPL-2.0

package cmd

import (
	"context"
	"fmt"
	"time"

	"github.com/spf13/cobra"
)

func newResolveCommand(app *App) *cobra.Command {
	var timeout time.Duration
	cmd := &cobra.Command{
		Use:   "resolve <namespace>...",
		Short: "Install and register generators without running them",
		Long: `Install and register generators without running them.

Packages that are missing or outside the requested version range are
installed together with their generator peer dependencies, then the
lookup locations are searched for the generators.`,
		Args: cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			namespaces, err := parseNamespaces(args)
			if err != nil {
				return app.fail(cmd, err, "parse namespace")
			}

			ctx := cmd.Context()
			if timeout > 0 {
				var cancel context.CancelFunc
				ctx, cancel = context.WithTimeout(ctx, timeout)
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

			root := svc.env.Root(".")
			_, prepErr := root.PrepareNamespaces(ctx, namespaces...)
			for _, ns := range namespaces {
				mark := SuccessStyle.Render("✓")
				if !root.Satisfied(ns) {
					mark = ErrorStyle.Render("✗")
				}
				fmt.Fprintf(app.stdout, "%s %s\n", mark, nsStyle.Render(ns.Complete()))
			}
			if prepErr != nil {
				return app.fail(cmd, prepErr, "prepare environment")
			}
			return nil
		},
	}
	cmd.Flags().DurationVar(&timeout, "timeout", 0, "abort after this duration (0 disables)")
	return cmd
}
