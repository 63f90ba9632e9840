// SPDX-License-Identifier: MPL-2.0

package cmd

import (
	"fmt"
	"io"
	"slices"
	"strings"

	"github.com/charmbracelet/lipgloss"
	"github.com/charmbracelet/lipgloss/table"
	"github.com/spf13/cobra"

	"github.com/yokehq/yoke/internal/discovery"
)

func newListCommand(app *App) *cobra.Command {
	var packages bool
	cmd := &cobra.Command{
		Use:   "list",
		Short: "List the generators available locally",
		Long: `List the generators available locally.

The package store is searched first, then every configured lookup path. A
package found in several locations is listed from the first one.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			svc, err := app.services(cmd.Context())
			if err != nil {
				return app.fail(cmd, err, "load configuration")
			}
			defer func() {
				if err := svc.Close(cmd.Context()); err != nil {
					svc.logger.Warn("shutdown", "error", err)
				}
			}()

			if packages {
				return listPackages(cmd, app, svc)
			}

			units, err := svc.locator.All(cmd.Context())
			if err != nil {
				return app.fail(cmd, err, "discover generators")
			}
			if len(units) == 0 {
				fmt.Fprintln(app.stdout, SubtitleStyle.Render("(no generators found)"))
			} else {
				t := newTable("GENERATOR", "VERSION", "SOURCE", "PATH")
				for _, u := range units {
					t.Row(u.Namespace, u.Version, u.Source.String(), u.Path)
				}
				fmt.Fprintln(app.stdout, t.String())
			}
			printDiagnostics(app.stderr, svc.locator.Diagnostics())
			return nil
		},
	}
	cmd.Flags().BoolVar(&packages, "packages", false, "list installed packages instead of generators")
	return cmd
}

func listPackages(cmd *cobra.Command, app *App, svc *services) error {
	pkgs, err := svc.store.Packages()
	if err != nil {
		return app.fail(cmd, err, "list packages")
	}
	if len(pkgs) == 0 {
		fmt.Fprintln(app.stdout, SubtitleStyle.Render("(no packages installed)"))
		return nil
	}
	t := newTable("PACKAGE", "VERSION", "PEER DEPENDENCIES")
	for _, p := range pkgs {
		peers := make([]string, 0, len(p.PeerDependencies))
		for name, rng := range p.PeerDependencies {
			peers = append(peers, name+"@"+rng)
		}
		slices.Sort(peers)
		t.Row(p.Name, p.Version, strings.Join(peers, " "))
	}
	fmt.Fprintln(app.stdout, t.String())
	return nil
}

func newTable(headers ...string) *table.Table {
	return table.New().
		Border(lipgloss.NormalBorder()).
		BorderStyle(SubtitleStyle).
		StyleFunc(func(row, _ int) lipgloss.Style {
			if row == table.HeaderRow {
				return TitleStyle.Padding(0, 1)
			}
			return lipgloss.NewStyle().Padding(0, 1)
		}).
		Headers(headers...)
}

func printDiagnostics(w io.Writer, diags []discovery.Diagnostic) {
	for _, d := range diags {
		label := WarningStyle.Render("warning:")
		if d.Severity == discovery.SeverityError {
			label = ErrorStyle.Render("error:")
		}
		msg := d.Message
		if d.Path != "" {
			msg += " (" + d.Path + ")"
		}
		fmt.Fprintln(w, label, msg)
	}
}
