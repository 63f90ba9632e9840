// SPDX-License-Identifier: MPL-2.0

package cmd

import (
	"encoding/json"
	"fmt"
	"io"
	"strings"

	"github.com/spf13/cobra"

	"github.com/yokehq/yoke/pkg/namespace"
)

// namespaceView is the printed form of a parsed namespace.
type namespaceView struct {
	Raw             string   `json:"raw"`
	ID              string   `json:"id"`
	Complete        string   `json:"complete"`
	Scope           string   `json:"scope,omitempty"`
	PackageName     string   `json:"packageName"`
	GeneratorPath   string   `json:"generatorPath,omitempty"`
	UnitKey         string   `json:"unitKey"`
	RegistrationKey string   `json:"registrationKey"`
	Instance        string   `json:"instance,omitempty"`
	Methods         []string `json:"methods,omitempty"`
	VersionRange    string   `json:"versionRange,omitempty"`
}

func newNamespaceCommand(app *App) *cobra.Command {
	var asJSON bool
	cmd := &cobra.Command{
		Use:     "namespace <namespace>...",
		Aliases: []string{"ns"},
		Short:   "Parse namespaces and print their parts",
		Args:    cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			views := make([]namespaceView, 0, len(args))
			for _, raw := range args {
				ns, err := namespace.Parse(raw)
				if err != nil {
					return app.fail(cmd, err, "parse namespace")
				}
				views = append(views, viewOf(raw, ns))
			}
			if asJSON {
				enc := json.NewEncoder(app.stdout)
				enc.SetIndent("", "  ")
				return enc.Encode(views)
			}
			for i, v := range views {
				if i > 0 {
					fmt.Fprintln(app.stdout)
				}
				printNamespace(app.stdout, v)
			}
			return nil
		},
	}
	cmd.Flags().BoolVar(&asJSON, "json", false, "print JSON")
	return cmd
}

func viewOf(raw string, ns namespace.Namespace) namespaceView {
	return namespaceView{
		Raw:             raw,
		ID:              ns.ID(),
		Complete:        ns.Complete(),
		Scope:           ns.Scope(),
		PackageName:     ns.PackageName(),
		GeneratorPath:   ns.GeneratorPath(),
		UnitKey:         ns.UnitKey(),
		RegistrationKey: ns.RegistrationKey(),
		Instance:        ns.InstanceID(),
		Methods:         ns.Methods(),
		VersionRange:    ns.VersionRange(),
	}
}

func printNamespace(w io.Writer, v namespaceView) {
	fmt.Fprintln(w, nsStyle.Render(v.Raw))
	field := func(name, value string) {
		if value == "" {
			value = SubtitleStyle.Render("-")
		}
		fmt.Fprintf(w, "  %s %s\n", KeyStyle.Render(fmt.Sprintf("%-16s", name)), value)
	}
	field("id", v.ID)
	field("complete", v.Complete)
	field("scope", v.Scope)
	field("package", v.PackageName)
	field("generator", v.GeneratorPath)
	field("unit key", v.UnitKey)
	field("registration", v.RegistrationKey)
	field("instance", v.Instance)
	field("methods", strings.Join(v.Methods, ", "))
	field("version range", v.VersionRange)
}
