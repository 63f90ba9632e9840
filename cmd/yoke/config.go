// SPDX-License-Identifier: MPL-2.0

package cmd

import (
	"fmt"
	"path/filepath"
	"strings"

	"github.com/spf13/cobra"

	"github.com/yokehq/yoke/internal/config"
	"github.com/yokehq/yoke/internal/issue"
)

// newConfigCommand creates the `yoke config` command tree.
func newConfigCommand(app *App) *cobra.Command {
	cfgCmd := &cobra.Command{
		Use:   "config",
		Short: "Manage yoke configuration",
		Long: `Manage yoke configuration.

Configuration is stored in:
  - Linux: ~/.config/yoke/config.cue
  - macOS: ~/Library/Application Support/yoke/config.cue
  - Windows: %APPDATA%\yoke\config.cue

Every field can be overridden with a YOKE_ environment variable, for
example YOKE_STORE_DIR or YOKE_UI_LOG_LEVEL.`,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return cmd.Help()
		},
	}

	var asCUE bool
	show := &cobra.Command{
		Use:   "show",
		Short: "Show the effective configuration",
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := app.loadConfig(cmd.Context())
			if err != nil {
				if rendered, rerr := issue.Get(issue.ConfigLoadFailedId).Render("dark"); rerr == nil {
					fmt.Fprint(app.stderr, rendered)
				}
				return app.fail(cmd, err, "load configuration")
			}
			if asCUE {
				fmt.Fprint(app.stdout, config.GenerateCUE(cfg))
				return nil
			}
			path, _ := app.Config.Path(app.loadOptions())
			showConfig(app, cfg, path)
			return nil
		},
	}
	show.Flags().BoolVar(&asCUE, "cue", false, "print the configuration as CUE")

	var initDir string
	initCmd := &cobra.Command{
		Use:   "init",
		Short: "Create the default configuration file",
		Long: `Create the default configuration file.

An existing file is left untouched.`,
		RunE: func(cmd *cobra.Command, _ []string) error {
			path, err := config.CreateDefaultConfig(app.fs, initDir)
			if err != nil {
				return app.fail(cmd, err, "create configuration")
			}
			fmt.Fprintf(app.stdout, "%s %s\n", SuccessStyle.Render("Configuration:"), path)
			return nil
		},
	}

	initCmd.Flags().StringVar(&initDir, "dir", "", "directory to create config.cue in (default is the platform config directory)")

	path := &cobra.Command{
		Use:   "path",
		Short: "Show the configuration file path",
		RunE: func(cmd *cobra.Command, _ []string) error {
			p, err := app.Config.Path(app.loadOptions())
			if err != nil {
				return app.fail(cmd, err, "locate configuration")
			}
			if p == "" {
				dir, err := config.ConfigDir()
				if err != nil {
					return app.fail(cmd, err, "locate configuration")
				}
				p = filepath.Join(dir, config.ConfigFileName+"."+config.ConfigFileExt)
			}
			fmt.Fprintln(app.stdout, p)
			return nil
		},
	}

	cfgCmd.AddCommand(show, initCmd, path)
	return cfgCmd
}

func showConfig(app *App, cfg *config.Config, path string) {
	w := app.stdout
	kv := func(indent, key string, value any) {
		fmt.Fprintf(w, "%s%s: %s\n", indent, KeyStyle.Render(key), SuccessStyle.Render(fmt.Sprint(value)))
	}

	fmt.Fprintln(w, TitleStyle.Render("Current Configuration"))
	fmt.Fprintln(w)
	if path == "" {
		fmt.Fprintf(w, "%s: %s\n", KeyStyle.Render("Config file"), SubtitleStyle.Render("(using defaults)"))
	} else {
		fmt.Fprintf(w, "%s: %s\n", KeyStyle.Render("Config file"), path)
	}
	fmt.Fprintln(w)

	kv("", "store_dir", cfg.StoreDir)
	kv("", "registry_dir", cfg.RegistryDir)
	if len(cfg.LookupPaths) == 0 {
		fmt.Fprintf(w, "%s: %s\n", KeyStyle.Render("lookup_paths"), SubtitleStyle.Render("(none configured)"))
	} else {
		kv("", "lookup_paths", strings.Join(cfg.LookupPaths, ", "))
	}
	command := cfg.InstallCommand
	if command == "" {
		command = "(default)"
	}
	kv("", "install_command", command)
	kv("", "registry_cache_ttl", cfg.RegistryCacheTTL)

	fmt.Fprintf(w, "\n%s:\n", KeyStyle.Render("ui"))
	kv("  ", "verbose", cfg.UI.Verbose)
	kv("  ", "log_level", cfg.UI.LogLevel)

	fmt.Fprintf(w, "\n%s:\n", KeyStyle.Render("tracing"))
	kv("  ", "enabled", cfg.Tracing.Enabled)
	kv("  ", "exporter", cfg.Tracing.Exporter)
}
