// SPDX-License-Identifier: MPL-2.0

package config

import (
	"context"
	_ "embed"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"runtime"
	"strconv"
	"strings"

	"github.com/spf13/afero"
	"github.com/spf13/viper"

	"github.com/yokehq/yoke/internal/cueutil"
	"github.com/yokehq/yoke/internal/issue"
)

const (
	// AppName is the application name.
	AppName = "yoke"
	// ConfigFileName is the name of the config file (without extension).
	ConfigFileName = "config"
	// ConfigFileExt is the config file extension.
	ConfigFileExt = "cue"
	// EnvPrefix prefixes environment overrides, e.g. YOKE_STORE_DIR.
	EnvPrefix = "YOKE"

	schemaPath = "#Config"
)

//go:embed config_schema.cue
var configSchema []byte

// ErrConfigNotFound is returned when an explicit config file does not exist.
var ErrConfigNotFound = errors.New("config file not found")

// ConfigDir returns the yoke configuration directory: %APPDATA% on Windows,
// ~/Library/Application Support on macOS and $XDG_CONFIG_HOME (defaulting
// to ~/.config) elsewhere.
//
//nolint:revive // ConfigDir reads better than Dir at call sites
func ConfigDir() (string, error) {
	if configDirOverride != "" {
		return configDirOverride, nil
	}

	var dir string
	switch runtime.GOOS {
	case "windows":
		dir = os.Getenv("APPDATA")
		if dir == "" {
			dir = filepath.Join(os.Getenv("USERPROFILE"), "AppData", "Roaming")
		}
	case "darwin":
		home, err := os.UserHomeDir()
		if err != nil {
			return "", fmt.Errorf("failed to get home directory: %w", err)
		}
		dir = filepath.Join(home, "Library", "Application Support")
	default:
		dir = os.Getenv("XDG_CONFIG_HOME")
		if dir == "" {
			home, err := os.UserHomeDir()
			if err != nil {
				return "", fmt.Errorf("failed to get home directory: %w", err)
			}
			dir = filepath.Join(home, ".config")
		}
	}
	return filepath.Join(dir, AppName), nil
}

// DataDir returns ~/.yoke, the parent of the default store and registry.
func DataDir() string {
	home, err := os.UserHomeDir()
	if err != nil || home == "" {
		return "." + AppName
	}
	return filepath.Join(home, "."+AppName)
}

// DefaultConfig returns the configuration used when no file sets a value.
func DefaultConfig() *Config {
	data := DataDir()
	return &Config{
		StoreDir:         filepath.Join(data, "store"),
		RegistryDir:      filepath.Join(data, "registry"),
		LookupPaths:      []string{},
		InstallCommand:   "",
		RegistryCacheTTL: defaultCacheTTL,
		UI: UIConfig{
			Verbose:  false,
			LogLevel: LogLevelInfo,
		},
		Tracing: TracingConfig{
			Enabled:  false,
			Exporter: ExporterStdout,
		},
	}
}

// loadWithOptions resolves, parses and validates the configuration. It
// returns the path of the file it read, or "" when only defaults applied.
func loadWithOptions(ctx context.Context, fs afero.Fs, opts LoadOptions) (*Config, string, error) {
	if err := ctx.Err(); err != nil {
		return nil, "", fmt.Errorf("load config canceled: %w", err)
	}

	v := viper.New()
	setDefaults(v, DefaultConfig())
	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	path, err := resolvePath(fs, opts)
	if err != nil {
		return nil, "", err
	}
	if path != "" {
		if err := loadCUEIntoViper(v, fs, path); err != nil {
			return nil, "", issue.NewErrorContext().
				WithOperation("load configuration").
				WithResource(path).
				WithSuggestion("Check that the file contains valid CUE syntax").
				WithSuggestion("Verify the values match the #Config schema").
				WithSuggestion("Run 'yoke config show' to see the effective configuration").
				WithIssue(issue.ConfigLoadFailedId).
				Wrap(err).
				BuildError()
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, "", fmt.Errorf("failed to parse config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, "", issue.NewErrorContext().
			WithOperation("validate configuration").
			WithResource(path).
			WithSuggestion("Check YOKE_* environment variables for typos").
			WithIssue(issue.ConfigLoadFailedId).
			Wrap(err).
			BuildError()
	}
	return &cfg, path, nil
}

func setDefaults(v *viper.Viper, d *Config) {
	v.SetDefault("store_dir", d.StoreDir)
	v.SetDefault("registry_dir", d.RegistryDir)
	v.SetDefault("lookup_paths", d.LookupPaths)
	v.SetDefault("install_command", d.InstallCommand)
	v.SetDefault("registry_cache_ttl", d.RegistryCacheTTL)
	v.SetDefault("ui.verbose", d.UI.Verbose)
	v.SetDefault("ui.log_level", string(d.UI.LogLevel))
	v.SetDefault("tracing.enabled", d.Tracing.Enabled)
	v.SetDefault("tracing.exporter", string(d.Tracing.Exporter))
}

// resolvePath picks the file to load: the explicit path, then config.cue in
// the config directory, then config.cue in the working directory. An
// explicit path must exist; the others are optional.
func resolvePath(fs afero.Fs, opts LoadOptions) (string, error) {
	if opts.ConfigFilePath != "" {
		if !fileExists(fs, opts.ConfigFilePath) {
			return "", issue.NewErrorContext().
				WithOperation("load configuration").
				WithResource(opts.ConfigFilePath).
				WithSuggestion("Verify the file path is correct").
				WithSuggestion("Run 'yoke config init' to create a default configuration").
				WithIssue(issue.ConfigLoadFailedId).
				Wrap(fmt.Errorf("%w: %s", ErrConfigNotFound, opts.ConfigFilePath)).
				BuildError()
		}
		return opts.ConfigFilePath, nil
	}

	dir, err := configDirWithOverride(opts.ConfigDirPath)
	if err != nil {
		return "", err
	}
	name := ConfigFileName + "." + ConfigFileExt
	for _, candidate := range []string{filepath.Join(dir, name), name} {
		if fileExists(fs, candidate) {
			return candidate, nil
		}
	}
	return "", nil
}

func configDirWithOverride(dir string) (string, error) {
	if dir != "" {
		return dir, nil
	}
	return ConfigDir()
}

// loadCUEIntoViper validates the file against #Config and merges it over
// the defaults. Fields stay optional, so the document decodes into a map.
func loadCUEIntoViper(v *viper.Viper, fs afero.Fs, path string) error {
	res, err := cueutil.ParseFile[map[string]any](fs, path, configSchema, schemaPath, cueutil.WithConcrete(false))
	if err != nil {
		return err
	}
	if err := v.MergeConfigMap(*res.Value); err != nil {
		return fmt.Errorf("failed to merge config: %w", err)
	}
	return nil
}

func fileExists(fs afero.Fs, path string) bool {
	info, err := fs.Stat(path)
	return err == nil && !info.IsDir()
}

// GenerateCUE renders cfg as a CUE document accepted by #Config.
func GenerateCUE(cfg *Config) string {
	var sb strings.Builder
	sb.WriteString("// yoke configuration\n")
	sb.WriteString("// See 'yoke config --help' for the available fields.\n\n")

	fmt.Fprintf(&sb, "store_dir: %s\n", strconv.Quote(cfg.StoreDir))
	fmt.Fprintf(&sb, "registry_dir: %s\n", strconv.Quote(cfg.RegistryDir))
	sb.WriteString("lookup_paths: [")
	for i, p := range cfg.LookupPaths {
		if i > 0 {
			sb.WriteString(", ")
		}
		sb.WriteString(strconv.Quote(p))
	}
	sb.WriteString("]\n")
	if cfg.InstallCommand != "" {
		fmt.Fprintf(&sb, "install_command: %s\n", strconv.Quote(cfg.InstallCommand))
	}
	fmt.Fprintf(&sb, "registry_cache_ttl: %s\n", strconv.Quote(cfg.RegistryCacheTTL.String()))

	sb.WriteString("\nui: {\n")
	fmt.Fprintf(&sb, "\tverbose:   %t\n", cfg.UI.Verbose)
	fmt.Fprintf(&sb, "\tlog_level: %s\n", strconv.Quote(string(orDefault(cfg.UI.LogLevel, LogLevelInfo))))
	sb.WriteString("}\n")

	sb.WriteString("\ntracing: {\n")
	fmt.Fprintf(&sb, "\tenabled:  %t\n", cfg.Tracing.Enabled)
	fmt.Fprintf(&sb, "\texporter: %s\n", strconv.Quote(string(orDefault(cfg.Tracing.Exporter, ExporterStdout))))
	sb.WriteString("}\n")
	return sb.String()
}

func orDefault[T ~string](v, def T) T {
	if v == "" {
		return def
	}
	return v
}

// CreateDefaultConfig writes the default configuration into dir (the
// platform config directory when empty) unless a config file already
// exists there. It returns the file path.
func CreateDefaultConfig(fs afero.Fs, dir string) (string, error) {
	dir, err := configDirWithOverride(dir)
	if err != nil {
		return "", err
	}
	path := filepath.Join(dir, ConfigFileName+"."+ConfigFileExt)
	if fileExists(fs, path) {
		return path, nil
	}
	if err := fs.MkdirAll(dir, 0o755); err != nil {
		return "", fmt.Errorf("failed to create config directory: %w", err)
	}
	if err := afero.WriteFile(fs, path, []byte(GenerateCUE(DefaultConfig())), 0o644); err != nil {
		return "", fmt.Errorf("failed to write config file: %w", err)
	}
	return path, nil
}
