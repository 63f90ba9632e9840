// SPDX-License-Identifier: MPL-2.0

package config

import (
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"
)

const (
	defaultCacheTTL = 10 * time.Minute

	LogLevelDebug LogLevel = "debug"
	LogLevelInfo  LogLevel = "info"
	LogLevelWarn  LogLevel = "warn"
	LogLevelError LogLevel = "error"

	// ExporterStdout prints finished spans to standard output.
	ExporterStdout Exporter = "stdout"
	// ExporterNone records spans without exporting them.
	ExporterNone Exporter = "none"
)

var (
	// ErrInvalidLogLevel is returned for an unknown log level.
	ErrInvalidLogLevel = errors.New("invalid log level")
	// ErrInvalidExporter is returned for an unknown trace exporter.
	ErrInvalidExporter = errors.New("invalid trace exporter")
	// ErrInvalidConfig is wrapped by InvalidConfigError.
	ErrInvalidConfig = errors.New("invalid config")
)

type (
	// LogLevel is the minimum level of log output.
	LogLevel string

	// Exporter selects where trace spans go.
	Exporter string

	// InvalidValueError reports a field holding an unsupported value.
	InvalidValueError struct {
		Field string
		Value string
		Err   error
	}

	// InvalidConfigError collects every field error of a configuration.
	InvalidConfigError struct {
		FieldErrors []error
	}

	// Config is the application configuration.
	Config struct {
		StoreDir    string   `json:"store_dir" mapstructure:"store_dir"`
		RegistryDir string   `json:"registry_dir" mapstructure:"registry_dir"`
		LookupPaths []string `json:"lookup_paths" mapstructure:"lookup_paths"`
		// InstallCommand runs through the embedded shell with one
		// name@range argument per package.
		InstallCommand   string        `json:"install_command" mapstructure:"install_command"`
		RegistryCacheTTL time.Duration `json:"registry_cache_ttl" mapstructure:"registry_cache_ttl"`
		UI               UIConfig      `json:"ui" mapstructure:"ui"`
		Tracing          TracingConfig `json:"tracing" mapstructure:"tracing"`
	}

	// UIConfig controls terminal output.
	UIConfig struct {
		Verbose  bool     `json:"verbose" mapstructure:"verbose"`
		LogLevel LogLevel `json:"log_level" mapstructure:"log_level"`
	}

	// TracingConfig controls OpenTelemetry tracing.
	TracingConfig struct {
		Enabled  bool     `json:"enabled" mapstructure:"enabled"`
		Exporter Exporter `json:"exporter" mapstructure:"exporter"`
	}
)

func (e *InvalidValueError) Error() string {
	return fmt.Sprintf("%s: %v %q", e.Field, e.Err, e.Value)
}

func (e *InvalidValueError) Unwrap() error { return e.Err }

func (e *InvalidConfigError) Error() string {
	msgs := make([]string, len(e.FieldErrors))
	for i, err := range e.FieldErrors {
		msgs[i] = err.Error()
	}
	return "invalid config: " + strings.Join(msgs, "; ")
}

func (e *InvalidConfigError) Unwrap() []error {
	return append([]error{ErrInvalidConfig}, e.FieldErrors...)
}

// IsValid reports whether l is a known level. The empty level is valid and
// means info.
func (l LogLevel) IsValid() bool {
	switch l {
	case "", LogLevelDebug, LogLevelInfo, LogLevelWarn, LogLevelError:
		return true
	default:
		return false
	}
}

// Level converts l to a slog level.
func (l LogLevel) Level() slog.Level {
	switch l {
	case LogLevelDebug:
		return slog.LevelDebug
	case LogLevelWarn:
		return slog.LevelWarn
	case LogLevelError:
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}

// IsValid reports whether e is a known exporter. The empty exporter means stdout.
func (e Exporter) IsValid() bool {
	switch e {
	case "", ExporterStdout, ExporterNone:
		return true
	default:
		return false
	}
}

// Validate checks what the CUE schema cannot see once environment
// overrides are applied.
func (c *Config) Validate() error {
	var errs []error
	if strings.TrimSpace(c.StoreDir) == "" {
		errs = append(errs, &InvalidValueError{Field: "store_dir", Value: c.StoreDir, Err: ErrInvalidConfig})
	}
	if !c.UI.LogLevel.IsValid() {
		errs = append(errs, &InvalidValueError{Field: "ui.log_level", Value: string(c.UI.LogLevel), Err: ErrInvalidLogLevel})
	}
	if !c.Tracing.Exporter.IsValid() {
		errs = append(errs, &InvalidValueError{Field: "tracing.exporter", Value: string(c.Tracing.Exporter), Err: ErrInvalidExporter})
	}
	if c.RegistryCacheTTL < 0 {
		errs = append(errs, &InvalidValueError{Field: "registry_cache_ttl", Value: c.RegistryCacheTTL.String(), Err: ErrInvalidConfig})
	}
	if len(errs) > 0 {
		return &InvalidConfigError{FieldErrors: errs}
	}
	return nil
}

// EffectiveLogLevel is LogLevel, lowered to debug when Verbose is set.
func (c UIConfig) EffectiveLogLevel() slog.Level {
	if c.Verbose {
		return slog.LevelDebug
	}
	return c.LogLevel.Level()
}
