// SPDX-License-Identifier: MPL-2.0

package config

import (
	"context"

	"github.com/spf13/afero"
)

type (
	// LoadOptions defines explicit configuration loading inputs.
	LoadOptions struct {
		// ConfigFilePath forces loading from a specific config file when set.
		ConfigFilePath string
		// ConfigDirPath overrides the config directory lookup when set.
		ConfigDirPath string
	}

	// Provider loads configuration from explicit options.
	Provider interface {
		Load(ctx context.Context, opts LoadOptions) (*Config, error)
		// Path returns the file Load would read, or "" when none exists.
		Path(opts LoadOptions) (string, error)
	}

	// ProviderOption configures a file provider.
	ProviderOption func(*fileProvider)

	fileProvider struct {
		fs afero.Fs
	}
)

// WithFs reads configuration through fs instead of the OS filesystem.
func WithFs(fs afero.Fs) ProviderOption {
	return func(p *fileProvider) { p.fs = fs }
}

// NewProvider creates a configuration provider.
func NewProvider(opts ...ProviderOption) Provider {
	p := &fileProvider{fs: afero.NewOsFs()}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

// Load reads configuration from the requested source.
func (p *fileProvider) Load(ctx context.Context, opts LoadOptions) (*Config, error) {
	cfg, _, err := loadWithOptions(ctx, p.fs, opts)
	if err != nil {
		return nil, err
	}
	return cfg, nil
}

func (p *fileProvider) Path(opts LoadOptions) (string, error) {
	return resolvePath(p.fs, opts)
}
