// SPDX-License-Identifier: MPL-2.0

package config

import "context"

type (
	// LoadOptions selects where configuration is read from.
	LoadOptions struct {
		// ConfigFilePath forces one specific config file. The file must
		// exist; defaults-only operation requires leaving this empty.
		ConfigFilePath string
		// ConfigDirPath overrides the platform config directory lookup.
		ConfigDirPath string
	}

	// Loaded is a successfully loaded configuration plus its provenance,
	// so the CLI can tell the user which file (if any) produced it.
	Loaded struct {
		Config *Config
		// Source is the config file merged over the defaults. Empty means
		// the defaults plus environment overrides only.
		Source string
	}

	// Provider loads configuration from explicit options.
	Provider interface {
		Load(ctx context.Context, opts LoadOptions) (*Loaded, error)
	}

	fileProvider struct{}
)

// NewProvider creates the file-backed configuration provider.
func NewProvider() Provider {
	return &fileProvider{}
}

func (p *fileProvider) Load(ctx context.Context, opts LoadOptions) (*Loaded, error) {
	cfg, source, err := loadWithOptions(ctx, opts)
	if err != nil {
		return nil, err
	}
	return &Loaded{Config: cfg, Source: source}, nil
}
