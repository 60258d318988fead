// SPDX-License-Identifier: MPL-2.0

package config

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"runtime"
	"strings"

	"github.com/spf13/viper"

	"github.com/markitdownx/mdxrun/internal/issue"
	"github.com/markitdownx/mdxrun/pkg/platform"
)

const (
	// AppName is the application name.
	AppName = "mdxrun"
	// ConfigFileName is the name of the config file (without extension).
	ConfigFileName = "config"
	// ConfigFileExt is the config file extension.
	ConfigFileExt = "yaml"
	// EnvPrefix is the prefix for environment variable overrides
	// (MDXRUN_PYTHON_BYTE_CAP_MB, ...).
	EnvPrefix = "MDXRUN"
)

// RangeError reports a configuration value outside its valid range.
type RangeError struct {
	Field string
	Value int64
}

// Error implements the error interface.
func (e *RangeError) Error() string {
	return fmt.Sprintf("config: %s has invalid value %d", e.Field, e.Value)
}

// ConfigDir returns the mdxrun configuration directory using platform-specific
// conventions: Windows uses %APPDATA%, macOS uses ~/Library/Application Support,
// and Linux/others use $XDG_CONFIG_HOME (defaulting to ~/.config).
//
//nolint:revive // ConfigDir is more descriptive than Dir for external callers
func ConfigDir() (string, error) {
	// Allow tests to override the config directory
	if configDirOverride != "" {
		return configDirOverride, nil
	}

	var configDir string

	switch runtime.GOOS {
	case platform.Windows:
		configDir = os.Getenv("APPDATA")
		if configDir == "" {
			configDir = filepath.Join(os.Getenv("USERPROFILE"), "AppData", "Roaming")
		}
	case platform.Darwin:
		home, err := os.UserHomeDir()
		if err != nil {
			return "", fmt.Errorf("failed to get home directory: %w", err)
		}
		configDir = filepath.Join(home, "Library", "Application Support")
	default: // Linux and others
		configDir = os.Getenv("XDG_CONFIG_HOME")
		if configDir == "" {
			home, err := os.UserHomeDir()
			if err != nil {
				return "", fmt.Errorf("failed to get home directory: %w", err)
			}
			configDir = filepath.Join(home, ".config")
		}
	}

	return filepath.Join(configDir, AppName), nil
}

// DataDir returns the default base directory for runtime installs: Windows
// uses %LOCALAPPDATA%, macOS ~/Library/Application Support, Linux/others
// $XDG_DATA_HOME (defaulting to ~/.local/share).
func DataDir() (string, error) {
	if dataDirOverride != "" {
		return dataDirOverride, nil
	}

	var dataDir string

	switch runtime.GOOS {
	case platform.Windows:
		dataDir = os.Getenv("LOCALAPPDATA")
		if dataDir == "" {
			dataDir = filepath.Join(os.Getenv("USERPROFILE"), "AppData", "Local")
		}
	case platform.Darwin:
		home, err := os.UserHomeDir()
		if err != nil {
			return "", fmt.Errorf("failed to get home directory: %w", err)
		}
		dataDir = filepath.Join(home, "Library", "Application Support")
	default:
		dataDir = os.Getenv("XDG_DATA_HOME")
		if dataDir == "" {
			home, err := os.UserHomeDir()
			if err != nil {
				return "", fmt.Errorf("failed to get home directory: %w", err)
			}
			dataDir = filepath.Join(home, ".local", "share")
		}
	}

	return filepath.Join(dataDir, AppName), nil
}

// loadWithOptions performs option-driven config loading without mutating
// package-level cache state. Callers that want caching can wrap this function.
func loadWithOptions(ctx context.Context, opts LoadOptions) (*Config, string, error) {
	select {
	case <-ctx.Done():
		return nil, "", fmt.Errorf("load config canceled: %w", ctx.Err())
	default:
	}

	v := viper.New()
	setDefaults(v)

	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	resolvedPath := ""

	// If a custom config file path is set via flag, use it exclusively.
	if opts.ConfigFilePath != "" {
		if !fileExists(opts.ConfigFilePath) {
			return nil, "", issue.NewErrorContext().
				WithOperation("load configuration").
				WithResource(opts.ConfigFilePath).
				WithSuggestion("Verify the file path is correct").
				WithSuggestion("Check that the file exists and is readable").
				WithSuggestion("Use 'mdxrun config show' to see default configuration").
				Wrap(fmt.Errorf("config file not found: %s", opts.ConfigFilePath)).
				BuildError()
		}
		if err := readFileInto(v, opts.ConfigFilePath); err != nil {
			return nil, "", err
		}
		resolvedPath = opts.ConfigFilePath
	} else {
		cfgDir, err := configDirWithOverride(opts.ConfigDirPath)
		if err != nil {
			return nil, "", err
		}

		yamlPath := filepath.Join(cfgDir, ConfigFileName+"."+ConfigFileExt)
		if fileExists(yamlPath) {
			if err := readFileInto(v, yamlPath); err != nil {
				return nil, "", err
			}
			resolvedPath = yamlPath
		}
		// If no config file found, use defaults (no error)
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, "", fmt.Errorf("failed to parse config: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, "", issue.NewErrorContext().
			WithOperation("validate configuration").
			WithResource(resolvedPath).
			WithSuggestion("Byte caps and timeouts must be positive").
			WithSuggestion("See 'mdxrun config show' for the effective values").
			Wrap(err).
			BuildError()
	}

	return &cfg, resolvedPath, nil
}

// setDefaults registers every knob so env overrides work even without a
// config file on disk.
func setDefaults(v *viper.Viper) {
	defaults := DefaultConfig()
	v.SetDefault("install_dir", defaults.InstallDir)
	v.SetDefault("ui.verbose", defaults.UI.Verbose)
	v.SetDefault("exec.timeout_sec", defaults.Exec.TimeoutSec)
	v.SetDefault("exec.idle_timeout_sec", defaults.Exec.IdleTimeoutSec)
	v.SetDefault("python.version", defaults.Python.Version)
	v.SetDefault("python.byte_cap_mb", defaults.Python.ByteCapMB)
	v.SetDefault("python.pip_timeout_sec", defaults.Python.PipTimeoutSec)
	v.SetDefault("python.packages", defaults.Python.Packages)
	v.SetDefault("node.version", defaults.Node.Version)
	v.SetDefault("node.byte_cap_mb", defaults.Node.ByteCapMB)
	v.SetDefault("ffmpeg.version", defaults.FFmpeg.Version)
	v.SetDefault("ffmpeg.byte_cap_mb", defaults.FFmpeg.ByteCapMB)
	v.SetDefault("ollama.version", defaults.Ollama.Version)
	v.SetDefault("ollama.byte_cap_mb", defaults.Ollama.ByteCapMB)
	v.SetDefault("ollama.host", defaults.Ollama.Host)
	v.SetDefault("ollama.health_budget_sec", defaults.Ollama.HealthBudgetSec)
	v.SetDefault("ollama.health_interval_ms", defaults.Ollama.HealthIntervalMS)
	v.SetDefault("ollama.stop_grace_sec", defaults.Ollama.StopGraceSec)
}

// readFileInto merges one YAML file into Viper, preserving defaults and env
// overrides.
func readFileInto(v *viper.Viper, path string) error {
	f, err := os.Open(path)
	if err != nil {
		return issue.NewErrorContext().
			WithOperation("load configuration").
			WithResource(path).
			WithSuggestion("Check that the file exists and is readable").
			Wrap(err).
			BuildError()
	}
	defer func() { _ = f.Close() }()

	v.SetConfigType(ConfigFileExt)
	if err := v.MergeConfig(f); err != nil {
		return issue.NewErrorContext().
			WithOperation("load configuration").
			WithResource(path).
			WithSuggestion("Check that the file contains valid YAML syntax").
			WithSuggestion("See 'mdxrun config show' for the expected keys").
			Wrap(err).
			BuildError()
	}
	return nil
}

// configDirWithOverride resolves the configuration directory, honoring
// explicit provider options before platform defaults.
func configDirWithOverride(configDirPath string) (string, error) {
	if configDirPath != "" {
		return configDirPath, nil
	}

	return ConfigDir()
}

// ResolveInstallDir returns the effective base directory for runtime
// installs: the configured one, or the platform data directory.
func (c *Config) ResolveInstallDir() (string, error) {
	if c.InstallDir != "" {
		return c.InstallDir, nil
	}
	base, err := DataDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(base, "runtimes"), nil
}

func fileExists(path string) bool {
	info, err := os.Stat(path)
	return err == nil && !info.IsDir()
}
