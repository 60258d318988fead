// SPDX-License-Identifier: MPL-2.0

package config

import "time"

type (
	// Config is the root configuration for mdxrun.
	Config struct {
		// InstallDir is the base directory that holds one install root per
		// managed runtime. Empty selects the platform data directory.
		InstallDir string `mapstructure:"install_dir" yaml:"install_dir"`

		UI     UIConfig     `mapstructure:"ui" yaml:"ui"`
		Exec   ExecConfig   `mapstructure:"exec" yaml:"exec"`
		Python PythonConfig `mapstructure:"python" yaml:"python"`
		Node   NodeConfig   `mapstructure:"node" yaml:"node"`
		FFmpeg FFmpegConfig `mapstructure:"ffmpeg" yaml:"ffmpeg"`
		Ollama OllamaConfig `mapstructure:"ollama" yaml:"ollama"`
	}

	// UIConfig controls CLI output.
	UIConfig struct {
		// Verbose enables debug logging and full error chains.
		Verbose bool `mapstructure:"verbose" yaml:"verbose"`
	}

	// ExecConfig holds defaults for the `mdxrun run` primitive.
	ExecConfig struct {
		// TimeoutSec is the default fixed timeout in seconds. Zero means
		// no timeout.
		TimeoutSec int `mapstructure:"timeout_sec" yaml:"timeout_sec"`

		// IdleTimeoutSec is the default idle timeout in seconds: the run is
		// killed when no output arrives for this long. Zero disables it.
		IdleTimeoutSec int `mapstructure:"idle_timeout_sec" yaml:"idle_timeout_sec"`
	}

	// PythonConfig configures the embedded Python runtime.
	PythonConfig struct {
		// Version pins a specific interpreter version. Empty resolves the
		// newest supported one.
		Version string `mapstructure:"version" yaml:"version"`

		// ByteCapMB caps the artifact download size in MiB.
		ByteCapMB int64 `mapstructure:"byte_cap_mb" yaml:"byte_cap_mb"`

		// PipTimeoutSec bounds each individual pip invocation.
		PipTimeoutSec int `mapstructure:"pip_timeout_sec" yaml:"pip_timeout_sec"`

		// Packages is the ordered list installed after pip bootstrap.
		// Install order matters: later entries may depend on earlier ones.
		Packages []string `mapstructure:"packages" yaml:"packages"`
	}

	// NodeConfig configures the Node.js runtime.
	NodeConfig struct {
		Version   string `mapstructure:"version" yaml:"version"`
		ByteCapMB int64  `mapstructure:"byte_cap_mb" yaml:"byte_cap_mb"`
	}

	// FFmpegConfig configures the ffmpeg runtime.
	FFmpegConfig struct {
		Version   string `mapstructure:"version" yaml:"version"`
		ByteCapMB int64  `mapstructure:"byte_cap_mb" yaml:"byte_cap_mb"`
	}

	// OllamaConfig configures the Ollama daemon runtime.
	OllamaConfig struct {
		Version   string `mapstructure:"version" yaml:"version"`
		ByteCapMB int64  `mapstructure:"byte_cap_mb" yaml:"byte_cap_mb"`

		// Host is the listen address handed to the daemon via OLLAMA_HOST
		// and polled for health.
		Host string `mapstructure:"host" yaml:"host"`

		// HealthBudgetSec caps how long daemon start waits for health.
		HealthBudgetSec int `mapstructure:"health_budget_sec" yaml:"health_budget_sec"`

		// HealthIntervalMS is the pause between health polls.
		HealthIntervalMS int `mapstructure:"health_interval_ms" yaml:"health_interval_ms"`

		// StopGraceSec is the graceful-stop window before a forced kill.
		StopGraceSec int `mapstructure:"stop_grace_sec" yaml:"stop_grace_sec"`
	}
)

// DefaultConfig returns the built-in defaults. The Python package list is
// the document-conversion set the converted runtimes exist to serve.
func DefaultConfig() *Config {
	return &Config{
		Exec: ExecConfig{
			TimeoutSec:     0,
			IdleTimeoutSec: 0,
		},
		Python: PythonConfig{
			ByteCapMB:     200,
			PipTimeoutSec: 600,
			Packages: []string{
				"markitdown",
				"openpyxl",
				"python-docx",
				"python-pptx",
				"Pillow",
				"pydub",
			},
		},
		Node: NodeConfig{
			ByteCapMB: 100,
		},
		FFmpeg: FFmpegConfig{
			ByteCapMB: 150,
		},
		Ollama: OllamaConfig{
			ByteCapMB:        2048,
			Host:             "127.0.0.1:11434",
			HealthBudgetSec:  30,
			HealthIntervalMS: 500,
			StopGraceSec:     5,
		},
	}
}

// MiB converts a mebibyte count to bytes.
func MiB(n int64) int64 { return n << 20 }

// HealthBudget returns the health poll budget as a duration.
func (c OllamaConfig) HealthBudget() time.Duration {
	return time.Duration(c.HealthBudgetSec) * time.Second
}

// HealthInterval returns the health poll interval as a duration.
func (c OllamaConfig) HealthInterval() time.Duration {
	return time.Duration(c.HealthIntervalMS) * time.Millisecond
}

// StopGrace returns the graceful-stop window as a duration.
func (c OllamaConfig) StopGrace() time.Duration {
	return time.Duration(c.StopGraceSec) * time.Second
}

// HealthURL returns the daemon health endpoint derived from Host.
func (c OllamaConfig) HealthURL() string {
	return "http://" + c.Host + "/"
}

// Validate checks range constraints the YAML schema cannot express.
func (c *Config) Validate() error {
	for _, check := range []struct {
		name  string
		bad   bool
		value int64
	}{
		{"exec.timeout_sec", c.Exec.TimeoutSec < 0, int64(c.Exec.TimeoutSec)},
		{"exec.idle_timeout_sec", c.Exec.IdleTimeoutSec < 0, int64(c.Exec.IdleTimeoutSec)},
		{"python.byte_cap_mb", c.Python.ByteCapMB < 0, c.Python.ByteCapMB},
		{"python.pip_timeout_sec", c.Python.PipTimeoutSec <= 0, int64(c.Python.PipTimeoutSec)},
		{"node.byte_cap_mb", c.Node.ByteCapMB < 0, c.Node.ByteCapMB},
		{"ffmpeg.byte_cap_mb", c.FFmpeg.ByteCapMB < 0, c.FFmpeg.ByteCapMB},
		{"ollama.byte_cap_mb", c.Ollama.ByteCapMB < 0, c.Ollama.ByteCapMB},
		{"ollama.health_budget_sec", c.Ollama.HealthBudgetSec <= 0, int64(c.Ollama.HealthBudgetSec)},
		{"ollama.health_interval_ms", c.Ollama.HealthIntervalMS <= 0, int64(c.Ollama.HealthIntervalMS)},
		{"ollama.stop_grace_sec", c.Ollama.StopGraceSec <= 0, int64(c.Ollama.StopGraceSec)},
	} {
		if check.bad {
			return &RangeError{Field: check.name, Value: check.value}
		}
	}
	if c.Ollama.Host == "" {
		return &RangeError{Field: "ollama.host", Value: 0}
	}
	return nil
}
