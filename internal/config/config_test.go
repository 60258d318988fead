// SPDX-License-Identifier: MPL-2.0

package config

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/markitdownx/mdxrun/internal/issue"
)

func writeConfigFile(t *testing.T, dir, content string) string {
	t.Helper()
	path := filepath.Join(dir, ConfigFileName+"."+ConfigFileExt)
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatalf("writing config file: %v", err)
	}
	return path
}

func TestLoadDefaultsWithoutFile(t *testing.T) {
	loaded, err := NewProvider().Load(context.Background(), LoadOptions{ConfigDirPath: t.TempDir()})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if loaded.Source != "" {
		t.Errorf("defaults-only load reported a source file: %q", loaded.Source)
	}
	cfg := loaded.Config

	defaults := DefaultConfig()
	if cfg.Ollama.Host != defaults.Ollama.Host {
		t.Errorf("ollama host: got %q, want %q", cfg.Ollama.Host, defaults.Ollama.Host)
	}
	if cfg.Python.ByteCapMB != defaults.Python.ByteCapMB {
		t.Errorf("python byte cap: got %d, want %d", cfg.Python.ByteCapMB, defaults.Python.ByteCapMB)
	}
	if len(cfg.Python.Packages) == 0 || cfg.Python.Packages[0] != "markitdown" {
		t.Errorf("python packages default: got %v", cfg.Python.Packages)
	}
}

func TestLoadMergesFileOverDefaults(t *testing.T) {
	dir := t.TempDir()
	writeConfigFile(t, dir, `
python:
  byte_cap_mb: 64
  packages:
    - markitdown
ollama:
  host: "127.0.0.1:21434"
`)

	loaded, err := NewProvider().Load(context.Background(), LoadOptions{ConfigDirPath: dir})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	cfg := loaded.Config
	if cfg.Python.ByteCapMB != 64 {
		t.Errorf("python byte cap: got %d, want 64", cfg.Python.ByteCapMB)
	}
	if len(cfg.Python.Packages) != 1 {
		t.Errorf("packages override ignored: %v", cfg.Python.Packages)
	}
	if cfg.Ollama.Host != "127.0.0.1:21434" {
		t.Errorf("ollama host: got %q", cfg.Ollama.Host)
	}
	// Untouched keys keep defaults.
	if cfg.Ollama.HealthBudgetSec != DefaultConfig().Ollama.HealthBudgetSec {
		t.Errorf("health budget lost its default: %d", cfg.Ollama.HealthBudgetSec)
	}
}

func TestLoadExplicitFilePath(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "custom.yaml")
	if err := os.WriteFile(path, []byte("ffmpeg:\n  byte_cap_mb: 7\n"), 0o644); err != nil {
		t.Fatalf("writing config file: %v", err)
	}

	loaded, err := NewProvider().Load(context.Background(), LoadOptions{ConfigFilePath: path})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if loaded.Config.FFmpeg.ByteCapMB != 7 {
		t.Errorf("ffmpeg byte cap: got %d, want 7", loaded.Config.FFmpeg.ByteCapMB)
	}
	if loaded.Source != path {
		t.Errorf("source: got %q, want %q", loaded.Source, path)
	}
}

func TestLoadMissingExplicitFileFails(t *testing.T) {
	_, err := NewProvider().Load(context.Background(), LoadOptions{
		ConfigFilePath: filepath.Join(t.TempDir(), "nope.yaml"),
	})
	var ae *issue.ActionableError
	if !errors.As(err, &ae) {
		t.Fatalf("expected *issue.ActionableError, got: %v", err)
	}
	if !ae.HasSuggestions() {
		t.Error("error carries no suggestions")
	}
}

func TestLoadInvalidYAMLFails(t *testing.T) {
	dir := t.TempDir()
	writeConfigFile(t, dir, "python: [not: a: mapping\n")

	_, err := NewProvider().Load(context.Background(), LoadOptions{ConfigDirPath: dir})
	if err == nil {
		t.Fatal("invalid YAML accepted")
	}
	var ae *issue.ActionableError
	if !errors.As(err, &ae) {
		t.Fatalf("expected *issue.ActionableError, got: %v", err)
	}
}

func TestLoadRejectsOutOfRangeValues(t *testing.T) {
	dir := t.TempDir()
	writeConfigFile(t, dir, "ollama:\n  health_budget_sec: 0\n")

	_, err := NewProvider().Load(context.Background(), LoadOptions{ConfigDirPath: dir})
	var re *RangeError
	if !errors.As(err, &re) {
		t.Fatalf("expected *RangeError, got: %v", err)
	}
	if re.Field != "ollama.health_budget_sec" {
		t.Errorf("field: got %q", re.Field)
	}
}

func TestEnvOverride(t *testing.T) {
	t.Setenv("MDXRUN_NODE_BYTE_CAP_MB", "33")

	loaded, err := NewProvider().Load(context.Background(), LoadOptions{ConfigDirPath: t.TempDir()})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if loaded.Config.Node.ByteCapMB != 33 {
		t.Errorf("env override ignored: got %d, want 33", loaded.Config.Node.ByteCapMB)
	}
}

func TestLoadCancelledContext(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	if _, err := NewProvider().Load(ctx, LoadOptions{ConfigDirPath: t.TempDir()}); err == nil {
		t.Fatal("cancelled context accepted")
	}
}

func TestValidateRanges(t *testing.T) {
	t.Parallel()

	cfg := DefaultConfig()
	if err := cfg.Validate(); err != nil {
		t.Fatalf("defaults invalid: %v", err)
	}

	cfg.Python.ByteCapMB = -1
	if err := cfg.Validate(); err == nil {
		t.Error("negative byte cap accepted")
	}

	cfg = DefaultConfig()
	cfg.Ollama.Host = ""
	if err := cfg.Validate(); err == nil {
		t.Error("empty ollama host accepted")
	}
}

func TestResolveInstallDir(t *testing.T) {
	cfg := &Config{InstallDir: "/explicit/runtimes"}
	got, err := cfg.ResolveInstallDir()
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if got != "/explicit/runtimes" {
		t.Errorf("explicit install dir ignored: %q", got)
	}

	SetDataDirOverride("/data/mdxrun")
	t.Cleanup(Reset)
	got, err = (&Config{}).ResolveInstallDir()
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if got != filepath.Join("/data/mdxrun", "runtimes") {
		t.Errorf("default install dir: got %q", got)
	}
}

func TestOllamaDerivedValues(t *testing.T) {
	t.Parallel()

	c := DefaultConfig().Ollama
	if !strings.HasPrefix(c.HealthURL(), "http://127.0.0.1:11434") {
		t.Errorf("health URL: got %q", c.HealthURL())
	}
	if c.HealthBudget().Seconds() != float64(c.HealthBudgetSec) {
		t.Errorf("health budget conversion off: %v", c.HealthBudget())
	}
}

func TestMiB(t *testing.T) {
	t.Parallel()

	if got := MiB(3); got != 3*1024*1024 {
		t.Errorf("MiB(3): got %d", got)
	}
}

func TestConfigDirOverride(t *testing.T) {
	SetConfigDirOverride("/dir/override")
	t.Cleanup(Reset)

	dir, err := ConfigDir()
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if dir != "/dir/override" {
		t.Errorf("override ignored: %q", dir)
	}

	Reset()
	if configDirOverride != "" {
		t.Error("configDirOverride should be empty after Reset")
	}
}
