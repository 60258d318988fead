// SPDX-License-Identifier: MPL-2.0

package cmd

import (
	"errors"
	"strings"
	"testing"

	"github.com/markitdownx/mdxrun/internal/buildinfo"
	"github.com/markitdownx/mdxrun/internal/issue"
)

func TestGetVersionString(t *testing.T) {
	// Not parallel: subtests mutate package-level buildinfo vars.

	t.Run("ldflags version takes priority", func(t *testing.T) {
		origVersion, origCommit, origBuildTime := buildinfo.Version, buildinfo.Commit, buildinfo.BuildTime
		t.Cleanup(func() {
			buildinfo.Version, buildinfo.Commit, buildinfo.BuildTime = origVersion, origCommit, origBuildTime
		})

		buildinfo.Version = "v1.2.3"
		buildinfo.Commit = "abc1234"
		buildinfo.BuildTime = "2026-06-15T10:00:00Z"

		got := getVersionString()
		want := "v1.2.3 (commit: abc1234, built: 2026-06-15T10:00:00Z)"
		if got != want {
			t.Errorf("getVersionString() = %q, want %q", got, want)
		}
	})

	t.Run("fallback to dev when no build info", func(t *testing.T) {
		origVersion, origCommit, origBuildTime := buildinfo.Version, buildinfo.Commit, buildinfo.BuildTime
		t.Cleanup(func() {
			buildinfo.Version, buildinfo.Commit, buildinfo.BuildTime = origVersion, origCommit, origBuildTime
		})

		buildinfo.Version = "dev"

		got := getVersionString()
		want := "dev (built from source)"
		if got != want {
			t.Errorf("getVersionString() = %q, want %q", got, want)
		}
	})
}

func TestFormatErrorForDisplay(t *testing.T) {
	t.Parallel()

	t.Run("plain error uses Error()", func(t *testing.T) {
		t.Parallel()

		err := errors.New("boom")
		if got := formatErrorForDisplay(err, false); got != "boom" {
			t.Errorf("formatErrorForDisplay() = %q, want %q", got, "boom")
		}
	})

	t.Run("actionable error includes suggestions", func(t *testing.T) {
		t.Parallel()

		err := issue.NewErrorContext().
			WithOperation("provision runtime").
			WithSuggestion("Check network connectivity").
			Wrap(errors.New("connection refused")).
			BuildError()

		got := formatErrorForDisplay(err, false)
		if !strings.Contains(got, "provision runtime") {
			t.Errorf("formatErrorForDisplay() = %q, missing operation", got)
		}
		if !strings.Contains(got, "Check network connectivity") {
			t.Errorf("formatErrorForDisplay() = %q, missing suggestion", got)
		}
	})
}

func TestExitError(t *testing.T) {
	t.Parallel()

	cause := errors.New("command failed")
	err := &ExitError{Code: 3, Err: cause}

	if !errors.Is(err, cause) {
		t.Error("errors.Is(err, cause) = false, want true")
	}
	if got := err.Error(); !strings.Contains(got, "command failed") {
		t.Errorf("Error() = %q, missing cause", got)
	}

	var exitErr *ExitError
	if !errors.As(error(err), &exitErr) {
		t.Fatal("errors.As failed for *ExitError")
	}
	if exitErr.Code != 3 {
		t.Errorf("Code = %d, want 3", exitErr.Code)
	}
}

func TestRootCommandWiring(t *testing.T) {
	t.Parallel()

	want := map[string]bool{
		"ensure": false,
		"run":    false,
		"daemon": false,
		"status": false,
		"config": false,
	}
	for _, c := range rootCmd.Commands() {
		if _, ok := want[c.Name()]; ok {
			want[c.Name()] = true
		}
	}
	for name, found := range want {
		if !found {
			t.Errorf("subcommand %q not registered on root", name)
		}
	}
}
