// SPDX-License-Identifier: MPL-2.0

package runtimes

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
)

const embedPthContent = `python312.zip
.

# Uncomment to run site.main() automatically
#import site
`

func writePth(t *testing.T, root, content string) string {
	t.Helper()
	path := filepath.Join(root, "python312._pth")
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatalf("writing ._pth: %v", err)
	}
	return path
}

func TestEnableSitePackages(t *testing.T) {
	t.Parallel()

	root := t.TempDir()
	pth := writePth(t, root, embedPthContent)

	if err := enableSitePackages(root); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	data, err := os.ReadFile(pth)
	if err != nil {
		t.Fatal(err)
	}
	content := string(data)
	if strings.Contains(content, "#import site") {
		t.Error("import site still commented out")
	}
	if !strings.Contains(content, "import site") {
		t.Error("import site line missing")
	}
	if !strings.Contains(content, sitePackagesPthEntry) {
		t.Error("site-packages path entry missing")
	}
	// The path entry must precede the import so it is on sys.path when
	// site.main() runs.
	if strings.Index(content, sitePackagesPthEntry) > strings.Index(content, "import site") {
		t.Error("site-packages entry placed after import site")
	}

	info, err := os.Stat(sitePackagesDir(root))
	if err != nil || !info.IsDir() {
		t.Error("site-packages directory not created")
	}
}

func TestEnableSitePackagesIdempotent(t *testing.T) {
	t.Parallel()

	root := t.TempDir()
	pth := writePth(t, root, embedPthContent)

	for i := 0; i < 2; i++ {
		if err := enableSitePackages(root); err != nil {
			t.Fatalf("pass %d: %v", i, err)
		}
	}

	data, err := os.ReadFile(pth)
	if err != nil {
		t.Fatal(err)
	}
	if got := strings.Count(string(data), sitePackagesPthEntry); got != 1 {
		t.Errorf("site-packages entry duplicated: %d occurrences", got)
	}
}

func TestEnableSitePackagesWithoutPthFile(t *testing.T) {
	t.Parallel()

	root := t.TempDir()
	if err := enableSitePackages(root); err != nil {
		t.Fatalf("non-embed layout must be tolerated: %v", err)
	}
	if _, err := os.Stat(sitePackagesDir(root)); err != nil {
		t.Error("site-packages directory not created")
	}
}

func TestEnableSitePackagesHandlesCRLF(t *testing.T) {
	t.Parallel()

	root := t.TempDir()
	pth := writePth(t, root, strings.ReplaceAll(embedPthContent, "\n", "\r\n"))

	if err := enableSitePackages(root); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	data, err := os.ReadFile(pth)
	if err != nil {
		t.Fatal(err)
	}
	if strings.Contains(string(data), "#import site") {
		t.Error("CRLF file left with commented import site")
	}
}

func TestPythonProbeRequiresSitePackages(t *testing.T) {
	t.Parallel()

	c := newTestCatalog(t)
	desc, _ := c.python()
	root := desc.InstallRoot

	if desc.Probe(root) {
		t.Error("probe passes on empty root")
	}

	exe := pythonExe(root)
	if err := os.MkdirAll(filepath.Dir(exe), 0o755); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(exe, []byte("bin"), 0o755); err != nil {
		t.Fatal(err)
	}
	if desc.Probe(root) {
		t.Error("probe passes without site-packages")
	}

	if err := os.MkdirAll(sitePackagesDir(root), 0o755); err != nil {
		t.Fatal(err)
	}
	if !desc.Probe(root) {
		t.Error("probe fails on complete layout")
	}
}

func TestPythonVersionPinNarrowsCandidates(t *testing.T) {
	t.Parallel()

	c := newTestCatalog(t)
	c.cfg.Python.Version = "3.11.9"
	desc, _ := c.python()

	url := desc.ArtifactURL("3.11.9")
	if !strings.Contains(url, "3.11.9") || !strings.Contains(url, "embed") {
		t.Errorf("artifact URL shape: %q", url)
	}
}
