// SPDX-License-Identifier: MPL-2.0

package provision

import (
	"fmt"
	"os"
	"strings"
)

// readMarker returns the persisted version string, or "" when no marker
// exists. A marker that cannot be read is treated as absent: the resolver
// will fall back to the remote index.
func readMarker(path string) string {
	data, err := os.ReadFile(path)
	if err != nil {
		return ""
	}
	return strings.TrimSpace(string(data))
}

// writeMarker persists the version string. Written only on a successful
// commit; rollback leaves the previous marker untouched.
func writeMarker(path, version string) error {
	if err := os.WriteFile(path, []byte(version+"\n"), 0o644); err != nil {
		return fmt.Errorf("writing version marker %s: %w", path, err)
	}
	return nil
}
