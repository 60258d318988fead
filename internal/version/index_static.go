// SPDX-License-Identifier: MPL-2.0

package version

import (
	"context"
	"slices"
)

// StaticIndex serves a fixed candidate list, for upstreams that publish no
// queryable index. The resolver's fetchability probe decides which of the
// candidates actually exist upstream.
type StaticIndex []string

// Versions returns a copy of the candidate list.
func (s StaticIndex) Versions(_ context.Context) ([]string, error) {
	return slices.Clone(s), nil
}
