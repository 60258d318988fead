// SPDX-License-Identifier: MPL-2.0

package provision

import (
	"errors"
	"fmt"
)

// ErrProvisioningFailed is the sentinel wrapped by every StageError.
var ErrProvisioningFailed = errors.New("provisioning failed")

type (
	// StageError reports which stage of an attempt failed and whether the
	// previous install was restored. The underlying cause remains reachable
	// through errors.Is/As (download.ErrSizeLimit, archive.ErrCorruptArchive,
	// proc.ErrTimedOut, ...).
	StageError struct {
		Runtime    string
		Stage      State
		RolledBack bool
		Err        error
	}
)

func (e *StageError) Error() string {
	if e.RolledBack {
		return fmt.Sprintf("provisioning %s failed while %s (previous install restored): %v", e.Runtime, e.Stage, e.Err)
	}
	return fmt.Sprintf("provisioning %s failed while %s: %v", e.Runtime, e.Stage, e.Err)
}

func (e *StageError) Unwrap() []error { return []error{ErrProvisioningFailed, e.Err} }
