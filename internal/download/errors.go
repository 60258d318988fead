// SPDX-License-Identifier: MPL-2.0

package download

import (
	"errors"
	"fmt"
)

// Sentinel errors for programmatic detection via errors.Is.
var (
	// ErrNetwork indicates a transient network failure; the caller may
	// retry the whole operation.
	ErrNetwork = errors.New("network error")

	// ErrSizeLimit indicates the payload exceeded the byte cap. Fatal for
	// this download attempt.
	ErrSizeLimit = errors.New("size limit exceeded")
)

type (
	// NetworkError wraps a transport or HTTP status failure.
	NetworkError struct {
		URL string
		Err error
	}

	// SizeLimitError reports a payload that exceeded the byte cap, either
	// up front (declared Content-Length) or while streaming.
	SizeLimitError struct {
		URL      string
		Declared int64 // declared content length, -1 if unknown
		Read     int64 // bytes read before aborting
		Cap      int64
	}
)

func (e *NetworkError) Error() string {
	return fmt.Sprintf("downloading %s: %v", e.URL, e.Err)
}

func (e *NetworkError) Unwrap() []error { return []error{ErrNetwork, e.Err} }

func (e *SizeLimitError) Error() string {
	if e.Declared >= 0 {
		return fmt.Sprintf("downloading %s: declared size %d exceeds cap %d", e.URL, e.Declared, e.Cap)
	}
	return fmt.Sprintf("downloading %s: stream exceeded cap %d after %d bytes", e.URL, e.Cap, e.Read)
}

func (e *SizeLimitError) Unwrap() error { return ErrSizeLimit }
