// SPDX-License-Identifier: MPL-2.0

package download

import (
	"net/http"
	"time"
)

const (
	// probeTimeout bounds the whole round trip of a metadata probe.
	probeTimeout = 10 * time.Second

	// headerTimeout bounds how long a download waits for response headers.
	// The body transfer itself has no deadline; cancellation is the
	// caller's context.
	headerTimeout = 30 * time.Second
)

// NewDownloadClient builds the long-download HTTP client profile: pooled
// connections, generous limits, no overall request deadline.
func NewDownloadClient() *http.Client {
	return &http.Client{
		Transport: &http.Transport{
			MaxIdleConns:          10,
			MaxIdleConnsPerHost:   4,
			IdleConnTimeout:       90 * time.Second,
			TLSHandshakeTimeout:   15 * time.Second,
			ResponseHeaderTimeout: headerTimeout,
		},
	}
}

// NewProbeClient builds the short-probe HTTP client profile used for version
// index queries, fetchability probes, and daemon health checks. Never share
// it with the download client.
func NewProbeClient() *http.Client {
	return &http.Client{
		Timeout: probeTimeout,
		Transport: &http.Transport{
			MaxIdleConns:        4,
			IdleConnTimeout:     60 * time.Second,
			TLSHandshakeTimeout: 10 * time.Second,
		},
	}
}
