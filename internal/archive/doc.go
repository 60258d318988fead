// SPDX-License-Identifier: MPL-2.0

// Package archive unpacks downloaded runtime archives (.zip, .tar.gz) into a
// directory. Extraction retries a bounded number of times on errors classified
// as transient (a file briefly locked by another process, typically an
// antivirus scanner); a corrupt archive is terminal immediately and never
// retried. Callers treat the destination as volatile until Extract returns
// nil.
package archive
