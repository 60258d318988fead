// SPDX-License-Identifier: MPL-2.0

// Package issue provides structured, user-facing errors: what operation
// failed, which resource was involved, and concrete suggestions for fixing
// it. The CLI renders suggestions under the error message; --verbose adds
// the full cause chain.
package issue
