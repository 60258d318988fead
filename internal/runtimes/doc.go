// SPDX-License-Identifier: MPL-2.0

// Package runtimes is the catalog of managed runtimes: concrete descriptors,
// version indexes, and post-install steps for the embedded Python
// interpreter, Node.js, ffmpeg, and the Ollama daemon. The Catalog wires
// each of them into the provisioning engine using one shared download
// engine and process runner.
package runtimes
