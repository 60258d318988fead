// SPDX-License-Identifier: MPL-2.0

// Package supervisor runs a provisioned runtime as a long-lived background
// daemon: spawn, health-poll until ready, stop idempotently, and sweep
// orphaned instances left behind by earlier crashed hosts.
//
// A Supervisor instance is single-use: once stopped or failed, create a new
// instance. State is tracked with lock-free atomic transitions so Status()
// stays cheap while Start and Stop race.
package supervisor
