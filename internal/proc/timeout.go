// SPDX-License-Identifier: MPL-2.0

package proc

import (
	"fmt"
	"time"
)

type (
	// TimeoutPolicy decides when a running process is considered hung and
	// must be killed. The zero value (NoTimeout) never fires.
	TimeoutPolicy struct {
		kind     timeoutKind
		duration time.Duration
	}

	timeoutKind int

	// policyTimer is the runtime companion of a TimeoutPolicy: a timer that
	// fires once when the policy's deadline elapses. For idle policies the
	// deadline slides forward on every Touch.
	policyTimer struct {
		policy TimeoutPolicy
		timer  *time.Timer
	}
)

const (
	timeoutNone timeoutKind = iota
	timeoutFixed
	timeoutIdle
)

// NoTimeout lets the process run until natural exit or cancellation.
var NoTimeout = TimeoutPolicy{}

// FixedTimeout kills the process if it is still running d after spawn,
// regardless of output activity.
func FixedTimeout(d time.Duration) TimeoutPolicy {
	return TimeoutPolicy{kind: timeoutFixed, duration: d}
}

// IdleTimeout kills the process only after a continuous silence (no line on
// either output stream) longer than d. Suited to long, chatty operations
// whose total duration is unbounded but whose liveness must be provable.
func IdleTimeout(d time.Duration) TimeoutPolicy {
	return TimeoutPolicy{kind: timeoutIdle, duration: d}
}

// IsZero reports whether the policy is NoTimeout.
func (p TimeoutPolicy) IsZero() bool { return p.kind == timeoutNone }

// String describes the policy for error messages and logs.
func (p TimeoutPolicy) String() string {
	switch p.kind {
	case timeoutFixed:
		return fmt.Sprintf("fixed timeout %s", p.duration)
	case timeoutIdle:
		return fmt.Sprintf("idle timeout %s", p.duration)
	default:
		return "no timeout"
	}
}

// newPolicyTimer starts the timer for the given policy. For NoTimeout the
// returned timer never fires (nil channel).
func newPolicyTimer(p TimeoutPolicy) *policyTimer {
	t := &policyTimer{policy: p}
	if p.kind != timeoutNone {
		t.timer = time.NewTimer(p.duration)
	}
	return t
}

// C returns the channel that fires when the deadline elapses. Nil (blocks
// forever in a select) for NoTimeout.
func (t *policyTimer) C() <-chan time.Time {
	if t.timer == nil {
		return nil
	}
	return t.timer.C
}

// Touch records output activity. Only idle policies slide their deadline;
// fixed policies ignore activity.
func (t *policyTimer) Touch() {
	if t.timer == nil || t.policy.kind != timeoutIdle {
		return
	}
	// Stop+drain before Reset per time.Timer contract. A value left in the
	// channel here would fire the watchdog spuriously on the next select.
	if !t.timer.Stop() {
		select {
		case <-t.timer.C:
		default:
		}
	}
	t.timer.Reset(t.policy.duration)
}

// Stop releases the underlying timer. Safe on NoTimeout.
func (t *policyTimer) Stop() {
	if t.timer != nil {
		t.timer.Stop()
	}
}
