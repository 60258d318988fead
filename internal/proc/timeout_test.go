// SPDX-License-Identifier: MPL-2.0

package proc

import (
	"testing"
	"time"
)

func TestTimeoutPolicy_String(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name   string
		policy TimeoutPolicy
		want   string
	}{
		{"none", NoTimeout, "no timeout"},
		{"fixed", FixedTimeout(5 * time.Second), "fixed timeout 5s"},
		{"idle", IdleTimeout(2 * time.Minute), "idle timeout 2m0s"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			if got := tt.policy.String(); got != tt.want {
				t.Errorf("got %q, want %q", got, tt.want)
			}
		})
	}
}

func TestPolicyTimer_NoTimeoutNeverFires(t *testing.T) {
	t.Parallel()

	timer := newPolicyTimer(NoTimeout)
	defer timer.Stop()

	select {
	case <-timer.C():
		t.Fatal("NoTimeout timer fired")
	case <-time.After(50 * time.Millisecond):
	}
}

func TestPolicyTimer_IdleTouchSlidesDeadline(t *testing.T) {
	t.Parallel()

	timer := newPolicyTimer(IdleTimeout(200 * time.Millisecond))
	defer timer.Stop()

	// Touch every 100ms for 500ms: deadline keeps sliding, never fires.
	for range 5 {
		select {
		case <-timer.C():
			t.Fatal("idle timer fired despite activity")
		case <-time.After(100 * time.Millisecond):
			timer.Touch()
		}
	}

	// Now go silent: it must fire.
	select {
	case <-timer.C():
	case <-time.After(2 * time.Second):
		t.Fatal("idle timer did not fire after silence")
	}
}

func TestPolicyTimer_FixedIgnoresTouch(t *testing.T) {
	t.Parallel()

	timer := newPolicyTimer(FixedTimeout(200 * time.Millisecond))
	defer timer.Stop()

	deadline := time.After(2 * time.Second)
	for {
		select {
		case <-timer.C():
			return // fired despite constant touching
		case <-time.After(50 * time.Millisecond):
			timer.Touch()
		case <-deadline:
			t.Fatal("fixed timer never fired")
		}
	}
}

func TestExitCode_IsValid(t *testing.T) {
	t.Parallel()

	tests := []struct {
		code  ExitCode
		valid bool
	}{
		{0, true},
		{1, true},
		{255, true},
		{-1, false},
		{256, false},
	}

	for _, tt := range tests {
		valid, errs := tt.code.IsValid()
		if valid != tt.valid {
			t.Errorf("ExitCode(%d).IsValid(): got %v, want %v", tt.code, valid, tt.valid)
		}
		if !valid && len(errs) == 0 {
			t.Errorf("ExitCode(%d): invalid code must report errors", tt.code)
		}
	}
}
