package lifecycle

import "testing"

func TestExitHookFiresOnce(t *testing.T) {
	calls := 0
	h := NewExitHook(func() { calls++ })
	h.Arm()

	h.Fire()
	h.Fire()
	h.Fire()

	if calls != 1 {
		t.Fatalf("calls = %d, want exactly 1", calls)
	}
}

func TestExitHookNoopWhenNeverArmed(t *testing.T) {
	calls := 0
	h := NewExitHook(func() { calls++ })
	h.Fire()
	if calls != 0 {
		t.Fatalf("calls = %d, want 0 for a hook that was never armed", calls)
	}
}

func TestExitHookDisarmReportsPriorState(t *testing.T) {
	h := NewExitHook(func() {})
	if h.Disarm() {
		t.Fatal("Disarm on an unarmed hook should report false")
	}
	h.Arm()
	if !h.Disarm() {
		t.Fatal("Disarm on an armed hook should report true")
	}
	if h.Disarm() {
		t.Fatal("second Disarm should report false")
	}
}
