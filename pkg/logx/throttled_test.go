package logx

import (
	"testing"
	"time"
)

func TestThrottledAllowsFirstCallThenThrottles(t *testing.T) {
	th := NewThrottled(Nop(), time.Hour)
	if !th.Allow() {
		t.Fatal("first Allow() = false, want true")
	}
	if th.Allow() {
		t.Fatal("second Allow() within the window = true, want false")
	}
}

func TestThrottledAllowsAgainAfterWindow(t *testing.T) {
	th := NewThrottled(Nop(), 10*time.Millisecond)
	if !th.Allow() {
		t.Fatal("first Allow() = false, want true")
	}
	time.Sleep(30 * time.Millisecond)
	if !th.Allow() {
		t.Fatal("Allow() after the window elapsed = false, want true")
	}
}

func TestThrottledAllowFailsOpenOnNilReceiver(t *testing.T) {
	var th *Throttled
	if !th.Allow() {
		t.Fatal("nil Throttled.Allow() = false, want true (fail open)")
	}
}
