package observability

import (
	"testing"

	"jmxpoller/internal/poll/pool"
)

func emptySnapshot() pool.Snapshot { return pool.Snapshot{} }

func TestRegisterPoolRejectsDuplicateName(t *testing.T) {
	r := New()
	if err := r.RegisterPool("server1.query", emptySnapshot); err != nil {
		t.Fatalf("first RegisterPool: %v", err)
	}
	if err := r.RegisterPool("server1.query", emptySnapshot); err == nil {
		t.Fatal("expected an error registering the same pool name twice")
	}
	if r.Count() != 1 {
		t.Fatalf("Count() = %d, want 1", r.Count())
	}
}

func TestUnregisterPoolIsExactInverse(t *testing.T) {
	r := New()
	names := []string{"server1.query", "server1.result", "server2.query"}
	for _, n := range names {
		if err := r.RegisterPool(n, emptySnapshot); err != nil {
			t.Fatalf("RegisterPool(%q): %v", n, err)
		}
	}
	if r.Count() != len(names) {
		t.Fatalf("Count() = %d, want %d", r.Count(), len(names))
	}

	for _, n := range names {
		r.UnregisterPool(n)
	}
	if r.Count() != 0 {
		t.Fatalf("Count() = %d after unregistering everything, want 0", r.Count())
	}
}

func TestUnregisterPoolUnknownNameIsNoop(t *testing.T) {
	r := New()
	r.UnregisterPool("never-registered")
	if r.Count() != 0 {
		t.Fatalf("Count() = %d, want 0", r.Count())
	}
}

func TestRegisterPoolAllowsReuseAfterUnregister(t *testing.T) {
	r := New()
	const name = "server1.query"
	if err := r.RegisterPool(name, emptySnapshot); err != nil {
		t.Fatalf("RegisterPool: %v", err)
	}
	r.UnregisterPool(name)
	if err := r.RegisterPool(name, emptySnapshot); err != nil {
		t.Fatalf("re-RegisterPool after Unregister: %v", err)
	}
	if r.Count() != 1 {
		t.Fatalf("Count() = %d, want 1", r.Count())
	}
}
