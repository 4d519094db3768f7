package backoff

import (
	"testing"
	"time"
)

func TestExponentialDoublesUntilCap(t *testing.T) {
	base := time.Second
	max := 8 * time.Second
	cases := []struct {
		attempt int
		want    time.Duration
	}{
		{0, 1 * time.Second},
		{1, 2 * time.Second},
		{2, 4 * time.Second},
		{3, 8 * time.Second},
		{10, 8 * time.Second},
	}
	for _, c := range cases {
		if got := Exponential(c.attempt, base, max, 0); got != c.want {
			t.Errorf("Exponential(%d, 1s, 8s, 0) = %v, want %v", c.attempt, got, c.want)
		}
	}
}

func TestExponentialJitterStaysWithinBound(t *testing.T) {
	base := time.Second
	max := 10 * time.Second
	for i := 0; i < 200; i++ {
		got := Exponential(2, base, max, 0.5)
		if got < 4*time.Second || got > 6*time.Second {
			t.Fatalf("Exponential(2, 1s, 10s, 0.5) = %v, want in [4s, 6s]", got)
		}
	}
}

func TestExponentialRejectsZeroBase(t *testing.T) {
	if got := Exponential(0, 0, time.Second, 0); got != time.Second {
		t.Fatalf("Exponential with base=0 = %v, want the 1s fallback", got)
	}
}
