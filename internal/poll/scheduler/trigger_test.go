package scheduler

import (
	"testing"
	"time"

	"jmxpoller/internal/model"
)

func newServer(host string, port int) *model.Server {
	return &model.Server{Host: host, Port: port}
}

func TestCreateTriggerPrefersValidCron(t *testing.T) {
	s := newServer("db1", 9010)
	s.CronExpression = "0/5 * * * * ?"

	tr := createTrigger(s, 30*time.Second)
	if tr.CronExpr != "0/5 * * * * *" {
		t.Fatalf("CronExpr = %q, want normalized ?->* form", tr.CronExpr)
	}
	if tr.Interval != 0 {
		t.Fatalf("Interval = %v, want 0 for a cron-driven trigger", tr.Interval)
	}
	if tr.Spread < 0 || tr.Spread >= 30*time.Second {
		t.Fatalf("Spread = %v, want in [0, 30s) even for a cron-driven trigger", tr.Spread)
	}
}

func TestCreateTriggerCronSpreadUsesServerPeriodOverride(t *testing.T) {
	s := newServer("db1", 9010)
	s.CronExpression = "0/5 * * * * ?"
	s.RunPeriodSeconds = 10

	for i := 0; i < 50; i++ {
		tr := createTrigger(s, 30*time.Second)
		if tr.Spread < 0 || tr.Spread >= 10*time.Second {
			t.Fatalf("Spread = %v, want in [0, 10s) (the server's own run_period_seconds)", tr.Spread)
		}
	}
}

func TestCreateTriggerFallsBackOnInvalidCron(t *testing.T) {
	s := newServer("db1", 9010)
	s.CronExpression = "not a cron expression"
	s.RunPeriodSeconds = 45

	tr := createTrigger(s, 30*time.Second)
	if tr.CronExpr != "" {
		t.Fatalf("CronExpr = %q, want empty after falling back to interval", tr.CronExpr)
	}
	if tr.Interval != 45*time.Second {
		t.Fatalf("Interval = %v, want 45s", tr.Interval)
	}
	if tr.Spread < 0 || tr.Spread >= tr.Interval {
		t.Fatalf("Spread = %v, want in [0, %v)", tr.Spread, tr.Interval)
	}
}

func TestCreateTriggerFallsBackToGlobalPeriod(t *testing.T) {
	s := newServer("db1", 9010)
	tr := createTrigger(s, 20*time.Second)
	if tr.Interval != 20*time.Second {
		t.Fatalf("Interval = %v, want the global run period (20s)", tr.Interval)
	}
}

func TestCreateTriggerDefaultsWhenNothingConfigured(t *testing.T) {
	s := newServer("db1", 9010)
	tr := createTrigger(s, 0)
	if tr.Interval != 60*time.Second {
		t.Fatalf("Interval = %v, want the 60s hard default", tr.Interval)
	}
}

func TestSpreadIsBounded(t *testing.T) {
	period := 5 * time.Second
	for i := 0; i < 200; i++ {
		got := Spread(period)
		if got < 0 || got >= period {
			t.Fatalf("Spread(%v) = %v, out of [0, period) bounds", period, got)
		}
	}
}

func TestSpreadZeroPeriod(t *testing.T) {
	if got := Spread(0); got != 0 {
		t.Fatalf("Spread(0) = %v, want 0", got)
	}
}

func TestNormalizeCronExprReplacesQuartzWildcard(t *testing.T) {
	got := normalizeCronExpr(" 0 0 12 ? * MON ")
	want := "0 0 12 * * MON"
	if got != want {
		t.Fatalf("normalizeCronExpr = %q, want %q", got, want)
	}
}
