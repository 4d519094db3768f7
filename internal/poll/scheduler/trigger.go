package scheduler

import (
	"strings"
	"time"

	"github.com/robfig/cron/v3"

	"jmxpoller/internal/model"
)

// cronParser accepts the 6-field seconds-resolution form jmxtrans configs
// use (sec min hour dom month dow), with "?" (a Quartz day-of-month/week
// wildcard the original cron library understands but robfig/cron does not)
// normalized to "*" before parsing.
var cronParser = cron.NewParser(cron.Second | cron.Minute | cron.Hour | cron.Dom | cron.Month | cron.Dow | cron.Descriptor)

// Trigger is the derived schedule for one Server: either a cron expression
// or a fixed interval, each with a spread-jittered start.
type Trigger struct {
	Name     model.JobKey
	CronExpr string        // non-empty => cron-driven
	Interval time.Duration // used when CronExpr == ""
	Spread   time.Duration
}

// createTrigger implements §4.2's trigger construction: a present and
// parseable cron expression wins; anything else (absent, or invalid, per
// scenario 3 of §8) falls back to a fixed interval.
func createTrigger(server *model.Server, globalRunPeriod time.Duration) Trigger {
	key := model.NewJobKey(server)

	period := time.Duration(server.RunPeriodSeconds) * time.Second
	if period <= 0 {
		period = globalRunPeriod
	}
	if period <= 0 {
		period = 60 * time.Second
	}

	if expr := normalizeCronExpr(server.CronExpression); expr != "" {
		if _, err := cronParser.Parse(expr); err == nil {
			// The original's computeSpreadStartDate applies uniformly to
			// every trigger kind, cron included, so thousands of jobs
			// sharing a cron expression don't all tick in lockstep on the
			// same edge: delay this trigger's first registration by the
			// same spread used for interval triggers.
			return Trigger{Name: key, CronExpr: expr, Spread: Spread(period)}
		}
	}

	return Trigger{Name: key, Interval: period, Spread: Spread(period)}
}

func normalizeCronExpr(expr string) string {
	expr = strings.TrimSpace(expr)
	if expr == "" {
		return ""
	}
	return strings.ReplaceAll(expr, "?", "*")
}
