package gateway

import (
	"context"
	"log"
	"time"

	"github.com/robfig/cron/v3"
)

// cronParser uses standard 5-field cron expressions (minute, hour, dom, month, dow).
var cronParser = cron.NewParser(cron.Minute | cron.Hour | cron.Dom | cron.Month | cron.Dow)

// nextCronDuration parses a 5-field cron expression and returns the duration
// until the next fire time. Returns 0 on parse error.
func nextCronDuration(expr string) time.Duration {
	sched, err := cronParser.Parse(expr)
	if err != nil {
		return 0
	}
	next := sched.Next(time.Now())
	d := time.Until(next)
	if d < 0 {
		return 0
	}
	return d
}

// RunScheduler drives the dispatcher flows from in-process cron timers, for
// deployments without an external scheduler hitting the HTTP entrypoints.
// It returns immediately if neither expression is set, and blocks until the
// context is cancelled otherwise.
func (d *Dispatcher) RunScheduler(ctx context.Context, sweepCron, summaryCron string) {
	if sweepCron == "" && summaryCron == "" {
		return
	}

	var sweepTimer, summaryTimer *time.Timer
	if sweepCron != "" {
		if dur := nextCronDuration(sweepCron); dur > 0 {
			sweepTimer = time.NewTimer(dur)
		} else {
			log.Printf("gateway: scheduler: invalid sweep cron %q, sweep schedule disabled", sweepCron)
		}
	}
	if summaryCron != "" {
		if dur := nextCronDuration(summaryCron); dur > 0 {
			summaryTimer = time.NewTimer(dur)
		} else {
			log.Printf("gateway: scheduler: invalid summary cron %q, summary schedule disabled", summaryCron)
		}
	}

	defer func() {
		if sweepTimer != nil {
			sweepTimer.Stop()
		}
		if summaryTimer != nil {
			summaryTimer.Stop()
		}
	}()

	for {
		select {
		case <-ctx.Done():
			return
		case <-timerChan(sweepTimer):
			if _, err := d.RunReminderSweep(ctx); err != nil {
				log.Printf("gateway: scheduled sweep: %v", err)
			}
			if dur := nextCronDuration(sweepCron); dur > 0 {
				sweepTimer.Reset(dur)
			}
		case <-timerChan(summaryTimer):
			if err := d.RunDailySummary(ctx); err != nil {
				log.Printf("gateway: scheduled summary: %v", err)
			}
			if dur := nextCronDuration(summaryCron); dur > 0 {
				summaryTimer.Reset(dur)
			}
		}
	}
}

// timerChan returns the timer's channel, or nil if the timer is nil.
// A nil channel blocks forever in select, which is the desired behavior
// when a flow has no schedule configured.
func timerChan(t *time.Timer) <-chan time.Time {
	if t == nil {
		return nil
	}
	return t.C
}
