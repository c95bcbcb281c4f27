package scheduler

import (
	"time"

	"github.com/robfig/cron/v3"

	"github.com/Kusekushi/didhub-jobs/errors"
)

// cronParser accepts the 5 classic fields (minute, hour, day-of-month,
// month, day-of-week) plus descriptors, so @hourly, @daily and @monthly
// expand to "0 * * * *", "0 0 * * *" and "0 0 1 * *" respectively.
var cronParser = cron.NewParser(
	cron.Minute | cron.Hour | cron.Dom | cron.Month | cron.Dow | cron.Descriptor,
)

// ParseSchedule parses a cron expression or alias. Failures wrap
// errors.ErrInvalidSchedule.
func ParseSchedule(expr string) (cron.Schedule, error) {
	sched, err := cronParser.Parse(expr)
	if err != nil {
		return nil, errors.Wrapf(errors.ErrInvalidSchedule, "%q: %v", expr, err)
	}
	return sched, nil
}

// DueAt reports whether a schedule fires in the minute slot containing
// now, given the job's last run. A job is due when every field of its
// expression matches the slot and lastRun is nil or falls in a strictly
// earlier slot.
func DueAt(expr string, lastRun *time.Time, now time.Time) (bool, error) {
	sched, err := ParseSchedule(expr)
	if err != nil {
		return false, err
	}

	slot := now.Truncate(time.Minute)

	// Next returns the first activation strictly after its argument, so
	// stepping back one second detects a firing exactly at the slot.
	if !sched.Next(slot.Add(-time.Second)).Equal(slot) {
		return false, nil
	}

	if lastRun != nil && !lastRun.Truncate(time.Minute).Before(slot) {
		return false, nil
	}
	return true, nil
}
