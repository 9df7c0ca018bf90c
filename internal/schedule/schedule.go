// Package schedule computes when an ingestion should next run.
//
// Two schedule kinds exist: RECURRING adds a fixed interval to the last
// run, CRON finds the first grid timestamp strictly after it. Both are
// evaluated in the schedule's timezone (IANA name, UTC when unset), so a
// cron expression like "0 0 * * *" means local midnight, not UTC
// midnight.
package schedule

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/robfig/cron/v3"

	"github.com/rampotla586/ut-de-framework/internal/catalog"
)

// Persister is the single catalog write the calculator performs. One
// call updates last-run, next-run and updated-at atomically for a
// schedule id.
type Persister interface {
	UpdateSchedule(ctx context.Context, scheduleID int64, lastRun, nextRun, updatedAt time.Time) error
}

// NextRun computes the next execution instant for sched. A zero LastRun
// (schedule never advanced) bases the calculation on now instead.
// Missing interval or cron expression, an unknown timezone and an
// unparsable expression are configuration errors wrapping
// catalog.ErrBadSchedule; nothing is persisted for those.
func NextRun(sched catalog.ScheduleDefinition, now time.Time) (time.Time, error) {
	loc := time.UTC
	if tz := strings.TrimSpace(sched.Timezone); tz != "" {
		l, err := time.LoadLocation(tz)
		if err != nil {
			return time.Time{}, fmt.Errorf("%w: timezone %q: %v", catalog.ErrBadSchedule, tz, err)
		}
		loc = l
	}

	base := sched.LastRun
	if base.IsZero() {
		base = now
	}
	base = base.In(loc)

	switch sched.Kind {
	case catalog.ScheduleRecurring:
		if sched.IntervalMinutes <= 0 {
			return time.Time{}, fmt.Errorf("%w: recurring schedule %d has no interval", catalog.ErrBadSchedule, sched.ID)
		}
		return base.Add(time.Duration(sched.IntervalMinutes) * time.Minute), nil

	case catalog.ScheduleCron:
		expr := strings.TrimSpace(sched.CronExpr)
		if expr == "" {
			return time.Time{}, fmt.Errorf("%w: cron schedule %d has no expression", catalog.ErrBadSchedule, sched.ID)
		}
		cs, err := cron.ParseStandard(expr)
		if err != nil {
			return time.Time{}, fmt.Errorf("%w: cron expression %q: %v", catalog.ErrBadSchedule, expr, err)
		}
		return cs.Next(base), nil

	default:
		return time.Time{}, fmt.Errorf("%w: unknown schedule type %q", catalog.ErrBadSchedule, sched.Kind)
	}
}

// Advance computes the next run and persists last-run = now, next-run =
// computed, updated-at = now in one statement. Configuration errors
// leave the stored schedule untouched.
func Advance(ctx context.Context, p Persister, sched catalog.ScheduleDefinition, now time.Time) (time.Time, error) {
	next, err := NextRun(sched, now)
	if err != nil {
		return time.Time{}, err
	}
	if err := p.UpdateSchedule(ctx, sched.ID, now, next, now); err != nil {
		return time.Time{}, fmt.Errorf("persist schedule %d: %w", sched.ID, err)
	}
	return next, nil
}

// Due reports whether a run is owed at now. A zero NextRun means the
// pair was never computed; the first run is always owed.
func Due(sched catalog.ScheduleDefinition, now time.Time) bool {
	return sched.NextRun.IsZero() || !sched.NextRun.After(now)
}
