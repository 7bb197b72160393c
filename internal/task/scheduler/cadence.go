package scheduler

import (
	"fmt"
	"time"

	"github.com/robfig/cron/v3"
)

// Standard 5-field cron (no seconds) plus descriptors like "@hourly".
var cronParser = cron.NewParser(cron.Minute | cron.Hour | cron.Dom | cron.Month | cron.Dow | cron.Descriptor)

// Cadence is an immutable recurring schedule with minute granularity.
// The zero value fires every minute.
type Cadence struct {
	expr  string
	sched cron.Schedule
}

// ParseCadence accepts anything ParseSchedule does. Intervals must be at
// least one minute.
func ParseCadence(raw string) (Cadence, error) {
	ps, err := ParseSchedule(raw)
	if err != nil {
		return Cadence{}, err
	}
	switch ps.Kind {
	case SpecCron:
		sched, err := cronParser.Parse(ps.Cron)
		if err != nil {
			return Cadence{}, fmt.Errorf("invalid cron %q: %w", ps.Cron, err)
		}
		return Cadence{expr: ps.Cron, sched: sched}, nil
	case SpecInterval:
		if ps.Every < time.Minute {
			return Cadence{}, fmt.Errorf("interval %s is below one minute", ps.Every)
		}
		every := ps.Every.Truncate(time.Minute)
		return Cadence{expr: "@every " + every.String(), sched: cron.Every(every)}, nil
	default:
		return Cadence{}, fmt.Errorf("unsupported schedule kind")
	}
}

// MustCadence is ParseCadence for compile-time constants.
func MustCadence(raw string) Cadence {
	c, err := ParseCadence(raw)
	if err != nil {
		panic(err)
	}
	return c
}

func (c Cadence) String() string {
	if c.expr == "" {
		return "* * * * *"
	}
	return c.expr
}

func (c Cadence) schedule() cron.Schedule {
	if c.sched == nil {
		return everyMinute.sched
	}
	return c.sched
}

// NextAfter returns the first firing instant of c strictly after now,
// expressed in now's location.
func NextAfter(c Cadence, now time.Time) time.Time {
	next := c.schedule().Next(now)
	// cron returns the zero time when nothing matches within five years
	// (e.g. "0 0 30 2 *"). Fall back to the next minute boundary.
	if next.IsZero() || !next.After(now) {
		return now.Truncate(time.Minute).Add(time.Minute)
	}
	return next
}
