package scheduler

import (
	"fmt"
	"time"
)

// Known ESP daily allowances.
const (
	AllowanceFree     = 50
	AllowanceStandard = 200
)

var (
	every30Minutes = MustCadence("*/30 * * * *")
	every7Minutes  = MustCadence("*/7 * * * *")
	everyMinute    = MustCadence("* * * * *")
)

// CadenceFor maps the daily status-call allowance to a polling cadence.
//
//	50  -> every 30 minutes (~48 calls/day)
//	200 -> every 7 minutes  (216 calls/day)
//	*   -> every minute
func CadenceFor(allowance int) Cadence {
	switch allowance {
	case AllowanceFree:
		return every30Minutes
	case AllowanceStandard:
		return every7Minutes
	default:
		return everyMinute
	}
}

// FiringsPerDay counts how often c fires during the 24 hours after from.
func FiringsPerDay(c Cadence, from time.Time) int {
	end := from.Add(24 * time.Hour)
	n := 0
	for t := NextAfter(c, from); !t.After(end); t = NextAfter(c, t) {
		n++
	}
	return n
}

// DailyBudget is the number of status calls per day the local guard lets
// through for an allowance: the allowance itself, or more when the cadence
// CadenceFor picks for it fires more often (200 -> 216).
func DailyBudget(allowance int) int {
	if allowance <= 0 {
		return 0
	}
	fires := FiringsPerDay(CadenceFor(allowance), time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC))
	if fires > allowance {
		return fires
	}
	return allowance
}

// MarkCadence returns the hourly cadence that gates an alert offset: the
// minute of the hour that lies offsetMinutes before the top of the hour.
// 55 -> "5 * * * *", 15 -> "45 * * * *", 5 -> "55 * * * *".
func MarkCadence(offsetMinutes int) Cadence {
	if offsetMinutes < 1 || offsetMinutes > 60 {
		panic(fmt.Sprintf("scheduler: alert offset %d out of range 1..60", offsetMinutes))
	}
	minute := (60 - offsetMinutes) % 60
	return MustCadence(fmt.Sprintf("%d * * * *", minute))
}
