// Package scheduler computes when things happen.
//
// It owns three small pieces used by the polling engine:
//   - Cadence: a minute-granularity recurring schedule (cron or interval)
//   - State: a cadence plus its next firing instant, advanced in place
//   - CadenceFor: maps the ESP daily call allowance to a polling cadence
//
// Nothing here reads the wall clock; callers pass "now" in explicitly.
package scheduler
