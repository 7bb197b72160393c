package scheduler

import "time"

// State pairs a Cadence with its next firing instant.
//
// Invariant: after AdvanceIfDue(now) returns, Next is strictly after now.
// State is not safe for concurrent use; the engine owns it.
type State struct {
	Cadence Cadence
	Next    time.Time
}

// NewState primes the first firing instant relative to now.
func NewState(c Cadence, now time.Time) *State {
	return &State{Cadence: c, Next: NextAfter(c, now)}
}

// AdvanceIfDue reports whether the cadence fired at now. When it did, Next
// moves to the following instant, so a second call with the same now
// returns false.
func (s *State) AdvanceIfDue(now time.Time) bool {
	if now.Before(s.Next) {
		return false
	}
	s.Next = NextAfter(s.Cadence, now)
	return true
}
