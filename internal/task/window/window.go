// Package window decides whether "now" is about N minutes before a
// predicted event.
package window

import (
	"fmt"
	"time"
)

// Tolerance is the width of the trailing band that ends exactly at the
// target offset. The engine ticks once per second and each check is
// gated to the top of a minute, so a 15s band absorbs tick jitter.
const Tolerance = 15 * time.Second

// InWindow reports whether predicted - now lies within
// [targetMinutes*60-15s, targetMinutes*60], measured in whole seconds.
//
// targetMinutes < 1 is a programming error and panics.
func InWindow(targetMinutes int, predicted, now time.Time) bool {
	if targetMinutes < 1 {
		panic(fmt.Sprintf("window: target minutes must be >= 1, got %d", targetMinutes))
	}
	// Instants, not times of day, so 23:55 still sees a 00:00 event.
	delta := int64(predicted.Sub(now) / time.Second)
	hi := int64(targetMinutes) * 60
	lo := hi - int64(Tolerance/time.Second)
	return lo <= delta && delta <= hi
}

// Delta returns predicted - now truncated to whole seconds, for logging.
func Delta(predicted, now time.Time) time.Duration {
	return predicted.Sub(now).Truncate(time.Second)
}
