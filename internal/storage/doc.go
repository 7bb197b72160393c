// Package storage persists the daemon's state across restarts.
//
// It keeps:
//   - the last successful status snapshot (restored into the loop on start)
//   - an append-only log of fetch outcomes and fired alerts
//   - optional notifier dedup state
package storage
