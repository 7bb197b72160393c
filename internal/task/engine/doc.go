// Package engine runs the status polling loop.
//
// A Loop owns one status clock and one clock per alert offset. Each tick it
// collects a finished fetch, starts a new one when the status clock fires
// and nothing is in flight, and asks the Notifier to alert when an offset's
// clock fires inside the window before the predicted event.
package engine
