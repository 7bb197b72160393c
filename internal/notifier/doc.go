// Package notifier is the async delivery pipeline for alerts.
//
// Notify enqueues a transport.Message; a small worker pool delivers it to
// the Sender registered for its channel, with a shared rate limit, retry
// with jittered backoff, and a dedup window so a restart or a repeated
// tick does not alert twice. Dedup state can optionally be persisted
// through storage.Store.
package notifier
