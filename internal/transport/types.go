// Package transport delivers notification text to a channel.
package transport

import "context"

// Message is one outbound notification.
type Message struct {
	Channel  string // "log", "telegram"
	Priority int    // 0 low .. 10 high
	Text     string
	// Key overrides the content-derived dedup key when set.
	Key string
}

// Sender delivers text on a single channel. Send must honor ctx.
type Sender interface {
	Channel() string
	Send(ctx context.Context, text string) error
}
