package transport

import (
	"context"

	logx "shednotify/pkg/logx"
)

// LogSender writes notifications to the structured log. It is the default
// channel and is always available.
type LogSender struct {
	log logx.Logger
}

func NewLogSender(log logx.Logger) *LogSender {
	return &LogSender{log: log.With(logx.Component("notify.log"))}
}

func (s *LogSender) Channel() string { return "log" }

func (s *LogSender) Send(ctx context.Context, text string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	s.log.Warn(text, logx.String("channel", "log"))
	return nil
}
