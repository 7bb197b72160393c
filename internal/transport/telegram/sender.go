// Package telegram delivers notifications to Telegram chats. It is
// send-only; the bot never polls for updates.
package telegram

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	tele "gopkg.in/telebot.v4"

	logx "shednotify/pkg/logx"
)

const textLimit = 4000

type Config struct {
	Token    string
	ChatIDs  []int64
	ThreadID int
	Timeout  time.Duration
	// APIURL overrides the Bot API endpoint (tests).
	APIURL string
}

type Sender struct {
	bot      *tele.Bot
	chats    []int64
	threadID int
	log      logx.Logger
}

func New(cfg Config, log logx.Logger) (*Sender, error) {
	if strings.TrimSpace(cfg.Token) == "" {
		return nil, errors.New("telegram token is empty")
	}
	if len(cfg.ChatIDs) == 0 {
		return nil, errors.New("telegram chat_ids is empty")
	}
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	b, err := tele.NewBot(tele.Settings{
		URL:     cfg.APIURL,
		Token:   cfg.Token,
		Client:  &http.Client{Timeout: timeout},
		Offline: true,
	})
	if err != nil {
		return nil, fmt.Errorf("telegram bot: %w", err)
	}
	return &Sender{
		bot:      b,
		chats:    append([]int64(nil), cfg.ChatIDs...),
		threadID: cfg.ThreadID,
		log:      log.With(logx.Component("notify.telegram")),
	}, nil
}

func (s *Sender) Channel() string { return "telegram" }

// Send delivers text to every configured chat. A failure for one chat does
// not stop delivery to the others; all failures are returned joined.
func (s *Sender) Send(ctx context.Context, text string) error {
	var errs []error
	for _, id := range s.chats {
		for _, chunk := range splitText(text, textLimit) {
			if err := ctx.Err(); err != nil {
				return err
			}
			opt := &tele.SendOptions{DisableWebPagePreview: true, ThreadID: s.threadID}
			if _, err := s.bot.Send(&tele.Chat{ID: id}, chunk, opt); err != nil {
				s.log.Debug("telegram send failed", logx.Int64("chat_id", id), logx.Err(err))
				errs = append(errs, fmt.Errorf("chat %d: %w", id, err))
				break
			}
		}
	}
	return errors.Join(errs...)
}

// splitText cuts s into chunks of at most limit runes, preferring newline
// boundaries in the last two thirds of each window.
func splitText(s string, limit int) []string {
	rs := []rune(s)
	if len(rs) <= limit {
		return []string{s}
	}
	out := make([]string, 0, (len(rs)+limit-1)/limit)
	start := 0
	for start < len(rs) {
		end := start + limit
		if end > len(rs) {
			end = len(rs)
		}
		if end < len(rs) {
			for i := end - 1; i-start >= limit/3; i-- {
				if rs[i] == '\n' {
					end = i + 1
					break
				}
			}
		}
		out = append(out, strings.TrimRight(string(rs[start:end]), "\n"))
		start = end
		for start < len(rs) && rs[start] == '\n' {
			start++
		}
	}
	return out
}
