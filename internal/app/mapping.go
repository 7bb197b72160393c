package app

import (
	"fmt"
	"strings"
	"time"

	"shednotify/internal/config"
	"shednotify/internal/esp"
	"shednotify/internal/notifier"
	"shednotify/internal/ops"
	"shednotify/internal/storage"
	"shednotify/internal/task/engine"
	"shednotify/internal/task/scheduler"
	"shednotify/internal/transport"
	"shednotify/internal/transport/telegram"
	logx "shednotify/pkg/logx"
)

// NewClient builds the ESP client from cfg. The CLI shares it.
func NewClient(cfg *config.Config, log logx.Logger) (*esp.Client, error) {
	opts := []esp.Option{
		esp.WithTimeout(cfg.ESP.ResolveTimeout()),
		esp.WithLogger(log.With(logx.Component("esp"))),
	}
	if u := strings.TrimSpace(cfg.ESP.BaseURL); u != "" {
		opts = append(opts, esp.WithBaseURL(u))
	}
	return esp.New(cfg.ESP.Token, opts...)
}

// mapEngineConfig picks the status cadence: an explicit engine.cadence
// wins, otherwise the allowance limit decides.
func mapEngineConfig(cfg *config.Config, al esp.Allowance) (engine.Config, error) {
	out := engine.Config{
		StatusCadence: scheduler.CadenceFor(al.Limit),
		Offsets:       append([]int(nil), cfg.Engine.Offsets...),
		Tick:          cfg.Engine.ResolveTick(),
	}
	if raw := strings.TrimSpace(cfg.Engine.Cadence); raw != "" {
		c, err := scheduler.ParseCadence(raw)
		if err != nil {
			return engine.Config{}, fmt.Errorf("engine.cadence: %w", err)
		}
		out.StatusCadence = c
	}
	return out, nil
}

func mapNotifierConfig(cfg *config.Config) (notifier.Config, error) {
	n := cfg.NotifierOrDefault()
	out := notifier.Config{
		Enabled:         n.Enabled,
		Workers:         n.Workers,
		QueueSize:       n.QueueSize,
		RatePerSec:      n.RatePerSec,
		RetryMax:        n.RetryMax,
		DedupMaxEntries: n.DedupMaxEntries,
		PersistDedup:    n.PersistDedup,
	}
	if cfg.Notifier == nil {
		out.RetryMax = 3
	}

	var err error
	if out.RetryBase, err = config.ParseDurationOrDefault("notifier.retry_base", n.RetryBase, 500*time.Millisecond); err != nil {
		return out, err
	}
	if out.RetryMaxDelay, err = config.ParseDurationOrDefault("notifier.retry_max_delay", n.RetryMaxDelay, 10*time.Second); err != nil {
		return out, err
	}
	// An alert repeats only for a new predicted time, so a long window is safe.
	if out.DedupWindow, err = config.ParseDurationOrDefault("notifier.dedup_window", n.DedupWindow, 2*time.Hour); err != nil {
		return out, err
	}
	return out, nil
}

func mapStorageConfig(cfg *config.Config) (storage.Config, error) {
	if cfg.Storage == nil {
		return storage.Config{Driver: "none"}, nil
	}
	sc := cfg.Storage
	busy, err := config.ParseDurationOrDefault("storage.busy_timeout", sc.BusyTimeout, time.Second)
	if err != nil {
		return storage.Config{}, err
	}
	return storage.Config{
		Driver:      strings.ToLower(strings.TrimSpace(sc.Driver)),
		Path:        strings.TrimSpace(sc.Path),
		BusyTimeout: busy,
	}, nil
}

func mapOpsConfig(cfg *config.Config) (ops.Config, error) {
	o := cfg.Ops
	out := ops.Config{
		Enabled:       o.Enabled,
		Addr:          o.ResolveAddr(),
		Token:         strings.TrimSpace(o.Token),
		AllowInsecure: o.AllowInsecure,
		Pprof:         o.Pprof,
	}
	var err error
	if out.ReadTimeout, err = config.ParseDurationOrDefault("ops.read_timeout", o.ReadTimeout, 5*time.Second); err != nil {
		return out, err
	}
	// 0 by default so /debug/pprof/profile can stream for its full duration.
	if out.WriteTimeout, err = config.ParseDurationField("ops.write_timeout", o.WriteTimeout); err != nil {
		return out, err
	}
	if out.IdleTimeout, err = config.ParseDurationOrDefault("ops.idle_timeout", o.IdleTimeout, 120*time.Second); err != nil {
		return out, err
	}
	return out, nil
}

// buildSenders returns one sender per configured notifier channel.
func buildSenders(cfg *config.Config, log logx.Logger) ([]transport.Sender, error) {
	channels := cfg.NotifierOrDefault().Channels
	out := make([]transport.Sender, 0, len(channels))
	for _, ch := range channels {
		switch ch {
		case config.ChannelLog:
			out = append(out, transport.NewLogSender(log))
		case config.ChannelTelegram:
			if cfg.Telegram == nil {
				return nil, fmt.Errorf("notifier channel %q needs a telegram section", ch)
			}
			timeout, err := config.ParseDurationOrDefault("telegram.timeout", cfg.Telegram.Timeout, 10*time.Second)
			if err != nil {
				return nil, err
			}
			snd, err := telegram.New(telegram.Config{
				Token:    cfg.Telegram.Token,
				ChatIDs:  cfg.Telegram.ChatIDs,
				ThreadID: cfg.Telegram.ThreadID,
				Timeout:  timeout,
			}, log)
			if err != nil {
				return nil, err
			}
			out = append(out, snd)
		default:
			return nil, fmt.Errorf("unknown notifier channel %q", ch)
		}
	}
	return out, nil
}
