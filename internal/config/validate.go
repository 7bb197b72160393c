package config

import (
	"errors"
	"fmt"
	"net"
	"strings"
	"time"

	"shednotify/internal/task/scheduler"
)

var ErrTokenMissing = errors.New("esp.token is required (or set " + EnvESPToken + ")")

// MaxTick keeps every loop tick inside the alert tolerance band.
const MaxTick = 15 * time.Second

// Validate reports every problem found in cfg, joined.
func Validate(cfg *Config) error {
	if cfg == nil {
		return errors.New("config is nil")
	}
	var errs []error
	add := func(err error) {
		if err != nil {
			errs = append(errs, err)
		}
	}
	dur := func(path, raw string) {
		_, err := ParseDurationField(path, raw)
		add(err)
	}

	if strings.TrimSpace(cfg.ESP.Token) == "" {
		add(ErrTokenMissing)
	}
	dur("esp.timeout", cfg.ESP.Timeout)

	if c := strings.TrimSpace(cfg.Engine.Cadence); c != "" {
		if _, err := scheduler.ParseCadence(c); err != nil {
			add(fmt.Errorf("engine.cadence: %w", err))
		}
	}
	seen := map[int]bool{}
	for _, off := range cfg.Engine.Offsets {
		if off < 1 || off > 60 {
			add(fmt.Errorf("engine.offsets: %d is outside 1..60", off))
		}
		if seen[off] {
			add(fmt.Errorf("engine.offsets: %d listed twice", off))
		}
		seen[off] = true
	}
	if tick, err := ParseDurationField("engine.tick", cfg.Engine.Tick); err != nil {
		add(err)
	} else if tick > MaxTick {
		add(fmt.Errorf("engine.tick: must be <= %s", MaxTick))
	}
	if tz := strings.TrimSpace(cfg.Engine.Timezone); tz != "" {
		if _, err := time.LoadLocation(tz); err != nil {
			add(fmt.Errorf("engine.timezone: %w", err))
		}
	}

	for i, a := range cfg.Areas {
		if strings.TrimSpace(a.ID) == "" {
			add(fmt.Errorf("areas[%d].id is required", i))
		}
	}

	if !validLevel(cfg.Logging.Level) {
		add(fmt.Errorf("logging.level: unknown level %q", cfg.Logging.Level))
	}

	n := cfg.NotifierOrDefault()
	for _, ch := range n.Channels {
		switch ch {
		case ChannelLog:
		case ChannelTelegram:
			if cfg.Telegram == nil || strings.TrimSpace(cfg.Telegram.Token) == "" || len(cfg.Telegram.ChatIDs) == 0 {
				add(errors.New("notifier.channels: telegram requires telegram.token and telegram.chat_ids"))
			}
		default:
			add(fmt.Errorf("notifier.channels: unknown channel %q", ch))
		}
	}
	dur("notifier.retry_base", n.RetryBase)
	dur("notifier.retry_max_delay", n.RetryMaxDelay)
	dur("notifier.dedup_window", n.DedupWindow)
	if n.PersistDedup && cfg.Storage == nil {
		add(errors.New("notifier.persist_dedup requires a storage section"))
	}
	if cfg.Telegram != nil {
		dur("telegram.timeout", cfg.Telegram.Timeout)
	}

	if s := cfg.Storage; s != nil {
		switch strings.ToLower(strings.TrimSpace(s.Driver)) {
		case "", "file", "sqlite":
		default:
			add(fmt.Errorf("storage.driver: unknown driver %q", s.Driver))
		}
		if strings.TrimSpace(s.Path) == "" {
			add(errors.New("storage.path is required"))
		}
		dur("storage.busy_timeout", s.BusyTimeout)
	}

	if cfg.Ops.Enabled {
		host, _, err := net.SplitHostPort(cfg.Ops.ResolveAddr())
		if err != nil {
			add(fmt.Errorf("ops.addr: %w", err))
		} else if !isLoopbackHost(host) && strings.TrimSpace(cfg.Ops.Token) == "" && !cfg.Ops.AllowInsecure {
			add(errors.New("ops.addr: non-loopback bind requires ops.token or ops.allow_insecure"))
		}
		dur("ops.read_timeout", cfg.Ops.ReadTimeout)
		dur("ops.write_timeout", cfg.Ops.WriteTimeout)
		dur("ops.idle_timeout", cfg.Ops.IdleTimeout)
	}

	return errors.Join(errs...)
}

func validLevel(s string) bool {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "", "trace", "debug", "info", "warn", "warning", "error":
		return true
	default:
		return false
	}
}

func isLoopbackHost(host string) bool {
	if host == "localhost" {
		return true
	}
	ip := net.ParseIP(host)
	return ip != nil && ip.IsLoopback()
}
