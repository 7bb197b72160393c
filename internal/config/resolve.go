package config

import (
	"strings"
	"time"

	"shednotify/internal/esp"
	logx "shednotify/pkg/logx"
)

const (
	ChannelLog      = "log"
	ChannelTelegram = "telegram"

	DefaultOpsAddr = "127.0.0.1:9273"
)

// Errors are ignored below; Validate has already rejected bad values.

func (c ESPConfig) ResolveTimeout() time.Duration {
	d, _ := ParseDurationOrDefault("esp.timeout", c.Timeout, esp.DefaultTimeout)
	return d
}

func (c ESPConfig) BudgetGuardEnabled() bool { return c.BudgetGuard == nil || *c.BudgetGuard }

func (e EngineConfig) ResolveTick() time.Duration {
	d, _ := ParseDurationOrDefault("engine.tick", e.Tick, time.Second)
	return d
}

// ResolveLocation returns the configured zone, or time.Local.
func (e EngineConfig) ResolveLocation() *time.Location {
	if tz := strings.TrimSpace(e.Timezone); tz != "" {
		if loc, err := time.LoadLocation(tz); err == nil {
			return loc
		}
	}
	return time.Local
}

// NotifierOrDefault returns the notifier section with an omitted section
// meaning enabled with the log channel.
func (c *Config) NotifierOrDefault() NotifierConfig {
	if c.Notifier == nil {
		return NotifierConfig{Enabled: true, Channels: []string{ChannelLog}}
	}
	n := *c.Notifier
	n.Channels = append([]string(nil), n.Channels...)
	if len(n.Channels) == 0 {
		n.Channels = []string{ChannelLog}
	}
	for i := range n.Channels {
		n.Channels[i] = strings.ToLower(strings.TrimSpace(n.Channels[i]))
	}
	return n
}

// DefaultArea returns the first configured area id, or "".
func (c *Config) DefaultArea() string {
	if len(c.Areas) == 0 {
		return ""
	}
	return strings.TrimSpace(c.Areas[0].ID)
}

func (o OpsConfig) ResolveAddr() string {
	if a := strings.TrimSpace(o.Addr); a != "" {
		return a
	}
	return DefaultOpsAddr
}

func (l LoggingConfig) Logx() logx.Config {
	return logx.Config{
		Level:   l.Level,
		Console: l.Console,
		File:    logx.FileConfig{Enabled: l.File.Enabled, Path: l.File.Path},
	}
}

// LogxConfig is the logging section plus every configured credential, which
// the log service masks in its output.
func (c *Config) LogxConfig() logx.Config {
	out := c.Logging.Logx()
	if t := strings.TrimSpace(c.ESP.Token); t != "" {
		out.Redact = append(out.Redact, t)
	}
	if c.Telegram != nil {
		if t := strings.TrimSpace(c.Telegram.Token); t != "" {
			out.Redact = append(out.Redact, t)
		}
	}
	return out
}
