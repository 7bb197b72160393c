package config

import (
	"reflect"
	"sort"
	"strings"

	logx "shednotify/pkg/logx"
)

// Sections applied live by the app. Anything else needs a restart.
var hotSections = map[string]bool{"areas": true, "logging": true, "notifier": true, "ops": true, "telegram": true}

// SummarizeConfigChange returns (1) the sorted list of changed sections,
// (2) safe structured attrs for logging (never tokens), and (3) the subset
// of changed sections that only take effect after a restart.
func SummarizeConfigChange(oldCfg, newCfg *Config) ([]string, []logx.Field, []string) {
	if oldCfg == nil {
		oldCfg = &Config{}
	}
	if newCfg == nil {
		newCfg = &Config{}
	}

	changed := make([]string, 0, 8)
	attrs := make([]logx.Field, 0, 16)

	// ESP (never log token)
	if oldCfg.ESP.Token != newCfg.ESP.Token ||
		strings.TrimSpace(oldCfg.ESP.BaseURL) != strings.TrimSpace(newCfg.ESP.BaseURL) ||
		oldCfg.ESP.ResolveTimeout() != newCfg.ESP.ResolveTimeout() ||
		oldCfg.ESP.BudgetGuardEnabled() != newCfg.ESP.BudgetGuardEnabled() {
		changed = append(changed, "esp")
		attrs = append(attrs,
			logx.Bool("esp.token_changed", oldCfg.ESP.Token != newCfg.ESP.Token),
			logx.Duration("esp.timeout", newCfg.ESP.ResolveTimeout()),
			logx.Bool("esp.budget_guard", newCfg.ESP.BudgetGuardEnabled()),
		)
	}

	if !reflect.DeepEqual(oldCfg.Engine, newCfg.Engine) {
		changed = append(changed, "engine")
		attrs = append(attrs,
			logx.String("engine.cadence", strings.TrimSpace(newCfg.Engine.Cadence)),
			logx.Any("engine.offsets", newCfg.Engine.Offsets),
			logx.Duration("engine.tick", newCfg.Engine.ResolveTick()),
		)
	}

	if !reflect.DeepEqual(oldCfg.Areas, newCfg.Areas) {
		changed = append(changed, "areas")
		attrs = append(attrs, logx.Int("areas.count", len(newCfg.Areas)))
	}

	if !reflect.DeepEqual(oldCfg.Logging, newCfg.Logging) {
		changed = append(changed, "logging")
		attrs = append(attrs,
			logx.String("logging.level", newCfg.Logging.Level),
			logx.Bool("logging.console", newCfg.Logging.Console),
			logx.Bool("logging.file_enabled", newCfg.Logging.File.Enabled),
		)
	}

	// Ops (never log token)
	oOps, nOps := oldCfg.Ops, newCfg.Ops
	oOps.Token, nOps.Token = "", ""
	if !reflect.DeepEqual(oOps, nOps) || (oldCfg.Ops.Token != "") != (newCfg.Ops.Token != "") {
		changed = append(changed, "ops")
		attrs = append(attrs,
			logx.Bool("ops.enabled", newCfg.Ops.Enabled),
			logx.String("ops.addr", newCfg.Ops.ResolveAddr()),
			logx.Bool("ops.token_set", strings.TrimSpace(newCfg.Ops.Token) != ""),
			logx.Bool("ops.pprof", newCfg.Ops.Pprof),
		)
	}

	// Nil notifier means runtime defaults.
	oldN, newN := oldCfg.NotifierOrDefault(), newCfg.NotifierOrDefault()
	if !reflect.DeepEqual(oldN, newN) {
		changed = append(changed, "notifier")
		attrs = append(attrs,
			logx.Bool("notifier.enabled", newN.Enabled),
			logx.Any("notifier.channels", newN.Channels),
			logx.Int("notifier.workers", newN.Workers),
			logx.Int("notifier.rate_per_sec", newN.RatePerSec),
			logx.Bool("notifier.persist_dedup", newN.PersistDedup),
		)
	}

	var oTG, nTG TelegramConfig
	if oldCfg.Telegram != nil {
		oTG = *oldCfg.Telegram
	}
	if newCfg.Telegram != nil {
		nTG = *newCfg.Telegram
	}
	if !reflect.DeepEqual(oTG, nTG) {
		changed = append(changed, "telegram")
		attrs = append(attrs,
			logx.Bool("telegram.token_set", strings.TrimSpace(nTG.Token) != ""),
			logx.Int("telegram.chat_count", len(nTG.ChatIDs)),
		)
	}

	// Nil storage means disabled.
	var oS, nS StorageConfig
	if oldCfg.Storage != nil {
		oS = *oldCfg.Storage
	}
	if newCfg.Storage != nil {
		nS = *newCfg.Storage
	}
	if oS != nS {
		changed = append(changed, "storage")
		attrs = append(attrs,
			logx.String("storage.driver", strings.TrimSpace(nS.Driver)),
			logx.Bool("storage.path_set", strings.TrimSpace(nS.Path) != ""),
		)
	}

	sort.Strings(changed)
	restart := make([]string, 0, len(changed))
	for _, s := range changed {
		if !hotSections[s] {
			restart = append(restart, s)
		}
	}
	return changed, attrs, restart
}
