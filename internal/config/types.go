package config

// Config is the on-disk configuration. JSON and YAML files share this shape;
// unknown keys are rejected in both.
type Config struct {
	ESP     ESPConfig     `json:"esp"`
	Engine  EngineConfig  `json:"engine,omitempty"`
	Areas   []AreaConfig  `json:"areas,omitempty"`
	Logging LoggingConfig `json:"logging"`
	Ops     OpsConfig     `json:"ops,omitempty"`

	Notifier *NotifierConfig `json:"notifier,omitempty"`
	Telegram *TelegramConfig `json:"telegram,omitempty"`
	Storage  *StorageConfig  `json:"storage,omitempty"`
}

// ESPConfig configures the Eskom-se-Push API client.
//
// BudgetGuard is a pointer so an omitted key defaults to true.
type ESPConfig struct {
	Token       string `json:"token"`
	BaseURL     string `json:"base_url,omitempty"`
	Timeout     string `json:"timeout,omitempty"` // Go duration string, default "15s"
	BudgetGuard *bool  `json:"budget_guard,omitempty"`
}

// EngineConfig tunes the polling loop. All fields are optional.
//
//   - cadence: overrides the allowance-derived polling cadence
//     ("*/30 * * * *", "15m", "00:15", "@every 15m")
//   - offsets: alert offsets in minutes, default [55, 15, 5]
//   - tick: loop period, default "1s"
//   - timezone: IANA zone for cron evaluation, default local time
type EngineConfig struct {
	Cadence  string `json:"cadence,omitempty"`
	Offsets  []int  `json:"offsets,omitempty"`
	Tick     string `json:"tick,omitempty"`
	Timezone string `json:"timezone,omitempty"`
}

// AreaConfig is a saved area. The first entry is the default for "areas info".
type AreaConfig struct {
	ID   string `json:"id"`
	Name string `json:"name,omitempty"`
}

// NotifierConfig controls the async notification pipeline.
//
// All durations are Go duration strings (e.g. "500ms", "10s", "1m").
// If the whole section is omitted, the notifier is enabled with defaults
// and delivers to the "log" channel.
type NotifierConfig struct {
	Enabled         bool     `json:"enabled"`
	Channels        []string `json:"channels,omitempty"` // "log", "telegram"
	Workers         int      `json:"workers"`
	QueueSize       int      `json:"queue_size"`
	RatePerSec      int      `json:"rate_per_sec"`
	RetryMax        int      `json:"retry_max"`
	RetryBase       string   `json:"retry_base"`
	RetryMaxDelay   string   `json:"retry_max_delay"`
	DedupWindow     string   `json:"dedup_window"`
	DedupMaxEntries int      `json:"dedup_max_entries"`
	PersistDedup    bool     `json:"persist_dedup,omitempty"`
}

// TelegramConfig configures the telegram notification channel.
type TelegramConfig struct {
	Token    string  `json:"token"`
	ChatIDs  []int64 `json:"chat_ids"`
	ThreadID int     `json:"thread_id,omitempty"`
	Timeout  string  `json:"timeout,omitempty"` // Go duration string, default "10s"
}

// StorageConfig controls the optional persistence layer.
//
// Example:
//
//	"storage": { "driver": "file", "path": "./shednotify_store" }
type StorageConfig struct {
	Driver      string `json:"driver"`
	Path        string `json:"path"`
	BusyTimeout string `json:"busy_timeout,omitempty"` // Go duration string (sqlite)
}

// OpsConfig controls the optional ops HTTP server (health, status,
// metrics and pprof).
//
// Security note:
//   - Prefer binding to localhost (e.g. "127.0.0.1:9273").
//   - If you bind to a non-loopback address, set a token or explicitly allow_insecure.
type OpsConfig struct {
	Enabled       bool   `json:"enabled"`
	Addr          string `json:"addr,omitempty"`  // default: "127.0.0.1:9273"
	Token         string `json:"token,omitempty"` // optional bearer token (do not log)
	AllowInsecure bool   `json:"allow_insecure,omitempty"`
	Pprof         bool   `json:"pprof,omitempty"`

	ReadTimeout  string `json:"read_timeout,omitempty"`
	WriteTimeout string `json:"write_timeout,omitempty"`
	IdleTimeout  string `json:"idle_timeout,omitempty"`
}

type LoggingConfig struct {
	Level   string      `json:"level"`
	Console bool        `json:"console"`
	File    LoggingFile `json:"file"`
}

type LoggingFile struct {
	Enabled bool   `json:"enabled"`
	Path    string `json:"path"`
}
