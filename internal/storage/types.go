package storage

import (
	"errors"
	"time"

	"shednotify/internal/esp"
)

var ErrDisabled = errors.New("storage disabled")

// Config configures storage.
//
// Driver values:
//   - "file": YAML snapshot plus JSON Lines logs
//   - "sqlite": SQLite database file (modernc.org/sqlite, no cgo)
//
// If Driver is empty or "none", storage is disabled.
type Config struct {
	Driver      string
	Path        string
	BusyTimeout time.Duration // sqlite only; 0 means default
}

// Snapshot is the last successful status fetch.
type Snapshot struct {
	FetchedAt time.Time     `json:"fetched_at" yaml:"fetched_at"`
	Predicted time.Time     `json:"predicted" yaml:"predicted"`
	Statuses  esp.StatusMap `json:"statuses" yaml:"statuses"`
}

// FetchRecord is one status call outcome. Result is "ok" or an esp error kind.
type FetchRecord struct {
	At     time.Time `json:"at"`
	Result string    `json:"result"`
	Detail string    `json:"detail,omitempty"`
	TookMS int64     `json:"took_ms"`
}

// AlertRecord is one fired alert.
type AlertRecord struct {
	ID        string    `json:"id"`
	Offset    int       `json:"offset"`
	Predicted time.Time `json:"predicted"`
	At        time.Time `json:"at"`
}
