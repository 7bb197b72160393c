package storage

import (
	"context"
	"errors"
	"strings"
	"time"

	logx "shednotify/pkg/logx"
)

// Store is the persistence API used by the app and notifier.
type Store interface {
	SaveSnapshot(ctx context.Context, s Snapshot) error
	// LoadSnapshot returns ok=false when nothing has been saved yet.
	LoadSnapshot(ctx context.Context) (s Snapshot, ok bool, err error)

	AppendFetch(ctx context.Context, r FetchRecord) error
	AppendAlert(ctx context.Context, r AlertRecord) error
	// RecentAlerts returns up to limit alerts, newest first.
	RecentAlerts(ctx context.Context, limit int) ([]AlertRecord, error)

	PutDedup(ctx context.Context, key string, until time.Time) error
	GetDedup(ctx context.Context, key string) (until time.Time, ok bool, err error)
	Close() error
}

// Open initializes the configured store.
// It returns (nil, nil) if storage is disabled.
func Open(cfg Config, log logx.Logger) (Store, error) {
	driver := strings.ToLower(strings.TrimSpace(cfg.Driver))
	if driver == "none" {
		return nil, nil
	}
	if driver == "" {
		if strings.TrimSpace(cfg.Path) == "" {
			return nil, nil
		}
		driver = "file"
	}
	if log.IsZero() {
		log = logx.Nop()
	}

	switch driver {
	case "file":
		return openFile(cfg, log)
	case "sqlite", "sqlite3":
		return openSQLite(cfg, log)
	default:
		return nil, errors.New("unknown storage driver: " + driver)
	}
}
