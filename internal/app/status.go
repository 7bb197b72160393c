package app

import (
	"context"
	"time"

	"shednotify/internal/esp"
	"shednotify/internal/notifier"
	rtsup "shednotify/internal/runtime/supervisor"
	"shednotify/internal/storage"
	"shednotify/internal/task/engine"
)

// StatusDoc is served at /status on the ops server.
type StatusDoc struct {
	StartedAt     time.Time                `json:"started_at"`
	Cadence       string                   `json:"cadence"`
	Allowance     esp.Allowance            `json:"allowance"`
	Engine        engine.Snapshot          `json:"engine"`
	Notifications []notifier.HistoryItem   `json:"notifications"`
	RecentAlerts  []storage.AlertRecord    `json:"recent_alerts,omitempty"`
	Supervisors   map[string][]rtsup.Stats `json:"supervisors"`
	BusDropped    uint64                   `json:"bus_dropped"`
}

func (a *App) Status() StatusDoc {
	doc := StatusDoc{
		StartedAt:     a.startedAt,
		Cadence:       a.engineCfg.StatusCadence.String(),
		Allowance:     a.allowance,
		Engine:        a.loop.Snapshot(),
		Notifications: a.notif.History(),
		Supervisors:   map[string][]rtsup.Stats{},
		BusDropped:    a.bus.Dropped(),
	}
	for name, sup := range map[string]*rtsup.Supervisor{"app": a.sup, "notifier": a.notif.Supervisor(), "ops": a.ops.Supervisor()} {
		if sup != nil {
			doc.Supervisors[name] = sup.Snapshot()
		}
	}
	if a.store != nil {
		ctx, cancel := context.WithTimeout(context.Background(), 500*time.Millisecond)
		defer cancel()
		if recs, err := a.store.RecentAlerts(ctx, 10); err == nil {
			doc.RecentAlerts = recs
		}
	}
	return doc
}
