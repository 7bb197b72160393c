package app

import (
	"context"
	"time"

	"shednotify/internal/eventbus"
	"shednotify/internal/metrics"
	"shednotify/internal/notifier"
	"shednotify/internal/storage"
	logx "shednotify/pkg/logx"
)

// recorder persists loop events and counts notifier outcomes. It runs on
// its own goroutine so storage latency never delays a tick.
type recorder struct {
	log     logx.Logger
	store   storage.Store
	metrics *metrics.Metrics
}

func (r *recorder) run(ctx context.Context, events <-chan eventbus.Event) error {
	for {
		select {
		case <-ctx.Done():
			return nil
		case e, ok := <-events:
			if !ok {
				return nil
			}
			r.handle(ctx, e)
		}
	}
}

func (r *recorder) handle(ctx context.Context, e eventbus.Event) {
	if ne, ok := e.Data.(notifier.NotificationEvent); ok {
		if r.metrics != nil {
			r.metrics.NotifyEvent(ne.Channel, e.Type)
		}
		return
	}
	if r.store == nil {
		return
	}

	cctx, cancel := context.WithTimeout(ctx, 2*time.Second)
	defer cancel()

	var err error
	switch d := e.Data.(type) {
	case eventbus.StatusUpdate:
		err = r.store.SaveSnapshot(cctx, storage.Snapshot{FetchedAt: d.FetchedAt, Predicted: d.Predicted, Statuses: d.Statuses})
		if err == nil {
			err = r.store.AppendFetch(cctx, storage.FetchRecord{At: d.FetchedAt, Result: "ok", TookMS: d.Took.Milliseconds()})
		}
	case eventbus.StatusFailure:
		rec := storage.FetchRecord{At: d.FailedAt, Result: string(d.Kind), TookMS: d.Took.Milliseconds()}
		if d.Err != nil {
			rec.Detail = d.Err.Error()
		}
		err = r.store.AppendFetch(cctx, rec)
	case eventbus.AlertPayload:
		err = r.store.AppendAlert(cctx, storage.AlertRecord{ID: d.ID, Offset: d.Offset, Predicted: d.Predicted, At: d.FiredAt})
	default:
		return
	}
	if err != nil {
		r.log.Warn("persist event failed", logx.String("type", e.Type), logx.Err(err))
	}
}
