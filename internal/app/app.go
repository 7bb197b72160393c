package app

import (
	"context"
	"fmt"
	"time"

	"shednotify/internal/config"
	"shednotify/internal/esp"
	"shednotify/internal/eventbus"
	"shednotify/internal/metrics"
	"shednotify/internal/notifier"
	"shednotify/internal/ops"
	"shednotify/internal/runtime/sdnotify"
	rtsup "shednotify/internal/runtime/supervisor"
	"shednotify/internal/storage"
	"shednotify/internal/task/engine"
	"shednotify/internal/task/scheduler"
	logx "shednotify/pkg/logx"
)

// App wires the scheduler loop to its collaborators and owns their
// lifecycle.
type App struct {
	cfgm *config.ConfigManager
	sup  *rtsup.Supervisor

	log   logx.Logger
	logs  *logx.Service
	bus   eventbus.Bus
	store storage.Store

	client    *esp.Client
	allowance esp.Allowance
	engineCfg engine.Config
	loop      *engine.Loop

	notif   *notifier.Service
	ops     *ops.Service
	metrics *metrics.Metrics
	sd      *sdnotify.Notifier

	startedAt time.Time
}

// New loads the config, checks the token against the allowance endpoint
// and builds every component. A missing or rejected token is fatal.
func New(ctx context.Context, cfgPath string) (*App, error) {
	cfgm := config.NewConfigManager(cfgPath)
	cfg, err := cfgm.Load(ctx)
	if err != nil {
		return nil, err
	}

	logSvc, log := logx.New(cfg.LogxConfig())
	log = log.With(logx.Component("app"))

	client, err := NewClient(cfg, log)
	if err != nil {
		return nil, err
	}

	al, err := client.Allowance(ctx)
	switch {
	case esp.IsKind(err, esp.KindForbidden):
		return nil, fmt.Errorf("esp token rejected: %w", err)
	case err != nil:
		// Keep going on the free-tier cadence; polling errors surface later.
		log.Warn("allowance check failed; assuming free tier", logx.String("kind", string(esp.KindOf(err))), logx.Err(err))
		al = esp.Allowance{Limit: 50}
	default:
		log.Info("esp allowance", logx.Int("count", al.Count), logx.Int("limit", al.Limit), logx.String("type", al.Type))
	}

	engCfg, err := mapEngineConfig(cfg, al)
	if err != nil {
		return nil, err
	}

	bus := eventbus.New()
	m := metrics.New(bus)

	sc, err := mapStorageConfig(cfg)
	if err != nil {
		return nil, err
	}
	store, err := storage.Open(sc, log.With(logx.Component("storage")))
	if err != nil {
		return nil, err
	}
	if store != nil {
		log.Info("storage enabled", logx.String("driver", sc.Driver), logx.String("path", sc.Path))
	}

	senders, err := buildSenders(cfg, log)
	if err != nil {
		return nil, err
	}
	ncfg, err := mapNotifierConfig(cfg)
	if err != nil {
		return nil, err
	}
	notif := notifier.New(ncfg, senders, log.With(logx.Component("notifier")), bus, store)

	var fetcher engine.Fetcher = client
	if cfg.ESP.BudgetGuardEnabled() {
		fetcher = esp.NewBudgetGuard(scheduler.DailyBudget(al.Limit), client)
	}

	loc := cfg.Engine.ResolveLocation()
	an := &alertNotifier{notif: notif}
	loop, err := engine.New(fetcher, an, engCfg,
		engine.WithClock(func() time.Time { return time.Now().In(loc) }),
		engine.WithLogger(log.With(logx.Component("engine"))),
		engine.WithBus(bus),
		engine.WithObserver(m),
	)
	if err != nil {
		return nil, err
	}
	an.stage = func() (string, bool) { return loop.Snapshot().NationalStage() }

	if store != nil {
		snap, ok, err := store.LoadSnapshot(ctx)
		if err != nil {
			log.Warn("load snapshot failed", logx.Err(err))
		} else if ok {
			loop.Restore(snap.Statuses, snap.FetchedAt)
			log.Info("restored last status", logx.Time("fetched_at", snap.FetchedAt), logx.Int("areas", len(snap.Statuses)))
		}
	}

	a := &App{
		cfgm:      cfgm,
		log:       log,
		logs:      logSvc,
		bus:       bus,
		store:     store,
		client:    client,
		allowance: al,
		engineCfg: engCfg,
		loop:      loop,
		notif:     notif,
		metrics:   m,
		sd:        sdnotify.New(log.With(logx.Component("systemd"))),
	}

	opsCfg, err := mapOpsConfig(cfg)
	if err != nil {
		return nil, err
	}
	a.ops = ops.New(opsCfg, log, func() any { return a.Status() }, m.Handler())
	return a, nil
}

// Done is closed when the app context is canceled.
func (a *App) Done() <-chan struct{} {
	if a.sup == nil {
		ch := make(chan struct{})
		close(ch)
		return ch
	}
	return a.sup.Context().Done()
}

// Err returns the first fatal error seen by the supervisor.
func (a *App) Err() error {
	if a.sup == nil {
		return nil
	}
	return a.sup.Err()
}

func (a *App) Start(ctx context.Context) error {
	a.startedAt = time.Now()
	a.sup = rtsup.New(ctx, rtsup.WithLogger(a.log), rtsup.WithCancelOnError(true))
	a.cfgm.SetLogger(a.log.With(logx.Component("config")))

	// The notifier outlives the app context so Stop can drain queued alerts.
	if a.notif.Enabled() {
		a.notif.Start(context.WithoutCancel(ctx))
	}
	a.ops.Start(a.sup.Context())

	rec := &recorder{log: a.log.With(logx.Component("recorder")), store: a.store, metrics: a.metrics}
	events, unsub := a.bus.Subscribe(128, "status.", "alert.", "notifier.")
	a.sup.Go("events.record", func(c context.Context) error {
		defer unsub()
		return rec.run(c, events)
	})

	a.sup.Go("engine.loop", a.loop.Run)

	sub := a.cfgm.Subscribe(8)
	a.sup.Go("config.reload", func(c context.Context) error {
		defer a.cfgm.Unsubscribe(sub)
		a.reloadLoop(c, sub)
		return nil
	})
	a.sup.Go("config.watch", a.cfgm.Watch)

	if iv := sdnotify.WatchdogInterval(); iv > 0 {
		a.sup.Go("systemd.watchdog", func(c context.Context) error {
			return a.sd.Watchdog(c, iv, a.healthy)
		})
	}

	a.sd.Ready()
	a.sd.Status(fmt.Sprintf("polling %s", a.engineCfg.StatusCadence))
	a.log.Info("app started",
		logx.String("cadence", a.engineCfg.StatusCadence.String()),
		logx.Any("channels", a.notif.Channels()),
	)
	return nil
}

// healthy is false once the loop has terminated.
func (a *App) healthy() bool {
	snap := a.loop.Snapshot()
	return snap.Phase != engine.Terminated
}

func (a *App) Stop(ctx context.Context) error {
	if a.sup == nil {
		return nil
	}
	a.log.Info("stopping")
	a.sd.Stopping()

	a.sup.Cancel()

	// step runs fn bounded by max so one component can't stall the stop.
	step := func(name string, max time.Duration, fn func(context.Context) error) {
		start := time.Now()
		if dl, ok := ctx.Deadline(); ok {
			if rem := time.Until(dl); rem < max {
				max = rem
			}
		}
		if max <= 0 {
			a.log.Warn("stop step skipped; deadline reached", logx.String("name", name))
			return
		}
		stepCtx, cancel := context.WithTimeout(ctx, max)
		defer cancel()

		done := make(chan error, 1)
		go func() {
			defer func() {
				if r := recover(); r != nil {
					done <- fmt.Errorf("panic in stop step %s: %v", name, r)
				}
			}()
			done <- fn(stepCtx)
		}()

		select {
		case err := <-done:
			if err != nil {
				a.log.Warn("stop step error", logx.String("name", name), logx.Err(err))
			}
			a.log.Debug("stop step end", logx.String("name", name), logx.Duration("took", time.Since(start)))
		case <-stepCtx.Done():
			a.log.Warn("stop step deadline reached (continuing)", logx.String("name", name), logx.Duration("elapsed", time.Since(start)))
		}
	}

	// The loop and recorder exit on cancel; wait for them before closing storage.
	step("supervisor", 3*time.Second, func(c context.Context) error { return a.sup.Wait(c) })
	step("notifier", 2*time.Second, func(c context.Context) error { a.notif.Stop(c); return nil })
	step("ops", time.Second, func(c context.Context) error { a.ops.Stop(c); return nil })
	step("storage", time.Second, func(context.Context) error {
		if a.store != nil {
			return a.store.Close()
		}
		return nil
	})

	a.log.Info("stopped")
	if a.logs != nil {
		_ = a.logs.Close()
	}
	return nil
}
