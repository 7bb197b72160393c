package engine

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"

	"shednotify/internal/esp"
	"shednotify/internal/eventbus"
	"shednotify/internal/task/scheduler"
	"shednotify/internal/task/window"
	logx "shednotify/pkg/logx"
)

type alarm struct {
	offset int
	state  *scheduler.State
}

// Loop polls the status API on its cadence and fires alerts ahead of the
// predicted event. Step and Run must be called from a single goroutine;
// Snapshot is safe from any goroutine.
type Loop struct {
	fetcher  Fetcher
	notifier Notifier
	log      logx.Logger
	bus      eventbus.Bus
	obs      Observer
	now      func() time.Time
	tick     time.Duration

	status  *scheduler.State
	alarms  []alarm
	pending *pending

	mu        sync.Mutex
	phase     Phase
	predicted time.Time
	fetchedAt time.Time
	statuses  esp.StatusMap
	skipped   uint64
	lastErr   error
	lastErrAt time.Time
	nextFetch time.Time
	alarmNext []AlarmSnapshot
}

type Option func(*Loop)

// WithClock replaces time.Now. Tests use it to drive simulated time.
func WithClock(now func() time.Time) Option {
	return func(l *Loop) {
		if now != nil {
			l.now = now
		}
	}
}

func WithLogger(log logx.Logger) Option { return func(l *Loop) { l.log = log } }

func WithBus(bus eventbus.Bus) Option { return func(l *Loop) { l.bus = bus } }

func WithObserver(obs Observer) Option {
	return func(l *Loop) {
		if obs != nil {
			l.obs = obs
		}
	}
}

// New builds a loop in the Idle phase with every clock primed from now.
func New(f Fetcher, n Notifier, cfg Config, opts ...Option) (*Loop, error) {
	if f == nil {
		return nil, ErrNoFetcher
	}
	if n == nil {
		return nil, ErrNoNotifier
	}
	offsets := cfg.Offsets
	if len(offsets) == 0 {
		offsets = DefaultOffsets
	}
	seen := make(map[int]struct{}, len(offsets))
	for _, off := range offsets {
		if off < 1 || off > 60 {
			return nil, fmt.Errorf("%w: %d", ErrInvalidOffset, off)
		}
		if _, dup := seen[off]; dup {
			return nil, fmt.Errorf("%w: %d", ErrDuplicate, off)
		}
		seen[off] = struct{}{}
	}

	l := &Loop{
		fetcher:  f,
		notifier: n,
		log:      logx.Nop(),
		obs:      nopObserver{},
		now:      time.Now,
		tick:     cfg.Tick,
	}
	for _, o := range opts {
		o(l)
	}
	if l.tick <= 0 {
		l.tick = DefaultTick
	}

	now := l.now()
	l.status = scheduler.NewState(cfg.StatusCadence, now)
	sorted := append([]int(nil), offsets...)
	sort.Sort(sort.Reverse(sort.IntSlice(sorted)))
	for _, off := range sorted {
		l.alarms = append(l.alarms, alarm{offset: off, state: scheduler.NewState(scheduler.MarkCadence(off), now)})
	}
	l.publishClocks()
	return l, nil
}

// Restore seeds the last known statuses, e.g. from storage after a restart.
// The predicted event time is not restored; it is only set by a live fetch.
func (l *Loop) Restore(statuses esp.StatusMap, fetchedAt time.Time) {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.fetchedAt.IsZero() {
		l.statuses = statuses
		l.fetchedAt = fetchedAt
	}
}

// Run drives Step from a ticker until ctx is done.
func (l *Loop) Run(ctx context.Context) error {
	l.log.Info("scheduler loop started",
		logx.String("cadence", l.status.Cadence.String()),
		logx.Time("next_fetch", l.status.Next),
		logx.Duration("tick", l.tick),
	)
	t := time.NewTicker(l.tick)
	defer t.Stop()
	for {
		if !l.Step(ctx) {
			return nil
		}
		select {
		case <-ctx.Done():
		case <-t.C:
		}
	}
}

// Step runs one tick. It returns false once the loop has terminated.
func (l *Loop) Step(ctx context.Context) bool {
	if l.Phase() == Terminated {
		return false
	}
	select {
	case <-ctx.Done():
		l.terminate()
		return false
	default:
	}

	now := l.now()

	if l.pending != nil {
		if res, ok := l.pending.poll(); ok {
			l.complete(now, l.pending, res)
			l.pending = nil
		}
	}

	if l.status.AdvanceIfDue(now) {
		if l.pending == nil {
			l.begin(ctx, now)
		} else {
			l.mu.Lock()
			l.skipped++
			l.mu.Unlock()
			l.obs.FetchSkipped()
			l.log.Warn("status fetch still running, skipping cadence",
				logx.String("fetch_id", l.pending.id),
				logx.Duration("running_for", now.Sub(l.pending.started)),
			)
		}
	}

	predicted := l.Predicted()
	for i := range l.alarms {
		a := &l.alarms[i]
		if !a.state.AdvanceIfDue(now) {
			continue
		}
		if predicted.IsZero() {
			l.log.Debug("no predicted event yet", logx.Int("offset", a.offset))
			continue
		}
		if !window.InWindow(a.offset, predicted, now) {
			l.log.Debug("outside alert window",
				logx.Int("offset", a.offset),
				logx.Duration("delta", window.Delta(predicted, now)),
			)
			continue
		}
		l.fire(ctx, a.offset, predicted, now)
	}

	l.publishClocks()
	return true
}

func (l *Loop) begin(ctx context.Context, now time.Time) {
	id := uuid.NewString()
	// Detached from shutdown; the HTTP client timeout bounds the call.
	l.pending = startFetch(context.WithoutCancel(ctx), l.fetcher, id, now)
	l.setPhase(Fetching)
	l.obs.FetchStarted()
	l.log.Debug("status fetch started", logx.String("fetch_id", id))
}

func (l *Loop) complete(now time.Time, p *pending, res fetchResult) {
	if res.err != nil {
		kind := esp.KindOf(res.err)
		if kind == "" {
			kind = esp.KindUnknown
		}
		l.mu.Lock()
		l.phase = Idle
		l.lastErr = res.err
		l.lastErrAt = now
		l.mu.Unlock()
		l.obs.FetchFinished(kind, res.took)

		fields := []logx.Field{logx.String("fetch_id", p.id), logx.String("kind", string(kind)), logx.Err(res.err)}
		switch kind {
		case esp.KindWorkerPanic:
			l.log.Error("status worker panicked", append(fields, logx.String("stack", string(res.stack)))...)
		case esp.KindTooManyRequests, esp.KindForbidden:
			l.log.Error("status fetch failed", fields...)
		default:
			l.log.Warn("status fetch failed", fields...)
		}
		if l.bus != nil {
			l.bus.Publish(eventbus.Event{Type: eventbus.StatusFailed, Time: now, Data: eventbus.StatusFailure{FailedAt: now, Kind: kind, Err: res.err, Took: res.took}})
		}
		return
	}

	predicted := l.status.Next
	l.mu.Lock()
	l.phase = Idle
	l.statuses = res.statuses
	l.fetchedAt = now
	l.predicted = predicted
	l.mu.Unlock()
	l.obs.FetchFinished("", res.took)

	l.log.Info("status updated",
		logx.String("fetch_id", p.id),
		logx.Int("areas", len(res.statuses)),
		logx.Time("predicted", predicted),
		logx.Duration("took", res.took),
	)
	if l.bus != nil {
		l.bus.Publish(eventbus.Event{Type: eventbus.StatusUpdated, Time: now, Data: eventbus.StatusUpdate{FetchedAt: now, Statuses: res.statuses, Predicted: predicted, Took: res.took}})
	}
}

func (l *Loop) fire(ctx context.Context, offset int, predicted, now time.Time) {
	l.obs.AlertFired(offset)
	l.log.Info("event approaching", logx.Int("offset", offset), logx.Time("predicted", predicted))
	if err := l.notifier.NotifyApproaching(ctx, offset, predicted); err != nil {
		l.log.Warn("notify failed", logx.Int("offset", offset), logx.Err(err))
	}
	if l.bus != nil {
		l.bus.Publish(eventbus.Event{Type: eventbus.AlertFired, Time: now, Data: eventbus.AlertPayload{ID: uuid.NewString(), Offset: offset, Predicted: predicted, FiredAt: now}})
	}
}

func (l *Loop) terminate() {
	l.mu.Lock()
	prev := l.phase
	l.phase = Terminated
	l.mu.Unlock()
	if prev != Terminated {
		l.log.Info("scheduler loop terminated", logx.String("phase", prev.String()))
	}
}

func (l *Loop) setPhase(p Phase) {
	l.mu.Lock()
	l.phase = p
	l.mu.Unlock()
}

func (l *Loop) publishClocks() {
	next := make([]AlarmSnapshot, len(l.alarms))
	for i, a := range l.alarms {
		next[i] = AlarmSnapshot{Offset: a.offset, Next: a.state.Next}
	}
	l.mu.Lock()
	l.nextFetch = l.status.Next
	l.alarmNext = next
	l.mu.Unlock()
}

func (l *Loop) Phase() Phase {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.phase
}

// Predicted returns the predicted event time, zero until the first successful fetch.
func (l *Loop) Predicted() time.Time {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.predicted
}

func (l *Loop) Snapshot() Snapshot {
	l.mu.Lock()
	defer l.mu.Unlock()
	s := Snapshot{
		Phase:       l.phase,
		Predicted:   l.predicted,
		FetchedAt:   l.fetchedAt,
		NextFetch:   l.nextFetch,
		Statuses:    l.statuses,
		Alarms:      append([]AlarmSnapshot(nil), l.alarmNext...),
		Skipped:     l.skipped,
		LastErrorAt: l.lastErrAt,
	}
	if l.lastErr != nil {
		s.LastError = l.lastErr.Error()
		s.LastErrorKind = esp.KindOf(l.lastErr)
	}
	return s
}
