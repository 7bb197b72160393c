package app

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"shednotify/internal/config"
	"shednotify/internal/esp"
	"shednotify/internal/eventbus"
	"shednotify/internal/metrics"
	"shednotify/internal/notifier"
	"shednotify/internal/storage"
	"shednotify/internal/transport"
	logx "shednotify/pkg/logx"
)

func espServer(t *testing.T, allowanceStatus int) *httptest.Server {
	t.Helper()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/api_allowance":
			if allowanceStatus != http.StatusOK {
				w.WriteHeader(allowanceStatus)
				_, _ = w.Write([]byte(`{"error":"nope"}`))
				return
			}
			_, _ = w.Write([]byte(`{"allowance":{"count":3,"limit":200,"type":"daily"}}`))
		case "/status":
			_, _ = w.Write([]byte(`{"status":{"eskom":{"name":"National","stage":"2","stage_updated":"2026-10-18T10:00:00+02:00","next_stages":[]}}}`))
		default:
			http.NotFound(w, r)
		}
	}))
	t.Cleanup(srv.Close)
	return srv
}

func writeConfig(t *testing.T, dir string, cfg map[string]any) string {
	t.Helper()
	b, err := json.Marshal(cfg)
	require.NoError(t, err)
	path := filepath.Join(dir, "config.json")
	require.NoError(t, os.WriteFile(path, b, 0o600))
	return path
}

func baseConfig(baseURL, dir string) map[string]any {
	return map[string]any{
		"esp":     map[string]any{"token": "t0k", "base_url": baseURL, "timeout": "2s"},
		"logging": map[string]any{"level": "error"},
		"storage": map[string]any{"driver": "file", "path": filepath.Join(dir, "store")},
	}
}

func TestNewRejectsForbiddenToken(t *testing.T) {
	dir := t.TempDir()
	srv := espServer(t, http.StatusForbidden)

	_, err := New(context.Background(), writeConfig(t, dir, baseConfig(srv.URL, dir)))
	require.Error(t, err)
	assert.True(t, esp.IsKind(err, esp.KindForbidden))
}

func TestNewMissingToken(t *testing.T) {
	dir := t.TempDir()
	cfg := baseConfig("http://127.0.0.1:1", dir)
	cfg["esp"] = map[string]any{"token": ""}

	_, err := New(context.Background(), writeConfig(t, dir, cfg))
	assert.ErrorIs(t, err, config.ErrTokenMissing)
}

func TestNewAllowanceCadence(t *testing.T) {
	dir := t.TempDir()
	srv := espServer(t, http.StatusOK)

	a, err := New(context.Background(), writeConfig(t, dir, baseConfig(srv.URL, dir)))
	require.NoError(t, err)
	defer a.store.Close()

	assert.Equal(t, 200, a.allowance.Limit)
	assert.Equal(t, "*/7 * * * *", a.engineCfg.StatusCadence.String())
}

func TestNewAllowanceFailureFallsBack(t *testing.T) {
	dir := t.TempDir()
	srv := espServer(t, http.StatusInternalServerError)

	a, err := New(context.Background(), writeConfig(t, dir, baseConfig(srv.URL, dir)))
	require.NoError(t, err)
	defer a.store.Close()

	assert.Equal(t, 50, a.allowance.Limit)
	assert.Equal(t, "*/30 * * * *", a.engineCfg.StatusCadence.String())
}

func TestNewRestoresSnapshot(t *testing.T) {
	dir := t.TempDir()
	srv := espServer(t, http.StatusOK)

	st, err := storage.Open(storage.Config{Driver: "file", Path: filepath.Join(dir, "store")}, logx.Nop())
	require.NoError(t, err)
	fetched := time.Date(2026, 10, 18, 9, 30, 0, 0, time.UTC)
	require.NoError(t, st.SaveSnapshot(context.Background(), storage.Snapshot{
		FetchedAt: fetched,
		Predicted: fetched.Add(30 * time.Minute),
		Statuses:  esp.StatusMap{esp.National: {Name: "National", Stage: "4"}},
	}))
	require.NoError(t, st.Close())

	a, err := New(context.Background(), writeConfig(t, dir, baseConfig(srv.URL, dir)))
	require.NoError(t, err)
	defer a.store.Close()

	snap := a.loop.Snapshot()
	assert.True(t, snap.FetchedAt.Equal(fetched))
	assert.True(t, snap.Predicted.IsZero(), "predicted is only set by a live fetch")
	stage, ok := snap.NationalStage()
	assert.True(t, ok)
	assert.Equal(t, "4", stage)
}

func TestStartStop(t *testing.T) {
	dir := t.TempDir()
	srv := espServer(t, http.StatusOK)

	a, err := New(context.Background(), writeConfig(t, dir, baseConfig(srv.URL, dir)))
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	require.NoError(t, a.Start(ctx))

	doc := a.Status()
	assert.Equal(t, "*/7 * * * *", doc.Cadence)
	assert.Contains(t, doc.Supervisors, "app")
	_, err = json.Marshal(doc)
	require.NoError(t, err)

	stopCtx, stopCancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer stopCancel()
	require.NoError(t, a.Stop(stopCtx))

	select {
	case <-a.Done():
	default:
		t.Fatal("app context still open after Stop")
	}
	assert.NoError(t, a.Err())
}

type captureSender struct {
	channel string
	mu      sync.Mutex
	texts   []string
}

func (c *captureSender) Channel() string { return c.channel }

func (c *captureSender) Send(_ context.Context, text string) error {
	c.mu.Lock()
	c.texts = append(c.texts, text)
	c.mu.Unlock()
	return nil
}

func (c *captureSender) sent() []string {
	c.mu.Lock()
	defer c.mu.Unlock()
	return append([]string(nil), c.texts...)
}

func TestAlertNotifierQueuesPerChannel(t *testing.T) {
	logSnd := &captureSender{channel: "log"}
	tgSnd := &captureSender{channel: "telegram"}
	n := notifier.New(notifier.Config{Enabled: true, RatePerSec: 100, DedupWindow: time.Hour},
		[]transport.Sender{logSnd, tgSnd}, logx.Nop(), nil, nil)
	n.Start(context.Background())

	an := &alertNotifier{notif: n, stage: func() (string, bool) { return "3", true }}
	predicted := time.Date(2026, 10, 18, 18, 0, 0, 0, time.UTC)
	require.NoError(t, an.NotifyApproaching(context.Background(), 15, predicted))
	// Same offset and prediction is deduplicated.
	require.NoError(t, an.NotifyApproaching(context.Background(), 15, predicted))
	n.Stop(context.Background())

	want := "Load shedding expected in about 15 minutes (at 18:00), national stage 3"
	assert.Equal(t, []string{"⚠️ " + want}, logSnd.sent())
	assert.Equal(t, []string{"⚠️ " + want}, tgSnd.sent())
}

func TestFormatAlert(t *testing.T) {
	at := time.Date(2026, 10, 18, 7, 5, 0, 0, time.UTC)
	tests := []struct {
		stage string
		want  string
	}{
		{"", "Load shedding expected in about 5 minutes (at 07:05)"},
		{"0", "Load shedding expected in about 5 minutes (at 07:05)"},
		{"6", "Load shedding expected in about 5 minutes (at 07:05), national stage 6"},
	}
	for _, tt := range tests {
		t.Run(fmt.Sprintf("stage=%q", tt.stage), func(t *testing.T) {
			assert.Equal(t, tt.want, formatAlert(5, at, tt.stage))
		})
	}
}

func TestRecorderPersistsEvents(t *testing.T) {
	st, err := storage.Open(storage.Config{Driver: "file", Path: filepath.Join(t.TempDir(), "store")}, logx.Nop())
	require.NoError(t, err)
	defer st.Close()

	m := metrics.New(nil)
	r := &recorder{log: logx.Nop(), store: st, metrics: m}
	ctx := context.Background()
	now := time.Date(2026, 10, 18, 12, 0, 0, 0, time.UTC)

	r.handle(ctx, eventbus.Event{Type: eventbus.StatusUpdated, Data: eventbus.StatusUpdate{
		FetchedAt: now, Predicted: now.Add(30 * time.Minute), Took: 120 * time.Millisecond,
		Statuses: esp.StatusMap{esp.National: {Stage: "1"}},
	}})
	r.handle(ctx, eventbus.Event{Type: eventbus.AlertFired, Data: eventbus.AlertPayload{
		ID: "a1", Offset: 15, Predicted: now.Add(30 * time.Minute), FiredAt: now.Add(15 * time.Minute),
	}})
	r.handle(ctx, eventbus.Event{Type: notifier.EventSent, Data: notifier.NotificationEvent{Channel: "log"}})

	snap, ok, err := st.LoadSnapshot(ctx)
	require.NoError(t, err)
	require.True(t, ok)
	assert.True(t, snap.Predicted.Equal(now.Add(30*time.Minute)))
	assert.Equal(t, "1", snap.Statuses[esp.National].Stage)

	alerts, err := st.RecentAlerts(ctx, 5)
	require.NoError(t, err)
	require.Len(t, alerts, 1)
	assert.Equal(t, "a1", alerts[0].ID)
	assert.Equal(t, 15, alerts[0].Offset)
}

func TestMapEngineConfigOverride(t *testing.T) {
	cfg := &config.Config{Engine: config.EngineConfig{Cadence: "15m", Offsets: []int{30}}}
	ec, err := mapEngineConfig(cfg, esp.Allowance{Limit: 50})
	require.NoError(t, err)
	assert.Equal(t, "@every 15m0s", ec.StatusCadence.String())
	assert.Equal(t, []int{30}, ec.Offsets)
	assert.Equal(t, time.Second, ec.Tick)
}

func TestMapNotifierDefaults(t *testing.T) {
	nc, err := mapNotifierConfig(&config.Config{})
	require.NoError(t, err)
	assert.True(t, nc.Enabled)
	assert.Equal(t, 3, nc.RetryMax)
	assert.Equal(t, 2*time.Hour, nc.DedupWindow)

	senders, err := buildSenders(&config.Config{}, logx.Nop())
	require.NoError(t, err)
	require.Len(t, senders, 1)
	assert.Equal(t, "log", senders[0].Channel())
}

func TestMapOpsConfig(t *testing.T) {
	oc, err := mapOpsConfig(&config.Config{Ops: config.OpsConfig{Enabled: true, Token: " x "}})
	require.NoError(t, err)
	assert.Equal(t, config.DefaultOpsAddr, oc.Addr)
	assert.Equal(t, "x", oc.Token)
	assert.Equal(t, 5*time.Second, oc.ReadTimeout)
	assert.Zero(t, oc.WriteTimeout)
}
