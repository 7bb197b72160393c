package notifier

import (
	"context"
	"errors"
	"math/rand"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"shednotify/internal/eventbus"
	"shednotify/internal/transport"
	logx "shednotify/pkg/logx"
)

type fakeSender struct {
	channel string

	mu    sync.Mutex
	texts []string
	fails int // remaining failures before success
}

func (f *fakeSender) Channel() string { return f.channel }

func (f *fakeSender) Send(_ context.Context, text string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.fails > 0 {
		f.fails--
		return errors.New("boom")
	}
	f.texts = append(f.texts, text)
	return nil
}

func (f *fakeSender) sent() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]string(nil), f.texts...)
}

func testConfig() Config {
	return Config{
		Enabled:       true,
		Workers:       1,
		QueueSize:     8,
		RatePerSec:    100,
		RetryMax:      2,
		RetryBase:     time.Millisecond,
		RetryMaxDelay: 5 * time.Millisecond,
		DedupWindow:   time.Minute,
	}
}

func TestNotifyDelivers(t *testing.T) {
	snd := &fakeSender{channel: "log"}
	s := New(testConfig(), []transport.Sender{snd}, zeroLogger(), nil, nil)
	s.Start(context.Background())
	defer s.Stop(context.Background())

	require.NoError(t, s.Notify(context.Background(), transport.Message{Channel: "log", Text: "hello"}))
	require.Eventually(t, func() bool { return len(snd.sent()) == 1 }, time.Second, 5*time.Millisecond)
	assert.Equal(t, "hello", snd.sent()[0])

	h := s.History()
	require.Len(t, h, 1)
	assert.Equal(t, "log", h[0].Channel)
}

func TestNotifyDedup(t *testing.T) {
	snd := &fakeSender{channel: "log"}
	bus := eventbus.New()
	ch, unsub := bus.Subscribe(16)
	defer unsub()

	s := New(testConfig(), []transport.Sender{snd}, zeroLogger(), bus, nil)
	s.Start(context.Background())

	msg := transport.Message{Channel: "log", Text: "same", Key: "alert:15"}
	require.NoError(t, s.Notify(context.Background(), msg))
	require.NoError(t, s.Notify(context.Background(), msg))
	s.Stop(context.Background())

	assert.Equal(t, []string{"same"}, snd.sent())

	var types []string
	for len(ch) > 0 {
		types = append(types, (<-ch).Type)
	}
	assert.Contains(t, types, EventDeduped)
	assert.Contains(t, types, EventSent)
}

func TestNotifyRetries(t *testing.T) {
	snd := &fakeSender{channel: "log", fails: 2}
	s := New(testConfig(), []transport.Sender{snd}, zeroLogger(), nil, nil)
	s.Start(context.Background())

	require.NoError(t, s.Notify(context.Background(), transport.Message{Channel: "log", Text: "retry me"}))
	s.Stop(context.Background())

	assert.Equal(t, []string{"retry me"}, snd.sent())
}

func TestNotifyErrors(t *testing.T) {
	snd := &fakeSender{channel: "log"}

	cfg := testConfig()
	cfg.Enabled = false
	disabled := New(cfg, []transport.Sender{snd}, zeroLogger(), nil, nil)
	assert.ErrorIs(t, disabled.Notify(context.Background(), transport.Message{Channel: "log", Text: "x"}), ErrDisabled)

	s := New(testConfig(), []transport.Sender{snd}, zeroLogger(), nil, nil)
	assert.ErrorIs(t, s.Notify(context.Background(), transport.Message{Channel: "log", Text: "x"}), ErrStopped)

	s.Start(context.Background())
	defer s.Stop(context.Background())
	assert.ErrorIs(t, s.Notify(context.Background(), transport.Message{Channel: "sms", Text: "x"}), ErrUnknownChannel)
}

func TestSetSendersSwapsChannels(t *testing.T) {
	a := &fakeSender{channel: "log"}
	b := &fakeSender{channel: "telegram"}
	s := New(testConfig(), []transport.Sender{a}, zeroLogger(), nil, nil)
	assert.ElementsMatch(t, []string{"log"}, s.Channels())

	s.SetSenders([]transport.Sender{a, b, nil})
	assert.ElementsMatch(t, []string{"log", "telegram"}, s.Channels())
}

func TestRetryDelayCapped(t *testing.T) {
	cfg := Config{RetryBase: 100 * time.Millisecond, RetryMaxDelay: time.Second}
	rng := newRand()
	for attempt := 1; attempt < 10; attempt++ {
		d := retryDelay(cfg, attempt, rng)
		assert.Greater(t, d, time.Duration(0))
		assert.LessOrEqual(t, d, time.Second)
	}
}

func TestDedupKeyPrefersExplicitKey(t *testing.T) {
	a := dedupKey(transport.Message{Channel: "log", Text: "one", Key: "k"})
	b := dedupKey(transport.Message{Channel: "log", Text: "two", Key: "k"})
	c := dedupKey(transport.Message{Channel: "telegram", Text: "one", Key: "k"})
	assert.Equal(t, a, b)
	assert.NotEqual(t, a, c)
	assert.Empty(t, dedupKey(transport.Message{Text: "x"}))
}

func zeroLogger() logx.Logger { return logx.Nop() }

func newRand() *rand.Rand { return rand.New(rand.NewSource(1)) }
