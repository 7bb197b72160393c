package eventbus

import (
	"strings"
	"sync"
	"sync/atomic"
	"time"
)

// Event types published by the scheduler loop. The notifier publishes its
// own "notifier.*" types.
const (
	// StatusUpdated carries a StatusUpdate after a successful fetch.
	StatusUpdated = "status.updated"
	// StatusFailed carries a StatusFailure after a failed fetch.
	StatusFailed = "status.failed"
	// AlertFired carries an AlertPayload once per fired notification.
	AlertFired = "alert.fired"
)

// Event is one in-process signal. Data holds a payload from payloads.go or
// a notifier.NotificationEvent.
type Event struct {
	Type string
	Time time.Time
	Data any
}

// Bus fans events out to buffered subscribers. Publish never blocks: when a
// subscriber's buffer is full the event is dropped for that subscriber and
// counted.
type Bus interface {
	Publish(e Event)
	// Subscribe registers a subscriber. With prefixes, only events whose
	// Type starts with one of them are delivered.
	Subscribe(buffer int, prefixes ...string) (ch <-chan Event, unsubscribe func())
	// Dropped counts deliveries skipped on full buffers.
	Dropped() uint64
}

// New returns an in-memory bus. It starts no goroutines.
func New() Bus { return &memBus{} }

type subscriber struct {
	ch       chan Event
	prefixes []string
	closed   bool
}

func (s *subscriber) wants(typ string) bool {
	if len(s.prefixes) == 0 {
		return true
	}
	for _, p := range s.prefixes {
		if strings.HasPrefix(typ, p) {
			return true
		}
	}
	return false
}

type memBus struct {
	// mu is held for reading during delivery; unsubscribe takes it for
	// writing before closing, so a send never races a close.
	mu      sync.RWMutex
	subs    []*subscriber
	dropped atomic.Uint64
}

func (b *memBus) Publish(e Event) {
	if e.Time.IsZero() {
		e.Time = time.Now()
	}
	b.mu.RLock()
	defer b.mu.RUnlock()
	for _, s := range b.subs {
		if !s.wants(e.Type) {
			continue
		}
		select {
		case s.ch <- e:
		default:
			b.dropped.Add(1)
		}
	}
}

func (b *memBus) Subscribe(buffer int, prefixes ...string) (<-chan Event, func()) {
	if buffer <= 0 {
		buffer = 8
	}
	s := &subscriber{ch: make(chan Event, buffer), prefixes: append([]string(nil), prefixes...)}

	b.mu.Lock()
	b.subs = append(b.subs, s)
	b.mu.Unlock()

	return s.ch, func() { b.unsubscribe(s) }
}

func (b *memBus) unsubscribe(s *subscriber) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if s.closed {
		return
	}
	s.closed = true
	for i, cur := range b.subs {
		if cur == s {
			b.subs = append(b.subs[:i], b.subs[i+1:]...)
			break
		}
	}
	close(s.ch)
}

func (b *memBus) Dropped() uint64 { return b.dropped.Load() }
