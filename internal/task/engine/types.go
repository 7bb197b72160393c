package engine

import (
	"context"
	"time"

	"shednotify/internal/esp"
	"shednotify/internal/task/scheduler"
)

// DefaultOffsets are the minutes-before-event at which alerts are considered.
var DefaultOffsets = []int{55, 15, 5}

const DefaultTick = time.Second

// Fetcher performs one status call. Implementations must be safe to call
// from a goroutine other than the loop's.
type Fetcher interface {
	Status(ctx context.Context) (esp.StatusMap, error)
}

// Notifier receives alerts for an approaching event.
type Notifier interface {
	NotifyApproaching(ctx context.Context, offset int, predicted time.Time) error
}

// Observer receives loop counters. All methods are called from the loop goroutine.
type Observer interface {
	FetchStarted()
	FetchFinished(kind esp.ErrorKind, took time.Duration)
	FetchSkipped()
	AlertFired(offset int)
}

type nopObserver struct{}

func (nopObserver) FetchStarted()                              {}
func (nopObserver) FetchFinished(esp.ErrorKind, time.Duration) {}
func (nopObserver) FetchSkipped()                              {}
func (nopObserver) AlertFired(int)                             {}

// Config controls the scheduler loop.
type Config struct {
	// StatusCadence decides when the status API is called.
	StatusCadence scheduler.Cadence
	// Offsets lists alert offsets in minutes (1..60). Empty means DefaultOffsets.
	Offsets []int
	// Tick is the loop period. 0 means DefaultTick.
	Tick time.Duration
}

// Phase is the loop's fetch state.
type Phase int

const (
	Idle Phase = iota
	Fetching
	Terminated
)

func (p Phase) String() string {
	switch p {
	case Idle:
		return "idle"
	case Fetching:
		return "fetching"
	case Terminated:
		return "terminated"
	default:
		return "unknown"
	}
}

func (p Phase) MarshalText() ([]byte, error) { return []byte(p.String()), nil }

// AlarmSnapshot is one alert clock as seen from outside the loop.
type AlarmSnapshot struct {
	Offset int       `json:"offset"`
	Next   time.Time `json:"next"`
}

// Snapshot is a copy of the loop's observable state.
type Snapshot struct {
	Phase     Phase           `json:"phase"`
	Predicted time.Time       `json:"predicted,omitempty"`
	FetchedAt time.Time       `json:"fetched_at,omitempty"`
	NextFetch time.Time       `json:"next_fetch"`
	Statuses  esp.StatusMap   `json:"statuses,omitempty"`
	Alarms    []AlarmSnapshot `json:"alarms"`
	Skipped   uint64          `json:"skipped"`

	LastError     string        `json:"last_error,omitempty"`
	LastErrorKind esp.ErrorKind `json:"last_error_kind,omitempty"`
	LastErrorAt   time.Time     `json:"last_error_at,omitempty"`
}

// NationalStage returns the country-wide stage from the last status, if any.
func (s Snapshot) NationalStage() (string, bool) {
	st, ok := s.Statuses[esp.National]
	if !ok || st.Stage == "" {
		return "", false
	}
	return st.Stage, true
}
