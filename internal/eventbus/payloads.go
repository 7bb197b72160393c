package eventbus

import (
	"time"

	"shednotify/internal/esp"
)

// StatusUpdate is the payload of StatusUpdated.
type StatusUpdate struct {
	FetchedAt time.Time
	Statuses  esp.StatusMap
	Predicted time.Time
	Took      time.Duration
}

// StatusFailure is the payload of StatusFailed.
type StatusFailure struct {
	FailedAt time.Time
	Kind     esp.ErrorKind
	Err      error
	Took     time.Duration
}

// AlertPayload is the payload of AlertFired.
type AlertPayload struct {
	ID        string
	Offset    int
	Predicted time.Time
	FiredAt   time.Time
}
