package app

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"time"

	"shednotify/internal/notifier"
	"shednotify/internal/transport"
)

const alertPriority = 7

// alertNotifier turns an approaching event into one queued message per
// configured channel.
type alertNotifier struct {
	notif *notifier.Service
	// stage reports the national stage from the last status, if known.
	stage func() (string, bool)
}

func (n *alertNotifier) NotifyApproaching(ctx context.Context, offset int, predicted time.Time) error {
	stage := ""
	if n.stage != nil {
		stage, _ = n.stage()
	}
	text := formatAlert(offset, predicted, stage)
	key := fmt.Sprintf("approach:%d:%d", offset, predicted.Unix())

	channels := n.notif.Channels()
	sort.Strings(channels)
	var errs []error
	for _, ch := range channels {
		if err := n.notif.Notify(ctx, transport.Message{Channel: ch, Priority: alertPriority, Text: text, Key: key}); err != nil {
			errs = append(errs, fmt.Errorf("%s: %w", ch, err))
		}
	}
	return errors.Join(errs...)
}

func formatAlert(offset int, predicted time.Time, stage string) string {
	text := fmt.Sprintf("Load shedding expected in about %d minutes (at %s)", offset, predicted.Format("15:04"))
	if stage != "" && stage != "0" {
		text += fmt.Sprintf(", national stage %s", stage)
	}
	return text
}
