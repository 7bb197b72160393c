// Package sdnotify reports service state to systemd (Type=notify units).
// Outside systemd every call is a no-op.
package sdnotify

import (
	"context"
	"time"

	"github.com/coreos/go-systemd/v22/daemon"

	logx "shednotify/pkg/logx"
)

// Notifier sends sd_notify messages. The zero value is usable.
type Notifier struct {
	log logx.Logger
	// send is daemon.SdNotify; replaced in tests.
	send func(unsetEnv bool, state string) (bool, error)
}

func New(log logx.Logger) *Notifier {
	return &Notifier{log: log, send: daemon.SdNotify}
}

func (n *Notifier) notify(state string) {
	send := n.send
	if send == nil {
		send = daemon.SdNotify
	}
	sent, err := send(false, state)
	if err != nil {
		n.log.Warn("sd_notify failed", logx.String("state", state), logx.Err(err))
		return
	}
	if sent {
		n.log.Debug("sd_notify sent", logx.String("state", state))
	}
}

func (n *Notifier) Ready()    { n.notify(daemon.SdNotifyReady) }
func (n *Notifier) Stopping() { n.notify(daemon.SdNotifyStopping) }

// Status sets the free-form status line shown by systemctl status.
func (n *Notifier) Status(line string) { n.notify("STATUS=" + line) }

// WatchdogInterval returns half the unit's WatchdogSec, or 0 when the
// watchdog is not enabled for this process.
func WatchdogInterval() time.Duration {
	d, err := daemon.SdWatchdogEnabled(false)
	if err != nil || d <= 0 {
		return 0
	}
	return d / 2
}

// Watchdog pings systemd every interval while healthy reports true.
// It returns when ctx is done; interval <= 0 returns immediately.
func (n *Notifier) Watchdog(ctx context.Context, interval time.Duration, healthy func() bool) error {
	if interval <= 0 {
		return nil
	}
	t := time.NewTicker(interval)
	defer t.Stop()
	for {
		select {
		case <-ctx.Done():
			return nil
		case <-t.C:
			if healthy == nil || healthy() {
				n.notify(daemon.SdNotifyWatchdog)
			} else {
				n.log.Warn("skipping watchdog ping; loop unhealthy")
			}
		}
	}
}
