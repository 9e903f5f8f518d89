// Package notify fans out "table changed" pokes to interested listeners.
// Notifications are fire-and-forget hints: clients react by fetching a
// fresh snapshot or an event delta, never by trusting the poke's payload.
package notify

import (
	"github.com/decred/slog"
)

// Notifier receives a poke after a table's state changed and was committed.
// Implementations must not block the caller for long and must never surface
// delivery failures as errors; a missed poke costs one snapshot of staleness.
type Notifier interface {
	TableUpdated(tableID string)
}

// LogNotifier writes pokes to the log. Useful as a default sink and in
// tests.
type LogNotifier struct {
	Log slog.Logger
}

func (n *LogNotifier) TableUpdated(tableID string) {
	n.Log.Debugf("table %s updated", tableID)
}

// Multi fans a poke out to several notifiers in order.
type Multi []Notifier

func (m Multi) TableUpdated(tableID string) {
	for _, n := range m {
		n.TableUpdated(tableID)
	}
}
