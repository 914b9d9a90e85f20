package notify

import (
	"log/slog"

	"github.com/btouchard/phasechime/internal/hook"
)

// Notifier reacts to a delivered lifecycle event. Implementations must not
// block: the dispatcher calls them before returning to its caller.
type Notifier interface {
	Notify(event hook.Event)
}

// NotifierFunc adapts a function to Notifier.
type NotifierFunc func(event hook.Event)

// Notify calls f.
func (f NotifierFunc) Notify(event hook.Event) { f(event) }

// Hub dispatches events to multiple notifiers.
type Hub struct {
	notifiers []Notifier
}

// NewHub creates a Hub with the given notifiers. Nil entries are skipped.
func NewHub(notifiers ...Notifier) *Hub {
	h := &Hub{}
	for _, n := range notifiers {
		if n != nil {
			h.notifiers = append(h.notifiers, n)
		}
	}
	return h
}

// Add registers another notifier.
func (h *Hub) Add(n Notifier) {
	if n != nil {
		h.notifiers = append(h.notifiers, n)
	}
}

// Notify sends an event to all registered notifiers. A panicking notifier
// is logged and does not affect the others.
func (h *Hub) Notify(event hook.Event) {
	for _, n := range h.notifiers {
		safeNotify(n, event)
	}
}

func safeNotify(n Notifier, event hook.Event) {
	defer func() {
		if r := recover(); r != nil {
			slog.Warn("notifier panicked",
				"kind", string(event.Kind),
				"notification_id", event.Key(),
				"panic", r)
		}
	}()
	n.Notify(event)
}
