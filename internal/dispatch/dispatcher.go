// Package dispatch decides whether a lifecycle event becomes a user-visible
// notification.
//
// A SessionStart is always delivered and its time is recorded under the
// event's notification id in a state document shared by every dispatcher
// process. PromptSubmit and Stop events arriving within the suppression
// window of that SessionStart are dropped. Delivered events are handed to a
// notify.Notifier, which must return without waiting for playback.
//
// Multiple hook processes may dispatch at the same time; the state document
// is only touched under an advisory file lock (see StateFile).
package dispatch

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/btouchard/phasechime/internal/hook"
	"github.com/btouchard/phasechime/internal/notify"
	"github.com/btouchard/phasechime/internal/store"
)

// DefaultWindow is how long after a SessionStart other events stay quiet.
const DefaultWindow = 3 * time.Second

// DefaultRetention bounds how long SessionStart entries are kept.
const DefaultRetention = 24 * time.Hour

// ErrUnknownKind is returned for events the dispatcher does not handle.
var ErrUnknownKind = errors.New("unknown hook event kind")

// Decision reasons.
const (
	ReasonSessionStart   = "session_start"
	ReasonSuppressed     = "suppressed"
	ReasonNoSessionStart = "no_session_start"
	ReasonWindowElapsed  = "window_elapsed"
)

// Decision is the outcome of one dispatch.
type Decision struct {
	Delivered bool
	Reason    string
	At        time.Time
}

// Journal records dispatch decisions.
type Journal interface {
	RecordNotification(n *store.NotificationRecord) error
}

// Option configures a Dispatcher.
type Option func(*Dispatcher)

// WithWindow sets the suppression window.
func WithWindow(d time.Duration) Option {
	return func(ds *Dispatcher) {
		if d > 0 {
			ds.window = d
		}
	}
}

// WithRetention sets how long SessionStart entries survive in the document.
func WithRetention(d time.Duration) Option {
	return func(ds *Dispatcher) {
		if d > 0 {
			ds.retention = d
		}
	}
}

// WithJournal records every decision in j.
func WithJournal(j Journal) Option {
	return func(ds *Dispatcher) {
		ds.journal = j
	}
}

// WithClock overrides time.Now.
func WithClock(now func() time.Time) Option {
	return func(ds *Dispatcher) {
		ds.now = now
	}
}

// Dispatcher applies the suppression rule and triggers notifications.
type Dispatcher struct {
	state     *StateFile
	notifier  *notify.Hub
	journal   Journal
	window    time.Duration
	retention time.Duration
	now       func() time.Time
}

// New creates a Dispatcher persisting to state and delivering to notifier.
// A nil notifier delivers nowhere; a panicking one is contained. A
// *notify.Hub is used as is.
func New(state *StateFile, notifier notify.Notifier, opts ...Option) *Dispatcher {
	hub, ok := notifier.(*notify.Hub)
	switch {
	case ok && hub == nil:
		hub = notify.NewHub()
	case !ok:
		hub = notify.NewHub(notifier)
	}
	d := &Dispatcher{
		state:     state,
		notifier:  hub,
		window:    DefaultWindow,
		retention: DefaultRetention,
		now:       time.Now,
	}
	for _, opt := range opts {
		opt(d)
	}
	if d.retention < d.window {
		d.retention = d.window
	}
	return d
}

// Window returns the suppression window.
func (d *Dispatcher) Window() time.Duration {
	return d.window
}

// Dispatch decides the fate of ev, persists SessionStart times, journals
// the decision and, when delivered, notifies without waiting for the side
// effect. A state persistence failure is returned and nothing is played.
func (d *Dispatcher) Dispatch(ctx context.Context, ev hook.Event) (Decision, error) {
	if err := ctx.Err(); err != nil {
		return Decision{}, err
	}
	if !ev.Kind.Valid() {
		return Decision{}, fmt.Errorf("%w: %q", ErrUnknownKind, ev.Kind)
	}

	key := ev.Key()
	var (
		dec Decision
		err error
	)
	if ev.Kind == hook.KindSessionStart {
		dec, err = d.recordStart(key)
	} else {
		dec, err = d.check(key)
	}
	if err != nil {
		return Decision{}, fmt.Errorf("dispatching %s for %s: %w", ev.Kind, key, err)
	}

	slog.Info("hook event dispatched",
		"kind", string(ev.Kind),
		"notification_id", key,
		"delivered", dec.Delivered,
		"reason", dec.Reason)

	d.record(ev, key, dec)

	if dec.Delivered {
		d.notifier.Notify(ev)
	}
	return dec, nil
}

func (d *Dispatcher) recordStart(key string) (Decision, error) {
	now := d.now()
	err := d.state.Update(func(doc *Document) error {
		doc.SessionStarts[key] = now
		if n := doc.Prune(now.Add(-d.retention)); n > 0 {
			slog.Debug("pruned suppression entries", "count", n)
		}
		return nil
	})
	if err != nil {
		return Decision{}, err
	}
	return Decision{Delivered: true, Reason: ReasonSessionStart, At: now}, nil
}

func (d *Dispatcher) check(key string) (Decision, error) {
	doc, err := d.state.Read()
	if err != nil {
		return Decision{}, err
	}

	now := d.now()
	last, ok := doc.LastStart(key)
	switch {
	case !ok:
		return Decision{Delivered: true, Reason: ReasonNoSessionStart, At: now}, nil
	case now.Sub(last) < d.window:
		return Decision{Delivered: false, Reason: ReasonSuppressed, At: now}, nil
	default:
		return Decision{Delivered: true, Reason: ReasonWindowElapsed, At: now}, nil
	}
}

func (d *Dispatcher) record(ev hook.Event, key string, dec Decision) {
	if d.journal == nil {
		return
	}
	err := d.journal.RecordNotification(&store.NotificationRecord{
		NotificationID: key,
		Kind:           string(ev.Kind),
		Delivered:      dec.Delivered,
		Reason:         dec.Reason,
		Cwd:            ev.Cwd,
		CreatedAt:      dec.At,
	})
	if err != nil {
		slog.Warn("journaling notification failed", "notification_id", key, "error", err)
	}
}
