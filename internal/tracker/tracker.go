// Package tracker turns per-session artifact phase observations into
// lifecycle events.
//
// Phases only move forward along task -> implementation_plan -> walkthrough.
// Each forward step emits exactly one event; repeated or backward
// observations are absorbed. Observations are applied in arrival order.
package tracker

import (
	"log/slog"
	"sort"
	"sync"
	"time"

	"github.com/btouchard/phasechime/internal/artifact"
	"github.com/btouchard/phasechime/internal/hook"
)

// Transition is a lifecycle event emitted for a session.
type Transition struct {
	Kind           hook.Kind
	SessionID      string
	NotificationID string
	Phase          artifact.Phase
}

// Session is a snapshot of one tracked session.
type Session struct {
	ID       string         `json:"session_id"`
	Phase    artifact.Phase `json:"phase"`
	LastSeen time.Time      `json:"last_seen"`
}

type sessionState struct {
	phase    artifact.Phase
	lastSeen time.Time
}

// Option configures a Tracker.
type Option func(*Tracker)

// WithIdleTTL makes Sweep forget sessions not observed for ttl.
func WithIdleTTL(ttl time.Duration) Option {
	return func(t *Tracker) {
		t.idleTTL = ttl
	}
}

// WithEvictOnStop forgets a session as soon as it emits Stop. A later
// walkthrough observation for the same session then emits Stop again.
func WithEvictOnStop() Option {
	return func(t *Tracker) {
		t.evictOnStop = true
	}
}

// WithClock overrides time.Now.
func WithClock(now func() time.Time) Option {
	return func(t *Tracker) {
		t.now = now
	}
}

// Tracker holds the last phase of every session seen by this process.
// It is safe for concurrent use.
type Tracker struct {
	mu          sync.Mutex
	sessions    map[string]*sessionState
	idleTTL     time.Duration
	evictOnStop bool
	now         func() time.Time
}

// New creates an empty Tracker.
func New(opts ...Option) *Tracker {
	t := &Tracker{
		sessions: make(map[string]*sessionState),
		now:      time.Now,
	}
	for _, opt := range opts {
		opt(t)
	}
	return t
}

// Observe applies one (session, phase) observation and returns the event it
// triggers, if any.
func (t *Tracker) Observe(sessionID string, phase artifact.Phase) (Transition, bool) {
	if sessionID == "" {
		return Transition{}, false
	}

	var kind hook.Kind
	switch phase {
	case artifact.PhaseTask:
		kind = hook.KindSessionStart
	case artifact.PhaseImplementationPlan:
		kind = hook.KindPromptSubmit
	case artifact.PhaseWalkthrough:
		kind = hook.KindStop
	default:
		return Transition{}, false
	}

	t.mu.Lock()
	defer t.mu.Unlock()

	s, ok := t.sessions[sessionID]
	if !ok {
		s = &sessionState{phase: artifact.PhaseNone}
		t.sessions[sessionID] = s
	}
	s.lastSeen = t.now()

	if !advances(s.phase, phase) {
		slog.Debug("phase observation ignored",
			"session_id", sessionID,
			"current", string(s.phase),
			"observed", string(phase))
		return Transition{}, false
	}

	s.phase = phase
	if phase == artifact.PhaseWalkthrough && t.evictOnStop {
		delete(t.sessions, sessionID)
	}

	return Transition{
		Kind:           kind,
		SessionID:      sessionID,
		NotificationID: hook.NotificationID(sessionID),
		Phase:          phase,
	}, true
}

// advances reports whether moving from current to observed is a step forward.
func advances(current, observed artifact.Phase) bool {
	switch observed {
	case artifact.PhaseTask:
		return current == artifact.PhaseNone
	case artifact.PhaseImplementationPlan:
		return current == artifact.PhaseNone || current == artifact.PhaseTask
	case artifact.PhaseWalkthrough:
		return current != artifact.PhaseWalkthrough
	}
	return false
}

// Phase returns the last phase recorded for a session.
func (t *Tracker) Phase(sessionID string) artifact.Phase {
	t.mu.Lock()
	defer t.mu.Unlock()

	if s, ok := t.sessions[sessionID]; ok {
		return s.phase
	}
	return artifact.PhaseNone
}

// Sessions returns a snapshot of all tracked sessions sorted by id.
func (t *Tracker) Sessions() []Session {
	t.mu.Lock()
	out := make([]Session, 0, len(t.sessions))
	for id, s := range t.sessions {
		out = append(out, Session{ID: id, Phase: s.phase, LastSeen: s.lastSeen})
	}
	t.mu.Unlock()

	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out
}

// Len returns the number of tracked sessions.
func (t *Tracker) Len() int {
	t.mu.Lock()
	defer t.mu.Unlock()
	return len(t.sessions)
}

// Sweep forgets sessions idle for longer than the configured TTL and
// returns how many were removed. It is a no-op without WithIdleTTL.
func (t *Tracker) Sweep() int {
	if t.idleTTL <= 0 {
		return 0
	}

	t.mu.Lock()
	defer t.mu.Unlock()

	cutoff := t.now().Add(-t.idleTTL)
	removed := 0
	for id, s := range t.sessions {
		if s.lastSeen.Before(cutoff) {
			delete(t.sessions, id)
			removed++
		}
	}
	return removed
}
