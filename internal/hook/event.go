// Package hook defines the event document exchanged between the directory
// watcher and the dispatcher. The field names follow the hook payloads the
// editor agents already emit, so the dispatcher can also be driven by them
// directly.
package hook

import (
	"encoding/json"
	"fmt"
	"io"
	"strings"
)

// Kind is a lifecycle event name.
type Kind string

const (
	KindSessionStart Kind = "SessionStart"
	KindPromptSubmit Kind = "UserPromptSubmit"
	KindStop         Kind = "Stop"
)

// Kinds lists every kind the dispatcher understands.
var Kinds = []Kind{KindSessionStart, KindPromptSubmit, KindStop}

// Valid reports whether k is one of the known kinds.
func (k Kind) Valid() bool {
	switch k {
	case KindSessionStart, KindPromptSubmit, KindStop:
		return true
	}
	return false
}

// maxEventBytes caps how much of stdin a hook invocation reads.
const maxEventBytes = 1 << 20

// UnknownSessionID keys events that arrive without a session id.
const UnknownSessionID = "unknown"

// notificationIDLen is how much of a session id groups notifications.
const notificationIDLen = 8

// Event is the hook document.
type Event struct {
	Kind             Kind   `json:"hook_event_name"`
	NotificationType string `json:"notification_type"`
	Cwd              string `json:"cwd"`
	SessionID        string `json:"session_id"`
	PermissionMode   string `json:"permission_mode"`
}

// Key returns the suppression key of the event.
func (e Event) Key() string {
	if id := strings.TrimSpace(e.SessionID); id != "" {
		return id
	}
	return UnknownSessionID
}

// NotificationID derives the short id used to group notifications of a session.
func NotificationID(sessionID string) string {
	if len(sessionID) <= notificationIDLen {
		return sessionID
	}
	return sessionID[:notificationIDLen]
}

// Decode reads one event document from r.
func Decode(r io.Reader) (Event, error) {
	data, err := io.ReadAll(io.LimitReader(r, maxEventBytes))
	if err != nil {
		return Event{}, fmt.Errorf("reading hook event: %w", err)
	}

	var e Event
	if err := json.Unmarshal(data, &e); err != nil {
		return Event{}, fmt.Errorf("parsing hook event: %w", err)
	}
	return e, nil
}

// Encode serializes the event as a single JSON document.
func (e Event) Encode() ([]byte, error) {
	return json.Marshal(e)
}
