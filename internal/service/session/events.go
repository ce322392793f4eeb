package session

import (
	"github.com/mindease/backend/internal/model/chat"
	"github.com/mindease/backend/internal/service/llm"
)

// State is the controller's observable phase.
type State string

const (
	StateIdle             State = "idle"
	StateAwaitingResponse State = "awaiting_response"
	StateStreaming        State = "streaming"
	StateRecovering       State = "recovering"
	StateFallbackActive   State = "fallback_active"
)

// EventType tags the session events the UI subscribes to.
type EventType string

const (
	// EventState announces a state transition.
	EventState EventType = "state"
	// EventMessage announces a newly appended message.
	EventMessage EventType = "message"
	// EventDelta extends the in-progress assistant message.
	EventDelta EventType = "delta"
	// EventRetract withdraws a partial message after a failed attempt.
	EventRetract EventType = "retract"
	// EventNotice carries a recoverable-error indicator for display.
	EventNotice EventType = "notice"
)

// Event is one observable side effect of the session state machine.
// No session state is exposed by polling; the UI consumes these.
type Event struct {
	Type       EventType     `json:"type"`
	State      State         `json:"state,omitempty"`
	Route      llm.Route     `json:"route,omitempty"`
	RetryCount int           `json:"retryCount"`
	Message    *chat.Message `json:"message,omitempty"`
	MessageID  string        `json:"messageId,omitempty"`
	Delta      string        `json:"delta,omitempty"`
	Notice     string        `json:"notice,omitempty"`
}

// Snapshot is the point-in-time view handed to a newly attached
// subscriber before live events begin.
type Snapshot struct {
	SessionID           string         `json:"sessionId"`
	State               State          `json:"state"`
	Route               llm.Route      `json:"route"`
	RetryCount          int            `json:"retryCount"`
	ConsecutiveFailures int            `json:"consecutiveFailures"`
	Messages            []chat.Message `json:"messages"`
}
