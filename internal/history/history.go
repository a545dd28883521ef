package history

import (
	"context"
	"time"
)

// EventType defines the kind of event recorded by the daemon.
type EventType string

const (
	// EventAttempt records one renewal attempt and its outcome.
	EventAttempt EventType = "attempt"
	// EventChildExit records the supervised command exiting.
	EventChildExit EventType = "child_exit"
)

// Event is one row of renewal history exported to external systems.
type Event struct {
	Type       EventType `json:"type"`
	OccurredAt time.Time `json:"occurred_at"`
	Principal  string    `json:"principal"`
	Cache      string    `json:"cache"`
	Outcome    string    `json:"outcome"`
	Detail     string    `json:"detail,omitempty"`
}

// Sink is a destination for history events. Implementations must be safe
// for concurrent use and are closed once during scheduler cleanup.
type Sink interface {
	Send(ctx context.Context, e Event) error
	Close() error
}
