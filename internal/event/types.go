// Package event defines the DomainEvent type and the ports through which
// events are appended, read back and published.
// Every change to project knowledge is recorded as an Event on the stream of
// the aggregate it belongs to.
package event

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"
)

// Type identifies the kind of a domain event, e.g. "goal.added".
type Type string

// Goal events.
const (
	TypeGoalAdded   Type = "goal.added"
	TypeGoalUpdated Type = "goal.updated"
)

// Domain returns the prefix before the first dot ("goal" for "goal.added").
func (t Type) Domain() string {
	if i := strings.IndexByte(string(t), '.'); i >= 0 {
		return string(t[:i])
	}
	return string(t)
}

// Event is an immutable fact appended to one stream.
// Version starts at 1 and increases by one per event in the stream.
type Event struct {
	StreamID  string          `json:"stream_id"`
	Type      Type            `json:"type"`
	Version   int64           `json:"version"`
	Payload   json.RawMessage `json:"payload"`
	Timestamp time.Time       `json:"timestamp"`
}

// String renders the event's coordinates for logs and errors.
func (e Event) String() string {
	return fmt.Sprintf("%s@%d(%s)", e.StreamID, e.Version, e.Type)
}

// Writer appends events durably. Append must not return before the event is
// persisted.
type Writer interface {
	Append(ctx context.Context, evt Event) error
}

// Reader loads the history of one stream. An unknown stream yields an empty
// slice and a nil error.
type Reader interface {
	ReadStream(ctx context.Context, streamID string) ([]Event, error)
}

// Publisher delivers a committed event to in-process subscribers.
type Publisher interface {
	Publish(ctx context.Context, evt Event) error
}

// New builds an event with a JSON-encoded payload. The timestamp is left to
// the caller so aggregates stay free of clock reads.
func New(streamID string, typ Type, version int64, payload any) (Event, error) {
	raw, err := json.Marshal(payload)
	if err != nil {
		return Event{}, fmt.Errorf("encode %s payload: %w", typ, err)
	}
	return Event{
		StreamID: streamID,
		Type:     typ,
		Version:  version,
		Payload:  raw,
	}, nil
}
