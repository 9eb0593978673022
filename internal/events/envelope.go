package events

import (
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
)

// Event is a payload that names its own versioned type.
type Event interface {
	EventType() string
}

// Envelope is the record written to the outbox and sent to the queue.
type Envelope struct {
	EventID         uuid.UUID       `json:"event_id"`
	EventType       string          `json:"event_type"`
	Aggregate       string          `json:"aggregate"`
	TimestampMicros int64           `json:"timestamp"`
	CorrelationID   string          `json:"correlation_id,omitempty"`
	Payload         json.RawMessage `json:"payload"`
}

var errMissingAggregate = errors.New("events: aggregate is required")

// seal marshals evt into an envelope. A nil id or zero time is replaced
// with a fresh id or the current time.
func seal(aggregate, correlationID string, evt Event, id uuid.UUID, at time.Time) (Envelope, error) {
	aggregate = strings.TrimSpace(aggregate)
	if aggregate == "" {
		return Envelope{}, errMissingAggregate
	}
	if evt == nil {
		return Envelope{}, errors.New("events: event is required")
	}
	eventType := strings.TrimSpace(evt.EventType())
	if eventType == "" {
		return Envelope{}, errors.New("events: event type missing")
	}
	payload, err := json.Marshal(evt)
	if err != nil {
		return Envelope{}, fmt.Errorf("events: marshal %s: %w", eventType, err)
	}
	if id == uuid.Nil {
		id = uuid.New()
	}
	if at.IsZero() {
		at = time.Now()
	}
	return Envelope{
		EventID:         id,
		EventType:       eventType,
		Aggregate:       aggregate,
		TimestampMicros: at.UTC().UnixMicro(),
		CorrelationID:   strings.TrimSpace(correlationID),
		Payload:         payload,
	}, nil
}
