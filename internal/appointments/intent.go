package appointments

import (
	"context"
	"time"
)

// Intent tells clinic staff a patient asked for a lifecycle change.
type Intent struct {
	ID          string      `json:"id"`
	Action      Action      `json:"action"`
	PatientID   string      `json:"patient_id"`
	Appointment Appointment `json:"appointment"`
	OccurredAt  time.Time   `json:"occurred_at"`
}

// IntentSink receives intents after a mutation has been persisted.
type IntentSink interface {
	Handle(ctx context.Context, intent Intent) error
}

// IntentSinkFunc adapts a function into an IntentSink.
type IntentSinkFunc func(ctx context.Context, intent Intent) error

// Handle implements IntentSink.
func (f IntentSinkFunc) Handle(ctx context.Context, intent Intent) error {
	return f(ctx, intent)
}

type namedSink struct {
	name string
	sink IntentSink
}
