package events

import (
	"context"
	"encoding/json"
	"errors"
	"testing"
	"time"

	"github.com/google/uuid"
	pgxmock "github.com/pashagolub/pgxmock/v4"

	"github.com/wolfman30/patient-portal/internal/appointments"
)

func sampleIntent() appointments.Intent {
	start := time.Date(2025, 3, 10, 9, 0, 0, 0, time.UTC)
	return appointments.Intent{
		ID:        "9a20d7d1-bf6a-4d33-bd55-5d25a816f1a8",
		Action:    appointments.ActionCancel,
		PatientID: "patient-1",
		Appointment: appointments.Appointment{
			ID:        "appt-1",
			PatientID: "patient-1",
			StartTime: start,
			Status:    appointments.StatusCancellationRequested,
		},
		OccurredAt: time.Date(2025, 3, 1, 12, 0, 0, 0, time.UTC),
	}
}

func TestEnvelopeForIntent(t *testing.T) {
	env, err := envelopeFor(sampleIntent())
	if err != nil {
		t.Fatalf("envelopeFor failed: %v", err)
	}
	if env.EventID.String() != "9a20d7d1-bf6a-4d33-bd55-5d25a816f1a8" {
		t.Fatalf("expected intent id as event id, got %s", env.EventID)
	}
	if env.EventType != "portal.appointment.cancel.v1" {
		t.Fatalf("unexpected type: %s", env.EventType)
	}
	if env.Aggregate != "patient:patient-1" || env.CorrelationID != "appt-1" {
		t.Fatalf("unexpected routing: %s %s", env.Aggregate, env.CorrelationID)
	}
	var payload AppointmentIntentV1
	if err := json.Unmarshal(env.Payload, &payload); err != nil {
		t.Fatalf("payload: %v", err)
	}
	if payload.Status != "cancellation_requested" || payload.AppointmentID != "appt-1" {
		t.Fatalf("unexpected payload: %#v", payload)
	}
}

func TestEnvelopeRejectsMissingAggregate(t *testing.T) {
	if _, err := seal(" ", "", AppointmentIntentV1{Action: "request"}, uuid.Nil, time.Time{}); !errors.Is(err, errMissingAggregate) {
		t.Fatalf("expected errMissingAggregate, got %v", err)
	}
}

func TestEnvelopeFillsMissingIDAndTime(t *testing.T) {
	intent := sampleIntent()
	intent.ID = "not-a-uuid"
	intent.OccurredAt = time.Time{}

	env, err := envelopeFor(intent)
	if err != nil {
		t.Fatalf("envelopeFor: %v", err)
	}
	if env.EventID == uuid.Nil {
		t.Fatalf("expected a generated event id")
	}
	if env.TimestampMicros == 0 {
		t.Fatalf("expected the current time")
	}
}

func TestOutboxStoreFlow(t *testing.T) {
	mock, err := pgxmock.NewPool()
	if err != nil {
		t.Fatalf("failed to create pgx mock: %v", err)
	}
	defer mock.Close()

	store := newOutboxStoreWithQuerier(mock)
	intent := sampleIntent()
	id := uuid.MustParse(intent.ID)

	mock.ExpectExec("INSERT INTO outbox").
		WithArgs(id, "patient:patient-1", "portal.appointment.cancel.v1", pgxmock.AnyArg()).
		WillReturnResult(pgxmock.NewResult("INSERT", 1))
	if err := store.Handle(context.Background(), intent); err != nil {
		t.Fatalf("handle failed: %v", err)
	}

	env, _ := envelopeFor(intent)
	data, _ := json.Marshal(env)
	now := time.Now().UTC()
	rows := pgxmock.NewRows([]string{"id", "aggregate", "event_type", "payload", "attempts", "created_at"}).
		AddRow(id, env.Aggregate, env.EventType, data, 0, now)
	mock.ExpectQuery("SELECT id").WithArgs(int32(10)).WillReturnRows(rows)

	entries, err := store.FetchPending(context.Background(), 10)
	if err != nil {
		t.Fatalf("fetch pending failed: %v", err)
	}
	if len(entries) != 1 || entries[0].ID != id {
		t.Fatalf("unexpected entries: %#v", entries)
	}

	mock.ExpectExec("UPDATE outbox").WithArgs(id).WillReturnResult(pgxmock.NewResult("UPDATE", 1))
	ok, err := store.MarkDelivered(context.Background(), id)
	if err != nil {
		t.Fatalf("mark delivered failed: %v", err)
	}
	if !ok {
		t.Fatal("expected mark delivered to report success")
	}

	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("unmet expectations: %v", err)
	}
}

type recordingHandler struct {
	published []Envelope
	err       error
}

func (h *recordingHandler) Publish(_ context.Context, env Envelope) error {
	if h.err != nil {
		return h.err
	}
	h.published = append(h.published, env)
	return nil
}

func TestDelivererDrain(t *testing.T) {
	mock, err := pgxmock.NewPool()
	if err != nil {
		t.Fatalf("failed to create pgx mock: %v", err)
	}
	defer mock.Close()

	env, _ := envelopeFor(sampleIntent())
	data, _ := json.Marshal(env)
	rows := pgxmock.NewRows([]string{"id", "aggregate", "event_type", "payload", "attempts", "created_at"}).
		AddRow(env.EventID, env.Aggregate, env.EventType, data, 0, time.Now())
	mock.ExpectQuery("SELECT id").WithArgs(int32(25)).WillReturnRows(rows)
	mock.ExpectExec("UPDATE outbox").WithArgs(env.EventID).WillReturnResult(pgxmock.NewResult("UPDATE", 1))

	handler := &recordingHandler{}
	d := NewDeliverer(newOutboxStoreWithQuerier(mock), handler, nil)
	if got := d.Drain(context.Background()); got != 1 {
		t.Fatalf("expected 1 delivered, got %d", got)
	}
	if len(handler.published) != 1 || handler.published[0].EventID != env.EventID {
		t.Fatalf("unexpected published: %#v", handler.published)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("unmet expectations: %v", err)
	}
}

func TestDelivererRecordsFailure(t *testing.T) {
	mock, err := pgxmock.NewPool()
	if err != nil {
		t.Fatalf("failed to create pgx mock: %v", err)
	}
	defer mock.Close()

	env, _ := envelopeFor(sampleIntent())
	data, _ := json.Marshal(env)
	rows := pgxmock.NewRows([]string{"id", "aggregate", "event_type", "payload", "attempts", "created_at"}).
		AddRow(env.EventID, env.Aggregate, env.EventType, data, 2, time.Now())
	mock.ExpectQuery("SELECT id").WillReturnRows(rows)
	mock.ExpectExec("UPDATE outbox").WithArgs(env.EventID, "queue down").WillReturnResult(pgxmock.NewResult("UPDATE", 1))

	d := NewDeliverer(newOutboxStoreWithQuerier(mock), &recordingHandler{err: errors.New("queue down")}, nil)
	if got := d.Drain(context.Background()); got != 0 {
		t.Fatalf("expected nothing delivered, got %d", got)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("unmet expectations: %v", err)
	}
}
