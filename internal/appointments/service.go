package appointments

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"

	"github.com/wolfman30/patient-portal/internal/observability/metrics"
	"github.com/wolfman30/patient-portal/pkg/logging"
)

var appointmentsTracer = otel.Tracer("portal.internal.appointments")

const (
	defaultTitle       = "Appointment"
	intentDeliveryWait = 5 * time.Second
)

// Service applies patient-initiated transitions. Every mutation re-reads the
// appointment and writes conditionally on the status it observed.
type Service struct {
	repo    Repository
	sinks   []namedSink
	now     func() time.Time
	logger  *logging.Logger
	metrics *metrics.PortalMetrics
}

// Option customizes a Service.
type Option func(*Service)

// WithClock overrides the time source used for validation and partitions.
func WithClock(now func() time.Time) Option {
	return func(s *Service) {
		if now != nil {
			s.now = now
		}
	}
}

// WithIntentSink adds a staff-facing sink. Delivery failures are logged and
// counted but never undo the persisted change.
func WithIntentSink(name string, sink IntentSink) Option {
	return func(s *Service) {
		if sink != nil {
			s.sinks = append(s.sinks, namedSink{name: name, sink: sink})
		}
	}
}

// WithMetrics records transition outcomes.
func WithMetrics(m *metrics.PortalMetrics) Option {
	return func(s *Service) { s.metrics = m }
}

// NewService wires a Service to its repository.
func NewService(repo Repository, logger *logging.Logger, opts ...Option) *Service {
	if repo == nil {
		panic("appointments: repository required")
	}
	if logger == nil {
		logger = logging.Default()
	}
	s := &Service{repo: repo, now: time.Now, logger: logger}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Request creates a new appointment in the requested state.
func (s *Service) Request(ctx context.Context, patientID string, in RequestInput) (*Appointment, error) {
	ctx, span := appointmentsTracer.Start(ctx, "appointments.request")
	defer span.End()

	if patientID == "" {
		return nil, ErrPatientRequired
	}
	if err := s.validateStart(in.StartTime); err != nil {
		s.metrics.ObserveTransition(string(ActionRequest), "rejected")
		return nil, err
	}
	start := in.StartTime.UTC()
	var end *time.Time
	if in.EndTime != nil {
		if !in.EndTime.After(start) {
			s.metrics.ObserveTransition(string(ActionRequest), "rejected")
			return nil, ErrInvalidTimeRange
		}
		e := in.EndTime.UTC()
		end = &e
	}
	title := strings.TrimSpace(in.Title)
	if title == "" {
		title = defaultTitle
	}

	appt, err := s.repo.Insert(ctx, Appointment{
		ID:        uuid.NewString(),
		PatientID: patientID,
		Title:     title,
		StartTime: start,
		EndTime:   end,
		Status:    StatusRequested,
		Reason:    strings.TrimSpace(in.Reason),
	})
	if err != nil {
		span.RecordError(err)
		s.metrics.ObserveTransition(string(ActionRequest), "error")
		s.logger.Error("failed to insert appointment", "patient_id", patientID, "error", err)
		return nil, err
	}
	span.SetAttributes(attribute.String("portal.appointment_id", appt.ID))
	s.metrics.ObserveTransition(string(ActionRequest), "applied")
	s.logger.Info("appointment requested", "patient_id", patientID, "appointment_id", appt.ID)
	s.emit(ctx, ActionRequest, appt)
	return &appt, nil
}

// RequestReschedule moves the appointment to newStart and marks it
// reschedule_requested. The prior start time is kept for the clinic.
func (s *Service) RequestReschedule(ctx context.Context, patientID, appointmentID string, newStart time.Time) (*Appointment, error) {
	ctx, span := appointmentsTracer.Start(ctx, "appointments.reschedule")
	defer span.End()
	span.SetAttributes(attribute.String("portal.appointment_id", appointmentID))

	current, err := s.load(ctx, patientID, appointmentID)
	if err != nil {
		s.metrics.ObserveTransition(string(ActionReschedule), outcomeFor(err))
		return nil, err
	}
	to, err := NextStatus(ActionReschedule, current.Status)
	if err != nil {
		s.metrics.ObserveTransition(string(ActionReschedule), "rejected")
		return nil, err
	}
	if err := s.validateStart(newStart); err != nil {
		s.metrics.ObserveTransition(string(ActionReschedule), "rejected")
		return nil, err
	}
	if newStart.Equal(current.StartTime) {
		s.metrics.ObserveTransition(string(ActionReschedule), "rejected")
		return nil, fmt.Errorf("%w: start time unchanged", ErrInvalidStartTime)
	}

	next := current.clone()
	next.Status = to
	prev := current.StartTime
	next.PreviousStartTime = &prev
	next.StartTime = newStart.UTC()
	if current.EndTime != nil {
		end := next.StartTime.Add(current.EndTime.Sub(current.StartTime))
		next.EndTime = &end
	}
	return s.commit(ctx, ActionReschedule, next, current.Status)
}

// RequestCancellation cancels directly when nothing was confirmed yet and
// asks the clinic otherwise. The patient must confirm explicitly.
func (s *Service) RequestCancellation(ctx context.Context, patientID, appointmentID string, req CancellationRequest) (*Appointment, error) {
	ctx, span := appointmentsTracer.Start(ctx, "appointments.cancel")
	defer span.End()
	span.SetAttributes(attribute.String("portal.appointment_id", appointmentID))

	current, err := s.load(ctx, patientID, appointmentID)
	if err != nil {
		s.metrics.ObserveTransition(string(ActionCancel), outcomeFor(err))
		return nil, err
	}
	to, err := NextStatus(ActionCancel, current.Status)
	if err != nil {
		s.metrics.ObserveTransition(string(ActionCancel), "rejected")
		return nil, err
	}
	if !req.Confirmed {
		s.metrics.ObserveTransition(string(ActionCancel), "unconfirmed")
		return nil, ErrConfirmationRequired
	}

	next := current.clone()
	next.Status = to
	return s.commit(ctx, ActionCancel, next, current.Status)
}

// Get returns one appointment owned by patientID.
func (s *Service) Get(ctx context.Context, patientID, appointmentID string) (*Appointment, error) {
	appt, err := s.load(ctx, patientID, appointmentID)
	if err != nil {
		return nil, err
	}
	return &appt, nil
}

// List returns the patient's appointments in the given partition.
func (s *Service) List(ctx context.Context, patientID string, partition Partition) ([]Appointment, error) {
	ctx, span := appointmentsTracer.Start(ctx, "appointments.list")
	defer span.End()

	if patientID == "" {
		return nil, ErrPatientRequired
	}
	all, err := s.repo.ListByPatient(ctx, patientID)
	if err != nil {
		span.RecordError(err)
		return nil, err
	}
	return partition.Apply(all, s.now()), nil
}

func (s *Service) load(ctx context.Context, patientID, appointmentID string) (Appointment, error) {
	if patientID == "" {
		return Appointment{}, ErrPatientRequired
	}
	if strings.TrimSpace(appointmentID) == "" {
		return Appointment{}, ErrNotFound
	}
	appt, err := s.repo.Get(ctx, appointmentID)
	if err != nil {
		return Appointment{}, err
	}
	if appt.PatientID != patientID {
		s.logger.Warn("appointment access denied", "patient_id", patientID, "appointment_id", appointmentID)
		return Appointment{}, ErrNotOwner
	}
	return appt, nil
}

func (s *Service) commit(ctx context.Context, action Action, next Appointment, expected Status) (*Appointment, error) {
	updated, err := s.repo.UpdateIfStatus(ctx, next, expected)
	if err != nil {
		s.metrics.ObserveTransition(string(action), outcomeFor(err))
		if errors.Is(err, ErrStaleState) {
			s.logger.Warn("appointment changed during transition", "appointment_id", next.ID, "action", action)
		} else {
			s.logger.Error("failed to update appointment", "appointment_id", next.ID, "action", action, "error", err)
		}
		return nil, err
	}
	s.metrics.ObserveTransition(string(action), "applied")
	s.logger.Info("appointment transition applied",
		"appointment_id", updated.ID, "action", action, "from", expected, "to", updated.Status)
	s.emit(ctx, action, updated)
	return &updated, nil
}

// validateStart accepts times in the current minute or later.
func (s *Service) validateStart(start time.Time) error {
	if start.IsZero() {
		return fmt.Errorf("%w: start time required", ErrInvalidStartTime)
	}
	if start.Before(s.now().Truncate(time.Minute)) {
		return fmt.Errorf("%w: start time is in the past", ErrInvalidStartTime)
	}
	return nil
}

func (s *Service) emit(ctx context.Context, action Action, appt Appointment) {
	if len(s.sinks) == 0 {
		return
	}
	intent := Intent{
		ID:          uuid.NewString(),
		Action:      action,
		PatientID:   appt.PatientID,
		Appointment: appt.clone(),
		OccurredAt:  s.now().UTC(),
	}
	deliverCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), intentDeliveryWait)
	defer cancel()
	for _, ns := range s.sinks {
		if err := ns.sink.Handle(deliverCtx, intent); err != nil {
			s.metrics.ObserveIntentFailure(ns.name)
			s.logger.Warn("staff intent delivery failed",
				"sink", ns.name, "appointment_id", appt.ID, "action", action, "error", err)
		}
	}
}

func outcomeFor(err error) string {
	switch {
	case errors.Is(err, ErrStaleState):
		return "stale"
	case errors.Is(err, ErrNotFound), errors.Is(err, ErrNotOwner):
		return "not_found"
	case IsRetryable(err):
		return "error"
	default:
		return "rejected"
	}
}
