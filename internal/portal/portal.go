// Package portal is the patient-facing surface of the clinic core. Every
// operation takes the caller's Session explicitly.
package portal

import (
	"context"
	"errors"
	"time"

	"github.com/wolfman30/patient-portal/internal/appointments"
	"github.com/wolfman30/patient-portal/internal/conversation"
	"github.com/wolfman30/patient-portal/internal/documents"
	"github.com/wolfman30/patient-portal/internal/identity"
	"github.com/wolfman30/patient-portal/pkg/logging"
)

// ErrNoSession is returned when an operation is called without a resolved patient.
var ErrNoSession = errors.New("portal: no resolved patient session")

// Session binds a resolved patient to a chat session.
type Session struct {
	ID        string    `json:"session_id"`
	PatientID string    `json:"patient_id"`
	Name      string    `json:"name"`
	StartedAt time.Time `json:"started_at"`
}

// Profile is the patient data shown on the home view. Credentials never leave the core.
type Profile struct {
	ID    string `json:"id"`
	Name  string `json:"name"`
	Phone string `json:"phone,omitempty"`
	Email string `json:"email,omitempty"`
}

// Deps lists the collaborators of a Portal. Documents may be nil.
type Deps struct {
	Resolver     *identity.Resolver
	Appointments *appointments.Service
	Documents    *documents.Service
	Chat         *conversation.Controller
	Logger       *logging.Logger
}

// Portal implements the outward operations.
type Portal struct {
	resolver     *identity.Resolver
	appointments *appointments.Service
	documents    *documents.Service
	chat         *conversation.Controller
	logger       *logging.Logger
}

// New builds a Portal.
func New(deps Deps) *Portal {
	if deps.Resolver == nil || deps.Appointments == nil || deps.Chat == nil {
		panic("portal: resolver, appointments and chat are required")
	}
	if deps.Logger == nil {
		deps.Logger = logging.Default()
	}
	return &Portal{
		resolver:     deps.Resolver,
		appointments: deps.Appointments,
		documents:    deps.Documents,
		chat:         deps.Chat,
		logger:       deps.Logger.Component("portal"),
	}
}

// ResolveIdentity resolves credentials and opens a chat session for the patient.
func (p *Portal) ResolveIdentity(ctx context.Context, creds identity.Credentials) (*Session, error) {
	patient, err := p.resolver.Resolve(ctx, creds)
	if err != nil {
		return nil, err
	}
	chat, err := p.chat.StartSession(ctx, &conversation.Participant{ID: patient.ID, Name: patient.Name})
	if err != nil {
		return nil, err
	}
	return &Session{
		ID:        chat.ID,
		PatientID: patient.ID,
		Name:      patient.Name,
		StartedAt: chat.CreatedAt,
	}, nil
}

// Profile returns the session patient's public fields.
func (p *Portal) Profile(ctx context.Context, s *Session) (*Profile, error) {
	if err := requireSession(s); err != nil {
		return nil, err
	}
	patient, err := p.resolver.Profile(ctx, s.PatientID)
	if err != nil {
		return nil, err
	}
	return &Profile{ID: patient.ID, Name: patient.Name, Phone: patient.Phone, Email: patient.Email}, nil
}

// ListAppointments returns upcoming (ascending) or past (descending) appointments.
func (p *Portal) ListAppointments(ctx context.Context, s *Session, partition appointments.Partition) ([]appointments.Appointment, error) {
	if err := requireSession(s); err != nil {
		return nil, err
	}
	return p.appointments.List(ctx, s.PatientID, partition)
}

// RequestAppointment creates a requested appointment.
func (p *Portal) RequestAppointment(ctx context.Context, s *Session, in appointments.RequestInput) (*appointments.Appointment, error) {
	if err := requireSession(s); err != nil {
		return nil, err
	}
	return p.appointments.Request(ctx, s.PatientID, in)
}

// RequestReschedule asks the clinic to move an appointment.
func (p *Portal) RequestReschedule(ctx context.Context, s *Session, appointmentID string, newStart time.Time) (*appointments.Appointment, error) {
	if err := requireSession(s); err != nil {
		return nil, err
	}
	return p.appointments.RequestReschedule(ctx, s.PatientID, appointmentID, newStart)
}

// RequestCancellation cancels or asks to cancel. confirmed must be true.
func (p *Portal) RequestCancellation(ctx context.Context, s *Session, appointmentID string, confirmed bool) (*appointments.Appointment, error) {
	if err := requireSession(s); err != nil {
		return nil, err
	}
	return p.appointments.RequestCancellation(ctx, s.PatientID, appointmentID,
		appointments.CancellationRequest{Confirmed: confirmed})
}

// SendChatTurn runs one assistant turn.
func (p *Portal) SendChatTurn(ctx context.Context, sessionID, text string) (conversation.Turn, error) {
	return p.chat.SendTurn(ctx, sessionID, text)
}

// ChatHistory returns the session's turns.
func (p *Portal) ChatHistory(ctx context.Context, sessionID string) ([]conversation.Turn, error) {
	return p.chat.History(ctx, sessionID)
}

// ListDocuments returns the patient's documents, newest first.
func (p *Portal) ListDocuments(ctx context.Context, s *Session, types ...documents.Type) ([]documents.Document, error) {
	if err := requireSession(s); err != nil {
		return nil, err
	}
	if p.documents == nil {
		return []documents.Document{}, nil
	}
	return p.documents.List(ctx, s.PatientID, types...)
}

func requireSession(s *Session) error {
	if s == nil || s.PatientID == "" {
		return ErrNoSession
	}
	return nil
}
