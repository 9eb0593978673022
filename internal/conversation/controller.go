package conversation

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"

	"github.com/wolfman30/patient-portal/internal/audit"
	"github.com/wolfman30/patient-portal/pkg/logging"
)

var controllerTracer = otel.Tracer("portal.internal.conversation")

// AuditRecorder appends audit records.
type AuditRecorder interface {
	Record(ctx context.Context, rec audit.Record) error
}

// ControllerConfig holds the per-deployment chat settings.
type ControllerConfig struct {
	ClinicName string
	Channel    string
}

// Controller runs chat turns. At most one turn per session is in flight.
type Controller struct {
	sessions SessionStore
	builder  ContextBuilder
	gateway  Completer
	audit    AuditRecorder
	cfg      ControllerConfig
	logger   *logging.Logger
	now      func() time.Time
}

// NewController wires a Controller.
func NewController(sessions SessionStore, builder ContextBuilder, gateway Completer, recorder AuditRecorder, cfg ControllerConfig, logger *logging.Logger) *Controller {
	if sessions == nil || gateway == nil || recorder == nil {
		panic("conversation: sessions, gateway and audit recorder are required")
	}
	if logger == nil {
		logger = logging.Default()
	}
	if cfg.Channel == "" {
		cfg.Channel = audit.DefaultChannel
	}
	return &Controller{
		sessions: sessions,
		builder:  builder,
		gateway:  gateway,
		audit:    recorder,
		cfg:      cfg,
		logger:   logger,
		now:      time.Now,
	}
}

// StartSession opens a session with the greeting turn.
func (c *Controller) StartSession(ctx context.Context, p *Participant) (*Session, error) {
	now := c.now().UTC()
	session := &Session{
		ID:          uuid.NewString(),
		Participant: p,
		History: []Turn{{
			Role:      RoleAssistant,
			Content:   Greeting(c.cfg.ClinicName, p),
			CreatedAt: now,
		}},
		CreatedAt: now,
		UpdatedAt: now,
	}
	if err := c.sessions.Save(ctx, session); err != nil {
		return nil, err
	}
	return session.clone(), nil
}

// History returns the session's turns in order.
func (c *Controller) History(ctx context.Context, sessionID string) ([]Turn, error) {
	session, err := c.sessions.Load(ctx, sessionID)
	if err != nil {
		return nil, err
	}
	return session.History, nil
}

// SendTurn appends the patient's message and the assistant's reply. A
// completion failure is answered with FallbackText and is not an error.
func (c *Controller) SendTurn(ctx context.Context, sessionID, text string) (Turn, error) {
	ctx, span := controllerTracer.Start(ctx, "conversation.send_turn")
	defer span.End()
	span.SetAttributes(attribute.String("portal.session_id", sessionID))

	input := strings.TrimSpace(text)
	if input == "" {
		return Turn{}, ErrEmptyInput
	}

	unlock, err := c.sessions.Lock(ctx, sessionID)
	if err != nil {
		return Turn{}, err
	}
	defer unlock()

	session, err := c.sessions.Load(ctx, sessionID)
	if err != nil {
		return Turn{}, err
	}

	messages := c.builder.Build(session.Participant, session.History, input)
	session.History = append(session.History, Turn{Role: RolePatient, Content: input, CreatedAt: c.now().UTC()})
	c.record(ctx, session, audit.Record{
		Direction: audit.DirectionIn,
		SenderID:  participantID(session),
		Category:  audit.CategoryGeneral,
		Content:   input,
	})

	answer, err := c.gateway.Complete(ctx, messages)
	reply := Turn{Role: RoleAssistant, Content: answer, CreatedAt: c.now().UTC()}
	if err != nil {
		span.RecordError(err)
		reply.Content = FallbackText
		reply.Fallback = true
		c.logger.Warn("assistant fallback sent", "session_id", sessionID, "kind", FailureKind(err))
		c.record(ctx, session, audit.Record{
			Direction: audit.DirectionOut,
			Category:  audit.CategorySystemFallback,
			Content:   FallbackText,
			Reason:    FailureKind(err),
		})
	} else {
		c.record(ctx, session, audit.Record{
			Direction:   audit.DirectionOut,
			Category:    audit.CategoryGeneral,
			Content:     answer,
			AIGenerated: true,
		})
	}

	session.History = append(session.History, reply)
	session.UpdatedAt = reply.CreatedAt
	if err := c.sessions.Save(ctx, session); err != nil {
		c.logger.Error("failed to save session", "session_id", sessionID, "error", err)
		return Turn{}, fmt.Errorf("conversation: save session: %w", err)
	}
	return reply, nil
}

func (c *Controller) record(ctx context.Context, session *Session, rec audit.Record) {
	rec.SessionID = session.ID
	rec.Channel = c.cfg.Channel
	// Failures are already logged and counted by the recorder; the turn goes on.
	_ = c.audit.Record(ctx, rec)
}

func participantID(s *Session) string {
	if s.Participant == nil {
		return ""
	}
	return s.Participant.ID
}
