// Package audit keeps an append-only record of every chat message that
// crosses the portal, in both directions.
package audit

import (
	"context"
	"errors"
	"fmt"
	"sync/atomic"
	"time"

	"github.com/google/uuid"

	"github.com/wolfman30/patient-portal/internal/observability/metrics"
	"github.com/wolfman30/patient-portal/pkg/logging"
)

// Direction of a message relative to the clinic.
type Direction string

const (
	DirectionIn  Direction = "in"
	DirectionOut Direction = "out"
)

const (
	// CategoryGeneral marks ordinary chat traffic.
	CategoryGeneral = "general"
	// CategorySystemFallback marks the fixed reply sent when the assistant failed.
	CategorySystemFallback = "system_fallback"

	// DefaultChannel is used when a record names no channel.
	DefaultChannel = "patient_portal"

	defaultWriteTimeout = 3 * time.Second
)

// ErrWriteFailed wraps every store failure surfaced by Logger.Record.
var ErrWriteFailed = errors.New("audit: write failed")

// Record is one audited message. CreatedAt is assigned by the store.
type Record struct {
	ID          string    `json:"id" dynamodbav:"id"`
	SessionID   string    `json:"session_id" dynamodbav:"sessionId"`
	SenderID    string    `json:"sender_id,omitempty" dynamodbav:"senderId,omitempty"`
	Direction   Direction `json:"direction" dynamodbav:"direction"`
	Channel     string    `json:"channel" dynamodbav:"channel"`
	Category    string    `json:"category" dynamodbav:"category"`
	Content     string    `json:"content" dynamodbav:"content"`
	AIGenerated bool      `json:"ai_generated" dynamodbav:"aiGenerated"`
	Reason      string    `json:"reason,omitempty" dynamodbav:"reason,omitempty"`
	CreatedAt   time.Time `json:"created_at" dynamodbav:"createdAt"`
}

// Store appends records. Implementations never update or delete.
type Store interface {
	Append(ctx context.Context, rec Record) (Record, error)
}

// Logger writes audit records without ever blocking the chat flow on a
// cancelled caller.
type Logger struct {
	store    Store
	timeout  time.Duration
	logger   *logging.Logger
	metrics  *metrics.PortalMetrics
	failures atomic.Int64
}

// Option customizes a Logger.
type Option func(*Logger)

// WithTimeout bounds each write.
func WithTimeout(d time.Duration) Option {
	return func(l *Logger) {
		if d > 0 {
			l.timeout = d
		}
	}
}

// WithMetrics counts failed writes.
func WithMetrics(m *metrics.PortalMetrics) Option {
	return func(l *Logger) { l.metrics = m }
}

// NewLogger builds a Logger over store.
func NewLogger(store Store, logger *logging.Logger, opts ...Option) *Logger {
	if store == nil {
		panic("audit: store required")
	}
	if logger == nil {
		logger = logging.Default()
	}
	l := &Logger{store: store, timeout: defaultWriteTimeout, logger: logger}
	for _, opt := range opts {
		opt(l)
	}
	return l
}

// Record appends rec. The write runs on a context detached from the
// caller's cancellation. Failures are logged and counted before being
// returned wrapped in ErrWriteFailed.
func (l *Logger) Record(ctx context.Context, rec Record) error {
	if rec.ID == "" {
		rec.ID = uuid.NewString()
	}
	if rec.Channel == "" {
		rec.Channel = DefaultChannel
	}
	if rec.Category == "" {
		rec.Category = CategoryGeneral
	}

	writeCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), l.timeout)
	defer cancel()

	if _, err := l.store.Append(writeCtx, rec); err != nil {
		l.failures.Add(1)
		l.metrics.ObserveAuditFailure(string(rec.Direction))
		l.logger.Error("audit write failed",
			"session_id", rec.SessionID,
			"direction", rec.Direction,
			"category", rec.Category,
			"error", err,
		)
		return fmt.Errorf("%w: %w", ErrWriteFailed, err)
	}
	return nil
}

// Failures returns how many writes failed since construction.
func (l *Logger) Failures() int64 {
	return l.failures.Load()
}
