package events

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/wolfman30/patient-portal/internal/appointments"
	"github.com/wolfman30/patient-portal/pkg/logging"
)

// OutboxEntry represents a pending event.
type OutboxEntry struct {
	ID        uuid.UUID
	Aggregate string
	Type      string
	Envelope  json.RawMessage
	Attempts  int
	CreatedAt time.Time
}

// DeliveryHandler emits events to downstream transports.
type DeliveryHandler interface {
	Publish(ctx context.Context, env Envelope) error
}

type outboxQuerier interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
}

// OutboxStore persists intents for reliable delivery. It doubles as an
// appointments.IntentSink so intents survive a queue outage.
type OutboxStore struct {
	db outboxQuerier
}

func NewOutboxStore(pool *pgxpool.Pool) *OutboxStore {
	if pool == nil {
		panic("events: pgx pool required")
	}
	return &OutboxStore{db: pool}
}

func newOutboxStoreWithQuerier(db outboxQuerier) *OutboxStore {
	return &OutboxStore{db: db}
}

// Handle implements appointments.IntentSink.
func (s *OutboxStore) Handle(ctx context.Context, intent appointments.Intent) error {
	env, err := envelopeFor(intent)
	if err != nil {
		return err
	}
	_, err = s.Insert(ctx, env)
	return err
}

// Insert stores an envelope. Re-inserting the same event ID is a no-op.
func (s *OutboxStore) Insert(ctx context.Context, env Envelope) (bool, error) {
	data, err := json.Marshal(env)
	if err != nil {
		return false, fmt.Errorf("events: marshal envelope: %w", err)
	}
	query := `
		INSERT INTO outbox (id, aggregate, event_type, payload)
		VALUES ($1, $2, $3, $4)
		ON CONFLICT (id) DO NOTHING
	`
	ct, err := s.db.Exec(ctx, query, env.EventID, env.Aggregate, env.EventType, data)
	if err != nil {
		return false, fmt.Errorf("events: insert outbox: %w", err)
	}
	return ct.RowsAffected() == 1, nil
}

func (s *OutboxStore) FetchPending(ctx context.Context, limit int32) ([]OutboxEntry, error) {
	query := `
		SELECT id, aggregate, event_type, payload, attempts, created_at
		FROM outbox
		WHERE delivered_at IS NULL
		ORDER BY created_at
		LIMIT $1
	`
	rows, err := s.db.Query(ctx, query, limit)
	if err != nil {
		return nil, fmt.Errorf("events: fetch pending: %w", err)
	}
	defer rows.Close()

	var entries []OutboxEntry
	for rows.Next() {
		var entry OutboxEntry
		var payload []byte
		if err := rows.Scan(&entry.ID, &entry.Aggregate, &entry.Type, &payload, &entry.Attempts, &entry.CreatedAt); err != nil {
			return nil, fmt.Errorf("events: scan outbox: %w", err)
		}
		entry.Envelope = append([]byte(nil), payload...)
		entries = append(entries, entry)
	}
	return entries, rows.Err()
}

func (s *OutboxStore) MarkDelivered(ctx context.Context, id uuid.UUID) (bool, error) {
	query := `
		UPDATE outbox
		SET delivered_at = now()
		WHERE id = $1 AND delivered_at IS NULL
	`
	ct, err := s.db.Exec(ctx, query, id)
	if err != nil {
		return false, fmt.Errorf("events: mark delivered: %w", err)
	}
	return ct.RowsAffected() == 1, nil
}

// MarkFailed bumps the attempt counter and records the last error.
func (s *OutboxStore) MarkFailed(ctx context.Context, id uuid.UUID, cause error) error {
	query := `
		UPDATE outbox
		SET attempts = attempts + 1, last_error = $2
		WHERE id = $1
	`
	if _, err := s.db.Exec(ctx, query, id, cause.Error()); err != nil {
		return fmt.Errorf("events: mark failed: %w", err)
	}
	return nil
}

// Deliverer polls the outbox and invokes the handler.
type Deliverer struct {
	store     *OutboxStore
	handler   DeliveryHandler
	logger    *logging.Logger
	batchSize int32
	interval  time.Duration
}

func NewDeliverer(store *OutboxStore, handler DeliveryHandler, logger *logging.Logger) *Deliverer {
	if logger == nil {
		logger = logging.Default()
	}
	return &Deliverer{
		store:     store,
		handler:   handler,
		logger:    logger,
		batchSize: 25,
		interval:  2 * time.Second,
	}
}

func (d *Deliverer) WithBatchSize(size int32) *Deliverer {
	if size > 0 {
		d.batchSize = size
	}
	return d
}

func (d *Deliverer) WithInterval(interval time.Duration) *Deliverer {
	if interval > 0 {
		d.interval = interval
	}
	return d
}

// Start drains the outbox every interval until ctx is cancelled.
func (d *Deliverer) Start(ctx context.Context) {
	if d.store == nil || d.handler == nil {
		return
	}
	ticker := time.NewTicker(d.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			d.Drain(ctx)
		}
	}
}

// Drain delivers one batch and returns how many entries were delivered.
func (d *Deliverer) Drain(ctx context.Context) int {
	entries, err := d.store.FetchPending(ctx, d.batchSize)
	if err != nil {
		d.logger.Error("outbox fetch failed", "error", err)
		return 0
	}
	delivered := 0
	for _, entry := range entries {
		var env Envelope
		if err := json.Unmarshal(entry.Envelope, &env); err != nil {
			d.logger.Error("outbox entry unreadable", "error", err, "event_id", entry.ID)
			_ = d.store.MarkFailed(ctx, entry.ID, err)
			continue
		}
		if err := d.handler.Publish(ctx, env); err != nil {
			d.logger.Error("outbox delivery failed", "error", err, "event_id", entry.ID, "type", entry.Type, "attempts", entry.Attempts+1)
			if markErr := d.store.MarkFailed(ctx, entry.ID, err); markErr != nil {
				d.logger.Error("failed to record outbox failure", "error", markErr, "event_id", entry.ID)
			}
			continue
		}
		if ok, err := d.store.MarkDelivered(ctx, entry.ID); err != nil {
			d.logger.Error("failed to mark outbox delivered", "error", err, "event_id", entry.ID)
		} else if ok {
			delivered++
			d.logger.Debug("outbox delivered", "event_id", entry.ID, "type", entry.Type)
		}
	}
	return delivered
}
