package conversation

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/trace"
)

const (
	defaultSessionTTL = 12 * time.Hour
	turnLockTTL       = 2 * time.Minute
)

// releaseLock deletes the lock only if this holder still owns it.
var releaseLock = redis.NewScript(`
if redis.call("GET", KEYS[1]) == ARGV[1] then
	return redis.call("DEL", KEYS[1])
end
return 0
`)

// RedisSessionStore keeps sessions as JSON with a sliding TTL.
type RedisSessionStore struct {
	redis  *redis.Client
	ttl    time.Duration
	tracer trace.Tracer
}

// NewRedisSessionStore builds a store; ttl <= 0 uses 12h.
func NewRedisSessionStore(client *redis.Client, ttl time.Duration) *RedisSessionStore {
	if client == nil {
		panic("conversation: redis client cannot be nil")
	}
	if ttl <= 0 {
		ttl = defaultSessionTTL
	}
	return &RedisSessionStore{
		redis:  client,
		ttl:    ttl,
		tracer: otel.Tracer("portal.internal.conversation.sessions"),
	}
}

// Save implements SessionStore.
func (s *RedisSessionStore) Save(ctx context.Context, session *Session) error {
	ctx, span := s.tracer.Start(ctx, "conversation.save_session")
	defer span.End()

	data, err := json.Marshal(session)
	if err != nil {
		span.RecordError(err)
		return fmt.Errorf("conversation: failed to marshal session: %w", err)
	}
	if err := s.redis.Set(ctx, sessionKey(session.ID), data, s.ttl).Err(); err != nil {
		span.RecordError(err)
		return fmt.Errorf("%w: persist session: %w", ErrStoreUnavailable, err)
	}
	return nil
}

// Load implements SessionStore.
func (s *RedisSessionStore) Load(ctx context.Context, id string) (*Session, error) {
	ctx, span := s.tracer.Start(ctx, "conversation.load_session")
	defer span.End()

	data, err := s.redis.Get(ctx, sessionKey(id)).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil, ErrSessionNotFound
		}
		span.RecordError(err)
		return nil, fmt.Errorf("%w: load session: %w", ErrStoreUnavailable, err)
	}

	var session Session
	if err := json.Unmarshal(data, &session); err != nil {
		span.RecordError(err)
		return nil, fmt.Errorf("conversation: failed to decode session: %w", err)
	}
	return &session, nil
}

// Lock implements SessionStore with SET NX and an owner token.
func (s *RedisSessionStore) Lock(ctx context.Context, id string) (func(), error) {
	token := uuid.NewString()
	ok, err := s.redis.SetNX(ctx, turnLockKey(id), token, turnLockTTL).Result()
	if err != nil {
		return nil, fmt.Errorf("%w: acquire turn lock: %w", ErrStoreUnavailable, err)
	}
	if !ok {
		return nil, ErrTurnInProgress
	}
	return func() {
		ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
		defer cancel()
		// The TTL reclaims the lock if this fails.
		_ = releaseLock.Run(ctx, s.redis, []string{turnLockKey(id)}, token).Err()
	}, nil
}

func sessionKey(id string) string {
	return fmt.Sprintf("portal:session:%s", id)
}

func turnLockKey(id string) string {
	return fmt.Sprintf("portal:turnlock:%s", id)
}
