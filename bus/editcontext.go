package bus

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

// EditContext is one ephemeral "user X is editing entity Y" record.
type EditContext struct {
	// Actor identifies the editing user.
	Actor string `json:"actor"`

	// EntityID is the entity being edited.
	EntityID string `json:"entity_id"`

	// Payload is the focus payload supplied by the client (typically the
	// field currently being edited).
	Payload string `json:"payload"`

	// At is the time the context was last written.
	At time.Time `json:"at"`
}

// ContextStore holds ephemeral edit contexts. Last writer wins; there is no
// conflict resolution, concurrent editors only observe one another through
// the notification stream.
type ContextStore interface {
	// SetEditContext writes the (actor, entity) context record.
	SetEditContext(ctx context.Context, actor, entityID, payload string) error

	// CleanEditContext removes the (actor, entity) context record.
	// Removing a record that does not exist is a no-op, not an error.
	CleanEditContext(ctx context.Context, actor, entityID string) error

	// Participants returns the live edit contexts of an entity.
	Participants(ctx context.Context, entityID string) ([]EditContext, error)
}

// DefaultContextTTL bounds how long an abandoned edit context survives.
const DefaultContextTTL = 2 * time.Minute

// RedisContextStore implements ContextStore on Redis string keys with a TTL,
// so contexts abandoned by crashed clients expire on their own.
type RedisContextStore struct {
	client *redis.Client
	ttl    time.Duration
}

// NewRedisContextStore creates a context store with its own Redis
// connection. A non-positive ttl falls back to DefaultContextTTL.
func NewRedisContextStore(opts RedisOptions, ttl time.Duration) (*RedisContextStore, error) {
	client, err := newRedisClient(opts)
	if err != nil {
		return nil, err
	}
	if ttl <= 0 {
		ttl = DefaultContextTTL
	}
	return &RedisContextStore{client: client, ttl: ttl}, nil
}

// contextKey builds the per-(entity, actor) key. Keeping the entity id first
// lets Participants scan one entity's contexts with a single pattern.
func contextKey(entityID, actor string) string {
	return fmt.Sprintf("edit:%s:%s", entityID, actor)
}

// SetEditContext writes the context record, refreshing the TTL.
func (s *RedisContextStore) SetEditContext(ctx context.Context, actor, entityID, payload string) error {
	record := EditContext{
		Actor:    actor,
		EntityID: entityID,
		Payload:  payload,
		At:       time.Now().UTC(),
	}

	data, err := json.Marshal(record)
	if err != nil {
		return fmt.Errorf("failed to marshal edit context: %w", err)
	}

	if err := s.client.Set(ctx, contextKey(entityID, actor), data, s.ttl).Err(); err != nil {
		return fmt.Errorf("failed to set edit context for %s: %w", entityID, err)
	}
	return nil
}

// CleanEditContext removes the context record. Missing keys are ignored.
func (s *RedisContextStore) CleanEditContext(ctx context.Context, actor, entityID string) error {
	if err := s.client.Del(ctx, contextKey(entityID, actor)).Err(); err != nil {
		return fmt.Errorf("failed to clean edit context for %s: %w", entityID, err)
	}
	return nil
}

// Participants returns the live edit contexts of an entity.
func (s *RedisContextStore) Participants(ctx context.Context, entityID string) ([]EditContext, error) {
	pattern := contextKey(entityID, "*")

	var contexts []EditContext
	iter := s.client.Scan(ctx, 0, pattern, 0).Iterator()
	for iter.Next(ctx) {
		data, err := s.client.Get(ctx, iter.Val()).Result()
		if err != nil {
			if err == redis.Nil {
				// Expired between scan and get.
				continue
			}
			return nil, fmt.Errorf("failed to read edit context: %w", err)
		}

		var record EditContext
		if err := json.Unmarshal([]byte(data), &record); err != nil {
			continue
		}
		contexts = append(contexts, record)
	}
	if err := iter.Err(); err != nil {
		return nil, fmt.Errorf("failed to scan edit contexts for %s: %w", entityID, err)
	}

	return contexts, nil
}

// Close closes the Redis connection.
func (s *RedisContextStore) Close() error {
	return s.client.Close()
}
