package bus

import (
	"context"
	"crypto/tls"
	"encoding/json"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

// Event is one domain notification published on a topic channel.
type Event struct {
	// Topic is the channel the event was published on.
	Topic string `json:"topic"`

	// Actor identifies who triggered the event.
	Actor string `json:"actor"`

	// Payload is the entity (or relation) state carried by the event,
	// serialized as produced by the domain layer.
	Payload any `json:"payload"`

	// At is the publication timestamp.
	At time.Time `json:"at"`
}

// Notifier publishes domain events. Implementations must not block the
// calling mutation beyond the publish round-trip.
type Notifier interface {
	// Notify publishes one event on the given topic.
	Notify(ctx context.Context, topic, actor string, payload any) error
}

// RedisOptions configures the Redis connection shared by the notifier and
// the edit-context store.
type RedisOptions struct {
	// URL is the Redis connection string (e.g., "redis://localhost:6379")
	URL string

	// TLS configuration for secure connections
	TLS *tls.Config

	// ConnectTimeout is the maximum time to wait for connection establishment
	ConnectTimeout time.Duration

	// ReadTimeout is the maximum time to wait for read operations
	ReadTimeout time.Duration

	// WriteTimeout is the maximum time to wait for write operations
	WriteTimeout time.Duration
}

// newRedisClient builds a connected go-redis client from options, applying
// the package defaults and verifying connectivity with a ping.
func newRedisClient(opts RedisOptions) (*redis.Client, error) {
	if opts.URL == "" {
		opts.URL = "redis://localhost:6379"
	}
	if opts.ConnectTimeout == 0 {
		opts.ConnectTimeout = 5 * time.Second
	}
	if opts.ReadTimeout == 0 {
		opts.ReadTimeout = 30 * time.Second
	}
	if opts.WriteTimeout == 0 {
		opts.WriteTimeout = 5 * time.Second
	}

	redisOpts, err := redis.ParseURL(opts.URL)
	if err != nil {
		return nil, fmt.Errorf("failed to parse Redis URL: %w", err)
	}

	redisOpts.TLSConfig = opts.TLS
	redisOpts.DialTimeout = opts.ConnectTimeout
	redisOpts.ReadTimeout = opts.ReadTimeout
	redisOpts.WriteTimeout = opts.WriteTimeout

	client := redis.NewClient(redisOpts)

	ctx, cancel := context.WithTimeout(context.Background(), opts.ConnectTimeout)
	defer cancel()

	if err := client.Ping(ctx).Err(); err != nil {
		return nil, fmt.Errorf("failed to connect to Redis: %w", err)
	}

	return client, nil
}

// RedisNotifier publishes events on Redis pub/sub channels and lets the
// GraphQL subscription layer stream them back out.
type RedisNotifier struct {
	client *redis.Client
}

// NewRedisNotifier creates a notifier with its own Redis connection.
func NewRedisNotifier(opts RedisOptions) (*RedisNotifier, error) {
	client, err := newRedisClient(opts)
	if err != nil {
		return nil, err
	}
	return &RedisNotifier{client: client}, nil
}

// Notify publishes one event on the given topic.
func (n *RedisNotifier) Notify(ctx context.Context, topic, actor string, payload any) error {
	event := Event{
		Topic:   topic,
		Actor:   actor,
		Payload: payload,
		At:      time.Now().UTC(),
	}

	data, err := json.Marshal(event)
	if err != nil {
		return fmt.Errorf("failed to marshal event: %w", err)
	}

	if err := n.client.Publish(ctx, topic, data).Err(); err != nil {
		return fmt.Errorf("failed to publish to topic %s: %w", topic, err)
	}

	return nil
}

// Subscribe creates a subscription to a topic channel. The returned channel
// receives events until the context is cancelled.
func (n *RedisNotifier) Subscribe(ctx context.Context, topic string) (<-chan Event, error) {
	pubsub := n.client.Subscribe(ctx, topic)

	// Wait for subscription confirmation
	if _, err := pubsub.Receive(ctx); err != nil {
		return nil, fmt.Errorf("failed to subscribe to topic %s: %w", topic, err)
	}

	eventChan := make(chan Event)

	go func() {
		defer close(eventChan)
		defer pubsub.Close()

		ch := pubsub.Channel()
		for {
			select {
			case <-ctx.Done():
				return
			case msg, ok := <-ch:
				if !ok {
					return
				}

				var event Event
				if err := json.Unmarshal([]byte(msg.Payload), &event); err != nil {
					// Skip malformed payloads and keep streaming.
					continue
				}

				select {
				case eventChan <- event:
				case <-ctx.Done():
					return
				}
			}
		}
	}()

	return eventChan, nil
}

// Close closes the Redis connection.
func (n *RedisNotifier) Close() error {
	return n.client.Close()
}
