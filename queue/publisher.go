package queue

import (
	"context"
	"crypto/tls"
	"encoding/json"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/stixgraph/stixgraph/connector"
)

// Publisher is the dispatch interface consumed by the domain layer.
type Publisher interface {
	// PushToConnector publishes one message onto the connector's queue.
	// The message must be a DispatchMessage or an EnrichmentMessage.
	PushToConnector(ctx context.Context, conn *connector.Connector, message any) error
}

// RedisOptions configures the Redis connection.
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

// RedisPublisher implements Publisher using go-redis/v9.
type RedisPublisher struct {
	client *redis.Client
}

// NewRedisPublisher creates a new dispatch publisher with the given options.
func NewRedisPublisher(opts RedisOptions) (*RedisPublisher, error) {
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

	// Test connection
	ctx, cancel := context.WithTimeout(context.Background(), opts.ConnectTimeout)
	defer cancel()

	if err := client.Ping(ctx).Err(); err != nil {
		return nil, fmt.Errorf("failed to connect to Redis: %w", err)
	}

	return &RedisPublisher{client: client}, nil
}

// QueueName returns the dispatch queue of a connector. Connectors may name
// their own queue; the default derives from the connector id.
func QueueName(conn *connector.Connector) string {
	q := conn.Queue
	if q == "" {
		q = conn.ID
	}
	return fmt.Sprintf("connector:%s:messages", q)
}

// PushToConnector publishes one message onto the connector's queue.
func (p *RedisPublisher) PushToConnector(ctx context.Context, conn *connector.Connector, message any) error {
	if conn == nil {
		return fmt.Errorf("connector is required")
	}

	switch m := message.(type) {
	case DispatchMessage:
		if err := m.Validate(); err != nil {
			return fmt.Errorf("invalid dispatch message: %w", err)
		}
	case *DispatchMessage:
		if err := m.Validate(); err != nil {
			return fmt.Errorf("invalid dispatch message: %w", err)
		}
	case EnrichmentMessage:
		if err := m.Validate(); err != nil {
			return fmt.Errorf("invalid enrichment message: %w", err)
		}
	case *EnrichmentMessage:
		if err := m.Validate(); err != nil {
			return fmt.Errorf("invalid enrichment message: %w", err)
		}
	}

	data, err := json.Marshal(message)
	if err != nil {
		return fmt.Errorf("failed to marshal message: %w", err)
	}

	queue := QueueName(conn)
	if err := p.client.LPush(ctx, queue, data).Err(); err != nil {
		return fmt.Errorf("failed to push to queue %s: %w", queue, err)
	}

	return nil
}

// Close closes the Redis connection.
func (p *RedisPublisher) Close() error {
	return p.client.Close()
}
