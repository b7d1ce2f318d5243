package queue

import (
	"context"
	"encoding/json"
	"fmt"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/stixgraph/stixgraph/connector"
)

// setupTestPublisher creates a miniredis instance and a connected publisher.
func setupTestPublisher(t *testing.T) (*RedisPublisher, *miniredis.Miniredis) {
	t.Helper()

	mr := miniredis.RunT(t)
	pub, err := NewRedisPublisher(RedisOptions{
		URL:            fmt.Sprintf("redis://%s", mr.Addr()),
		ConnectTimeout: 5 * time.Second,
	})
	require.NoError(t, err)

	t.Cleanup(func() {
		_ = pub.Close()
		mr.Close()
	})

	return pub, mr
}

func TestNewRedisPublisher(t *testing.T) {
	t.Run("successful connection", func(t *testing.T) {
		mr := miniredis.RunT(t)
		defer mr.Close()

		pub, err := NewRedisPublisher(RedisOptions{
			URL: fmt.Sprintf("redis://%s", mr.Addr()),
		})
		require.NoError(t, err)
		require.NotNil(t, pub)
		defer pub.Close()
	})

	t.Run("connection failure", func(t *testing.T) {
		_, err := NewRedisPublisher(RedisOptions{
			URL:            "redis://localhost:1",
			ConnectTimeout: 100 * time.Millisecond,
		})
		require.Error(t, err)
		assert.Contains(t, err.Error(), "failed to connect to Redis")
	})

	t.Run("invalid URL", func(t *testing.T) {
		_, err := NewRedisPublisher(RedisOptions{
			URL: "invalid://url",
		})
		require.Error(t, err)
		assert.Contains(t, err.Error(), "failed to parse Redis URL")
	})
}

func TestQueueName(t *testing.T) {
	t.Run("explicit queue", func(t *testing.T) {
		conn := &connector.Connector{ID: "c1", Queue: "export-csv"}
		assert.Equal(t, "connector:export-csv:messages", QueueName(conn))
	})

	t.Run("defaults to connector id", func(t *testing.T) {
		conn := &connector.Connector{ID: "c1"}
		assert.Equal(t, "connector:c1:messages", QueueName(conn))
	})
}

func TestPushToConnector(t *testing.T) {
	pub, mr := setupTestPublisher(t)
	ctx := context.Background()
	conn := &connector.Connector{ID: "export-csv"}

	msg := DispatchMessage{
		WorkID:     "work-1",
		JobID:      "job-1",
		EntityType: "stix-observable",
		EntityID:   "obs-1",
		FileName:   "20250101T000000Z_all_csv.csv",
	}
	require.NoError(t, pub.PushToConnector(ctx, conn, msg))

	raw, err := mr.Lpop("connector:export-csv:messages")
	require.NoError(t, err)

	var got DispatchMessage
	require.NoError(t, json.Unmarshal([]byte(raw), &got))
	assert.Equal(t, "work-1", got.WorkID)
	assert.Equal(t, "job-1", got.JobID)
	assert.Equal(t, "stix-observable", got.EntityType)
}

func TestPushEnrichmentMessage(t *testing.T) {
	pub, mr := setupTestPublisher(t)
	conn := &connector.Connector{ID: "enricher"}

	msg := EnrichmentMessage{WorkID: "work-1", JobID: "job-1", EntityID: "obs-1"}
	require.NoError(t, pub.PushToConnector(context.Background(), conn, msg))

	raw, err := mr.Lpop("connector:enricher:messages")
	require.NoError(t, err)

	var got EnrichmentMessage
	require.NoError(t, json.Unmarshal([]byte(raw), &got))
	assert.Equal(t, "obs-1", got.EntityID)
}

func TestPushRejectsInvalidMessages(t *testing.T) {
	pub, _ := setupTestPublisher(t)
	conn := &connector.Connector{ID: "export-csv"}

	t.Run("nil connector", func(t *testing.T) {
		err := pub.PushToConnector(context.Background(), nil, DispatchMessage{})
		assert.Error(t, err)
	})

	t.Run("missing work id", func(t *testing.T) {
		err := pub.PushToConnector(context.Background(), conn, DispatchMessage{JobID: "job-1", EntityType: "stix-observable"})
		require.Error(t, err)
		assert.Contains(t, err.Error(), "work_id is required")
	})

	t.Run("enrichment missing entity", func(t *testing.T) {
		err := pub.PushToConnector(context.Background(), conn, EnrichmentMessage{WorkID: "w", JobID: "j"})
		require.Error(t, err)
		assert.Contains(t, err.Error(), "entity_id is required")
	})
}

func TestDispatchMessageValidate(t *testing.T) {
	tests := []struct {
		name    string
		msg     DispatchMessage
		wantErr string
	}{
		{
			name: "valid",
			msg:  DispatchMessage{WorkID: "w", JobID: "j", EntityType: "stix-observable"},
		},
		{
			name:    "missing job",
			msg:     DispatchMessage{WorkID: "w", EntityType: "stix-observable"},
			wantErr: "job_id is required",
		},
		{
			name:    "missing entity type",
			msg:     DispatchMessage{WorkID: "w", JobID: "j"},
			wantErr: "entity_type is required",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.msg.Validate()
			if tt.wantErr == "" {
				assert.NoError(t, err)
			} else {
				require.Error(t, err)
				assert.Contains(t, err.Error(), tt.wantErr)
			}
		})
	}
}
