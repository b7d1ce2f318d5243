package telemetry

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewTracerProvider(t *testing.T) {
	tp := NewTracerProvider("stixgraph-test", nil)
	require.NotNil(t, tp)
	t.Cleanup(func() { _ = tp.Shutdown(context.Background()) })

	tracer := tp.Tracer("test")
	_, span := tracer.Start(context.Background(), "op")
	assert.True(t, span.SpanContext().TraceID().IsValid())
	span.End()
	assert.False(t, span.IsRecording())
}

func TestGlobalHelpers(t *testing.T) {
	assert.NotNil(t, Tracer("stixgraph/test"))

	meter := Meter("stixgraph/test")
	counter, err := meter.Int64Counter("stixgraph.test.counter")
	require.NoError(t, err)
	counter.Add(context.Background(), 1)
}
