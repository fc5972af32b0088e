package tracing

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.opentelemetry.io/otel/codes"
	tracesdk "go.opentelemetry.io/otel/sdk/trace"
	"go.opentelemetry.io/otel/sdk/trace/tracetest"
)

func TestDefaultConfig(t *testing.T) {
	cfg := DefaultConfig()
	assert.False(t, cfg.Enabled)
	assert.Equal(t, "peerlink", cfg.ServiceName)
	assert.Equal(t, 1.0, cfg.SampleRate)
}

func TestInit_Disabled(t *testing.T) {
	tp, err := Init(DefaultConfig())
	require.NoError(t, err)
	assert.NoError(t, tp.Shutdown(context.Background()))

	// No-op spans are still usable.
	ctx, span := StartSpan(context.Background(), "noop")
	RecordError(ctx, errors.New("ignored"))
	span.End()
}

func TestTraceWebSocketMessage_RecordsSpan(t *testing.T) {
	recorder := tracetest.NewSpanRecorder()
	tp := Install(tracesdk.NewTracerProvider(tracesdk.WithSpanProcessor(recorder)))
	defer tp.Shutdown(context.Background())

	ctx, span := TraceWebSocketMessage(context.Background(), "offer", "conn-1")
	AddSpanAttributes(ctx, TargetKey.String("bob"))
	RecordError(ctx, errors.New("target user not found"))
	span.End()

	ended := recorder.Ended()
	require.Len(t, ended, 1)
	assert.Equal(t, "websocket.offer", ended[0].Name())
	assert.Equal(t, codes.Error, ended[0].Status().Code)

	attrs := map[string]string{}
	for _, kv := range ended[0].Attributes() {
		attrs[string(kv.Key)] = kv.Value.Emit()
	}
	assert.Equal(t, "conn-1", attrs["peerlink.conn_id"])
	assert.Equal(t, "bob", attrs["peerlink.target"])
}

func TestTraceHTTPRequest(t *testing.T) {
	recorder := tracetest.NewSpanRecorder()
	tp := Install(tracesdk.NewTracerProvider(tracesdk.WithSpanProcessor(recorder)))
	defer tp.Shutdown(context.Background())

	_, span := TraceHTTPRequest(context.Background(), "GET", "/health")
	span.End()

	require.Len(t, recorder.Ended(), 1)
	assert.Equal(t, "http.GET", recorder.Ended()[0].Name())
}
