package tracing

import (
	"bytes"
	"context"
	"errors"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"go.opentelemetry.io/otel/sdk/trace/tracetest"
)

func TestContextValues(t *testing.T) {
	ctx := context.Background()
	assert.Equal(t, &TraceContext{}, FromContext(ctx))

	ctx = WithTraceID(ctx, "trace-1")
	ctx = WithSessionID(ctx, "session-1")
	ctx = WithRequestID(ctx, "req-1")

	assert.Equal(t, "trace-1", GetTraceID(ctx))
	assert.Equal(t, "session-1", GetSessionID(ctx))
	assert.Equal(t, "req-1", GetRequestID(ctx))

	clone := NewContext(context.Background(), FromContext(ctx))
	assert.Equal(t, FromContext(ctx), FromContext(clone))

	assert.Empty(t, GetSessionID(nil))
}

func TestNewTraceID(t *testing.T) {
	a, b := NewTraceID(), NewTraceID()
	assert.Len(t, a, 36)
	assert.NotEqual(t, a, b)
}

func TestLoggerFromContext(t *testing.T) {
	var buf bytes.Buffer
	base := zerolog.New(&buf)

	ctx := WithRequestID(WithSessionID(context.Background(), "session-1"), "req-1")
	logger := LoggerFromContext(ctx, base)
	logger.Info().Msg("handled")

	assert.Contains(t, buf.String(), `"session_id":"session-1"`)
	assert.Contains(t, buf.String(), `"request_id":"req-1"`)
	assert.NotContains(t, buf.String(), "trace_id")
}

func TestStartSpan(t *testing.T) {
	recorder := tracetest.NewSpanRecorder()
	require.NoError(t, Setup(Options{ServiceName: "fiftplay-test", Processors: []sdktrace.SpanProcessor{recorder}}))
	t.Cleanup(func() { _ = Shutdown(context.Background()) })

	t.Run("records trace id in context", func(t *testing.T) {
		ctx, span := StartSpan(context.Background(), "test", "rpc workspace.state", attribute.String("rpc.method", "workspace.state"))
		EndSpan(span, nil)

		assert.Equal(t, span.SpanContext().TraceID().String(), GetTraceID(ctx))
	})

	t.Run("failed span", func(t *testing.T) {
		_, span := StartSpan(context.Background(), "test", "rpc workspace.setActive")
		EndSpan(span, errors.New("file not found"))

		var ended sdktrace.ReadOnlySpan
		for _, s := range recorder.Ended() {
			if s.Name() == "rpc workspace.setActive" {
				ended = s
			}
		}
		require.NotNil(t, ended)
		assert.Equal(t, codes.Error, ended.Status().Code)
		assert.Equal(t, "file not found", ended.Status().Description)
	})

	t.Run("nil context", func(t *testing.T) {
		ctx, span := StartSpan(nil, "test", "orphan")
		defer span.End()
		assert.NotNil(t, ctx)
	})
}

func TestSetup_InstalledOnce(t *testing.T) {
	first := tracetest.NewSpanRecorder()
	second := tracetest.NewSpanRecorder()

	require.NoError(t, Setup(Options{ServiceName: "fiftplay-test", Processors: []sdktrace.SpanProcessor{first}}))
	require.NoError(t, Setup(Options{ServiceName: "fiftplay-test", Processors: []sdktrace.SpanProcessor{second}}))

	_, span := StartSpan(context.Background(), "test", "rpc workspace.serialize")
	EndSpan(span, nil)

	assert.Len(t, first.Ended(), 1)
	assert.Empty(t, second.Ended())

	require.NoError(t, Shutdown(context.Background()))
	require.NoError(t, Shutdown(context.Background()))

	require.NoError(t, Setup(Options{ServiceName: "fiftplay-test", ServiceVersion: "0.1.0", Processors: []sdktrace.SpanProcessor{second}}))
	t.Cleanup(func() { _ = Shutdown(context.Background()) })

	_, span = StartSpan(context.Background(), "test", "rpc workspace.state")
	EndSpan(span, nil)

	require.Len(t, second.Ended(), 1)
	assert.Len(t, first.Ended(), 1)
}
