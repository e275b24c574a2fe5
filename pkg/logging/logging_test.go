package logging

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
)

func decodeLine(t *testing.T, buf *bytes.Buffer) map[string]any {
	t.Helper()
	var m map[string]any
	require.NoError(t, json.Unmarshal(bytes.TrimSpace(buf.Bytes()), &m))
	return m
}

func TestNew_JSONFields(t *testing.T) {
	t.Parallel()
	var buf bytes.Buffer
	cfg := DefaultConfig()
	cfg.Output = &buf
	cfg.ServiceName = "svc"

	logger := New(cfg)
	logger.Info().Str("code", "AUTH_002").Msg("token expired")

	line := decodeLine(t, &buf)
	assert.Equal(t, "svc", line["service"])
	assert.Equal(t, "development", line["environment"])
	assert.Equal(t, "AUTH_002", line["code"])
	assert.Equal(t, "info", line["level"])
}

func TestNew_LevelFilters(t *testing.T) {
	t.Parallel()
	var buf bytes.Buffer
	logger := New(Config{Level: LevelWarn, Format: FormatJSON, Output: &buf})

	logger.Info().Msg("dropped")
	assert.Zero(t, buf.Len())

	logger.Warn().Msg("kept")
	assert.NotZero(t, buf.Len())
}

func TestNew_UnknownLevelFallsBackToInfo(t *testing.T) {
	t.Parallel()
	var buf bytes.Buffer
	logger := New(Config{Level: "loud", Output: &buf})
	logger.Debug().Msg("dropped")
	assert.Zero(t, buf.Len())
	logger.Info().Msg("kept")
	assert.NotZero(t, buf.Len())
}

func TestCorrelationID(t *testing.T) {
	t.Parallel()
	ctx := WithCorrelationID(context.Background(), "abc")
	assert.Equal(t, "abc", CorrelationID(ctx))
	assert.Empty(t, CorrelationID(context.Background()))
}

func TestCorrelationFromRequest(t *testing.T) {
	t.Parallel()
	r := httptest.NewRequest("GET", "/", nil)
	r.Header.Set("X-Request-ID", "req-1")
	assert.Equal(t, "req-1", CorrelationFromRequest(r))

	r.Header.Set(CorrelationHeader, "corr-1")
	assert.Equal(t, "corr-1", CorrelationFromRequest(r))

	fresh := CorrelationFromRequest(httptest.NewRequest("GET", "/", nil))
	assert.Len(t, fresh, 36)
}

func TestEnrich(t *testing.T) {
	t.Parallel()
	tp := sdktrace.NewTracerProvider()
	t.Cleanup(func() { _ = tp.Shutdown(context.Background()) })

	ctx, span := tp.Tracer("test").Start(WithCorrelationID(context.Background(), "corr-9"), "op")
	defer span.End()

	var buf bytes.Buffer
	logger := Enrich(ctx, New(Config{Output: &buf}))
	logger.Info().Msg("x")

	line := decodeLine(t, &buf)
	assert.Equal(t, "corr-9", line["correlation_id"])
	assert.Equal(t, span.SpanContext().TraceID().String(), line["trace_id"])
}
