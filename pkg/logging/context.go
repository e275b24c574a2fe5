package logging

import (
	"context"
	"net/http"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"go.opentelemetry.io/otel/trace"
)

// CorrelationHeader is the request and response header carrying the
// correlation id.
const CorrelationHeader = "X-Correlation-ID"

type correlationKey struct{}

// NewCorrelationID returns a random correlation id.
func NewCorrelationID() string {
	return uuid.NewString()
}

// WithCorrelationID stores id in ctx.
func WithCorrelationID(ctx context.Context, id string) context.Context {
	return context.WithValue(ctx, correlationKey{}, id)
}

// CorrelationID returns the id stored in ctx, or "".
func CorrelationID(ctx context.Context) string {
	id, _ := ctx.Value(correlationKey{}).(string)
	return id
}

// CorrelationFromRequest returns the inbound X-Correlation-ID, falling
// back to X-Request-ID and finally to a fresh id.
func CorrelationFromRequest(r *http.Request) string {
	if id := r.Header.Get(CorrelationHeader); id != "" {
		return id
	}
	if id := r.Header.Get("X-Request-ID"); id != "" {
		return id
	}
	return NewCorrelationID()
}

// FromContext returns the global logger enriched with the correlation id
// and, when a span is recording, the OpenTelemetry trace id.
func FromContext(ctx context.Context) zerolog.Logger {
	return Enrich(ctx, log.Logger)
}

// Ctx is FromContext tagged with component.
func Ctx(ctx context.Context, component string) zerolog.Logger {
	return Enrich(ctx, log.Logger.With().Str("component", component).Logger())
}

// Enrich adds the correlation and trace ids found in ctx to logger.
func Enrich(ctx context.Context, logger zerolog.Logger) zerolog.Logger {
	lc := logger.With()
	if id := CorrelationID(ctx); id != "" {
		lc = lc.Str("correlation_id", id)
	}
	if sc := trace.SpanContextFromContext(ctx); sc.HasTraceID() {
		lc = lc.Str("trace_id", sc.TraceID().String())
	}
	return lc.Logger()
}
