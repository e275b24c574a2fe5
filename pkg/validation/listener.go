package validation

import (
	"context"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/rs/zerolog"

	"github.com/StricklySoft/stricklysoft-security/pkg/logging"
	"github.com/StricklySoft/stricklysoft-security/pkg/token"
)

var (
	resultsTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: "stricklysoft",
		Subsystem: "validation",
		Name:      "results_total",
		Help:      "Combined token validations by outcome (valid, invalid).",
	}, []string{"outcome"})

	violationsTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: "stricklysoft",
		Subsystem: "validation",
		Name:      "violations_total",
		Help:      "Validation violations by error code.",
	}, []string{"code"})
)

func init() {
	prometheus.MustRegister(resultsTotal, violationsTotal)
}

// LogListener logs every outcome at debug level. Only the token's
// fingerprint is logged.
type LogListener struct {
	Logger zerolog.Logger
}

// NewLogListener logs through the "validation" component logger.
func NewLogListener() LogListener {
	return LogListener{Logger: logging.Component("validation")}
}

// OnValidationSuccess implements Listener.
func (l LogListener) OnValidationSuccess(ctx context.Context, tok *token.Token) {
	logger := logging.Enrich(ctx, l.Logger)
	logger.Debug().
		Str("token", tok.Fingerprint()).
		Str("iss", tok.Issuer()).
		Str("client_id", tok.ClientID()).
		Msg("token accepted")
}

// OnValidationFailure implements Listener.
func (l LogListener) OnValidationFailure(ctx context.Context, tok *token.Token, res Result) {
	logger := logging.Enrich(ctx, l.Logger)
	ev := logger.Debug().Strs("codes", codeStrings(res)).Str("reason", res.Reason())
	if tok != nil {
		ev = ev.Str("token", tok.Fingerprint()).Str("iss", tok.Issuer())
	}
	ev.Msg("token rejected")
}

// MetricsListener counts outcomes and violation codes in the default
// Prometheus registry.
type MetricsListener struct{}

// OnValidationSuccess implements Listener.
func (MetricsListener) OnValidationSuccess(context.Context, *token.Token) {
	resultsTotal.WithLabelValues("valid").Inc()
}

// OnValidationFailure implements Listener.
func (MetricsListener) OnValidationFailure(_ context.Context, _ *token.Token, res Result) {
	resultsTotal.WithLabelValues("invalid").Inc()
	for _, code := range res.Codes() {
		violationsTotal.WithLabelValues(string(code)).Inc()
	}
}

func codeStrings(res Result) []string {
	codes := res.Codes()
	out := make([]string, len(codes))
	for i, c := range codes {
		out[i] = string(c)
	}
	return out
}
