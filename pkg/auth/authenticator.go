// Package auth authenticates requests carrying bearer JSON Web Tokens.
//
// An [Authenticator] decodes the token, runs it through a validation
// chain and, on success, stores it in the request's security scope (see
// package secctx) and returns a [Principal]. [HTTPMiddleware] and the
// gRPC server interceptors open that scope for the lifetime of one
// request, attach the client certificate for proof-of-possession checks
// and clear everything when the handler returns.
//
// Outgoing calls can forward the current token with
// [NewForwardingRoundTripper] or the gRPC client interceptors.
//
// # Usage
//
//	chain, err := validation.NewChain(cfg)
//	if err != nil {
//	    return err
//	}
//	authn, err := auth.NewAuthenticator(chain, auth.WithAppID("my-app"))
//	if err != nil {
//	    return err
//	}
//	r := chi.NewRouter()
//	r.Use(auth.HTTPMiddleware(authn))
//	r.With(auth.RequireScope("read")).Get("/data", handleData)
package auth

import (
	"context"

	"github.com/rs/zerolog"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	sserr "github.com/StricklySoft/stricklysoft-security/pkg/errors"
	"github.com/StricklySoft/stricklysoft-security/pkg/logging"
	"github.com/StricklySoft/stricklysoft-security/pkg/secctx"
	"github.com/StricklySoft/stricklysoft-security/pkg/token"
	"github.com/StricklySoft/stricklysoft-security/pkg/validation"
)

const tracerName = "github.com/StricklySoft/stricklysoft-security/pkg/auth"

// DefaultMaxTokenSize is the largest raw token Authenticate decodes.
// Larger values are rejected before any parsing.
const DefaultMaxTokenSize = 8192

// Authenticator turns a raw bearer token into a [Principal].
//
// Authenticator is safe for concurrent use by multiple goroutines.
type Authenticator struct {
	validator    validation.Validator
	appID        string
	maxTokenSize int
	tracer       trace.Tracer
	logger       zerolog.Logger
}

// Option customizes NewAuthenticator.
type Option func(*Authenticator)

// WithAppID sets the application id used for local scopes, so that
// RequireScope("read") accepts a token granting "<appID>.read".
func WithAppID(appID string) Option {
	return func(a *Authenticator) { a.appID = appID }
}

// WithMaxTokenSize overrides DefaultMaxTokenSize.
func WithMaxTokenSize(n int) Option {
	return func(a *Authenticator) { a.maxTokenSize = n }
}

// WithTracer replaces the global tracer.
func WithTracer(t trace.Tracer) Option {
	return func(a *Authenticator) { a.tracer = t }
}

// WithLogger replaces the component logger.
func WithLogger(l zerolog.Logger) Option {
	return func(a *Authenticator) { a.logger = l }
}

// NewAuthenticator returns an Authenticator running every token through
// v, usually a *validation.Chain.
func NewAuthenticator(v validation.Validator, opts ...Option) (*Authenticator, error) {
	if v == nil {
		return nil, sserr.New(sserr.CodeConfigurationRequired, "auth: a validator is required")
	}
	a := &Authenticator{
		validator:    v,
		maxTokenSize: DefaultMaxTokenSize,
		tracer:       otel.Tracer(tracerName),
		logger:       logging.Component("auth"),
	}
	for _, opt := range opts {
		opt(a)
	}
	if a.maxTokenSize <= 0 {
		return nil, sserr.Newf(sserr.CodeConfiguration, "auth: max token size must be positive, got %d", a.maxTokenSize)
	}
	return a, nil
}

// Authenticate decodes and validates raw. On success the token is stored
// in the security scope carried by ctx, if any, and the caller's
// Principal is returned.
//
// Errors are *sserr.Error values: AUTH_001 for a missing token,
// TOKEN_002 for an oversized one, TOKEN_001 when it does not decode and
// the code of the first violation when validation rejects it.
func (a *Authenticator) Authenticate(ctx context.Context, raw string) (*Principal, error) {
	ctx, span := startSpan(ctx, a.tracer, "auth.Authenticate")
	defer span.End()

	if raw == "" {
		err := sserr.New(sserr.CodeAuthentication, "auth: missing bearer token")
		finishSpan(span, err)
		return nil, err
	}
	if len(raw) > a.maxTokenSize {
		err := sserr.Newf(sserr.CodeTokenTooLarge, "auth: token of %d bytes exceeds the %d byte limit", len(raw), a.maxTokenSize)
		finishSpan(span, err)
		return nil, err
	}

	tok, err := token.Decode(raw)
	if err != nil {
		finishSpan(span, err)
		return nil, err
	}
	span.SetAttributes(
		attribute.String("auth.token_fingerprint", tok.Fingerprint()),
		attribute.String("auth.algorithm", tok.Algorithm()),
	)

	if res := a.validator.Validate(ctx, tok); !res.IsValid() {
		err := res.Err()
		finishSpan(span, err)
		log := logging.Enrich(ctx, a.logger)
		log.Info().
			Str("token", tok.Fingerprint()).
			Strs("violations", codeStrings(res)).
			Msg("token rejected")
		return nil, err
	}

	if scope := secctx.FromContext(ctx); scope != nil {
		scope.SetToken(tok)
	}
	p := NewPrincipal(tok, a.appID)
	span.SetAttributes(
		attribute.String("auth.principal", p.ID()),
		attribute.String("auth.client_id", p.ClientID()),
	)
	return p, nil
}

func codeStrings(res validation.Result) []string {
	cs := res.Codes()
	out := make([]string, len(cs))
	for i, c := range cs {
		out[i] = c.String()
	}
	return out
}

func startSpan(ctx context.Context, tracer trace.Tracer, name string) (context.Context, trace.Span) {
	return tracer.Start(ctx, name)
}

// finishSpan marks span as failed when err is non-nil.
func finishSpan(span trace.Span, err error) {
	if span == nil || err == nil {
		return
	}
	span.RecordError(err)
	span.SetStatus(codes.Error, err.Error())
	if e, ok := sserr.AsError(err); ok {
		span.SetAttributes(attribute.String("auth.error_code", e.Code.String()))
	}
}
