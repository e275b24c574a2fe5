package auth

import (
	"encoding/json"
	"net/http"

	"github.com/rs/zerolog"

	"github.com/StricklySoft/stricklysoft-security/pkg/cert"
	sserr "github.com/StricklySoft/stricklysoft-security/pkg/errors"
	"github.com/StricklySoft/stricklysoft-security/pkg/logging"
	"github.com/StricklySoft/stricklysoft-security/pkg/secctx"
)

// MiddlewareOption customizes HTTPMiddleware.
type MiddlewareOption func(*middlewareOptions)

type middlewareOptions struct {
	trustForwardedCert bool
}

// TrustForwardedClientCert reads the client certificate from the
// X-Forwarded-Client-Cert header when the connection itself carries
// none. Enable it only behind a proxy that terminates mutual TLS and
// overwrites the header; otherwise any client can claim any certificate.
func TrustForwardedClientCert() MiddlewareOption {
	return func(o *middlewareOptions) { o.trustForwardedCert = true }
}

// HTTPMiddleware returns an HTTP middleware that authenticates every
// request with a.
//
// The middleware performs the following steps:
//  1. Assigns a correlation id, reusing X-Correlation-ID when present
//  2. Opens a security scope that is cleared when the handler returns
//  3. Attaches the TLS client certificate (or the forwarded one, see
//     [TrustForwardedClientCert]) to the scope
//  4. Authenticates the bearer token of the Authorization header
//  5. Stores the resulting [Principal] in the request context
//
// Failures are answered with a JSON error body and the status of the
// error code: 401 with a WWW-Authenticate challenge for authentication
// failures, 500 for internal errors.
func HTTPMiddleware(a *Authenticator, opts ...MiddlewareOption) func(http.Handler) http.Handler {
	var o middlewareOptions
	for _, opt := range opts {
		opt(&o)
	}
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			id := logging.CorrelationFromRequest(r)
			w.Header().Set(logging.CorrelationHeader, id)
			ctx := logging.WithCorrelationID(r.Context(), id)

			ctx, scope, done := secctx.WithScope(ctx)
			defer done()

			if c := requestCertificate(r, o.trustForwardedCert, a.logger); c != nil {
				scope.SetCertificate(c)
			}

			raw := ExtractBearerToken(r.Header.Get(HeaderAuthorization))
			p, err := a.Authenticate(ctx, raw)
			if err != nil {
				WriteError(w, r.WithContext(ctx), err)
				return
			}
			next.ServeHTTP(w, r.WithContext(ContextWithPrincipal(ctx, p)))
		})
	}
}

// requestCertificate returns the client certificate of r, or nil.
func requestCertificate(r *http.Request, trustForwarded bool, logger zerolog.Logger) *cert.Certificate {
	if r.TLS != nil && len(r.TLS.PeerCertificates) > 0 {
		return cert.FromX509(r.TLS.PeerCertificates[0])
	}
	if !trustForwarded {
		return nil
	}
	v := r.Header.Get(cert.ForwardedClientCertHeader)
	if v == "" {
		return nil
	}
	c, err := cert.Parse(v)
	if err != nil {
		log := logging.Enrich(r.Context(), logger)
		log.Warn().Err(err).Msg("ignoring unparsable forwarded client certificate")
		return nil
	}
	return c
}

type errorBody struct {
	Error         string `json:"error"`
	Message       string `json:"message"`
	CorrelationID string `json:"correlation_id,omitempty"`
}

// WriteError answers r with err as a JSON body. The status follows the
// error code; authentication failures carry a Bearer challenge.
func WriteError(w http.ResponseWriter, r *http.Request, err error) {
	e := sserr.FromError(err)
	status := e.HTTPStatus()

	body := errorBody{
		Error:         e.Code.String(),
		Message:       e.Message,
		CorrelationID: logging.CorrelationID(r.Context()),
	}
	switch status {
	case http.StatusUnauthorized:
		w.Header().Set("WWW-Authenticate", `Bearer error="invalid_token"`)
	case http.StatusForbidden:
		w.Header().Set("WWW-Authenticate", `Bearer error="insufficient_scope"`)
	case http.StatusInternalServerError:
		body.Message = "internal error"
		log := logging.Ctx(r.Context(), "auth")
		log.Error().Err(err).Msg("request failed")
	}

	w.Header().Set("Content-Type", "application/json")
	w.Header().Set("X-Content-Type-Options", "nosniff")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(body)
}
