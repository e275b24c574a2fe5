package main

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/zerolog"

	"github.com/StricklySoft/stricklysoft-security/pkg/auth"
	sserr "github.com/StricklySoft/stricklysoft-security/pkg/errors"
	"github.com/StricklySoft/stricklysoft-security/pkg/validation"
)

// maxRequestBytes caps the /v1/validate body. A token plus a PEM
// certificate fits comfortably.
const maxRequestBytes = 64 << 10

// healthChecker reports whether a dependency is reachable.
type healthChecker interface {
	Health(ctx context.Context) error
}

type server struct {
	validator validation.Validator
	authn     *auth.Authenticator
	health    healthChecker
	logger    zerolog.Logger
	mwOpts    []auth.MiddlewareOption
}

type validateRequest struct {
	Token       string `json:"token"`
	Certificate string `json:"certificate,omitempty"`
}

type principalResponse struct {
	ID               string   `json:"id"`
	Kind             string   `json:"kind"`
	Subject          string   `json:"subject,omitempty"`
	ClientID         string   `json:"client_id,omitempty"`
	TenantID         string   `json:"tenant_id,omitempty"`
	Issuer           string   `json:"issuer"`
	Audiences        []string `json:"audiences,omitempty"`
	Scopes           []string `json:"scopes,omitempty"`
	CertificateBound bool     `json:"certificate_bound"`
}

// newRouter wires the service routes:
//
//	GET  /healthz      liveness, 503 when the shared key store is down
//	GET  /metrics      Prometheus metrics
//	POST /v1/validate  validate a token given in the body
//	GET  /v1/whoami    authenticate the bearer token and describe it
func newRouter(s *server) http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.Recoverer)
	r.Use(requestLogger(s.logger))

	r.Get("/healthz", s.handleHealth)
	r.Handle("/metrics", promhttp.Handler())

	r.Route("/v1", func(r chi.Router) {
		r.Post("/validate", s.handleValidate)
		r.Group(func(r chi.Router) {
			r.Use(auth.HTTPMiddleware(s.authn, s.mwOpts...))
			r.Get("/whoami", s.handleWhoAmI)
		})
	})
	return r
}

func (s *server) handleHealth(w http.ResponseWriter, r *http.Request) {
	if s.health != nil {
		if err := s.health.Health(r.Context()); err != nil {
			s.logger.Warn().Err(err).Msg("health check failed")
			writeResponse(w, http.StatusServiceUnavailable, map[string]string{"status": "unavailable"})
			return
		}
	}
	writeResponse(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (s *server) handleValidate(w http.ResponseWriter, r *http.Request) {
	var req validateRequest
	body, err := io.ReadAll(http.MaxBytesReader(w, r.Body, maxRequestBytes))
	if err == nil {
		err = json.Unmarshal(body, &req)
	}
	if err != nil {
		writeResponse(w, http.StatusBadRequest, map[string]string{"error": "request body must be a JSON object with a token"})
		return
	}
	if req.Token == "" {
		writeResponse(w, http.StatusBadRequest, map[string]string{"error": "token is required"})
		return
	}

	res, tok := check(r.Context(), s.validator, req.Token, req.Certificate)
	writeResponse(w, http.StatusOK, newReport(res, tok))
}

func (s *server) handleWhoAmI(w http.ResponseWriter, r *http.Request) {
	p, ok := auth.PrincipalFromContext(r.Context())
	if !ok {
		auth.WriteError(w, r, sserr.Unauthorized("no principal"))
		return
	}
	writeResponse(w, http.StatusOK, principalResponse{
		ID:               p.ID(),
		Kind:             string(p.Kind()),
		Subject:          p.Subject(),
		ClientID:         p.ClientID(),
		TenantID:         p.TenantID(),
		Issuer:           p.Issuer(),
		Audiences:        p.Audiences(),
		Scopes:           p.Scopes(),
		CertificateBound: p.CertificateBound(),
	})
}

// requestLogger logs one line per request at debug level, or at warn
// level for server errors.
func requestLogger(logger zerolog.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
			start := time.Now()
			defer func() {
				ev := logger.Debug()
				if ww.Status() >= http.StatusInternalServerError {
					ev = logger.Warn()
				}
				ev.Str("method", r.Method).
					Str("path", r.URL.Path).
					Int("status", ww.Status()).
					Int("bytes", ww.BytesWritten()).
					Dur("duration", time.Since(start)).
					Msg("request")
			}()
			next.ServeHTTP(ww, r)
		})
	}
}

func writeResponse(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}
