package main

import (
	"context"
	"crypto/x509/pkix"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/StricklySoft/stricklysoft-security/internal/testutil"
	"github.com/StricklySoft/stricklysoft-security/internal/testutil/fixtures"
	"github.com/StricklySoft/stricklysoft-security/pkg/auth"
	"github.com/StricklySoft/stricklysoft-security/pkg/cert"
	"github.com/StricklySoft/stricklysoft-security/pkg/validation"
)

type serverTestHealth struct{ err error }

func (h serverTestHealth) Health(context.Context) error { return h.err }

// serverTestRouter serves a chain that trusts fixtures.Issuer and
// fetches keys from a local JWKS server.
func serverTestRouter(t *testing.T, health healthChecker, mwOpts ...auth.MiddlewareOption) http.Handler {
	t.Helper()
	srv := mainTestJWKS(t)

	cfg := validation.DefaultConfig()
	cfg.Issuers = []string{fixtures.Issuer}
	cfg.Audiences = []string{fixtures.Audience}
	cfg.JWKSURL = srv.JWKSURL()
	cfg.RequireCertificate = true
	chain, err := validation.NewChain(cfg, validation.WithChainListeners())
	require.NoError(t, err)

	authn, err := auth.NewAuthenticator(chain, auth.WithAppID(fixtures.Audience), auth.WithLogger(zerolog.Nop()))
	require.NoError(t, err)

	return newRouter(&server{
		validator: chain,
		authn:     authn,
		health:    health,
		logger:    zerolog.Nop(),
		mwOpts:    mwOpts,
	})
}

func serverTestDo(t *testing.T, h http.Handler, req *http.Request) *httptest.ResponseRecorder {
	t.Helper()
	rr := httptest.NewRecorder()
	h.ServeHTTP(rr, req)
	return rr
}

func serverTestValidate(t *testing.T, h http.Handler, body any) (*httptest.ResponseRecorder, report) {
	t.Helper()
	b, err := json.Marshal(body)
	require.NoError(t, err)
	rr := serverTestDo(t, h, httptest.NewRequest(http.MethodPost, "/v1/validate", strings.NewReader(string(b))))
	var r report
	if rr.Code == http.StatusOK {
		require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &r))
	}
	return rr, r
}

// ---------------------------------------------------------------------------
// /healthz and /metrics
// ---------------------------------------------------------------------------

func TestRouter_Health(t *testing.T) {
	t.Parallel()
	rr := serverTestDo(t, serverTestRouter(t, nil), httptest.NewRequest(http.MethodGet, "/healthz", nil))
	assert.Equal(t, http.StatusOK, rr.Code)
	assert.JSONEq(t, `{"status":"ok"}`, rr.Body.String())

	rr = serverTestDo(t, serverTestRouter(t, serverTestHealth{}), httptest.NewRequest(http.MethodGet, "/healthz", nil))
	assert.Equal(t, http.StatusOK, rr.Code)

	down := serverTestHealth{err: errors.New("connection refused")}
	rr = serverTestDo(t, serverTestRouter(t, down), httptest.NewRequest(http.MethodGet, "/healthz", nil))
	assert.Equal(t, http.StatusServiceUnavailable, rr.Code)
	assert.NotContains(t, rr.Body.String(), "connection refused")
}

func TestRouter_Metrics(t *testing.T) {
	t.Parallel()
	h := serverTestRouter(t, nil)
	serverTestValidate(t, h, validateRequest{Token: mainTestToken(t, nil)})

	rr := serverTestDo(t, h, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	assert.Equal(t, http.StatusOK, rr.Code)
	assert.Contains(t, rr.Body.String(), "go_goroutines")
}

// ---------------------------------------------------------------------------
// POST /v1/validate
// ---------------------------------------------------------------------------

func TestRouter_Validate(t *testing.T) {
	t.Parallel()
	h := serverTestRouter(t, nil)

	rr, r := serverTestValidate(t, h, validateRequest{Token: mainTestToken(t, nil)})
	assert.Equal(t, http.StatusOK, rr.Code)
	assert.True(t, r.Valid)
	assert.NotEmpty(t, r.Fingerprint)

	rr, r = serverTestValidate(t, h, validateRequest{Token: mainTestToken(t, map[string]any{"iss": fixtures.UntrustedIssuer})})
	assert.Equal(t, http.StatusOK, rr.Code)
	assert.False(t, r.Valid)
	require.Len(t, r.Violations, 1)
	assert.Equal(t, "AUTH_004", r.Violations[0].Code)
}

func TestRouter_ValidateWithCertificate(t *testing.T) {
	t.Parallel()
	h := serverTestRouter(t, nil)
	client := testutil.SelfSignedCertificate(t, pkix.Name{CommonName: "client"})
	raw := mainTestToken(t, map[string]any{
		"cnf": map[string]any{"x5t#S256": cert.FromX509(client.X509).Thumbprint()},
	})

	_, r := serverTestValidate(t, h, validateRequest{Token: raw, Certificate: client.PEM})
	assert.True(t, r.Valid)

	_, r = serverTestValidate(t, h, validateRequest{Token: raw})
	assert.False(t, r.Valid)
	require.NotEmpty(t, r.Violations)
	assert.Equal(t, "AUTH_007", r.Violations[0].Code)

	_, r = serverTestValidate(t, h, validateRequest{Token: raw, Certificate: "not a certificate"})
	assert.False(t, r.Valid)
	require.NotEmpty(t, r.Violations)
	assert.Equal(t, "CERT_001", r.Violations[0].Code)
}

func TestRouter_ValidateBadRequests(t *testing.T) {
	t.Parallel()
	h := serverTestRouter(t, nil)

	tests := []struct {
		name string
		body string
	}{
		{"not json", "token=abc"},
		{"empty token", `{"token":""}`},
		{"wrong type", `{"token":42}`},
		{"too large", `{"token":"` + strings.Repeat("a", maxRequestBytes) + `"}`},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			rr := serverTestDo(t, h, httptest.NewRequest(http.MethodPost, "/v1/validate", strings.NewReader(tt.body)))
			assert.Equal(t, http.StatusBadRequest, rr.Code)
		})
	}

	rr := serverTestDo(t, h, httptest.NewRequest(http.MethodGet, "/v1/validate", nil))
	assert.Equal(t, http.StatusMethodNotAllowed, rr.Code)
}

func TestRouter_ValidateMalformedToken(t *testing.T) {
	t.Parallel()
	rr, r := serverTestValidate(t, serverTestRouter(t, nil), validateRequest{Token: "a.b"})
	assert.Equal(t, http.StatusOK, rr.Code)
	assert.False(t, r.Valid)
	require.Len(t, r.Violations, 1)
	assert.Equal(t, "TOKEN_001", r.Violations[0].Code)
}

// ---------------------------------------------------------------------------
// GET /v1/whoami
// ---------------------------------------------------------------------------

func TestRouter_WhoAmI(t *testing.T) {
	t.Parallel()
	h := serverTestRouter(t, nil)
	raw := mainTestToken(t, map[string]any{
		"sub":     fixtures.Subject,
		"app_tid": fixtures.Tenant,
		"scope":   []string{"app1.read"},
	})

	req := httptest.NewRequest(http.MethodGet, "/v1/whoami", nil)
	req.Header.Set("Authorization", "Bearer "+raw)
	rr := serverTestDo(t, h, req)
	require.Equal(t, http.StatusOK, rr.Code, rr.Body.String())

	var got principalResponse
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &got))
	assert.Equal(t, fixtures.Subject, got.ID)
	assert.Equal(t, "user", got.Kind)
	assert.Equal(t, fixtures.Tenant, got.TenantID)
	assert.Equal(t, fixtures.Issuer, got.Issuer)
	assert.Equal(t, []string{"app1.read"}, got.Scopes)
	assert.False(t, got.CertificateBound)
}

func TestRouter_WhoAmIRejectsMissingToken(t *testing.T) {
	t.Parallel()
	rr := serverTestDo(t, serverTestRouter(t, nil), httptest.NewRequest(http.MethodGet, "/v1/whoami", nil))
	assert.Equal(t, http.StatusUnauthorized, rr.Code)
	assert.Contains(t, rr.Body.String(), "AUTH_001")
}

func TestRouter_WhoAmIForwardedCertificate(t *testing.T) {
	t.Parallel()
	client := testutil.SelfSignedCertificate(t, pkix.Name{CommonName: "client"})
	raw := mainTestToken(t, map[string]any{
		"sub": fixtures.Subject,
		"cnf": map[string]any{"x5t#S256": cert.FromX509(client.X509).Thumbprint()},
	})
	newReq := func() *http.Request {
		req := httptest.NewRequest(http.MethodGet, "/v1/whoami", nil)
		req.Header.Set("Authorization", "Bearer "+raw)
		req.Header.Set(cert.ForwardedClientCertHeader, `Cert="`+url.PathEscape(client.PEM)+`"`)
		return req
	}

	rr := serverTestDo(t, serverTestRouter(t, nil), newReq())
	assert.Equal(t, http.StatusUnauthorized, rr.Code)

	rr = serverTestDo(t, serverTestRouter(t, nil, auth.TrustForwardedClientCert()), newReq())
	require.Equal(t, http.StatusOK, rr.Code, rr.Body.String())
	assert.Contains(t, rr.Body.String(), `"certificate_bound":true`)
}
