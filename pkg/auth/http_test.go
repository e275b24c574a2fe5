package auth

import (
	"context"
	"crypto/tls"
	"crypto/x509"
	"crypto/x509/pkix"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"net/url"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/StricklySoft/stricklysoft-security/internal/testutil"
	"github.com/StricklySoft/stricklysoft-security/pkg/cert"
	sserr "github.com/StricklySoft/stricklysoft-security/pkg/errors"
	"github.com/StricklySoft/stricklysoft-security/pkg/logging"
	"github.com/StricklySoft/stricklysoft-security/pkg/secctx"
)

func httpTestServe(t *testing.T, h http.Handler, req *http.Request) *httptest.ResponseRecorder {
	t.Helper()
	rr := httptest.NewRecorder()
	h.ServeHTTP(rr, req)
	return rr
}

func httpTestRequest(raw string) *http.Request {
	req := httptest.NewRequest(http.MethodGet, "/api/test", nil)
	if raw != "" {
		req.Header.Set("Authorization", "Bearer "+raw)
	}
	return req
}

func httpTestBody(t *testing.T, rr *httptest.ResponseRecorder) errorBody {
	t.Helper()
	var body errorBody
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &body))
	return body
}

// ---------------------------------------------------------------------------
// HTTPMiddleware
// ---------------------------------------------------------------------------

func TestHTTPMiddleware_ValidToken(t *testing.T) {
	t.Parallel()
	a := authTestAuthenticator(t, false)
	raw := authTestToken(t, nil)

	var captured *Principal
	var scopeToken string
	inner := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		captured = MustPrincipalFromContext(r.Context())
		scopeToken = secctx.TokenFromContext(r.Context()).Raw()
		w.WriteHeader(http.StatusOK)
	})

	rr := httpTestServe(t, HTTPMiddleware(a)(inner), httpTestRequest(raw))
	assert.Equal(t, http.StatusOK, rr.Code)
	require.NotNil(t, captured)
	assert.Equal(t, "user-abc-123", captured.ID())
	assert.Equal(t, raw, scopeToken)
	assert.NotEmpty(t, rr.Header().Get(logging.CorrelationHeader))
}

func TestHTTPMiddleware_ClearsScopeAfterHandler(t *testing.T) {
	t.Parallel()
	a := authTestAuthenticator(t, false)

	var scope *secctx.Scope
	inner := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		scope = secctx.FromContext(r.Context())
		require.NotNil(t, scope.Token())
	})
	httpTestServe(t, HTTPMiddleware(a)(inner), httpTestRequest(authTestToken(t, nil)))

	require.NotNil(t, scope)
	assert.Nil(t, scope.Token())
	assert.Nil(t, scope.Certificate())
}

func TestHTTPMiddleware_Rejections(t *testing.T) {
	t.Parallel()
	a := authTestAuthenticator(t, false)
	inner := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		t.Error("inner handler should not be called")
	})

	tests := []struct {
		name   string
		header string
		code   string
	}{
		{"missing header", "", "AUTH_001"},
		{"basic auth", "Basic dXNlcjpwYXNz", "AUTH_001"},
		{"malformed", "Bearer abc", "TOKEN_001"},
		{"untrusted issuer", "Bearer " + authTestToken(t, map[string]any{"iss": "https://evil.example"}), "AUTH_004"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			req := httptest.NewRequest(http.MethodGet, "/api/test", nil)
			if tt.header != "" {
				req.Header.Set("Authorization", tt.header)
			}
			req.Header.Set(logging.CorrelationHeader, "corr-1")

			rr := httpTestServe(t, HTTPMiddleware(a)(inner), req)
			assert.Equal(t, http.StatusUnauthorized, rr.Code)
			assert.Equal(t, `Bearer error="invalid_token"`, rr.Header().Get("WWW-Authenticate"))
			assert.Equal(t, "corr-1", rr.Header().Get(logging.CorrelationHeader))

			body := httpTestBody(t, rr)
			assert.Equal(t, tt.code, body.Error)
			assert.Equal(t, "corr-1", body.CorrelationID)
			assert.NotEmpty(t, body.Message)
		})
	}
}

func TestHTTPMiddleware_CertificateBinding(t *testing.T) {
	t.Parallel()
	a := authTestAuthenticator(t, true)
	client := testutil.SelfSignedCertificate(t, pkix.Name{CommonName: "client"})
	other := testutil.SelfSignedCertificate(t, pkix.Name{CommonName: "other"})
	bound := authTestToken(t, map[string]any{
		"cnf": map[string]any{"x5t#S256": cert.FromX509(client.X509).Thumbprint()},
	})

	ok := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.True(t, MustPrincipalFromContext(r.Context()).CertificateBound())
		w.WriteHeader(http.StatusNoContent)
	})

	withPeer := func(c *x509.Certificate) *http.Request {
		req := httpTestRequest(bound)
		req.TLS = &tls.ConnectionState{PeerCertificates: []*x509.Certificate{c}}
		return req
	}

	rr := httpTestServe(t, HTTPMiddleware(a)(ok), withPeer(client.X509))
	assert.Equal(t, http.StatusNoContent, rr.Code)

	rr = httpTestServe(t, HTTPMiddleware(a)(ok), withPeer(other.X509))
	assert.Equal(t, http.StatusUnauthorized, rr.Code)
	assert.Equal(t, "AUTH_007", httpTestBody(t, rr).Error)

	rr = httpTestServe(t, HTTPMiddleware(a)(ok), httpTestRequest(bound))
	assert.Equal(t, http.StatusUnauthorized, rr.Code)
	assert.Equal(t, "AUTH_007", httpTestBody(t, rr).Error)
}

func TestHTTPMiddleware_ForwardedCertificateRequiresOptIn(t *testing.T) {
	t.Parallel()
	a := authTestAuthenticator(t, true)
	client := testutil.SelfSignedCertificate(t, pkix.Name{CommonName: "client"})
	bound := authTestToken(t, map[string]any{
		"cnf": map[string]any{"x5t#S256": cert.FromX509(client.X509).Thumbprint()},
	})
	inner := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNoContent)
	})
	newReq := func() *http.Request {
		req := httpTestRequest(bound)
		req.Header.Set(cert.ForwardedClientCertHeader, `Hash=abc;Cert="`+url.PathEscape(client.PEM)+`"`)
		return req
	}

	rr := httpTestServe(t, HTTPMiddleware(a)(inner), newReq())
	assert.Equal(t, http.StatusUnauthorized, rr.Code)

	rr = httpTestServe(t, HTTPMiddleware(a, TrustForwardedClientCert())(inner), newReq())
	assert.Equal(t, http.StatusNoContent, rr.Code)
}

// ---------------------------------------------------------------------------
// RequireScope
// ---------------------------------------------------------------------------

func TestRequireScope(t *testing.T) {
	t.Parallel()
	a := authTestAuthenticator(t, false)
	inner := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	})
	h := HTTPMiddleware(a)(RequireScope("read", "write")(inner))

	rr := httpTestServe(t, h, httpTestRequest(authTestToken(t, map[string]any{"scope": []string{"app1.read", "app1.write"}})))
	assert.Equal(t, http.StatusOK, rr.Code)

	rr = httpTestServe(t, h, httpTestRequest(authTestToken(t, map[string]any{"scope": "app1.read"})))
	assert.Equal(t, http.StatusForbidden, rr.Code)
	assert.Equal(t, `Bearer error="insufficient_scope"`, rr.Header().Get("WWW-Authenticate"))
	body := httpTestBody(t, rr)
	assert.Equal(t, "AUTHZ_001", body.Error)
	assert.Contains(t, body.Message, "write")
}

func TestRequireScope_WithoutMiddleware(t *testing.T) {
	t.Parallel()
	inner := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		t.Error("inner handler should not be called")
	})
	rr := httpTestServe(t, RequireScope("read")(inner), httptest.NewRequest(http.MethodGet, "/", nil))
	assert.Equal(t, http.StatusUnauthorized, rr.Code)
}

// ---------------------------------------------------------------------------
// WriteError
// ---------------------------------------------------------------------------

func TestWriteError_HidesInternalErrors(t *testing.T) {
	t.Parallel()
	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req = req.WithContext(logging.WithCorrelationID(context.Background(), "corr-2"))
	rr := httptest.NewRecorder()

	WriteError(rr, req, errors.New("database password is hunter2"))
	assert.Equal(t, http.StatusInternalServerError, rr.Code)
	assert.Equal(t, "application/json", rr.Header().Get("Content-Type"))
	body := httpTestBody(t, rr)
	assert.Equal(t, sserr.CodeInternal.String(), body.Error)
	assert.Equal(t, "internal error", body.Message)
	assert.Equal(t, "corr-2", body.CorrelationID)
}
