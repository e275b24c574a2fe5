package auth

import (
	"net/http"
	"strings"

	"github.com/StricklySoft/stricklysoft-security/pkg/logging"
	"github.com/StricklySoft/stricklysoft-security/pkg/secctx"
)

// HeaderAuthorization is the HTTP header and gRPC metadata key carrying
// the bearer token. gRPC metadata keys are lower case.
const HeaderAuthorization = "authorization"

// bearerPrefix is the standard "Bearer " prefix for authorization tokens.
const bearerPrefix = "Bearer "

// ExtractBearerToken extracts the token from an authorization header value.
// It handles the "Bearer " prefix case-insensitively and trims surrounding
// whitespace from the token. Returns "" if the header is empty or does not
// have a bearer prefix.
func ExtractBearerToken(authHeader string) string {
	if len(authHeader) <= len(bearerPrefix) {
		return ""
	}
	if !strings.EqualFold(authHeader[:len(bearerPrefix)], bearerPrefix) {
		return ""
	}
	return strings.TrimSpace(authHeader[len(bearerPrefix):])
}

// ForwardingRoundTripper wraps an [http.RoundTripper] to forward the
// token of the current security scope to downstream services as a bearer
// credential.
//
// Requests that already carry an Authorization header, and requests made
// outside an authenticated scope, are sent unchanged.
//
// Example:
//
//	client := &http.Client{Transport: auth.NewForwardingRoundTripper(nil)}
//	req, _ := http.NewRequestWithContext(r.Context(), http.MethodGet, url, nil)
//	resp, err := client.Do(req)
type ForwardingRoundTripper struct {
	wrapped http.RoundTripper
}

// NewForwardingRoundTripper wraps transport. If transport is nil,
// [http.DefaultTransport] is used.
func NewForwardingRoundTripper(transport http.RoundTripper) *ForwardingRoundTripper {
	if transport == nil {
		transport = http.DefaultTransport
	}
	return &ForwardingRoundTripper{wrapped: transport}
}

// RoundTrip implements [http.RoundTripper].
func (t *ForwardingRoundTripper) RoundTrip(r *http.Request) (*http.Response, error) {
	if r.Header.Get(HeaderAuthorization) != "" {
		return t.wrapped.RoundTrip(r)
	}
	tok := secctx.TokenFromContext(r.Context())
	if tok == nil {
		return t.wrapped.RoundTrip(r)
	}

	// RoundTrippers must not modify the caller's request.
	clone := r.Clone(r.Context())
	clone.Header.Set(HeaderAuthorization, bearerPrefix+tok.Raw())
	if id := logging.CorrelationID(r.Context()); id != "" && clone.Header.Get(logging.CorrelationHeader) == "" {
		clone.Header.Set(logging.CorrelationHeader, id)
	}
	return t.wrapped.RoundTrip(clone)
}
