// Package secctx holds the validated token and client certificate for one
// unit of work.
//
// A Scope is created per request, carried in the request's
// context.Context and cleared when the request ends, whichever way it
// ends. Scopes are never shared between requests, so a token set while
// serving one request cannot be observed from another, even when the
// goroutine or pooled worker is reused.
//
//	err := secctx.Run(ctx, func(ctx context.Context, s *secctx.Scope) error {
//		s.SetToken(tok)
//		return handle(ctx)
//	})
package secctx

import (
	"context"
	"sync/atomic"

	"github.com/StricklySoft/stricklysoft-security/pkg/cert"
	"github.com/StricklySoft/stricklysoft-security/pkg/token"
)

// Scope holds request-scoped security state. The zero value is empty and
// ready to use; all methods are safe on a nil *Scope.
type Scope struct {
	token atomic.Pointer[token.Token]
	cert  atomic.Pointer[cert.Certificate]
}

// NewScope returns an empty scope.
func NewScope() *Scope { return &Scope{} }

// SetToken records the validated token.
func (s *Scope) SetToken(t *token.Token) {
	if s != nil {
		s.token.Store(t)
	}
}

// Token returns the validated token, or nil.
func (s *Scope) Token() *token.Token {
	if s == nil {
		return nil
	}
	return s.token.Load()
}

// SetCertificate records the client certificate presented with the
// request.
func (s *Scope) SetCertificate(c *cert.Certificate) {
	if s != nil {
		s.cert.Store(c)
	}
}

// Certificate returns the client certificate, or nil.
func (s *Scope) Certificate() *cert.Certificate {
	if s == nil {
		return nil
	}
	return s.cert.Load()
}

// Clear drops everything the scope holds.
func (s *Scope) Clear() {
	if s == nil {
		return
	}
	s.token.Store(nil)
	s.cert.Store(nil)
}

type scopeKey struct{}

// WithScope attaches a new scope to ctx. The returned cleanup clears the
// scope and must be deferred by the caller.
func WithScope(ctx context.Context) (context.Context, *Scope, func()) {
	s := NewScope()
	return context.WithValue(ctx, scopeKey{}, s), s, s.Clear
}

// Run calls fn with a fresh scope and clears it when fn returns or
// panics.
func Run(ctx context.Context, fn func(ctx context.Context, s *Scope) error) error {
	ctx, s, cleanup := WithScope(ctx)
	defer cleanup()
	return fn(ctx, s)
}

// FromContext returns the scope attached to ctx, or nil.
func FromContext(ctx context.Context) *Scope {
	s, _ := ctx.Value(scopeKey{}).(*Scope)
	return s
}

// TokenFromContext returns the token of the scope attached to ctx, or nil.
func TokenFromContext(ctx context.Context) *token.Token {
	return FromContext(ctx).Token()
}

// CertificateFromContext returns the client certificate of the scope
// attached to ctx, or nil.
func CertificateFromContext(ctx context.Context) *cert.Certificate {
	return FromContext(ctx).Certificate()
}
