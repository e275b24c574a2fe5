package auth

import (
	"context"
	"slices"

	"github.com/StricklySoft/stricklysoft-security/pkg/token"
)

// PrincipalKind tells a human user from an OAuth client acting on its
// own behalf.
type PrincipalKind string

const (
	// PrincipalUser is a token issued to a user, through any grant that
	// carries a subject other than the client itself.
	PrincipalUser PrincipalKind = "user"

	// PrincipalClient is a token obtained with client credentials, or
	// one without a subject.
	PrincipalClient PrincipalKind = "client"
)

// Principal is the authenticated caller of a request. It is a read-only
// view over a validated access token.
type Principal struct {
	access *token.AccessToken
}

// NewPrincipal wraps a validated token. appID scopes the local scope
// helpers; it may be empty.
func NewPrincipal(tok *token.Token, appID string) *Principal {
	return &Principal{access: token.NewAccessToken(tok, appID)}
}

// Token returns the validated token.
func (p *Principal) Token() *token.Token { return p.access.Token }

// ID returns sub, falling back to the client id for client tokens.
func (p *Principal) ID() string {
	if sub := p.Subject(); sub != "" {
		return sub
	}
	return p.ClientID()
}

// Kind classifies the principal.
func (p *Principal) Kind() PrincipalKind {
	sub := p.Subject()
	if sub == "" || p.access.GrantType() == token.GrantClientCredentials || sub == p.ClientID() {
		return PrincipalClient
	}
	return PrincipalUser
}

// Subject returns the sub claim, or "".
func (p *Principal) Subject() string {
	s, _ := p.access.ClaimAsString(token.ClaimSubject)
	return s
}

// ClientID returns the OAuth client the token was issued to.
func (p *Principal) ClientID() string { return p.access.ClientID() }

// TenantID returns the tenant the token belongs to, or "".
func (p *Principal) TenantID() string { return p.access.TenantID() }

// Issuer returns the iss claim.
func (p *Principal) Issuer() string { return p.access.Issuer() }

// Scopes returns every granted scope, verbatim.
func (p *Principal) Scopes() []string { return p.access.Scopes() }

// HasScope reports whether scope is granted, either verbatim or as a
// local scope of the configured application.
func (p *Principal) HasScope(scope string) bool {
	return p.access.HasScope(scope) || p.access.HasLocalScope(scope)
}

// HasAllScopes reports whether every one of scopes is granted and
// returns the ones that are not.
func (p *Principal) HasAllScopes(scopes ...string) (bool, []string) {
	var missing []string
	for _, s := range scopes {
		if !p.HasScope(s) {
			missing = append(missing, s)
		}
	}
	return len(missing) == 0, missing
}

// CertificateBound reports whether the token carries a cnf thumbprint.
// When it does and validation passed, the request presented the
// matching client certificate.
func (p *Principal) CertificateBound() bool {
	return p.access.CertificateThumbprint() != ""
}

// Audiences returns the aud claim.
func (p *Principal) Audiences() []string { return slices.Clone(p.access.Audiences()) }

type principalKey struct{}

// ContextWithPrincipal returns a copy of ctx carrying p.
func ContextWithPrincipal(ctx context.Context, p *Principal) context.Context {
	return context.WithValue(ctx, principalKey{}, p)
}

// PrincipalFromContext returns the principal stored by the middleware
// or interceptors. It never returns a nil principal with true.
func PrincipalFromContext(ctx context.Context) (*Principal, bool) {
	p, ok := ctx.Value(principalKey{}).(*Principal)
	return p, ok && p != nil
}

// MustPrincipalFromContext is PrincipalFromContext for handlers that
// only run behind the middleware. It panics when no principal is set.
func MustPrincipalFromContext(ctx context.Context) *Principal {
	p, ok := PrincipalFromContext(ctx)
	if !ok {
		panic("auth: no principal in context; ensure authentication middleware is configured")
	}
	return p
}
