package token

import (
	"slices"
	"strings"
)

// GrantType is the OAuth grant through which an access token was obtained.
type GrantType string

// Known grant types.
const (
	GrantClientCredentials GrantType = "client_credentials"
	GrantPassword          GrantType = "password"
	GrantAuthorizationCode GrantType = "authorization_code"
	GrantRefreshToken      GrantType = "refresh_token"
	GrantJWTBearer         GrantType = "urn:ietf:params:oauth:grant-type:jwt-bearer"
	GrantSAML2Bearer       GrantType = "urn:ietf:params:oauth:grant-type:saml2-bearer"
	GrantClientX509        GrantType = "client_x509"
	GrantUserToken         GrantType = "user_token"
)

// AccessToken is a token issued by an authorization server. It adds
// scope helpers relative to an application id.
type AccessToken struct {
	*Token
	appID string
}

// NewAccessToken wraps t. appID is the prefix stripped by the local scope
// helpers ("my-app" for scope "my-app.Read").
func NewAccessToken(t *Token, appID string) *AccessToken {
	return &AccessToken{Token: t, appID: appID}
}

// AppID returns the application id used for local scopes.
func (a *AccessToken) AppID() string { return a.appID }

// Scopes returns the scope claim. A single string is split on spaces
// following RFC 8693.
func (a *AccessToken) Scopes() []string {
	v, ok := a.Claim(ClaimScope)
	if !ok {
		return nil
	}
	if s, isString := v.(string); isString {
		return strings.Fields(s)
	}
	l, _ := a.ClaimAsStringList(ClaimScope)
	return l
}

// HasScope reports whether scope is granted verbatim.
func (a *AccessToken) HasScope(scope string) bool {
	return slices.Contains(a.Scopes(), scope)
}

// HasLocalScope reports whether "<appID>.<scope>" is granted.
func (a *AccessToken) HasLocalScope(scope string) bool {
	if a.appID == "" {
		return false
	}
	return a.HasScope(a.appID + "." + scope)
}

// LocalScopes returns the granted scopes of this application with the
// "<appID>." prefix removed.
func (a *AccessToken) LocalScopes() []string {
	if a.appID == "" {
		return nil
	}
	prefix := a.appID + "."
	var out []string
	for _, s := range a.Scopes() {
		if local, ok := strings.CutPrefix(s, prefix); ok && local != "" {
			out = append(out, local)
		}
	}
	return out
}

// GrantType returns the grant_type claim.
func (a *AccessToken) GrantType() GrantType {
	s, _ := a.ClaimAsString(ClaimGrantType)
	return GrantType(s)
}
