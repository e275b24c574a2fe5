package token

import (
	"crypto/sha256"
	"encoding/hex"
	"maps"
	"slices"
	"strings"
	"time"
)

// Standard header names.
const (
	HeaderAlgorithm = "alg"
	HeaderKeyID     = "kid"
	HeaderKeyURL    = "jku"
	HeaderType      = "typ"
)

// Registered and well-known claim names.
const (
	ClaimIssuer          = "iss"
	ClaimIdentityIssuer  = "ias_iss"
	ClaimSubject         = "sub"
	ClaimAudience        = "aud"
	ClaimExpiration      = "exp"
	ClaimNotBefore       = "nbf"
	ClaimIssuedAt        = "iat"
	ClaimAuthorizedParty = "azp"
	ClaimClientID        = "cid"
	ClaimScope           = "scope"
	ClaimGrantType       = "grant_type"
	ClaimAppTenantID     = "app_tid"
	ClaimZoneID          = "zid"
	ClaimConfirmation    = "cnf"
	ClaimEmail           = "email"
	ClaimGivenName       = "given_name"
	ClaimFamilyName      = "family_name"
	ClaimUserUUID        = "user_uuid"

	// ConfirmationThumbprint is the member of cnf holding the base64url
	// SHA-256 thumbprint of the bound client certificate.
	ConfirmationThumbprint = "x5t#S256"
)

// Token is a decoded compact JWT. It is never mutated after Decode and is
// safe for concurrent reads.
type Token struct {
	raw       string
	header    map[string]any
	claims    map[string]any
	signature []byte
	signedLen int
}

// Raw returns the compact string the token was decoded from, unchanged.
func (t *Token) Raw() string { return t.raw }

// SigningInput returns the header and payload segments exactly as
// received, joined by ".". Signatures are verified over these bytes.
func (t *Token) SigningInput() string { return t.raw[:t.signedLen] }

// Signature returns the decoded signature bytes, or nil when the
// signature segment was empty or not valid base64url.
func (t *Token) Signature() []byte { return slices.Clone(t.signature) }

// Fingerprint returns a short SHA-256 prefix of the raw token suitable
// for correlating log lines without logging the token.
func (t *Token) Fingerprint() string {
	sum := sha256.Sum256([]byte(t.raw))
	return hex.EncodeToString(sum[:6])
}

// Header returns a header parameter.
func (t *Token) Header(name string) (any, bool) {
	v, ok := t.header[name]
	return v, ok
}

// Headers returns a shallow copy of the JOSE header.
func (t *Token) Headers() map[string]any { return maps.Clone(t.header) }

// HeaderString returns a header parameter if it is a JSON string.
func (t *Token) HeaderString(name string) string {
	s, _ := t.header[name].(string)
	return s
}

// Algorithm returns the alg header.
func (t *Token) Algorithm() string { return t.HeaderString(HeaderAlgorithm) }

// KeyID returns the kid header.
func (t *Token) KeyID() string { return t.HeaderString(HeaderKeyID) }

// JKU returns the jku header.
func (t *Token) JKU() string { return t.HeaderString(HeaderKeyURL) }

// Issuer returns iss, or "" when absent or not a string.
func (t *Token) Issuer() string {
	s, _ := t.ClaimAsString(ClaimIssuer)
	return s
}

// Audiences returns aud normalized to a list.
func (t *Token) Audiences() []string {
	l, _ := t.ClaimAsStringList(ClaimAudience)
	return l
}

// Expiration returns exp, or the zero time.
func (t *Token) Expiration() time.Time {
	ts, _ := t.ClaimAsTime(ClaimExpiration)
	return ts
}

// NotBefore returns nbf, or the zero time.
func (t *Token) NotBefore() time.Time {
	ts, _ := t.ClaimAsTime(ClaimNotBefore)
	return ts
}

// ClientID returns the OAuth client the token was issued to: azp, then a
// single-valued aud, then cid.
func (t *Token) ClientID() string {
	if azp, _ := t.ClaimAsString(ClaimAuthorizedParty); strings.TrimSpace(azp) != "" {
		return azp
	}
	if aud := t.Audiences(); len(aud) == 1 && strings.TrimSpace(aud[0]) != "" {
		return aud[0]
	}
	cid, _ := t.ClaimAsString(ClaimClientID)
	return strings.TrimSpace(cid)
}

// TenantID returns app_tid, falling back to zid.
func (t *Token) TenantID() string {
	if tid, _ := t.ClaimAsString(ClaimAppTenantID); tid != "" {
		return tid
	}
	zid, _ := t.ClaimAsString(ClaimZoneID)
	return zid
}

// CertificateThumbprint returns cnf["x5t#S256"], or "" when the token is
// not certificate bound.
func (t *Token) CertificateThumbprint() string {
	cnf, err := t.ClaimAsObject(ClaimConfirmation)
	if err != nil || cnf == nil {
		return ""
	}
	s, _ := cnf[ConfirmationThumbprint].(string)
	return s
}
