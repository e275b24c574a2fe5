package validation

import (
	"context"
	"crypto"
	"strings"

	sserr "github.com/StricklySoft/stricklysoft-security/pkg/errors"
	"github.com/StricklySoft/stricklysoft-security/pkg/jwk"
	"github.com/StricklySoft/stricklysoft-security/pkg/token"
)

// KeySource resolves verification keys. *keycache.Cache implements it.
type KeySource interface {
	PublicKey(ctx context.Context, alg, kid, endpoint, tenant string) (*jwk.Key, error)
}

// StaticKeys serves keys from a fixed key set regardless of endpoint.
type StaticKeys struct {
	Set *jwk.KeySet
}

// PublicKey implements KeySource.
func (s StaticKeys) PublicKey(_ context.Context, alg, kid, _, _ string) (*jwk.Key, error) {
	if !jwk.IsSupportedAlgorithm(alg) {
		_, err := jwk.SigningMethod(alg)
		return nil, err
	}
	return s.Set.Resolve(alg, kid)
}

// SignatureOption configures the signature validator.
type SignatureOption func(*signatureValidator)

// WithFallbackKey is used when the key cannot be resolved from the key
// source. It applies to RS256, RS384 and RS512 tokens only.
func WithFallbackKey(pub crypto.PublicKey) SignatureOption {
	return func(v *signatureValidator) { v.fallback = pub }
}

// WithTenantRequired rejects tokens without an app_tid or zid claim
// before any key is fetched.
func WithTenantRequired() SignatureOption {
	return func(v *signatureValidator) { v.requireTenant = true }
}

type signatureValidator struct {
	keys          KeySource
	endpoints     EndpointResolver
	fallback      crypto.PublicKey
	requireTenant bool
}

// NewSignatureValidator verifies the token signature over the original
// header and payload segments. The header's alg must be allow-listed;
// the key is looked up by (alg, kid) at the endpoint chosen by
// endpoints, scoped to the token's tenant.
func NewSignatureValidator(keys KeySource, endpoints EndpointResolver, opts ...SignatureOption) (Validator, error) {
	if keys == nil {
		return nil, sserr.New(sserr.CodeConfiguration, "validation: signature validator needs a key source")
	}
	if endpoints == nil {
		return nil, sserr.New(sserr.CodeConfiguration, "validation: signature validator needs an endpoint resolver")
	}
	v := &signatureValidator{keys: keys, endpoints: endpoints}
	for _, opt := range opts {
		opt(v)
	}
	return v, nil
}

// Validate implements Validator.
func (v *signatureValidator) Validate(ctx context.Context, tok *token.Token) Result {
	alg := tok.Algorithm()
	if alg == "" {
		return Invalid(sserr.CodeAuthenticationSignature, "signature: token has no alg header")
	}
	if !jwk.IsSupportedAlgorithm(alg) {
		return Invalidf(sserr.CodeAuthenticationSignature, "signature: algorithm %q is not allowed", alg)
	}
	sig := tok.Signature()
	if len(sig) == 0 {
		return Invalid(sserr.CodeAuthenticationSignature, "signature: token is not signed")
	}

	tenant := tok.TenantID()
	if v.requireTenant && tenant == "" {
		return Invalid(sserr.CodeAuthenticationSignature, "signature: token has no tenant claim")
	}

	key, err := v.resolve(ctx, tok, alg, tenant)
	if err != nil {
		if v.fallback == nil || !strings.HasPrefix(alg, "RS") {
			return InvalidErr(sserr.CodeAuthenticationSignature, "signature: no verification key", err)
		}
		if key, err = jwk.NewKey(alg, jwk.DefaultKeyID, v.fallback); err != nil {
			return InvalidErr(sserr.CodeAuthenticationSignature, "signature: fallback key unusable", err)
		}
	}

	if err := key.Verify(tok.SigningInput(), sig); err != nil {
		return InvalidErr(sserr.CodeAuthenticationSignature, "signature", err)
	}
	return Valid()
}

func (v *signatureValidator) resolve(ctx context.Context, tok *token.Token, alg, tenant string) (*jwk.Key, error) {
	endpoint, err := v.endpoints.ResolveEndpoint(ctx, tok)
	if err != nil {
		return nil, err
	}
	return v.keys.PublicKey(ctx, alg, tok.KeyID(), endpoint, tenant)
}
