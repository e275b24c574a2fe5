package validation

import (
	"context"
	"net/url"
	"strings"

	sserr "github.com/StricklySoft/stricklysoft-security/pkg/errors"
	"github.com/StricklySoft/stricklysoft-security/pkg/token"
)

// EndpointResolver chooses the JWKS endpoint a token's key is fetched
// from.
type EndpointResolver interface {
	ResolveEndpoint(ctx context.Context, tok *token.Token) (string, error)
}

// EndpointResolverFunc adapts a function to EndpointResolver.
type EndpointResolverFunc func(ctx context.Context, tok *token.Token) (string, error)

// ResolveEndpoint implements EndpointResolver.
func (f EndpointResolverFunc) ResolveEndpoint(ctx context.Context, tok *token.Token) (string, error) {
	return f(ctx, tok)
}

// StaticEndpoint always answers endpoint.
func StaticEndpoint(endpoint string) EndpointResolver {
	return EndpointResolverFunc(func(context.Context, *token.Token) (string, error) {
		return endpoint, nil
	})
}

// JKUEndpoint answers the token's jku header when it names a token_keys
// endpoint on trustedDomain, the rule NewJKUValidator enforces. Any other
// jku is refused before a fetch, so keys are never loaded from an
// untrusted URL even when the chain keeps evaluating after a jku
// violation.
func JKUEndpoint(trustedDomain string) EndpointResolver {
	trustedDomain = strings.TrimSpace(trustedDomain)
	return EndpointResolverFunc(func(_ context.Context, tok *token.Token) (string, error) {
		jku := tok.JKU()
		if jku == "" {
			return "", sserr.New(sserr.CodeKeyNotFound, "token has no jku header")
		}
		if trustedDomain == "" {
			return "", sserr.New(sserr.CodeKeyNotFound, "no trusted jku domain, cannot use jku")
		}
		if reason := untrustedJKU(jku, trustedDomain); reason != "" {
			return "", sserr.New(sserr.CodeKeyNotFound, reason)
		}
		return jku, nil
	})
}

// Discoverer looks up the JWKS endpoint an issuer publishes.
// *keycache.Cache implements it.
type Discoverer interface {
	JWKSURI(ctx context.Context, issuer string) (string, error)
}

// DiscoveryEndpoint answers the jwks_uri from the OpenID provider
// metadata of the token's issuer. The issuer is checked against trusted
// first, so metadata is never fetched from an untrusted host, even when
// the chain keeps evaluating after an issuer violation.
func DiscoveryEndpoint(d Discoverer, trusted IssuerPolicy) EndpointResolver {
	return EndpointResolverFunc(func(ctx context.Context, tok *token.Token) (string, error) {
		if err := trusted.TrustIssuer(tok); err != nil {
			return "", sserr.Wrap(err, sserr.CodeKeyNotFound, "untrusted issuer, cannot discover keys")
		}
		iss := tok.Issuer()
		if ias, _ := tok.ClaimAsString(token.ClaimIdentityIssuer); ias != "" {
			iss = ias
		}
		if u, err := url.Parse(iss); err != nil || u.Host == "" {
			return "", sserr.New(sserr.CodeKeyNotFound, "token issuer is not a URL, cannot discover keys")
		}
		return d.JWKSURI(ctx, iss)
	})
}

// FirstEndpoint tries resolvers in order and answers the first success,
// or the last error.
func FirstEndpoint(resolvers ...EndpointResolver) EndpointResolver {
	return EndpointResolverFunc(func(ctx context.Context, tok *token.Token) (string, error) {
		err := error(sserr.New(sserr.CodeKeyNotFound, "no JWKS endpoint configured"))
		for _, r := range resolvers {
			endpoint, rerr := r.ResolveEndpoint(ctx, tok)
			if rerr == nil && endpoint != "" {
				return endpoint, nil
			}
			if rerr != nil {
				err = rerr
			}
		}
		return "", err
	})
}
