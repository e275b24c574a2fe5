package validation

import (
	"context"
	"net"
	"net/url"
	"slices"
	"strings"

	sserr "github.com/StricklySoft/stricklysoft-security/pkg/errors"
	"github.com/StricklySoft/stricklysoft-security/pkg/token"
)

// IssuerPolicy decides whether a token's issuer is trusted. A non-nil
// error explains why not.
type IssuerPolicy interface {
	TrustIssuer(tok *token.Token) error
}

// ExactIssuers trusts tokens whose iss equals one of its entries.
type ExactIssuers []string

// TrustIssuer implements IssuerPolicy.
func (p ExactIssuers) TrustIssuer(tok *token.Token) error {
	iss, err := tok.ClaimAsString(token.ClaimIssuer)
	if err != nil {
		return err
	}
	if iss == "" {
		return sserr.New(sserr.CodeAuthenticationIssuer, "token has no iss claim")
	}
	if !slices.Contains(p, iss) {
		return sserr.Newf(sserr.CodeAuthenticationIssuer, "issuer %q is not trusted", iss)
	}
	return nil
}

// DomainIssuerPolicy trusts http(s) issuer URLs, without query or
// fragment, whose host is one of Domains or a subdomain of one. When the
// token carries ias_iss it is checked instead of iss, but iss must still
// be a well-formed URL.
type DomainIssuerPolicy struct {
	Domains []string
}

// TrustIssuer implements IssuerPolicy.
func (p DomainIssuerPolicy) TrustIssuer(tok *token.Token) error {
	iss, err := issuerURL(tok, token.ClaimIssuer)
	if err != nil {
		return err
	}
	claim := token.ClaimIssuer
	if tok.HasClaim(token.ClaimIdentityIssuer) {
		claim = token.ClaimIdentityIssuer
		if iss, err = issuerURL(tok, claim); err != nil {
			return err
		}
	}
	for _, d := range p.Domains {
		if hostInDomain(iss.Hostname(), d) {
			return nil
		}
	}
	return sserr.Newf(sserr.CodeAuthenticationIssuer, "%s %q does not belong to a trusted domain", claim, iss.String())
}

func issuerURL(tok *token.Token, claim string) (*url.URL, error) {
	raw, err := tok.ClaimAsString(claim)
	if err != nil {
		return nil, err
	}
	if strings.TrimSpace(raw) == "" {
		return nil, sserr.Newf(sserr.CodeAuthenticationIssuer, "token has no %s claim", claim)
	}
	u, err := url.Parse(raw)
	if err != nil || (u.Scheme != "https" && u.Scheme != "http") || u.Host == "" ||
		u.RawQuery != "" || u.Fragment != "" || u.User != nil {
		return nil, sserr.Newf(sserr.CodeAuthenticationIssuer, "%s %q is not a plain http(s) URL", claim, raw)
	}
	return u, nil
}

// hostInDomain reports whether host is domain or a subdomain of it.
func hostInDomain(host, domain string) bool {
	host = strings.ToLower(strings.TrimSuffix(host, "."))
	domain = strings.ToLower(strings.TrimPrefix(strings.TrimSuffix(domain, "."), "."))
	if host == "" || domain == "" {
		return false
	}
	return host == domain || strings.HasSuffix(host, "."+domain)
}

// LocalhostIssuerPolicy additionally trusts http://localhost issuers,
// with any port, before delegating to Next. It exists for test
// environments that run a local authorization server and must never be
// configured in production.
type LocalhostIssuerPolicy struct {
	Next IssuerPolicy
}

// TrustIssuer implements IssuerPolicy.
func (p LocalhostIssuerPolicy) TrustIssuer(tok *token.Token) error {
	if iss, err := tok.ClaimAsString(token.ClaimIssuer); err == nil {
		if u, err := url.Parse(iss); err == nil && (u.Scheme == "http" || u.Scheme == "https") {
			if host := u.Hostname(); host == "localhost" || isLoopback(host) {
				return nil
			}
		}
	}
	if p.Next == nil {
		return sserr.New(sserr.CodeAuthenticationIssuer, "issuer is not a local issuer")
	}
	return p.Next.TrustIssuer(tok)
}

func isLoopback(host string) bool {
	ip := net.ParseIP(host)
	return ip != nil && ip.IsLoopback()
}

// NewIssuerValidator rejects tokens whose issuer policy does not trust
// them.
func NewIssuerValidator(policy IssuerPolicy) (Validator, error) {
	if policy == nil {
		return nil, sserr.New(sserr.CodeConfiguration, "validation: issuer policy is required")
	}
	if p, ok := policy.(ExactIssuers); ok && len(p) == 0 {
		return nil, sserr.New(sserr.CodeConfiguration, "validation: at least one trusted issuer is required")
	}
	if p, ok := policy.(DomainIssuerPolicy); ok && len(p.Domains) == 0 {
		return nil, sserr.New(sserr.CodeConfiguration, "validation: at least one trusted issuer domain is required")
	}
	return ValidatorFunc(func(_ context.Context, tok *token.Token) Result {
		if err := policy.TrustIssuer(tok); err != nil {
			return InvalidErr(violationCode(err, sserr.CodeAuthenticationIssuer), "issuer", err)
		}
		return Valid()
	}), nil
}

// violationCode keeps claim type errors distinguishable and files every
// other failure under fallback.
func violationCode(err error, fallback sserr.Code) sserr.Code {
	if sserr.HasCode(err, sserr.CodeClaimType) {
		return sserr.CodeClaimType
	}
	return fallback
}
