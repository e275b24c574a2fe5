package validation

import (
	"context"
	"fmt"
	"net/url"
	"strings"

	sserr "github.com/StricklySoft/stricklysoft-security/pkg/errors"
	"github.com/StricklySoft/stricklysoft-security/pkg/token"
)

// TokenKeysPath is the path suffix every trusted jku must end with.
const TokenKeysPath = "token_keys"

// NewJKUValidator restricts the jku header, which names the endpoint the
// signing key is fetched from, to https URLs on trustedDomain (or a
// subdomain) whose path ends with token_keys and that carry no query or
// fragment. Tokens without jku pass; their key comes from the configured
// endpoint instead.
func NewJKUValidator(trustedDomain string) (Validator, error) {
	trustedDomain = strings.TrimSpace(trustedDomain)
	if trustedDomain == "" {
		return nil, sserr.New(sserr.CodeConfiguration, "validation: trusted jku domain is required")
	}
	return ValidatorFunc(func(_ context.Context, tok *token.Token) Result {
		if _, present := tok.Header(token.HeaderKeyURL); !present {
			return Valid()
		}
		if reason := untrustedJKU(tok.JKU(), trustedDomain); reason != "" {
			return Invalid(sserr.CodeAuthenticationKeyURL, reason)
		}
		return Valid()
	}), nil
}

// untrustedJKU explains why jku may not be fetched, or returns "" when it
// is a token_keys endpoint on trustedDomain.
func untrustedJKU(jku, trustedDomain string) string {
	u, err := url.Parse(jku)
	switch {
	case jku == "" || err != nil:
		return "jku: header is not a URL"
	case u.Scheme != "https":
		return fmt.Sprintf("jku: %q is not an https URL", jku)
	case !hostInDomain(u.Hostname(), trustedDomain):
		return fmt.Sprintf("jku: %q is not on trusted domain %q", jku, trustedDomain)
	case !strings.HasSuffix(u.Path, TokenKeysPath) || u.RawQuery != "" || u.ForceQuery || u.Fragment != "" || u.User != nil:
		return fmt.Sprintf("jku: %q is not a token_keys endpoint", jku)
	}
	return ""
}
