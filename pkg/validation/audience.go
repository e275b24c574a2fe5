package validation

import (
	"context"
	"slices"
	"strings"

	sserr "github.com/StricklySoft/stricklysoft-security/pkg/errors"
	"github.com/StricklySoft/stricklysoft-security/pkg/token"
)

// brokerMarker identifies client ids of broker plans, whose clones are
// issued audiences of the form "<clone id>|<broker client id>".
const brokerMarker = "!b"

// NewAudienceValidator accepts tokens issued for one of clientIDs.
//
// The token's audiences are the aud entries (string or list) and their
// application ids with any ".<scope>" suffix removed, plus azp and cid. When aud is empty the
// application ids of namespaced scopes count as audiences.
func NewAudienceValidator(clientIDs ...string) (Validator, error) {
	trusted := make([]string, 0, len(clientIDs))
	for _, id := range clientIDs {
		if id = strings.TrimSpace(id); id != "" {
			trusted = append(trusted, id)
		}
	}
	if len(trusted) == 0 {
		return nil, sserr.New(sserr.CodeConfiguration, "validation: at least one audience is required")
	}

	return ValidatorFunc(func(_ context.Context, tok *token.Token) Result {
		audiences, err := TokenAudiences(tok)
		if err != nil {
			return InvalidErr(sserr.CodeClaimType, "audience", err)
		}
		for _, want := range trusted {
			if slices.Contains(audiences, want) {
				return Valid()
			}
			if strings.Contains(want, brokerMarker) {
				for _, aud := range audiences {
					if strings.HasSuffix(aud, "|"+want) {
						return Valid()
					}
				}
			}
		}
		return Invalidf(sserr.CodeAuthenticationAudience, "token audiences %v do not include any of %v", audiences, trusted)
	}), nil
}

// TokenAudiences derives the audiences a token was issued for.
func TokenAudiences(tok *token.Token) ([]string, error) {
	aud, err := tok.ClaimAsStringList(token.ClaimAudience)
	if err != nil {
		return nil, err
	}

	var out []string
	add := func(s string) {
		if s = strings.TrimSpace(s); s != "" && !slices.Contains(out, s) {
			out = append(out, s)
		}
	}
	for _, a := range aud {
		add(a)
		add(appID(a))
	}
	if azp, err := tok.ClaimAsString(token.ClaimAuthorizedParty); err == nil {
		add(azp)
	}
	if cid, err := tok.ClaimAsString(token.ClaimClientID); err == nil {
		add(cid)
	}
	if len(aud) == 0 {
		scopes, _ := tok.ClaimAsStringList(token.ClaimScope)
		for _, s := range scopes {
			for _, scope := range strings.Fields(s) {
				if strings.Contains(scope, ".") {
					add(appID(scope))
				}
			}
		}
	}
	return out, nil
}

// appID strips a ".<rest>" suffix: "app1.read" becomes "app1".
func appID(s string) string {
	if i := strings.IndexByte(s, '.'); i >= 0 {
		return s[:i]
	}
	return s
}
