package validation

import (
	"context"

	"github.com/StricklySoft/stricklysoft-security/pkg/cert"
	sserr "github.com/StricklySoft/stricklysoft-security/pkg/errors"
	"github.com/StricklySoft/stricklysoft-security/pkg/secctx"
	"github.com/StricklySoft/stricklysoft-security/pkg/token"
)

// NewCertificateBindingValidator checks tokens that carry
// cnf["x5t#S256"] against the client certificate of the request scope in
// ctx. Tokens without the claim pass. When required is set, a bound
// token presented without a client certificate is rejected; otherwise the
// binding is only enforced when a certificate is available.
func NewCertificateBindingValidator(required bool) Validator {
	return ValidatorFunc(func(ctx context.Context, tok *token.Token) Result {
		if _, err := tok.ClaimAsObject(token.ClaimConfirmation); err != nil {
			return InvalidErr(sserr.CodeClaimType, "certificate binding", err)
		}
		claimed := tok.CertificateThumbprint()
		if claimed == "" {
			return Valid()
		}

		c := secctx.CertificateFromContext(ctx)
		if c == nil {
			if required {
				return Invalid(sserr.CodeAuthenticationCertificate, "certificate binding: token is bound to a client certificate but none was presented")
			}
			return Valid()
		}
		if cert.NormalizeThumbprint(claimed) != c.Thumbprint() {
			return Invalid(sserr.CodeAuthenticationCertificate, "certificate binding: client certificate thumbprint does not match the token's cnf claim")
		}
		return Valid()
	})
}
