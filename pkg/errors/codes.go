package errors

// Code is a machine-readable error code of the form CATEGORY_NNN.
// Codes are stable once assigned and are safe to use in alerts and
// dashboards.
type Code string

const (
	// CodeTokenMalformed indicates the token is not three base64url
	// segments carrying JSON objects.
	CodeTokenMalformed Code = "TOKEN_001"

	// CodeTokenTooLarge indicates the token exceeds the accepted size.
	CodeTokenTooLarge Code = "TOKEN_002"

	// CodeClaimType indicates a claim holds a JSON type that cannot be
	// converted to the requested Go type.
	CodeClaimType Code = "CLAIM_001"

	// CodeAuthentication is the generic trust failure.
	CodeAuthentication Code = "AUTH_001"

	// CodeAuthenticationExpired indicates exp plus leeway lies in the past.
	CodeAuthenticationExpired Code = "AUTH_002"

	// CodeAuthenticationNotYetValid indicates nbf minus leeway lies in the future.
	CodeAuthenticationNotYetValid Code = "AUTH_003"

	// CodeAuthenticationIssuer indicates the issuer is not trusted.
	CodeAuthenticationIssuer Code = "AUTH_004"

	// CodeAuthenticationAudience indicates no audience matched.
	CodeAuthenticationAudience Code = "AUTH_005"

	// CodeAuthenticationSignature indicates the signature did not verify.
	CodeAuthenticationSignature Code = "AUTH_006"

	// CodeAuthenticationCertificate indicates the cnf thumbprint did not
	// match the presented client certificate.
	CodeAuthenticationCertificate Code = "AUTH_007"

	// CodeAuthenticationKeyURL indicates the jku header is not trusted.
	CodeAuthenticationKeyURL Code = "AUTH_008"

	// CodeAuthorizationScope indicates a required scope is missing.
	CodeAuthorizationScope Code = "AUTHZ_001"

	// CodeKeyNotFound indicates no key matched (algorithm, key id).
	CodeKeyNotFound Code = "KEY_001"

	// CodeKeyFetch indicates the key set could not be retrieved.
	CodeKeyFetch Code = "KEY_002"

	// CodeKeyAlgorithm indicates the algorithm is not on the allow-list.
	CodeKeyAlgorithm Code = "KEY_003"

	// CodeKeyMaterial indicates key material could not be turned into a
	// usable public key.
	CodeKeyMaterial Code = "KEY_004"

	// CodeCertificate indicates no certificate could be parsed.
	CodeCertificate Code = "CERT_001"

	// CodeConfiguration indicates invalid configuration.
	CodeConfiguration Code = "CFG_001"

	// CodeConfigurationRequired indicates a required setting is missing.
	CodeConfigurationRequired Code = "CFG_002"

	// CodeInternal indicates an unexpected internal failure.
	CodeInternal Code = "INT_001"
)

// String returns the code as a string.
func (c Code) String() string {
	return string(c)
}

// Category returns the prefix before the first underscore ("AUTH" for
// "AUTH_002"). A code without an underscore is its own category.
func (c Code) Category() string {
	s := string(c)
	for i, r := range s {
		if r == '_' {
			return s[:i]
		}
	}
	return s
}
