// Package fixtures holds identity values shared across the test suite so
// that packages agree on issuers, audiences and key ids.
package fixtures

const (
	// Issuer is the trusted issuer of test tokens.
	Issuer = "https://issuer.example"

	// UntrustedIssuer never appears in a trusted list.
	UntrustedIssuer = "https://evil.example"

	// Audience is the expected audience and application id.
	Audience = "app1"

	// KeyID and OtherKeyID name the two signing keys used in key
	// rotation scenarios.
	KeyID      = "k1"
	OtherKeyID = "k2"

	// Tenant is the app_tid claim and key cache tenant scope.
	Tenant = "tenant-1"

	// TrustedDomain is the issuer and jku domain for policy tests.
	TrustedDomain = "auth.example.com"

	// Subject is the sub claim of user tokens.
	Subject = "user-abc-123"
)
