package auth

import (
	"testing"

	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/require"

	"github.com/StricklySoft/stricklysoft-security/internal/testutil"
	"github.com/StricklySoft/stricklysoft-security/internal/testutil/fixtures"
	"github.com/StricklySoft/stricklysoft-security/pkg/jwk"
	"github.com/StricklySoft/stricklysoft-security/pkg/validation"
)

// authTestAuthenticator trusts fixtures.Issuer, expects fixtures.Audience
// and verifies against the public half of fixtures.KeyID. No key endpoint
// is contacted.
func authTestAuthenticator(t *testing.T, requireCert bool, opts ...Option) *Authenticator {
	t.Helper()
	set := jwk.NewKeySet()
	k, err := jwk.NewKey("RS256", fixtures.KeyID, &testutil.RSAKey(t, fixtures.KeyID).PublicKey)
	require.NoError(t, err)
	set.Put(k)

	cfg := validation.DefaultConfig()
	cfg.Issuers = []string{fixtures.Issuer}
	cfg.Audiences = []string{fixtures.Audience}
	cfg.JWKSURL = "https://keys.example/token_keys"
	cfg.RequireCertificate = requireCert
	chain, err := validation.NewChain(cfg,
		validation.WithKeySource(validation.StaticKeys{Set: set}),
		validation.WithChainListeners(),
	)
	require.NoError(t, err)

	a, err := NewAuthenticator(chain, append([]Option{WithAppID(fixtures.Audience)}, opts...)...)
	require.NoError(t, err)
	return a
}

// authTestToken returns a compact token for fixtures.Subject signed with
// fixtures.KeyID.
func authTestToken(t *testing.T, extra map[string]any) string {
	t.Helper()
	base := map[string]any{"sub": fixtures.Subject}
	for k, v := range extra {
		base[k] = v
	}
	claims := testutil.Claims(fixtures.Issuer, fixtures.Audience, base)
	return testutil.SignToken(t, jwt.SigningMethodRS256, testutil.RSAKey(t, fixtures.KeyID), fixtures.KeyID, claims, nil)
}
