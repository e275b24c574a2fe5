package validation

import (
	"context"
	"crypto/x509/pkix"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/StricklySoft/stricklysoft-security/internal/testutil"
	"github.com/StricklySoft/stricklysoft-security/internal/testutil/fixtures"
	"github.com/StricklySoft/stricklysoft-security/pkg/cert"
	"github.com/StricklySoft/stricklysoft-security/pkg/config"
	sserr "github.com/StricklySoft/stricklysoft-security/pkg/errors"
	"github.com/StricklySoft/stricklysoft-security/pkg/secctx"
)

func chainTestConfig(jwksURL string) Config {
	cfg := DefaultConfig()
	cfg.Issuers = []string{fixtures.Issuer}
	cfg.Audiences = []string{fixtures.Audience}
	cfg.JWKSURL = jwksURL
	return cfg
}

func chainTestServer(t *testing.T, kids ...string) *testutil.JWKSServer {
	t.Helper()
	keys := make([]map[string]any, 0, len(kids))
	for _, kid := range kids {
		keys = append(keys, testutil.JWK(kid, "RS256", &testutil.RSAKey(t, kid).PublicKey))
	}
	return testutil.ServeJWKS(t, keys...)
}

// ===========================================================================
// Configuration
// ===========================================================================

func TestConfig_Validate(t *testing.T) {
	t.Parallel()
	tests := []struct {
		name   string
		mutate func(*Config)
		code   sserr.Code
	}{
		{"no audiences", func(c *Config) { c.Audiences = nil }, sserr.CodeConfigurationRequired},
		{"negative skew", func(c *Config) { c.ClockSkew = -time.Second }, sserr.CodeConfiguration},
		{"no key source", func(c *Config) { c.JWKSURL = "" }, sserr.CodeConfigurationRequired},
		{"relative jwks url", func(c *Config) { c.JWKSURL = "/token_keys" }, sserr.CodeConfiguration},
		{"bad verification key", func(c *Config) { c.VerificationKey = "not pem" }, sserr.CodeConfiguration},
		{"bad key cache", func(c *Config) { c.KeyCache.TTL = 0 }, sserr.CodeConfiguration},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			cfg := chainTestConfig("https://keys.example/token_keys")
			tt.mutate(&cfg)
			_, err := NewChain(cfg)
			testutil.RequireErrorCode(t, err, tt.code)
		})
	}
}

func TestNewChain_RequiresIssuerTrust(t *testing.T) {
	t.Parallel()
	cfg := chainTestConfig("https://keys.example/token_keys")
	cfg.Issuers = nil
	_, err := NewChain(cfg)
	testutil.RequireErrorCode(t, err, sserr.CodeConfigurationRequired)

	cfg.IssuerDomains = []string{fixtures.TrustedDomain}
	_, err = NewChain(cfg)
	require.NoError(t, err)

	cfg.IssuerDomains = nil
	_, err = NewChain(cfg, WithIssuerPolicy(LocalhostIssuerPolicy{}))
	require.NoError(t, err)
}

func TestConfig_LoadsFromEnvironment(t *testing.T) {
	t.Setenv("JWT_ISSUERS", fixtures.Issuer+", https://other.example")
	t.Setenv("JWT_AUDIENCES", fixtures.Audience)
	t.Setenv("JWT_JWKS_URL", "https://keys.example/token_keys")
	t.Setenv("JWT_KEYCACHE_TTL", "15m")

	var cfg Config
	require.NoError(t, config.New().WithEnvPrefix("jwt").Load(&cfg))
	assert.Equal(t, []string{fixtures.Issuer, "https://other.example"}, cfg.Issuers)
	assert.Equal(t, time.Minute, cfg.ClockSkew)
	assert.Equal(t, 15*time.Minute, cfg.KeyCache.TTL)
	assert.Equal(t, 1000, cfg.KeyCache.Size)
	assert.Equal(t, 5*time.Second, cfg.KeyCache.FailureTTL)
}

// ===========================================================================
// Scenarios
// ===========================================================================

func TestChain_TrustedTokenIsValid(t *testing.T) {
	t.Parallel()
	srv := chainTestServer(t, fixtures.KeyID)
	chain, err := NewChain(chainTestConfig(srv.JWKSURL()))
	require.NoError(t, err)
	require.NotNil(t, chain.KeyCache())

	res := chain.Validate(context.Background(), validationTestSigned(t, fixtures.KeyID, nil, nil))
	assert.True(t, res.IsValid(), res.Reason())
	assert.NoError(t, res.Err())
}

func TestChain_UnknownSigningKey(t *testing.T) {
	t.Parallel()
	srv := chainTestServer(t, fixtures.OtherKeyID)
	chain, err := NewChain(chainTestConfig(srv.JWKSURL()))
	require.NoError(t, err)

	res := chain.Validate(context.Background(), validationTestSigned(t, fixtures.KeyID, nil, nil))
	require.False(t, res.IsValid())
	assert.Equal(t, []sserr.Code{sserr.CodeAuthenticationSignature}, res.Codes())
	assert.Contains(t, res.Reason(), "key")
}

func TestChain_CertificateMismatch(t *testing.T) {
	t.Parallel()
	srv := chainTestServer(t, fixtures.KeyID)
	cfg := chainTestConfig(srv.JWKSURL())
	cfg.RequireCertificate = true
	chain, err := NewChain(cfg)
	require.NoError(t, err)

	cc := testutil.SelfSignedCertificate(t, pkix.Name{CommonName: "client"})
	tok := validationTestSigned(t, fixtures.KeyID, map[string]any{"cnf": map[string]any{"x5t#S256": "abc"}}, nil)

	err = secctx.Run(context.Background(), func(ctx context.Context, s *secctx.Scope) error {
		s.SetCertificate(cert.FromX509(cc.X509))
		return chain.Validate(ctx, tok).Err()
	})
	testutil.RequireErrorCode(t, err, sserr.CodeAuthenticationCertificate)
	assert.Contains(t, err.Error(), "thumbprint")
}

func TestChain_ReportsEveryViolation(t *testing.T) {
	t.Parallel()
	srv := chainTestServer(t, fixtures.KeyID)
	chain, err := NewChain(chainTestConfig(srv.JWKSURL()), WithChainClock(validationTestClock))
	require.NoError(t, err)

	tok := validationTestSigned(t, fixtures.KeyID, map[string]any{
		"exp": validationTestNow.Add(-2 * time.Minute).Unix(),
		"aud": "someone-else",
		"iss": fixtures.UntrustedIssuer,
	}, nil)
	res := chain.Validate(context.Background(), tok)
	assert.Equal(t, []sserr.Code{
		sserr.CodeAuthenticationExpired,
		sserr.CodeAuthenticationIssuer,
		sserr.CodeAuthenticationAudience,
	}, res.Codes())
}

func TestChain_FailFast(t *testing.T) {
	t.Parallel()
	srv := chainTestServer(t, fixtures.KeyID)
	cfg := chainTestConfig(srv.JWKSURL())
	cfg.FailFast = true
	chain, err := NewChain(cfg, WithChainClock(validationTestClock), WithChainListeners())
	require.NoError(t, err)

	tok := validationTestSigned(t, fixtures.KeyID, map[string]any{
		"exp": validationTestNow.Add(-2 * time.Minute).Unix(),
		"aud": "someone-else",
	}, nil)
	res := chain.Validate(context.Background(), tok)
	assert.Equal(t, []sserr.Code{sserr.CodeAuthenticationExpired}, res.Codes())
	assert.Zero(t, srv.Hits())
}

func TestChain_UntrustedJKUIsNeverFetched(t *testing.T) {
	t.Parallel()
	tests := []struct {
		name     string
		failFast bool
		static   bool
		codes    []sserr.Code
	}{
		{"exhaustive", false, true, []sserr.Code{sserr.CodeAuthenticationKeyURL, sserr.CodeAuthenticationSignature}},
		{"exhaustive without static endpoint", false, false, []sserr.Code{sserr.CodeAuthenticationKeyURL, sserr.CodeAuthenticationSignature}},
		{"fail fast", true, true, []sserr.Code{sserr.CodeAuthenticationKeyURL}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			legit := chainTestServer(t, fixtures.KeyID)
			attacker := chainTestServer(t, "evil")

			cfg := chainTestConfig("")
			if tt.static {
				cfg.JWKSURL = legit.JWKSURL()
			}
			cfg.TrustedJKUDomain = fixtures.TrustedDomain
			cfg.FailFast = tt.failFast
			chain, err := NewChain(cfg, WithChainListeners())
			require.NoError(t, err)

			tok := validationTestSigned(t, "evil", nil, map[string]any{"jku": attacker.JWKSURL()})
			res := chain.Validate(context.Background(), tok)
			assert.Equal(t, tt.codes, res.Codes(), res.Reason())
			assert.Zero(t, attacker.Hits(), "keys must not be fetched from an untrusted jku")
			if tt.failFast {
				assert.Zero(t, legit.Hits())
			}
		})
	}
}

func TestChain_Discovery(t *testing.T) {
	t.Parallel()
	srv := chainTestServer(t, fixtures.KeyID)
	srv.ServeDiscovery()

	cfg := DefaultConfig()
	cfg.Issuers = []string{srv.URL}
	cfg.Audiences = []string{fixtures.Audience}
	cfg.Discovery = true
	chain, err := NewChain(cfg)
	require.NoError(t, err)

	tok := validationTestSigned(t, fixtures.KeyID, map[string]any{"iss": srv.URL}, nil)
	res := chain.Validate(context.Background(), tok)
	assert.True(t, res.IsValid(), res.Reason())

	// An untrusted issuer is never asked for its metadata.
	evil := validationTestSigned(t, fixtures.KeyID, map[string]any{"iss": fixtures.UntrustedIssuer}, nil)
	res = chain.Validate(context.Background(), evil)
	assert.Equal(t, []sserr.Code{sserr.CodeAuthenticationIssuer, sserr.CodeAuthenticationSignature}, res.Codes())
}

func TestChain_VerificationKeyFallback(t *testing.T) {
	t.Parallel()
	cfg := chainTestConfig("http://127.0.0.1:1/token_keys")
	cfg.VerificationKey = testutil.PublicKeyPEM(t, &testutil.RSAKey(t, fixtures.KeyID).PublicKey)
	chain, err := NewChain(cfg)
	require.NoError(t, err)

	res := chain.Validate(context.Background(), validationTestSigned(t, fixtures.KeyID, nil, nil))
	assert.True(t, res.IsValid(), res.Reason())
}

func TestChain_InjectedKeySource(t *testing.T) {
	t.Parallel()
	cfg := chainTestConfig("https://keys.example/token_keys")
	chain, err := NewChain(cfg, WithKeySource(StaticKeys{Set: validationTestKeySet(t, fixtures.KeyID)}))
	require.NoError(t, err)
	assert.Nil(t, chain.KeyCache())

	res := chain.Validate(context.Background(), validationTestSigned(t, fixtures.KeyID, nil, nil))
	assert.True(t, res.IsValid(), res.Reason())

	cfg.Discovery = true
	_, err = NewChain(cfg, WithKeySource(StaticKeys{Set: validationTestKeySet(t, fixtures.KeyID)}))
	testutil.RequireErrorCode(t, err, sserr.CodeConfiguration)
}
