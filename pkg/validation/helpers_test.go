package validation

import (
	"context"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/require"

	"github.com/StricklySoft/stricklysoft-security/internal/testutil"
	"github.com/StricklySoft/stricklysoft-security/internal/testutil/fixtures"
	"github.com/StricklySoft/stricklysoft-security/pkg/jwk"
	"github.com/StricklySoft/stricklysoft-security/pkg/token"
)

// validationTestNow is the fixed clock of time-dependent tests.
var validationTestNow = time.Unix(1_750_000_000, 0).UTC()

func validationTestClock() time.Time { return validationTestNow }

func validationTestDecode(t *testing.T, raw string) *token.Token {
	t.Helper()
	tok, err := token.Decode(raw)
	require.NoError(t, err)
	return tok
}

// validationTestSigned returns a token signed by the RSA key named kid.
func validationTestSigned(t *testing.T, kid string, extra map[string]any, headers map[string]any) *token.Token {
	t.Helper()
	claims := testutil.Claims(fixtures.Issuer, fixtures.Audience, extra)
	raw := testutil.SignToken(t, jwt.SigningMethodRS256, testutil.RSAKey(t, kid), kid, claims, headers)
	return validationTestDecode(t, raw)
}

// validationTestClaims returns an unsigned token carrying claims.
func validationTestClaims(t *testing.T, claims jwt.MapClaims) *token.Token {
	t.Helper()
	return validationTestDecode(t, testutil.UnsignedToken(t, claims))
}

// validationTestKeySet holds the public halves of the named RSA keys.
func validationTestKeySet(t *testing.T, kids ...string) *jwk.KeySet {
	t.Helper()
	set := jwk.NewKeySet()
	for _, kid := range kids {
		k, err := jwk.NewKey("RS256", kid, &testutil.RSAKey(t, kid).PublicKey)
		require.NoError(t, err)
		set.Put(k)
	}
	return set
}

type recordingListener struct {
	successes int
	failures  []Result
}

func (l *recordingListener) OnValidationSuccess(context.Context, *token.Token) { l.successes++ }

func (l *recordingListener) OnValidationFailure(_ context.Context, _ *token.Token, res Result) {
	l.failures = append(l.failures, res)
}
