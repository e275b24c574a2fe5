package testutil

import (
	"encoding/base64"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/require"
)

// Claims builds a payload with iss, aud and an exp one hour ahead,
// overridden and extended by extra. A nil value in extra deletes the
// claim.
func Claims(iss, aud string, extra map[string]any) jwt.MapClaims {
	c := jwt.MapClaims{
		"iss": iss,
		"aud": aud,
		"exp": time.Now().Add(time.Hour).Unix(),
	}
	for k, v := range extra {
		if v == nil {
			delete(c, k)
			continue
		}
		c[k] = v
	}
	return c
}

// SignToken signs claims with key. kid and any extra headers are added
// to the JOSE header.
func SignToken(t testing.TB, method jwt.SigningMethod, key any, kid string, claims jwt.MapClaims, headers map[string]any) string {
	t.Helper()
	tok := jwt.NewWithClaims(method, claims)
	if kid != "" {
		tok.Header["kid"] = kid
	}
	for k, v := range headers {
		tok.Header[k] = v
	}
	s, err := tok.SignedString(key)
	require.NoError(t, err)
	return s
}

// UnsignedToken returns an alg=none token carrying claims.
func UnsignedToken(t testing.TB, claims jwt.MapClaims) string {
	t.Helper()
	s, err := jwt.NewWithClaims(jwt.SigningMethodNone, claims).SignedString(jwt.UnsafeAllowNoneSignatureType)
	require.NoError(t, err)
	return s
}

// FlipSignatureByte corrupts the first byte of the signature segment.
func FlipSignatureByte(t testing.TB, compact string) string {
	t.Helper()
	i := len(compact) - 1
	for i >= 0 && compact[i] != '.' {
		i--
	}
	sig, err := base64.RawURLEncoding.DecodeString(compact[i+1:])
	require.NoError(t, err)
	require.NotEmpty(t, sig)
	sig[0] ^= 0x01
	return compact[:i+1] + base64.RawURLEncoding.EncodeToString(sig)
}
