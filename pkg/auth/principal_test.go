package auth

import (
	"context"
	"testing"

	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/StricklySoft/stricklysoft-security/internal/testutil"
	"github.com/StricklySoft/stricklysoft-security/pkg/token"
)

func principalTestNew(t *testing.T, claims jwt.MapClaims, appID string) *Principal {
	t.Helper()
	tok, err := token.Decode(testutil.UnsignedToken(t, claims))
	require.NoError(t, err)
	return NewPrincipal(tok, appID)
}

func TestPrincipal_Kind(t *testing.T) {
	t.Parallel()
	tests := []struct {
		name   string
		claims jwt.MapClaims
		want   PrincipalKind
		id     string
	}{
		{"user", jwt.MapClaims{"sub": "u1", "azp": "app1", "grant_type": "authorization_code"}, PrincipalUser, "u1"},
		{"client credentials", jwt.MapClaims{"sub": "svc", "azp": "app1", "grant_type": "client_credentials"}, PrincipalClient, "svc"},
		{"subject is client", jwt.MapClaims{"sub": "app1", "azp": "app1"}, PrincipalClient, "app1"},
		{"no subject", jwt.MapClaims{"cid": "app1"}, PrincipalClient, "app1"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			p := principalTestNew(t, tt.claims, "")
			assert.Equal(t, tt.want, p.Kind())
			assert.Equal(t, tt.id, p.ID())
		})
	}
}

func TestPrincipal_Scopes(t *testing.T) {
	t.Parallel()
	p := principalTestNew(t, jwt.MapClaims{"scope": []any{"app1.read", "openid", "app2.write"}}, "app1")

	assert.Equal(t, []string{"app1.read", "openid", "app2.write"}, p.Scopes())
	assert.True(t, p.HasScope("read"))
	assert.True(t, p.HasScope("app1.read"))
	assert.True(t, p.HasScope("openid"))
	assert.False(t, p.HasScope("write"))

	ok, missing := p.HasAllScopes("read", "write", "admin")
	assert.False(t, ok)
	assert.Equal(t, []string{"write", "admin"}, missing)

	ok, missing = p.HasAllScopes()
	assert.True(t, ok)
	assert.Empty(t, missing)
}

func TestPrincipal_WithoutAppIDHasNoLocalScopes(t *testing.T) {
	t.Parallel()
	p := principalTestNew(t, jwt.MapClaims{"scope": "app1.read"}, "")
	assert.False(t, p.HasScope("read"))
	assert.True(t, p.HasScope("app1.read"))
}

func TestPrincipal_CertificateBound(t *testing.T) {
	t.Parallel()
	assert.True(t, principalTestNew(t, jwt.MapClaims{"cnf": map[string]any{"x5t#S256": "abc"}}, "").CertificateBound())
	assert.False(t, principalTestNew(t, jwt.MapClaims{"sub": "u1"}, "").CertificateBound())
}

func TestPrincipalContext(t *testing.T) {
	t.Parallel()
	_, ok := PrincipalFromContext(context.Background())
	assert.False(t, ok)
	assert.Panics(t, func() { MustPrincipalFromContext(context.Background()) })

	_, ok = PrincipalFromContext(ContextWithPrincipal(context.Background(), nil))
	assert.False(t, ok)

	p := principalTestNew(t, jwt.MapClaims{"sub": "u1"}, "")
	ctx := ContextWithPrincipal(context.Background(), p)
	got, ok := PrincipalFromContext(ctx)
	require.True(t, ok)
	assert.Same(t, p, got)
	assert.Same(t, p, MustPrincipalFromContext(ctx))
}
