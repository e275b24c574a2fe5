package secctx

import (
	"context"
	"crypto/x509/pkix"
	"errors"
	"fmt"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/StricklySoft/stricklysoft-security/internal/testutil"
	"github.com/StricklySoft/stricklysoft-security/internal/testutil/fixtures"
	"github.com/StricklySoft/stricklysoft-security/pkg/cert"
	"github.com/StricklySoft/stricklysoft-security/pkg/token"
)

func secctxTestToken(t *testing.T, sub string) *token.Token {
	t.Helper()
	raw := testutil.UnsignedToken(t, testutil.Claims(fixtures.Issuer, fixtures.Audience, map[string]any{"sub": sub}))
	tok, err := token.Decode(raw)
	require.NoError(t, err)
	return tok
}

func TestScope_SetGetClear(t *testing.T) {
	t.Parallel()
	s := NewScope()
	assert.Nil(t, s.Token())
	assert.Nil(t, s.Certificate())

	tok := secctxTestToken(t, fixtures.Subject)
	cc := testutil.SelfSignedCertificate(t, pkix.Name{CommonName: "client"})
	s.SetToken(tok)
	s.SetCertificate(cert.FromX509(cc.X509))
	assert.Same(t, tok, s.Token())
	require.NotNil(t, s.Certificate())

	s.Clear()
	assert.Nil(t, s.Token())
	assert.Nil(t, s.Certificate())
}

func TestScope_NilIsEmpty(t *testing.T) {
	t.Parallel()
	var s *Scope
	s.SetToken(secctxTestToken(t, fixtures.Subject))
	s.Clear()
	assert.Nil(t, s.Token())
	assert.Nil(t, s.Certificate())

	assert.Nil(t, FromContext(context.Background()))
	assert.Nil(t, TokenFromContext(context.Background()))
	assert.Nil(t, CertificateFromContext(context.Background()))
}

func TestWithScope_CleanupClears(t *testing.T) {
	t.Parallel()
	ctx, s, cleanup := WithScope(context.Background())
	tok := secctxTestToken(t, fixtures.Subject)
	s.SetToken(tok)
	assert.Same(t, s, FromContext(ctx))
	assert.Same(t, tok, TokenFromContext(ctx))

	cleanup()
	assert.Nil(t, TokenFromContext(ctx))
}

func TestWithScope_NestedScopesAreIndependent(t *testing.T) {
	t.Parallel()
	outerCtx, outer, cleanupOuter := WithScope(context.Background())
	defer cleanupOuter()
	outerTok := secctxTestToken(t, "outer")
	outer.SetToken(outerTok)

	innerCtx, inner, cleanupInner := WithScope(outerCtx)
	inner.SetToken(secctxTestToken(t, "inner"))
	cleanupInner()

	assert.Nil(t, TokenFromContext(innerCtx))
	assert.Same(t, outerTok, TokenFromContext(outerCtx))
}

func TestRun_ClearsOnEveryExit(t *testing.T) {
	t.Parallel()
	tok := secctxTestToken(t, fixtures.Subject)

	t.Run("success", func(t *testing.T) {
		var seen *Scope
		err := Run(context.Background(), func(ctx context.Context, s *Scope) error {
			seen = s
			s.SetToken(tok)
			assert.Same(t, tok, TokenFromContext(ctx))
			return nil
		})
		require.NoError(t, err)
		assert.Nil(t, seen.Token())
	})

	t.Run("error", func(t *testing.T) {
		boom := errors.New("boom")
		var seen *Scope
		err := Run(context.Background(), func(_ context.Context, s *Scope) error {
			seen = s
			s.SetToken(tok)
			return boom
		})
		assert.ErrorIs(t, err, boom)
		assert.Nil(t, seen.Token())
	})

	t.Run("panic", func(t *testing.T) {
		var seen *Scope
		assert.Panics(t, func() {
			_ = Run(context.Background(), func(_ context.Context, s *Scope) error {
				seen = s
				s.SetToken(tok)
				panic("boom")
			})
		})
		assert.Nil(t, seen.Token())
	})

	t.Run("cancelled", func(t *testing.T) {
		ctx, cancel := context.WithCancel(context.Background())
		var seen *Scope
		err := Run(ctx, func(ctx context.Context, s *Scope) error {
			seen = s
			s.SetToken(tok)
			cancel()
			<-ctx.Done()
			return ctx.Err()
		})
		assert.ErrorIs(t, err, context.Canceled)
		assert.Nil(t, seen.Token())
	})
}

func TestRun_ConcurrentScopesDoNotLeak(t *testing.T) {
	t.Parallel()
	const n = 64
	tokens := make([]*token.Token, n)
	for i := range tokens {
		tokens[i] = secctxTestToken(t, fmt.Sprintf("user-%d", i))
	}

	var wg sync.WaitGroup
	for i := range n {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_ = Run(context.Background(), func(ctx context.Context, s *Scope) error {
				s.SetToken(tokens[i])
				for range 100 {
					if got := TokenFromContext(ctx); got != tokens[i] {
						t.Errorf("worker %d observed a foreign token", i)
						return nil
					}
				}
				return nil
			})
		}()
	}
	wg.Wait()
}
