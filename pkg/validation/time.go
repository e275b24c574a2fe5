package validation

import (
	"context"
	"time"

	sserr "github.com/StricklySoft/stricklysoft-security/pkg/errors"
	"github.com/StricklySoft/stricklysoft-security/pkg/token"
)

// DefaultClockSkew absorbs clock drift between issuer and verifier.
const DefaultClockSkew = time.Minute

// TimeOption configures the expiration and not-before validators.
type TimeOption func(*timeWindow)

type timeWindow struct {
	leeway time.Duration
	now    func() time.Time
}

// WithLeeway overrides DefaultClockSkew. Negative values count as zero.
func WithLeeway(d time.Duration) TimeOption {
	return func(w *timeWindow) { w.leeway = max(d, 0) }
}

// WithClock replaces time.Now.
func WithClock(now func() time.Time) TimeOption {
	return func(w *timeWindow) { w.now = now }
}

func newTimeWindow(opts []TimeOption) timeWindow {
	w := timeWindow{leeway: DefaultClockSkew, now: time.Now}
	for _, opt := range opts {
		opt(&w)
	}
	return w
}

// NewExpirationValidator rejects tokens whose exp lies more than the
// leeway in the past. Tokens without exp pass.
func NewExpirationValidator(opts ...TimeOption) Validator {
	w := newTimeWindow(opts)
	return ValidatorFunc(func(_ context.Context, tok *token.Token) Result {
		exp, err := tok.ClaimAsTime(token.ClaimExpiration)
		if err != nil {
			return InvalidErr(sserr.CodeClaimType, "expiration", err)
		}
		if exp.IsZero() {
			return Valid()
		}
		if w.now().After(exp.Add(w.leeway)) {
			return Invalidf(sserr.CodeAuthenticationExpired, "token expired at %s", exp.Format(time.RFC3339))
		}
		return Valid()
	})
}

// NewNotBeforeValidator rejects tokens whose nbf lies more than the
// leeway in the future. Tokens without nbf pass.
func NewNotBeforeValidator(opts ...TimeOption) Validator {
	w := newTimeWindow(opts)
	return ValidatorFunc(func(_ context.Context, tok *token.Token) Result {
		nbf, err := tok.ClaimAsTime(token.ClaimNotBefore)
		if err != nil {
			return InvalidErr(sserr.CodeClaimType, "not before", err)
		}
		if nbf.IsZero() {
			return Valid()
		}
		if w.now().Before(nbf.Add(-w.leeway)) {
			return Invalidf(sserr.CodeAuthenticationNotYetValid, "token is not valid before %s", nbf.Format(time.RFC3339))
		}
		return Valid()
	})
}
