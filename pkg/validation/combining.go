package validation

import (
	"context"
	"fmt"

	sserr "github.com/StricklySoft/stricklysoft-security/pkg/errors"
	"github.com/StricklySoft/stricklysoft-security/pkg/token"
)

// Validator checks one property of a token. Implementations only read the
// token and must be safe for concurrent use.
type Validator interface {
	Validate(ctx context.Context, tok *token.Token) Result
}

// ValidatorFunc adapts a function to Validator.
type ValidatorFunc func(ctx context.Context, tok *token.Token) Result

// Validate implements Validator.
func (f ValidatorFunc) Validate(ctx context.Context, tok *token.Token) Result { return f(ctx, tok) }

// Listener is told about the outcome of every combined validation.
type Listener interface {
	OnValidationSuccess(ctx context.Context, tok *token.Token)
	OnValidationFailure(ctx context.Context, tok *token.Token, res Result)
}

// Combining runs validators in order and merges their results.
type Combining struct {
	validators []Validator
	listeners  []Listener
	failFast   bool
}

var _ Validator = (*Combining)(nil)

// CombiningOption configures a Combining validator.
type CombiningOption func(*Combining)

// FailFast stops at the first violation instead of running every
// validator.
func FailFast() CombiningOption {
	return func(c *Combining) { c.failFast = true }
}

// WithListeners registers listeners notified after each validation.
func WithListeners(listeners ...Listener) CombiningOption {
	return func(c *Combining) { c.listeners = append(c.listeners, listeners...) }
}

// NewCombining returns a validator that requires every validator to
// pass. An empty list or a nil entry is a configuration error.
func NewCombining(validators []Validator, opts ...CombiningOption) (*Combining, error) {
	if len(validators) == 0 {
		return nil, sserr.New(sserr.CodeConfiguration, "validation: at least one validator is required")
	}
	for i, v := range validators {
		if v == nil {
			return nil, sserr.Newf(sserr.CodeConfiguration, "validation: validator %d is nil", i)
		}
	}
	c := &Combining{validators: append([]Validator(nil), validators...)}
	for _, opt := range opts {
		opt(c)
	}
	return c, nil
}

// Validate runs the validators. A nil token is invalid. A validator that
// panics yields an INT_001 violation instead of crashing the caller.
func (c *Combining) Validate(ctx context.Context, tok *token.Token) Result {
	var res Result
	if tok == nil {
		res = Invalid(sserr.CodeTokenMalformed, "no token")
	} else {
		for _, v := range c.validators {
			r := runSafely(ctx, v, tok)
			res = Merge(res, r)
			if c.failFast && !r.IsValid() {
				break
			}
		}
	}

	for _, l := range c.listeners {
		if res.IsValid() {
			l.OnValidationSuccess(ctx, tok)
		} else {
			l.OnValidationFailure(ctx, tok, res)
		}
	}
	return res
}

func runSafely(ctx context.Context, v Validator, tok *token.Token) (res Result) {
	defer func() {
		if p := recover(); p != nil {
			res = Invalidf(sserr.CodeInternal, "validator %T failed: %v", v, p)
		}
	}()
	return v.Validate(ctx, tok)
}

// String lists the validator types, for startup logs.
func (c *Combining) String() string {
	return fmt.Sprintf("combining(%d validators, failFast=%t)", len(c.validators), c.failFast)
}
