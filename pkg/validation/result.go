// Package validation decides whether a decoded token may be trusted.
//
// Each Validator checks one property of a token (expiry, issuer,
// audience, signature, certificate binding, key URL) and returns a
// Result. A Combining validator runs an ordered list of them and merges
// their results; the merged result is valid only if every input is,
// and its reason lists every violation.
//
// # Usage
//
//	chain, err := validation.NewChain(cfg)
//	if err != nil {
//	    return err // misconfiguration surfaces at startup
//	}
//	res := chain.Validate(ctx, tok)
//	if !res.IsValid() {
//	    return res.Err()
//	}
package validation

import (
	"fmt"
	"slices"
	"strings"

	sserr "github.com/StricklySoft/stricklysoft-security/pkg/errors"
)

// Violation is one reason a token was rejected.
type Violation struct {
	// Code classifies the violation, for example AUTH_002 for an expired
	// token.
	Code sserr.Code

	// Reason is a human-readable explanation suitable for audit logs. It
	// never contains the token itself.
	Reason string

	// Cause is the underlying error, if any.
	Cause error
}

// Result is the outcome of a validation. The zero value is valid.
type Result struct {
	violations []Violation
}

// Valid returns a valid result.
func Valid() Result { return Result{} }

// Invalid returns a result with one violation.
func Invalid(code sserr.Code, reason string) Result {
	return Result{violations: []Violation{{Code: code, Reason: reason}}}
}

// Invalidf is Invalid with a formatted reason.
func Invalidf(code sserr.Code, format string, args ...any) Result {
	return Invalid(code, fmt.Sprintf(format, args...))
}

// InvalidErr returns a result with one violation caused by err. The
// reason is prefixed to err's message.
func InvalidErr(code sserr.Code, reason string, err error) Result {
	if e, ok := sserr.AsError(err); ok {
		reason = reason + ": " + e.Message
	} else if err != nil {
		reason = reason + ": " + err.Error()
	}
	return Result{violations: []Violation{{Code: code, Reason: reason, Cause: err}}}
}

// Merge combines results. The merged result is valid iff every input is
// valid and keeps every violation in input order.
func Merge(results ...Result) Result {
	var merged Result
	for _, r := range results {
		merged.violations = append(merged.violations, r.violations...)
	}
	return merged
}

// IsValid reports whether the result has no violations.
func (r Result) IsValid() bool { return len(r.violations) == 0 }

// Violations returns a copy of the violations.
func (r Result) Violations() []Violation { return slices.Clone(r.violations) }

// Reason joins the violation reasons with "; ". It is empty for a valid
// result.
func (r Result) Reason() string {
	reasons := make([]string, len(r.violations))
	for i, v := range r.violations {
		reasons[i] = v.Reason
	}
	return strings.Join(reasons, "; ")
}

// Codes returns the violation codes in order.
func (r Result) Codes() []sserr.Code {
	codes := make([]sserr.Code, len(r.violations))
	for i, v := range r.violations {
		codes[i] = v.Code
	}
	return codes
}

// Err converts an invalid result to an *sserr.Error carrying the first
// violation's code and all reasons. It returns nil for a valid result.
func (r Result) Err() error {
	if r.IsValid() {
		return nil
	}
	first := r.violations[0]
	e := &sserr.Error{Code: first.Code, Message: "token rejected: " + r.Reason(), Cause: first.Cause}
	return e.WithDetail("violations", r.Codes())
}

// String implements fmt.Stringer.
func (r Result) String() string {
	if r.IsValid() {
		return "valid"
	}
	return "invalid: " + r.Reason()
}
