package errors

import (
	"fmt"
	"maps"
	"net/http"
)

// Error is a coded error. Values are never mutated after creation;
// WithDetail and WithDetails return copies.
type Error struct {
	// Code is the machine-readable error code.
	Code Code

	// Message is a human-readable reason. It is written to audit logs and
	// must not contain token contents or key material.
	Message string

	// Cause is the underlying error, if any.
	Cause error

	// Details carries structured context such as the claim name or the
	// key id that failed.
	Details map[string]any
}

// Error implements the error interface.
func (e *Error) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("%s: %s: %v", e.Code, e.Message, e.Cause)
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

// Unwrap returns the cause so errors.Is and errors.As see through Error.
func (e *Error) Unwrap() error {
	return e.Cause
}

// HTTPStatus maps the code category to the status a resource server
// should answer with.
func (e *Error) HTTPStatus() int {
	switch e.Code.Category() {
	case "TOKEN", "CLAIM", "AUTH", "KEY", "CERT":
		return http.StatusUnauthorized
	case "AUTHZ":
		return http.StatusForbidden
	default:
		return http.StatusInternalServerError
	}
}

// WithDetails returns a copy of e with details merged in.
func (e *Error) WithDetails(details map[string]any) *Error {
	merged := make(map[string]any, len(e.Details)+len(details))
	maps.Copy(merged, e.Details)
	maps.Copy(merged, details)
	return &Error{Code: e.Code, Message: e.Message, Cause: e.Cause, Details: merged}
}

// WithDetail returns a copy of e with one detail added.
func (e *Error) WithDetail(key string, value any) *Error {
	return e.WithDetails(map[string]any{key: value})
}

// Format implements fmt.Formatter. %+v prints code, message, details and
// the cause chain.
func (e *Error) Format(s fmt.State, verb rune) {
	switch verb {
	case 'v':
		if s.Flag('+') {
			fmt.Fprintf(s, "Error{Code: %q, Message: %q", e.Code, e.Message)
			if len(e.Details) > 0 {
				fmt.Fprintf(s, ", Details: %v", e.Details)
			}
			if e.Cause != nil {
				fmt.Fprintf(s, ", Cause: %+v", e.Cause)
			}
			fmt.Fprint(s, "}")
			return
		}
		fallthrough
	case 's':
		fmt.Fprint(s, e.Error())
	case 'q':
		fmt.Fprintf(s, "%q", e.Error())
	}
}
