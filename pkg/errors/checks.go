package errors

import (
	"errors"
)

// AsError finds the first *Error in err's chain.
func AsError(err error) (*Error, bool) {
	var e *Error
	if errors.As(err, &e) {
		return e, true
	}
	return nil, false
}

// GetCode returns the code of the first *Error in err's chain, or "".
func GetCode(err error) Code {
	if e, ok := AsError(err); ok {
		return e.Code
	}
	return ""
}

// HasCode reports whether err carries code.
func HasCode(err error, code Code) bool {
	return GetCode(err) == code
}

func hasCategory(err error, categories ...string) bool {
	e, ok := AsError(err)
	if !ok {
		return false
	}
	cat := e.Code.Category()
	for _, c := range categories {
		if c == cat {
			return true
		}
	}
	return false
}

// IsMalformed reports whether err is a TOKEN or CLAIM error.
func IsMalformed(err error) bool {
	return hasCategory(err, "TOKEN", "CLAIM")
}

// IsAuthentication reports whether err should be answered with 401:
// decoding, trust, key and certificate failures all qualify.
func IsAuthentication(err error) bool {
	return hasCategory(err, "TOKEN", "CLAIM", "AUTH", "KEY", "CERT")
}

// IsAuthorization reports whether err is an AUTHZ error.
func IsAuthorization(err error) bool {
	return hasCategory(err, "AUTHZ")
}

// IsKey reports whether err came from key resolution.
func IsKey(err error) bool {
	return hasCategory(err, "KEY")
}

// IsConfiguration reports whether err is a CFG error.
func IsConfiguration(err error) bool {
	return hasCategory(err, "CFG")
}

// IsInternal reports whether err is an INT error.
func IsInternal(err error) bool {
	return hasCategory(err, "INT")
}
