// Package errors provides the coded error type used across the token
// validation packages. Every failure that leaves a package boundary is an
// [*Error] carrying a machine-readable [Code], a human-readable message
// suitable for audit logs, an optional cause, and optional details.
//
// # Error Categories
//
// Codes are grouped by the stage that produced them:
//
//   - TOKEN: the compact token could not be decoded
//   - CLAIM: a claim exists but has an incompatible JSON type
//   - AUTH: a trust predicate rejected the token
//   - AUTHZ: the token is trusted but lacks a required scope
//   - KEY: verification key material could not be resolved
//   - CERT: a client certificate could not be parsed
//   - CFG: configuration was rejected at construction time
//   - INT: unexpected internal failure
//
// # Usage
//
//	err := errors.New(errors.CodeTokenMalformed, "token: expected three segments")
//
//	if errors.IsAuthentication(err) {
//	    w.WriteHeader(http.StatusUnauthorized)
//	}
//
//	if e, ok := errors.AsError(err); ok {
//	    logger.Warn().Str("code", e.Code.String()).Msg(e.Message)
//	}
package errors
