package token

import (
	"encoding/json"
	"fmt"
	"maps"
	"math"
	"time"

	sserr "github.com/StricklySoft/stricklysoft-security/pkg/errors"
)

// Claim returns the raw decoded value of a payload claim. Numbers are
// json.Number, arrays []any and objects map[string]any.
func (t *Token) Claim(name string) (any, bool) {
	v, ok := t.claims[name]
	return v, ok
}

// HasClaim reports whether the payload carries name, including a JSON
// null value.
func (t *Token) HasClaim(name string) bool {
	_, ok := t.claims[name]
	return ok
}

// Claims returns a shallow copy of the payload.
func (t *Token) Claims() map[string]any { return maps.Clone(t.claims) }

// ClaimNames returns the names of all payload claims in no particular
// order.
func (t *Token) ClaimNames() []string {
	names := make([]string, 0, len(t.claims))
	for k := range t.claims {
		names = append(names, k)
	}
	return names
}

// ClaimAsString returns a string claim. An absent or null claim yields
// "" and no error; any other JSON type is a CLAIM_001 error.
func (t *Token) ClaimAsString(name string) (string, error) {
	v, ok := t.claims[name]
	if !ok || v == nil {
		return "", nil
	}
	s, ok := v.(string)
	if !ok {
		return "", claimTypeError(name, "string", v)
	}
	return s, nil
}

// ClaimAsStringList returns a claim holding either a string or an array
// of strings as a list. An absent or null claim yields nil.
func (t *Token) ClaimAsStringList(name string) ([]string, error) {
	v, ok := t.claims[name]
	if !ok || v == nil {
		return nil, nil
	}
	switch x := v.(type) {
	case string:
		return []string{x}, nil
	case []any:
		out := make([]string, 0, len(x))
		for _, e := range x {
			s, ok := e.(string)
			if !ok {
				return nil, claimTypeError(name, "array of strings", v)
			}
			out = append(out, s)
		}
		return out, nil
	default:
		return nil, claimTypeError(name, "string or array of strings", v)
	}
}

// ClaimAsTime interprets a numeric claim as seconds since the Unix epoch.
// Fractional seconds are kept. An absent or null claim yields the zero
// time.
func (t *Token) ClaimAsTime(name string) (time.Time, error) {
	v, ok := t.claims[name]
	if !ok || v == nil {
		return time.Time{}, nil
	}
	n, ok := v.(json.Number)
	if !ok {
		return time.Time{}, claimTypeError(name, "number", v)
	}
	if secs, err := n.Int64(); err == nil {
		if secs < -maxTimestamp || secs > maxTimestamp {
			return time.Time{}, timeRangeError(name)
		}
		return time.Unix(secs, 0).UTC(), nil
	}
	f, err := n.Float64()
	switch {
	case math.IsInf(f, 0) || math.Abs(f) > maxTimestamp:
		return time.Time{}, timeRangeError(name)
	case err != nil || math.IsNaN(f):
		return time.Time{}, claimTypeError(name, "number", v)
	}
	whole, frac := math.Modf(f)
	return time.Unix(int64(whole), int64(frac*1e9)).UTC(), nil
}

// maxTimestamp is 9999-12-31T23:59:59Z. Larger magnitudes overflow
// time.Unix arithmetic.
const maxTimestamp = 253402300799

func timeRangeError(name string) *sserr.Error {
	return sserr.Newf(sserr.CodeClaimType, "token: claim %q is outside the years 0001 to 9999", name).
		WithDetail("claim", name)
}

// ClaimAsObject returns a JSON object claim. An absent or null claim
// yields nil.
func (t *Token) ClaimAsObject(name string) (map[string]any, error) {
	v, ok := t.claims[name]
	if !ok || v == nil {
		return nil, nil
	}
	m, ok := v.(map[string]any)
	if !ok {
		return nil, claimTypeError(name, "object", v)
	}
	return m, nil
}

func claimTypeError(name, want string, got any) *sserr.Error {
	return sserr.Newf(sserr.CodeClaimType, "token: claim %q is not a %s", name, want).
		WithDetails(map[string]any{"claim": name, "type": jsonType(got)})
}

func jsonType(v any) string {
	switch v.(type) {
	case string:
		return "string"
	case json.Number:
		return "number"
	case bool:
		return "boolean"
	case []any:
		return "array"
	case map[string]any:
		return "object"
	default:
		return fmt.Sprintf("%T", v)
	}
}
