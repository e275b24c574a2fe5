// Package jwk holds public verification keys indexed by signing
// algorithm and key id, and parses them from JWKS documents and PEM.
//
// Only asymmetric algorithms are accepted. "none" and the HMAC family
// are never on the allow-list, whatever a token header declares.
package jwk

import (
	"crypto"
	"crypto/ecdsa"
	"crypto/elliptic"
	"crypto/rsa"
	"strings"

	"github.com/golang-jwt/jwt/v5"

	sserr "github.com/StricklySoft/stricklysoft-security/pkg/errors"
)

// DefaultKeyID is the id assigned to keys published without a kid. It is
// also what Get looks up when the caller has no kid.
const DefaultKeyID = "default-kid"

// Key types.
const (
	TypeRSA = "RSA"
	TypeEC  = "EC"
)

var allowed = map[string]jwt.SigningMethod{
	"RS256": jwt.SigningMethodRS256,
	"RS384": jwt.SigningMethodRS384,
	"RS512": jwt.SigningMethodRS512,
	"PS256": jwt.SigningMethodPS256,
	"PS384": jwt.SigningMethodPS384,
	"PS512": jwt.SigningMethodPS512,
	"ES256": jwt.SigningMethodES256,
	"ES384": jwt.SigningMethodES384,
	"ES512": jwt.SigningMethodES512,
}

// IsSupportedAlgorithm reports whether alg is on the allow-list.
func IsSupportedAlgorithm(alg string) bool {
	_, ok := allowed[alg]
	return ok
}

// SigningMethod returns the verifier for an allow-listed algorithm.
func SigningMethod(alg string) (jwt.SigningMethod, error) {
	m, ok := allowed[alg]
	if !ok {
		return nil, sserr.Newf(sserr.CodeKeyAlgorithm, "jwk: algorithm %q is not supported", alg).
			WithDetail("alg", alg)
	}
	return m, nil
}

// Key is a public verification key.
type Key struct {
	ID        string
	Type      string
	Algorithm string
	PublicKey crypto.PublicKey
}

// NewKey validates that pub is usable with alg and returns a Key. An
// empty kid becomes DefaultKeyID. An empty alg is derived from the key:
// RS256 for RSA, and the curve's ES algorithm for EC.
func NewKey(alg, kid string, pub crypto.PublicKey) (*Key, error) {
	var kty string
	switch k := pub.(type) {
	case *rsa.PublicKey:
		if k == nil || k.N == nil {
			return nil, sserr.New(sserr.CodeKeyMaterial, "jwk: empty RSA key")
		}
		if k.N.BitLen() < 2048 {
			return nil, sserr.Newf(sserr.CodeKeyMaterial, "jwk: RSA modulus of %d bits is too short", k.N.BitLen())
		}
		kty = TypeRSA
		if alg == "" {
			alg = "RS256"
		}
		if !strings.HasPrefix(alg, "RS") && !strings.HasPrefix(alg, "PS") {
			return nil, sserr.Newf(sserr.CodeKeyAlgorithm, "jwk: algorithm %q cannot use an RSA key", alg)
		}
	case *ecdsa.PublicKey:
		if k == nil || k.Curve == nil {
			return nil, sserr.New(sserr.CodeKeyMaterial, "jwk: empty EC key")
		}
		kty = TypeEC
		want := curveAlgorithm(k.Curve)
		if want == "" {
			return nil, sserr.Newf(sserr.CodeKeyMaterial, "jwk: unsupported curve %s", k.Curve.Params().Name)
		}
		if alg == "" {
			alg = want
		}
		if alg != want {
			return nil, sserr.Newf(sserr.CodeKeyAlgorithm, "jwk: algorithm %q does not match curve %s", alg, k.Curve.Params().Name)
		}
	default:
		return nil, sserr.Newf(sserr.CodeKeyMaterial, "jwk: unsupported public key type %T", pub)
	}

	if !IsSupportedAlgorithm(alg) {
		return nil, sserr.Newf(sserr.CodeKeyAlgorithm, "jwk: algorithm %q is not supported", alg)
	}
	if kid == "" {
		kid = DefaultKeyID
	}
	return &Key{ID: kid, Type: kty, Algorithm: alg, PublicKey: pub}, nil
}

// Verify checks sig over signingInput with this key's algorithm.
func (k *Key) Verify(signingInput string, sig []byte) error {
	m, err := SigningMethod(k.Algorithm)
	if err != nil {
		return err
	}
	if err := m.Verify(signingInput, sig, k.PublicKey); err != nil {
		return sserr.Wrap(err, sserr.CodeAuthenticationSignature, "jwk: signature verification failed").
			WithDetails(map[string]any{"alg": k.Algorithm, "kid": k.ID})
	}
	return nil
}

func curveAlgorithm(c elliptic.Curve) string {
	switch c {
	case elliptic.P256():
		return "ES256"
	case elliptic.P384():
		return "ES384"
	case elliptic.P521():
		return "ES512"
	}
	return ""
}
