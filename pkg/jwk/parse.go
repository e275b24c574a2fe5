package jwk

import (
	"bytes"
	"crypto"
	"crypto/ecdh"
	"crypto/ecdsa"
	"crypto/elliptic"
	"crypto/rsa"
	"crypto/x509"
	"encoding/base64"
	"encoding/json"
	"encoding/pem"
	"math/big"
	"strings"

	sserr "github.com/StricklySoft/stricklysoft-security/pkg/errors"
)

// rawKey is one entry of a JWKS "keys" array.
type rawKey struct {
	Kty   string   `json:"kty"`
	Alg   string   `json:"alg"`
	Kid   string   `json:"kid"`
	Use   string   `json:"use"`
	N     string   `json:"n"`
	E     string   `json:"e"`
	Crv   string   `json:"crv"`
	X     string   `json:"x"`
	Y     string   `json:"y"`
	Value string   `json:"value"`
	X5c   []string `json:"x5c"`
}

type document struct {
	Keys []json.RawMessage `json:"keys"`
}

// ParseOption configures ParseSet.
type ParseOption func(*parseOptions)

type parseOptions struct {
	onSkip func(index int, err error)
}

// WithSkipHandler registers fn to be told about every entry that was
// skipped and why.
func WithSkipHandler(fn func(index int, err error)) ParseOption {
	return func(o *parseOptions) { o.onSkip = fn }
}

// ParseSet parses a JWKS document. Entries whose key material is unusable
// or whose algorithm is not allow-listed are skipped; the document only
// fails as a whole when it is not JSON or has no "keys" array.
func ParseSet(doc []byte, opts ...ParseOption) (*KeySet, error) {
	var o parseOptions
	for _, opt := range opts {
		opt(&o)
	}

	var d document
	dec := json.NewDecoder(bytes.NewReader(doc))
	if err := dec.Decode(&d); err != nil {
		return nil, sserr.Wrap(err, sserr.CodeKeyMaterial, "jwk: key set document is not valid JSON")
	}
	if d.Keys == nil {
		return nil, sserr.New(sserr.CodeKeyMaterial, "jwk: key set document has no \"keys\" array")
	}

	set := NewKeySet()
	for i, msg := range d.Keys {
		k, err := parseEntry(msg)
		if err != nil {
			if o.onSkip != nil {
				o.onSkip(i, err)
			}
			continue
		}
		set.Put(k)
	}
	return set, nil
}

func parseEntry(msg json.RawMessage) (*Key, error) {
	var rk rawKey
	if err := json.Unmarshal(msg, &rk); err != nil {
		return nil, sserr.Wrap(err, sserr.CodeKeyMaterial, "jwk: key entry is not a JSON object")
	}
	if rk.Use != "" && rk.Use != "sig" {
		return nil, sserr.Newf(sserr.CodeKeyMaterial, "jwk: key %q is for %q, not signing", rk.Kid, rk.Use)
	}

	pub, err := rk.publicKey()
	if err != nil {
		return nil, err
	}
	return NewKey(rk.Alg, rk.Kid, pub)
}

func (rk *rawKey) publicKey() (crypto.PublicKey, error) {
	switch {
	case rk.Value != "":
		return ParsePublicKeyPEM(rk.Value)
	case len(rk.X5c) > 0:
		der, err := base64.StdEncoding.DecodeString(rk.X5c[0])
		if err != nil {
			return nil, sserr.Wrap(err, sserr.CodeKeyMaterial, "jwk: x5c is not base64")
		}
		c, err := x509.ParseCertificate(der)
		if err != nil {
			return nil, sserr.Wrap(err, sserr.CodeKeyMaterial, "jwk: x5c is not a certificate")
		}
		return c.PublicKey, nil
	}

	switch rk.Kty {
	case TypeRSA:
		return rsaKey(rk.N, rk.E)
	case TypeEC:
		return ecKey(rk.Crv, rk.X, rk.Y)
	default:
		return nil, sserr.Newf(sserr.CodeKeyMaterial, "jwk: unsupported key type %q", rk.Kty)
	}
}

func rsaKey(n, e string) (*rsa.PublicKey, error) {
	nb, err := base64.RawURLEncoding.DecodeString(strings.TrimRight(n, "="))
	if err != nil || len(nb) == 0 {
		return nil, sserr.New(sserr.CodeKeyMaterial, "jwk: RSA modulus is missing or not base64url")
	}
	eb, err := base64.RawURLEncoding.DecodeString(strings.TrimRight(e, "="))
	if err != nil || len(eb) == 0 || len(eb) > 4 {
		return nil, sserr.New(sserr.CodeKeyMaterial, "jwk: RSA exponent is missing or invalid")
	}
	exp := int(new(big.Int).SetBytes(eb).Int64())
	if exp < 3 || exp%2 == 0 {
		return nil, sserr.Newf(sserr.CodeKeyMaterial, "jwk: RSA exponent %d is invalid", exp)
	}
	return &rsa.PublicKey{N: new(big.Int).SetBytes(nb), E: exp}, nil
}

func ecKey(crv, x, y string) (*ecdsa.PublicKey, error) {
	var (
		curve elliptic.Curve
		ec    ecdh.Curve
	)
	switch crv {
	case "P-256":
		curve, ec = elliptic.P256(), ecdh.P256()
	case "P-384":
		curve, ec = elliptic.P384(), ecdh.P384()
	case "P-521":
		curve, ec = elliptic.P521(), ecdh.P521()
	default:
		return nil, sserr.Newf(sserr.CodeKeyMaterial, "jwk: unsupported curve %q", crv)
	}

	size := (curve.Params().BitSize + 7) / 8
	xb, errX := base64.RawURLEncoding.DecodeString(x)
	yb, errY := base64.RawURLEncoding.DecodeString(y)
	if errX != nil || errY != nil || len(xb) > size || len(yb) > size || len(xb) == 0 || len(yb) == 0 {
		return nil, sserr.New(sserr.CodeKeyMaterial, "jwk: EC coordinates are missing or invalid")
	}

	// Uncompressed point encoding; ecdh rejects points not on the curve.
	point := make([]byte, 1+2*size)
	point[0] = 4
	copy(point[1+size-len(xb):1+size], xb)
	copy(point[1+2*size-len(yb):], yb)
	if _, err := ec.NewPublicKey(point); err != nil {
		return nil, sserr.Wrap(err, sserr.CodeKeyMaterial, "jwk: EC point is not on the curve")
	}

	return &ecdsa.PublicKey{
		Curve: curve,
		X:     new(big.Int).SetBytes(xb),
		Y:     new(big.Int).SetBytes(yb),
	}, nil
}

// ParsePublicKeyPEM parses a public key from PEM (PUBLIC KEY, RSA PUBLIC
// KEY or CERTIFICATE blocks) or from bare base64 DER. Literal "\n"
// escape sequences, as found in environment-provided keys, are tolerated.
func ParsePublicKeyPEM(s string) (crypto.PublicKey, error) {
	s = strings.ReplaceAll(strings.TrimSpace(s), `\n`, "\n")

	if block, _ := pem.Decode([]byte(s)); block != nil {
		return parseDER(block.Type, block.Bytes)
	}

	der, err := base64.StdEncoding.DecodeString(strings.Join(strings.Fields(s), ""))
	if err != nil {
		return nil, sserr.Wrap(err, sserr.CodeKeyMaterial, "jwk: key is neither PEM nor base64")
	}
	return parseDER("PUBLIC KEY", der)
}

func parseDER(blockType string, der []byte) (crypto.PublicKey, error) {
	switch blockType {
	case "RSA PUBLIC KEY":
		k, err := x509.ParsePKCS1PublicKey(der)
		if err != nil {
			return nil, sserr.Wrap(err, sserr.CodeKeyMaterial, "jwk: invalid PKCS#1 public key")
		}
		return k, nil
	case "CERTIFICATE":
		c, err := x509.ParseCertificate(der)
		if err != nil {
			return nil, sserr.Wrap(err, sserr.CodeKeyMaterial, "jwk: invalid certificate")
		}
		return c.PublicKey, nil
	default:
		k, err := x509.ParsePKIXPublicKey(der)
		if err != nil {
			return nil, sserr.Wrap(err, sserr.CodeKeyMaterial, "jwk: invalid PKIX public key")
		}
		return k, nil
	}
}
