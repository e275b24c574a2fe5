// Package cert parses client certificates presented with a request and
// computes the values a token's confirmation claim is matched against.
//
// Certificates arrive as PEM, as bare base64 DER, or inside an
// x-forwarded-client-cert header set by a TLS-terminating proxy:
//
//	c, err := cert.Parse(r.Header.Get(cert.ForwardedClientCertHeader))
//	if err == nil && c.Thumbprint() == tok.CertificateThumbprint() { ... }
package cert

import (
	"crypto/sha256"
	"crypto/x509"
	"encoding/asn1"
	"encoding/base64"
	"encoding/pem"
	"strings"

	sserr "github.com/StricklySoft/stricklysoft-security/pkg/errors"
)

// Certificate is a parsed X.509 certificate with its SHA-256 thumbprint.
type Certificate struct {
	x509       *x509.Certificate
	thumbprint string
}

// FromX509 wraps an already parsed certificate, for example a TLS peer
// certificate. It returns nil for nil.
func FromX509(c *x509.Certificate) *Certificate {
	if c == nil {
		return nil
	}
	sum := sha256.Sum256(c.Raw)
	return &Certificate{x509: c, thumbprint: base64.RawURLEncoding.EncodeToString(sum[:])}
}

// Parse reads a certificate from PEM, bare base64 DER, or an
// x-forwarded-client-cert value. For a forwarded value the first Cert
// element that parses wins. Escaped "\n" sequences are tolerated.
func Parse(raw string) (*Certificate, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return nil, sserr.New(sserr.CodeCertificate, "cert: no certificate")
	}
	if isForwarded(raw) {
		return parseForwarded(raw)
	}
	return parseEncoded(raw)
}

// X509 returns the underlying certificate.
func (c *Certificate) X509() *x509.Certificate { return c.x509 }

// Thumbprint returns base64url(SHA-256(DER)) without padding.
func (c *Certificate) Thumbprint() string { return c.thumbprint }

// SubjectDN decomposes the subject distinguished name. Repeated
// attributes are joined with "," in the order they appear.
func (c *Certificate) SubjectDN() map[string]string {
	return dnMap(c.x509.Subject.Names)
}

// IssuerDN decomposes the issuer distinguished name like SubjectDN.
func (c *Certificate) IssuerDN() map[string]string {
	return dnMap(c.x509.Issuer.Names)
}

// NormalizeThumbprint strips padding and any literal or escaped line
// breaks so that thumbprints from different encoders compare equal.
func NormalizeThumbprint(s string) string {
	s = strings.NewReplacer(`\r`, "", `\n`, "", "\r", "", "\n", "").Replace(s)
	return strings.TrimRight(strings.TrimSpace(s), "=")
}

func parseEncoded(s string) (*Certificate, error) {
	s = strings.ReplaceAll(s, `\n`, "\n")

	var der []byte
	if strings.Contains(s, "-----BEGIN") {
		rest := []byte(s)
		for {
			var block *pem.Block
			block, rest = pem.Decode(rest)
			if block == nil {
				return nil, sserr.New(sserr.CodeCertificate, "cert: no CERTIFICATE block in PEM input")
			}
			if block.Type == "CERTIFICATE" {
				der = block.Bytes
				break
			}
		}
	} else {
		compact := strings.Join(strings.Fields(s), "")
		var err error
		if der, err = decodeBase64(compact); err != nil {
			return nil, sserr.Wrap(err, sserr.CodeCertificate, "cert: certificate is neither PEM nor base64")
		}
	}

	c, err := x509.ParseCertificate(der)
	if err != nil {
		return nil, sserr.Wrap(err, sserr.CodeCertificate, "cert: invalid X.509 certificate")
	}
	return FromX509(c), nil
}

func decodeBase64(s string) ([]byte, error) {
	var firstErr error
	for _, enc := range []*base64.Encoding{base64.StdEncoding, base64.RawStdEncoding, base64.URLEncoding, base64.RawURLEncoding} {
		b, err := enc.DecodeString(s)
		if err == nil {
			return b, nil
		}
		if firstErr == nil {
			firstErr = err
		}
	}
	return nil, firstErr
}

var attributeNames = map[string]string{
	"2.5.4.3":                    "CN",
	"2.5.4.5":                    "SERIALNUMBER",
	"2.5.4.6":                    "C",
	"2.5.4.7":                    "L",
	"2.5.4.8":                    "ST",
	"2.5.4.9":                    "STREET",
	"2.5.4.10":                   "O",
	"2.5.4.11":                   "OU",
	"2.5.4.17":                   "POSTALCODE",
	"0.9.2342.19200300.100.1.1":  "UID",
	"0.9.2342.19200300.100.1.25": "DC",
	"1.2.840.113549.1.9.1":       "EMAILADDRESS",
}

func attributeName(oid asn1.ObjectIdentifier) string {
	if name, ok := attributeNames[oid.String()]; ok {
		return name
	}
	return oid.String()
}
