package cert

import (
	"crypto/x509/pkix"
	"fmt"
	"net/url"
	"strconv"
	"strings"

	sserr "github.com/StricklySoft/stricklysoft-security/pkg/errors"
)

// ForwardedClientCertHeader is set by Envoy-style proxies that terminate
// mutual TLS.
const ForwardedClientCertHeader = "X-Forwarded-Client-Cert"

// isForwarded reports whether s looks like an XFCC value rather than a
// bare certificate.
func isForwarded(s string) bool {
	if strings.Contains(s, "-----BEGIN") && !strings.Contains(strings.ToLower(s), "cert=") {
		return false
	}
	for _, el := range splitUnquoted(s, ',') {
		for _, pair := range splitUnquoted(el, ';') {
			if k, _, ok := strings.Cut(pair, "="); ok && strings.EqualFold(strings.TrimSpace(k), "cert") {
				return true
			}
		}
	}
	return false
}

// parseForwarded scans the proxy hops left to right and returns the
// first Cert element that holds a usable certificate.
func parseForwarded(s string) (*Certificate, error) {
	var lastErr error
	for _, el := range splitUnquoted(s, ',') {
		for _, pair := range splitUnquoted(el, ';') {
			k, v, ok := strings.Cut(pair, "=")
			if !ok || !strings.EqualFold(strings.TrimSpace(k), "cert") {
				continue
			}
			v = strings.TrimSpace(v)
			if uq, err := strconv.Unquote(v); err == nil {
				v = uq
			} else {
				v = strings.Trim(v, `"`)
			}
			if dec, err := url.PathUnescape(v); err == nil {
				v = dec
			}
			c, err := parseEncoded(v)
			if err == nil {
				return c, nil
			}
			lastErr = err
		}
	}
	if lastErr == nil {
		return nil, sserr.New(sserr.CodeCertificate, "cert: forwarded header has no Cert element")
	}
	return nil, sserr.Wrap(lastErr, sserr.CodeCertificate, "cert: no forwarded certificate could be parsed")
}

// splitUnquoted splits s on sep, ignoring separators inside double
// quotes. Backslash escapes the next character inside quotes.
func splitUnquoted(s string, sep byte) []string {
	var (
		parts   []string
		start   int
		quoted  bool
		escaped bool
	)
	for i := 0; i < len(s); i++ {
		switch c := s[i]; {
		case escaped:
			escaped = false
		case c == '\\' && quoted:
			escaped = true
		case c == '"':
			quoted = !quoted
		case c == sep && !quoted:
			parts = append(parts, s[start:i])
			start = i + 1
		}
	}
	return append(parts, s[start:])
}

func dnMap(names []pkix.AttributeTypeAndValue) map[string]string {
	m := make(map[string]string, len(names))
	for _, atv := range names {
		key := attributeName(atv.Type)
		val := fmt.Sprint(atv.Value)
		if prev, ok := m[key]; ok {
			m[key] = prev + "," + val
			continue
		}
		m[key] = val
	}
	return m
}
