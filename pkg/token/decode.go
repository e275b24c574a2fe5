// Package token decodes compact JSON Web Tokens into an immutable,
// read-only claim view.
//
// Decoding establishes structure only. A token that decodes is not
// trusted: signature, lifetime, issuer and audience are checked by the
// validation package.
//
// # Usage
//
//	tok, err := token.Decode(raw)
//	if err != nil {
//	    return err // TOKEN_001
//	}
//	scopes := token.NewAccessToken(tok, "my-app").Scopes()
package token

import (
	"bytes"
	"encoding/base64"
	"encoding/json"
	"strings"

	sserr "github.com/StricklySoft/stricklysoft-security/pkg/errors"
)

// Decode splits raw into header, payload and signature segments and
// decodes the first two as base64url JSON objects. The signature
// segment may be empty; such a token is representable but never passes
// signature validation.
func Decode(raw string) (*Token, error) {
	if strings.Count(raw, ".") != 2 {
		return nil, sserr.Malformed("token: expected three dot-separated segments")
	}
	first, last := strings.IndexByte(raw, '.'), strings.LastIndexByte(raw, '.')
	headerSeg, payloadSeg, sigSeg := raw[:first], raw[first+1:last], raw[last+1:]
	if headerSeg == "" || payloadSeg == "" {
		return nil, sserr.Malformed("token: header and payload segments must not be empty")
	}

	header, err := decodeSegment(headerSeg)
	if err != nil {
		return nil, sserr.Wrap(err, sserr.CodeTokenMalformed, "token: invalid header segment")
	}
	claims, err := decodeSegment(payloadSeg)
	if err != nil {
		return nil, sserr.Wrap(err, sserr.CodeTokenMalformed, "token: invalid payload segment")
	}

	var sig []byte
	if sigSeg != "" {
		// An undecodable signature is kept as nil so that the signature
		// validator reports it instead of the decoder.
		sig, _ = decodeBase64URL(sigSeg)
	}

	return &Token{
		raw:       raw,
		header:    header,
		claims:    claims,
		signature: sig,
		signedLen: last,
	}, nil
}

func decodeSegment(seg string) (map[string]any, error) {
	b, err := decodeBase64URL(seg)
	if err != nil {
		return nil, err
	}
	dec := json.NewDecoder(bytes.NewReader(b))
	dec.UseNumber()

	var m map[string]any
	if err := dec.Decode(&m); err != nil {
		return nil, err
	}
	if m == nil {
		return nil, sserr.Malformed("token: segment is not a JSON object")
	}
	if dec.More() {
		return nil, sserr.Malformed("token: trailing data after JSON object")
	}
	return m, nil
}

// decodeBase64URL accepts both padded and unpadded base64url.
func decodeBase64URL(seg string) ([]byte, error) {
	return base64.RawURLEncoding.DecodeString(strings.TrimRight(seg, "="))
}
