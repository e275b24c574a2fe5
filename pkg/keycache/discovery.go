package keycache

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/url"
	"strings"

	sserr "github.com/StricklySoft/stricklysoft-security/pkg/errors"
)

// DiscoveryPath is appended to an issuer to locate its OpenID provider
// metadata.
const DiscoveryPath = "/.well-known/openid-configuration"

type discoveryDocument struct {
	Issuer  string `json:"issuer"`
	JWKSURI string `json:"jwks_uri"`
}

// JWKSURI returns the jwks_uri published in issuer's OpenID provider
// metadata. Results are cached for TTL. Only call this for issuers that
// already passed issuer validation.
func (c *Cache) JWKSURI(ctx context.Context, issuer string) (string, error) {
	u, err := url.Parse(issuer)
	if err != nil || (u.Scheme != "https" && u.Scheme != "http") || u.Host == "" {
		return "", sserr.Newf(sserr.CodeKeyFetch, "keycache: issuer %q is not an http(s) URL", issuer)
	}
	if uri, ok := c.discovered.Get(issuer); ok {
		return uri, nil
	}

	ch := c.group.DoChan("discovery|"+issuer, func() (any, error) {
		fctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), c.cfg.FetchTimeout)
		defer cancel()
		uri, err := c.discover(fctx, strings.TrimSuffix(issuer, "/")+DiscoveryPath)
		if err != nil {
			return nil, err
		}
		c.discovered.Add(issuer, uri)
		return uri, nil
	})
	select {
	case res := <-ch:
		if res.Err != nil {
			return "", res.Err
		}
		return res.Val.(string), nil
	case <-ctx.Done():
		return "", sserr.Wrap(ctx.Err(), sserr.CodeKeyFetch, "keycache: gave up waiting for discovery")
	}
}

func (c *Cache) discover(ctx context.Context, metadataURL string) (string, error) {
	ctx, span := c.tracer.Start(ctx, "keycache.Discover")
	defer span.End()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, metadataURL, nil)
	if err != nil {
		return "", sserr.Wrap(err, sserr.CodeKeyFetch, "keycache: invalid discovery URL")
	}
	req.Header.Set("Accept", "application/json")

	resp, err := c.client.Do(req)
	if err != nil {
		span.RecordError(err)
		return "", sserr.Wrap(err, sserr.CodeKeyFetch, "keycache: discovery request failed")
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode != http.StatusOK {
		return "", sserr.Newf(sserr.CodeKeyFetch, "keycache: discovery endpoint answered %d", resp.StatusCode)
	}

	var doc discoveryDocument
	if err := json.NewDecoder(io.LimitReader(resp.Body, c.cfg.MaxDocumentBytes)).Decode(&doc); err != nil {
		return "", sserr.Wrap(err, sserr.CodeKeyFetch, "keycache: malformed discovery document")
	}
	u, err := url.Parse(doc.JWKSURI)
	if doc.JWKSURI == "" || err != nil || (u.Scheme != "https" && u.Scheme != "http") {
		return "", sserr.New(sserr.CodeKeyFetch, "keycache: discovery document has no usable jwks_uri")
	}
	return doc.JWKSURI, nil
}
