package keycache

import (
	"context"
	"io"
	"net/http"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	sserr "github.com/StricklySoft/stricklysoft-security/pkg/errors"
	"github.com/StricklySoft/stricklysoft-security/pkg/jwk"
)

// fetch performs one GET of endpoint. Non-2xx answers, oversized bodies
// and documents that are not a key set are failures.
func (c *Cache) fetch(ctx context.Context, endpoint, tenant string) (doc []byte, set *jwk.KeySet, err error) {
	ctx, span := c.tracer.Start(ctx, "keycache.Fetch", trace.WithSpanKind(trace.SpanKindClient))
	span.SetAttributes(attribute.String("http.url", endpoint))
	if tenant != "" {
		span.SetAttributes(attribute.String("keycache.tenant", tenant))
	}
	start := time.Now()
	defer func() {
		fetchDuration.Observe(time.Since(start).Seconds())
		outcome := "success"
		if err != nil {
			outcome = "failure"
			span.RecordError(err)
			span.SetStatus(codes.Error, err.Error())
			c.logger.Warn().Err(err).Str("endpoint", endpoint).Str("tenant", tenant).Msg("key set fetch failed")
		} else {
			span.SetStatus(codes.Ok, "")
		}
		fetchesTotal.WithLabelValues("http", outcome).Inc()
		span.End()
	}()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return nil, nil, sserr.Wrap(err, sserr.CodeKeyFetch, "keycache: invalid key endpoint")
	}
	req.Header.Set("Accept", "application/json")
	if tenant != "" {
		req.Header.Set(TenantHeader, tenant)
	}

	resp, err := c.client.Do(req)
	if err != nil {
		return nil, nil, sserr.Wrap(err, sserr.CodeKeyFetch, "keycache: key set request failed")
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return nil, nil, sserr.Newf(sserr.CodeKeyFetch, "keycache: key endpoint answered %d", resp.StatusCode).
			WithDetail("status", resp.StatusCode)
	}

	doc, err = io.ReadAll(io.LimitReader(resp.Body, c.cfg.MaxDocumentBytes+1))
	if err != nil {
		return nil, nil, sserr.Wrap(err, sserr.CodeKeyFetch, "keycache: cannot read key set")
	}
	if int64(len(doc)) > c.cfg.MaxDocumentBytes {
		return nil, nil, sserr.Newf(sserr.CodeKeyFetch, "keycache: key set exceeds %d bytes", c.cfg.MaxDocumentBytes)
	}

	set, err = jwk.ParseSet(doc, jwk.WithSkipHandler(func(i int, err error) {
		c.logger.Debug().Err(err).Int("index", i).Str("endpoint", endpoint).Msg("skipping unusable key")
	}))
	if err != nil {
		return nil, nil, sserr.Wrap(err, sserr.CodeKeyFetch, "keycache: malformed key set")
	}
	return doc, set, nil
}
