// Package keycache retrieves JWKS documents and caches the parsed key
// sets per (tenant, endpoint).
//
// Concurrent misses for the same entry collapse into one HTTP request.
// The request runs detached from any single caller so that a cancelled
// caller returns immediately while the fetch completes and fills the
// cache for the others. A failed fetch is returned to every waiter, is
// never retried inside the cache, and is remembered for FailureTTL.
//
// # Usage
//
//	cache, err := keycache.New(keycache.DefaultConfig())
//	key, err := cache.PublicKey(ctx, "RS256", "k1", "https://auth.example.com/token_keys", tenant)
package keycache

import (
	"context"
	"net/http"
	"time"

	"github.com/hashicorp/golang-lru/v2/expirable"
	"github.com/rs/zerolog"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/trace"
	"golang.org/x/sync/singleflight"

	sserr "github.com/StricklySoft/stricklysoft-security/pkg/errors"
	"github.com/StricklySoft/stricklysoft-security/pkg/jwk"
	"github.com/StricklySoft/stricklysoft-security/pkg/logging"
)

const tracerName = "github.com/StricklySoft/stricklysoft-security/pkg/keycache"

// TenantHeader carries the tenant scope on JWKS requests.
const TenantHeader = "x-app_tid"

// HTTPClient is satisfied by *http.Client.
type HTTPClient interface {
	Do(req *http.Request) (*http.Response, error)
}

// entry is replaced as a whole, never mutated, so readers always see a
// complete key set.
type entry struct {
	set       *jwk.KeySet
	err       error
	fetchedAt time.Time

	// refreshedAt is the last unknown-kid refresh attempt that failed.
	refreshedAt time.Time
}

// lastAttempt is when the endpoint was last asked for this entry.
func (e *entry) lastAttempt() time.Time {
	if e.refreshedAt.After(e.fetchedAt) {
		return e.refreshedAt
	}
	return e.fetchedAt
}

// Cache is a concurrency-safe key set cache.
type Cache struct {
	cfg        Config
	entries    *expirable.LRU[string, *entry]
	discovered *expirable.LRU[string, string]
	group      singleflight.Group
	client     HTTPClient
	store      Store
	now        func() time.Time
	logger     zerolog.Logger
	tracer     trace.Tracer
}

// Option configures a Cache.
type Option func(*Cache)

// WithHTTPClient replaces the default HTTP client.
func WithHTTPClient(c HTTPClient) Option {
	return func(k *Cache) { k.client = c }
}

// WithStore adds a shared second-level store.
func WithStore(s Store) Option {
	return func(k *Cache) { k.store = s }
}

// WithClock replaces time.Now for freshness checks.
func WithClock(now func() time.Time) Option {
	return func(k *Cache) { k.now = now }
}

// WithLogger replaces the component logger.
func WithLogger(l zerolog.Logger) Option {
	return func(k *Cache) { k.logger = l }
}

// WithTracer replaces the global tracer.
func WithTracer(t trace.Tracer) Option {
	return func(k *Cache) { k.tracer = t }
}

// New validates cfg and returns an empty cache.
func New(cfg Config, opts ...Option) (*Cache, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	c := &Cache{
		cfg:    cfg,
		client: &http.Client{},
		now:    time.Now,
		logger: logging.Component("keycache"),
		tracer: otel.Tracer(tracerName),
	}
	for _, opt := range opts {
		opt(c)
	}
	// The LRU's own expiry only reclaims memory; freshness is decided
	// against c.now so it can be tested.
	c.entries = expirable.NewLRU[string, *entry](cfg.Size, nil, cfg.TTL+cfg.FailureTTL)
	c.discovered = expirable.NewLRU[string, string](cfg.Size, nil, cfg.TTL)
	return c, nil
}

func cacheKey(endpoint, tenant string) string {
	return tenant + "|" + endpoint
}

// KeySet returns the key set for (endpoint, tenant), fetching it when the
// cached entry is absent or stale.
func (c *Cache) KeySet(ctx context.Context, endpoint, tenant string) (*jwk.KeySet, error) {
	e, err := c.lookup(ctx, endpoint, tenant, nil)
	if err != nil {
		return nil, err
	}
	return e.set, nil
}

// PublicKey resolves the key for a token header. When the cached set has
// no key for kid and the entry is older than RefreshCooldown, the set is
// fetched once more to pick up rotated keys.
func (c *Cache) PublicKey(ctx context.Context, alg, kid, endpoint, tenant string) (*jwk.Key, error) {
	if !jwk.IsSupportedAlgorithm(alg) {
		_, err := jwk.SigningMethod(alg)
		return nil, err
	}

	e, err := c.lookup(ctx, endpoint, tenant, nil)
	if err != nil {
		return nil, err
	}
	key, err := e.set.Resolve(alg, kid)
	if err == nil {
		return key, nil
	}

	if kid == "" || c.now().Sub(e.lastAttempt()) < c.cfg.RefreshCooldown {
		return nil, err
	}
	refreshesTotal.Inc()
	c.logger.Debug().Str("endpoint", endpoint).Str("kid", kid).Msg("unknown key id, refreshing key set")

	refreshed, rerr := c.lookup(ctx, endpoint, tenant, e)
	if rerr != nil {
		return nil, rerr
	}
	return refreshed.set.Resolve(alg, kid)
}

// Invalidate drops the entry for (endpoint, tenant) from this process and
// from the shared store.
func (c *Cache) Invalidate(ctx context.Context, endpoint, tenant string) {
	key := cacheKey(endpoint, tenant)
	c.entries.Remove(key)
	if c.store != nil {
		if err := c.store.Delete(ctx, key); err != nil {
			c.logger.Warn().Err(err).Str("endpoint", endpoint).Msg("shared store delete failed")
		}
	}
}

// Purge drops every local entry and discovered endpoint.
func (c *Cache) Purge() {
	c.entries.Purge()
	c.discovered.Purge()
}

// Len returns the number of local entries, including remembered failures.
func (c *Cache) Len() int {
	return c.entries.Len()
}

func (c *Cache) fresh(e *entry) bool {
	ttl := c.cfg.TTL
	if e.err != nil {
		ttl = c.cfg.FailureTTL
	}
	return c.now().Sub(e.fetchedAt) < ttl
}

// lookup returns a fresh entry. A non-nil stale entry forces a refetch
// that bypasses the shared store; if that refetch fails, stale is kept
// and only its refresh time advances, unless another entry replaced it
// in the meantime.
func (c *Cache) lookup(ctx context.Context, endpoint, tenant string, stale *entry) (*entry, error) {
	if endpoint == "" {
		return nil, sserr.New(sserr.CodeKeyFetch, "keycache: no key endpoint")
	}
	key := cacheKey(endpoint, tenant)
	refresh := stale != nil

	if !refresh {
		if e, ok := c.entries.Get(key); ok && c.fresh(e) {
			if e.err != nil {
				lookupsTotal.WithLabelValues("failure_cached").Inc()
				return nil, e.err
			}
			lookupsTotal.WithLabelValues("hit").Inc()
			return e, nil
		}
		lookupsTotal.WithLabelValues("miss").Inc()
	}

	flightKey := key
	if refresh {
		flightKey = "refresh|" + key
	}
	ch := c.group.DoChan(flightKey, func() (any, error) {
		fctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), c.cfg.FetchTimeout)
		defer cancel()
		return c.load(fctx, key, endpoint, tenant, stale)
	})

	select {
	case res := <-ch:
		if res.Err != nil {
			return nil, res.Err
		}
		return res.Val.(*entry), nil
	case <-ctx.Done():
		return nil, sserr.Wrap(ctx.Err(), sserr.CodeKeyFetch, "keycache: gave up waiting for key set")
	}
}

// load fills the entry for key, from the shared store unless refreshing
// and otherwise over HTTP.
func (c *Cache) load(ctx context.Context, key, endpoint, tenant string, stale *entry) (*entry, error) {
	if c.store != nil && stale == nil {
		if e := c.loadFromStore(ctx, key, endpoint); e != nil {
			return e, nil
		}
	}

	doc, set, err := c.fetch(ctx, endpoint, tenant)
	now := c.now()
	if err != nil {
		switch {
		case stale != nil:
			// Leave entries stored while the refresh was in flight alone.
			if cur, ok := c.entries.Peek(key); ok && cur == stale {
				c.entries.Add(key, &entry{set: stale.set, fetchedAt: stale.fetchedAt, refreshedAt: now})
			}
		case c.cfg.FailureTTL > 0:
			c.entries.Add(key, &entry{err: err, fetchedAt: now})
		}
		return nil, err
	}

	e := &entry{set: set, fetchedAt: now}
	c.entries.Add(key, e)
	if c.store != nil {
		if serr := c.store.Set(ctx, key, doc, c.cfg.TTL); serr != nil {
			c.logger.Warn().Err(serr).Str("endpoint", endpoint).Msg("shared store write failed")
		}
	}
	return e, nil
}

func (c *Cache) loadFromStore(ctx context.Context, key, endpoint string) *entry {
	doc, ok, err := c.store.Get(ctx, key)
	if err != nil {
		fetchesTotal.WithLabelValues("store", "failure").Inc()
		c.logger.Warn().Err(err).Str("endpoint", endpoint).Msg("shared store read failed")
		return nil
	}
	if !ok {
		return nil
	}
	set, err := jwk.ParseSet(doc)
	if err != nil {
		fetchesTotal.WithLabelValues("store", "failure").Inc()
		c.logger.Warn().Err(err).Str("endpoint", endpoint).Msg("shared store holds an unusable key set")
		return nil
	}
	fetchesTotal.WithLabelValues("store", "success").Inc()
	e := &entry{set: set, fetchedAt: c.now()}
	c.entries.Add(key, e)
	return e
}
