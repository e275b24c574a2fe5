package validation

import (
	"net/url"
	"time"

	"github.com/rs/zerolog"

	sserr "github.com/StricklySoft/stricklysoft-security/pkg/errors"
	"github.com/StricklySoft/stricklysoft-security/pkg/jwk"
	"github.com/StricklySoft/stricklysoft-security/pkg/keycache"
	"github.com/StricklySoft/stricklysoft-security/pkg/logging"
)

// Config describes a validator chain. It loads with pkg/config under
// the JWT prefix, for example JWT_ISSUERS and JWT_KEYCACHE_TTL.
type Config struct {
	// Issuers are trusted iss values, compared exactly.
	Issuers []string `json:"issuers" yaml:"issuers" env:"ISSUERS"`

	// IssuerDomains trusts issuer URLs on these domains. Used when
	// Issuers is empty.
	IssuerDomains []string `json:"issuer_domains" yaml:"issuer_domains" env:"ISSUER_DOMAINS"`

	// Audiences are the client ids a token must be issued for.
	Audiences []string `json:"audiences" yaml:"audiences" env:"AUDIENCES" required:"true"`

	// ClockSkew is the leeway applied to exp and nbf.
	ClockSkew time.Duration `json:"clock_skew" yaml:"clock_skew" env:"CLOCK_SKEW" envDefault:"1m"`

	// JWKSURL is the key endpoint used when no other source applies.
	JWKSURL string `json:"jwks_url" yaml:"jwks_url" env:"JWKS_URL"`

	// Discovery looks the key endpoint up in the issuer's OpenID provider
	// metadata.
	Discovery bool `json:"discovery" yaml:"discovery" env:"DISCOVERY"`

	// TrustedJKUDomain enables the jku header as key endpoint, restricted
	// to this domain.
	TrustedJKUDomain string `json:"trusted_jku_domain" yaml:"trusted_jku_domain" env:"JKU_DOMAIN"`

	// RequireTenant rejects tokens without app_tid or zid.
	RequireTenant bool `json:"require_tenant" yaml:"require_tenant" env:"REQUIRE_TENANT"`

	// RequireCertificate rejects certificate-bound tokens presented
	// without a client certificate.
	RequireCertificate bool `json:"require_certificate" yaml:"require_certificate" env:"REQUIRE_CERTIFICATE"`

	// VerificationKey is a PEM public key used when key retrieval fails,
	// for RS256 family tokens only.
	VerificationKey string `json:"verification_key" yaml:"verification_key" env:"VERIFICATION_KEY"`

	// FailFast stops at the first violation.
	FailFast bool `json:"fail_fast" yaml:"fail_fast" env:"FAIL_FAST"`

	// KeyCache tunes key retrieval.
	KeyCache keycache.Config `json:"keycache" yaml:"keycache" env:"KEYCACHE"`
}

// DefaultConfig returns a Config with defaults and no trust anchors.
func DefaultConfig() Config {
	return Config{
		ClockSkew: DefaultClockSkew,
		KeyCache:  keycache.DefaultConfig(),
	}
}

// Validate rejects incomplete or contradictory settings.
func (c *Config) Validate() error {
	if len(c.Audiences) == 0 {
		return sserr.New(sserr.CodeConfigurationRequired, "validation: audiences are required")
	}
	if c.ClockSkew < 0 {
		return sserr.Newf(sserr.CodeConfiguration, "validation: clock_skew must not be negative, got %s", c.ClockSkew)
	}
	if c.JWKSURL == "" && !c.Discovery && c.TrustedJKUDomain == "" {
		return sserr.New(sserr.CodeConfigurationRequired, "validation: one of jwks_url, discovery or trusted_jku_domain is required")
	}
	if c.JWKSURL != "" {
		u, err := url.Parse(c.JWKSURL)
		if err != nil || (u.Scheme != "https" && u.Scheme != "http") || u.Host == "" {
			return sserr.Newf(sserr.CodeConfiguration, "validation: jwks_url %q is not an http(s) URL", c.JWKSURL)
		}
	}
	if c.VerificationKey != "" {
		if _, err := jwk.ParsePublicKeyPEM(c.VerificationKey); err != nil {
			return sserr.Wrap(err, sserr.CodeConfiguration, "validation: verification_key is unusable")
		}
	}
	return c.KeyCache.Validate()
}

// Chain is the validator built from a Config.
type Chain struct {
	*Combining
	cache *keycache.Cache
}

// KeyCache returns the cache the chain fetches keys through, or nil when
// a key source was injected.
func (c *Chain) KeyCache() *keycache.Cache { return c.cache }

// ChainOption customizes NewChain.
type ChainOption func(*chainOptions)

type chainOptions struct {
	policy      IssuerPolicy
	keys        KeySource
	cacheOpts   []keycache.Option
	now         func() time.Time
	listeners   []Listener
	noListeners bool
	logger      zerolog.Logger
}

// WithIssuerPolicy replaces the policy derived from Issuers and
// IssuerDomains.
func WithIssuerPolicy(p IssuerPolicy) ChainOption {
	return func(o *chainOptions) { o.policy = p }
}

// WithKeySource replaces the key cache built from Config.KeyCache.
func WithKeySource(k KeySource) ChainOption {
	return func(o *chainOptions) { o.keys = k }
}

// WithKeyCacheOptions passes options to the key cache built from
// Config.KeyCache, for example a shared store.
func WithKeyCacheOptions(opts ...keycache.Option) ChainOption {
	return func(o *chainOptions) { o.cacheOpts = append(o.cacheOpts, opts...) }
}

// WithChainClock replaces time.Now for exp and nbf checks.
func WithChainClock(now func() time.Time) ChainOption {
	return func(o *chainOptions) { o.now = now }
}

// WithChainListeners replaces the default log and metrics listeners.
// Calling it without listeners disables notification.
func WithChainListeners(listeners ...Listener) ChainOption {
	return func(o *chainOptions) {
		o.listeners = listeners
		o.noListeners = len(listeners) == 0
	}
}

// NewChain validates cfg and builds, in order: expiration, not-before,
// issuer, audience, jku (when a trusted jku domain is set), signature
// and certificate binding.
func NewChain(cfg Config, opts ...ChainOption) (*Chain, error) {
	o := chainOptions{now: time.Now, logger: logging.Component("validation")}
	for _, opt := range opts {
		opt(&o)
	}
	if err := cfg.Validate(); err != nil {
		o.logger.Error().Err(err).Msg("invalid validation config")
		return nil, err
	}

	policy := o.policy
	switch {
	case policy != nil:
	case len(cfg.Issuers) > 0:
		policy = ExactIssuers(cfg.Issuers)
	case len(cfg.IssuerDomains) > 0:
		policy = DomainIssuerPolicy{Domains: cfg.IssuerDomains}
	default:
		err := sserr.New(sserr.CodeConfigurationRequired, "validation: issuers or issuer_domains are required")
		o.logger.Error().Err(err).Msg("invalid validation config")
		return nil, err
	}
	issuer, err := NewIssuerValidator(policy)
	if err != nil {
		return nil, err
	}
	audience, err := NewAudienceValidator(cfg.Audiences...)
	if err != nil {
		return nil, err
	}

	chain := &Chain{}
	keys := o.keys
	if keys == nil {
		if chain.cache, err = keycache.New(cfg.KeyCache, o.cacheOpts...); err != nil {
			return nil, err
		}
		keys = chain.cache
	}

	var resolvers []EndpointResolver
	if cfg.TrustedJKUDomain != "" {
		resolvers = append(resolvers, JKUEndpoint(cfg.TrustedJKUDomain))
	}
	if cfg.Discovery {
		d, ok := keys.(Discoverer)
		if !ok {
			return nil, sserr.New(sserr.CodeConfiguration, "validation: discovery needs a key source that can discover endpoints")
		}
		resolvers = append(resolvers, DiscoveryEndpoint(d, policy))
	}
	if cfg.JWKSURL != "" {
		resolvers = append(resolvers, StaticEndpoint(cfg.JWKSURL))
	}

	var sigOpts []SignatureOption
	if cfg.RequireTenant {
		sigOpts = append(sigOpts, WithTenantRequired())
	}
	if cfg.VerificationKey != "" {
		pub, _ := jwk.ParsePublicKeyPEM(cfg.VerificationKey)
		sigOpts = append(sigOpts, WithFallbackKey(pub))
	}
	signature, err := NewSignatureValidator(keys, FirstEndpoint(resolvers...), sigOpts...)
	if err != nil {
		return nil, err
	}

	timeOpts := []TimeOption{WithLeeway(cfg.ClockSkew), WithClock(o.now)}
	validators := []Validator{
		NewExpirationValidator(timeOpts...),
		NewNotBeforeValidator(timeOpts...),
		issuer,
		audience,
	}
	if cfg.TrustedJKUDomain != "" {
		jku, err := NewJKUValidator(cfg.TrustedJKUDomain)
		if err != nil {
			return nil, err
		}
		validators = append(validators, jku)
	}
	validators = append(validators, signature, NewCertificateBindingValidator(cfg.RequireCertificate))

	listeners := o.listeners
	if listeners == nil && !o.noListeners {
		listeners = []Listener{NewLogListener(), MetricsListener{}}
	}
	combOpts := []CombiningOption{WithListeners(listeners...)}
	if cfg.FailFast {
		combOpts = append(combOpts, FailFast())
	}
	if chain.Combining, err = NewCombining(validators, combOpts...); err != nil {
		return nil, err
	}
	return chain, nil
}
