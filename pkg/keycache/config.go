package keycache

import (
	"time"

	"github.com/StricklySoft/stricklysoft-security/pkg/clients/redis"
	sserr "github.com/StricklySoft/stricklysoft-security/pkg/errors"
)

// Config tunes the key cache. It loads with pkg/config.
type Config struct {
	// TTL is how long a fetched key set is served before it is fetched
	// again.
	TTL time.Duration `json:"ttl" yaml:"ttl" env:"TTL" envDefault:"10m"`

	// Size bounds the number of (tenant, endpoint) entries.
	Size int `json:"size" yaml:"size" env:"SIZE" envDefault:"1000"`

	// FetchTimeout bounds one JWKS request, independent of the caller's
	// context.
	FetchTimeout time.Duration `json:"fetch_timeout" yaml:"fetch_timeout" env:"FETCH_TIMEOUT" envDefault:"10s"`

	// FailureTTL is how long a failed fetch is remembered. Zero disables
	// failure caching.
	FailureTTL time.Duration `json:"failure_ttl" yaml:"failure_ttl" env:"FAILURE_TTL" envDefault:"5s"`

	// RefreshCooldown is the minimum age of an entry before an unknown
	// kid may force a re-fetch.
	RefreshCooldown time.Duration `json:"refresh_cooldown" yaml:"refresh_cooldown" env:"REFRESH_COOLDOWN" envDefault:"30s"`

	// MaxDocumentBytes caps the JWKS response body.
	MaxDocumentBytes int64 `json:"max_document_bytes" yaml:"max_document_bytes" env:"MAX_DOCUMENT_BYTES" envDefault:"1048576"`

	// Redis enables the shared store when a host or URI is set.
	Redis redis.Config `json:"redis" yaml:"redis" env:"REDIS"`
}

// DefaultConfig returns the documented defaults.
func DefaultConfig() Config {
	return Config{
		TTL:              10 * time.Minute,
		Size:             1000,
		FetchTimeout:     10 * time.Second,
		FailureTTL:       5 * time.Second,
		RefreshCooldown:  30 * time.Second,
		MaxDocumentBytes: 1 << 20,
	}
}

// Validate rejects unusable settings.
func (c *Config) Validate() error {
	switch {
	case c.TTL <= 0:
		return sserr.Newf(sserr.CodeConfiguration, "keycache: ttl must be positive, got %s", c.TTL)
	case c.Size <= 0:
		return sserr.Newf(sserr.CodeConfiguration, "keycache: size must be positive, got %d", c.Size)
	case c.FetchTimeout <= 0:
		return sserr.Newf(sserr.CodeConfiguration, "keycache: fetch_timeout must be positive, got %s", c.FetchTimeout)
	case c.FailureTTL < 0 || c.RefreshCooldown < 0:
		return sserr.New(sserr.CodeConfiguration, "keycache: failure_ttl and refresh_cooldown must not be negative")
	case c.MaxDocumentBytes <= 0:
		return sserr.Newf(sserr.CodeConfiguration, "keycache: max_document_bytes must be positive, got %d", c.MaxDocumentBytes)
	}
	return nil
}
