package main

import (
	"os"
	"time"

	"github.com/spf13/cobra"

	"github.com/StricklySoft/stricklysoft-security/pkg/config"
	sserr "github.com/StricklySoft/stricklysoft-security/pkg/errors"
	"github.com/StricklySoft/stricklysoft-security/pkg/logging"
	"github.com/StricklySoft/stricklysoft-security/pkg/validation"
)

// envPrefix prefixes every environment variable read by jwtcheck.
const envPrefix = "JWTCHECK"

// fileConfig is the layout of the --config file and the JWTCHECK_*
// environment.
type fileConfig struct {
	Logging logging.Config    `json:"logging" yaml:"logging" env:"LOG"`
	JWT     validation.Config `json:"jwt" yaml:"jwt" env:"JWT"`
	Server  serverConfig      `json:"server" yaml:"server" env:"SERVER"`
}

type serverConfig struct {
	Addr              string        `json:"addr" yaml:"addr" env:"ADDR" envDefault:":8080"`
	AppID             string        `json:"app_id" yaml:"app_id" env:"APP_ID"`
	TrustForwardedTLS bool          `json:"trust_forwarded_client_cert" yaml:"trust_forwarded_client_cert" env:"TRUST_FORWARDED_CLIENT_CERT"`
	ReadHeaderTimeout time.Duration `json:"read_header_timeout" yaml:"read_header_timeout" env:"READ_HEADER_TIMEOUT" envDefault:"5s"`
	ShutdownTimeout   time.Duration `json:"shutdown_timeout" yaml:"shutdown_timeout" env:"SHUTDOWN_TIMEOUT" envDefault:"15s"`
}

// chainFlags are the validation settings that can be given on the
// command line. Only flags that were set override the configuration.
type chainFlags struct {
	issuers         []string
	issuerDomains   []string
	audiences       []string
	jwksURL         string
	discovery       bool
	jkuDomain       string
	clockSkew       time.Duration
	requireTenant   bool
	requireCert     bool
	verificationKey string
	failFast        bool
}

func (f *chainFlags) register(cmd *cobra.Command) {
	fs := cmd.Flags()
	fs.StringSliceVar(&f.issuers, "issuer", nil, "Trusted issuer (repeatable)")
	fs.StringSliceVar(&f.issuerDomains, "issuer-domain", nil, "Trusted issuer domain (repeatable)")
	fs.StringSliceVar(&f.audiences, "audience", nil, "Expected audience or client id (repeatable)")
	fs.StringVar(&f.jwksURL, "jwks-url", "", "JWKS endpoint")
	fs.BoolVar(&f.discovery, "discovery", false, "Discover the JWKS endpoint from the issuer's OpenID metadata")
	fs.StringVar(&f.jkuDomain, "jku-domain", "", "Trust jku headers on this domain")
	fs.DurationVar(&f.clockSkew, "clock-skew", validation.DefaultClockSkew, "Leeway for exp and nbf")
	fs.BoolVar(&f.requireTenant, "require-tenant", false, "Reject tokens without a tenant")
	fs.BoolVar(&f.requireCert, "require-cert", false, "Reject certificate-bound tokens presented without a certificate")
	fs.StringVar(&f.verificationKey, "verification-key", "", "PEM file with a fallback RSA verification key")
	fs.BoolVar(&f.failFast, "fail-fast", false, "Stop at the first violation")
}

func (f *chainFlags) apply(cmd *cobra.Command, cfg *validation.Config) error {
	fs := cmd.Flags()
	if fs.Changed("issuer") {
		cfg.Issuers = f.issuers
	}
	if fs.Changed("issuer-domain") {
		cfg.IssuerDomains = f.issuerDomains
	}
	if fs.Changed("audience") {
		cfg.Audiences = f.audiences
	}
	if fs.Changed("jwks-url") {
		cfg.JWKSURL = f.jwksURL
	}
	if fs.Changed("discovery") {
		cfg.Discovery = f.discovery
	}
	if fs.Changed("jku-domain") {
		cfg.TrustedJKUDomain = f.jkuDomain
	}
	if fs.Changed("clock-skew") {
		cfg.ClockSkew = f.clockSkew
	}
	if fs.Changed("require-tenant") {
		cfg.RequireTenant = f.requireTenant
	}
	if fs.Changed("require-cert") {
		cfg.RequireCertificate = f.requireCert
	}
	if fs.Changed("fail-fast") {
		cfg.FailFast = f.failFast
	}
	if fs.Changed("verification-key") {
		pem, err := os.ReadFile(f.verificationKey)
		if err != nil {
			return sserr.Wrapf(err, sserr.CodeConfiguration, "jwtcheck: cannot read verification key %q", f.verificationKey)
		}
		cfg.VerificationKey = string(pem)
	}
	return nil
}

// loadConfig layers defaults, the config file, the environment and
// flags, in increasing precedence.
func loadConfig(cmd *cobra.Command, opts *rootOptions, flags *chainFlags) (fileConfig, error) {
	var cfg fileConfig
	// Flags are applied before loading too, so that required values
	// given only on the command line pass the loader's checks.
	if err := flags.apply(cmd, &cfg.JWT); err != nil {
		return cfg, err
	}
	loader := config.New().WithEnvPrefix(envPrefix)
	if opts.configPath != "" {
		loader = loader.WithFile(opts.configPath)
	}
	if err := loader.Load(&cfg); err != nil {
		return cfg, err
	}
	if err := flags.apply(cmd, &cfg.JWT); err != nil {
		return cfg, err
	}
	return cfg, nil
}

// configureLogging replaces the logger set up from the root flags with
// one built from the logging section. Log flags still take precedence.
func configureLogging(cmd *cobra.Command, opts *rootOptions, cfg *logging.Config) {
	if cmd.Flags().Changed("log-level") {
		cfg.Level = logging.Level(opts.logLevel)
	}
	if cmd.Flags().Changed("log-format") {
		cfg.Format = logging.Format(opts.logFormat)
	}
	cfg.Output = cmd.ErrOrStderr()
	logging.Configure(cfg)
}
