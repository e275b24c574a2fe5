// Package logging configures zerolog for services that validate tokens
// and carries correlation identifiers through request contexts.
//
// Validators never log token contents. Only reasons, codes and key ids
// reach the log stream.
package logging

import (
	"io"
	"os"
	"strings"
	"time"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

// Level is a logging level name understood by zerolog.ParseLevel.
type Level string

const (
	LevelDebug Level = "debug"
	LevelInfo  Level = "info"
	LevelWarn  Level = "warn"
	LevelError Level = "error"
)

// Format selects the output encoding.
type Format string

const (
	FormatJSON    Format = "json"
	FormatConsole Format = "console"
)

// Config holds the logging configuration.
type Config struct {
	Level       Level  `json:"level" yaml:"level" env:"LEVEL" envDefault:"info"`
	Format      Format `json:"format" yaml:"format" env:"FORMAT" envDefault:"json"`
	ServiceName string `json:"service_name" yaml:"service_name" env:"SERVICE_NAME" envDefault:"jwtcheck"`
	Environment string `json:"environment" yaml:"environment" env:"ENVIRONMENT" envDefault:"development"`
	Version     string `json:"version" yaml:"version" env:"VERSION"`
	Caller      bool   `json:"caller" yaml:"caller" env:"CALLER"`

	// Output defaults to os.Stderr.
	Output io.Writer `json:"-" yaml:"-"`
}

// DefaultConfig returns JSON logging at info level.
func DefaultConfig() Config {
	return Config{
		Level:       LevelInfo,
		Format:      FormatJSON,
		ServiceName: "jwtcheck",
		Environment: "development",
	}
}

// New builds a logger from cfg without touching global state.
func New(cfg Config) zerolog.Logger {
	level, err := zerolog.ParseLevel(strings.ToLower(string(cfg.Level)))
	if err != nil || cfg.Level == "" {
		level = zerolog.InfoLevel
	}

	out := cfg.Output
	if out == nil {
		out = os.Stderr
	}
	if cfg.Format == FormatConsole {
		out = zerolog.ConsoleWriter{Out: out, TimeFormat: time.RFC3339}
	}

	ctx := zerolog.New(out).Level(level).With().Timestamp()
	if cfg.ServiceName != "" {
		ctx = ctx.Str("service", cfg.ServiceName)
	}
	if cfg.Environment != "" {
		ctx = ctx.Str("environment", cfg.Environment)
	}
	if cfg.Version != "" {
		ctx = ctx.Str("version", cfg.Version)
	}
	if cfg.Caller {
		ctx = ctx.Caller()
	}
	return ctx.Logger()
}

// Configure builds a logger from cfg and installs it as the global
// zerolog logger. A nil cfg means DefaultConfig.
func Configure(cfg *Config) zerolog.Logger {
	if cfg == nil {
		d := DefaultConfig()
		cfg = &d
	}
	zerolog.TimeFieldFormat = time.RFC3339Nano
	logger := New(*cfg)
	log.Logger = logger
	return logger
}

// ConfigureFromEnv applies LOG_LEVEL, LOG_FORMAT, SERVICE_NAME,
// ENVIRONMENT and VERSION on top of DefaultConfig.
func ConfigureFromEnv() zerolog.Logger {
	cfg := DefaultConfig()
	if v := os.Getenv("LOG_LEVEL"); v != "" {
		cfg.Level = Level(strings.ToLower(v))
	}
	if v := os.Getenv("LOG_FORMAT"); v != "" {
		cfg.Format = Format(strings.ToLower(v))
	}
	if v := os.Getenv("SERVICE_NAME"); v != "" {
		cfg.ServiceName = v
	}
	if v := os.Getenv("ENVIRONMENT"); v != "" {
		cfg.Environment = v
	}
	if v := os.Getenv("VERSION"); v != "" {
		cfg.Version = v
	}
	return Configure(&cfg)
}

// Component returns the global logger tagged with component.
func Component(name string) zerolog.Logger {
	return log.Logger.With().Str("component", name).Logger()
}
