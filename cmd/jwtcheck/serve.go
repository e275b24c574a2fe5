package main

import (
	"context"
	"errors"
	"net/http"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/StricklySoft/stricklysoft-security/pkg/auth"
	"github.com/StricklySoft/stricklysoft-security/pkg/clients/redis"
	sserr "github.com/StricklySoft/stricklysoft-security/pkg/errors"
	"github.com/StricklySoft/stricklysoft-security/pkg/keycache"
	"github.com/StricklySoft/stricklysoft-security/pkg/logging"
	"github.com/StricklySoft/stricklysoft-security/pkg/validation"
)

func serveCmd(opts *rootOptions) *cobra.Command {
	flags := &chainFlags{}
	var addr string
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Run the validation service",
		Long: "serve exposes POST /v1/validate, GET /v1/whoami, /healthz and /metrics. " +
			"Key sets are shared through Redis when JWTCHECK_JWT_KEYCACHE_REDIS_HOST or _URI is set.",
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig(cmd, opts, flags)
			if err != nil {
				return err
			}
			if cmd.Flags().Changed("addr") {
				cfg.Server.Addr = addr
			}
			configureLogging(cmd, opts, &cfg.Logging)
			ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
			defer stop()
			return runServer(ctx, cfg)
		},
	}
	flags.register(cmd)
	cmd.Flags().StringVar(&addr, "addr", ":8080", "Listen address")
	return cmd
}

// runServer serves until ctx is cancelled, then drains in-flight requests
// for at most cfg.Server.ShutdownTimeout.
func runServer(ctx context.Context, cfg fileConfig) error {
	logger := logging.Component("jwtcheck")

	var chainOpts []validation.ChainOption
	var health healthChecker
	if cfg.JWT.KeyCache.Redis.Enabled() {
		client, err := redis.NewClient(ctx, cfg.JWT.KeyCache.Redis)
		if err != nil {
			return err
		}
		defer func() { _ = client.Close() }()
		health = client
		chainOpts = append(chainOpts, validation.WithKeyCacheOptions(keycache.WithStore(keycache.NewRedisStore(client))))
		logger.Info().Msg("sharing key sets through redis")
	}

	chain, err := validation.NewChain(cfg.JWT, chainOpts...)
	if err != nil {
		return err
	}
	appID := cfg.Server.AppID
	if appID == "" {
		appID = cfg.JWT.Audiences[0]
	}
	authn, err := auth.NewAuthenticator(chain, auth.WithAppID(appID))
	if err != nil {
		return err
	}

	s := &server{validator: chain, authn: authn, health: health, logger: logger}
	if cfg.Server.TrustForwardedTLS {
		s.mwOpts = append(s.mwOpts, auth.TrustForwardedClientCert())
	}
	srv := &http.Server{
		Addr:              cfg.Server.Addr,
		Handler:           newRouter(s),
		ReadHeaderTimeout: cfg.Server.ReadHeaderTimeout,
	}

	errCh := make(chan error, 1)
	go func() {
		logger.Info().Str("addr", srv.Addr).Strs("audiences", cfg.JWT.Audiences).Msg("listening")
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- sserr.Wrap(err, sserr.CodeInternal, "jwtcheck: server failed")
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}

	logger.Info().Msg("shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), cfg.Server.ShutdownTimeout)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return sserr.Wrap(err, sserr.CodeInternal, "jwtcheck: shutdown did not complete")
	}
	return <-errCh
}
