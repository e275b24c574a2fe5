// Command jwtcheck inspects and validates JSON Web Tokens.
//
//	jwtcheck decode <token>                 print header and claims
//	jwtcheck thumbprint <cert.pem>          print a certificate's x5t#S256
//	jwtcheck validate --issuer ... <token>  run the validation chain
//	jwtcheck serve                          run the validation service
//
// Configuration is read from an optional YAML or JSON file (--config),
// then from JWTCHECK_* environment variables, then from flags. For
// example JWTCHECK_JWT_AUDIENCES=app1 or JWTCHECK_SERVER_ADDR=:9090.
package main

import (
	"os"

	"github.com/spf13/cobra"

	"github.com/StricklySoft/stricklysoft-security/pkg/logging"
)

// rootOptions are the persistent flags shared by every subcommand.
type rootOptions struct {
	configPath string
	logLevel   string
	logFormat  string
}

func main() {
	if err := newRootCmd().Execute(); err != nil {
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	opts := &rootOptions{}
	root := &cobra.Command{
		Use:          "jwtcheck",
		Short:        "Inspect and validate JSON Web Tokens",
		Long:         "jwtcheck decodes tokens, computes certificate thumbprints and validates tokens against trusted issuers and key sets.",
		SilenceUsage: true,
		PersistentPreRun: func(cmd *cobra.Command, args []string) {
			cfg := logging.DefaultConfig()
			cfg.Level = logging.Level(opts.logLevel)
			cfg.Format = logging.Format(opts.logFormat)
			cfg.Output = cmd.ErrOrStderr()
			logging.Configure(&cfg)
		},
	}

	root.PersistentFlags().StringVar(&opts.configPath, "config", "", "Path to a YAML or JSON configuration file")
	root.PersistentFlags().StringVar(&opts.logLevel, "log-level", "warn", "Log level (debug, info, warn, error)")
	root.PersistentFlags().StringVar(&opts.logFormat, "log-format", "console", "Log format (json, console)")

	root.AddCommand(
		decodeCmd(),
		thumbprintCmd(),
		validateCmd(opts),
		serveCmd(opts),
	)
	return root
}
