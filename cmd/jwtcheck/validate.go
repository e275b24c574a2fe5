package main

import (
	"context"

	"github.com/spf13/cobra"

	"github.com/StricklySoft/stricklysoft-security/pkg/cert"
	sserr "github.com/StricklySoft/stricklysoft-security/pkg/errors"
	"github.com/StricklySoft/stricklysoft-security/pkg/secctx"
	"github.com/StricklySoft/stricklysoft-security/pkg/token"
	"github.com/StricklySoft/stricklysoft-security/pkg/validation"
)

// report is the JSON form of a validation result.
type report struct {
	Valid       bool              `json:"valid"`
	Fingerprint string            `json:"fingerprint,omitempty"`
	Violations  []reportViolation `json:"violations,omitempty"`
}

type reportViolation struct {
	Code   string `json:"code"`
	Reason string `json:"reason"`
}

func newReport(res validation.Result, tok *token.Token) report {
	r := report{Valid: res.IsValid()}
	if tok != nil {
		r.Fingerprint = tok.Fingerprint()
	}
	for _, v := range res.Violations() {
		r.Violations = append(r.Violations, reportViolation{Code: v.Code.String(), Reason: v.Reason})
	}
	return r
}

// check decodes raw and validates it with v. A non-empty certificate is
// presented as the caller's client certificate. Decoding and certificate
// errors are reported as violations; the returned token is nil when raw
// could not be decoded.
func check(ctx context.Context, v validation.Validator, raw, certificate string) (validation.Result, *token.Token) {
	tok, err := token.Decode(raw)
	if err != nil {
		code := sserr.GetCode(err)
		if code == "" {
			code = sserr.CodeTokenMalformed
		}
		return validation.InvalidErr(code, "token cannot be decoded", err), nil
	}
	var c *cert.Certificate
	if certificate != "" {
		if c, err = cert.Parse(certificate); err != nil {
			return validation.InvalidErr(sserr.CodeCertificate, "client certificate cannot be parsed", err), tok
		}
	}

	var res validation.Result
	_ = secctx.Run(ctx, func(ctx context.Context, s *secctx.Scope) error {
		s.SetToken(tok)
		s.SetCertificate(c)
		res = v.Validate(ctx, tok)
		return nil
	})
	return res, tok
}

func validateCmd(opts *rootOptions) *cobra.Command {
	flags := &chainFlags{}
	var certPath string
	cmd := &cobra.Command{
		Use:   "validate [token|-]",
		Short: "Validate a token and print every violation",
		Long: "validate runs the full validation chain (expiry, issuer, audience, key URL, " +
			"signature and certificate binding) and exits non-zero when the token is rejected.",
		Args: cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig(cmd, opts, flags)
			if err != nil {
				return err
			}
			chain, err := validation.NewChain(cfg.JWT)
			if err != nil {
				return err
			}
			raw, err := readArgOrStdin(cmd, args)
			if err != nil {
				return err
			}
			var certificate string
			if certPath != "" {
				if certificate, err = readFileArg(cmd, certPath); err != nil {
					return err
				}
			}

			res, tok := check(cmd.Context(), chain, raw, certificate)
			if err := writeJSON(cmd.OutOrStdout(), newReport(res, tok)); err != nil {
				return err
			}
			return res.Err()
		},
	}
	flags.register(cmd)
	cmd.Flags().StringVar(&certPath, "cert", "", "Client certificate file presented with the token")
	return cmd
}
